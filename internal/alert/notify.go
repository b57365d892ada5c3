package alert

import (
	"context"
	"fmt"
	"strings"
	"time"

	"genfity-floor-services/internal/orderwatch"
)

type Permission string

const (
	PermissionDefault Permission = "default"
	PermissionGranted Permission = "granted"
	PermissionDenied  Permission = "denied"
)

func ParsePermission(value string) Permission {
	switch Permission(strings.ToLower(strings.TrimSpace(value))) {
	case PermissionGranted:
		return PermissionGranted
	case PermissionDenied:
		return PermissionDenied
	default:
		return PermissionDefault
	}
}

const (
	NotificationTag         = "new-order"
	NotificationAutoDismiss = 5 * time.Second
	orderSuffixLength       = 6
)

type Notification struct {
	Title       string        `json:"title"`
	Body        string        `json:"body"`
	Tag         string        `json:"tag"`
	AutoDismiss time.Duration `json:"-"`
	FocusOnTap  bool          `json:"focusOnClick"`
}

// Notifier shows desktop notifications. RequestPermission must not block on
// the user's answer.
type Notifier interface {
	Permission() Permission
	RequestPermission(ctx context.Context) error
	Show(ctx context.Context, n Notification) error
}

func orderSuffix(o orderwatch.Order) string {
	ref := o.OrderNumber
	if strings.TrimSpace(ref) == "" {
		ref = o.ID
	}
	runes := []rune(ref)
	if len(runes) > orderSuffixLength {
		runes = runes[len(runes)-orderSuffixLength:]
	}
	return strings.ToUpper(string(runes))
}

func NewOrderNotification(batch []orderwatch.Order) Notification {
	n := Notification{
		Tag:         NotificationTag,
		AutoDismiss: NotificationAutoDismiss,
		FocusOnTap:  true,
	}
	if len(batch) == 1 {
		o := batch[0]
		customer := strings.TrimSpace(o.CustomerName)
		if customer == "" {
			customer = "Guest"
		}
		n.Title = "New order received"
		n.Body = fmt.Sprintf("Order #%s from %s", orderSuffix(o), customer)
		return n
	}
	n.Title = fmt.Sprintf("%d new orders received", len(batch))
	n.Body = fmt.Sprintf("You have %d new orders waiting", len(batch))
	return n
}

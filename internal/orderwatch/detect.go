package orderwatch

import "time"

type Order struct {
	ID            string    `json:"id"`
	OrderNumber   string    `json:"orderNumber"`
	Status        string    `json:"status"`
	OrderType     string    `json:"orderType"`
	TableNumber   *string   `json:"tableNumber,omitempty"`
	CustomerName  string    `json:"customerName,omitempty"`
	PaymentMethod string    `json:"paymentMethod,omitempty"`
	PlacedAt      time.Time `json:"placedAt"`
}

type IDSet map[string]struct{}

func NewIDSet(ids ...string) IDSet {
	set := make(IDSet, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set
}

func IDsOf(orders []Order) IDSet {
	set := make(IDSet, len(orders))
	for _, o := range orders {
		set[o.ID] = struct{}{}
	}
	return set
}

func (s IDSet) Has(id string) bool {
	_, ok := s[id]
	return ok
}

type Detection struct {
	NewOrders  []Order
	UpdatedIDs IDSet
}

func diff(previous IDSet, current []Order) []Order {
	fresh := make([]Order, 0)
	for _, o := range current {
		if !previous.Has(o.ID) {
			fresh = append(fresh, o)
		}
	}
	return fresh
}

// DetectNewOrders compares the previous id set with the current snapshot.
// An empty previous set with a non-empty snapshot is a baseline load and
// reports nothing. The returned id set always replaces the previous one.
func DetectNewOrders(previous IDSet, current []Order) Detection {
	updated := IDsOf(current)
	if len(previous) == 0 && len(current) > 0 {
		return Detection{NewOrders: []Order{}, UpdatedIDs: updated}
	}
	return Detection{NewOrders: diff(previous, current), UpdatedIDs: updated}
}

// Tracker is Uninitialized until it sees its first non-empty snapshot, which
// becomes the silent baseline. Once Tracking, every unseen id is new, even
// after a period with no active orders.
type Tracker struct {
	tracking bool
	ids      IDSet
}

func (t *Tracker) Tracking() bool {
	return t.tracking
}

func (t *Tracker) IDs() IDSet {
	return t.ids
}

func (t *Tracker) Observe(current []Order) []Order {
	if !t.tracking {
		if len(current) == 0 {
			return nil
		}
		t.tracking = true
		t.ids = IDsOf(current)
		return nil
	}
	fresh := diff(t.ids, current)
	t.ids = IDsOf(current)
	return fresh
}

func (t *Tracker) Reset() {
	t.tracking = false
	t.ids = nil
}

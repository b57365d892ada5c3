package signal

import (
	"context"
	"sync"
	"time"
)

// Token tells listeners to re-fetch a merchant's orders now.
type Token struct {
	MerchantID int64     `json:"merchantId"`
	At         time.Time `json:"at"`
	Origin     string    `json:"origin,omitempty"`
}

type Broadcaster interface {
	Broadcast(ctx context.Context, merchantID int64) error
}

// Bus fans tokens out to in-process subscribers of the same merchant.
type Bus struct {
	mu     sync.RWMutex
	nextID int
	subs   map[int64]map[int]chan Token
}

func NewBus() *Bus {
	return &Bus{subs: make(map[int64]map[int]chan Token)}
}

// Subscribe returns a channel that coalesces pending tokens; a slow reader
// sees at least one token after any number of publishes.
func (b *Bus) Subscribe(merchantID int64) (<-chan Token, func()) {
	ch := make(chan Token, 1)

	b.mu.Lock()
	id := b.nextID
	b.nextID++
	if b.subs[merchantID] == nil {
		b.subs[merchantID] = make(map[int]chan Token)
	}
	b.subs[merchantID][id] = ch
	b.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			b.mu.Lock()
			if subs := b.subs[merchantID]; subs != nil {
				delete(subs, id)
				if len(subs) == 0 {
					delete(b.subs, merchantID)
				}
			}
			b.mu.Unlock()
		})
	}
}

func (b *Bus) Publish(token Token) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, ch := range b.subs[token.MerchantID] {
		select {
		case ch <- token:
		default:
		}
	}
}

func (b *Bus) Broadcast(ctx context.Context, merchantID int64) error {
	b.Publish(Token{MerchantID: merchantID, At: time.Now()})
	return nil
}

// Refresh adapts a token subscription to a plain trigger channel, ending
// when ctx is done.
func Refresh(ctx context.Context, tokens <-chan Token) <-chan struct{} {
	out := make(chan struct{}, 1)
	go func() {
		defer close(out)
		for {
			select {
			case <-ctx.Done():
				return
			case _, ok := <-tokens:
				if !ok {
					return
				}
				select {
				case out <- struct{}{}:
				default:
				}
			}
		}
	}()
	return out
}

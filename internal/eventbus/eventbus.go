// Package eventbus implements the best-effort fan-out at the center of the
// system: every settled bet and every new day's seed-hash commitment is
// published here once, and zero or more subscribers (the WS hub, future
// transports) receive a copy. Delivery is best-effort — a slow or gone
// subscriber never blocks or crashes the publisher.
package eventbus

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// EventType identifies the kind of event flowing through the bus.
type EventType string

const (
	EventBetResult      EventType = "bet_result"
	EventSeedHashUpdate EventType = "seed_hash_update"
)

// BetResultEvent is published once RollAndSettle's payout attempt (if any)
// has terminated — never earlier, so subscribers only ever see a bet's final
// state.
type BetResultEvent struct {
	BetID          uuid.UUID `json:"bet_id"`
	BetNumber      int64     `json:"bet_number"`
	UserAddress    string    `json:"user_address"`
	BetAmount      int64     `json:"bet_amount"`
	Multiplier     float64   `json:"multiplier"`
	Chance         float64   `json:"chance"`
	RollResult     float64   `json:"roll_result"`
	IsWin          bool      `json:"is_win"`
	PayoutAmount   int64     `json:"payout_amount"`
	Profit         int64     `json:"profit"`
	PayoutTxid     *string   `json:"payout_txid"`
	Status         string    `json:"status"`
	ServerSeedHash string    `json:"server_seed_hash"`
	Timestamp      time.Time `json:"timestamp"`
}

// SeedHashUpdateEvent is published the first time a bet is materialized
// against a new calendar day's ServerSeed, so clients can refresh the
// fairness commitment they're betting against.
type SeedHashUpdateEvent struct {
	SeedDate       string    `json:"seed_date"`
	ServerSeedHash string    `json:"server_seed_hash"`
	Timestamp      time.Time `json:"timestamp"`
}

// Event wraps a typed payload with its EventType for subscriber dispatch.
type Event struct {
	Type    EventType
	Payload any
}

// subscriberBufferSize bounds how far a subscriber may lag before it starts
// losing events; the bus never blocks waiting for a slow subscriber.
const subscriberBufferSize = 256

// Bus is a transport-agnostic, best-effort publish/subscribe fan-out.
type Bus struct {
	mu          sync.RWMutex
	subscribers map[chan Event]struct{}
}

// New builds an empty Bus.
func New() *Bus {
	return &Bus{subscribers: make(map[chan Event]struct{})}
}

// Subscribe registers a new subscriber channel. Callers must range over the
// returned channel until Unsubscribe is called (typically in a defer).
func (b *Bus) Subscribe() chan Event {
	ch := make(chan Event, subscriberBufferSize)
	b.mu.Lock()
	b.subscribers[ch] = struct{}{}
	b.mu.Unlock()
	return ch
}

// Unsubscribe removes and closes a subscriber channel.
func (b *Bus) Unsubscribe(ch chan Event) {
	b.mu.Lock()
	if _, ok := b.subscribers[ch]; ok {
		delete(b.subscribers, ch)
		close(ch)
	}
	b.mu.Unlock()
}

// publish fans an event out to every current subscriber. A subscriber whose
// buffer is full has the event dropped for it rather than blocking the
// publisher or any other subscriber.
func (b *Bus) publish(evt Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for ch := range b.subscribers {
		select {
		case ch <- evt:
		default:
		}
	}
}

// PublishBetResult fans out a settled bet's final state.
func (b *Bus) PublishBetResult(e BetResultEvent) {
	b.publish(Event{Type: EventBetResult, Payload: e})
}

// PublishSeedHashUpdate fans out a new day's published seed hash.
func (b *Bus) PublishSeedHashUpdate(e SeedHashUpdateEvent) {
	b.publish(Event{Type: EventSeedHashUpdate, Payload: e})
}

// SubscriberCount reports the current number of registered subscribers, for
// health/debug endpoints.
func (b *Bus) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers)
}

package eventbus_test

import (
	"sync"
	"testing"
	"time"

	"github.com/evetabi/prediction/internal/eventbus"
	"github.com/google/uuid"
)

// TestPublishFanOutToMultipleSubscribers verifies that a single published
// event reaches every current subscriber exactly once.
func TestPublishFanOutToMultipleSubscribers(t *testing.T) {
	bus := eventbus.New()
	const subscribers = 10

	chans := make([]chan eventbus.Event, subscribers)
	for i := range chans {
		chans[i] = bus.Subscribe()
	}
	if bus.SubscriberCount() != subscribers {
		t.Fatalf("SubscriberCount = %d, want %d", bus.SubscriberCount(), subscribers)
	}

	bus.PublishBetResult(eventbus.BetResultEvent{BetID: uuid.New(), IsWin: true})

	var wg sync.WaitGroup
	for _, ch := range chans {
		wg.Add(1)
		go func(ch chan eventbus.Event) {
			defer wg.Done()
			select {
			case evt := <-ch:
				if evt.Type != eventbus.EventBetResult {
					t.Errorf("event type = %v, want %v", evt.Type, eventbus.EventBetResult)
				}
			case <-time.After(time.Second):
				t.Error("timed out waiting for fan-out delivery")
			}
		}(ch)
	}
	wg.Wait()
}

// TestUnsubscribeStopsDelivery verifies that after Unsubscribe, a channel
// receives no further events and is closed.
func TestUnsubscribeStopsDelivery(t *testing.T) {
	bus := eventbus.New()
	ch := bus.Subscribe()
	bus.Unsubscribe(ch)

	bus.PublishSeedHashUpdate(eventbus.SeedHashUpdateEvent{SeedDate: "2026-08-01"})

	_, open := <-ch
	if open {
		t.Error("expected channel to be closed after Unsubscribe")
	}
}

// TestPublishNeverBlocksOnFullSubscriber verifies the best-effort contract:
// a subscriber that never drains its buffer does not stall Publish for
// other subscribers or the publisher itself.
func TestPublishNeverBlocksOnFullSubscriber(t *testing.T) {
	bus := eventbus.New()
	slow := bus.Subscribe() // never read from
	fast := bus.Subscribe()

	done := make(chan struct{})
	go func() {
		for i := 0; i < 1000; i++ {
			bus.PublishBetResult(eventbus.BetResultEvent{BetID: uuid.New()})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Publish blocked on a full subscriber buffer")
	}

	select {
	case <-fast:
	default:
		t.Error("expected at least one event delivered to the fast subscriber")
	}
	_ = slow
}

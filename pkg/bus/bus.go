package bus

import (
	"context"
	"sync"
)

// Subscriber is a named tap on the system event stream. Multiple
// subscribers can independently consume the same published events
// (fan-out).
type Subscriber struct {
	Name string
	ch   chan interface{} // receives copies of published events
}

// MessageBus decouples the webhook handler from the dispatch workers.
// The inbound queue is the ack-fast handoff: the handler publishes and
// returns, workers consume at their own pace.
type MessageBus struct {
	inbound   chan Inbound
	mu        sync.RWMutex
	closed    bool
	closeOnce sync.Once

	// Fan-out subscribers — every published event is sent to all taps
	inboundSubs []*Subscriber
	systemSubs  []*Subscriber
}

func NewMessageBus(queueSize int) *MessageBus {
	if queueSize <= 0 {
		queueSize = 100
	}
	return &MessageBus{
		inbound: make(chan Inbound, queueSize),
	}
}

// --- Fan-out subscriptions ---

// SubscribeInboundTap creates a named subscriber that receives copies of
// all inbound work items. The returned channel is buffered; slow
// consumers drop.
func (mb *MessageBus) SubscribeInboundTap(name string) <-chan interface{} {
	mb.mu.Lock()
	defer mb.mu.Unlock()
	sub := &Subscriber{Name: name, ch: make(chan interface{}, 64)}
	mb.inboundSubs = append(mb.inboundSubs, sub)
	return sub.ch
}

// SubscribeSystem creates a named subscriber for system events.
func (mb *MessageBus) SubscribeSystem(name string) <-chan interface{} {
	mb.mu.Lock()
	defer mb.mu.Unlock()
	sub := &Subscriber{Name: name, ch: make(chan interface{}, 64)}
	mb.systemSubs = append(mb.systemSubs, sub)
	return sub.ch
}

// PublishSystem publishes a system event to all system subscribers.
func (mb *MessageBus) PublishSystem(event SystemEvent) {
	mb.mu.RLock()
	defer mb.mu.RUnlock()
	if mb.closed {
		return
	}
	for _, sub := range mb.systemSubs {
		select {
		case sub.ch <- event:
		default: // drop if slow
		}
	}
}

func (mb *MessageBus) fanOutInbound(item Inbound) {
	for _, sub := range mb.inboundSubs {
		select {
		case sub.ch <- item:
		default: // non-blocking — drop if subscriber is slow
		}
	}
}

// --- Primary publish/consume ---

// PublishInbound enqueues classified work for the dispatch workers.
// Never blocks the webhook path: if the queue is full the oldest item is
// dropped to make room.
func (mb *MessageBus) PublishInbound(item Inbound) {
	mb.mu.RLock()
	if mb.closed {
		mb.mu.RUnlock()
		return
	}
	// Fan out to all taps
	mb.fanOutInbound(item)
	mb.mu.RUnlock()

	select {
	case mb.inbound <- item:
	default:
		// Queue full — drop oldest and retry
		select {
		case <-mb.inbound:
		default:
		}
		select {
		case mb.inbound <- item:
		default:
		}
	}
}

// ConsumeInbound blocks until a work item arrives or ctx is cancelled.
func (mb *MessageBus) ConsumeInbound(ctx context.Context) (Inbound, bool) {
	select {
	case item, ok := <-mb.inbound:
		return item, ok
	case <-ctx.Done():
		return Inbound{}, false
	}
}

// Pending reports the number of queued work items.
func (mb *MessageBus) Pending() int {
	return len(mb.inbound)
}

func (mb *MessageBus) Close() {
	mb.closeOnce.Do(func() {
		mb.mu.Lock()
		mb.closed = true
		for _, sub := range mb.inboundSubs {
			close(sub.ch)
		}
		for _, sub := range mb.systemSubs {
			close(sub.ch)
		}
		mb.mu.Unlock()
		close(mb.inbound)
	})
}

package bus

import (
	"context"
	"testing"
	"time"

	"github.com/axt-team/axtgate/pkg/event"
)

func TestPublishConsume(t *testing.T) {
	mb := NewMessageBus(4)
	defer mb.Close()

	mb.PublishInbound(Inbound{Event: &event.Event{MsgID: "m1"}})

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	item, ok := mb.ConsumeInbound(ctx)
	if !ok {
		t.Fatal("expected item")
	}
	if item.Event.MsgID != "m1" {
		t.Fatalf("got %q", item.Event.MsgID)
	}
}

func TestConsumeRespectsContext(t *testing.T) {
	mb := NewMessageBus(4)
	defer mb.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, ok := mb.ConsumeInbound(ctx)
	if ok {
		t.Fatal("expected no item after cancel")
	}
}

func TestPublishDropsOldestWhenFull(t *testing.T) {
	mb := NewMessageBus(2)
	defer mb.Close()

	for _, id := range []string{"a", "b", "c"} {
		mb.PublishInbound(Inbound{Event: &event.Event{MsgID: id}})
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	first, _ := mb.ConsumeInbound(ctx)
	second, _ := mb.ConsumeInbound(ctx)
	if first.Event.MsgID != "b" || second.Event.MsgID != "c" {
		t.Fatalf("expected oldest dropped, got %q %q", first.Event.MsgID, second.Event.MsgID)
	}
}

func TestSystemFanOut(t *testing.T) {
	mb := NewMessageBus(4)
	defer mb.Close()

	a := mb.SubscribeSystem("a")
	b := mb.SubscribeSystem("b")

	mb.PublishSystem(SystemEvent{Type: EventSystemStarted, Source: "test"})

	for _, ch := range []<-chan interface{}{a, b} {
		select {
		case raw := <-ch:
			ev := raw.(SystemEvent)
			if ev.Type != EventSystemStarted {
				t.Fatalf("got type %q", ev.Type)
			}
		case <-time.After(time.Second):
			t.Fatal("subscriber did not receive event")
		}
	}
}

func TestPublishAfterCloseIsNoop(t *testing.T) {
	mb := NewMessageBus(4)
	mb.Close()

	mb.PublishInbound(Inbound{Event: &event.Event{MsgID: "late"}})
	mb.PublishSystem(SystemEvent{Type: EventInbound})
}

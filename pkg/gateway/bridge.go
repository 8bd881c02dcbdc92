// Event bridge — wires the message bus into the WebSocket hub so
// operators can watch events flow through the gateway in real time.
package gateway

import (
	"context"

	"github.com/axt-team/axtgate/pkg/bus"
	"github.com/axt-team/axtgate/pkg/logger"
)

// EventBridge connects the message bus to the WebSocket hub for live updates.
type EventBridge struct {
	bus *bus.MessageBus
	hub *WSHub
}

func NewEventBridge(mb *bus.MessageBus, hub *WSHub) *EventBridge {
	return &EventBridge{bus: mb, hub: hub}
}

// Run starts forwarding loops using fan-out taps on the message bus.
// The taps receive copies of published items without stealing from the
// dispatch workers.
func (eb *EventBridge) Run(ctx context.Context) {
	logger.InfoC("events", "Event bridge started — forwarding bus events to WebSocket")

	inboundTap := eb.bus.SubscribeInboundTap("event-bridge")
	systemTap := eb.bus.SubscribeSystem("event-bridge")

	go eb.forwardInbound(ctx, inboundTap)
	go eb.forwardSystem(ctx, systemTap)
}

func (eb *EventBridge) forwardInbound(ctx context.Context, tap <-chan interface{}) {
	for {
		select {
		case <-ctx.Done():
			logger.InfoC("events", "Inbound event bridge stopped")
			return
		case raw, ok := <-tap:
			if !ok {
				return
			}
			if item, ok := raw.(bus.Inbound); ok {
				eb.hub.Broadcast(bus.EventInbound, map[string]interface{}{
					"trace_id":  item.TraceID,
					"kind":      item.Event.Kind.String(),
					"msg_id":    item.Event.MsgID,
					"sender_id": item.Event.SenderID,
					"content":   truncate(item.Event.Content, 200),
				})
			}
		}
	}
}

func (eb *EventBridge) forwardSystem(ctx context.Context, tap <-chan interface{}) {
	for {
		select {
		case <-ctx.Done():
			logger.InfoC("events", "System event bridge stopped")
			return
		case raw, ok := <-tap:
			if !ok {
				return
			}
			if evt, ok := raw.(bus.SystemEvent); ok {
				eb.hub.Broadcast(evt.Type, evt.Data)
			}
		}
	}
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "…"
}

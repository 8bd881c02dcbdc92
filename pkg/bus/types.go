package bus

import (
	"time"

	"github.com/axt-team/axtgate/pkg/event"
)

// Inbound is one unit of work handed from the webhook path to the
// dispatch workers. The HTTP response has already been sent by the time
// a worker picks it up.
type Inbound struct {
	Event    *event.Event
	TraceID  string
	Received time.Time
}

// SystemEvent is a typed event flowing through the bus for observability.
// Used for dispatch outcomes, delivery results, stats snapshots, etc.
type SystemEvent struct {
	Type   string      `json:"type"`   // e.g. "dispatch.handled", "delivery.failed"
	Source string      `json:"source"` // e.g. "dispatcher", "router"
	Data   interface{} `json:"data"`
}

// System event types published on the bus.
const (
	EventInbound         = "message.inbound"
	EventDispatchHandled = "dispatch.handled"
	EventDispatchUnknown = "dispatch.unknown"
	EventDispatchFailed  = "dispatch.failed"
	EventDeliverySuccess = "delivery.success"
	EventDeliveryPending = "delivery.pending"
	EventDeliveryFailed  = "delivery.failed"
	EventDeliveryDropped = "delivery.dropped"
	EventStatsSnapshot   = "stats.snapshot"
	EventSystemStarted   = "system.started"
	EventSystemStopping  = "system.stopping"
)

package dispatch

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/axt-team/axtgate/pkg/bus"
	"github.com/axt-team/axtgate/pkg/event"
	"github.com/axt-team/axtgate/pkg/logger"
	"github.com/axt-team/axtgate/pkg/registry"
	"github.com/axt-team/axtgate/pkg/store"
)

// Outcome is the terminal state of one dispatched event.
type Outcome int

const (
	// Handled means a handler ran and returned nil.
	Handled Outcome = iota
	// Unknown means no handler matched the event.
	Unknown
	// Failed means a handler ran and returned an error or panicked.
	Failed
)

func (o Outcome) String() string {
	switch o {
	case Handled:
		return "handled"
	case Unknown:
		return "unknown"
	case Failed:
		return "failed"
	default:
		return fmt.Sprintf("outcome(%d)", int(o))
	}
}

// InboundStore persists received events before routing.
type InboundStore interface {
	SaveInbound(ev *event.Event) error
}

type systemPublisher interface {
	PublishSystem(bus.SystemEvent)
}

// Dispatcher persists each event and routes it to a registered handler.
// Persistence failures other than duplicates are logged and routing
// continues; losing a reply is worse than losing an audit row.
type Dispatcher struct {
	registry *registry.Registry
	store    InboundStore
	events   systemPublisher
}

func New(reg *registry.Registry, st InboundStore, events systemPublisher) *Dispatcher {
	return &Dispatcher{registry: reg, store: st, events: events}
}

// Dispatch runs one event to completion and reports the outcome.
func (d *Dispatcher) Dispatch(ctx context.Context, ev *event.Event) Outcome {
	if err := d.store.SaveInbound(ev); err != nil {
		if errors.Is(err, store.ErrDuplicateMessage) {
			logger.DebugCF("dispatch", "duplicate message, routing anyway", map[string]interface{}{
				"msg_id": ev.MsgID,
			})
		} else {
			logger.ErrorCF("dispatch", "persist failed", map[string]interface{}{
				"msg_id": ev.MsgID,
				"error":  err.Error(),
			})
		}
	}

	h, token := d.resolve(ev)
	if h == nil {
		logger.DebugCF("dispatch", "no handler", map[string]interface{}{
			"kind":  ev.Kind.String(),
			"token": token,
		})
		d.publish(bus.EventDispatchUnknown, ev, token, "")
		return Unknown
	}

	if err := d.invoke(ctx, h, ev); err != nil {
		logger.ErrorCF("dispatch", "handler failed", map[string]interface{}{
			"kind":  ev.Kind.String(),
			"token": token,
			"error": err.Error(),
		})
		d.publish(bus.EventDispatchFailed, ev, token, err.Error())
		return Failed
	}

	d.publish(bus.EventDispatchHandled, ev, token, "")
	return Handled
}

// resolve picks the handler for an event. Lifecycle events route past
// the command table; message events route by their first token.
func (d *Dispatcher) resolve(ev *event.Event) (registry.Handler, string) {
	if ev.Kind == event.KindGuildLifecycle {
		return d.registry.ResolveLifecycle(), ""
	}
	if !ev.Kind.IsMessage() {
		return nil, ""
	}
	token := firstToken(ev.Content)
	if token == "" {
		return nil, ""
	}
	return d.registry.Resolve(token, ev.Kind), token
}

// invoke shields the worker from handler panics.
func (d *Dispatcher) invoke(ctx context.Context, h registry.Handler, ev *event.Event) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panicked: %v", r)
		}
	}()
	return h(ctx, ev)
}

func (d *Dispatcher) publish(typ string, ev *event.Event, token, detail string) {
	if d.events == nil {
		return
	}
	d.events.PublishSystem(bus.SystemEvent{
		Type:   typ,
		Source: "dispatcher",
		Data: map[string]interface{}{
			"kind":   ev.Kind.String(),
			"msg_id": ev.MsgID,
			"token":  token,
			"detail": detail,
		},
	})
}

func firstToken(content string) string {
	fields := strings.Fields(content)
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}

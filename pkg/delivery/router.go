package delivery

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/axt-team/axtgate/pkg/bus"
	"github.com/axt-team/axtgate/pkg/event"
	"github.com/axt-team/axtgate/pkg/logger"
	"github.com/axt-team/axtgate/pkg/store"
)

const defaultBaseURL = "https://api.sgroup.qq.com"

// ErrNoTarget means the event carries nothing to reply to. No record is
// written for these.
var ErrNoTarget = errors.New("delivery: no reply target")

// TokenSource provides the current platform access token.
type TokenSource interface {
	Token() string
}

// OutboundStore records delivery attempts and their outcomes.
type OutboundStore interface {
	CreateOutbound(ch store.Channel, targetID, guildID, message string) (int64, error)
	MarkOutboundSuccess(ch store.Channel, id int64, messageID string) error
	MarkOutboundFailed(ch store.Channel, id int64, errorInfo string) error
}

type systemPublisher interface {
	PublishSystem(bus.SystemEvent)
}

// Result describes one delivery attempt after it settled.
type Result struct {
	TraceID    string        `json:"trace_id"`
	Channel    store.Channel `json:"channel"`
	TargetID   string        `json:"target_id"`
	RecordID   int64         `json:"record_id"`
	Status     string        `json:"status"`
	MessageID  string        `json:"message_id,omitempty"`
	HTTPStatus int           `json:"http_status"`
	ErrorInfo  string        `json:"error_info,omitempty"`
}

// Router picks the send endpoint for an event's reply target and
// tracks each attempt in the outbound store.
type Router struct {
	baseURL string
	client  *http.Client
	tokens  TokenSource
	store   OutboundStore
	events  systemPublisher
}

func NewRouter(tokens TokenSource, st OutboundStore, events systemPublisher) *Router {
	return NewRouterWithBase(defaultBaseURL, tokens, st, events)
}

// NewRouterWithBase overrides the platform base URL. Tests point it at
// a local server.
func NewRouterWithBase(baseURL string, tokens TokenSource, st OutboundStore, events systemPublisher) *Router {
	return &Router{
		baseURL: baseURL,
		client:  &http.Client{Timeout: 30 * time.Second},
		tokens:  tokens,
		store:   st,
		events:  events,
	}
}

// Send routes one intent to the endpoint matching the event's reply
// target. Targets are checked in fixed priority order: group, then
// channel, then guild DM, then private user. Events with no target are
// dropped without a record.
func (r *Router) Send(ctx context.Context, ev *event.Event, intent Intent) (*Result, error) {
	t := ev.Target
	switch {
	case t.GroupID != "":
		return r.post(ctx, store.ChannelGroup, t.GroupID, "",
			fmt.Sprintf("/v2/groups/%s/messages", t.GroupID), intent)
	case t.ChannelID != "":
		return r.post(ctx, store.ChannelGuild, t.ChannelID, t.GuildID,
			fmt.Sprintf("/channels/%s/messages", t.ChannelID), intent)
	case t.GuildID != "":
		return r.post(ctx, store.ChannelGuildDM, t.GuildID, t.GuildID,
			fmt.Sprintf("/dms/%s/messages", t.GuildID), intent)
	case t.UserID != "":
		return r.post(ctx, store.ChannelUser, t.UserID, "",
			fmt.Sprintf("/v2/users/%s/messages", t.UserID), intent)
	default:
		logger.WarnCF("delivery", "dropping reply with no target", map[string]interface{}{
			"kind":   ev.Kind.String(),
			"msg_id": ev.MsgID,
		})
		r.publish(bus.EventDeliveryDropped, &Result{Status: "dropped"})
		return nil, ErrNoTarget
	}
}

type sendResponse struct {
	ID        string `json:"id"`
	Timestamp int64  `json:"timestamp"`
}

func (r *Router) post(ctx context.Context, ch store.Channel, targetID, guildID, path string, intent Intent) (*Result, error) {
	res := &Result{
		TraceID:  uuid.NewString(),
		Channel:  ch,
		TargetID: targetID,
		Status:   store.StatusPending,
	}

	recordID, err := r.store.CreateOutbound(ch, targetID, guildID, intent.Content)
	if err != nil {
		return nil, fmt.Errorf("record outbound: %w", err)
	}
	res.RecordID = recordID

	logger.DebugCF("delivery", "sending message", map[string]interface{}{
		"trace_id": res.TraceID,
		"channel":  string(ch),
		"target":   targetID,
	})

	body, err := json.Marshal(intent)
	if err != nil {
		return nil, fmt.Errorf("encode intent: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "QQBot "+r.tokens.Token())
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		res.Status = store.StatusFailed
		res.ErrorInfo = err.Error()
		if markErr := r.store.MarkOutboundFailed(ch, recordID, res.ErrorInfo); markErr != nil {
			logger.ErrorC("delivery", "failed to mark record: "+markErr.Error())
		}
		r.publish(bus.EventDeliveryFailed, res)
		return res, err
	}
	defer resp.Body.Close()

	res.HTTPStatus = resp.StatusCode
	raw, _ := io.ReadAll(resp.Body)

	switch {
	case resp.StatusCode == http.StatusOK:
		var sr sendResponse
		if err := json.Unmarshal(raw, &sr); err != nil {
			logger.WarnC("delivery", "unreadable send response: "+err.Error())
		}
		res.Status = store.StatusSuccess
		res.MessageID = sr.ID
		if err := r.store.MarkOutboundSuccess(ch, recordID, sr.ID); err != nil {
			logger.ErrorC("delivery", "failed to mark record: "+err.Error())
		}
		r.publish(bus.EventDeliverySuccess, res)
		return res, nil

	case resp.StatusCode == http.StatusNoContent:
		// Accepted without a body. The platform assigns no message id,
		// so the record keeps its pending status.
		logger.DebugCF("delivery", "accepted without body", map[string]interface{}{"trace_id": res.TraceID})
		r.publish(bus.EventDeliveryPending, res)
		return res, nil

	case resp.StatusCode == http.StatusCreated || resp.StatusCode == http.StatusAccepted:
		// Asynchronous acceptance. The final outcome arrives out of
		// band; the record keeps its pending status.
		logger.DebugCF("delivery", "accepted asynchronously", map[string]interface{}{
			"trace_id": res.TraceID,
			"detail":   string(raw),
		})
		r.publish(bus.EventDeliveryPending, res)
		return res, nil

	default:
		logger.DebugC("delivery", statusHint(resp.StatusCode))
		res.Status = store.StatusFailed
		res.ErrorInfo = string(raw)
		logger.ErrorCF("delivery", "send failed", map[string]interface{}{
			"trace_id": res.TraceID,
			"status":   resp.StatusCode,
			"detail":   res.ErrorInfo,
		})
		if err := r.store.MarkOutboundFailed(ch, recordID, res.ErrorInfo); err != nil {
			logger.ErrorC("delivery", "failed to mark record: "+err.Error())
		}
		r.publish(bus.EventDeliveryFailed, res)
		return res, fmt.Errorf("delivery: platform returned %d", resp.StatusCode)
	}
}

func (r *Router) publish(typ string, res *Result) {
	if r.events == nil {
		return
	}
	r.events.PublishSystem(bus.SystemEvent{Type: typ, Source: "router", Data: res})
}

func statusHint(code int) string {
	switch {
	case code == http.StatusUnauthorized:
		return "unauthorized, check access token"
	case code == http.StatusNotFound:
		return "target not found, check target id"
	case code == http.StatusMethodNotAllowed:
		return "method not allowed"
	case code == http.StatusTooManyRequests:
		return "rate limited"
	case code >= 500:
		return "platform failed to process the request"
	default:
		return "unexpected platform response"
	}
}

// Webhook front door for the bot platform, plus a small operator API
// with a WebSocket feed of live events.
package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/axt-team/axtgate/pkg/bus"
	"github.com/axt-team/axtgate/pkg/config"
	"github.com/axt-team/axtgate/pkg/event"
	"github.com/axt-team/axtgate/pkg/logger"
	"github.com/axt-team/axtgate/pkg/signature"
	"github.com/axt-team/axtgate/pkg/stats"
	"github.com/axt-team/axtgate/pkg/store"
)

const (
	headerSignature = "X-Signature-Ed25519"
	headerTimestamp = "X-Signature-Timestamp"
	headerHeartbeat = "X-HeartBeat-Check"
)

// Server terminates the platform's webhook callbacks and serves the
// operator API.
type Server struct {
	config     *config.Config
	verifier   *signature.Verifier
	classifier *event.Classifier
	messageBus *bus.MessageBus
	store      *store.Store
	stats      *stats.Collector
	wsHub      *WSHub
	bridge     *EventBridge
	startTime  time.Time
	server     *http.Server
}

func NewServer(
	cfg *config.Config,
	verifier *signature.Verifier,
	classifier *event.Classifier,
	msgBus *bus.MessageBus,
	st *store.Store,
	collector *stats.Collector,
) *Server {
	s := &Server{
		config:     cfg,
		verifier:   verifier,
		classifier: classifier,
		messageBus: msgBus,
		store:      st,
		stats:      collector,
		startTime:  time.Now(),
	}
	s.wsHub = NewWSHub(s)
	s.bridge = NewEventBridge(msgBus, s.wsHub)
	return s
}

// Handler builds the route table. Exposed so tests can drive the server
// through httptest without binding a port.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	// Platform callback
	mux.HandleFunc(s.config.Network.Path, s.handleWebhook)

	// Operator API
	mux.HandleFunc("/api/health", s.handleHealth)
	mux.HandleFunc("/api/heartbeat", s.handleHeartbeat)
	mux.HandleFunc("/api/stats", s.handleStats)

	// WebSocket for live events
	mux.HandleFunc("/api/ws", s.wsHub.HandleWebSocket)

	return mux
}

// Start begins listening on the configured host:port.
func (s *Server) Start(ctx context.Context) error {
	addr := fmt.Sprintf("%s:%d", s.config.Network.Host, s.config.Network.Port)

	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.Handler(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	logger.InfoCF("gateway", "Webhook server starting", map[string]interface{}{
		"addr": addr,
		"path": s.config.Network.Path,
	})

	go s.wsHub.Run(ctx)
	s.bridge.Run(ctx)

	go func() {
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.ErrorCF("gateway", "Server error", map[string]interface{}{
				"error": err.Error(),
			})
		}
	}()

	return nil
}

// Stop gracefully shuts down the server.
func (s *Server) Stop(grace time.Duration) error {
	if s.server == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), grace)
	defer cancel()
	return s.server.Shutdown(ctx)
}

// --- Handlers ---

type ackBody struct {
	EventID string `json:"event_id"`
	Status  int    `json:"status"`
	Message string `json:"message"`
}

type ack struct {
	OpCode int     `json:"op_code"`
	D      ackBody `json:"d"`
}

func (s *Server) handleWebhook(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]interface{}{"message": "POST required", "code": 405})
		return
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]interface{}{"message": "unreadable body", "code": 400})
		return
	}

	sig := r.Header.Get(headerSignature)
	ts := r.Header.Get(headerTimestamp)
	if err := s.verifier.Verify(sig, ts, body); err != nil {
		logger.WarnCF("gateway", "Signature rejected", map[string]interface{}{
			"remote": r.RemoteAddr,
			"error":  err.Error(),
		})
		writeJSON(w, http.StatusUnauthorized, map[string]interface{}{"message": "invalid signature", "code": 401})
		return
	}

	env, err := event.ParseEnvelope(body)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]interface{}{"message": "Invalid JSON", "code": 400})
		return
	}

	ev := s.classifier.Classify(env)
	event.Audit(ev)

	if ev.Kind == event.KindValidation {
		// Challenge uses the request timestamp, not the event payload.
		writeJSON(w, http.StatusOK, s.verifier.Respond(ts, ev.PlainToken))
		return
	}

	s.messageBus.PublishInbound(bus.Inbound{
		Event:    ev,
		TraceID:  uuid.NewString(),
		Received: time.Now(),
	})

	// Ack before any processing happens; workers pick the event up from
	// the bus.
	writeJSON(w, http.StatusOK, ack{
		OpCode: 12,
		D:      ackBody{EventID: ev.MsgID, Status: 0, Message: "success"},
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":         "ok",
		"uptime_seconds": int(time.Since(s.startTime).Seconds()),
		"queue_pending":  s.messageBus.Pending(),
		"timestamp":      time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) handleHeartbeat(w http.ResponseWriter, r *http.Request) {
	if r.Header.Get(headerHeartbeat) != "r u ok?" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"heartbeat": "who goes there?"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"heartbeat": "3Q"})
}

const failedListLimit = 20

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	snap := s.stats.Snapshot()

	failed := make(map[string][]store.OutboundRecord, 4)
	for _, ch := range []store.Channel{store.ChannelGroup, store.ChannelUser, store.ChannelGuild, store.ChannelGuildDM} {
		recs, err := s.store.FailedOutbound(ch, failedListLimit)
		if err != nil {
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
			return
		}
		failed[string(ch)] = recs
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"snapshot": snap,
		"failed":   failed,
	})
}

// --- Helpers ---

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

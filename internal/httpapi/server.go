package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/parlachat/parla/internal/chat"
	"github.com/parlachat/parla/internal/completion"
	"github.com/parlachat/parla/internal/config"
	"github.com/parlachat/parla/internal/observability"
	"github.com/parlachat/parla/internal/protocol"
	"github.com/parlachat/parla/internal/session"
)

// TurnHandler is the only service surface the UI layer talks to.
type TurnHandler interface {
	HandleTurn(ctx context.Context, sessionID, input string, emit chat.SnapshotHandler) (chat.TurnResult, error)
}

type Server struct {
	cfg      config.Config
	store    *session.Store
	chat     TurnHandler
	metrics  *observability.Metrics
	upgrader websocket.Upgrader
	static   http.Handler
}

func New(cfg config.Config, store *session.Store, turns TurnHandler, metrics *observability.Metrics) *Server {
	return &Server{
		cfg:     cfg,
		store:   store,
		chat:    turns,
		metrics: metrics,
		static:  newStaticHandler(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin: func(r *http.Request) bool {
				// Default: only allow browser websocket connections from the
				// same origin, so other sites cannot drive a user's chat
				// session if the service is ever exposed beyond localhost.
				if cfg.AllowAnyOrigin {
					return true
				}
				origin := strings.TrimSpace(r.Header.Get("Origin"))
				if origin == "" {
					// Non-browser clients often omit Origin. Allow them.
					return true
				}
				u, err := url.Parse(origin)
				if err != nil {
					return false
				}
				if u.Scheme != "http" && u.Scheme != "https" {
					return false
				}
				return strings.EqualFold(u.Host, r.Host)
			},
		},
	}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/ui/", http.StatusTemporaryRedirect)
	})
	r.Get("/ui", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/ui/", http.StatusTemporaryRedirect)
	})
	r.Handle("/ui/*", http.StripPrefix("/ui/", s.static))

	r.Get("/healthz", s.handleHealth)
	r.Get("/readyz", s.handleReady)
	r.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
		observability.MetricsHandler().ServeHTTP(w, r)
	})
	r.Get("/v1/perf/latency", s.handlePerfLatency)

	r.Post("/v1/chat/session", s.handleCreateSession)
	r.Get("/v1/chat/ws", s.handleChatWS)

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{
		"status":              "ok",
		"completion_provider": s.cfg.CompletionProvider,
	})
}

func (s *Server) handleReady(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{
		"status":              "ready",
		"completion_provider": s.cfg.CompletionProvider,
	})
}

func (s *Server) handleCreateSession(w http.ResponseWriter, _ *http.Request) {
	id := session.NewID()
	s.store.GetOrCreate(id)
	s.metrics.ActiveSessions.Set(float64(s.store.Count()))
	s.metrics.SessionEvents.WithLabelValues("created").Inc()

	respondJSON(w, http.StatusCreated, map[string]any{
		"session_id":        id,
		"summary_threshold": s.cfg.SummaryThreshold,
	})
}

func (s *Server) handleChatWS(w http.ResponseWriter, r *http.Request) {
	sessionID := strings.TrimSpace(r.URL.Query().Get("session_id"))
	if sessionID == "" {
		respondError(w, http.StatusBadRequest, "missing_session_id", "query parameter session_id is required")
		return
	}
	if s.chat == nil {
		respondError(w, http.StatusNotImplemented, "unavailable", "chat service not configured")
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	s.metrics.SessionEvents.WithLabelValues("ws_connected").Inc()
	defer s.metrics.SessionEvents.WithLabelValues("ws_disconnected").Inc()

	ctx := r.Context()

	conn.SetReadLimit(1 << 20)
	_ = conn.SetReadDeadline(time.Now().Add(10 * time.Minute))
	conn.SetPongHandler(func(string) error {
		_ = conn.SetReadDeadline(time.Now().Add(10 * time.Minute))
		return nil
	})

	if err := s.writeJSON(conn, protocol.SystemEvent{
		Type:      protocol.TypeSystemEvent,
		SessionID: sessionID,
		Code:      "session_ready",
	}); err != nil {
		return
	}

	// Turns run synchronously in the read loop: one cooperative loop per
	// connection, with the snapshot write as the only suspension point. A
	// second turn sent before the first finishes waits its turn.
	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		_ = conn.SetReadDeadline(time.Now().Add(10 * time.Minute))
		if msgType != websocket.TextMessage {
			continue
		}

		parsed, err := protocol.ParseClientMessage(data)
		if err != nil {
			s.metrics.WSMessages.WithLabelValues("inbound", "invalid").Inc()
			_ = s.writeJSON(conn, protocol.ErrorEvent{
				Type:      protocol.TypeErrorEvent,
				SessionID: sessionID,
				Code:      "invalid_client_message",
				Source:    "gateway",
				Retryable: false,
				Detail:    err.Error(),
			})
			continue
		}

		turn, ok := parsed.(protocol.ClientTurn)
		if !ok {
			continue
		}
		s.metrics.WSMessages.WithLabelValues("inbound", string(protocol.TypeClientTurn)).Inc()

		res, err := s.chat.HandleTurn(ctx, turn.SessionID, turn.Text, func(snap chat.Snapshot) error {
			return s.writeJSON(conn, toTurnSnapshot(snap))
		})
		s.metrics.ActiveSessions.Set(float64(s.store.Count()))

		if res.StreamErr != nil {
			// Diagnostics only; the partial reply already went out as a
			// regular snapshot and the turn is done from the UI's view.
			_ = s.writeJSON(conn, protocol.ErrorEvent{
				Type:      protocol.TypeErrorEvent,
				SessionID: turn.SessionID,
				Code:      chat.DiagnosticCode(res.StreamErr),
				Source:    "completion",
				Retryable: completion.IsRetryable(res.StreamErr),
				Detail:    res.StreamErr.Error(),
			})
		}
		if err != nil {
			// Snapshot delivery failed; the connection is gone.
			return
		}
	}
}

func (s *Server) writeJSON(conn *websocket.Conn, msg any) error {
	_ = conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
	if err := conn.WriteJSON(msg); err != nil {
		s.metrics.WSMessages.WithLabelValues("outbound", "write_error").Inc()
		return err
	}
	if t := messageTypeOf(msg); t != "" {
		s.metrics.WSMessages.WithLabelValues("outbound", string(t)).Inc()
	}
	return nil
}

func toTurnSnapshot(snap chat.Snapshot) protocol.TurnSnapshot {
	history := make([]protocol.Turn, 0, len(snap.History))
	for _, t := range snap.History {
		history = append(history, protocol.Turn{Role: string(t.Role), Content: t.Content})
	}
	return protocol.TurnSnapshot{
		Type:       protocol.TypeTurnSnapshot,
		SessionID:  snap.SessionID,
		ClearInput: snap.ClearInput,
		History:    history,
		Final:      snap.Final,
	}
}

func messageTypeOf(v any) protocol.MessageType {
	switch m := v.(type) {
	case protocol.TurnSnapshot:
		return m.Type
	case protocol.SystemEvent:
		return m.Type
	case protocol.ErrorEvent:
		return m.Type
	default:
		return ""
	}
}

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, errorResponse{Error: message, Code: code})
}

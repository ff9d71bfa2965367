package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/ultralan/HakiMeet/pkg/doubaospeech"
)

const (
	readTimeout  = 120 * time.Second
	writeTimeout = 10 * time.Second
	readLimit    = 2 << 20

	connectFailedMessage = "语音服务连接失败，请检查网络后重试"
)

// Server bridges client websockets to realtime dialogues.
//
// Protocol per connection: the first text frame is the init message. The
// bridge then dials upstream, sends the reference context and the greeting,
// and forwards events as JSON. Binary frames are microphone PCM.
type Server struct {
	dialer         Dialer
	prompts        PromptSupplier
	metrics        *Metrics
	upgrader       websocket.Upgrader
	allowAnyOrigin bool
}

// Option configures a Server.
type Option func(*Server)

// WithAllowAnyOrigin disables the same-origin check on websocket upgrades.
func WithAllowAnyOrigin() Option {
	return func(s *Server) {
		s.allowAnyOrigin = true
	}
}

func New(dialer Dialer, prompts PromptSupplier, metrics *Metrics, opts ...Option) *Server {
	s := &Server{
		dialer:  dialer,
		prompts: prompts,
		metrics: metrics,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin:     s.checkOrigin,
	}
	return s
}

func (s *Server) checkOrigin(r *http.Request) bool {
	if s.allowAnyOrigin {
		return true
	}
	origin := strings.TrimSpace(r.Header.Get("Origin"))
	if origin == "" {
		// Non-browser clients often omit Origin.
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
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Get("/healthz", s.handleHealth)
	r.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
		s.metrics.Handler().ServeHTTP(w, r)
	})
	r.Get("/ws/dialogue", s.handleDialogueWS)
	r.Get("/ws/dialogue/{id}", s.handleDialogueWS)
	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{"status": "ok"})
}

func (s *Server) handleDialogueWS(w http.ResponseWriter, r *http.Request) {
	if s.dialer == nil || s.prompts == nil {
		respondError(w, http.StatusNotImplemented, "unavailable", "dialogue bridge not configured")
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	s.metrics.SessionEvents.WithLabelValues("ws_connected").Inc()
	defer s.metrics.SessionEvents.WithLabelValues("ws_disconnected").Inc()

	conn.SetReadLimit(readLimit)
	_ = conn.SetReadDeadline(time.Now().Add(readTimeout))
	conn.SetPongHandler(func(string) error {
		_ = conn.SetReadDeadline(time.Now().Add(readTimeout))
		return nil
	})

	interviewID := chi.URLParam(r, "id")
	if !s.awaitInit(conn, &interviewID) {
		return
	}
	log := slog.With("interview_id", interviewID)

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	prompt, err := s.prompts.Prompt(ctx, interviewID)
	if err != nil {
		log.Error("bridge: prompt failed", "error", err)
		s.writeFinal(conn, errorMessage("面试准备失败"))
		return
	}

	config := doubaospeech.DefaultRealtimeConfig(prompt.SystemRole)
	if prompt.Speaker != "" {
		config.TTS.Speaker = prompt.Speaker
	}
	dlg, err := s.dialer.Dial(ctx, config)
	if err != nil {
		log.Error("bridge: voice connect failed", "error", err)
		s.metrics.SessionEvents.WithLabelValues("connect_failed").Inc()
		s.writeFinal(conn, errorMessage(connectFailedMessage))
		return
	}
	defer dlg.Close()

	s.metrics.ActiveSessions.Inc()
	defer s.metrics.ActiveSessions.Dec()
	log.Info("bridge: dialogue started", "system_role_len", len(prompt.SystemRole), "context_items", len(prompt.Context))

	for _, text := range prompt.Context {
		if err := dlg.SendContext(ctx, text); err != nil {
			log.Warn("bridge: send context failed", "error", err)
		}
	}
	if prompt.Greeting != "" {
		if err := dlg.SayHello(ctx, prompt.Greeting); err != nil {
			log.Warn("bridge: say hello failed", "error", err)
		}
	}

	outbound := make(chan ServerMessage, 256)

	forwardDone := make(chan struct{})
	go func() {
		defer close(forwardDone)
		defer close(outbound)
		s.forwardEvents(ctx, dlg, outbound, log)
	}()

	// replies carries errors about client frames; it is never closed.
	replies := make(chan ServerMessage, 16)

	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		for {
			var msg ServerMessage
			select {
			case m, ok := <-outbound:
				if !ok {
					// The dialogue ended; unblock the read loop.
					s.writeClose(conn)
					conn.Close()
					return
				}
				msg = m
			case msg = <-replies:
			}
			_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := conn.WriteJSON(msg); err != nil {
				cancel()
				conn.Close()
				return
			}
			s.metrics.WSMessages.WithLabelValues("outbound", string(msg.Type)).Inc()
		}
	}()

	s.readLoop(ctx, conn, dlg, replies, log)

	dlg.Close()
	<-forwardDone
	<-writerDone
	cancel()
	log.Info("bridge: dialogue finished")
}

// awaitInit reads the init frame. Any text frame is accepted; an interview
// id in it is used when the URL carries none.
func (s *Server) awaitInit(conn *websocket.Conn, interviewID *string) bool {
	msgType, data, err := conn.ReadMessage()
	if err != nil {
		return false
	}
	if msgType != websocket.TextMessage {
		s.writeFinal(conn, errorMessage("expected init message"))
		return false
	}
	s.metrics.WSMessages.WithLabelValues("inbound", string(TypeInit)).Inc()

	msg, err := parseInit(data)
	if err != nil {
		slog.Debug("bridge: init message not parsed", "error", err)
	}
	if *interviewID == "" {
		*interviewID = msg.InterviewID
	}
	if *interviewID == "" {
		*interviewID = uuid.NewString()
	}
	return true
}

func (s *Server) forwardEvents(ctx context.Context, dlg Dialogue, outbound chan<- ServerMessage, log *slog.Logger) {
	for ev, err := range dlg.Events() {
		if err != nil {
			log.Error("bridge: dialogue failed", "error", err)
			msg := errorMessage(connectFailedMessage)
			var ce *doubaospeech.ConnectError
			if !errors.As(err, &ce) {
				msg = errorMessage(err.Error())
			}
			select {
			case outbound <- msg:
			case <-ctx.Done():
			}
			return
		}

		msg, ok := eventMessage(ev)
		if !ok {
			continue
		}
		s.metrics.SessionEvents.WithLabelValues(string(ev.Type)).Inc()
		select {
		case outbound <- msg:
		case <-ctx.Done():
			return
		}
		if ev.Type == doubaospeech.RealtimeEventSessionEnded {
			return
		}
	}
}

func (s *Server) readLoop(ctx context.Context, conn *websocket.Conn, dlg Dialogue, replies chan<- ServerMessage, log *slog.Logger) {
	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) && ctx.Err() == nil {
				log.Debug("bridge: client read ended", "error", err)
			}
			return
		}

		if msgType == websocket.BinaryMessage {
			s.metrics.WSMessages.WithLabelValues("inbound", "audio").Inc()
			if err := dlg.SendAudio(ctx, data); errors.Is(err, doubaospeech.ErrSessionClosed) {
				return
			}
			continue
		}

		parsed, err := ParseClientMessage(data)
		if err != nil {
			select {
			case replies <- errorMessage(err.Error()):
			default:
				// Drop if the reply queue is saturated.
			}
			continue
		}

		switch msg := parsed.(type) {
		case ControlMessage:
			s.metrics.WSMessages.WithLabelValues("inbound", string(TypeControl)).Inc()
			log.Info("bridge: control", "action", msg.Action)
			if msg.Action == ActionEnd {
				return
			}
		case ContextMessage:
			s.metrics.WSMessages.WithLabelValues("inbound", string(TypeContext)).Inc()
			if err := dlg.SendContext(ctx, msg.Text); err != nil {
				log.Warn("bridge: send context failed", "error", err)
			}
		}
	}
}

// writeFinal writes one message before the connection is dropped. Only used
// before the writer goroutine starts.
func (s *Server) writeFinal(conn *websocket.Conn, msg ServerMessage) {
	_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	if err := conn.WriteJSON(msg); err == nil {
		s.metrics.WSMessages.WithLabelValues("outbound", string(msg.Type)).Inc()
	}
	s.writeClose(conn)
}

func (s *Server) writeClose(conn *websocket.Conn) {
	_ = conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second))
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

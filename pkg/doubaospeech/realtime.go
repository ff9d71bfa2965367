package doubaospeech

import (
	"context"
	"iter"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
)

// RealtimeService 端到端实时语音大模型
type RealtimeService struct {
	client *Client
}

func newRealtimeService(c *Client) *RealtimeService {
	return &RealtimeService{client: c}
}

// Connect opens a dialogue session.
//
// The transport is opened up to the configured number of attempts, then the
// StartConnection and StartSession handshakes run. On success a receive loop
// owns the connection until the session finishes. A nil config uses
// DefaultRealtimeConfig with an empty system role.
func (s *RealtimeService) Connect(ctx context.Context, config *RealtimeConfig) (*RealtimeSession, error) {
	if config == nil {
		config = DefaultRealtimeConfig("")
	}
	cfg := *config

	loopCtx, cancel := context.WithCancel(context.Background())
	session := &RealtimeSession{
		client:     s.client,
		config:     &cfg,
		metrics:    s.client.config.metrics,
		state:      StateDisconnected,
		events:     make(chan eventOrError, 100),
		finishAcks: make(chan *message, 16),
		closeCh:    make(chan struct{}),
		loopDone:   make(chan struct{}),
		loopCtx:    loopCtx,
		cancel:     cancel,
	}

	conn, sessionID, dialogID, err := session.open(ctx)
	if err != nil {
		cancel()
		session.forceState(StateClosed)
		return nil, err
	}

	session.mu.Lock()
	session.conn = conn
	session.sessionID = sessionID
	session.dialogID = dialogID
	session.state = StateActive
	session.mu.Unlock()

	slog.Info("doubao: realtime session started", "session_id", sessionID, "dialog_id", dialogID)

	go session.receiveLoop()

	return session, nil
}

// eventOrError carries either a translated event or a terminal error.
type eventOrError struct {
	event *RealtimeEvent
	err   error
}

// RealtimeSession is one logical dialogue. It survives transport loss by
// opening a fresh server session under a new id; the event stream continues
// without a break.
type RealtimeSession struct {
	client  *Client
	config  *RealtimeConfig
	metrics RealtimeMetrics

	mu        sync.Mutex
	state     SessionState
	conn      *websocket.Conn
	sessionID string
	dialogID  string

	writeMu sync.Mutex

	audioSent    atomic.Uint64
	audioDropped atomic.Uint64
	reconnects   atomic.Uint64
	decodeErrors atomic.Uint64
	serverErrors atomic.Uint64

	// receive loop only
	translator realtimeTranslator

	events     chan eventOrError
	finishAcks chan *message
	closeCh    chan struct{}
	closeOnce  sync.Once
	loopDone   chan struct{}
	loopCtx    context.Context
	cancel     context.CancelFunc
}

// SendAudio sends one PCM chunk (16kHz s16le mono by default).
//
// While the session is reconnecting the chunk is dropped and counted, and
// nil is returned. After Close it returns ErrSessionClosed.
func (s *RealtimeSession) SendAudio(ctx context.Context, pcm []byte) error {
	s.mu.Lock()
	state, conn, sessionID := s.state, s.conn, s.sessionID
	s.mu.Unlock()

	if state != StateActive {
		s.dropAudio()
		if state.terminating() {
			return ErrSessionClosed
		}
		return nil
	}

	data, err := encodeAudio(sessionID, pcm)
	if err != nil {
		return err
	}
	if err := s.write(ctx, conn, data); err != nil {
		// The receive loop sees the broken transport and reconnects.
		s.dropAudio()
		slog.Debug("doubao: audio write failed", "session_id", sessionID, "error", err)
		return nil
	}

	n := s.audioSent.Add(1)
	s.metrics.AudioFrameSent()
	if n%50 == 1 {
		slog.Info("doubao: audio sent", "session_id", sessionID, "frames", n, "bytes", len(pcm))
	}
	return nil
}

func (s *RealtimeSession) dropAudio() {
	s.audioDropped.Add(1)
	s.metrics.AudioFrameDropped()
}

// SayHello asks the model to speak text as an opening line.
func (s *RealtimeSession) SayHello(ctx context.Context, text string) error {
	return s.sendControl(ctx, EventSayHello, map[string]string{"content": text})
}

// SendContext supplies reference text the model can draw on for the rest
// of the dialogue. It may be called any number of times.
func (s *RealtimeSession) SendContext(ctx context.Context, text string) error {
	return s.sendControl(ctx, EventChatRAGText, map[string]string{"external_rag": Sanitize(text)})
}

func (s *RealtimeSession) sendControl(ctx context.Context, event EventID, payload any) error {
	s.mu.Lock()
	state, conn, sessionID := s.state, s.conn, s.sessionID
	s.mu.Unlock()

	switch {
	case state.terminating():
		return ErrSessionClosed
	case state != StateActive:
		return ErrReconnecting
	}

	data, err := encodeControl(event, sessionID, payload)
	if err != nil {
		return err
	}
	if err := s.write(ctx, conn, data); err != nil {
		return wrapError(err, "send "+event.String())
	}
	slog.Debug("doubao: sent", "event", event, "session_id", sessionID)
	return nil
}

// Events returns the dialogue event stream.
//
// The stream ends after a session_ended event, after a terminal error
// (yielded as a non-nil error), or when the session is closed.
func (s *RealtimeSession) Events() iter.Seq2[*RealtimeEvent, error] {
	return func(yield func(*RealtimeEvent, error) bool) {
		for {
			select {
			case item, ok := <-s.events:
				if !ok {
					return
				}
				if item.err != nil {
					yield(nil, item.err)
					return
				}
				if !yield(item.event, nil) {
					return
				}
			case <-s.closeCh:
				return
			}
		}
	}
}

// SessionID returns the id of the current server session. It changes each
// time a reconnect completes.
func (s *RealtimeSession) SessionID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sessionID
}

// DialogID returns the dialog id reported by SessionStarted, if any.
func (s *RealtimeSession) DialogID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dialogID
}

// State returns the current lifecycle state.
func (s *RealtimeSession) State() SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Stats returns a snapshot of the session counters.
func (s *RealtimeSession) Stats() RealtimeStats {
	return RealtimeStats{
		AudioFramesSent:    s.audioSent.Load(),
		AudioFramesDropped: s.audioDropped.Load(),
		Reconnects:         s.reconnects.Load(),
		DecodeErrors:       s.decodeErrors.Load(),
		ServerErrors:       s.serverErrors.Load(),
	}
}

// Finish ends the dialogue.
//
// When the session is active it sends FinishSession, waits a bounded number
// of replies for SessionFinished or SessionFailed, then sends
// FinishConnection and waits for one more reply. Errors in this exchange are
// logged and swallowed. The transport is always closed. Finish is idempotent.
func (s *RealtimeSession) Finish(ctx context.Context) error {
	s.mu.Lock()
	prev := s.state
	if !prev.terminating() {
		s.state = StateClosing
	}
	conn, sessionID := s.conn, s.sessionID
	s.mu.Unlock()

	s.closeOnce.Do(func() { close(s.closeCh) })
	if prev.terminating() {
		s.cancel()
		return nil
	}

	if prev == StateActive {
		s.finishGracefully(ctx, conn, sessionID)
	}

	s.cancel()
	if conn != nil {
		conn.Close()
	}

	select {
	case <-s.loopDone:
	case <-time.After(s.client.config.finishTimeout):
		slog.Debug("doubao: receive loop did not exit in time", "session_id", sessionID)
	}

	s.forceState(StateClosed)
	slog.Info("doubao: realtime session closed", "session_id", sessionID, "reconnects", s.reconnects.Load())
	return nil
}

// Close is Finish with a background context.
func (s *RealtimeSession) Close() error {
	return s.Finish(context.Background())
}

func (s *RealtimeSession) finishGracefully(ctx context.Context, conn *websocket.Conn, sessionID string) {
	if err := s.writeControl(ctx, conn, EventFinishSession, sessionID, struct{}{}); err != nil {
		slog.Debug("doubao: send FinishSession failed", "session_id", sessionID, "error", err)
		return
	}
	for range maxFinishWaitAttempts {
		msg, ok := s.awaitFinishReply(ctx)
		if !ok {
			break
		}
		if msg.isError() || msg.event == EventSessionFinished || msg.event == EventSessionFailed {
			break
		}
	}

	if err := s.writeControl(ctx, conn, EventFinishConnection, "", struct{}{}); err != nil {
		slog.Debug("doubao: send FinishConnection failed", "session_id", sessionID, "error", err)
		return
	}
	s.awaitFinishReply(ctx)
}

func (s *RealtimeSession) awaitFinishReply(ctx context.Context) (*message, bool) {
	timer := time.NewTimer(s.client.config.finishTimeout)
	defer timer.Stop()
	select {
	case msg := <-s.finishAcks:
		return msg, true
	case <-timer.C:
		slog.Debug("doubao: finish reply timed out")
	case <-s.loopDone:
	case <-ctx.Done():
	}
	return nil, false
}

// transition moves to state unless the session is closing or closed.
func (s *RealtimeSession) transition(state SessionState) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state.terminating() {
		return false
	}
	s.state = state
	return true
}

func (s *RealtimeSession) forceState(state SessionState) {
	s.mu.Lock()
	s.state = state
	s.mu.Unlock()
}

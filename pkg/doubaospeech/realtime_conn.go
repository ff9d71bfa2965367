package doubaospeech

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// maxConsecutiveDecodeErrors is the number of malformed frames in a row
// treated as a broken transport.
const maxConsecutiveDecodeErrors = 16

// open dials and runs the protocol handshake, retrying with a fixed backoff.
// Each attempt uses a fresh session id.
func (s *RealtimeSession) open(ctx context.Context) (*websocket.Conn, string, string, error) {
	cfg := s.client.config

	var lastErr error
	for attempt := 1; attempt <= cfg.retries; attempt++ {
		if attempt > 1 {
			select {
			case <-time.After(cfg.retryBackoff):
			case <-ctx.Done():
				return nil, "", "", s.openAborted(ctx, attempt-1, lastErr)
			}
		}

		if !s.transition(StateConnecting) {
			return nil, "", "", ErrSessionClosed
		}
		conn, err := s.dial(ctx)
		if err != nil {
			lastErr = err
			slog.Warn("doubao: dial failed", "attempt", attempt, "max", cfg.retries, "error", err)
			if apiErr, ok := AsError(err); ok && !apiErr.Retryable() {
				return nil, "", "", &ConnectError{Attempts: attempt, Err: err}
			}
			if ctx.Err() != nil {
				return nil, "", "", s.openAborted(ctx, attempt, lastErr)
			}
			continue
		}

		if !s.transition(StateHandshaking) {
			conn.Close()
			return nil, "", "", ErrSessionClosed
		}
		sessionID := uuid.NewString()
		dialogID, err := s.handshake(ctx, conn, sessionID)
		if err != nil {
			conn.Close()
			lastErr = err
			slog.Warn("doubao: handshake failed", "attempt", attempt, "max", cfg.retries, "error", err)
			if ctx.Err() != nil {
				return nil, "", "", s.openAborted(ctx, attempt, lastErr)
			}
			continue
		}
		return conn, sessionID, dialogID, nil
	}
	return nil, "", "", &ConnectError{Attempts: cfg.retries, Err: lastErr}
}

func (s *RealtimeSession) openAborted(ctx context.Context, attempts int, lastErr error) error {
	if s.State().terminating() {
		return ErrSessionClosed
	}
	if lastErr == nil {
		lastErr = ctx.Err()
	}
	return &ConnectError{Attempts: attempts, Err: lastErr}
}

func (s *RealtimeSession) dial(ctx context.Context) (*websocket.Conn, error) {
	cfg := s.client.config
	connectID := uuid.NewString()
	headers := s.client.getV2WSHeaders(cfg.resourceID, connectID)

	dialer := websocket.Dialer{
		Proxy:            http.ProxyFromEnvironment,
		HandshakeTimeout: cfg.timeout,
	}
	conn, resp, err := dialer.DialContext(ctx, s.client.realtimeURL(), headers)
	if err != nil {
		if resp != nil {
			body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
			resp.Body.Close()
			msg := string(body)
			if msg == "" {
				msg = resp.Status
			}
			return nil, &Error{
				Code:       resp.StatusCode,
				Message:    msg,
				LogID:      resp.Header.Get("X-Tt-Logid"),
				HTTPStatus: resp.StatusCode,
			}
		}
		return nil, wrapError(err, "dial websocket")
	}
	if resp != nil {
		slog.Debug("doubao: websocket connected", "connect_id", connectID, "log_id", resp.Header.Get("X-Tt-Logid"))
	}
	return conn, nil
}

// handshake runs StartConnection and StartSession on a fresh transport and
// returns the dialog id reported by the server.
func (s *RealtimeSession) handshake(ctx context.Context, conn *websocket.Conn, sessionID string) (string, error) {
	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	if err := conn.SetReadDeadline(time.Now().Add(s.client.config.timeout)); err != nil {
		return "", wrapError(err, "set read deadline")
	}

	if err := s.writeControl(ctx, conn, EventStartConnection, "", struct{}{}); err != nil {
		return "", err
	}
	if _, err := expectEvent(conn, EventConnectionStarted, EventConnectionFailed); err != nil {
		return "", wrapError(err, "start connection")
	}

	if err := s.writeControl(ctx, conn, EventStartSession, sessionID, s.config.startSessionPayload()); err != nil {
		return "", err
	}
	msg, err := expectEvent(conn, EventSessionStarted, EventSessionFailed)
	if err != nil {
		return "", wrapError(err, "start session")
	}

	if err := conn.SetReadDeadline(time.Time{}); err != nil {
		return "", wrapError(err, "clear read deadline")
	}

	var started struct {
		DialogID string `json:"dialog_id"`
	}
	if len(msg.payload) > 0 {
		_ = json.Unmarshal(msg.payload, &started)
	}
	return started.DialogID, nil
}

// expectEvent reads until ok arrives. fail and error frames abort; other
// frames are skipped.
func expectEvent(conn *websocket.Conn, ok, fail EventID) (*message, error) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return nil, wrapError(err, "read "+ok.String())
		}
		msg, err := decode(data)
		if err != nil {
			return nil, err
		}
		switch {
		case msg.isError():
			return nil, serverError(msg.errorCode, msg.payload)
		case msg.event == ok:
			return msg, nil
		case msg.event == fail:
			e := serverError(0, msg.payload)
			e.Message = fail.String() + ": " + e.Message
			return nil, e
		default:
			slog.Debug("doubao: skip frame during handshake", "event", msg.event, "want", ok)
		}
	}
}

func (s *RealtimeSession) writeControl(ctx context.Context, conn *websocket.Conn, event EventID, sessionID string, payload any) error {
	data, err := encodeControl(event, sessionID, payload)
	if err != nil {
		return err
	}
	if err := s.write(ctx, conn, data); err != nil {
		return wrapError(err, "send "+event.String())
	}
	return nil
}

// write sends one binary frame. Writes are serialized and carry a deadline.
func (s *RealtimeSession) write(ctx context.Context, conn *websocket.Conn, data []byte) error {
	if conn == nil {
		return ErrSessionClosed
	}
	deadline := time.Now().Add(s.client.config.writeTimeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if err := conn.SetWriteDeadline(deadline); err != nil {
		return err
	}
	return conn.WriteMessage(websocket.BinaryMessage, data)
}

func (s *RealtimeSession) currentConn() *websocket.Conn {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn
}

// ================== 接收循环 ==================

// receiveLoop owns reads on the current transport. It decodes and
// translates frames, and replaces the transport when it fails.
func (s *RealtimeSession) receiveLoop() {
	defer close(s.loopDone)
	defer close(s.events)

	decodeFailures := 0
	for {
		conn := s.currentConn()
		_, data, err := conn.ReadMessage()
		if err != nil {
			if s.State().terminating() || s.loopCtx.Err() != nil {
				return
			}
			if websocket.IsCloseError(err, websocket.CloseNormalClosure) {
				slog.Info("doubao: server closed connection", "session_id", s.SessionID())
				s.emit(eventOrError{event: &RealtimeEvent{Type: RealtimeEventSessionEnded}})
				s.endByServer(false)
				return
			}
			slog.Warn("doubao: connection lost", "session_id", s.SessionID(), "error", err)
			if !s.reconnectOrFail(err) {
				return
			}
			decodeFailures = 0
			continue
		}

		msg, err := decode(data)
		if err != nil {
			decodeFailures++
			s.decodeErrors.Add(1)
			s.metrics.FrameDropped()
			slog.Warn("doubao: drop malformed frame", "error", err, "consecutive", decodeFailures)
			if decodeFailures >= maxConsecutiveDecodeErrors {
				if !s.reconnectOrFail(fmt.Errorf("%d consecutive malformed frames: %w", decodeFailures, err)) {
					return
				}
				decodeFailures = 0
			}
			continue
		}
		decodeFailures = 0

		if s.State() == StateClosing {
			select {
			case s.finishAcks <- msg:
			default:
			}
			continue
		}

		if !msg.isAudioOnly() && slog.Default().Enabled(s.loopCtx, slog.LevelDebug) {
			slog.Debug("doubao: recv", "event", msg.event, "payload", string(msg.payload))
		}

		event := s.translator.translate(msg)
		if event == nil {
			continue
		}
		if event.Type == RealtimeEventError {
			s.serverErrors.Add(1)
			s.metrics.ServerError(event.Error.Code)
			slog.Error("doubao: server error", "session_id", s.SessionID(), "code", event.Error.Code, "message", event.Error.Message)
		}
		s.emit(eventOrError{event: event})

		switch {
		case event.Type == RealtimeEventSessionEnded:
			s.endByServer(true)
			return
		case msg.isError():
			if !s.reconnectOrFail(event.Error) {
				return
			}
		}
	}
}

// emit delivers an item to Events unless the session is being closed.
func (s *RealtimeSession) emit(item eventOrError) bool {
	select {
	case s.events <- item:
		return true
	case <-s.closeCh:
		return false
	}
}

// reconnectOrFail reconnects after cause. It returns false when the loop must exit;
// on exhaustion the terminal error has already been emitted.
func (s *RealtimeSession) reconnectOrFail(cause error) bool {
	err := s.reconnect(cause)
	if err == nil {
		return true
	}
	if errors.Is(err, ErrSessionClosed) || s.loopCtx.Err() != nil {
		return false
	}
	slog.Error("doubao: reconnect failed", "error", err)
	s.forceState(StateClosed)
	s.emit(eventOrError{err: err})
	return false
}

// reconnect replaces the transport with a fresh server session using the
// original configuration. Partial transcripts are discarded.
func (s *RealtimeSession) reconnect(cause error) error {
	s.mu.Lock()
	if s.state.terminating() {
		s.mu.Unlock()
		return ErrSessionClosed
	}
	s.state = StateReconnecting
	old, oldID := s.conn, s.sessionID
	s.mu.Unlock()

	slog.Warn("doubao: reconnecting", "session_id", oldID, "cause", cause)
	if old != nil {
		old.Close()
	}
	s.translator.reset()

	conn, sessionID, dialogID, err := s.open(s.loopCtx)
	if err != nil {
		return err
	}

	s.mu.Lock()
	if s.state.terminating() {
		s.mu.Unlock()
		conn.Close()
		return ErrSessionClosed
	}
	s.conn = conn
	s.sessionID = sessionID
	s.dialogID = dialogID
	s.state = StateActive
	s.mu.Unlock()

	s.audioSent.Store(0)
	s.reconnects.Add(1)
	s.metrics.Reconnected()
	slog.Info("doubao: reconnected", "old_session_id", oldID, "session_id", sessionID, "reconnects", s.reconnects.Load())
	return nil
}

// endByServer tears down after the server ended the session.
func (s *RealtimeSession) endByServer(sayGoodbye bool) {
	s.mu.Lock()
	if s.state.terminating() {
		s.mu.Unlock()
		return
	}
	s.state = StateClosed
	conn := s.conn
	s.mu.Unlock()

	if sayGoodbye {
		if err := s.writeControl(s.loopCtx, conn, EventFinishConnection, "", struct{}{}); err != nil {
			slog.Debug("doubao: send FinishConnection failed", "error", err)
		}
	}
	conn.Close()
}

package doubaospeech

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrSessionClosed is returned by session operations after Close or Finish.
	ErrSessionClosed = errors.New("doubaospeech: session closed")

	// ErrReconnecting is returned by control sends while the session is
	// re-establishing its connection.
	ErrReconnecting = errors.New("doubaospeech: session reconnecting")
)

// Error 豆包语音服务错误
type Error struct {
	// Code 业务错误码
	Code int `json:"code"`

	// Message 错误消息
	Message string `json:"message"`

	// LogID 日志 ID（从响应头 X-Tt-Logid 获取）
	LogID string `json:"log_id,omitempty"`

	// HTTPStatus 握手阶段的 HTTP 状态码
	HTTPStatus int `json:"-"`
}

func (e *Error) Error() string {
	if e.HTTPStatus != 0 {
		return fmt.Sprintf("doubaospeech: %s (code=%d, log_id=%s, http_status=%d)",
			e.Message, e.Code, e.LogID, e.HTTPStatus)
	}
	return fmt.Sprintf("doubaospeech: %s (code=%d)", e.Message, e.Code)
}

// IsAuthError 是否为认证错误
func (e *Error) IsAuthError() bool {
	return e.HTTPStatus == http.StatusUnauthorized || e.HTTPStatus == http.StatusForbidden
}

// IsRateLimit 是否为限流错误
func (e *Error) IsRateLimit() bool {
	return e.HTTPStatus == http.StatusTooManyRequests
}

// Retryable reports whether dialing again may succeed.
func (e *Error) Retryable() bool {
	return !e.IsAuthError()
}

// AsError 尝试将 error 转换为 *Error
func AsError(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// ConnectError is returned when the connection or handshake could not be
// established after all attempts.
type ConnectError struct {
	Attempts int
	Err      error
}

func (e *ConnectError) Error() string {
	return fmt.Sprintf("doubaospeech: connect failed after %d attempt(s): %v", e.Attempts, e.Err)
}

func (e *ConnectError) Unwrap() error { return e.Err }

// DecodeError reports a malformed inbound frame.
type DecodeError struct {
	Event EventID
	Err   error
}

func (e *DecodeError) Error() string {
	if e.Event != 0 {
		return fmt.Sprintf("doubaospeech: decode %s: %v", e.Event, e.Err)
	}
	return fmt.Sprintf("doubaospeech: decode: %v", e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// EncodeError reports an outbound frame that could not be serialized.
type EncodeError struct {
	Event EventID
	Err   error
}

func (e *EncodeError) Error() string {
	return fmt.Sprintf("doubaospeech: encode %s: %v", e.Event, e.Err)
}

func (e *EncodeError) Unwrap() error { return e.Err }

// serverError builds an *Error from an error frame.
//
// The message comes from the payload "error" field, then the raw payload
// text, then a generic fallback.
func serverError(code uint32, payload []byte) *Error {
	msg := ""
	if len(payload) > 0 {
		var body struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(payload, &body) == nil && body.Error != "" {
			msg = body.Error
		} else {
			msg = string(payload)
		}
	}
	if msg == "" {
		msg = "voice service error"
	}
	return &Error{Code: int(code), Message: msg}
}

// wrapError 包装错误
func wrapError(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

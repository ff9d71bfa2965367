package bridge

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/ultralan/HakiMeet/pkg/doubaospeech"
)

// MessageType identifies websocket payload variants.
type MessageType string

const (
	// client → bridge
	TypeInit    MessageType = "init"
	TypeControl MessageType = "control"
	TypeContext MessageType = "context"

	// bridge → client
	TypeAIAudio      MessageType = "ai_audio"
	TypeTranscript   MessageType = "transcript"
	TypeInterrupted  MessageType = "interrupted"
	TypeError        MessageType = "error"
	TypeSessionEnded MessageType = "session_ended"
)

// ActionEnd ends the dialogue.
const ActionEnd = "end"

var ErrUnsupportedType = errors.New("unsupported message type")

// Envelope is the shape of every text frame in both directions.
type Envelope struct {
	Type MessageType     `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

type InitMessage struct {
	InterviewID string `json:"interview_id,omitempty"`
}

type ControlMessage struct {
	Action string `json:"action"`
}

type ContextMessage struct {
	Text string `json:"text"`
}

// ServerMessage is written to the client as JSON.
type ServerMessage struct {
	Type MessageType `json:"type"`
	Data any         `json:"data"`
}

type AudioData struct {
	Audio string `json:"audio"`
}

type TranscriptData struct {
	Speaker doubaospeech.Speaker `json:"speaker"`
	Text    string               `json:"text"`
}

type ErrorData struct {
	Message string `json:"message"`
	Code    int    `json:"code,omitempty"`
}

// ParseClientMessage parses a text frame sent after the init message.
// It returns ControlMessage or ContextMessage.
func ParseClientMessage(raw []byte) (any, error) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("invalid envelope: %w", err)
	}

	switch env.Type {
	case TypeControl:
		var msg ControlMessage
		if err := unmarshalData(env.Data, &msg); err != nil {
			return nil, err
		}
		if msg.Action == "" {
			return nil, errors.New("invalid control: missing action")
		}
		return msg, nil
	case TypeContext:
		var msg ContextMessage
		if err := unmarshalData(env.Data, &msg); err != nil {
			return nil, err
		}
		if msg.Text == "" {
			return nil, errors.New("invalid context: empty text")
		}
		return msg, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedType, env.Type)
	}
}

// parseInit reads the optional interview id from the first frame. Any text
// frame is a valid init message; the id is empty when it carries none.
func parseInit(raw []byte) (InitMessage, error) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return InitMessage{}, fmt.Errorf("invalid envelope: %w", err)
	}
	var msg InitMessage
	if env.Type != TypeInit {
		return msg, nil
	}
	err := unmarshalData(env.Data, &msg)
	return msg, err
}

func unmarshalData(data json.RawMessage, v any) error {
	if len(data) == 0 {
		return errors.New("missing data")
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("invalid data: %w", err)
	}
	return nil
}

// eventMessage converts a dialogue event into its client message.
func eventMessage(ev *doubaospeech.RealtimeEvent) (ServerMessage, bool) {
	switch ev.Type {
	case doubaospeech.RealtimeEventAudio:
		return ServerMessage{
			Type: TypeAIAudio,
			Data: AudioData{Audio: base64.StdEncoding.EncodeToString(ev.Audio)},
		}, true
	case doubaospeech.RealtimeEventTranscript:
		return ServerMessage{
			Type: TypeTranscript,
			Data: TranscriptData{Speaker: ev.Speaker, Text: ev.Text},
		}, true
	case doubaospeech.RealtimeEventInterrupted:
		return ServerMessage{Type: TypeInterrupted, Data: struct{}{}}, true
	case doubaospeech.RealtimeEventSessionEnded:
		return ServerMessage{Type: TypeSessionEnded, Data: struct{}{}}, true
	case doubaospeech.RealtimeEventError:
		data := ErrorData{Message: "voice service error"}
		if ev.Error != nil {
			data = ErrorData{Message: ev.Error.Message, Code: ev.Error.Code}
		}
		return ServerMessage{Type: TypeError, Data: data}, true
	default:
		return ServerMessage{}, false
	}
}

func errorMessage(message string) ServerMessage {
	return ServerMessage{Type: TypeError, Data: ErrorData{Message: message}}
}

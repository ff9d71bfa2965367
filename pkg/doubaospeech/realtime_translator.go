package doubaospeech

import (
	"encoding/json"
	"log/slog"
	"strings"
)

// realtimeTranslator turns protocol frames into dialogue events.
//
// Streamed model text is buffered until ChatEnded; recognized user speech is
// kept until ASREnded. Only complete utterances leave the translator.
type realtimeTranslator struct {
	aiText   []string
	userText string
}

// chatResponse 550 ChatResponse
type chatResponse struct {
	Content string `json:"content"`
}

// asrResponse 451 ASRResponse
type asrResponse struct {
	Extra struct {
		OriginText string `json:"origin_text"`
	} `json:"extra"`
	Results []struct {
		Text string `json:"text"`
	} `json:"results"`
}

func (r *asrResponse) text() string {
	if r.Extra.OriginText != "" {
		return r.Extra.OriginText
	}
	if len(r.Results) > 0 {
		return r.Results[0].Text
	}
	return ""
}

// translate returns the event for msg, or nil when msg only updates the
// buffers or carries nothing of interest.
func (t *realtimeTranslator) translate(msg *message) *RealtimeEvent {
	if msg.isError() {
		return &RealtimeEvent{Type: RealtimeEventError, Error: serverError(msg.errorCode, msg.payload)}
	}

	if msg.msgType == msgTypeAudioOnlyServer {
		if len(msg.payload) == 0 {
			return nil
		}
		return &RealtimeEvent{Type: RealtimeEventAudio, Audio: msg.payload}
	}

	switch msg.event {
	case EventChatResponse:
		var resp chatResponse
		if err := json.Unmarshal(msg.payload, &resp); err != nil {
			slog.Warn("doubao: bad ChatResponse payload", "error", err)
			return nil
		}
		t.aiText = append(t.aiText, resp.Content)
		return nil

	case EventChatEnded:
		text := strings.Join(t.aiText, "")
		t.aiText = t.aiText[:0]
		if text == "" {
			return nil
		}
		slog.Info("doubao: ai reply", "chars", len([]rune(text)))
		return &RealtimeEvent{Type: RealtimeEventTranscript, Speaker: SpeakerAI, Text: text}

	case EventASRResponse:
		var resp asrResponse
		if err := json.Unmarshal(msg.payload, &resp); err != nil {
			slog.Warn("doubao: bad ASRResponse payload", "error", err)
			return nil
		}
		if text := resp.text(); text != "" {
			t.userText = text
		}
		return nil

	case EventASREnded:
		text := t.userText
		t.userText = ""
		if text == "" {
			return nil
		}
		slog.Info("doubao: user utterance", "chars", len([]rune(text)))
		return &RealtimeEvent{Type: RealtimeEventTranscript, Speaker: SpeakerUser, Text: text}

	case EventASRInfo:
		// 用户开口，打断当前回复
		t.aiText = t.aiText[:0]
		return &RealtimeEvent{Type: RealtimeEventInterrupted}

	case EventSessionFinished, EventSessionFailed:
		return &RealtimeEvent{Type: RealtimeEventSessionEnded}

	case EventDialogCommonError:
		return &RealtimeEvent{Type: RealtimeEventError, Error: dialogError(msg.payload)}

	default:
		slog.Debug("doubao: ignore event", "event", msg.event)
		return nil
	}
}

// dialogError parses a DialogCommonError payload.
func dialogError(payload []byte) *Error {
	var body struct {
		StatusCode string `json:"status_code"`
		Message    string `json:"message"`
	}
	if err := json.Unmarshal(payload, &body); err != nil || body.Message == "" {
		return serverError(0, payload)
	}
	e := &Error{Message: body.Message}
	if body.StatusCode != "" {
		e.Message = body.StatusCode + ": " + body.Message
	}
	return e
}

// reset discards partial utterances.
func (t *realtimeTranslator) reset() {
	t.aiText = t.aiText[:0]
	t.userText = ""
}

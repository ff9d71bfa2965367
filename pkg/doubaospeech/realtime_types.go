package doubaospeech

import "fmt"

// ================== 事件 ID ==================

// EventID identifies a frame in the realtime dialogue protocol.
type EventID int32

// Client events.
const (
	EventStartConnection  EventID = 1
	EventFinishConnection EventID = 2
	EventStartSession     EventID = 100
	EventFinishSession    EventID = 102
	EventTaskRequest      EventID = 200
	EventSayHello         EventID = 300
	EventChatRAGText      EventID = 502
)

// Server events.
const (
	EventConnectionStarted  EventID = 50
	EventConnectionFailed   EventID = 51
	EventConnectionFinished EventID = 52
	EventSessionStarted     EventID = 150
	EventSessionFinished    EventID = 152
	EventSessionFailed      EventID = 153
	EventTTSSentenceStart   EventID = 350
	EventTTSSentenceEnd     EventID = 351
	EventTTSResponse        EventID = 352
	EventTTSEnded           EventID = 359
	EventASRInfo            EventID = 450
	EventASRResponse        EventID = 451
	EventASREnded           EventID = 459
	EventChatResponse       EventID = 550
	EventChatEnded          EventID = 559
	EventDialogCommonError  EventID = 599
)

var eventNames = map[EventID]string{
	EventStartConnection:    "StartConnection",
	EventFinishConnection:   "FinishConnection",
	EventStartSession:       "StartSession",
	EventFinishSession:      "FinishSession",
	EventTaskRequest:        "TaskRequest",
	EventSayHello:           "SayHello",
	EventChatRAGText:        "ChatRAGText",
	EventConnectionStarted:  "ConnectionStarted",
	EventConnectionFailed:   "ConnectionFailed",
	EventConnectionFinished: "ConnectionFinished",
	EventSessionStarted:     "SessionStarted",
	EventSessionFinished:    "SessionFinished",
	EventSessionFailed:      "SessionFailed",
	EventTTSSentenceStart:   "TTSSentenceStart",
	EventTTSSentenceEnd:     "TTSSentenceEnd",
	EventTTSResponse:        "TTSResponse",
	EventTTSEnded:           "TTSEnded",
	EventASRInfo:            "ASRInfo",
	EventASRResponse:        "ASRResponse",
	EventASREnded:           "ASREnded",
	EventChatResponse:       "ChatResponse",
	EventChatEnded:          "ChatEnded",
	EventDialogCommonError:  "DialogCommonError",
}

func (e EventID) String() string {
	if name, ok := eventNames[e]; ok {
		return name
	}
	return fmt.Sprintf("Event(%d)", int32(e))
}

// hasID reports whether frames for this event carry a session or connect id.
// StartConnection and FinishConnection are the only id-less frames.
func (e EventID) hasID() bool {
	return e != EventStartConnection && e != EventFinishConnection
}

// isConnectionEvent reports whether the id field holds a connect id.
func (e EventID) isConnectionEvent() bool {
	return e == EventConnectionStarted || e == EventConnectionFailed || e == EventConnectionFinished
}

// ================== 配置结构 ==================

// RealtimeConfig 实时对话配置
type RealtimeConfig struct {
	// ASR 语音识别配置
	ASR RealtimeASRConfig `json:"asr" yaml:"asr"`

	// TTS 语音合成配置
	TTS RealtimeTTSConfig `json:"tts" yaml:"tts"`

	// Dialog 对话配置
	Dialog RealtimeDialogConfig `json:"dialog" yaml:"dialog"`
}

// RealtimeASRConfig ASR 配置
type RealtimeASRConfig struct {
	// AudioConfig 上行音频格式
	AudioConfig *RealtimeAudioConfig `json:"audio_config,omitempty" yaml:"audio_config,omitempty"`

	// Extra 扩展参数
	//
	// 如 end_smooth_window_ms 用于控制端点检测平滑窗口
	Extra map[string]any `json:"extra,omitempty" yaml:"extra,omitempty"`
}

// RealtimeTTSConfig TTS 配置
type RealtimeTTSConfig struct {
	// Speaker 音色 ID
	Speaker string `json:"speaker" yaml:"speaker"`

	// AudioConfig 下行音频格式
	AudioConfig RealtimeAudioConfig `json:"audio_config" yaml:"audio_config"`
}

// RealtimeAudioConfig 音频配置
type RealtimeAudioConfig struct {
	Channel    int    `json:"channel" yaml:"channel"`
	Format     string `json:"format" yaml:"format"`
	SampleRate int    `json:"sample_rate" yaml:"sample_rate"`
}

// RealtimeDialogConfig 对话配置
type RealtimeDialogConfig struct {
	BotName string `json:"bot_name" yaml:"bot_name"`

	// SystemRole 系统角色设定，发送前会清理控制字符
	SystemRole string `json:"system_role" yaml:"system_role"`

	SpeakingStyle string `json:"speaking_style,omitempty" yaml:"speaking_style,omitempty"`

	// Extra 扩展参数，如 recv_timeout, input_mod, model
	Extra map[string]any `json:"extra,omitempty" yaml:"extra,omitempty"`
}

// DefaultRealtimeConfig returns the interview dialogue defaults: 16kHz s16le
// microphone input, 24kHz s16le speech output.
func DefaultRealtimeConfig(systemRole string) *RealtimeConfig {
	return &RealtimeConfig{
		ASR: RealtimeASRConfig{
			AudioConfig: &RealtimeAudioConfig{Channel: 1, Format: "pcm_s16le", SampleRate: 16000},
			Extra:       map[string]any{"end_smooth_window_ms": 1500},
		},
		TTS: RealtimeTTSConfig{
			Speaker:     "zh_male_yunzhou_jupiter_bigtts",
			AudioConfig: RealtimeAudioConfig{Channel: 1, Format: "pcm_s16le", SampleRate: 24000},
		},
		Dialog: RealtimeDialogConfig{
			BotName:       "面试官",
			SystemRole:    systemRole,
			SpeakingStyle: "你的说话风格专业严谨，语速适中，语调自然。",
			Extra: map[string]any{
				"recv_timeout": 30,
				"input_mod":    "audio",
			},
		},
	}
}

// startSessionPayload is the StartSession body. The system role is sanitized
// on every call so reconnects send the same text as the first handshake.
func (c *RealtimeConfig) startSessionPayload() RealtimeConfig {
	p := *c
	p.Dialog.SystemRole = Sanitize(c.Dialog.SystemRole)
	return p
}

// ================== 事件结构 ==================

// RealtimeEventType 领域事件类型
type RealtimeEventType string

const (
	RealtimeEventAudio        RealtimeEventType = "audio"
	RealtimeEventTranscript   RealtimeEventType = "transcript"
	RealtimeEventInterrupted  RealtimeEventType = "interrupted"
	RealtimeEventSessionEnded RealtimeEventType = "session_ended"
	RealtimeEventError        RealtimeEventType = "error"
)

// Speaker identifies who produced a transcript.
type Speaker string

const (
	SpeakerAI   Speaker = "ai"
	SpeakerUser Speaker = "user"
)

// RealtimeEvent is a translated dialogue event.
//
// Audio is set for RealtimeEventAudio, Text and Speaker for
// RealtimeEventTranscript, Error for RealtimeEventError.
type RealtimeEvent struct {
	Type    RealtimeEventType `json:"type"`
	Audio   []byte            `json:"audio,omitempty"`
	Text    string            `json:"text,omitempty"`
	Speaker Speaker           `json:"speaker,omitempty"`
	Error   *Error            `json:"error,omitempty"`
}

// ================== 会话状态 ==================

// SessionState is the lifecycle state of a RealtimeSession.
type SessionState int32

const (
	StateDisconnected SessionState = iota
	StateConnecting
	StateHandshaking
	StateActive
	StateReconnecting
	StateClosing
	StateClosed
)

func (s SessionState) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateHandshaking:
		return "handshaking"
	case StateActive:
		return "active"
	case StateReconnecting:
		return "reconnecting"
	case StateClosing:
		return "closing"
	case StateClosed:
		return "closed"
	default:
		return fmt.Sprintf("SessionState(%d)", int32(s))
	}
}

// terminating reports whether the session was asked to stop.
func (s SessionState) terminating() bool {
	return s == StateClosing || s == StateClosed
}

// RealtimeStats is a snapshot of session counters.
type RealtimeStats struct {
	// AudioFramesSent counts frames written on the current connection.
	AudioFramesSent uint64

	// AudioFramesDropped counts frames discarded because the session was
	// reconnecting, closed, or the write failed.
	AudioFramesDropped uint64

	Reconnects   uint64
	DecodeErrors uint64
	ServerErrors uint64
}

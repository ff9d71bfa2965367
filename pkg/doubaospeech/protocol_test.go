package doubaospeech

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"errors"
	"testing"
)

func TestEncodeControlRoundTrip(t *testing.T) {
	data, err := encodeControl(EventSayHello, "sess-1", map[string]string{"content": "你好"})
	if err != nil {
		t.Fatalf("encodeControl: %v", err)
	}

	msg, err := decode(data)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if msg.msgType != msgTypeFullClient {
		t.Errorf("msgType = %v, want %v", msg.msgType, msgTypeFullClient)
	}
	if msg.event != EventSayHello {
		t.Errorf("event = %v, want %v", msg.event, EventSayHello)
	}
	if msg.sessionID != "sess-1" {
		t.Errorf("sessionID = %q, want %q", msg.sessionID, "sess-1")
	}

	var payload map[string]string
	if err := json.Unmarshal(msg.payload, &payload); err != nil {
		t.Fatalf("payload: %v", err)
	}
	if payload["content"] != "你好" {
		t.Errorf("content = %q, want %q", payload["content"], "你好")
	}
}

func TestEncodeAudioRoundTrip(t *testing.T) {
	pcm := bytes.Repeat([]byte{0x01, 0x02, 0x03, 0x04}, 800)

	data, err := encodeAudio("sess-2", pcm)
	if err != nil {
		t.Fatalf("encodeAudio: %v", err)
	}
	msg, err := decode(data)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !msg.isAudioOnly() {
		t.Errorf("isAudioOnly = false, want true")
	}
	if msg.event != EventTaskRequest {
		t.Errorf("event = %v, want %v", msg.event, EventTaskRequest)
	}
	if msg.sessionID != "sess-2" {
		t.Errorf("sessionID = %q, want %q", msg.sessionID, "sess-2")
	}
	if !bytes.Equal(msg.payload, pcm) {
		t.Errorf("payload mismatch: got %d bytes, want %d", len(msg.payload), len(pcm))
	}
}

func TestConnectionEventsOmitSessionID(t *testing.T) {
	data, err := encodeControl(EventStartConnection, "ignored", struct{}{})
	if err != nil {
		t.Fatalf("encodeControl: %v", err)
	}

	// header(4) + event(4) + payload size(4) + payload
	if got := binary.BigEndian.Uint32(data[4:8]); got != uint32(EventStartConnection) {
		t.Fatalf("event = %d, want %d", got, EventStartConnection)
	}
	size := binary.BigEndian.Uint32(data[8:12])
	if int(size) != len(data)-12 {
		t.Fatalf("payload size = %d, want %d", size, len(data)-12)
	}

	msg, err := decode(data)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if msg.sessionID != "" {
		t.Errorf("sessionID = %q, want empty", msg.sessionID)
	}
	if string(msg.payload) != "{}" {
		t.Errorf("payload = %q, want {}", msg.payload)
	}
}

func TestConnectionStartedCarriesConnectID(t *testing.T) {
	data, err := marshal(&message{
		header: header{
			version:       protocolVersionV1,
			size:          headerSizeV1,
			msgType:       msgTypeFullServer,
			flags:         msgFlagWithEvent,
			serialization: serializationJSON,
			compression:   compressionGzip,
		},
		event:     EventConnectionStarted,
		connectID: "conn-9",
		payload:   []byte(`{}`),
	})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	msg, err := decode(data)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if msg.connectID != "conn-9" {
		t.Errorf("connectID = %q, want %q", msg.connectID, "conn-9")
	}
	if msg.sessionID != "" {
		t.Errorf("sessionID = %q, want empty", msg.sessionID)
	}
}

func TestErrorFrameRoundTrip(t *testing.T) {
	data, err := marshal(&message{
		header: header{
			version:       protocolVersionV1,
			size:          headerSizeV1,
			msgType:       msgTypeError,
			serialization: serializationJSON,
			compression:   compressionGzip,
		},
		errorCode: 45000001,
		payload:   []byte(`{"error":"invalid session"}`),
	})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	msg, err := decode(data)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !msg.isError() {
		t.Fatal("isError = false, want true")
	}
	if msg.errorCode != 45000001 {
		t.Errorf("errorCode = %d, want 45000001", msg.errorCode)
	}

	apiErr := serverError(msg.errorCode, msg.payload)
	if apiErr.Message != "invalid session" {
		t.Errorf("Message = %q, want %q", apiErr.Message, "invalid session")
	}
}

func TestHeaderRoundTrip(t *testing.T) {
	msgTypes := []messageType{msgTypeFullClient, msgTypeAudioOnlyClient, msgTypeFullServer, msgTypeAudioOnlyServer, msgTypeError}
	flags := []messageTypeFlags{msgFlagNoSequence, msgFlagPosSequence, msgFlagNegSequence, msgFlagWithEvent}
	serializations := []serializationType{serializationNone, serializationJSON}
	compressions := []compressionType{compressionNone, compressionGzip}

	for _, mt := range msgTypes {
		for _, fl := range flags {
			for _, ser := range serializations {
				for _, comp := range compressions {
					h := header{
						version:       protocolVersionV1,
						size:          headerSizeV1,
						msgType:       mt,
						flags:         fl,
						serialization: ser,
						compression:   comp,
					}
					packed := h.pack()
					got, err := unpackHeader(packed[:])
					if err != nil {
						t.Fatalf("unpackHeader(%v): %v", packed, err)
					}
					if got != h {
						t.Errorf("round trip = %+v, want %+v", got, h)
					}
				}
			}
		}
	}
}

func TestDecodeMalformed(t *testing.T) {
	valid, err := encodeControl(EventSayHello, "sess", map[string]string{"content": "hi"})
	if err != nil {
		t.Fatalf("encodeControl: %v", err)
	}

	// header(4) + event(4) + id len(4) + id "sess"(4) = 16
	hugeID := append([]byte(nil), valid[:8]...)
	hugeID = binary.BigEndian.AppendUint32(hugeID, 1<<20)

	badGzip := append([]byte(nil), valid[:16]...)
	badGzip = binary.BigEndian.AppendUint32(badGzip, 4)
	badGzip = append(badGzip, 0xde, 0xad, 0xbe, 0xef)

	notJSON, err := gzipCompress([]byte("{not json"))
	if err != nil {
		t.Fatalf("gzipCompress: %v", err)
	}
	badJSON := append([]byte(nil), valid[:16]...)
	badJSON = binary.BigEndian.AppendUint32(badJSON, uint32(len(notJSON)))
	badJSON = append(badJSON, notJSON...)

	oversize := append([]byte(nil), valid[:16]...)
	oversize = binary.BigEndian.AppendUint32(oversize, 1000)
	oversize = append(oversize, 0x01, 0x02)

	tests := []struct {
		name string
		data []byte
	}{
		{"empty", nil},
		{"short header", []byte{0x11, 0x14}},
		{"zero header size", []byte{0x10, 0x94, 0x11, 0x00, 0, 0, 0, 1}},
		{"truncated event", valid[:6]},
		{"truncated id", valid[:14]},
		{"id length exceeds limit", hugeID},
		{"missing payload size", valid[:16]},
		{"payload size exceeds frame", oversize},
		{"bad gzip", badGzip},
		{"invalid json", badJSON},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := decode(tt.data)
			if err == nil {
				t.Fatal("decode succeeded, want error")
			}
			var decErr *DecodeError
			if !errors.As(err, &decErr) {
				t.Errorf("error %v is %T, want *DecodeError", err, err)
			}
		})
	}
}

func TestEncodeControlMarshalError(t *testing.T) {
	_, err := encodeControl(EventChatRAGText, "sess", map[string]any{"bad": func() {}})
	var encErr *EncodeError
	if !errors.As(err, &encErr) {
		t.Fatalf("error %v is %T, want *EncodeError", err, err)
	}
	if encErr.Event != EventChatRAGText {
		t.Errorf("Event = %v, want %v", encErr.Event, EventChatRAGText)
	}
}

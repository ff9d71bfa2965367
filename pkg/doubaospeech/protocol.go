package doubaospeech

import (
	"bytes"
	"compress/gzip"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
)

// ================== 协议常量 ==================

type protocolVersion byte
type messageType byte
type messageTypeFlags byte
type serializationType byte
type compressionType byte

const (
	protocolVersionV1 protocolVersion = 0b0001

	// headerSizeV1 is the header size in 4-byte units.
	headerSizeV1 byte = 1

	// Message Types
	msgTypeFullClient      messageType = 0b0001
	msgTypeAudioOnlyClient messageType = 0b0010
	msgTypeFullServer      messageType = 0b1001
	msgTypeAudioOnlyServer messageType = 0b1011
	msgTypeError           messageType = 0b1111

	// Message Type Specific Flags
	msgFlagNoSequence  messageTypeFlags = 0b0000
	msgFlagPosSequence messageTypeFlags = 0b0001
	msgFlagNegSequence messageTypeFlags = 0b0010
	msgFlagWithEvent   messageTypeFlags = 0b0100

	// Serialization Types
	serializationNone serializationType = 0b0000
	serializationJSON serializationType = 0b0001

	// Compression Types
	compressionNone compressionType = 0b0000
	compressionGzip compressionType = 0b0001
)

// maxIDLength bounds the session/connect id length accepted by decode.
const maxIDLength = 1024

// ================== 协议结构 ==================

// header 四字节帧头
//
//   - (4bits) version + (4bits) header_size
//   - (4bits) message_type + (4bits) message_type_flags
//   - (4bits) serialization + (4bits) compression
//   - (8bits) reserved
type header struct {
	version       protocolVersion
	size          byte
	msgType       messageType
	flags         messageTypeFlags
	serialization serializationType
	compression   compressionType
}

func (h header) pack() [4]byte {
	return [4]byte{
		byte(h.version<<4) | (h.size & 0x0f),
		byte(h.msgType<<4) | byte(h.flags&0x0f),
		byte(h.serialization<<4) | byte(h.compression&0x0f),
		0x00,
	}
}

func unpackHeader(b []byte) (header, error) {
	if len(b) < 4 {
		return header{}, fmt.Errorf("header too short: %d bytes", len(b))
	}
	h := header{
		version:       protocolVersion(b[0] >> 4),
		size:          b[0] & 0x0f,
		msgType:       messageType(b[1] >> 4),
		flags:         messageTypeFlags(b[1] & 0x0f),
		serialization: serializationType(b[2] >> 4),
		compression:   compressionType(b[2] & 0x0f),
	}
	if h.size == 0 {
		return header{}, fmt.Errorf("invalid header size 0")
	}
	return h, nil
}

// message 协议消息
//
// Layout after the header:
//   - [optional] sequence (4 bytes)
//   - [error frames] error code (4 bytes)
//   - [optional] event (4 bytes)
//   - [optional] session_id / connect_id (4 bytes len + data)
//   - payload_size (4 bytes) + payload_data
type message struct {
	header
	event     EventID
	sessionID string
	connectID string
	sequence  int32
	errorCode uint32
	payload   []byte
}

func controlHeader() header {
	return header{
		version:       protocolVersionV1,
		size:          headerSizeV1,
		msgType:       msgTypeFullClient,
		flags:         msgFlagWithEvent,
		serialization: serializationJSON,
		compression:   compressionGzip,
	}
}

func audioHeader() header {
	return header{
		version:       protocolVersionV1,
		size:          headerSizeV1,
		msgType:       msgTypeAudioOnlyClient,
		flags:         msgFlagWithEvent,
		serialization: serializationNone,
		compression:   compressionGzip,
	}
}

// encodeControl builds a full-client request. payload is JSON encoded and
// gzip compressed; the session id is written for every event that is not
// connection scoped.
func encodeControl(event EventID, sessionID string, payload any) ([]byte, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, &EncodeError{Event: event, Err: err}
	}
	msg := &message{
		header:    controlHeader(),
		event:     event,
		sessionID: sessionID,
		payload:   data,
	}
	return marshal(msg)
}

// encodeAudio builds an audio-only client request carrying raw PCM.
func encodeAudio(sessionID string, pcm []byte) ([]byte, error) {
	msg := &message{
		header:    audioHeader(),
		event:     EventTaskRequest,
		sessionID: sessionID,
		payload:   pcm,
	}
	return marshal(msg)
}

// marshal 序列化消息
func marshal(msg *message) ([]byte, error) {
	buf := new(bytes.Buffer)

	h := msg.header.pack()
	buf.Write(h[:])
	// Extra header words are written as zero padding.
	if msg.size > 1 {
		buf.Write(make([]byte, int(msg.size-1)*4))
	}

	if msg.flags&msgFlagPosSequence != 0 || msg.flags&msgFlagNegSequence != 0 {
		if err := binary.Write(buf, binary.BigEndian, msg.sequence); err != nil {
			return nil, &EncodeError{Event: msg.event, Err: fmt.Errorf("write sequence: %w", err)}
		}
	}

	if msg.msgType == msgTypeError {
		if err := binary.Write(buf, binary.BigEndian, msg.errorCode); err != nil {
			return nil, &EncodeError{Event: msg.event, Err: fmt.Errorf("write error code: %w", err)}
		}
	} else if msg.flags&msgFlagWithEvent != 0 {
		if err := binary.Write(buf, binary.BigEndian, int32(msg.event)); err != nil {
			return nil, &EncodeError{Event: msg.event, Err: fmt.Errorf("write event: %w", err)}
		}
		if msg.event.hasID() {
			id := msg.sessionID
			if msg.event.isConnectionEvent() {
				id = msg.connectID
			}
			if err := binary.Write(buf, binary.BigEndian, uint32(len(id))); err != nil {
				return nil, &EncodeError{Event: msg.event, Err: fmt.Errorf("write id length: %w", err)}
			}
			buf.WriteString(id)
		}
	}

	payload := msg.payload
	if msg.compression == compressionGzip {
		compressed, err := gzipCompress(payload)
		if err != nil {
			return nil, &EncodeError{Event: msg.event, Err: fmt.Errorf("gzip compress: %w", err)}
		}
		payload = compressed
	}

	if err := binary.Write(buf, binary.BigEndian, uint32(len(payload))); err != nil {
		return nil, &EncodeError{Event: msg.event, Err: fmt.Errorf("write payload size: %w", err)}
	}
	buf.Write(payload)

	return buf.Bytes(), nil
}

// decode 反序列化消息
//
// The payload is decompressed according to the header; JSON payloads must be
// well formed. Any structural problem yields a *DecodeError.
func decode(data []byte) (*message, error) {
	h, err := unpackHeader(data)
	if err != nil {
		return nil, &DecodeError{Err: err}
	}
	if len(data) < int(h.size)*4 {
		return nil, &DecodeError{Err: fmt.Errorf("header size %d exceeds frame length %d", h.size, len(data))}
	}

	buf := bytes.NewBuffer(data[int(h.size)*4:])
	msg := &message{header: h}

	if msg.flags&msgFlagPosSequence != 0 || msg.flags&msgFlagNegSequence != 0 {
		if err := binary.Read(buf, binary.BigEndian, &msg.sequence); err != nil {
			return nil, &DecodeError{Err: fmt.Errorf("read sequence: %w", err)}
		}
	}

	if msg.msgType == msgTypeError {
		if err := binary.Read(buf, binary.BigEndian, &msg.errorCode); err != nil {
			return nil, &DecodeError{Err: fmt.Errorf("read error code: %w", err)}
		}
	} else if msg.flags&msgFlagWithEvent != 0 {
		var event int32
		if err := binary.Read(buf, binary.BigEndian, &event); err != nil {
			return nil, &DecodeError{Err: fmt.Errorf("read event: %w", err)}
		}
		msg.event = EventID(event)

		if msg.event.hasID() {
			id, err := readSized(buf, maxIDLength)
			if err != nil {
				return nil, &DecodeError{Event: msg.event, Err: fmt.Errorf("read id: %w", err)}
			}
			if msg.event.isConnectionEvent() {
				msg.connectID = string(id)
			} else {
				msg.sessionID = string(id)
			}
		}
	}

	payload, err := readSized(buf, buf.Len())
	if err != nil {
		return nil, &DecodeError{Event: msg.event, Err: fmt.Errorf("read payload: %w", err)}
	}

	if h.compression == compressionGzip && len(payload) > 0 {
		payload, err = gzipDecompress(payload)
		if err != nil {
			return nil, &DecodeError{Event: msg.event, Err: fmt.Errorf("gzip decompress: %w", err)}
		}
	}
	if h.serialization == serializationJSON && len(payload) > 0 && !json.Valid(payload) {
		return nil, &DecodeError{Event: msg.event, Err: fmt.Errorf("invalid JSON payload")}
	}
	msg.payload = payload

	return msg, nil
}

// readSized reads a u32 length prefix followed by that many bytes.
func readSized(buf *bytes.Buffer, limit int) ([]byte, error) {
	var size uint32
	if err := binary.Read(buf, binary.BigEndian, &size); err != nil {
		return nil, fmt.Errorf("read size: %w", err)
	}
	if int64(size) > int64(limit) || int(size) > buf.Len() {
		return nil, fmt.Errorf("size %d exceeds remaining %d bytes", size, buf.Len())
	}
	if size == 0 {
		return nil, nil
	}
	out := make([]byte, size)
	copy(out, buf.Next(int(size)))
	return out, nil
}

// isAudioOnly 是否为纯音频消息
func (msg *message) isAudioOnly() bool {
	return msg.msgType == msgTypeAudioOnlyServer || msg.msgType == msgTypeAudioOnlyClient
}

// isError 是否为错误消息
func (msg *message) isError() bool {
	return msg.msgType == msgTypeError
}

// gzipCompress gzip 压缩
func gzipCompress(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	w := gzip.NewWriter(&buf)
	if _, err := w.Write(data); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// gzipDecompress gzip 解压
func gzipDecompress(data []byte) ([]byte, error) {
	r, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	defer r.Close()
	return io.ReadAll(r)
}

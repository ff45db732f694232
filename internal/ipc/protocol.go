// Package ipc is the control socket through which other processes inject
// user events into a running loop.
//
// Every frame is a 4-byte big-endian length followed by a protobuf-encoded
// message. Requests carry field 1 (kind, varint) and field 2 (payload,
// bytes); responses carry field 1 (kind) and field 2 (text).
package ipc

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"google.golang.org/protobuf/encoding/protowire"
)

// Kind identifies a message.
type Kind uint64

const (
	KindSend   Kind = 1
	KindStatus Kind = 2
	KindAck    Kind = 3
	KindError  Kind = 4
)

func (k Kind) String() string {
	switch k {
	case KindSend:
		return "send"
	case KindStatus:
		return "status"
	case KindAck:
		return "ack"
	case KindError:
		return "error"
	}
	return fmt.Sprintf("kind(%d)", uint64(k))
}

const (
	fieldKind    protowire.Number = 1
	fieldPayload protowire.Number = 2

	// MaxFrameSize bounds a single frame.
	MaxFrameSize = 64 << 10
)

var ErrFrameTooLarge = errors.New("ipc: frame too large")

// Message is one request or response.
type Message struct {
	Kind    Kind
	Payload string
}

// Marshal encodes m without the length prefix.
func (m Message) Marshal() []byte {
	var b []byte
	b = protowire.AppendTag(b, fieldKind, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(m.Kind))
	if m.Payload != "" {
		b = protowire.AppendTag(b, fieldPayload, protowire.BytesType)
		b = protowire.AppendString(b, m.Payload)
	}
	return b
}

// Unmarshal decodes b, skipping unknown fields.
func Unmarshal(b []byte) (Message, error) {
	var m Message
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return Message{}, fmt.Errorf("failed to read tag: %w", protowire.ParseError(n))
		}
		b = b[n:]

		switch {
		case num == fieldKind && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return Message{}, fmt.Errorf("failed to read kind: %w", protowire.ParseError(n))
			}
			m.Kind = Kind(v)
			b = b[n:]
		case num == fieldPayload && typ == protowire.BytesType:
			v, n := protowire.ConsumeString(b)
			if n < 0 {
				return Message{}, fmt.Errorf("failed to read payload: %w", protowire.ParseError(n))
			}
			m.Payload = v
			b = b[n:]
		default:
			n := protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return Message{}, fmt.Errorf("failed to skip field %d: %w", num, protowire.ParseError(n))
			}
			b = b[n:]
		}
	}
	return m, nil
}

// ReadMessage reads one length-prefixed frame.
func ReadMessage(r io.Reader) (Message, error) {
	var length uint32
	if err := binary.Read(r, binary.BigEndian, &length); err != nil {
		return Message{}, fmt.Errorf("failed to read message length: %w", err)
	}
	if length > MaxFrameSize {
		return Message{}, fmt.Errorf("%w: %d bytes", ErrFrameTooLarge, length)
	}

	data := make([]byte, length)
	if _, err := io.ReadFull(r, data); err != nil {
		return Message{}, fmt.Errorf("failed to read message data: %w", err)
	}
	return Unmarshal(data)
}

// WriteMessage writes m as one length-prefixed frame.
func WriteMessage(w io.Writer, m Message) error {
	data := m.Marshal()
	if len(data) > MaxFrameSize {
		return fmt.Errorf("%w: %d bytes", ErrFrameTooLarge, len(data))
	}
	buf := binary.BigEndian.AppendUint32(make([]byte, 0, 4+len(data)), uint32(len(data)))
	if _, err := w.Write(append(buf, data...)); err != nil {
		return fmt.Errorf("failed to write message: %w", err)
	}
	return nil
}

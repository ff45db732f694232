package ipc

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/encoding/protowire"
)

func TestFrameRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteMessage(&buf, Message{Kind: KindSend, Payload: "héllo"}))
	require.NoError(t, WriteMessage(&buf, Message{Kind: KindStatus}))

	length := binary.BigEndian.Uint32(buf.Bytes()[:4])
	assert.Equal(t, uint32(len(Message{Kind: KindSend, Payload: "héllo"}.Marshal())), length)

	first, err := ReadMessage(&buf)
	require.NoError(t, err)
	assert.Equal(t, Message{Kind: KindSend, Payload: "héllo"}, first)

	second, err := ReadMessage(&buf)
	require.NoError(t, err)
	assert.Equal(t, Message{Kind: KindStatus}, second)
}

func TestUnmarshalSkipsUnknownFields(t *testing.T) {
	var b []byte
	b = protowire.AppendTag(b, 9, protowire.BytesType)
	b = protowire.AppendString(b, "future")
	b = protowire.AppendTag(b, fieldKind, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(KindAck))
	b = protowire.AppendTag(b, 10, protowire.Fixed32Type)
	b = protowire.AppendFixed32(b, 7)

	m, err := Unmarshal(b)
	require.NoError(t, err)
	assert.Equal(t, Message{Kind: KindAck}, m)
}

func TestUnmarshalTruncated(t *testing.T) {
	b := Message{Kind: KindSend, Payload: "abcdef"}.Marshal()
	_, err := Unmarshal(b[:len(b)-2])
	assert.Error(t, err)
}

func TestReadMessageRejectsOversizedFrame(t *testing.T) {
	var buf bytes.Buffer
	buf.Write(binary.BigEndian.AppendUint32(nil, MaxFrameSize+1))
	_, err := ReadMessage(&buf)
	assert.ErrorIs(t, err, ErrFrameTooLarge)
}

func TestKindString(t *testing.T) {
	assert.Equal(t, "send", KindSend.String())
	assert.Equal(t, "kind(42)", Kind(42).String())
}

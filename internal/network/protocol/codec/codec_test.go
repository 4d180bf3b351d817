package codec

import (
	"testing"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/palemoky/geoquiz/internal/network/protocol"
)

func TestForFormat(t *testing.T) {
	t.Parallel()

	c, err := ForFormat("json")
	require.NoError(t, err)
	assert.Equal(t, websocket.TextMessage, c.FrameType())

	c, err = ForFormat("")
	require.NoError(t, err)
	assert.Equal(t, JSON, c)

	c, err = ForFormat("protobuf")
	require.NoError(t, err)
	assert.Equal(t, websocket.BinaryMessage, c.FrameType())

	_, err = ForFormat("xml")
	assert.Error(t, err)
}

func TestJSON_EncodeMatchesMessageEncode(t *testing.T) {
	t.Parallel()

	msg := protocol.MustNewMessage(protocol.MsgNewTurn, protocol.NewTurnPayload{
		City: "Lyon", Country: "France", CountryCode: "FR",
	})

	data, err := JSON.Encode(msg)
	require.NoError(t, err)

	expected, err := msg.Encode()
	require.NoError(t, err)
	assert.Equal(t, expected, data)

	decoded, err := JSON.Decode(data)
	require.NoError(t, err)
	assert.Equal(t, msg.Type, decoded.Type)
	assert.JSONEq(t, string(msg.Payload), string(decoded.Payload))
}

func TestJSON_DecodeRejectsMissingType(t *testing.T) {
	t.Parallel()

	_, err := JSON.Decode([]byte(`{"payload":{}}`))
	assert.ErrorIs(t, err, ErrMissingType)
}

func TestProtobuf_PreservesPayload(t *testing.T) {
	t.Parallel()

	msg := protocol.MustNewMessage(protocol.MsgPlayerResults, protocol.PlayerResultsPayload{
		Rank: 2, Total: 5, Distance: 123.5, Score: 996, Lat: 10.5, Lng: -20.25,
	})

	data, err := Protobuf.Encode(msg)
	require.NoError(t, err)

	decoded, err := Protobuf.Decode(data)
	require.NoError(t, err)
	assert.Equal(t, protocol.MsgPlayerResults, decoded.Type)

	payload, err := protocol.ParsePayload[protocol.PlayerResultsPayload](decoded)
	require.NoError(t, err)
	assert.Equal(t, 2, payload.Rank)
	assert.Equal(t, 5, payload.Total)
	assert.Equal(t, 996, payload.Score)
	assert.InDelta(t, 123.5, payload.Distance, 1e-9)
	assert.InDelta(t, -20.25, payload.Lng, 1e-9)
}

func TestProtobuf_NoPayload(t *testing.T) {
	t.Parallel()

	data, err := Protobuf.Encode(&protocol.Message{Type: protocol.MsgPing})
	require.NoError(t, err)

	decoded, err := Protobuf.Decode(data)
	require.NoError(t, err)
	assert.Equal(t, protocol.MsgPing, decoded.Type)
	assert.Empty(t, decoded.Payload)
}

func TestProtobuf_DecodeGarbage(t *testing.T) {
	t.Parallel()

	_, err := Protobuf.Decode([]byte{0xff, 0xff, 0xff})
	assert.Error(t, err)
}

func TestBufferPool_GetPut(t *testing.T) {
	t.Parallel()

	buf := GetBuffer()
	buf.WriteString("test data")
	PutBuffer(buf)

	buf2 := GetBuffer()
	assert.Equal(t, 0, buf2.Len())
	PutBuffer(buf2)

	assert.NotPanics(t, func() { PutBuffer(nil) })
}

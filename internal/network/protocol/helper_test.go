package protocol

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewMessage(t *testing.T) {
	payload := JoinGamePayload{PlayerName: "Alice"}
	msg, err := NewMessage(MsgJoinGame, payload)

	require.NoError(t, err)
	assert.Equal(t, MsgJoinGame, msg.Type)
	assert.JSONEq(t, `{"player_name":"Alice"}`, string(msg.Payload))
}

func TestNewMessage_NilPayload(t *testing.T) {
	msg, err := NewMessage(MsgPing, nil)
	require.NoError(t, err)
	assert.Nil(t, msg.Payload)

	data, err := msg.Encode()
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"ping"}`, string(data))
}

func TestDecodeAndParsePayload(t *testing.T) {
	msg, err := Decode([]byte(`{"type":"answer","payload":{"lat":48.85,"lng":2.35}}`))
	require.NoError(t, err)
	assert.Equal(t, MsgAnswer, msg.Type)

	answer, err := ParsePayload[AnswerPayload](msg)
	require.NoError(t, err)
	assert.InDelta(t, 48.85, answer.Lat, 1e-9)
	assert.InDelta(t, 2.35, answer.Lng, 1e-9)
}

func TestDecode_Invalid(t *testing.T) {
	_, err := Decode([]byte(`not json`))
	assert.Error(t, err)
}

func TestEndOfTurnPayload_OmitsEmptySections(t *testing.T) {
	data, err := json.Marshal(EndOfTurnPayload{
		CorrectAnswer: CorrectAnswer{Name: "Paris", Lat: 48.85, Lng: 2.35},
	})
	require.NoError(t, err)

	var fields map[string]any
	require.NoError(t, json.Unmarshal(data, &fields))
	assert.Contains(t, fields, "correct_answer")
	assert.NotContains(t, fields, "best_answer")
	assert.NotContains(t, fields, "other_answers")
}

func TestLegendChangesPayload_UsesSlotKeys(t *testing.T) {
	data, err := json.Marshal(LegendChangesPayload{
		1: {PlayerName: "Alice", Color: "blue"},
		2: {PlayerName: "Bob", Color: "green"},
	})
	require.NoError(t, err)
	assert.JSONEq(t,
		`{"1":{"player_name":"Alice","color":"blue"},"2":{"player_name":"Bob","color":"green"}}`,
		string(data))
}

func TestNewErrorMessage(t *testing.T) {
	msg := NewErrorMessage(ErrCodeTurnNotOpen)
	assert.Equal(t, MsgError, msg.Type)

	payload, err := ParsePayload[ErrorPayload](msg)
	require.NoError(t, err)
	assert.Equal(t, ErrCodeTurnNotOpen, payload.Code)
	assert.Equal(t, ErrorMessages[ErrCodeTurnNotOpen], payload.Message)
}

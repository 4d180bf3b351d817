// Package codec turns protocol messages into WebSocket frames.
//
// JSON is the default and what the browser client speaks. Protobuf wraps the
// same envelope in a structpb.Struct for binary clients; payload field names are
// identical in both formats.
package codec

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/gorilla/websocket"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/palemoky/geoquiz/internal/network/protocol"
)

const (
	fieldType    = "type"
	fieldPayload = "payload"
)

// ErrMissingType is returned when a decoded frame carries no message type
var ErrMissingType = errors.New("codec: message type missing")

// Codec encodes and decodes protocol messages for one wire format
type Codec interface {
	Encode(msg *protocol.Message) ([]byte, error)
	Decode(data []byte) (*protocol.Message, error)
	// FrameType is the websocket frame type the encoded bytes are sent in
	FrameType() int
	Name() string
}

// ForFormat returns the codec registered for a config wire format name
func ForFormat(name string) (Codec, error) {
	switch name {
	case "", JSON.Name():
		return JSON, nil
	case Protobuf.Name():
		return Protobuf, nil
	default:
		return nil, fmt.Errorf("codec: unknown wire format %q", name)
	}
}

var (
	// JSON is the text codec
	JSON Codec = jsonCodec{}
	// Protobuf is the binary codec
	Protobuf Codec = protobufCodec{}
)

type jsonCodec struct{}

func (jsonCodec) Name() string   { return "json" }
func (jsonCodec) FrameType() int { return websocket.TextMessage }

func (jsonCodec) Encode(msg *protocol.Message) ([]byte, error) {
	buf := GetBuffer()
	defer PutBuffer(buf)

	if err := json.NewEncoder(buf).Encode(msg); err != nil {
		return nil, err
	}
	// Encoder appends a newline
	out := make([]byte, buf.Len()-1)
	copy(out, buf.Bytes())
	return out, nil
}

func (jsonCodec) Decode(data []byte) (*protocol.Message, error) {
	msg, err := protocol.Decode(data)
	if err != nil {
		return nil, err
	}
	if msg.Type == "" {
		return nil, ErrMissingType
	}
	return msg, nil
}

type protobufCodec struct{}

func (protobufCodec) Name() string   { return "protobuf" }
func (protobufCodec) FrameType() int { return websocket.BinaryMessage }

func (protobufCodec) Encode(msg *protocol.Message) ([]byte, error) {
	env := getEnvelope()
	defer putEnvelope(env)

	env.Fields = map[string]*structpb.Value{
		fieldType: structpb.NewStringValue(string(msg.Type)),
	}
	if len(msg.Payload) > 0 {
		payload := &structpb.Value{}
		if err := protojson.Unmarshal(msg.Payload, payload); err != nil {
			return nil, fmt.Errorf("codec: convert payload: %w", err)
		}
		env.Fields[fieldPayload] = payload
	}
	return proto.Marshal(env)
}

func (protobufCodec) Decode(data []byte) (*protocol.Message, error) {
	env := getEnvelope()
	defer putEnvelope(env)

	if err := proto.Unmarshal(data, env); err != nil {
		return nil, err
	}
	msgType := env.GetFields()[fieldType].GetStringValue()
	if msgType == "" {
		return nil, ErrMissingType
	}

	msg := &protocol.Message{Type: protocol.MessageType(msgType)}
	if payload, ok := env.GetFields()[fieldPayload]; ok {
		raw, err := protojson.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("codec: convert payload: %w", err)
		}
		msg.Payload = raw
	}
	return msg, nil
}

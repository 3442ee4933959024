// Package codec frames and validates the control messages exchanged over
// the reliable transport between a peer and a coordinator. The wire format
// is a single JSON object per frame: a closed discriminated union over
// FrameType rather than an open map, so callers never parse past the type
// discriminator into an unconstrained structure.
package codec

import (
	"encoding/json"
	"errors"
	"fmt"
)

// FrameType is the closed enumeration of recognized frame discriminators.
type FrameType string

const (
	FrameHello          FrameType = "HELLO"
	FrameWelcome        FrameType = "WELCOME"
	FramePing           FrameType = "PING"
	FramePong           FrameType = "PONG"
	FrameError          FrameType = "ERROR"
	FrameCreateRoom     FrameType = "CREATE_ROOM"
	FrameJoinRoom       FrameType = "JOIN_ROOM"
	FrameLeaveRoom      FrameType = "LEAVE_ROOM"
	FrameChat           FrameType = "CHAT"
	FrameKick           FrameType = "KICK"
	FrameKicked         FrameType = "KICKED"
	FrameStateSnapshot  FrameType = "STATE_SNAPSHOT"
)

// validFrameTypes is consulted by Decode to reject unknown discriminators
// without ever constructing a Frame from them.
var validFrameTypes = map[FrameType]struct{}{
	FrameHello:         {},
	FrameWelcome:       {},
	FramePing:          {},
	FramePong:          {},
	FrameError:         {},
	FrameCreateRoom:    {},
	FrameJoinRoom:      {},
	FrameLeaveRoom:     {},
	FrameChat:          {},
	FrameKick:          {},
	FrameKicked:        {},
	FrameStateSnapshot: {},
}

// ClientIDServer and ClientIDPending are the sentinel clientId values used
// before a connection's identity is known, and for coordinator-originated
// frames that belong to no single client.
const (
	ClientIDServer  = "server"
	ClientIDPending = "pending"
)

// ErrMalformedFrame is wrapped by every decode failure. Callers compare
// with errors.Is, never by inspecting message text.
var ErrMalformedFrame = errors.New("malformed frame")

// Frame is a single wire record. Payload stays as raw JSON until a caller
// asks for a specific typed payload via DecodePayload — nothing upstream of
// that point inspects its shape.
type Frame struct {
	Type      FrameType       `json:"type"`
	RequestId string          `json:"requestId"`
	ClientId  string          `json:"clientId"`
	Payload   json.RawMessage `json:"payload,omitempty"`
}

// wireFrame mirrors Frame but holds Type as a pointer and requestId/clientId
// as raw JSON, so an absent type or a non-string id can be detected. Payload
// stays raw here and is checked separately to be a JSON object.
type wireFrame struct {
	Type      *FrameType      `json:"type"`
	RequestId json.RawMessage `json:"requestId"`
	ClientId  json.RawMessage `json:"clientId"`
	Payload   json.RawMessage `json:"payload"`
}

// Decode parses a single wire message into a Frame. It fails with
// ErrMalformedFrame when the outer structure is not a JSON object, when
// type is absent or not one of the closed set, when requestId is absent or
// not a JSON string, or when payload is present but is not a JSON object.
func Decode(raw []byte) (Frame, error) {
	var w wireFrame
	if err := json.Unmarshal(raw, &w); err != nil {
		return Frame{}, fmt.Errorf("%w: not a JSON object: %v", ErrMalformedFrame, err)
	}

	if w.Type == nil {
		return Frame{}, fmt.Errorf("%w: missing type", ErrMalformedFrame)
	}
	if _, ok := validFrameTypes[*w.Type]; !ok {
		return Frame{}, fmt.Errorf("%w: unknown type %q", ErrMalformedFrame, *w.Type)
	}

	var requestId string
	if len(w.RequestId) == 0 {
		return Frame{}, fmt.Errorf("%w: missing requestId", ErrMalformedFrame)
	}
	if err := json.Unmarshal(w.RequestId, &requestId); err != nil {
		return Frame{}, fmt.Errorf("%w: requestId must be a string", ErrMalformedFrame)
	}

	var clientId string
	if len(w.ClientId) > 0 {
		if err := json.Unmarshal(w.ClientId, &clientId); err != nil {
			return Frame{}, fmt.Errorf("%w: clientId must be a string", ErrMalformedFrame)
		}
	}

	if len(w.Payload) > 0 && !isJSONObject(w.Payload) {
		return Frame{}, fmt.Errorf("%w: payload must be an object", ErrMalformedFrame)
	}

	return Frame{
		Type:      *w.Type,
		RequestId: requestId,
		ClientId:  clientId,
		Payload:   w.Payload,
	}, nil
}

func isJSONObject(raw json.RawMessage) bool {
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return false
	}
	_, ok := v.(map[string]any)
	return ok
}

// Encode serializes a Frame to its wire form. It panics only when f.Type is
// outside the closed enumeration — a programmer error unreachable via any
// value that passed through Decode or the typed constructors below.
func Encode(f Frame) []byte {
	if _, ok := validFrameTypes[f.Type]; !ok {
		panic(fmt.Sprintf("codec: Encode called with unknown FrameType %q", f.Type))
	}
	out, err := json.Marshal(f)
	if err != nil {
		// Frame's fields are all plain strings and a json.RawMessage payload
		// already validated as an object; Marshal cannot fail here.
		panic(fmt.Sprintf("codec: unreachable marshal failure: %v", err))
	}
	return out
}

// DecodePayload unmarshals f.Payload into a value of type T. It returns
// ErrMalformedFrame if the payload is absent or does not match T's shape.
func DecodePayload[T any](f Frame) (T, error) {
	var payload T
	if len(f.Payload) == 0 {
		return payload, fmt.Errorf("%w: missing payload for %s", ErrMalformedFrame, f.Type)
	}
	if err := json.Unmarshal(f.Payload, &payload); err != nil {
		return payload, fmt.Errorf("%w: payload does not match %s shape: %v", ErrMalformedFrame, f.Type, err)
	}
	return payload, nil
}

// NewFrame builds a Frame from a typed payload, marshaling it to
// json.RawMessage. Used by senders that build outbound frames from typed
// payload constructors below rather than hand-assembling JSON.
func NewFrame(ft FrameType, requestId, clientId string, payload any) Frame {
	var raw json.RawMessage
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			panic(fmt.Sprintf("codec: NewFrame could not marshal payload for %s: %v", ft, err))
		}
		raw = b
	}
	return Frame{
		Type:      ft,
		RequestId: requestId,
		ClientId:  clientId,
		Payload:   raw,
	}
}

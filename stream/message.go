// Package stream implements the live-streaming core: the session registry
// grouping active connections by fragment, the per-connection protocol state
// machine, and the JSON message envelope spoken on the wire.
package stream

import (
	"encoding/json"
	"fmt"
)

// Message classification types produced by Parse. Event frames carry the
// event's own name as their type.
const (
	TypeError   = "error"
	TypeMessage = "message"
	TypeUnknown = "unknown"

	EventSuccess = "success"
	EventWrite   = "write"
	EventRead    = "read"
)

// Message is the classified form of one inbound frame.
type Message struct {
	Type    string
	Message string
	Data    json.RawMessage
}

type envelope struct {
	Error   *string         `json:"error,omitempty"`
	Event   *string         `json:"event,omitempty"`
	Message *string         `json:"message,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// Parse classifies a raw frame. Precedence: an "error" key wins, then an
// "event" key; a frame with neither is "unknown" unless it carries a
// "message" key, which reclassifies it as a plain message. A "data" key is
// carried through regardless of type. Invalid JSON is a hard failure.
func Parse(frame []byte) (Message, error) {
	var env envelope
	if err := json.Unmarshal(frame, &env); err != nil {
		return Message{}, fmt.Errorf("parsing frame: %w", err)
	}

	msg := Message{Type: TypeUnknown, Data: env.Data}
	switch {
	case env.Error != nil:
		msg.Type = TypeError
		msg.Message = *env.Error
	case env.Event != nil:
		msg.Type = *env.Event
	}
	if env.Message != nil {
		msg.Message = *env.Message
		if msg.Type == TypeUnknown {
			msg.Type = TypeMessage
		}
	}
	return msg, nil
}

// Normal encodes a plain informational frame: {"message": ...}.
func Normal(text string) []byte {
	return mustMarshal(envelope{Message: &text})
}

// Error encodes an error frame: {"error": ...}.
func Error(text string) []byte {
	return mustMarshal(envelope{Error: &text})
}

// SuccessEvent encodes a success event frame: {"event":"success","message":...}.
func SuccessEvent(text string) []byte {
	event := EventSuccess
	return mustMarshal(envelope{Event: &event, Message: &text})
}

// WriteEvent encodes the broadcast frame for a fragment write:
// {"event":"write","data":...}.
func WriteEvent(data json.RawMessage) []byte {
	event := EventWrite
	return mustMarshal(envelope{Event: &event, Data: orEmptyObject(data)})
}

// ReadEvent encodes the response frame for a read action:
// {"event":"read","data":...}.
func ReadEvent(data json.RawMessage) []byte {
	event := EventRead
	return mustMarshal(envelope{Event: &event, Data: orEmptyObject(data)})
}

func orEmptyObject(data json.RawMessage) json.RawMessage {
	if len(data) == 0 {
		return json.RawMessage(`{}`)
	}
	return data
}

// mustMarshal is safe here: envelopes contain only strings and the caller's
// already-validated raw JSON.
func mustMarshal(env envelope) []byte {
	out, err := json.Marshal(env)
	if err != nil {
		panic(fmt.Sprintf("stream: encoding envelope: %v", err))
	}
	return out
}

package ipc

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Schema tags identifying the four message kinds of the Hearo IPC
// message scheme. Every datagram on the bus is exactly one of these.
const (
	SchemaEvent  = "hearo.ipc/event"
	SchemaCmd    = "hearo.ipc/cmd"
	SchemaAck    = "hearo.ipc/ack"
	SchemaResult = "hearo.ipc/result"
)

// Version is the current IPC scheme version carried in the v field.
const Version = 1

// Payload is the open key/value body of events, commands and results.
type Payload map[string]any

// Error is the structured error carried by a failed ack or result.
type Error struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Envelope is the outer structure wrapping any event, command, ack or
// result. The Schema field decides which of the kind-specific fields
// are meaningful; the rest are left zero and omitted on the wire.
//
// Envelopes are immutable once constructed: handlers must not mutate a
// received envelope, they build new ones via the constructors.
type Envelope struct {
	Schema string `json:"schema"`
	V      int    `json:"v"`
	ID     string `json:"id"`
	TS     int64  `json:"ts"`

	// Event fields.
	Event string `json:"event,omitempty"`

	// Command fields.
	Cmd       string `json:"cmd,omitempty"`
	Reply     string `json:"reply,omitempty"`
	Origin    string `json:"origin,omitempty"`
	TimeoutMS int    `json:"timeout_ms,omitempty"`

	// Shared by events, commands and results.
	Payload Payload `json:"payload,omitempty"`

	// Ack/result fields. OK is a pointer so that events and commands
	// do not carry a spurious ok field on the wire.
	Corr  string `json:"correlates_to,omitempty"`
	OK    *bool  `json:"ok,omitempty"`
	Error *Error `json:"error,omitempty"`
}

// epochMS returns the current wall-clock time in milliseconds.
func epochMS() int64 {
	return time.Now().UnixMilli()
}

// newID builds a process-unique envelope id. The kind prefix and origin
// make ids readable in logs; the uuid suffix makes them distinguishing.
func newID(kind, origin string) string {
	return fmt.Sprintf("%s-%s-%s", kind, origin, uuid.NewString())
}

// NewEvent builds an event envelope originating from the given daemon.
func NewEvent(origin, event string, payload Payload) *Envelope {
	if payload == nil {
		payload = Payload{}
	}
	return &Envelope{
		Schema:  SchemaEvent,
		V:       Version,
		ID:      newID("evt", origin),
		TS:      epochMS(),
		Event:   event,
		Payload: payload,
	}
}

// NewCommand builds a command envelope. reply may be empty, in which
// case the receiver must not send an ack or result.
func NewCommand(origin, cmd string, payload Payload, reply string, timeout time.Duration) *Envelope {
	if payload == nil {
		payload = Payload{}
	}
	return &Envelope{
		Schema:    SchemaCmd,
		V:         Version,
		ID:        newID("cmd", origin),
		TS:        epochMS(),
		Cmd:       cmd,
		Payload:   payload,
		Reply:     reply,
		Origin:    origin,
		TimeoutMS: int(timeout.Milliseconds()),
	}
}

// NewAck builds an acknowledgement for the given command. errInfo must
// be nil when ok is true.
func NewAck(origin string, cmd *Envelope, ok bool, errInfo *Error) *Envelope {
	if ok {
		errInfo = nil
	}
	return &Envelope{
		Schema: SchemaAck,
		V:      Version,
		ID:     newID("ack", origin),
		TS:     epochMS(),
		Corr:   cmd.ID,
		OK:     &ok,
		Error:  errInfo,
	}
}

// NewResult builds a result for the given command. errInfo must be nil
// when ok is true.
func NewResult(origin string, cmd *Envelope, ok bool, payload Payload, errInfo *Error) *Envelope {
	if ok {
		errInfo = nil
	}
	if payload == nil {
		payload = Payload{}
	}
	return &Envelope{
		Schema:  SchemaResult,
		V:       Version,
		ID:      newID("res", origin),
		TS:      epochMS(),
		Corr:    cmd.ID,
		OK:      &ok,
		Payload: payload,
		Error:   errInfo,
	}
}

// IsOK reports the ok flag of an ack or result. Events and commands
// report false.
func (e *Envelope) IsOK() bool {
	return e.OK != nil && *e.OK
}

// Name returns the event or command name, whichever is set.
func (e *Envelope) Name() string {
	if e.Event != "" {
		return e.Event
	}
	return e.Cmd
}

// String returns the string payload field, or "" when absent or not a
// string. Handlers use it to validate inbound payloads defensively.
func (p Payload) String(key string) string {
	v, _ := p[key].(string)
	return v
}

// Int returns the integer payload field. JSON numbers decode as
// float64, so both representations are accepted.
func (p Payload) Int(key string) (int, bool) {
	switch v := p[key].(type) {
	case float64:
		return int(v), true
	case int:
		return v, true
	default:
		return 0, false
	}
}

// Float returns the numeric payload field as a float64.
func (p Payload) Float(key string) (float64, bool) {
	switch v := p[key].(type) {
	case float64:
		return v, true
	case int:
		return float64(v), true
	default:
		return 0, false
	}
}

// Bool returns the boolean payload field, or false when absent.
func (p Payload) Bool(key string) bool {
	v, _ := p[key].(bool)
	return v
}

// Encode serialises the envelope as compact JSON.
func (e *Envelope) Encode() ([]byte, error) {
	data, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("%w: encoding %s: %w", ErrProtocol, e.Schema, err)
	}
	return data, nil
}

// Decode parses a raw datagram into an Envelope.
//
// Malformed JSON, an unknown schema tag, or a missing name field all
// return an error wrapping ErrProtocol. Callers drop such datagrams
// with a diagnostic; they are never fatal.
func Decode(data []byte) (*Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("%w: invalid JSON: %w", ErrProtocol, err)
	}

	switch env.Schema {
	case SchemaEvent:
		if env.Event == "" {
			return nil, fmt.Errorf("%w: event envelope without event name", ErrProtocol)
		}
	case SchemaCmd:
		if env.Cmd == "" {
			return nil, fmt.Errorf("%w: cmd envelope without command name", ErrProtocol)
		}
	case SchemaAck, SchemaResult:
		if env.Corr == "" {
			return nil, fmt.Errorf("%w: %s envelope without correlates_to", ErrProtocol, env.Schema)
		}
	default:
		return nil, fmt.Errorf("%w: unknown schema %q", ErrProtocol, env.Schema)
	}

	return &env, nil
}

// Package envelope builds the uniform response shape every gateway call
// returns: a flat JSON object whose "status" key is one of success, error,
// info or failed, followed by the operation's payload fields.
package envelope

import (
	"bytes"
	"encoding/json"
	"fmt"
	"maps"
	"slices"
)

// Status is the outcome discriminator carried by every envelope.
type Status string

const (
	StatusSuccess Status = "success"
	StatusError   Status = "error"
	// StatusInfo is only produced by agi_apply_modification.
	StatusInfo Status = "info"
	// StatusFailed is the soft failure of agi_promote_skill.
	StatusFailed Status = "failed"
)

// Payload holds the operation-specific fields of an envelope.
type Payload map[string]any

// Envelope is a single call result.
type Envelope struct {
	Status  Status
	Payload Payload
}

// OK wraps a successful payload.
func OK(p Payload) Envelope {
	return Envelope{Status: StatusSuccess, Payload: p}
}

// Info wraps an informational payload.
func Info(p Payload) Envelope {
	return Envelope{Status: StatusInfo, Payload: p}
}

// Failed wraps a soft failure. The call itself worked, but the subsystem
// declined the request.
func Failed(p Payload) Envelope {
	return Envelope{Status: StatusFailed, Payload: p}
}

// Fail builds an error envelope carrying only a message.
func Fail(message string) Envelope {
	return Envelope{Status: StatusError, Payload: Payload{"message": message}}
}

// Failf is Fail with formatting.
func Failf(format string, args ...any) Envelope {
	return Fail(fmt.Sprintf(format, args...))
}

// IsError reports whether the envelope carries status "error".
func (e Envelope) IsError() bool { return e.Status == StatusError }

// Message returns the "message" payload field, or "" when absent.
func (e Envelope) Message() string {
	m, _ := e.Payload["message"].(string)
	return m
}

// MarshalJSON writes status first and the payload keys in sorted order.
// A payload key named "status" is ignored: the envelope owns that key.
func (e Envelope) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString(`{"status":`)
	status, err := json.Marshal(string(e.Status))
	if err != nil {
		return nil, err
	}
	buf.Write(status)

	for _, k := range slices.Sorted(maps.Keys(e.Payload)) {
		if k == "status" {
			continue
		}
		key, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		val, err := json.Marshal(e.Payload[k])
		if err != nil {
			return nil, fmt.Errorf("envelope: field %q: %w", k, err)
		}
		buf.WriteByte(',')
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(val)
	}

	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// Text renders the envelope as indented JSON, the form sent to callers.
// A payload that cannot be serialized degrades to an error envelope so
// that a caller always receives valid JSON.
func (e Envelope) Text() string {
	raw, err := json.Marshal(e)
	if err != nil {
		raw, _ = json.Marshal(Fail(err.Error()))
	}
	var out bytes.Buffer
	if err := json.Indent(&out, raw, "", "  "); err != nil {
		return string(raw)
	}
	return out.String()
}

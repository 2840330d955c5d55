// Package push decodes inbound Volumio push notifications.
//
// Volumio delivers pushes as raw POST bodies containing a "body:" marker
// followed by a base64-encoded JSON document. The decoder only unwraps the
// envelope; it performs no semantic validation of the data payload.
package push

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"
)

// Notification item kinds. An empty Item marks a connection-lifecycle
// notification with no state payload.
const (
	ItemState = "state"
	ItemZones = "zones"
)

const bodyMarker = "body:"

// Envelope is a decoded push notification.
type Envelope struct {
	Item string          `json:"item"`
	Data json.RawMessage `json:"data"`
}

// DecodeError reports a malformed push payload.
type DecodeError struct {
	Reason string
	Err    error
}

func (e *DecodeError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("decode push: %s: %v", e.Reason, e.Err)
	}
	return "decode push: " + e.Reason
}

func (e *DecodeError) Unwrap() error { return e.Err }

// Decode extracts the base64 JSON document after the "body:" marker and
// unmarshals it into an Envelope.
func Decode(raw []byte) (*Envelope, error) {
	idx := bytes.Index(raw, []byte(bodyMarker))
	if idx == -1 {
		return nil, &DecodeError{Reason: "missing body marker"}
	}

	encoded := bytes.TrimSpace(raw[idx+len(bodyMarker):])
	decoded, err := base64.StdEncoding.DecodeString(string(encoded))
	if err != nil {
		return nil, &DecodeError{Reason: "malformed base64", Err: err}
	}

	var envelope Envelope
	if err := json.Unmarshal(decoded, &envelope); err != nil {
		return nil, &DecodeError{Reason: "non-JSON body", Err: err}
	}

	return &envelope, nil
}

// Package event defines the records dombind emits to sinks. Consumers
// (webhooks, pipelines, the SQLite log) import this package to decode them.
package event

import (
	"encoding/json"
)

// Type discriminates envelopes on the wire.
type Type string

const (
	TypeBound Type = "bound"
	TypeScan  Type = "scan"
)

// Bound is emitted by a recording controller when it binds an element.
type Bound struct {
	ID        string `json:"id"` // UUIDv7
	Binder    string `json:"binder"`
	Selector  string `json:"selector"`
	PageURL   string `json:"page_url,omitempty"`
	Element   string `json:"element"`            // tag#id.class descriptor
	HTML      string `json:"html,omitempty"`     // sanitised outer HTML
	Markdown  string `json:"markdown,omitempty"` // Markdown rendering of HTML
	Timestamp int64  `json:"timestamp"`          // epoch milliseconds
}

// Failure is one element a scan could not bind.
type Failure struct {
	Element string `json:"element"`
	Error   string `json:"error"`
}

// Scan summarises one BindAll call.
type Scan struct {
	ID         string    `json:"id"`
	Binder     string    `json:"binder"`
	Passes     int       `json:"passes"`
	Matched    int       `json:"matched"`
	Bound      int       `json:"bound"`
	Failed     int       `json:"failed"`
	Skipped    int       `json:"skipped"`
	Coalesced  bool      `json:"coalesced,omitempty"`
	DurationMS int64     `json:"duration_ms"`
	Failures   []Failure `json:"failures,omitempty"`
	Timestamp  int64     `json:"timestamp"`
}

// Envelope wraps an event with its type for JSON-lines and webhook output.
type Envelope struct {
	Type Type `json:"type"`
	Data any  `json:"data"`
}

// Decode reads an envelope and returns *Bound or *Scan.
func Decode(data []byte) (Type, any, error) {
	var raw struct {
		Type Type            `json:"type"`
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return "", nil, err
	}
	switch raw.Type {
	case TypeBound:
		var b Bound
		if err := json.Unmarshal(raw.Data, &b); err != nil {
			return raw.Type, nil, err
		}
		return raw.Type, &b, nil
	case TypeScan:
		var s Scan
		if err := json.Unmarshal(raw.Data, &s); err != nil {
			return raw.Type, nil, err
		}
		return raw.Type, &s, nil
	default:
		return raw.Type, nil, &UnknownTypeError{Type: raw.Type}
	}
}

// UnknownTypeError reports an envelope type Decode does not know.
type UnknownTypeError struct{ Type Type }

func (e *UnknownTypeError) Error() string { return "event: unknown type " + string(e.Type) }

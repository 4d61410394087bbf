package sink

import (
	"context"
	"encoding/json"
	"io"
	"os"
	"sync"

	"github.com/hazyhaar/dombind/bindable/event"
)

// Stdout writes one JSON envelope per line to an io.Writer.
type Stdout struct {
	mu  sync.Mutex
	enc *json.Encoder
}

// NewStdout creates a Stdout sink. If w is nil, os.Stdout is used.
func NewStdout(w io.Writer) *Stdout {
	if w == nil {
		w = os.Stdout
	}
	return &Stdout{enc: json.NewEncoder(w)}
}

func (s *Stdout) SendBound(_ context.Context, ev event.Bound) error {
	return s.write(event.Envelope{Type: event.TypeBound, Data: ev})
}

func (s *Stdout) SendScan(_ context.Context, ev event.Scan) error {
	return s.write(event.Envelope{Type: event.TypeScan, Data: ev})
}

func (s *Stdout) Close() error { return nil }

func (s *Stdout) write(env event.Envelope) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.enc.Encode(env)
}

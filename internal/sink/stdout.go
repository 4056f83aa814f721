package sink

import (
	"context"
	"encoding/json"
	"io"
	"os"
	"sync"

	"github.com/hazyhaar/webaoi/locator"
	"github.com/hazyhaar/webaoi/relay"
)

// Stdout writes JSON lines to an io.Writer (default os.Stdout).
type Stdout struct {
	mu  sync.Mutex
	enc *json.Encoder
}

// NewStdout creates a Stdout sink. If w is nil, os.Stdout is used.
func NewStdout(w io.Writer) *Stdout {
	if w == nil {
		w = os.Stdout
	}
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	return &Stdout{enc: enc}
}

func (s *Stdout) SaveDefinitions(_ context.Context, doc *locator.Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.enc.Encode(envelope{Type: "definitions", Data: doc})
}

func (s *Stdout) SendEvent(_ context.Context, ev relay.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.enc.Encode(envelope{Type: "event", Data: eventLine{Event: ev.String(), Timestamp: ev.Timestamp.UnixNano()}})
}

func (s *Stdout) Close() error { return nil }

// eventLine is the JSON form of an event: the wire string plus its
// timestamp in Unix nanoseconds.
type eventLine struct {
	Event     string `json:"event"`
	Timestamp int64  `json:"ts"`
}

package host

import (
	"encoding/json"
	"fmt"
	"time"
)

// Kind names a client event.
type Kind string

const (
	KindReady        Kind = "ready"
	KindPointerEnter Kind = "pointer_enter"
	KindPointerLeave Kind = "pointer_leave"
	KindCapture      Kind = "capture"
	KindKey          Kind = "key"
	KindReveal       Kind = "reveal"
	KindSave         Kind = "save"
	KindHistory      Kind = "history"
	KindPopState     Kind = "popstate"
	KindResize       Kind = "resize"
	KindScroll       Kind = "scroll"
	KindFocus        Kind = "focus"
	KindVisible      Kind = "visible"
)

var knownKinds = map[Kind]bool{
	KindReady: true, KindPointerEnter: true, KindPointerLeave: true,
	KindCapture: true, KindKey: true, KindReveal: true, KindSave: true,
	KindHistory: true, KindPopState: true, KindResize: true,
	KindScroll: true, KindFocus: true, KindVisible: true,
}

// Event is one message from the page client.
type Event struct {
	Kind         Kind    `json:"kind"`
	Node         *Handle `json:"node,omitempty"`
	OnAffordance bool    `json:"on_affordance,omitempty"`
	Key          string  `json:"key,omitempty"`
	Page         string  `json:"page,omitempty"`
	Index        int     `json:"index,omitempty"`
	Visible      bool    `json:"visible,omitempty"`
	URL          string  `json:"url,omitempty"`

	// At is when the binding call was received.
	At time.Time `json:"-"`
}

// ParseEvent decodes a binding payload.
func ParseEvent(payload string) (Event, error) {
	var ev Event
	if err := json.Unmarshal([]byte(payload), &ev); err != nil {
		return Event{}, fmt.Errorf("host: parse event: %w", err)
	}
	if !knownKinds[ev.Kind] {
		return Event{}, fmt.Errorf("host: unknown event kind %q", ev.Kind)
	}
	return ev, nil
}

// Compress collapses runs of consecutive scroll events and runs of
// consecutive resize events to their last element. Every other event is
// structurally significant and kept in order.
func Compress(evs []Event) []Event {
	if len(evs) <= 1 {
		return evs
	}
	out := make([]Event, 0, len(evs))
	for i := 0; i < len(evs); i++ {
		ev := evs[i]
		if ev.Kind == KindScroll || ev.Kind == KindResize {
			j := i + 1
			for j < len(evs) && evs[j].Kind == ev.Kind {
				ev = evs[j]
				j++
			}
			i = j - 1
		}
		out = append(out, ev)
	}
	return out
}

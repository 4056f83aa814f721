package relay

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

// Event is one line of the recording event stream:
//
//	name[arg,arg,...]=value
//
// Args and value are optional.
type Event struct {
	Name      string    `json:"name"`
	Args      []string  `json:"args,omitempty"`
	Value     string    `json:"value,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// String formats the event in its wire form, without the timestamp.
func (e Event) String() string {
	var b strings.Builder
	b.WriteString(e.Name)
	if len(e.Args) > 0 {
		b.WriteByte('[')
		b.WriteString(strings.Join(e.Args, ","))
		b.WriteByte(']')
	}
	if e.Value != "" {
		b.WriteByte('=')
		b.WriteString(e.Value)
	}
	return b.String()
}

var eventRe = regexp.MustCompile(`^([^\[=]*)(?:\[([^\]]*)\])?(?:=(.*))?$`)

// ParseEvent parses the wire form produced by Event.String.
func ParseEvent(s string) (Event, error) {
	m := eventRe.FindStringSubmatch(s)
	if m == nil || m[1] == "" {
		return Event{}, fmt.Errorf("relay: parse event %q: malformed", s)
	}
	ev := Event{Name: m[1], Value: m[3]}
	if m[2] != "" {
		ev.Args = strings.Split(m[2], ",")
	}
	return ev, nil
}

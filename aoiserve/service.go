// Package aoiserve exposes stored webaoi sessions over HTTP and MCP: session
// listings, exported definition documents, recorded event streams and
// offline resolution of definitions against saved HTML.
package aoiserve

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/hazyhaar/webaoi/annotator"
	"github.com/hazyhaar/webaoi/internal/store"
	"github.com/hazyhaar/webaoi/kit"
	"github.com/hazyhaar/webaoi/locator"
)

var (
	// ErrNotFound is returned for unknown sessions, sessions without an
	// export and pages without definitions.
	ErrNotFound = errors.New("aoiserve: not found")
	// ErrInvalid is returned for requests missing a required field.
	ErrInvalid = errors.New("aoiserve: invalid request")
)

// DefaultLimit caps listings when the caller gives no limit.
const DefaultLimit = 100

// Service answers read queries against a store.
type Service struct {
	store  *store.Store
	logger *slog.Logger
}

// New creates a Service.
func New(st *store.Store, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{store: st, logger: logger}
}

// ListSessionsRequest filters ListSessions.
type ListSessionsRequest struct {
	Mode  string `json:"mode,omitempty"`
	Limit int    `json:"limit,omitempty"`
}

// ExportRequest selects a session.
type ExportRequest struct {
	SessionID string `json:"session_id"`
}

// EventsRequest filters Events.
type EventsRequest struct {
	SessionID string `json:"session_id"`
	Name      string `json:"name,omitempty"`
	Limit     int    `json:"limit,omitempty"`
}

// ResolveHTMLRequest resolves the AOIs of a stored export, or of an inline
// document, against HTML.
type ResolveHTMLRequest struct {
	SessionID   string            `json:"session_id,omitempty"`
	Definitions *locator.Document `json:"definitions,omitempty"`
	URL         string            `json:"url"`
	HTML        string            `json:"html"`
	Content     bool              `json:"content,omitempty"`
}

func (r ExportRequest) Session() string      { return r.SessionID }
func (r EventsRequest) Session() string      { return r.SessionID }
func (r ResolveHTMLRequest) Session() string { return r.SessionID }

// Event is the JSON form of a recorded event.
type Event struct {
	Wire      string   `json:"event"`
	Name      string   `json:"name"`
	Args      []string `json:"args,omitempty"`
	Value     string   `json:"value,omitempty"`
	Timestamp int64    `json:"ts"`
}

func limitOrDefault(n int) int {
	if n <= 0 {
		return DefaultLimit
	}
	return n
}

// ListSessions returns sessions newest first.
func (s *Service) ListSessions(ctx context.Context, req ListSessionsRequest) ([]*store.Session, error) {
	out, err := s.store.ListSessions(ctx, req.Mode, limitOrDefault(req.Limit))
	if err != nil {
		return nil, err
	}
	if out == nil {
		out = []*store.Session{}
	}
	return out, nil
}

// Export returns the latest definitions document saved by a session.
func (s *Service) Export(ctx context.Context, req ExportRequest) (*locator.Document, error) {
	if req.SessionID == "" {
		return nil, fmt.Errorf("%w: session_id is required", ErrInvalid)
	}
	doc, err := s.store.GetDocument(ctx, req.SessionID)
	if err != nil {
		return nil, err
	}
	if doc == nil {
		return nil, fmt.Errorf("%w: no export for session %s", ErrNotFound, req.SessionID)
	}
	return doc, nil
}

// Events returns a session's recorded events in emission order.
func (s *Service) Events(ctx context.Context, req EventsRequest) ([]Event, error) {
	if req.SessionID == "" {
		return nil, fmt.Errorf("%w: session_id is required", ErrInvalid)
	}
	sess, err := s.store.GetSession(ctx, req.SessionID)
	if err != nil {
		return nil, err
	}
	if sess == nil {
		return nil, fmt.Errorf("%w: session %s", ErrNotFound, req.SessionID)
	}
	evs, err := s.store.ListEvents(ctx, req.SessionID, req.Name, limitOrDefault(req.Limit))
	if err != nil {
		return nil, err
	}
	out := make([]Event, 0, len(evs))
	for _, ev := range evs {
		out = append(out, Event{
			Wire:      ev.String(),
			Name:      ev.Name,
			Args:      ev.Args,
			Value:     ev.Value,
			Timestamp: ev.Timestamp.UnixNano(),
		})
	}
	return out, nil
}

// ResolveHTML resolves definitions against a saved HTML page.
func (s *Service) ResolveHTML(ctx context.Context, req ResolveHTMLRequest) ([]annotator.Resolution, error) {
	if req.URL == "" {
		return nil, fmt.Errorf("%w: url is required", ErrInvalid)
	}
	doc := req.Definitions
	if doc == nil {
		var err error
		if doc, err = s.Export(ctx, ExportRequest{SessionID: req.SessionID}); err != nil {
			return nil, err
		}
	}
	if _, ok := doc.Page(req.URL); !ok {
		return nil, fmt.Errorf("%w: no definitions for %s", ErrNotFound, req.URL)
	}
	var opts []annotator.ResolveOption
	if req.Content {
		opts = append(opts, annotator.WithContent())
	}
	return annotator.ResolveHTML(strings.NewReader(req.HTML), doc, req.URL, opts...)
}

// endpoints adapts the service methods to kit endpoints shared by the HTTP
// and MCP transports.
type endpoints struct {
	listSessions kit.Endpoint
	export       kit.Endpoint
	events       kit.Endpoint
	resolveHTML  kit.Endpoint
}

func (s *Service) endpoints() endpoints {
	wrap := func(name string, e kit.Endpoint) kit.Endpoint {
		return kit.Chain(
			kit.Recovery(s.logger),
			kit.Logging(s.logger, name),
			kit.Timeout(30*time.Second),
		)(e)
	}
	return endpoints{
		listSessions: wrap("list_sessions", func(ctx context.Context, req any) (any, error) {
			return s.ListSessions(ctx, req.(ListSessionsRequest))
		}),
		export: wrap("export", func(ctx context.Context, req any) (any, error) {
			return s.Export(ctx, req.(ExportRequest))
		}),
		events: wrap("events", func(ctx context.Context, req any) (any, error) {
			return s.Events(ctx, req.(EventsRequest))
		}),
		resolveHTML: wrap("resolve_html", func(ctx context.Context, req any) (any, error) {
			return s.ResolveHTML(ctx, req.(ResolveHTMLRequest))
		}),
	}
}

package sink

import (
	"context"
	"log/slog"

	"github.com/hazyhaar/webaoi/locator"
	"github.com/hazyhaar/webaoi/relay"
)

// Router fans out to all configured sinks. One sink error does not block the
// others: errors are logged and the first encountered is returned.
type Router struct {
	sinks  []Sink
	logger *slog.Logger
}

// NewRouter creates a fan-out router delivering to all sinks.
func NewRouter(logger *slog.Logger, sinks ...Sink) *Router {
	if logger == nil {
		logger = slog.Default()
	}
	return &Router{sinks: sinks, logger: logger}
}

// Len returns the number of routed sinks.
func (r *Router) Len() int { return len(r.sinks) }

func (r *Router) SaveDefinitions(ctx context.Context, doc *locator.Document) error {
	var firstErr error
	for _, s := range r.sinks {
		if err := s.SaveDefinitions(ctx, doc); err != nil {
			r.logger.Warn("sink: save definitions failed", "error", err)
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

func (r *Router) SendEvent(ctx context.Context, ev relay.Event) error {
	var firstErr error
	for _, s := range r.sinks {
		if err := s.SendEvent(ctx, ev); err != nil {
			r.logger.Warn("sink: send event failed", "event", ev.Name, "error", err)
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

func (r *Router) Close() error {
	var firstErr error
	for _, s := range r.sinks {
		if err := s.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

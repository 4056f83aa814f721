package sink

import (
	"context"

	"github.com/hazyhaar/webaoi/locator"
	"github.com/hazyhaar/webaoi/relay"
)

// DefinitionsFunc is called for each export.
type DefinitionsFunc func(ctx context.Context, doc *locator.Document) error

// EventFunc is called for each recorded event.
type EventFunc func(ctx context.Context, ev relay.Event) error

// Callback delivers via Go function calls, for embedding webaoi in a
// larger process.
type Callback struct {
	onDefinitions DefinitionsFunc
	onEvent       EventFunc
}

// NewCallback creates a Callback sink. Either handler may be nil.
func NewCallback(onDefinitions DefinitionsFunc, onEvent EventFunc) *Callback {
	return &Callback{onDefinitions: onDefinitions, onEvent: onEvent}
}

func (c *Callback) SaveDefinitions(ctx context.Context, doc *locator.Document) error {
	if c.onDefinitions != nil {
		return c.onDefinitions(ctx, doc)
	}
	return nil
}

func (c *Callback) SendEvent(ctx context.Context, ev relay.Event) error {
	if c.onEvent != nil {
		return c.onEvent(ctx, ev)
	}
	return nil
}

func (c *Callback) Close() error { return nil }

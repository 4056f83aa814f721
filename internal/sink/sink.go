// Package sink defines output backends for exported AOI definitions and
// recorded events.
package sink

import (
	"context"

	"github.com/hazyhaar/webaoi/locator"
	"github.com/hazyhaar/webaoi/relay"
)

// Sink is the output interface. Define mode hands every export to
// SaveDefinitions; record mode streams through SendEvent.
type Sink interface {
	SaveDefinitions(ctx context.Context, doc *locator.Document) error
	SendEvent(ctx context.Context, ev relay.Event) error
	Close() error
}

type envelope struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

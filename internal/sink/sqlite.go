package sink

import (
	"context"

	"github.com/hazyhaar/webaoi/internal/store"
	"github.com/hazyhaar/webaoi/locator"
	"github.com/hazyhaar/webaoi/relay"
)

// SQLite persists exports and events under one store session.
type SQLite struct {
	store     *store.Store
	sessionID string
	owned     bool
}

// NewSQLite creates a SQLite sink writing under sessionID. When owned is
// true, Close also ends the session and closes the store.
func NewSQLite(s *store.Store, sessionID string, owned bool) *SQLite {
	return &SQLite{store: s, sessionID: sessionID, owned: owned}
}

// SessionID returns the store session the sink writes to.
func (s *SQLite) SessionID() string { return s.sessionID }

func (s *SQLite) SaveDefinitions(ctx context.Context, doc *locator.Document) error {
	return s.store.SaveDocument(ctx, s.sessionID, doc)
}

func (s *SQLite) SendEvent(ctx context.Context, ev relay.Event) error {
	return s.store.InsertEvent(ctx, s.sessionID, ev)
}

func (s *SQLite) Close() error {
	if !s.owned {
		return nil
	}
	s.store.EndSession(context.Background(), s.sessionID)
	return s.store.Close()
}

// Package store provides the SQLite persistence layer for webaoi sessions:
// exported definition documents and recorded event streams.
package store

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/hazyhaar/webaoi/internal/idgen"
	"github.com/hazyhaar/webaoi/locator"
	"github.com/hazyhaar/webaoi/relay"
)

// Store is the webaoi database handle.
type Store struct {
	DB *sql.DB
}

// Open opens (or creates) the database at path and applies the schema.
func Open(path string) (*Store, error) {
	db, err := openDB(path)
	if err != nil {
		return nil, err
	}
	return &Store{DB: db}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.DB.Close()
}

// Session modes.
const (
	ModeDefine = "define"
	ModeRecord = "record"
)

// Session is one define or record run.
type Session struct {
	ID        string `json:"id"`
	Mode      string `json:"mode"`
	StartURL  string `json:"start_url"`
	StartedAt int64  `json:"started_at"`
	EndedAt   int64  `json:"ended_at,omitempty"`
}

// Capture is one flattened definition of a saved document.
type Capture struct {
	ID        string            `json:"id"`
	SessionID string            `json:"session_id"`
	PageKey   string            `json:"page_key"`
	Label     string            `json:"label"`
	Chain     []locator.Locator `json:"chain"`
	Position  int               `json:"position"`
}

// CreateSession inserts a session. ID and StartedAt are filled when empty.
func (s *Store) CreateSession(ctx context.Context, sess *Session) error {
	if sess.ID == "" {
		sess.ID = idgen.Session()
	}
	if sess.StartedAt == 0 {
		sess.StartedAt = time.Now().UnixMilli()
	}
	_, err := s.DB.ExecContext(ctx, `
		INSERT INTO sessions (id, mode, start_url, started_at, ended_at)
		VALUES (?,?,?,?,?)`,
		sess.ID, sess.Mode, sess.StartURL, sess.StartedAt, sess.EndedAt)
	if err != nil {
		return fmt.Errorf("store: create session: %w", err)
	}
	return nil
}

// EndSession stamps the session end time.
func (s *Store) EndSession(ctx context.Context, id string) error {
	_, err := s.DB.ExecContext(ctx,
		`UPDATE sessions SET ended_at = ? WHERE id = ?`, time.Now().UnixMilli(), id)
	if err != nil {
		return fmt.Errorf("store: end session: %w", err)
	}
	return nil
}

// GetSession returns the session, or nil when absent.
func (s *Store) GetSession(ctx context.Context, id string) (*Session, error) {
	sess := &Session{}
	err := s.DB.QueryRowContext(ctx, `
		SELECT id, mode, start_url, started_at, ended_at
		FROM sessions WHERE id = ?`, id).Scan(
		&sess.ID, &sess.Mode, &sess.StartURL, &sess.StartedAt, &sess.EndedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("store: get session: %w", err)
	}
	return sess, nil
}

// ListSessions returns sessions newest first. limit <= 0 means no limit.
func (s *Store) ListSessions(ctx context.Context, mode string, limit int) ([]*Session, error) {
	query := `SELECT id, mode, start_url, started_at, ended_at FROM sessions`
	var args []any
	if mode != "" {
		query += ` WHERE mode = ?`
		args = append(args, mode)
	}
	query += ` ORDER BY started_at DESC, id DESC`
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("store: list sessions: %w", err)
	}
	defer rows.Close()

	var out []*Session
	for rows.Next() {
		sess := &Session{}
		if err := rows.Scan(&sess.ID, &sess.Mode, &sess.StartURL, &sess.StartedAt, &sess.EndedAt); err != nil {
			return nil, fmt.Errorf("store: scan session: %w", err)
		}
		out = append(out, sess)
	}
	return out, rows.Err()
}

// SaveDocument replaces the stored export of a session and its flattened
// captures in one transaction.
func (s *Store) SaveDocument(ctx context.Context, sessionID string, doc *locator.Document) error {
	var body bytes.Buffer
	if err := doc.Encode(&body, ""); err != nil {
		return fmt.Errorf("store: save document: %w", err)
	}

	return runTx(ctx, s.DB, func(tx *sql.Tx) error {
		now := time.Now().UnixMilli()
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO documents (session_id, body, saved_at) VALUES (?,?,?)
			ON CONFLICT(session_id) DO UPDATE SET body = excluded.body, saved_at = excluded.saved_at`,
			sessionID, body.String(), now); err != nil {
			return fmt.Errorf("store: save document: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM captures WHERE session_id = ?`, sessionID); err != nil {
			return fmt.Errorf("store: clear captures: %w", err)
		}

		pos := 0
		for _, p := range doc.Pages {
			for _, d := range p.AOIs {
				chain, err := json.Marshal(d.Chain)
				if err != nil {
					return fmt.Errorf("store: marshal chain: %w", err)
				}
				if _, err := tx.ExecContext(ctx, `
					INSERT INTO captures (id, session_id, page_key, label, chain, position)
					VALUES (?,?,?,?,?,?)`,
					idgen.Capture(), sessionID, p.URL, d.Name, string(chain), pos); err != nil {
					return fmt.Errorf("store: insert capture: %w", err)
				}
				pos++
			}
		}
		return nil
	})
}

// GetDocument returns the latest export of a session, or nil when none was
// saved.
func (s *Store) GetDocument(ctx context.Context, sessionID string) (*locator.Document, error) {
	var body string
	err := s.DB.QueryRowContext(ctx,
		`SELECT body FROM documents WHERE session_id = ?`, sessionID).Scan(&body)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("store: get document: %w", err)
	}
	var doc locator.Document
	if err := doc.UnmarshalJSON([]byte(body)); err != nil {
		return nil, fmt.Errorf("store: decode document: %w", err)
	}
	return &doc, nil
}

// ListCaptures returns the flattened definitions of a session. A non-empty
// label filters by exact label.
func (s *Store) ListCaptures(ctx context.Context, sessionID, label string) ([]*Capture, error) {
	query := `SELECT id, session_id, page_key, label, chain, position
	          FROM captures WHERE session_id = ?`
	args := []any{sessionID}
	if label != "" {
		query += ` AND label = ?`
		args = append(args, label)
	}
	query += ` ORDER BY position`

	rows, err := s.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("store: list captures: %w", err)
	}
	defer rows.Close()

	var out []*Capture
	for rows.Next() {
		c := &Capture{}
		var chain string
		if err := rows.Scan(&c.ID, &c.SessionID, &c.PageKey, &c.Label, &chain, &c.Position); err != nil {
			return nil, fmt.Errorf("store: scan capture: %w", err)
		}
		if err := json.Unmarshal([]byte(chain), &c.Chain); err != nil {
			return nil, fmt.Errorf("store: decode chain: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// InsertEvent appends a recorded event to a session.
func (s *Store) InsertEvent(ctx context.Context, sessionID string, ev relay.Event) error {
	args, _ := json.Marshal(ev.Args)
	if ev.Args == nil {
		args = []byte("[]")
	}
	_, err := s.DB.ExecContext(ctx, `
		INSERT INTO events (session_id, name, args, value, ts) VALUES (?,?,?,?,?)`,
		sessionID, ev.Name, string(args), ev.Value, ev.Timestamp.UnixNano())
	if err != nil {
		return fmt.Errorf("store: insert event: %w", err)
	}
	return nil
}

// ListEvents returns a session's events in emission order, optionally
// filtered by name. limit <= 0 means no limit.
func (s *Store) ListEvents(ctx context.Context, sessionID, name string, limit int) ([]relay.Event, error) {
	query := `SELECT name, args, value, ts FROM events WHERE session_id = ?`
	qargs := []any{sessionID}
	if name != "" {
		query += ` AND name = ?`
		qargs = append(qargs, name)
	}
	query += ` ORDER BY id`
	if limit > 0 {
		query += ` LIMIT ?`
		qargs = append(qargs, limit)
	}

	rows, err := s.DB.QueryContext(ctx, query, qargs...)
	if err != nil {
		return nil, fmt.Errorf("store: list events: %w", err)
	}
	defer rows.Close()

	var out []relay.Event
	for rows.Next() {
		var (
			ev   relay.Event
			args string
			ts   int64
		)
		if err := rows.Scan(&ev.Name, &args, &ev.Value, &ts); err != nil {
			return nil, fmt.Errorf("store: scan event: %w", err)
		}
		json.Unmarshal([]byte(args), &ev.Args)
		ev.Timestamp = time.Unix(0, ts)
		out = append(out, ev)
	}
	return out, rows.Err()
}

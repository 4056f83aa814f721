package store

// Schema contains the complete DDL for the webaoi tables.
const Schema = `
-- One define or record run.
CREATE TABLE IF NOT EXISTS sessions (
    id          TEXT PRIMARY KEY,
    mode        TEXT NOT NULL,
    start_url   TEXT NOT NULL DEFAULT '',
    started_at  INTEGER NOT NULL,
    ended_at    INTEGER NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS idx_sessions_started ON sessions(started_at DESC);

-- Latest export of a define session, verbatim.
CREATE TABLE IF NOT EXISTS documents (
    session_id  TEXT PRIMARY KEY REFERENCES sessions(id) ON DELETE CASCADE,
    body        TEXT NOT NULL,
    saved_at    INTEGER NOT NULL
);

-- Flattened definitions of the latest export, in document order.
CREATE TABLE IF NOT EXISTS captures (
    id          TEXT PRIMARY KEY,
    session_id  TEXT NOT NULL REFERENCES sessions(id) ON DELETE CASCADE,
    page_key    TEXT NOT NULL,
    label       TEXT NOT NULL,
    chain       TEXT NOT NULL,
    position    INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_captures_session ON captures(session_id, position);
CREATE INDEX IF NOT EXISTS idx_captures_label ON captures(label);

-- Recording event stream.
CREATE TABLE IF NOT EXISTS events (
    id          INTEGER PRIMARY KEY AUTOINCREMENT,
    session_id  TEXT NOT NULL REFERENCES sessions(id) ON DELETE CASCADE,
    name        TEXT NOT NULL,
    args        TEXT NOT NULL DEFAULT '[]',
    value       TEXT NOT NULL DEFAULT '',
    ts          INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_events_session ON events(session_id, id);
CREATE INDEX IF NOT EXISTS idx_events_name ON events(session_id, name);
`

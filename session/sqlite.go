package session

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/agentcraft-ai/agentcraft/core"
)

// SQLiteStore is a persistent SessionStore backed by a local SQLite
// database. State is stored as a JSON document per session and events as
// JSON rows, so sessions survive process restarts.
type SQLiteStore struct {
	db *sql.DB
}

var _ core.SessionStore = (*SQLiteStore)(nil)

// NewSQLiteStore opens (or creates) the database at path and prepares the
// schema. WAL journaling keeps concurrent readers unblocked during writes.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	store := &SQLiteStore{db: db}
	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, err
	}
	return store, nil
}

func (s *SQLiteStore) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS sessions (
		app_name   TEXT NOT NULL,
		user_id    TEXT NOT NULL,
		session_id TEXT NOT NULL,
		state      TEXT NOT NULL DEFAULT '{}',
		created    TIMESTAMP NOT NULL,
		updated    TIMESTAMP NOT NULL,
		PRIMARY KEY (app_name, user_id, session_id)
	);

	CREATE TABLE IF NOT EXISTS events (
		id         TEXT PRIMARY KEY,
		app_name   TEXT NOT NULL,
		user_id    TEXT NOT NULL,
		session_id TEXT NOT NULL,
		data       TEXT NOT NULL,
		timestamp  TIMESTAMP NOT NULL,
		FOREIGN KEY (app_name, user_id, session_id)
			REFERENCES sessions(app_name, user_id, session_id)
			ON DELETE CASCADE
	);

	CREATE INDEX IF NOT EXISTS idx_events_session
		ON events(app_name, user_id, session_id, timestamp);
	`
	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}
	return nil
}

// Close releases the underlying database handle.
func (s *SQLiteStore) Close() error { return s.db.Close() }

// Create creates (or resets) the session for key with the given initial
// state.
func (s *SQLiteStore) Create(key core.SessionKey, initialState map[string]any) (*core.Session, error) {
	if err := key.Validate(); err != nil {
		return nil, err
	}
	if initialState == nil {
		initialState = map[string]any{}
	}
	stateJSON, err := json.Marshal(initialState)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal state: %w", err)
	}

	now := time.Now().UTC()
	_, err = s.db.Exec(`
		INSERT INTO sessions (app_name, user_id, session_id, state, created, updated)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(app_name, user_id, session_id)
		DO UPDATE SET state = excluded.state, updated = excluded.updated`,
		key.AppName, key.UserID, key.SessionID, string(stateJSON), now, now,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	// Reset drops any previous history.
	if _, err := s.db.Exec(`DELETE FROM events WHERE app_name = ? AND user_id = ? AND session_id = ?`,
		key.AppName, key.UserID, key.SessionID); err != nil {
		return nil, fmt.Errorf("failed to clear events: %w", err)
	}

	return s.Get(key)
}

// Get loads the session for key or returns core.ErrSessionNotFound.
func (s *SQLiteStore) Get(key core.SessionKey) (*core.Session, error) {
	row := s.db.QueryRow(`
		SELECT state, created, updated FROM sessions
		WHERE app_name = ? AND user_id = ? AND session_id = ?`,
		key.AppName, key.UserID, key.SessionID,
	)

	var stateJSON string
	var created, updated time.Time
	if err := row.Scan(&stateJSON, &created, &updated); err != nil {
		if err == sql.ErrNoRows {
			return nil, core.ErrSessionNotFound
		}
		return nil, fmt.Errorf("failed to load session: %w", err)
	}

	sess := core.NewSession(key)
	sess.Created = created
	sess.Updated = updated
	if err := json.Unmarshal([]byte(stateJSON), &sess.State); err != nil {
		return nil, fmt.Errorf("failed to unmarshal state: %w", err)
	}

	events, err := s.loadEvents(key)
	if err != nil {
		return nil, err
	}
	sess.History = events

	return sess, nil
}

func (s *SQLiteStore) loadEvents(key core.SessionKey) ([]core.Event, error) {
	rows, err := s.db.Query(`
		SELECT data FROM events
		WHERE app_name = ? AND user_id = ? AND session_id = ?
		ORDER BY timestamp ASC, rowid ASC`,
		key.AppName, key.UserID, key.SessionID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load events: %w", err)
	}
	defer rows.Close()

	var events []core.Event
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		var ev core.Event
		if err := json.Unmarshal([]byte(data), &ev); err != nil {
			return nil, fmt.Errorf("failed to unmarshal event: %w", err)
		}
		events = append(events, ev)
	}
	return events, rows.Err()
}

// GetOrCreate returns the existing session or creates an empty one.
func (s *SQLiteStore) GetOrCreate(key core.SessionKey) (*core.Session, error) {
	sess, err := s.Get(key)
	if err == nil {
		return sess, nil
	}
	if err != core.ErrSessionNotFound {
		return nil, err
	}
	return s.Create(key, nil)
}

// List returns the session IDs stored for an app/user pair.
func (s *SQLiteStore) List(appName, userID string) ([]string, error) {
	rows, err := s.db.Query(`
		SELECT session_id FROM sessions WHERE app_name = ? AND user_id = ?
		ORDER BY updated DESC`,
		appName, userID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	defer rows.Close()

	ids := make([]string, 0)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan session id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// Delete removes the session and its events. Deleting a missing session is
// not an error.
func (s *SQLiteStore) Delete(key core.SessionKey) error {
	if _, err := s.db.Exec(`DELETE FROM events WHERE app_name = ? AND user_id = ? AND session_id = ?`,
		key.AppName, key.UserID, key.SessionID); err != nil {
		return fmt.Errorf("failed to delete events: %w", err)
	}
	if _, err := s.db.Exec(`DELETE FROM sessions WHERE app_name = ? AND user_id = ? AND session_id = ?`,
		key.AppName, key.UserID, key.SessionID); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}

// AppendEvent adds an event to the session history, creating the session if
// needed.
func (s *SQLiteStore) AppendEvent(key core.SessionKey, ev core.Event) error {
	if err := s.ensureSession(key); err != nil {
		return err
	}

	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`
		INSERT INTO events (id, app_name, user_id, session_id, data, timestamp)
		VALUES (?, ?, ?, ?, ?, ?)`,
		ev.ID, key.AppName, key.UserID, key.SessionID, string(data), ev.Timestamp,
	); err != nil {
		return fmt.Errorf("failed to insert event: %w", err)
	}
	if _, err := tx.Exec(`
		UPDATE sessions SET updated = ? WHERE app_name = ? AND user_id = ? AND session_id = ?`,
		time.Now().UTC(), key.AppName, key.UserID, key.SessionID,
	); err != nil {
		return fmt.Errorf("failed to touch session: %w", err)
	}

	return tx.Commit()
}

// ApplyDelta merges a key/value delta into the stored session state.
func (s *SQLiteStore) ApplyDelta(key core.SessionKey, delta map[string]any) error {
	if len(delta) == 0 {
		return nil
	}
	if err := s.ensureSession(key); err != nil {
		return err
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var stateJSON string
	row := tx.QueryRow(`
		SELECT state FROM sessions WHERE app_name = ? AND user_id = ? AND session_id = ?`,
		key.AppName, key.UserID, key.SessionID,
	)
	if err := row.Scan(&stateJSON); err != nil {
		return fmt.Errorf("failed to load state: %w", err)
	}

	state := map[string]any{}
	if err := json.Unmarshal([]byte(stateJSON), &state); err != nil {
		return fmt.Errorf("failed to unmarshal state: %w", err)
	}
	for k, v := range delta {
		state[k] = v
	}
	merged, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("failed to marshal state: %w", err)
	}

	if _, err := tx.Exec(`
		UPDATE sessions SET state = ?, updated = ? WHERE app_name = ? AND user_id = ? AND session_id = ?`,
		string(merged), time.Now().UTC(), key.AppName, key.UserID, key.SessionID,
	); err != nil {
		return fmt.Errorf("failed to update state: %w", err)
	}

	return tx.Commit()
}

// ensureSession inserts an empty session row if none exists for key.
func (s *SQLiteStore) ensureSession(key core.SessionKey) error {
	if err := key.Validate(); err != nil {
		return err
	}
	now := time.Now().UTC()
	_, err := s.db.Exec(`
		INSERT INTO sessions (app_name, user_id, session_id, state, created, updated)
		VALUES (?, ?, ?, '{}', ?, ?)
		ON CONFLICT(app_name, user_id, session_id) DO NOTHING`,
		key.AppName, key.UserID, key.SessionID, now, now,
	)
	if err != nil {
		return fmt.Errorf("failed to ensure session: %w", err)
	}
	return nil
}

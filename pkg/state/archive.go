package state

import (
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteArchive persists messages evicted by pruning and stored tool
// results in a local SQLite database, so a pruned prompt window never
// means lost history.
type SQLiteArchive struct {
	db *sql.DB
}

// NewSQLiteArchive opens (and migrates) the archive database at path.
// Use ":memory:" for an ephemeral archive.
func NewSQLiteArchive(path string) (*SQLiteArchive, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open archive %s: %w", path, err)
	}
	a := &SQLiteArchive{db: db}
	if err := a.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return a, nil
}

func (a *SQLiteArchive) migrate() error {
	const schema = `
CREATE TABLE IF NOT EXISTS archived_messages (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	run_id      TEXT NOT NULL,
	role        TEXT NOT NULL,
	content     TEXT NOT NULL,
	archived_at TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_archived_messages_run ON archived_messages(run_id);

CREATE TABLE IF NOT EXISTS tool_results (
	run_id      TEXT NOT NULL,
	key         TEXT NOT NULL,
	result      TEXT NOT NULL,
	archived_at TIMESTAMP NOT NULL,
	PRIMARY KEY (run_id, key)
);`
	if _, err := a.db.Exec(schema); err != nil {
		return fmt.Errorf("migrate archive: %w", err)
	}
	return nil
}

// ArchiveMessages stores evicted messages for the given run
func (a *SQLiteArchive) ArchiveMessages(runID string, messages []Message) error {
	if len(messages) == 0 {
		return nil
	}

	tx, err := a.db.Begin()
	if err != nil {
		return fmt.Errorf("archive messages: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(
		"INSERT INTO archived_messages (run_id, role, content, archived_at) VALUES (?, ?, ?, ?)")
	if err != nil {
		return fmt.Errorf("archive messages: %w", err)
	}
	defer stmt.Close()

	now := time.Now().UTC()
	for _, msg := range messages {
		if _, err := stmt.Exec(runID, msg.Role, msg.Content, now); err != nil {
			return fmt.Errorf("archive messages: %w", err)
		}
	}
	return tx.Commit()
}

// ArchiveToolResult upserts a tool result for the given run and key
func (a *SQLiteArchive) ArchiveToolResult(runID, key, result string) error {
	_, err := a.db.Exec(`
INSERT INTO tool_results (run_id, key, result, archived_at) VALUES (?, ?, ?, ?)
ON CONFLICT (run_id, key) DO UPDATE SET result = excluded.result, archived_at = excluded.archived_at`,
		runID, key, result, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("archive tool result %s/%s: %w", runID, key, err)
	}
	return nil
}

// Messages returns the archived messages for a run in archival order
func (a *SQLiteArchive) Messages(runID string) ([]Message, error) {
	rows, err := a.db.Query(
		"SELECT role, content FROM archived_messages WHERE run_id = ? ORDER BY id", runID)
	if err != nil {
		return nil, fmt.Errorf("read archived messages: %w", err)
	}
	defer rows.Close()

	var out []Message
	for rows.Next() {
		var msg Message
		if err := rows.Scan(&msg.Role, &msg.Content); err != nil {
			return nil, fmt.Errorf("read archived messages: %w", err)
		}
		out = append(out, msg)
	}
	return out, rows.Err()
}

// ToolResults returns the archived tool results for a run keyed by
// "step_<id>"
func (a *SQLiteArchive) ToolResults(runID string) (map[string]string, error) {
	rows, err := a.db.Query(
		"SELECT key, result FROM tool_results WHERE run_id = ?", runID)
	if err != nil {
		return nil, fmt.Errorf("read tool results: %w", err)
	}
	defer rows.Close()

	out := make(map[string]string)
	for rows.Next() {
		var key, result string
		if err := rows.Scan(&key, &result); err != nil {
			return nil, fmt.Errorf("read tool results: %w", err)
		}
		out[key] = result
	}
	return out, rows.Err()
}

// Close closes the underlying database
func (a *SQLiteArchive) Close() error {
	return a.db.Close()
}

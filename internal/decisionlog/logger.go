// Package decisionlog persists one row per LLM-consulted controller decision
// to a local SQLite database, for offline review of what an NPC decided and
// why. Movement-continuation ticks, which skip the LLM, are not logged.
// It is an observability sink, not game state: nothing here is read back
// into a running controller.
package decisionlog

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// Entry is one recorded decision.
type Entry struct {
	ID          int       `json:"id"`
	DecisionID  string    `json:"decision_id"`
	Timestamp   time.Time `json:"timestamp"`
	NPCID       string    `json:"npc_id"`
	Observation string    `json:"observation"`
	RawResponse string    `json:"raw_response"`
	Action      string    `json:"action"`
	Result      string    `json:"result"`
	Metadata    string    `json:"metadata"`
	Rating      *int      `json:"rating,omitempty"`
	Notes       *string   `json:"notes,omitempty"`
}

// Metadata captures timing/wire-mode facts about one decision.
type Metadata struct {
	Mode         string        `json:"mode"` // "tool_call" | "json"
	Model        string        `json:"model"`
	ResponseTime time.Duration `json:"response_time_ms"`
	Retries      int           `json:"retries"`
	Error        *string       `json:"error,omitempty"`
}

// Logger is a SQLite-backed append-only decision log.
type Logger struct {
	db *sql.DB
}

// New opens (or creates) the decision log database at path.
func New(path string) (*Logger, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open decision log database: %w", err)
	}

	logger := &Logger{db: db}
	if err := logger.createTables(); err != nil {
		return nil, fmt.Errorf("failed to create decision log tables: %w", err)
	}

	return logger, nil
}

func (l *Logger) createTables() error {
	schema := `
	CREATE TABLE IF NOT EXISTS decisions (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		decision_id TEXT NOT NULL,
		timestamp DATETIME DEFAULT CURRENT_TIMESTAMP,
		npc_id TEXT NOT NULL,
		observation TEXT NOT NULL,
		raw_response TEXT NOT NULL,
		action TEXT NOT NULL,
		result TEXT NOT NULL,
		metadata TEXT NOT NULL,
		rating INTEGER,
		notes TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_decisions_npc_timestamp ON decisions(npc_id, timestamp);
	`

	_, err := l.db.Exec(schema)
	return err
}

// Log appends one decision row. observation and action are pre-serialized
// JSON strings; the caller owns their shape (see controller.Tick).
func (l *Logger) Log(decisionID, npcID, observation, rawResponse, action, result string, metadata Metadata) error {
	metadataJSON, err := json.Marshal(metadata)
	if err != nil {
		return fmt.Errorf("failed to marshal decision metadata: %w", err)
	}

	_, err = l.db.Exec(`
		INSERT INTO decisions (decision_id, npc_id, observation, raw_response, action, result, metadata)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, decisionID, npcID, observation, rawResponse, action, result, string(metadataJSON))

	return err
}

// Recent returns the most recent n decisions, newest first.
func (l *Logger) Recent(n int) ([]Entry, error) {
	rows, err := l.db.Query(`
		SELECT id, decision_id, timestamp, npc_id, observation, raw_response, action, result, metadata, rating, notes
		FROM decisions
		ORDER BY id DESC
		LIMIT ?
	`, n)
	if err != nil {
		return nil, fmt.Errorf("failed to query decisions: %w", err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.ID, &e.DecisionID, &e.Timestamp, &e.NPCID, &e.Observation, &e.RawResponse, &e.Action, &e.Result, &e.Metadata, &e.Rating, &e.Notes); err != nil {
			return nil, fmt.Errorf("failed to scan decision row: %w", err)
		}
		out = append(out, e)
	}

	return out, rows.Err()
}

// Rate attaches a 1-5 rating and optional notes to a decision, for manual
// review workflows (cmd/npcwatch's "rate" mode).
func (l *Logger) Rate(id, rating int, notes string) error {
	if rating < 1 || rating > 5 {
		return fmt.Errorf("rating must be between 1 and 5, got %d", rating)
	}

	var err error
	if notes != "" {
		_, err = l.db.Exec(`UPDATE decisions SET rating = ?, notes = ? WHERE id = ?`, rating, notes, id)
	} else {
		_, err = l.db.Exec(`UPDATE decisions SET rating = ? WHERE id = ?`, rating, id)
	}
	return err
}

// Close releases the underlying database handle.
func (l *Logger) Close() error {
	return l.db.Close()
}

package decisionlog

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

// DecisionLogStore keeps an audit trail of every reasoning call: prompts,
// raw output, parsed selections and errors.
type DecisionLogStore struct {
	mu   sync.Mutex
	db   *sql.DB
	path string
}

// Record is one reasoning call.
type Record struct {
	ID         int64          `json:"id"`
	TraceID    string         `json:"trace_id"`
	Timestamp  int64          `json:"ts"`
	GameID     string         `json:"game_id"`
	ProviderID string         `json:"provider_id"`
	System     string         `json:"system_prompt"`
	User       string         `json:"user_prompt"`
	RawOutput  string         `json:"raw_output"`
	RawJSON    string         `json:"raw_json"`
	Selections map[string]int `json:"selections,omitempty"`
	Degenerate bool           `json:"degenerate"`
	Error      string         `json:"error,omitempty"`
}

// Query filters ListDecisions. Zero values match everything.
type Query struct {
	GameID   string
	Provider string
	TraceID  string
	Limit    int
}

const defaultListLimit = 50

func NewDecisionLogStore(path string) (*DecisionLogStore, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, fmt.Errorf("decision log path cannot be empty")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&cache=shared", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(2)
	db.SetMaxIdleConns(2)
	if err := ensureSchema(db); err != nil {
		db.Close()
		return nil, err
	}
	return &DecisionLogStore{db: db, path: path}, nil
}

func (s *DecisionLogStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

func ensureSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS decision_logs (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			trace_id TEXT NOT NULL,
			ts INTEGER NOT NULL,
			game_id TEXT,
			provider_id TEXT,
			system_prompt TEXT,
			user_prompt TEXT,
			raw_output TEXT,
			raw_json TEXT,
			selections_json TEXT,
			error TEXT,
			created_at INTEGER NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_decision_logs_game ON decision_logs(game_id, id DESC);`,
		`CREATE INDEX IF NOT EXISTS idx_decision_logs_trace ON decision_logs(trace_id);`,
	}
	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			return err
		}
	}
	return addColumnIfMissing(db, "decision_logs", "degenerate", "INTEGER NOT NULL DEFAULT 0")
}

func addColumnIfMissing(db *sql.DB, table, column, typ string) error {
	rows, err := db.Query(fmt.Sprintf("PRAGMA table_info(%s)", table))
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var cid, notnull, pk int
		var name, ctype string
		var dflt sql.NullString
		if err := rows.Scan(&cid, &name, &ctype, &notnull, &dflt, &pk); err != nil {
			return err
		}
		if strings.EqualFold(name, column) {
			return nil
		}
	}
	if err := rows.Err(); err != nil {
		return err
	}
	_, err = db.Exec(fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s %s", table, column, typ))
	return err
}

func (s *DecisionLogStore) handle() (*sql.DB, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db == nil {
		return nil, fmt.Errorf("decision log store is closed")
	}
	return s.db, nil
}

// Insert writes one record and returns its row id.
func (s *DecisionLogStore) Insert(ctx context.Context, rec Record) (int64, error) {
	db, err := s.handle()
	if err != nil {
		return 0, err
	}
	now := time.Now().UnixMilli()
	if rec.Timestamp == 0 {
		rec.Timestamp = now
	}
	var selections string
	if len(rec.Selections) > 0 {
		buf, err := json.Marshal(rec.Selections)
		if err != nil {
			return 0, err
		}
		selections = string(buf)
	}
	res, err := db.ExecContext(ctx, `
		INSERT INTO decision_logs
			(trace_id, ts, game_id, provider_id, system_prompt, user_prompt,
			 raw_output, raw_json, selections_json, error, degenerate, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.TraceID, rec.Timestamp, rec.GameID, rec.ProviderID, rec.System, rec.User,
		rec.RawOutput, rec.RawJSON, selections, rec.Error, boolToInt(rec.Degenerate), now,
	)
	if err != nil {
		return 0, fmt.Errorf("insert decision log: %w", err)
	}
	return res.LastInsertId()
}

// ListDecisions returns matching records, newest first.
func (s *DecisionLogStore) ListDecisions(ctx context.Context, q Query) ([]Record, error) {
	db, err := s.handle()
	if err != nil {
		return nil, err
	}
	where, args := buildFilter(q)
	limit := q.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}
	args = append(args, limit)
	rows, err := db.QueryContext(ctx, `
		SELECT id, trace_id, ts, game_id, provider_id, system_prompt, user_prompt,
		       raw_output, raw_json, selections_json, error, degenerate
		FROM decision_logs`+where+`
		ORDER BY id DESC
		LIMIT ?`, args...)
	if err != nil {
		return nil, fmt.Errorf("list decision logs: %w", err)
	}
	defer rows.Close()
	var out []Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func buildFilter(q Query) (string, []any) {
	var clauses []string
	var args []any
	if v := strings.TrimSpace(q.GameID); v != "" {
		clauses = append(clauses, "game_id = ?")
		args = append(args, v)
	}
	if v := strings.TrimSpace(q.Provider); v != "" {
		clauses = append(clauses, "provider_id = ?")
		args = append(args, v)
	}
	if v := strings.TrimSpace(q.TraceID); v != "" {
		clauses = append(clauses, "trace_id = ?")
		args = append(args, v)
	}
	if len(clauses) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (Record, error) {
	var rec Record
	var gameID, provider, system, user, raw, rawJSON, selections, errText sql.NullString
	var degenerate sql.NullInt64
	if err := row.Scan(&rec.ID, &rec.TraceID, &rec.Timestamp, &gameID, &provider, &system, &user,
		&raw, &rawJSON, &selections, &errText, &degenerate); err != nil {
		return Record{}, err
	}
	rec.GameID = gameID.String
	rec.ProviderID = provider.String
	rec.System = system.String
	rec.User = user.String
	rec.RawOutput = raw.String
	rec.RawJSON = rawJSON.String
	rec.Error = errText.String
	rec.Degenerate = degenerate.Int64 != 0
	if selections.String != "" {
		_ = json.Unmarshal([]byte(selections.String), &rec.Selections)
	}
	return rec, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

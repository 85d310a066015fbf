package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS records (
	id             TEXT PRIMARY KEY,
	created_at     DATETIME NOT NULL,
	kind           TEXT NOT NULL,
	operation      TEXT NOT NULL DEFAULT '',
	provider       TEXT NOT NULL DEFAULT '',
	model          TEXT NOT NULL DEFAULT '',
	elapsed        REAL NOT NULL DEFAULT 0,
	input_tokens   INTEGER NOT NULL DEFAULT 0,
	output_tokens  INTEGER NOT NULL DEFAULT 0,
	cost_usd       REAL NOT NULL DEFAULT 0,
	error          TEXT NOT NULL DEFAULT '',
	body           TEXT NOT NULL DEFAULT '{}'
);

CREATE INDEX IF NOT EXISTS idx_records_created ON records(created_at);
CREATE INDEX IF NOT EXISTS idx_records_provider ON records(provider, operation);
`

// Store persists records in SQLite so they can be aggregated later.
type Store struct {
	conn *sql.DB
}

// OpenStore opens (or creates) the database at dsn and applies the schema.
func OpenStore(dsn string) (*Store, error) {
	conn, err := sql.Open("sqlite3", dsn+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("audit: open db: %w", err)
	}
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("audit: ping: %w", err)
	}
	if _, err := conn.Exec(schemaSQL); err != nil {
		conn.Close()
		return nil, fmt.Errorf("audit: apply schema: %w", err)
	}
	return &Store{conn: conn}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.conn.Close()
}

// Write inserts rec. The full record is kept as JSON in the body column.
func (s *Store) Write(ctx context.Context, rec Record) error {
	body, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("audit: encode record: %w", err)
	}

	var m Metrics
	if rec.Metrics != nil {
		m = *rec.Metrics
	}

	_, err = s.conn.ExecContext(ctx, `
		INSERT INTO records (id, created_at, kind, operation, provider, model,
			elapsed, input_tokens, output_tokens, cost_usd, error, body)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.Time.UTC(), string(rec.Kind), rec.Operation, rec.Provider, rec.Model,
		m.ElapsedSeconds, m.InputTokens, m.OutputTokens, m.CostUSD, rec.Error, string(body))
	if err != nil {
		return fmt.Errorf("audit: insert record: %w", err)
	}
	return nil
}

// ProviderStats aggregates records for one provider and operation.
type ProviderStats struct {
	Provider     string  `json:"provider"`
	Operation    string  `json:"operation"`
	Calls        int64   `json:"calls"`
	Errors       int64   `json:"errors"`
	ParseFails   int64   `json:"parse_failures"`
	AvgElapsed   float64 `json:"avg_elapsed_seconds"`
	InputTokens  int64   `json:"input_tokens"`
	OutputTokens int64   `json:"output_tokens"`
	CostUSD      float64 `json:"cost_usd"`
}

// Stats aggregates records created at or after since. A zero since means all records.
func (s *Store) Stats(ctx context.Context, since time.Time) ([]ProviderStats, error) {
	rows, err := s.conn.QueryContext(ctx, `
		SELECT provider, operation,
			COUNT(*),
			SUM(CASE WHEN kind = 'error' THEN 1 ELSE 0 END),
			SUM(CASE WHEN kind = 'parse_failure' THEN 1 ELSE 0 END),
			COALESCE(AVG(elapsed), 0),
			COALESCE(SUM(input_tokens), 0),
			COALESCE(SUM(output_tokens), 0),
			COALESCE(SUM(cost_usd), 0)
		FROM records
		WHERE created_at >= ?
		GROUP BY provider, operation
		ORDER BY provider, operation`, since.UTC())
	if err != nil {
		return nil, fmt.Errorf("audit: query stats: %w", err)
	}
	defer rows.Close()

	var out []ProviderStats
	for rows.Next() {
		var ps ProviderStats
		if err := rows.Scan(&ps.Provider, &ps.Operation, &ps.Calls, &ps.Errors, &ps.ParseFails,
			&ps.AvgElapsed, &ps.InputTokens, &ps.OutputTokens, &ps.CostUSD); err != nil {
			return nil, fmt.Errorf("audit: scan stats: %w", err)
		}
		out = append(out, ps)
	}
	return out, rows.Err()
}

// Recent returns the latest n records, newest first.
func (s *Store) Recent(ctx context.Context, n int) ([]Record, error) {
	rows, err := s.conn.QueryContext(ctx,
		`SELECT body FROM records ORDER BY created_at DESC LIMIT ?`, n)
	if err != nil {
		return nil, fmt.Errorf("audit: query recent: %w", err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		var body string
		if err := rows.Scan(&body); err != nil {
			return nil, fmt.Errorf("audit: scan record: %w", err)
		}
		var rec Record
		if err := json.Unmarshal([]byte(body), &rec); err != nil {
			return nil, fmt.Errorf("audit: decode record: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

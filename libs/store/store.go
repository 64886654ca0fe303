// Package store persists a best-effort request/attempt journal in
// SQLite for diagnostics. It is never consulted on the request hot path.
package store

import (
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/jacky-htg/ai-gateway/libs/gateway"
)

type Store struct {
	DB *sql.DB
}

func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	s := &Store{DB: db}
	if err := s.migrate(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Store) Close() error {
	if s.DB == nil {
		return nil
	}
	return s.DB.Close()
}

func (s *Store) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS requests (
			id TEXT PRIMARY KEY,
			capability TEXT,
			model TEXT,
			method TEXT,
			status TEXT,
			content_chars INTEGER,
			created_at INTEGER
		);`,
		`CREATE TABLE IF NOT EXISTS attempts (
			request_id TEXT,
			seq INTEGER,
			provider TEXT,
			status TEXT,
			error_kind TEXT,
			error_message TEXT,
			started_at INTEGER,
			ended_at INTEGER,
			PRIMARY KEY (request_id, seq)
		);`,
	}
	for _, q := range stmts {
		if _, err := s.DB.Exec(q); err != nil {
			return err
		}
	}
	return nil
}

// RecordRequest inserts the request row in "running" state.
func (s *Store) RecordRequest(req gateway.Request) error {
	_, err := s.DB.Exec(
		`INSERT INTO requests(id, capability, model, status, created_at) VALUES(?,?,?,?,?)`,
		req.ID, string(req.Capability), req.Model, "running", time.Now().Unix(),
	)
	return err
}

// FinishRequest stamps the terminal state of a request.
func (s *Store) FinishRequest(id, method, status string, contentChars int) error {
	res, err := s.DB.Exec(
		`UPDATE requests SET method = ?, status = ?, content_chars = ? WHERE id = ?`,
		method, status, contentChars, id,
	)
	if err != nil {
		return err
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return fmt.Errorf("request not found: %s", id)
	}
	return nil
}

// RecordAttempts writes the ordered attempt rows for a request.
func (s *Store) RecordAttempts(requestID string, attempts []gateway.Attempt) error {
	for i, a := range attempts {
		_, err := s.DB.Exec(
			`INSERT INTO attempts(request_id, seq, provider, status, error_kind, error_message, started_at, ended_at)
			 VALUES(?,?,?,?,?,?,?,?)`,
			requestID, i, a.Provider, string(a.Status), string(a.ErrorKind), a.Message,
			a.StartedAt.UnixMilli(), a.EndedAt.UnixMilli(),
		)
		if err != nil {
			return err
		}
	}
	return nil
}

// RequestRow is a journaled request.
type RequestRow struct {
	ID           string `json:"id"`
	Capability   string `json:"capability"`
	Model        string `json:"model"`
	Method       string `json:"method"`
	Status       string `json:"status"`
	ContentChars int    `json:"content_chars"`
	CreatedAt    int64  `json:"created_at"`
}

// AttemptRow is one journaled attempt.
type AttemptRow struct {
	Seq          int    `json:"seq"`
	Provider     string `json:"provider"`
	Status       string `json:"status"`
	ErrorKind    string `json:"error_kind,omitempty"`
	ErrorMessage string `json:"error_message,omitempty"`
	StartedAt    int64  `json:"started_at"`
	EndedAt      int64  `json:"ended_at"`
}

// GetRequest returns a journaled request and its ordered attempts.
func (s *Store) GetRequest(id string) (RequestRow, []AttemptRow, error) {
	var (
		row          RequestRow
		method       sql.NullString
		contentChars sql.NullInt64
	)
	r := s.DB.QueryRow(`SELECT id, capability, model, method, status, content_chars, created_at FROM requests WHERE id = ?`, id)
	if err := r.Scan(&row.ID, &row.Capability, &row.Model, &method, &row.Status, &contentChars, &row.CreatedAt); err != nil {
		return RequestRow{}, nil, err
	}
	row.Method = method.String
	row.ContentChars = int(contentChars.Int64)

	rows, err := s.DB.Query(`SELECT seq, provider, status, error_kind, error_message, started_at, ended_at FROM attempts WHERE request_id = ? ORDER BY seq`, id)
	if err != nil {
		return RequestRow{}, nil, err
	}
	defer rows.Close()

	var attempts []AttemptRow
	for rows.Next() {
		var a AttemptRow
		if err := rows.Scan(&a.Seq, &a.Provider, &a.Status, &a.ErrorKind, &a.ErrorMessage, &a.StartedAt, &a.EndedAt); err != nil {
			return RequestRow{}, nil, err
		}
		attempts = append(attempts, a)
	}
	return row, attempts, rows.Err()
}

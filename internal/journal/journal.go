// Package journal keeps an audit trail of events relayed to websocket
// subscribers. The Postgres journal is optional; Nop is used without a database.
package journal

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

type Event struct {
	ID        int64           `json:"id"`
	Event     string          `json:"event"`
	Data      json.RawMessage `json:"data"`
	CreatedAt time.Time       `json:"created_at"`
}

type Journal interface {
	Record(ctx context.Context, event string, data json.RawMessage) error
	Recent(ctx context.Context, limit int) ([]Event, error)
}

const schema = `
CREATE TABLE IF NOT EXISTS forwarded_events (
	id         BIGSERIAL PRIMARY KEY,
	event      TEXT NOT NULL,
	data       JSONB NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
)`

type PostgresJournal struct {
	DB *sql.DB
}

func NewPostgresJournal(db *sql.DB) *PostgresJournal {
	return &PostgresJournal{DB: db}
}

func (j *PostgresJournal) EnsureSchema(ctx context.Context) error {
	if _, err := j.DB.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("create forwarded_events table: %w", err)
	}
	return nil
}

func (j *PostgresJournal) Record(ctx context.Context, event string, data json.RawMessage) error {
	if len(data) == 0 {
		data = json.RawMessage(`null`)
	}
	_, err := j.DB.ExecContext(ctx,
		`INSERT INTO forwarded_events (event, data, created_at) VALUES ($1, $2, NOW())`,
		event, string(data))
	if err != nil {
		return fmt.Errorf("record event %s: %w", event, err)
	}
	return nil
}

// Recent returns up to limit events, newest first.
func (j *PostgresJournal) Recent(ctx context.Context, limit int) ([]Event, error) {
	rows, err := j.DB.QueryContext(ctx,
		`SELECT id, event, data, created_at FROM forwarded_events ORDER BY created_at DESC, id DESC LIMIT $1`,
		limit)
	if err != nil {
		return nil, fmt.Errorf("query recent events: %w", err)
	}
	defer rows.Close()

	events := make([]Event, 0, limit)
	for rows.Next() {
		var e Event
		var data []byte
		if err := rows.Scan(&e.ID, &e.Event, &data, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		e.Data = json.RawMessage(data)
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate events: %w", err)
	}
	return events, nil
}

// Nop discards everything.
type Nop struct{}

func (Nop) Record(context.Context, string, json.RawMessage) error { return nil }

func (Nop) Recent(context.Context, int) ([]Event, error) { return []Event{}, nil }

package service

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"signal_bot/internal/models"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS journal_events (
	id        INTEGER PRIMARY KEY AUTOINCREMENT,
	at        TEXT NOT NULL,
	kind      TEXT NOT NULL,
	severity  TEXT NOT NULL,
	order_id  TEXT NOT NULL DEFAULT '',
	chain_id  TEXT NOT NULL DEFAULT '',
	status    TEXT NOT NULL DEFAULT '',
	message   TEXT NOT NULL DEFAULT '',
	payload   TEXT NOT NULL
)`

const sqliteIndex = `CREATE INDEX IF NOT EXISTS idx_journal_events_order ON journal_events(order_id)`

// SQLiteJournal хранит события в локальном файле базы (modernc, без cgo).
type SQLiteJournal struct {
	db *sql.DB
}

func NewSQLiteJournal(ctx context.Context, db *sql.DB) (*SQLiteJournal, error) {
	for _, stmt := range []string{sqliteSchema, sqliteIndex} {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return nil, fmt.Errorf("SQLiteJournal: migrate: %w", err)
		}
	}
	return &SQLiteJournal{db: db}, nil
}

func (j *SQLiteJournal) Append(ctx context.Context, ev models.Event) (err error) {
	defer func() {
		if err != nil {
			err = fmt.Errorf("SQLiteJournal.Append: %w", err)
		}
	}()
	r, err := toRecord(ev)
	if err != nil {
		return err
	}
	_, err = j.db.ExecContext(ctx,
		`INSERT INTO journal_events (at, kind, severity, order_id, chain_id, status, message, payload)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		r.At.Format(time.RFC3339Nano), r.Kind, r.Severity, r.OrderID, r.ChainID, r.Status, r.Message, string(r.Payload),
	)
	return err
}

func (j *SQLiteJournal) Recent(ctx context.Context, limit int) (events []models.Event, err error) {
	defer func() {
		if err != nil {
			err = fmt.Errorf("SQLiteJournal.Recent: %w", err)
		}
	}()
	rows, err := j.db.QueryContext(ctx, `SELECT payload FROM journal_events ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var payload string
		if err = rows.Scan(&payload); err != nil {
			return nil, err
		}
		ev, err := fromPayload([]byte(payload))
		if err != nil {
			return nil, err
		}
		events = append(events, ev)
	}
	return events, rows.Err()
}

func (j *SQLiteJournal) Close() error { return j.db.Close() }

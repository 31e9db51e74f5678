package service

import (
	"context"
	"fmt"

	"signal_bot/internal/models"
	"signal_bot/pkg/db"
)

const pgSchema = `
CREATE TABLE IF NOT EXISTS journal_events (
	id        BIGSERIAL PRIMARY KEY,
	at        TIMESTAMPTZ NOT NULL,
	kind      TEXT NOT NULL,
	severity  TEXT NOT NULL,
	order_id  TEXT NOT NULL DEFAULT '',
	chain_id  TEXT NOT NULL DEFAULT '',
	status    TEXT NOT NULL DEFAULT '',
	message   TEXT NOT NULL DEFAULT '',
	payload   JSONB NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_journal_events_order ON journal_events(order_id);
`

// PgJournal пишет события в postgres через общий TxManager.
type PgJournal struct {
	tx db.TxManager
}

func NewPgJournal(ctx context.Context, tx db.TxManager) (*PgJournal, error) {
	err := tx.RunMaster(ctx, func(ctx context.Context, t db.Transaction) error {
		_, err := t.Exec(ctx, pgSchema)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("PgJournal: migrate: %w", err)
	}
	return &PgJournal{tx: tx}, nil
}

func (j *PgJournal) Append(ctx context.Context, ev models.Event) (err error) {
	defer func() {
		if err != nil {
			err = fmt.Errorf("PgJournal.Append: %w", err)
		}
	}()
	r, err := toRecord(ev)
	if err != nil {
		return err
	}
	return j.tx.RunMaster(ctx, func(ctx context.Context, t db.Transaction) error {
		_, err := t.Exec(ctx,
			`INSERT INTO journal_events (at, kind, severity, order_id, chain_id, status, message, payload)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
			r.At, r.Kind, r.Severity, r.OrderID, r.ChainID, r.Status, r.Message, r.Payload,
		)
		return err
	})
}

func (j *PgJournal) Recent(ctx context.Context, limit int) (events []models.Event, err error) {
	defer func() {
		if err != nil {
			err = fmt.Errorf("PgJournal.Recent: %w", err)
		}
	}()
	err = j.tx.RunMaster(ctx, func(ctx context.Context, t db.Transaction) error {
		rows, err := t.Query(ctx, `SELECT payload FROM journal_events ORDER BY id DESC LIMIT $1`, limit)
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			var payload []byte
			if err := rows.Scan(&payload); err != nil {
				return err
			}
			ev, err := fromPayload(payload)
			if err != nil {
				return err
			}
			events = append(events, ev)
		}
		return rows.Err()
	})
	return events, err
}

// Close: пулом владеет postgres-модуль.
func (j *PgJournal) Close() error { return nil }

package payments

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
)

const ledgerSchema = `
CREATE TABLE IF NOT EXISTS payment_events (
	event_id    TEXT PRIMARY KEY,
	event_name  TEXT NOT NULL,
	user_id     INTEGER NOT NULL,
	amount      INTEGER NOT NULL DEFAULT 0,
	currency    TEXT NOT NULL DEFAULT '',
	received_at TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_payment_events_user ON payment_events(user_id);
`

// Ledger is the durable record of every accepted payment event. It is the
// idempotency barrier for webhook delivery: the provider retries until it
// gets a 2xx, so the same event can arrive more than once.
type Ledger struct {
	db *sql.DB
}

// OpenLedger opens (creating if needed) the SQLite ledger at path.
func OpenLedger(path string) (*Ledger, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open payment ledger: %w", err)
	}
	if _, err := db.Exec(ledgerSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate payment ledger: %w", err)
	}
	return &Ledger{db: db}, nil
}

// Record stores the event and reports whether it was seen for the first
// time. Events without a provider ID get a generated one, which makes
// them always-first; the provider is expected to send IDs.
func (l *Ledger) Record(ctx context.Context, event *Event) (bool, error) {
	eventID := event.Payload.EventID
	if eventID == "" {
		eventID = uuid.NewString()
	}

	res, err := l.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO payment_events
		 (event_id, event_name, user_id, amount, currency, received_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		eventID,
		event.Name,
		event.Payload.TelegramUserID,
		event.Payload.Amount,
		event.Payload.Currency,
		time.Now().UTC(),
	)
	if err != nil {
		return false, fmt.Errorf("failed to record payment event: %w", err)
	}

	inserted, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read ledger insert result: %w", err)
	}
	return inserted > 0, nil
}

// CountForUser returns how many events are recorded for the user.
func (l *Ledger) CountForUser(ctx context.Context, userID int64) (int, error) {
	var count int
	err := l.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM payment_events WHERE user_id = ?`, userID,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count payment events: %w", err)
	}
	return count, nil
}

// Close releases the underlying database handle.
func (l *Ledger) Close() error {
	return l.db.Close()
}

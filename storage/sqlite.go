package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	_ "modernc.org/sqlite"

	"github.com/hivemachines/account-provisioner/interfaces"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS used_addresses (
	address TEXT PRIMARY KEY,
	reserved_at INTEGER NOT NULL
);
`

// SQLiteLedger stores the used-address set in an embedded SQLite database.
// Reservation atomicity comes from the primary key constraint, so
// concurrent reservations for the same address resolve inside the database
// rather than in process memory.
type SQLiteLedger struct {
	db  *sql.DB
	log *slog.Logger
}

// NewSQLiteLedger opens (creating if needed) the database at path.
func NewSQLiteLedger(path string, log *slog.Logger) (*SQLiteLedger, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open ledger database: %w", err)
	}

	// Reservations must hit disk before the reserving request proceeds to
	// the irreversible account creation call.
	for _, pragma := range []string{
		"PRAGMA journal_mode = WAL;",
		"PRAGMA synchronous = FULL;",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to configure ledger database: %w", err)
		}
	}

	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply ledger schema: %w", err)
	}

	log.Info("Opened SQLite address ledger", slog.String("path", path))
	return &SQLiteLedger{db: db, log: log}, nil
}

// Reserve implements interfaces.AddressLedger.
func (l *SQLiteLedger) Reserve(ctx context.Context, address interfaces.BTCAddress) (bool, error) {
	res, err := l.db.ExecContext(ctx,
		`INSERT INTO used_addresses (address, reserved_at) VALUES (?, ?)
		 ON CONFLICT (address) DO NOTHING`,
		address.String(), time.Now().Unix())
	if err != nil {
		return false, fmt.Errorf("failed to reserve address: %w", err)
	}

	inserted, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to check reservation outcome: %w", err)
	}
	return inserted == 1, nil
}

// Contains implements interfaces.AddressLedger.
func (l *SQLiteLedger) Contains(ctx context.Context, address interfaces.BTCAddress) (bool, error) {
	var one int
	err := l.db.QueryRowContext(ctx,
		`SELECT 1 FROM used_addresses WHERE address = ?`, address.String()).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to query address: %w", err)
	}
	return true, nil
}

// Close implements interfaces.AddressLedger.
func (l *SQLiteLedger) Close() error {
	return l.db.Close()
}

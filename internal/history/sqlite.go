package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/rhx/orvibo-udp-hap/internal/accessory"
)

const (
	defaultLimit = 50
	maxLimit     = 500
)

// SQLiteRepository implements Repository on the status_history table.
type SQLiteRepository struct {
	db *sql.DB
}

// Ensure SQLiteRepository implements Repository.
var _ Repository = (*SQLiteRepository)(nil)

// NewSQLiteRepository creates a repository on an open, migrated database.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// Record inserts e. A zero CreatedAt is replaced with the current time.
func (r *SQLiteRepository) Record(ctx context.Context, e Entry) error {
	if e.BridgeID == "" || e.Source == "" {
		return fmt.Errorf("%w: bridge id and source are required", ErrInvalidEntry)
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now()
	}

	_, err := r.db.ExecContext(ctx,
		"INSERT INTO status_history (bridge_id, status, source, peer, created_at) VALUES (?, ?, ?, ?, ?)",
		e.BridgeID,
		e.Status.String(),
		e.Source,
		e.Peer,
		e.CreatedAt.UTC().UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("inserting status history: %w", err)
	}
	return nil
}

// Recent returns up to limit entries (default 50, max 500), newest first.
func (r *SQLiteRepository) Recent(ctx context.Context, bridgeID string, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = defaultLimit
	}
	if limit > maxLimit {
		limit = maxLimit
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT id, bridge_id, status, source, peer, created_at
		 FROM status_history
		 WHERE bridge_id = ?
		 ORDER BY created_at DESC, id DESC
		 LIMIT ?`,
		bridgeID,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("querying status history: %w", err)
	}
	defer rows.Close()

	entries := make([]Entry, 0, limit)
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating status history: %w", err)
	}
	return entries, nil
}

// LastKnown returns the newest entry for bridgeID whose status is on or
// off. The API uses it to show what the plug was doing before the bridge
// lost track of it.
func (r *SQLiteRepository) LastKnown(ctx context.Context, bridgeID string) (Entry, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id, bridge_id, status, source, peer, created_at
		 FROM status_history
		 WHERE bridge_id = ? AND status != 'unknown'
		 ORDER BY created_at DESC, id DESC
		 LIMIT 1`,
		bridgeID,
	)
	e, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Entry{}, ErrNotFound
	}
	return e, err
}

// Prune deletes entries older than olderThan.
func (r *SQLiteRepository) Prune(ctx context.Context, olderThan time.Duration) (int64, error) {
	if olderThan <= 0 {
		return 0, fmt.Errorf("olderThan must be positive")
	}

	cutoff := time.Now().Add(-olderThan).UTC().UnixMilli()
	result, err := r.db.ExecContext(ctx, "DELETE FROM status_history WHERE created_at < ?", cutoff)
	if err != nil {
		return 0, fmt.Errorf("deleting status history: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("checking rows affected: %w", err)
	}
	return n, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanEntry(s scanner) (Entry, error) {
	var (
		e         Entry
		status    string
		createdAt int64
	)
	if err := s.Scan(&e.ID, &e.BridgeID, &status, &e.Source, &e.Peer, &createdAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Entry{}, err
		}
		return Entry{}, fmt.Errorf("scanning status history: %w", err)
	}

	st, err := accessory.ParseStatus(status)
	if err != nil {
		return Entry{}, fmt.Errorf("scanning status history: %w", err)
	}
	e.Status = st
	e.CreatedAt = time.UnixMilli(createdAt).UTC()
	return e, nil
}

package dedup

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresIndex implements Index over a Postgres table.
type PostgresIndex struct {
	db *pgxpool.Pool
}

// NewPostgresIndex connects to Postgres and ensures the fingerprints table exists.
func NewPostgresIndex(ctx context.Context, connString string) (*PostgresIndex, error) {
	pool, err := pgxpool.New(ctx, connString)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to Postgres: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping Postgres: %w", err)
	}

	_, err = pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS fingerprints (
			fingerprint TEXT PRIMARY KEY,
			record_id   UUID NOT NULL,
			created_at  TIMESTAMPTZ NOT NULL DEFAULT now()
		)`)
	if err != nil {
		return nil, fmt.Errorf("failed to create fingerprints table: %w", err)
	}

	return &PostgresIndex{db: pool}, nil
}

// Lookup returns the record id registered for a fingerprint.
func (i *PostgresIndex) Lookup(ctx context.Context, fingerprint string) (uuid.UUID, error) {
	var recordID uuid.UUID
	err := i.db.QueryRow(ctx,
		`SELECT record_id FROM fingerprints WHERE fingerprint = $1`,
		fingerprint,
	).Scan(&recordID)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return uuid.Nil, ErrNotIndexed
		}
		return uuid.Nil, fmt.Errorf("postgres lookup failed: %w", err)
	}
	return recordID, nil
}

// Register maps a fingerprint to a record id. Last write wins on conflict.
func (i *PostgresIndex) Register(ctx context.Context, fingerprint string, recordID uuid.UUID) error {
	_, err := i.db.Exec(ctx, `
		INSERT INTO fingerprints (fingerprint, record_id)
		VALUES ($1, $2)
		ON CONFLICT (fingerprint) DO UPDATE SET record_id = EXCLUDED.record_id`,
		fingerprint, recordID,
	)
	if err != nil {
		return fmt.Errorf("postgres register failed: %w", err)
	}
	return nil
}

// Remove deletes a fingerprint entry.
func (i *PostgresIndex) Remove(ctx context.Context, fingerprint string) error {
	_, err := i.db.Exec(ctx,
		`DELETE FROM fingerprints WHERE fingerprint = $1`, fingerprint)
	if err != nil {
		return fmt.Errorf("postgres remove failed: %w", err)
	}
	return nil
}

// Close releases the connection pool.
func (i *PostgresIndex) Close() {
	i.db.Close()
}

package store

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/PratikDhanave/group-message-collector/internal/models"
)

// schemaSQL is embedded so the service can self-bootstrap its database schema.
//
//go:embed schema.sql
var schemaSQL string

// PostgresStore mirrors accepted records into Postgres.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a connection pool and fails fast if DB is unreachable.
func NewPostgresStore(dbURL string) (*PostgresStore, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pgxpool.New(ctx, dbURL)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	return &PostgresStore{pool: pool}, nil
}

// EnsureSchema applies schema.sql. Safe to run multiple times.
func (p *PostgresStore) EnsureSchema(ctx context.Context) error {
	_, err := p.pool.Exec(ctx, schemaSQL)
	return err
}

// Ping is used by readiness endpoint to validate DB connectivity.
func (p *PostgresStore) Ping(ctx context.Context) error {
	return p.pool.Ping(ctx)
}

// Close shuts down the connection pool.
func (p *PostgresStore) Close() {
	p.pool.Close()
}

// InsertRecord persists rec and returns inserted=false when its message id
// is already stored.
func (p *PostgresStore) InsertRecord(ctx context.Context, rec models.Record) (bool, error) {
	if rec.MessageID == "" || rec.AuthorID == "" {
		return false, errors.New("message_id/author_id required")
	}

	var adHash *string
	if rec.AdHash != "" {
		adHash = &rec.AdHash
	}

	// RETURNING 1 only when inserted; duplicates return no rows.
	var one int
	err := p.pool.QueryRow(ctx, `
		INSERT INTO messages(message_id, group_id, group_name, author_id, author_name,
		                     author_phone, message, ad_hash, content_hash, ts)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
		ON CONFLICT (message_id) DO NOTHING
		RETURNING 1
	`, rec.MessageID, rec.GroupID, rec.GroupName, rec.AuthorID, rec.AuthorName,
		rec.AuthorPhone, rec.Message, adHash, rec.ContentHash, time.Unix(rec.Timestamp, 0).UTC(),
	).Scan(&one)

	if err == nil {
		return true, nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	return false, err
}

// Write implements sink.Sink. A record that is already mirrored is not an
// error.
func (p *PostgresStore) Write(ctx context.Context, rec models.Record) error {
	if _, err := p.InsertRecord(ctx, rec); err != nil {
		return fmt.Errorf("mirror record %s: %w", rec.MessageID, err)
	}
	return nil
}

// ScanRecords streams stored records with ts >= since in insertion order.
// It is an alternative hydration source to the JSONL log.
func (p *PostgresStore) ScanRecords(ctx context.Context, since time.Time, fn func(models.Record)) (int, error) {
	rows, err := p.pool.Query(ctx, `
		SELECT message_id, group_id, group_name, author_id, author_name,
		       author_phone, message, COALESCE(ad_hash, ''), content_hash, ts
		FROM messages
		WHERE ts >= $1
		ORDER BY inserted_at
	`, since.UTC())
	if err != nil {
		return 0, err
	}
	defer rows.Close()

	n := 0
	for rows.Next() {
		var (
			rec models.Record
			ts  time.Time
		)
		if err := rows.Scan(&rec.MessageID, &rec.GroupID, &rec.GroupName, &rec.AuthorID, &rec.AuthorName,
			&rec.AuthorPhone, &rec.Message, &rec.AdHash, &rec.ContentHash, &ts); err != nil {
			return n, err
		}
		rec.Timestamp = ts.Unix()
		fn(rec)
		n++
	}
	return n, rows.Err()
}

// CountMessages returns the number of stored messages for groupID in the
// window [from,to). An empty groupID counts every group.
func (p *PostgresStore) CountMessages(
	ctx context.Context,
	groupID string,
	from time.Time,
	to time.Time,
) (int64, error) {

	var count int64
	err := p.pool.QueryRow(ctx, `
		SELECT COUNT(*)
		FROM messages
		WHERE ($1 = '' OR group_id = $1)
		  AND ts >= $2
		  AND ts <  $3
	`, groupID, from, to).Scan(&count)

	return count, err
}

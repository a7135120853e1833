package gencache

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore is the shared cache tier backed by the generation_cache
// table. Multiple service instances read and write the same rows; last
// writer wins, which is safe because identical keys imply identical content.
type PostgresStore struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// NewPostgresStore creates the shared tier.
func NewPostgresStore(pool *pgxpool.Pool, logger *slog.Logger) (*PostgresStore, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &PostgresStore{pool: pool, logger: logger}, nil
}

// Get loads an unexpired entry. Rows that fail to scan or hold empty content
// are reported as ErrCorrupted so the cache treats them as misses.
func (p *PostgresStore) Get(ctx context.Context, key string) (*Entry, error) {
	var e Entry
	err := p.pool.QueryRow(ctx,
		`SELECT content, artifact_type, language, model_name, created_at, expires_at
		 FROM generation_cache
		 WHERE cache_key = $1 AND expires_at > now()`,
		key,
	).Scan(&e.Content, &e.Meta.ArtifactType, &e.Meta.Language, &e.Meta.ModelName, &e.CreatedAt, &e.ExpiresAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("%w: %v", ErrCorrupted, err)
	}
	if strings.TrimSpace(e.Content) == "" {
		return nil, fmt.Errorf("%w: empty content for key %s", ErrCorrupted, key)
	}
	return &e, nil
}

// Put upserts an entry. Expiry extension on conflict is intentional: the
// content for a key never changes, only its freshness window.
func (p *PostgresStore) Put(ctx context.Context, key string, entry Entry) error {
	_, err := p.pool.Exec(ctx,
		`INSERT INTO generation_cache (cache_key, artifact_type, language, content, model_name, created_at, expires_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 ON CONFLICT (cache_key) DO UPDATE
		 SET content = EXCLUDED.content, expires_at = EXCLUDED.expires_at`,
		key, entry.Meta.ArtifactType, entry.Meta.Language, entry.Content, entry.Meta.ModelName,
		entry.CreatedAt, entry.ExpiresAt,
	)
	if err != nil {
		return fmt.Errorf("upserting cache entry: %w", err)
	}
	return nil
}

// DeleteExpired removes expired rows and returns how many were deleted.
// Intended for a periodic maintenance call, not the request path.
func (p *PostgresStore) DeleteExpired(ctx context.Context) (int64, error) {
	tag, err := p.pool.Exec(ctx, `DELETE FROM generation_cache WHERE expires_at <= now()`)
	if err != nil {
		return 0, fmt.Errorf("deleting expired cache entries: %w", err)
	}
	return tag.RowsAffected(), nil
}

package artifact

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const artifactCols = `id, project_id, type, language, content, cache_key, model_name, superseded_by, created_at`

// Store persists artifacts in PostgreSQL.
//
// Store is safe for concurrent use by multiple goroutines.
type Store struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// NewStore creates an artifact Store.
func NewStore(pool *pgxpool.Pool, logger *slog.Logger) (*Store, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{pool: pool, logger: logger}, nil
}

// Save inserts a as the new current artifact for its (project, type,
// language) and marks the previous current row superseded. Insert and
// supersede run in one transaction so readers never observe two current
// rows.
func (s *Store) Save(ctx context.Context, a *Artifact) error {
	if !a.Type.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidType, a.Type)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() {
		if rbErr := tx.Rollback(ctx); rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
			s.logger.Debug("transaction rollback", "error", rbErr)
		}
	}()

	err = tx.QueryRow(ctx,
		`INSERT INTO artifacts (project_id, type, language, content, cache_key, model_name)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING id, created_at`,
		a.ProjectID, string(a.Type), a.Language, a.Content, a.CacheKey, a.ModelName,
	).Scan(&a.ID, &a.CreatedAt)
	if err != nil {
		return fmt.Errorf("inserting artifact: %w", err)
	}

	_, err = tx.Exec(ctx,
		`UPDATE artifacts SET superseded_by = $1
		 WHERE project_id = $2 AND type = $3 AND language = $4
		   AND superseded_by IS NULL AND id <> $1`,
		a.ID, a.ProjectID, string(a.Type), a.Language,
	)
	if err != nil {
		return fmt.Errorf("superseding previous artifact: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("committing artifact: %w", err)
	}

	s.logger.Debug("saved artifact",
		"project_id", a.ProjectID,
		"type", a.Type,
		"language", a.Language,
		"id", a.ID)
	return nil
}

// Current returns the non-superseded artifact for (projectID, typ, language).
// Returns ErrNotFound when none exists.
func (s *Store) Current(ctx context.Context, projectID uuid.UUID, typ Type, language string) (*Artifact, error) {
	if !typ.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidType, typ)
	}

	row := s.pool.QueryRow(ctx,
		`SELECT `+artifactCols+` FROM artifacts
		 WHERE project_id = $1 AND type = $2 AND language = $3 AND superseded_by IS NULL
		 ORDER BY created_at DESC LIMIT 1`,
		projectID, string(typ), language,
	)
	a, err := scanArtifact(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("querying current artifact: %w", err)
	}
	return a, nil
}

// History returns all revisions for (projectID, typ), newest first,
// including superseded ones.
func (s *Store) History(ctx context.Context, projectID uuid.UUID, typ Type) ([]*Artifact, error) {
	if !typ.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidType, typ)
	}

	rows, err := s.pool.Query(ctx,
		`SELECT `+artifactCols+` FROM artifacts
		 WHERE project_id = $1 AND type = $2
		 ORDER BY created_at DESC`,
		projectID, string(typ),
	)
	if err != nil {
		return nil, fmt.Errorf("querying artifact history: %w", err)
	}
	defer rows.Close()
	return scanArtifacts(rows)
}

// ListCurrent returns the current artifact of every type the project has,
// newest first.
func (s *Store) ListCurrent(ctx context.Context, projectID uuid.UUID) ([]*Artifact, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+artifactCols+` FROM artifacts
		 WHERE project_id = $1 AND superseded_by IS NULL
		 ORDER BY created_at DESC`,
		projectID,
	)
	if err != nil {
		return nil, fmt.Errorf("listing current artifacts: %w", err)
	}
	defer rows.Close()
	return scanArtifacts(rows)
}

func scanArtifact(row pgx.Row) (*Artifact, error) {
	var a Artifact
	var typ string
	if err := row.Scan(&a.ID, &a.ProjectID, &typ, &a.Language, &a.Content,
		&a.CacheKey, &a.ModelName, &a.SupersededBy, &a.CreatedAt); err != nil {
		return nil, err
	}
	a.Type = Type(typ)
	return &a, nil
}

func scanArtifacts(rows pgx.Rows) ([]*Artifact, error) {
	var out []*Artifact
	for rows.Next() {
		a, err := scanArtifact(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning artifact row: %w", err)
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating artifact rows: %w", err)
	}
	return out, nil
}

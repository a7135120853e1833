package project

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const projectCols = `id, name, description, version, kind, status, paused_from,
	language, source_kind, source_content,
	created_at, updated_at, updated_by, last_analyzed_at`

// Store persists projects in PostgreSQL.
//
// Store is safe for concurrent use by multiple goroutines.
type Store struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// NewStore creates a project Store.
func NewStore(pool *pgxpool.Pool, logger *slog.Logger) (*Store, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{pool: pool, logger: logger}, nil
}

// Create inserts a new project row.
func (s *Store) Create(ctx context.Context, p *Project) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO projects (id, name, description, version, kind, status, paused_from,
		                       language, source_kind, source_content,
		                       created_at, updated_at, updated_by, last_analyzed_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`,
		p.ID, p.Name, p.Description, p.Version, string(p.Kind), string(p.Status), statusPtr(p.PausedFrom),
		p.Language, p.SourceKind, p.SourceContent,
		p.CreatedAt, p.UpdatedAt, p.UpdatedBy, p.LastAnalyzedAt,
	)
	if err != nil {
		return fmt.Errorf("inserting project: %w", err)
	}
	s.logger.Debug("created project", "id", p.ID, "name", p.Name, "version", p.Version)
	return nil
}

// Get loads a project by id. Returns ErrNotFound when absent.
func (s *Store) Get(ctx context.Context, id uuid.UUID) (*Project, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+projectCols+` FROM projects WHERE id = $1`, id)
	p, err := scanProject(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("querying project: %w", err)
	}
	return p, nil
}

// Update writes the mutable fields back, guarded by the status the caller
// read. A concurrent transition makes the guard fail with ErrNotFound so
// the caller re-reads and retries its transition.
func (s *Store) Update(ctx context.Context, p *Project, expectedStatus Status) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE projects
		 SET name = $2, description = $3, version = $4, kind = $5, status = $6,
		     paused_from = $7, language = $8, source_kind = $9, source_content = $10,
		     updated_at = $11, updated_by = $12, last_analyzed_at = $13
		 WHERE id = $1 AND status = $14`,
		p.ID, p.Name, p.Description, p.Version, string(p.Kind), string(p.Status),
		statusPtr(p.PausedFrom), p.Language, p.SourceKind, p.SourceContent,
		p.UpdatedAt, p.UpdatedBy, p.LastAnalyzedAt, string(expectedStatus),
	)
	if err != nil {
		return fmt.Errorf("updating project: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: id %s with status %s", ErrNotFound, p.ID, expectedStatus)
	}
	return nil
}

// List returns all projects, newest first.
func (s *Store) List(ctx context.Context) ([]*Project, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+projectCols+` FROM projects ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("listing projects: %w", err)
	}
	defer rows.Close()

	var out []*Project
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning project row: %w", err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating project rows: %w", err)
	}
	return out, nil
}

// Delete removes a project and, through ON DELETE CASCADE, its artifacts and
// embeddings.
func (s *Store) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM projects WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("deleting project: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func scanProject(row pgx.Row) (*Project, error) {
	var p Project
	var kind, status string
	var pausedFrom *string
	if err := row.Scan(&p.ID, &p.Name, &p.Description, &p.Version, &kind, &status, &pausedFrom,
		&p.Language, &p.SourceKind, &p.SourceContent,
		&p.CreatedAt, &p.UpdatedAt, &p.UpdatedBy, &p.LastAnalyzedAt); err != nil {
		return nil, err
	}
	p.Kind = Kind(kind)
	p.Status = Status(status)
	if pausedFrom != nil {
		st := Status(*pausedFrom)
		p.PausedFrom = &st
	}
	return &p, nil
}

func statusPtr(s *Status) *string {
	if s == nil {
		return nil
	}
	str := string(*s)
	return &str
}

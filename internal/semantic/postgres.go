package semantic

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"github.com/scribehq/scribe/internal/embedding"
)

// PostgresIndex is the pgvector-backed Index. Ranking happens in SQL:
// pgvector's <=> operator is cosine distance, so similarity is
// 1 - (embedding <=> query), which stays in [-1, 1].
//
// PostgresIndex is safe for concurrent use by multiple goroutines.
type PostgresIndex struct {
	pool      *pgxpool.Pool
	dimension int
	logger    *slog.Logger
}

// NewPostgresIndex creates the production index.
func NewPostgresIndex(pool *pgxpool.Pool, logger *slog.Logger) (*PostgresIndex, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &PostgresIndex{pool: pool, dimension: embedding.VectorDimension, logger: logger}, nil
}

// Add appends one document row.
func (p *PostgresIndex) Add(ctx context.Context, doc Document) error {
	if len(doc.Vector) != p.dimension {
		return ErrInvalidVector
	}
	meta, err := encodeMetadata(doc.Metadata)
	if err != nil {
		return fmt.Errorf("encoding metadata: %w", err)
	}

	_, err = p.pool.Exec(ctx,
		`INSERT INTO embeddings (project_id, artifact_id, content, source_type, metadata, embedding)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		doc.ProjectID, doc.ArtifactID, doc.Content, string(doc.SourceType), meta,
		pgvector.NewVector(doc.Vector),
	)
	if err != nil {
		return fmt.Errorf("inserting embedding: %w", err)
	}
	return nil
}

// ReplaceForArtifact deletes the artifact's old embeddings and inserts the
// new set in one transaction, so a searcher never sees a partial replacement.
func (p *PostgresIndex) ReplaceForArtifact(ctx context.Context, artifactID uuid.UUID, docs []Document) error {
	for i := range docs {
		if len(docs[i].Vector) != p.dimension {
			return ErrInvalidVector
		}
	}

	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() {
		if rbErr := tx.Rollback(ctx); rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
			p.logger.Debug("transaction rollback", "error", rbErr)
		}
	}()

	if _, err := tx.Exec(ctx, `DELETE FROM embeddings WHERE artifact_id = $1`, artifactID); err != nil {
		return fmt.Errorf("deleting previous embeddings: %w", err)
	}

	for _, doc := range docs {
		meta, err := encodeMetadata(doc.Metadata)
		if err != nil {
			return fmt.Errorf("encoding metadata: %w", err)
		}
		if _, err := tx.Exec(ctx,
			`INSERT INTO embeddings (project_id, artifact_id, content, source_type, metadata, embedding)
			 VALUES ($1, $2, $3, $4, $5, $6)`,
			doc.ProjectID, artifactID, doc.Content, string(doc.SourceType), meta,
			pgvector.NewVector(doc.Vector),
		); err != nil {
			return fmt.Errorf("inserting embedding: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("committing replacement: %w", err)
	}
	return nil
}

// Search ranks every candidate row in one query, so the limit applies once
// over the unioned result set regardless of source type.
func (p *PostgresIndex) Search(ctx context.Context, q Query) ([]Result, error) {
	if err := validateQuery(q, p.dimension); err != nil {
		return nil, err
	}

	vec := pgvector.NewVector(q.Vector)
	rows, err := p.pool.Query(ctx,
		`SELECT id, project_id, content, source_type, metadata,
		        1 - (embedding <=> $1) AS similarity
		 FROM embeddings
		 WHERE ($2::uuid IS NULL OR project_id = $2)
		   AND 1 - (embedding <=> $1) > $3
		 ORDER BY embedding <=> $1
		 LIMIT $4`,
		vec, q.ProjectID, q.Threshold, q.Limit,
	)
	if err != nil {
		return nil, fmt.Errorf("searching embeddings: %w", err)
	}
	defer rows.Close()

	var results []Result
	for rows.Next() {
		var r Result
		var sourceType string
		var meta []byte
		if err := rows.Scan(&r.DocumentID, &r.ProjectID, &r.Content, &sourceType, &meta, &r.Similarity); err != nil {
			return nil, fmt.Errorf("scanning search row: %w", err)
		}
		r.SourceType = SourceType(sourceType)
		if len(meta) > 0 {
			if err := json.Unmarshal(meta, &r.Metadata); err != nil {
				p.logger.Warn("unreadable embedding metadata, dropping", "document_id", r.DocumentID, "error", err)
				r.Metadata = nil
			}
		}
		results = append(results, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating search rows: %w", err)
	}
	return results, nil
}

// Package semantic is the similarity index: it stores embedding vectors with
// their owning-document metadata and answers ranked nearest-neighbor queries.
//
// Two implementations share one contract: PostgresIndex (pgvector, the
// production store) and MemoryIndex (brute-force scan, for tests and
// single-process runs). Both rank by cosine similarity, apply the threshold
// and project filter, and truncate once over the fully-ranked union of all
// source types — never per source type.
package semantic

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
)

// SourceType tags where an indexed document came from.
type SourceType string

const (
	SourceAPI      SourceType = "api"
	SourceDatabase SourceType = "database"
)

var (
	// ErrInvalidVector indicates a query or document vector of the wrong
	// dimension.
	ErrInvalidVector = errors.New("invalid vector dimension")

	// ErrInvalidLimit indicates a non-positive result limit.
	ErrInvalidLimit = errors.New("limit must be positive")
)

// Document is one indexed piece of content with its vector.
type Document struct {
	ID         uuid.UUID
	ProjectID  uuid.UUID
	ArtifactID *uuid.UUID
	Content    string
	SourceType SourceType
	Metadata   map[string]string
	Vector     []float32
	CreatedAt  time.Time
}

// Query describes one similarity search.
type Query struct {
	Vector    []float32
	Threshold float64 // results must exceed this, exclusive
	Limit     int
	ProjectID *uuid.UUID // nil searches all projects
}

// Result is one ranked search hit, similarity in [-1, 1], descending.
type Result struct {
	DocumentID uuid.UUID
	ProjectID  uuid.UUID
	Content    string
	SourceType SourceType
	Similarity float64
	Metadata   map[string]string
}

// Index is the similarity index contract.
type Index interface {
	// Add appends a document. Writes may run concurrently with searches;
	// a document is not guaranteed visible to searches already in flight.
	Add(ctx context.Context, doc Document) error

	// ReplaceForArtifact atomically swaps every document owned by an
	// artifact for the given set. Used when a source document regenerates:
	// embeddings are replaced wholesale, never partially mutated.
	ReplaceForArtifact(ctx context.Context, artifactID uuid.UUID, docs []Document) error

	// Search returns ranked hits per the package contract.
	Search(ctx context.Context, q Query) ([]Result, error)
}

func validateQuery(q Query, dimension int) error {
	if len(q.Vector) != dimension {
		return ErrInvalidVector
	}
	if q.Limit <= 0 {
		return ErrInvalidLimit
	}
	return nil
}

func encodeMetadata(m map[string]string) ([]byte, error) {
	if m == nil {
		m = map[string]string{}
	}
	return json.Marshal(m)
}

package semantic

import (
	"context"
	"maps"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/scribehq/scribe/internal/embedding"
)

// MemoryIndex is a brute-force in-memory Index. Search scans every stored
// vector; fine for tests and small corpora, not for millions of documents.
//
// MemoryIndex is safe for concurrent use by multiple goroutines. Searches
// take a read lock only, so reads never block each other.
type MemoryIndex struct {
	dimension int

	mu   sync.RWMutex
	docs []Document
}

// NewMemoryIndex creates an index expecting vectors of the given dimension.
func NewMemoryIndex(dimension int) *MemoryIndex {
	if dimension <= 0 {
		dimension = embedding.VectorDimension
	}
	return &MemoryIndex{dimension: dimension}
}

// Add appends a document.
func (m *MemoryIndex) Add(_ context.Context, doc Document) error {
	if len(doc.Vector) != m.dimension {
		return ErrInvalidVector
	}
	if doc.ID == uuid.Nil {
		doc.ID = uuid.New()
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.docs = append(m.docs, doc)
	return nil
}

// ReplaceForArtifact swaps all documents owned by artifactID for docs.
func (m *MemoryIndex) ReplaceForArtifact(_ context.Context, artifactID uuid.UUID, docs []Document) error {
	for i := range docs {
		if len(docs[i].Vector) != m.dimension {
			return ErrInvalidVector
		}
		if docs[i].ID == uuid.Nil {
			docs[i].ID = uuid.New()
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	kept := m.docs[:0]
	for _, d := range m.docs {
		if d.ArtifactID == nil || *d.ArtifactID != artifactID {
			kept = append(kept, d)
		}
	}
	m.docs = append(kept, docs...)
	return nil
}

// Search scans all vectors, keeps entries above the threshold, sorts by
// descending similarity, and truncates once over the full union.
func (m *MemoryIndex) Search(_ context.Context, q Query) ([]Result, error) {
	if err := validateQuery(q, m.dimension); err != nil {
		return nil, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	results := make([]Result, 0, len(m.docs))
	for _, d := range m.docs {
		if q.ProjectID != nil && d.ProjectID != *q.ProjectID {
			continue
		}
		sim := embedding.Cosine(q.Vector, d.Vector)
		if sim <= q.Threshold {
			continue
		}
		results = append(results, Result{
			DocumentID: d.ID,
			ProjectID:  d.ProjectID,
			Content:    d.Content,
			SourceType: d.SourceType,
			Similarity: sim,
			Metadata:   maps.Clone(d.Metadata),
		})
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Similarity > results[j].Similarity
	})
	if len(results) > q.Limit {
		results = results[:q.Limit]
	}
	return results, nil
}

// Len returns the number of indexed documents.
func (m *MemoryIndex) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.docs)
}

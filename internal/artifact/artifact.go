// Package artifact defines the generated documentation outputs and their
// PostgreSQL persistence.
//
// Artifacts are append-only: a regeneration inserts a new row and marks the
// previous current row as superseded. Content is never mutated in place, so
// a half-finished generation can never corrupt an existing artifact.
package artifact

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// Type identifies what kind of documentation an artifact holds.
type Type string

const (
	TypeOpenAPISpec       Type = "openapi_spec"
	TypeUsageGuide        Type = "usage_guide"
	TypePostmanCollection Type = "postman_collection"
	TypeTypeScriptSDK     Type = "typescript_sdk"
	TypeCSharpSDK         Type = "csharp_sdk"
	TypeERDiagram         Type = "er_diagram"
	TypeDataDictionary    Type = "data_dictionary"
	TypeChatAnswer        Type = "chat_answer"
)

// All returns every artifact type in a stable order.
func All() []Type {
	return []Type{
		TypeOpenAPISpec,
		TypeUsageGuide,
		TypePostmanCollection,
		TypeTypeScriptSDK,
		TypeCSharpSDK,
		TypeERDiagram,
		TypeDataDictionary,
		TypeChatAnswer,
	}
}

// Valid reports whether t is a known artifact type.
func (t Type) Valid() bool {
	switch t {
	case TypeOpenAPISpec, TypeUsageGuide, TypePostmanCollection,
		TypeTypeScriptSDK, TypeCSharpSDK, TypeERDiagram,
		TypeDataDictionary, TypeChatAnswer:
		return true
	}
	return false
}

var (
	// ErrNotFound indicates no current artifact exists for the lookup.
	ErrNotFound = errors.New("artifact not found")

	// ErrInvalidType indicates an unknown artifact type.
	ErrInvalidType = errors.New("invalid artifact type")
)

// Artifact is one generated documentation output owned by a project.
type Artifact struct {
	ID           uuid.UUID
	ProjectID    uuid.UUID
	Type         Type
	Language     string
	Content      string
	CacheKey     string
	ModelName    string
	SupersededBy *uuid.UUID
	CreatedAt    time.Time
}

// Package metadata turns raw API source or database schema text into a
// structured tree the prompt templates can interpolate.
//
// Extraction is best-effort: malformed input never fails, it produces a
// partial tree plus warnings. The only hard errors are empty input and an
// unknown source kind, both rejected before any analyzer runs.
package metadata

import (
	"errors"
	"fmt"
	"strings"
)

// SourceKind selects which analyzer handles the input.
type SourceKind string

const (
	SourceAPI      SourceKind = "api"
	SourceDatabase SourceKind = "database"
)

var (
	// ErrEmptySource indicates the input text is empty or whitespace-only.
	ErrEmptySource = errors.New("empty source text")

	// ErrUnknownSourceKind indicates no analyzer is registered for the kind.
	ErrUnknownSourceKind = errors.New("unknown source kind")
)

// Tree is the structured result of one extraction run. It is immutable once
// produced; a regeneration builds a new tree rather than mutating this one.
// Exactly one of the Controllers/Tables families is populated, depending on
// Kind.
type Tree struct {
	Kind     SourceKind `json:"kind"`
	Language string     `json:"language,omitempty"`

	Controllers []Controller `json:"controllers,omitempty"`

	Tables     []Table     `json:"tables,omitempty"`
	Indexes    []Index     `json:"indexes,omitempty"`
	Procedures []Procedure `json:"procedures,omitempty"`

	// Warnings collects non-fatal extraction problems (unparseable
	// fragments, nothing recognized). Never nil after extraction.
	Warnings []string `json:"warnings,omitempty"`
}

// Controller is an API controller with its exposed actions.
type Controller struct {
	Name    string   `json:"name"`
	Route   string   `json:"route,omitempty"`
	Actions []Action `json:"actions,omitempty"`
}

// Action is a single HTTP-exposed controller method.
type Action struct {
	Name       string      `json:"name"`
	HTTPMethod string      `json:"http_method"`
	Route      string      `json:"route,omitempty"`
	Parameters []Parameter `json:"parameters,omitempty"`
	ReturnType string      `json:"return_type,omitempty"`
}

// Parameter is a named, typed input of an action or stored procedure.
type Parameter struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

// Table is a relational table with its columns.
type Table struct {
	Name    string   `json:"name"`
	Columns []Column `json:"columns,omitempty"`
}

// Column is a single table column.
type Column struct {
	Name       string `json:"name"`
	Type       string `json:"type"`
	Nullable   bool   `json:"nullable"`
	PrimaryKey bool   `json:"primary_key,omitempty"`
}

// Index is a secondary index over one or more columns.
type Index struct {
	Name    string   `json:"name"`
	Table   string   `json:"table"`
	Columns []string `json:"columns,omitempty"`
	Unique  bool     `json:"unique,omitempty"`
}

// Procedure is a stored procedure or function.
type Procedure struct {
	Name string `json:"name"`
}

// Analyzer is the source-kind-specific extraction capability. Implementations
// must be pure transforms: no I/O, no errors — problems surface as tree
// warnings.
type Analyzer interface {
	Kind() SourceKind
	Analyze(raw string) *Tree
}

// Extractor dispatches extraction to the analyzer registered for a kind.
type Extractor struct {
	analyzers map[SourceKind]Analyzer
}

// NewExtractor builds an extractor over the given analyzers. Later analyzers
// with a duplicate kind replace earlier ones.
func NewExtractor(analyzers ...Analyzer) *Extractor {
	m := make(map[SourceKind]Analyzer, len(analyzers))
	for _, a := range analyzers {
		m[a.Kind()] = a
	}
	return &Extractor{analyzers: m}
}

// Extract runs the analyzer for kind over raw. Empty input and unknown kinds
// fail fast; everything else succeeds with a best-effort tree.
func (e *Extractor) Extract(raw string, kind SourceKind) (*Tree, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, ErrEmptySource
	}
	a, ok := e.analyzers[kind]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownSourceKind, kind)
	}
	tree := a.Analyze(raw)
	if tree.Warnings == nil {
		tree.Warnings = []string{}
	}
	return tree, nil
}

// Supports reports whether an analyzer is registered for kind.
func (e *Extractor) Supports(kind SourceKind) bool {
	_, ok := e.analyzers[kind]
	return ok
}

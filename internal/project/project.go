// Package project holds the project entity and its lifecycle state machine.
//
// A project moves Created → Configured → Analyzing → Analyzed →
// DocumentationGenerated, with Error and Paused reachable from any state.
// No state is terminal: Error re-enters Configured for a retry, Paused
// resumes to wherever it was. The one forbidden shortcut is entering
// Analyzing straight from Created — analysis requires configuration first.
package project

import (
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/google/uuid"
)

// Kind is what a project documents.
type Kind string

const (
	KindAPI      Kind = "api"
	KindDatabase Kind = "database"
	KindHybrid   Kind = "hybrid"
)

// Valid reports whether k is a known kind.
func (k Kind) Valid() bool {
	return k == KindAPI || k == KindDatabase || k == KindHybrid
}

// Status is a lifecycle state.
type Status string

const (
	StatusCreated                Status = "created"
	StatusConfigured             Status = "configured"
	StatusAnalyzing              Status = "analyzing"
	StatusAnalyzed               Status = "analyzed"
	StatusDocumentationGenerated Status = "documentation_generated"
	StatusError                  Status = "error"
	StatusPaused                 Status = "paused"
)

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusCreated, StatusConfigured, StatusAnalyzing, StatusAnalyzed,
		StatusDocumentationGenerated, StatusError, StatusPaused:
		return true
	}
	return false
}

var (
	// ErrInvalidVersion indicates a version not in MAJOR.MINOR.PATCH form.
	ErrInvalidVersion = errors.New("invalid version")

	// ErrInvalidTransition indicates a forbidden status change.
	ErrInvalidTransition = errors.New("invalid status transition")

	// ErrInvalidKind indicates an unknown project kind.
	ErrInvalidKind = errors.New("invalid project kind")

	// ErrNotFound indicates the project does not exist.
	ErrNotFound = errors.New("project not found")

	// ErrNotPaused indicates Resume on a project that is not paused.
	ErrNotPaused = errors.New("project is not paused")
)

// versionRe accepts strict MAJOR.MINOR.PATCH, nothing else: no "v" prefix,
// no pre-release suffix, no partial versions.
var versionRe = regexp.MustCompile(`^\d+\.\d+\.\d+$`)

// ValidateVersion checks the strict MAJOR.MINOR.PATCH format.
func ValidateVersion(version string) error {
	if !versionRe.MatchString(version) {
		return fmt.Errorf("%w: %q (want MAJOR.MINOR.PATCH)", ErrInvalidVersion, version)
	}
	return nil
}

// transitions lists the permitted predecessors per target status. Error and
// Paused are handled separately: they accept any source.
var transitions = map[Status][]Status{
	StatusConfigured: {StatusCreated, StatusConfigured, StatusAnalyzing, StatusAnalyzed,
		StatusDocumentationGenerated, StatusError},
	StatusAnalyzing:              {StatusConfigured, StatusAnalyzed, StatusDocumentationGenerated},
	StatusAnalyzed:               {StatusAnalyzing},
	StatusDocumentationGenerated: {StatusAnalyzed},
}

// CanTransition reports whether from → to is permitted. Paused is excluded
// as a source: leaving Paused goes through Resume, which restores the
// pre-pause status.
func CanTransition(from, to Status) bool {
	if to == StatusError || to == StatusPaused {
		return from != StatusPaused || to == StatusError
	}
	for _, allowed := range transitions[to] {
		if from == allowed {
			return true
		}
	}
	return false
}

// Project is one documented system moving through the pipeline.
type Project struct {
	ID             uuid.UUID
	Name           string
	Description    string
	Version        string
	Kind           Kind
	Status         Status
	PausedFrom     *Status
	Language       string
	SourceKind     string
	SourceContent  string
	CreatedAt      time.Time
	UpdatedAt      time.Time
	UpdatedBy      string
	LastAnalyzedAt *time.Time
}

// New creates a project in StatusCreated after validating version and kind.
func New(name, version string, kind Kind, createdBy string, now time.Time) (*Project, error) {
	if err := ValidateVersion(version); err != nil {
		return nil, err
	}
	if !kind.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidKind, kind)
	}
	return &Project{
		ID:        uuid.New(),
		Name:      name,
		Version:   version,
		Kind:      kind,
		Status:    StatusCreated,
		CreatedAt: now,
		UpdatedAt: now,
		UpdatedBy: createdBy,
	}, nil
}

// transition moves the project to a new status, stamping UpdatedAt/UpdatedBy.
func (p *Project) transition(to Status, by string, now time.Time) error {
	if !CanTransition(p.Status, to) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, p.Status, to)
	}
	p.Status = to
	p.UpdatedAt = now
	p.UpdatedBy = by
	return nil
}

// MarkConfigured records that connection/documentation configuration is set.
func (p *Project) MarkConfigured(by string, now time.Time) error {
	return p.transition(StatusConfigured, by, now)
}

// BeginAnalysis enters Analyzing. Rejected from Created: configuration must
// happen first.
func (p *Project) BeginAnalysis(by string, now time.Time) error {
	return p.transition(StatusAnalyzing, by, now)
}

// MarkAnalyzed completes analysis and records LastAnalyzedAt.
func (p *Project) MarkAnalyzed(by string, now time.Time) error {
	if err := p.transition(StatusAnalyzed, by, now); err != nil {
		return err
	}
	t := now
	p.LastAnalyzedAt = &t
	return nil
}

// MarkDocumentationGenerated completes the pipeline run.
func (p *Project) MarkDocumentationGenerated(by string, now time.Time) error {
	return p.transition(StatusDocumentationGenerated, by, now)
}

// MarkError flips the project into Error from any live state.
func (p *Project) MarkError(by string, now time.Time) error {
	return p.transition(StatusError, by, now)
}

// Pause suspends the project, remembering where it was.
func (p *Project) Pause(by string, now time.Time) error {
	from := p.Status
	if err := p.transition(StatusPaused, by, now); err != nil {
		return err
	}
	p.PausedFrom = &from
	return nil
}

// Resume restores the pre-pause status.
func (p *Project) Resume(by string, now time.Time) error {
	if p.Status != StatusPaused || p.PausedFrom == nil {
		return ErrNotPaused
	}
	p.Status = *p.PausedFrom
	p.PausedFrom = nil
	p.UpdatedAt = now
	p.UpdatedBy = by
	return nil
}

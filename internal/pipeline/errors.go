package pipeline

import (
	"errors"

	"github.com/scribehq/scribe/internal/artifact"
	"github.com/scribehq/scribe/internal/modelclient"
	"github.com/scribehq/scribe/internal/project"
)

// ErrValidation marks failures rejected before any external call: empty or
// malformed input, unsupported combinations, illegal state transitions.
// Never retried.
var ErrValidation = errors.New("validation error")

// Error kinds surfaced to clients. Stable strings: the HTTP layer and its
// consumers match on them.
const (
	KindValidation = "validation_error"
	KindNotFound   = "not_found"
	KindTransient  = "transient_generation_failure"
	KindPermanent  = "permanent_generation_failure"
	KindInternal   = "internal_error"
)

// ErrorKind maps an error to its stable client-visible kind.
func ErrorKind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrValidation):
		return KindValidation
	case errors.Is(err, project.ErrNotFound), errors.Is(err, artifact.ErrNotFound):
		return KindNotFound
	case errors.Is(err, modelclient.ErrTransient):
		return KindTransient
	case errors.Is(err, modelclient.ErrPermanent):
		return KindPermanent
	default:
		return KindInternal
	}
}

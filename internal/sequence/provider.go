// Package sequence supplies SequenceData for a structure id, either from the
// local manifest catalog or from a remote HTTP service.
package sequence

import (
	"context"
	"errors"
	"fmt"

	"github.com/starford/seqsync/internal/apperr"
	"github.com/starford/seqsync/internal/models"
)

// Provider fetches the sequence view of a structure.
type Provider interface {
	FetchSequence(ctx context.Context, structureID string) (*models.SequenceData, error)
}

// Kind classifies fetch failures.
type Kind string

const (
	KindNetwork  Kind = "network"
	KindNotFound Kind = "not-found"
	KindParse    Kind = "parse"
)

// FetchError is returned by every Provider in this package.
type FetchError struct {
	Kind        Kind
	StructureID string
	Err         error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("sequence: fetch %s: %s: %v", e.StructureID, e.Kind, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// Is makes not-found fetch errors match apperr.ErrNotFound.
func (e *FetchError) Is(target error) bool {
	return e.Kind == KindNotFound && target == apperr.ErrNotFound
}

// KindOf returns the kind of a FetchError anywhere in err's chain.
func KindOf(err error) (Kind, bool) {
	var fe *FetchError
	if errors.As(err, &fe) {
		return fe.Kind, true
	}
	return "", false
}

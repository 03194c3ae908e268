package sequence

import (
	"context"
	"errors"

	"github.com/starford/seqsync/internal/addressing"
	"github.com/starford/seqsync/internal/apperr"
	"github.com/starford/seqsync/internal/models"
	"github.com/starford/seqsync/internal/structure"
)

// Local projects sequences from structure manifests.
type Local struct {
	source structure.Source
	mode   addressing.Mode
}

var _ Provider = (*Local)(nil)

// NewLocal returns a provider reading manifests from src and numbering
// residues in mode.
func NewLocal(src structure.Source, mode addressing.Mode) *Local {
	return &Local{source: src, mode: mode}
}

// FetchSequence implements Provider.
func (l *Local) FetchSequence(ctx context.Context, structureID string) (*models.SequenceData, error) {
	st, err := l.source.Open(ctx, structureID)
	if err != nil {
		kind := KindParse
		if errors.Is(err, apperr.ErrNotFound) {
			kind = KindNotFound
		}
		return nil, &FetchError{Kind: kind, StructureID: structureID, Err: err}
	}
	data := st.SequenceData(l.mode)
	if err := data.Validate(); err != nil {
		return nil, &FetchError{Kind: KindParse, StructureID: structureID, Err: err}
	}
	return data, nil
}

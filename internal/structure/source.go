package structure

import (
	"context"
	"fmt"
	"sync"

	"github.com/starford/seqsync/internal/apperr"
	"github.com/starford/seqsync/internal/parser"
)

// StaticSource serves manifests held in memory.
type StaticSource struct {
	mu         sync.RWMutex
	structures map[string]*parser.Structure
}

// NewStaticSource creates a source from parsed manifests keyed by their id.
func NewStaticSource(structures ...*parser.Structure) *StaticSource {
	s := &StaticSource{structures: make(map[string]*parser.Structure, len(structures))}
	for _, st := range structures {
		s.structures[st.ID] = st
	}
	return s
}

// Put adds or replaces a manifest.
func (s *StaticSource) Put(st *parser.Structure) {
	s.mu.Lock()
	s.structures[st.ID] = st
	s.mu.Unlock()
}

// Open returns the manifest for sourceID.
func (s *StaticSource) Open(_ context.Context, sourceID string) (*parser.Structure, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st, ok := s.structures[sourceID]
	if !ok {
		return nil, fmt.Errorf("structure %q: %w", sourceID, apperr.ErrNotFound)
	}
	return st, nil
}

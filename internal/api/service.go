package api

import (
	"github.com/starford/seqsync/internal/catalog"
	"github.com/starford/seqsync/internal/viewer"
)

// StructureEvents receives catalogue changes made through the API. The file
// watcher does not report them because the API indexes manifests before the
// write event arrives.
type StructureEvents interface {
	PublishStructureEvent(kind, path string)
}

type noEvents struct{}

func (noEvents) PublishStructureEvent(string, string) {}

// Handler holds API route handlers.
type Handler struct {
	catalog *catalog.Catalog
	session *viewer.Session
	events  StructureEvents
}

// NewHandler creates a new Handler. A nil events sink drops catalogue events.
func NewHandler(cat *catalog.Catalog, session *viewer.Session, events StructureEvents) *Handler {
	if events == nil {
		events = noEvents{}
	}
	return &Handler{catalog: cat, session: session, events: events}
}

// Package clipboard writes copied residue sequences to the host clipboard,
// falling back to an in-process buffer on headless hosts.
package clipboard

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/atotto/clipboard"
)

// Writer puts text on a clipboard.
type Writer interface {
	WriteText(ctx context.Context, text string) error
}

// System writes to the operating system clipboard.
type System struct{}

// WriteText implements Writer.
func (System) WriteText(_ context.Context, text string) error {
	if clipboard.Unsupported {
		return fmt.Errorf("clipboard: no system clipboard on this host")
	}
	if err := clipboard.WriteAll(text); err != nil {
		return fmt.Errorf("clipboard: write: %w", err)
	}
	return nil
}

// Memory keeps the last written text in process.
type Memory struct {
	mu     sync.Mutex
	text   string
	writes int
}

// WriteText implements Writer.
func (m *Memory) WriteText(_ context.Context, text string) error {
	m.mu.Lock()
	m.text = text
	m.writes++
	m.mu.Unlock()
	return nil
}

// Text returns the last written text and the number of writes so far.
func (m *Memory) Text() (string, int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.text, m.writes
}

// Fallback tries Primary and, if it fails, writes to Secondary.
type Fallback struct {
	Primary   Writer
	Secondary Writer
	Logger    *slog.Logger
}

// WriteText implements Writer.
func (f *Fallback) WriteText(ctx context.Context, text string) error {
	err := f.Primary.WriteText(ctx, text)
	if err == nil {
		return nil
	}
	if f.Logger != nil {
		f.Logger.Debug("clipboard: primary failed, using fallback", slog.String("error", err.Error()))
	}
	return f.Secondary.WriteText(ctx, text)
}

// New returns the system clipboard backed by an in-memory buffer.
func New(logger *slog.Logger) Writer {
	mem := &Memory{}
	if clipboard.Unsupported {
		return mem
	}
	return &Fallback{Primary: System{}, Secondary: mem, Logger: logger}
}

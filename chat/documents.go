package chat

import (
	"context"
	"fmt"
	"log"
	"sync"
)

// Lister fetches the filenames the backend already ingested.
type Lister interface {
	ListPDFs(ctx context.Context) ([]string, error)
}

// DocumentContext tracks which documents the client believes exist on the
// backend and which one, if any, scopes the next question. The selection is
// always a member of the known set.
type DocumentContext struct {
	mu        sync.Mutex
	known     []string
	knownSet  map[string]struct{}
	selection string
	logger    *log.Logger
}

func NewDocumentContext(logger *log.Logger) *DocumentContext {
	if logger == nil {
		logger = log.Default()
	}
	return &DocumentContext{
		knownSet: make(map[string]struct{}),
		logger:   logger,
	}
}

// Init populates the known set from the listing backend. Failure is logged
// and leaves the set empty: questions simply go out unscoped until an upload
// succeeds.
func (d *DocumentContext) Init(ctx context.Context, lister Lister) {
	names, err := lister.ListPDFs(ctx)
	if err != nil {
		d.logger.Printf("list uploaded pdfs: %v", err)
		return
	}
	for _, name := range names {
		d.AddKnown(name)
	}
}

// Known returns the filenames in arrival order: listing-fetch order first,
// then upload order.
func (d *DocumentContext) Known() []string {
	d.mu.Lock()
	defer d.mu.Unlock()

	out := make([]string, len(d.known))
	copy(out, d.known)
	return out
}

// AddKnown appends a filename to the known set. Adding an already-known name
// is a no-op and never disturbs the current selection.
func (d *DocumentContext) AddKnown(name string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.knownSet[name]; ok {
		return
	}
	d.knownSet[name] = struct{}{}
	d.known = append(d.known, name)
}

// Select scopes subsequent questions to the given document. The filename
// must already be known; selecting the current selection is a no-op.
func (d *DocumentContext) Select(name string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.knownSet[name]; !ok {
		return fmt.Errorf("unknown document %q", name)
	}
	d.selection = name
	return nil
}

// Clear drops the selection so questions go out unscoped again.
func (d *DocumentContext) Clear() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.selection = ""
}

// Selection returns the scoping filename, or false when unscoped.
func (d *DocumentContext) Selection() (string, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.selection, d.selection != ""
}

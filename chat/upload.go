package chat

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
)

// Uploader sends one file to the ingestion backend and returns the filename
// the backend stored it under.
type Uploader interface {
	UploadPDF(ctx context.Context, filename string, data []byte) (string, error)
}

var (
	ErrNothingStaged   = errors.New("no file staged for upload")
	ErrUploadInFlight  = errors.New("an upload is already in flight")
	ErrUnsupportedFile = errors.New("only pdf files are accepted")
)

// UploadCoordinator stages at most one file and drives the ingestion request.
// A successful submit is the only way new filenames enter the document
// context after initialization.
type UploadCoordinator struct {
	mu         sync.Mutex
	stagedName string
	stagedData []byte
	inFlight   bool

	uploader Uploader
	docs     *DocumentContext
	logger   *log.Logger
}

func NewUploadCoordinator(uploader Uploader, docs *DocumentContext, logger *log.Logger) *UploadCoordinator {
	if logger == nil {
		logger = log.Default()
	}
	return &UploadCoordinator{
		uploader: uploader,
		docs:     docs,
		logger:   logger,
	}
}

// Stage replaces any previously staged file. The media-type check is
// advisory at this boundary, matching the file picker's accept filter.
func (u *UploadCoordinator) Stage(name string, data []byte) error {
	if !strings.HasSuffix(strings.ToLower(name), ".pdf") {
		return ErrUnsupportedFile
	}

	u.mu.Lock()
	defer u.mu.Unlock()
	u.stagedName = name
	u.stagedData = data
	return nil
}

// Submit sends the staged file to the ingestion backend. On success the
// returned filename feeds the document context and the staged file is
// cleared; on failure the staged file stays put so the user can retry. The
// in-flight flag is released on every path.
func (u *UploadCoordinator) Submit(ctx context.Context) (string, error) {
	u.mu.Lock()
	if u.stagedName == "" {
		u.mu.Unlock()
		return "", ErrNothingStaged
	}
	if u.inFlight {
		u.mu.Unlock()
		return "", ErrUploadInFlight
	}
	u.inFlight = true
	name := u.stagedName
	data := u.stagedData
	u.mu.Unlock()

	defer func() {
		u.mu.Lock()
		u.inFlight = false
		u.mu.Unlock()
	}()

	stored, err := u.uploader.UploadPDF(ctx, name, data)
	if err != nil {
		u.logger.Printf("upload %s: %v", name, err)
		return "", fmt.Errorf("upload %s: %w", name, err)
	}
	if stored == "" {
		u.logger.Printf("upload %s: backend returned no filename", name)
		return "", fmt.Errorf("upload %s: backend returned no filename", name)
	}

	u.docs.AddKnown(stored)

	u.mu.Lock()
	u.stagedName = ""
	u.stagedData = nil
	u.mu.Unlock()

	u.logger.Printf("uploaded %s", stored)
	return stored, nil
}

// Staged returns the currently staged filename, or false when empty.
func (u *UploadCoordinator) Staged() (string, bool) {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.stagedName, u.stagedName != ""
}

func (u *UploadCoordinator) InFlight() bool {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.inFlight
}

package chat

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"strings"
	"sync"
)

// Asker performs one question round trip against the answering backend.
// filename is empty for an unscoped question; implementations must omit the
// field from the wire body entirely in that case.
type Asker interface {
	Ask(ctx context.Context, question, filename string) (json.RawMessage, error)
}

// ErrBusy is returned when a question is submitted while the previous one is
// still awaiting its answer. Allowing overlap would let late responses append
// out of question order.
var ErrBusy = errors.New("a response is already pending")

// Dispatcher orchestrates one question/answer round trip: append the user
// turn, ask the backend with the current document selection, normalize the
// result, append the bot turn. Every accepted submission produces exactly
// one bot turn, on the failure path included.
type Dispatcher struct {
	mu      sync.Mutex
	session *Session
	docs    *DocumentContext
	asker   Asker
	logger  *log.Logger
}

func NewDispatcher(session *Session, docs *DocumentContext, asker Asker, logger *log.Logger) *Dispatcher {
	if logger == nil {
		logger = log.Default()
	}
	return &Dispatcher{
		session: session,
		docs:    docs,
		asker:   asker,
		logger:  logger,
	}
}

// Submit runs the full round trip for one question. Blank input is silently
// ignored and appends nothing. A submission while a response is pending is
// rejected with ErrBusy.
func (d *Dispatcher) Submit(ctx context.Context, text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	// The pending check and the user append must be one step, or two
	// concurrent submissions could both pass the guard.
	d.mu.Lock()
	if d.session.Pending() {
		d.mu.Unlock()
		return ErrBusy
	}
	d.session.AppendUser(text)
	d.mu.Unlock()

	filename := ""
	if selected, ok := d.docs.Selection(); ok {
		filename = selected
	}

	raw, err := d.asker.Ask(ctx, text, filename)
	if err != nil {
		d.logger.Printf("ask backend: %v", err)
		d.session.AppendBot(ErrorAnswer())
		return nil
	}

	d.session.AppendBot(Normalize(raw))
	return nil
}

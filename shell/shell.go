// Package shell composes the conversation core into a viewable page: a thin
// HTTP bridge plus an embedded single-page UI with a chat view, a history
// view, the document picker and the upload widget.
package shell

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/pdfchat/pdfchat/chat"
)

const maxUploadBytes = 64 << 20

type Shell struct {
	session    *chat.Session
	docs       *chat.DocumentContext
	uploads    *chat.UploadCoordinator
	dispatcher *chat.Dispatcher
	lister     chat.Lister
	logger     *log.Logger
	handler    http.Handler
}

type messageDTO struct {
	Sender     string          `json:"sender"`
	Text       string          `json:"text,omitempty"`
	Structured json.RawMessage `json:"structured,omitempty"`
	Summary    string          `json:"summary,omitempty"`
	CreatedAt  time.Time       `json:"createdAt"`
}

type stateDTO struct {
	Pending    bool     `json:"pending"`
	Documents  []string `json:"documents"`
	Selection  string   `json:"selection,omitempty"`
	Staged     string   `json:"staged,omitempty"`
	UploadBusy bool     `json:"uploadBusy"`
}

type askBridgeRequest struct {
	Question string `json:"question"`
}

type selectRequest struct {
	Filename string `json:"filename"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func New(asker chat.Asker, uploader chat.Uploader, lister chat.Lister, logger *log.Logger) *Shell {
	if logger == nil {
		logger = log.Default()
	}

	session := chat.NewSession()
	docs := chat.NewDocumentContext(logger)

	s := &Shell{
		session:    session,
		docs:       docs,
		uploads:    chat.NewUploadCoordinator(uploader, docs, logger),
		dispatcher: chat.NewDispatcher(session, docs, asker, logger),
		lister:     lister,
		logger:     logger,
	}
	s.handler = s.routes()
	return s
}

// Init fetches the known-documents listing. Meant to run concurrently with
// serving; failure is non-fatal and questions stay unscoped until an upload
// succeeds.
func (s *Shell) Init(ctx context.Context) {
	s.docs.Init(ctx, s.lister)
}

func (s *Shell) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

func (s *Shell) routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleIndex)
	mux.HandleFunc("/api/messages", s.handleMessages)
	mux.HandleFunc("/api/ask", s.handleAsk)
	mux.HandleFunc("/api/state", s.handleState)
	mux.HandleFunc("/api/select", s.handleSelect)
	mux.HandleFunc("/api/upload", s.handleUpload)
	return mux
}

func (s *Shell) handleMessages(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.methodNotAllowed(w, http.MethodGet)
		return
	}
	s.writeJSON(w, http.StatusOK, s.messageDTOs())
}

// handleAsk runs the full round trip synchronously and replies with the
// refreshed log, so the page never needs to poll.
func (s *Shell) handleAsk(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.methodNotAllowed(w, http.MethodPost)
		return
	}

	var req askBridgeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, fmt.Errorf("decode request: %w", err))
		return
	}

	if err := s.dispatcher.Submit(r.Context(), req.Question); err != nil {
		if errors.Is(err, chat.ErrBusy) {
			s.writeError(w, http.StatusConflict, err)
			return
		}
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}

	s.writeJSON(w, http.StatusOK, s.messageDTOs())
}

func (s *Shell) handleState(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.methodNotAllowed(w, http.MethodGet)
		return
	}

	state := stateDTO{
		Pending:    s.session.Pending(),
		Documents:  s.docs.Known(),
		UploadBusy: s.uploads.InFlight(),
	}
	if selected, ok := s.docs.Selection(); ok {
		state.Selection = selected
	}
	if staged, ok := s.uploads.Staged(); ok {
		state.Staged = staged
	}

	s.writeJSON(w, http.StatusOK, state)
}

// handleSelect scopes future questions to one known document; an empty
// filename clears the selection.
func (s *Shell) handleSelect(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.methodNotAllowed(w, http.MethodPost)
		return
	}

	var req selectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, fmt.Errorf("decode request: %w", err))
		return
	}

	if req.Filename == "" {
		s.docs.Clear()
		w.WriteHeader(http.StatusNoContent)
		return
	}
	if err := s.docs.Select(req.Filename); err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (s *Shell) handleUpload(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.methodNotAllowed(w, http.MethodPost)
		return
	}

	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		s.writeError(w, http.StatusBadRequest, fmt.Errorf("parse multipart form: %w", err))
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		s.writeError(w, http.StatusBadRequest, fmt.Errorf("read form file: %w", err))
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, fmt.Errorf("read upload: %w", err))
		return
	}

	if err := s.uploads.Stage(filepath.Base(header.Filename), data); err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}

	stored, err := s.uploads.Submit(r.Context())
	if err != nil {
		switch {
		case errors.Is(err, chat.ErrUploadInFlight):
			s.writeError(w, http.StatusConflict, err)
		default:
			// The staged file survives a failed submit for retry.
			s.writeError(w, http.StatusBadGateway, err)
		}
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]string{
		"filename": stored,
		"message":  "Uploaded and ingested successfully",
	})
}

func (s *Shell) messageDTOs() []messageDTO {
	messages := s.session.Messages()
	out := make([]messageDTO, len(messages))
	for i, msg := range messages {
		dto := messageDTO{Sender: msg.Sender, CreatedAt: msg.CreatedAt}
		if msg.Sender == chat.SenderUser {
			dto.Text = msg.Text
			dto.Summary = summarize(msg.Text)
		} else {
			structured, err := json.Marshal(msg.Answer)
			if err != nil {
				s.logger.Printf("marshal answer: %v", err)
				dto.Text = msg.Answer.Render()
			} else {
				dto.Structured = structured
			}
		}
		out[i] = dto
	}
	return out
}

// summarize is the history view's shorthand for a question: its first three
// words.
func summarize(text string) string {
	words := strings.Fields(text)
	if len(words) <= 3 {
		return strings.Join(words, " ")
	}
	return strings.Join(words[:3], " ") + "..."
}

func (s *Shell) methodNotAllowed(w http.ResponseWriter, allowed string) {
	w.Header().Set("Allow", allowed)
	s.writeError(w, http.StatusMethodNotAllowed, fmt.Errorf("method not allowed, use %s", allowed))
}

func (s *Shell) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Printf("encode response: %v", err)
	}
}

func (s *Shell) writeError(w http.ResponseWriter, status int, err error) {
	s.logger.Printf("shell error (%d): %v", status, err)
	s.writeJSON(w, status, errorResponse{Error: err.Error()})
}

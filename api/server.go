// Package api exposes the question-answering service over HTTP: POST /ask,
// POST /upload_pdf, GET /uploaded_pdfs.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/pdfchat/pdfchat/rag"
)

const maxUploadBytes = 64 << 20

// Answerer produces one answer, optionally scoped to a stored document.
type Answerer interface {
	Answer(ctx context.Context, question, filename string) (rag.Result, error)
}

// Ingester indexes a stored PDF from the data directory.
type Ingester interface {
	IngestPDF(ctx context.Context, dir, filename string) error
}

type Server struct {
	dataDir  string
	answerer Answerer
	ingester Ingester
	logger   *log.Logger
	handler  http.Handler
}

type askRequest struct {
	Question string `json:"question"`
	Filename string `json:"filename"`
}

type askResponse struct {
	Answer  rag.Result `json:"answer"`
	Summary string     `json:"summary"`
}

type uploadResponse struct {
	Filename string `json:"filename"`
	Message  string `json:"message"`
}

type listResponse struct {
	PDFs []string `json:"pdfs"`
}

type messageResponse struct {
	Message string `json:"message"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func New(dataDir string, answerer Answerer, ingester Ingester, logger *log.Logger) *Server {
	if logger == nil {
		logger = log.Default()
	}

	s := &Server{
		dataDir:  dataDir,
		answerer: answerer,
		ingester: ingester,
		logger:   logger,
	}
	s.handler = withCORS(s.routes())
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", s.handleHealth)
	mux.HandleFunc("/ask", s.handleAsk)
	mux.HandleFunc("/upload_pdf", s.handleUpload)
	mux.HandleFunc("/uploaded_pdfs", s.handleList)
	return mux
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.methodNotAllowed(w, http.MethodGet)
		return
	}
	s.writeJSON(w, http.StatusOK, messageResponse{Message: "ok"})
}

func (s *Server) handleAsk(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.methodNotAllowed(w, http.MethodPost)
		return
	}

	var req askRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, fmt.Errorf("decode request: %w", err))
		return
	}

	req.Question = strings.TrimSpace(req.Question)
	if req.Question == "" {
		s.writeError(w, http.StatusBadRequest, fmt.Errorf("question is required"))
		return
	}

	result, err := s.answerer.Answer(r.Context(), req.Question, req.Filename)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, fmt.Errorf("answer question: %w", err))
		return
	}

	s.writeJSON(w, http.StatusOK, askResponse{
		Answer:  result,
		Summary: summarize(req.Question),
	})
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
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

	// Strip any client-supplied path components before touching disk.
	filename := filepath.Base(header.Filename)
	if filename == "." || filename == string(filepath.Separator) || filename == "" {
		s.writeError(w, http.StatusBadRequest, fmt.Errorf("invalid filename"))
		return
	}

	if err := os.MkdirAll(s.dataDir, 0o755); err != nil {
		s.writeError(w, http.StatusInternalServerError, fmt.Errorf("create data directory: %w", err))
		return
	}

	dst, err := os.Create(filepath.Join(s.dataDir, filename))
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, fmt.Errorf("store upload: %w", err))
		return
	}
	if _, err := io.Copy(dst, file); err != nil {
		dst.Close()
		s.writeError(w, http.StatusInternalServerError, fmt.Errorf("write upload: %w", err))
		return
	}
	if err := dst.Close(); err != nil {
		s.writeError(w, http.StatusInternalServerError, fmt.Errorf("close upload: %w", err))
		return
	}

	if err := s.ingester.IngestPDF(r.Context(), s.dataDir, filename); err != nil {
		s.writeError(w, http.StatusInternalServerError, fmt.Errorf("ingest %s: %w", filename, err))
		return
	}

	s.writeJSON(w, http.StatusOK, uploadResponse{
		Filename: filename,
		Message:  "Uploaded and ingested successfully",
	})
}

// handleList reports the PDFs present in the data directory, which is the
// ingestion source of truth.
func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.methodNotAllowed(w, http.MethodGet)
		return
	}

	entries, err := os.ReadDir(s.dataDir)
	if err != nil && !os.IsNotExist(err) {
		s.writeError(w, http.StatusInternalServerError, fmt.Errorf("read data directory: %w", err))
		return
	}

	pdfs := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if strings.HasSuffix(strings.ToLower(entry.Name()), ".pdf") {
			pdfs = append(pdfs, entry.Name())
		}
	}

	s.writeJSON(w, http.StatusOK, listResponse{PDFs: pdfs})
}

func (s *Server) methodNotAllowed(w http.ResponseWriter, allowed string) {
	w.Header().Set("Allow", allowed)
	s.writeError(w, http.StatusMethodNotAllowed, fmt.Errorf("method not allowed, use %s", allowed))
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Printf("encode response: %v", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, err error) {
	s.logger.Printf("api error (%d): %v", status, err)
	s.writeJSON(w, status, errorResponse{Error: err.Error()})
}

func decodeJSON(r *http.Request, dst any) error {
	if r.Body == nil {
		return fmt.Errorf("request body is empty")
	}
	defer r.Body.Close()

	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(dst); err != nil {
		return err
	}
	if dec.More() {
		return fmt.Errorf("request body must contain a single JSON object")
	}
	return nil
}

// summarize keeps the first three words of the question, the shorthand the
// history sidebar shows.
func summarize(question string) string {
	words := strings.Fields(question)
	if len(words) <= 3 {
		return strings.Join(words, " ")
	}
	return strings.Join(words[:3], " ") + "..."
}

func withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

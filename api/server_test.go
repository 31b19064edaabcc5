package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pdfchat/pdfchat/rag"
)

type stubAnswerer struct {
	result       rag.Result
	err          error
	gotQuestion  string
	gotFilename  string
	timesInvoked int
}

func (s *stubAnswerer) Answer(ctx context.Context, question, filename string) (rag.Result, error) {
	s.timesInvoked++
	s.gotQuestion = question
	s.gotFilename = filename
	if s.err != nil {
		return rag.Result{}, s.err
	}
	return s.result, nil
}

type stubIngester struct {
	err         error
	gotDir      string
	gotFilename string
}

func (s *stubIngester) IngestPDF(ctx context.Context, dir, filename string) error {
	s.gotDir = dir
	s.gotFilename = filename
	return s.err
}

var (
	_ Answerer = (*stubAnswerer)(nil)
	_ Ingester = (*stubIngester)(nil)
)

func testLogger() *log.Logger {
	return log.New(io.Discard, "", 0)
}

func TestAskReturnsAnswerAndSummary(t *testing.T) {
	answerer := &stubAnswerer{result: rag.Result{Sections: []rag.Section{
		{Label: "Answer", Text: "Paris"},
		{Label: "Sources", List: []string{"a.pdf"}},
	}}}
	server := New(t.TempDir(), answerer, &stubIngester{}, testLogger())

	body := strings.NewReader(`{"question": "What is the capital of France today?", "filename": "a.pdf"}`)
	rec := httptest.NewRecorder()
	server.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/ask", body))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body)
	}
	if answerer.gotQuestion != "What is the capital of France today?" || answerer.gotFilename != "a.pdf" {
		t.Fatalf("question/filename did not reach the engine: %q %q", answerer.gotQuestion, answerer.gotFilename)
	}

	got := rec.Body.String()
	if !strings.Contains(got, `"answer":{"Answer":"Paris","Sources":["a.pdf"]}`) {
		t.Fatalf("answer sections must serialize in order:\n%s", got)
	}
	if !strings.Contains(got, `"summary":"What is the..."`) {
		t.Fatalf("summary must keep the first three words:\n%s", got)
	}
}

func TestAskRejectsEmptyQuestion(t *testing.T) {
	answerer := &stubAnswerer{}
	server := New(t.TempDir(), answerer, &stubIngester{}, testLogger())

	rec := httptest.NewRecorder()
	server.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/ask", strings.NewReader(`{"question": "  "}`)))

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	if answerer.timesInvoked != 0 {
		t.Fatal("the engine must not run for an empty question")
	}
}

func TestAskEngineFailure(t *testing.T) {
	server := New(t.TempDir(), &stubAnswerer{err: errors.New("model offline")}, &stubIngester{}, testLogger())

	rec := httptest.NewRecorder()
	server.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/ask", strings.NewReader(`{"question": "q"}`)))

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}
	var payload struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil || payload.Error == "" {
		t.Fatalf("expected an error payload, got %s", rec.Body)
	}
}

func TestAskMethodNotAllowed(t *testing.T) {
	server := New(t.TempDir(), &stubAnswerer{}, &stubIngester{}, testLogger())

	rec := httptest.NewRecorder()
	server.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ask", nil))

	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", rec.Code)
	}
	if rec.Header().Get("Allow") != http.MethodPost {
		t.Fatalf("expected Allow: POST, got %q", rec.Header().Get("Allow"))
	}
}

func multipartUpload(t *testing.T, filename string, data []byte) *http.Request {
	t.Helper()

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile("file", filename)
	if err != nil {
		t.Fatalf("create form file: %v", err)
	}
	if _, err := part.Write(data); err != nil {
		t.Fatalf("write form file: %v", err)
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("close writer: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, "/upload_pdf", &body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	return req
}

func TestUploadStoresFileAndIngests(t *testing.T) {
	dir := t.TempDir()
	ingester := &stubIngester{}
	server := New(dir, &stubAnswerer{}, ingester, testLogger())

	rec := httptest.NewRecorder()
	server.ServeHTTP(rec, multipartUpload(t, "report.pdf", []byte("%PDF-1.4 body")))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body)
	}

	stored, err := os.ReadFile(filepath.Join(dir, "report.pdf"))
	if err != nil {
		t.Fatalf("stored file: %v", err)
	}
	if string(stored) != "%PDF-1.4 body" {
		t.Fatalf("stored content mismatch: %q", stored)
	}
	if ingester.gotDir != dir || ingester.gotFilename != "report.pdf" {
		t.Fatalf("ingestion did not run against the stored file: %q %q", ingester.gotDir, ingester.gotFilename)
	}

	var payload struct {
		Filename string `json:"filename"`
		Message  string `json:"message"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if payload.Filename != "report.pdf" || payload.Message != "Uploaded and ingested successfully" {
		t.Fatalf("unexpected response: %+v", payload)
	}
}

func TestUploadStripsPathComponents(t *testing.T) {
	dir := t.TempDir()
	server := New(dir, &stubAnswerer{}, &stubIngester{}, testLogger())

	rec := httptest.NewRecorder()
	server.ServeHTTP(rec, multipartUpload(t, "../../etc/report.pdf", []byte("x")))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body)
	}
	if _, err := os.Stat(filepath.Join(dir, "report.pdf")); err != nil {
		t.Fatalf("file must land inside the data directory: %v", err)
	}
}

func TestUploadIngestionFailure(t *testing.T) {
	server := New(t.TempDir(), &stubAnswerer{}, &stubIngester{err: errors.New("no text")}, testLogger())

	rec := httptest.NewRecorder()
	server.ServeHTTP(rec, multipartUpload(t, "report.pdf", []byte("x")))

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}
}

func TestUploadRequiresFileField(t *testing.T) {
	server := New(t.TempDir(), &stubAnswerer{}, &stubIngester{}, testLogger())

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	if err := writer.WriteField("other", "value"); err != nil {
		t.Fatalf("write field: %v", err)
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("close writer: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, "/upload_pdf", &body)
	req.Header.Set("Content-Type", writer.FormDataContentType())

	rec := httptest.NewRecorder()
	server.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestListReportsOnlyPDFs(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"a.pdf", "B.PDF", "notes.txt"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("x"), 0o644); err != nil {
			t.Fatalf("seed %s: %v", name, err)
		}
	}
	if err := os.Mkdir(filepath.Join(dir, "nested.pdf"), 0o755); err != nil {
		t.Fatalf("seed dir: %v", err)
	}
	server := New(dir, &stubAnswerer{}, &stubIngester{}, testLogger())

	rec := httptest.NewRecorder()
	server.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/uploaded_pdfs", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var payload struct {
		PDFs []string `json:"pdfs"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(payload.PDFs) != 2 {
		t.Fatalf("expected 2 pdfs, got %v", payload.PDFs)
	}
}

func TestListToleratesMissingDataDir(t *testing.T) {
	server := New(filepath.Join(t.TempDir(), "missing"), &stubAnswerer{}, &stubIngester{}, testLogger())

	rec := httptest.NewRecorder()
	server.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/uploaded_pdfs", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"pdfs":[]`) {
		t.Fatalf("expected an empty listing, got %s", rec.Body)
	}
}

func TestCORSPreflight(t *testing.T) {
	server := New(t.TempDir(), &stubAnswerer{}, &stubIngester{}, testLogger())

	rec := httptest.NewRecorder()
	server.ServeHTTP(rec, httptest.NewRequest(http.MethodOptions, "/ask", nil))

	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204 preflight, got %d", rec.Code)
	}
	if rec.Header().Get("Access-Control-Allow-Origin") != "*" {
		t.Fatal("preflight must carry the allow-origin header")
	}
}

func TestSummarize(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"What is the capital of France?", "What is the..."},
		{"short question", "short question"},
		{"three word question", "three word question"},
	}
	for _, tc := range cases {
		if got := summarize(tc.in); got != tc.want {
			t.Fatalf("summarize(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

// Package backend is the HTTP client for the question-answering service:
// POST /ask, POST /upload_pdf and GET /uploaded_pdfs against a configured
// base URL.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/pdfchat/pdfchat/chat"
)

type Client struct {
	baseURL string
	client  *http.Client
}

var (
	_ chat.Asker    = (*Client)(nil)
	_ chat.Uploader = (*Client)(nil)
	_ chat.Lister   = (*Client)(nil)
)

type askRequest struct {
	Question string `json:"question"`
	// The field must vanish entirely for unscoped questions; the backend
	// rejects an explicit null filename.
	Filename string `json:"filename,omitempty"`
}

type askResponse struct {
	Answer json.RawMessage `json:"answer"`
}

type uploadResponse struct {
	Filename string `json:"filename"`
	Message  string `json:"message"`
}

type listResponse struct {
	PDFs []string `json:"pdfs"`
}

func New(baseURL string) *Client {
	baseURL = strings.TrimRight(baseURL, "/")
	if baseURL == "" {
		baseURL = "http://127.0.0.1:8000"
	}

	return &Client{
		baseURL: baseURL,
		client: &http.Client{
			Timeout: 60 * time.Second,
		},
	}
}

// Ask submits a question, scoped to filename when non-empty, and returns the
// raw answer field for the normalizer to shape.
func (c *Client) Ask(ctx context.Context, question, filename string) (json.RawMessage, error) {
	body, err := json.Marshal(askRequest{Question: question, Filename: filename})
	if err != nil {
		return nil, fmt.Errorf("marshal ask request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/ask", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create ask request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("call ask endpoint: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("ask endpoint returned status %d", resp.StatusCode)
	}

	var payload askResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decode ask response: %w", err)
	}

	return payload.Answer, nil
}

// UploadPDF sends the file as the multipart form field "file" and returns
// the filename the backend stored it under.
func (c *Client) UploadPDF(ctx context.Context, filename string, data []byte) (string, error) {
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)

	part, err := writer.CreateFormFile("file", filename)
	if err != nil {
		return "", fmt.Errorf("create form file: %w", err)
	}
	if _, err := part.Write(data); err != nil {
		return "", fmt.Errorf("write form file: %w", err)
	}
	if err := writer.Close(); err != nil {
		return "", fmt.Errorf("finalize multipart body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/upload_pdf", &body)
	if err != nil {
		return "", fmt.Errorf("create upload request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("call upload endpoint: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		data, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("upload endpoint returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(data)))
	}

	var payload uploadResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return "", fmt.Errorf("decode upload response: %w", err)
	}
	if payload.Filename == "" {
		return "", fmt.Errorf("upload response carried no filename")
	}

	return payload.Filename, nil
}

// ListPDFs fetches the filenames the backend already ingested.
func (c *Client) ListPDFs(ctx context.Context) ([]string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/uploaded_pdfs", nil)
	if err != nil {
		return nil, fmt.Errorf("create list request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("call list endpoint: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("list endpoint returned status %d", resp.StatusCode)
	}

	var payload listResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decode list response: %w", err)
	}

	return payload.PDFs, nil
}

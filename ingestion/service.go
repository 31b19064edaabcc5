// Package ingestion turns an uploaded PDF into retrievable chunks: extract
// text, split with overlap, embed, persist to Postgres, and refresh the
// document graph.
package ingestion

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log"
	"math"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"github.com/pdfchat/pdfchat/database"
	"github.com/pdfchat/pdfchat/knowledge"
	"github.com/pdfchat/pdfchat/llm"
)

// Documents closer than this (cosine similarity of chunk centroids) get a
// SIMILAR_TO edge in the graph.
const similarityFloor = 0.7

type Service struct {
	pool      *pgxpool.Pool
	graph     *knowledge.Graph
	embedder  llm.Embedder
	logger    *log.Logger
	dimension int
}

func NewService(pool *pgxpool.Pool, graph *knowledge.Graph, embedder llm.Embedder, logger *log.Logger, dimension int) *Service {
	if logger == nil {
		logger = log.Default()
	}
	return &Service{
		pool:      pool,
		graph:     graph,
		embedder:  embedder,
		logger:    logger,
		dimension: dimension,
	}
}

// IngestPDF indexes one stored PDF from the data directory. Re-uploading an
// unchanged file is a no-op; changed content replaces the old chunks.
func (s *Service) IngestPDF(ctx context.Context, dir, filename string) error {
	if s.embedder == nil {
		return fmt.Errorf("embedder not configured")
	}
	if err := database.EnsureSchema(ctx, s.pool, s.dimension); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}

	data, err := os.ReadFile(filepath.Join(dir, filename))
	if err != nil {
		return fmt.Errorf("read pdf: %w", err)
	}

	text, pages, err := ExtractText(data)
	if err != nil {
		return fmt.Errorf("parse %s: %w", filename, err)
	}

	chunks := Chunk(text, defaultChunkSize, defaultChunkOverlap)
	if len(chunks) == 0 {
		s.logger.Printf("no extractable text in %s, skipping index", filename)
		return nil
	}

	title := FirstLine(text)
	if title == "" {
		title = filename
	}

	hash := sha256.Sum256(data)
	hashHex := hex.EncodeToString(hash[:])

	docID, changed, err := s.upsertDocument(ctx, filename, title, hashHex, pages)
	if err != nil {
		return err
	}
	if !changed {
		s.logger.Printf("%s unchanged, skipping index", filename)
		return nil
	}

	vectors, err := s.embedder.Embed(ctx, chunks)
	if err != nil {
		return fmt.Errorf("embed chunks: %w", err)
	}
	if len(vectors) != len(chunks) {
		return fmt.Errorf("embedder returned %d vectors for %d chunks", len(vectors), len(chunks))
	}

	if err := s.replaceChunks(ctx, docID, chunks, vectors); err != nil {
		return err
	}

	s.logger.Printf("indexed %s: %d chunks, %d pages", filename, len(chunks), pages)

	// Graph enrichment is best-effort; a missing graph never fails an
	// upload.
	if s.graph != nil {
		if err := s.syncGraph(ctx, docID, filename, title, pages, centroid(vectors)); err != nil {
			s.logger.Printf("graph sync for %s: %v", filename, err)
		}
	}

	return nil
}

// upsertDocument records the document row and reports whether its content
// hash changed since the last ingest.
func (s *Service) upsertDocument(ctx context.Context, filename, title, hashHex string, pages int) (string, bool, error) {
	var docID, existingSHA string
	err := s.pool.QueryRow(ctx,
		"SELECT id, sha256 FROM pdf_documents WHERE filename = $1", filename,
	).Scan(&docID, &existingSHA)

	switch {
	case errors.Is(err, pgx.ErrNoRows):
		docID = uuid.NewString()
		if _, err := s.pool.Exec(ctx, `
			INSERT INTO pdf_documents (id, filename, title, sha256, page_count)
			VALUES ($1, $2, $3, $4, $5)
		`, docID, filename, title, hashHex, pages); err != nil {
			return "", false, fmt.Errorf("insert document: %w", err)
		}
		return docID, true, nil
	case err != nil:
		return "", false, fmt.Errorf("look up document: %w", err)
	}

	if existingSHA == hashHex {
		return docID, false, nil
	}

	if _, err := s.pool.Exec(ctx, `
		UPDATE pdf_documents
		SET title = $2, sha256 = $3, page_count = $4, updated_at = NOW()
		WHERE id = $1
	`, docID, title, hashHex, pages); err != nil {
		return "", false, fmt.Errorf("update document: %w", err)
	}
	return docID, true, nil
}

func (s *Service) replaceChunks(ctx context.Context, docID string, chunks []string, vectors [][]float32) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin chunk transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, "DELETE FROM pdf_chunks WHERE document_id = $1", docID); err != nil {
		return fmt.Errorf("delete stale chunks: %w", err)
	}

	for i, content := range chunks {
		if _, err := tx.Exec(ctx, `
			INSERT INTO pdf_chunks (id, document_id, chunk_index, content, embedding)
			VALUES ($1, $2, $3, $4, $5)
		`, uuid.NewString(), docID, i, content, pgvector.NewVector(vectors[i])); err != nil {
			return fmt.Errorf("insert chunk %d: %w", i, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit chunk transaction: %w", err)
	}
	return nil
}

func (s *Service) syncGraph(ctx context.Context, docID, filename, title string, pages int, center []float32) error {
	if err := s.graph.SyncDocument(ctx, knowledge.Document{
		ID:       docID,
		Filename: filename,
		Title:    title,
		Pages:    pages,
	}); err != nil {
		return err
	}

	rows, err := s.pool.Query(ctx, `
		SELECT document_id, AVG(embedding)::vector
		FROM pdf_chunks
		WHERE document_id <> $1
		GROUP BY document_id
	`, docID)
	if err != nil {
		return fmt.Errorf("query document centroids: %w", err)
	}
	defer rows.Close()

	links := make([]knowledge.SimilarLink, 0)
	for rows.Next() {
		var otherID string
		var other pgvector.Vector
		if err := rows.Scan(&otherID, &other); err != nil {
			return fmt.Errorf("scan document centroid: %w", err)
		}
		if sim := cosineSimilarity(center, other.Slice()); sim >= similarityFloor {
			links = append(links, knowledge.SimilarLink{OtherID: otherID, Weight: sim})
		}
	}
	if rows.Err() != nil {
		return rows.Err()
	}

	return s.graph.ReplaceSimilarEdges(ctx, docID, links)
}

func centroid(vectors [][]float32) []float32 {
	if len(vectors) == 0 {
		return nil
	}
	out := make([]float32, len(vectors[0]))
	for _, vec := range vectors {
		for i := range out {
			if i < len(vec) {
				out[i] += vec[i]
			}
		}
	}
	for i := range out {
		out[i] /= float32(len(vectors))
	}
	return out
}

func cosineSimilarity(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

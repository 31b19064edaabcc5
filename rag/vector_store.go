package rag

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
)

// VectorStore retrieves the chunks nearest to an embedding, optionally
// restricted to a single document.
type VectorStore interface {
	SimilarChunks(ctx context.Context, embedding []float32, limit int, filename string) ([]ChunkResult, error)
}

type PostgresVectorStore struct {
	pool *pgxpool.Pool
}

func NewPostgresVectorStore(pool *pgxpool.Pool) *PostgresVectorStore {
	return &PostgresVectorStore{pool: pool}
}

func (s *PostgresVectorStore) SimilarChunks(ctx context.Context, embedding []float32, limit int, filename string) ([]ChunkResult, error) {
	if s.pool == nil {
		return nil, fmt.Errorf("postgres pool is nil")
	}
	if len(embedding) == 0 {
		return nil, fmt.Errorf("embedding is empty")
	}
	if limit <= 0 {
		limit = defaultRetrievalLimit
	}

	conn, err := s.pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	probes := limit * 10
	if probes < 10 {
		probes = 10
	}
	if _, err := conn.Exec(ctx, fmt.Sprintf("SET ivfflat.probes = %d", probes)); err != nil {
		return nil, fmt.Errorf("set ivfflat probes: %w", err)
	}

	query := `
        SELECT
            pc.id,
            pc.document_id,
            pd.filename,
            pd.title,
            pc.content,
            (pc.embedding <-> $1::vector) AS distance
        FROM pdf_chunks pc
        JOIN pdf_documents pd ON pd.id = pc.document_id
    `
	args := []any{pgvector.NewVector(embedding), limit}
	if filename != "" {
		query += " WHERE pd.filename = $3"
		args = append(args, filename)
	}
	query += " ORDER BY pc.embedding <-> $1::vector LIMIT $2"

	rows, err := conn.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query similar chunks: %w", err)
	}
	defer rows.Close()

	results := make([]ChunkResult, 0, limit)
	for rows.Next() {
		var item ChunkResult
		var distance float64
		if scanErr := rows.Scan(&item.ChunkID, &item.DocumentID, &item.Filename, &item.Title, &item.Content, &distance); scanErr != nil {
			return nil, fmt.Errorf("scan similar chunk: %w", scanErr)
		}
		item.Score = 1 / (1 + distance)
		results = append(results, item)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}

	return results, nil
}

var _ VectorStore = (*PostgresVectorStore)(nil)

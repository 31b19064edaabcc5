package rag

import (
	"context"
	"fmt"
	"sort"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
)

// GraphStore answers "which documents sit near these ones" from the
// knowledge graph.
type GraphStore interface {
	RelatedDocuments(ctx context.Context, filenames []string) (map[string][]RelatedDoc, error)
}

type Neo4jGraphStore struct {
	driver neo4j.DriverWithContext
}

func NewNeo4jGraphStore(driver neo4j.DriverWithContext) *Neo4jGraphStore {
	return &Neo4jGraphStore{driver: driver}
}

func (s *Neo4jGraphStore) RelatedDocuments(ctx context.Context, filenames []string) (map[string][]RelatedDoc, error) {
	if s.driver == nil {
		return nil, fmt.Errorf("neo4j driver is nil")
	}
	if len(filenames) == 0 {
		return map[string][]RelatedDoc{}, nil
	}

	session := s.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeRead})
	defer session.Close(ctx)

	result, err := session.Run(ctx, `
		MATCH (d:Document)
		WHERE d.filename IN $names
		MATCH (d)-[r:SIMILAR_TO]-(o:Document)
		RETURN d.filename AS filename,
		       o.filename AS related,
		       o.title AS title,
		       r.weight AS weight
	`, map[string]any{"names": filenames})
	if err != nil {
		return nil, fmt.Errorf("run related documents query: %w", err)
	}

	related := make(map[string][]RelatedDoc, len(filenames))
	for result.Next(ctx) {
		record := result.Record()
		filename, _ := record.Get("filename")
		other, _ := record.Get("related")
		title, _ := record.Get("title")
		weight, _ := record.Get("weight")

		name, ok := filename.(string)
		if !ok {
			continue
		}
		otherName, ok := other.(string)
		if !ok {
			continue
		}

		doc := RelatedDoc{Filename: otherName}
		if t, ok := title.(string); ok {
			doc.Title = t
		}
		if w, ok := weight.(float64); ok {
			doc.Weight = w
		}
		related[name] = append(related[name], doc)
	}
	if err := result.Err(); err != nil {
		return nil, fmt.Errorf("read related documents: %w", err)
	}

	for name := range related {
		docs := related[name]
		sort.Slice(docs, func(i, j int) bool { return docs[i].Weight > docs[j].Weight })
		related[name] = docs
	}

	return related, nil
}

var _ GraphStore = (*Neo4jGraphStore)(nil)

// Package knowledge maintains the Neo4j document graph: one node per
// ingested document and weighted SIMILAR_TO edges between documents whose
// embedding centroids sit close together. The answer engine reads the graph
// to suggest related documents alongside scoped answers.
package knowledge

import (
	"context"
	"fmt"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
)

type Document struct {
	ID       string
	Filename string
	Title    string
	Pages    int
}

// SimilarLink points from a freshly ingested document to an older one.
type SimilarLink struct {
	OtherID string
	Weight  float64
}

type Graph struct {
	driver neo4j.DriverWithContext
}

func NewGraph(driver neo4j.DriverWithContext) *Graph {
	return &Graph{driver: driver}
}

// SyncDocument upserts the document node.
func (g *Graph) SyncDocument(ctx context.Context, doc Document) error {
	if g.driver == nil {
		return fmt.Errorf("neo4j driver is nil")
	}

	session := g.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeWrite})
	defer session.Close(ctx)

	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		_, err := tx.Run(ctx, `
			MERGE (d:Document {id: $id})
			SET d.filename = $filename,
			    d.title = $title,
			    d.pages = $pages
		`, map[string]any{
			"id":       doc.ID,
			"filename": doc.Filename,
			"title":    doc.Title,
			"pages":    doc.Pages,
		})
		return nil, err
	})
	if err != nil {
		return fmt.Errorf("sync document node: %w", err)
	}
	return nil
}

// ReplaceSimilarEdges drops the document's SIMILAR_TO edges and writes the
// given set. Called after every ingest so re-uploads refresh stale weights.
func (g *Graph) ReplaceSimilarEdges(ctx context.Context, docID string, links []SimilarLink) error {
	if g.driver == nil {
		return fmt.Errorf("neo4j driver is nil")
	}

	session := g.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeWrite})
	defer session.Close(ctx)

	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		if _, err := tx.Run(ctx, `
			MATCH (d:Document {id: $id})-[r:SIMILAR_TO]-()
			DELETE r
		`, map[string]any{"id": docID}); err != nil {
			return nil, err
		}

		for _, link := range links {
			if _, err := tx.Run(ctx, `
				MATCH (d:Document {id: $id}), (o:Document {id: $other})
				MERGE (d)-[r:SIMILAR_TO]->(o)
				SET r.weight = $weight
			`, map[string]any{
				"id":     docID,
				"other":  link.OtherID,
				"weight": link.Weight,
			}); err != nil {
				return nil, err
			}
		}
		return nil, nil
	})
	if err != nil {
		return fmt.Errorf("replace similarity edges: %w", err)
	}
	return nil
}

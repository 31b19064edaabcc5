// Package rag answers questions from the ingested corpus: embed the
// question, retrieve the nearest chunks (optionally scoped to one document),
// prompt the model with that context, and shape the output into ordered
// answer sections.
package rag

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"

	"github.com/pdfchat/pdfchat/llm"
)

const defaultRetrievalLimit = 4

type Service struct {
	vectors  VectorStore
	graph    GraphStore
	embedder llm.Embedder
	llm      llm.Client
	logger   *log.Logger
}

func NewService(vectors VectorStore, graph GraphStore, embedder llm.Embedder, llmClient llm.Client, logger *log.Logger) *Service {
	if logger == nil {
		logger = log.Default()
	}
	return &Service{
		vectors:  vectors,
		graph:    graph,
		embedder: embedder,
		llm:      llmClient,
		logger:   logger,
	}
}

// Answer runs one retrieval-augmented round trip. filename scopes retrieval
// to that document when non-empty, mirroring the client's selection.
func (s *Service) Answer(ctx context.Context, question, filename string) (Result, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return Result{}, fmt.Errorf("question cannot be empty")
	}
	if s.embedder == nil || s.vectors == nil || s.llm == nil {
		return Result{}, fmt.Errorf("answer engine is not fully configured")
	}

	vectors, err := s.embedder.Embed(ctx, []string{question})
	if err != nil {
		return Result{}, fmt.Errorf("embed question: %w", err)
	}
	if len(vectors) == 0 {
		return Result{}, fmt.Errorf("embedder returned no vectors")
	}

	chunks, err := s.vectors.SimilarChunks(ctx, vectors[0], defaultRetrievalLimit, filename)
	if err != nil {
		return Result{}, fmt.Errorf("vector search: %w", err)
	}
	if len(chunks) == 0 {
		s.logger.Printf("no context for question, falling back to model-only answer")
	}

	messages := []llm.Message{
		{Role: llm.RoleSystem, Content: systemPrompt(chunks)},
		{Role: llm.RoleUser, Content: question},
	}

	generated, err := s.llm.Generate(ctx, messages)
	if err != nil {
		return Result{}, fmt.Errorf("llm generate: %w", err)
	}

	result := shapeAnswer(strings.TrimSpace(generated))

	if sources := sourceFilenames(chunks); len(sources) > 0 {
		result.Sections = append(result.Sections, Section{Label: "Sources", List: sources})
		result.Sections = append(result.Sections, s.relatedSection(ctx, sources)...)
	}

	return result, nil
}

// shapeAnswer keeps the model's own section structure when it emitted a JSON
// object, otherwise wraps the text in a single Answer section. Unparseable
// JSON is treated as plain text, never as an error.
func shapeAnswer(generated string) Result {
	if strings.HasPrefix(generated, "{") {
		if sections, err := decodeObjectSections([]byte(generated)); err == nil && len(sections) > 0 {
			return Result{Sections: sections}
		}
	}
	if generated == "" {
		generated = "No answer received"
	}
	return Result{Sections: []Section{{Label: "Answer", Text: generated}}}
}

// decodeObjectSections reads a JSON object with the token API so the model's
// field order is preserved. String values stay as-is, string arrays become
// lists, anything else keeps its JSON text.
func decodeObjectSections(raw []byte) ([]Section, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return nil, fmt.Errorf("not a JSON object")
	}

	sections := make([]Section, 0, 4)
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		label, ok := keyTok.(string)
		if !ok {
			return nil, fmt.Errorf("unexpected token %v", keyTok)
		}

		var value json.RawMessage
		if err := dec.Decode(&value); err != nil {
			return nil, err
		}

		section := Section{Label: label}
		var list []string
		var text string
		switch {
		case json.Unmarshal(value, &list) == nil:
			section.List = list
		case json.Unmarshal(value, &text) == nil:
			section.Text = text
		default:
			section.Text = string(bytes.TrimSpace(value))
		}
		sections = append(sections, section)
	}

	if _, err := dec.Token(); err != nil {
		return nil, err
	}
	return sections, nil
}

func (s *Service) relatedSection(ctx context.Context, sources []string) []Section {
	if s.graph == nil {
		return nil
	}

	relatedByDoc, err := s.graph.RelatedDocuments(ctx, sources)
	if err != nil {
		s.logger.Printf("related documents lookup: %v", err)
		return nil
	}

	seen := make(map[string]struct{}, len(sources))
	for _, name := range sources {
		seen[name] = struct{}{}
	}

	related := make([]string, 0)
	for _, name := range sources {
		for _, doc := range relatedByDoc[name] {
			if _, ok := seen[doc.Filename]; ok {
				continue
			}
			seen[doc.Filename] = struct{}{}
			related = append(related, doc.Filename)
		}
	}
	if len(related) == 0 {
		return nil
	}
	return []Section{{Label: "Related", List: related}}
}

func sourceFilenames(chunks []ChunkResult) []string {
	seen := make(map[string]struct{}, len(chunks))
	names := make([]string, 0, len(chunks))
	for _, chunk := range chunks {
		if _, ok := seen[chunk.Filename]; ok {
			continue
		}
		seen[chunk.Filename] = struct{}{}
		names = append(names, chunk.Filename)
	}
	return names
}

func systemPrompt(chunks []ChunkResult) string {
	var sb strings.Builder
	sb.WriteString("You are a helpful assistant. Use only the provided context to answer.\n\n<context>\n")
	for _, chunk := range chunks {
		sb.WriteString(chunk.Content)
		sb.WriteString("\n\n")
	}
	sb.WriteString("</context>")
	return sb.String()
}

package ingestion

import (
	"strings"
	"testing"
)

func TestChunkEmptyText(t *testing.T) {
	if got := Chunk("", 800, 150); got != nil {
		t.Fatalf("empty text must yield no chunks, got %v", got)
	}
	if got := Chunk("   \n\t  ", 800, 150); got != nil {
		t.Fatalf("whitespace-only text must yield no chunks, got %v", got)
	}
}

func TestChunkShortTextIsSingleChunk(t *testing.T) {
	chunks := Chunk("a short piece of text", 800, 150)

	if len(chunks) != 1 || chunks[0] != "a short piece of text" {
		t.Fatalf("unexpected chunks: %v", chunks)
	}
}

func TestChunkRespectsSizeLimit(t *testing.T) {
	text := strings.Repeat("word ", 500)
	chunks := Chunk(text, 100, 20)

	if len(chunks) < 2 {
		t.Fatalf("expected multiple chunks, got %d", len(chunks))
	}
	for i, chunk := range chunks {
		if len(chunk) > 100 {
			t.Fatalf("chunk %d exceeds the size limit (%d chars): %q", i, len(chunk), chunk)
		}
	}
}

func TestChunkOverlapCarriesText(t *testing.T) {
	words := make([]string, 0, 100)
	for i := 0; i < 100; i++ {
		words = append(words, "w"+string(rune('a'+i%26)))
	}
	text := strings.Join(words, " ")

	chunks := Chunk(text, 60, 20)
	if len(chunks) < 2 {
		t.Fatalf("expected multiple chunks, got %d", len(chunks))
	}

	for i := 1; i < len(chunks); i++ {
		prevTail := strings.Fields(chunks[i-1])
		currHead := strings.Fields(chunks[i])
		if prevTail[len(prevTail)-1] != currHead[0] && !strings.Contains(chunks[i-1], currHead[0]) {
			t.Fatalf("chunk %d does not overlap its predecessor:\n%q\n%q", i, chunks[i-1], chunks[i])
		}
	}
}

func TestChunkCoversAllWords(t *testing.T) {
	text := strings.Repeat("alpha beta gamma delta ", 50)
	chunks := Chunk(text, 80, 15)

	joined := strings.Join(chunks, " ")
	for _, word := range []string{"alpha", "beta", "gamma", "delta"} {
		if !strings.Contains(joined, word) {
			t.Fatalf("chunks lost the word %q", word)
		}
	}

	lastWords := strings.Fields(chunks[len(chunks)-1])
	if lastWords[len(lastWords)-1] != "delta" {
		t.Fatalf("final chunk must end on the final word, got %q", lastWords[len(lastWords)-1])
	}
}

func TestChunkDefaultsOnBadParameters(t *testing.T) {
	text := strings.Repeat("word ", 400)

	if got := Chunk(text, 0, 150); len(got) == 0 {
		t.Fatal("a zero size must fall back to the default")
	}
	if got := Chunk(text, 100, 100); len(got) == 0 {
		t.Fatal("an overlap >= size must fall back to a sane value")
	}
	if got := Chunk(text, 100, -5); len(got) == 0 {
		t.Fatal("a negative overlap must fall back to a sane value")
	}
}

func TestNormalizeTextCollapsesWhitespace(t *testing.T) {
	got := normalizeText("First   line\r\n\r\n  Second\tline  \n\n")

	if got != "First line\nSecond line" {
		t.Fatalf("unexpected normalized text: %q", got)
	}
}

func TestFirstLine(t *testing.T) {
	if got := FirstLine("\n  \nAnnual Report\nBody text"); got != "Annual Report" {
		t.Fatalf("expected the first non-empty line, got %q", got)
	}
	if got := FirstLine("   \n  "); got != "" {
		t.Fatalf("expected empty title, got %q", got)
	}
}

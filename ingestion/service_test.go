package ingestion

import (
	"math"
	"testing"
)

func TestCentroid(t *testing.T) {
	got := centroid([][]float32{
		{1, 2, 3},
		{3, 4, 5},
	})

	want := []float32{2, 3, 4}
	if len(got) != len(want) {
		t.Fatalf("unexpected centroid: %v", got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("centroid[%d] = %v, want %v", i, got[i], want[i])
		}
	}

	if centroid(nil) != nil {
		t.Fatal("no vectors must yield a nil centroid")
	}
}

func TestCosineSimilarity(t *testing.T) {
	if got := cosineSimilarity([]float32{1, 0}, []float32{1, 0}); math.Abs(got-1) > 1e-9 {
		t.Fatalf("identical vectors should score 1, got %v", got)
	}
	if got := cosineSimilarity([]float32{1, 0}, []float32{0, 1}); math.Abs(got) > 1e-9 {
		t.Fatalf("orthogonal vectors should score 0, got %v", got)
	}
	if got := cosineSimilarity([]float32{1, 0}, []float32{-1, 0}); math.Abs(got+1) > 1e-9 {
		t.Fatalf("opposite vectors should score -1, got %v", got)
	}
	if got := cosineSimilarity([]float32{1, 2}, []float32{1, 2, 3}); got != 0 {
		t.Fatalf("mismatched dimensions should score 0, got %v", got)
	}
	if got := cosineSimilarity([]float32{0, 0}, []float32{1, 2}); got != 0 {
		t.Fatalf("a zero vector should score 0, got %v", got)
	}
}

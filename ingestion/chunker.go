package ingestion

import "strings"

const (
	defaultChunkSize    = 800
	defaultChunkOverlap = 150
)

// Chunk splits text into overlapping pieces of roughly size characters,
// breaking on word boundaries. The overlap keeps sentences that straddle a
// boundary retrievable from both sides.
func Chunk(text string, size, overlap int) []string {
	if size <= 0 {
		size = defaultChunkSize
	}
	if overlap < 0 || overlap >= size {
		overlap = defaultChunkOverlap
		if overlap >= size {
			overlap = size / 4
		}
	}

	words := strings.Fields(text)
	if len(words) == 0 {
		return nil
	}

	chunks := make([]string, 0)
	start := 0
	for start < len(words) {
		length := 0
		end := start
		for end < len(words) {
			wordLen := len(words[end])
			if length > 0 {
				wordLen++
			}
			if length+wordLen > size && length > 0 {
				break
			}
			length += wordLen
			end++
		}

		chunks = append(chunks, strings.Join(words[start:end], " "))
		if end >= len(words) {
			break
		}

		// Step back far enough to carry ~overlap characters into the
		// next chunk.
		back := end
		carried := 0
		for back > start+1 && carried < overlap {
			back--
			carried += len(words[back]) + 1
		}
		start = back
	}

	return chunks
}

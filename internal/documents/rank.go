package documents

import (
	"math"
	"sort"
)

// Passage is a chunk with its similarity to the question
type Passage struct {
	ID    int
	Text  string
	Score float64
}

// Cosine is the cosine similarity of a and b. Mismatched or zero vectors
// score 0.
func Cosine(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		normA += x * x
		normB += y * y
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

// Rank scores every chunk against the query and keeps the best k, highest
// first. Ties keep document order.
func Rank(chunks []string, vectors [][]float32, query []float32, k int) []Passage {
	passages := make([]Passage, 0, len(chunks))
	for i, text := range chunks {
		var score float64
		if i < len(vectors) {
			score = Cosine(vectors[i], query)
		}
		passages = append(passages, Passage{ID: i, Text: text, Score: score})
	}

	sort.SliceStable(passages, func(i, j int) bool {
		return passages[i].Score > passages[j].Score
	})

	if k > 0 && len(passages) > k {
		passages = passages[:k]
	}
	return passages
}

package embedding

import "math"

// Cosine returns the cosine similarity of a and b in [-1, 1]. Zero-magnitude
// vectors and mismatched lengths yield 0 rather than dividing by zero.
// Symmetric: Cosine(a, b) == Cosine(b, a).
func Cosine(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
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

	sim := dot / (math.Sqrt(normA) * math.Sqrt(normB))
	// Floating error can push the ratio a hair outside [-1, 1].
	return math.Max(-1, math.Min(1, sim))
}

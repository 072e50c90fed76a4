package vectordb

import (
	"fmt"
	"math"
	"sort"
)

// ComputeDistance calculates the distance between two vectors.
func ComputeDistance(v1, v2 []float32, distType DistanceType) (float32, error) {
	if len(v1) != len(v2) {
		return 0, fmt.Errorf("vector dimensions do not match: %d vs %d", len(v1), len(v2))
	}

	switch distType {
	case Cosine:
		return cosineDistance(v1, v2), nil
	case DotProduct:
		return dotProduct(v1, v2), nil
	case Euclidean:
		return euclideanDistance(v1, v2), nil
	default:
		return 0, fmt.Errorf("unsupported distance type: %s", distType)
	}
}

// cosineDistance is 1 - cosine similarity.
func cosineDistance(v1, v2 []float32) float32 {
	dot := dotProduct(v1, v2)
	norm1 := vectorNorm(v1)
	norm2 := vectorNorm(v2)

	if norm1 == 0 || norm2 == 0 {
		return 1.0
	}

	similarity := dot / (norm1 * norm2)
	// clamp float drift
	if similarity > 1.0 {
		similarity = 1.0
	}

	return 1.0 - similarity
}

func dotProduct(v1, v2 []float32) float32 {
	var dot float32
	for i := 0; i < len(v1); i++ {
		dot += v1[i] * v2[i]
	}
	return dot
}

func euclideanDistance(v1, v2 []float32) float32 {
	var sum float32
	for i := 0; i < len(v1); i++ {
		d := v1[i] - v2[i]
		sum += d * d
	}
	return float32(math.Sqrt(float64(sum)))
}

// vectorNorm is the L2 norm.
func vectorNorm(v []float32) float32 {
	var sum float32
	for _, val := range v {
		sum += val * val
	}
	return float32(math.Sqrt(float64(sum)))
}

// normalizeVector scales a vector to unit length.
func normalizeVector(v []float32) []float32 {
	norm := vectorNorm(v)
	if norm == 0 {
		return v
	}

	result := make([]float32, len(v))
	for i, val := range v {
		result[i] = val / norm
	}
	return result
}

// FilterDocuments applies the filter's file ID and metadata conditions.
func FilterDocuments(docs []Document, filter SearchFilter) []Document {
	if len(docs) == 0 {
		return nil
	}

	fileIDMap := make(map[string]bool)
	for _, id := range filter.FileIDs {
		fileIDMap[id] = true
	}

	var result []Document
	for _, doc := range docs {
		if len(fileIDMap) > 0 && !fileIDMap[doc.FileID] {
			continue
		}
		if !matchMetadata(doc.Metadata, filter.Metadata) {
			continue
		}
		result = append(result, doc)
	}

	return result
}

func matchMetadata(docMeta map[string]interface{}, filterMeta map[string]interface{}) bool {
	if len(filterMeta) == 0 {
		return true
	}

	for key, filterValue := range filterMeta {
		docValue, exists := docMeta[key]
		if !exists || docValue != filterValue {
			return false
		}
	}

	return true
}

// SortSearchResults orders by score descending, breaking ties on
// document ID so identical queries always return the same order.
func SortSearchResults(results []SearchResult) {
	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].Document.ID < results[j].Document.ID
	})
}

// DistanceToScore maps a raw distance to a score in [0, 1].
func DistanceToScore(distance float32, distType DistanceType) float32 {
	switch distType {
	case Cosine:
		return 1 - distance
	case DotProduct:
		// normalized vectors give values in [-1, 1]
		return (distance + 1) / 2
	case Euclidean:
		// gaussian decay, smaller distance scores higher
		return float32(math.Exp(-float64(distance)))
	default:
		return 0
	}
}

// ValidateVector checks a vector's dimensionality.
func ValidateVector(vector []float32, expectedDim int) error {
	if len(vector) == 0 {
		return ErrEmptyVector
	}

	if expectedDim > 0 && len(vector) != expectedDim {
		return fmt.Errorf("%w: expected %d, got %d", ErrInvalidDimension, expectedDim, len(vector))
	}

	return nil
}

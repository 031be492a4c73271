package vector

import (
	"sort"

	"github.com/DekelUsach/Loomi-backend/internal/keyword"
)

// FusedResult holds a chunk id with its fused keyword/semantic scores.
type FusedResult struct {
	ID            string
	Score         float64
	KeywordScore  float64
	SemanticScore float64
}

// NormalizeKeywordScores scales keyword scores into [0,1] by the maximum.
func NormalizeKeywordScores(results []keyword.Result) map[string]float64 {
	normalized := make(map[string]float64, len(results))
	var maxScore float64
	for _, r := range results {
		if r.Score > maxScore {
			maxScore = r.Score
		}
	}
	for _, r := range results {
		if maxScore > 0 {
			normalized[r.ID] = r.Score / maxScore
		} else {
			normalized[r.ID] = 0
		}
	}
	return normalized
}

// NormalizeSemanticScores clamps cosine scores into [0,1].
func NormalizeSemanticScores(results []VectorResult) map[string]float64 {
	normalized := make(map[string]float64, len(results))
	for _, r := range results {
		s := r.Score
		if s < 0 {
			s = 0
		}
		if s > 1 {
			s = 1
		}
		normalized[r.ID] = s
	}
	return normalized
}

// Fuse merges keyword and semantic score maps with weights, best first.
// Ties break on id so results are stable.
func Fuse(keywordScores, semanticScores map[string]float64, keywordWeight, semanticWeight float64) []FusedResult {
	byID := make(map[string]*FusedResult, len(keywordScores)+len(semanticScores))
	for id, score := range keywordScores {
		byID[id] = &FusedResult{ID: id, KeywordScore: score}
	}
	for id, score := range semanticScores {
		if r, ok := byID[id]; ok {
			r.SemanticScore = score
			continue
		}
		byID[id] = &FusedResult{ID: id, SemanticScore: score}
	}
	results := make([]FusedResult, 0, len(byID))
	for _, r := range byID {
		r.Score = keywordWeight*r.KeywordScore + semanticWeight*r.SemanticScore
		results = append(results, *r)
	}
	sort.Slice(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].ID < results[j].ID
	})
	return results
}

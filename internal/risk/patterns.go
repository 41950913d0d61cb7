package risk

import "sort"

// AnalyzePatterns counts how often each pattern label occurs. The result holds
// exactly the distinct labels seen; an empty input yields an empty map.
func AnalyzePatterns(patterns []string) map[string]int {
	counts := make(map[string]int, len(patterns))
	for _, p := range patterns {
		counts[p]++
	}
	return counts
}

// PatternCount is one entry of a ranked frequency map.
type PatternCount struct {
	Pattern string `json:"pattern" yaml:"pattern"`
	Count   int    `json:"count" yaml:"count"`
}

// RankPatterns orders a frequency map by count descending, then by label.
func RankPatterns(freq map[string]int) []PatternCount {
	out := make([]PatternCount, 0, len(freq))
	for p, c := range freq {
		out = append(out, PatternCount{Pattern: p, Count: c})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Pattern < out[j].Pattern
	})
	return out
}

package match

import (
	"sort"
)

// Candidate is a known name scored against a wanted one.
type Candidate struct {
	Name string

	// Normalized Levenshtein similarity (0-1), the better of plain and suffix-stripped
	Score float64

	// Metadata for debugging/explanation
	NormalizedName   string
	NormalizedWanted string
}

// CandidateList is a list of candidates with ranking functionality.
type CandidateList []Candidate

// RankCandidates scores every known name against wanted.
// Returns candidates sorted by score (descending).
func RankCandidates(wanted string, known []string) CandidateList {
	candidates := make(CandidateList, 0, len(known))

	wantedNorm := fold(wanted)
	wantedStripped := foldStripped(wanted)

	for _, name := range known {
		norm := fold(name)
		score := max(similarity(norm, wantedNorm), similarity(foldStripped(name), wantedStripped))

		candidates = append(candidates, Candidate{
			Name:             name,
			Score:            score,
			NormalizedName:   norm,
			NormalizedWanted: wantedNorm,
		})
	}

	// Sort by score (descending), then by name for determinism
	sort.Sort(candidates)

	return candidates
}

// Suggest returns at most n known names similar enough to wanted to be
// offered as a correction. Exact matches are never suggested.
func Suggest(wanted string, known []string, n int) []string {
	var names []string

	for _, c := range RankCandidates(wanted, known).AboveThreshold(DefaultSuggestScore).Top(n) {
		if c.Name == wanted {
			continue
		}

		names = append(names, c.Name)
	}

	return names
}

// FindNormalized returns the first known name whose normalized form equals
// the normalized wanted name.
func FindNormalized(wanted string, known []string) (string, bool) {
	norm := fold(wanted)

	for _, name := range known {
		if fold(name) == norm {
			return name, true
		}
	}

	return "", false
}

// Len implements sort.Interface.
func (c CandidateList) Len() int { return len(c) }

// Swap implements sort.Interface.
func (c CandidateList) Swap(i, j int) { c[i], c[j] = c[j], c[i] }

// Less implements sort.Interface.
// Sorts by score descending, then by name for determinism.
func (c CandidateList) Less(i, j int) bool {
	// Higher score comes first
	if c[i].Score != c[j].Score {
		return c[i].Score > c[j].Score
	}
	// Tie-breaker: alphabetical by name
	return c[i].Name < c[j].Name
}

// Top returns the top n candidates.
func (c CandidateList) Top(n int) CandidateList {
	if n >= len(c) {
		return c
	}
	return c[:n]
}

// Best returns the best candidate, or nil if no candidates.
func (c CandidateList) Best() *Candidate {
	if len(c) == 0 {
		return nil
	}
	return &c[0]
}

// IsAmbiguous returns true if the top two candidates are within the threshold.
func (c CandidateList) IsAmbiguous(threshold float64) bool {
	if len(c) < 2 {
		return false
	}
	diff := c[0].Score - c[1].Score
	return diff < threshold
}

// AboveThreshold returns candidates with score above the threshold.
func (c CandidateList) AboveThreshold(threshold float64) CandidateList {
	var result CandidateList
	for _, cand := range c {
		if cand.Score >= threshold {
			result = append(result, cand)
		}
	}
	return result
}

const (
	// DefaultMinScore is the minimum score for auto-acceptance.
	DefaultMinScore = 0.7
	// DefaultMinGap is the minimum score gap between top candidates.
	DefaultMinGap = 0.15
	// DefaultSuggestScore is the minimum score for a name to be suggested.
	DefaultSuggestScore = 0.5
	// DefaultSuggestions is how many names a diagnostic offers.
	DefaultSuggestions = 3
	// DefaultAmbiguityThreshold is the score difference that marks ambiguity.
	DefaultAmbiguityThreshold = 0.1
)

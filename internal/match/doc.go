// Package match ranks known names against a misspelled or differently
// spelled one. Names are compared case-insensitively with separators
// removed, by Levenshtein similarity. The results back "did you mean"
// hints in diagnostics and field matching in scaffold drafts.
package match

package match

import (
	"strings"
	"unicode"
)

// trailing tokens that rarely tell two keys apart, longest first
var weakSuffixes = []string{"timestamp", "ids", "utc", "id", "at"}

// fold reduces a key to the form two spellings of the same name share:
// lower case, without the separators used in rule keys and Go tags.
func fold(key string) string {
	var b strings.Builder

	b.Grow(len(key))

	for _, r := range key {
		switch r {
		case '_', '-', ' ', '.':
			continue
		}

		b.WriteRune(unicode.ToLower(r))
	}

	return b.String()
}

// foldStripped is fold with one weak trailing token removed, so that
// "customer_id" compares equal to "Customer".
func foldStripped(key string) string {
	f := fold(key)

	for _, s := range weakSuffixes {
		if len(f) > len(s) && strings.HasSuffix(f, s) {
			return f[:len(f)-len(s)]
		}
	}

	return f
}

// distance is the rune-wise Levenshtein distance between a and b.
func distance(a, b string) int {
	ra, rb := []rune(a), []rune(b)
	if len(ra) > len(rb) {
		ra, rb = rb, ra
	}

	row := make([]int, len(ra)+1)
	for i := range row {
		row[i] = i
	}

	for j := 1; j <= len(rb); j++ {
		diag := row[0]
		row[0] = j

		for i := 1; i <= len(ra); i++ {
			cost := 1
			if ra[i-1] == rb[j-1] {
				cost = 0
			}

			next := min(row[i]+1, row[i-1]+1, diag+cost)
			diag, row[i] = row[i], next
		}
	}

	return row[len(ra)]
}

// similarity scores a and b between 0 (nothing shared) and 1 (equal).
func similarity(a, b string) float64 {
	longest := max(len([]rune(a)), len([]rune(b)))
	if longest == 0 {
		return 1
	}

	return 1 - float64(distance(a, b))/float64(longest)
}

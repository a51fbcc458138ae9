package common

import "strings"

// UnknownStr is the String() value of enum members without a name.
const UnknownStr = "unknown"

// QuoteList renders names as a comma separated list of quoted strings.
// Example: ["a", "b"] -> `"a", "b"`.
func QuoteList(names []string) string {
	var sb strings.Builder

	for i, n := range names {
		if i > 0 {
			sb.WriteString(", ")
		}

		sb.WriteString(`"` + n + `"`)
	}

	return sb.String()
}

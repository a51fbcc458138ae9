// Package diagnostic provides structured warnings and errors collected while
// loading and validating rule files.
//
// Key capabilities:
//   - Unknown converter, transform, factory and layout references
//   - "did you mean" suggestions for misspelled names
//   - Invalid rule entries reported with the converter and rule they belong to
package diagnostic

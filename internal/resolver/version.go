package resolver

import (
	"strconv"
	"strings"

	"github.com/Masterminds/semver/v3"
)

// SatisfiesVersion checks actual against a constraint of the form
// "<op><major>[.<minor>[.<patch>]]" with op in {=, >=, <=, >, <} (default
// "="), per spec.md §4.D. A missing constraint is always satisfied.
//
// It first tries a strict semver comparison; when either side fails to
// parse as semver (pre-release suffixes, partial versions, garbage tags)
// it falls back to lexicographic comparison on the numeric triple, and an
// unparseable triple is permissive — always satisfied, since this is a
// best-effort gate, not a hard dependency solver.
func SatisfiesVersion(actual, constraint string) bool {
	constraint = strings.TrimSpace(constraint)
	if constraint == "" {
		return true
	}
	op, rest := splitOperator(constraint)

	if ok := trySemverConstraint(actual, op, rest); ok != nil {
		return *ok
	}

	want, ok := parseTriple(rest)
	if !ok {
		return true
	}
	got, ok := parseTriple(actual)
	if !ok {
		return true
	}

	cmp := compareTriples(got, want)
	switch op {
	case ">=":
		return cmp >= 0
	case "<=":
		return cmp <= 0
	case ">":
		return cmp > 0
	case "<":
		return cmp < 0
	default: // "="
		return cmp == 0
	}
}

// trySemverConstraint attempts a strict semver.Constraints match, returning
// nil when either side isn't valid semver (caller then falls back to the
// permissive triple comparison).
func trySemverConstraint(actual, op, versionPart string) *bool {
	v, err := semver.NewVersion(actual)
	if err != nil {
		return nil
	}
	expr := op
	if expr == "=" {
		expr = "="
	}
	c, err := semver.NewConstraint(expr + versionPart)
	if err != nil {
		return nil
	}
	result := c.Check(v)
	return &result
}

func splitOperator(s string) (op, rest string) {
	for _, candidate := range []string{">=", "<=", ">", "<", "="} {
		if strings.HasPrefix(s, candidate) {
			return candidate, strings.TrimSpace(strings.TrimPrefix(s, candidate))
		}
	}
	return "=", s
}

func parseTriple(s string) ([3]int, bool) {
	var out [3]int
	s = strings.TrimPrefix(strings.TrimSpace(s), "v")
	if s == "" {
		return out, false
	}
	parts := strings.SplitN(s, ".", 3)
	for i := 0; i < len(parts) && i < 3; i++ {
		n, err := strconv.Atoi(strings.TrimSpace(parts[i]))
		if err != nil {
			return out, false
		}
		out[i] = n
	}
	return out, true
}

func compareTriples(a, b [3]int) int {
	for i := 0; i < 3; i++ {
		if a[i] != b[i] {
			if a[i] < b[i] {
				return -1
			}
			return 1
		}
	}
	return 0
}

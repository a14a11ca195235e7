package git

import (
	"fmt"
	"regexp"
	"sort"

	"github.com/MyCarrier-DevOps/go-gitsituation/internal/semver"
)

// MatchAllPattern is the default describe tag pattern.
const MatchAllPattern = ".*"

// CompileTagPattern compiles a tag pattern in RE2 syntax. Patterns always
// match against the whole tag name; an empty pattern matches everything.
func CompileTagPattern(expr string) (*regexp.Regexp, error) {
	if expr == "" {
		expr = MatchAllPattern
	}
	re, err := regexp.Compile(expr)
	if err != nil {
		return nil, fmt.Errorf("compiling tag pattern %q: %w", expr, err)
	}
	return re, nil
}

// AnchorPattern returns a matcher requiring pattern to cover the whole input.
// A nil pattern yields nil, which MatchesTag treats as match-all.
func AnchorPattern(pattern *regexp.Regexp) *regexp.Regexp {
	if pattern == nil {
		return nil
	}
	return regexp.MustCompile("^(?:" + pattern.String() + ")$")
}

// MatchesTag reports whether an anchored matcher accepts the tag name.
func MatchesTag(anchored *regexp.Regexp, name string) bool {
	return anchored == nil || anchored.MatchString(name)
}

// SortTags orders tag names by semantic version, highest first. Names that
// are not versions follow in lexical order.
func SortTags(names []string) []string {
	type ranked struct {
		name    string
		version semver.SemanticVersion
		ok      bool
	}

	items := make([]ranked, 0, len(names))
	for _, n := range names {
		v, ok := semver.TryParse(n, semver.DefaultTagPrefix)
		items = append(items, ranked{name: n, version: v, ok: ok})
	}

	sort.SliceStable(items, func(i, j int) bool {
		a, b := items[i], items[j]
		switch {
		case a.ok && b.ok:
			if c := a.version.CompareTo(b.version); c != 0 {
				return c > 0
			}
			return a.name < b.name
		case a.ok != b.ok:
			return a.ok
		default:
			return a.name < b.name
		}
	})

	out := make([]string, 0, len(items))
	for _, it := range items {
		out = append(out, it.name)
	}
	return out
}

// BestTag picks the describe tag among several on the same commit.
func BestTag(names []string) string {
	return SortTags(names)[0]
}

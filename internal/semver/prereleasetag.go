package semver

import (
	"cmp"
	"strconv"
	"strings"
)

// PreReleaseTag is the part after the dash in "1.0.0-rc.2": an optional
// name and an optional trailing number.
type PreReleaseTag struct {
	Name   string
	Number *int64
}

// HasTag reports whether the tag carries a name or a number.
func (t PreReleaseTag) HasTag() bool {
	return t.Name != "" || t.Number != nil
}

// CompareTo orders a release above any pre-release of the same version.
// Pre-releases compare by name, ignoring case, then by number.
func (t PreReleaseTag) CompareTo(other PreReleaseTag) int {
	switch a, b := t.HasTag(), other.HasTag(); {
	case !a && !b:
		return 0
	case !a:
		return 1
	case !b:
		return -1
	}
	if c := strings.Compare(strings.ToLower(t.Name), strings.ToLower(other.Name)); c != 0 {
		return c
	}
	return cmp.Compare(t.number(), other.number())
}

func (t PreReleaseTag) number() int64 {
	if t.Number == nil {
		return 0
	}
	return *t.Number
}

// parsePreReleaseTag splits "beta.4" into name and number. A bare number
// or a bare name fills only one side.
func parsePreReleaseTag(s string) PreReleaseTag {
	if s == "" {
		return PreReleaseTag{}
	}
	name, num := "", s
	if i := strings.LastIndexByte(s, '.'); i >= 0 {
		name, num = s[:i], s[i+1:]
	}
	if n, err := strconv.ParseInt(num, 10, 64); err == nil {
		return PreReleaseTag{Name: name, Number: &n}
	}
	return PreReleaseTag{Name: s}
}

func (t PreReleaseTag) String() string {
	switch {
	case t.Number == nil:
		return t.Name
	case t.Name == "":
		return strconv.FormatInt(*t.Number, 10)
	default:
		return t.Name + "." + strconv.FormatInt(*t.Number, 10)
	}
}

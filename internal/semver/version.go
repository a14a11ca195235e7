// Package semver parses and orders semantic versions found in tag names.
package semver

import (
	"cmp"
	"fmt"
	"regexp"
	"strconv"
	"sync"
)

// DefaultTagPrefix strips an optional leading "v" or "V".
const DefaultTagPrefix = "[vV]?"

var versionRegex = regexp.MustCompile(
	`^(\d+)(?:\.(\d+))?(?:\.(\d+))?(?:\.\d+)?(?:-([^+]*))?(?:\+(.*))?$`,
)

// prefixes caches compiled tag prefix patterns. Tag lists are parsed once
// per tag with the same prefix, so compiling on every call is wasted work.
var prefixes sync.Map // string -> *regexp.Regexp

// SemanticVersion is a version parsed from a tag name. A fourth numeric
// part is accepted and dropped.
type SemanticVersion struct {
	Major         int64
	Minor         int64
	Patch         int64
	PreReleaseTag PreReleaseTag
	BuildMetaData string
}

// TryParse is Parse without the error.
func TryParse(s, tagPrefix string) (SemanticVersion, bool) {
	v, err := Parse(s, tagPrefix)
	return v, err == nil
}

// Parse parses s as a version after stripping tagPrefix, a regular
// expression that must match at the start of s.
func Parse(s, tagPrefix string) (SemanticVersion, error) {
	rest, err := stripPrefix(s, tagPrefix)
	if err != nil {
		return SemanticVersion{}, err
	}

	m := versionRegex.FindStringSubmatch(rest)
	if m == nil {
		return SemanticVersion{}, fmt.Errorf("invalid version format: %q", s)
	}

	var v SemanticVersion
	parts := []*int64{&v.Major, &v.Minor, &v.Patch}
	for i, dst := range parts {
		if m[i+1] == "" {
			continue
		}
		n, err := strconv.ParseInt(m[i+1], 10, 64)
		if err != nil {
			return SemanticVersion{}, fmt.Errorf("invalid version part %q in %q: %w", m[i+1], s, err)
		}
		*dst = n
	}
	v.PreReleaseTag = parsePreReleaseTag(m[4])
	v.BuildMetaData = m[5]
	return v, nil
}

func stripPrefix(s, tagPrefix string) (string, error) {
	if tagPrefix == "" {
		return s, nil
	}
	re, err := prefixRegex(tagPrefix)
	if err != nil {
		return "", err
	}
	loc := re.FindStringIndex(s)
	if loc == nil {
		return "", fmt.Errorf("version string %q does not match tag prefix %q", s, tagPrefix)
	}
	return s[loc[1]:], nil
}

func prefixRegex(tagPrefix string) (*regexp.Regexp, error) {
	if re, ok := prefixes.Load(tagPrefix); ok {
		return re.(*regexp.Regexp), nil
	}
	re, err := regexp.Compile("^(?:" + tagPrefix + ")")
	if err != nil {
		return nil, fmt.Errorf("invalid tag prefix regex: %w", err)
	}
	prefixes.Store(tagPrefix, re)
	return re, nil
}

// CompareTo orders versions by major, minor and patch, then by pre-release
// tag. Build metadata does not take part.
func (v SemanticVersion) CompareTo(other SemanticVersion) int {
	if c := cmp.Compare(v.Major, other.Major); c != 0 {
		return c
	}
	if c := cmp.Compare(v.Minor, other.Minor); c != 0 {
		return c
	}
	if c := cmp.Compare(v.Patch, other.Patch); c != 0 {
		return c
	}
	return v.PreReleaseTag.CompareTo(other.PreReleaseTag)
}

// SemVer formats the version without build metadata, e.g. "1.2.3-beta.4".
func (v SemanticVersion) SemVer() string {
	s := fmt.Sprintf("%d.%d.%d", v.Major, v.Minor, v.Patch)
	if v.PreReleaseTag.HasTag() {
		s += "-" + v.PreReleaseTag.String()
	}
	return s
}

// String is SemVer plus build metadata, e.g. "1.2.3-beta.4+5".
func (v SemanticVersion) String() string {
	if v.BuildMetaData == "" {
		return v.SemVer()
	}
	return v.SemVer() + "+" + v.BuildMetaData
}

// Package output renders the facts of a git situation as named variables
// and writes them as key=value pairs, JSON, or a single value.
package output

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/MyCarrier-DevOps/go-gitsituation/internal/git"
	"github.com/MyCarrier-DevOps/go-gitsituation/internal/semver"
)

// ShortShaLength is the length of ShortRev.
const ShortShaLength = 7

// Situation is the read side of a git situation that variables are built from.
type Situation interface {
	RootDirectory() string
	Rev() string
	Timestamp() (time.Time, error)
	Branch() (string, error)
	Tags() ([]string, error)
	IsClean() (bool, error)
	DescribeTagPattern() *regexp.Regexp
	Description() (git.Description, error)
}

var slugInvalidChars = regexp.MustCompile(`[^a-z0-9]+`)

// GetVariables queries every fact of s and returns the output variables.
// tagPrefix is stripped from the describe tag before it is parsed as a
// semantic version; the DescribeTagVersion variables are empty when the tag
// is not a version.
func GetVariables(s Situation, tagPrefix string) (map[string]string, error) {
	rev := s.Rev()
	vars := map[string]string{
		"RootDirectory": s.RootDirectory(),
		"Rev":           rev,
		"ShortRev":      git.NewObjectID(rev).ShortSha(ShortShaLength),
	}

	branch, err := s.Branch()
	if err != nil {
		return nil, err
	}
	vars["Branch"] = branch
	vars["BranchSlug"] = Slug(branch)
	vars["Detached"] = strconv.FormatBool(branch == "")

	tags, err := s.Tags()
	if err != nil {
		return nil, err
	}
	vars["Tags"] = strings.Join(tags, ",")
	vars["Tag"] = ""
	if len(tags) > 0 {
		vars["Tag"] = tags[0]
	}

	clean, err := s.IsClean()
	if err != nil {
		return nil, err
	}
	vars["Clean"] = strconv.FormatBool(clean)
	vars["Dirty"] = strconv.FormatBool(!clean)

	ts, err := s.Timestamp()
	if err != nil {
		return nil, err
	}
	vars["Timestamp"] = ts.Format(time.RFC3339)
	vars["TimestampUnix"] = strconv.FormatInt(ts.Unix(), 10)

	if pattern := s.DescribeTagPattern(); pattern != nil {
		vars["DescribeTagPattern"] = pattern.String()
	}

	desc, err := s.Description()
	if err != nil {
		return nil, fmt.Errorf("describing %s: %w", rev, err)
	}
	vars["Describe"] = desc.String()
	vars["DescribeTag"] = desc.Tag
	vars["DescribeDistance"] = strconv.Itoa(desc.Distance)
	addTagVersion(vars, desc.Tag, tagPrefix)

	return vars, nil
}

func addTagVersion(vars map[string]string, tag, tagPrefix string) {
	vars["DescribeTagVersion"] = ""
	vars["DescribeTagMajor"] = ""
	vars["DescribeTagMinor"] = ""
	vars["DescribeTagPatch"] = ""

	v, ok := semver.TryParse(tag, tagPrefix)
	if !ok {
		return
	}
	vars["DescribeTagVersion"] = v.SemVer()
	vars["DescribeTagMajor"] = strconv.FormatInt(v.Major, 10)
	vars["DescribeTagMinor"] = strconv.FormatInt(v.Minor, 10)
	vars["DescribeTagPatch"] = strconv.FormatInt(v.Patch, 10)
}

// Slug lowercases name and collapses every run of characters outside
// [a-z0-9] into a single dash, e.g. "Feature/JIRA-12_fix" becomes
// "feature-jira-12-fix".
func Slug(name string) string {
	return strings.Trim(slugInvalidChars.ReplaceAllString(strings.ToLower(name), "-"), "-")
}

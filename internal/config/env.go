package config

import "strings"

// CI providers recognized by DetectCI.
const (
	ProviderNone     = ""
	ProviderExplicit = "gitsituation"
	ProviderGitHub   = "github-actions"
	ProviderGitLab   = "gitlab-ci"
	ProviderJenkins  = "jenkins"
	ProviderAzure    = "azure-pipelines"
)

const (
	refHeadsPrefix = "refs/heads/"
	refTagsPrefix  = "refs/tags/"

	envExplicitBranch = "GITSITUATION_BRANCH"
	envExplicitTag    = "GITSITUATION_TAG"
	envGitHubActions  = "GITHUB_ACTIONS"
	envGitHubRef      = "GITHUB_REF"
	envGitHubHeadRef  = "GITHUB_HEAD_REF"
	envGitLabCI       = "GITLAB_CI"
	envGitLabBranch   = "CI_COMMIT_BRANCH"
	envGitLabTag      = "CI_COMMIT_TAG"
	envGitLabMRBranch = "CI_MERGE_REQUEST_SOURCE_BRANCH_NAME"
	envJenkinsURL     = "JENKINS_URL"
	envJenkinsBranch  = "BRANCH_NAME"
	envJenkinsTag     = "TAG_NAME"
	envAzureBuild     = "TF_BUILD"
	envAzureSourceRef = "BUILD_SOURCEBRANCH"
)

// CIEnvironment is the branch or tag a build server reports for the
// current build. Build servers usually check out a detached HEAD, so these
// values are more accurate than what the repository itself says.
type CIEnvironment struct {
	Provider string
	Branch   string
	Tag      string
}

// Detected reports whether a provider supplied a branch or a tag.
func (e CIEnvironment) Detected() bool {
	return e.Branch != "" || e.Tag != ""
}

// Config converts the detected environment into an override layer. The
// branch is always overridden, so a tag build reads as detached; the tags
// are overridden only when a tag was reported.
func (e CIEnvironment) Config() *Config {
	if !e.Detected() {
		return nil
	}
	cfg := &Config{Branch: ptr(e.Branch)}
	if e.Tag != "" {
		cfg.Tags = ptr([]string{e.Tag})
	}
	return cfg
}

// DetectCI inspects the environment through getenv and returns what the
// first matching provider reports. Explicit GITSITUATION_* variables win
// over any build server.
func DetectCI(getenv func(string) string) CIEnvironment {
	if branch, tag := getenv(envExplicitBranch), getenv(envExplicitTag); branch != "" || tag != "" {
		return CIEnvironment{Provider: ProviderExplicit, Branch: branch, Tag: tag}
	}

	switch {
	case strings.EqualFold(getenv(envGitHubActions), "true"):
		env := fromRef(ProviderGitHub, getenv(envGitHubRef))
		if !env.Detected() {
			// Pull request builds report refs/pull/<n>/merge.
			env.Branch = getenv(envGitHubHeadRef)
		}
		return env

	case strings.EqualFold(getenv(envGitLabCI), "true"):
		env := CIEnvironment{Provider: ProviderGitLab, Tag: getenv(envGitLabTag)}
		if env.Tag == "" {
			env.Branch = firstNonEmpty(getenv(envGitLabBranch), getenv(envGitLabMRBranch))
		}
		return env

	case getenv(envJenkinsURL) != "":
		env := CIEnvironment{Provider: ProviderJenkins, Tag: getenv(envJenkinsTag)}
		if env.Tag == "" {
			env.Branch = getenv(envJenkinsBranch)
		}
		return env

	case strings.EqualFold(getenv(envAzureBuild), "true"):
		return fromRef(ProviderAzure, getenv(envAzureSourceRef))
	}

	return CIEnvironment{Provider: ProviderNone}
}

// fromRef splits a fully qualified ref into a branch or tag name.
func fromRef(provider, ref string) CIEnvironment {
	env := CIEnvironment{Provider: provider}
	switch {
	case strings.HasPrefix(ref, refHeadsPrefix):
		env.Branch = strings.TrimPrefix(ref, refHeadsPrefix)
	case strings.HasPrefix(ref, refTagsPrefix):
		env.Tag = strings.TrimPrefix(ref, refTagsPrefix)
	}
	return env
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

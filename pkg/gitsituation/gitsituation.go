// Package gitsituation provides a public Go API for inspecting the
// version-control situation of a git working copy: its revision, branch,
// tags, cleanliness, commit timestamp and nearest-tag description. It
// supports both local repositories (via go-git) and remote GitHub
// repositories (via the GitHub API).
//
// Basic usage:
//
//	s, err := gitsituation.Open(gitsituation.LocalOptions{
//	    Path: "/path/to/repo",
//	})
//	desc, err := s.Description()
//	fmt.Println(desc) // "v1.2.0-3-gabc1234"
//
//	s, err := gitsituation.OpenRemote(gitsituation.RemoteOptions{
//	    Owner: "myorg",
//	    Repo:  "myrepo",
//	    Token: os.Getenv("GITHUB_TOKEN"),
//	})
//	vars, err := gitsituation.Variables(s)
//	fmt.Println(vars["Describe"])
//
// Facts are computed on first use and memoized; a Situation is a snapshot
// and does not observe later repository changes.
package gitsituation

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/MyCarrier-DevOps/go-gitsituation/internal/config"
	"github.com/MyCarrier-DevOps/go-gitsituation/internal/git"
	"github.com/MyCarrier-DevOps/go-gitsituation/internal/output"
	"github.com/MyCarrier-DevOps/go-gitsituation/internal/semver"
	"github.com/MyCarrier-DevOps/go-gitsituation/internal/situation"

	ghprovider "github.com/MyCarrier-DevOps/go-gitsituation/internal/github"
)

// Situation is a lazily computed snapshot of a repository's state.
type Situation = situation.GitSituation

// Description is the result of describing HEAD against the nearest tag.
type Description = git.Description

// Re-exported sentinel errors for errors.Is checks.
var (
	ErrNoWorkTree           = git.ErrNoWorkTree
	ErrNoMatchingTagShallow = git.ErrNoMatchingTagShallow
)

// Overrides replaces computed facts. They are applied after the
// configuration file and the CI environment.
type Overrides struct {
	// Branch overrides the current branch. A non-nil empty string means
	// detached.
	Branch *string

	// Tags overrides the tags pointing at HEAD. Nil means not overridden;
	// an empty non-nil slice means no tags.
	Tags []string

	// DescribeTagPattern restricts describe to tags whose whole name
	// matches this regular expression. Empty means not overridden.
	DescribeTagPattern string

	// DisableCI skips branch and tag detection from CI environment variables.
	DisableCI bool
}

// LocalOptions configures inspection of a local git repository.
type LocalOptions struct {
	// Path to the git working copy. Defaults to "." if empty.
	Path string

	// GitDir opens a repository metadata directory directly, such as
	// .git/worktrees/<name>. Takes precedence over Path.
	GitDir string

	// ConfigPath is the path to a gitsituation YAML config file.
	// If empty, auto-detects one in the working tree root.
	ConfigPath string

	Overrides
}

// RemoteOptions configures inspection via the GitHub API.
type RemoteOptions struct {
	// Owner is the GitHub repository owner (required).
	Owner string

	// Repo is the GitHub repository name (required).
	Repo string

	// Token is a GitHub personal access token or GITHUB_TOKEN.
	Token string

	// AppID is the GitHub App ID for app authentication.
	AppID int64

	// AppKey is the GitHub App private key PEM content.
	AppKey string

	// AppKeyPath is the path to a GitHub App private key PEM file.
	AppKeyPath string

	// BaseURL is a custom GitHub API base URL for GitHub Enterprise.
	BaseURL string

	// Ref is the git ref to inspect: branch, tag, or SHA. Defaults to the
	// repository's default branch.
	Ref string

	// MaxCommits is the hard cap on commit walk depth. Defaults to 1000.
	MaxCommits int

	// WorkTree is the local directory reported as RootDirectory.
	// Defaults to the process working directory.
	WorkTree string

	// ConfigPath is a local config file path that overrides remote config.
	ConfigPath string

	// RemoteConfigPath names the config file inside the repository. Empty
	// searches the usual names and tolerates finding none.
	RemoteConfigPath string

	// Context bounds the API requests. Defaults to context.Background().
	Context context.Context

	Overrides
}

// Open inspects a local git repository.
func Open(opts LocalOptions) (*Situation, error) {
	// 1. Open repository.
	repo, err := openLocal(opts)
	if err != nil {
		return nil, fmt.Errorf("opening repository: %w", err)
	}

	s, err := situation.New(repo)
	if err != nil {
		return nil, fmt.Errorf("inspecting repository: %w", err)
	}

	// 2. Load configuration from the working tree root.
	fileCfg, _, err := config.Load(opts.ConfigPath, s.RootDirectory())
	if err != nil {
		return nil, fmt.Errorf("loading configuration: %w", err)
	}

	// 3. Apply configuration and overrides.
	if err := apply(s, fileCfg, opts.Overrides); err != nil {
		return nil, err
	}
	return s, nil
}

func openLocal(opts LocalOptions) (*git.GoGitRepository, error) {
	if opts.GitDir != "" {
		return git.OpenGitDir(opts.GitDir)
	}
	path := opts.Path
	if path == "" {
		path = "."
	}
	return git.Open(path)
}

// OpenRemote inspects a GitHub repository via the GitHub API. The remote
// situation is always clean.
func OpenRemote(opts RemoteOptions) (*Situation, error) {
	if opts.Owner == "" || opts.Repo == "" {
		return nil, errors.New("owner and repo are required")
	}

	// 1. Create GitHub client.
	client, err := ghprovider.NewClient(ghprovider.ClientConfig{
		Token:      opts.Token,
		AppID:      opts.AppID,
		AppKey:     opts.AppKey,
		AppKeyPath: opts.AppKeyPath,
		BaseURL:    opts.BaseURL,
		Owner:      opts.Owner,
		Context:    opts.Context,
	})
	if err != nil {
		return nil, fmt.Errorf("creating GitHub client: %w", err)
	}

	// 2. Create GitHubRepository.
	var ghOpts []ghprovider.Option
	if opts.Ref != "" {
		ghOpts = append(ghOpts, ghprovider.WithRef(opts.Ref))
	}
	if opts.MaxCommits > 0 {
		ghOpts = append(ghOpts, ghprovider.WithMaxCommits(opts.MaxCommits))
	}
	if opts.BaseURL != "" {
		ghOpts = append(ghOpts, ghprovider.WithBaseURL(opts.BaseURL))
	}
	if opts.WorkTree != "" {
		ghOpts = append(ghOpts, ghprovider.WithWorkTree(opts.WorkTree))
	}
	if opts.Context != nil {
		ghOpts = append(ghOpts, ghprovider.WithContext(opts.Context))
	}
	ghRepo := ghprovider.NewGitHubRepository(client, opts.Owner, opts.Repo, ghOpts...)

	// 3. Load configuration.
	fileCfg, err := loadRemoteConfig(opts, ghRepo)
	if err != nil {
		return nil, fmt.Errorf("loading configuration: %w", err)
	}

	s, err := situation.New(ghRepo)
	if err != nil {
		return nil, fmt.Errorf("inspecting repository: %w", err)
	}

	// 4. Apply configuration and overrides.
	if err := apply(s, fileCfg, opts.Overrides); err != nil {
		return nil, err
	}
	return s, nil
}

// Variables returns the output variables of a situation, parsing the
// describe tag with the default tag prefix.
func Variables(s *Situation) (map[string]string, error) {
	return VariablesWithTagPrefix(s, semver.DefaultTagPrefix)
}

// VariablesWithTagPrefix is Variables with a custom tag prefix regex used to
// parse the describe tag as a version.
func VariablesWithTagPrefix(s *Situation, tagPrefix string) (map[string]string, error) {
	return output.GetVariables(s, tagPrefix)
}

// apply resolves the effective configuration and applies it to s.
func apply(s *Situation, fileCfg *config.Config, o Overrides) error {
	cfg, _, err := config.Resolve(fileCfg, o.config(), os.Getenv)
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}
	if err := s.Apply(situation.FromConfig(cfg)...); err != nil {
		return fmt.Errorf("applying configuration: %w", err)
	}
	return nil
}

func (o Overrides) config() *config.Config {
	cfg := &config.Config{}
	if o.Branch != nil {
		branch := *o.Branch
		cfg.Branch = &branch
	}
	if o.Tags != nil {
		tags := append([]string{}, o.Tags...)
		cfg.Tags = &tags
	}
	if o.DescribeTagPattern != "" {
		pattern := o.DescribeTagPattern
		cfg.DescribeTagPattern = &pattern
	}
	if o.DisableCI {
		ci := false
		cfg.CIDetection = &ci
	}
	return cfg
}

func loadRemoteConfig(opts RemoteOptions, ghRepo *ghprovider.GitHubRepository) (*config.Config, error) {
	if opts.ConfigPath != "" {
		return config.LoadFromFile(opts.ConfigPath)
	}
	cfg, _, err := ghRepo.LoadConfig(opts.RemoteConfigPath)
	return cfg, err
}

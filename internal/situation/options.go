package situation

import (
	"github.com/MyCarrier-DevOps/go-gitsituation/internal/config"
	"github.com/MyCarrier-DevOps/go-gitsituation/internal/git"
)

// Option applies an override to a freshly constructed situation.
type Option func(*GitSituation) error

// Apply applies opts in order, stopping at the first error.
func (s *GitSituation) Apply(opts ...Option) error {
	for _, opt := range opts {
		if err := opt(s); err != nil {
			return err
		}
	}
	return nil
}

// WithBranch overrides the branch, as SetBranch does.
func WithBranch(branch string) Option {
	return func(s *GitSituation) error {
		s.SetBranch(branch)
		return nil
	}
}

// WithTags overrides the tags, as SetTags does. Like SetTags it panics on nil.
func WithTags(tags []string) Option {
	return func(s *GitSituation) error {
		s.SetTags(tags)
		return nil
	}
}

// WithDescribeTagPattern compiles expr and installs it as the describe tag
// pattern. An empty expr keeps the match-all default.
func WithDescribeTagPattern(expr string) Option {
	return func(s *GitSituation) error {
		if expr == "" {
			return nil
		}
		re, err := git.CompileTagPattern(expr)
		if err != nil {
			return err
		}
		s.SetDescribeTagPattern(re)
		return nil
	}
}

// FromConfig returns the options expressing the overrides of a resolved
// configuration. A nil branch or tag list leaves the repository's value.
func FromConfig(cfg *config.Config) []Option {
	if cfg == nil {
		return nil
	}
	var opts []Option
	if cfg.Branch != nil {
		opts = append(opts, WithBranch(*cfg.Branch))
	}
	if cfg.Tags != nil {
		opts = append(opts, WithTags(append([]string{}, (*cfg.Tags)...)))
	}
	if cfg.DescribeTagPattern != nil {
		opts = append(opts, WithDescribeTagPattern(*cfg.DescribeTagPattern))
	}
	return opts
}

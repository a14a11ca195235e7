package config

import (
	"fmt"
	"regexp"

	"github.com/MyCarrier-DevOps/go-gitsituation/internal/git"
)

// Builder constructs a Config by layering overrides on top of defaults.
type Builder struct {
	overrides []*Config
}

// NewBuilder creates a new configuration builder.
func NewBuilder() *Builder {
	return &Builder{}
}

// Add adds a configuration override. Overrides are applied in order:
// later overrides take precedence over earlier ones.
func (b *Builder) Add(override *Config) *Builder {
	if override != nil {
		b.overrides = append(b.overrides, override)
	}
	return b
}

// Build constructs the final configuration by starting with defaults,
// applying all overrides and validating.
func (b *Builder) Build() (*Config, error) {
	cfg := CreateDefaultConfiguration()

	for _, override := range b.overrides {
		mergeConfig(cfg, override)
	}

	if err := validate(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// mergeConfig applies non-nil fields from src to dst.
func mergeConfig(dst, src *Config) {
	if src.DescribeTagPattern != nil {
		dst.DescribeTagPattern = src.DescribeTagPattern
	}
	if src.TagPrefix != nil {
		dst.TagPrefix = src.TagPrefix
	}
	if src.Branch != nil {
		dst.Branch = src.Branch
	}
	if src.Tags != nil {
		tags := append([]string{}, (*src.Tags)...)
		dst.Tags = &tags
	}
	if src.CIDetection != nil {
		dst.CIDetection = src.CIDetection
	}
}

// validate checks the configuration for errors.
func validate(cfg *Config) error {
	if cfg.DescribeTagPattern != nil {
		if _, err := git.CompileTagPattern(*cfg.DescribeTagPattern); err != nil {
			return fmt.Errorf("invalid describe-tag-pattern: %w", err)
		}
	}
	if cfg.TagPrefix != nil {
		if _, err := regexp.Compile(*cfg.TagPrefix); err != nil {
			return fmt.Errorf("invalid tag-prefix regex %q: %w", *cfg.TagPrefix, err)
		}
	}
	return nil
}

// CIEnabled reports whether CI environment overrides should be applied.
func (c *Config) CIEnabled() bool {
	return c.CIDetection == nil || *c.CIDetection
}

// Resolve layers the file configuration and the explicit configuration (CLI
// flags or API options) over the defaults. Unless ci-detection is turned off
// by either layer, the CI environment read through getenv sits between them,
// so explicit settings still win over what the build server reports.
func Resolve(file, explicit *Config, getenv func(string) string) (*Config, CIEnvironment, error) {
	ci := file == nil || file.CIEnabled()
	if explicit != nil && explicit.CIDetection != nil {
		ci = *explicit.CIDetection
	}

	var env CIEnvironment
	if ci {
		env = DetectCI(getenv)
	}

	cfg, err := NewBuilder().
		Add(file).
		Add(env.Config()).
		Add(explicit).
		Build()
	if err != nil {
		return nil, CIEnvironment{}, err
	}
	return cfg, env, nil
}

// Package config provides YAML configuration loading, defaults, config
// merging and CI environment detection for gitsituation.
package config

// Config is the root configuration for gitsituation. All optional fields are
// pointers to support merge semantics during configuration building.
type Config struct {
	DescribeTagPattern *string   `yaml:"describe-tag-pattern"`
	TagPrefix          *string   `yaml:"tag-prefix"`
	Branch             *string   `yaml:"branch"`
	Tags               *[]string `yaml:"tags"`
	CIDetection        *bool     `yaml:"ci-detection"`
}

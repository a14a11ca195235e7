package config

import (
	"github.com/MyCarrier-DevOps/go-gitsituation/internal/git"
	"github.com/MyCarrier-DevOps/go-gitsituation/internal/semver"
)

// CreateDefaultConfiguration returns a Config with all defaults populated.
// Branch and Tags stay nil: without an override the situation reads them
// from the repository.
func CreateDefaultConfiguration() *Config {
	return &Config{
		DescribeTagPattern: ptr(git.MatchAllPattern),
		TagPrefix:          ptr(semver.DefaultTagPrefix),
		CIDetection:        ptr(true),
	}
}

package github

import (
	"fmt"

	"github.com/MyCarrier-DevOps/go-gitsituation/internal/config"
	"github.com/MyCarrier-DevOps/go-gitsituation/internal/logger"
)

// LoadConfig reads a configuration file from the repository at the
// inspected ref. An explicit path must exist. With an empty path the first
// of config.FileNames present is used, and finding none returns a nil
// config. It also returns the path that was read.
func (r *GitHubRepository) LoadConfig(path string) (*config.Config, string, error) {
	if path != "" {
		cfg, err := r.loadConfigFile(path)
		return cfg, path, err
	}

	for _, name := range config.FileNames {
		cfg, err := r.loadConfigFile(name)
		if IsNotFoundError(err) {
			continue
		}
		if err != nil {
			return nil, "", err
		}
		return cfg, name, nil
	}
	return nil, "", nil
}

func (r *GitHubRepository) loadConfigFile(path string) (*config.Config, error) {
	content, err := r.FetchFileContent(path)
	if err != nil {
		return nil, fmt.Errorf("fetching remote config %s: %w", path, err)
	}
	cfg, err := config.LoadFromBytes([]byte(content))
	if err != nil {
		return nil, fmt.Errorf("parsing remote config %s: %w", path, err)
	}
	logger.Debug().Str("repository", r.GitDir()).Str("path", path).Msg("loaded remote configuration file")
	return cfg, nil
}

package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/MyCarrier-DevOps/go-gitsituation/internal/config"
	"github.com/MyCarrier-DevOps/go-gitsituation/internal/git"
	"github.com/MyCarrier-DevOps/go-gitsituation/internal/logger"
	"github.com/MyCarrier-DevOps/go-gitsituation/internal/output"
	"github.com/MyCarrier-DevOps/go-gitsituation/internal/situation"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

func inspectRunE(cmd *cobra.Command, _ []string) error {
	// 1. Open repository.
	repo, err := openRepository()
	if err != nil {
		return fmt.Errorf("opening repository: %w", err)
	}

	// 2. Resolve identity; everything else is computed on demand.
	s, err := situation.New(repo)
	if err != nil {
		return fmt.Errorf("inspecting repository: %w", err)
	}

	// 3. Load configuration from the working tree root.
	fileCfg, err := loadConfigFile(s.RootDirectory())
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}
	cfg, err := resolveConfig(cmd, fileCfg)
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	// 4. Show config mode: print and exit.
	if flagShowConfig {
		return showConfig(cmd.OutOrStdout(), cfg)
	}

	// 5. Apply overrides.
	if err := s.Apply(situation.FromConfig(cfg)...); err != nil {
		return fmt.Errorf("applying configuration: %w", err)
	}

	// 6. Compute output variables.
	vars, err := output.GetVariables(s, *cfg.TagPrefix)
	if err != nil {
		return fmt.Errorf("computing variables: %w", err)
	}

	// 7. Write output.
	return writeOutput(cmd.OutOrStdout(), vars)
}

// openRepository opens --git-dir as a bare metadata directory when set, and
// the repository containing --path otherwise.
func openRepository() (*git.GoGitRepository, error) {
	if flagGitDir != "" {
		return git.OpenGitDir(flagGitDir)
	}
	return git.Open(flagPath)
}

// loadConfigFile loads the --config file, or auto-detects one under dir.
func loadConfigFile(dir string) (*config.Config, error) {
	cfg, path, err := config.Load(flagConfig, dir)
	if err != nil {
		return nil, err
	}
	if path != "" {
		logger.Debug().Str("path", path).Msg("loaded configuration file")
	}
	return cfg, nil
}

// resolveConfig layers the file configuration, the CI environment and the
// flags the user actually set.
func resolveConfig(cmd *cobra.Command, fileCfg *config.Config) (*config.Config, error) {
	cfg, env, err := config.Resolve(fileCfg, flagsConfig(cmd), os.Getenv)
	if err != nil {
		return nil, err
	}
	if env.Detected() {
		logger.Info().
			Str("provider", env.Provider).
			Str("branch", env.Branch).
			Str("tag", env.Tag).
			Msg("using CI environment")
	}
	return cfg, nil
}

// flagsConfig returns the override layer for explicitly set flags only, so
// flag defaults never mask the configuration file.
func flagsConfig(cmd *cobra.Command) *config.Config {
	flags := cmd.Flags()
	cfg := &config.Config{}

	if flags.Changed("branch") {
		branch := flagBranch
		cfg.Branch = &branch
	}
	switch {
	case flagNoTags:
		tags := []string{}
		cfg.Tags = &tags
	case flags.Changed("tag"):
		tags := append([]string{}, flagTags...)
		cfg.Tags = &tags
	}
	if flags.Changed("describe-tag-pattern") {
		pattern := flagDescribeTagPattern
		cfg.DescribeTagPattern = &pattern
	}
	if flags.Changed("ci") {
		ci := flagCI
		cfg.CIDetection = &ci
	}
	return cfg
}

// showConfig prints the effective configuration as YAML.
func showConfig(w io.Writer, cfg *config.Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	_, err = w.Write(data)
	return err
}

// writeOutput writes the variables in the requested format.
func writeOutput(w io.Writer, vars map[string]string) error {
	if flagShowVariable != "" {
		return output.WriteVariable(w, vars, flagShowVariable)
	}

	switch flagOutput {
	case "json":
		return output.WriteJSON(w, vars)
	case "":
		return output.WriteAll(w, vars)
	default:
		return fmt.Errorf("unknown output format %q", flagOutput)
	}
}

package cmd

import (
	"fmt"
	"strings"

	"github.com/MyCarrier-DevOps/go-gitsituation/internal/config"
	"github.com/MyCarrier-DevOps/go-gitsituation/internal/output"
	"github.com/MyCarrier-DevOps/go-gitsituation/internal/situation"

	ghprovider "github.com/MyCarrier-DevOps/go-gitsituation/internal/github"

	"github.com/spf13/cobra"
)

var (
	flagToken            string
	flagAppID            int64
	flagAppKey           string
	flagAppKeyPath       string
	flagGitHubURL        string
	flagRef              string
	flagMaxCommits       int
	flagRemoteConfigPath string
	flagWorkTree         string
)

var remoteCmd = &cobra.Command{
	Use:   "remote owner/repo",
	Short: "Inspect a ref of a GitHub repository through the API",
	Long: `Report the same variables as the root command for a ref of a GitHub
repository, read from the REST and GraphQL APIs instead of a clone. A
remote situation has no working tree changes, so Clean is always true.

Credentials, first match wins:
  --token, GITHUB_TOKEN
  --github-app-id with --github-app-key, GH_APP_ID with GH_APP_PRIVATE_KEY
  --github-app-id with --github-app-key-path, GH_APP_ID with GH_APP_PRIVATE_KEY_PATH

The configuration file is read from the repository at the inspected ref
(.github/gitsituation.yml, gitsituation.yml, .gitsituation.yml) unless
--config names a local file or --remote-config-path names another one.

Examples:
  GITHUB_TOKEN=ghp_xxx gitsituation remote myorg/myrepo
  gitsituation remote myorg/myrepo --token ghp_xxx --ref v1.2.0
  gitsituation remote myorg/myrepo --github-app-id 12345 --github-app-key "$APP_PRIVATE_KEY"`,
	Args: cobra.ExactArgs(1),
	RunE: remoteRunE,
}

func init() {
	remoteCmd.Flags().StringVar(&flagToken, "token", "", "GitHub token (or set GITHUB_TOKEN env var)")
	remoteCmd.Flags().Int64Var(&flagAppID, "github-app-id", 0, "GitHub App ID (or set GH_APP_ID env var)")
	remoteCmd.Flags().StringVar(&flagAppKey, "github-app-key", "", "GitHub App private key PEM content (or set GH_APP_PRIVATE_KEY env var)")
	remoteCmd.Flags().StringVar(&flagAppKeyPath, "github-app-key-path", "", "path to GitHub App private key PEM file (or set GH_APP_PRIVATE_KEY_PATH env var)")
	remoteCmd.Flags().StringVar(&flagGitHubURL, "github-url", "", "GitHub API base URL for GitHub Enterprise (or set GITHUB_API_URL env var)")
	remoteCmd.Flags().StringVar(&flagRef, "ref", "", "git ref to inspect: branch, tag, or SHA (default: repo default branch)")
	remoteCmd.Flags().IntVar(&flagMaxCommits, "max-commits", 1000, "maximum commit depth to walk via API")
	remoteCmd.Flags().StringVar(&flagRemoteConfigPath, "remote-config-path", "", "path to config file in the remote repo (e.g. .github/gitsituation.yml)")
	remoteCmd.Flags().StringVar(&flagWorkTree, "work-tree", "", "local directory reported as RootDirectory (default: current directory)")

	rootCmd.AddCommand(remoteCmd)
}

func remoteRunE(cmd *cobra.Command, args []string) error {
	owner, repo, err := parseOwnerRepo(args[0])
	if err != nil {
		return err
	}

	// The client and the GraphQL endpoint must agree on the API host.
	baseURL := ghprovider.ResolveBaseURL(flagGitHubURL)
	client, err := ghprovider.NewClient(ghprovider.ClientConfig{
		Token:      flagToken,
		AppID:      flagAppID,
		AppKey:     flagAppKey,
		AppKeyPath: flagAppKeyPath,
		BaseURL:    baseURL,
		Owner:      owner,
		Context:    cmd.Context(),
	})
	if err != nil {
		return fmt.Errorf("creating GitHub client: %w", err)
	}
	ghRepo := ghprovider.NewGitHubRepository(client, owner, repo, remoteOptions(cmd, baseURL)...)

	fileCfg, err := loadRemoteConfig(ghRepo)
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}
	cfg, err := resolveConfig(cmd, fileCfg)
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}
	if flagShowConfig {
		return showConfig(cmd.OutOrStdout(), cfg)
	}

	s, err := situation.New(ghRepo, situation.FromConfig(cfg)...)
	if err != nil {
		return fmt.Errorf("inspecting repository: %w", err)
	}
	vars, err := output.GetVariables(s, *cfg.TagPrefix)
	if err != nil {
		return fmt.Errorf("computing variables: %w", err)
	}
	return writeOutput(cmd.OutOrStdout(), vars)
}

func remoteOptions(cmd *cobra.Command, baseURL string) []ghprovider.Option {
	opts := []ghprovider.Option{ghprovider.WithContext(cmd.Context())}
	if flagRef != "" {
		opts = append(opts, ghprovider.WithRef(flagRef))
	}
	if flagMaxCommits > 0 {
		opts = append(opts, ghprovider.WithMaxCommits(flagMaxCommits))
	}
	if baseURL != "" {
		opts = append(opts, ghprovider.WithBaseURL(baseURL))
	}
	if flagWorkTree != "" {
		opts = append(opts, ghprovider.WithWorkTree(flagWorkTree))
	}
	return opts
}

func parseOwnerRepo(s string) (string, string, error) {
	parts := strings.SplitN(s, "/", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("invalid repository format %q, expected owner/repo", s)
	}
	return parts[0], parts[1], nil
}

// loadRemoteConfig returns the --config file when set, and otherwise the
// configuration stored in the remote repository, if any.
func loadRemoteConfig(ghRepo *ghprovider.GitHubRepository) (*config.Config, error) {
	if flagConfig != "" {
		return config.LoadFromFile(flagConfig)
	}
	cfg, _, err := ghRepo.LoadConfig(flagRemoteConfigPath)
	return cfg, err
}

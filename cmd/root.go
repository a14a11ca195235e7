package cmd

import (
	"fmt"
	"os"

	"github.com/MyCarrier-DevOps/go-gitsituation/internal/logger"

	"github.com/spf13/cobra"
)

// Global flags shared across commands.
var (
	flagPath               string
	flagGitDir             string
	flagBranch             string
	flagTags               []string
	flagNoTags             bool
	flagDescribeTagPattern string
	flagConfig             string
	flagOutput             string
	flagShowVariable       string
	flagShowConfig         bool
	flagVerbosity          string
	flagLogFile            string
	flagCI                 bool
)

// rootCmd is the top-level command for gitsituation.
var rootCmd = &cobra.Command{
	Use:   "gitsituation",
	Short: "Inspect the version-control situation of a git working copy",
	Long: `gitsituation reports the revision, branch, tags, cleanliness, commit
timestamp and nearest-tag description of a git working copy, for use by
build versioning.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		return logger.Init(flagVerbosity, cmd.ErrOrStderr(), logger.FileConfig{Path: flagLogFile})
	},
	PersistentPostRunE: func(_ *cobra.Command, _ []string) error {
		return logger.CloseFileWriter()
	},
	// Default action is inspect.
	RunE: inspectRunE,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&flagPath, "path", "p", ".", "path to the git working copy")
	rootCmd.PersistentFlags().StringVar(&flagGitDir, "git-dir", "", "open a repository metadata directory directly (e.g. .git/worktrees/<name>)")
	rootCmd.PersistentFlags().StringVarP(&flagBranch, "branch", "b", "", "override the branch (empty means detached)")
	rootCmd.PersistentFlags().StringArrayVar(&flagTags, "tag", nil, "override the tags pointing at HEAD (repeatable)")
	rootCmd.PersistentFlags().BoolVar(&flagNoTags, "no-tags", false, "override the tags pointing at HEAD with an empty list")
	rootCmd.PersistentFlags().StringVar(&flagDescribeTagPattern, "describe-tag-pattern", "", "regular expression a tag name must match in full to be used by describe")
	rootCmd.PersistentFlags().StringVar(&flagConfig, "config", "", "path to config file (default: auto-detect)")
	rootCmd.PersistentFlags().StringVarP(&flagOutput, "output", "o", "", "output format: json, or empty for key=value")
	rootCmd.PersistentFlags().StringVar(&flagShowVariable, "show-variable", "", "output a single variable (e.g. Rev, Describe)")
	rootCmd.PersistentFlags().BoolVar(&flagShowConfig, "show-config", false, "display the effective configuration and exit")
	rootCmd.PersistentFlags().StringVarP(&flagVerbosity, "verbosity", "v", logger.VerbosityInfo, "log verbosity: quiet, info, debug")
	rootCmd.PersistentFlags().StringVar(&flagLogFile, "log-file", "", "also write JSON logs to this file, rotated by size")
	rootCmd.PersistentFlags().BoolVar(&flagCI, "ci", true, "apply branch and tag reported by the CI environment")
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

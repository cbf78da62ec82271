package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var (
	// Global flags
	configPath   string
	catalogDSN   string
	baseDir      string
	enablePolicy bool
	verbose      bool
	jsonOutput   bool
)

// Execute runs the root command.
func Execute(ctx context.Context, version, commit, buildDate string) error {
	rootCmd := newRootCommand(version, commit, buildDate)
	return rootCmd.ExecuteContext(ctx)
}

func newRootCommand(version, commit, buildDate string) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "fplayout",
		Short: "Feature-pack provisioning layout engine",
		Long: `fplayout computes and mutates a feature-pack provisioning layout: the
ordered, deduplicated set of feature packs a configuration resolves to,
after transitive-dependency traversal, version convergence, patch
application, and plugin-driven option reconciliation.`,
		Version: fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, buildDate),
	}

	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "provisioning.cue", "CUE configuration file or directory")
	rootCmd.PersistentFlags().StringVar(&catalogDSN, "catalog", "fplayout.db", "path to the SQLite universe catalog")
	rootCmd.PersistentFlags().StringVar(&baseDir, "base-dir", "", "base directory for the work area (default: OS temp dir)")
	rootCmd.PersistentFlags().BoolVar(&enablePolicy, "policy", false, "evaluate built-in governance policies before mutations")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose output")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "output in JSON format")

	rootCmd.AddCommand(newBuildCommand())
	rootCmd.AddCommand(newInstallCommand())
	rootCmd.AddCommand(newUninstallCommand())
	rootCmd.AddCommand(newApplyCommand())
	rootCmd.AddCommand(newUpdatesCommand())
	rootCmd.AddCommand(newWatchCommand())

	return rootCmd
}

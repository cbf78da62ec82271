package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newBuildCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "build",
		Short: "Resolve the configuration into an ordered feature-pack layout",
		Long: `Loads the configuration, runs the recursive dependency traversal,
and prints the resulting ordered, deduplicated feature-pack layout.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			l, cleanup, err := openLayout(ctx)
			if err != nil {
				return err
			}
			defer cleanup()

			for _, fp := range l.OrderedFeaturePacks() {
				fpid := fp.FPID()
				fmt.Printf("%-12s %s\n", fp.Kind(), fpid.String())
				for _, patch := range l.Patches(fpid) {
					fmt.Printf("%-12s   patch %s\n", "", patch.FPID().String())
				}
			}
			if l.HasPlugins() {
				dir, err := l.PluginsDir()
				if err == nil {
					fmt.Printf("plugins materialized at %s\n", dir)
				}
			}
			return nil
		},
	}
	return cmd
}

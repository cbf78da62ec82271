package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/fplayout/fplayout/pkg/location"
	"github.com/fplayout/fplayout/pkg/pconfig"
)

func newInstallCommand() *cobra.Command {
	var (
		universe   string
		producer   string
		channel    string
		frequency  string
		build      string
		coordinate string
		transitive bool
		patches    []string
	)

	cmd := &cobra.Command{
		Use:   "install",
		Short: "Add a feature pack to the configuration and rebuild",
		Long: `Adds a direct (or, with --transitive, transitive) feature-pack entry
to the configuration and rebuilds the layout. Accepts either a full
(universe, producer, channel, build) location or a single opaque --coordinate
that must first be normalized through resolution.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			l, cleanup, err := openLayout(ctx)
			if err != nil {
				return err
			}
			defer cleanup()

			loc := location.FeaturePackLocation{Coordinate: coordinate}
			if coordinate == "" {
				loc = location.FeaturePackLocation{
					Universe:  location.UniverseSpec{Factory: universe},
					Producer:  producer,
					Channel:   channel,
					Frequency: frequency,
					Build:     build,
				}
			}

			var patchFPIDs []location.FPID
			for _, p := range patches {
				fpid, err := parseFPID(p)
				if err != nil {
					return fmt.Errorf("patch %q: %w", p, err)
				}
				patchFPIDs = append(patchFPIDs, fpid)
			}

			entry := pconfig.FeaturePackConfig{
				Location:   loc,
				Transitive: transitive,
				Patches:    patchFPIDs,
			}

			if err := l.Install(ctx, entry, nil); err != nil {
				return err
			}
			fmt.Printf("installed %s\n", loc.ProducerSpec().String())
			return nil
		},
	}

	cmd.Flags().StringVar(&universe, "universe", "", "universe factory name (e.g. maven, catalog)")
	cmd.Flags().StringVar(&producer, "producer", "", "producer identity")
	cmd.Flags().StringVar(&channel, "channel", "", "channel name (empty = universe default)")
	cmd.Flags().StringVar(&frequency, "frequency", "", "release frequency for the default channel")
	cmd.Flags().StringVar(&build, "build", "", "concrete build stamp (empty = resolve to latest)")
	cmd.Flags().StringVar(&coordinate, "coordinate", "", "opaque artifact coordinate, resolved before layout")
	cmd.Flags().BoolVar(&transitive, "transitive", false, "record as a transitive rather than direct entry")
	cmd.Flags().StringSliceVar(&patches, "patch", nil, "patch FPID to attach (repeatable)")

	return cmd
}

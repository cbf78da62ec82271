package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/fplayout/fplayout/pkg/location"
)

func newApplyCommand() *cobra.Command {
	var (
		producers []string
		dryRun    bool
	)

	cmd := &cobra.Command{
		Use:   "apply",
		Short: "Apply the pending update plan to every (or a named) producer",
		Long: `Queries each producer's channel for a newer build or additional
patches, then applies every non-empty result as a single update plan. With
--dry-run, only the plan is printed.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			l, cleanup, err := openLayout(ctx)
			if err != nil {
				return err
			}
			defer cleanup()

			var specs []location.ProducerSpec
			for _, p := range producers {
				specs = append(specs, location.ProducerSpec{Producer: p})
			}

			plan, err := l.GetUpdates(ctx, specs)
			if err != nil {
				return fmt.Errorf("compute update plan: %w", err)
			}
			if plan.IsEmpty() {
				fmt.Println("nothing to apply")
				return nil
			}
			for _, u := range plan.Updates {
				fmt.Printf("update  %s -> %s\n", u.Installed.String(), u.New.String())
			}
			if dryRun {
				return nil
			}

			if err := l.Apply(ctx, plan, nil); err != nil {
				return err
			}
			fmt.Println("applied")
			return nil
		},
	}

	cmd.Flags().StringSliceVar(&producers, "producer", nil, "producer to check (repeatable, default: every installed producer)")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "print the plan without applying it")

	return cmd
}

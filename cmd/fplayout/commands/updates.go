package commands

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/fplayout/fplayout/pkg/location"
)

func newUpdatesCommand() *cobra.Command {
	var producers []string

	cmd := &cobra.Command{
		Use:   "updates",
		Short: "Report available updates without changing anything",
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

			if jsonOutput {
				type update struct {
					Installed string `json:"installed"`
					New       string `json:"new"`
					Patches   int    `json:"new_patches"`
				}
				out := make([]update, 0, len(plan.Updates))
				for _, u := range plan.Updates {
					out = append(out, update{Installed: u.Installed.String(), New: u.New.String(), Patches: len(u.NewPatches)})
				}
				enc := json.NewEncoder(os.Stdout)
				enc.SetIndent("", "  ")
				return enc.Encode(out)
			}

			if len(plan.Updates) == 0 {
				fmt.Println("up to date")
				return nil
			}
			for _, u := range plan.Updates {
				fmt.Printf("%s -> %s (patches: %d)\n", u.Installed.String(), u.New.String(), len(u.NewPatches))
			}
			return nil
		},
	}

	cmd.Flags().StringSliceVar(&producers, "producer", nil, "producer to check (repeatable, default: every installed producer)")
	return cmd
}

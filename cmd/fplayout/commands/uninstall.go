package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newUninstallCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "uninstall <fpid>",
		Short: "Remove a producer or patch from the configuration and rebuild",
		Long: `Removes a direct entry, transitive entry, or patch identified by fpid
(format "[universe:]producer[#channel[/frequency]]!build") and rebuilds the
layout.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			fpid, err := parseFPID(args[0])
			if err != nil {
				return err
			}

			l, cleanup, err := openLayout(ctx)
			if err != nil {
				return err
			}
			defer cleanup()

			if err := l.Uninstall(ctx, fpid, nil); err != nil {
				return err
			}
			fmt.Printf("uninstalled %s\n", fpid.String())
			return nil
		},
	}
	return cmd
}

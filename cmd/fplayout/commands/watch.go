package commands

import (
	"fmt"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

func newWatchCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Rebuild the layout whenever the configuration file changes",
		Long: `Watches configPath for writes and rebuilds the layout after each
change, debounced by 500ms, printing the resulting feature-pack count or
the build error.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			watcher, err := fsnotify.NewWatcher()
			if err != nil {
				return fmt.Errorf("watch: %w", err)
			}
			defer watcher.Close()

			if err := watcher.Add(configPath); err != nil {
				return fmt.Errorf("watch: add %s: %w", configPath, err)
			}

			rebuild := func() {
				l, cleanup, err := openLayout(ctx)
				if err != nil {
					log.Error().Err(err).Msg("rebuild failed")
					return
				}
				defer cleanup()
				log.Info().Int("feature_packs", len(l.OrderedFeaturePacks())).Msg("rebuilt")
			}

			rebuild()

			var reloadTimer *time.Timer
			const debounce = 500 * time.Millisecond
			for {
				select {
				case <-ctx.Done():
					return nil
				case event, ok := <-watcher.Events:
					if !ok {
						return nil
					}
					if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
						continue
					}
					if reloadTimer != nil {
						reloadTimer.Stop()
					}
					reloadTimer = time.AfterFunc(debounce, rebuild)
				case err, ok := <-watcher.Errors:
					if !ok {
						return nil
					}
					log.Error().Err(err).Msg("watch error")
				}
			}
		},
	}
	return cmd
}

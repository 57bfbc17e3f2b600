package main

import (
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"cdrpulse/internal/config"
	"cdrpulse/internal/events"
	"cdrpulse/internal/version"
	"cdrpulse/pkg/bus"
)

func newWatchCommand() *cobra.Command {
	var (
		natsURL string
		durable string
		format  string
	)

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Log configuration and run lifecycle events as they are published",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, err := config.LoadWatcher(ctx)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			if cmd.Flags().Changed("nats") {
				cfg.NATSURL = natsURL
			}
			if cmd.Flags().Changed("durable") {
				cfg.Durable = durable
			}
			if err := setupLogging(cmd.OutOrStdout(), "info", format); err != nil {
				return err
			}

			b, err := bus.Connect(bus.Config{
				URL:      cfg.NATSURL,
				Name:     version.Name + "-watch",
				Stream:   events.Stream,
				Subjects: []string{events.All},
			})
			if err != nil {
				return err
			}
			defer b.Close()

			sub, err := events.Watch(ctx, b, cfg.Durable, log.Logger)
			if err != nil {
				return err
			}
			defer sub.Close()

			log.Info().Str("url", cfg.NATSURL).Str("durable", cfg.Durable).Msg("watching " + events.All)
			<-ctx.Done()
			return nil
		},
	}

	cmd.Flags().StringVar(&natsURL, "nats", "", "NATS server URL (default from NATS_URL)")
	cmd.Flags().StringVar(&durable, "durable", "", "Durable consumer name (default from WATCH_DURABLE)")
	cmd.Flags().StringVar(&format, "format", "console", "Log format: console or json")
	return cmd
}

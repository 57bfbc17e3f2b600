package main

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"cdrpulse/internal/apiclient"
	"cdrpulse/internal/config"
	"cdrpulse/internal/tui"
	"cdrpulse/internal/wizard"
)

func newWizardCommand() *cobra.Command {
	var (
		apiURL  string
		offline bool
		delay   time.Duration
	)

	cmd := &cobra.Command{
		Use:   "wizard",
		Short: "Create and run a load test interactively",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, err := config.LoadClient(ctx)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			if !cmd.Flags().Changed("api") {
				apiURL = cfg.APIURL
			}
			if !cmd.Flags().Changed("delay") {
				delay = cfg.SimulatedDelay
			}

			submitter, err := newSubmitter(ctx, apiURL, offline, delay)
			if err != nil {
				return err
			}

			// The terminal belongs to the wizard from here on.
			zerolog.SetGlobalLevel(zerolog.Disabled)
			return tui.Run(ctx, wizard.New(nil, submitter))
		},
	}

	cmd.Flags().StringVar(&apiURL, "api", "", "Base URL of the cdrpulse API (default from CDRPULSE_API_URL)")
	cmd.Flags().BoolVar(&offline, "offline", false, "Simulate results locally without an API server")
	cmd.Flags().DurationVar(&delay, "delay", 0, "Simulated test duration (default from WIZARD_SIMULATED_DELAY)")
	return cmd
}

func newSubmitter(ctx context.Context, apiURL string, offline bool, delay time.Duration) (wizard.Submitter, error) {
	if offline {
		return wizard.NewSimulatedSubmitter(delay), nil
	}

	client, err := apiclient.New(apiURL)
	if err != nil {
		return nil, err
	}
	checkCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if _, err := client.Stats(checkCtx); err != nil {
		return nil, fmt.Errorf("api at %s is unreachable (use --offline to run without it): %w", apiURL, err)
	}
	return wizard.NewAPISubmitter(client, delay), nil
}

package main

import (
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"cdrpulse/internal/apiclient"
	"cdrpulse/internal/config"
	"cdrpulse/internal/history"
	"cdrpulse/internal/results"
	"cdrpulse/pkg/render"
)

func newHistoryCommand() *cobra.Command {
	var (
		apiURL   string
		status   string
		search   string
		configID string
		limit    int
	)

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recent test runs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := history.ParseStatus(status)
			if err != nil {
				return err
			}
			if limit < 0 {
				return errors.New("--limit must not be negative")
			}
			client, err := historyClient(cmd, apiURL)
			if err != nil {
				return err
			}

			page, err := history.Load(cmd.Context(), client, history.Options{
				Limit:           limit,
				ConfigurationID: configID,
				Filter:          history.Filter{Status: st, Query: search},
			})
			if err != nil {
				return err
			}
			return renderTo(cmd.OutOrStdout(), history.Template, page)
		},
	}

	cmd.PersistentFlags().StringVar(&apiURL, "api", "", "Base URL of the cdrpulse API (default from CDRPULSE_API_URL)")
	cmd.Flags().StringVar(&status, "status", "all", "Only show runs in this status: all, pending, running, completed or failed")
	cmd.Flags().StringVar(&search, "search", "", "Only show runs whose test or application name contains this text")
	cmd.Flags().StringVar(&configID, "config", "", "Only show runs of this test configuration")
	cmd.Flags().IntVar(&limit, "limit", 0, "Maximum number of runs to fetch (default: server default)")

	cmd.AddCommand(newHistoryShowCommand(&apiURL))
	return cmd
}

func newHistoryShowCommand(apiURL *string) *cobra.Command {
	return &cobra.Command{
		Use:   "show RUN_ID",
		Short: "Print the report of one test run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			client, err := historyClient(cmd, *apiURL)
			if err != nil {
				return err
			}

			run, err := client.GetRun(ctx, args[0])
			if apiclient.IsNotFound(err) {
				return fmt.Errorf("test run %q not found", args[0])
			}
			if err != nil {
				return err
			}
			cfg, err := client.GetConfiguration(ctx, run.TestConfigurationID)
			if err != nil {
				return fmt.Errorf("load configuration of run %s: %w", run.ID, err)
			}

			if run.Results == nil {
				_, err = fmt.Fprintf(cmd.OutOrStdout(), "%s: run %s is %s and has no results yet\n", cfg.Name, run.ID, run.Status)
				return err
			}
			summary, err := client.RunSummary(ctx, run.ID)
			if err != nil {
				return fmt.Errorf("load summary of run %s: %w", run.ID, err)
			}
			report := results.Report{Configuration: cfg, Run: run, Summary: summary}
			return renderTo(cmd.OutOrStdout(), results.ReportTemplate, report)
		},
	}
}

func historyClient(cmd *cobra.Command, apiURL string) (*apiclient.Client, error) {
	if apiURL == "" {
		cfg, err := config.LoadClient(cmd.Context())
		if err != nil {
			return nil, fmt.Errorf("load config: %w", err)
		}
		apiURL = cfg.APIURL
	}
	return apiclient.New(apiURL)
}

func renderTo(w io.Writer, name string, data any) error {
	engine, err := render.New()
	if err != nil {
		return err
	}
	out, err := engine.Render(name, data)
	if err != nil {
		return fmt.Errorf("render %s: %w", name, err)
	}
	_, err = fmt.Fprintln(w, out)
	return err
}

package main

import (
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"cdrpulse/internal/db"
	"cdrpulse/internal/store"
)

func newMigrateCommand() *cobra.Command {
	var (
		down   bool
		status bool
	)

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, err := loadConfig(ctx)
			if err != nil {
				return err
			}
			database, err := db.Connect(ctx, cfg.DBDriver, cfg.DBDSN)
			if err != nil {
				return fmt.Errorf("connect database: %w", err)
			}
			defer closeDatabase(database)

			switch {
			case status:
				v, err := db.Version(ctx, database, cfg.DBDriver)
				if err != nil {
					return err
				}
				_, err = fmt.Fprintf(cmd.OutOrStdout(), "schema version %d\n", v)
				return err
			case down:
				return db.Rollback(ctx, database, cfg.DBDriver)
			default:
				return db.Migrate(ctx, database, cfg.DBDriver)
			}
		},
	}

	cmd.Flags().BoolVar(&down, "down", false, "Roll back the most recent migration")
	cmd.Flags().BoolVar(&status, "status", false, "Print the current schema version")
	cmd.MarkFlagsMutuallyExclusive("down", "status")
	return cmd
}

func newSeedCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Apply migrations and insert sample configurations and runs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, err := loadConfig(ctx)
			if err != nil {
				return err
			}
			database, err := openDatabase(ctx, cfg)
			if err != nil {
				return err
			}
			defer closeDatabase(database)

			st, err := store.New(database)
			if err != nil {
				return err
			}
			if err := st.Seed(ctx); err != nil {
				return fmt.Errorf("seed database: %w", err)
			}
			log.Info().Msg("sample data ready")
			return nil
		},
	}
}

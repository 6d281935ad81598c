package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"prfmonitor/config"
	"prfmonitor/database"
	"prfmonitor/logger"
	"prfmonitor/service"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const version = "1.0.0"

type app struct {
	configFile string
	cfg        *config.Config
	db         *gorm.DB
}

func newRootCommand() *cobra.Command {
	a := &app{}
	rootCmd := &cobra.Command{
		Use:     "prfctl",
		Short:   "PRF Monitor maintenance commands",
		Version: version,
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().StringVarP(&a.configFile, "config", "c", "", "external config file")

	rootCmd.AddCommand(
		a.newMigrateCommand(),
		a.newReconcileCommand(),
		a.newDedupeCommand(),
		a.newSyncCommand(),
	)
	return rootCmd
}

// load reads configuration, builds the logger and opens the database.
func (a *app) load() error {
	cfg, err := config.LoadConfig(a.configFile)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := logger.Init(cfg.Log); err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	db, err := database.Open(cfg)
	if err != nil {
		return err
	}
	a.cfg, a.db = cfg, db
	return nil
}

func yearFlag(cmd *cobra.Command, year *int) {
	cmd.Flags().IntVar(year, "year", time.Now().Year(), "fiscal year")
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func (a *app) newMigrateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update tables and seed the admin user and chart of accounts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.load(); err != nil {
				return err
			}
			defer logger.Sync()
			if err := database.Migrate(a.db); err != nil {
				return fmt.Errorf("migrate: %w", err)
			}
			if err := database.SeedDefaults(a.db, a.cfg.Server.AdminPassword); err != nil {
				return fmt.Errorf("seed: %w", err)
			}
			logger.L.Info("migration complete", zap.String("driver", a.cfg.Database.Driver))
			return nil
		},
	}
}

func (a *app) newReconcileCommand() *cobra.Command {
	var year int
	cmd := &cobra.Command{
		Use:   "reconcile",
		Short: "Print the reconciliation report for a fiscal year as JSON",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.load(); err != nil {
				return err
			}
			defer logger.Sync()
			utilization := service.NewUtilizationService(a.db, a.cfg.Budget)
			report, err := service.NewReconcileService(a.db, utilization).Report(cmd.Context(), year)
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), report)
		},
	}
	yearFlag(cmd, &year)
	return cmd
}

func (a *app) newDedupeCommand() *cobra.Command {
	var (
		year   int
		merge  bool
		dryRun bool
	)
	cmd := &cobra.Command{
		Use:   "dedupe-budgets",
		Short: "Remove duplicate budgets, keeping the lowest id per account and year",
		Long: "Remove duplicate budgets, keeping the lowest id per account and year.\n" +
			"--year 0 scans every year. --merge adds removed allocations into the kept row.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.load(); err != nil {
				return err
			}
			defer logger.Sync()
			svc := service.NewReconcileService(a.db, service.NewUtilizationService(a.db, a.cfg.Budget))
			plans, err := svc.CleanupDuplicates(cmd.Context(), year, merge, dryRun)
			if err != nil {
				return err
			}
			logger.L.Info("dedupe finished",
				zap.Int("groups", len(plans)),
				zap.Bool("merge", merge),
				zap.Bool("dry_run", dryRun))
			return writeJSON(cmd.OutOrStdout(), plans)
		},
	}
	cmd.Flags().IntVar(&year, "year", 0, "fiscal year, 0 for all years")
	cmd.Flags().BoolVar(&merge, "merge", false, "add removed allocations into the kept budget")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "print the plan without changing anything")
	return cmd
}

func (a *app) newSyncCommand() *cobra.Command {
	var year int
	cmd := &cobra.Command{
		Use:   "sync-utilization",
		Short: "Store computed spending in budgets.utilized_amount",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.load(); err != nil {
				return err
			}
			defer logger.Sync()
			ctx, cancel := context.WithTimeout(cmd.Context(), 5*time.Minute)
			defer cancel()
			changed, err := service.NewUtilizationService(a.db, a.cfg.Budget).Sync(ctx, year)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "fiscal year %d: %d budget(s) updated\n", year, changed)
			return nil
		},
	}
	yearFlag(cmd, &year)
	return cmd
}

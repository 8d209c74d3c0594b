package main

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"privacy-rewards-system/models"
	"privacy-rewards-system/services"
	"privacy-rewards-system/utils"

	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(seedMissionsCmd)
	rootCmd.AddCommand(exportStatementCmd)
	rootCmd.AddCommand(auditCmd)

	exportStatementCmd.Flags().String("day", "", "UTC day to export (YYYY-MM-DD), defaults to yesterday")
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or update the database schema",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, _, err := loadConfig()
		if err != nil {
			return err
		}
		db, err := openDB(cfg)
		if err != nil {
			return err
		}
		if err := models.AutoMigrate(db); err != nil {
			return err
		}
		utils.Log.Info("✅ Schema migrated")
		return nil
	},
}

var seedMissionsCmd = &cobra.Command{
	Use:   "seed-missions",
	Short: "Insert the default mission catalog",
	Long:  `Insert the launch mission definitions. Definitions whose title already exists are left untouched.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, _, err := loadConfig()
		if err != nil {
			return err
		}
		db, err := openDB(cfg)
		if err != nil {
			return err
		}
		if err := models.AutoMigrate(db); err != nil {
			return err
		}
		n, err := services.SeedMissions(cmd.Context(), db, services.DefaultMissions, time.Now())
		if err != nil {
			return err
		}
		fmt.Fprintf(os.Stdout, "Seeded %d mission(s)\n", n)
		return nil
	},
}

var exportStatementCmd = &cobra.Command{
	Use:   "export-statement",
	Short: "Export one day's ledger statement to R2",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, economy, err := loadConfig()
		if err != nil {
			return err
		}
		if !cfg.R2.Enabled() {
			return fmt.Errorf("R2 credentials are not configured")
		}
		day := time.Now().UTC().AddDate(0, 0, -1)
		if raw, _ := cmd.Flags().GetString("day"); raw != "" {
			day, err = time.Parse("2006-01-02", raw)
			if err != nil {
				return fmt.Errorf("--day: %w", err)
			}
		}

		db, err := openDB(cfg)
		if err != nil {
			return err
		}
		ctx := cmd.Context()
		store, err := utils.NewR2Store(ctx, cfg.R2)
		if err != nil {
			return err
		}
		exporter := services.NewStatementExporter(db, services.NewLedgerService(db, economy), store)
		res, err := exporter.Export(ctx, day)
		if err != nil {
			return err
		}
		return printJSON(res)
	},
}

var auditCmd = &cobra.Command{
	Use:   "audit USER_ID",
	Short: "Check that a user's balance equals the sum of their transactions",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, economy, err := loadConfig()
		if err != nil {
			return err
		}
		db, err := openDB(cfg)
		if err != nil {
			return err
		}
		res, err := services.NewLedgerService(db, economy).Audit(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		if err := printJSON(res); err != nil {
			return err
		}
		if !res.Consistent {
			return fmt.Errorf("balance for %s does not match its transactions", args[0])
		}
		return nil
	},
}

func printJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"gorm.io/gorm"

	"github.com/thishamdi/digital-store-api/internal/config"
	"github.com/thishamdi/digital-store-api/internal/db"
	"github.com/thishamdi/digital-store-api/internal/logger"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:           "storectl",
	Short:         "Operator CLI for the digital store API",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(createAdminCmd)
}

// bootDB loads .env and config and opens the database.
func bootDB() (*gorm.DB, error) {
	_ = godotenv.Load()
	cfg := config.Load()
	logger.Init(cfg.AppEnv)
	return db.Connect(cfg.DBDSN)
}

// storectl migrate
var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or update the database schema",
	RunE: func(cmd *cobra.Command, args []string) error {
		gdb, err := bootDB()
		if err != nil {
			return err
		}
		defer db.Close(gdb)

		fmt.Fprintln(cmd.OutOrStdout(), "Running migrations...")
		if err := db.Migrate(gdb); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "Done.")
		return nil
	},
}

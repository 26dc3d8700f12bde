// Command surveyctl imports reference data and runs local conversations
// against the survey engine.
package main

import (
	"fmt"
	"os"

	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/GTDGit/smsinterview/internal/config"
	"github.com/GTDGit/smsinterview/internal/database"
)

var (
	verbose       bool
	migrationsURL string

	rootCmd = &cobra.Command{
		Use:   "surveyctl",
		Short: "Operator tool for the SMS interview service",
		Long: `surveyctl manages the reference data behind the SMS interview service.

Load the gazetteer and survey definitions:
  surveyctl locations import data/locations.json
  surveyctl surveys import data/surveys.yaml

Try a survey without a phone or a database:
  surveyctl chat --surveys data/surveys.yaml --locations data/locations.json`,
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			setupLogger()
		},
	}
)

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	rootCmd.PersistentFlags().StringVar(&migrationsURL, "migrations", database.DefaultMigrationsURL, "schema migrations source")

	rootCmd.AddCommand(locationsCmd)
	rootCmd.AddCommand(surveysCmd)
	rootCmd.AddCommand(adminCmd)
	rootCmd.AddCommand(chatCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func setupLogger() {
	level := zerolog.WarnLevel
	if verbose {
		level = zerolog.DebugLevel
	}
	zerolog.SetGlobalLevel(level)
	log.Logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()
}

// connectDB opens the database from DB_* settings and applies migrations.
func connectDB() (*sqlx.DB, error) {
	dbCfg, err := config.LoadDatabase()
	if err != nil {
		return nil, err
	}
	db, err := database.Connect(dbCfg)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	if err := database.Migrate(db.DB, migrationsURL); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return db, nil
}

package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/GTDGit/smsinterview/internal/repository"
	"github.com/GTDGit/smsinterview/internal/service"
	"github.com/GTDGit/smsinterview/internal/surveyfile"
)

var locationsCmd = &cobra.Command{
	Use:   "locations",
	Short: "Gazetteer management",
}

var locationsImportCmd = &cobra.Command{
	Use:   "import [file.json]",
	Short: "Upsert locations from a nested location file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := connectDB()
		if err != nil {
			return err
		}
		defer db.Close()

		svc := service.NewImportService(repository.NewLocationRepository(db), repository.NewSurveyRepository(db))
		n, err := svc.ImportLocations(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Imported %d locations from %s\n", n, args[0])
		return nil
	},
}

var surveysCmd = &cobra.Command{
	Use:   "surveys",
	Short: "Survey definition management",
}

var surveysImportCmd = &cobra.Command{
	Use:   "import [file.yaml]",
	Short: "Upsert survey definitions from a YAML file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := connectDB()
		if err != nil {
			return err
		}
		defer db.Close()

		svc := service.NewImportService(repository.NewLocationRepository(db), repository.NewSurveyRepository(db))
		surveys, err := svc.ImportSurveys(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		for _, s := range surveys {
			status := "active"
			if !s.Active {
				status = "inactive"
			}
			fmt.Fprintf(cmd.OutOrStdout(), "  %s (%s, %d questions)\n", s.ID, status, len(s.Questions))
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Imported %d surveys from %s\n", len(surveys), args[0])
		return nil
	},
}

var surveysValidateCmd = &cobra.Command{
	Use:   "validate [file.yaml]",
	Short: "Check a survey file without touching the database",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		surveys, err := surveyfile.Load(args[0])
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s: %d surveys OK\n", args[0], len(surveys))
		return nil
	},
}

func init() {
	locationsCmd.AddCommand(locationsImportCmd)
	surveysCmd.AddCommand(surveysImportCmd)
	surveysCmd.AddCommand(surveysValidateCmd)
}

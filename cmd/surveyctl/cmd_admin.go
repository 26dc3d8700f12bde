package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/GTDGit/smsinterview/internal/repository"
	"github.com/GTDGit/smsinterview/internal/service"
)

var adminCmd = &cobra.Command{
	Use:   "admin",
	Short: "Admin API operators",
}

var adminCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create an operator, or reset its password",
	RunE: func(cmd *cobra.Command, args []string) error {
		email, _ := cmd.Flags().GetString("email")
		password, _ := cmd.Flags().GetString("password")
		name, _ := cmd.Flags().GetString("name")

		if len(password) < 8 {
			return fmt.Errorf("--password must be at least 8 characters")
		}

		db, err := connectDB()
		if err != nil {
			return err
		}
		defer db.Close()

		// Token signing is not needed to create accounts.
		svc := service.NewAdminAuthService(repository.NewAdminUserRepository(db), "")
		if err := svc.CreateAdmin(cmd.Context(), email, password, name); err != nil {
			return fmt.Errorf("create admin: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Operator %s saved\n", email)
		return nil
	},
}

func init() {
	adminCreateCmd.Flags().String("email", "", "login email")
	adminCreateCmd.Flags().String("password", "", "login password")
	adminCreateCmd.Flags().String("name", "", "display name")
	_ = adminCreateCmd.MarkFlagRequired("email")
	_ = adminCreateCmd.MarkFlagRequired("password")

	adminCmd.AddCommand(adminCreateCmd)
}

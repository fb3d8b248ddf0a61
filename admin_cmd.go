package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/cppla/ecorecycle/backend"
	"github.com/cppla/ecorecycle/config"
	"github.com/cppla/ecorecycle/utils"
)

// adminCmd manages console accounts
var adminCmd = &cobra.Command{
	Use:   "admin",
	Short: "Manage admin accounts",
}

var adminCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create an admin or reset its password",
	Long: `Create an admin account for the console.

An existing admin with the same email gets the new password.`,
	RunE: runAdminCreate,
}

var (
	adminEmail    string
	adminPassword string
)

func init() {
	adminCreateCmd.Flags().StringVar(&adminEmail, "email", "", "admin email (required)")
	adminCreateCmd.Flags().StringVar(&adminPassword, "password", "", "admin password, at least 8 characters (required)")
	_ = adminCreateCmd.MarkFlagRequired("email")
	_ = adminCreateCmd.MarkFlagRequired("password")
	adminCmd.AddCommand(adminCreateCmd)
}

func runAdminCreate(cmd *cobra.Command, args []string) error {
	cfg := config.Load()
	if err := utils.InitLogger(cfg); err != nil {
		return err
	}
	db := config.InitDatabase()

	auth := backend.NewAuthService(db, cfg.JWTSecret, cfg.SessionTTL(), utils.NewTokenBlacklist(nil), utils.Named("auth"))
	admin, err := auth.CreateAdmin(cmd.Context(), adminEmail, adminPassword)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "admin %s ready (id %d)\n", admin.Email, admin.ID)
	return nil
}

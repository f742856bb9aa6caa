package cmd

import (
	"fmt"
	"os"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/repodash/repodash/internal/db"
	"github.com/repodash/repodash/internal/migrations"
	"github.com/repodash/repodash/internal/service/auth"
	"github.com/repodash/repodash/pkg/logger"
)

var adminCmd = &cobra.Command{
	Use:   "admin",
	Short: "Administrative operations on the repodash database",
	Annotations: map[string]string{
		"group": string(subCommandGroupAdvanced),
		"order": "2",
	},
}

var adminSetPasswordCmd = &cobra.Command{
	Use:   "set-password",
	Short: "Set the admin password",
	Long: "Sets a new admin password, prompting for it on the terminal.\n" +
		"Run this against the same database the server uses (same DATABASE_URL).\n" +
		"The server picks up the new password on the next login attempt; active\n" +
		"sessions stay valid until their tokens expire.",
	RunE: runAdminSetPassword,
}

func init() {
	adminCmd.AddCommand(adminSetPasswordCmd)
	rootCmd.AddCommand(adminCmd)
}

// readPassword prompts twice and requires both entries to match.
func readPassword() (string, error) {
	fmt.Print("New admin password: ")
	first, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Println()
	if err != nil {
		return "", fmt.Errorf("failed to read password: %w", err)
	}

	fmt.Print("Repeat password: ")
	second, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Println()
	if err != nil {
		return "", fmt.Errorf("failed to read password: %w", err)
	}

	if string(first) != string(second) {
		return "", fmt.Errorf("passwords do not match")
	}
	if len(first) == 0 {
		return "", fmt.Errorf("password must not be empty")
	}
	return string(first), nil
}

func runAdminSetPassword(cmd *cobra.Command, args []string) error {
	_ = godotenv.Load()

	dbConn, err := db.NewConnection(logger.NewNoop(), os.Getenv(DBUrlEnvVar))
	if err != nil {
		return err
	}
	if err := migrations.Migrate(dbConn); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	// Token signing is irrelevant here; only the credential store is used.
	authService, err := auth.NewService(dbConn, "unused", logger.NewNoop())
	if err != nil {
		return err
	}

	password, err := readPassword()
	if err != nil {
		return err
	}
	if err := authService.SetPassword(password); err != nil {
		return err
	}

	cmd.Println("Admin password updated")
	return nil
}

package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/repodash/repodash/internal/db"
	"github.com/repodash/repodash/internal/migrations"
	"github.com/repodash/repodash/internal/service/audit"
	"github.com/repodash/repodash/pkg/logger"
)

var auditCmdLimit int

var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "Show recent audit log entries",
	Long: "Prints the newest audit log entries from the repodash database.\n" +
		"Run this against the same database the server uses (same DATABASE_URL).",
	RunE: runAudit,
	Annotations: map[string]string{
		"group": string(subCommandGroupAdvanced),
		"order": "3",
	},
}

func init() {
	auditCmd.Flags().IntVar(&auditCmdLimit, "limit", 50, "maximum number of entries to show")
	rootCmd.AddCommand(auditCmd)
}

func runAudit(cmd *cobra.Command, args []string) error {
	_ = godotenv.Load()

	dbConn, err := db.NewConnection(logger.NewNoop(), os.Getenv(DBUrlEnvVar))
	if err != nil {
		return err
	}
	if err := migrations.Migrate(dbConn); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	auditService := audit.NewService(dbConn, logger.NewNoop())
	entries, err := auditService.QueryRecent(auditCmdLimit)
	if err != nil {
		return fmt.Errorf("failed to query audit log: %w", err)
	}
	if len(entries) == 0 {
		cmd.Println("No audit entries found")
		return nil
	}

	t := table.NewWriter()
	t.SetOutputMirror(cmd.OutOrStdout())
	t.AppendHeader(table.Row{"ID", "Time", "Kind", "Payload"})
	for _, e := range entries {
		payload := ""
		if len(e.Payload) > 0 {
			raw, err := json.Marshal(e.Payload)
			if err == nil {
				payload = string(raw)
			}
		}
		t.AppendRow(table.Row{e.ID, e.CreatedAt.Format("2006-01-02 15:04:05"), e.Kind, payload})
	}
	t.SetStyle(table.StyleLight)
	t.Render()
	return nil
}

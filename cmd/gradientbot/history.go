package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/nao1215/gradientbot/internal/config"
	"github.com/nao1215/gradientbot/internal/database"
	"github.com/nao1215/gradientbot/internal/model"
	"github.com/nao1215/gradientbot/internal/report"
)

// defaultHistoryLimit is the number of runs shown without --limit.
const defaultHistoryLimit = 20

// NewHistoryCmd creates the history command.
func NewHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recent runs",
		Long: `History lists the runs recorded in the history database, newest first.

Each run shows how it ended, which stage failed and the proxy it used
(credentials removed). A run still marked "running" either is in progress
or was killed without a chance to record its end.

Examples:
  # Show the last 20 runs
  gradientbot history

  # Show every run as JSON
  gradientbot history --json --limit 0

  # Markdown table for an issue report
  gradientbot history --markdown`,
		Args: cobra.NoArgs,
		RunE: runHistoryCmd,
	}

	cmd.Flags().BoolP("json", "j", false,
		"Output JSON (mutually exclusive with --markdown)")
	cmd.Flags().BoolP("markdown", "m", false,
		"Output Markdown (mutually exclusive with --json)")
	cmd.Flags().IntP("limit", "n", defaultHistoryLimit,
		"Maximum number of runs to show, 0 for all")
	cmd.Flags().String("db-dir", config.XDGDataDir(),
		"Directory of the history database")

	return cmd
}

func runHistoryCmd(cmd *cobra.Command, _ []string) error {
	jsonOut, err := cmd.Flags().GetBool("json")
	if err != nil {
		return err
	}
	markdownOut, err := cmd.Flags().GetBool("markdown")
	if err != nil {
		return err
	}
	if jsonOut && markdownOut {
		return errors.New("--json and --markdown are mutually exclusive")
	}
	limit, err := cmd.Flags().GetInt("limit")
	if err != nil {
		return err
	}
	dbDir, err := cmd.Flags().GetString("db-dir")
	if err != nil {
		return err
	}

	records, err := loadHistory(cmd, dbDir, limit)
	if err != nil {
		return err
	}

	var w report.Writer
	switch {
	case jsonOut:
		w = report.NewJSONWriter(cmd.OutOrStdout(), report.WithPrettyPrint())
	case markdownOut:
		w = report.NewMarkdownWriter(cmd.OutOrStdout())
	default:
		w = report.NewSimpleWriter(cmd.OutOrStdout(), report.WithVerbose(getVerboseFlag(cmd)))
	}
	if _, err := w.WriteHistory(records); err != nil {
		return fmt.Errorf("failed to write history: %w", err)
	}
	return nil
}

// loadHistory reads the runs without creating a database. A missing
// database is an empty history.
func loadHistory(cmd *cobra.Command, dbDir string, limit int) ([]*model.RunRecord, error) {
	db, err := database.Open(dbDir, database.Options{CreateIfNotExists: false})
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open history: %w", err)
	}
	defer db.Close()

	records, err := db.RecentRuns(cmd.Context(), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to read history: %w", err)
	}
	return records, nil
}

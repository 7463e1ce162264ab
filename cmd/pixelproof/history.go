package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/pixelproof/pixelproof/internal/database"
	"github.com/spf13/cobra"
)

// defaultHistoryLimit caps the listing so a long-lived archive does not
// flood the terminal.
const defaultHistoryLimit = 20

// NewHistoryCmd creates the history command.
func NewHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List archived scans",
		Long: `History lists scans archived by previous 'pixelproof scan' runs,
newest first.

Each line shows the short run id, scan date, overall score, assessment,
and source path. Run ids feed 'pixelproof compare'; the SHA-256 filter
finds every scan of one piece of content regardless of file name.

Examples:
  # List the 20 most recent scans
  pixelproof history

  # List everything ever archived
  pixelproof history --limit 0

  # Find scans of specific content by hash
  pixelproof history --sha256 2c26b46b68ffc68ff99b453c1d30413413422d706483bfa0f98a5e886266e7ae

  # Output the listing in JSON format
  pixelproof history --json`,
		Args: cobra.NoArgs,
		RunE: runHistoryCmd,
	}

	cmd.Flags().IntP("limit", "l", defaultHistoryLimit,
		"Maximum number of runs to list (0 lists all)")
	cmd.Flags().StringP("sha256", "s", "",
		"List only runs whose source content matches this SHA-256")
	cmd.Flags().BoolP("json", "j", false,
		"Output the listing in JSON format")

	return cmd
}

// runHistoryCmd executes the history command.
func runHistoryCmd(cmd *cobra.Command, _ []string) error {
	limit, err := cmd.Flags().GetInt("limit")
	if err != nil {
		return err
	}

	sha, err := cmd.Flags().GetString("sha256")
	if err != nil {
		return err
	}

	jsonOutput, err := cmd.Flags().GetBool("json")
	if err != nil {
		return err
	}

	db, err := database.Open(resolveDBDir(), database.DefaultOptions())
	if err != nil {
		return fmt.Errorf("failed to open scan archive: %w", err)
	}
	defer db.Close()

	ctx := context.Background()

	var runs []database.RunMetadata
	if sha != "" {
		runs, err = db.RunsForSHA256(ctx, sha)
	} else {
		runs, err = db.ListRuns(ctx, limit)
	}
	if err != nil {
		return fmt.Errorf("failed to list archived runs: %w", err)
	}

	if jsonOutput {
		encoder := json.NewEncoder(cmd.OutOrStdout())
		encoder.SetIndent("", "  ")
		return encoder.Encode(runs)
	}

	writeRunListing(cmd.OutOrStdout(), runs)
	return nil
}

// writeRunListing renders archived runs as an aligned terminal table.
func writeRunListing(w io.Writer, runs []database.RunMetadata) {
	if len(runs) == 0 {
		fmt.Fprintln(w, "No archived scans found.")
		fmt.Fprintln(w, "\nUse 'pixelproof scan <image-file>' to analyze and archive an image.")
		return
	}

	fmt.Fprintf(w, "Archived scans (%d):\n\n", len(runs))
	fmt.Fprintf(w, "  %-8s  %-19s  %6s  %-20s  %s\n", "RUN ID", "DATE", "SCORE", "ASSESSMENT", "SOURCE")
	fmt.Fprintln(w, "  "+strings.Repeat("-", 76))

	for _, run := range runs {
		fmt.Fprintf(w, "  %-8s  %-19s  %6.2f  %-20s  %s\n",
			shortID(run.RunID),
			run.CreatedAt.Format("2006-01-02 15:04:05"),
			run.OverallScore,
			run.Assessment,
			run.SourcePath)
	}

	fmt.Fprintln(w, "\nUse 'pixelproof compare <run-id> <run-id>' to compare two scans.")
}

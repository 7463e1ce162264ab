// Package main provides the entry point for the pixelproof CLI.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// NewRootCmd creates the root command for pixelproof.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "pixelproof",
		Short: "Image forensics scanner for manipulation detection",
		Long: `pixelproof analyzes image files for traces of digital manipulation.

Every scan hashes the source file, acquires a verified working copy under
chain of custody, runs the forensic analyzers (metadata, error-level,
clone detection, noise, JPEG quality, luminance, edge, splicing), and
consolidates the findings into one weighted suspicion score.

Scans are archived so that 'history' and 'compare' can track how the
same content was assessed over time.`,
		Version:       getVersion(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Global flags that apply to all commands
	cmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose logging")

	// Add subcommands
	cmd.AddCommand(NewScanCmd())
	cmd.AddCommand(NewCompareCmd())
	cmd.AddCommand(NewHistoryCmd())
	cmd.AddCommand(NewInitCmd())
	cmd.AddCommand(NewVersionCmd())

	return cmd
}

// Execute runs the root command.
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

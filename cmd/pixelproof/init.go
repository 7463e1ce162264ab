package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/pixelproof/pixelproof/internal/config"
	"github.com/spf13/cobra"
)

// NewInitCmd creates the init command.
func NewInitCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a default pixelproof configuration file",
		Long: `Init creates a commented configuration file with every setting at its
default value.

The generated file documents:
- The analyzer enable set
- Evidence, scratch, and output directories
- Report format, thresholds, and the scan archive location

Examples:
  # Create .pixelproof in the current directory
  pixelproof init

  # Create the file at a specific path
  pixelproof init -o configs/pixelproof.yaml

  # Force overwrite an existing file
  pixelproof init -f`,
		RunE: runInitCmd,
	}

	cmd.Flags().StringP("output", "o", config.DefaultConfigFile,
		"Output file path for the configuration")
	cmd.Flags().BoolP("force", "f", false,
		"Overwrite an existing configuration file")

	return cmd
}

// runInitCmd executes the init command.
func runInitCmd(cmd *cobra.Command, _ []string) error {
	outputPath, err := cmd.Flags().GetString("output")
	if err != nil {
		return err
	}

	force, err := cmd.Flags().GetBool("force")
	if err != nil {
		return err
	}

	// Check if file already exists
	if force {
		if err := os.Remove(outputPath); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("failed to replace existing file: %w", err)
		}
	} else if _, err := os.Stat(outputPath); err == nil {
		return fmt.Errorf("configuration file already exists: %s (use -f to overwrite)", outputPath)
	}

	// Create parent directories if needed
	dir := filepath.Dir(outputPath)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
	}

	if err := config.WriteDefaultConfigFile(outputPath); err != nil {
		return fmt.Errorf("failed to write configuration file: %w", err)
	}

	fmt.Printf("Created configuration file: %s\n", outputPath)
	fmt.Println("\nEdit this file to adjust settings such as:")
	fmt.Println("  - Which analyzers run")
	fmt.Println("  - Evidence, scratch, and output directories")
	fmt.Println("  - Report format and the suspicious threshold")

	return nil
}

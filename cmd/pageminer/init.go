package main

import (
	"embed"
	"fmt"
	"os"
	"path/filepath"

	"github.com/SP963/pageminer/internal/config"
	"github.com/spf13/cobra"
)

//go:embed templates/pageminer.yaml
var configTemplate embed.FS

const templatePath = "templates/pageminer.yaml"

// NewInitCmd creates the init command.
func NewInitCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create a PageMiner site configuration file",
		Long: `Init writes a commented .pageminer configuration file to the current directory.

The file sets crawl defaults and per-site overrides: page cap, delay,
domain restriction, cookies, headers and URL path patterns.

Examples:
  # Create .pageminer in the current directory
  pageminer init

  # Create the file somewhere else
  pageminer init -o configs/crawl.yaml

  # Overwrite an existing file
  pageminer init -f`,
		Args: cobra.NoArgs,
		RunE: runInitCmd,
	}

	cmd.Flags().StringP("output", "o", config.DefaultConfigFile,
		"Output file path for the configuration")
	cmd.Flags().BoolP("force", "f", false,
		"Overwrite an existing configuration file")

	return cmd
}

func runInitCmd(cmd *cobra.Command, _ []string) error {
	outputPath, err := cmd.Flags().GetString("output")
	if err != nil {
		return err
	}
	force, err := cmd.Flags().GetBool("force")
	if err != nil {
		return err
	}

	if !force {
		if _, err := os.Stat(outputPath); err == nil {
			return fmt.Errorf("configuration file already exists: %s (use -f to overwrite)", outputPath)
		}
	}

	content, err := configTemplate.ReadFile(templatePath)
	if err != nil {
		return fmt.Errorf("failed to read config template: %w", err)
	}

	if dir := filepath.Dir(outputPath); dir != "." {
		if err := os.MkdirAll(dir, 0750); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
	}

	if err := os.WriteFile(outputPath, content, 0600); err != nil {
		return fmt.Errorf("failed to write configuration file: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Created configuration file: %s\n", outputPath)
	fmt.Fprintln(out, "\nEdit it to set per-site options such as:")
	fmt.Fprintln(out, "  - page cap and delay")
	fmt.Fprintln(out, "  - cookies and headers for authenticated pages")
	fmt.Fprintln(out, "  - URL patterns to ignore or follow")

	return nil
}

package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
)

// NewImportCommand creates the import command.
func NewImportCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import <file>",
		Short: "Import a dashboard document into a running server",
		Long: `Create a new dashboard from an export document. Files ending in .yaml or
.yml are sent as YAML, anything else as JSON. Widgets whose integration type
has no match on the server are skipped and reported as warnings.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runImport(cmd.Context(), rootOpts, args[0], cmd)
		},
	}
	return cmd
}

func runImport(ctx context.Context, opts *RootOptions, path string, cmd *cobra.Command) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read document: %w", err)
	}

	ext := strings.ToLower(filepath.Ext(path))
	result, err := opts.client().Import(ctx, data, ext == ".yaml" || ext == ".yml")
	if err != nil {
		return fmt.Errorf("import %s: %w", path, err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Imported dashboard %q (%s)\n", result.Dashboard.Name, result.Dashboard.ID)
	for _, w := range result.Warnings {
		fmt.Fprintf(cmd.ErrOrStderr(), "warning: %s\n", w)
	}
	return nil
}

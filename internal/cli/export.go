package cli

import (
	"context"
	"fmt"
	"os"
	"slices"

	"github.com/spf13/cobra"
)

// ValidExportFormats defines the document formats the server can produce.
var ValidExportFormats = []string{"json", "yaml"}

// ExportOptions holds flags for the export command.
type ExportOptions struct {
	*RootOptions
	Format string
	Output string
}

// NewExportCommand creates the export command.
func NewExportCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ExportOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "export [dashboard-id]",
		Short: "Export a dashboard document from a running server",
		Long: `Download a dashboard as a portable document. Without an id the default
dashboard is exported. The document is written to stdout unless --output
names a file.`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			var id string
			if len(args) > 0 {
				id = args[0]
			}
			return runExport(cmd.Context(), opts, id, cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.Output, "output", "o", "", "output file path")
	cmd.Flags().StringVarP(&opts.Format, "format", "f", "json", "document format (json|yaml)")

	return cmd
}

func runExport(ctx context.Context, opts *ExportOptions, id string, cmd *cobra.Command) error {
	if !slices.Contains(ValidExportFormats, opts.Format) {
		return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidExportFormats)
	}

	c := opts.client()
	if id == "" {
		d, err := c.DefaultDashboard(ctx)
		if err != nil {
			return fmt.Errorf("get default dashboard: %w", err)
		}
		id = d.ID
	}

	data, err := c.Export(ctx, id, opts.Format)
	if err != nil {
		return fmt.Errorf("export %s: %w", id, err)
	}

	if opts.Output == "" {
		_, err := cmd.OutOrStdout().Write(data)
		return err
	}
	if err := os.WriteFile(opts.Output, data, 0o644); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	fmt.Fprintf(cmd.ErrOrStderr(), "Exported %s to %s\n", id, opts.Output)
	return nil
}

package cli

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

// DashboardsOptions holds flags for the dashboards command.
type DashboardsOptions struct {
	*RootOptions
	JSON bool
}

// NewDashboardsCommand creates the dashboards command.
func NewDashboardsCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &DashboardsOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:           "dashboards",
		Short:         "List dashboards on a running server",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDashboards(cmd.Context(), opts, cmd)
		},
	}

	cmd.Flags().BoolVar(&opts.JSON, "json", false, "print the raw JSON list")

	return cmd
}

func runDashboards(ctx context.Context, opts *DashboardsOptions, cmd *cobra.Command) error {
	dashboards, err := opts.client().ListDashboards(ctx)
	if err != nil {
		return fmt.Errorf("list dashboards: %w", err)
	}

	out := cmd.OutOrStdout()
	if opts.JSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(dashboards)
	}

	tw := newTable(table.Row{"id", "name", "slug", "widgets", "groups", "default"})
	for _, d := range dashboards {
		slug := "-"
		if d.KioskSlug != nil {
			slug = *d.KioskSlug
		}
		def := ""
		if d.IsDefault {
			def = "*"
		}
		tw.AppendRow(table.Row{d.ID, d.Name, slug, d.WidgetCount, d.GroupCount, def})
	}
	_, err = fmt.Fprintln(out, tw.Render())
	return err
}

package cli

import (
	"github.com/jedib0t/go-pretty/v6/table"
)

// newTable returns a borderless-column table with the given header.
func newTable(header table.Row) table.Writer {
	tw := table.NewWriter()
	tw.SetStyle(table.StyleLight)
	tw.Style().Options.SeparateColumns = false
	tw.AppendHeader(header)
	return tw
}

package command

import (
	"io"

	"github.com/jedib0t/go-pretty/v6/table"
)

// NewTable returns a two column field/value table writing to w on Render.
func NewTable(w io.Writer, title string) table.Writer {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	if title != "" {
		t.SetTitle(title)
	}
	t.AppendHeader(table.Row{"Field", "Value"})

	return t
}

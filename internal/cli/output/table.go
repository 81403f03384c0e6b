package output

import (
	"io"

	"github.com/olekukonko/tablewriter"
)

// TableRenderer is implemented by types that can render themselves as a table.
type TableRenderer interface {
	Headers() []string
	Rows() [][]string
}

// PrintTable writes data as a borderless, left-aligned table.
func PrintTable(w io.Writer, data TableRenderer) error {
	table := tablewriter.NewWriter(w)
	table.SetHeader(data.Headers())

	table.SetAutoWrapText(false)
	table.SetAutoFormatHeaders(true)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetCenterSeparator("")
	table.SetColumnSeparator("")
	table.SetRowSeparator("")
	table.SetHeaderLine(false)
	table.SetBorder(false)
	table.SetTablePadding("  ")
	table.SetNoWhiteSpace(true)

	table.AppendBulk(data.Rows())
	table.Render()
	return nil
}

// KeyValues is a two-column table of settings or probe fields, in insertion
// order.
type KeyValues struct {
	pairs [][2]string
}

// Add appends one row.
func (kv *KeyValues) Add(key, value string) {
	kv.pairs = append(kv.pairs, [2]string{key, value})
}

// Headers implements TableRenderer.
func (kv *KeyValues) Headers() []string {
	return []string{"Key", "Value"}
}

// Rows implements TableRenderer.
func (kv *KeyValues) Rows() [][]string {
	rows := make([][]string, 0, len(kv.pairs))
	for _, p := range kv.pairs {
		rows = append(rows, []string{p[0], p[1]})
	}
	return rows
}

package orderstats

import (
	"errors"
	"fmt"
	"io"
	"strconv"

	"github.com/jedib0t/go-pretty/v6/table"
)

// ErrUnknownFormat is returned when an output format is not table or csv.
var ErrUnknownFormat = errors.New("unknown output format")

type format int

const (
	tableFormat format = iota
	csvFormat
)

func parseFormat(s string) (format, error) {
	switch s {
	case "table":
		return tableFormat, nil
	case "csv":
		return csvFormat, nil
	}
	return 0, fmt.Errorf("%q: %w", s, ErrUnknownFormat)
}

// render writes rows to w. When numbered is set, each row is prefixed with its 1-based index.
func render(w io.Writer, f format, title string, columns []string, rows [][]float64, numbered bool) error {
	tw := table.NewWriter()
	tw.SetStyle(table.StyleLight)

	header := make(table.Row, 0, len(columns)+1)
	if numbered {
		header = append(header, "n")
	}
	for _, column := range columns {
		header = append(header, column)
	}
	tw.AppendHeader(header)

	for i, values := range rows {
		row := make(table.Row, 0, len(values)+1)
		if numbered {
			row = append(row, i+1)
		}
		for _, x := range values {
			row = append(row, strconv.FormatFloat(x, 'g', -1, 64))
		}
		tw.AppendRow(row)
	}

	var out string
	switch f {
	case csvFormat:
		if title != "" {
			out = "# " + title + "\n"
		}
		out += tw.RenderCSV()
	default:
		if title != "" {
			tw.SetTitle("%s", title)
		}
		out = tw.Render()
	}
	_, err := io.WriteString(w, out+"\n")
	return err
}

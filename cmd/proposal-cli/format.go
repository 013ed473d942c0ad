package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/splitlease/proposals/client"
)

const (
	fmtJSON  = "json"
	fmtTable = "table"
	fmtQuiet = "quiet"
)

func formatJSON(v any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")

	if err := enc.Encode(v); err != nil {
		fmt.Fprintf(os.Stderr, "Error: encode json: %v\n", err)
		os.Exit(1)
	}
}

// table pads every column to its widest cell. Cells past the header count
// are printed unpadded.
type table struct {
	headers []string
	rows    [][]string
}

func (t *table) width(col int) int {
	w := len(t.headers[col])
	for _, row := range t.rows {
		if col < len(row) {
			w = max(w, len(row[col]))
		}
	}

	return w
}

func (t *table) write(out io.Writer) {
	widths := make([]int, len(t.headers))
	rule := make([]string, len(t.headers))
	for i := range t.headers {
		widths[i] = t.width(i)
		rule[i] = strings.Repeat("-", widths[i])
	}

	line := func(cells []string) {
		var b strings.Builder
		for i, cell := range cells {
			if i > 0 {
				b.WriteString("  ")
			}

			pad := 0
			if i < len(widths) {
				pad = widths[i]
			}
			fmt.Fprintf(&b, "%-*s", pad, cell)
		}
		fmt.Fprintln(out, b.String())
	}

	line(t.headers)
	line(rule)
	for _, row := range t.rows {
		line(row)
	}
}

func formatTable(headers []string, rows [][]string) {
	(&table{headers: headers, rows: rows}).write(os.Stdout)
}

// output prints v as JSON, or just quietVal in quiet mode. Callers that have
// a row layout handle the table format themselves.
func output(v any, quietVal string) {
	if flagFmt == fmtQuiet {
		fmt.Println(quietVal)
		return
	}

	formatJSON(v)
}

var proposalHeaders = []string{"ID", "STATUS", "REV", "GUEST", "HOST", "TOTAL", "MODIFIED"}

func proposalRow(p *client.Proposal) []string {
	var status strings.Builder
	status.WriteString(p.Status)
	if p.IsFinalized {
		status.WriteString(" (locked)")
	}
	if p.Deleted {
		status.WriteString(" (deleted)")
	}

	return []string{
		p.ID,
		status.String(),
		strconv.FormatInt(p.Revision, 10),
		p.GuestID,
		p.HostID,
		p.Terms.TotalPrice.StringFixed(2),
		p.ModifiedAt.Format("2006-01-02 15:04"),
	}
}

func outputProposal(p *client.Proposal) {
	if flagFmt == fmtTable {
		formatTable(proposalHeaders, [][]string{proposalRow(p)})
		return
	}

	output(p, p.ID)
}

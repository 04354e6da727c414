// Package output renders run summaries for humans and correlated tables for
// machines.
package output

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
)

var (
	successColor = color.New(color.FgGreen, color.Bold)
	errorColor   = color.New(color.FgRed, color.Bold)
	infoColor    = color.New(color.FgCyan)
	warnColor    = color.New(color.FgYellow)
	headerColor  = color.New(color.FgWhite, color.Bold)
)

// Printer writes colored status lines. Colors are dropped automatically when
// the terminal does not support them.
type Printer struct {
	w io.Writer
}

func NewPrinter(w io.Writer) *Printer {
	return &Printer{w: w}
}

func (p *Printer) Success(format string, a ...any) {
	successColor.Fprintf(p.w, "✓ "+format+"\n", a...)
}

func (p *Printer) Error(format string, a ...any) {
	errorColor.Fprintf(p.w, "✗ "+format+"\n", a...)
}

func (p *Printer) Info(format string, a ...any) {
	infoColor.Fprintf(p.w, format+"\n", a...)
}

func (p *Printer) Warn(format string, a ...any) {
	warnColor.Fprintf(p.w, "⚠ "+format+"\n", a...)
}

// Grid is a fixed-width text table.
type Grid struct {
	headers []string
	rows    [][]string
}

func NewGrid(headers []string) *Grid {
	return &Grid{
		headers: headers,
		rows:    [][]string{},
	}
}

func (g *Grid) AddRow(row []string) {
	g.rows = append(g.rows, row)
}

// Render writes the grid to w with columns padded to their widest cell.
func (g *Grid) Render(w io.Writer) {
	widths := make([]int, len(g.headers))
	for i, header := range g.headers {
		widths[i] = len(header)
	}
	for _, row := range g.rows {
		for i, cell := range row {
			if i < len(widths) && len(cell) > widths[i] {
				widths[i] = len(cell)
			}
		}
	}

	for i, header := range g.headers {
		headerColor.Fprintf(w, "%-*s  ", widths[i], header)
	}
	fmt.Fprintln(w)

	for i := range g.headers {
		fmt.Fprint(w, strings.Repeat("-", widths[i])+"  ")
	}
	fmt.Fprintln(w)

	for _, row := range g.rows {
		for i, cell := range row {
			if i >= len(widths) {
				break
			}
			fmt.Fprintf(w, "%-*s  ", widths[i], cell)
		}
		fmt.Fprintln(w)
	}
}

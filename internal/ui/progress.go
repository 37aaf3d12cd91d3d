// Package ui renders terminal progress for fills.
package ui

import (
	"fmt"
	"io"
	"os"

	"github.com/schollz/progressbar/v3"

	"github.com/sells-group/exa-sheets/internal/grid"
)

// CellBar is a progress bar counting resolved cells. It satisfies
// session.Progress. A disabled bar accepts every call and prints nothing.
type CellBar struct {
	bar         *progressbar.ProgressBar
	output      io.Writer
	label       string
	disabled    bool
	written     int
	unavailable int
}

// NewCellBar creates a bar that writes to stderr.
func NewCellBar(disabled bool) *CellBar {
	return NewCellBarWithOutput(os.Stderr, disabled)
}

// NewCellBarWithOutput creates a bar with custom output.
func NewCellBarWithOutput(output io.Writer, disabled bool) *CellBar {
	return &CellBar{output: output, disabled: disabled}
}

// Start begins a new bar for total cells.
func (b *CellBar) Start(label string, total int) {
	b.written = 0
	b.unavailable = 0
	b.label = fmt.Sprintf("[%s]", label)
	if b.disabled {
		return
	}
	b.bar = progressbar.NewOptions(total,
		progressbar.OptionSetWriter(b.output),
		progressbar.OptionSetDescription(b.label),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "█",
			SaucerHead:    "█",
			SaucerPadding: "░",
			BarStart:      "[",
			BarEnd:        "]",
		}),
		progressbar.OptionShowCount(),
		progressbar.OptionSetItsString("cells"),
		progressbar.OptionShowIts(),
		progressbar.OptionSetWidth(40),
		progressbar.OptionSetPredictTime(true),
		progressbar.OptionOnCompletion(func() {
			_, _ = fmt.Fprintln(b.output)
		}),
	)
}

// Advance counts one written cell.
func (b *CellBar) Advance(c grid.Cell) {
	b.written++
	if c.Value == grid.Unavailable {
		b.unavailable++
	}
	if b.bar == nil {
		return
	}
	if c.Value == grid.Unavailable {
		b.bar.Describe(fmt.Sprintf("%s (%d NA)", b.label, b.unavailable))
	}
	_ = b.bar.Add(1)
}

// Done finishes the current bar.
func (b *CellBar) Done() {
	if b.bar == nil {
		return
	}
	_ = b.bar.Finish()
	b.bar = nil
}

// Written reports how many cells the current or last bar counted.
func (b *CellBar) Written() int {
	return b.written
}

// Unavailable reports how many NA cells the current or last bar counted.
func (b *CellBar) Unavailable() int {
	return b.unavailable
}

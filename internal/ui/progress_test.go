package ui

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/sells-group/exa-sheets/internal/grid"
)

func TestCellBar_Output(t *testing.T) {
	var buf bytes.Buffer
	b := NewCellBarWithOutput(&buf, false)

	b.Start("sample", 3)
	b.Advance(grid.Cell{Row: 0, Attribute: "CEO", Value: "Tim Cook"})
	b.Advance(grid.Cell{Row: 1, Attribute: "CEO", Value: grid.Unavailable})
	b.Advance(grid.Cell{Row: 2, Attribute: "CEO", Value: "Jensen Huang"})
	b.Done()

	assert.Contains(t, buf.String(), "[sample]")
	assert.Equal(t, 3, b.Written())
	assert.Equal(t, 1, b.Unavailable())
}

func TestCellBar_Disabled(t *testing.T) {
	var buf bytes.Buffer
	b := NewCellBarWithOutput(&buf, true)

	b.Start("remaining", 2)
	b.Advance(grid.Cell{Value: grid.Unavailable})
	b.Advance(grid.Cell{Value: "x"})
	b.Done()

	assert.Empty(t, buf.String())
	assert.Equal(t, 1, b.Unavailable())
}

func TestCellBar_RestartResetsCount(t *testing.T) {
	b := NewCellBarWithOutput(&bytes.Buffer{}, true)
	b.Start("a", 1)
	b.Advance(grid.Cell{Value: grid.Unavailable})
	b.Start("b", 1)
	assert.Zero(t, b.Written())
	assert.Zero(t, b.Unavailable())

	// Done without Start is harmless.
	NewCellBarWithOutput(&bytes.Buffer{}, false).Done()
}

package main

import (
	"bytes"
	"context"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/exa-sheets/internal/config"
	"github.com/sells-group/exa-sheets/internal/grid"
	"github.com/sells-group/exa-sheets/internal/session"
	"github.com/sells-group/exa-sheets/internal/store"
)

func testGrid(t *testing.T) *grid.Grid {
	t.Helper()
	g, err := grid.FromRecords([][]string{
		{"Company", "CEO", "HQ"},
		{"Nvidia", "", ""},
		{"AMD", "", ""},
	})
	require.NoError(t, err)
	return g
}

func TestPopulateResult(t *testing.T) {
	out := testGrid(t)
	writeErr := eris.New("sheetio: write xlsx: permission denied")

	tests := []struct {
		name      string
		out       *grid.Grid
		err       error
		wantWrote bool
		wantErr   string
		wantOut   string
	}{
		{
			name:      "success",
			out:       out,
			wantWrote: true,
			wantOut:   "wrote 2 rows to out.xlsx (1 NA cells)\n",
		},
		{
			name:      "interrupted fill",
			out:       out,
			err:       eris.Wrap(context.Canceled, "fill: interrupted"),
			wantWrote: true,
			wantErr:   "partial output kept",
			wantOut:   "wrote 2 rows",
		},
		{
			name:      "deadline",
			out:       out,
			err:       eris.Wrap(context.DeadlineExceeded, "fill: interrupted"),
			wantWrote: true,
			wantErr:   "partial output kept",
			wantOut:   "wrote 2 rows",
		},
		{
			name:    "write failure after interrupt",
			out:     out,
			err:     writeErr,
			wantErr: "permission denied",
		},
		{
			name:    "read failure",
			err:     eris.New("sheetio: open in.csv: no such file"),
			wantErr: "no such file",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			wrote, err := populateResult(&buf, tt.out, "out.xlsx", 1, tt.err)
			assert.Equal(t, tt.wantWrote, wrote)
			if tt.wantErr == "" {
				assert.NoError(t, err)
			} else {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
			}
			if tt.wantOut == "" {
				assert.Empty(t, buf.String())
			} else {
				assert.Contains(t, buf.String(), tt.wantOut)
			}
			if !tt.wantWrote {
				assert.NotContains(t, buf.String(), "partial")
				assert.Equal(t, tt.err, err)
			}
		})
	}
}

func TestFillReport_PricesWrittenCells(t *testing.T) {
	oldCfg := cfg
	defer func() { cfg = oldCfg }()
	cfg = &config.Config{
		Answer:  config.AnswerConfig{Provider: "exa"},
		Pricing: config.PricingConfig{ExaPerQuery: 1},
	}

	in := testGrid(t)
	res := &session.Result{
		Session: &store.Session{Input: in, Output: grid.NewOutput(in)},
		Rows:    in.Indices(),
	}

	// Two rows of two data points were requested but the fill stopped after three cells.
	var buf bytes.Buffer
	fillReport(&buf, res, 3, 1)
	assert.Equal(t, "Filled 2 rows (3 cells, 1 NA, estimated spend $3.0000), 2 rows still pending.\n", buf.String())
}

package main

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/rotisserie/eris"

	"github.com/sells-group/exa-sheets/internal/grid"
	"github.com/sells-group/exa-sheets/internal/session"
)

// populateResult reports the outcome of fill.PopulateSheet. Only an
// interrupted fill leaves a written partial sheet behind; read and write
// failures return err unchanged and report nothing.
func populateResult(w io.Writer, out *grid.Grid, path string, unavailable int, err error) (bool, error) {
	interrupted := errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
	if out == nil || (err != nil && !interrupted) {
		return false, err
	}

	_, _ = fmt.Fprintf(w, "wrote %d rows to %s (%d NA cells)\n", out.Len(), path, unavailable)
	if interrupted {
		return true, eris.Wrap(err, "populate interrupted, partial output kept")
	}
	return true, nil
}

// fillReport summarizes a session fill. Spend is priced on the cells the
// bar saw written, so an interrupted fill is not charged for skipped cells.
func fillReport(w io.Writer, res *session.Result, written, unavailable int) {
	pending := len(res.Session.Output.Pending())
	_, _ = fmt.Fprintf(w, "Filled %d rows (%d cells, %d NA, estimated spend $%.4f), %d rows still pending.\n",
		len(res.Rows), written, unavailable, estimateSpend(written), pending)
}

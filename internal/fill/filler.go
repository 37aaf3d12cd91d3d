// Package fill resolves spreadsheet cells through an answer provider and
// writes them into an output grid, one independent question per cell.
package fill

import (
	"context"
	"sync"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/exa-sheets/internal/grid"
)

// CellResolver produces the value for one (entity, attribute) pair. It never
// fails; unavailable data is reported as grid.Unavailable.
type CellResolver interface {
	Resolve(ctx context.Context, entity, attribute string) string
}

// Filler fills selected rows of an output grid from an input grid.
type Filler struct {
	resolver    CellResolver
	concurrency int
	onCell      func(grid.Cell)
	log         *zap.Logger
}

// Option configures a Filler.
type Option func(*Filler)

// WithConcurrency allows up to n resolver calls in flight. 1 (the default)
// resolves strictly in order.
func WithConcurrency(n int) Option {
	return func(f *Filler) {
		if n > 0 {
			f.concurrency = n
		}
	}
}

// WithCellHook registers fn to run after each cell is written. Calls are
// serialized, even when concurrency is above 1.
func WithCellHook(fn func(grid.Cell)) Option {
	return func(f *Filler) {
		f.onCell = fn
	}
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(f *Filler) {
		if l != nil {
			f.log = l
		}
	}
}

// NewFiller creates a Filler.
func NewFiller(r CellResolver, opts ...Option) *Filler {
	f := &Filler{
		resolver:    r,
		concurrency: 1,
		log:         zap.L(),
	}
	for _, o := range opts {
		o(f)
	}
	return f
}

// With returns a copy of f with extra options applied.
func (f *Filler) With(opts ...Option) *Filler {
	cp := *f
	for _, o := range opts {
		o(&cp)
	}
	return &cp
}

type job struct {
	row       int
	entity    string
	attribute string
}

// FillRows resolves every attribute cell of the listed rows of in and
// writes the results into out, which it returns. Indices missing from in
// are skipped. An input grid without rows or without attribute columns is
// a no-op.
//
// The returned error is non-nil only when ctx ends before every cell was
// resolved. Cells not reached stay unwritten so a later call can resume.
func (f *Filler) FillRows(ctx context.Context, out, in *grid.Grid, indices []int) (*grid.Grid, error) {
	if in.Len() == 0 || in.Columns() < 2 {
		return out, nil
	}

	attrs := in.Attributes()
	jobs := make([]job, 0, len(indices)*len(attrs))
	for _, idx := range indices {
		entity, ok := in.Entity(idx)
		if !ok {
			continue
		}
		if !out.Has(idx) {
			f.log.Warn("fill: output grid has no row for input index", zap.Int("row", idx))
			continue
		}
		for _, attr := range attrs {
			jobs = append(jobs, job{row: idx, entity: entity, attribute: attr})
		}
	}
	if len(jobs) == 0 {
		return out, nil
	}

	f.log.Info("fill: starting",
		zap.Int("rows", len(jobs)/len(attrs)),
		zap.Int("cells", len(jobs)),
		zap.Int("concurrency", f.concurrency),
	)

	var mu sync.Mutex
	var written, unavailable int
	write := func(j job) {
		value := f.resolver.Resolve(ctx, j.entity, j.attribute)
		// A failure caused by cancellation is not an answer; leave the cell
		// unwritten so it is retried on resume.
		if value == grid.Unavailable && ctx.Err() != nil {
			return
		}

		mu.Lock()
		defer mu.Unlock()
		if err := out.Set(j.row, j.attribute, value); err != nil {
			f.log.Error("fill: write cell", zap.Int("row", j.row), zap.String("attribute", j.attribute), zap.Error(err))
			return
		}
		written++
		if value == grid.Unavailable {
			unavailable++
		}
		if f.onCell != nil {
			f.onCell(grid.Cell{Row: j.row, Attribute: j.attribute, Value: value})
		}
	}

	if f.concurrency <= 1 {
		for _, j := range jobs {
			if ctx.Err() != nil {
				break
			}
			write(j)
		}
	} else {
		var g errgroup.Group
		g.SetLimit(f.concurrency)
		for _, j := range jobs {
			if ctx.Err() != nil {
				break
			}
			g.Go(func() error {
				write(j)
				return nil
			})
		}
		_ = g.Wait()
	}

	f.log.Info("fill: complete",
		zap.Int("cells_written", written),
		zap.Int("unavailable", unavailable),
		zap.Int("cells_skipped", len(jobs)-written),
	)

	if err := ctx.Err(); err != nil && written < len(jobs) {
		return out, eris.Wrap(err, "fill: interrupted")
	}
	return out, nil
}

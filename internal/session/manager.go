// Package session drives the staged fill workflow: start from an input
// sheet, fill a small sample, then fill the remaining rows and export.
// Every written cell is persisted as it is produced, so an interrupted fill
// resumes where it stopped.
package session

import (
	"context"
	"sync"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/exa-sheets/internal/fill"
	"github.com/sells-group/exa-sheets/internal/grid"
	"github.com/sells-group/exa-sheets/internal/store"
)

// DefaultSampleRows is the sample size used when none is given.
const DefaultSampleRows = 5

// Progress observes a fill. Start is called once with the number of cells
// about to be resolved, Advance after each written cell and Done at the end.
type Progress interface {
	Start(label string, total int)
	Advance(cell grid.Cell)
	Done()
}

// Result describes one fill call.
type Result struct {
	Session *store.Session `json:"-"`
	// Rows are the indices that were requested and exist in the input.
	Rows []int `json:"rows"`
	// Preview renders the header and the requested rows of the output.
	Preview [][]string `json:"preview"`
}

// Manager runs fills against stored sessions.
type Manager struct {
	store      store.Store
	filler     *fill.Filler
	sampleRows int
	progress   Progress
	log        *zap.Logger

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// Option configures a Manager.
type Option func(*Manager)

// WithSampleRows sets the default sample size.
func WithSampleRows(n int) Option {
	return func(m *Manager) {
		if n > 0 {
			m.sampleRows = n
		}
	}
}

// WithProgress attaches a progress observer to every fill.
func WithProgress(p Progress) Option {
	return func(m *Manager) {
		m.progress = p
	}
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(m *Manager) {
		if l != nil {
			m.log = l
		}
	}
}

// NewManager creates a Manager.
func NewManager(st store.Store, f *fill.Filler, opts ...Option) *Manager {
	m := &Manager{
		store:      st,
		filler:     f,
		sampleRows: DefaultSampleRows,
		log:        zap.L(),
		locks:      make(map[string]*sync.Mutex),
	}
	for _, o := range opts {
		o(m)
	}
	return m
}

// lock serializes fills and resets of one session.
func (m *Manager) lock(id string) func() {
	m.mu.Lock()
	l, ok := m.locks[id]
	if !ok {
		l = &sync.Mutex{}
		m.locks[id] = l
	}
	m.mu.Unlock()
	l.Lock()
	return l.Unlock
}

// Start stores a new session for input. The output grid starts empty.
func (m *Manager) Start(ctx context.Context, name string, input *grid.Grid) (*store.Session, error) {
	s, err := m.store.CreateSession(ctx, name, input)
	if err != nil {
		return nil, eris.Wrap(err, "session: start")
	}
	m.log.Info("session: started",
		zap.String("session", s.ID),
		zap.String("name", name),
		zap.Int("rows", input.Len()),
		zap.Int("attributes", len(input.Attributes())),
	)
	return s, nil
}

// Get loads a session.
func (m *Manager) Get(ctx context.Context, id string) (*store.Session, error) {
	return m.store.GetSession(ctx, id)
}

// List returns session summaries.
func (m *Manager) List(ctx context.Context, filter store.SessionFilter) ([]store.Summary, error) {
	return m.store.ListSessions(ctx, filter)
}

// FillSample fills the first n rows and records them as the last sample.
// n <= 0 uses the configured sample size. Sampling again refetches those
// rows.
func (m *Manager) FillSample(ctx context.Context, id string, n int) (*Result, error) {
	if n <= 0 {
		n = m.sampleRows
	}
	unlock := m.lock(id)
	defer unlock()

	s, err := m.store.GetSession(ctx, id)
	if err != nil {
		return nil, err
	}
	indices := s.Input.Head(n)
	if err := m.store.SetLastSample(ctx, id, indices); err != nil {
		return nil, eris.Wrap(err, "session: record sample")
	}
	s.LastSample = indices
	return m.fill(ctx, s, indices, "sample")
}

// FillRemaining fills every row that is not yet completely filled. Rows
// already filled are never refetched.
func (m *Manager) FillRemaining(ctx context.Context, id string) (*Result, error) {
	unlock := m.lock(id)
	defer unlock()

	s, err := m.store.GetSession(ctx, id)
	if err != nil {
		return nil, err
	}
	return m.fill(ctx, s, s.Output.Pending(), "remaining")
}

// FillRows fills an explicit set of row indices. Unknown indices are
// skipped.
func (m *Manager) FillRows(ctx context.Context, id string, indices []int) (*Result, error) {
	unlock := m.lock(id)
	defer unlock()

	s, err := m.store.GetSession(ctx, id)
	if err != nil {
		return nil, err
	}
	return m.fill(ctx, s, indices, "rows")
}

// Reset clears every output cell so the session can be filled from
// scratch.
func (m *Manager) Reset(ctx context.Context, id string) error {
	unlock := m.lock(id)
	defer unlock()

	if err := m.store.ClearCells(ctx, id); err != nil {
		return err
	}
	m.log.Info("session: reset", zap.String("session", id))
	return nil
}

// Delete removes a session.
func (m *Manager) Delete(ctx context.Context, id string) error {
	unlock := m.lock(id)
	defer unlock()

	if err := m.store.DeleteSession(ctx, id); err != nil {
		return err
	}
	m.mu.Lock()
	delete(m.locks, id)
	m.mu.Unlock()
	m.log.Info("session: deleted", zap.String("session", id))
	return nil
}

func (m *Manager) fill(ctx context.Context, s *store.Session, indices []int, label string) (*Result, error) {
	rows := make([]int, 0, len(indices))
	for _, idx := range indices {
		if s.Input.Has(idx) {
			rows = append(rows, idx)
		}
	}
	log := m.log.With(zap.String("session", s.ID), zap.String("stage", label))

	// Cells are saved even after ctx ends so work already paid for is kept.
	saveCtx := context.WithoutCancel(ctx)
	var saveErr error
	hook := func(c grid.Cell) {
		if err := m.store.SaveCell(saveCtx, s.ID, c); err != nil {
			log.Error("session: persist cell", zap.Int("row", c.Row), zap.String("attribute", c.Attribute), zap.Error(err))
			if saveErr == nil {
				saveErr = err
			}
		}
		if m.progress != nil {
			m.progress.Advance(c)
		}
	}

	if m.progress != nil {
		m.progress.Start(label, len(rows)*len(s.Input.Attributes()))
		defer m.progress.Done()
	}

	_, fillErr := m.filler.With(fill.WithCellHook(hook), fill.WithLogger(log)).FillRows(ctx, s.Output, s.Input, rows)

	res := &Result{
		Session: s,
		Rows:    rows,
		Preview: s.Output.SubsetRecords(rows),
	}
	if saveErr != nil {
		return res, eris.Wrap(saveErr, "session: persist cells")
	}
	if fillErr != nil {
		return res, fillErr
	}
	return res, nil
}

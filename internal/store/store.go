// Package store persists fill sessions: the input sheet, the output cells
// written so far and the last sample selection.
package store

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/exa-sheets/internal/grid"
)

// ErrNotFound is returned when a session id does not exist.
var ErrNotFound = eris.New("store: session not found")

// Session is a stored fill session with its grids rebuilt.
type Session struct {
	ID         string
	Name       string
	Input      *grid.Grid
	Output     *grid.Grid
	LastSample []int
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Summary is the list view of a session.
type Summary struct {
	ID         string    `json:"id" yaml:"id"`
	Name       string    `json:"name" yaml:"name"`
	Rows       int       `json:"rows" yaml:"rows"`
	Attributes int       `json:"attributes" yaml:"attributes"`
	Cells      int       `json:"cells_filled" yaml:"cells_filled"`
	CreatedAt  time.Time `json:"created_at" yaml:"created_at"`
	UpdatedAt  time.Time `json:"updated_at" yaml:"updated_at"`
}

// Complete reports whether every cell of the session has been written.
func (s Summary) Complete() bool {
	return s.Cells >= s.Rows*s.Attributes
}

// SessionFilter narrows ListSessions.
type SessionFilter struct {
	Name   string `json:"name,omitempty"`
	Limit  int    `json:"limit,omitempty"`
	Offset int    `json:"offset,omitempty"`
}

// Store defines session persistence.
type Store interface {
	CreateSession(ctx context.Context, name string, input *grid.Grid) (*Session, error)
	GetSession(ctx context.Context, id string) (*Session, error)
	ListSessions(ctx context.Context, filter SessionFilter) ([]Summary, error)
	SaveCell(ctx context.Context, id string, cell grid.Cell) error
	SetLastSample(ctx context.Context, id string, indices []int) error
	ClearCells(ctx context.Context, id string) error
	DeleteSession(ctx context.Context, id string) error

	Migrate(ctx context.Context) error
	Close() error
}

const defaultListLimit = 100

type storedRow struct {
	idx    int
	entity string
}

// restore rebuilds the input and output grids from stored parts.
func restore(s *Session, headerJSON []byte, rows []storedRow, cells []grid.Cell, sampleJSON []byte) error {
	var header []string
	if err := json.Unmarshal(headerJSON, &header); err != nil {
		return eris.Wrap(err, "store: unmarshal header")
	}
	in, err := grid.New(header)
	if err != nil {
		return eris.Wrap(err, "store: rebuild input")
	}
	for _, r := range rows {
		if err := in.InsertRow(r.idx, r.entity); err != nil {
			return eris.Wrap(err, "store: rebuild input")
		}
	}

	out := grid.NewOutput(in)
	for _, c := range cells {
		if err := out.Set(c.Row, c.Attribute, c.Value); err != nil {
			return eris.Wrap(err, "store: rebuild output")
		}
	}

	if len(sampleJSON) > 0 {
		if err := json.Unmarshal(sampleJSON, &s.LastSample); err != nil {
			return eris.Wrap(err, "store: unmarshal last sample")
		}
	}

	s.Input = in
	s.Output = out
	return nil
}

func inputRows(input *grid.Grid) []storedRow {
	idx := input.Indices()
	rows := make([]storedRow, 0, len(idx))
	for _, i := range idx {
		e, _ := input.Entity(i)
		rows = append(rows, storedRow{idx: i, entity: e})
	}
	return rows
}

func marshalSample(indices []int) ([]byte, error) {
	if indices == nil {
		indices = []int{}
	}
	b, err := json.Marshal(indices)
	return b, eris.Wrap(err, "store: marshal sample")
}

func notFound(id string) error {
	return eris.Wrapf(ErrNotFound, "session %s", id)
}

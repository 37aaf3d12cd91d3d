package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/exa-sheets/internal/grid"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	// Pragmas are per connection; a single connection keeps them in force.
	db.SetMaxOpenConns(1)
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close() //nolint:errcheck
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS sessions (
	id          TEXT PRIMARY KEY,
	name        TEXT NOT NULL,
	header      TEXT NOT NULL,
	attributes  INTEGER NOT NULL,
	last_sample TEXT,
	created_at  DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at  DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS session_rows (
	session_id TEXT NOT NULL REFERENCES sessions(id) ON DELETE CASCADE,
	idx        INTEGER NOT NULL,
	entity     TEXT NOT NULL,
	PRIMARY KEY (session_id, idx)
);

CREATE TABLE IF NOT EXISTS session_cells (
	session_id TEXT NOT NULL REFERENCES sessions(id) ON DELETE CASCADE,
	idx        INTEGER NOT NULL,
	attribute  TEXT NOT NULL,
	value      TEXT NOT NULL,
	written_at DATETIME NOT NULL DEFAULT (datetime('now')),
	PRIMARY KEY (session_id, idx, attribute)
);

CREATE INDEX IF NOT EXISTS idx_sessions_name ON sessions(name);
CREATE INDEX IF NOT EXISTS idx_sessions_created_at ON sessions(created_at);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) CreateSession(ctx context.Context, name string, input *grid.Grid) (*Session, error) {
	id := uuid.New().String()
	now := time.Now().UTC()

	headerJSON, err := json.Marshal(input.Header())
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: marshal header")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: begin")
	}
	defer tx.Rollback() //nolint:errcheck

	_, err = tx.ExecContext(ctx,
		`INSERT INTO sessions (id, name, header, attributes, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?)`,
		id, name, string(headerJSON), len(input.Attributes()), now, now,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: insert session")
	}

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO session_rows (session_id, idx, entity) VALUES (?, ?, ?)`)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: prepare row insert")
	}
	defer stmt.Close() //nolint:errcheck
	for _, r := range inputRows(input) {
		if _, err := stmt.ExecContext(ctx, id, r.idx, r.entity); err != nil {
			return nil, eris.Wrapf(err, "sqlite: insert row %d", r.idx)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, eris.Wrap(err, "sqlite: commit session")
	}

	return &Session{
		ID:        id,
		Name:      name,
		Input:     input,
		Output:    grid.NewOutput(input),
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

func (s *SQLiteStore) GetSession(ctx context.Context, id string) (*Session, error) {
	sess := &Session{}
	var headerJSON string
	var sampleJSON sql.NullString

	err := s.db.QueryRowContext(ctx,
		`SELECT id, name, header, last_sample, created_at, updated_at FROM sessions WHERE id = ?`,
		id,
	).Scan(&sess.ID, &sess.Name, &headerJSON, &sampleJSON, &sess.CreatedAt, &sess.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFound(id)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get session %s", id)
	}

	rows, err := s.sessionRows(ctx, id)
	if err != nil {
		return nil, err
	}
	cells, err := s.sessionCells(ctx, id)
	if err != nil {
		return nil, err
	}

	var sample []byte
	if sampleJSON.Valid {
		sample = []byte(sampleJSON.String)
	}
	if err := restore(sess, []byte(headerJSON), rows, cells, sample); err != nil {
		return nil, err
	}
	return sess, nil
}

func (s *SQLiteStore) sessionRows(ctx context.Context, id string) ([]storedRow, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT idx, entity FROM session_rows WHERE session_id = ? ORDER BY idx`, id)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: query rows")
	}
	defer rows.Close() //nolint:errcheck

	var out []storedRow
	for rows.Next() {
		var r storedRow
		if err := rows.Scan(&r.idx, &r.entity); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan row")
		}
		out = append(out, r)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: rows iterate")
}

func (s *SQLiteStore) sessionCells(ctx context.Context, id string) ([]grid.Cell, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT idx, attribute, value FROM session_cells WHERE session_id = ?`, id)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: query cells")
	}
	defer rows.Close() //nolint:errcheck

	var out []grid.Cell
	for rows.Next() {
		var c grid.Cell
		if err := rows.Scan(&c.Row, &c.Attribute, &c.Value); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan cell")
		}
		out = append(out, c)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: cells iterate")
}

func (s *SQLiteStore) ListSessions(ctx context.Context, filter SessionFilter) ([]Summary, error) {
	query := `SELECT s.id, s.name, s.attributes, s.created_at, s.updated_at,
		(SELECT COUNT(*) FROM session_rows r WHERE r.session_id = s.id),
		(SELECT COUNT(*) FROM session_cells c WHERE c.session_id = s.id)
		FROM sessions s WHERE 1=1`
	var args []any

	if filter.Name != "" {
		query += ` AND s.name = ?`
		args = append(args, filter.Name)
	}
	query += ` ORDER BY s.created_at DESC, s.id`

	limit := filter.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}
	query += ` LIMIT ?`
	args = append(args, limit)

	if filter.Offset > 0 {
		query += ` OFFSET ?`
		args = append(args, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list sessions")
	}
	defer rows.Close() //nolint:errcheck

	var out []Summary
	for rows.Next() {
		var sum Summary
		if err := rows.Scan(&sum.ID, &sum.Name, &sum.Attributes, &sum.CreatedAt, &sum.UpdatedAt, &sum.Rows, &sum.Cells); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan session")
		}
		out = append(out, sum)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: list sessions iterate")
}

func (s *SQLiteStore) SaveCell(ctx context.Context, id string, cell grid.Cell) error {
	now := time.Now().UTC()
	if err := s.touch(ctx, id, now); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO session_cells (session_id, idx, attribute, value, written_at) VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT (session_id, idx, attribute) DO UPDATE SET value = excluded.value, written_at = excluded.written_at`,
		id, cell.Row, cell.Attribute, cell.Value, now,
	)
	return eris.Wrapf(err, "sqlite: save cell %d/%s", cell.Row, cell.Attribute)
}

func (s *SQLiteStore) SetLastSample(ctx context.Context, id string, indices []int) error {
	sample, err := marshalSample(indices)
	if err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE sessions SET last_sample = ?, updated_at = ? WHERE id = ?`,
		string(sample), time.Now().UTC(), id,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: set last sample %s", id)
	}
	return checkRowsAffected(res, id)
}

func (s *SQLiteStore) ClearCells(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE sessions SET last_sample = NULL, updated_at = ? WHERE id = ?`,
		time.Now().UTC(), id,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: reset session %s", id)
	}
	if err := checkRowsAffected(res, id); err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `DELETE FROM session_cells WHERE session_id = ?`, id)
	return eris.Wrapf(err, "sqlite: clear cells %s", id)
}

func (s *SQLiteStore) DeleteSession(ctx context.Context, id string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin")
	}
	defer tx.Rollback() //nolint:errcheck

	for _, q := range []string{
		`DELETE FROM session_cells WHERE session_id = ?`,
		`DELETE FROM session_rows WHERE session_id = ?`,
	} {
		if _, err := tx.ExecContext(ctx, q, id); err != nil {
			return eris.Wrapf(err, "sqlite: delete session %s", id)
		}
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM sessions WHERE id = ?`, id)
	if err != nil {
		return eris.Wrapf(err, "sqlite: delete session %s", id)
	}
	if err := checkRowsAffected(res, id); err != nil {
		return err
	}
	return eris.Wrap(tx.Commit(), "sqlite: commit delete")
}

func (s *SQLiteStore) touch(ctx context.Context, id string, now time.Time) error {
	res, err := s.db.ExecContext(ctx, `UPDATE sessions SET updated_at = ? WHERE id = ?`, now, id)
	if err != nil {
		return eris.Wrapf(err, "sqlite: touch session %s", id)
	}
	return checkRowsAffected(res, id)
}

func checkRowsAffected(res sql.Result, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "rows affected")
	}
	if n == 0 {
		return notFound(id)
	}
	return nil
}

package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/exa-sheets/internal/db"
	"github.com/sells-group/exa-sheets/internal/grid"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(1)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS sessions (
	id          TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	name        TEXT NOT NULL,
	header      JSONB NOT NULL,
	attributes  INTEGER NOT NULL,
	last_sample JSONB,
	created_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at  TIMESTAMPTZ NOT NULL DEFAULT now()
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
	written_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (session_id, idx, attribute)
);

CREATE INDEX IF NOT EXISTS idx_sessions_name ON sessions(name);
CREATE INDEX IF NOT EXISTS idx_sessions_created_at ON sessions(created_at DESC);
`

func (s *PostgresStore) Ping(ctx context.Context) error {
	return eris.Wrap(s.pool.Ping(ctx), "postgres: ping")
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

// inTx runs fn in a transaction, rolling back when fn fails.
func (s *PostgresStore) inTx(ctx context.Context, fn func(pgx.Tx) error) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return eris.Wrap(err, "postgres: begin")
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback(ctx)
		return err
	}
	return eris.Wrap(tx.Commit(ctx), "postgres: commit")
}

func (s *PostgresStore) CreateSession(ctx context.Context, name string, input *grid.Grid) (*Session, error) {
	id := uuid.New().String()
	now := time.Now().UTC()

	headerJSON, err := json.Marshal(input.Header())
	if err != nil {
		return nil, eris.Wrap(err, "postgres: marshal header")
	}

	stored := inputRows(input)
	rows := make([][]any, len(stored))
	for i, r := range stored {
		rows[i] = []any{id, r.idx, r.entity}
	}

	err = s.inTx(ctx, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx,
			`INSERT INTO sessions (id, name, header, attributes, created_at, updated_at) VALUES ($1, $2, $3, $4, $5, $6)`,
			id, name, headerJSON, len(input.Attributes()), now, now,
		); err != nil {
			return eris.Wrap(err, "postgres: insert session")
		}
		_, err := db.CopyFrom(ctx, tx, pgx.Identifier{"session_rows"}, []string{"session_id", "idx", "entity"}, rows)
		return err
	})
	if err != nil {
		return nil, err
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

func (s *PostgresStore) GetSession(ctx context.Context, id string) (*Session, error) {
	sess := &Session{}
	var headerJSON, sampleJSON []byte

	err := s.pool.QueryRow(ctx,
		`SELECT id, name, header, last_sample, created_at, updated_at FROM sessions WHERE id = $1`,
		id,
	).Scan(&sess.ID, &sess.Name, &headerJSON, &sampleJSON, &sess.CreatedAt, &sess.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, notFound(id)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get session %s", id)
	}

	rows, err := s.pool.Query(ctx,
		`SELECT idx, entity FROM session_rows WHERE session_id = $1 ORDER BY idx`, id)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: query rows")
	}
	var stored []storedRow
	for rows.Next() {
		var r storedRow
		if err := rows.Scan(&r.idx, &r.entity); err != nil {
			rows.Close()
			return nil, eris.Wrap(err, "postgres: scan row")
		}
		stored = append(stored, r)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "postgres: rows iterate")
	}

	cellRows, err := s.pool.Query(ctx,
		`SELECT idx, attribute, value FROM session_cells WHERE session_id = $1`, id)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: query cells")
	}
	var cells []grid.Cell
	for cellRows.Next() {
		var c grid.Cell
		if err := cellRows.Scan(&c.Row, &c.Attribute, &c.Value); err != nil {
			cellRows.Close()
			return nil, eris.Wrap(err, "postgres: scan cell")
		}
		cells = append(cells, c)
	}
	cellRows.Close()
	if err := cellRows.Err(); err != nil {
		return nil, eris.Wrap(err, "postgres: cells iterate")
	}

	if err := restore(sess, headerJSON, stored, cells, sampleJSON); err != nil {
		return nil, err
	}
	return sess, nil
}

func (s *PostgresStore) ListSessions(ctx context.Context, filter SessionFilter) ([]Summary, error) {
	query := `SELECT s.id, s.name, s.attributes, s.created_at, s.updated_at,
		(SELECT COUNT(*) FROM session_rows r WHERE r.session_id = s.id),
		(SELECT COUNT(*) FROM session_cells c WHERE c.session_id = s.id)
		FROM sessions s WHERE true`
	args := []any{}
	argIdx := 1

	if filter.Name != "" {
		query += fmt.Sprintf(` AND s.name = $%d`, argIdx)
		args = append(args, filter.Name)
		argIdx++
	}
	query += ` ORDER BY s.created_at DESC, s.id`

	limit := filter.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}
	query += fmt.Sprintf(` LIMIT $%d`, argIdx)
	args = append(args, limit)
	argIdx++

	if filter.Offset > 0 {
		query += fmt.Sprintf(` OFFSET $%d`, argIdx)
		args = append(args, filter.Offset)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list sessions")
	}
	defer rows.Close()

	var out []Summary
	for rows.Next() {
		var sum Summary
		var nRows, nCells int64
		if err := rows.Scan(&sum.ID, &sum.Name, &sum.Attributes, &sum.CreatedAt, &sum.UpdatedAt, &nRows, &nCells); err != nil {
			return nil, eris.Wrap(err, "postgres: scan session")
		}
		sum.Rows = int(nRows)
		sum.Cells = int(nCells)
		out = append(out, sum)
	}
	return out, eris.Wrap(rows.Err(), "postgres: list sessions iterate")
}

func (s *PostgresStore) SaveCell(ctx context.Context, id string, cell grid.Cell) error {
	now := time.Now().UTC()
	tag, err := s.pool.Exec(ctx,
		`UPDATE sessions SET updated_at = $1 WHERE id = $2`, now, id)
	if err != nil {
		return eris.Wrapf(err, "postgres: touch session %s", id)
	}
	if tag.RowsAffected() == 0 {
		return notFound(id)
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO session_cells (session_id, idx, attribute, value, written_at) VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (session_id, idx, attribute) DO UPDATE SET value = EXCLUDED.value, written_at = EXCLUDED.written_at`,
		id, cell.Row, cell.Attribute, cell.Value, now,
	)
	return eris.Wrapf(err, "postgres: save cell %d/%s", cell.Row, cell.Attribute)
}

func (s *PostgresStore) SetLastSample(ctx context.Context, id string, indices []int) error {
	sample, err := marshalSample(indices)
	if err != nil {
		return err
	}
	tag, err := s.pool.Exec(ctx,
		`UPDATE sessions SET last_sample = $1, updated_at = $2 WHERE id = $3`,
		sample, time.Now().UTC(), id,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: set last sample %s", id)
	}
	if tag.RowsAffected() == 0 {
		return notFound(id)
	}
	return nil
}

func (s *PostgresStore) ClearCells(ctx context.Context, id string) error {
	return s.inTx(ctx, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx,
			`UPDATE sessions SET last_sample = NULL, updated_at = $1 WHERE id = $2`,
			time.Now().UTC(), id,
		)
		if err != nil {
			return eris.Wrapf(err, "postgres: reset session %s", id)
		}
		if tag.RowsAffected() == 0 {
			return notFound(id)
		}
		_, err = tx.Exec(ctx, `DELETE FROM session_cells WHERE session_id = $1`, id)
		return eris.Wrapf(err, "postgres: clear cells %s", id)
	})
}

func (s *PostgresStore) DeleteSession(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM sessions WHERE id = $1`, id)
	if err != nil {
		return eris.Wrapf(err, "postgres: delete session %s", id)
	}
	if tag.RowsAffected() == 0 {
		return notFound(id)
	}
	return nil
}

var (
	_ Store = (*SQLiteStore)(nil)
	_ Store = (*PostgresStore)(nil)
)

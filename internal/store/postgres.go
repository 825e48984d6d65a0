package store

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/blockcheck/internal/model"
)

// Pool is the subset of *pgxpool.Pool the store uses. pgxmock's pool
// satisfies it in tests.
type Pool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
	Close()
}

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool Pool
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

	maxConns := int32(4)
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
	return &PostgresStore{pool: pool}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS runs (
	id          TEXT PRIMARY KEY,
	started_at  TIMESTAMPTZ NOT NULL,
	finished_at TIMESTAMPTZ NOT NULL,
	total       INTEGER NOT NULL DEFAULT 0,
	blocked     INTEGER NOT NULL DEFAULT 0,
	not_blocked INTEGER NOT NULL DEFAULT 0,
	unknown     INTEGER NOT NULL DEFAULT 0,
	errored     INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS results (
	id         BIGSERIAL PRIMARY KEY,
	run_id     TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
	domain     TEXT NOT NULL,
	status     TEXT NOT NULL,
	raw        TEXT NOT NULL DEFAULT '',
	error      TEXT NOT NULL DEFAULT '',
	checked_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_results_domain_checked ON results(domain, checked_at DESC);
CREATE INDEX IF NOT EXISTS idx_results_run_id ON results(run_id);
CREATE INDEX IF NOT EXISTS idx_results_checked_at ON results(checked_at);
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

func (s *PostgresStore) SaveRun(ctx context.Context, rep *model.Report) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return eris.Wrap(err, "postgres: begin save run")
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	blocked, notBlocked, unknown, errored := runCounts(rep)
	if _, err := tx.Exec(ctx,
		`INSERT INTO runs (id, started_at, finished_at, total, blocked, not_blocked, unknown, errored) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		rep.RunID, rep.StartedAt, rep.FinishedAt, len(rep.Results), blocked, notBlocked, unknown, errored,
	); err != nil {
		return eris.Wrapf(err, "postgres: insert run %s", rep.RunID)
	}

	for _, r := range rep.Results {
		if _, err := tx.Exec(ctx,
			`INSERT INTO results (run_id, domain, status, raw, error, checked_at) VALUES ($1, $2, $3, $4, $5, $6)`,
			rep.RunID, r.Domain, string(r.Status), r.Raw, r.Error, r.CheckedAt,
		); err != nil {
			return eris.Wrapf(err, "postgres: insert result %s", r.Domain)
		}
	}
	return eris.Wrap(tx.Commit(ctx), "postgres: commit save run")
}

func (s *PostgresStore) LatestStatuses(ctx context.Context, domains []string) (map[string]model.Status, error) {
	out := make(map[string]model.Status, len(domains))
	if len(domains) == 0 {
		return out, nil
	}

	rows, err := s.pool.Query(ctx,
		`SELECT DISTINCT ON (domain) domain, status FROM results
		 WHERE status <> $1 AND domain = ANY($2)
		 ORDER BY domain, checked_at DESC, id DESC`,
		string(model.StatusError), domains,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: latest statuses")
	}
	defer rows.Close()

	for rows.Next() {
		var domain, status string
		if err := rows.Scan(&domain, &status); err != nil {
			return nil, eris.Wrap(err, "postgres: scan status")
		}
		out[domain] = model.Status(status)
	}
	return out, eris.Wrap(rows.Err(), "postgres: iterate statuses")
}

func (s *PostgresStore) ListResults(ctx context.Context, filter ResultFilter) ([]model.Result, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT run_id, domain, status, raw, error, checked_at FROM results
		 WHERE ($1 = '' OR domain = $1)
		   AND ($2 = '' OR status = $2)
		   AND ($3 = '' OR run_id = $3)
		   AND ($4::timestamptz IS NULL OR checked_at >= $4)
		 ORDER BY checked_at DESC, id DESC
		 LIMIT $5`,
		filter.Domain, string(filter.Status), filter.RunID, nullTime(filter.Since), filter.limit(),
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list results")
	}
	defer rows.Close()

	var results []model.Result
	for rows.Next() {
		var r model.Result
		var status string
		if err := rows.Scan(&r.RunID, &r.Domain, &status, &r.Raw, &r.Error, &r.CheckedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan result")
		}
		r.Status = model.Status(status)
		results = append(results, r)
	}
	return results, eris.Wrap(rows.Err(), "postgres: iterate results")
}

func (s *PostgresStore) Prune(ctx context.Context, before time.Time) (int, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM results WHERE checked_at < $1`, before)
	if err != nil {
		return 0, eris.Wrap(err, "postgres: prune results")
	}
	if _, err := s.pool.Exec(ctx,
		`DELETE FROM runs r WHERE r.finished_at < $1 AND NOT EXISTS (SELECT 1 FROM results x WHERE x.run_id = r.id)`,
		before,
	); err != nil {
		return 0, eris.Wrap(err, "postgres: prune runs")
	}
	return int(tag.RowsAffected()), nil
}

func nullTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

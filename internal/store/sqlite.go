package store

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/blockcheck/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// sqlitePragmas are applied by the driver to every pooled connection.
var sqlitePragmas = []string{
	"journal_mode(WAL)",
	"busy_timeout(5000)",
	"synchronous(NORMAL)",
	"foreign_keys(1)",
}

// sqliteDSN appends the connection pragmas to a path or file: URI.
func sqliteDSN(dsn string) string {
	params := make([]string, len(sqlitePragmas))
	for i, p := range sqlitePragmas {
		params[i] = "_pragma=" + p
	}
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	return dsn + sep + strings.Join(params, "&")
}

// NewSQLite opens a SQLite database at the given path in WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", sqliteDSN(dsn))
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, eris.Wrap(err, "sqlite: connect")
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS runs (
	id          TEXT PRIMARY KEY,
	started_at  DATETIME NOT NULL,
	finished_at DATETIME NOT NULL,
	total       INTEGER NOT NULL DEFAULT 0,
	blocked     INTEGER NOT NULL DEFAULT 0,
	not_blocked INTEGER NOT NULL DEFAULT 0,
	unknown     INTEGER NOT NULL DEFAULT 0,
	errored     INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS results (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	run_id     TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
	domain     TEXT NOT NULL,
	status     TEXT NOT NULL,
	raw        TEXT NOT NULL DEFAULT '',
	error      TEXT NOT NULL DEFAULT '',
	checked_at DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_results_domain_checked ON results(domain, checked_at DESC);
CREATE INDEX IF NOT EXISTS idx_results_run_id ON results(run_id);
CREATE INDEX IF NOT EXISTS idx_results_checked_at ON results(checked_at);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) SaveRun(ctx context.Context, rep *model.Report) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin save run")
	}
	defer tx.Rollback() //nolint:errcheck

	blocked, notBlocked, unknown, errored := runCounts(rep)
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO runs (id, started_at, finished_at, total, blocked, not_blocked, unknown, errored) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		rep.RunID, rep.StartedAt.UTC(), rep.FinishedAt.UTC(), len(rep.Results), blocked, notBlocked, unknown, errored,
	); err != nil {
		return eris.Wrapf(err, "sqlite: insert run %s", rep.RunID)
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO results (run_id, domain, status, raw, error, checked_at) VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return eris.Wrap(err, "sqlite: prepare insert result")
	}
	defer stmt.Close() //nolint:errcheck

	for _, r := range rep.Results {
		if _, err := stmt.ExecContext(ctx, rep.RunID, r.Domain, string(r.Status), r.Raw, r.Error, r.CheckedAt.UTC()); err != nil {
			return eris.Wrapf(err, "sqlite: insert result %s", r.Domain)
		}
	}
	return eris.Wrap(tx.Commit(), "sqlite: commit save run")
}

func (s *SQLiteStore) LatestStatuses(ctx context.Context, domains []string) (map[string]model.Status, error) {
	out := make(map[string]model.Status, len(domains))
	if len(domains) == 0 {
		return out, nil
	}

	args := make([]any, 0, len(domains)+1)
	args = append(args, string(model.StatusError))
	for _, d := range domains {
		args = append(args, d)
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(domains)), ",")

	rows, err := s.db.QueryContext(ctx,
		`SELECT domain, status FROM results
		 WHERE status != ? AND domain IN (`+placeholders+`)
		 ORDER BY checked_at DESC, id DESC`, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: latest statuses")
	}
	defer rows.Close() //nolint:errcheck

	for rows.Next() {
		var domain, status string
		if err := rows.Scan(&domain, &status); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan status")
		}
		if _, seen := out[domain]; !seen {
			out[domain] = model.Status(status)
		}
	}
	return out, eris.Wrap(rows.Err(), "sqlite: iterate statuses")
}

func (s *SQLiteStore) ListResults(ctx context.Context, filter ResultFilter) ([]model.Result, error) {
	query := `SELECT run_id, domain, status, raw, error, checked_at FROM results`
	var where []string
	var args []any
	if filter.Domain != "" {
		where = append(where, "domain = ?")
		args = append(args, filter.Domain)
	}
	if filter.Status != "" {
		where = append(where, "status = ?")
		args = append(args, string(filter.Status))
	}
	if filter.RunID != "" {
		where = append(where, "run_id = ?")
		args = append(args, filter.RunID)
	}
	if !filter.Since.IsZero() {
		where = append(where, "checked_at >= ?")
		args = append(args, filter.Since.UTC())
	}
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY checked_at DESC, id DESC LIMIT ?"
	args = append(args, filter.limit())

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list results")
	}
	defer rows.Close() //nolint:errcheck

	var results []model.Result
	for rows.Next() {
		var r model.Result
		var status string
		if err := rows.Scan(&r.RunID, &r.Domain, &status, &r.Raw, &r.Error, &r.CheckedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan result")
		}
		r.Status = model.Status(status)
		results = append(results, r)
	}
	return results, eris.Wrap(rows.Err(), "sqlite: iterate results")
}

func (s *SQLiteStore) Prune(ctx context.Context, before time.Time) (int, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM results WHERE checked_at < ?`, before.UTC())
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: prune results")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: prune rows affected")
	}
	if _, err := s.db.ExecContext(ctx,
		`DELETE FROM runs WHERE finished_at < ? AND id NOT IN (SELECT DISTINCT run_id FROM results)`,
		before.UTC(),
	); err != nil {
		return 0, eris.Wrap(err, "sqlite: prune runs")
	}
	return int(n), nil
}

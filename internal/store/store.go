// Package store persists check runs so status changes can be detected
// between runs and history can be queried.
package store

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/blockcheck/internal/config"
	"github.com/sells-group/blockcheck/internal/model"
)

// DefaultListLimit caps ListResults when no limit is given.
const DefaultListLimit = 100

// ResultFilter specifies criteria for listing results, newest first.
type ResultFilter struct {
	Domain string       `json:"domain,omitempty"`
	Status model.Status `json:"status,omitempty"`
	RunID  string       `json:"run_id,omitempty"`
	Since  time.Time    `json:"since,omitempty"`
	Limit  int          `json:"limit,omitempty"`
}

func (f ResultFilter) limit() int {
	if f.Limit <= 0 {
		return DefaultListLimit
	}
	return f.Limit
}

// Store defines the history backend.
type Store interface {
	// SaveRun persists a finished run and all of its results.
	SaveRun(ctx context.Context, rep *model.Report) error
	// LatestStatuses returns the most recent non-error status of each of
	// the given domains. Domains never seen are absent from the map.
	LatestStatuses(ctx context.Context, domains []string) (map[string]model.Status, error)
	// ListResults returns stored results matching the filter, newest first.
	ListResults(ctx context.Context, filter ResultFilter) ([]model.Result, error)
	// Prune deletes results checked before the cutoff and runs left empty,
	// returning the number of results deleted.
	Prune(ctx context.Context, before time.Time) (int, error)

	Migrate(ctx context.Context) error
	Close() error
}

// Drivers accepted in the store config section.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverNone     = "none"
)

// Open returns the configured store, migrated and ready. Driver "none"
// returns a nil Store; callers treat that as persistence disabled.
func Open(ctx context.Context, cfg config.StoreConfig) (Store, error) {
	var (
		s   Store
		err error
	)
	switch cfg.Driver {
	case DriverNone:
		return nil, nil
	case DriverSQLite, "":
		s, err = NewSQLite(cfg.DatabaseURL)
	case DriverPostgres:
		s, err = NewPostgres(ctx, cfg.DatabaseURL, nil)
	default:
		return nil, eris.Errorf("store: unsupported driver %q", cfg.Driver)
	}
	if err != nil {
		return nil, err
	}
	if err := s.Migrate(ctx); err != nil {
		_ = s.Close()
		return nil, err
	}
	return s, nil
}

// runCounts flattens the per-status tallies stored on a run row.
func runCounts(rep *model.Report) (blocked, notBlocked, unknown, errored int) {
	c := rep.Counts()
	return c[model.StatusBlocked], c[model.StatusNotBlocked], c[model.StatusUnknown], c[model.StatusError]
}

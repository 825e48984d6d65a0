package runner

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/blockcheck/internal/browser"
	"github.com/sells-group/blockcheck/internal/classify"
	"github.com/sells-group/blockcheck/internal/model"
	"github.com/sells-group/blockcheck/internal/resilience"
	"github.com/sells-group/blockcheck/internal/scrape"
	"github.com/sells-group/blockcheck/internal/store"
)

// fakeChecker renders a result table the way the checker site does.
type fakeChecker struct {
	mu       sync.Mutex
	blocked  map[string]bool
	fail     map[string]error
	flaky    int  // transient failures before the first success
	numbered bool // render a leading row-number column, last domain first
	batches  [][]string
	inFlight atomic.Int32
	maxSeen  atomic.Int32
}

func (f *fakeChecker) Submit(ctx context.Context, domains []string) (string, error) {
	n := f.inFlight.Add(1)
	defer f.inFlight.Add(-1)
	for {
		m := f.maxSeen.Load()
		if n <= m || f.maxSeen.CompareAndSwap(m, n) {
			break
		}
	}
	time.Sleep(5 * time.Millisecond)

	f.mu.Lock()
	defer f.mu.Unlock()
	f.batches = append(f.batches, append([]string(nil), domains...))
	if f.flaky > 0 {
		f.flaky--
		return "", resilience.NewTransientError(errors.New("results did not render"), 0)
	}
	var b strings.Builder
	b.WriteString("<table><tbody>")
	for i := range domains {
		d := domains[i]
		if f.numbered {
			d = domains[len(domains)-1-i]
		}
		if err := f.fail[d]; err != nil {
			return "", err
		}
		status := "Tidak Diblokir"
		if f.blocked[d] {
			status = "Diblokir"
		}
		if f.numbered {
			fmt.Fprintf(&b, "<tr><td>%d</td><td>%s</td><td>%s</td></tr>", i+1, d, status)
			continue
		}
		fmt.Fprintf(&b, "<tr><td>%s</td><td>%s</td></tr>", d, status)
	}
	b.WriteString("</tbody></table>")
	return b.String(), nil
}

type recordingNotifier struct {
	mu      sync.Mutex
	reports []*model.Report
	err     error
}

func (n *recordingNotifier) Name() string { return "recording" }

func (n *recordingNotifier) Notify(_ context.Context, rep *model.Report) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.reports = append(n.reports, rep)
	return n.err
}

func (n *recordingNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.reports)
}

func fastRetry() resilience.RetryConfig {
	return resilience.RetryConfig{MaxAttempts: 3, InitialBackoff: time.Millisecond, MaxBackoff: time.Millisecond}
}

func testSQLite(t *testing.T) store.Store {
	t.Helper()
	s, err := store.NewSQLite(filepath.Join(t.TempDir(), "runner.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() }) //nolint:errcheck
	require.NoError(t, s.Migrate(context.Background()))
	return s
}

var _ browser.Submitter = (*fakeChecker)(nil)

func TestRun_ClassifiesInInputOrder(t *testing.T) {
	fc := &fakeChecker{blocked: map[string]bool{"b.example": true}}
	r := New(fc, classify.New(nil, nil), Options{BatchSize: 2, Pages: 2, Retry: fastRetry()})

	rep, err := r.Run(context.Background(), []string{"a.example", "b.example", "c.example"})
	require.NoError(t, err)
	require.Len(t, rep.Results, 3)

	assert.NotEmpty(t, rep.RunID)
	assert.Equal(t, []string{"a.example", "b.example", "c.example"},
		[]string{rep.Results[0].Domain, rep.Results[1].Domain, rep.Results[2].Domain})
	assert.Equal(t, model.StatusNotBlocked, rep.Results[0].Status)
	assert.Equal(t, model.StatusBlocked, rep.Results[1].Status)
	assert.Equal(t, model.StatusNotBlocked, rep.Results[2].Status)
	assert.Equal(t, "Diblokir", rep.Results[1].Raw)
	for _, res := range rep.Results {
		assert.Equal(t, rep.RunID, res.RunID)
		assert.False(t, res.CheckedAt.IsZero())
	}
	assert.Len(t, fc.batches, 2)
	assert.False(t, rep.FinishedAt.Before(rep.StartedAt))
}

func TestRun_OverlappingNamesInOneBatch(t *testing.T) {
	fc := &fakeChecker{numbered: true, blocked: map[string]bool{"ba.example": true}}
	r := New(fc, classify.New(nil, nil), Options{BatchSize: 3, Retry: fastRetry()})

	rep, err := r.Run(context.Background(), []string{"a.example", "ba.example", "a.example.net"})
	require.NoError(t, err)
	require.Len(t, rep.Results, 3)
	require.Len(t, fc.batches, 1)

	assert.Equal(t, model.StatusNotBlocked, rep.Results[0].Status, rep.Results[0].Raw)
	assert.Equal(t, model.StatusBlocked, rep.Results[1].Status, rep.Results[1].Raw)
	assert.Equal(t, model.StatusNotBlocked, rep.Results[2].Status, rep.Results[2].Raw)
	assert.Equal(t, "Tidak Diblokir", rep.Results[0].Raw)
}

func TestRun_FailedBatchBecomesErrorResults(t *testing.T) {
	fc := &fakeChecker{fail: map[string]error{"bad.example": errors.New("element #domains not found")}}
	r := New(fc, nil, Options{BatchSize: 1, Retry: fastRetry()})

	rep, err := r.Run(context.Background(), []string{"ok.example", "bad.example"})
	require.NoError(t, err)

	assert.Equal(t, model.StatusNotBlocked, rep.Results[0].Status)
	bad := rep.Results[1]
	assert.Equal(t, model.StatusError, bad.Status)
	assert.Equal(t, "ERROR: element #domains not found", bad.Raw)
	assert.Equal(t, "element #domains not found", bad.Error)
}

func TestRun_RetriesTransientFailures(t *testing.T) {
	fc := &fakeChecker{flaky: 2}
	r := New(fc, nil, Options{Retry: fastRetry()})

	rep, err := r.Run(context.Background(), []string{"a.example"})
	require.NoError(t, err)
	assert.Equal(t, model.StatusNotBlocked, rep.Results[0].Status)
	assert.Len(t, fc.batches, 3)
}

func TestRun_RespectsPageLimit(t *testing.T) {
	fc := &fakeChecker{}
	r := New(fc, nil, Options{BatchSize: 1, Pages: 2, Retry: fastRetry()})

	domains := make([]string, 8)
	for i := range domains {
		domains[i] = fmt.Sprintf("d%d.example", i)
	}
	_, err := r.Run(context.Background(), domains)
	require.NoError(t, err)
	assert.LessOrEqual(t, fc.maxSeen.Load(), int32(2))
}

func TestRun_OnResultStreamsEveryResult(t *testing.T) {
	var mu sync.Mutex
	var seen []string
	fc := &fakeChecker{}
	r := New(fc, nil, Options{BatchSize: 2, Pages: 3, Retry: fastRetry(), OnResult: func(res model.Result) {
		mu.Lock()
		defer mu.Unlock()
		seen = append(seen, res.Domain)
	}})

	_, err := r.Run(context.Background(), []string{"a.example", "b.example", "c.example", "d.example", "e.example"})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"a.example", "b.example", "c.example", "d.example", "e.example"}, seen)
}

func TestRun_NoDomains(t *testing.T) {
	r := New(&fakeChecker{}, nil, Options{})
	_, err := r.Run(context.Background(), nil)
	assert.Error(t, err)
}

func TestRun_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	r := New(&fakeChecker{}, nil, Options{Retry: fastRetry()})

	rep, err := r.Run(ctx, []string{"a.example"})
	assert.Error(t, err)
	assert.Nil(t, rep)
}

func TestRun_DetectsChangesAndNotifies(t *testing.T) {
	st := testSQLite(t)
	n := &recordingNotifier{}
	fc := &fakeChecker{blocked: map[string]bool{}}
	r := New(fc, nil, Options{Retry: fastRetry(), Store: st, Notifier: n})
	domains := []string{"a.example", "b.example"}

	first, err := r.Run(context.Background(), domains)
	require.NoError(t, err)
	assert.Empty(t, first.Changes, "first sighting is not a change")

	fc.mu.Lock()
	fc.blocked["a.example"] = true
	fc.mu.Unlock()

	second, err := r.Run(context.Background(), domains)
	require.NoError(t, err)
	require.Len(t, second.Changes, 1)
	assert.Equal(t, model.Change{Domain: "a.example", Previous: model.StatusNotBlocked, Current: model.StatusBlocked}, second.Changes[0])
	assert.Equal(t, 2, n.count())

	stored, err := st.ListResults(context.Background(), store.ResultFilter{RunID: second.RunID})
	require.NoError(t, err)
	assert.Len(t, stored, 2)
}

func TestRun_OnlyChangesSkipsQuietRuns(t *testing.T) {
	st := testSQLite(t)
	n := &recordingNotifier{}
	fc := &fakeChecker{blocked: map[string]bool{}}
	r := New(fc, nil, Options{Retry: fastRetry(), Store: st, Notifier: n, OnlyChanges: true})

	for i := 0; i < 2; i++ {
		_, err := r.Run(context.Background(), []string{"a.example"})
		require.NoError(t, err)
	}
	assert.Equal(t, 0, n.count())

	fc.mu.Lock()
	fc.blocked["a.example"] = true
	fc.mu.Unlock()
	_, err := r.Run(context.Background(), []string{"a.example"})
	require.NoError(t, err)
	assert.Equal(t, 1, n.count())
}

func TestRun_NotifierFailureIsNotFatal(t *testing.T) {
	n := &recordingNotifier{err: errors.New("telegram down")}
	r := New(&fakeChecker{}, nil, Options{Retry: fastRetry(), Notifier: n})

	rep, err := r.Run(context.Background(), []string{"a.example"})
	require.NoError(t, err)
	assert.NotNil(t, rep)
	assert.Equal(t, int64(1), r.NotifyFailures())
}

type brokenStore struct{ store.Store }

func (brokenStore) LatestStatuses(context.Context, []string) (map[string]model.Status, error) {
	return nil, errors.New("disk I/O error")
}

func TestRun_StoreFailureReturnsReport(t *testing.T) {
	n := &recordingNotifier{}
	r := New(&fakeChecker{}, nil, Options{Retry: fastRetry(), Store: brokenStore{}, Notifier: n})

	rep, err := r.Run(context.Background(), []string{"a.example"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "runner: load previous statuses")
	require.NotNil(t, rep)
	assert.Len(t, rep.Results, 1)
	assert.Equal(t, 1, n.count(), "notification still goes out")
}

type blockingChecker struct {
	calls atomic.Int32
}

func (b *blockingChecker) Submit(context.Context, []string) (string, error) {
	if b.calls.Add(1) == 1 {
		return "", resilience.NewTransientError(&browser.BlockedError{Kind: scrape.BlockCloudflare}, 0)
	}
	return "<table><tbody><tr><td>a.example</td><td>Tidak Diblokir</td></tr></tbody></table>", nil
}

func TestRun_BlockedSlowsPacer(t *testing.T) {
	r := New(&blockingChecker{}, nil, Options{Retry: fastRetry(), RatePerMinute: 6000})
	before := r.pace.Limit()

	rep, err := r.Run(context.Background(), []string{"a.example"})
	require.NoError(t, err)
	assert.Equal(t, model.StatusNotBlocked, rep.Results[0].Status)
	assert.Less(t, float64(r.pace.Limit()), float64(before))
}

package browser

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

var t0 = time.Date(2026, 10, 14, 10, 0, 0, 0, time.UTC)

func TestResultWatcher_RowsComplete(t *testing.T) {
	w := newResultWatcher(2, 5*time.Second, t0)

	assert.False(t, w.done(1, "a.example Blocked", t0.Add(500*time.Millisecond)))
	assert.True(t, w.done(2, "a.example Blocked b.example Not Blocked", t0.Add(time.Second)))
}

func TestResultWatcher_StableTextAfterMinWait(t *testing.T) {
	w := newResultWatcher(1, 2*time.Second, t0)

	assert.False(t, w.done(0, "Checking...", t0.Add(500*time.Millisecond)))
	// Stable but before the minimum wait.
	assert.False(t, w.done(0, "Checking...", t0.Add(time.Second)))
	assert.False(t, w.done(0, "example.com: Diblokir", t0.Add(1500*time.Millisecond)))
	assert.True(t, w.done(0, "example.com:  Diblokir\n", t0.Add(2*time.Second)))
}

func TestResultWatcher_EmptyTextNeverStable(t *testing.T) {
	w := newResultWatcher(3, 0, t0)
	for i := 0; i < 5; i++ {
		assert.False(t, w.done(0, "  ", t0.Add(time.Duration(i)*time.Second)))
	}
}

func TestResultWatcher_TextChangesResetStability(t *testing.T) {
	w := newResultWatcher(3, 0, t0)
	assert.False(t, w.done(1, "a", t0))
	assert.False(t, w.done(1, "a b", t0.Add(time.Second)))
	assert.True(t, w.done(1, "a b", t0.Add(2*time.Second)))
}

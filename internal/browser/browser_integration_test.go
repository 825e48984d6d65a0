//go:build integration

package browser_test

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/blockcheck/internal/browser"
	"github.com/sells-group/blockcheck/internal/config"
	"github.com/sells-group/blockcheck/internal/scrape"
)

// fakeChecker renders one table row per submitted line after a short delay,
// marking anything under .blocked as blocked.
const fakeChecker = `<!doctype html>
<html><body>
<textarea id="domains"></textarea>
<div id="results"></div>
<script>
document.getElementById('domains').addEventListener('keydown', function (e) {
  if (!(e.ctrlKey && e.key === 'Enter')) return;
  var lines = this.value.split('\n').filter(Boolean);
  setTimeout(function () {
    var rows = lines.map(function (d) {
      var s = d.endsWith('.blocked') ? 'Diblokir' : 'Tidak Diblokir';
      return '<tr><td>' + d + '</td><td>' + s + '</td></tr>';
    }).join('');
    document.getElementById('results').innerHTML = '<table><tbody>' + rows + '</tbody></table>';
  }, 300);
});
</script>
</body></html>`

func TestSubmit_Integration(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, fakeChecker)
	}))
	defer ts.Close()

	for _, mode := range []string{config.WaitPoll, config.WaitFixed} {
		t.Run(mode, func(t *testing.T) {
			ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
			defer cancel()

			opts := browser.OptionsFromConfig(config.CheckerConfig{
				URL:            ts.URL,
				WaitMode:       mode,
				ResultDelayMs:  1000,
				PollIntervalMs: 100,
				TimeoutSecs:    30,
				Headless:       true,
			})
			b, err := browser.Launch(ctx, opts)
			require.NoError(t, err)
			defer b.Close()

			requested := []string{"one.example", "two.blocked"}
			html, err := b.Submit(ctx, requested)
			require.NoError(t, err)

			got, err := scrape.ParseResults(html, requested, "")
			require.NoError(t, err)
			assert.Equal(t, "Tidak Diblokir", got["one.example"])
			assert.Equal(t, "Diblokir", got["two.blocked"])
		})
	}
}

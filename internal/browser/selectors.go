package browser

// Default selectors for the checker page. Each can be overridden in the
// checker config section when the site markup changes.
const (
	DefaultInputSelector  = "#domains"
	DefaultResultSelector = "#results"
)

// Launch flags passed to a locally started Chrome. The container-friendly
// pair matches what the checker needs on CI runners.
var launchFlags = []string{
	"no-sandbox",
	"disable-dev-shm-usage",
	"disable-gpu",
}

package model

import "time"

// ErrorPrefix starts the raw text of a result whose check failed.
const ErrorPrefix = "ERROR: "

// Result is the outcome of checking a single domain.
type Result struct {
	Domain    string    `json:"domain" yaml:"domain"`
	Status    Status    `json:"status" yaml:"status"`
	Raw       string    `json:"raw,omitempty" yaml:"raw,omitempty"`
	Error     string    `json:"error,omitempty" yaml:"error,omitempty"`
	CheckedAt time.Time `json:"checked_at" yaml:"checked_at"`
	RunID     string    `json:"run_id,omitempty" yaml:"run_id,omitempty"`
}

// FailedResult builds an error result the way a failed check is reported.
func FailedResult(domain string, err error, at time.Time) Result {
	return Result{
		Domain:    domain,
		Status:    StatusError,
		Raw:       ErrorPrefix + err.Error(),
		Error:     err.Error(),
		CheckedAt: at,
	}
}

// Change records a status transition between two runs.
type Change struct {
	Domain   string `json:"domain" yaml:"domain"`
	Previous Status `json:"previous" yaml:"previous"`
	Current  Status `json:"current" yaml:"current"`
}

// Report is the full outcome of one run over a domain list.
type Report struct {
	RunID      string    `json:"run_id" yaml:"run_id"`
	StartedAt  time.Time `json:"started_at" yaml:"started_at"`
	FinishedAt time.Time `json:"finished_at" yaml:"finished_at"`
	Results    []Result  `json:"results" yaml:"results"`
	Changes    []Change  `json:"changes,omitempty" yaml:"changes,omitempty"`
}

// Counts tallies results per status.
func (r *Report) Counts() map[Status]int {
	counts := make(map[Status]int, 4)
	for _, res := range r.Results {
		counts[res.Status]++
	}
	return counts
}

// ByStatus returns the results with the given status, in report order.
func (r *Report) ByStatus(s Status) []Result {
	var out []Result
	for _, res := range r.Results {
		if res.Status == s {
			out = append(out, res)
		}
	}
	return out
}

// Statuses flattens the report into a domain to status mapping.
func (r *Report) Statuses() map[string]Status {
	m := make(map[string]Status, len(r.Results))
	for _, res := range r.Results {
		m[res.Domain] = res.Status
	}
	return m
}

// Diff computes changes against the previously known statuses. Domains that
// were never seen before are not changes. Error results are skipped so a
// flaky check does not look like a transition.
func (r *Report) Diff(previous map[string]Status) []Change {
	var changes []Change
	for _, res := range r.Results {
		if res.Status == StatusError {
			continue
		}
		prev, ok := previous[res.Domain]
		if !ok || prev == res.Status {
			continue
		}
		changes = append(changes, Change{Domain: res.Domain, Previous: prev, Current: res.Status})
	}
	return changes
}

// Duration returns how long the run took.
func (r *Report) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}

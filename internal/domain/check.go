package domain

import "time"

// RunSource identifies how a verification run gathered its observations
type RunSource string

const (
	RunSourceProbe RunSource = "probe" // In-cluster TCP probes over SSH
	RunSourceNmap  RunSource = "nmap"  // Operator-side nmap scan
)

// CheckResult is the outcome of probing one (source, target, network, port)
// tuple against the reachability policy
type CheckResult struct {
	RunID     string    `json:"run_id"`
	FromID    string    `json:"from_id"`
	ToID      string    `json:"to_id"`
	Network   string    `json:"network"`
	Addr      string    `json:"addr"`
	Port      int       `json:"port"`
	Expected  bool      `json:"expected"`
	Reachable bool      `json:"reachable"`
	LatencyMS int64     `json:"latency_ms,omitempty"`
	Error     string    `json:"error,omitempty"`
	CheckedAt time.Time `json:"checked_at"`
}

// Violation reports whether the observation contradicts the policy.
// Probe errors (e.g. the source node was unreachable over SSH) are not
// violations; they mean the check could not run.
func (c *CheckResult) Violation() bool {
	return c.Error == "" && c.Expected != c.Reachable
}

// VerificationRun aggregates the checks of one isolation verification pass
type VerificationRun struct {
	ID         string        `json:"id"`
	Source     RunSource     `json:"source"`
	StartedAt  time.Time     `json:"started_at"`
	FinishedAt *time.Time    `json:"finished_at,omitempty"`
	Total      int           `json:"total"`
	Passed     int           `json:"passed"`
	Violations int           `json:"violations"`
	Errors     int           `json:"errors"`
	Checks     []CheckResult `json:"checks,omitempty"`
}

// NewVerificationRun creates a run with the given ID and source
func NewVerificationRun(id string, source RunSource) *VerificationRun {
	return &VerificationRun{
		ID:        id,
		Source:    source,
		StartedAt: time.Now(),
	}
}

// AddCheck records a check result and updates the run counters
func (r *VerificationRun) AddCheck(check CheckResult) {
	check.RunID = r.ID
	r.Checks = append(r.Checks, check)
	r.Total++
	switch {
	case check.Error != "":
		r.Errors++
	case check.Violation():
		r.Violations++
	default:
		r.Passed++
	}
}

// Finish stamps the run as complete
func (r *VerificationRun) Finish() {
	now := time.Now()
	r.FinishedAt = &now
}

// Clean reports whether the run saw no violations and no probe errors
func (r *VerificationRun) Clean() bool {
	return r.Violations == 0 && r.Errors == 0
}

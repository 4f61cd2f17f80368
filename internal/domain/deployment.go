package domain

import "time"

// Deployment records one deploy (or remove) attempt against a node
type Deployment struct {
	ID         string     `json:"id"`
	NodeID     string     `json:"node_id"`
	Class      NodeClass  `json:"class"`
	Action     string     `json:"action"` // "deploy" or "remove"
	Artifact   string     `json:"artifact,omitempty"`
	Script     string     `json:"script,omitempty"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
	Success    bool       `json:"success"`
	Error      string     `json:"error,omitempty"`
}

// Finish stamps the deployment with its outcome
func (d *Deployment) Finish(err error) {
	now := time.Now()
	d.FinishedAt = &now
	if err != nil {
		d.Error = err.Error()
		return
	}
	d.Success = true
}

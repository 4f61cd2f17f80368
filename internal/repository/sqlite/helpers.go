package sqlite

import (
	"database/sql"
	"encoding/json"
	"time"

	"vtdsapp/internal/domain"
)

// scanner covers both *sql.Row and *sql.Rows
type scanner interface {
	Scan(dest ...any) error
}

// scanNode reads one node row
func scanNode(s scanner) (*domain.VirtualNode, error) {
	var (
		node         domain.VirtualNode
		class        string
		status       string
		addresses    string
		lastDeployed sql.NullTime
		lastError    sql.NullString
	)

	if err := s.Scan(&node.ID, &class, &node.SSHHost, &node.SSHPort, &status,
		&addresses, &lastDeployed, &lastError, &node.CreatedAt, &node.UpdatedAt); err != nil {
		return nil, err
	}

	node.Class = domain.NodeClass(class)
	node.Status = domain.NodeStatus(status)
	node.LastDeployed = nullToTimePtr(lastDeployed)
	node.LastError = nullToString(lastError)

	if err := json.Unmarshal([]byte(addresses), &node.Addresses); err != nil {
		return nil, err
	}

	return &node, nil
}

// scanRunRow reads one verification run row (without checks)
func (r *Repository) scanRunRow(s scanner) (*domain.VerificationRun, error) {
	var (
		run      domain.VerificationRun
		source   string
		finished sql.NullTime
	)
	if err := s.Scan(&run.ID, &source, &run.StartedAt, &finished,
		&run.Total, &run.Passed, &run.Violations, &run.Errors); err != nil {
		return nil, err
	}
	run.Source = domain.RunSource(source)
	run.FinishedAt = nullToTimePtr(finished)
	return &run, nil
}

// nullToString safely converts sql.NullString to string
func nullToString(ns sql.NullString) string {
	if ns.Valid {
		return ns.String
	}
	return ""
}

// nullToTimePtr safely converts sql.NullTime to *time.Time
func nullToTimePtr(nt sql.NullTime) *time.Time {
	if nt.Valid {
		return &nt.Time
	}
	return nil
}

// stringToNull safely converts string to sql.NullString
func stringToNull(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

// timePtrToNull safely converts *time.Time to sql.NullTime
func timePtrToNull(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

package repository

import (
	"context"

	"vtdsapp/internal/domain"
)

// Repository defines the interface for application layer state access
type Repository interface {
	// Node state
	UpsertNode(ctx context.Context, node *domain.VirtualNode) error
	GetNode(ctx context.Context, id string) (*domain.VirtualNode, error)
	ListNodes(ctx context.Context) ([]*domain.VirtualNode, error)
	UpdateNodeStatus(ctx context.Context, id string, status domain.NodeStatus, lastError string) error

	// Deploy plan (the prepared layer definition)
	SavePlan(ctx context.Context, plan *domain.DeployPlan) error
	GetPlan(ctx context.Context) (*domain.DeployPlan, error)
	ClearPlan(ctx context.Context) error

	// Deployment history
	RecordDeployment(ctx context.Context, dep *domain.Deployment) error
	ListDeployments(ctx context.Context, nodeID string) ([]*domain.Deployment, error)

	// Verification runs
	SaveRun(ctx context.Context, run *domain.VerificationRun) error
	GetRun(ctx context.Context, id string) (*domain.VerificationRun, error)
	ListRuns(ctx context.Context, limit int) ([]*domain.VerificationRun, error)

	// Close releases resources
	Close() error
}

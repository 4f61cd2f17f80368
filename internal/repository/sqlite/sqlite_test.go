package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"vtdsapp/internal/domain"
)

func newTestRepo(t *testing.T) *Repository {
	t.Helper()
	repo, err := New(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	t.Cleanup(func() { repo.Close() })
	return repo
}

func testNode(id string, class domain.NodeClass) *domain.VirtualNode {
	node := domain.NewVirtualNode(id, class)
	node.SSHHost = "192.168.0.100"
	node.Addresses = []domain.Address{
		{Network: "scs-net", IP: "10.10.0.10"},
		{Network: "cross-net", IP: "10.30.0.10"},
	}
	return node
}

func TestUpsertAndGetNode(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	node := testNode("scs-0", domain.ClassSCS)
	if err := repo.UpsertNode(ctx, node); err != nil {
		t.Fatalf("UpsertNode() error: %v", err)
	}

	got, err := repo.GetNode(ctx, "scs-0")
	if err != nil {
		t.Fatalf("GetNode() error: %v", err)
	}
	if got == nil {
		t.Fatal("GetNode() returned nil for existing node")
	}
	if got.Class != domain.ClassSCS {
		t.Errorf("class = %q, want scs", got.Class)
	}
	if got.Status != domain.NodeStatusPending {
		t.Errorf("status = %q, want pending", got.Status)
	}
	if len(got.Addresses) != 2 {
		t.Errorf("addresses = %d, want 2", len(got.Addresses))
	}
	if got.AddressOn("cross-net") != "10.30.0.10" {
		t.Errorf("cross-net address = %q, want 10.30.0.10", got.AddressOn("cross-net"))
	}

	// Upsert again with changed address, status preserved
	node.Addresses[0].IP = "10.10.0.99"
	if err := repo.UpsertNode(ctx, node); err != nil {
		t.Fatalf("second UpsertNode() error: %v", err)
	}
	got, _ = repo.GetNode(ctx, "scs-0")
	if got.AddressOn("scs-net") != "10.10.0.99" {
		t.Errorf("updated address = %q, want 10.10.0.99", got.AddressOn("scs-net"))
	}
}

func TestGetNodeMissing(t *testing.T) {
	repo := newTestRepo(t)

	got, err := repo.GetNode(context.Background(), "ghost")
	if err != nil {
		t.Fatalf("GetNode() error: %v", err)
	}
	if got != nil {
		t.Errorf("GetNode() = %+v, want nil for missing node", got)
	}
}

func TestUpdateNodeStatus(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	if err := repo.UpsertNode(ctx, testNode("fsm-0", domain.ClassFSM)); err != nil {
		t.Fatalf("UpsertNode() error: %v", err)
	}

	if err := repo.UpdateNodeStatus(ctx, "fsm-0", domain.NodeStatusDeployed, ""); err != nil {
		t.Fatalf("UpdateNodeStatus() error: %v", err)
	}

	got, _ := repo.GetNode(ctx, "fsm-0")
	if got.Status != domain.NodeStatusDeployed {
		t.Errorf("status = %q, want deployed", got.Status)
	}
	if got.LastDeployed == nil {
		t.Error("LastDeployed should be set after deployed status")
	}

	if err := repo.UpdateNodeStatus(ctx, "fsm-0", domain.NodeStatusFailed, "scp: connection reset"); err != nil {
		t.Fatalf("UpdateNodeStatus() error: %v", err)
	}
	got, _ = repo.GetNode(ctx, "fsm-0")
	if got.LastError != "scp: connection reset" {
		t.Errorf("last error = %q", got.LastError)
	}
	if got.LastDeployed == nil {
		t.Error("LastDeployed should survive a later failure")
	}

	if err := repo.UpdateNodeStatus(ctx, "ghost", domain.NodeStatusDeployed, ""); err == nil {
		t.Error("UpdateNodeStatus() should fail for missing node")
	}
}

func TestListNodes(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	for _, id := range []string{"scs-1", "fsm-0", "scs-0"} {
		if err := repo.UpsertNode(ctx, testNode(id, domain.ClassSCS)); err != nil {
			t.Fatalf("UpsertNode(%s) error: %v", id, err)
		}
	}

	nodes, err := repo.ListNodes(ctx)
	if err != nil {
		t.Fatalf("ListNodes() error: %v", err)
	}
	if len(nodes) != 3 {
		t.Fatalf("ListNodes() returned %d nodes, want 3", len(nodes))
	}
	// Sorted by ID
	if nodes[0].ID != "fsm-0" || nodes[1].ID != "scs-0" || nodes[2].ID != "scs-1" {
		t.Errorf("node order = [%s %s %s]", nodes[0].ID, nodes[1].ID, nodes[2].ID)
	}
}

func TestPlanRoundTrip(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	got, err := repo.GetPlan(ctx)
	if err != nil {
		t.Fatalf("GetPlan() error: %v", err)
	}
	if got != nil {
		t.Fatal("GetPlan() should return nil before prepare")
	}

	plan := domain.NewDeployPlan("/tmp/build", 5000, 5001)
	if err := repo.SavePlan(ctx, plan); err != nil {
		t.Fatalf("SavePlan() error: %v", err)
	}

	got, err = repo.GetPlan(ctx)
	if err != nil {
		t.Fatalf("GetPlan() error: %v", err)
	}
	if got == nil {
		t.Fatal("GetPlan() returned nil after save")
	}
	if got.BuildDir != "/tmp/build" {
		t.Errorf("BuildDir = %q", got.BuildDir)
	}
	fsm := got.AssignmentFor(domain.ClassFSM)
	if fsm == nil || fsm.ServicePort != 5000 {
		t.Errorf("fsm assignment = %+v", fsm)
	}

	if err := repo.ClearPlan(ctx); err != nil {
		t.Fatalf("ClearPlan() error: %v", err)
	}
	got, _ = repo.GetPlan(ctx)
	if got != nil {
		t.Error("GetPlan() should return nil after clear")
	}
}

func TestDeploymentHistory(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	if err := repo.UpsertNode(ctx, testNode("scs-0", domain.ClassSCS)); err != nil {
		t.Fatalf("UpsertNode() error: %v", err)
	}

	first := &domain.Deployment{
		ID:        "dep-1",
		NodeID:    "scs-0",
		Class:     domain.ClassSCS,
		Action:    "deploy",
		Artifact:  "scs-mock",
		Script:    "/root/scs-deploy.sh",
		StartedAt: time.Now().Add(-time.Minute),
	}
	first.Finish(nil)
	if err := repo.RecordDeployment(ctx, first); err != nil {
		t.Fatalf("RecordDeployment() error: %v", err)
	}

	second := &domain.Deployment{
		ID:        "dep-2",
		NodeID:    "scs-0",
		Class:     domain.ClassSCS,
		Action:    "remove",
		StartedAt: time.Now(),
	}
	second.Finish(context.DeadlineExceeded)
	if err := repo.RecordDeployment(ctx, second); err != nil {
		t.Fatalf("RecordDeployment() error: %v", err)
	}

	deps, err := repo.ListDeployments(ctx, "scs-0")
	if err != nil {
		t.Fatalf("ListDeployments() error: %v", err)
	}
	if len(deps) != 2 {
		t.Fatalf("ListDeployments() returned %d, want 2", len(deps))
	}
	// Newest first
	if deps[0].ID != "dep-2" {
		t.Errorf("first deployment = %s, want dep-2", deps[0].ID)
	}
	if deps[0].Success {
		t.Error("failed deployment should not be marked success")
	}
	if deps[0].Error == "" {
		t.Error("failed deployment should carry its error")
	}
	if !deps[1].Success {
		t.Error("successful deployment should be marked success")
	}

	other, err := repo.ListDeployments(ctx, "fsm-0")
	if err != nil {
		t.Fatalf("ListDeployments() error: %v", err)
	}
	if len(other) != 0 {
		t.Errorf("ListDeployments(fsm-0) returned %d, want 0", len(other))
	}
}

func TestRunRoundTrip(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	run := domain.NewVerificationRun("run-1", domain.RunSourceProbe)
	run.AddCheck(domain.CheckResult{
		FromID: "scs-0", ToID: "fsm-0", Network: "cross-net",
		Addr: "10.30.0.20", Port: 5000,
		Expected: true, Reachable: true, LatencyMS: 12,
		CheckedAt: time.Now(),
	})
	run.AddCheck(domain.CheckResult{
		FromID: "nonscs-0", ToID: "fsm-0", Network: "fsm-net",
		Addr: "10.20.0.10", Port: 5000,
		Expected: false, Reachable: true,
		CheckedAt: time.Now(),
	})
	run.Finish()

	if err := repo.SaveRun(ctx, run); err != nil {
		t.Fatalf("SaveRun() error: %v", err)
	}

	got, err := repo.GetRun(ctx, "run-1")
	if err != nil {
		t.Fatalf("GetRun() error: %v", err)
	}
	if got == nil {
		t.Fatal("GetRun() returned nil")
	}
	if got.Total != 2 || got.Passed != 1 || got.Violations != 1 {
		t.Errorf("counters = total %d passed %d violations %d, want 2/1/1",
			got.Total, got.Passed, got.Violations)
	}
	if len(got.Checks) != 2 {
		t.Fatalf("GetRun() returned %d checks, want 2", len(got.Checks))
	}
	if got.FinishedAt == nil {
		t.Error("FinishedAt should round-trip")
	}

	var violation *domain.CheckResult
	for i := range got.Checks {
		if got.Checks[i].Violation() {
			violation = &got.Checks[i]
		}
	}
	if violation == nil {
		t.Fatal("violation check should round-trip")
	}
	if violation.FromID != "nonscs-0" {
		t.Errorf("violation from = %s, want nonscs-0", violation.FromID)
	}

	runs, err := repo.ListRuns(ctx, 10)
	if err != nil {
		t.Fatalf("ListRuns() error: %v", err)
	}
	if len(runs) != 1 {
		t.Fatalf("ListRuns() returned %d, want 1", len(runs))
	}
	if len(runs[0].Checks) != 0 {
		t.Error("ListRuns() should not include checks")
	}

	missing, err := repo.GetRun(ctx, "ghost")
	if err != nil {
		t.Fatalf("GetRun(ghost) error: %v", err)
	}
	if missing != nil {
		t.Error("GetRun(ghost) should return nil")
	}
}

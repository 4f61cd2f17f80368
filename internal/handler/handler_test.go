package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"vtdsapp/internal/domain"
	"vtdsapp/internal/repository"
	"vtdsapp/internal/repository/sqlite"
)

func demoTopology() *domain.Topology {
	topo := domain.NewTopology()

	topo.AddNetwork(&domain.VirtualNetwork{
		Name: "scs-net", CIDR: "10.10.0.0/24",
		Classes: []domain.NodeClass{domain.ClassSCS, domain.ClassNonSCS},
	})
	topo.AddNetwork(&domain.VirtualNetwork{
		Name: "cross-net", CIDR: "10.30.0.0/24",
		Classes: []domain.NodeClass{domain.ClassSCS, domain.ClassFSM},
	})

	scs := domain.NewVirtualNode("scs-0", domain.ClassSCS)
	scs.SSHHost = "192.168.0.10"
	scs.Addresses = []domain.Address{
		{Network: "scs-net", IP: "10.10.0.10"},
		{Network: "cross-net", IP: "10.30.0.10"},
	}
	topo.AddNode(scs)

	nonscs := domain.NewVirtualNode("nonscs-0", domain.ClassNonSCS)
	nonscs.SSHHost = "192.168.0.11"
	nonscs.Addresses = []domain.Address{{Network: "scs-net", IP: "10.10.0.20"}}
	topo.AddNode(nonscs)

	return topo
}

func newTestServer(t *testing.T) (*httptest.Server, *StatusHandler, repository.Repository) {
	t.Helper()
	repo, err := sqlite.New(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("sqlite.New() error: %v", err)
	}
	t.Cleanup(func() { repo.Close() })

	h := NewStatusHandler(repo, demoTopology())

	mux := http.NewServeMux()
	h.Routes(mux)
	srv := httptest.NewServer(Chain(mux, Recover, CORS, Logger))
	t.Cleanup(srv.Close)

	return srv, h, repo
}

func getJSON(t *testing.T, url string, out interface{}) int {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("GET %s: %v", url, err)
	}
	defer resp.Body.Close()
	if out != nil && resp.StatusCode == http.StatusOK {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("decode %s: %v", url, err)
		}
	}
	return resp.StatusCode
}

func TestGetTopology(t *testing.T) {
	srv, _, _ := newTestServer(t)

	var topo domain.Topology
	if status := getJSON(t, srv.URL+"/api/topology", &topo); status != http.StatusOK {
		t.Fatalf("status = %d", status)
	}
	if len(topo.Nodes) != 2 || len(topo.Networks) != 2 {
		t.Errorf("topology has %d nodes, %d networks", len(topo.Nodes), len(topo.Networks))
	}
}

func TestGetPolicy(t *testing.T) {
	srv, _, _ := newTestServer(t)

	var policy struct {
		Pairs  []domain.PolicyPair        `json:"pairs"`
		Matrix map[string]map[string]bool `json:"matrix"`
	}
	if status := getJSON(t, srv.URL+"/api/policy", &policy); status != http.StatusOK {
		t.Fatalf("status = %d", status)
	}
	if len(policy.Pairs) != 2 {
		t.Errorf("policy has %d pairs, want 2", len(policy.Pairs))
	}
	if !policy.Matrix["scs-0"]["nonscs-0"] {
		t.Error("scs-0 should expect to reach nonscs-0")
	}
}

func TestNodeEndpoints(t *testing.T) {
	srv, _, repo := newTestServer(t)
	ctx := context.Background()

	node := domain.NewVirtualNode("scs-0", domain.ClassSCS)
	node.SSHHost = "192.168.0.10"
	node.Addresses = []domain.Address{{Network: "scs-net", IP: "10.10.0.10"}}
	if err := repo.UpsertNode(ctx, node); err != nil {
		t.Fatalf("UpsertNode() error: %v", err)
	}

	var nodes []*domain.VirtualNode
	if status := getJSON(t, srv.URL+"/api/nodes", &nodes); status != http.StatusOK {
		t.Fatalf("list status = %d", status)
	}
	if len(nodes) != 1 {
		t.Fatalf("listed %d nodes, want 1", len(nodes))
	}

	var got domain.VirtualNode
	if status := getJSON(t, srv.URL+"/api/nodes/scs-0", &got); status != http.StatusOK {
		t.Fatalf("get status = %d", status)
	}
	if got.Class != domain.ClassSCS {
		t.Errorf("class = %q", got.Class)
	}

	if status := getJSON(t, srv.URL+"/api/nodes/ghost", nil); status != http.StatusNotFound {
		t.Errorf("missing node status = %d, want 404", status)
	}
}

func TestRunEndpoints(t *testing.T) {
	srv, _, repo := newTestServer(t)
	ctx := context.Background()

	if status := getJSON(t, srv.URL+"/api/runs/ghost", nil); status != http.StatusNotFound {
		t.Errorf("missing run status = %d, want 404", status)
	}

	run := domain.NewVerificationRun("run-1", domain.RunSourceProbe)
	run.AddCheck(domain.CheckResult{
		FromID: "scs-0", ToID: "nonscs-0", Network: "scs-net",
		Addr: "10.10.0.20", Port: 22,
		Expected: true, Reachable: true, CheckedAt: time.Now(),
	})
	run.Finish()
	if err := repo.SaveRun(ctx, run); err != nil {
		t.Fatalf("SaveRun() error: %v", err)
	}

	var got domain.VerificationRun
	if status := getJSON(t, srv.URL+"/api/runs/run-1", &got); status != http.StatusOK {
		t.Fatalf("get run status = %d", status)
	}
	if len(got.Checks) != 1 {
		t.Errorf("run has %d checks, want 1", len(got.Checks))
	}

	var runs []*domain.VerificationRun
	if status := getJSON(t, srv.URL+"/api/runs?limit=5", &runs); status != http.StatusOK {
		t.Fatalf("list runs status = %d", status)
	}
	if len(runs) != 1 {
		t.Errorf("listed %d runs, want 1", len(runs))
	}
}

type fakeRunner struct {
	ran chan struct{}
}

func (f *fakeRunner) Run(ctx context.Context) (*domain.VerificationRun, error) {
	close(f.ran)
	return domain.NewVerificationRun("fake", domain.RunSourceProbe), nil
}

func TestTriggerVerify(t *testing.T) {
	srv, h, _ := newTestServer(t)

	// No verifier wired yet
	resp, err := http.Post(srv.URL+"/api/verify", "application/json", nil)
	if err != nil {
		t.Fatalf("POST /api/verify: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("status without verifier = %d, want 503", resp.StatusCode)
	}

	runner := &fakeRunner{ran: make(chan struct{})}
	h.SetVerifier(runner)

	resp, err = http.Post(srv.URL+"/api/verify", "application/json", nil)
	if err != nil {
		t.Fatalf("POST /api/verify: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusAccepted {
		t.Errorf("status = %d, want 202", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "application/json" {
		t.Errorf("content type = %q, want application/json", ct)
	}

	select {
	case <-runner.ran:
	case <-time.After(2 * time.Second):
		t.Error("verification was not triggered")
	}
}

func TestExportYAML(t *testing.T) {
	srv, _, _ := newTestServer(t)

	resp, err := http.Get(srv.URL + "/api/export/yaml")
	if err != nil {
		t.Fatalf("GET /api/export/yaml: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); !strings.Contains(ct, "yaml") {
		t.Errorf("content type = %q", ct)
	}
}

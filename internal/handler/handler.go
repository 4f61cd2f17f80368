// Package handler exposes the status API of the application layer: the
// topology, node deployment state, deployment history, verification runs
// and the reachability policy, plus a trigger for ad-hoc verification.
package handler

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"strconv"

	"gopkg.in/yaml.v3"

	"vtdsapp/internal/domain"
	"vtdsapp/internal/repository"
)

// VerifyRunner triggers a verification pass
type VerifyRunner interface {
	Run(ctx context.Context) (*domain.VerificationRun, error)
}

// StatusHandler serves the status API
type StatusHandler struct {
	repo     repository.Repository
	topo     *domain.Topology
	policy   *domain.ReachabilityPolicy
	verifier VerifyRunner
}

// NewStatusHandler creates a status handler over the given topology
func NewStatusHandler(repo repository.Repository, topo *domain.Topology) *StatusHandler {
	return &StatusHandler{
		repo:   repo,
		topo:   topo,
		policy: domain.NewReachabilityPolicy(topo),
	}
}

// SetVerifier wires in the verification trigger
func (h *StatusHandler) SetVerifier(v VerifyRunner) {
	h.verifier = v
}

// Routes registers the status API on a mux
func (h *StatusHandler) Routes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/topology", h.GetTopology)
	mux.HandleFunc("GET /api/policy", h.GetPolicy)

	mux.HandleFunc("GET /api/nodes", h.ListNodes)
	mux.HandleFunc("GET /api/nodes/{id}", h.GetNode)
	mux.HandleFunc("GET /api/nodes/{id}/deployments", h.ListDeployments)
	mux.HandleFunc("GET /api/deployments", h.ListDeployments)

	mux.HandleFunc("GET /api/runs", h.ListRuns)
	mux.HandleFunc("GET /api/runs/{id}", h.GetRun)
	mux.HandleFunc("POST /api/verify", h.TriggerVerify)

	mux.HandleFunc("GET /api/export/json", h.ExportJSON)
	mux.HandleFunc("GET /api/export/yaml", h.ExportYAML)
}

// GetTopology returns the configured topology
func (h *StatusHandler) GetTopology(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, h.topo)
}

// GetPolicy returns the expected reachability matrix
func (h *StatusHandler) GetPolicy(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]interface{}{
		"pairs":  h.policy.Pairs(),
		"matrix": h.policy.Matrix(),
	})
}

// ListNodes returns every node with its deployment state
func (h *StatusHandler) ListNodes(w http.ResponseWriter, r *http.Request) {
	nodes, err := h.repo.ListNodes(r.Context())
	if err != nil {
		log.Printf("Failed to list nodes: %v", err)
		http.Error(w, "Failed to list nodes", http.StatusInternalServerError)
		return
	}
	writeJSON(w, nodes)
}

// GetNode returns a single node
func (h *StatusHandler) GetNode(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	node, err := h.repo.GetNode(r.Context(), id)
	if err != nil {
		log.Printf("Failed to get node %s: %v", id, err)
		http.Error(w, "Failed to get node", http.StatusInternalServerError)
		return
	}
	if node == nil {
		http.Error(w, "Node not found", http.StatusNotFound)
		return
	}
	writeJSON(w, node)
}

// ListDeployments returns the deployment history, newest first. With a
// node id in the path it is filtered to that node.
func (h *StatusHandler) ListDeployments(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	deps, err := h.repo.ListDeployments(r.Context(), id)
	if err != nil {
		log.Printf("Failed to list deployments for %s: %v", id, err)
		http.Error(w, "Failed to list deployments", http.StatusInternalServerError)
		return
	}
	writeJSON(w, deps)
}

// ListRuns returns recent verification runs, newest first
func (h *StatusHandler) ListRuns(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			http.Error(w, "Invalid limit", http.StatusBadRequest)
			return
		}
		limit = parsed
	}

	runs, err := h.repo.ListRuns(r.Context(), limit)
	if err != nil {
		log.Printf("Failed to list runs: %v", err)
		http.Error(w, "Failed to list runs", http.StatusInternalServerError)
		return
	}
	writeJSON(w, runs)
}

// GetRun returns one verification run with its checks
func (h *StatusHandler) GetRun(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	run, err := h.repo.GetRun(r.Context(), id)
	if err != nil {
		log.Printf("Failed to get run %s: %v", id, err)
		http.Error(w, "Failed to get run", http.StatusInternalServerError)
		return
	}
	if run == nil {
		http.Error(w, "Run not found", http.StatusNotFound)
		return
	}
	writeJSON(w, run)
}

// TriggerVerify starts a verification pass in the background. Progress is
// observable over the SSE stream and the result lands in /api/runs.
func (h *StatusHandler) TriggerVerify(w http.ResponseWriter, r *http.Request) {
	if h.verifier == nil {
		http.Error(w, "Verification not available", http.StatusServiceUnavailable)
		return
	}

	go func() {
		if _, err := h.verifier.Run(context.Background()); err != nil {
			log.Printf("Triggered verification failed: %v", err)
		}
	}()

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	if err := json.NewEncoder(w).Encode(map[string]string{"status": "verification started"}); err != nil {
		log.Printf("Failed to encode JSON: %v", err)
	}
}

// ExportJSON exports the topology as JSON
func (h *StatusHandler) ExportJSON(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Disposition", "attachment; filename=topology.json")
	writeJSON(w, h.topo)
}

// ExportYAML exports the topology as YAML
func (h *StatusHandler) ExportYAML(w http.ResponseWriter, r *http.Request) {
	data, err := yaml.Marshal(h.topo)
	if err != nil {
		log.Printf("Failed to export YAML: %v", err)
		http.Error(w, "Failed to export YAML", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/x-yaml")
	w.Header().Set("Content-Disposition", "attachment; filename=topology.yaml")
	w.Write(data)
}

func writeJSON(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Printf("Failed to encode JSON: %v", err)
	}
}

package verify

import (
	"context"
	"fmt"
	"log"
	"strconv"
	"time"

	nmap "github.com/Ullaakut/nmap/v3"
	"github.com/google/uuid"

	"vtdsapp/internal/domain"
	"vtdsapp/internal/repository"
	"vtdsapp/internal/service"
)

// Scanner runs an operator-side nmap scan of the cluster's control
// addresses. It cannot see the virtual networks the way an in-cluster
// probe can, so the scan only asserts that each node answers SSH and that
// service-bearing nodes expose their mock service port.
type Scanner struct {
	topo   *domain.Topology
	repo   repository.Repository
	bus    *service.EventBus
	config Config
}

// NewScanner creates an nmap scanner over the given topology
func NewScanner(topo *domain.Topology, repo repository.Repository, bus *service.EventBus, config Config) *Scanner {
	if config.ProbeTimeout <= 0 {
		config.ProbeTimeout = DefaultConfig().ProbeTimeout
	}
	return &Scanner{topo: topo, repo: repo, bus: bus, config: config}
}

// Available reports whether the nmap binary can be invoked
func (s *Scanner) Available(ctx context.Context) bool {
	scanner, err := nmap.NewScanner(
		ctx,
		nmap.WithTargets("localhost"),
		nmap.WithListScan(),
	)
	if err != nil {
		return false
	}
	_, _, err = scanner.Run()
	return err == nil
}

// Run scans every node's control address and records the results as a
// verification run with source "nmap"
func (s *Scanner) Run(ctx context.Context) (*domain.VerificationRun, error) {
	run := domain.NewVerificationRun(uuid.NewString(), domain.RunSourceNmap)
	s.bus.Publish(service.Event{Type: service.EventVerifyStarted, Payload: run.ID})

	for _, node := range s.topo.NodesByClass() {
		for _, check := range s.scanNode(ctx, node) {
			run.AddCheck(check)
			s.bus.Publish(service.Event{Type: service.EventCheckResult, Payload: check})
		}
	}

	run.Finish()
	if err := s.repo.SaveRun(ctx, run); err != nil {
		return run, fmt.Errorf("save scan run: %w", err)
	}

	log.Printf("Nmap scan run %s complete: %d/%d passed, %d violations, %d errors",
		run.ID, run.Passed, run.Total, run.Violations, run.Errors)
	s.bus.Publish(service.Event{Type: service.EventVerifyComplete, Payload: run})
	return run, nil
}

// scanNode scans the ports of interest on one node's control address
func (s *Scanner) scanNode(ctx context.Context, node *domain.VirtualNode) []domain.CheckResult {
	host, sshPort := node.SSHAddr()
	ports := map[int]bool{sshPort: true} // port -> expected open

	servicePort := 0
	switch node.Class.Service() {
	case domain.ServiceFSM:
		servicePort = s.config.FSMPort
	case domain.ServiceSCS:
		servicePort = s.config.SCSPort
	}
	if servicePort != 0 {
		ports[servicePort] = true
	}

	portSpec := strconv.Itoa(sshPort)
	if servicePort != 0 && servicePort != sshPort {
		portSpec += "," + strconv.Itoa(servicePort)
	}

	now := time.Now()
	log.Printf("Nmap: scanning %s (%s) ports %s", node.ID, host, portSpec)

	scanner, err := nmap.NewScanner(
		ctx,
		nmap.WithTargets(host),
		nmap.WithPorts(portSpec),
		nmap.WithSkipHostDiscovery(),
	)
	if err != nil {
		return s.errorChecks(node, ports, now, fmt.Errorf("create scanner: %w", err))
	}

	result, warnings, err := scanner.Run()
	if err != nil {
		return s.errorChecks(node, ports, now, fmt.Errorf("scan failed: %w", err))
	}
	if warnings != nil && len(*warnings) > 0 {
		log.Printf("Nmap: warnings for %s: %v", node.ID, *warnings)
	}

	open := make(map[int]bool)
	for _, h := range result.Hosts {
		for _, p := range h.Ports {
			if p.State.State == "open" {
				open[int(p.ID)] = true
			}
		}
	}

	var checks []domain.CheckResult
	for port, expected := range ports {
		checks = append(checks, domain.CheckResult{
			FromID:    "operator",
			ToID:      node.ID,
			Network:   "control",
			Addr:      host,
			Port:      port,
			Expected:  expected,
			Reachable: open[port],
			CheckedAt: now,
		})
	}
	return checks
}

// errorChecks records a failed scan as probe errors for every port the
// scan was supposed to cover
func (s *Scanner) errorChecks(node *domain.VirtualNode, ports map[int]bool, now time.Time, err error) []domain.CheckResult {
	host, _ := node.SSHAddr()
	var checks []domain.CheckResult
	for port, expected := range ports {
		checks = append(checks, domain.CheckResult{
			FromID:    "operator",
			ToID:      node.ID,
			Network:   "control",
			Addr:      host,
			Port:      port,
			Expected:  expected,
			Error:     err.Error(),
			CheckedAt: now,
		})
	}
	return checks
}

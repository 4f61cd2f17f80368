// Package verify checks the observed connectivity of the demo cluster
// against the reachability policy. The primary mode probes TCP from inside
// each virtual node over SSH, so the observations reflect the virtual
// networks rather than the operator's vantage point; an nmap-based scan
// from the operator side is available as a secondary source.
package verify

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"vtdsapp/internal/cluster"
	"vtdsapp/internal/domain"
	"vtdsapp/internal/repository"
	"vtdsapp/internal/service"
)

// Config tunes a verifier
type Config struct {
	// ProbeTimeout bounds each single TCP connect attempt
	ProbeTimeout time.Duration
	// MaxConcurrent limits parallel probe operations
	MaxConcurrent int
	// FSMPort and SCSPort are the ports the deployed mocks listen on
	FSMPort int
	SCSPort int
}

// DefaultConfig returns sensible defaults
func DefaultConfig() Config {
	return Config{
		ProbeTimeout:  3 * time.Second,
		MaxConcurrent: 10,
		FSMPort:       5000,
		SCSPort:       5000,
	}
}

// Verifier runs isolation verification passes over a topology
type Verifier struct {
	topo    *domain.Topology
	policy  *domain.ReachabilityPolicy
	cluster *cluster.Client
	repo    repository.Repository
	bus     *service.EventBus
	config  Config
}

// New creates a verifier over the given topology and cluster client
func New(topo *domain.Topology, cl *cluster.Client, repo repository.Repository, bus *service.EventBus, config Config) *Verifier {
	if config.MaxConcurrent <= 0 {
		config.MaxConcurrent = DefaultConfig().MaxConcurrent
	}
	if config.ProbeTimeout <= 0 {
		config.ProbeTimeout = DefaultConfig().ProbeTimeout
	}
	return &Verifier{
		topo:    topo,
		policy:  domain.NewReachabilityPolicy(topo),
		cluster: cl,
		repo:    repo,
		bus:     bus,
		config:  config,
	}
}

// Policy returns the reachability policy the verifier checks against
func (v *Verifier) Policy() *domain.ReachabilityPolicy {
	return v.policy
}

// probeTask is one TCP connect check: from one node to one address of
// another node
type probeTask struct {
	fromID   string
	toID     string
	network  string
	addr     string
	port     int
	expected bool
}

// Run executes one full verification pass: every ordered node pair, every
// address the target carries. Each check's expectation comes from network
// membership; a node should reach exactly the addresses on networks it is
// attached to itself.
func (v *Verifier) Run(ctx context.Context) (*domain.VerificationRun, error) {
	run := domain.NewVerificationRun(uuid.NewString(), domain.RunSourceProbe)

	tasks := v.buildTasks()
	log.Printf("Starting verification run %s: %d checks across %d nodes",
		run.ID, len(tasks), len(v.topo.Nodes))
	v.bus.Publish(service.Event{Type: service.EventVerifyStarted, Payload: run.ID})

	conns, connErrs := v.connectAll(ctx)
	defer func() {
		for _, conn := range conns {
			conn.Close()
		}
	}()

	workCh := make(chan probeTask, len(tasks))
	resultCh := make(chan domain.CheckResult, len(tasks))

	var wg sync.WaitGroup
	for i := 0; i < v.config.MaxConcurrent; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for task := range workCh {
				select {
				case <-ctx.Done():
					return
				default:
					resultCh <- v.probe(ctx, task, conns[task.fromID], connErrs[task.fromID])
				}
			}
		}()
	}

	for _, task := range tasks {
		workCh <- task
	}
	close(workCh)

	go func() {
		wg.Wait()
		close(resultCh)
	}()

	for check := range resultCh {
		run.AddCheck(check)
		v.bus.Publish(service.Event{Type: service.EventCheckResult, Payload: check})
	}

	run.Finish()
	if err := v.repo.SaveRun(ctx, run); err != nil {
		return run, fmt.Errorf("save verification run: %w", err)
	}

	log.Printf("Verification run %s complete: %d/%d passed, %d violations, %d errors",
		run.ID, run.Passed, run.Total, run.Violations, run.Errors)
	v.bus.Publish(service.Event{Type: service.EventVerifyComplete, Payload: run})
	return run, nil
}

// buildTasks enumerates every check of one pass
func (v *Verifier) buildTasks() []probeTask {
	var tasks []probeTask
	for _, pair := range v.policy.Pairs() {
		to := v.topo.GetNode(pair.ToID)
		if to == nil {
			continue
		}
		shared := make(map[string]bool, len(pair.Networks))
		for _, n := range pair.Networks {
			shared[n] = true
		}
		for _, addr := range to.Addresses {
			tasks = append(tasks, probeTask{
				fromID:   pair.FromID,
				toID:     pair.ToID,
				network:  addr.Network,
				addr:     addr.IP,
				port:     v.targetPort(to),
				expected: shared[addr.Network],
			})
		}
	}
	return tasks
}

// targetPort picks the port to probe on a node: the mock service port for
// service-bearing classes, SSH for the isolated ones. Every node runs sshd
// on its virtual addresses, so port 22 is always a valid liveness target.
func (v *Verifier) targetPort(node *domain.VirtualNode) int {
	switch node.Class.Service() {
	case domain.ServiceFSM:
		return v.config.FSMPort
	case domain.ServiceSCS:
		return v.config.SCSPort
	default:
		return 22
	}
}

// connectAll opens an SSH connection to every node. Nodes that cannot be
// reached are recorded so their checks report probe errors instead of
// failing the whole run.
func (v *Verifier) connectAll(ctx context.Context) (map[string]*cluster.Connection, map[string]error) {
	conns := make(map[string]*cluster.Connection)
	errs := make(map[string]error)

	for _, node := range v.cluster.VirtualNodes() {
		conn, err := v.cluster.Connect(ctx, node)
		if err != nil {
			log.Printf("Cannot connect to %s for verification: %v", node.ID, err)
			errs[node.ID] = err
			continue
		}
		conns[node.ID] = conn
	}
	return conns, errs
}

// probe runs one check over an open connection
func (v *Verifier) probe(ctx context.Context, task probeTask, conn *cluster.Connection, connErr error) domain.CheckResult {
	check := domain.CheckResult{
		FromID:    task.fromID,
		ToID:      task.toID,
		Network:   task.network,
		Addr:      task.addr,
		Port:      task.port,
		Expected:  task.expected,
		CheckedAt: time.Now(),
	}

	if conn == nil {
		if connErr != nil {
			check.Error = fmt.Sprintf("ssh connect: %v", connErr)
		} else {
			check.Error = "no connection to source node"
		}
		return check
	}

	reachable, latency, err := conn.ProbeTCP(ctx, task.addr, task.port, v.config.ProbeTimeout)
	if err != nil {
		check.Error = err.Error()
		return check
	}

	check.Reachable = reachable
	check.LatencyMS = latency.Milliseconds()
	return check
}

// Package layer implements the vTDS application layer lifecycle: prepare,
// validate, deploy and remove. Prepare renders the layer definition into
// the build directory, deploy pushes the mock services to the virtual
// nodes over SSH and starts them, remove tears them down again.
package layer

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"vtdsapp/internal/cluster"
	"vtdsapp/internal/config"
	"vtdsapp/internal/domain"
	"vtdsapp/internal/repository"
	"vtdsapp/internal/service"
)

// Lifecycle ordering errors
var (
	ErrNotPrepared = errors.New("application has not been prepared")
)

// Application drives the demo application layer against a vTDS cluster
type Application struct {
	cfg     *config.Config
	topo    *domain.Topology
	repo    repository.Repository
	bus     *service.EventBus
	cluster *cluster.Client

	mu   sync.Mutex
	plan *domain.DeployPlan
}

// New builds an application layer driver from the loaded configuration.
// The SSH private key (when configured) is read here so a bad path fails
// fast rather than at deploy time.
func New(cfg *config.Config, repo repository.Repository, bus *service.EventBus) (*Application, error) {
	topo, err := cfg.BuildTopology()
	if err != nil {
		return nil, fmt.Errorf("build topology: %w", err)
	}

	clusterCfg := cluster.Config{
		User:           cfg.SSH.User,
		Password:       cfg.SSH.Password,
		ConnectTimeout: cfg.ConnectTimeout(),
		CommandTimeout: cfg.CommandTimeout(),
	}
	if cfg.SSH.PrivateKeyPath != "" {
		key, err := os.ReadFile(cfg.SSH.PrivateKeyPath)
		if err != nil {
			return nil, fmt.Errorf("read ssh private key: %w", err)
		}
		clusterCfg.PrivateKey = key
	}

	return &Application{
		cfg:     cfg,
		topo:    topo,
		repo:    repo,
		bus:     bus,
		cluster: cluster.New(topo, clusterCfg),
	}, nil
}

// Topology returns the topology the layer operates on
func (a *Application) Topology() *domain.Topology {
	return a.topo
}

// Cluster returns the SSH client over the layer's topology
func (a *Application) Cluster() *cluster.Client {
	return a.cluster
}

// currentPlan returns the in-memory plan, falling back to the one persisted
// by an earlier prepare. Returns ErrNotPrepared when neither exists.
func (a *Application) currentPlan(ctx context.Context) (*domain.DeployPlan, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.plan != nil {
		return a.plan, nil
	}
	plan, err := a.repo.GetPlan(ctx)
	if err != nil {
		return nil, fmt.Errorf("load deploy plan: %w", err)
	}
	if plan == nil {
		return nil, ErrNotPrepared
	}
	a.plan = plan
	return plan, nil
}

// Prepare creates the application layer definition: the deploy plan plus
// the rendered deploy scripts in the build directory. It records every
// topology node in the state store so later operations can track status.
func (a *Application) Prepare(ctx context.Context) (*domain.DeployPlan, error) {
	if err := os.MkdirAll(a.cfg.BuildDir, 0o755); err != nil {
		return nil, fmt.Errorf("create build dir %s: %w", a.cfg.BuildDir, err)
	}

	plan := domain.NewDeployPlan(a.cfg.BuildDir, a.cfg.Services.FSMPort, a.cfg.Services.SCSPort)
	if err := renderScripts(plan); err != nil {
		return nil, err
	}

	for _, id := range a.topo.NodeIDs() {
		node := a.topo.GetNode(id)
		if err := a.repo.UpsertNode(ctx, node); err != nil {
			return nil, fmt.Errorf("record node %s: %w", id, err)
		}
	}

	if err := a.repo.SavePlan(ctx, plan); err != nil {
		return nil, fmt.Errorf("save deploy plan: %w", err)
	}

	a.mu.Lock()
	a.plan = plan
	a.mu.Unlock()

	log.Printf("Prepared application layer: %d classes, build dir %s",
		len(plan.Assignments), plan.BuildDir)
	a.bus.Publish(service.Event{Type: service.EventLayerPrepared, Payload: plan})
	return plan, nil
}

// Validate checks that a prepared layer definition can actually deploy:
// the topology is sound and every artifact the plan references exists in
// the build directory.
func (a *Application) Validate(ctx context.Context) error {
	plan, err := a.currentPlan(ctx)
	if err != nil {
		if errors.Is(err, ErrNotPrepared) {
			return fmt.Errorf("cannot validate an unprepared application, run prepare first: %w", err)
		}
		return err
	}

	if err := a.topo.Validate(); err != nil {
		return fmt.Errorf("topology: %w", err)
	}

	var missing []string
	for _, assignment := range plan.Assignments {
		for _, file := range assignment.Files {
			if _, err := os.Stat(file.Source); err != nil {
				missing = append(missing, file.Source)
			}
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("build artifacts missing from %s: %v (build the mock binaries first)",
			plan.BuildDir, missing)
	}

	log.Printf("Validated application layer against %d nodes", len(a.topo.Nodes))
	a.bus.Publish(service.Event{Type: service.EventLayerValidated})
	return nil
}

// Deploy pushes the mock service binary and deploy script to every
// service-bearing node and runs the install command. Each class deploys
// as a batch: connect to all of its nodes, stage the same files through
// every connection, then run the install command everywhere. A failure
// in one class does not stop the other; Deploy reports the first error.
func (a *Application) Deploy(ctx context.Context) error {
	plan, err := a.currentPlan(ctx)
	if err != nil {
		if errors.Is(err, ErrNotPrepared) {
			return fmt.Errorf("cannot deploy an unprepared application, run prepare first: %w", err)
		}
		return err
	}

	g := &errgroup.Group{}
	g.SetLimit(a.deployLimit())

	for class, assignment := range plan.Assignments {
		g.Go(func() error {
			return a.deployClass(ctx, class, assignment)
		})
	}

	return g.Wait()
}

func (a *Application) deployLimit() int {
	if n := a.cfg.Behavior.MaxConcurrentDeploys; n > 0 {
		return n
	}
	return config.DefaultMaxDeploys
}

func (a *Application) deployClass(ctx context.Context, class domain.NodeClass, assignment *domain.NodeAssignment) error {
	nodes := a.topo.NodesByClass(class)
	if len(nodes) == 0 {
		return nil
	}

	for _, node := range nodes {
		if err := a.repo.UpdateNodeStatus(ctx, node.ID, domain.NodeStatusDeploying, ""); err != nil {
			return err
		}
		a.bus.Publish(service.Event{Type: service.EventNodeDeployStarted, Payload: node.ID})
	}

	started := time.Now()
	err := a.pushAndInstall(ctx, class, assignment)
	for _, node := range nodes {
		a.finishNode(ctx, node, assignment, "deploy", started, err)
	}
	if err != nil {
		return fmt.Errorf("deploy %s nodes: %w", class, err)
	}
	return nil
}

// pushAndInstall stages the assignment's files on every node of the class
// and runs the install command through each connection
func (a *Application) pushAndInstall(ctx context.Context, class domain.NodeClass, assignment *domain.NodeAssignment) error {
	conns, err := a.cluster.ConnectNodes(ctx, class)
	if err != nil {
		return err
	}
	defer conns.Close()
	log.Printf("Connected to %d %s nodes", len(conns.All()), class)

	for _, file := range assignment.Files {
		log.Printf("Copying %s to %s nodes as %s", file.Source, class, file.Dest)
		if err := conns.CopyTo(ctx, file.Source, file.Dest, 0o755); err != nil {
			return fmt.Errorf("copy %s: %w", file.Tag, err)
		}
	}

	cmd := assignment.DeployCommand()
	log.Printf("Running deploy script on %s nodes: %s", class, cmd)
	return conns.RunCommand(ctx, cmd)
}

// finishNode records the outcome of a batch action against one node: the
// deployment history row, the node status and the matching event
func (a *Application) finishNode(ctx context.Context, node *domain.VirtualNode, assignment *domain.NodeAssignment, action string, started time.Time, err error) {
	dep := &domain.Deployment{
		ID:        uuid.NewString(),
		NodeID:    node.ID,
		Class:     node.Class,
		Action:    action,
		Script:    assignment.DeployScript,
		StartedAt: started,
	}
	if action == "deploy" {
		dep.Artifact = string(assignment.Service)
	}
	dep.Finish(err)
	if recErr := a.repo.RecordDeployment(ctx, dep); recErr != nil {
		log.Printf("Failed to record %s for %s: %v", action, node.ID, recErr)
	}

	if err != nil {
		if stErr := a.repo.UpdateNodeStatus(ctx, node.ID, domain.NodeStatusFailed, err.Error()); stErr != nil {
			log.Printf("Failed to mark %s failed: %v", node.ID, stErr)
		}
		if action == "deploy" {
			a.bus.Publish(service.Event{Type: service.EventNodeDeployFailed, Payload: node.ID})
		}
		return
	}

	status := domain.NodeStatusDeployed
	event := service.EventNodeDeployFinished
	if action == "remove" {
		status = domain.NodeStatusRemoved
		event = service.EventNodeRemoved
	}
	if stErr := a.repo.UpdateNodeStatus(ctx, node.ID, status, ""); stErr != nil {
		log.Printf("Failed to mark %s %s: %v", node.ID, status, stErr)
	}
	a.bus.Publish(service.Event{Type: event, Payload: node.ID})
}

// Remove tears the deployed workloads down, marks the nodes removed and
// clears the persisted plan.
func (a *Application) Remove(ctx context.Context) error {
	plan, err := a.currentPlan(ctx)
	if err != nil {
		if errors.Is(err, ErrNotPrepared) {
			return fmt.Errorf("cannot remove an unprepared application, run prepare first: %w", err)
		}
		return err
	}

	g := &errgroup.Group{}
	g.SetLimit(a.deployLimit())

	for class, assignment := range plan.Assignments {
		g.Go(func() error {
			return a.removeClass(ctx, class, assignment)
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	if err := a.repo.ClearPlan(ctx); err != nil {
		return fmt.Errorf("clear deploy plan: %w", err)
	}
	a.mu.Lock()
	a.plan = nil
	a.mu.Unlock()

	log.Println("Removed application layer workloads")
	return nil
}

func (a *Application) removeClass(ctx context.Context, class domain.NodeClass, assignment *domain.NodeAssignment) error {
	nodes := a.topo.NodesByClass(class)
	if len(nodes) == 0 {
		return nil
	}

	started := time.Now()
	err := a.runRemove(ctx, class, assignment)
	for _, node := range nodes {
		a.finishNode(ctx, node, assignment, "remove", started, err)
	}
	if err != nil {
		return fmt.Errorf("remove %s nodes: %w", class, err)
	}
	return nil
}

func (a *Application) runRemove(ctx context.Context, class domain.NodeClass, assignment *domain.NodeAssignment) error {
	conns, err := a.cluster.ConnectNodes(ctx, class)
	if err != nil {
		return err
	}
	defer conns.Close()

	cmd := assignment.RemoveCommand()
	log.Printf("Running remove on %s nodes: %s", class, cmd)
	return conns.RunCommand(ctx, cmd)
}

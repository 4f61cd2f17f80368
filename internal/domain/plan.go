package domain

import (
	"fmt"
	"path"
	"time"
)

// RemoteStageDir is where artifacts land on the virtual nodes
const RemoteStageDir = "/root"

// FileCopy names one file pushed to a node during deployment
type FileCopy struct {
	Source string `json:"source"` // Path in the build directory
	Dest   string `json:"dest"`   // Absolute path on the node
	Tag    string `json:"tag"`    // Short label used in logs
}

// NodeAssignment describes what gets deployed to nodes of one class
type NodeAssignment struct {
	Class        NodeClass   `json:"class"`
	Service      ServiceKind `json:"service"`
	Files        []FileCopy  `json:"files"`
	DeployScript string      `json:"deploy_script"` // Absolute path on the node
	ServicePort  int         `json:"service_port"`
}

// DeployCommand returns the command run on the node after files are staged
func (a *NodeAssignment) DeployCommand() string {
	return fmt.Sprintf("chmod 755 %s && %s install -p %d",
		a.DeployScript, a.DeployScript, a.ServicePort)
}

// RemoveCommand returns the command that tears the workload down
func (a *NodeAssignment) RemoveCommand() string {
	return fmt.Sprintf("test -x %s && %s remove", a.DeployScript, a.DeployScript)
}

// DeployPlan maps node classes to their deployment assignments. Only SCS
// and FSM nodes carry a workload; the plan has no entries for the
// isolated classes.
type DeployPlan struct {
	BuildDir    string                        `json:"build_dir"`
	Assignments map[NodeClass]*NodeAssignment `json:"assignments"`
	CreatedAt   time.Time                     `json:"created_at"`
}

// NewDeployPlan builds the standard demo plan: each service-bearing class
// gets its mock binary and a deploy script staged under RemoteStageDir.
func NewDeployPlan(buildDir string, fsmPort, scsPort int) *DeployPlan {
	plan := &DeployPlan{
		BuildDir:    buildDir,
		Assignments: make(map[NodeClass]*NodeAssignment),
		CreatedAt:   time.Now(),
	}

	ports := map[NodeClass]int{ClassFSM: fsmPort, ClassSCS: scsPort}
	for _, class := range []NodeClass{ClassFSM, ClassSCS} {
		service := class.Service()
		scriptName := string(class) + "-deploy.sh"
		plan.Assignments[class] = &NodeAssignment{
			Class:   class,
			Service: service,
			Files: []FileCopy{
				{
					Source: path.Join(buildDir, string(service)),
					Dest:   path.Join(RemoteStageDir, string(service)),
					Tag:    string(service),
				},
				{
					Source: path.Join(buildDir, scriptName),
					Dest:   path.Join(RemoteStageDir, scriptName),
					Tag:    string(class) + "-deploy",
				},
			},
			DeployScript: path.Join(RemoteStageDir, scriptName),
			ServicePort:  ports[class],
		}
	}

	return plan
}

// AssignmentFor returns the assignment for a node's class, or nil when the
// class carries no workload
func (p *DeployPlan) AssignmentFor(class NodeClass) *NodeAssignment {
	return p.Assignments[class]
}

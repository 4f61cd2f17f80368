package domain

import "fmt"

// NodeClass identifies the role a virtual node plays in the demo topology
type NodeClass string

const (
	ClassSCS    NodeClass = "scs"
	ClassNonSCS NodeClass = "non-scs"
	ClassFSM    NodeClass = "fsm"
	ClassNonFSM NodeClass = "non-fsm"
)

// ServiceKind identifies which mock service a node class runs
type ServiceKind string

const (
	ServiceFSM  ServiceKind = "fsm-mock"
	ServiceSCS  ServiceKind = "scs-mock"
	ServiceNone ServiceKind = ""
)

// AllClasses lists every valid node class in a stable order
var AllClasses = []NodeClass{ClassSCS, ClassNonSCS, ClassFSM, ClassNonFSM}

// ParseNodeClass converts a string into a NodeClass
func ParseNodeClass(s string) (NodeClass, error) {
	switch NodeClass(s) {
	case ClassSCS, ClassNonSCS, ClassFSM, ClassNonFSM:
		return NodeClass(s), nil
	}
	return "", fmt.Errorf("unknown node class %q", s)
}

// Valid reports whether the class is one of the four demo classes
func (c NodeClass) Valid() bool {
	_, err := ParseNodeClass(string(c))
	return err == nil
}

// Service returns the mock service deployed to nodes of this class.
// Non-SCS and non-FSM nodes carry no workload; they exist to demonstrate
// isolation.
func (c NodeClass) Service() ServiceKind {
	switch c {
	case ClassFSM:
		return ServiceFSM
	case ClassSCS:
		return ServiceSCS
	}
	return ServiceNone
}

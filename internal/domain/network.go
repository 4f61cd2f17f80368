package domain

// VirtualNetwork represents a logical network segment provisioned by the
// lower vTDS layers. Classes lists the node classes with an interface on
// this network.
type VirtualNetwork struct {
	Name        string      `json:"name" yaml:"name"`
	CIDR        string      `json:"cidr" yaml:"cidr"`
	Classes     []NodeClass `json:"classes" yaml:"classes"`
	Description string      `json:"description,omitempty" yaml:"description,omitempty"`
}

// HasClass reports whether the given class is a member of this network
func (n *VirtualNetwork) HasClass(c NodeClass) bool {
	for _, member := range n.Classes {
		if member == c {
			return true
		}
	}
	return false
}

package domain

import "sort"

// ReachabilityPolicy derives the expected connectivity of the demo cluster
// from network membership: two distinct nodes can reach each other exactly
// when they share a virtual network. SCS and FSM nodes share the cross
// network, so they see each other across sides; non-SCS and non-FSM nodes
// only see peers on their own side network.
type ReachabilityPolicy struct {
	topo *Topology
}

// PolicyPair is one ordered (source, target) entry of the expected
// reachability matrix
type PolicyPair struct {
	FromID   string   `json:"from_id"`
	ToID     string   `json:"to_id"`
	Networks []string `json:"networks,omitempty"`
	Expected bool     `json:"expected"`
}

// NewReachabilityPolicy creates a policy over the given topology
func NewReachabilityPolicy(topo *Topology) *ReachabilityPolicy {
	return &ReachabilityPolicy{topo: topo}
}

// SharedNetworks returns the names of networks both nodes have an address
// on, in sorted order
func (p *ReachabilityPolicy) SharedNetworks(fromID, toID string) []string {
	from := p.topo.GetNode(fromID)
	to := p.topo.GetNode(toID)
	if from == nil || to == nil {
		return nil
	}

	var shared []string
	for _, network := range from.Networks() {
		if to.AddressOn(network) != "" {
			shared = append(shared, network)
		}
	}
	sort.Strings(shared)
	return shared
}

// Expected reports whether traffic from one node should reach the other
func (p *ReachabilityPolicy) Expected(fromID, toID string) bool {
	if fromID == toID {
		return false
	}
	return len(p.SharedNetworks(fromID, toID)) > 0
}

// Pairs enumerates every ordered pair of distinct nodes with its expected
// reachability, in deterministic order
func (p *ReachabilityPolicy) Pairs() []PolicyPair {
	ids := p.topo.NodeIDs()

	var pairs []PolicyPair
	for _, from := range ids {
		for _, to := range ids {
			if from == to {
				continue
			}
			shared := p.SharedNetworks(from, to)
			pairs = append(pairs, PolicyPair{
				FromID:   from,
				ToID:     to,
				Networks: shared,
				Expected: len(shared) > 0,
			})
		}
	}
	return pairs
}

// Matrix returns the expected reachability as from -> to -> expected
func (p *ReachabilityPolicy) Matrix() map[string]map[string]bool {
	matrix := make(map[string]map[string]bool)
	for _, pair := range p.Pairs() {
		row := matrix[pair.FromID]
		if row == nil {
			row = make(map[string]bool)
			matrix[pair.FromID] = row
		}
		row[pair.ToID] = pair.Expected
	}
	return matrix
}

// Package domain defines the core domain types for the vTDS demo application layer.
//
// This package contains the entities that describe the demo cluster: virtual
// networks, virtual nodes and their classes, the reachability policy derived
// from network membership, deployment plans, and verification results.
//
// # Core Types
//
// VirtualNode represents a node provisioned by the lower vTDS layers, with a
// class (scs, non-scs, fsm, non-fsm) and one address per virtual network it
// belongs to.
//
// VirtualNetwork represents a logical network segment connecting a subset of
// node classes.
//
// Topology holds the complete set of networks and nodes and validates their
// structural consistency.
//
// # Reachability Policy
//
// ReachabilityPolicy encodes the connectivity isolation rule of the demo:
// two nodes can reach each other exactly when they share a virtual network.
// SCS and FSM nodes share a cross network, so they see each other; non-SCS
// and non-FSM nodes only see peers on their own side.
//
// # Design Principles
//
// - No database or external dependencies
// - Pure domain logic without infrastructure concerns
// - Rich type system with meaningful constants and enumerations
package domain

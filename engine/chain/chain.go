// Package chain defines the RuleChain data model and the concurrent Store
// that holds every loaded chain plus its in-flight execution counter.
package chain

import (
	"encoding/json"
)

// Node is a single vertex in a chain's graph.
type Node struct {
	ID      string          `json:"id"`
	ChainID string          `json:"chain_id"`
	Type    string          `json:"type_name"`
	Config  json.RawMessage `json:"config"`
	Layout  Layout          `json:"layout"`
}

// Layout is purely cosmetic positioning carried through for editor clients;
// the engine never reads it.
type Layout struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Connection is a labeled directed edge between two nodes. TypeName is the
// branch label the dispatcher matches against a message's branch_name.
type Connection struct {
	FromID   string `json:"from_id"`
	ToID     string `json:"to_id"`
	TypeName string `json:"type_name"`
}

// Metadata carries the chain's version and timestamps.
type Metadata struct {
	Version   uint64 `json:"version"`
	CreatedAt int64  `json:"created_at"`
	UpdatedAt int64  `json:"updated_at"`
}

// Chain is a DAG of Nodes connected by labeled Connections.
type Chain struct {
	ID          string       `json:"id"`
	Name        string       `json:"name"`
	Root        bool         `json:"root"`
	Nodes       []Node       `json:"nodes"`
	Connections []Connection `json:"connections"`
	Metadata    Metadata     `json:"metadata"`
}

// NodeByID finds a node by id, or false if absent.
func (c Chain) NodeByID(id string) (Node, bool) {
	for _, n := range c.Nodes {
		if n.ID == id {
			return n, true
		}
	}
	return Node{}, false
}

// OutgoingFrom returns every connection whose FromID matches nodeID, in
// declaration order (callers rely on this order for branch tie-breaks).
func (c Chain) OutgoingFrom(nodeID string) []Connection {
	var out []Connection
	for _, conn := range c.Connections {
		if conn.FromID == nodeID {
			out = append(out, conn)
		}
	}
	return out
}

// IncomingTo returns every connection whose ToID matches nodeID.
func (c Chain) IncomingTo(nodeID string) []Connection {
	var out []Connection
	for _, conn := range c.Connections {
		if conn.ToID == nodeID {
			out = append(out, conn)
		}
	}
	return out
}

// StartNode returns the chain's designated start node: the first element of
// Nodes, per the data model's "first node is the designated Start" rule.
func (c Chain) StartNode() (Node, bool) {
	if len(c.Nodes) == 0 {
		return Node{}, false
	}
	return c.Nodes[0], true
}

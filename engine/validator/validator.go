// Package validator implements the three-pass chain validation run during
// load_chain: structural checks, Head/Tail role constraints, and cycle
// detection spanning both a chain's own node graph and cross-chain subchain
// references.
package validator

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/lyzr/rulechain/engine/chain"
	"github.com/lyzr/rulechain/engine/registry"
	"github.com/lyzr/rulechain/engine/ruleerr"
)

// ChainLookup resolves an already-loaded chain by id, the interface the
// validator needs from the store without importing it back (chain already
// depends on nothing here, so this is just to keep the signature narrow and
// test-friendly).
type ChainLookup interface {
	Get(id string) (chain.Chain, bool)
}

// Validate runs all three passes against c. store is used to resolve
// subchain targets for cross-chain cycle detection. It may already hold an
// older definition under c.ID (a reload or a patch); cycle detection always
// uses c itself for that id, never the stored copy.
func Validate(c chain.Chain, reg *registry.Registry, store ChainLookup) error {
	if err := validateStructural(c, reg); err != nil {
		return err
	}
	if err := validateRoles(c, reg); err != nil {
		return err
	}
	if err := validateCycles(c, reg, store); err != nil {
		return err
	}
	return nil
}

func validateStructural(c chain.Chain, reg *registry.Registry) error {
	if len(c.Nodes) == 0 {
		return ruleerr.New(ruleerr.KindConfigError, "chain %q has no nodes", c.ID)
	}

	start, _ := c.StartNode()
	startDesc, ok := reg.Descriptor(start.Type)
	if !ok {
		return ruleerr.New(ruleerr.KindConfigError, "start node type %q is not registered", start.Type)
	}
	if startDesc.Role != registry.RoleHead {
		return ruleerr.New(ruleerr.KindConfigError, "start node %q has type %q with role %s, want Head", start.ID, start.Type, startDesc.Role)
	}

	ids := make(map[string]bool, len(c.Nodes))
	for _, n := range c.Nodes {
		if _, ok := reg.Descriptor(n.Type); !ok {
			return ruleerr.New(ruleerr.KindConfigError, "node %q has unregistered type %q", n.ID, n.Type)
		}
		ids[n.ID] = true
	}

	for _, conn := range c.Connections {
		if !ids[conn.FromID] {
			return ruleerr.New(ruleerr.KindConfigError, "connection references unknown from_id %q", conn.FromID)
		}
		if !ids[conn.ToID] {
			return ruleerr.New(ruleerr.KindConfigError, "connection references unknown to_id %q", conn.ToID)
		}
	}
	return nil
}

func validateRoles(c chain.Chain, reg *registry.Registry) error {
	for _, n := range c.Nodes {
		desc, _ := reg.Descriptor(n.Type)
		switch desc.Role {
		case registry.RoleHead:
			if len(c.IncomingTo(n.ID)) != 0 {
				return ruleerr.New(ruleerr.KindConfigError, "node %q has Head-role type %q but has incoming connections", n.ID, n.Type)
			}
		case registry.RoleTail:
			if len(c.OutgoingFrom(n.ID)) != 0 {
				return ruleerr.New(ruleerr.KindConfigError, "node %q has Tail-role type %q but has outgoing connections", n.ID, n.Type)
			}
		}
	}
	return nil
}

// color states for the 3-color DFS.
type color int

const (
	white color = iota // unvisited
	gray               // on-stack
	black              // done
)

// validateCycles runs node-level cycle detection via 3-color DFS, and
// chain-level cycle detection through subchain nodes using an explicit
// chain-stack, exactly mirroring the algorithm the original engine uses so
// cycle detection stays idempotent regardless of chain load order: a
// forward reference to a not-yet-loaded chain is simply skipped (the cycle
// surfaces later, when that chain itself loads and closes the loop).
func validateCycles(c chain.Chain, reg *registry.Registry, store ChainLookup) error {
	d := &dfs{
		reg:        reg,
		store:      store,
		colors:     make(map[string]color),
		chainStack: []string{c.ID},
		loaded:     map[string]chain.Chain{c.ID: c},
	}
	for _, n := range c.Nodes {
		if d.colors[chainNodeKey(c.ID, n.ID)] == white {
			if err := d.visit(c, n, nil); err != nil {
				return err
			}
		}
	}
	return nil
}

type dfs struct {
	reg        *registry.Registry
	store      ChainLookup
	colors     map[string]color
	chainStack []string
	loaded     map[string]chain.Chain
}

func chainNodeKey(chainID, nodeID string) string { return chainID + "/" + nodeID }

func (d *dfs) visit(c chain.Chain, n chain.Node, path []string) error {
	key := chainNodeKey(c.ID, n.ID)
	d.colors[key] = gray
	path = append(path, n.ID)

	if n.Type == "subchain" {
		if err := d.visitSubchain(n, path); err != nil {
			return err
		}
	}

	for _, conn := range c.OutgoingFrom(n.ID) {
		nextKey := chainNodeKey(c.ID, conn.ToID)
		switch d.colors[nextKey] {
		case gray:
			cyclePath := append(append([]string{}, path...), conn.ToID)
			return ruleerr.New(ruleerr.KindCircularDependency, "cycle detected: %s", strings.Join(cyclePath, " -> "))
		case white:
			next, ok := c.NodeByID(conn.ToID)
			if !ok {
				continue
			}
			if err := d.visit(c, next, path); err != nil {
				return err
			}
		}
	}

	d.colors[key] = black
	return nil
}

func (d *dfs) visitSubchain(n chain.Node, path []string) error {
	var cfg struct {
		ChainID string `json:"chain_id"`
	}
	if err := json.Unmarshal(n.Config, &cfg); err != nil || cfg.ChainID == "" {
		return nil
	}

	for _, onStack := range d.chainStack {
		if onStack == cfg.ChainID {
			cyclePath := append(append([]string{}, d.chainStack...), cfg.ChainID)
			return ruleerr.New(ruleerr.KindCircularDependency, "chain cycle detected: %s", strings.Join(cyclePath, " -> "))
		}
	}

	target, ok := d.loaded[cfg.ChainID]
	if !ok {
		target, ok = d.store.Get(cfg.ChainID)
		if !ok {
			// Forward reference to a chain not yet loaded: skip. The cycle,
			// if any, is caught when the missing chain is itself loaded.
			return nil
		}
		d.loaded[cfg.ChainID] = target
	}

	d.chainStack = append(d.chainStack, cfg.ChainID)
	defer func() { d.chainStack = d.chainStack[:len(d.chainStack)-1] }()

	start, ok := target.StartNode()
	if !ok {
		return nil
	}
	if d.colors[chainNodeKey(target.ID, start.ID)] != white {
		return nil
	}
	return d.visit(target, start, path)
}

// Describe is a small helper for error messages / debugging that renders a
// chain's node ids in declaration order.
func Describe(c chain.Chain) string {
	ids := make([]string, len(c.Nodes))
	for i, n := range c.Nodes {
		ids[i] = n.ID
	}
	return fmt.Sprintf("chain %s [%s]", c.ID, strings.Join(ids, ", "))
}

// Package dispatcher implements the per-message graph walk: branch
// selection, fan-out/fan-in coordination, sub-chain delegation, and the
// interceptor pipeline wrapped around every node step.
package dispatcher

import (
	"context"
	"sync"

	"github.com/lyzr/rulechain/common/logger"
	"github.com/lyzr/rulechain/engine/chain"
	"github.com/lyzr/rulechain/engine/interceptor"
	"github.com/lyzr/rulechain/engine/message"
	"github.com/lyzr/rulechain/engine/registry"
	"github.com/lyzr/rulechain/engine/ruleerr"
)

// EventPublisher is the ambient lifecycle-event sink the dispatcher reports
// to on a best-effort basis (engine/events.Publisher satisfies this; nil is
// a valid, fully-functional Dispatcher with events disabled).
type EventPublisher interface {
	NodeStarted(chainID, nodeID, nodeType string)
	NodeCompleted(chainID, nodeID, nodeType string, err error)
}

// Dispatcher owns no state of its own beyond the join map; the chain store,
// registry, and interceptor manager are injected so the HTTP admin layer and
// tests can share or substitute them freely.
type Dispatcher struct {
	Store        *chain.Store
	Registry     *registry.Registry
	Interceptors *interceptor.Manager
	Events       EventPublisher
	Log          *logger.Logger

	joins *joinState
}

// New builds a Dispatcher over the given store/registry/interceptor manager.
func New(store *chain.Store, reg *registry.Registry, interceptors *interceptor.Manager, log *logger.Logger) *Dispatcher {
	return &Dispatcher{
		Store:        store,
		Registry:     reg,
		Interceptors: interceptors,
		Log:          log,
		joins:        newJoinState(),
	}
}

// Process is the engine's public entry point: process(chain_id, message).
func (d *Dispatcher) Process(ctx context.Context, chainID string, msg message.Message) (message.Message, error) {
	c, ok := d.Store.Get(chainID)
	if !ok {
		return message.Message{}, ruleerr.New(ruleerr.KindNotFound, "chain %q not found", chainID)
	}
	if !c.Root {
		return message.Message{}, ruleerr.New(ruleerr.KindConfigError, "chain %q is not a root chain", chainID)
	}

	if err := d.Interceptors.BeforeProcess(msg); err != nil {
		return message.Message{}, err
	}

	d.Store.Enter(chainID)
	defer d.Store.Exit(chainID)

	start, ok := c.StartNode()
	if !ok {
		return message.Message{}, ruleerr.New(ruleerr.KindConfigError, "chain %q has no start node", chainID)
	}

	result, err := d.executeNode(ctx, c, start, msg)
	if err != nil {
		return message.Message{}, err
	}

	if err := d.Interceptors.AfterProcess(result); err != nil {
		return message.Message{}, err
	}
	return result, nil
}

// executeNode is the dispatcher's single invocation site for a node: it
// instantiates a fresh handler, wraps the call in before/after/error
// interceptors, and returns the handler's own returned message.
func (d *Dispatcher) executeNode(ctx context.Context, c chain.Chain, node chain.Node, msg message.Message) (message.Message, error) {
	regNode := toRegistryNode(node)

	if d.Events != nil {
		d.Events.NodeStarted(c.ID, node.ID, node.Type)
	}

	handler, err := d.Registry.CreateHandler(node.Type, node.Config)
	if err != nil {
		d.Interceptors.NodeError(regNode, err)
		if d.Events != nil {
			d.Events.NodeCompleted(c.ID, node.ID, node.Type, err)
		}
		return message.Message{}, err
	}

	if err := d.Interceptors.BeforeNode(regNode, msg); err != nil {
		d.Interceptors.NodeError(regNode, err)
		if d.Events != nil {
			d.Events.NodeCompleted(c.ID, node.ID, node.Type, err)
		}
		return message.Message{}, err
	}

	nc := &nodeContext{
		d:       d,
		ctx:     ctx,
		chain:   c,
		node:    node,
		msg:     msg,
		results: make(map[string]message.Message),
	}

	result, err := handler.Handle(nc, msg)
	if err != nil {
		d.Interceptors.NodeError(regNode, err)
		if d.Events != nil {
			d.Events.NodeCompleted(c.ID, node.ID, node.Type, err)
		}
		return message.Message{}, err
	}

	if err := d.Interceptors.AfterNode(regNode, result); err != nil {
		d.Interceptors.NodeError(regNode, err)
		if d.Events != nil {
			d.Events.NodeCompleted(c.ID, node.ID, node.Type, err)
		}
		return message.Message{}, err
	}

	if d.Events != nil {
		d.Events.NodeCompleted(c.ID, node.ID, node.Type, nil)
	}
	return result, nil
}

func toRegistryNode(n chain.Node) registry.Node {
	return registry.Node{ID: n.ID, ChainID: n.ChainID, Type: n.Type, Config: n.Config}
}

func toRegistryConnections(conns []chain.Connection) []registry.Connection {
	out := make([]registry.Connection, len(conns))
	for i, c := range conns {
		out[i] = registry.Connection{FromID: c.FromID, ToID: c.ToID, TypeName: c.TypeName}
	}
	return out
}

// selectSuccessor implements branch selection (§4.4.1): match
// msg.metadata["branch_name"] against an outgoing edge's type_name; fall
// back to the first outgoing edge in connection-list order.
func selectSuccessor(edges []chain.Connection, msg message.Message) (chain.Connection, bool) {
	if len(edges) == 0 {
		return chain.Connection{}, false
	}
	if branch, ok := msg.BranchName(); ok {
		for _, e := range edges {
			if e.TypeName == branch {
				return e, true
			}
		}
	}
	return edges[0], true
}

// nodeContext implements registry.Context for a single node invocation.
type nodeContext struct {
	d     *Dispatcher
	ctx   context.Context
	chain chain.Chain
	node  chain.Node
	msg   message.Message

	mu      sync.Mutex
	results map[string]message.Message
}

func (nc *nodeContext) Node() registry.Node              { return toRegistryNode(nc.node) }
func (nc *nodeContext) Message() message.Message         { return nc.msg }
func (nc *nodeContext) Metadata() map[string]string      { return nc.msg.Metadata }

func (nc *nodeContext) SendNext(msg message.Message) (message.Message, error) {
	edges := nc.chain.OutgoingFrom(nc.node.ID)
	edge, ok := selectSuccessor(edges, msg)
	if !ok {
		return msg, nil // terminal node: msg is the chain's tail result
	}
	next, ok := nc.chain.NodeByID(edge.ToID)
	if !ok {
		return message.Message{}, ruleerr.New(ruleerr.KindConfigError, "connection targets unknown node %q", edge.ToID)
	}
	return nc.d.executeNode(nc.ctx, nc.chain, next, msg)
}

func (nc *nodeContext) SendToNode(nodeID string, msg message.Message) (message.Message, error) {
	target, ok := nc.chain.NodeByID(nodeID)
	if !ok {
		return message.Message{}, ruleerr.New(ruleerr.KindConfigError, "node %q not found in chain %q", nodeID, nc.chain.ID)
	}
	return nc.d.executeNode(nc.ctx, nc.chain, target, msg)
}

func (nc *nodeContext) GetNextConnections(typeName string) ([]registry.Connection, error) {
	var out []chain.Connection
	for _, e := range nc.chain.OutgoingFrom(nc.node.ID) {
		if e.TypeName == typeName {
			out = append(out, e)
		}
	}
	return toRegistryConnections(out), nil
}

func (nc *nodeContext) AddBranchResult(branchID string, msg message.Message) {
	nc.mu.Lock()
	defer nc.mu.Unlock()
	nc.results[branchID] = msg
}

func (nc *nodeContext) GetBranchResults() []message.Message {
	nc.mu.Lock()
	defer nc.mu.Unlock()
	out := make([]message.Message, 0, len(nc.results))
	for _, m := range nc.results {
		out = append(out, m)
	}
	return out
}

func (nc *nodeContext) ExecuteSubchain(chainID string, msg message.Message) (message.Message, error) {
	target, ok := nc.d.Store.Get(chainID)
	if !ok {
		return message.Message{}, ruleerr.New(ruleerr.KindNotFound, "subchain target %q not found", chainID)
	}
	start, ok := target.StartNode()
	if !ok {
		return message.Message{}, ruleerr.New(ruleerr.KindConfigError, "subchain target %q has no start node", chainID)
	}

	nc.d.Store.Enter(chainID)
	defer nc.d.Store.Exit(chainID)

	return nc.d.executeNode(nc.ctx, target, start, msg)
}

func (nc *nodeContext) JoinArrive(msg message.Message) (batch []message.Message, ready bool, expected int) {
	expected = len(nc.chain.IncomingTo(nc.node.ID))
	batch, ready = nc.d.joins.arrive(nc.chain.ID, nc.node.ID, msg, expected)
	return batch, ready, expected
}

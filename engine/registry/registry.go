// Package registry implements the node type registry: a read-mostly map from
// type_name to a factory that produces handlers from JSON config.
package registry

import (
	"encoding/json"
	"sync"

	"github.com/lyzr/rulechain/engine/message"
	"github.com/lyzr/rulechain/engine/ruleerr"
)

// Role constrains a node type's allowable connectivity.
type Role int

const (
	RoleHead Role = iota
	RoleMiddle
	RoleTail
)

func (r Role) String() string {
	switch r {
	case RoleHead:
		return "Head"
	case RoleTail:
		return "Tail"
	default:
		return "Middle"
	}
}

// Descriptor is the metadata a factory produces identifying its node type.
type Descriptor struct {
	TypeName    string `json:"type_name"`
	HumanName   string `json:"human_name"`
	Description string `json:"description"`
	Role        Role   `json:"role"`
}

// Context is the per-invocation surface a Handler sees. It is a narrow
// interface so engine/dispatcher can satisfy it without nodes importing the
// dispatcher package (which would create an import cycle).
type Context interface {
	Node() Node
	Message() message.Message
	Metadata() map[string]string
	// SendNext routes msg to the matching (or first) outgoing connection and
	// returns whatever the downstream path ultimately produced, so a handler
	// can propagate the chain's real tail result instead of its own local
	// transform. A terminal node (no outgoing connections) gets msg back
	// unchanged.
	SendNext(msg message.Message) (message.Message, error)
	SendToNode(nodeID string, msg message.Message) (message.Message, error)
	GetNextConnections(typeName string) ([]Connection, error)
	AddBranchResult(branchID string, msg message.Message)
	GetBranchResults() []message.Message
	ExecuteSubchain(chainID string, msg message.Message) (message.Message, error)
	// JoinArrive records msg's arrival at the calling join node and reports
	// the full batch once arrivals from every incoming connection have
	// accumulated. expected is the number of connections wired into the
	// join node, computed by the dispatcher from the chain topology.
	JoinArrive(msg message.Message) (batch []message.Message, ready bool, expected int)
}

// Node is the minimal node-shape a Handler needs (avoids importing
// engine/chain, which would create an import cycle with engine/registry).
type Node struct {
	ID      string
	ChainID string
	Type    string
	Config  json.RawMessage
}

// Connection mirrors engine/chain.Connection (duplicated here, not imported,
// for the same import-cycle reason as Node).
type Connection struct {
	FromID   string
	ToID     string
	TypeName string
}

// Handler is the contract every node implementation exposes to the dispatcher.
type Handler interface {
	Handle(ctx Context, msg message.Message) (message.Message, error)
	Descriptor() Descriptor
}

// Factory builds a Handler from a node's JSON config.
type Factory func(config json.RawMessage) (Handler, error)

// Registry resolves type_name to a Factory/Descriptor. Registrations are
// rare; lookups happen on every node step, so it is guarded by a RWMutex
// exactly like the teacher's StreamRouter read-mostly type table.
type Registry struct {
	mu          sync.RWMutex
	factories   map[string]Factory
	descriptors map[string]Descriptor
}

// New returns an empty registry.
func New() *Registry {
	return &Registry{
		factories:   make(map[string]Factory),
		descriptors: make(map[string]Descriptor),
	}
}

// Register installs (or replaces) a factory for type_name. It invokes the
// factory once with an empty JSON object to obtain and cache a Descriptor.
// If that probe call fails, the factory is still registered but no
// descriptor is cached, so chains using the type fail validation (the
// validator reports it as an unregistered type, since its role is unknown)
// rather than crashing at registration time.
func (r *Registry) Register(typeName string, factory Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.factories[typeName] = factory
	delete(r.descriptors, typeName)

	handler, err := factory(json.RawMessage(`{}`))
	if err != nil {
		return
	}
	d := handler.Descriptor()
	d.TypeName = typeName
	r.descriptors[typeName] = d
}

// CreateHandler builds a fresh handler instance for type_name. Handlers are
// never cached or reused across calls; implementations must not assume a
// singleton.
func (r *Registry) CreateHandler(typeName string, config json.RawMessage) (Handler, error) {
	r.mu.RLock()
	factory, ok := r.factories[typeName]
	r.mu.RUnlock()
	if !ok {
		return nil, ruleerr.New(ruleerr.KindHandlerNotFound, "no factory registered for type %q", typeName)
	}
	handler, err := factory(config)
	if err != nil {
		return nil, ruleerr.Wrap(ruleerr.KindNodeExecutionError, err, "factory for type %q failed", typeName)
	}
	return handler, nil
}

// Descriptors returns every cached descriptor.
func (r *Registry) Descriptors() []Descriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Descriptor, 0, len(r.descriptors))
	for _, d := range r.descriptors {
		out = append(out, d)
	}
	return out
}

// Descriptor returns the cached descriptor for type_name, if any.
func (r *Registry) Descriptor(typeName string) (Descriptor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.descriptors[typeName]
	return d, ok
}

// RegisteredTypes lists every type_name with a registered factory, whether
// or not it has a cached descriptor.
func (r *Registry) RegisteredTypes() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.factories))
	for t := range r.factories {
		out = append(out, t)
	}
	return out
}

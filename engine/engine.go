// Package engine assembles the rule-chain engine's public surface: load,
// get, list, remove, patch, and process chains; register node types and
// interceptors; over the chain store, node registry, validator, and
// dispatcher.
package engine

import (
	"context"
	"encoding/json"
	"sync/atomic"
	"time"

	"github.com/lyzr/rulechain/common/logger"
	"github.com/lyzr/rulechain/engine/audit"
	"github.com/lyzr/rulechain/engine/chain"
	"github.com/lyzr/rulechain/engine/condition"
	"github.com/lyzr/rulechain/engine/dispatcher"
	"github.com/lyzr/rulechain/engine/interceptor"
	"github.com/lyzr/rulechain/engine/message"
	"github.com/lyzr/rulechain/engine/nodes"
	"github.com/lyzr/rulechain/engine/patch"
	"github.com/lyzr/rulechain/engine/registry"
	"github.com/lyzr/rulechain/engine/ruleerr"
	"github.com/lyzr/rulechain/engine/validator"
)

// Engine is the top-level facade the HTTP admin layer and embedders use.
type Engine struct {
	Store        *chain.Store
	Registry     *registry.Registry
	Interceptors *interceptor.Manager
	Evaluator    *condition.Evaluator
	Dispatcher   *dispatcher.Dispatcher
	Log          *logger.Logger

	// Audit is an optional execution audit sink. Nil disables auditing.
	Audit *audit.Sink

	version atomic.Uint64
}

// New builds an Engine with the built-in node types and default logging
// interceptors registered.
func New(log *logger.Logger) *Engine {
	store := chain.NewStore()
	reg := registry.New()
	eval := condition.NewEvaluator()
	interceptors := interceptor.New()
	disp := dispatcher.New(store, reg, interceptors, log)

	nodes.RegisterAll(reg, eval, log)
	interceptors.AddNodeInterceptor(interceptor.NewLoggingInterceptor(log))
	interceptors.AddMessageInterceptor(interceptor.NewMessageLoggingInterceptor(log))

	return &Engine{
		Store:        store,
		Registry:     reg,
		Interceptors: interceptors,
		Evaluator:    eval,
		Dispatcher:   disp,
		Log:          log,
	}
}

// LoadChain parses, validates, and inserts a chain, returning its id.
// Replaces any chain already loaded under the same id, bumping its version.
func (e *Engine) LoadChain(jsonText []byte) (string, error) {
	var c chain.Chain
	if err := json.Unmarshal(jsonText, &c); err != nil {
		return "", ruleerr.Wrap(ruleerr.KindConfigError, err, "malformed chain JSON")
	}
	if c.ID == "" {
		return "", ruleerr.New(ruleerr.KindConfigError, "chain JSON missing id")
	}

	if err := validator.Validate(c, e.Registry, e.Store); err != nil {
		return "", err
	}

	stored := e.Store.Insert(c)
	e.version.Add(1)
	return stored.ID, nil
}

// GetChain returns the loaded chain for id, if any.
func (e *Engine) GetChain(id string) (chain.Chain, bool) {
	return e.Store.Get(id)
}

// ListChains returns every loaded chain.
func (e *Engine) ListChains() []chain.Chain {
	return e.Store.All()
}

// RemoveChain removes the chain for id, subject to the store's reference
// counting and subchain-reference refusal rules.
func (e *Engine) RemoveChain(id string) error {
	if err := e.Store.Remove(id); err != nil {
		return err
	}
	e.version.Add(1)
	return nil
}

// PatchChain applies an RFC 6902 JSON Patch document to a loaded chain,
// re-validates the result, and atomically swaps it in on success. The
// chain is left unchanged if the patched document fails validation.
func (e *Engine) PatchChain(id string, patchDoc []byte) (chain.Chain, error) {
	current, ok := e.Store.Get(id)
	if !ok {
		return chain.Chain{}, ruleerr.New(ruleerr.KindNotFound, "chain %q not found", id)
	}

	patched, err := patch.Apply(current, patchDoc)
	if err != nil {
		return chain.Chain{}, err
	}
	patched.ID = id

	if err := validator.Validate(patched, e.Registry, e.Store); err != nil {
		return chain.Chain{}, err
	}

	stored := e.Store.Insert(patched)
	e.version.Add(1)
	return stored, nil
}

// Process routes an inbound message through a root chain. When Audit is
// set, every call is recorded regardless of outcome.
func (e *Engine) Process(ctx context.Context, chainID string, msg message.Message) (message.Message, error) {
	if e.Audit == nil {
		return e.Dispatcher.Process(ctx, chainID, msg)
	}

	started := time.Now()
	result, err := e.Dispatcher.Process(ctx, chainID, msg)
	e.Audit.Record(ctx, chainID, msg.ID.String(), started, time.Since(started), err)
	return result, err
}

// SetEventPublisher wires a lifecycle-event publisher into the dispatcher.
// Pass nil to disable event publishing.
func (e *Engine) SetEventPublisher(pub dispatcher.EventPublisher) {
	e.Dispatcher.Events = pub
}

// RegisterNodeType installs a custom node factory.
func (e *Engine) RegisterNodeType(typeName string, factory registry.Factory) {
	e.Registry.Register(typeName, factory)
}

// RegisteredComponents returns every registered node type's descriptor.
func (e *Engine) RegisteredComponents() []registry.Descriptor {
	return e.Registry.Descriptors()
}

// AddNodeInterceptor registers a node-level interceptor.
func (e *Engine) AddNodeInterceptor(i interceptor.NodeInterceptor) {
	e.Interceptors.AddNodeInterceptor(i)
}

// AddMessageInterceptor registers a message-level interceptor.
func (e *Engine) AddMessageInterceptor(i interceptor.MessageInterceptor) {
	e.Interceptors.AddMessageInterceptor(i)
}

// CurrentVersion returns the engine's monotonic load/remove/patch counter.
func (e *Engine) CurrentVersion() uint64 {
	return e.version.Load()
}

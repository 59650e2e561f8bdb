// Package interceptor implements the aspect-oriented before/after/error
// hooks the dispatcher invokes around every node step and around each
// top-level process() call.
package interceptor

import (
	"sync"

	"github.com/lyzr/rulechain/engine/message"
	"github.com/lyzr/rulechain/engine/registry"
)

// NodeInterceptor observes a single node's execution.
type NodeInterceptor interface {
	Before(node registry.Node, msg message.Message) error
	After(node registry.Node, msg message.Message) error
	Error(node registry.Node, err error) error
}

// MessageInterceptor observes a top-level process() call.
type MessageInterceptor interface {
	BeforeProcess(msg message.Message) error
	AfterProcess(msg message.Message) error
}

// Manager holds append-only, strictly ordered interceptor lists. Any
// interceptor returning an error aborts the current phase immediately;
// subsequent interceptors in that phase are not invoked.
type Manager struct {
	mu    sync.RWMutex
	nodes []NodeInterceptor
	msgs  []MessageInterceptor
}

// New returns an empty interceptor manager.
func New() *Manager {
	return &Manager{}
}

// AddNodeInterceptor appends a node interceptor. Order of registration is
// the order of invocation.
func (m *Manager) AddNodeInterceptor(i NodeInterceptor) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nodes = append(m.nodes, i)
}

// AddMessageInterceptor appends a message interceptor.
func (m *Manager) AddMessageInterceptor(i MessageInterceptor) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.msgs = append(m.msgs, i)
}

func (m *Manager) snapshotNodes() []NodeInterceptor {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]NodeInterceptor, len(m.nodes))
	copy(out, m.nodes)
	return out
}

func (m *Manager) snapshotMsgs() []MessageInterceptor {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]MessageInterceptor, len(m.msgs))
	copy(out, m.msgs)
	return out
}

// BeforeNode runs every node interceptor's Before hook in order.
func (m *Manager) BeforeNode(node registry.Node, msg message.Message) error {
	for _, i := range m.snapshotNodes() {
		if err := i.Before(node, msg); err != nil {
			return err
		}
	}
	return nil
}

// AfterNode runs every node interceptor's After hook in order. Only called
// on a successful handler return.
func (m *Manager) AfterNode(node registry.Node, msg message.Message) error {
	for _, i := range m.snapshotNodes() {
		if err := i.After(node, msg); err != nil {
			return err
		}
	}
	return nil
}

// NodeError runs every node interceptor's Error hook in order. Called
// whenever a handler or an earlier interceptor phase failed.
func (m *Manager) NodeError(node registry.Node, cause error) error {
	for _, i := range m.snapshotNodes() {
		if err := i.Error(node, cause); err != nil {
			return err
		}
	}
	return nil
}

// BeforeProcess runs every message interceptor's BeforeProcess hook.
func (m *Manager) BeforeProcess(msg message.Message) error {
	for _, i := range m.snapshotMsgs() {
		if err := i.BeforeProcess(msg); err != nil {
			return err
		}
	}
	return nil
}

// AfterProcess runs every message interceptor's AfterProcess hook. Only
// called when the chain walk succeeded.
func (m *Manager) AfterProcess(msg message.Message) error {
	for _, i := range m.snapshotMsgs() {
		if err := i.AfterProcess(msg); err != nil {
			return err
		}
	}
	return nil
}

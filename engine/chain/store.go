package chain

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/lyzr/rulechain/engine/ruleerr"
)

// removeTimeout and removePoll mirror the original engine's bounded wait:
// remove_chain polls the execution counter at 100ms intervals for up to 5s.
const (
	removeTimeout = 5 * time.Second
	removePoll    = 100 * time.Millisecond
)

// Store is the chain-id-keyed registry of loaded chains plus their
// in-flight execution counters. Readers take the shared lock; insert/remove
// take the exclusive lock; both are meant to be brief.
type Store struct {
	mu       sync.RWMutex
	chains   map[string]Chain
	counters map[string]int
}

// NewStore returns an empty chain store.
func NewStore() *Store {
	return &Store{
		chains:   make(map[string]Chain),
		counters: make(map[string]int),
	}
}

// Insert adds or atomically replaces a chain, bumping metadata.version. The
// execution counter for the id is preserved across a replace so an in-flight
// execution against the old definition is still tracked.
func (s *Store) Insert(c Chain) Chain {
	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.chains[c.ID]; ok {
		c.Metadata.Version = existing.Metadata.Version + 1
	} else {
		c.Metadata.Version = 1
	}
	now := time.Now().UnixMilli()
	if c.Metadata.CreatedAt == 0 {
		c.Metadata.CreatedAt = now
	}
	c.Metadata.UpdatedAt = now
	s.chains[c.ID] = c
	if _, ok := s.counters[c.ID]; !ok {
		s.counters[c.ID] = 0
	}
	return c
}

// Get returns the chain for id, if loaded.
func (s *Store) Get(id string) (Chain, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.chains[id]
	return c, ok
}

// All returns every loaded chain.
func (s *Store) All() []Chain {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Chain, 0, len(s.chains))
	for _, c := range s.chains {
		out = append(out, c)
	}
	return out
}

// ReferencedBy returns the ids of every currently-loaded chain other than id
// itself that contains a subchain node whose config targets id.
func (s *Store) ReferencedBy(id string) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var referrers []string
	for _, c := range s.chains {
		if c.ID == id {
			continue
		}
		for _, n := range c.Nodes {
			if n.Type != "subchain" {
				continue
			}
			if target, ok := subchainTarget(n); ok && target == id {
				referrers = append(referrers, c.ID)
				break
			}
		}
	}
	return referrers
}

// Remove deletes the chain for id, waiting up to removeTimeout in
// removePoll increments for its execution counter to reach zero. Refuses
// immediately if another loaded chain still references id via a subchain
// node.
func (s *Store) Remove(id string) error {
	s.mu.RLock()
	_, ok := s.chains[id]
	s.mu.RUnlock()
	if !ok {
		return ruleerr.New(ruleerr.KindNotFound, "chain %q not loaded", id)
	}

	if referrers := s.ReferencedBy(id); len(referrers) > 0 {
		return ruleerr.New(ruleerr.KindConfigError, "chain %q is referenced by subchain node(s) in %v", id, referrers)
	}

	deadline := time.Now().Add(removeTimeout)
	for {
		s.mu.RLock()
		count := s.counters[id]
		s.mu.RUnlock()
		if count <= 0 {
			break
		}
		if time.Now().After(deadline) {
			return ruleerr.New(ruleerr.KindConfigError, "chain %q still has %d in-flight execution(s) after %s", id, count, removeTimeout)
		}
		time.Sleep(removePoll)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.chains, id)
	delete(s.counters, id)
	return nil
}

// Enter increments id's execution counter. Callers must defer Exit.
func (s *Store) Enter(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.counters[id]++
}

// Exit decrements id's execution counter. Safe to call even if the chain
// was concurrently removed (counters map entry simply stays absent).
func (s *Store) Exit(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.counters[id] > 0 {
		s.counters[id]--
	}
}

// ExecutionCount returns the current in-flight execution count for id.
func (s *Store) ExecutionCount(id string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.counters[id]
}

func subchainTarget(n Node) (string, bool) {
	var cfg struct {
		ChainID string `json:"chain_id"`
	}
	if err := json.Unmarshal(n.Config, &cfg); err != nil || cfg.ChainID == "" {
		return "", false
	}
	return cfg.ChainID, true
}

package validator

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/lyzr/rulechain/engine/chain"
	"github.com/lyzr/rulechain/engine/message"
	"github.com/lyzr/rulechain/engine/registry"
	"github.com/lyzr/rulechain/engine/ruleerr"
)

// memStore is a minimal ChainLookup for tests that don't need a real Store.
type memStore map[string]chain.Chain

func (m memStore) Get(id string) (chain.Chain, bool) {
	c, ok := m[id]
	return c, ok
}

func newTestRegistry() *registry.Registry {
	reg := registry.New()
	reg.Register("start", func(config json.RawMessage) (registry.Handler, error) {
		return fakeHandler{registry.Descriptor{TypeName: "start", Role: registry.RoleHead}}, nil
	})
	reg.Register("middle", func(config json.RawMessage) (registry.Handler, error) {
		return fakeHandler{registry.Descriptor{TypeName: "middle", Role: registry.RoleMiddle}}, nil
	})
	reg.Register("log", func(config json.RawMessage) (registry.Handler, error) {
		return fakeHandler{registry.Descriptor{TypeName: "log", Role: registry.RoleTail}}, nil
	})
	reg.Register("subchain", func(config json.RawMessage) (registry.Handler, error) {
		return fakeHandler{registry.Descriptor{TypeName: "subchain", Role: registry.RoleMiddle}}, nil
	})
	return reg
}

type fakeHandler struct {
	desc registry.Descriptor
}

func (h fakeHandler) Handle(ctx registry.Context, msg message.Message) (message.Message, error) {
	return msg, nil
}
func (h fakeHandler) Descriptor() registry.Descriptor { return h.desc }

func TestValidateStructural_RequiresRegisteredStartNodeWithHeadRole(t *testing.T) {
	reg := newTestRegistry()
	c := chain.Chain{
		ID: "c1",
		Nodes: []chain.Node{
			{ID: "n1", Type: "middle"},
		},
	}
	err := Validate(c, reg, memStore{})
	if err == nil {
		t.Fatal("expected error: start node is not Head-role")
	}
	var re *ruleerr.RuleError
	if !errors.As(err, &re) || re.Kind != ruleerr.KindConfigError {
		t.Errorf("expected ConfigError, got %v", err)
	}
}

func TestValidateStructural_RejectsUnknownConnectionEndpoints(t *testing.T) {
	reg := newTestRegistry()
	c := chain.Chain{
		ID: "c1",
		Nodes: []chain.Node{
			{ID: "start", Type: "start"},
		},
		Connections: []chain.Connection{
			{FromID: "start", ToID: "ghost", TypeName: "success"},
		},
	}
	if err := Validate(c, reg, memStore{}); err == nil {
		t.Fatal("expected error for connection to unknown node")
	}
}

func TestValidateRoles_HeadNodeMayNotHaveIncoming(t *testing.T) {
	reg := newTestRegistry()
	c := chain.Chain{
		ID: "c1",
		Nodes: []chain.Node{
			{ID: "start", Type: "start"},
			{ID: "start2", Type: "start"},
		},
		Connections: []chain.Connection{
			{FromID: "start", ToID: "start2", TypeName: "success"},
		},
	}
	err := Validate(c, reg, memStore{})
	if err == nil {
		t.Fatal("expected error: start2 is Head-role but has an incoming connection")
	}
}

func TestValidateRoles_TailNodeMayNotHaveOutgoing(t *testing.T) {
	reg := newTestRegistry()
	c := chain.Chain{
		ID: "c1",
		Nodes: []chain.Node{
			{ID: "start", Type: "start"},
			{ID: "log1", Type: "log"},
			{ID: "log2", Type: "log"},
		},
		Connections: []chain.Connection{
			{FromID: "start", ToID: "log1", TypeName: "success"},
			{FromID: "log1", ToID: "log2", TypeName: "success"},
		},
	}
	err := Validate(c, reg, memStore{})
	if err == nil {
		t.Fatal("expected error: log1 is Tail-role but has an outgoing connection")
	}
}

func TestValidateCycles_NodeLevelSelfLoop(t *testing.T) {
	reg := newTestRegistry()
	c := chain.Chain{
		ID: "c1",
		Nodes: []chain.Node{
			{ID: "start", Type: "start"},
			{ID: "m1", Type: "middle"},
		},
		Connections: []chain.Connection{
			{FromID: "start", ToID: "m1", TypeName: "success"},
			{FromID: "m1", ToID: "m1", TypeName: "success"},
		},
	}
	err := Validate(c, reg, memStore{})
	if !errors.Is(err, ruleerr.CircularDependency) {
		t.Fatalf("expected CircularDependency, got %v", err)
	}
}

func TestValidateCycles_ChainLevelSkipsForwardReferenceToUnloadedChain(t *testing.T) {
	reg := newTestRegistry()
	subCfg, _ := json.Marshal(map[string]string{"chain_id": "not-yet-loaded"})
	c := chain.Chain{
		ID: "c1",
		Nodes: []chain.Node{
			{ID: "start", Type: "start"},
			{ID: "sc", Type: "subchain", Config: subCfg},
		},
		Connections: []chain.Connection{
			{FromID: "start", ToID: "sc", TypeName: "success"},
		},
	}
	if err := Validate(c, reg, memStore{}); err != nil {
		t.Fatalf("expected a forward reference to an unloaded chain to validate cleanly, got %v", err)
	}
}

func TestValidateCycles_ChainLevelCycleThroughSubchain(t *testing.T) {
	reg := newTestRegistry()

	cfgToB, _ := json.Marshal(map[string]string{"chain_id": "B"})
	chainA := chain.Chain{
		ID: "A",
		Nodes: []chain.Node{
			{ID: "start", Type: "start"},
			{ID: "toB", Type: "subchain", Config: cfgToB},
		},
		Connections: []chain.Connection{{FromID: "start", ToID: "toB", TypeName: "success"}},
	}

	cfgToA, _ := json.Marshal(map[string]string{"chain_id": "A"})
	chainB := chain.Chain{
		ID: "B",
		Nodes: []chain.Node{
			{ID: "start", Type: "start"},
			{ID: "toA", Type: "subchain", Config: cfgToA},
		},
		Connections: []chain.Connection{{FromID: "start", ToID: "toA", TypeName: "success"}},
	}

	store := memStore{"A": chainA}
	err := Validate(chainB, reg, store)
	if !errors.Is(err, ruleerr.CircularDependency) {
		t.Fatalf("expected CircularDependency loading B (which refers back to A, which refers to B), got %v", err)
	}
}

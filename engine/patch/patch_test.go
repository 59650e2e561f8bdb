package patch

import (
	"encoding/json"
	"errors"
	"strconv"
	"testing"

	"github.com/lyzr/rulechain/engine/chain"
	"github.com/lyzr/rulechain/engine/ruleerr"
)

func baseChain() chain.Chain {
	return chain.Chain{
		ID:   "c1",
		Name: "c1",
		Root: true,
		Nodes: []chain.Node{
			{ID: "start", ChainID: "c1", Type: "start"},
		},
	}
}

func TestApply_AddNodeAndConnection(t *testing.T) {
	c := baseChain()
	doc := []byte(`[
		{"op": "add", "path": "/nodes/-", "value": {"id": "log1", "chain_id": "c1", "type_name": "log", "config": {}}},
		{"op": "add", "path": "/connections/-", "value": {"from_id": "start", "to_id": "log1", "type_name": "success"}}
	]`)

	patched, err := Apply(c, doc)
	if err != nil {
		t.Fatalf("apply failed: %v", err)
	}
	if len(patched.Nodes) != 2 {
		t.Errorf("expected 2 nodes, got %d", len(patched.Nodes))
	}
	if len(patched.Connections) != 1 {
		t.Errorf("expected 1 connection, got %d", len(patched.Connections))
	}
}

func TestApply_OriginalChainUnmodified(t *testing.T) {
	c := baseChain()
	doc := []byte(`[{"op": "add", "path": "/nodes/-", "value": {"id": "log1", "chain_id": "c1", "type_name": "log"}}]`)

	if _, err := Apply(c, doc); err != nil {
		t.Fatalf("apply failed: %v", err)
	}
	if len(c.Nodes) != 1 {
		t.Errorf("expected Apply to leave the original chain untouched, got %d nodes", len(c.Nodes))
	}
}

func TestApply_RejectsMissingOp(t *testing.T) {
	c := baseChain()
	doc := []byte(`[{"path": "/name", "value": "x"}]`)
	_, err := Apply(c, doc)
	assertConfigError(t, err)
}

func TestApply_RejectsUnsupportedOp(t *testing.T) {
	c := baseChain()
	doc := []byte(`[{"op": "frobnicate", "path": "/name", "value": "x"}]`)
	_, err := Apply(c, doc)
	assertConfigError(t, err)
}

func TestApply_RejectsAddWithoutValue(t *testing.T) {
	c := baseChain()
	doc := []byte(`[{"op": "add", "path": "/nodes/-"}]`)
	_, err := Apply(c, doc)
	assertConfigError(t, err)
}

func TestApply_RejectsNodeValueMissingID(t *testing.T) {
	c := baseChain()
	doc := []byte(`[{"op": "add", "path": "/nodes/-", "value": {"type_name": "log"}}]`)
	_, err := Apply(c, doc)
	assertConfigError(t, err)
}

func TestApply_RejectsNodeValueMissingTypeName(t *testing.T) {
	c := baseChain()
	doc := []byte(`[{"op": "add", "path": "/nodes/-", "value": {"id": "log1"}}]`)
	_, err := Apply(c, doc)
	assertConfigError(t, err)
}

func TestApply_RejectsNodeValueWithNonObjectConfig(t *testing.T) {
	c := baseChain()
	doc := []byte(`[{"op": "add", "path": "/nodes/-", "value": {"id": "log1", "type_name": "log", "config": "not-an-object"}}]`)
	_, err := Apply(c, doc)
	assertConfigError(t, err)
}

func TestApply_RejectsTooManyNodeAdditions(t *testing.T) {
	c := baseChain()
	ops := make([]map[string]interface{}, 0, maxNodesAdded+1)
	for i := 0; i < maxNodesAdded+1; i++ {
		ops = append(ops, map[string]interface{}{
			"op":   "add",
			"path": "/nodes/-",
			"value": map[string]interface{}{
				"id":        "n" + strconv.Itoa(i),
				"type_name": "log",
			},
		})
	}
	doc, err := json.Marshal(ops)
	if err != nil {
		t.Fatalf("marshal patch doc: %v", err)
	}

	_, err = Apply(c, doc)
	assertConfigError(t, err)
}

func TestApply_MalformedPatchDocument(t *testing.T) {
	c := baseChain()
	_, err := Apply(c, []byte(`not json`))
	assertConfigError(t, err)
}

func assertConfigError(t *testing.T, err error) {
	t.Helper()
	if err == nil {
		t.Fatal("expected an error")
	}
	if !errors.Is(err, ruleerr.ConfigError) {
		t.Errorf("expected ConfigError, got %v", err)
	}
}

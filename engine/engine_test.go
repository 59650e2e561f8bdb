package engine_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/lyzr/rulechain/common/logger"
	"github.com/lyzr/rulechain/engine"
	"github.com/lyzr/rulechain/engine/chain"
	"github.com/lyzr/rulechain/engine/message"
	"github.com/lyzr/rulechain/engine/ruleerr"
)

func newTestEngine(t *testing.T) *engine.Engine {
	t.Helper()
	return engine.New(logger.New("error", "text"))
}

func mustLoad(t *testing.T, eng *engine.Engine, c chain.Chain) {
	t.Helper()
	raw, err := json.Marshal(c)
	if err != nil {
		t.Fatalf("marshal chain %q: %v", c.ID, err)
	}
	if _, err := eng.LoadChain(raw); err != nil {
		t.Fatalf("load chain %q: %v", c.ID, err)
	}
}

func rawCfg(t *testing.T, v interface{}) json.RawMessage {
	t.Helper()
	b, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal config: %v", err)
	}
	return b
}

// Scenario 1: simple linear chain, script -> log.
func TestProcess_SimpleLinearChain(t *testing.T) {
	eng := newTestEngine(t)

	c := chain.Chain{
		ID:   "linear",
		Name: "linear",
		Root: true,
		Nodes: []chain.Node{
			{ID: "start", ChainID: "linear", Type: "start"},
			{ID: "n1", ChainID: "linear", Type: "script", Config: rawCfg(t, map[string]string{
				"expression": `{"value": msg.data.value + 1.0}`,
			})},
			{ID: "n2", ChainID: "linear", Type: "log", Config: rawCfg(t, map[string]string{})},
		},
		Connections: []chain.Connection{
			{FromID: "start", ToID: "n1", TypeName: "success"},
			{FromID: "n1", ToID: "n2", TypeName: "success"},
		},
	}
	mustLoad(t, eng, c)

	if v := eng.CurrentVersion(); v != 1 {
		t.Errorf("expected version 1 after first load, got %d", v)
	}

	in := message.New("event", rawCfg(t, map[string]int{"value": 1}))
	out, err := eng.Process(context.Background(), "linear", in)
	if err != nil {
		t.Fatalf("process failed: %v", err)
	}

	var data map[string]int
	if err := json.Unmarshal(out.Data, &data); err != nil {
		t.Fatalf("unmarshal result data: %v", err)
	}
	if data["value"] != 2 {
		t.Errorf("expected value=2, got %v", data)
	}

	// Re-loading the same chain id bumps the version again.
	mustLoad(t, eng, c)
	if v := eng.CurrentVersion(); v != 2 {
		t.Errorf("expected version 2 after second load, got %d", v)
	}
}

// Scenario 2: filter reject vs pass-through.
func TestProcess_FilterReject(t *testing.T) {
	eng := newTestEngine(t)

	c := chain.Chain{
		ID:   "filtered",
		Root: true,
		Nodes: []chain.Node{
			{ID: "start", ChainID: "filtered", Type: "start"},
			{ID: "f1", ChainID: "filtered", Type: "filter", Config: rawCfg(t, map[string]string{
				"condition": "msg.data.value < 10",
			})},
			{ID: "l1", ChainID: "filtered", Type: "log", Config: rawCfg(t, map[string]string{})},
		},
		Connections: []chain.Connection{
			{FromID: "start", ToID: "f1", TypeName: "success"},
			{FromID: "f1", ToID: "l1", TypeName: "success"},
		},
	}
	mustLoad(t, eng, c)

	rejected := message.New("event", rawCfg(t, map[string]int{"value": 20}))
	_, err := eng.Process(context.Background(), "filtered", rejected)
	if err == nil {
		t.Fatal("expected FilterReject error, got nil")
	}
	if !errors.Is(err, ruleerr.FilterReject) {
		t.Errorf("expected FilterReject, got %v", err)
	}

	passed := message.New("event", rawCfg(t, map[string]int{"value": 5}))
	out, err := eng.Process(context.Background(), "filtered", passed)
	if err != nil {
		t.Fatalf("expected pass-through, got error: %v", err)
	}
	var data map[string]int
	json.Unmarshal(out.Data, &data)
	if data["value"] != 5 {
		t.Errorf("expected value=5 to survive the filter, got %v", data)
	}
}

// Scenario 3: switch routing tags branch_name matching the winning case.
func TestProcess_SwitchRouting(t *testing.T) {
	eng := newTestEngine(t)

	c := chain.Chain{
		ID:   "switched",
		Root: true,
		Nodes: []chain.Node{
			{ID: "start", ChainID: "switched", Type: "start"},
			{ID: "s1", ChainID: "switched", Type: "switch", Config: rawCfg(t, map[string]interface{}{
				"cases": []map[string]string{
					{"condition": "msg.data.temp > 30", "branch": "high_temp"},
					{"condition": "msg.data.temp < 10", "branch": "low_temp"},
				},
				"default": "normal_temp",
			})},
			{ID: "high", ChainID: "switched", Type: "log", Config: rawCfg(t, map[string]string{})},
			{ID: "low", ChainID: "switched", Type: "log", Config: rawCfg(t, map[string]string{})},
			{ID: "normal", ChainID: "switched", Type: "log", Config: rawCfg(t, map[string]string{})},
		},
		Connections: []chain.Connection{
			{FromID: "start", ToID: "s1", TypeName: "success"},
			{FromID: "s1", ToID: "high", TypeName: "high_temp"},
			{FromID: "s1", ToID: "low", TypeName: "low_temp"},
			{FromID: "s1", ToID: "normal", TypeName: "normal_temp"},
		},
	}
	mustLoad(t, eng, c)

	cases := []struct {
		temp   int
		branch string
	}{
		{35, "high_temp"},
		{5, "low_temp"},
		{25, "normal_temp"},
	}
	for _, tc := range cases {
		in := message.New("event", rawCfg(t, map[string]int{"temp": tc.temp}))
		out, err := eng.Process(context.Background(), "switched", in)
		if err != nil {
			t.Fatalf("temp=%d: process failed: %v", tc.temp, err)
		}
		if got, _ := out.BranchName(); got != tc.branch {
			t.Errorf("temp=%d: expected branch_name %q, got %q", tc.temp, tc.branch, got)
		}
	}
}

// Scenario 4: a cross-chain subchain cycle A -> B -> C -> A fails to load at
// C, leaving only A and B in the store.
func TestLoadChain_CrossChainCycle(t *testing.T) {
	eng := newTestEngine(t)

	chainA := chain.Chain{
		ID:   "A",
		Root: true,
		Nodes: []chain.Node{
			{ID: "start", ChainID: "A", Type: "start"},
			{ID: "toB", ChainID: "A", Type: "subchain", Config: rawCfg(t, map[string]string{"chain_id": "B"})},
		},
		Connections: []chain.Connection{{FromID: "start", ToID: "toB", TypeName: "success"}},
	}
	chainB := chain.Chain{
		ID:   "B",
		Root: true,
		Nodes: []chain.Node{
			{ID: "start", ChainID: "B", Type: "start"},
			{ID: "toC", ChainID: "B", Type: "subchain", Config: rawCfg(t, map[string]string{"chain_id": "C"})},
		},
		Connections: []chain.Connection{{FromID: "start", ToID: "toC", TypeName: "success"}},
	}
	chainC := chain.Chain{
		ID:   "C",
		Root: true,
		Nodes: []chain.Node{
			{ID: "start", ChainID: "C", Type: "start"},
			{ID: "toA", ChainID: "C", Type: "subchain", Config: rawCfg(t, map[string]string{"chain_id": "A"})},
		},
		Connections: []chain.Connection{{FromID: "start", ToID: "toA", TypeName: "success"}},
	}

	mustLoad(t, eng, chainA)
	mustLoad(t, eng, chainB)

	raw, _ := json.Marshal(chainC)
	_, err := eng.LoadChain(raw)
	if err == nil {
		t.Fatal("expected loading C to fail with a chain-level cycle")
	}
	if !errors.Is(err, ruleerr.CircularDependency) {
		t.Errorf("expected CircularDependency, got %v", err)
	}

	all := eng.ListChains()
	if len(all) != 2 {
		t.Errorf("expected exactly 2 chains (A, B) to remain loaded, got %d", len(all))
	}
	if _, ok := eng.GetChain("C"); ok {
		t.Error("chain C must not be present in the store after a failed load")
	}
}

// Scenario 5: fork fans out to two transforms; join merges both arrivals
// into an order-independent 2-element branches array.
func TestProcess_ForkJoin(t *testing.T) {
	eng := newTestEngine(t)

	c := chain.Chain{
		ID:   "forked",
		Root: true,
		Nodes: []chain.Node{
			{ID: "start", ChainID: "forked", Type: "start"},
			{ID: "fork1", ChainID: "forked", Type: "fork"},
			{ID: "t1", ChainID: "forked", Type: "transform", Config: rawCfg(t, map[string]interface{}{
				"fields": map[string]string{"value": "branch1"},
			})},
			{ID: "t2", ChainID: "forked", Type: "transform", Config: rawCfg(t, map[string]interface{}{
				"fields": map[string]string{"value": "branch2"},
			})},
			{ID: "join1", ChainID: "forked", Type: "join"},
		},
		Connections: []chain.Connection{
			{FromID: "start", ToID: "fork1", TypeName: "success"},
			{FromID: "fork1", ToID: "t1", TypeName: "success"},
			{FromID: "fork1", ToID: "t2", TypeName: "success"},
			{FromID: "t1", ToID: "join1", TypeName: "success"},
			{FromID: "t2", ToID: "join1", TypeName: "success"},
		},
	}
	mustLoad(t, eng, c)

	in := message.New("event", rawCfg(t, map[string]int{"value": 0}))
	out, err := eng.Process(context.Background(), "forked", in)
	if err != nil {
		t.Fatalf("process failed: %v", err)
	}

	var merged struct {
		Branches []struct {
			Data struct {
				Value string `json:"value"`
			} `json:"data"`
		} `json:"branches"`
	}
	if err := json.Unmarshal(out.Data, &merged); err != nil {
		t.Fatalf("unmarshal merged result: %v", err)
	}
	if len(merged.Branches) != 2 {
		t.Fatalf("expected 2 branches, got %d", len(merged.Branches))
	}
	seen := map[string]bool{}
	for _, b := range merged.Branches {
		seen[b.Data.Value] = true
	}
	if !seen["branch1"] || !seen["branch2"] {
		t.Errorf("expected branch1 and branch2 present, got %v", merged.Branches)
	}
}

// Scenario 6: remove_chain waits for in-flight executions to drain before
// removing; subsequent process() then fails NotFound.
func TestRemoveChain_WaitsForInFlightExecutions(t *testing.T) {
	eng := newTestEngine(t)

	c := chain.Chain{
		ID:   "draining",
		Root: true,
		Nodes: []chain.Node{
			{ID: "d1", ChainID: "draining", Type: "delay", Config: rawCfg(t, map[string]int{"duration_ms": 1000})},
		},
	}
	mustLoad(t, eng, c)

	const n = 5
	var wg sync.WaitGroup
	results := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			in := message.New("event", rawCfg(t, map[string]int{"i": i}))
			_, err := eng.Process(context.Background(), "draining", in)
			results[i] = err
		}(i)
	}

	time.Sleep(100 * time.Millisecond)

	removeStart := time.Now()
	if err := eng.RemoveChain("draining"); err != nil {
		t.Fatalf("remove_chain failed: %v", err)
	}
	removeElapsed := time.Since(removeStart)
	if removeElapsed > 1100*time.Millisecond {
		t.Errorf("remove_chain took too long: %v", removeElapsed)
	}

	wg.Wait()
	for i, err := range results {
		if err != nil {
			t.Errorf("execution %d failed: %v", i, err)
		}
	}

	_, err := eng.Process(context.Background(), "draining", message.New("event", nil))
	if !errors.Is(err, ruleerr.NotFound) {
		t.Errorf("expected NotFound after removal, got %v", err)
	}
}

func TestRegisteredComponents_ListsBuiltins(t *testing.T) {
	eng := newTestEngine(t)
	descriptors := eng.RegisteredComponents()
	if len(descriptors) < 10 {
		t.Errorf("expected at least 10 built-in node types registered, got %d", len(descriptors))
	}

	byName := map[string]bool{}
	for _, d := range descriptors {
		byName[d.TypeName] = true
	}
	for _, want := range []string{"start", "log", "filter", "switch", "script", "fork", "join", "subchain"} {
		if !byName[want] {
			t.Errorf("expected %q to be a registered component, got %v", want, byName)
		}
	}
}

func TestPatchChain_AddsNode(t *testing.T) {
	eng := newTestEngine(t)

	c := chain.Chain{
		ID:   "patchable",
		Root: true,
		Nodes: []chain.Node{
			{ID: "start", ChainID: "patchable", Type: "start"},
		},
	}
	mustLoad(t, eng, c)

	newNode := map[string]interface{}{
		"id":        "l1",
		"chain_id":  "patchable",
		"type_name": "log",
		"config":    map[string]interface{}{},
	}
	patchDoc := fmt.Sprintf(`[
		{"op": "add", "path": "/nodes/-", "value": %s},
		{"op": "add", "path": "/connections/-", "value": {"from_id": "start", "to_id": "l1", "type_name": "success"}}
	]`, mustJSON(t, newNode))

	patched, err := eng.PatchChain("patchable", []byte(patchDoc))
	if err != nil {
		t.Fatalf("patch_chain failed: %v", err)
	}
	if len(patched.Nodes) != 2 {
		t.Errorf("expected 2 nodes after patch, got %d", len(patched.Nodes))
	}
}

func mustJSON(t *testing.T, v interface{}) string {
	t.Helper()
	b, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return string(b)
}

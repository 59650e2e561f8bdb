package chain

import (
	"encoding/json"
	"sync"
	"testing"
	"time"
)

func TestInsert_VersionsIncrementOnReplace(t *testing.T) {
	s := NewStore()
	c := Chain{ID: "c1", Nodes: []Node{{ID: "n1"}}}

	first := s.Insert(c)
	if first.Metadata.Version != 1 {
		t.Errorf("expected version 1, got %d", first.Metadata.Version)
	}

	second := s.Insert(c)
	if second.Metadata.Version != 2 {
		t.Errorf("expected version 2 after replace, got %d", second.Metadata.Version)
	}
	if second.Metadata.CreatedAt != first.Metadata.CreatedAt {
		t.Error("expected CreatedAt to be preserved across a replace")
	}
}

func TestRemove_RefusesWhileReferencedBySubchain(t *testing.T) {
	s := NewStore()
	subCfg, _ := json.Marshal(map[string]string{"chain_id": "target"})
	s.Insert(Chain{ID: "target", Nodes: []Node{{ID: "n1"}}})
	s.Insert(Chain{
		ID:    "referrer",
		Nodes: []Node{{ID: "sc", Type: "subchain", Config: subCfg}},
	})

	if err := s.Remove("target"); err == nil {
		t.Fatal("expected removal to be refused while a subchain node still references the target")
	}
	if _, ok := s.Get("target"); !ok {
		t.Error("target chain must remain loaded after a refused removal")
	}
}

func TestRemove_UnknownIDReturnsNotFound(t *testing.T) {
	s := NewStore()
	if err := s.Remove("nope"); err == nil {
		t.Fatal("expected an error removing an unloaded chain id")
	}
}

func TestRemove_WaitsForInFlightExecutionsToDrain(t *testing.T) {
	s := NewStore()
	s.Insert(Chain{ID: "c1", Nodes: []Node{{ID: "n1"}}})

	s.Enter("c1")
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		time.Sleep(150 * time.Millisecond)
		s.Exit("c1")
	}()

	start := time.Now()
	if err := s.Remove("c1"); err != nil {
		t.Fatalf("remove failed: %v", err)
	}
	if time.Since(start) < 100*time.Millisecond {
		t.Error("expected Remove to wait for the in-flight execution to drain")
	}
	wg.Wait()

	if _, ok := s.Get("c1"); ok {
		t.Error("expected chain to be gone after removal")
	}
}

func TestExit_SafeWhenCounterAlreadyZero(t *testing.T) {
	s := NewStore()
	s.Insert(Chain{ID: "c1"})
	s.Exit("c1") // no matching Enter; must not go negative or panic
	if got := s.ExecutionCount("c1"); got != 0 {
		t.Errorf("expected execution count to stay at 0, got %d", got)
	}
}

package resolver

import (
	"encoding/json"
	"testing"

	"github.com/lyzr/rulechain/engine/message"
)

func newTestMessage(t *testing.T, data interface{}) message.Message {
	t.Helper()
	raw, err := json.Marshal(data)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	msg := message.New("event", raw)
	msg.Metadata["region"] = "us-east"
	return msg
}

func TestResolve_MsgIDAndType(t *testing.T) {
	msg := newTestMessage(t, map[string]int{"value": 1})

	got, err := Resolve("${msg.id}", msg)
	if err != nil {
		t.Fatalf("resolve failed: %v", err)
	}
	if got != msg.ID.String() {
		t.Errorf("expected %q, got %q", msg.ID.String(), got)
	}

	got, err = Resolve("${msg.type}", msg)
	if err != nil {
		t.Fatalf("resolve failed: %v", err)
	}
	if got != "event" {
		t.Errorf("expected \"event\", got %q", got)
	}
}

func TestResolve_NestedDataPath(t *testing.T) {
	msg := newTestMessage(t, map[string]interface{}{
		"foo": map[string]interface{}{"bar": 42},
	})

	got, err := Resolve("${msg.data.foo.bar}", msg)
	if err != nil {
		t.Fatalf("resolve failed: %v", err)
	}
	if got != "42" {
		t.Errorf("expected \"42\", got %q", got)
	}
}

func TestResolve_MissingPathSubstitutesEmptyString(t *testing.T) {
	msg := newTestMessage(t, map[string]int{"value": 1})

	got, err := Resolve("${msg.data.nonexistent}", msg)
	if err != nil {
		t.Fatalf("resolve failed: %v", err)
	}
	if got != "" {
		t.Errorf("expected empty string for a missing path, got %q", got)
	}
}

func TestResolve_MultipleMarkersInOneTemplate(t *testing.T) {
	msg := newTestMessage(t, map[string]interface{}{"name": "widget"})

	got, err := Resolve("type=${msg.type} name=${msg.data.name}", msg)
	if err != nil {
		t.Fatalf("resolve failed: %v", err)
	}
	want := "type=event name=widget"
	if got != want {
		t.Errorf("expected %q, got %q", want, got)
	}
}

func TestResolve_LiteralTextWithoutMarkersPassesThroughUnchanged(t *testing.T) {
	msg := newTestMessage(t, map[string]int{"value": 1})

	got, err := Resolve("plain literal, no substitution", msg)
	if err != nil {
		t.Fatalf("resolve failed: %v", err)
	}
	if got != "plain literal, no substitution" {
		t.Errorf("expected literal text unchanged, got %q", got)
	}
}

func TestResolve_IsIdempotentOnceResolved(t *testing.T) {
	msg := newTestMessage(t, map[string]interface{}{"name": "widget"})

	once, err := Resolve("${msg.data.name}", msg)
	if err != nil {
		t.Fatalf("resolve failed: %v", err)
	}
	twice, err := Resolve(once, msg)
	if err != nil {
		t.Fatalf("resolve failed: %v", err)
	}
	if once != twice {
		t.Errorf("expected a second resolve pass to be a no-op: %q != %q", once, twice)
	}
}

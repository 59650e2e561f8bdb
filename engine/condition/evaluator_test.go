package condition

import "testing"

func TestEvalBool_SimpleComparison(t *testing.T) {
	e := NewEvaluator()
	msg := map[string]interface{}{"data": map[string]interface{}{"value": 20.0}}

	pass, err := e.EvalBool("msg.data.value < 10", msg, nil)
	if err != nil {
		t.Fatalf("eval failed: %v", err)
	}
	if pass {
		t.Error("expected 20 < 10 to be false")
	}

	pass, err = e.EvalBool("msg.data.value > 10", msg, nil)
	if err != nil {
		t.Fatalf("eval failed: %v", err)
	}
	if !pass {
		t.Error("expected 20 > 10 to be true")
	}
}

func TestEvalBool_NonBooleanResultErrors(t *testing.T) {
	e := NewEvaluator()
	msg := map[string]interface{}{"data": map[string]interface{}{"value": 1.0}}

	_, err := e.EvalBool("msg.data.value", msg, nil)
	if err == nil {
		t.Fatal("expected an error for a non-boolean expression result")
	}
}

func TestEval_MapLiteralResultUnwrapsToNativeGoMap(t *testing.T) {
	e := NewEvaluator()
	msg := map[string]interface{}{"data": map[string]interface{}{"value": 1.0}}

	out, err := e.Eval(`{"value": msg.data.value + 1.0}`, msg, nil)
	if err != nil {
		t.Fatalf("eval failed: %v", err)
	}
	native, ok := out.(map[string]interface{})
	if !ok {
		t.Fatalf("expected map[string]interface{}, got %T", out)
	}
	if native["value"] != 2.0 {
		t.Errorf("expected value=2, got %v", native["value"])
	}
}

func TestEval_ListLiteralResultUnwrapsToNativeGoSlice(t *testing.T) {
	e := NewEvaluator()
	msg := map[string]interface{}{"data": map[string]interface{}{}}

	out, err := e.Eval(`[1, 2, 3]`, msg, nil)
	if err != nil {
		t.Fatalf("eval failed: %v", err)
	}
	native, ok := out.([]interface{})
	if !ok {
		t.Fatalf("expected []interface{}, got %T", out)
	}
	if len(native) != 3 {
		t.Errorf("expected 3 elements, got %d", len(native))
	}
}

func TestEval_ScalarResultRoundTripsViaValue(t *testing.T) {
	e := NewEvaluator()
	msg := map[string]interface{}{"data": map[string]interface{}{"value": 5.0}}

	out, err := e.Eval("msg.data.value + 1.0", msg, nil)
	if err != nil {
		t.Fatalf("eval failed: %v", err)
	}
	if out != 6.0 {
		t.Errorf("expected 6.0, got %v (%T)", out, out)
	}
}

func TestEval_DollarShorthandAliasesMsgData(t *testing.T) {
	e := NewEvaluator()
	msg := map[string]interface{}{"data": map[string]interface{}{"value": 7.0}}

	out, err := e.Eval("$.value", msg, nil)
	if err != nil {
		t.Fatalf("eval failed: %v", err)
	}
	if out != 7.0 {
		t.Errorf("expected 7.0, got %v", out)
	}
}

func TestEval_CompiledProgramIsCached(t *testing.T) {
	e := NewEvaluator()
	msg := map[string]interface{}{"data": map[string]interface{}{"value": 1.0}}

	if _, err := e.Eval("msg.data.value", msg, nil); err != nil {
		t.Fatalf("eval failed: %v", err)
	}
	if e.CacheSize() != 1 {
		t.Errorf("expected 1 cached program, got %d", e.CacheSize())
	}
	if _, err := e.Eval("msg.data.value", msg, nil); err != nil {
		t.Fatalf("eval failed: %v", err)
	}
	if e.CacheSize() != 1 {
		t.Errorf("expected cache size to stay at 1 after re-evaluating the same expression, got %d", e.CacheSize())
	}

	e.ClearCache()
	if e.CacheSize() != 0 {
		t.Errorf("expected cache to be empty after ClearCache, got %d", e.CacheSize())
	}
}

func TestEval_CompileErrorOnMalformedExpression(t *testing.T) {
	e := NewEvaluator()
	_, err := e.Eval("msg.data.(((", nil, nil)
	if err == nil {
		t.Fatal("expected a compile error for malformed CEL syntax")
	}
}

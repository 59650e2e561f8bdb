// Package condition wraps google/cel-go behind the engine's script
// evaluation contract: eval(source, bindings) -> value | error, with a
// compiled-program cache keyed by normalized expression string so repeated
// evaluation of the same filter/switch/script body across many messages
// does not re-parse.
package condition

import (
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/google/cel-go/cel"
)

// Target shapes for ConvertToNative so map/list results (e.g. a script
// node's `{"value": ...}` literal) come back as plain
// map[string]interface{}/[]interface{} rather than CEL's internal ref.Val
// containers, which json.Marshal cannot serialize.
var (
	nativeMapType  = reflect.TypeOf(map[string]interface{}{})
	nativeListType = reflect.TypeOf([]interface{}{})
)

// Evaluator compiles and evaluates CEL expressions against msg/ctx bindings.
type Evaluator struct {
	mu    sync.RWMutex
	cache map[string]cel.Program
}

// NewEvaluator returns an evaluator with an empty program cache.
func NewEvaluator() *Evaluator {
	return &Evaluator{cache: make(map[string]cel.Program)}
}

// EvalBool evaluates expr and requires a boolean result (filter conditions,
// switch case predicates).
func (e *Evaluator) EvalBool(expr string, msg, ctx map[string]interface{}) (bool, error) {
	out, err := e.Eval(expr, msg, ctx)
	if err != nil {
		return false, err
	}
	b, ok := out.(bool)
	if !ok {
		return false, fmt.Errorf("expression %q did not return boolean, got %T", expr, out)
	}
	return b, nil
}

// Eval evaluates expr against msg/ctx bindings and returns the raw result,
// for script/transform_js/js_function bodies that produce arbitrary JSON.
func (e *Evaluator) Eval(expr string, msg, ctx map[string]interface{}) (interface{}, error) {
	// Allow the shorthand "$.field" as an alias for "msg.data.field", the
	// same JSONPath-to-CEL rewrite convenience the condition evaluator this
	// is adapted from offers for "output.field".
	normalized := strings.ReplaceAll(expr, "$.", "msg.data.")

	prg, err := e.program(normalized)
	if err != nil {
		return nil, err
	}

	out, _, err := prg.Eval(map[string]interface{}{
		"msg": msg,
		"ctx": ctx,
	})
	if err != nil {
		return nil, fmt.Errorf("CEL evaluation error: %w", err)
	}

	// Map/list results need ConvertToNative to unwrap CEL's internal ref.Val
	// representation into plain Go values; scalars round-trip fine via Value().
	if native, err := out.ConvertToNative(nativeMapType); err == nil {
		return native, nil
	}
	if native, err := out.ConvertToNative(nativeListType); err == nil {
		return native, nil
	}
	return out.Value(), nil
}

func (e *Evaluator) program(expr string) (cel.Program, error) {
	e.mu.RLock()
	prg, ok := e.cache[expr]
	e.mu.RUnlock()
	if ok {
		return prg, nil
	}

	env, err := cel.NewEnv(
		cel.Variable("msg", cel.DynType),
		cel.Variable("ctx", cel.DynType),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL env: %w", err)
	}

	ast, issues := env.Compile(expr)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("CEL compilation error for %q: %w", expr, issues.Err())
	}

	prg, err = env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("failed to build CEL program for %q: %w", expr, err)
	}

	e.mu.Lock()
	e.cache[expr] = prg
	e.mu.Unlock()
	return prg, nil
}

// ClearCache empties the compiled-program cache.
func (e *Evaluator) ClearCache() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.cache = make(map[string]cel.Program)
}

// CacheSize reports how many expressions are currently cached.
func (e *Evaluator) CacheSize() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.cache)
}

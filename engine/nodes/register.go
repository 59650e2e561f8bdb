// Package nodes implements the built-in node types the engine ships with:
// start, log, delay, schedule, filter, transform, transform_js, script,
// switch, rest_client, subchain, js_function, fork, join.
package nodes

import (
	"github.com/lyzr/rulechain/common/logger"
	"github.com/lyzr/rulechain/engine/condition"
	"github.com/lyzr/rulechain/engine/registry"
)

// RegisterAll installs every built-in node type's factory into reg.
func RegisterAll(reg *registry.Registry, eval *condition.Evaluator, log *logger.Logger) {
	reg.Register("start", newStartFactory())
	reg.Register("log", newLogFactory(log))
	reg.Register("delay", newDelayFactory())
	reg.Register("schedule", newScheduleFactory())
	reg.Register("filter", newFilterFactory(eval))
	reg.Register("transform", newTransformFactory())
	reg.Register("transform_js", newTransformJSFactory(eval))
	reg.Register("script", newScriptFactory(eval))
	reg.Register("switch", newSwitchFactory(eval))
	reg.Register("rest_client", newRestClientFactory())
	reg.Register("subchain", newSubchainFactory())
	reg.Register("js_function", newJSFunctionFactory(eval))
	reg.Register("fork", newForkFactory())
	reg.Register("join", newJoinFactory())
}

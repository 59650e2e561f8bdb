package nodes

import (
	"encoding/json"

	"github.com/lyzr/rulechain/engine/condition"
	"github.com/lyzr/rulechain/engine/message"
	"github.com/lyzr/rulechain/engine/registry"
	"github.com/lyzr/rulechain/engine/ruleerr"
)

// jsFunctionConfig declares named helper expressions and which one to
// invoke. Function bodies are CEL expressions (see engine/condition). The
// shared evaluator's compiled-program cache is keyed by expression source,
// not by function name, so two chains declaring a same-named helper never
// collide as long as their bodies differ; chain id and node id are folded
// into the call only for error messages, not into the cached program key.
type jsFunctionConfig struct {
	Functions map[string]string `json:"functions"`
	Call      string            `json:"call"`
}

type jsFunctionHandler struct {
	cfg  jsFunctionConfig
	eval *condition.Evaluator
}

func newJSFunctionFactory(eval *condition.Evaluator) registry.Factory {
	return func(config json.RawMessage) (registry.Handler, error) {
		var cfg jsFunctionConfig
		if len(config) > 0 {
			if err := json.Unmarshal(config, &cfg); err != nil {
				return nil, err
			}
		}
		return &jsFunctionHandler{cfg: cfg, eval: eval}, nil
	}
}

func (h *jsFunctionHandler) Handle(ctx registry.Context, msg message.Message) (message.Message, error) {
	expr, ok := h.cfg.Functions[h.cfg.Call]
	if !ok {
		return message.Message{}, ruleerr.New(ruleerr.KindConfigError, "js_function: no function named %q declared", h.cfg.Call)
	}

	node := ctx.Node()

	bindings, err := msg.AsMap()
	if err != nil {
		return message.Message{}, ruleerr.Wrap(ruleerr.KindNodeExecutionError, err, "failed to build CEL bindings")
	}

	result, err := h.eval.Eval(expr, bindings, nil)
	if err != nil {
		return message.Message{}, ruleerr.Wrap(ruleerr.KindNodeExecutionError, err, "js_function %q failed in node %s/%s", h.cfg.Call, node.ChainID, node.ID)
	}

	data, err := json.Marshal(result)
	if err != nil {
		return message.Message{}, ruleerr.Wrap(ruleerr.KindNodeExecutionError, err, "failed to marshal js_function result")
	}

	next := msg.Clone()
	next.Data = data

	return ctx.SendNext(next)
}

func (h *jsFunctionHandler) Descriptor() registry.Descriptor {
	return registry.Descriptor{
		TypeName:    "js_function",
		HumanName:   "JS Function",
		Description: "Invokes one of several named CEL helper expressions declared in the node's own config.",
		Role:        registry.RoleMiddle,
	}
}

package nodes

import (
	"encoding/json"

	"github.com/lyzr/rulechain/engine/condition"
	"github.com/lyzr/rulechain/engine/message"
	"github.com/lyzr/rulechain/engine/registry"
	"github.com/lyzr/rulechain/engine/ruleerr"
)

// scriptConfig holds a CEL expression producing the new message data, e.g.
// `{"value": msg.data.value + 1.0}` (JSON numbers bind as CEL doubles, and
// CEL does not mix double and int operands in arithmetic).
type scriptConfig struct {
	Expression string `json:"expression"`
}

type scriptHandler struct {
	cfg  scriptConfig
	eval *condition.Evaluator
}

func newScriptFactory(eval *condition.Evaluator) registry.Factory {
	return func(config json.RawMessage) (registry.Handler, error) {
		var cfg scriptConfig
		if len(config) > 0 {
			if err := json.Unmarshal(config, &cfg); err != nil {
				return nil, err
			}
		}
		return &scriptHandler{cfg: cfg, eval: eval}, nil
	}
}

func (h *scriptHandler) Handle(ctx registry.Context, msg message.Message) (message.Message, error) {
	bindings, err := msg.AsMap()
	if err != nil {
		return message.Message{}, ruleerr.Wrap(ruleerr.KindNodeExecutionError, err, "failed to build CEL bindings")
	}

	result, err := h.eval.Eval(h.cfg.Expression, bindings, nil)
	if err != nil {
		return message.Message{}, ruleerr.Wrap(ruleerr.KindNodeExecutionError, err, "script evaluation failed")
	}

	data, err := json.Marshal(result)
	if err != nil {
		return message.Message{}, ruleerr.Wrap(ruleerr.KindNodeExecutionError, err, "failed to marshal script result")
	}

	next := msg.Clone()
	next.Data = data

	return ctx.SendNext(next)
}

func (h *scriptHandler) Descriptor() registry.Descriptor {
	return registry.Descriptor{
		TypeName:    "script",
		HumanName:   "Script",
		Description: "Evaluates a CEL expression against the message and replaces its data with the result.",
		Role:        registry.RoleMiddle,
	}
}

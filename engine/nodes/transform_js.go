package nodes

import (
	"encoding/json"

	"github.com/lyzr/rulechain/engine/condition"
	"github.com/lyzr/rulechain/engine/message"
	"github.com/lyzr/rulechain/engine/registry"
	"github.com/lyzr/rulechain/engine/ruleerr"
)

// transformJSConfig maps output field names to CEL expressions (as opposed
// to transform's ${...} string templates), for callers that want
// expression-level computation per field rather than whole-message script
// replacement.
type transformJSConfig struct {
	Fields map[string]string `json:"fields"`
}

type transformJSHandler struct {
	cfg  transformJSConfig
	eval *condition.Evaluator
}

func newTransformJSFactory(eval *condition.Evaluator) registry.Factory {
	return func(config json.RawMessage) (registry.Handler, error) {
		cfg := transformJSConfig{Fields: map[string]string{}}
		if len(config) > 0 {
			if err := json.Unmarshal(config, &cfg); err != nil {
				return nil, err
			}
		}
		return &transformJSHandler{cfg: cfg, eval: eval}, nil
	}
}

func (h *transformJSHandler) Handle(ctx registry.Context, msg message.Message) (message.Message, error) {
	bindings, err := msg.AsMap()
	if err != nil {
		return message.Message{}, ruleerr.Wrap(ruleerr.KindNodeExecutionError, err, "failed to build CEL bindings")
	}

	out := make(map[string]interface{}, len(h.cfg.Fields))
	for field, expr := range h.cfg.Fields {
		val, err := h.eval.Eval(expr, bindings, nil)
		if err != nil {
			return message.Message{}, ruleerr.Wrap(ruleerr.KindNodeExecutionError, err, "failed to evaluate field %q", field)
		}
		out[field] = val
	}

	data, err := json.Marshal(out)
	if err != nil {
		return message.Message{}, ruleerr.Wrap(ruleerr.KindNodeExecutionError, err, "failed to marshal transform_js output")
	}

	next := msg.Clone()
	next.Data = data

	return ctx.SendNext(next)
}

func (h *transformJSHandler) Descriptor() registry.Descriptor {
	return registry.Descriptor{
		TypeName:    "transform_js",
		HumanName:   "Transform (expression fields)",
		Description: "Rebuilds message data from a field-to-CEL-expression map.",
		Role:        registry.RoleMiddle,
	}
}

package nodes

import (
	"encoding/json"

	"github.com/lyzr/rulechain/engine/condition"
	"github.com/lyzr/rulechain/engine/message"
	"github.com/lyzr/rulechain/engine/registry"
	"github.com/lyzr/rulechain/engine/ruleerr"
)

// filterConfig holds the CEL boolean expression gating the message.
type filterConfig struct {
	Condition string `json:"condition"`
}

type filterHandler struct {
	cfg  filterConfig
	eval *condition.Evaluator
}

func newFilterFactory(eval *condition.Evaluator) registry.Factory {
	return func(config json.RawMessage) (registry.Handler, error) {
		cfg := filterConfig{Condition: "true"}
		if len(config) > 0 {
			if err := json.Unmarshal(config, &cfg); err != nil {
				return nil, err
			}
		}
		return &filterHandler{cfg: cfg, eval: eval}, nil
	}
}

func (h *filterHandler) Handle(ctx registry.Context, msg message.Message) (message.Message, error) {
	bindings, err := msg.AsMap()
	if err != nil {
		return message.Message{}, ruleerr.Wrap(ruleerr.KindNodeExecutionError, err, "failed to build CEL bindings")
	}

	pass, err := h.eval.EvalBool(h.cfg.Condition, bindings, nil)
	if err != nil {
		return message.Message{}, ruleerr.Wrap(ruleerr.KindNodeExecutionError, err, "filter condition failed")
	}
	if !pass {
		return message.Message{}, ruleerr.New(ruleerr.KindFilterReject, "condition %q rejected message %s", h.cfg.Condition, msg.ID)
	}

	return ctx.SendNext(msg)
}

func (h *filterHandler) Descriptor() registry.Descriptor {
	return registry.Descriptor{
		TypeName:    "filter",
		HumanName:   "Filter",
		Description: "Evaluates a CEL condition against the message; rejects with FilterReject when false.",
		Role:        registry.RoleMiddle,
	}
}

package nodes

import (
	"encoding/json"

	"github.com/lyzr/rulechain/engine/condition"
	"github.com/lyzr/rulechain/engine/message"
	"github.com/lyzr/rulechain/engine/registry"
	"github.com/lyzr/rulechain/engine/ruleerr"
)

// switchCase pairs a CEL boolean condition with the branch label to emit
// when it is the first matching case.
type switchCase struct {
	Condition string `json:"condition"`
	Branch    string `json:"branch"`
}

type switchConfig struct {
	Cases   []switchCase `json:"cases"`
	Default string       `json:"default"`
}

type switchHandler struct {
	cfg  switchConfig
	eval *condition.Evaluator
}

func newSwitchFactory(eval *condition.Evaluator) registry.Factory {
	return func(config json.RawMessage) (registry.Handler, error) {
		var cfg switchConfig
		if len(config) > 0 {
			if err := json.Unmarshal(config, &cfg); err != nil {
				return nil, err
			}
		}
		return &switchHandler{cfg: cfg, eval: eval}, nil
	}
}

func (h *switchHandler) Handle(ctx registry.Context, msg message.Message) (message.Message, error) {
	bindings, err := msg.AsMap()
	if err != nil {
		return message.Message{}, ruleerr.Wrap(ruleerr.KindNodeExecutionError, err, "failed to build CEL bindings")
	}

	branch := h.cfg.Default
	for _, c := range h.cfg.Cases {
		matched, err := h.eval.EvalBool(c.Condition, bindings, nil)
		if err != nil {
			return message.Message{}, ruleerr.Wrap(ruleerr.KindNodeExecutionError, err, "switch case %q failed", c.Branch)
		}
		if matched {
			branch = c.Branch
			break
		}
	}

	next := msg.Clone()
	next.SetBranchName(branch)

	return ctx.SendNext(next)
}

func (h *switchHandler) Descriptor() registry.Descriptor {
	return registry.Descriptor{
		TypeName:    "switch",
		HumanName:   "Switch",
		Description: "Evaluates ordered CEL cases and tags the message's branch_name with the first match, or the default.",
		Role:        registry.RoleMiddle,
	}
}

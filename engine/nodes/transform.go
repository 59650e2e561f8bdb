package nodes

import (
	"encoding/json"

	"github.com/lyzr/rulechain/engine/message"
	"github.com/lyzr/rulechain/engine/registry"
	"github.com/lyzr/rulechain/engine/resolver"
	"github.com/lyzr/rulechain/engine/ruleerr"
)

// transformConfig maps output field names to ${...} templates resolved
// against the inbound message; the result replaces msg.data entirely.
type transformConfig struct {
	Fields map[string]string `json:"fields"`
}

type transformHandler struct {
	cfg transformConfig
}

func newTransformFactory() registry.Factory {
	return func(config json.RawMessage) (registry.Handler, error) {
		cfg := transformConfig{Fields: map[string]string{}}
		if len(config) > 0 {
			if err := json.Unmarshal(config, &cfg); err != nil {
				return nil, err
			}
		}
		return &transformHandler{cfg: cfg}, nil
	}
}

func (h *transformHandler) Handle(ctx registry.Context, msg message.Message) (message.Message, error) {
	out := make(map[string]interface{}, len(h.cfg.Fields))
	for field, tmpl := range h.cfg.Fields {
		resolved, err := resolver.Resolve(tmpl, msg)
		if err != nil {
			return message.Message{}, ruleerr.Wrap(ruleerr.KindNodeExecutionError, err, "failed to resolve field %q", field)
		}
		out[field] = resolved
	}

	data, err := json.Marshal(out)
	if err != nil {
		return message.Message{}, ruleerr.Wrap(ruleerr.KindNodeExecutionError, err, "failed to marshal transform output")
	}

	next := msg.Clone()
	next.Data = data

	return ctx.SendNext(next)
}

func (h *transformHandler) Descriptor() registry.Descriptor {
	return registry.Descriptor{
		TypeName:    "transform",
		HumanName:   "Transform",
		Description: "Rebuilds message data from a field-to-template map resolved via dotted-path substitution.",
		Role:        registry.RoleMiddle,
	}
}

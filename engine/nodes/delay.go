package nodes

import (
	"encoding/json"
	"time"

	"github.com/lyzr/rulechain/engine/message"
	"github.com/lyzr/rulechain/engine/registry"
)

// delayConfig configures a fixed-duration pause before forwarding.
type delayConfig struct {
	DurationMS int `json:"duration_ms"`
}

type delayHandler struct {
	cfg delayConfig
}

func newDelayFactory() registry.Factory {
	return func(config json.RawMessage) (registry.Handler, error) {
		var cfg delayConfig
		if len(config) > 0 {
			if err := json.Unmarshal(config, &cfg); err != nil {
				return nil, err
			}
		}
		return &delayHandler{cfg: cfg}, nil
	}
}

func (h *delayHandler) Handle(ctx registry.Context, msg message.Message) (message.Message, error) {
	if h.cfg.DurationMS > 0 {
		time.Sleep(time.Duration(h.cfg.DurationMS) * time.Millisecond)
	}
	return ctx.SendNext(msg)
}

func (h *delayHandler) Descriptor() registry.Descriptor {
	return registry.Descriptor{
		TypeName:    "delay",
		HumanName:   "Delay",
		Description: "Pauses for a fixed duration before forwarding the message.",
		Role:        registry.RoleHead,
	}
}

package nodes

import (
	"encoding/json"
	"time"

	"github.com/adhocore/gronx"
	"github.com/lyzr/rulechain/engine/message"
	"github.com/lyzr/rulechain/engine/registry"
	"github.com/lyzr/rulechain/engine/ruleerr"
)

// scheduleConfig carries a cron expression. Unlike delay's fixed pause,
// schedule is driven by an external trigger loop (outside a single
// process() call); the node itself validates the expression and records
// the next fire time in metadata for that trigger loop to consume.
type scheduleConfig struct {
	Cron string `json:"cron"`
}

type scheduleHandler struct {
	cfg scheduleConfig
}

func newScheduleFactory() registry.Factory {
	return func(config json.RawMessage) (registry.Handler, error) {
		var cfg scheduleConfig
		if len(config) > 0 {
			if err := json.Unmarshal(config, &cfg); err != nil {
				return nil, err
			}
		}
		return &scheduleHandler{cfg: cfg}, nil
	}
}

func (h *scheduleHandler) Handle(ctx registry.Context, msg message.Message) (message.Message, error) {
	if h.cfg.Cron != "" {
		if !gronx.IsValid(h.cfg.Cron) {
			return message.Message{}, ruleerr.New(ruleerr.KindConfigError, "invalid cron expression %q", h.cfg.Cron)
		}
		next, err := gronx.NextTick(h.cfg.Cron, true)
		if err == nil {
			msg.Metadata["next_fire_at"] = next.Format(time.RFC3339)
		}
	}
	return ctx.SendNext(msg)
}

func (h *scheduleHandler) Descriptor() registry.Descriptor {
	return registry.Descriptor{
		TypeName:    "schedule",
		HumanName:   "Schedule",
		Description: "Validates a cron expression and records the next fire time for an external trigger loop.",
		Role:        registry.RoleHead,
	}
}

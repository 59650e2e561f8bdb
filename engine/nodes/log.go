package nodes

import (
	"encoding/json"

	"github.com/lyzr/rulechain/common/logger"
	"github.com/lyzr/rulechain/engine/message"
	"github.com/lyzr/rulechain/engine/registry"
	"github.com/lyzr/rulechain/engine/resolver"
)

// logConfig configures the log node's output line. Template is resolved
// with ${...} substitution against the current message; an empty template
// logs the message's data verbatim.
type logConfig struct {
	Template string `json:"template"`
	Level    string `json:"level"`
}

type logHandler struct {
	cfg logConfig
	log *logger.Logger
}

func newLogFactory(log *logger.Logger) registry.Factory {
	return func(config json.RawMessage) (registry.Handler, error) {
		var cfg logConfig
		if len(config) > 0 {
			if err := json.Unmarshal(config, &cfg); err != nil {
				return nil, err
			}
		}
		return &logHandler{cfg: cfg, log: log}, nil
	}
}

func (h *logHandler) Handle(ctx registry.Context, msg message.Message) (message.Message, error) {
	line := string(msg.Data)
	if h.cfg.Template != "" {
		resolved, err := resolver.Resolve(h.cfg.Template, msg)
		if err != nil {
			return message.Message{}, err
		}
		line = resolved
	}

	switch h.cfg.Level {
	case "warn":
		h.log.Warn(line, "message_id", msg.ID.String())
	case "error":
		h.log.Error(line, "message_id", msg.ID.String())
	default:
		h.log.Info(line, "message_id", msg.ID.String())
	}
	return msg, nil
}

func (h *logHandler) Descriptor() registry.Descriptor {
	return registry.Descriptor{
		TypeName:    "log",
		HumanName:   "Log",
		Description: "Terminal node that writes the resolved template to the structured logger.",
		Role:        registry.RoleTail,
	}
}

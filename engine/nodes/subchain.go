package nodes

import (
	"encoding/json"

	"github.com/lyzr/rulechain/engine/message"
	"github.com/lyzr/rulechain/engine/registry"
)

// subchainConfig targets another loaded chain to execute as an opaque step.
type subchainConfig struct {
	ChainID string `json:"chain_id"`
}

type subchainHandler struct {
	cfg subchainConfig
}

func newSubchainFactory() registry.Factory {
	return func(config json.RawMessage) (registry.Handler, error) {
		var cfg subchainConfig
		if len(config) > 0 {
			if err := json.Unmarshal(config, &cfg); err != nil {
				return nil, err
			}
		}
		return &subchainHandler{cfg: cfg}, nil
	}
}

func (h *subchainHandler) Handle(ctx registry.Context, msg message.Message) (message.Message, error) {
	result, err := ctx.ExecuteSubchain(h.cfg.ChainID, msg)
	if err != nil {
		return message.Message{}, err
	}
	return ctx.SendNext(result)
}

func (h *subchainHandler) Descriptor() registry.Descriptor {
	return registry.Descriptor{
		TypeName:    "subchain",
		HumanName:   "Sub-chain",
		Description: "Delegates execution to another loaded chain by id, then forwards its result.",
		Role:        registry.RoleMiddle,
	}
}

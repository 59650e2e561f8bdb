package nodes

import (
	"encoding/json"

	"github.com/lyzr/rulechain/engine/message"
	"github.com/lyzr/rulechain/engine/registry"
)

// startHandler is the entry-point node type: Head role, passes its input
// straight to the next node unchanged.
type startHandler struct{}

func newStartFactory() registry.Factory {
	return func(config json.RawMessage) (registry.Handler, error) {
		return &startHandler{}, nil
	}
}

func (h *startHandler) Handle(ctx registry.Context, msg message.Message) (message.Message, error) {
	return ctx.SendNext(msg)
}

func (h *startHandler) Descriptor() registry.Descriptor {
	return registry.Descriptor{
		TypeName:    "start",
		HumanName:   "Start",
		Description: "Entry point of a rule chain; passes the inbound message through unchanged.",
		Role:        registry.RoleHead,
	}
}

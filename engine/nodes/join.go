package nodes

import (
	"encoding/json"

	"github.com/lyzr/rulechain/engine/message"
	"github.com/lyzr/rulechain/engine/registry"
)

// joinHandler waits for one arrival per incoming connection (keyed by the
// dispatcher's process-global join state) and, once the last arrival lands,
// emits a single merged message downstream.
type joinHandler struct{}

func newJoinFactory() registry.Factory {
	return func(config json.RawMessage) (registry.Handler, error) {
		return &joinHandler{}, nil
	}
}

type joinBranch struct {
	Data json.RawMessage `json:"data"`
}

// pendingKey marks a join arrival that is still waiting on its siblings, so
// the fork node that fanned the branches out can tell the one path that
// actually carried the chain's result forward from the ones that simply
// stopped here to wait.
const pendingKey = "_join_pending"

func (h *joinHandler) Handle(ctx registry.Context, msg message.Message) (message.Message, error) {
	batch, ready, _ := ctx.JoinArrive(msg)
	if !ready {
		pending := msg.Clone()
		pending.Metadata[pendingKey] = "true"
		return pending, nil
	}

	branches := make([]joinBranch, len(batch))
	for i, m := range batch {
		branches[i] = joinBranch{Data: m.Data}
	}
	data, err := json.Marshal(map[string]interface{}{"branches": branches})
	if err != nil {
		return message.Message{}, err
	}

	merged := msg.Clone()
	merged.Data = data

	return ctx.SendNext(merged)
}

func (h *joinHandler) Descriptor() registry.Descriptor {
	return registry.Descriptor{
		TypeName:    "join",
		HumanName:   "Join",
		Description: "Merges one arrival per incoming connection into a single {branches:[...]} message.",
		Role:        registry.RoleMiddle,
	}
}

package nodes

import (
	"encoding/json"
	"strconv"
	"sync"

	"github.com/lyzr/rulechain/engine/message"
	"github.com/lyzr/rulechain/engine/registry"
)

// forkHandler fans a message out across every outgoing "success"-labeled
// connection, dispatching each branch copy concurrently and waiting for all
// of them (or the first error) before returning.
type forkHandler struct{}

func newForkFactory() registry.Factory {
	return func(config json.RawMessage) (registry.Handler, error) {
		return &forkHandler{}, nil
	}
}

func (h *forkHandler) Handle(ctx registry.Context, msg message.Message) (message.Message, error) {
	edges, err := ctx.GetNextConnections("success")
	if err != nil {
		return message.Message{}, err
	}

	var wg sync.WaitGroup
	errs := make([]error, len(edges))
	results := make([]message.Message, len(edges))

	for i, edge := range edges {
		branch := msg.Clone()
		branch.Metadata["branch_id"] = strconv.Itoa(i)
		branch.Metadata["is_branch"] = "true"

		wg.Add(1)
		go func(i int, toID string, branchMsg message.Message) {
			defer wg.Done()
			result, err := ctx.SendToNode(toID, branchMsg)
			results[i] = result
			errs[i] = err
		}(i, edge.ToID, branch)
	}
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return message.Message{}, err
		}
	}

	// Exactly one branch, if any leads to a join, carries the chain's real
	// result past it; the rest stop at the join to wait on their siblings
	// and come back tagged pendingKey. Prefer the branch that got through.
	for _, r := range results {
		if _, pending := r.Metadata[pendingKey]; !pending {
			return r, nil
		}
	}
	return msg, nil
}

func (h *forkHandler) Descriptor() registry.Descriptor {
	return registry.Descriptor{
		TypeName:    "fork",
		HumanName:   "Fork",
		Description: "Fans a message out to every success-labeled successor concurrently, waiting for all branches.",
		Role:        registry.RoleMiddle,
	}
}

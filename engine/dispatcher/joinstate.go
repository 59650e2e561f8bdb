package dispatcher

import (
	"sync"
	"time"

	"github.com/lyzr/rulechain/engine/message"
)

// joinTimeout bounds how long a partial join entry survives, counted from
// its first arrival, before it is evicted. Resolves the spec's open question
// about join entries leaking forever when a branch errors: expired entries
// are dropped silently (no log, no error) the next time any message arrives
// at any join, rather than growing the map unboundedly.
const joinTimeout = 30 * time.Second

type joinEntry struct {
	messages []message.Message
	deadline time.Time
}

// joinState is the process-global fan-in coordination map. Keyed by the
// composite (chain_id, node_id, message_id) rather than message_id alone,
// per the design note resolving the original's looser id-only keying.
type joinState struct {
	mu      sync.Mutex
	entries map[string]*joinEntry
}

func newJoinState() *joinState {
	return &joinState{entries: make(map[string]*joinEntry)}
}

func joinKey(chainID, nodeID, msgID string) string {
	return chainID + "/" + nodeID + "/" + msgID
}

// arrive records msg's arrival at the join identified by (chainID, nodeID).
// When the accumulated count reaches expected, it returns the full batch
// and ready=true, clearing the entry. Otherwise it returns ready=false.
func (j *joinState) arrive(chainID, nodeID string, msg message.Message, expected int) ([]message.Message, bool) {
	j.mu.Lock()
	defer j.mu.Unlock()

	j.evictExpiredLocked()

	key := joinKey(chainID, nodeID, msg.ID.String())
	entry, ok := j.entries[key]
	if !ok {
		entry = &joinEntry{deadline: time.Now().Add(joinTimeout)}
		j.entries[key] = entry
	}
	entry.messages = append(entry.messages, msg)

	if len(entry.messages) >= expected {
		batch := entry.messages
		delete(j.entries, key)
		return batch, true
	}
	return nil, false
}

// evictExpiredLocked drops entries past their deadline. Must be called
// with j.mu held.
func (j *joinState) evictExpiredLocked() {
	now := time.Now()
	for k, e := range j.entries {
		if now.After(e.deadline) {
			delete(j.entries, k)
		}
	}
}

// Package events implements a best-effort Redis stream publisher for node
// lifecycle events, satisfying engine/dispatcher.EventPublisher. It is
// disabled by default; wiring one in trades a little latency for an
// external audit trail of every node start/completion.
package events

import (
	"context"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/lyzr/rulechain/common/logger"
)

// Publisher streams node lifecycle events to a Redis stream via XADD. A nil
// *Publisher receiver is never constructed directly; engine/dispatcher treats
// a nil EventPublisher interface value as "events disabled".
type Publisher struct {
	client *redis.Client
	stream string
	log    *logger.Logger
}

// New wraps an existing redis.Client, publishing to the named stream.
func New(client *redis.Client, stream string, log *logger.Logger) *Publisher {
	return &Publisher{client: client, stream: stream, log: log}
}

// NodeStarted publishes a best-effort "node started" event. Publish failures
// are logged, never returned: a down event bus must never fail node
// execution.
func (p *Publisher) NodeStarted(chainID, nodeID, nodeType string) {
	p.publish(map[string]interface{}{
		"event":     "node_started",
		"chain_id":  chainID,
		"node_id":   nodeID,
		"node_type": nodeType,
	})
}

// NodeCompleted publishes a best-effort "node completed" event, including
// whether the node errored.
func (p *Publisher) NodeCompleted(chainID, nodeID, nodeType string, err error) {
	fields := map[string]interface{}{
		"event":     "node_completed",
		"chain_id":  chainID,
		"node_id":   nodeID,
		"node_type": nodeType,
		"ok":        strconv.FormatBool(err == nil),
	}
	if err != nil {
		fields["error"] = err.Error()
	}
	p.publish(fields)
}

func (p *Publisher) publish(fields map[string]interface{}) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	id, err := p.client.XAdd(ctx, &redis.XAddArgs{
		Stream: p.stream,
		Values: fields,
	}).Result()
	if err != nil {
		p.log.Error("failed to publish lifecycle event", "stream", p.stream, "event", fields["event"], "error", err)
		return
	}
	p.log.Debug("published lifecycle event", "stream", p.stream, "id", id, "event", fields["event"])
}

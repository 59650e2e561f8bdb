// Package container wires the engine singleton and its ambient integrations
// together once at boot, mirroring the teacher's container.NewContainer
// singleton-construction pattern.
package container

import (
	"context"
	"fmt"

	"github.com/lyzr/rulechain/common/bootstrap"
	"github.com/lyzr/rulechain/engine"
	"github.com/lyzr/rulechain/engine/audit"
	"github.com/lyzr/rulechain/engine/events"
)

// Container holds the engine instance handlers operate on.
type Container struct {
	Components *bootstrap.Components
	Engine     *engine.Engine
}

// NewContainer builds the engine and wires in whichever ambient integrations
// bootstrap.Setup enabled.
func NewContainer(components *bootstrap.Components) (*Container, error) {
	eng := engine.New(components.Logger)

	if components.Redis != nil {
		pub := events.New(components.Redis, components.Config.Redis.Stream, components.Logger)
		eng.SetEventPublisher(pub)
	}

	if components.AuditDB != nil {
		sink := audit.New(components.AuditDB.Pool, components.Logger)
		if err := sink.EnsureSchema(context.Background()); err != nil {
			return nil, fmt.Errorf("failed to ensure audit schema: %w", err)
		}
		eng.Audit = sink
	}

	return &Container{
		Components: components,
		Engine:     eng,
	}, nil
}

package db

import (
	"context"

	"github.com/spacefab/spacefab/pkg/domain"
)

// AgentConfigInterface persists the one-to-one remote-development
// configuration of cluster agents.
type AgentConfigInterface interface {
	// Returns error wrapping domain.ErrMissing when the agent has no
	// config record yet.
	GetByAgent(ctx context.Context, agentId int64) (domain.AgentConfig, error)

	// Create or update the config record of cfg.AgentId.
	//
	// Enabled is immutable once true: attempting to store Enabled=false
	// over an enabled record returns error wrapping domain.ErrConflict
	// and leaves the record unchanged.
	Upsert(ctx context.Context, cfg domain.AgentConfig) (domain.AgentConfig, error)
}

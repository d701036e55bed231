package db

import (
	"context"

	"github.com/spacefab/spacefab/pkg/domain"
)

// WorkspaceInterface is the persistence contract of workspace records.
//
// All lookups are scoped to one agent: a workspace belongs to exactly one
// agent, so cross-agent contention never arises.
type WorkspaceInterface interface {
	// Get a workspace by its cluster identity.
	//
	// Returns error wrapping domain.ErrMissing when no such workspace is
	// persisted for the agent.
	GetByName(ctx context.Context, agentId int64, name string, namespace string) (domain.Workspace, error)

	// List workspaces of the agent matching any of the given names.
	// Names without a matching record are simply not represented in the
	// result; that is not an error.
	ListByName(ctx context.Context, agentId int64, names []string) ([]domain.Workspace, error)

	// List every workspace of the agent which has not reached its terminal
	// state (desired and actual both Terminated).
	ListLive(ctx context.Context, agentId int64) ([]domain.Workspace, error)

	// List non-terminal workspaces of the agent which either have a
	// desired-state change not yet acknowledged to the agent, or are
	// explicitly named by id.
	ListUnacknowledged(ctx context.Context, agentId int64, alsoIds []int64) ([]domain.Workspace, error)

	// Persist the reconciliation outcome for one workspace: actual_state,
	// deployment_resource_version and (for restart and time-to-live
	// handling) desired_state.
	//
	// A desired-state change made here bumps the workspace's desired-state
	// version so the next partial update resyncs it.
	//
	// Records whose stored actual_state is already Terminated are never
	// modified; such calls return error wrapping domain.ErrConflict.
	UpdateReportedState(ctx context.Context, w domain.Workspace) error

	// Record that rails infos for the given workspaces were just returned
	// to the agent, acknowledging their current desired-state versions.
	AcknowledgeResponse(ctx context.Context, agentId int64, workspaceIds []int64) error
}

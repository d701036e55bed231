package domain

import (
	"fmt"
	"time"
)

// WorkspaceState is the lifecycle vocabulary shared by both state axes of a
// workspace.
//
// desired_state (user-authoritative) only ever takes Running, Stopped,
// RestartRequested or Terminated. actual_state (agent-authoritative) may take
// any value here except RestartRequested.
type WorkspaceState string

const (
	// A workspace record exists but the agent has not created anything yet.
	CreationRequested WorkspaceState = "CreationRequested"

	// The deployment is scaling up.
	Starting WorkspaceState = "Starting"

	// The workspace is up and serving.
	Running WorkspaceState = "Running"

	// The deployment is scaling down to zero.
	Stopping WorkspaceState = "Stopping"

	// The deployment is scaled to zero and all replicas are gone.
	Stopped WorkspaceState = "Stopped"

	// The user asked for a restart. Held until the agent reports Stopped,
	// then the desired state flips to Running.
	RestartRequested WorkspaceState = "RestartRequested"

	// The agent is tearing the workspace resources down.
	Terminating WorkspaceState = "Terminating"

	// Teardown confirmed. Terminal for both axes: no further transitions.
	Terminated WorkspaceState = "Terminated"

	// The deployment reported a progress failure (quota, image pull, ...).
	Failed WorkspaceState = "Failed"

	// The agent reported an error condition for the workspace.
	Error WorkspaceState = "Error"

	// The agent report could not be mapped to any other state.
	Unknown WorkspaceState = "Unknown"
)

func (s WorkspaceState) String() string {
	return string(s)
}

func AsWorkspaceState(state string) (WorkspaceState, error) {
	switch state {
	case string(CreationRequested):
		return CreationRequested, nil
	case string(Starting):
		return Starting, nil
	case string(Running):
		return Running, nil
	case string(Stopping):
		return Stopping, nil
	case string(Stopped):
		return Stopped, nil
	case string(RestartRequested):
		return RestartRequested, nil
	case string(Terminating):
		return Terminating, nil
	case string(Terminated):
		return Terminated, nil
	case string(Failed):
		return Failed, nil
	case string(Error):
		return Error, nil
	case string(Unknown):
		return Unknown, nil
	default:
		return "", fmt.Errorf("'%s' is not a WorkspaceState", state)
	}
}

// states a user may request as desired_state.
func ValidDesiredStates() []WorkspaceState {
	return []WorkspaceState{Running, Stopped, RestartRequested, Terminated}
}

func (s WorkspaceState) ValidDesiredState() bool {
	switch s {
	case Running, Stopped, RestartRequested, Terminated:
		return true
	default:
		return false
	}
}

// Abnormal states trigger a warning when received from an agent.
func (s WorkspaceState) Abnormal() bool {
	switch s {
	case Unknown, Error:
		return true
	default:
		return false
	}
}

// UpdateType selects the reconciliation mode of one agent poll.
type UpdateType string

const (
	// re-assert complete desired state for every live workspace.
	UpdateTypeFull UpdateType = "full"

	// limit the response to workspaces with unacknowledged desired-state
	// changes and those reported in the request.
	UpdateTypePartial UpdateType = "partial"
)

func AsUpdateType(s string) (UpdateType, error) {
	switch s {
	case string(UpdateTypeFull):
		return UpdateTypeFull, nil
	case string(UpdateTypePartial):
		return UpdateTypePartial, nil
	default:
		return "", fmt.Errorf("'%s' is not an UpdateType", s)
	}
}

// Workspace is a user's cloud development environment, realized by the owning
// agent as a Kubernetes Deployment plus supporting resources.
//
// The two state axes are written by disjoint actors: DesiredState only by
// user/API commands, ActualState only by reconciliation input processing.
type Workspace struct {
	Id        int64
	Name      string
	Namespace string

	// the cluster agent that runs this workspace.
	AgentId int64

	// owner identity, injected into generated git configuration.
	UserName  string
	UserEmail string

	DesiredState WorkspaceState
	ActualState  WorkspaceState

	// fully-resolved devfile content. Immutable after creation.
	ProcessedDevfile string

	// captured from the agent config at creation time.
	DNSZone string

	// last Deployment resourceVersion reported by the agent, if any.
	DeploymentResourceVersion *string

	// monotonic counters deciding whether the desired state changed after
	// the last response sent to the agent. Compared instead of wall-clock
	// timestamps to avoid clock-skew bugs.
	DesiredStateVersion     int64
	RespondedToAgentVersion int64

	CreatedAt time.Time

	// time-to-live; when exceeded the workspace is forced to Terminated.
	MaxHoursBeforeTermination int
}

// NeedsResync reports whether the desired state changed since the last
// response sent to the owning agent.
func (w Workspace) NeedsResync() bool {
	return w.RespondedToAgentVersion < w.DesiredStateVersion
}

// DesiredStarted reports whether the desired configuration should run the
// workspace with one replica.
func (w Workspace) DesiredStarted() bool {
	switch w.DesiredState {
	case Running, RestartRequested:
		return true
	default:
		return false
	}
}

// ActuallyTerminated reports whether the record reached its terminal state.
// Once true, no reconciliation step updates this workspace ever again.
func (w Workspace) ActuallyTerminated() bool {
	return w.ActualState == Terminated
}

// ExpiredAt reports whether the workspace outlived its time-to-live at now.
func (w Workspace) ExpiredAt(now time.Time) bool {
	if w.MaxHoursBeforeTermination <= 0 {
		return false
	}
	ttl := time.Duration(w.MaxHoursBeforeTermination) * time.Hour
	return w.CreatedAt.Add(ttl).Before(now)
}

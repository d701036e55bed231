// Package reconcile defines the wire format of the workspace reconciliation
// API consumed by cluster agents.
//
// An agent periodically POSTs a Request describing what it observes in its
// cluster, and receives a Response listing the workspaces it should converge,
// each optionally carrying the full desired configuration as a multi-document
// YAML stream.
package reconcile

import (
	"encoding/json"
	"fmt"
)

// UpdateType selects between the two reconciliation modes.
//
// A "full" update re-asserts complete desired state for every live workspace
// of the agent. A "partial" update is limited to workspaces with
// unacknowledged desired-state changes and those reported in the request.
type UpdateType string

const (
	UpdateTypeFull    UpdateType = "full"
	UpdateTypePartial UpdateType = "partial"
)

func AsUpdateType(s string) (UpdateType, error) {
	switch s {
	case string(UpdateTypeFull):
		return UpdateTypeFull, nil
	case string(UpdateTypePartial):
		return UpdateTypePartial, nil
	default:
		return "", fmt.Errorf("'%s' is not an update type", s)
	}
}

// Workspace lifecycle states as they appear on the wire.
const (
	StateCreationRequested = "CreationRequested"
	StateStarting          = "Starting"
	StateRunning           = "Running"
	StateStopping          = "Stopping"
	StateStopped           = "Stopped"
	StateRestartRequested  = "RestartRequested"
	StateTerminating       = "Terminating"
	StateTerminated        = "Terminated"
	StateFailed            = "Failed"
	StateError             = "Error"
	StateUnknown           = "Unknown"
)

var knownStates = map[string]struct{}{
	StateCreationRequested: {},
	StateStarting:          {},
	StateRunning:           {},
	StateStopping:          {},
	StateStopped:           {},
	StateRestartRequested:  {},
	StateTerminating:       {},
	StateTerminated:        {},
	StateFailed:            {},
	StateError:             {},
	StateUnknown:           {},
}

// ValidState reports whether s belongs to the closed workspace-state set.
func ValidState(s string) bool {
	_, ok := knownStates[s]
	return ok
}

// Progress of workspace teardown, reported by the agent instead of a
// deployment snapshot once the Kubernetes resources start disappearing.
const (
	TerminationProgressTerminating = "Terminating"
	TerminationProgressTerminated  = "Terminated"
)

// AgentInfo is one observed-state entry in a reconcile request.
//
// CurrentActualState may be left empty when the agent ships a raw
// deployment snapshot (LatestK8sDeploymentInfo) and lets the server derive
// the state from it.
type AgentInfo struct {
	Name                      string  `json:"name"`
	Namespace                 string  `json:"namespace"`
	DeploymentResourceVersion *string `json:"deployment_resource_version,omitempty"`
	PreviousActualState       string  `json:"previous_actual_state,omitempty"`
	CurrentActualState        string  `json:"current_actual_state,omitempty"`
	WorkspaceExists           bool    `json:"workspace_exists"`
	TerminationProgress       string  `json:"termination_progress,omitempty"`

	// Deployment document as last seen by the agent, verbatim.
	LatestK8sDeploymentInfo json.RawMessage `json:"latest_k8s_deployment_info,omitempty"`
}

type Request struct {
	UpdateType          string      `json:"update_type"`
	WorkspaceAgentInfos []AgentInfo `json:"workspace_agent_infos"`
}

// Validate checks the closed enumerations of the request shell.
//
// Anything outside the known vocabulary is a request-validation failure,
// never a downstream branch.
func (r Request) Validate() error {
	if _, err := AsUpdateType(r.UpdateType); err != nil {
		return err
	}

	for nth, info := range r.WorkspaceAgentInfos {
		if info.Name == "" {
			return fmt.Errorf("workspace_agent_infos[%d]: name is required", nth)
		}
		if info.Namespace == "" {
			return fmt.Errorf("workspace_agent_infos[%d]: namespace is required", nth)
		}
		if s := info.CurrentActualState; s != "" && !ValidState(s) {
			return fmt.Errorf(
				"workspace_agent_infos[%d]: '%s' is not a workspace state", nth, s,
			)
		}
		if s := info.PreviousActualState; s != "" && !ValidState(s) {
			return fmt.Errorf(
				"workspace_agent_infos[%d]: '%s' is not a workspace state", nth, s,
			)
		}
		switch info.TerminationProgress {
		case "", TerminationProgressTerminating, TerminationProgressTerminated:
		default:
			return fmt.Errorf(
				"workspace_agent_infos[%d]: '%s' is not a termination progress",
				nth, info.TerminationProgress,
			)
		}
	}

	return nil
}

// RailsInfo is the per-workspace instruction returned to the agent.
//
// ConfigToApply is nil when the agent already holds the correct manifests
// and should not re-apply anything.
type RailsInfo struct {
	Name                      string  `json:"name"`
	Namespace                 string  `json:"namespace"`
	DesiredState              string  `json:"desired_state"`
	ActualState               string  `json:"actual_state"`
	DeploymentResourceVersion *string `json:"deployment_resource_version,omitempty"`
	ConfigToApply             *string `json:"config_to_apply,omitempty"`
}

type Response struct {
	WorkspaceRailsInfos []RailsInfo `json:"workspace_rails_infos"`
}

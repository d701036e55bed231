package reconcile

import (
	"fmt"
	"log"

	appsv1 "k8s.io/api/apps/v1"
	"k8s.io/client-go/kubernetes/scheme"

	apireconcile "github.com/spacefab/spacefab-api-types/reconcile"
	"github.com/spacefab/spacefab/pkg/domain"
)

// AgentInfo is one workspace observation, parsed off the wire and with its
// actual state settled.
type AgentInfo struct {
	Name                      string
	Namespace                 string
	ActualState               domain.WorkspaceState
	DeploymentResourceVersion *string

	// WorkspaceExists reports whether the agent still sees the workspace's
	// Kubernetes resources.
	WorkspaceExists bool

	// status document of the observed Deployment, for diagnostics only.
	DeploymentStatus string
}

// ParseAgentInfo settles the actual state of one wire observation.
//
// Agents that report current_actual_state are taken at their word. Older
// agents only ship the observed Deployment; for those the state is derived
// from termination progress and the Deployment conditions.
func ParseAgentInfo(wire apireconcile.AgentInfo) (AgentInfo, error) {
	info := AgentInfo{
		Name:                      wire.Name,
		Namespace:                 wire.Namespace,
		DeploymentResourceVersion: wire.DeploymentResourceVersion,
		WorkspaceExists:           wire.WorkspaceExists,
	}

	deployment := decodeDeployment(wire.LatestK8sDeploymentInfo)
	if deployment != nil {
		info.DeploymentStatus = fmt.Sprintf("%+v", deployment.Status)
	}

	if wire.CurrentActualState != "" {
		state, err := domain.AsWorkspaceState(wire.CurrentActualState)
		if err != nil {
			return AgentInfo{}, fmt.Errorf("workspace '%s': %w", wire.Name, err)
		}
		info.ActualState = state
		return info, nil
	}

	info.ActualState = CalculateActualState(deployment, wire.TerminationProgress)
	return info, nil
}

// decodeDeployment reads the verbatim Deployment document an agent observed.
//
// Documents that do not decode as a Deployment count as no observation.
func decodeDeployment(raw []byte) *appsv1.Deployment {
	if len(raw) == 0 {
		return nil
	}
	deployment := &appsv1.Deployment{}
	obj, _, err := scheme.Codecs.UniversalDeserializer().Decode(raw, nil, deployment)
	if err != nil {
		return nil
	}
	if d, ok := obj.(*appsv1.Deployment); ok {
		return d
	}
	return deployment
}

// warnAbnormal flags observations whose settled state gives reconciliation
// nothing to act on.
func warnAbnormal(logger *log.Logger, info AgentInfo) {
	if !info.ActualState.Abnormal() {
		return
	}
	logger.Printf(
		"WARN: error_type=abnormal_workspace_state workspace=%s actual_state=%s deployment_status=%s",
		info.Name, info.ActualState, info.DeploymentStatus,
	)
}

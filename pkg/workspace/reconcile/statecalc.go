package reconcile

import (
	appsv1 "k8s.io/api/apps/v1"

	"github.com/spacefab/spacefab/pkg/domain"
)

// reasons carried by the Progressing condition of a Deployment.
// https://kubernetes.io/docs/concepts/workloads/controllers/deployment/#deployment-status
const (
	reasonNewReplicaSetCreated       = "NewReplicaSetCreated"
	reasonFoundNewReplicaSet         = "FoundNewReplicaSet"
	reasonReplicaSetUpdated          = "ReplicaSetUpdated"
	reasonNewReplicaSetAvailable     = "NewReplicaSetAvailable"
	reasonProgressDeadlineExceeded   = "ProgressDeadlineExceeded"
	reasonMinimumReplicasAvailable   = "MinimumReplicasAvailable"
	reasonMinimumReplicasUnavailable = "MinimumReplicasUnavailable"
)

// CalculateActualState derives the actual state of a workspace from the
// termination progress and the last Deployment the agent observed.
//
// Workspaces being torn down have no meaningful Deployment; termination
// progress wins over everything else. Otherwise the state follows the
// Deployment's Progressing/Available conditions and replica counts. Anything
// the table does not recognize is Unknown rather than a guess.
func CalculateActualState(deployment *appsv1.Deployment, terminationProgress string) domain.WorkspaceState {
	switch terminationProgress {
	case string(domain.Terminating):
		return domain.Terminating
	case string(domain.Terminated):
		return domain.Terminated
	}

	if deployment == nil {
		return domain.Unknown
	}

	spec := deployment.Spec
	status := deployment.Status
	if spec.Replicas == nil || len(status.Conditions) == 0 {
		return domain.Unknown
	}
	specReplicas := *spec.Replicas

	progressing := condition(status.Conditions, appsv1.DeploymentProgressing)
	if progressing == nil || progressing.Reason == "" {
		return domain.Unknown
	}

	// a failed rollout (quota, image pull, readiness, ...) is Failed
	// regardless of replica counts.
	if progressing.Reason == reasonProgressDeadlineExceeded {
		return domain.Failed
	}

	// a rollout still shuffling replica sets can only be starting or
	// stopping, decided by which way spec.replicas points.
	switch progressing.Reason {
	case reasonNewReplicaSetCreated, reasonFoundNewReplicaSet, reasonReplicaSetUpdated:
		if specReplicas == 0 {
			return domain.Stopping
		}
		if specReplicas == 1 {
			return domain.Starting
		}
	}

	available := condition(status.Conditions, appsv1.DeploymentAvailable)
	if available == nil || available.Reason == "" {
		return domain.Unknown
	}

	availableReplicas := status.AvailableReplicas
	unavailableReplicas := status.UnavailableReplicas

	if progressing.Reason == reasonNewReplicaSetAvailable {
		if available.Reason == reasonMinimumReplicasAvailable &&
			specReplicas == 0 && availableReplicas == 0 {
			return domain.Stopped
		}
		if available.Reason == reasonMinimumReplicasAvailable &&
			specReplicas == availableReplicas && unavailableReplicas == 0 {
			return domain.Running
		}
		// the rollout reason stays NewReplicaSetAvailable while scaling
		// between Running and Stopped, so the transitional states have to
		// be read off the replica counts.
		if available.Reason == reasonMinimumReplicasAvailable &&
			specReplicas == 0 && availableReplicas == 1 {
			return domain.Stopping
		}
		if (available.Reason == reasonMinimumReplicasAvailable ||
			available.Reason == reasonMinimumReplicasUnavailable) &&
			specReplicas == 1 && availableReplicas == 0 {
			return domain.Starting
		}
	}

	return domain.Unknown
}

func condition(conditions []appsv1.DeploymentCondition, t appsv1.DeploymentConditionType) *appsv1.DeploymentCondition {
	for i := range conditions {
		if conditions[i].Type == t {
			return &conditions[i]
		}
	}
	return nil
}

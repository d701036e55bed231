package mock

import (
	"context"
	"errors"

	"github.com/spacefab/spacefab/pkg/domain"
	kdb "github.com/spacefab/spacefab/pkg/domain/workspace/db"
)

type CallLog[T any] []T

type WorkspaceInterface struct {
	Impl struct {
		GetByName           func(ctx context.Context, agentId int64, name string, namespace string) (domain.Workspace, error)
		ListByName          func(ctx context.Context, agentId int64, names []string) ([]domain.Workspace, error)
		ListLive            func(ctx context.Context, agentId int64) ([]domain.Workspace, error)
		ListUnacknowledged  func(ctx context.Context, agentId int64, alsoIds []int64) ([]domain.Workspace, error)
		UpdateReportedState func(ctx context.Context, w domain.Workspace) error
		AcknowledgeResponse func(ctx context.Context, agentId int64, workspaceIds []int64) error
	}

	Calls struct {
		GetByName CallLog[struct {
			AgentId   int64
			Name      string
			Namespace string
		}]
		ListByName CallLog[struct {
			AgentId int64
			Names   []string
		}]
		ListLive           CallLog[int64]
		ListUnacknowledged CallLog[struct {
			AgentId int64
			AlsoIds []int64
		}]
		UpdateReportedState CallLog[domain.Workspace]
		AcknowledgeResponse CallLog[struct {
			AgentId      int64
			WorkspaceIds []int64
		}]
	}
}

func NewWorkspaceInterface() *WorkspaceInterface {
	return &WorkspaceInterface{}
}

var _ kdb.WorkspaceInterface = &WorkspaceInterface{}

func (m *WorkspaceInterface) GetByName(ctx context.Context, agentId int64, name string, namespace string) (domain.Workspace, error) {
	m.Calls.GetByName = append(m.Calls.GetByName, struct {
		AgentId   int64
		Name      string
		Namespace string
	}{AgentId: agentId, Name: name, Namespace: namespace})
	if m.Impl.GetByName != nil {
		return m.Impl.GetByName(ctx, agentId, name, namespace)
	}
	panic(errors.New("it should not be called"))
}

func (m *WorkspaceInterface) ListByName(ctx context.Context, agentId int64, names []string) ([]domain.Workspace, error) {
	m.Calls.ListByName = append(m.Calls.ListByName, struct {
		AgentId int64
		Names   []string
	}{AgentId: agentId, Names: names})
	if m.Impl.ListByName != nil {
		return m.Impl.ListByName(ctx, agentId, names)
	}
	panic(errors.New("it should not be called"))
}

func (m *WorkspaceInterface) ListLive(ctx context.Context, agentId int64) ([]domain.Workspace, error) {
	m.Calls.ListLive = append(m.Calls.ListLive, agentId)
	if m.Impl.ListLive != nil {
		return m.Impl.ListLive(ctx, agentId)
	}
	panic(errors.New("it should not be called"))
}

func (m *WorkspaceInterface) ListUnacknowledged(ctx context.Context, agentId int64, alsoIds []int64) ([]domain.Workspace, error) {
	m.Calls.ListUnacknowledged = append(m.Calls.ListUnacknowledged, struct {
		AgentId int64
		AlsoIds []int64
	}{AgentId: agentId, AlsoIds: alsoIds})
	if m.Impl.ListUnacknowledged != nil {
		return m.Impl.ListUnacknowledged(ctx, agentId, alsoIds)
	}
	panic(errors.New("it should not be called"))
}

func (m *WorkspaceInterface) UpdateReportedState(ctx context.Context, w domain.Workspace) error {
	m.Calls.UpdateReportedState = append(m.Calls.UpdateReportedState, w)
	if m.Impl.UpdateReportedState != nil {
		return m.Impl.UpdateReportedState(ctx, w)
	}
	panic(errors.New("it should not be called"))
}

func (m *WorkspaceInterface) AcknowledgeResponse(ctx context.Context, agentId int64, workspaceIds []int64) error {
	m.Calls.AcknowledgeResponse = append(m.Calls.AcknowledgeResponse, struct {
		AgentId      int64
		WorkspaceIds []int64
	}{AgentId: agentId, WorkspaceIds: workspaceIds})
	if m.Impl.AcknowledgeResponse != nil {
		return m.Impl.AcknowledgeResponse(ctx, agentId, workspaceIds)
	}
	panic(errors.New("it should not be called"))
}

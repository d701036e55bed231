package mock

import (
	"context"
	"errors"

	"github.com/spacefab/spacefab/pkg/domain"
	kdb "github.com/spacefab/spacefab/pkg/domain/agent/db"
)

type CallLog[T any] []T

type AgentConfigInterface struct {
	Impl struct {
		GetByAgent func(ctx context.Context, agentId int64) (domain.AgentConfig, error)
		Upsert     func(ctx context.Context, cfg domain.AgentConfig) (domain.AgentConfig, error)
	}

	Calls struct {
		GetByAgent CallLog[int64]
		Upsert     CallLog[domain.AgentConfig]
	}
}

func NewAgentConfigInterface() *AgentConfigInterface {
	return &AgentConfigInterface{}
}

var _ kdb.AgentConfigInterface = &AgentConfigInterface{}

func (m *AgentConfigInterface) GetByAgent(ctx context.Context, agentId int64) (domain.AgentConfig, error) {
	m.Calls.GetByAgent = append(m.Calls.GetByAgent, agentId)
	if m.Impl.GetByAgent != nil {
		return m.Impl.GetByAgent(ctx, agentId)
	}
	panic(errors.New("it should not be called"))
}

func (m *AgentConfigInterface) Upsert(ctx context.Context, cfg domain.AgentConfig) (domain.AgentConfig, error) {
	m.Calls.Upsert = append(m.Calls.Upsert, cfg)
	if m.Impl.Upsert != nil {
		return m.Impl.Upsert(ctx, cfg)
	}
	panic(errors.New("it should not be called"))
}

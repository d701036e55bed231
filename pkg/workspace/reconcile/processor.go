// Package reconcile implements one round of the declarative reconciliation
// loop: take what an agent observed, persist it, and answer with what the
// agent should make true next.
package reconcile

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	apireconcile "github.com/spacefab/spacefab-api-types/reconcile"
	"github.com/spacefab/spacefab/pkg/domain"
	agentdb "github.com/spacefab/spacefab/pkg/domain/agent/db"
	wsdb "github.com/spacefab/spacefab/pkg/domain/workspace/db"
	"github.com/spacefab/spacefab/pkg/utils/slices"
)

// Observer is notified with the outgoing rails infos just before they are
// returned. Observers read; they never mutate the payload.
type Observer interface {
	Observe(agent domain.Agent, updateType domain.UpdateType, infos []apireconcile.RailsInfo)
}

// ConfigGenerator renders the desired config stream of one workspace.
// desiredconfig.Generator is the production implementation.
type ConfigGenerator interface {
	Generate(ws domain.Workspace, cfg domain.AgentConfig) (string, error)
}

type Processor struct {
	Workspaces   wsdb.WorkspaceInterface
	AgentConfigs agentdb.AgentConfigInterface
	Generator    ConfigGenerator
	Observers    []Observer
	Logger       *log.Logger

	// Now is the clock of time-to-live handling; tests pin it.
	Now func() time.Time
}

// Process runs one reconciliation round for agent.
//
// A single workspace failing -- unparsable devfile, conflicting update --
// never fails the round: the failure is logged, that workspace degrades, and
// every other workspace reconciles normally.
func (p *Processor) Process(
	ctx context.Context, agent domain.Agent, req apireconcile.Request,
) (apireconcile.Response, error) {
	updateType, err := domain.AsUpdateType(req.UpdateType)
	if err != nil {
		return apireconcile.Response{}, err
	}

	p.Logger.Printf(
		"DEBUG: beginning reconcile: agent=%d update_type=%s count=%d",
		agent.Id, updateType, len(req.WorkspaceAgentInfos),
	)

	infosByName := map[string]AgentInfo{}
	for _, wire := range req.WorkspaceAgentInfos {
		info, err := ParseAgentInfo(wire)
		if err != nil {
			p.Logger.Printf("WARN: dropping workspace agent info: %s", err)
			continue
		}
		infosByName[info.Name] = info
	}
	names := slices.KeysOf(infosByName)

	persisted, err := p.Workspaces.ListByName(ctx, agent.Id, names)
	if err != nil {
		return apireconcile.Response{}, err
	}

	p.checkForOrphans(agent, updateType, infosByName, persisted)

	for _, ws := range persisted {
		p.updateWithLatestInfo(ctx, ws, infosByName[ws.Name])
	}

	cfg, err := p.AgentConfigs.GetByAgent(ctx, agent.Id)
	if err != nil {
		if !errors.Is(err, domain.ErrMissing) {
			return apireconcile.Response{}, err
		}
		// an agent without a config record still reconciles states; its
		// workspaces just render without the config-dependent extras.
		cfg = domain.AgentConfig{AgentId: agent.Id}
	}

	toReturn, err := p.selectWorkspaces(ctx, agent, updateType, persisted)
	if err != nil {
		return apireconcile.Response{}, err
	}

	railsInfos := make([]apireconcile.RailsInfo, 0, len(toReturn))
	for _, ws := range toReturn {
		config, err := p.configToApply(ws, cfg, updateType)
		if err != nil {
			return apireconcile.Response{}, err
		}
		railsInfos = append(railsInfos, apireconcile.RailsInfo{
			Name:                      ws.Name,
			Namespace:                 ws.Namespace,
			DesiredState:              string(ws.DesiredState),
			ActualState:               string(ws.ActualState),
			DeploymentResourceVersion: ws.DeploymentResourceVersion,
			ConfigToApply:             config,
		})
	}

	// acknowledge only after the payload is built, so a failure before this
	// point leaves every workspace due for resync on the next poll.
	returnedIds := slices.Map(toReturn, func(ws domain.Workspace) int64 { return ws.Id })
	if err := p.Workspaces.AcknowledgeResponse(ctx, agent.Id, returnedIds); err != nil {
		return apireconcile.Response{}, err
	}

	for _, obs := range p.Observers {
		obs.Observe(agent, updateType, railsInfos)
	}

	return apireconcile.Response{WorkspaceRailsInfos: railsInfos}, nil
}

// updateWithLatestInfo persists what the agent reported about one workspace.
// Failures are logged and contained here.
func (p *Processor) updateWithLatestInfo(ctx context.Context, ws domain.Workspace, info AgentInfo) {
	// an agent that no longer sees the resources of a workspace meant to be
	// terminated is confirming the teardown finished.
	if !info.WorkspaceExists && ws.DesiredState == domain.Terminated {
		info.ActualState = domain.Terminated
	}

	warnAbnormal(p.Logger, info)

	// RestartRequested holds only until the workspace is seen Stopped; then
	// the desired state flips to Running so the agent starts it again.
	if ws.DesiredState == domain.RestartRequested && info.ActualState == domain.Stopped {
		ws.DesiredState = domain.Running
	}

	// workspaces do not live past their time-to-live.
	if ws.ExpiredAt(p.Now()) {
		ws.DesiredState = domain.Terminated
	}

	ws.ActualState = info.ActualState

	// a resource version can be absent, e.g. when the very first apply
	// errored before a Deployment existed.
	if info.DeploymentResourceVersion != nil {
		ws.DeploymentResourceVersion = info.DeploymentResourceVersion
	}

	if err := p.Workspaces.UpdateReportedState(ctx, ws); err != nil {
		if errors.Is(err, domain.ErrConflict) {
			p.Logger.Printf(
				"DEBUG: skipping update of terminated workspace %s: %s", ws.Name, err,
			)
			return
		}
		p.Logger.Printf("WARN: failed to update workspace %s: %s", ws.Name, err)
	}
}

func (p *Processor) selectWorkspaces(
	ctx context.Context,
	agent domain.Agent,
	updateType domain.UpdateType,
	persisted []domain.Workspace,
) ([]domain.Workspace, error) {
	if updateType == domain.UpdateTypeFull {
		// a full update rebuilds the agent's whole world.
		return p.Workspaces.ListLive(ctx, agent.Id)
	}

	// a partial update answers for workspaces with unacknowledged
	// desired-state changes, plus whatever the agent reported on.
	reportedIds := slices.Map(persisted, func(ws domain.Workspace) int64 { return ws.Id })
	return p.Workspaces.ListUnacknowledged(ctx, agent.Id, reportedIds)
}

// configToApply renders the full desired config when this response must carry
// it: always on full updates, on partial updates only for workspaces whose
// desired state moved since the last acknowledged response.
//
// An unparsable devfile already degrades to an empty stream inside the
// generator; every other failure is unexpected and fails the round.
func (p *Processor) configToApply(
	ws domain.Workspace, cfg domain.AgentConfig, updateType domain.UpdateType,
) (*string, error) {
	if updateType == domain.UpdateTypePartial && !ws.NeedsResync() {
		return nil, nil
	}

	stream, err := p.Generator.Generate(ws, cfg)
	if err != nil {
		return nil, fmt.Errorf("rendering desired config for workspace %s: %w", ws.Name, err)
	}
	if stream == "" {
		return nil, nil
	}
	return &stream, nil
}

func (p *Processor) checkForOrphans(
	agent domain.Agent,
	updateType domain.UpdateType,
	infosByName map[string]AgentInfo,
	persisted []domain.Workspace,
) {
	known := map[string]struct{}{}
	for _, ws := range persisted {
		known[ws.Name] = struct{}{}
	}

	var orphanNames, orphanNamespaces []string
	for _, name := range slices.KeysOf(infosByName) {
		if _, ok := known[name]; ok {
			continue
		}
		orphanNames = append(orphanNames, name)
		orphanNamespaces = append(orphanNamespaces, infosByName[name].Namespace)
	}
	if len(orphanNames) == 0 {
		return
	}

	// the agent runs something we have no record of. Only flag it; cleanup
	// is a human decision.
	p.Logger.Printf(
		"WARN: error_type=orphaned_workspace agent=%d update_type=%s count=%d names=%s namespaces=%s",
		agent.Id, updateType, len(orphanNames),
		strings.Join(orphanNames, ","), strings.Join(orphanNamespaces, ","),
	)
}

package agent

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v4"

	kpgerr "github.com/spacefab/spacefab/pkg/db/postgres/errors"
	"github.com/spacefab/spacefab/pkg/db/postgres/pool"
	"github.com/spacefab/spacefab/pkg/db/postgres/scanner"
	"github.com/spacefab/spacefab/pkg/domain"
	kdb "github.com/spacefab/spacefab/pkg/domain/agent/db"
)

type pgAgentConfig struct {
	pool pool.Pool
}

func New(pool pool.Pool) kdb.AgentConfigInterface {
	return &pgAgentConfig{pool: pool}
}

type row struct {
	AgentId                  int64  `sql:"agent_id"`
	Enabled                  bool   `sql:"enabled"`
	DNSZone                  string `sql:"dns_zone"`
	NetworkPolicyEnabled     bool   `sql:"network_policy_enabled"`
	WorkspacesProxyNamespace string `sql:"workspaces_proxy_namespace"`
}

func (r row) toDomain() domain.AgentConfig {
	return domain.AgentConfig{
		AgentId:                  r.AgentId,
		Enabled:                  r.Enabled,
		DNSZone:                  r.DNSZone,
		NetworkPolicyEnabled:     r.NetworkPolicyEnabled,
		WorkspacesProxyNamespace: r.WorkspacesProxyNamespace,
	}
}

const columns = `
	"agent_id", "enabled", "dns_zone", "network_policy_enabled",
	"workspaces_proxy_namespace"
`

func (a *pgAgentConfig) GetByAgent(ctx context.Context, agentId int64) (domain.AgentConfig, error) {
	rows, err := scanner.New[row]().QueryAll(
		ctx, a.pool,
		`select `+columns+` from "agent_configs" where "agent_id" = $1`,
		agentId,
	)
	if err != nil {
		return domain.AgentConfig{}, err
	}
	if len(rows) == 0 {
		return domain.AgentConfig{}, kpgerr.Missing{
			Table:    "agent_configs",
			Identity: fmt.Sprintf("agent_id=%d", agentId),
		}
	}
	return rows[0].toDomain(), nil
}

func (a *pgAgentConfig) Upsert(ctx context.Context, cfg domain.AgentConfig) (domain.AgentConfig, error) {
	tx, err := a.pool.Begin(ctx)
	if err != nil {
		return domain.AgentConfig{}, err
	}
	defer tx.Rollback(ctx)

	identity := fmt.Sprintf("agent_id=%d", cfg.AgentId)

	var storedEnabled bool
	err = tx.QueryRow(
		ctx,
		`select "enabled" from "agent_configs" where "agent_id" = $1 for update`,
		cfg.AgentId,
	).Scan(&storedEnabled)
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		// first config for this agent
	case err != nil:
		return domain.AgentConfig{}, err
	case storedEnabled && !cfg.Enabled:
		return domain.AgentConfig{}, kpgerr.Conflict{
			Table:    "agent_configs",
			Identity: identity,
			Reason:   "enabled is immutable once true",
		}
	}

	if _, err := tx.Exec(
		ctx,
		`insert into "agent_configs"
			("agent_id", "enabled", "dns_zone", "network_policy_enabled", "workspaces_proxy_namespace", "updated_at")
		values ($1, $2, $3, $4, $5, now())
		on conflict ("agent_id") do update set
			"enabled" = excluded."enabled",
			"dns_zone" = excluded."dns_zone",
			"network_policy_enabled" = excluded."network_policy_enabled",
			"workspaces_proxy_namespace" = excluded."workspaces_proxy_namespace",
			"updated_at" = now()`,
		cfg.AgentId, cfg.Enabled, cfg.DNSZone,
		cfg.NetworkPolicyEnabled, cfg.WorkspacesProxyNamespace,
	); err != nil {
		return domain.AgentConfig{}, kpgerr.AsConflict(err, "agent_configs", identity)
	}

	if err := tx.Commit(ctx); err != nil {
		return domain.AgentConfig{}, err
	}
	return cfg, nil
}

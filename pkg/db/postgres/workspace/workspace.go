package workspace

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v4"

	kpgerr "github.com/spacefab/spacefab/pkg/db/postgres/errors"
	"github.com/spacefab/spacefab/pkg/db/postgres/pool"
	"github.com/spacefab/spacefab/pkg/db/postgres/scanner"
	"github.com/spacefab/spacefab/pkg/domain"
	kdb "github.com/spacefab/spacefab/pkg/domain/workspace/db"
	"github.com/spacefab/spacefab/pkg/utils/slices"
)

type pgWorkspace struct {
	pool pool.Pool
}

func New(pool pool.Pool) kdb.WorkspaceInterface {
	return &pgWorkspace{pool: pool}
}

// row mirrors the columns of the "workspaces" table.
type row struct {
	Id                        int64     `sql:"id"`
	AgentId                   int64     `sql:"agent_id"`
	Name                      string    `sql:"name"`
	Namespace                 string    `sql:"namespace"`
	UserName                  string    `sql:"user_name"`
	UserEmail                 string    `sql:"user_email"`
	DesiredState              string    `sql:"desired_state"`
	ActualState               string    `sql:"actual_state"`
	ProcessedDevfile          string    `sql:"processed_devfile"`
	DNSZone                   string    `sql:"dns_zone"`
	DeploymentResourceVersion *string   `sql:"deployment_resource_version"`
	DesiredStateVersion       int64     `sql:"desired_state_version"`
	RespondedToAgentVersion   int64     `sql:"responded_to_agent_version"`
	MaxHoursBeforeTermination int       `sql:"max_hours_before_termination"`
	CreatedAt                 time.Time `sql:"created_at"`
}

func (r row) toDomain() (domain.Workspace, error) {
	desired, err := domain.AsWorkspaceState(r.DesiredState)
	if err != nil {
		return domain.Workspace{}, fmt.Errorf("workspace %d: %w", r.Id, err)
	}
	actual, err := domain.AsWorkspaceState(r.ActualState)
	if err != nil {
		return domain.Workspace{}, fmt.Errorf("workspace %d: %w", r.Id, err)
	}
	return domain.Workspace{
		Id:                        r.Id,
		AgentId:                   r.AgentId,
		Name:                      r.Name,
		Namespace:                 r.Namespace,
		UserName:                  r.UserName,
		UserEmail:                 r.UserEmail,
		DesiredState:              desired,
		ActualState:               actual,
		ProcessedDevfile:          r.ProcessedDevfile,
		DNSZone:                   r.DNSZone,
		DeploymentResourceVersion: r.DeploymentResourceVersion,
		DesiredStateVersion:       r.DesiredStateVersion,
		RespondedToAgentVersion:   r.RespondedToAgentVersion,
		MaxHoursBeforeTermination: r.MaxHoursBeforeTermination,
		CreatedAt:                 r.CreatedAt,
	}, nil
}

const columns = `
	"id", "agent_id", "name", "namespace", "user_name", "user_email",
	"desired_state", "actual_state", "processed_devfile", "dns_zone",
	"deployment_resource_version", "desired_state_version",
	"responded_to_agent_version", "max_hours_before_termination", "created_at"
`

func toDomainAll(rows []row) ([]domain.Workspace, error) {
	return slices.MapUntilError(rows, row.toDomain)
}

func (w *pgWorkspace) GetByName(
	ctx context.Context, agentId int64, name string, namespace string,
) (domain.Workspace, error) {
	rows, err := scanner.New[row]().QueryAll(
		ctx, w.pool,
		`select `+columns+` from "workspaces"
		where "agent_id" = $1 and "name" = $2 and "namespace" = $3`,
		agentId, name, namespace,
	)
	if err != nil {
		return domain.Workspace{}, err
	}
	if len(rows) == 0 {
		return domain.Workspace{}, kpgerr.Missing{
			Table:    "workspaces",
			Identity: fmt.Sprintf("name='%s' namespace='%s' (agent %d)", name, namespace, agentId),
		}
	}
	return rows[0].toDomain()
}

func (w *pgWorkspace) ListByName(
	ctx context.Context, agentId int64, names []string,
) ([]domain.Workspace, error) {
	if len(names) == 0 {
		return nil, nil
	}
	rows, err := scanner.New[row]().QueryAll(
		ctx, w.pool,
		`select `+columns+` from "workspaces"
		where "agent_id" = $1 and "name" = any($2)
		order by "id"`,
		agentId, names,
	)
	if err != nil {
		return nil, err
	}
	return toDomainAll(rows)
}

func (w *pgWorkspace) ListLive(ctx context.Context, agentId int64) ([]domain.Workspace, error) {
	rows, err := scanner.New[row]().QueryAll(
		ctx, w.pool,
		`select `+columns+` from "workspaces"
		where "agent_id" = $1
		and not ("desired_state" = $2 and "actual_state" = $2)
		order by "id"`,
		agentId, string(domain.Terminated),
	)
	if err != nil {
		return nil, err
	}
	return toDomainAll(rows)
}

func (w *pgWorkspace) ListUnacknowledged(
	ctx context.Context, agentId int64, alsoIds []int64,
) ([]domain.Workspace, error) {
	if alsoIds == nil {
		alsoIds = []int64{}
	}
	rows, err := scanner.New[row]().QueryAll(
		ctx, w.pool,
		`select `+columns+` from "workspaces"
		where "agent_id" = $1
		and not ("desired_state" = $2 and "actual_state" = $2)
		and ("responded_to_agent_version" < "desired_state_version" or "id" = any($3))
		order by "id"`,
		agentId, string(domain.Terminated), alsoIds,
	)
	if err != nil {
		return nil, err
	}
	return toDomainAll(rows)
}

func (w *pgWorkspace) UpdateReportedState(ctx context.Context, ws domain.Workspace) error {
	tx, err := w.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	var storedActual string
	if err := tx.QueryRow(
		ctx,
		`select "actual_state" from "workspaces" where "id" = $1 for update`,
		ws.Id,
	).Scan(&storedActual); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return kpgerr.Missing{
				Table:    "workspaces",
				Identity: fmt.Sprintf("id=%d", ws.Id),
			}
		}
		return err
	}
	if storedActual == string(domain.Terminated) {
		return kpgerr.Conflict{
			Table:    "workspaces",
			Identity: fmt.Sprintf("id=%d", ws.Id),
			Reason:   "already terminated",
		}
	}

	// the version bump compares against the stored desired_state, so a
	// write with an unchanged desired state never forces a resync.
	if _, err := tx.Exec(
		ctx,
		`update "workspaces" set
			"actual_state" = $2,
			"deployment_resource_version" = $3,
			"desired_state_version" = "desired_state_version"
				+ (case when "desired_state" = $4 then 0 else 1 end),
			"desired_state" = $4
		where "id" = $1`,
		ws.Id,
		string(ws.ActualState),
		ws.DeploymentResourceVersion,
		string(ws.DesiredState),
	); err != nil {
		return kpgerr.AsConflict(err, "workspaces", fmt.Sprintf("id=%d", ws.Id))
	}

	return tx.Commit(ctx)
}

func (w *pgWorkspace) AcknowledgeResponse(
	ctx context.Context, agentId int64, workspaceIds []int64,
) error {
	if len(workspaceIds) == 0 {
		return nil
	}
	_, err := w.pool.Exec(
		ctx,
		`update "workspaces"
		set "responded_to_agent_version" = "desired_state_version"
		where "agent_id" = $1 and "id" = any($2)`,
		agentId, workspaceIds,
	)
	return err
}

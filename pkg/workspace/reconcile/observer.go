package reconcile

import (
	"log"

	apireconcile "github.com/spacefab/spacefab-api-types/reconcile"
	"github.com/spacefab/spacefab/pkg/domain"
)

// LoggingObserver records each outgoing rails info.
//
// config_to_apply is a whole manifest stream and never belongs in a log
// line, so only the state fields are written.
type LoggingObserver struct {
	Logger *log.Logger
}

var _ Observer = LoggingObserver{}

func (o LoggingObserver) Observe(
	agent domain.Agent, updateType domain.UpdateType, infos []apireconcile.RailsInfo,
) {
	o.Logger.Printf(
		"DEBUG: returning workspace rails infos: agent=%d update_type=%s count=%d",
		agent.Id, updateType, len(infos),
	)
	for _, info := range infos {
		drv := ""
		if info.DeploymentResourceVersion != nil {
			drv = *info.DeploymentResourceVersion
		}
		o.Logger.Printf(
			"DEBUG: rails info: workspace=%s namespace=%s desired_state=%s actual_state=%s deployment_resource_version=%s",
			info.Name, info.Namespace, info.DesiredState, info.ActualState, drv,
		)
	}
}

// Package agentconfig turns the remote_development fragment of an agent's
// config file into a persisted agent config.
package agentconfig

import (
	"context"
	"errors"
	"fmt"
	"log"

	apiagentconfig "github.com/spacefab/spacefab-api-types/agentconfig"
	"github.com/spacefab/spacefab/pkg/domain"
	agentdb "github.com/spacefab/spacefab/pkg/domain/agent/db"
)

// answered when the config file has no remote_development entry at all.
const SkippedReasonNoConfigFileEntry = "no_config_file_entry_found"

// ValidationError carries per-field messages of a rejected fragment.
type ValidationError struct {
	FieldErrors []apiagentconfig.FieldError
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("invalid remote_development config (%d field errors)", len(e.FieldErrors))
}

type Updater struct {
	AgentConfigs agentdb.AgentConfigInterface
	Logger       *log.Logger
}

// Update applies the remote_development fragment of file to agent.
//
// A file without the fragment is skipped, not an error: most agents never
// carry one. Validation failures come back as ValidationError.
func (u *Updater) Update(
	ctx context.Context, agent domain.Agent, file apiagentconfig.File,
) (apiagentconfig.UpdateResult, error) {
	fragment := file.RemoteDevelopment
	if fragment == nil {
		u.Logger.Printf(
			"DEBUG: agent %d config has no remote_development entry, skipping", agent.Id,
		)
		return apiagentconfig.UpdateResult{
			SkippedReason: SkippedReasonNoConfigFileEntry,
		}, nil
	}

	cfg := domain.AgentConfig{
		AgentId:                  agent.Id,
		Enabled:                  fragment.Enabled,
		DNSZone:                  fragment.DNSZone,
		NetworkPolicyEnabled:     true,
		WorkspacesProxyNamespace: domain.DefaultWorkspacesProxyNamespace,
	}
	if fragment.NetworkPolicy != nil {
		cfg.NetworkPolicyEnabled = fragment.NetworkPolicy.Enabled
	}
	if fragment.Proxy != nil && fragment.Proxy.Namespace != "" {
		cfg.WorkspacesProxyNamespace = fragment.Proxy.Namespace
	}

	if fieldErrors := validate(cfg); len(fieldErrors) != 0 {
		return apiagentconfig.UpdateResult{}, ValidationError{FieldErrors: fieldErrors}
	}

	stored, err := u.AgentConfigs.Upsert(ctx, cfg)
	if err != nil {
		if errors.Is(err, domain.ErrConflict) {
			return apiagentconfig.UpdateResult{}, ValidationError{
				FieldErrors: []apiagentconfig.FieldError{{
					Field:   "enabled",
					Message: "cannot be disabled once enabled",
				}},
			}
		}
		return apiagentconfig.UpdateResult{}, err
	}

	return apiagentconfig.UpdateResult{
		AgentConfig: &apiagentconfig.AgentConfig{
			AgentID:                  stored.AgentId,
			Enabled:                  stored.Enabled,
			DNSZone:                  stored.DNSZone,
			NetworkPolicyEnabled:     stored.NetworkPolicyEnabled,
			WorkspacesProxyNamespace: stored.WorkspacesProxyNamespace,
		},
	}, nil
}

func validate(cfg domain.AgentConfig) []apiagentconfig.FieldError {
	var fieldErrors []apiagentconfig.FieldError
	if cfg.DNSZone == "" {
		fieldErrors = append(fieldErrors, apiagentconfig.FieldError{
			Field: "dns_zone", Message: "is required",
		})
	} else if !domain.ValidDNSZone(cfg.DNSZone) {
		fieldErrors = append(fieldErrors, apiagentconfig.FieldError{
			Field: "dns_zone", Message: "contains invalid characters (valid characters are a-z, 0-9, '-' and '.')",
		})
	}
	return fieldErrors
}

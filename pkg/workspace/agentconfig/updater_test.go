package agentconfig_test

import (
	"context"
	"errors"
	"log"
	"os"
	"testing"

	apiagentconfig "github.com/spacefab/spacefab-api-types/agentconfig"
	kpgerr "github.com/spacefab/spacefab/pkg/db/postgres/errors"
	"github.com/spacefab/spacefab/pkg/domain"
	"github.com/spacefab/spacefab/pkg/domain/agent/db/mock"
	"github.com/spacefab/spacefab/pkg/utils/try"
	"github.com/spacefab/spacefab/pkg/workspace/agentconfig"
)

func testee(m *mock.AgentConfigInterface) *agentconfig.Updater {
	return &agentconfig.Updater{
		AgentConfigs: m,
		Logger:       log.New(os.Stderr, "", log.LstdFlags),
	}
}

func passthroughUpsert(m *mock.AgentConfigInterface) {
	m.Impl.Upsert = func(_ context.Context, cfg domain.AgentConfig) (domain.AgentConfig, error) {
		return cfg, nil
	}
}

func TestUpdate(t *testing.T) {
	ctx := context.Background()
	agent := domain.Agent{Id: 991, Name: "agent-1"}

	t.Run("a file without the fragment is skipped", func(t *testing.T) {
		m := mock.NewAgentConfigInterface()
		result := try.To(
			testee(m).Update(ctx, agent, apiagentconfig.File{}),
		).OrFatal(t)

		if result.SkippedReason != "no_config_file_entry_found" {
			t.Errorf("skipped reason: got %s", result.SkippedReason)
		}
		if len(m.Calls.Upsert) != 0 {
			t.Error("upsert should not be called")
		}
	})

	t.Run("a full fragment is stored with its settings", func(t *testing.T) {
		m := mock.NewAgentConfigInterface()
		passthroughUpsert(m)

		file := try.To(apiagentconfig.Unmarshal([]byte(`
remote_development:
  enabled: true
  dns_zone: workspaces.localdev.me
  network_policy:
    enabled: false
  gitlab_workspaces_proxy:
    namespace: custom-proxy-ns
`))).OrFatal(t)

		result := try.To(testee(m).Update(ctx, agent, file)).OrFatal(t)

		if result.AgentConfig == nil {
			t.Fatal("no agent config in result")
		}
		got := *result.AgentConfig
		want := apiagentconfig.AgentConfig{
			AgentID:                  991,
			Enabled:                  true,
			DNSZone:                  "workspaces.localdev.me",
			NetworkPolicyEnabled:     false,
			WorkspacesProxyNamespace: "custom-proxy-ns",
		}
		if got != want {
			t.Errorf("agent config: got %+v, want %+v", got, want)
		}
	})

	t.Run("defaults apply when optional keys are absent", func(t *testing.T) {
		m := mock.NewAgentConfigInterface()
		passthroughUpsert(m)

		file := try.To(apiagentconfig.Unmarshal([]byte(`
remote_development:
  enabled: true
  dns_zone: workspaces.localdev.me
`))).OrFatal(t)

		result := try.To(testee(m).Update(ctx, agent, file)).OrFatal(t)

		if !result.AgentConfig.NetworkPolicyEnabled {
			t.Error("network policy should default to enabled")
		}
		if result.AgentConfig.WorkspacesProxyNamespace != "gitlab-workspaces" {
			t.Errorf("proxy namespace: got %s", result.AgentConfig.WorkspacesProxyNamespace)
		}
	})

	t.Run("an invalid dns_zone is a field error", func(t *testing.T) {
		m := mock.NewAgentConfigInterface()

		file := apiagentconfig.File{
			RemoteDevelopment: &apiagentconfig.Fragment{
				Enabled: true,
				DNSZone: "Not_A_Zone!",
			},
		}
		_, err := testee(m).Update(ctx, agent, file)

		var verr agentconfig.ValidationError
		if !errors.As(err, &verr) {
			t.Fatalf("not ValidationError: %+v", err)
		}
		if len(verr.FieldErrors) != 1 || verr.FieldErrors[0].Field != "dns_zone" {
			t.Errorf("field errors: got %+v", verr.FieldErrors)
		}
		if len(m.Calls.Upsert) != 0 {
			t.Error("upsert should not be called")
		}
	})

	t.Run("disabling an enabled agent is rejected", func(t *testing.T) {
		m := mock.NewAgentConfigInterface()
		m.Impl.Upsert = func(_ context.Context, cfg domain.AgentConfig) (domain.AgentConfig, error) {
			return domain.AgentConfig{}, kpgerr.Conflict{
				Table: "agent_configs", Identity: "agent_id=991",
				Reason: "enabled is immutable once true",
			}
		}

		file := apiagentconfig.File{
			RemoteDevelopment: &apiagentconfig.Fragment{
				Enabled: false,
				DNSZone: "workspaces.localdev.me",
			},
		}
		_, err := testee(m).Update(ctx, agent, file)

		var verr agentconfig.ValidationError
		if !errors.As(err, &verr) {
			t.Fatalf("not ValidationError: %+v", err)
		}
		if len(verr.FieldErrors) != 1 || verr.FieldErrors[0].Field != "enabled" {
			t.Errorf("field errors: got %+v", verr.FieldErrors)
		}
	})
}

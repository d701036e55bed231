package desiredconfig_test

import (
	"log"
	"os"
	"strings"
	"testing"

	"sigs.k8s.io/yaml"

	"github.com/spacefab/spacefab/pkg/domain"
	"github.com/spacefab/spacefab/pkg/utils/try"
	"github.com/spacefab/spacefab/pkg/workspace/desiredconfig"
)

const devfileContent = `
schemaVersion: 2.2.0
components:
  - name: tooling-container
    container:
      image: quay.io/mloriedo/universal-developer-image:ubi8-dw-demo
      endpoints:
        - name: editor-server
          targetPort: 60001
      volumeMounts:
        - name: data
          path: /projects
  - name: data
    volume:
      size: 15Gi
`

func workspaceFixture() domain.Workspace {
	return domain.Workspace{
		Id:               990,
		AgentId:          991,
		Name:             "workspace-991-990-fbdf9c",
		Namespace:        "gl-rd-ns-991-990-fbdf9c",
		UserName:         "name-1",
		UserEmail:        "user1@example.dev",
		DesiredState:     domain.Running,
		ActualState:      domain.Stopped,
		ProcessedDevfile: devfileContent,
		DNSZone:          "workspaces.localdev.me",
	}
}

func agentConfigFixture() domain.AgentConfig {
	return domain.AgentConfig{
		AgentId:                  991,
		Enabled:                  true,
		DNSZone:                  "workspaces.localdev.me",
		NetworkPolicyEnabled:     true,
		WorkspacesProxyNamespace: "gitlab-workspaces",
	}
}

func testee() desiredconfig.Generator {
	return desiredconfig.Generator{
		Logger: log.New(os.Stderr, "", log.LstdFlags),
	}
}

func TestGenerate(t *testing.T) {
	t.Run("it renders a document stream with inventory first", func(t *testing.T) {
		stream := try.To(
			testee().Generate(workspaceFixture(), agentConfigFixture()),
		).OrFatal(t)

		docs := splitDocs(stream)
		// inventory, deployment, service, pvc, network policy
		if len(docs) != 5 {
			t.Fatalf("documents: got %d, want 5", len(docs))
		}

		var head struct {
			Kind     string `json:"kind"`
			Metadata struct {
				Name   string            `json:"name"`
				Labels map[string]string `json:"labels"`
			} `json:"metadata"`
		}
		if err := yaml.Unmarshal([]byte(docs[0]), &head); err != nil {
			t.Fatal(err)
		}
		if head.Kind != "ConfigMap" {
			t.Errorf("first document: got %s", head.Kind)
		}
		if head.Metadata.Name != "workspace-991-990-fbdf9c-workspace-inventory" {
			t.Errorf("inventory name: got %s", head.Metadata.Name)
		}
		if head.Metadata.Labels["cli-utils.sigs.k8s.io/inventory-id"] != head.Metadata.Name {
			t.Errorf("inventory labels: got %+v", head.Metadata.Labels)
		}

		for _, want := range []string{
			`config.k8s.io/owning-inventory: workspace-991-990-fbdf9c-workspace-inventory`,
			`workspaces.gitlab.com/host-template: '{{.port}}-workspace-991-990-fbdf9c.workspaces.localdev.me'`,
			`workspaces.gitlab.com/id: "990"`,
			`agent.gitlab.com/id: "991"`,
		} {
			if !strings.Contains(stream, want) {
				t.Errorf("stream lacks %q", want)
			}
		}
	})

	t.Run("it is idempotent", func(t *testing.T) {
		a := try.To(testee().Generate(workspaceFixture(), agentConfigFixture())).OrFatal(t)
		b := try.To(testee().Generate(workspaceFixture(), agentConfigFixture())).OrFatal(t)
		if a != b {
			t.Error("streams differ between renders")
		}
	})

	t.Run("replicas follow the desired state", func(t *testing.T) {
		for desired, want := range map[domain.WorkspaceState]string{
			domain.Running:          "replicas: 1",
			domain.RestartRequested: "replicas: 1",
			domain.Stopped:          "replicas: 0",
			domain.Terminated:       "replicas: 0",
		} {
			ws := workspaceFixture()
			ws.DesiredState = desired
			stream := try.To(testee().Generate(ws, agentConfigFixture())).OrFatal(t)
			if !strings.Contains(stream, want) {
				t.Errorf("desired %s: stream lacks %q", desired, want)
			}
		}
	})

	t.Run("when network policy is disabled, none is rendered", func(t *testing.T) {
		cfg := agentConfigFixture()
		cfg.NetworkPolicyEnabled = false
		stream := try.To(testee().Generate(workspaceFixture(), cfg)).OrFatal(t)
		if strings.Contains(stream, "NetworkPolicy") {
			t.Error("stream has a NetworkPolicy")
		}
		if len(splitDocs(stream)) != 4 {
			t.Errorf("documents: got %d, want 4", len(splitDocs(stream)))
		}
	})

	t.Run("when the devfile is broken, it degrades to an empty stream", func(t *testing.T) {
		ws := workspaceFixture()
		ws.ProcessedDevfile = "{"
		stream, err := testee().Generate(ws, agentConfigFixture())
		if err != nil {
			t.Fatalf("unexpected error: %+v", err)
		}
		if stream != "" {
			t.Errorf("stream: got %q, want empty", stream)
		}
	})
}

func splitDocs(stream string) []string {
	var docs []string
	for _, d := range strings.Split(stream, "---\n") {
		if strings.TrimSpace(d) == "" {
			continue
		}
		docs = append(docs, d)
	}
	return docs
}

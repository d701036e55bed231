package devfile_test

import (
	"errors"
	"log"
	"os"
	"testing"

	appsv1 "k8s.io/api/apps/v1"
	corev1 "k8s.io/api/core/v1"

	"github.com/spacefab/spacefab/pkg/devfile"
	"github.com/spacefab/spacefab/pkg/utils/cmp"
	"github.com/spacefab/spacefab/pkg/utils/try"
)

const flattenedDevfile = `
schemaVersion: 2.2.0
components:
  - name: tooling-container
    attributes:
      gl/inject-editor: true
    container:
      image: quay.io/mloriedo/universal-developer-image:ubi8-dw-demo
      env:
        - name: EDITOR_VOLUME_DIR
          value: /projects/.gl-editor
      endpoints:
        - name: editor-server
          targetPort: 60001
        - name: ssh-server
          targetPort: 60022
      memoryRequest: 512Mi
      memoryLimit: 1Gi
      cpuRequest: 500m
      cpuLimit: "1"
      volumeMounts:
        - name: gl-workspace-data
          path: /projects
  - name: gl-cloner-injector
    attributes:
      gl/inject-editor: true
    container:
      image: alpine/git:2.36.3
      args: ["clone", "--branch", "main", "http://gdk.test:3000/g/p.git", "/projects"]
      volumeMounts:
        - name: gl-workspace-data
          path: /projects
  - name: gl-workspace-data
    attributes:
      gl/inject-editor: true
    volume:
      size: 15Gi
commands:
  - id: gl-cloner-injector-command
    apply:
      component: gl-cloner-injector
events:
  preStart:
    - gl-cloner-injector-command
`

func TestParse(t *testing.T) {
	t.Run("it accepts a flattened devfile", func(t *testing.T) {
		d := try.To(devfile.Parse(flattenedDevfile)).OrFatal(t)
		if d.SchemaVersion != "2.2.0" {
			t.Errorf("schemaVersion: got %s", d.SchemaVersion)
		}
		if len(d.Components) != 3 {
			t.Errorf("components: got %d", len(d.Components))
		}
	})

	t.Run("schemaVersion compares numerically, not lexically", func(t *testing.T) {
		d := try.To(devfile.Parse(`
schemaVersion: 10.0.0
components:
  - name: main
    container: {image: "alpine:3"}
`)).OrFatal(t)
		if d.SchemaVersion != "10.0.0" {
			t.Errorf("schemaVersion: got %s", d.SchemaVersion)
		}
	})

	for name, testcase := range map[string]struct {
		content string
	}{
		"when yaml is broken, it returns ParseError": {
			content: `{`,
		},
		"when schemaVersion is missing, it returns ParseError": {
			content: `
components:
  - name: main
    container: {image: "alpine:3"}
`,
		},
		"when schemaVersion is too old, it returns ParseError": {
			content: `
schemaVersion: 1.2.0
components:
  - name: main
    container: {image: "alpine:3"}
`,
		},
		"when schemaVersion is not dotted numerics, it returns ParseError": {
			content: `
schemaVersion: two.point.oh
components:
  - name: main
    container: {image: "alpine:3"}
`,
		},
		"when there are no components, it returns ParseError": {
			content: `
schemaVersion: 2.2.0
`,
		},
		"when an unflattened component uses the reserved prefix, it returns ParseError": {
			content: `
schemaVersion: 2.2.0
components:
  - name: gl-tooling
    container: {image: "alpine:3"}
`,
		},
		"when component names collide, it returns ParseError": {
			content: `
schemaVersion: 2.2.0
components:
  - name: main
    container: {image: "alpine:3"}
  - name: main
    container: {image: "alpine:3"}
`,
		},
		"when an image reference is malformed, it returns ParseError": {
			content: `
schemaVersion: 2.2.0
components:
  - name: main
    container: {image: "UPPER_CASE_IS_INVALID"}
`,
		},
		"when an endpoint port is out of range, it returns ParseError": {
			content: `
schemaVersion: 2.2.0
components:
  - name: main
    container:
      image: "alpine:3"
      endpoints:
        - name: web
          targetPort: 70000
`,
		},
		"when a volumeMount names no volume component, it returns ParseError": {
			content: `
schemaVersion: 2.2.0
components:
  - name: main
    container:
      image: "alpine:3"
      volumeMounts:
        - name: no-such-volume
          path: /data
`,
		},
		"when a preStart event has no command, it returns ParseError": {
			content: `
schemaVersion: 2.2.0
components:
  - name: main
    container: {image: "alpine:3"}
events:
  preStart:
    - missing-command
`,
		},
	} {
		t.Run(name, func(t *testing.T) {
			_, err := devfile.Parse(testcase.content)
			if err == nil {
				t.Fatal("no error")
			}
			var perr devfile.ParseError
			if !errors.As(err, &perr) {
				t.Errorf("not ParseError: %+v", err)
			}
		})
	}
}

func TestGetAll(t *testing.T) {
	params := devfile.Params{
		Name:      "workspace-991-990-fbdf9c",
		Namespace: "gl-rd-ns-991-990-fbdf9c",
		Replicas:  1,
		Labels: map[string]string{
			"agent.gitlab.com/id": "991",
		},
		Annotations: map[string]string{
			"config.k8s.io/owning-inventory":      "workspace-991-990-fbdf9c-workspace-inventory",
			"workspaces.gitlab.com/host-template": "{{.port}}-workspace-991-990-fbdf9c.workspaces.localdev.me",
			"workspaces.gitlab.com/id":            "990",
		},
		UserName:  "name-1",
		UserEmail: "user1@example.dev",
		Logger:    log.New(os.Stderr, "", log.LstdFlags),
	}

	t.Run("it renders deployment, service and pvc", func(t *testing.T) {
		objects := try.To(devfile.GetAll(flattenedDevfile, params)).OrFatal(t)
		if len(objects) != 3 {
			t.Fatalf("objects: got %d, want 3", len(objects))
		}

		deployment, ok := objects[0].(*appsv1.Deployment)
		if !ok {
			t.Fatalf("objects[0] is not a Deployment: %T", objects[0])
		}
		if deployment.Name != params.Name || deployment.Namespace != params.Namespace {
			t.Errorf(
				"deployment meta: got %s/%s", deployment.Namespace, deployment.Name,
			)
		}
		if !cmp.MapEq(deployment.Labels, params.Labels) {
			t.Errorf("deployment labels: got %+v", deployment.Labels)
		}
		if !cmp.MapEq(deployment.Annotations, params.Annotations) {
			t.Errorf("deployment annotations: got %+v", deployment.Annotations)
		}
		if deployment.Spec.Strategy.Type != appsv1.RecreateDeploymentStrategyType {
			t.Errorf("strategy: got %s", deployment.Spec.Strategy.Type)
		}

		podSpec := deployment.Spec.Template.Spec
		if len(podSpec.Containers) != 1 {
			t.Fatalf("containers: got %d", len(podSpec.Containers))
		}
		if len(podSpec.InitContainers) != 1 {
			t.Fatalf("initContainers: got %d", len(podSpec.InitContainers))
		}
		if podSpec.InitContainers[0].Name != "gl-cloner-injector" {
			t.Errorf("initContainer: got %s", podSpec.InitContainers[0].Name)
		}
		if sc := podSpec.SecurityContext; sc == nil ||
			sc.RunAsUser == nil || *sc.RunAsUser != devfile.RunAsUser ||
			sc.RunAsNonRoot == nil || !*sc.RunAsNonRoot {
			t.Errorf("pod securityContext: got %+v", sc)
		}

		tooling := podSpec.Containers[0]
		if tooling.Name != "tooling-container" {
			t.Errorf("container: got %s", tooling.Name)
		}
		gitEnv := map[string]string{}
		for _, e := range tooling.Env {
			gitEnv[e.Name] = e.Value
		}
		if !cmp.MapGeq(gitEnv, map[string]string{
			"GIT_AUTHOR_NAME":     "name-1",
			"GIT_AUTHOR_EMAIL":    "user1@example.dev",
			"GIT_COMMITTER_NAME":  "name-1",
			"GIT_COMMITTER_EMAIL": "user1@example.dev",
			"EDITOR_VOLUME_DIR":   "/projects/.gl-editor",
		}) {
			t.Errorf("container env: got %+v", gitEnv)
		}
		if sc := tooling.SecurityContext; sc == nil ||
			sc.AllowPrivilegeEscalation == nil || *sc.AllowPrivilegeEscalation {
			t.Errorf("container securityContext: got %+v", sc)
		}

		service, ok := objects[1].(*corev1.Service)
		if !ok {
			t.Fatalf("objects[1] is not a Service: %T", objects[1])
		}
		portNames := []string{}
		for _, p := range service.Spec.Ports {
			portNames = append(portNames, p.Name)
		}
		if !cmp.SliceEq(portNames, []string{"editor-server", "ssh-server"}) {
			t.Errorf("service ports: got %+v", portNames)
		}

		pvc, ok := objects[2].(*corev1.PersistentVolumeClaim)
		if !ok {
			t.Fatalf("objects[2] is not a PersistentVolumeClaim: %T", objects[2])
		}
		if pvc.Name != "workspace-991-990-fbdf9c-gl-workspace-data" {
			t.Errorf("pvc name: got %s", pvc.Name)
		}
		storage := pvc.Spec.Resources.Requests[corev1.ResourceStorage]
		if storage.String() != "15Gi" {
			t.Errorf("pvc size: got %s", storage.String())
		}
	})

	t.Run("it is deterministic", func(t *testing.T) {
		a := try.To(devfile.GetAll(flattenedDevfile, params)).OrFatal(t)
		b := try.To(devfile.GetAll(flattenedDevfile, params)).OrFatal(t)
		if len(a) != len(b) {
			t.Fatalf("lengths differ: %d vs %d", len(a), len(b))
		}
	})

	t.Run("when all containers are init containers, it returns ParseError", func(t *testing.T) {
		content := `
schemaVersion: 2.2.0
components:
  - name: cloner
    container: {image: "alpine/git:2.36.3"}
commands:
  - id: clone
    apply: {component: cloner}
events:
  preStart: [clone]
`
		_, err := devfile.GetAll(content, params)
		var perr devfile.ParseError
		if !errors.As(err, &perr) {
			t.Errorf("not ParseError: %+v", err)
		}
	})
}

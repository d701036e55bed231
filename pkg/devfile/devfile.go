// Package devfile processes flattened devfiles into the Kubernetes resources
// realizing a workspace.
//
// Only already-processed (flattened) devfiles are accepted: no parent
// resolution or plugin expansion happens here.
package devfile

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/google/go-containerregistry/pkg/name"
	"gopkg.in/yaml.v3"
)

// ParseError is the designated failure mode of devfile processing.
//
// Callers degrade it to "no manifests" instead of failing a whole
// reconciliation cycle; any other error propagates.
type ParseError struct {
	Err error
}

func (e ParseError) Error() string {
	return fmt.Sprintf("devfile processing failed: %s", e.Err)
}

func (e ParseError) Unwrap() error {
	return e.Err
}

// component names with this prefix are reserved for injected tooling.
const reservedNamePrefix = "gl-"

const minSchemaVersion = "2.0.0"

// schemaVersionSupported reports whether version is minSchemaVersion or
// newer. Versions compare numerically per dotted component, so "10.0.0"
// outranks "2.0.0". Versions that do not parse are unsupported.
func schemaVersionSupported(version string) bool {
	v, ok := parseSchemaVersion(version)
	if !ok {
		return false
	}
	min, _ := parseSchemaVersion(minSchemaVersion)
	for i := range v {
		if v[i] != min[i] {
			return v[i] > min[i]
		}
	}
	return true
}

func parseSchemaVersion(version string) ([3]int, bool) {
	parts := strings.Split(version, ".")
	if len(parts) != 3 {
		return [3]int{}, false
	}
	var v [3]int
	for i, part := range parts {
		n, err := strconv.Atoi(part)
		if err != nil || n < 0 {
			return [3]int{}, false
		}
		v[i] = n
	}
	return v, true
}

type Devfile struct {
	SchemaVersion string      `yaml:"schemaVersion"`
	Components    []Component `yaml:"components"`
	Commands      []Command   `yaml:"commands"`
	Events        Events      `yaml:"events"`
}

type Component struct {
	Name       string         `yaml:"name"`
	Attributes map[string]any `yaml:"attributes"`
	Container  *Container     `yaml:"container"`
	Volume     *Volume        `yaml:"volume"`
}

type Container struct {
	Image         string        `yaml:"image"`
	Command       []string      `yaml:"command"`
	Args          []string      `yaml:"args"`
	Env           []EnvVar      `yaml:"env"`
	MemoryRequest string        `yaml:"memoryRequest"`
	MemoryLimit   string        `yaml:"memoryLimit"`
	CpuRequest    string        `yaml:"cpuRequest"`
	CpuLimit      string        `yaml:"cpuLimit"`
	Endpoints     []Endpoint    `yaml:"endpoints"`
	VolumeMounts  []VolumeMount `yaml:"volumeMounts"`
}

type EnvVar struct {
	Name  string `yaml:"name"`
	Value string `yaml:"value"`
}

type Endpoint struct {
	Name       string `yaml:"name"`
	TargetPort int32  `yaml:"targetPort"`
	Exposure   string `yaml:"exposure"`
}

type VolumeMount struct {
	Name string `yaml:"name"`
	Path string `yaml:"path"`
}

type Volume struct {
	Size string `yaml:"size"`
}

type Command struct {
	Id    string `yaml:"id"`
	Apply *Apply `yaml:"apply"`
}

type Apply struct {
	Component string `yaml:"component"`
}

type Events struct {
	PreStart []string `yaml:"preStart"`
}

// Parse unmarshals and validates a flattened devfile.
//
// All failures are ParseError.
func Parse(content string) (Devfile, error) {
	var d Devfile
	if err := yaml.Unmarshal([]byte(content), &d); err != nil {
		return Devfile{}, ParseError{Err: err}
	}
	if err := d.validate(); err != nil {
		return Devfile{}, ParseError{Err: err}
	}
	return d, nil
}

func (d Devfile) validate() error {
	if d.SchemaVersion == "" {
		return fmt.Errorf("schemaVersion is required")
	}
	if !schemaVersionSupported(d.SchemaVersion) {
		return fmt.Errorf("schemaVersion %s is not supported (requires >= %s)", d.SchemaVersion, minSchemaVersion)
	}
	if len(d.Components) == 0 {
		return fmt.Errorf("no components defined")
	}

	componentNames := map[string]struct{}{}
	for _, c := range d.Components {
		if c.Name == "" {
			return fmt.Errorf("component without name")
		}
		if !injected(c) && strings.HasPrefix(c.Name, reservedNamePrefix) {
			return fmt.Errorf("component name '%s' uses reserved prefix '%s'", c.Name, reservedNamePrefix)
		}
		if _, dup := componentNames[c.Name]; dup {
			return fmt.Errorf("component name '%s' is duplicated", c.Name)
		}
		componentNames[c.Name] = struct{}{}

		if c.Container == nil && c.Volume == nil {
			return fmt.Errorf("component '%s' is neither container nor volume", c.Name)
		}
		if c.Container != nil && c.Volume != nil {
			return fmt.Errorf("component '%s' is both container and volume", c.Name)
		}

		if ctr := c.Container; ctr != nil {
			if ctr.Image == "" {
				return fmt.Errorf("component '%s' has no image", c.Name)
			}
			if _, err := name.ParseReference(ctr.Image); err != nil {
				return fmt.Errorf("component '%s' image: %w", c.Name, err)
			}
			for _, ep := range ctr.Endpoints {
				if ep.Name == "" {
					return fmt.Errorf("component '%s' has an endpoint without name", c.Name)
				}
				if ep.TargetPort <= 0 || 65535 < ep.TargetPort {
					return fmt.Errorf(
						"component '%s' endpoint '%s': invalid port %d",
						c.Name, ep.Name, ep.TargetPort,
					)
				}
			}
		}
	}

	for _, c := range d.Components {
		if c.Container == nil {
			continue
		}
		for _, vm := range c.Container.VolumeMounts {
			ref, ok := lookupComponent(d.Components, vm.Name)
			if !ok || ref.Volume == nil {
				return fmt.Errorf(
					"component '%s' mounts '%s', which is not a volume component",
					c.Name, vm.Name,
				)
			}
		}
	}

	for _, ev := range d.Events.PreStart {
		cmd, ok := lookupCommand(d.Commands, ev)
		if !ok {
			return fmt.Errorf("preStart event '%s' has no command", ev)
		}
		if cmd.Apply == nil {
			return fmt.Errorf("preStart command '%s' is not an apply command", ev)
		}
		if _, ok := lookupComponent(d.Components, cmd.Apply.Component); !ok {
			return fmt.Errorf(
				"preStart command '%s' applies unknown component '%s'",
				ev, cmd.Apply.Component,
			)
		}
	}

	return nil
}

// injected components carry the injector attribute and may use the reserved
// name prefix.
func injected(c Component) bool {
	if c.Attributes == nil {
		return false
	}
	v, ok := c.Attributes["gl/inject-editor"]
	if !ok {
		return false
	}
	b, ok := v.(bool)
	return ok && b
}

func lookupComponent(components []Component, name string) (Component, bool) {
	for _, c := range components {
		if c.Name == name {
			return c, true
		}
	}
	return Component{}, false
}

func lookupCommand(commands []Command, id string) (Command, bool) {
	for _, c := range commands {
		if c.Id == id {
			return c, true
		}
	}
	return Command{}, false
}

// Package agentconfig defines the `remote_development:` fragment of a cluster
// agent's config file, and the API shape the configuration-update endpoint
// answers with.
package agentconfig

import "gopkg.in/yaml.v3"

// File is the whole agent config file. Only the remote_development section is
// interpreted here; an absent section is the common case and means "nothing
// to update".
type File struct {
	RemoteDevelopment *Fragment `yaml:"remote_development" json:"remote_development,omitempty"`
}

type Fragment struct {
	Enabled       bool           `yaml:"enabled" json:"enabled"`
	DNSZone       string         `yaml:"dns_zone" json:"dns_zone"`
	NetworkPolicy *NetworkPolicy `yaml:"network_policy" json:"network_policy,omitempty"`
	Proxy         *Proxy         `yaml:"gitlab_workspaces_proxy" json:"gitlab_workspaces_proxy,omitempty"`
}

type NetworkPolicy struct {
	Enabled bool `yaml:"enabled" json:"enabled"`
}

type Proxy struct {
	Namespace string `yaml:"namespace" json:"namespace"`
}

func Unmarshal(content []byte) (File, error) {
	var f File
	if err := yaml.Unmarshal(content, &f); err != nil {
		return File{}, err
	}
	return f, nil
}

// UpdateResult is the response body of the configuration-update endpoint.
//
// Exactly one of SkippedReason or AgentConfig is set on success; FieldErrors
// is set on a validation failure.
type UpdateResult struct {
	SkippedReason string       `json:"skipped_reason,omitempty"`
	AgentConfig   *AgentConfig `json:"agent_config,omitempty"`
	FieldErrors   []FieldError `json:"field_errors,omitempty"`
}

type AgentConfig struct {
	AgentID                  int64  `json:"agent_id"`
	Enabled                  bool   `json:"enabled"`
	DNSZone                  string `json:"dns_zone"`
	NetworkPolicyEnabled     bool   `json:"network_policy_enabled"`
	WorkspacesProxyNamespace string `json:"gitlab_workspaces_proxy_namespace"`
}

type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

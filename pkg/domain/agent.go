package domain

import "regexp"

// Agent is a cluster agent: a process inside a Kubernetes cluster polling the
// reconcile API. Workspaces belong to exactly one agent; two agents never
// share a workspace.
type Agent struct {
	Id   int64
	Name string
}

// AgentConfig is the one-to-one remote-development configuration of an agent,
// extracted from its config file.
//
// Enabled is immutable once true: a cluster that has begun hosting workspaces
// cannot silently opt out of reconciliation.
type AgentConfig struct {
	AgentId              int64
	Enabled              bool
	DNSZone              string
	NetworkPolicyEnabled bool

	// namespace of the workspaces proxy, referenced by generated
	// NetworkPolicy manifests.
	WorkspacesProxyNamespace string
}

// DefaultWorkspacesProxyNamespace applies when the config file does not name
// a proxy namespace.
const DefaultWorkspacesProxyNamespace = "gitlab-workspaces"

var dnsZonePattern = regexp.MustCompile(`^[a-z0-9]([a-z0-9-]*[a-z0-9])?(\.[a-z0-9]([a-z0-9-]*[a-z0-9])?)*$`)

// ValidDNSZone checks the workspace ingress DNS zone format: dot-separated
// labels of lowercase alphanumerics and hyphens.
func ValidDNSZone(zone string) bool {
	return dnsZonePattern.MatchString(zone)
}

// Package desiredconfig renders the full desired configuration of a
// workspace: the YAML document stream an agent applies to its cluster.
package desiredconfig

import (
	"fmt"
	"log"
	"strconv"

	corev1 "k8s.io/api/core/v1"
	networkingv1 "k8s.io/api/networking/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/runtime"

	"github.com/spacefab/spacefab/pkg/devfile"
	"github.com/spacefab/spacefab/pkg/domain"
)

const (
	AgentLabel                = "agent.gitlab.com/id"
	OwningInventoryAnnotation = "config.k8s.io/owning-inventory"
	HostTemplateAnnotation    = "workspaces.gitlab.com/host-template"
	WorkspaceIdAnnotation     = "workspaces.gitlab.com/id"

	InventoryIdLabel = "cli-utils.sigs.k8s.io/inventory-id"
)

// Generator renders desired configurations. Rendering is pure: the same
// workspace and agent config always yield the same stream.
type Generator struct {
	Logger *log.Logger
}

// Generate renders the desired configuration of ws as a YAML document
// stream: inventory ConfigMap, then the devfile-derived resources, then a
// NetworkPolicy when the agent config asks for one.
//
// A workspace whose devfile cannot be processed yields an empty stream and
// a warning log; that workspace still reconciles on its state axes.
func (g Generator) Generate(ws domain.Workspace, cfg domain.AgentConfig) (string, error) {
	inventoryName := fmt.Sprintf("%s-workspace-inventory", ws.Name)

	labels := map[string]string{
		AgentLabel: strconv.FormatInt(ws.AgentId, 10),
	}
	annotations := map[string]string{
		OwningInventoryAnnotation: inventoryName,
		HostTemplateAnnotation:    fmt.Sprintf("{{.port}}-%s.%s", ws.Name, ws.DNSZone),
		WorkspaceIdAnnotation:     strconv.FormatInt(ws.Id, 10),
	}

	objects := []runtime.Object{
		inventoryConfigMap(ws, inventoryName, labels, annotations),
	}

	fromDevfile, err := devfile.GetAll(ws.ProcessedDevfile, devfile.Params{
		Name:        ws.Name,
		Namespace:   ws.Namespace,
		Replicas:    replicasFor(ws.DesiredState),
		Labels:      labels,
		Annotations: annotations,
		UserName:    ws.UserName,
		UserEmail:   ws.UserEmail,
		Logger:      g.Logger,
	})
	if err != nil {
		if _, isParse := err.(devfile.ParseError); isParse {
			g.Logger.Printf(
				"WARN: error_type=reconcile_devfile_parser_error workspace=%s namespace=%s: %s",
				ws.Name, ws.Namespace, err,
			)
			return "", nil
		}
		return "", err
	}
	objects = append(objects, fromDevfile...)

	if cfg.NetworkPolicyEnabled {
		objects = append(objects, networkPolicy(ws, cfg, labels, annotations))
	}

	return SerializeStream(objects)
}

// stopped and terminated workspaces keep their manifests but scale to zero.
func replicasFor(desired domain.WorkspaceState) int32 {
	if desired == domain.Running || desired == domain.RestartRequested {
		return 1
	}
	return 0
}

// inventoryConfigMap anchors pruning: applied resources carry the owning
// inventory annotation, so removing one from the stream deletes it in the
// cluster.
func inventoryConfigMap(
	ws domain.Workspace, name string, labels, annotations map[string]string,
) *corev1.ConfigMap {
	cmLabels := map[string]string{InventoryIdLabel: name}
	for k, v := range labels {
		cmLabels[k] = v
	}
	return &corev1.ConfigMap{
		TypeMeta: metav1.TypeMeta{APIVersion: "v1", Kind: "ConfigMap"},
		ObjectMeta: metav1.ObjectMeta{
			Name:        name,
			Namespace:   ws.Namespace,
			Labels:      cmLabels,
			Annotations: annotations,
		},
	}
}

// networkPolicy walls the workspace namespace off: ingress only from the
// workspaces proxy, egress only to cluster DNS and the public internet.
func networkPolicy(
	ws domain.Workspace, cfg domain.AgentConfig, labels, annotations map[string]string,
) *networkingv1.NetworkPolicy {
	protoTCP := corev1.ProtocolTCP
	protoUDP := corev1.ProtocolUDP

	return &networkingv1.NetworkPolicy{
		TypeMeta: metav1.TypeMeta{APIVersion: "networking.k8s.io/v1", Kind: "NetworkPolicy"},
		ObjectMeta: metav1.ObjectMeta{
			Name:        ws.Name,
			Namespace:   ws.Namespace,
			Labels:      labels,
			Annotations: annotations,
		},
		Spec: networkingv1.NetworkPolicySpec{
			PodSelector: metav1.LabelSelector{},
			PolicyTypes: []networkingv1.PolicyType{
				networkingv1.PolicyTypeIngress,
				networkingv1.PolicyTypeEgress,
			},
			Ingress: []networkingv1.NetworkPolicyIngressRule{
				{
					From: []networkingv1.NetworkPolicyPeer{
						{
							NamespaceSelector: &metav1.LabelSelector{
								MatchLabels: map[string]string{
									"kubernetes.io/metadata.name": cfg.WorkspacesProxyNamespace,
								},
							},
						},
					},
				},
			},
			Egress: []networkingv1.NetworkPolicyEgressRule{
				{
					To: []networkingv1.NetworkPolicyPeer{
						{
							NamespaceSelector: &metav1.LabelSelector{
								MatchLabels: map[string]string{
									"kubernetes.io/metadata.name": "kube-system",
								},
							},
						},
					},
					Ports: []networkingv1.NetworkPolicyPort{
						{Protocol: &protoTCP, Port: portOf(53)},
						{Protocol: &protoUDP, Port: portOf(53)},
					},
				},
				{
					To: []networkingv1.NetworkPolicyPeer{
						{
							IPBlock: &networkingv1.IPBlock{
								CIDR: "0.0.0.0/0",
								Except: []string{
									"10.0.0.0/8",
									"172.16.0.0/12",
									"192.168.0.0/16",
								},
							},
						},
					},
				},
			},
		},
	}
}

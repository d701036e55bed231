package devfile

import (
	"fmt"
	"log"

	appsv1 "k8s.io/api/apps/v1"
	corev1 "k8s.io/api/core/v1"
	"k8s.io/apimachinery/pkg/api/resource"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/runtime"
	"k8s.io/apimachinery/pkg/util/intstr"

	"github.com/spacefab/spacefab/pkg/utils/pointer"
)

const (
	// workspace processes run as this uid, never as root.
	RunAsUser int64 = 5001

	DefaultVolumeSize = "15Gi"
)

// Params carries the workspace-specific inputs of resource generation.
type Params struct {
	Name        string
	Namespace   string
	Replicas    int32
	Labels      map[string]string
	Annotations map[string]string

	// identity injected into each container for default git config.
	UserName  string
	UserEmail string

	Logger *log.Logger
}

// GetAll parses content and renders the Kubernetes resources of a single
// workspace: one Deployment, one Service and one PersistentVolumeClaim per
// volume component.
//
// The result is deterministic in its inputs. Failures caused by the devfile
// itself are ParseError.
func GetAll(content string, p Params) ([]runtime.Object, error) {
	d, err := Parse(content)
	if err != nil {
		return nil, err
	}

	deployment, err := buildDeployment(d, p)
	if err != nil {
		return nil, err
	}

	objects := []runtime.Object{deployment, buildService(d, p)}

	for _, c := range d.Components {
		if c.Volume == nil {
			continue
		}
		pvc, err := buildPVC(c, p)
		if err != nil {
			return nil, err
		}
		objects = append(objects, pvc)
	}

	return objects, nil
}

func buildDeployment(d Devfile, p Params) (*appsv1.Deployment, error) {
	initNames := map[string]struct{}{}
	for _, ev := range d.Events.PreStart {
		cmd, _ := lookupCommand(d.Commands, ev)
		initNames[cmd.Apply.Component] = struct{}{}
	}

	var containers, initContainers []corev1.Container
	for _, c := range d.Components {
		if c.Container == nil {
			continue
		}
		ctr, err := buildContainer(c, p)
		if err != nil {
			return nil, err
		}
		if _, init := initNames[c.Name]; init {
			initContainers = append(initContainers, ctr)
		} else {
			containers = append(containers, ctr)
		}
	}
	if len(containers) == 0 {
		return nil, ParseError{Err: fmt.Errorf("no main container component")}
	}

	var volumes []corev1.Volume
	for _, c := range d.Components {
		if c.Volume == nil {
			continue
		}
		volumes = append(volumes, corev1.Volume{
			Name: c.Name,
			VolumeSource: corev1.VolumeSource{
				PersistentVolumeClaim: &corev1.PersistentVolumeClaimVolumeSource{
					ClaimName: pvcName(p.Name, c.Name),
				},
			},
		})
	}

	return &appsv1.Deployment{
		TypeMeta: metav1.TypeMeta{APIVersion: "apps/v1", Kind: "Deployment"},
		ObjectMeta: metav1.ObjectMeta{
			Name:        p.Name,
			Namespace:   p.Namespace,
			Labels:      p.Labels,
			Annotations: p.Annotations,
		},
		Spec: appsv1.DeploymentSpec{
			Replicas: pointer.Ref(p.Replicas),
			Selector: &metav1.LabelSelector{MatchLabels: p.Labels},
			Strategy: appsv1.DeploymentStrategy{Type: appsv1.RecreateDeploymentStrategyType},
			Template: corev1.PodTemplateSpec{
				ObjectMeta: metav1.ObjectMeta{
					Labels:      p.Labels,
					Annotations: p.Annotations,
				},
				Spec: corev1.PodSpec{
					InitContainers: initContainers,
					Containers:     containers,
					Volumes:        volumes,
					SecurityContext: &corev1.PodSecurityContext{
						RunAsNonRoot: pointer.Ref(true),
						RunAsUser:    pointer.Ref(RunAsUser),
						FSGroup:      pointer.Ref(int64(0)),
					},
				},
			},
		},
	}, nil
}

func buildContainer(c Component, p Params) (corev1.Container, error) {
	ctr := *c.Container

	env := make([]corev1.EnvVar, 0, len(ctr.Env)+4)
	for _, e := range ctr.Env {
		env = append(env, corev1.EnvVar{Name: e.Name, Value: e.Value})
	}
	env = append(env,
		corev1.EnvVar{Name: "GIT_AUTHOR_NAME", Value: p.UserName},
		corev1.EnvVar{Name: "GIT_AUTHOR_EMAIL", Value: p.UserEmail},
		corev1.EnvVar{Name: "GIT_COMMITTER_NAME", Value: p.UserName},
		corev1.EnvVar{Name: "GIT_COMMITTER_EMAIL", Value: p.UserEmail},
	)

	var ports []corev1.ContainerPort
	for _, ep := range ctr.Endpoints {
		ports = append(ports, corev1.ContainerPort{
			Name:          ep.Name,
			ContainerPort: ep.TargetPort,
			Protocol:      corev1.ProtocolTCP,
		})
	}

	var mounts []corev1.VolumeMount
	for _, vm := range ctr.VolumeMounts {
		mounts = append(mounts, corev1.VolumeMount{Name: vm.Name, MountPath: vm.Path})
	}

	resources, err := buildResources(ctr)
	if err != nil {
		return corev1.Container{}, ParseError{
			Err: fmt.Errorf("component '%s': %w", c.Name, err),
		}
	}

	return corev1.Container{
		Name:         c.Name,
		Image:        ctr.Image,
		Command:      ctr.Command,
		Args:         ctr.Args,
		Env:          env,
		Ports:        ports,
		VolumeMounts: mounts,
		Resources:    resources,
		SecurityContext: &corev1.SecurityContext{
			AllowPrivilegeEscalation: pointer.Ref(false),
			Privileged:               pointer.Ref(false),
			RunAsNonRoot:             pointer.Ref(true),
			RunAsUser:                pointer.Ref(RunAsUser),
		},
	}, nil
}

func buildResources(ctr Container) (corev1.ResourceRequirements, error) {
	requirements := corev1.ResourceRequirements{
		Requests: corev1.ResourceList{},
		Limits:   corev1.ResourceList{},
	}
	for _, q := range []struct {
		value string
		list  corev1.ResourceList
		name  corev1.ResourceName
	}{
		{ctr.MemoryRequest, requirements.Requests, corev1.ResourceMemory},
		{ctr.MemoryLimit, requirements.Limits, corev1.ResourceMemory},
		{ctr.CpuRequest, requirements.Requests, corev1.ResourceCPU},
		{ctr.CpuLimit, requirements.Limits, corev1.ResourceCPU},
	} {
		if q.value == "" {
			continue
		}
		parsed, err := resource.ParseQuantity(q.value)
		if err != nil {
			return corev1.ResourceRequirements{}, fmt.Errorf("%s '%s': %w", q.name, q.value, err)
		}
		q.list[q.name] = parsed
	}
	if len(requirements.Requests) == 0 {
		requirements.Requests = nil
	}
	if len(requirements.Limits) == 0 {
		requirements.Limits = nil
	}
	return requirements, nil
}

func buildService(d Devfile, p Params) *corev1.Service {
	var ports []corev1.ServicePort
	for _, c := range d.Components {
		if c.Container == nil {
			continue
		}
		for _, ep := range c.Container.Endpoints {
			ports = append(ports, corev1.ServicePort{
				Name:       ep.Name,
				Port:       ep.TargetPort,
				TargetPort: intstr.FromInt32(ep.TargetPort),
				Protocol:   corev1.ProtocolTCP,
			})
		}
	}

	return &corev1.Service{
		TypeMeta: metav1.TypeMeta{APIVersion: "v1", Kind: "Service"},
		ObjectMeta: metav1.ObjectMeta{
			Name:        p.Name,
			Namespace:   p.Namespace,
			Labels:      p.Labels,
			Annotations: p.Annotations,
		},
		Spec: corev1.ServiceSpec{
			Selector: p.Labels,
			Ports:    ports,
		},
	}
}

func buildPVC(c Component, p Params) (*corev1.PersistentVolumeClaim, error) {
	size := c.Volume.Size
	if size == "" {
		size = DefaultVolumeSize
	}
	quantity, err := resource.ParseQuantity(size)
	if err != nil {
		return nil, ParseError{
			Err: fmt.Errorf("volume '%s' size '%s': %w", c.Name, size, err),
		}
	}

	return &corev1.PersistentVolumeClaim{
		TypeMeta: metav1.TypeMeta{APIVersion: "v1", Kind: "PersistentVolumeClaim"},
		ObjectMeta: metav1.ObjectMeta{
			Name:        pvcName(p.Name, c.Name),
			Namespace:   p.Namespace,
			Labels:      p.Labels,
			Annotations: p.Annotations,
		},
		Spec: corev1.PersistentVolumeClaimSpec{
			AccessModes: []corev1.PersistentVolumeAccessMode{corev1.ReadWriteOnce},
			Resources: corev1.VolumeResourceRequirements{
				Requests: corev1.ResourceList{corev1.ResourceStorage: quantity},
			},
		},
	}, nil
}

func pvcName(workspace, volume string) string {
	return fmt.Sprintf("%s-%s", workspace, volume)
}

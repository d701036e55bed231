package desiredconfig

import (
	"strings"

	"k8s.io/apimachinery/pkg/runtime"
	"k8s.io/apimachinery/pkg/util/intstr"
	"sigs.k8s.io/yaml"
)

// SerializeStream renders objects as a YAML document stream.
//
// sigs.k8s.io/yaml serializes through the json tags of the Kubernetes
// types, so the output matches kubectl manifests and map keys come out
// sorted. That keeps the stream byte-stable across renders.
func SerializeStream(objects []runtime.Object) (string, error) {
	b := &strings.Builder{}
	for _, obj := range objects {
		doc, err := yaml.Marshal(obj)
		if err != nil {
			return "", err
		}
		b.WriteString("---\n")
		b.Write(doc)
	}
	return b.String(), nil
}

func portOf(port int32) *intstr.IntOrString {
	p := intstr.FromInt32(port)
	return &p
}

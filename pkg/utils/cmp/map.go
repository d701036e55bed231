package cmp

type BiPredicator[V any, U any] func(a V, b U) bool

// check a == b
func MapEq[K comparable, V comparable](a map[K]V, b map[K]V) bool {
	if len(a) != len(b) {
		return false
	}
	return MapGeq(a, b) && MapLeq(a, b)
}

// check a == b, in context of comparator
func MapEqWith[K comparable, V any, U any](a map[K]V, b map[K]U, comparator BiPredicator[V, U]) bool {
	if len(a) != len(b) {
		return false
	}
	for ka, va := range a {
		vb, ok := b[ka]
		if !ok || !comparator(va, vb) {
			return false
		}
	}
	return true
}

// check a ⊆ b
func MapLeq[K comparable, V comparable](a map[K]V, b map[K]V) bool {
	for ka, va := range a {
		vb, ok := b[ka]
		if !ok || vb != va {
			return false
		}
	}
	return true
}

// check b ⊆ a
func MapGeq[K comparable, V comparable](a map[K]V, b map[K]V) bool {
	for kb, vb := range b {
		va, ok := a[kb]
		if !ok || va != vb {
			return false
		}
	}
	return true
}

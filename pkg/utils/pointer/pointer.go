package pointer

func Ref[T any](t T) *T {
	return &t
}

func Deref[T any](ptr *T) T {
	return *ptr
}

// SafeDeref dereferences ptr, or returns zero-value when ptr is nil.
func SafeDeref[T any](ptr *T) T {
	if ptr == nil {
		return *new(T)
	}
	return *ptr
}

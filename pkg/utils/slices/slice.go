package slices

import "sort"

// map each element in sli.
//
// args:
//   - sli : slice of `T`s
//   - mapper : mapping function from T to R
//
// return:
//
//	slice of `R`s.
//	each element indexed `N` is given with `mapper(sli[N])` .
func Map[T any, R any](sli []T, mapper func(v T) R) []R {
	ret := make([]R, len(sli))
	for nth, v := range sli {
		ret[nth] = mapper(v)
	}
	return ret
}

// Map over sli with mapper.
//
// If mapper causes error, return (nil, error).
//
// Otherwise, return (mapping result, nil).
func MapUntilError[T any, R any](sli []T, mapper func(v T) (R, error)) ([]R, error) {
	ret := make([]R, len(sli))
	for nth, v := range sli {
		r, err := mapper(v)
		if err != nil {
			return nil, err
		}
		ret[nth] = r
	}
	return ret, nil
}

// convert slice to map.
//
// If keys given with getkey collides, a value coming latter takes over previous.
func ToMap[T any, K comparable](sli []T, getkey func(v T) K) map[K]T {
	m := map[K]T{}
	for _, v := range sli {
		m[getkey(v)] = v
	}
	return m
}

// First finds the first element satisfying pred.
func First[T any](sli []T, pred func(v T) bool) (T, bool) {
	for _, v := range sli {
		if pred(v) {
			return v, true
		}
	}
	return *new(T), false
}

// Filter elements satisfying pred, keeping order.
func Filter[T any](sli []T, pred func(v T) bool) []T {
	ret := []T{}
	for _, v := range sli {
		if pred(v) {
			ret = append(ret, v)
		}
	}
	return ret
}

// Concat concatenates slices into a new slice.
func Concat[T any](sli ...[]T) []T {
	ret := []T{}
	for _, s := range sli {
		ret = append(ret, s...)
	}
	return ret
}

// KeysOf returns keys of m, sorted.
func KeysOf[K ordered, V any](m map[K]V) []K {
	keys := make([]K, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}

type ordered interface {
	~int | ~int8 | ~int16 | ~int32 | ~int64 |
		~uint | ~uint8 | ~uint16 | ~uint32 | ~uint64 |
		~float32 | ~float64 | ~string
}

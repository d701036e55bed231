package slices_test

import (
	"errors"
	"testing"

	"github.com/spacefab/spacefab/pkg/utils/cmp"
	"github.com/spacefab/spacefab/pkg/utils/slices"
)

func TestMap(t *testing.T) {
	t.Run("it maps each element", func(t *testing.T) {
		actual := slices.Map([]int{1, 2, 3}, func(v int) int { return v * 2 })
		if !cmp.SliceEq(actual, []int{2, 4, 6}) {
			t.Errorf("unexpected result: %v", actual)
		}
	})

	t.Run("it maps empty slice to empty slice", func(t *testing.T) {
		actual := slices.Map([]int{}, func(v int) int { return v })
		if len(actual) != 0 {
			t.Errorf("unexpected result: %v", actual)
		}
	})
}

func TestMapUntilError(t *testing.T) {
	expectedErr := errors.New("fake error")

	t.Run("it stops at first error", func(t *testing.T) {
		called := 0
		_, err := slices.MapUntilError([]int{1, 2, 3}, func(v int) (int, error) {
			called += 1
			if v == 2 {
				return 0, expectedErr
			}
			return v, nil
		})
		if !errors.Is(err, expectedErr) {
			t.Errorf("unexpected error: %v", err)
		}
		if called != 2 {
			t.Errorf("mapper called %d times (expected 2)", called)
		}
	})
}

func TestToMap(t *testing.T) {
	type item struct {
		Key   string
		Value int
	}
	actual := slices.ToMap(
		[]item{{Key: "a", Value: 1}, {Key: "b", Value: 2}, {Key: "a", Value: 3}},
		func(v item) string { return v.Key },
	)
	if !cmp.MapEq(actual, map[string]item{
		"a": {Key: "a", Value: 3},
		"b": {Key: "b", Value: 2},
	}) {
		t.Errorf("unexpected result: %v", actual)
	}
}

func TestFirst(t *testing.T) {
	t.Run("it finds the first match", func(t *testing.T) {
		v, ok := slices.First([]int{1, 2, 3, 4}, func(v int) bool { return v%2 == 0 })
		if !ok || v != 2 {
			t.Errorf("unexpected result: %v, %v", v, ok)
		}
	})
	t.Run("it reports no match", func(t *testing.T) {
		_, ok := slices.First([]int{1, 3}, func(v int) bool { return v%2 == 0 })
		if ok {
			t.Error("unexpected match")
		}
	})
}

func TestConcat(t *testing.T) {
	actual := slices.Concat([]string{"a"}, nil, []string{"b", "c"})
	if !cmp.SliceEq(actual, []string{"a", "b", "c"}) {
		t.Errorf("unexpected result: %v", actual)
	}
}

func TestKeysOf(t *testing.T) {
	actual := slices.KeysOf(map[string]int{"b": 2, "a": 1, "c": 3})
	if !cmp.SliceEq(actual, []string{"a", "b", "c"}) {
		t.Errorf("unexpected result: %v", actual)
	}
}

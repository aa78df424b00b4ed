package batch

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPlan(t *testing.T) {
	const gib = 1024 * 1024 * 1024

	tests := []struct {
		name  string
		n     int64
		max   int64
		sizes []int64
	}{
		{name: "zero bytes", n: 0, max: 10, sizes: nil},
		{name: "negative bytes", n: -5, max: 10, sizes: nil},
		{name: "smaller than max", n: 7, max: 10, sizes: []int64{7}},
		{name: "exact multiple", n: 30, max: 10, sizes: []int64{10, 10, 10}},
		{name: "remainder last", n: 25, max: 10, sizes: []int64{10, 10, 5}},
		{name: "default max one GiB", n: gib, max: 0, sizes: []int64{gib}},
		{name: "default max five GiB", n: 5 * gib, max: 0, sizes: []int64{2 * gib, 2 * gib, gib}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Plan(tt.n, tt.max)
			var sizes []int64
			for i, b := range got {
				assert.Equal(t, i, b.Index, "batches must be in plan order")
				sizes = append(sizes, b.Size)
			}
			assert.Equal(t, tt.sizes, sizes)
		})
	}
}

func TestPlan_Properties(t *testing.T) {
	for n := int64(0); n <= 200; n++ {
		for _, max := range []int64{1, 3, 7, 64, 199, 200, 1000} {
			got := Plan(n, max)
			assert.Equal(t, n, Total(got), "n=%d max=%d", n, max)
			assert.Equal(t, n == 0, len(got) == 0, "n=%d max=%d", n, max)
			for _, b := range got {
				assert.LessOrEqual(t, b.Size, max)
				assert.Positive(t, b.Size)
			}
		}
	}
}

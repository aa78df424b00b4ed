package recommend

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/jamesainslie/sentinel/pkg/sentinel/drive"
	"github.com/jamesainslie/sentinel/pkg/sentinel/types"
)

func TestForCapacity(t *testing.T) {
	tests := []struct {
		total int64
		days  int
	}{
		{total: 2 * types.GiB, days: 7},
		{total: 32*types.GiB - 1, days: 7},
		{total: 32 * types.GiB, days: 14},
		{total: 64 * types.GiB, days: 14},
		{total: 128 * types.GiB, days: 21},
		{total: 256 * types.GiB, days: 30},
		{total: 2 * types.TiB, days: 30},
	}
	for _, tt := range tests {
		got := ForCapacity(tt.total)
		assert.Equal(t, tt.days, got.IntervalDays, types.FormatSize(tt.total))
		assert.NotEmpty(t, got.Hint)
	}
}

func TestCheckFraction(t *testing.T) {
	assert.Equal(t, 0.05, CheckFraction(16*types.GiB))
	assert.Equal(t, 0.10, CheckFraction(32*types.GiB))
}

func TestWarnings(t *testing.T) {
	assert.Empty(t, Warnings(drive.Usage{}))
	assert.Empty(t, Warnings(drive.Usage{Total: 64 * types.GiB, Free: 32 * types.GiB}))

	assert.Equal(t, []string{"Card very small (< 4 GB)"},
		Warnings(drive.Usage{Total: 2 * types.GiB, Free: types.GiB}))

	assert.Equal(t, []string{"Card nearly full (96% used)"},
		Warnings(drive.Usage{Total: 100 * types.GiB, Free: 35 * types.GiB / 10}))

	assert.Equal(t, []string{"Card very small (< 4 GB)", "Card nearly full (100% used)"},
		Warnings(drive.Usage{Total: types.GiB, Free: 0}))
}

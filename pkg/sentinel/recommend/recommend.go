// Package recommend derives sweep schedules, quick-check sizes and quality
// warnings from a drive's capacity.
package recommend

import (
	"fmt"

	"github.com/jamesainslie/sentinel/pkg/sentinel/drive"
	"github.com/jamesainslie/sentinel/pkg/sentinel/types"
)

// Capacity thresholds.
const (
	VerySmallBytes = 4 * types.GiB
	SmallBytes     = 32 * types.GiB
	BalancedBytes  = 128 * types.GiB
	HighEndBytes   = 256 * types.GiB

	// FullThreshold is the used fraction that triggers a nearly-full warning.
	FullThreshold = 0.95
)

// Schedule is a recommended sweep interval.
type Schedule struct {
	IntervalDays int    `json:"interval_days" yaml:"interval_days"`
	Hint         string `json:"hint" yaml:"hint"`
}

// ForCapacity recommends a sweep interval: smaller cards are checked more often.
func ForCapacity(total int64) Schedule {
	switch {
	case total < SmallBytes:
		return Schedule{7, "Low-end / small card (recommend checking every 7 days)"}
	case total < BalancedBytes:
		return Schedule{14, "Balanced capacity (recommend checking every 14 days)"}
	case total < HighEndBytes:
		return Schedule{21, "High-capacity card (recommend checking every 21 days)"}
	default:
		return Schedule{30, "High-capacity card (recommend checking every 30 days)"}
	}
}

// CheckFraction recommends the quick-check size as a share of capacity.
func CheckFraction(total int64) float64 {
	if total < SmallBytes {
		return 0.05
	}
	return 0.10
}

// Warnings returns quality warnings for a drive: very small, or nearly full.
func Warnings(u drive.Usage) []string {
	var out []string
	if u.Total <= 0 {
		return out
	}
	if u.Total < VerySmallBytes {
		out = append(out, "Card very small (< 4 GB)")
	}
	if used := u.UsedFraction(); used >= FullThreshold {
		out = append(out, fmt.Sprintf("Card nearly full (%d%% used)", int(used*100)))
	}
	return out
}

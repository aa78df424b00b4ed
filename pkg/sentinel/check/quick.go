package check

import (
	"context"
	"errors"
	"fmt"

	"github.com/jamesainslie/sentinel/pkg/sentinel/types"
)

// ErrInvalidFraction is returned for a size fraction outside (0, 1].
var ErrInvalidFraction = errors.New("size fraction must be in (0, 1]")

// QuickSize returns the bytes a quick check tests:
// min(fraction*total, max(0, free-margin)).
func QuickSize(total, free int64, fraction float64, margin int64) int64 {
	target := int64(fraction * float64(total))
	return min(target, usable(free, margin))
}

func usable(free, margin int64) int64 {
	return max(0, free-margin)
}

// Quick writes, verifies and deletes fraction of the drive's capacity at root.
// The error return is reserved for failures before any testing starts (an
// invalid fraction or an unreadable usage); test failures and cancellation
// are reported in the Result.
func Quick(ctx context.Context, root string, fraction float64, opts Options) (*Result, error) {
	if !(fraction > 0 && fraction <= 1) {
		return nil, fmt.Errorf("%w: %v", ErrInvalidFraction, fraction)
	}
	u, err := opts.usage(root)
	if err != nil {
		return nil, fmt.Errorf("reading drive usage: %w", err)
	}

	c := &cycle{
		root:       root,
		prefix:     QuickPrefix,
		name:       "Integrity check",
		abortedMsg: "Check aborted by user",
		opts:       opts,
	}

	size := QuickSize(u.Total, u.Free, fraction, opts.margin())
	if size < MinTestBytes {
		log.Warn("not enough free space for quick check", "root", root, "free", u.Free, "size", size)
		return c.failed(&Failure{
			Kind:   InsufficientSpace,
			Detail: fmt.Sprintf("Not enough free space for check (need at least %s free).", types.FormatSize(opts.margin())),
		}, nil), nil
	}
	return c.run(ctx, size), nil
}

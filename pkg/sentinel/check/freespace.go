package check

import (
	"context"
	"fmt"

	"github.com/jamesainslie/sentinel/pkg/sentinel/types"
)

// FreeSpaceSize returns the bytes a free-space sweep tests: max(0, free-margin).
func FreeSpaceSize(free, margin int64) int64 {
	return usable(free, margin)
}

// FreeSpace exercises all free space at root except the safety margin. The
// error return is reserved for an unreadable usage.
func FreeSpace(ctx context.Context, root string, opts Options) (*Result, error) {
	u, err := opts.usage(root)
	if err != nil {
		return nil, fmt.Errorf("reading drive usage: %w", err)
	}

	c := &cycle{
		root:       root,
		prefix:     FreeSpacePrefix,
		name:       "Free-space sweep",
		abortedMsg: "Free-space sweep aborted by user",
		step:       "Free space: ",
		opts:       opts,
	}

	size := FreeSpaceSize(u.Free, opts.margin())
	if size < MinTestBytes {
		log.Warn("not enough free space for sweep", "root", root, "free", u.Free)
		return c.failed(&Failure{
			Kind:   InsufficientSpace,
			Detail: fmt.Sprintf("Not enough free space (need at least %s free).", types.FormatSize(opts.margin())),
		}, nil), nil
	}
	return c.run(ctx, size), nil
}

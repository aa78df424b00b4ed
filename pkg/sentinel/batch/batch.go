// Package batch splits a byte count into bounded-size write batches.
package batch

// MaxFileBytes is the largest single test file (2 GiB). It stays under the
// FAT32 4 GiB file limit and avoids very large single-file writes.
const MaxFileBytes int64 = 2 * 1024 * 1024 * 1024

// Batch is one bounded unit of write-verify-delete testing.
type Batch struct {
	// Index is the zero-based position in the plan. It also seeds the test data.
	Index int

	// Size is the number of bytes written for this batch.
	Size int64
}

// Plan splits n bytes into ordered batches of at most max bytes each; the last
// batch takes the remainder. A max of zero or less uses MaxFileBytes.
// The result is empty iff n <= 0.
func Plan(n, max int64) []Batch {
	if n <= 0 {
		return nil
	}
	if max <= 0 {
		max = MaxFileBytes
	}

	count := n / max
	if n%max != 0 {
		count++
	}

	batches := make([]Batch, 0, count)
	remaining := n
	for i := 0; remaining > 0; i++ {
		size := max
		if remaining < size {
			size = remaining
		}
		batches = append(batches, Batch{Index: i, Size: size})
		remaining -= size
	}
	return batches
}

// Total returns the sum of batch sizes.
func Total(batches []Batch) int64 {
	var total int64
	for _, b := range batches {
		total += b.Size
	}
	return total
}

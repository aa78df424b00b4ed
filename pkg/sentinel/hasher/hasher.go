// Package hasher computes SHA-256 content digests over streams processed in
// fixed-size chunks, and produces the deterministic pseudorandom test data that
// integrity checks write to a drive.
//
// Digests are pure content hashes: the same byte sequence always yields the
// same hex digest regardless of how it was chunked.
package hasher

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"math/rand/v2"
	"os"
)

// ChunkSize is the default unit of reads and writes (64 MiB). It bounds the
// memory used by a single hash or write regardless of the total stream size.
const ChunkSize = 64 * 1024 * 1024

// seedTag fills the part of the generator seed not taken by the batch index.
const seedTag = "sentinel/batch-data/v1"

// bufferSize returns the buffer to allocate for a stream of the given size.
// A negative size means unknown.
func bufferSize(chunk int, size int64) int {
	if chunk <= 0 {
		chunk = ChunkSize
	}
	if size >= 0 && size < int64(chunk) {
		if size == 0 {
			return 1
		}
		return int(size)
	}
	return chunk
}

// Sum reads r to EOF in chunks of chunk bytes and returns the hex SHA-256 digest.
// A chunk of zero or less uses ChunkSize.
func Sum(r io.Reader, chunk int) (string, error) {
	return sum(r, make([]byte, bufferSize(chunk, -1)))
}

func sum(r io.Reader, buf []byte) (string, error) {
	h := sha256.New()
	for {
		n, err := io.ReadFull(r, buf)
		if n > 0 {
			h.Write(buf[:n])
		}
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			break
		}
		if err != nil {
			return "", err
		}
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// File opens path, hashes its full contents, and closes it.
func File(path string, chunk int) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	size := int64(-1)
	if info, statErr := f.Stat(); statErr == nil {
		size = info.Size()
	}
	return sum(f, make([]byte, bufferSize(chunk, size)))
}

// Generator is a deterministic pseudorandom byte source seeded by a batch
// index. It is reproducible for debugging and is not meant for secrecy.
type Generator struct {
	src *rand.ChaCha8
}

// NewGenerator returns the generator for batch index. Two generators created
// with the same index produce identical streams.
func NewGenerator(index int) *Generator {
	var seed [32]byte
	binary.LittleEndian.PutUint64(seed[:8], uint64(index))
	copy(seed[8:], seedTag)
	return &Generator{src: rand.NewChaCha8(seed)}
}

// Read fills p with pseudorandom bytes. It never returns an error.
func (g *Generator) Read(p []byte) (int, error) {
	return g.src.Read(p)
}

// Generate writes size bytes from the generator for index to w in chunks and
// returns the digest of exactly the bytes produced. If a write fails the
// returned error wraps it together with the number of bytes already written.
func Generate(w io.Writer, index int, size int64, chunk int) (string, error) {
	gen := NewGenerator(index)
	buf := make([]byte, bufferSize(chunk, size))
	h := sha256.New()

	var written int64
	for written < size {
		n := int64(len(buf))
		if remaining := size - written; remaining < n {
			n = remaining
		}
		part := buf[:n]
		_, _ = gen.Read(part)
		h.Write(part)
		if _, err := w.Write(part); err != nil {
			return "", fmt.Errorf("after %d bytes: %w", written, err)
		}
		written += n
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// Expected returns the digest Generate would produce for index and size
// without writing anything.
func Expected(index int, size int64, chunk int) string {
	digest, _ := Generate(io.Discard, index, size, chunk)
	return digest
}

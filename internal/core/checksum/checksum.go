package checksum

import (
	"context"
	"crypto/md5"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"hash"
	"io"

	"github.com/cespare/xxhash/v2"

	"github.com/Ning0612/Downsort/internal/domain"
)

// Algorithm names a content hash
type Algorithm string

const (
	// XXHash64 is fast and non-cryptographic; the default
	XXHash64 Algorithm = "xxhash64"
	MD5      Algorithm = "md5"
	// SHA256 for users who want a cryptographic content hash
	SHA256 Algorithm = "sha256"
)

var constructors = map[Algorithm]func() hash.Hash{
	XXHash64: func() hash.Hash { return xxhash.New() },
	MD5:      md5.New,
	SHA256:   sha256.New,
}

// IsSupported reports whether algo can be computed
func IsSupported(algo Algorithm) bool {
	_, ok := constructors[algo]
	return ok
}

// Options configures a Calculator
type Options struct {
	// MaxSize rejects longer content with ErrFileTooLarge (0 = unlimited)
	MaxSize int64

	// BufferSize of each streamed read (default 32KB)
	BufferSize int
}

const defaultBufferSize = 32 * 1024

// Calculator computes content checksums
type Calculator interface {
	// Calculate streams reader through algo and returns the lowercase hex digest
	Calculate(ctx context.Context, reader io.Reader, algo Algorithm) (string, error)
}

// StreamCalculator hashes with a fixed-size buffer, so memory use does not
// depend on content length
type StreamCalculator struct {
	opts Options
}

// NewCalculator creates a calculator; zero options mean unlimited size and
// the default buffer
func NewCalculator(opts Options) *StreamCalculator {
	if opts.BufferSize <= 0 {
		opts.BufferSize = defaultBufferSize
	}
	return &StreamCalculator{opts: opts}
}

// Calculate implements Calculator. Cancellation is checked between reads.
func (c *StreamCalculator) Calculate(ctx context.Context, reader io.Reader, algo Algorithm) (string, error) {
	newHash, ok := constructors[algo]
	if !ok {
		return "", fmt.Errorf("%w: %s", domain.ErrInvalidAlgorithm, algo)
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	src := &guardedReader{ctx: ctx, r: reader, max: c.opts.MaxSize}
	h := newHash()
	if _, err := io.CopyBuffer(h, src, make([]byte, c.opts.BufferSize)); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// guardedReader stops on cancellation and once more than max bytes arrive
type guardedReader struct {
	ctx  context.Context
	r    io.Reader
	max  int64
	read int64
}

func (g *guardedReader) Read(p []byte) (int, error) {
	if err := g.ctx.Err(); err != nil {
		return 0, err
	}

	n, err := g.r.Read(p)
	g.read += int64(n)
	if g.max > 0 && g.read > g.max {
		return 0, fmt.Errorf("%w (%d bytes)", domain.ErrFileTooLarge, g.max)
	}
	if err != nil && err != io.EOF {
		return n, fmt.Errorf("read error: %w", err)
	}
	return n, err
}

package fingerprint

import (
	"context"
	"fmt"
	"io"
	"runtime"
	"sort"
	"sync/atomic"

	"github.com/Ning0612/Downsort/internal/adapter"
	"github.com/Ning0612/Downsort/internal/core/checksum"
	"github.com/Ning0612/Downsort/internal/domain"
	"github.com/Ning0612/Downsort/internal/logger"
	"github.com/Ning0612/Downsort/internal/progress"
)

// Options configures the fingerprint engine
type Options struct {
	// Algorithm for the strong (full content) signature
	Algorithm checksum.Algorithm

	// HeadBytes is how much of each file the cheap signature samples
	HeadBytes int64

	// MinSize excludes smaller files from content comparison
	MinSize int64

	// MaxSize rejects larger files from strong hashing (0 = unlimited)
	MaxSize int64

	// Workers bounds concurrent file reads (0 = runtime.NumCPU())
	Workers int

	// BufferSize for streamed reads
	BufferSize int
}

// DefaultOptions returns the recommended default options
func DefaultOptions() Options {
	return Options{
		Algorithm:  checksum.XXHash64,
		HeadBytes:  8 * 1024,
		MinSize:    0,
		MaxSize:    0,
		Workers:    0,
		BufferSize: 32 * 1024,
	}
}

// CheapSignature quickly discards non-candidates: differing size or head means
// the files can never be content duplicates
type CheapSignature struct {
	Size int64
	Head string
}

// StrongSignature is the full-content hash
type StrongSignature string

// Engine computes file signatures through a read-only source
type Engine struct {
	src      adapter.Source
	opts     Options
	head     checksum.Calculator
	full     checksum.Calculator
	reporter progress.Reporter

	bytesRead atomic.Int64
}

// NewEngine creates a fingerprint engine over src
func NewEngine(src adapter.Source, opts Options) (*Engine, error) {
	if opts.Algorithm == "" {
		opts.Algorithm = checksum.XXHash64
	}
	if !checksum.IsSupported(opts.Algorithm) {
		return nil, fmt.Errorf("%w: %s", domain.ErrInvalidAlgorithm, opts.Algorithm)
	}
	if opts.HeadBytes <= 0 {
		opts.HeadBytes = DefaultOptions().HeadBytes
	}
	if opts.Workers <= 0 {
		opts.Workers = runtime.NumCPU()
	}

	return &Engine{
		src:  src,
		opts: opts,
		head: checksum.NewCalculator(checksum.Options{BufferSize: opts.BufferSize}),
		full: checksum.NewCalculator(checksum.Options{
			MaxSize:    opts.MaxSize,
			BufferSize: opts.BufferSize,
		}),
	}, nil
}

// SetProgressReporter sets the reporter for strong hashing
func (e *Engine) SetProgressReporter(reporter progress.Reporter) {
	e.reporter = reporter
}

// getReporter returns the current progress reporter or a null reporter
func (e *Engine) getReporter() progress.Reporter {
	if e.reporter != nil {
		return e.reporter
	}
	return progress.NullReporter{}
}

// BytesRead returns the number of content bytes read so far
func (e *Engine) BytesRead() int64 {
	return e.bytesRead.Load()
}

// Cheap computes (size, hash of the first HeadBytes bytes)
func (e *Engine) Cheap(ctx context.Context, f domain.FileDescriptor) (CheapSignature, error) {
	r, err := e.open(ctx, f)
	if err != nil {
		return CheapSignature{}, err
	}
	defer r.Close()

	sum, err := e.head.Calculate(ctx, io.LimitReader(r, e.opts.HeadBytes), checksum.XXHash64)
	if err != nil {
		return CheapSignature{}, err
	}
	return CheapSignature{Size: f.Size, Head: sum}, nil
}

// Strong computes the full-content hash with the configured algorithm
func (e *Engine) Strong(ctx context.Context, f domain.FileDescriptor) (StrongSignature, error) {
	r, err := e.open(ctx, f)
	if err != nil {
		return "", err
	}
	defer r.Close()

	sum, err := e.full.Calculate(ctx, r, e.opts.Algorithm)
	if err != nil {
		return "", err
	}
	return StrongSignature(string(e.opts.Algorithm) + ":" + sum), nil
}

// coversWholeFile reports whether the cheap signature already hashed
// all of f with the strong algorithm
func (e *Engine) coversWholeFile(f domain.FileDescriptor) bool {
	return e.opts.Algorithm == checksum.XXHash64 && f.Size <= e.opts.HeadBytes
}

func (e *Engine) open(ctx context.Context, f domain.FileDescriptor) (io.ReadCloser, error) {
	r, err := e.src.Open(ctx, f.RelPath)
	if err != nil {
		return nil, err
	}
	return &countingReader{ReadCloser: r, n: &e.bytesRead}, nil
}

// Stats summarizes the work done by one Buckets call
type Stats struct {
	Candidates   int   `json:"candidates" yaml:"candidates"`
	CheapHashed  int   `json:"cheap_hashed" yaml:"cheap_hashed"`
	StrongHashed int   `json:"strong_hashed" yaml:"strong_hashed"`
	BytesRead    int64 `json:"bytes_read" yaml:"bytes_read"`
}

// Buckets is the content partition of one descriptor list.
// Indices refer to positions in the input slice.
type Buckets struct {
	// Groups of byte-identical files, each with at least two members,
	// sorted ascending within and by first index across groups
	Groups [][]int

	// Signatures holds the strong signature of every fully hashed file
	Signatures map[int]StrongSignature

	// Failed holds files whose content could not be read
	Failed map[int]error

	Warnings []domain.ScanWarning
	Stats    Stats
}

// Buckets groups files by exact content. Strong signatures are computed only
// for files that share a cheap signature with at least one other file.
func (e *Engine) Buckets(ctx context.Context, files []domain.FileDescriptor) (*Buckets, error) {
	start := e.BytesRead()
	out := &Buckets{
		Signatures: make(map[int]StrongSignature),
		Failed:     make(map[int]error),
	}

	// Step 1: size
	bySize := make(map[int64][]int)
	for i, f := range files {
		if f.Size < e.opts.MinSize {
			continue
		}
		bySize[f.Size] = append(bySize[f.Size], i)
	}
	candidates := flatten(bySize)
	out.Stats.Candidates = len(candidates)

	// Step 2: cheap signature
	cheap := make([]CheapSignature, len(files))
	cheapErr := make([]error, len(files))
	err := runPool(ctx, e.opts.Workers, candidates, func(ctx context.Context, idx int) {
		cheap[idx], cheapErr[idx] = e.Cheap(ctx, files[idx])
	})
	if err != nil {
		return nil, err
	}

	byCheap := make(map[CheapSignature][]int)
	for _, idx := range candidates {
		if cheapErr[idx] != nil {
			e.fail(out, files[idx], idx, cheapErr[idx])
			continue
		}
		out.Stats.CheapHashed++
		byCheap[cheap[idx]] = append(byCheap[cheap[idx]], idx)
	}

	// Step 3: strong signature, only within shared cheap buckets
	var strongCandidates []int
	var strongBytes int64
	for _, idx := range flatten(byCheap) {
		if e.coversWholeFile(files[idx]) {
			out.Signatures[idx] = StrongSignature(string(checksum.XXHash64) + ":" + cheap[idx].Head)
			continue
		}
		strongCandidates = append(strongCandidates, idx)
		strongBytes += files[idx].Size
	}

	reporter := e.getReporter()
	reporter.SetTotal(len(strongCandidates), strongBytes)

	strong := make([]StrongSignature, len(files))
	strongErr := make([]error, len(files))
	err = runPool(ctx, e.opts.Workers, strongCandidates, func(ctx context.Context, idx int) {
		f := files[idx]
		reporter.Start(f.Path, f.Size)
		strong[idx], strongErr[idx] = e.Strong(ctx, f)
		if strongErr[idx] != nil {
			reporter.Error(f.Path, strongErr[idx])
			return
		}
		reporter.Complete(f.Path, f.Size)
	})
	if err != nil {
		return nil, err
	}

	for _, idx := range strongCandidates {
		if strongErr[idx] != nil {
			e.fail(out, files[idx], idx, strongErr[idx])
			continue
		}
		out.Stats.StrongHashed++
		out.Signatures[idx] = strong[idx]
	}

	// Step 4: exact content buckets
	byStrong := make(map[StrongSignature][]int)
	for idx, sig := range out.Signatures {
		byStrong[sig] = append(byStrong[sig], idx)
	}
	for _, group := range byStrong {
		if len(group) < 2 {
			continue
		}
		sort.Ints(group)
		out.Groups = append(out.Groups, group)
	}
	sort.Slice(out.Groups, func(i, j int) bool {
		return out.Groups[i][0] < out.Groups[j][0]
	})

	out.Stats.BytesRead = e.BytesRead() - start

	logger.Get().Debug("content bucketing completed",
		"candidates", out.Stats.Candidates,
		"strong_hashed", out.Stats.StrongHashed,
		"groups", len(out.Groups),
		"failed", len(out.Failed),
		"bytes_read", out.Stats.BytesRead,
	)

	return out, nil
}

func (e *Engine) fail(out *Buckets, f domain.FileDescriptor, idx int, err error) {
	out.Failed[idx] = fmt.Errorf("%w: %w", domain.ErrUnreadable, err)
	out.Warnings = append(out.Warnings, domain.NewScanWarning(domain.OpFingerprint, f.Path, err))
	logger.Get().Warn("excluding file from content comparison", "path", f.Path, "error", err)
}

// flatten returns the members of every bucket with at least two entries,
// in ascending index order
func flatten[K comparable](buckets map[K][]int) []int {
	var out []int
	for _, idxs := range buckets {
		if len(idxs) >= 2 {
			out = append(out, idxs...)
		}
	}
	sort.Ints(out)
	return out
}

// countingReader counts bytes read into a shared counter
type countingReader struct {
	io.ReadCloser
	n *atomic.Int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.ReadCloser.Read(p)
	c.n.Add(int64(n))
	return n, err
}

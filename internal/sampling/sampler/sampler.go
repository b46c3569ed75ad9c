// Package sampler draws reproducible row samples from delimited files,
// either through an offset index or in a single pass over a stream.
package sampler

import (
	"context"
	"fmt"
	"math/rand/v2"
	"slices"
	"strings"

	mapset "github.com/deckarep/golang-set/v2"
	"golang.org/x/sync/errgroup"

	"github.com/shandysiswandi/gosampling/internal/sampling/delimiter"
	"github.com/shandysiswandi/gosampling/internal/sampling/entity"
	"github.com/shandysiswandi/gosampling/internal/sampling/offsetindex"
)

const (
	// pcgStream is the fixed second PCG word; the seed alone picks the sequence.
	pcgStream uint64 = 0x9e3779b97f4a7c15

	DefaultConcurrency = 8
	DefaultMaxN        = 1_000_000
)

// LineSource gives random access to the physical lines of a file.
type LineSource interface {
	Lines() int64
	UsableLines() int64
	ReadLine(line int64) (string, error)
}

type Options struct {
	N     int64
	Seed  uint64
	Start int64
	// End defaults to the last usable line when zero.
	End             int64
	UseHeaders      bool
	AllowDuplicates bool
	Ordered         bool
	// Delimiter is detected from line 1 when zero.
	Delimiter   rune
	Concurrency int
	// MaxN caps N; zero means DefaultMaxN.
	MaxN int64
	// Signature identifies the source content in the result hash.
	Signature string
}

type Result struct {
	Rows        []entity.Row
	Columns     []string
	Delimiter   rune
	Start       int64
	End         int64
	UsableLines int64
	Hash        string
	Signature   string
}

// Sample selects opts.N line numbers in [Start, End] with a generator seeded
// by opts.Seed and reads exactly those lines. The same options over the same
// source always yield the same rows in the same order.
func Sample(ctx context.Context, src LineSource, opts Options) (Result, error) {
	if src.Lines() == 0 {
		return Result{}, offsetindex.ErrIndexStale
	}

	usable := src.UsableLines()
	start, end := opts.Start, opts.End
	if end == 0 {
		end = usable
	}
	if opts.UseHeaders && start == 1 {
		start = 2
	}
	if start < 1 || end < start || end > usable {
		return Result{}, &RangeError{Start: start, End: end, Usable: usable}
	}

	size := end - start + 1
	if opts.N < 1 || (!opts.AllowDuplicates && opts.N > size) {
		return Result{}, &SampleSizeError{N: opts.N, Available: size}
	}
	if limit := maxN(opts.MaxN); opts.N > limit {
		return Result{}, &SampleSizeError{N: opts.N, Available: size, Limit: limit}
	}

	targets := draw(opts.N, opts.Seed, start, size, opts.AllowDuplicates)
	if opts.Ordered {
		slices.Sort(targets)
	}

	lines, err := readLines(ctx, src, targets, opts.Concurrency)
	if err != nil {
		return Result{}, err
	}

	sep, header, err := resolveHeader(src, opts)
	if err != nil {
		return Result{}, err
	}

	parsed := make([][]string, len(lines))
	width := 0
	for i, line := range lines {
		parsed[i] = splitLine(line, sep)
		width = max(width, len(parsed[i]))
	}

	names := columnNames(header, width)
	rows := make([]entity.Row, len(parsed))
	for i, fields := range parsed {
		rows[i] = toRow(targets[i], fields, names)
	}

	return Result{
		Rows:        rows,
		Columns:     names,
		Delimiter:   sep,
		Start:       start,
		End:         end,
		UsableLines: usable,
		Hash:        resultHash(opts.N, opts.Seed, start, end, opts.AllowDuplicates, opts.Signature),
		Signature:   opts.Signature,
	}, nil
}

func maxN(limit int64) int64 {
	if limit < 1 {
		return DefaultMaxN
	}
	return limit
}

func newRand(seed uint64) *rand.Rand {
	return rand.New(rand.NewPCG(seed, pcgStream))
}

// draw returns n line numbers in [start, start+size). Without duplicates,
// collisions are redrawn and first-draw order is kept.
func draw(n int64, seed uint64, start, size int64, duplicates bool) []int64 {
	rng := newRand(seed)
	out := make([]int64, 0, min(n, 1<<16))

	if duplicates {
		for int64(len(out)) < n {
			out = append(out, start+rng.Int64N(size))
		}
		return out
	}

	picked := mapset.NewThreadUnsafeSetWithSize[int64](int(min(n, 1<<16)))
	for int64(len(out)) < n {
		if v := start + rng.Int64N(size); picked.Add(v) {
			out = append(out, v)
		}
	}

	return out
}

func readLines(ctx context.Context, src LineSource, targets []int64, concurrency int) ([]string, error) {
	if concurrency < 1 {
		concurrency = DefaultConcurrency
	}

	lines := make([]string, len(targets))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)

	for i, target := range targets {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			line, err := src.ReadLine(target)
			if err != nil {
				return fmt.Errorf("read line %d: %w", target, err)
			}
			lines[i] = line
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	return lines, nil
}

func resolveHeader(src LineSource, opts Options) (rune, []string, error) {
	sep := opts.Delimiter
	if sep != 0 && !opts.UseHeaders {
		return sep, nil, nil
	}

	first, err := src.ReadLine(1)
	if err != nil {
		return 0, nil, fmt.Errorf("read header: %w", err)
	}
	first = strings.TrimPrefix(first, "\uFEFF")
	if sep == 0 {
		sep = delimiter.Detect(first)
	}
	if !opts.UseHeaders {
		return sep, nil, nil
	}

	return sep, splitLine(first, sep), nil
}

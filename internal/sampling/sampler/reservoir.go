package sampler

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"slices"
	"strings"

	"github.com/shandysiswandi/gosampling/internal/sampling/delimiter"
	"github.com/shandysiswandi/gosampling/internal/sampling/entity"
	"github.com/shandysiswandi/gosampling/internal/sampling/offsetindex"
)

type ReservoirOptions struct {
	N          int64
	Seed       uint64
	UseHeaders bool
	// MaxN caps N; zero means DefaultMaxN.
	MaxN int64
	// Delimiter is detected from the first non-blank line when zero.
	Delimiter rune
}

type kept struct {
	position int64
	line     string
}

// Reservoir draws opts.N data rows from r in one pass, holding at most N raw
// lines. Blank lines and a declared header are not data rows. Rows come back
// in file order; Result.UsableLines is the number of data rows seen.
func Reservoir(ctx context.Context, r io.Reader, opts ReservoirOptions) (Result, error) {
	if opts.N < 1 {
		return Result{}, &SampleSizeError{N: opts.N}
	}
	if limit := maxN(opts.MaxN); opts.N > limit {
		return Result{}, &SampleSizeError{N: opts.N, Limit: limit}
	}

	head := &headCapture{}
	br := bufio.NewReaderSize(io.TeeReader(r, head), 64*1024)
	rng := newRand(opts.Seed)

	var (
		sep       = opts.Delimiter
		header    []string
		seenFirst bool
		position  int64
		seen      int64
		pool      = make([]kept, 0, min(opts.N, 1<<16))
	)

	for {
		raw, err := br.ReadString('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			return Result{}, fmt.Errorf("read line %d: %w", position+1, err)
		}
		if raw == "" && errors.Is(err, io.EOF) {
			break
		}

		position++
		if position%4096 == 0 {
			if cerr := ctx.Err(); cerr != nil {
				return Result{}, cerr
			}
		}

		line := strings.TrimRight(raw, "\r\n")
		if position == 1 {
			line = strings.TrimPrefix(line, "\uFEFF")
		}

		if !seenFirst && strings.TrimSpace(line) != "" {
			seenFirst = true
			if sep == 0 {
				sep = delimiter.Detect(line)
			}
			if opts.UseHeaders {
				header = splitLine(line, sep)
				continue
			}
		}

		if blank(line, sep) {
			continue
		}

		seen++
		if int64(len(pool)) < opts.N {
			pool = append(pool, kept{position: position, line: line})
		} else if j := rng.Int64N(seen); j < opts.N {
			pool[j] = kept{position: position, line: line}
		}
	}

	if seen < opts.N {
		return Result{}, &SampleSizeError{N: opts.N, Available: seen}
	}

	slices.SortFunc(pool, func(a, b kept) int {
		switch {
		case a.position < b.position:
			return -1
		case a.position > b.position:
			return 1
		}
		return 0
	})

	if sep == 0 {
		sep = delimiter.Pipe
	}

	parsed := make([][]string, len(pool))
	width := 0
	for i, k := range pool {
		parsed[i] = splitLine(k.line, sep)
		width = max(width, len(parsed[i]))
	}

	names := columnNames(header, width)
	rows := make([]entity.Row, len(pool))
	for i, fields := range parsed {
		rows[i] = toRow(pool[i].position, fields, names)
	}
	sig := offsetindex.SignatureOf(head.buf)

	return Result{
		Rows:        rows,
		Columns:     names,
		Delimiter:   sep,
		Start:       1,
		End:         position,
		UsableLines: seen,
		Hash:        resultHash(opts.N, opts.Seed, 1, position, false, sig),
		Signature:   sig,
	}, nil
}

// blank reports whether line holds only whitespace and separators.
func blank(line string, sep rune) bool {
	return strings.TrimFunc(line, func(r rune) bool {
		return r == sep || r == ' ' || r == '\t' || r == '\r' || r == '\v' || r == '\f'
	}) == ""
}

// headCapture keeps the first SignatureBytes written to it.
type headCapture struct {
	buf []byte
}

func (h *headCapture) Write(p []byte) (int, error) {
	if room := offsetindex.SignatureBytes - len(h.buf); room > 0 {
		h.buf = append(h.buf, p[:min(room, len(p))]...)
	}
	return len(p), nil
}

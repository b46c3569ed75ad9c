// Package offsetindex records the byte offset of every line of a file so
// that any line can later be read with two positioned reads.
//
// The index is a flat array of little-endian uint64 values in <source>.idx;
// entry i holds the offset of line i+1 and entry 0 is always 0. A JSON status
// marker in <source>.idx.ok is written once the index is published and ties
// it to the size, modification time and head signature of the source.
package offsetindex

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"time"

	"github.com/shandysiswandi/gosampling/internal/pkg/pkgfile"
	"github.com/shandysiswandi/gosampling/internal/sampling/entity"
)

const (
	entrySize = 8

	DefaultBatchSize     = 65536
	DefaultReadBuffer    = 1 << 20
	DefaultProgressEvery = 10 << 20
)

// Progress is reported while a build runs.
type Progress struct {
	Percent        float64
	Lines          int64
	BytesProcessed int64
	TotalBytes     int64
}

type BuildOptions struct {
	UseHeaders    bool
	BatchSize     int
	ReadBuffer    int
	ProgressEvery int64
	OnProgress    func(Progress)
}

func (o BuildOptions) withDefaults() BuildOptions {
	if o.BatchSize < 1 {
		o.BatchSize = DefaultBatchSize
	}
	if o.ReadBuffer < 1 {
		o.ReadBuffer = DefaultReadBuffer
	}
	if o.ProgressEvery < 1 {
		o.ProgressEvery = DefaultProgressEvery
	}
	if o.OnProgress == nil {
		o.OnProgress = func(Progress) {}
	}
	return o
}

type resultCounts struct {
	lines     int64
	usable    int64
	dataRows  int64
	dataStart int64
}

// Build indexes source, or reuses the existing index when its marker still
// matches the source. Cancelling ctx stops the scan between reads and leaves
// any previous index untouched. The old marker stays in place until the new
// one is written, so readers see the index as stale while it is rebuilt.
func Build(ctx context.Context, source string, opts BuildOptions) (entity.IndexResult, error) {
	opts = opts.withDefaults()

	if res, ok, err := reuse(source, opts.UseHeaders); err != nil {
		return entity.IndexResult{}, err
	} else if ok {
		slog.InfoContext(ctx, "index reused", "file", source, "lines", res.Lines)
		opts.OnProgress(Progress{Percent: 100, Lines: res.Lines})
		return res, nil
	}

	src, err := os.Open(source)
	if err != nil {
		return entity.IndexResult{}, fmt.Errorf("open %s: %w", source, err)
	}
	defer src.Close()

	info, err := src.Stat()
	if err != nil {
		return entity.IndexResult{}, fmt.Errorf("stat %s: %w", source, err)
	}
	sig, err := Signature(source)
	if err != nil {
		return entity.IndexResult{}, err
	}

	dst, err := pkgfile.Create(IndexPath(source))
	if err != nil {
		return entity.IndexResult{}, err
	}
	defer dst.Abort()

	start := time.Now()
	counts, err := scan(ctx, src, info.Size(), dst, opts)
	if err != nil {
		return entity.IndexResult{}, err
	}

	if err := dst.Commit(); err != nil {
		return entity.IndexResult{}, err
	}
	if err := writeMarker(source, newMarker(info, sig, counts, opts.UseHeaders)); err != nil {
		return entity.IndexResult{}, err
	}

	opts.OnProgress(Progress{Percent: 100, Lines: counts.lines, BytesProcessed: info.Size(), TotalBytes: info.Size()})
	slog.InfoContext(ctx, "index built",
		"file", source,
		"lines", counts.lines,
		"usable_lines", counts.usable,
		"bytes", info.Size(),
		"took_ms", time.Since(start).Milliseconds(),
	)

	return entity.IndexResult{
		Lines:           counts.lines,
		UsableLines:     counts.usable,
		DataRows:        counts.dataRows,
		DataStartOffset: counts.dataStart,
		IndexPath:       IndexPath(source),
	}, nil
}

func scan(ctx context.Context, src *os.File, size int64, dst io.Writer, opts BuildOptions) (resultCounts, error) {
	var (
		counts   resultCounts
		cursor   int64
		last     int64
		next     = opts.ProgressEvery
		buf      = make([]byte, opts.ReadBuffer)
		batch    = make([]byte, 0, opts.BatchSize*entrySize)
		flushErr error
	)

	record := func(off int64) {
		if flushErr != nil {
			return
		}
		if counts.lines == 1 && opts.UseHeaders {
			counts.dataStart = off
		}
		batch = binary.LittleEndian.AppendUint64(batch, uint64(off))
		counts.lines++
		last = off
		if len(batch) == cap(batch) {
			_, flushErr = dst.Write(batch)
			batch = batch[:0]
		}
	}

	if size > 0 {
		record(0)
	}

	for cursor < size {
		if err := ctx.Err(); err != nil {
			return counts, err
		}

		n, err := src.ReadAt(buf[:min(int64(len(buf)), size-cursor)], cursor)
		if n == 0 && err != nil {
			return counts, fmt.Errorf("read at %d: %w", cursor, err)
		}

		chunk := buf[:n]
		for i := 0; ; {
			j := bytes.IndexByte(chunk[i:], '\n')
			if j < 0 {
				break
			}
			if p := cursor + int64(i+j); p+1 < size {
				record(p + 1)
			}
			i += j + 1
		}
		if flushErr != nil {
			return counts, fmt.Errorf("write index: %w", flushErr)
		}

		cursor += int64(n)
		if cursor >= next || cursor == size {
			opts.OnProgress(Progress{
				Percent:        percent(cursor, size),
				Lines:          counts.lines,
				BytesProcessed: cursor,
				TotalBytes:     size,
			})
			for next <= cursor {
				next += opts.ProgressEvery
			}
		}
	}

	if len(batch) > 0 {
		if _, err := dst.Write(batch); err != nil {
			return counts, fmt.Errorf("write index: %w", err)
		}
	}

	counts.usable = counts.lines
	if counts.lines > 0 {
		blank, err := blankTail(src, last, size)
		if err != nil {
			return counts, err
		}
		if blank {
			counts.usable--
		}
	}

	counts.dataRows = counts.usable
	if opts.UseHeaders && counts.dataRows > 0 {
		counts.dataRows--
	}

	return counts, nil
}

// blankTail reports whether the bytes in [from, size) are all whitespace.
func blankTail(f io.ReaderAt, from, size int64) (bool, error) {
	buf := make([]byte, 4096)
	for off := from; off < size; {
		n, err := f.ReadAt(buf[:min(int64(len(buf)), size-off)], off)
		for _, b := range buf[:n] {
			switch b {
			case ' ', '\t', '\r', '\n', '\v', '\f':
			default:
				return false, nil
			}
		}
		if n == 0 && err != nil {
			return false, fmt.Errorf("read tail: %w", err)
		}
		off += int64(n)
	}

	return true, nil
}

func percent(done, total int64) float64 {
	if total <= 0 {
		return 100
	}
	return float64(done) * 100 / float64(total)
}

func reuse(source string, headers bool) (entity.IndexResult, bool, error) {
	m, ok, err := LoadMarker(source)
	if err != nil || !ok {
		return entity.IndexResult{}, false, err
	}

	info, err := os.Stat(IndexPath(source))
	if errors.Is(err, fs.ErrNotExist) {
		return entity.IndexResult{}, false, nil
	}
	if err != nil {
		return entity.IndexResult{}, false, fmt.Errorf("stat index: %w", err)
	}
	if info.Size() == 0 || info.Size() != m.Lines*entrySize {
		return entity.IndexResult{}, false, nil
	}

	fresh, err := m.Matches(source)
	if err != nil || !fresh {
		return entity.IndexResult{}, false, err
	}

	res := entity.IndexResult{
		Lines:       m.Lines,
		UsableLines: m.UsableLines,
		DataRows:    m.UsableLines,
		Reused:      true,
		IndexPath:   IndexPath(source),
	}
	if headers && res.DataRows > 0 {
		res.DataRows--
	}
	if headers == m.HasHeaders {
		res.DataStartOffset = m.DataStartOffset
		return res, true, nil
	}
	if headers && m.Lines > 1 {
		off, err := readEntry(IndexPath(source), 1)
		if err != nil {
			return entity.IndexResult{}, false, err
		}
		res.DataStartOffset = off
	}

	return res, true, nil
}

func readEntry(indexPath string, i int64) (int64, error) {
	f, err := os.Open(indexPath)
	if err != nil {
		return 0, fmt.Errorf("open index: %w", err)
	}
	defer f.Close()

	var b [entrySize]byte
	if _, err := f.ReadAt(b[:], i*entrySize); err != nil {
		return 0, fmt.Errorf("read index entry %d: %w", i, err)
	}

	return int64(binary.LittleEndian.Uint64(b[:])), nil
}

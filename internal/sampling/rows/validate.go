package rows

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/shandysiswandi/gosampling/internal/sampling/delimiter"
	"github.com/shandysiswandi/gosampling/internal/sampling/entity"
)

// maxHeaderBytes caps how much header text a report carries.
const maxHeaderBytes = 4096

type Options struct {
	// Delimiter is detected from the first non-empty line when zero.
	Delimiter rune
}

// Validate counts the lines of the file at path and the positions of its
// blank lines. A line is blank when it holds nothing but whitespace and
// separators. The first non-blank line without any digit is taken as the
// header and left out of every count; positions are physical 1-based line
// numbers.
func Validate(ctx context.Context, path string, opts Options) (entity.ValidationReport, error) {
	f, err := os.Open(path)
	if err != nil {
		return entity.ValidationReport{}, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	sep, err := resolveDelimiter(f, opts.Delimiter)
	if err != nil {
		return entity.ValidationReport{}, err
	}

	return ValidateReader(ctx, f, sep)
}

// ValidateReader is Validate over an already positioned stream.
func ValidateReader(ctx context.Context, r io.Reader, sep rune) (entity.ValidationReport, error) {
	report := entity.ValidationReport{
		Delimiter:      string(sep),
		EmptyPositions: []int64{},
	}

	var (
		header   strings.Builder
		decided  bool
		capacity = maxHeaderBytes
	)

	fragment := func(p []byte) error {
		if decided || capacity == 0 {
			return nil
		}
		n := min(len(p), capacity)
		header.Write(p[:n])
		capacity -= n
		return nil
	}

	done := func(l line) error {
		if !decided && !l.Empty {
			decided = true
			if !l.Digits {
				report.HeaderDetected = true
				report.Header = strings.TrimRight(header.String(), " \t\r")
				return nil
			}
		}
		if !decided {
			header.Reset()
			capacity = maxHeaderBytes
		}

		report.TotalLines++
		if l.Empty {
			report.EmptyLines++
			if len(report.EmptyPositions) < entity.MaxEmptyPositions {
				report.EmptyPositions = append(report.EmptyPositions, l.Number)
			}
		}
		return nil
	}

	if err := newScanner(r, sep).run(ctx, fragment, done); err != nil {
		return report, err
	}

	return report, nil
}

func resolveDelimiter(f *os.File, sep rune) (rune, error) {
	if sep != 0 {
		return sep, nil
	}

	sep, err := delimiter.DetectReader(f)
	if err != nil {
		return 0, err
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return 0, fmt.Errorf("rewind %s: %w", f.Name(), err)
	}

	return sep, nil
}

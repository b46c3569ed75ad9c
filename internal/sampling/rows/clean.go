package rows

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/shandysiswandi/gosampling/internal/pkg/pkgfile"
	"github.com/shandysiswandi/gosampling/internal/sampling/entity"
)

type CleanOptions struct {
	Delimiter  rune
	UseHeaders bool
	// Output defaults to CleanedPath(source).
	Output string
}

// CleanedPath returns <stem>_clean<ext> next to path.
func CleanedPath(path string) string {
	ext := filepath.Ext(path)
	return strings.TrimSuffix(path, ext) + "_clean" + ext
}

// Clean writes a copy of the file at path without its blank lines. Kept
// lines lose their trailing whitespace and end in a single LF. The copy is
// only visible under its final name once fully written and synced.
func Clean(ctx context.Context, path string, opts CleanOptions) (entity.CleanResult, error) {
	src, err := os.Open(path)
	if err != nil {
		return entity.CleanResult{}, fmt.Errorf("open %s: %w", path, err)
	}
	defer src.Close()

	sep, err := resolveDelimiter(src, opts.Delimiter)
	if err != nil {
		return entity.CleanResult{}, err
	}

	output := opts.Output
	if output == "" {
		output = CleanedPath(path)
	}

	dst, err := pkgfile.Create(output)
	if err != nil {
		return entity.CleanResult{}, err
	}
	defer dst.Abort()

	bw := bufio.NewWriterSize(dst, readBufferSize)
	lw := &lineWriter{w: bw, sep: byte(sep)}

	result := entity.CleanResult{Source: path, Output: output}
	done := func(l line) error {
		kept, err := lw.endLine()
		if err != nil {
			return err
		}
		if kept {
			result.LinesWritten++
		}
		return nil
	}

	if err := newScanner(src, sep).run(ctx, lw.fragment, done); err != nil {
		return entity.CleanResult{}, err
	}
	if err := bw.Flush(); err != nil {
		return entity.CleanResult{}, fmt.Errorf("flush %s: %w", output, err)
	}
	if err := dst.Commit(); err != nil {
		return entity.CleanResult{}, err
	}

	result.DataLines = result.LinesWritten
	if opts.UseHeaders && result.LinesWritten > 0 {
		result.HeaderWritten = true
		result.DataLines--
	}

	return result, nil
}

// lineWriter copies non-blank lines, holding back trailing whitespace until
// it knows more content follows on the same line.
type lineWriter struct {
	w       *bufio.Writer
	sep     byte
	content bool
	pending []byte
}

func (lw *lineWriter) fragment(p []byte) error {
	last := -1
	for i := len(p) - 1; i >= 0; i-- {
		if !isSpace(p[i]) {
			last = i
			break
		}
	}

	if !lw.content {
		for _, b := range p[:last+1] {
			if !isSpace(b) && b != lw.sep {
				lw.content = true
				break
			}
		}
	}

	if last < 0 || !lw.content {
		lw.pending = append(lw.pending, p...)
		return nil
	}

	if _, err := lw.w.Write(lw.pending); err != nil {
		return err
	}
	if _, err := lw.w.Write(p[:last+1]); err != nil {
		return err
	}
	lw.pending = append(lw.pending[:0], p[last+1:]...)

	return nil
}

func (lw *lineWriter) endLine() (bool, error) {
	kept := lw.content
	lw.content = false
	lw.pending = lw.pending[:0]

	if !kept {
		return false, nil
	}

	return true, lw.w.WriteByte('\n')
}

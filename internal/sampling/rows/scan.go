// Package rows streams delimited text files line by line to validate them
// and to write cleaned copies without blank rows.
package rows

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
)

const (
	readBufferSize = 64 * 1024
	checkEvery     = 4096
)

// line summarizes one physical line once its last byte has been read.
type line struct {
	Number int64
	Empty  bool
	Digits bool
}

// scanner reads lines as fragments of at most readBufferSize bytes, so a
// single huge line never has to fit in memory.
type scanner struct {
	br  *bufio.Reader
	sep byte
}

func newScanner(r io.Reader, sep rune) *scanner {
	return &scanner{br: bufio.NewReaderSize(r, readBufferSize), sep: byte(sep)}
}

// run calls fragment for every piece of a line (terminator excluded) and
// done after the line ends. fragment may be nil.
func (s *scanner) run(ctx context.Context, fragment func(p []byte) error, done func(l line) error) error {
	var (
		cur     line
		started bool
	)
	cur.Empty = true

	for {
		p, err := s.br.ReadSlice('\n')
		if err != nil && !errors.Is(err, bufio.ErrBufferFull) && !errors.Is(err, io.EOF) {
			return fmt.Errorf("read line %d: %w", cur.Number+1, err)
		}

		terminated := len(p) > 0 && p[len(p)-1] == '\n'
		if terminated {
			p = p[:len(p)-1]
		}

		if len(p) > 0 || terminated {
			started = true
			s.classify(&cur, p)
			if fragment != nil && len(p) > 0 {
				if ferr := fragment(p); ferr != nil {
					return ferr
				}
			}
		}

		if terminated || (errors.Is(err, io.EOF) && started) {
			cur.Number++
			if derr := done(cur); derr != nil {
				return derr
			}
			if cur.Number%checkEvery == 0 {
				if cerr := ctx.Err(); cerr != nil {
					return cerr
				}
			}
			cur = line{Number: cur.Number, Empty: true}
			started = false
		}

		if errors.Is(err, io.EOF) {
			return nil
		}
	}
}

func (s *scanner) classify(l *line, p []byte) {
	for _, b := range p {
		switch {
		case b >= '0' && b <= '9':
			l.Digits = true
			l.Empty = false
		case isSpace(b) || b == s.sep:
		default:
			l.Empty = false
		}
	}
}

func isSpace(b byte) bool {
	switch b {
	case ' ', '\t', '\r', '\v', '\f':
		return true
	}
	return false
}

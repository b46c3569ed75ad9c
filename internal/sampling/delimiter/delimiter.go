// Package delimiter picks the field separator of a delimited text file.
package delimiter

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"
)

const (
	Pipe      rune = '|'
	Semicolon rune = ';'
	Comma     rune = ','
	Tab       rune = '\t'
)

// maxHeadBytes bounds how much of a file DetectReader looks at.
const maxHeadBytes = 64 * 1024

var (
	// ErrUnknown is returned by Parse for a value that names no supported delimiter.
	ErrUnknown = errors.New("unknown delimiter")

	// candidates in tie-break priority order.
	candidates = []rune{Pipe, Semicolon, Comma, Tab}

	names = map[string]rune{
		"pipe":      Pipe,
		"semicolon": Semicolon,
		"comma":     Comma,
		"tab":       Tab,
	}

	utf8BOM = []byte{0xEF, 0xBB, 0xBF}
)

// Detect returns the candidate that occurs most often in line. Ties go to the
// earlier candidate, so a line without any separator yields Pipe.
func Detect(line string) rune {
	best, bestCount := Pipe, 0
	for _, c := range candidates {
		if n := strings.Count(line, string(c)); n > bestCount {
			best, bestCount = c, n
		}
	}

	return best
}

// DetectReader applies Detect to the first non-empty line of r. Only the head
// of the stream is read.
func DetectReader(r io.Reader) (rune, error) {
	line, err := FirstLine(r)
	if err != nil {
		return 0, err
	}

	return Detect(line), nil
}

// FirstLine returns the first non-blank line within the head of r, without
// its line terminator and with a leading UTF-8 BOM removed.
func FirstLine(r io.Reader) (string, error) {
	br := bufio.NewReader(io.LimitReader(r, maxHeadBytes))

	first := true
	for {
		raw, err := br.ReadBytes('\n')
		if first {
			raw = bytes.TrimPrefix(raw, utf8BOM)
			first = false
		}

		if line := strings.TrimRight(string(raw), "\r\n"); strings.TrimSpace(line) != "" {
			return line, nil
		}

		if errors.Is(err, io.EOF) {
			return "", nil
		}
		if err != nil {
			return "", fmt.Errorf("read head: %w", err)
		}
	}
}

// Parse accepts a delimiter name (pipe, comma, semicolon, tab) or the literal character.
func Parse(s string) (rune, error) {
	if r, ok := names[strings.ToLower(strings.TrimSpace(s))]; ok {
		return r, nil
	}

	switch s {
	case "|":
		return Pipe, nil
	case ";":
		return Semicolon, nil
	case ",":
		return Comma, nil
	case "\t", `\t`:
		return Tab, nil
	}

	return 0, fmt.Errorf("%w: %q", ErrUnknown, s)
}

// Name returns the configuration name of d.
func Name(d rune) string {
	for name, r := range names {
		if r == d {
			return name
		}
	}

	return string(d)
}

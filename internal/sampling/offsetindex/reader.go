package offsetindex

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
)

var (
	// ErrIndexMissing is returned when a source has never been indexed.
	ErrIndexMissing = errors.New("index not built")
	// ErrIndexStale is returned when an index cannot describe its source any more.
	ErrIndexStale = errors.New("index is stale")
	// ErrLineOutOfRange is returned for a line number outside the index.
	ErrLineOutOfRange = errors.New("line out of range")
)

// Reader gives random access to the lines of an indexed file. It is safe for
// concurrent use.
type Reader struct {
	source *os.File
	index  *os.File
	size   int64
	lines  int64
	usable int64
	marker Marker
	fresh  bool
}

// Open opens source together with its index.
func Open(source string) (*Reader, error) {
	idx, err := os.Open(IndexPath(source))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrIndexMissing, source)
	}
	if err != nil {
		return nil, fmt.Errorf("open index: %w", err)
	}

	idxInfo, err := idx.Stat()
	if err != nil {
		_ = idx.Close()
		return nil, fmt.Errorf("stat index: %w", err)
	}
	if idxInfo.Size() == 0 || idxInfo.Size()%entrySize != 0 {
		_ = idx.Close()
		return nil, fmt.Errorf("%w: %s holds %d bytes", ErrIndexStale, IndexPath(source), idxInfo.Size())
	}

	src, err := os.Open(source)
	if err != nil {
		_ = idx.Close()
		return nil, fmt.Errorf("open %s: %w", source, err)
	}
	srcInfo, err := src.Stat()
	if err != nil {
		_ = idx.Close()
		_ = src.Close()
		return nil, fmt.Errorf("stat %s: %w", source, err)
	}

	r := &Reader{
		source: src,
		index:  idx,
		size:   srcInfo.Size(),
		lines:  idxInfo.Size() / entrySize,
	}

	if err := r.resolveUsable(source); err != nil {
		_ = r.Close()
		return nil, err
	}

	return r, nil
}

// resolveUsable takes the usable line count from the marker. A marker that
// no longer describes the source or the index makes the index stale; the
// blank-tail heuristic applies only to an index built without a marker.
func (r *Reader) resolveUsable(source string) error {
	m, ok, err := LoadMarker(source)
	if err != nil {
		return err
	}
	if ok {
		if m.Lines != r.lines {
			return fmt.Errorf("%w: marker records %d lines, index holds %d", ErrIndexStale, m.Lines, r.lines)
		}
		fresh, err := m.Matches(source)
		if err != nil {
			return err
		}
		if !fresh {
			return fmt.Errorf("%w: %s changed after it was indexed", ErrIndexStale, source)
		}
		r.marker, r.fresh, r.usable = m, true, m.UsableLines
		return nil
	}

	last, err := r.Offset(r.lines)
	if err != nil {
		return err
	}
	if last > r.size {
		return fmt.Errorf("%w: last line starts at %d beyond %d bytes", ErrIndexStale, last, r.size)
	}

	blank, err := blankTail(r.source, last, r.size)
	if err != nil {
		return err
	}

	r.usable = r.lines
	if blank {
		r.usable--
	}

	return nil
}

// Lines is the number of indexed lines.
func (r *Reader) Lines() int64 {
	return r.lines
}

// UsableLines is Lines without a trailing blank line.
func (r *Reader) UsableLines() int64 {
	return r.usable
}

// Marker returns the status marker when it matches the source.
func (r *Reader) Marker() (Marker, bool) {
	return r.marker, r.fresh
}

// Offset returns the byte offset of the 1-based line.
func (r *Reader) Offset(line int64) (int64, error) {
	if line < 1 || line > r.lines {
		return 0, fmt.Errorf("%w: %d not in [1, %d]", ErrLineOutOfRange, line, r.lines)
	}

	var b [entrySize]byte
	if _, err := r.index.ReadAt(b[:], (line-1)*entrySize); err != nil {
		return 0, fmt.Errorf("read index entry %d: %w", line, err)
	}

	return int64(binary.LittleEndian.Uint64(b[:])), nil
}

// ReadLine returns the 1-based line without its LF or CRLF terminator.
func (r *Reader) ReadLine(line int64) (string, error) {
	if line < 1 || line > r.lines {
		return "", fmt.Errorf("%w: %d not in [1, %d]", ErrLineOutOfRange, line, r.lines)
	}

	start, end, err := r.bounds(line)
	if err != nil {
		return "", err
	}
	if start > end || end > r.size {
		return "", fmt.Errorf("%w: line %d spans [%d, %d) of %d bytes", ErrIndexStale, line, start, end, r.size)
	}

	buf := make([]byte, end-start)
	if _, err := r.source.ReadAt(buf, start); err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("read line %d: %w", line, err)
	}

	if i := bytes.IndexByte(buf, '\n'); i >= 0 {
		buf = buf[:i]
	}

	return string(bytes.TrimSuffix(buf, []byte{'\r'})), nil
}

// bounds reads the entries of line and its successor in one go.
func (r *Reader) bounds(line int64) (int64, int64, error) {
	if line == r.lines {
		start, err := r.Offset(line)
		return start, r.size, err
	}

	var b [2 * entrySize]byte
	if _, err := r.index.ReadAt(b[:], (line-1)*entrySize); err != nil {
		return 0, 0, fmt.Errorf("read index entry %d: %w", line, err)
	}

	return int64(binary.LittleEndian.Uint64(b[:entrySize])), int64(binary.LittleEndian.Uint64(b[entrySize:])), nil
}

func (r *Reader) Close() error {
	return errors.Join(r.index.Close(), r.source.Close())
}

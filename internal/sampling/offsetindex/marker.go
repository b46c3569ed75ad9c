package offsetindex

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"time"

	"github.com/cespare/xxhash/v2"

	"github.com/shandysiswandi/gosampling/internal/pkg/pkgfile"
)

const (
	indexExt  = ".idx"
	markerExt = ".idx.ok"

	// SignatureBytes is how much of the head of a file its signature covers.
	SignatureBytes = 1024
)

// Marker is the status file written next to a finished index. An index
// without a matching marker is never reused.
type Marker struct {
	Lines           int64  `json:"lines"`
	UsableLines     int64  `json:"usable_lines"`
	DataRows        int64  `json:"data_rows"`
	DataStartOffset int64  `json:"data_start_offset"`
	HasHeaders      bool   `json:"headers"`
	SourceSize      int64  `json:"source_size"`
	SourceModTime   int64  `json:"source_mtime"`
	Signature       string `json:"signature"`
	BuiltAt         int64  `json:"built_at"`
}

// IndexPath returns where the index of source lives.
func IndexPath(source string) string {
	return source + indexExt
}

// MarkerPath returns where the status marker of source lives.
func MarkerPath(source string) string {
	return source + markerExt
}

// Signature is the hex xxhash64 of the first SignatureBytes of the file at path.
func Signature(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	head, err := io.ReadAll(io.LimitReader(f, SignatureBytes))
	if err != nil {
		return "", fmt.Errorf("read %s: %w", path, err)
	}

	return SignatureOf(head), nil
}

// SignatureOf signs head, which callers cut to at most SignatureBytes.
func SignatureOf(head []byte) string {
	return fmt.Sprintf("%016x", xxhash.Sum64(head[:min(len(head), SignatureBytes)]))
}

// LoadMarker reads the marker of source. It returns ok=false when there is none.
func LoadMarker(source string) (Marker, bool, error) {
	data, err := os.ReadFile(MarkerPath(source))
	if errors.Is(err, fs.ErrNotExist) {
		return Marker{}, false, nil
	}
	if err != nil {
		return Marker{}, false, fmt.Errorf("read marker: %w", err)
	}

	var m Marker
	if err := json.Unmarshal(data, &m); err != nil {
		// A torn or foreign marker is treated as absent.
		return Marker{}, false, nil //nolint:nilerr // forces a rebuild
	}

	return m, true, nil
}

func writeMarker(source string, m Marker) error {
	data, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("encode marker: %w", err)
	}

	return pkgfile.WriteAtomic(MarkerPath(source), data)
}

// Matches reports whether m was written for the current content of source.
func (m Marker) Matches(source string) (bool, error) {
	info, err := os.Stat(source)
	if err != nil {
		return false, fmt.Errorf("stat %s: %w", source, err)
	}
	if info.Size() != m.SourceSize || info.ModTime().UnixNano() != m.SourceModTime {
		return false, nil
	}

	sig, err := Signature(source)
	if err != nil {
		return false, err
	}

	return sig == m.Signature, nil
}

func newMarker(info os.FileInfo, sig string, res resultCounts, headers bool) Marker {
	return Marker{
		Lines:           res.lines,
		UsableLines:     res.usable,
		DataRows:        res.dataRows,
		DataStartOffset: res.dataStart,
		HasHeaders:      headers,
		SourceSize:      info.Size(),
		SourceModTime:   info.ModTime().UnixNano(),
		Signature:       sig,
		BuiltAt:         time.Now().Unix(),
	}
}

package offsetindex

import (
	"context"
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeSource(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "data.csv")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

// naiveOffsets is an independent scan: a line starts at 0 and after every LF that is not the last byte.
func naiveOffsets(data []byte) []int64 {
	if len(data) == 0 {
		return nil
	}
	out := []int64{0}
	for i, b := range data {
		if b == '\n' && i+1 < len(data) {
			out = append(out, int64(i+1))
		}
	}
	return out
}

func readIndex(t *testing.T, source string) []int64 {
	t.Helper()

	data, err := os.ReadFile(IndexPath(source))
	require.NoError(t, err)
	require.Zero(t, len(data)%entrySize)

	var out []int64
	for i := 0; i < len(data); i += entrySize {
		out = append(out, int64(binary.LittleEndian.Uint64(data[i:])))
	}
	return out
}

func TestBuildMatchesIndependentScan(t *testing.T) {
	var wide strings.Builder
	for i := 0; i < 500; i++ {
		fmt.Fprintf(&wide, "%d|%s\n", i, strings.Repeat("v", i%37))
	}

	cases := map[string]string{
		"trailing newline":    "a|b\nc|d\ne|f\n",
		"no trailing newline": "a|b\nc|d\ne|f",
		"crlf":                "a|b\r\nc|d\r\n",
		"blank lines":         "h|x\n\n1|2\n\n\n3|4\n",
		"single line":         "only",
		"only newline":        "\n",
		"wide":                wide.String(),
	}

	for name, content := range cases {
		t.Run(name, func(t *testing.T) {
			source := writeSource(t, content)

			res, err := Build(context.Background(), source, BuildOptions{ReadBuffer: 7, BatchSize: 3})
			require.NoError(t, err)

			want := naiveOffsets([]byte(content))
			assert.Equal(t, want, readIndex(t, source))
			assert.EqualValues(t, len(want), res.Lines)
			assert.False(t, res.Reused)
		})
	}
}

func TestBuildUsableLinesAndHeaders(t *testing.T) {
	source := writeSource(t, "id|v\n1|a\n2|b\n\n")

	res, err := Build(context.Background(), source, BuildOptions{UseHeaders: true})
	require.NoError(t, err)

	assert.EqualValues(t, 4, res.Lines)
	assert.EqualValues(t, 3, res.UsableLines)
	assert.EqualValues(t, 2, res.DataRows)
	assert.EqualValues(t, 5, res.DataStartOffset)

	m, ok, err := LoadMarker(source)
	require.NoError(t, err)
	require.True(t, ok)
	assert.EqualValues(t, 4, m.Lines)
	assert.EqualValues(t, 3, m.UsableLines)
	assert.True(t, m.HasHeaders)
	assert.Len(t, m.Signature, 16)
}

func TestBuildReusesFreshIndex(t *testing.T) {
	source := writeSource(t, "id|v\n1|a\n2|b\n")

	first, err := Build(context.Background(), source, BuildOptions{})
	require.NoError(t, err)
	require.False(t, first.Reused)

	second, err := Build(context.Background(), source, BuildOptions{})
	require.NoError(t, err)
	assert.True(t, second.Reused)
	assert.Equal(t, first.Lines, second.Lines)
	assert.Equal(t, first.UsableLines, second.UsableLines)

	withHeaders, err := Build(context.Background(), source, BuildOptions{UseHeaders: true})
	require.NoError(t, err)
	assert.True(t, withHeaders.Reused)
	assert.EqualValues(t, 2, withHeaders.DataRows)
	assert.EqualValues(t, 5, withHeaders.DataStartOffset)
}

func TestBuildRebuildsStaleIndex(t *testing.T) {
	source := writeSource(t, "id|v\n1|a\n")

	_, err := Build(context.Background(), source, BuildOptions{})
	require.NoError(t, err)

	f, err := os.OpenFile(source, os.O_APPEND|os.O_WRONLY, 0o644)
	require.NoError(t, err)
	_, err = f.WriteString("2|b\n")
	require.NoError(t, err)
	require.NoError(t, f.Close())

	res, err := Build(context.Background(), source, BuildOptions{})
	require.NoError(t, err)
	assert.False(t, res.Reused)
	assert.EqualValues(t, 3, res.Lines)
}

func TestBuildRebuildsWhenOnlyModTimeChanged(t *testing.T) {
	source := writeSource(t, "id|v\n1|a\n")

	_, err := Build(context.Background(), source, BuildOptions{})
	require.NoError(t, err)

	later := time.Now().Add(time.Hour)
	require.NoError(t, os.Chtimes(source, later, later))

	res, err := Build(context.Background(), source, BuildOptions{})
	require.NoError(t, err)
	assert.False(t, res.Reused)
}

func TestBuildReportsProgress(t *testing.T) {
	source := writeSource(t, strings.Repeat("1234567|abc\n", 1000))

	var reports []Progress
	_, err := Build(context.Background(), source, BuildOptions{
		ReadBuffer:    1000,
		ProgressEvery: 2000,
		OnProgress:    func(p Progress) { reports = append(reports, p) },
	})
	require.NoError(t, err)

	require.Greater(t, len(reports), 3)
	for i := 1; i < len(reports); i++ {
		assert.GreaterOrEqual(t, reports[i].BytesProcessed, reports[i-1].BytesProcessed)
	}
	final := reports[len(reports)-1]
	assert.InDelta(t, 100, final.Percent, 0.001)
	assert.EqualValues(t, 1000, final.Lines)
	assert.EqualValues(t, 12000, final.TotalBytes)
}

func TestBuildHonoursCancellation(t *testing.T) {
	source := writeSource(t, strings.Repeat("1|2\n", 100))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Build(ctx, source, BuildOptions{})
	require.ErrorIs(t, err, context.Canceled)

	_, err = os.Stat(IndexPath(source))
	assert.True(t, os.IsNotExist(err))

	entries, err := os.ReadDir(filepath.Dir(source))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temporary index must be removed")
}

func TestReaderReadsEveryLine(t *testing.T) {
	content := "id|v\r\n1|a\r\n\n2|b\n3|c"
	source := writeSource(t, content)

	_, err := Build(context.Background(), source, BuildOptions{})
	require.NoError(t, err)

	r, err := Open(source)
	require.NoError(t, err)
	defer r.Close()

	want := []string{"id|v", "1|a", "", "2|b", "3|c"}
	require.EqualValues(t, len(want), r.Lines())
	for i, w := range want {
		got, err := r.ReadLine(int64(i + 1))
		require.NoError(t, err)
		assert.Equal(t, w, got, "line %d", i+1)
	}

	_, err = r.ReadLine(0)
	require.ErrorIs(t, err, ErrLineOutOfRange)
	_, err = r.ReadLine(6)
	require.ErrorIs(t, err, ErrLineOutOfRange)

	m, ok := r.Marker()
	assert.True(t, ok)
	assert.EqualValues(t, 5, m.UsableLines)
}

func TestReaderUsableLinesWithoutMarker(t *testing.T) {
	source := writeSource(t, "a\nb\n  \n")

	_, err := Build(context.Background(), source, BuildOptions{})
	require.NoError(t, err)
	require.NoError(t, os.Remove(MarkerPath(source)))

	r, err := Open(source)
	require.NoError(t, err)
	defer r.Close()

	_, ok := r.Marker()
	assert.False(t, ok)
	assert.EqualValues(t, 3, r.Lines())
	assert.EqualValues(t, 2, r.UsableLines())
}

func TestOpenErrors(t *testing.T) {
	source := writeSource(t, "a\nb\n")

	_, err := Open(source)
	require.ErrorIs(t, err, ErrIndexMissing)

	require.NoError(t, os.WriteFile(IndexPath(source), nil, 0o644))
	_, err = Open(source)
	require.ErrorIs(t, err, ErrIndexStale)
}

func TestOpenRejectsSourceReplacedAfterBuild(t *testing.T) {
	source := writeSource(t, "a|1\nbb|2\nccc|3\ndddd|4\n")

	_, err := Build(context.Background(), source, BuildOptions{})
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(source, []byte("xxxxxxx|1\nyyyyyy|2\nz|3\nw|4\n"), 0o644))

	_, err = Open(source)
	require.ErrorIs(t, err, ErrIndexStale)

	res, err := Build(context.Background(), source, BuildOptions{})
	require.NoError(t, err)
	assert.False(t, res.Reused)

	r, err := Open(source)
	require.NoError(t, err)
	defer r.Close()

	line, err := r.ReadLine(2)
	require.NoError(t, err)
	assert.Equal(t, "yyyyyy|2", line)
}

func TestOpenRejectsIndexDisagreeingWithMarker(t *testing.T) {
	source := writeSource(t, "a\nb\nc\n")

	_, err := Build(context.Background(), source, BuildOptions{})
	require.NoError(t, err)

	f, err := os.OpenFile(IndexPath(source), os.O_APPEND|os.O_WRONLY, 0o644)
	require.NoError(t, err)
	_, err = f.Write(make([]byte, entrySize))
	require.NoError(t, err)
	require.NoError(t, f.Close())

	_, err = Open(source)
	require.ErrorIs(t, err, ErrIndexStale)
}

func TestSignatureOnlyReadsHead(t *testing.T) {
	head := strings.Repeat("h", SignatureBytes)
	a := writeSource(t, head+"tail-one")
	b := writeSource(t, head+"tail-two")

	sa, err := Signature(a)
	require.NoError(t, err)
	sb, err := Signature(b)
	require.NoError(t, err)
	assert.Equal(t, sa, sb)

	c := writeSource(t, "x"+head)
	sc, err := Signature(c)
	require.NoError(t, err)
	assert.NotEqual(t, sa, sc)
}

package sampler

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shandysiswandi/gosampling/internal/sampling/entity"
	"github.com/shandysiswandi/gosampling/internal/sampling/offsetindex"
	"github.com/shandysiswandi/gosampling/internal/sampling/rows"
)

type memSource struct {
	lines []string
	reads int
}

func (m *memSource) Lines() int64 { return int64(len(m.lines)) }

func (m *memSource) UsableLines() int64 {
	n := int64(len(m.lines))
	if n > 0 && strings.TrimSpace(m.lines[n-1]) == "" {
		n--
	}
	return n
}

func (m *memSource) ReadLine(line int64) (string, error) {
	if line < 1 || line > int64(len(m.lines)) {
		return "", offsetindex.ErrLineOutOfRange
	}
	return m.lines[line-1], nil
}

func numbered(n int, header string) *memSource {
	src := &memSource{}
	if header != "" {
		src.lines = append(src.lines, header)
	}
	for i := 1; i <= n; i++ {
		src.lines = append(src.lines, fmt.Sprintf("%d|v%d|%d", i, i, i*2))
	}
	return src
}

func positions(rs []entity.Row) []int64 {
	out := make([]int64, len(rs))
	for i, r := range rs {
		out[i] = r.Position
	}
	return out
}

func TestSampleIsDeterministic(t *testing.T) {
	src := numbered(500, "id|name|double")
	opts := Options{N: 25, Seed: 42, Start: 1, End: 501, UseHeaders: true, Signature: "abc"}

	first, err := Sample(context.Background(), src, opts)
	require.NoError(t, err)
	second, err := Sample(context.Background(), src, opts)
	require.NoError(t, err)

	assert.Equal(t, positions(first.Rows), positions(second.Rows))
	assert.Equal(t, first.Rows, second.Rows)
	assert.Equal(t, first.Hash, second.Hash)
	assert.Len(t, first.Hash, 64)

	opts.Seed = 43
	other, err := Sample(context.Background(), src, opts)
	require.NoError(t, err)
	assert.NotEqual(t, first.Hash, other.Hash)
	assert.NotEqual(t, positions(first.Rows), positions(other.Rows))
}

func TestSampleWithoutDuplicates(t *testing.T) {
	src := numbered(50, "")

	res, err := Sample(context.Background(), src, Options{N: 50, Seed: 7, Start: 1, End: 50})
	require.NoError(t, err)

	seen := map[int64]bool{}
	for _, r := range res.Rows {
		require.False(t, seen[r.Position], "duplicate line %d", r.Position)
		seen[r.Position] = true
		assert.Equal(t, fmt.Sprint(r.Position), r.Values["column_1"])
	}
	assert.Len(t, seen, 50)
	assert.Equal(t, []string{"column_1", "column_2", "column_3"}, res.Columns)
}

func TestSampleWithDuplicatesMayExceedRange(t *testing.T) {
	src := numbered(5, "")

	res, err := Sample(context.Background(), src, Options{N: 40, Seed: 1, Start: 2, End: 4, AllowDuplicates: true})
	require.NoError(t, err)
	require.Len(t, res.Rows, 40)
	for _, r := range res.Rows {
		assert.GreaterOrEqual(t, r.Position, int64(2))
		assert.LessOrEqual(t, r.Position, int64(4))
	}
}

func TestSampleOrdered(t *testing.T) {
	src := numbered(200, "")

	res, err := Sample(context.Background(), src, Options{N: 30, Seed: 9, Start: 1, End: 200, Ordered: true})
	require.NoError(t, err)

	pos := positions(res.Rows)
	for i := 1; i < len(pos); i++ {
		assert.Less(t, pos[i-1], pos[i])
	}
}

func TestSampleSkipsHeaderLine(t *testing.T) {
	src := numbered(3, "id|name|double")

	res, err := Sample(context.Background(), src, Options{N: 3, Seed: 3, Start: 1, End: 4, UseHeaders: true})
	require.NoError(t, err)

	assert.EqualValues(t, 2, res.Start)
	assert.Equal(t, []string{"id", "name", "double"}, res.Columns)
	for _, r := range res.Rows {
		assert.NotEqual(t, "id", r.Values["id"])
		assert.Equal(t, fmt.Sprint(r.Position-1), r.Values["id"])
	}
}

func TestSampleRejectsRangeBeyondUsableLines(t *testing.T) {
	src := numbered(50, "")

	_, err := Sample(context.Background(), src, Options{N: 10, Seed: 1, Start: 1, End: 100})
	require.Error(t, err)

	var rangeErr *RangeError
	require.True(t, errors.As(err, &rangeErr))
	assert.EqualValues(t, 100, rangeErr.End)
	assert.EqualValues(t, 50, rangeErr.Usable)
	assert.Contains(t, err.Error(), "100")
	assert.Contains(t, err.Error(), "50")
}

func TestSampleRejectsInvalidRequests(t *testing.T) {
	src := numbered(50, "")

	tests := []struct {
		name string
		opts Options
		want any
	}{
		{name: "start below one", opts: Options{N: 1, Start: 0, End: 10}, want: &RangeError{}},
		{name: "end before start", opts: Options{N: 1, Start: 10, End: 9}, want: &RangeError{}},
		{name: "zero sample", opts: Options{N: 0, Start: 1, End: 10}, want: &SampleSizeError{}},
		{name: "sample larger than range", opts: Options{N: 11, Start: 1, End: 10}, want: &SampleSizeError{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Sample(context.Background(), src, tt.opts)
			require.Error(t, err)
			assert.IsType(t, tt.want, err)
		})
	}

	_, err := Sample(context.Background(), src, Options{N: 11, Start: 1, End: 10})
	assert.Contains(t, err.Error(), "11")
	assert.Contains(t, err.Error(), "10")
}

func TestSampleRejectsSizeAboveLimit(t *testing.T) {
	src := numbered(50, "")

	_, err := Sample(context.Background(), src, Options{N: 1 << 60, Start: 1, End: 50, AllowDuplicates: true})
	var sizeErr *SampleSizeError
	require.True(t, errors.As(err, &sizeErr))
	assert.EqualValues(t, DefaultMaxN, sizeErr.Limit)
	assert.Contains(t, err.Error(), "limit")

	_, err = Sample(context.Background(), src, Options{N: 11, Start: 1, End: 50, MaxN: 10})
	require.True(t, errors.As(err, &sizeErr))
	assert.EqualValues(t, 10, sizeErr.Limit)

	res, err := Sample(context.Background(), src, Options{N: 10, Start: 1, End: 50, MaxN: 10})
	require.NoError(t, err)
	assert.Len(t, res.Rows, 10)
}

func TestDrawWithDuplicatesBeyondRange(t *testing.T) {
	got := draw(200_000, 3, 1, 5, true)
	require.Len(t, got, 200_000)
	for _, v := range got {
		require.True(t, v >= 1 && v <= 5)
	}
}

func TestSampleEmptyIndexIsStale(t *testing.T) {
	_, err := Sample(context.Background(), &memSource{}, Options{N: 1, Start: 1, End: 1})
	require.ErrorIs(t, err, offsetindex.ErrIndexStale)
}

func TestSplitLineHonoursQuotes(t *testing.T) {
	assert.Equal(t, []string{"1", "a|b", "c"}, splitLine(`1|"a|b"|c`, '|'))
	assert.Equal(t, []string{"x", `say "hi`, "z"}, splitLine(`x;say "hi;z`, ';'))
	assert.Equal(t, []string{""}, splitLine("", ','))
}

func TestColumnNames(t *testing.T) {
	assert.Equal(t,
		[]string{"id", "column_2", "column_3", "column_4"},
		columnNames([]string{"id", " ", "id"}, 4),
	)
}

func TestRowJSONCarriesPosition(t *testing.T) {
	data, err := entity.Row{Position: 7, Values: map[string]string{"a": "1"}}.MarshalJSON()
	require.NoError(t, err)
	assert.JSONEq(t, `{"a":"1","_POS_ORIGINAL":7}`, string(data))
}

// pipeFixture writes a header plus 1000 lines, five of them blank.
func pipeFixture(t *testing.T) string {
	t.Helper()

	blanks := map[int]bool{10: true, 250: true, 500: true, 750: true, 999: true}
	var b strings.Builder
	b.WriteString("id|name|amount\n")
	for i := 1; i <= 1000; i++ {
		if blanks[i] {
			b.WriteString("\n")
			continue
		}
		fmt.Fprintf(&b, "%d|name-%d|%d\n", i, i, i*7)
	}

	path := filepath.Join(t.TempDir(), "big.csv")
	require.NoError(t, os.WriteFile(path, []byte(b.String()), 0o644))
	return path
}

func TestValidateCleanIndexSample(t *testing.T) {
	ctx := context.Background()
	path := pipeFixture(t)

	report, err := rows.Validate(ctx, path, rows.Options{})
	require.NoError(t, err)
	assert.EqualValues(t, 1000, report.TotalLines)
	assert.EqualValues(t, 5, report.EmptyLines)

	cleaned, err := rows.Clean(ctx, path, rows.CleanOptions{UseHeaders: true})
	require.NoError(t, err)
	assert.EqualValues(t, 996, cleaned.LinesWritten)
	assert.EqualValues(t, 995, cleaned.DataLines)

	idx, err := offsetindex.Build(ctx, cleaned.Output, offsetindex.BuildOptions{UseHeaders: true})
	require.NoError(t, err)
	assert.EqualValues(t, 995, idx.DataRows)
	assert.EqualValues(t, 996, idx.UsableLines)

	res, err := SampleFile(ctx, cleaned.Output, Options{N: 10, Seed: 42, Start: 1, End: 995, UseHeaders: true})
	require.NoError(t, err)
	require.Len(t, res.Rows, 10)
	assert.Equal(t, "|", string(res.Delimiter))
	assert.Equal(t, []string{"id", "name", "amount"}, res.Columns)

	seen := map[int64]bool{}
	for _, r := range res.Rows {
		assert.False(t, seen[r.Position])
		seen[r.Position] = true
		assert.GreaterOrEqual(t, r.Position, int64(1))
		assert.LessOrEqual(t, r.Position, int64(995))
		assert.Len(t, r.Values, 3)
		assert.NotEmpty(t, r.Values["name"])
	}

	again, err := SampleFile(ctx, cleaned.Output, Options{N: 10, Seed: 42, Start: 1, End: 995, UseHeaders: true})
	require.NoError(t, err)
	assert.Equal(t, res.Hash, again.Hash)
	assert.Equal(t, positions(res.Rows), positions(again.Rows))
}

func TestSampleFileRejectsRewrittenSource(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "short.csv")
	require.NoError(t, os.WriteFile(path, []byte("a|1\nbb|2\nccc|3\ndddd|4\n"), 0o644))

	_, err := offsetindex.Build(ctx, path, offsetindex.BuildOptions{})
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(path, []byte("xxxxxxx|1\nyyyyyy|2\nz|3\nw|4\n"), 0o644))

	res, err := SampleFile(ctx, path, Options{N: 4, Seed: 1, Start: 1, Ordered: true})
	require.ErrorIs(t, err, offsetindex.ErrIndexStale)
	assert.Empty(t, res.Rows)
}

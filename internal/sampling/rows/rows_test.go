package rows

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

// pipeFile builds a header plus 1000 lines of which the lines at blanks are empty.
func pipeFile(blanks map[int]string) string {
	var b strings.Builder
	b.WriteString("id|name|amount\n")
	for i := 1; i <= 1000; i++ {
		if v, ok := blanks[i]; ok {
			b.WriteString(v + "\n")
			continue
		}
		fmt.Fprintf(&b, "%d|name-%d|%d.50\n", i, i, i*3)
	}
	return b.String()
}

func TestValidateCountsBlankLines(t *testing.T) {
	path := writeFile(t, "data.csv", pipeFile(map[int]string{10: "", 200: "   ", 201: "||", 500: " | \t|", 999: "\r"}))

	report, err := Validate(context.Background(), path, Options{})
	require.NoError(t, err)

	assert.EqualValues(t, 1000, report.TotalLines)
	assert.EqualValues(t, 5, report.EmptyLines)
	assert.Equal(t, []int64{11, 201, 202, 501, 1000}, report.EmptyPositions)
	assert.Equal(t, "|", report.Delimiter)
	assert.True(t, report.HeaderDetected)
	assert.Equal(t, "id|name|amount", report.Header)
}

func TestValidateWithoutHeader(t *testing.T) {
	path := writeFile(t, "data.csv", "1,2\n\n3,4\n5,6")

	report, err := Validate(context.Background(), path, Options{})
	require.NoError(t, err)

	assert.False(t, report.HeaderDetected)
	assert.Equal(t, ",", report.Delimiter)
	assert.EqualValues(t, 4, report.TotalLines)
	assert.Equal(t, []int64{2}, report.EmptyPositions)
}

func TestValidateCapsPositions(t *testing.T) {
	path := writeFile(t, "data.csv", "a|b\n"+strings.Repeat("\n", 25)+"1|2\n")

	report, err := Validate(context.Background(), path, Options{Delimiter: '|'})
	require.NoError(t, err)

	assert.EqualValues(t, 25, report.EmptyLines)
	assert.EqualValues(t, 26, report.TotalLines)
	assert.Len(t, report.EmptyPositions, 10)
	assert.EqualValues(t, 2, report.EmptyPositions[0])
}

func TestValidateHeaderAfterLeadingBlankLines(t *testing.T) {
	path := writeFile(t, "data.csv", "\n\nname;city\nann;7\n")

	report, err := Validate(context.Background(), path, Options{})
	require.NoError(t, err)

	assert.True(t, report.HeaderDetected)
	assert.Equal(t, "name;city", report.Header)
	assert.EqualValues(t, 3, report.TotalLines)
	assert.EqualValues(t, 2, report.EmptyLines)
	assert.Equal(t, []int64{1, 2}, report.EmptyPositions)
}

func TestValidateEmptyFile(t *testing.T) {
	path := writeFile(t, "data.csv", "")

	report, err := Validate(context.Background(), path, Options{})
	require.NoError(t, err)
	assert.Zero(t, report.TotalLines)
	assert.Empty(t, report.EmptyPositions)
}

func TestValidateHonoursCancellation(t *testing.T) {
	path := writeFile(t, "data.csv", strings.Repeat("1|2\n", 3*checkEvery))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Validate(ctx, path, Options{})
	require.ErrorIs(t, err, context.Canceled)
}

func TestCleanRemovesBlankLines(t *testing.T) {
	path := writeFile(t, "data.csv", pipeFile(map[int]string{10: "", 200: "   ", 201: "||", 500: " | \t|", 999: "\r"}))

	result, err := Clean(context.Background(), path, CleanOptions{UseHeaders: true})
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(filepath.Dir(path), "data_clean.csv"), result.Output)
	assert.EqualValues(t, 996, result.LinesWritten)
	assert.EqualValues(t, 995, result.DataLines)
	assert.True(t, result.HeaderWritten)

	out, err := os.ReadFile(result.Output)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSuffix(string(out), "\n"), "\n")
	require.Len(t, lines, 996)
	assert.Equal(t, "id|name|amount", lines[0])
	assert.Equal(t, "1|name-1|3.50", lines[1])

	report, err := Validate(context.Background(), result.Output, Options{})
	require.NoError(t, err)
	assert.Zero(t, report.EmptyLines)
	assert.EqualValues(t, 995, report.TotalLines)
}

func TestCleanTrimsTrailingWhitespace(t *testing.T) {
	path := writeFile(t, "data.txt", "a|b  \r\n  c|d\t\n\n|e|\n")

	result, err := Clean(context.Background(), path, CleanOptions{})
	require.NoError(t, err)

	out, err := os.ReadFile(result.Output)
	require.NoError(t, err)
	assert.Equal(t, "a|b\n  c|d\n|e|\n", string(out))
	assert.EqualValues(t, 3, result.LinesWritten)
	assert.EqualValues(t, 3, result.DataLines)
	assert.False(t, result.HeaderWritten)
}

func TestCleanStreamsLongLines(t *testing.T) {
	long := strings.Repeat("x|", 3*readBufferSize/2) + "end"
	blankLong := strings.Repeat(" |", readBufferSize)
	path := writeFile(t, "wide.csv", long+strings.Repeat(" ", readBufferSize+10)+"\n"+blankLong+"\n1|2\n")

	result, err := Clean(context.Background(), path, CleanOptions{Delimiter: '|'})
	require.NoError(t, err)
	assert.EqualValues(t, 2, result.LinesWritten)

	out, err := os.ReadFile(result.Output)
	require.NoError(t, err)
	assert.Equal(t, long+"\n1|2\n", string(out))
}

func TestCleanedPath(t *testing.T) {
	assert.Equal(t, "/data/sales_clean.csv", CleanedPath("/data/sales.csv"))
	assert.Equal(t, "/data/raw_clean", CleanedPath("/data/raw"))
}

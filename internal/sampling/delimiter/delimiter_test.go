package delimiter

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDetect(t *testing.T) {
	tests := []struct {
		name string
		line string
		want rune
	}{
		{name: "pipe", line: "a|b|c", want: Pipe},
		{name: "comma", line: "a,b,c", want: Comma},
		{name: "semicolon", line: "a;b;c", want: Semicolon},
		{name: "tab", line: "a\tb\tc", want: Tab},
		{name: "empty defaults to pipe", line: "", want: Pipe},
		{name: "no separator defaults to pipe", line: "abc", want: Pipe},
		{name: "highest count wins", line: "a,b,c|d", want: Comma},
		{name: "tie prefers pipe", line: "a|b,c", want: Pipe},
		{name: "tie prefers semicolon over comma", line: "a;b,c", want: Semicolon},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, string(tt.want), string(Detect(tt.line)))
		})
	}
}

func TestDetectReaderSkipsBlankLinesAndBOM(t *testing.T) {
	got, err := DetectReader(strings.NewReader("\uFEFF\r\n   \nid;name;age\n1;a;2\n"))
	require.NoError(t, err)
	assert.Equal(t, Semicolon, got)
}

func TestFirstLine(t *testing.T) {
	line, err := FirstLine(strings.NewReader("\uFEFFid,name\r\n1,a\n"))
	require.NoError(t, err)
	assert.Equal(t, "id,name", line)

	line, err = FirstLine(strings.NewReader("\n\n"))
	require.NoError(t, err)
	assert.Empty(t, line)
}

func TestParse(t *testing.T) {
	for in, want := range map[string]rune{
		"pipe": Pipe, "COMMA": Comma, "semicolon": Semicolon, "tab": Tab,
		"|": Pipe, ",": Comma, ";": Semicolon, "\t": Tab, `\t`: Tab,
	} {
		got, err := Parse(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := Parse("colon")
	require.ErrorIs(t, err, ErrUnknown)
}

func TestName(t *testing.T) {
	assert.Equal(t, "pipe", Name(Pipe))
	assert.Equal(t, "tab", Name(Tab))
	assert.Equal(t, ":", Name(':'))
}

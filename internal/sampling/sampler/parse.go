package sampler

import (
	"crypto/sha256"
	"encoding/csv"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/shandysiswandi/gosampling/internal/sampling/entity"
)

// splitLine splits one line on sep, honouring quoted fields. Lines the CSV
// reader cannot make sense of fall back to a plain split.
func splitLine(line string, sep rune) []string {
	r := csv.NewReader(strings.NewReader(line))
	r.Comma = sep
	r.LazyQuotes = true
	r.FieldsPerRecord = -1

	fields, err := r.Read()
	if err != nil {
		return strings.Split(line, string(sep))
	}

	return fields
}

// columnNames returns header-derived names, replacing blank or repeated header
// cells with generated column_N names and widening to width columns.
func columnNames(header []string, width int) []string {
	names := make([]string, 0, max(len(header), width))
	seen := make(map[string]struct{}, cap(names))

	for i := 0; i < max(len(header), width); i++ {
		name := ""
		if i < len(header) {
			name = strings.TrimSpace(header[i])
		}
		if _, dup := seen[name]; name == "" || dup || name == entity.PositionColumn {
			name = fmt.Sprintf("column_%d", i+1)
		}
		seen[name] = struct{}{}
		names = append(names, name)
	}

	return names
}

func toRow(position int64, fields, names []string) entity.Row {
	values := make(map[string]string, len(fields))
	for i, v := range fields {
		values[names[i]] = v
	}

	return entity.Row{Position: position, Values: values}
}

// resultHash identifies a sample by its parameters and the head of its source.
func resultHash(n int64, seed uint64, start, end int64, duplicates bool, signature string) string {
	sum := sha256.Sum256(fmt.Appendf(nil, "%d|%d|%d|%d|%t|%s", n, seed, start, end, duplicates, signature))
	return hex.EncodeToString(sum[:])
}

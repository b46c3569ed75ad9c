package entity

import (
	"encoding/json"
	"time"
)

// PositionColumn is the key under which every sampled row carries its physical line number.
const PositionColumn = "_POS_ORIGINAL"

type SampleRequest struct {
	File            string
	N               int64
	Seed            uint64
	Start           int64
	End             int64
	UseHeaders      bool
	AllowDuplicates bool
	Ordered         bool
	Delimiter       string
}

// Row is one sampled line split into named columns.
type Row struct {
	Position int64
	Values   map[string]string
}

// MarshalJSON flattens the row into a single object with the position under PositionColumn.
func (r Row) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(r.Values)+1)
	for k, v := range r.Values {
		out[k] = v
	}
	out[PositionColumn] = r.Position

	return json.Marshal(out)
}

type SampleResult struct {
	RunID       string
	File        string
	Rows        []Row
	Columns     []string
	Delimiter   string
	Start       int64
	End         int64
	UsableLines int64
	DataRows    int64
	Hash        string
	Signature   string
}

// SampleRun is the history record of one indexed sample.
type SampleRun struct {
	RunID     string
	File      string
	Request   SampleRequest
	Hash      string
	RowCount  int
	CreatedAt time.Time
}

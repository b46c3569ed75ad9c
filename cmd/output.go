package cmd

import (
	"github.com/shandysiswandi/gosampling/internal/sampling/entity"
	"github.com/shandysiswandi/gosampling/internal/sampling/sampler"
)

type validationOutput struct {
	TotalLines     int64   `json:"total_lines"`
	EmptyLines     int64   `json:"empty_lines"`
	EmptyPositions []int64 `json:"empty_positions"`
	Delimiter      string  `json:"delimiter"`
	HeaderDetected bool    `json:"header_detected"`
	Header         string  `json:"header,omitempty"`
}

type cleanOutput struct {
	Source        string `json:"source"`
	Output        string `json:"output"`
	LinesWritten  int64  `json:"lines_written"`
	DataLines     int64  `json:"data_lines"`
	HeaderWritten bool   `json:"header_written"`
}

type indexOutput struct {
	Lines           int64  `json:"lines"`
	UsableLines     int64  `json:"usable_lines"`
	DataRows        int64  `json:"data_rows"`
	DataStartOffset int64  `json:"data_start_offset"`
	Reused          bool   `json:"reused"`
	IndexPath       string `json:"index_path"`
}

type sampleOutput struct {
	Rows        []entity.Row `json:"rows"`
	Columns     []string     `json:"columns"`
	Delimiter   string       `json:"delimiter"`
	Start       int64        `json:"start,omitempty"`
	End         int64        `json:"end,omitempty"`
	UsableLines int64        `json:"usable_lines"`
	DataRows    int64        `json:"data_rows"`
	Hash        string       `json:"hash"`
	Signature   string       `json:"signature"`
}

func toValidationOutput(r entity.ValidationReport) validationOutput {
	positions := r.EmptyPositions
	if positions == nil {
		positions = []int64{}
	}

	return validationOutput{
		TotalLines:     r.TotalLines,
		EmptyLines:     r.EmptyLines,
		EmptyPositions: positions,
		Delimiter:      r.Delimiter,
		HeaderDetected: r.HeaderDetected,
		Header:         r.Header,
	}
}

func toSampleOutput(res sampler.Result, headers bool) sampleOutput {
	rows := res.Rows
	if rows == nil {
		rows = []entity.Row{}
	}

	dataRows := res.UsableLines
	if headers && dataRows > 0 {
		dataRows--
	}

	return sampleOutput{
		Rows:        rows,
		Columns:     res.Columns,
		Delimiter:   string(res.Delimiter),
		Start:       res.Start,
		End:         res.End,
		UsableLines: res.UsableLines,
		DataRows:    dataRows,
		Hash:        res.Hash,
		Signature:   res.Signature,
	}
}

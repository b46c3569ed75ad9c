package inbound

import (
	"net/http"
	"time"

	"github.com/shandysiswandi/gosampling/internal/sampling/entity"
)

type UploadResponse struct {
	UploadID  string `json:"upload_id"`
	ChunkSize int64  `json:"chunk_size"`
}

func (UploadResponse) StatusCode() int {
	return http.StatusCreated
}

func (UploadResponse) Message() string {
	return "upload created"
}

type ChunkResponse struct {
	UploadID     string `json:"upload_id"`
	Index        int64  `json:"index"`
	BytesWritten int64  `json:"bytes_written"`
	Skipped      bool   `json:"skipped"`
	Completed    bool   `json:"completed"`
	File         string `json:"file,omitempty"`
}

func (r ChunkResponse) Message() string {
	if r.Completed {
		return "upload assembled"
	}
	return "chunk accepted"
}

type ValidationResponse struct {
	TotalLines     int64   `json:"total_lines"`
	EmptyLines     int64   `json:"empty_lines"`
	EmptyPositions []int64 `json:"empty_positions"`
	Delimiter      string  `json:"delimiter"`
	HeaderDetected bool    `json:"header_detected"`
	Header         string  `json:"header,omitempty"`
}

type IndexResponse struct {
	Lines           int64 `json:"lines"`
	UsableLines     int64 `json:"usable_lines"`
	DataRows        int64 `json:"data_rows"`
	DataStartOffset int64 `json:"data_start_offset"`
	Reused          bool  `json:"reused"`
}

type FileResponse struct {
	Name       string              `json:"name"`
	Size       int64               `json:"size"`
	ModTime    time.Time           `json:"mod_time"`
	Status     entity.FileStatus   `json:"status"`
	Delimiter  string              `json:"delimiter,omitempty"`
	HasHeaders bool                `json:"headers"`
	Error      string              `json:"error,omitempty"`
	CleanName  string              `json:"clean_name,omitempty"`
	Validation *ValidationResponse `json:"validation,omitempty"`
	Index      *IndexResponse      `json:"index,omitempty"`
}

type CleanResponse struct {
	Output        string `json:"output"`
	LinesWritten  int64  `json:"lines_written"`
	DataLines     int64  `json:"data_lines"`
	HeaderWritten bool   `json:"header_written"`
}

type IndexStartedResponse struct {
	File   string            `json:"file"`
	Status entity.FileStatus `json:"status"`
}

func (IndexStartedResponse) StatusCode() int {
	return http.StatusAccepted
}

func (IndexStartedResponse) Message() string {
	return "index build started"
}

type SampleRequest struct {
	N          int64  `json:"n"`
	Seed       uint64 `json:"seed"`
	Start      int64  `json:"start"`
	End        int64  `json:"end"`
	Headers    bool   `json:"headers"`
	Duplicates bool   `json:"duplicates"`
	Ordered    bool   `json:"ordered"`
	Delimiter  string `json:"delimiter"`
}

type SampleResponse struct {
	RunID       string       `json:"run_id"`
	File        string       `json:"file,omitempty"`
	Rows        []entity.Row `json:"rows"`
	Columns     []string     `json:"columns"`
	Delimiter   string       `json:"delimiter"`
	Start       int64        `json:"start"`
	End         int64        `json:"end"`
	UsableLines int64        `json:"usable_lines"`
	DataRows    int64        `json:"data_rows"`
	Hash        string       `json:"hash"`
	Signature   string       `json:"signature"`
}

type SampleRun struct {
	RunID      string    `json:"run_id"`
	N          int64     `json:"n"`
	Seed       uint64    `json:"seed"`
	Start      int64     `json:"start"`
	End        int64     `json:"end"`
	Headers    bool      `json:"headers"`
	Duplicates bool      `json:"duplicates"`
	Hash       string    `json:"hash"`
	RowCount   int       `json:"row_count"`
	CreatedAt  time.Time `json:"created_at"`
}

type RunsResponse struct {
	File     string      `json:"file"`
	Runs     []SampleRun `json:"runs"`
	page     int
	pageSize int
	total    int
}

func (r RunsResponse) Meta() map[string]any {
	return map[string]any{
		"page":      r.page,
		"page_size": r.pageSize,
		"total":     r.total,
	}
}

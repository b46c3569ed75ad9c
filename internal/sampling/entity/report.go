package entity

// MaxEmptyPositions caps how many blank-line positions a validation report lists.
const MaxEmptyPositions = 10

type ValidationReport struct {
	TotalLines     int64
	EmptyLines     int64
	EmptyPositions []int64
	Delimiter      string
	HeaderDetected bool
	Header         string
}

type CleanResult struct {
	Source        string
	Output        string
	LinesWritten  int64
	DataLines     int64
	HeaderWritten bool
}

type IndexResult struct {
	Lines           int64
	UsableLines     int64
	DataRows        int64
	DataStartOffset int64
	Reused          bool
	IndexPath       string
}

// ProgressSnapshot is the polled view of a running index build.
type ProgressSnapshot struct {
	Percent        float64 `json:"percent"`
	LinesProcessed int64   `json:"lines_processed"`
	TotalLines     int64   `json:"total_lines,omitempty"`
	BytesProcessed int64   `json:"bytes_processed"`
	TotalBytes     int64   `json:"total_bytes"`
	SourceFile     string  `json:"source_file"`
	Timestamp      int64   `json:"timestamp"`
	Completed      bool    `json:"completed"`
	Error          string  `json:"error,omitempty"`
}

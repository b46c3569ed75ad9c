package entity

import "time"

// FileMeta describes a file held in the data directory.
type FileMeta struct {
	Name       string
	Path       string
	Size       int64
	ModTime    time.Time
	Delimiter  string
	HasHeaders bool
	Status     FileStatus
	Err        string

	// Derived artifacts, filled in as the file moves through preparation.
	Validation *ValidationReport
	Index      *IndexResult
	CleanName  string
	UpdatedAt  time.Time
}

// UploadChunk is one sequential piece of an upload.
type UploadChunk struct {
	UploadID    string
	Index       int64
	TotalChunks int64
	IsLast      bool
	ChunkSize   int64
	FileName    string
	Payload     []byte
}

// ChunkAck reports how a chunk was applied.
type ChunkAck struct {
	UploadID     string
	Index        int64
	BytesWritten int64
	Skipped      bool
	Completed    bool
	FinalPath    string
}

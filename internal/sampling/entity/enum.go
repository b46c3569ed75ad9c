package entity

type FileStatus string

const (
	FileStatusUploading FileStatus = "UPLOADING"
	FileStatusAssembled FileStatus = "ASSEMBLED"
	FileStatusValidated FileStatus = "VALIDATED"
	FileStatusCleaned   FileStatus = "CLEANED"
	FileStatusIndexing  FileStatus = "INDEXING"
	FileStatusIndexed   FileStatus = "INDEXED"
	FileStatusFailed    FileStatus = "FAILED"
)

package entity

// FileAssembledEvent is published once an upload has been published under its final name.
type FileAssembledEvent struct {
	EventID  string
	UploadID string
	FileName string
	Path     string
	Size     int64
}

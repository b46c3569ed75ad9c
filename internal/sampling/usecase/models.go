package usecase

import (
	"github.com/shandysiswandi/gosampling/internal/sampling/entity"
)

type UploadResult struct {
	UploadID  string
	ChunkSize int64
}

type IndexStarted struct {
	File   string
	Status entity.FileStatus
}

type RunsResult struct {
	File     string
	Runs     []entity.SampleRun
	Page     int
	PageSize int
	Total    int
}

type ReservoirInput struct {
	N          int64
	Seed       uint64
	UseHeaders bool
	Delimiter  string
}

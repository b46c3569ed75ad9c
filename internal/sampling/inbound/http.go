package inbound

import (
	"context"
	"io"

	"github.com/shandysiswandi/gosampling/internal/pkg/pkgrouter"
	"github.com/shandysiswandi/gosampling/internal/sampling/entity"
	"github.com/shandysiswandi/gosampling/internal/sampling/usecase"
)

type uc interface {
	NewUpload(ctx context.Context) (usecase.UploadResult, error)
	ApplyChunk(ctx context.Context, c entity.UploadChunk) (entity.ChunkAck, error)
	File(ctx context.Context, name string) (entity.FileMeta, error)
	Validate(ctx context.Context, name, delim string) (entity.ValidationReport, error)
	Clean(ctx context.Context, name string, headers bool) (entity.CleanResult, error)
	StartIndex(ctx context.Context, name string, headers bool) (usecase.IndexStarted, error)
	Progress(ctx context.Context, name string) (entity.ProgressSnapshot, error)
	Sample(ctx context.Context, req entity.SampleRequest) (entity.SampleResult, error)
	Runs(ctx context.Context, name string, page, pageSize int) (usecase.RunsResult, error)
	Reservoir(ctx context.Context, r io.Reader, in usecase.ReservoirInput) (entity.SampleResult, error)
}

// RegisterHTTPEndpoint mounts the sampling API. maxChunk bounds how much of
// a chunk body is read.
func RegisterHTTPEndpoint(r *pkgrouter.Router, uc uc, maxChunk int64) {
	end := &HTTPEndpoint{uc: uc, maxChunk: maxChunk}

	r.POST("/uploads", end.CreateUpload)
	r.PUT("/uploads/:upload_id/chunks/:index", end.PutChunk) // ?total=&chunk_size=&last=&filename=

	r.GET("/files/:name", end.GetFile)
	r.GET("/files/:name/validation", end.Validation) // ?delimiter=
	r.POST("/files/:name/clean", end.Clean)          // ?headers=
	r.POST("/files/:name/index", end.StartIndex)     // ?headers=
	r.GET("/files/:name/progress", end.Progress)
	r.POST("/files/:name/samples", end.Sample)
	r.GET("/files/:name/samples", end.Runs) // ?page=&page_size=

	r.POST("/samples/reservoir", end.Reservoir) // ?n=&seed=&headers=&delimiter=
}

package usecase

import (
	"context"
	"time"

	"github.com/shandysiswandi/gosampling/internal/sampling/entity"
)

type Store interface {
	SaveFile(ctx context.Context, meta entity.FileMeta) error
	UpdateFile(ctx context.Context, name string, fn func(meta *entity.FileMeta)) error
	GetFile(ctx context.Context, name string) (entity.FileMeta, error)
	AppendRun(ctx context.Context, run entity.SampleRun) error
	ListRuns(ctx context.Context, name string, page, pageSize int) ([]entity.SampleRun, int, error)
}

type EventPublisher interface {
	Publish(ctx context.Context, event entity.FileAssembledEvent) error
}

type Assembler interface {
	Apply(ctx context.Context, c entity.UploadChunk) (entity.ChunkAck, error)
}

type Coordinator interface {
	Acquire(path string) (func(), error)
	Run(path string, fn func() error) error
	Begin(name string)
	Report(name string, s entity.ProgressSnapshot) error
	Complete(name string, s entity.ProgressSnapshot) error
	Fail(name string, s entity.ProgressSnapshot, err error) error
	Snapshot(name string) (entity.ProgressSnapshot, error)
}

type Runner interface {
	TryGo(ctx context.Context, f func(ctx context.Context) error) bool
}

type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time {
	return time.Now()
}

package usecase

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/shandysiswandi/gosampling/internal/pkg/pkgerror"
	"github.com/shandysiswandi/gosampling/internal/pkg/pkglog"
	"github.com/shandysiswandi/gosampling/internal/pkg/pkguid"
	"github.com/shandysiswandi/gosampling/internal/sampling/delimiter"
	"github.com/shandysiswandi/gosampling/internal/sampling/entity"
	"github.com/shandysiswandi/gosampling/internal/sampling/offsetindex"
)

type Config struct {
	DataDir          string
	DefaultChunkSize int64
	// Index carries batch, buffer and progress settings; headers and the
	// progress callback are set per build.
	Index           offsetindex.BuildOptions
	ReadConcurrency int
	MaxSampleSize   int64
}

type Dependency struct {
	Config    Config
	Store     Store
	Events    EventPublisher
	Assembler Assembler
	Progress  Coordinator
	Runner    Runner
	Clock     Clock
	ID        pkguid.StringID
	RunID     pkguid.NumberID
	RootCtx   context.Context
}

type Usecase struct {
	cfg       Config
	store     Store
	events    EventPublisher
	assembler Assembler
	progress  Coordinator
	runner    Runner
	clock     Clock
	id        pkguid.StringID
	runID     pkguid.NumberID
	rootCtx   context.Context
}

func New(dep Dependency) *Usecase {
	root := dep.RootCtx
	if root == nil {
		root = context.Background()
	}

	clock := dep.Clock
	if clock == nil {
		clock = realClock{}
	}

	return &Usecase{
		cfg:       dep.Config,
		store:     dep.Store,
		events:    dep.Events,
		assembler: dep.Assembler,
		progress:  dep.Progress,
		runner:    dep.Runner,
		clock:     clock,
		id:        dep.ID,
		runID:     dep.RunID,
		rootCtx:   root,
	}
}

// NewUpload issues an upload id for a chunked transfer.
func (u *Usecase) NewUpload(ctx context.Context) (UploadResult, error) {
	if u.id == nil {
		return UploadResult{}, pkgerror.NewServer(errors.New("missing id generator"))
	}

	return UploadResult{UploadID: u.id.Generate(), ChunkSize: u.cfg.DefaultChunkSize}, nil
}

// ApplyChunk writes one chunk. When it completes the upload, the file is
// registered and handed to preparation.
func (u *Usecase) ApplyChunk(ctx context.Context, c entity.UploadChunk) (entity.ChunkAck, error) {
	if u.assembler == nil {
		return entity.ChunkAck{}, pkgerror.NewServer(errors.New("missing dependency"))
	}
	if !pkguid.IsUUID(c.UploadID) {
		return entity.ChunkAck{}, pkgerror.NewInvalidInput(fmt.Errorf("upload_id %q is not a valid id", c.UploadID))
	}
	if c.ChunkSize == 0 {
		c.ChunkSize = u.cfg.DefaultChunkSize
	}

	ack, err := u.assembler.Apply(ctx, c)
	if err != nil {
		slog.WarnContext(ctx, "chunk rejected", "upload_id", c.UploadID, "index", c.Index, "error", err)
		return ack, mapErr(err)
	}
	if !ack.Completed {
		return ack, nil
	}

	meta, err := u.register(ctx, filepath.Base(ack.FinalPath), entity.FileStatusAssembled)
	if err != nil {
		return ack, normalizeErr(err)
	}

	if u.events != nil {
		event := entity.FileAssembledEvent{
			EventID:  u.id.Generate(),
			UploadID: c.UploadID,
			FileName: meta.Name,
			Path:     meta.Path,
			Size:     meta.Size,
		}
		if pubErr := u.events.Publish(ctx, event); pubErr != nil {
			slog.WarnContext(ctx, "failed to publish event", "upload_id", c.UploadID, "event_id", event.EventID, "error", pubErr)
		}
	}

	return ack, nil
}

// File returns the metadata of a file in the data directory.
func (u *Usecase) File(ctx context.Context, name string) (entity.FileMeta, error) {
	meta, err := u.lookup(ctx, name)
	if err != nil {
		return entity.FileMeta{}, mapErr(err)
	}

	return meta, nil
}

// register records the file at name as it is on disk now.
func (u *Usecase) register(ctx context.Context, name string, status entity.FileStatus) (entity.FileMeta, error) {
	path := filepath.Join(u.cfg.DataDir, name)
	info, err := os.Stat(path)
	if err != nil {
		return entity.FileMeta{}, err
	}

	meta := entity.FileMeta{
		Name:      name,
		Path:      path,
		Size:      info.Size(),
		ModTime:   info.ModTime(),
		Status:    status,
		UpdatedAt: u.clock.Now(),
	}
	if err := u.store.SaveFile(ctx, meta); err != nil {
		return entity.FileMeta{}, err
	}

	return meta, nil
}

// lookup returns stored metadata, registering files that reached the data
// directory some other way (the CLI or an earlier process).
func (u *Usecase) lookup(ctx context.Context, name string) (entity.FileMeta, error) {
	if err := checkName(name); err != nil {
		return entity.FileMeta{}, err
	}

	meta, err := u.store.GetFile(ctx, name)
	if err == nil {
		return meta, nil
	}
	if !errors.Is(err, pkgerror.ErrNotFound) {
		return entity.FileMeta{}, err
	}

	return u.register(ctx, name, entity.FileStatusAssembled)
}

func (u *Usecase) update(ctx context.Context, name string, fn func(meta *entity.FileMeta)) {
	err := u.store.UpdateFile(ctx, name, func(meta *entity.FileMeta) {
		fn(meta)
		meta.UpdatedAt = u.clock.Now()
	})
	if err != nil {
		slog.WarnContext(ctx, "failed to update file metadata", "file", name, "error", err)
	}
}

func (u *Usecase) detach(ctx context.Context) context.Context {
	return pkglog.Detach(u.rootCtx, ctx)
}

func checkName(name string) error {
	if strings.TrimSpace(name) == "" {
		return pkgerror.NewInvalidInput(errors.New("file name is required"))
	}
	if name != filepath.Base(name) || name == "." || name == ".." {
		return pkgerror.NewInvalidInput(fmt.Errorf("file name %q must not contain a path", name))
	}

	return nil
}

func parseDelimiter(raw string) (rune, error) {
	if raw == "" {
		return 0, nil
	}

	sep, err := delimiter.Parse(raw)
	if err != nil {
		return 0, pkgerror.NewInvalidInput(err)
	}

	return sep, nil
}

func normalizeErr(err error) error {
	var perr *pkgerror.Error
	if errors.As(err, &perr) {
		return perr
	}
	if errors.Is(err, fs.ErrNotExist) {
		return pkgerror.NewNotFound("file not found")
	}
	return pkgerror.NewServer(err)
}

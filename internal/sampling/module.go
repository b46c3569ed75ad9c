package sampling

import (
	"context"
	"errors"
	"fmt"

	"github.com/shandysiswandi/gosampling/internal/pkg/pkgconfig"
	"github.com/shandysiswandi/gosampling/internal/pkg/pkgrouter"
	"github.com/shandysiswandi/gosampling/internal/pkg/pkgroutine"
	"github.com/shandysiswandi/gosampling/internal/pkg/pkguid"
	"github.com/shandysiswandi/gosampling/internal/sampling/chunk"
	"github.com/shandysiswandi/gosampling/internal/sampling/event"
	"github.com/shandysiswandi/gosampling/internal/sampling/inbound"
	"github.com/shandysiswandi/gosampling/internal/sampling/offsetindex"
	"github.com/shandysiswandi/gosampling/internal/sampling/progress"
	"github.com/shandysiswandi/gosampling/internal/sampling/store"
	"github.com/shandysiswandi/gosampling/internal/sampling/usecase"
)

type Dependency struct {
	Config    pkgconfig.Config
	Goroutine *pkgroutine.Manager
	Router    *pkgrouter.Router
	Context   context.Context
	ID        pkguid.StringID
	RunID     pkguid.NumberID
}

// Components holds the long-lived parts of the module. The CLI uses it
// without a router.
type Components struct {
	Usecase   *usecase.Usecase
	Assembler *chunk.Assembler
	Progress  *progress.Coordinator
	Bus       *event.Bus
}

// Build wires the usecase and its collaborators from configuration.
func Build(dep Dependency) (*Components, error) {
	cfg := dep.Config

	asm, err := chunk.New(chunk.Config{
		Dir:          cfg.GetString("storage.data_dir"),
		MaxChunkSize: cfg.GetInt("upload.max_chunk_size"),
		SessionTTL:   cfg.GetDuration("upload.session_ttl"),
	})
	if err != nil {
		return nil, err
	}

	coord, err := progress.New(cfg.GetString("storage.progress_dir"), cfg.GetDuration("index.progress_grace"))
	if err != nil {
		return nil, err
	}

	if dep.ID == nil {
		dep.ID = pkguid.NewUUID()
	}
	if dep.RunID == nil {
		sf, err := pkguid.NewSnowflake()
		if err != nil {
			return nil, fmt.Errorf("init run id generator: %w", err)
		}
		dep.RunID = sf
	}

	bus := event.NewBus(512)

	var runner usecase.Runner
	if dep.Goroutine != nil {
		runner = dep.Goroutine
	}

	uc := usecase.New(usecase.Dependency{
		Config: usecase.Config{
			DataDir:          asm.Dir(),
			DefaultChunkSize: cfg.GetInt("upload.chunk_size"),
			Index: offsetindex.BuildOptions{
				BatchSize:     int(cfg.GetInt("index.batch_size")),
				ReadBuffer:    int(cfg.GetInt("index.read_buffer")),
				ProgressEvery: cfg.GetInt("index.progress_every_bytes"),
			},
			ReadConcurrency: int(cfg.GetInt("sampler.read_concurrency")),
			MaxSampleSize:   cfg.GetInt("sampler.max_n"),
		},
		Store:     store.NewInMemoryStore(),
		Events:    bus,
		Assembler: asm,
		Progress:  coord,
		Runner:    runner,
		ID:        dep.ID,
		RunID:     dep.RunID,
		RootCtx:   dep.Context,
	})

	return &Components{Usecase: uc, Assembler: asm, Progress: coord, Bus: bus}, nil
}

func New(dep Dependency) (func(context.Context) error, error) {
	if dep.Router == nil || dep.Goroutine == nil {
		return nil, errors.New("sampling: router and goroutine manager are required")
	}

	c, err := Build(dep)
	if err != nil {
		return nil, err
	}
	c.Assembler.Start()

	var handler event.Handler
	if dep.Config.GetBool("prepare.auto") {
		handler = event.HandlerFunc(c.Usecase.Prepare)
	}
	consumer := event.NewPreparationConsumer(c.Bus, handler, event.ConsumerConfig{
		Workers:     int(dep.Config.GetInt("prepare.workers")),
		MaxRetries:  int(dep.Config.GetInt("prepare.max_retries")),
		BaseBackoff: dep.Config.GetDuration("prepare.base_backoff"),
	})
	consumer.Start()

	inbound.RegisterHTTPEndpoint(dep.Router, c.Usecase, dep.Config.GetInt("upload.max_chunk_size"))

	return func(ctx context.Context) error {
		return errors.Join(
			consumer.Stop(ctx),
			c.Assembler.Stop(ctx),
			c.Progress.Close(),
		)
	}, nil
}

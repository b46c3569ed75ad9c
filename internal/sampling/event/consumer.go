package event

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/shandysiswandi/gosampling/internal/pkg/pkgerror"
	"github.com/shandysiswandi/gosampling/internal/pkg/pkglog"
	"github.com/shandysiswandi/gosampling/internal/sampling/entity"
)

type Handler interface {
	Handle(ctx context.Context, event entity.FileAssembledEvent) error
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, event entity.FileAssembledEvent) error

func (f HandlerFunc) Handle(ctx context.Context, event entity.FileAssembledEvent) error {
	return f(ctx, event)
}

type ConsumerConfig struct {
	Workers     int
	MaxRetries  int
	BaseBackoff time.Duration
}

// PreparationConsumer hands assembled files to a Handler, retrying failed
// attempts with exponential backoff. Events are handled at most once per id.
type PreparationConsumer struct {
	bus         *Bus
	handler     Handler
	workers     int
	maxRetries  int
	baseBackoff time.Duration
	seen        sync.Map
	wg          sync.WaitGroup
}

func NewPreparationConsumer(bus *Bus, handler Handler, cfg ConsumerConfig) *PreparationConsumer {
	workers := cfg.Workers
	if workers < 1 {
		workers = 2
	}

	maxRetries := cfg.MaxRetries
	if maxRetries < 0 {
		maxRetries = 0
	}

	baseBackoff := cfg.BaseBackoff
	if baseBackoff <= 0 {
		baseBackoff = 100 * time.Millisecond
	}

	return &PreparationConsumer{
		bus:         bus,
		handler:     handler,
		workers:     workers,
		maxRetries:  maxRetries,
		baseBackoff: baseBackoff,
	}
}

func (c *PreparationConsumer) Start() {
	for i := 0; i < c.workers; i++ {
		c.wg.Add(1)
		go c.worker()
	}
}

// Stop closes the bus and waits for queued events to drain or ctx to end.
func (c *PreparationConsumer) Stop(ctx context.Context) error {
	if c.bus != nil {
		c.bus.Close()
	}

	done := make(chan struct{})
	go func() {
		c.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		slog.WarnContext(ctx, "preparation consumer stopped before draining", "pending", c.bus.Pending())
		return ctx.Err()
	}
}

func (c *PreparationConsumer) worker() {
	defer c.wg.Done()

	for event := range c.bus.Subscribe() {
		c.processEvent(event)
	}
}

func (c *PreparationConsumer) processEvent(event entity.FileAssembledEvent) {
	if c.handler == nil {
		return
	}

	if event.EventID != "" {
		if _, loaded := c.seen.LoadOrStore(event.EventID, struct{}{}); loaded {
			slog.Info("skip duplicate file assembled event", "event_id", event.EventID, "file", event.FileName)
			return
		}
	}

	ctx := pkglog.SetCorrelationID(context.Background(), event.EventID)

	backoff := c.baseBackoff
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		err := c.handler.Handle(ctx, event)
		if err == nil {
			return
		}

		if attempt == c.maxRetries || !retryable(err) {
			slog.ErrorContext(ctx, "failed to prepare file", "event_id", event.EventID, "file", event.FileName, "attempts", attempt+1, "error", err)
			return
		}

		slog.WarnContext(ctx, "retrying file preparation", "event_id", event.EventID, "file", event.FileName, "backoff", backoff, "error", err)
		if !sleepBackoff(backoff) {
			return
		}
		backoff *= 2
	}
}

// retryable keeps validation and not-found failures from being retried; they
// will not change on their own.
func retryable(err error) bool {
	var perr *pkgerror.Error
	if !errors.As(err, &perr) {
		return true
	}

	switch perr.Type() {
	case pkgerror.TypeValidation:
		return false
	default:
		return perr.Code() != pkgerror.CodeNotFound
	}
}

func sleepBackoff(d time.Duration) bool {
	if d <= 0 {
		return false
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	<-timer.C
	return true
}

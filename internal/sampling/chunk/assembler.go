// Package chunk rebuilds one file from sequentially numbered byte chunks.
//
// Every chunk names its index and the chunk size the sender uses, so its
// starting offset is index*chunkSize. The partial file on disk is the only
// source of truth for what has been written: a chunk is appended only when
// the partial file reaches its starting offset, bytes already on disk are
// never rewritten, and the last chunk publishes the partial file under its
// final name without replacing an existing file.
package chunk

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jellydator/ttlcache/v3"

	"github.com/shandysiswandi/gosampling/internal/pkg/pkgfile"
	"github.com/shandysiswandi/gosampling/internal/sampling/entity"
)

const partialExt = ".part"

var (
	// ErrOutOfOrder means the chunk starts beyond the end of the partial file; resend after its predecessor.
	ErrOutOfOrder = errors.New("chunk arrived before its predecessor")
	// ErrAlreadyAssembled means the target file has already been published.
	ErrAlreadyAssembled = errors.New("file already assembled")
	// ErrInvalidChunk wraps every metadata violation.
	ErrInvalidChunk = errors.New("invalid chunk")
)

type Config struct {
	Dir          string
	MaxChunkSize int64
	SessionTTL   time.Duration
}

type session struct {
	mu        sync.Mutex
	fileName  string
	chunkSize int64
	total     int64
	partial   string
	// expired is set once the partial file was discarded; later chunks need a new session.
	expired bool
}

type Assembler struct {
	dir      string
	maxChunk int64
	ttl      time.Duration

	mu       sync.Mutex
	sessions *ttlcache.Cache[string, *session]

	started  atomic.Bool
	stopOnce sync.Once
	done     chan struct{}
}

func New(cfg Config) (*Assembler, error) {
	if cfg.Dir == "" {
		return nil, errors.New("chunk: data dir is required")
	}
	if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("chunk: create data dir: %w", err)
	}

	ttl := cfg.SessionTTL
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}

	a := &Assembler{
		dir:      cfg.Dir,
		maxChunk: cfg.MaxChunkSize,
		ttl:      ttl,
		done:     make(chan struct{}),
		sessions: ttlcache.New(
			ttlcache.WithTTL[string, *session](ttl),
		),
	}

	a.sessions.OnEviction(func(_ context.Context, reason ttlcache.EvictionReason, item *ttlcache.Item[string, *session]) {
		if reason != ttlcache.EvictionReasonExpired {
			return
		}
		// The cache holds its own lock while evicting.
		go a.discard(item.Key(), item.Value())
	})

	return a, nil
}

// Start runs the session expiry loop until Stop is called. Partial files left
// by an earlier process are removed once they sit idle for a session TTL.
func (a *Assembler) Start() {
	if !a.started.CompareAndSwap(false, true) {
		return
	}
	go a.sessions.Start()
	go a.sweepLoop()
}

// Stop ends the expiry loop. Partial files of live sessions stay on disk.
func (a *Assembler) Stop(context.Context) error {
	a.stopOnce.Do(func() {
		close(a.done)
		if a.started.Load() {
			a.sessions.Stop()
		}
	})
	return nil
}

// Dir returns the directory assembled files are published into.
func (a *Assembler) Dir() string {
	return a.dir
}

// Apply writes c into its upload's partial file and publishes the file when c is the last chunk.
func (a *Assembler) Apply(ctx context.Context, c entity.UploadChunk) (entity.ChunkAck, error) {
	name, err := a.check(c)
	if err != nil {
		return entity.ChunkAck{}, err
	}

	s, err := a.lockSession(c, name)
	if err != nil {
		return entity.ChunkAck{}, err
	}
	defer s.mu.Unlock()

	final := filepath.Join(a.dir, name)
	ack := entity.ChunkAck{UploadID: c.UploadID, Index: c.Index}

	if done, err := a.assembled(s.partial, final); err != nil {
		return ack, err
	} else if done {
		return ack, fmt.Errorf("%w: %s", ErrAlreadyAssembled, name)
	}

	if c.Index == 0 {
		ack.BytesWritten, err = restart(s.partial, c.Payload)
	} else {
		ack.BytesWritten, ack.Skipped, err = appendChunk(s.partial, c)
	}
	if err != nil {
		return ack, err
	}

	if !c.IsLast {
		slog.DebugContext(ctx, "chunk applied", "upload_id", c.UploadID, "index", c.Index, "bytes", ack.BytesWritten, "skipped", ack.Skipped)
		return ack, nil
	}

	if err := pkgfile.PublishNoClobber(s.partial, final); err != nil {
		if errors.Is(err, pkgfile.ErrExists) {
			return ack, fmt.Errorf("%w: %s", ErrAlreadyAssembled, name)
		}
		return ack, fmt.Errorf("publish %s: %w", name, err)
	}
	a.sessions.Delete(c.UploadID)

	slog.InfoContext(ctx, "upload assembled", "upload_id", c.UploadID, "file", name, "chunks", c.Index+1)

	ack.Completed = true
	ack.FinalPath = final
	return ack, nil
}

func (a *Assembler) check(c entity.UploadChunk) (string, error) {
	if c.UploadID == "" || c.UploadID != filepath.Base(c.UploadID) || strings.HasPrefix(c.UploadID, ".") {
		return "", fmt.Errorf("%w: bad upload id %q", ErrInvalidChunk, c.UploadID)
	}
	if c.Index < 0 {
		return "", fmt.Errorf("%w: negative index %d", ErrInvalidChunk, c.Index)
	}
	if c.ChunkSize <= 0 {
		return "", fmt.Errorf("%w: chunk size must be positive, got %d", ErrInvalidChunk, c.ChunkSize)
	}
	if a.maxChunk > 0 && c.ChunkSize > a.maxChunk {
		return "", fmt.Errorf("%w: chunk size %d exceeds limit %d", ErrInvalidChunk, c.ChunkSize, a.maxChunk)
	}

	size := int64(len(c.Payload))
	if size > c.ChunkSize {
		return "", fmt.Errorf("%w: payload of %d bytes exceeds chunk size %d", ErrInvalidChunk, size, c.ChunkSize)
	}
	if !c.IsLast && size != c.ChunkSize {
		return "", fmt.Errorf("%w: chunk %d carries %d bytes, want %d", ErrInvalidChunk, c.Index, size, c.ChunkSize)
	}
	if c.TotalChunks > 0 {
		if c.Index >= c.TotalChunks {
			return "", fmt.Errorf("%w: index %d outside %d chunks", ErrInvalidChunk, c.Index, c.TotalChunks)
		}
		if c.IsLast != (c.Index == c.TotalChunks-1) {
			return "", fmt.Errorf("%w: last flag disagrees with total %d at index %d", ErrInvalidChunk, c.TotalChunks, c.Index)
		}
	}

	name := filepath.Base(strings.TrimSpace(c.FileName))
	if name == "." || name == ".." || name == string(filepath.Separator) || strings.HasSuffix(name, partialExt) {
		return "", fmt.Errorf("%w: bad file name %q", ErrInvalidChunk, c.FileName)
	}

	return name, nil
}

func (a *Assembler) session(c entity.UploadChunk, name string) (*session, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if item := a.sessions.Get(c.UploadID); item != nil {
		s := item.Value()
		switch {
		case s.chunkSize != c.ChunkSize:
			return nil, fmt.Errorf("%w: chunk size changed from %d to %d", ErrInvalidChunk, s.chunkSize, c.ChunkSize)
		case s.fileName != name:
			return nil, fmt.Errorf("%w: file name changed from %q to %q", ErrInvalidChunk, s.fileName, name)
		case s.total > 0 && c.TotalChunks > 0 && s.total != c.TotalChunks:
			return nil, fmt.Errorf("%w: total chunks changed from %d to %d", ErrInvalidChunk, s.total, c.TotalChunks)
		}
		return s, nil
	}

	s := &session{
		fileName:  name,
		chunkSize: c.ChunkSize,
		total:     c.TotalChunks,
		partial:   filepath.Join(a.dir, c.UploadID+partialExt),
	}
	a.sessions.Set(c.UploadID, s, ttlcache.DefaultTTL)

	return s, nil
}

// lockSession returns the upload's session with its lock held. A session that
// expired while the caller waited for it is replaced by a fresh one.
func (a *Assembler) lockSession(c entity.UploadChunk, name string) (*session, error) {
	for {
		s, err := a.session(c, name)
		if err != nil {
			return nil, err
		}
		s.mu.Lock()
		if !s.expired {
			return s, nil
		}
		s.mu.Unlock()
	}
}

// assembled reports whether an earlier run already published final and consumed the partial file.
func (a *Assembler) assembled(partial, final string) (bool, error) {
	if _, err := os.Stat(partial); err == nil {
		return false, nil
	} else if !errors.Is(err, fs.ErrNotExist) {
		return false, fmt.Errorf("stat partial: %w", err)
	}

	if _, err := os.Stat(final); err == nil {
		return true, nil
	} else if !errors.Is(err, fs.ErrNotExist) {
		return false, fmt.Errorf("stat final: %w", err)
	}

	return false, nil
}

// discard removes the partial file of an expired session. The file is kept
// when a newer session for the same upload ID has been opened since, as that
// session writes to the same path.
func (a *Assembler) discard(uploadID string, s *session) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a.mu.Lock()
	defer a.mu.Unlock()

	s.expired = true
	if a.live(uploadID) {
		slog.Debug("expired upload reopened, keeping partial file", "upload_id", uploadID)
		return
	}

	if err := os.Remove(s.partial); err != nil && !errors.Is(err, fs.ErrNotExist) {
		slog.Warn("failed to remove abandoned partial upload", "upload_id", uploadID, "error", err)
		return
	}
	slog.Info("abandoned upload expired", "upload_id", uploadID, "file", s.fileName)
}

// live reports whether uploadID has a session without extending its TTL.
// Callers hold a.mu.
func (a *Assembler) live(uploadID string) bool {
	return a.sessions.Get(uploadID, ttlcache.WithDisableTouchOnHit[string, *session]()) != nil
}

func (a *Assembler) sweepLoop() {
	a.sweep(time.Now())

	ticker := time.NewTicker(a.ttl)
	defer ticker.Stop()
	for {
		select {
		case <-a.done:
			return
		case now := <-ticker.C:
			a.sweep(now)
		}
	}
}

// sweep removes partial files that no session owns and that have not been
// written to for a session TTL.
func (a *Assembler) sweep(now time.Time) {
	matches, err := filepath.Glob(filepath.Join(a.dir, "*"+partialExt))
	if err != nil {
		slog.Warn("failed to list partial uploads", "error", err)
		return
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	for _, partial := range matches {
		uploadID := strings.TrimSuffix(filepath.Base(partial), partialExt)
		if a.live(uploadID) {
			continue
		}
		info, err := os.Stat(partial)
		if err != nil || now.Sub(info.ModTime()) < a.ttl {
			continue
		}
		if err := os.Remove(partial); err != nil && !errors.Is(err, fs.ErrNotExist) {
			slog.Warn("failed to remove orphaned partial upload", "upload_id", uploadID, "error", err)
			continue
		}
		slog.Info("orphaned partial upload removed", "upload_id", uploadID, "idle", now.Sub(info.ModTime()).Round(time.Second))
	}
}

func restart(partial string, payload []byte) (int64, error) {
	f, err := os.OpenFile(partial, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return 0, fmt.Errorf("open partial: %w", err)
	}

	return writeSync(f, payload)
}

func appendChunk(partial string, c entity.UploadChunk) (int64, bool, error) {
	var current int64
	if info, err := os.Stat(partial); err == nil {
		current = info.Size()
	} else if !errors.Is(err, fs.ErrNotExist) {
		return 0, false, fmt.Errorf("stat partial: %w", err)
	}

	expected := c.Index * c.ChunkSize
	end := expected + int64(len(c.Payload))

	switch {
	case current >= end:
		return 0, true, nil
	case current < expected:
		return 0, false, fmt.Errorf("%w: chunk %d starts at %d, partial file holds %d bytes", ErrOutOfOrder, c.Index, expected, current)
	}

	f, err := os.OpenFile(partial, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return 0, false, fmt.Errorf("open partial: %w", err)
	}

	n, err := writeSync(f, c.Payload[current-expected:])
	return n, false, err
}

func writeSync(f *os.File, p []byte) (int64, error) {
	n, err := f.Write(p)
	if err != nil {
		_ = f.Close()
		return int64(n), fmt.Errorf("write partial: %w", err)
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		return int64(n), fmt.Errorf("sync partial: %w", err)
	}

	return int64(n), f.Close()
}

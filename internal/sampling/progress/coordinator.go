// Package progress serializes index builds per file and publishes their
// progress as small JSON snapshots that pollers can read.
package progress

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/shandysiswandi/gosampling/internal/pkg/pkgfile"
	"github.com/shandysiswandi/gosampling/internal/sampling/entity"
)

const snapshotExt = ".progress.json"

var (
	// ErrBuildInProgress is returned by Acquire while another build holds the file.
	ErrBuildInProgress = errors.New("index build already in progress")
	// ErrNoSnapshot is returned when no build of the file has reported progress.
	ErrNoSnapshot = errors.New("no progress recorded")
)

type Coordinator struct {
	dir   string
	grace time.Duration
	now   func() time.Time

	mu     sync.Mutex
	held   map[string]struct{}
	gens   map[string]uint64
	timers map[string]*time.Timer
}

func New(dir string, grace time.Duration) (*Coordinator, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("progress: create dir: %w", err)
	}

	return &Coordinator{
		dir:    dir,
		grace:  grace,
		now:    time.Now,
		held:   make(map[string]struct{}),
		gens:   make(map[string]uint64),
		timers: make(map[string]*time.Timer),
	}, nil
}

// Acquire takes the build lock of path without waiting. The returned release
// function may be called any number of times.
func (c *Coordinator) Acquire(path string) (func(), error) {
	key := canonical(path)

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.held[key]; ok {
		return nil, fmt.Errorf("%w: %s", ErrBuildInProgress, filepath.Base(path))
	}
	c.held[key] = struct{}{}

	var once sync.Once
	return func() {
		once.Do(func() {
			c.mu.Lock()
			delete(c.held, key)
			c.mu.Unlock()
		})
	}, nil
}

// Run holds the build lock of path while fn runs, releasing it however fn returns.
func (c *Coordinator) Run(path string, fn func() error) error {
	release, err := c.Acquire(path)
	if err != nil {
		return err
	}
	defer release()

	return fn()
}

// Held reports whether a build currently holds path.
func (c *Coordinator) Held(path string) bool {
	key := canonical(path)

	c.mu.Lock()
	defer c.mu.Unlock()

	_, ok := c.held[key]
	return ok
}

// Begin starts a new generation of snapshots for name, so a pending removal
// scheduled by an earlier build no longer applies.
func (c *Coordinator) Begin(name string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.gens[name]++
	if t, ok := c.timers[name]; ok {
		t.Stop()
		delete(c.timers, name)
	}
}

// Report replaces the snapshot of name.
func (c *Coordinator) Report(name string, s entity.ProgressSnapshot) error {
	s.SourceFile = name
	if s.Timestamp == 0 {
		s.Timestamp = c.now().Unix()
	}

	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}

	return pkgfile.WriteAtomic(c.path(name), data)
}

// Complete writes the final snapshot and removes it once the grace period passes.
func (c *Coordinator) Complete(name string, s entity.ProgressSnapshot) error {
	s.Completed = true
	if s.Error == "" {
		s.Percent = 100
	}
	if err := c.Report(name, s); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	gen := c.gens[name]
	if t, ok := c.timers[name]; ok {
		t.Stop()
	}
	c.timers[name] = time.AfterFunc(c.grace, func() { c.expire(name, gen) })

	return nil
}

// Fail records err as the outcome of the build of name.
func (c *Coordinator) Fail(name string, s entity.ProgressSnapshot, err error) error {
	s.Error = err.Error()
	return c.Complete(name, s)
}

func (c *Coordinator) expire(name string, gen uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.gens[name] != gen {
		return
	}
	delete(c.timers, name)

	if err := os.Remove(c.path(name)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		slog.Warn("failed to remove progress snapshot", "file", name, "error", err)
	}
}

// Snapshot returns the last snapshot written for name.
func (c *Coordinator) Snapshot(name string) (entity.ProgressSnapshot, error) {
	data, err := os.ReadFile(c.path(name))
	if errors.Is(err, fs.ErrNotExist) {
		return entity.ProgressSnapshot{}, fmt.Errorf("%w: %s", ErrNoSnapshot, name)
	}
	if err != nil {
		return entity.ProgressSnapshot{}, fmt.Errorf("read snapshot: %w", err)
	}

	var s entity.ProgressSnapshot
	if err := json.Unmarshal(data, &s); err != nil {
		return entity.ProgressSnapshot{}, fmt.Errorf("decode snapshot: %w", err)
	}

	return s, nil
}

// Close cancels pending snapshot removals.
func (c *Coordinator) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	for name, t := range c.timers {
		t.Stop()
		delete(c.timers, name)
	}

	return nil
}

func (c *Coordinator) path(name string) string {
	return filepath.Join(c.dir, filepath.Base(name)+snapshotExt)
}

func canonical(path string) string {
	abs, err := filepath.Abs(path)
	if err != nil {
		return filepath.Clean(path)
	}
	if resolved, err := filepath.EvalSymlinks(abs); err == nil {
		return resolved
	}
	return abs
}

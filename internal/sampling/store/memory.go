package store

import (
	"context"
	"sync"

	"github.com/shandysiswandi/gosampling/internal/pkg/pkgerror"
	"github.com/shandysiswandi/gosampling/internal/sampling/entity"
)

type InMemoryStore struct {
	mu    sync.RWMutex
	files map[string]*fileRecord
}

type fileRecord struct {
	mu   sync.RWMutex
	meta entity.FileMeta
	runs []entity.SampleRun
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		files: make(map[string]*fileRecord),
	}
}

// SaveFile registers meta, replacing the metadata of a file with the same
// name. The run history of a replaced file is kept.
func (s *InMemoryStore) SaveFile(ctx context.Context, meta entity.FileMeta) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if rec, exists := s.files[meta.Name]; exists {
		rec.mu.Lock()
		rec.meta = meta
		rec.mu.Unlock()
		return nil
	}

	s.files[meta.Name] = &fileRecord{meta: meta}

	return nil
}

func (s *InMemoryStore) UpdateFile(ctx context.Context, name string, fn func(meta *entity.FileMeta)) error {
	rec, err := s.get(name)
	if err != nil {
		return err
	}

	rec.mu.Lock()
	defer rec.mu.Unlock()

	fn(&rec.meta)

	return nil
}

func (s *InMemoryStore) GetFile(ctx context.Context, name string) (entity.FileMeta, error) {
	rec, err := s.get(name)
	if err != nil {
		return entity.FileMeta{}, err
	}

	rec.mu.RLock()
	defer rec.mu.RUnlock()

	return rec.meta, nil
}

func (s *InMemoryStore) AppendRun(ctx context.Context, run entity.SampleRun) error {
	rec, err := s.get(run.File)
	if err != nil {
		return err
	}

	rec.mu.Lock()
	defer rec.mu.Unlock()

	rec.runs = append(rec.runs, run)

	return nil
}

// ListRuns pages through the runs of a file, newest first.
func (s *InMemoryStore) ListRuns(ctx context.Context, name string, page, pageSize int) ([]entity.SampleRun, int, error) {
	rec, err := s.get(name)
	if err != nil {
		return nil, 0, err
	}

	rec.mu.RLock()
	defer rec.mu.RUnlock()

	total := len(rec.runs)
	start := (page - 1) * pageSize
	items := make([]entity.SampleRun, 0, pageSize)

	for i := total - 1 - start; i >= 0 && len(items) < pageSize; i-- {
		items = append(items, rec.runs[i])
	}

	return items, total, nil
}

func (s *InMemoryStore) get(name string) (*fileRecord, error) {
	s.mu.RLock()
	rec, ok := s.files[name]
	s.mu.RUnlock()
	if !ok {
		return nil, pkgerror.ErrNotFound
	}

	return rec, nil
}

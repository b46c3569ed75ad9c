package pkgfile

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// ErrExists is returned by PublishNoClobber when the destination already exists.
var ErrExists = errors.New("destination already exists")

// File is a temporary file that becomes visible under its final name on Commit.
type File struct {
	*os.File
	final string
	done  bool
}

// Create opens a temporary file next to final. The caller must call Commit or Abort.
func Create(final string) (*File, error) {
	dir, base := filepath.Split(final)
	if dir == "" {
		dir = "."
	}

	f, err := os.CreateTemp(dir, "."+base+".tmp-*")
	if err != nil {
		return nil, fmt.Errorf("create temp for %s: %w", final, err)
	}

	return &File{File: f, final: final}, nil
}

// Final returns the path the file is published under.
func (f *File) Final() string {
	return f.final
}

// Commit flushes the file to stable storage and renames it over the final path.
func (f *File) Commit() error {
	if f.done {
		return nil
	}
	f.done = true

	if err := f.File.Sync(); err != nil {
		_ = f.File.Close()
		_ = os.Remove(f.File.Name())
		return fmt.Errorf("sync %s: %w", f.final, err)
	}
	if err := f.File.Close(); err != nil {
		_ = os.Remove(f.File.Name())
		return fmt.Errorf("close %s: %w", f.final, err)
	}
	if err := os.Rename(f.File.Name(), f.final); err != nil {
		_ = os.Remove(f.File.Name())
		return fmt.Errorf("publish %s: %w", f.final, err)
	}

	return syncDir(filepath.Dir(f.final))
}

// Abort discards the temporary file. It is a no-op after Commit, so it can be deferred.
func (f *File) Abort() {
	if f.done {
		return
	}
	f.done = true

	_ = f.File.Close()
	_ = os.Remove(f.File.Name())
}

// WriteAtomic replaces path with data.
func WriteAtomic(path string, data []byte) error {
	f, err := Create(path)
	if err != nil {
		return err
	}
	defer f.Abort()

	if _, err := f.Write(data); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}

	return f.Commit()
}

// PublishNoClobber gives src the name dst and fails with ErrExists when dst is
// already present. A hard link is the atomic test-and-set; src is unlinked after.
func PublishNoClobber(src, dst string) error {
	if err := os.Link(src, dst); err != nil {
		if errors.Is(err, os.ErrExist) {
			return fmt.Errorf("%w: %s", ErrExists, dst)
		}
		return fmt.Errorf("link %s: %w", dst, err)
	}

	if err := os.Remove(src); err != nil {
		return fmt.Errorf("unlink %s: %w", src, err)
	}

	return syncDir(filepath.Dir(dst))
}

func syncDir(dir string) error {
	d, err := os.Open(dir)
	if err != nil {
		return nil //nolint:nilerr // directory sync is best effort
	}
	defer d.Close()

	_ = d.Sync()
	return nil
}

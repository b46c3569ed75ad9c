package pkgfile

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func readString(t *testing.T, path string) string {
	t.Helper()

	got, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile(%s) err = %v", path, err)
	}
	return string(got)
}

func countEntries(t *testing.T, dir string) int {
	t.Helper()

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir(%s) err = %v", dir, err)
	}
	return len(entries)
}

func TestWriteAtomicReplaces(t *testing.T) {
	path := filepath.Join(t.TempDir(), "marker.json")

	if err := WriteAtomic(path, []byte("one")); err != nil {
		t.Fatalf("WriteAtomic(one) err = %v", err)
	}
	if err := WriteAtomic(path, []byte("two")); err != nil {
		t.Fatalf("WriteAtomic(two) err = %v", err)
	}

	if got := readString(t, path); got != "two" {
		t.Fatalf("content = %q, want two", got)
	}
	if n := countEntries(t, filepath.Dir(path)); n != 1 {
		t.Fatalf("dir holds %d entries, temp files must not be left behind", n)
	}
}

func TestAbortLeavesNothing(t *testing.T) {
	dir := t.TempDir()
	f, err := Create(filepath.Join(dir, "data.idx"))
	if err != nil {
		t.Fatalf("Create() err = %v", err)
	}

	if _, err := f.Write([]byte("partial")); err != nil {
		t.Fatalf("Write() err = %v", err)
	}
	f.Abort()
	f.Abort()

	if n := countEntries(t, dir); n != 0 {
		t.Fatalf("dir holds %d entries after Abort, want 0", n)
	}
}

func TestCommitThenAbortIsNoop(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data.idx")
	f, err := Create(path)
	if err != nil {
		t.Fatalf("Create() err = %v", err)
	}

	if _, err := f.Write([]byte("complete")); err != nil {
		t.Fatalf("Write() err = %v", err)
	}
	if err := f.Commit(); err != nil {
		t.Fatalf("Commit() err = %v", err)
	}
	f.Abort()

	if got := readString(t, path); got != "complete" {
		t.Fatalf("content = %q, want complete", got)
	}
}

func TestPublishNoClobber(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "upload.part")
	dst := filepath.Join(dir, "data.csv")

	if err := os.WriteFile(src, []byte("a|b\n"), 0o600); err != nil {
		t.Fatalf("write src: %v", err)
	}
	if err := PublishNoClobber(src, dst); err != nil {
		t.Fatalf("PublishNoClobber() err = %v", err)
	}
	if _, err := os.Stat(src); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("source still present after publish: %v", err)
	}

	if err := os.WriteFile(src, []byte("other\n"), 0o600); err != nil {
		t.Fatalf("write src: %v", err)
	}
	if err := PublishNoClobber(src, dst); !errors.Is(err, ErrExists) {
		t.Fatalf("PublishNoClobber() err = %v, want ErrExists", err)
	}
	if got := readString(t, dst); got != "a|b\n" {
		t.Fatalf("published file replaced: %q", got)
	}
}

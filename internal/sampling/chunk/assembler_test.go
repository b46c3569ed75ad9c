package chunk

import (
	"context"
	"math/rand/v2"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shandysiswandi/gosampling/internal/sampling/entity"
)

const testUploadID = "0194c1d2-7a3b-7c4d-8e5f-60718293a4b5"

func newAssembler(t *testing.T) *Assembler {
	t.Helper()

	a, err := New(Config{Dir: t.TempDir(), MaxChunkSize: 1 << 20})
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Stop(context.Background()) })

	return a
}

func payload(n int) []byte {
	r := rand.New(rand.NewPCG(1, 2))
	b := make([]byte, n)
	for i := range b {
		b[i] = byte('a' + r.IntN(26))
	}
	return b
}

func split(uploadID, name string, data []byte, size int) []entity.UploadChunk {
	var chunks []entity.UploadChunk
	total := (len(data) + size - 1) / size
	if total == 0 {
		total = 1
	}

	for i := 0; i < total; i++ {
		lo := i * size
		hi := min(lo+size, len(data))
		chunks = append(chunks, entity.UploadChunk{
			UploadID:    uploadID,
			Index:       int64(i),
			TotalChunks: int64(total),
			IsLast:      i == total-1,
			ChunkSize:   int64(size),
			FileName:    name,
			Payload:     data[lo:hi],
		})
	}

	return chunks
}

func TestApplyAssemblesForAnyChunkSize(t *testing.T) {
	data := payload(6000)

	for _, size := range []int{7, 1000, 4096, 6000, 20_000} {
		a := newAssembler(t)

		var final string
		for _, c := range split(testUploadID, "data.csv", data, size) {
			ack, err := a.Apply(context.Background(), c)
			require.NoError(t, err, "size %d index %d", size, c.Index)
			final = ack.FinalPath
		}

		got, err := os.ReadFile(final)
		require.NoError(t, err)
		assert.Equal(t, data, got, "chunk size %d", size)

		_, err = os.Stat(filepath.Join(a.Dir(), testUploadID+partialExt))
		assert.True(t, os.IsNotExist(err), "partial file must be consumed")
	}
}

func TestApplyIsIdempotent(t *testing.T) {
	a := newAssembler(t)
	data := payload(5000)
	chunks := split(testUploadID, "data.csv", data, 1024)

	for _, c := range chunks[:len(chunks)-1] {
		first, err := a.Apply(context.Background(), c)
		require.NoError(t, err)

		second, err := a.Apply(context.Background(), c)
		require.NoError(t, err)
		if c.Index > 0 {
			assert.True(t, second.Skipped)
			assert.Zero(t, second.BytesWritten)
		}
		assert.False(t, first.Skipped)
	}

	ack, err := a.Apply(context.Background(), chunks[len(chunks)-1])
	require.NoError(t, err)
	require.True(t, ack.Completed)

	got, err := os.ReadFile(ack.FinalPath)
	require.NoError(t, err)
	assert.Equal(t, data, got)
}

func TestApplyRejectsOutOfOrder(t *testing.T) {
	a := newAssembler(t)
	chunks := split(testUploadID, "data.csv", payload(4096), 1024)

	_, err := a.Apply(context.Background(), chunks[0])
	require.NoError(t, err)

	_, err = a.Apply(context.Background(), chunks[2])
	require.ErrorIs(t, err, ErrOutOfOrder)

	info, err := os.Stat(filepath.Join(a.Dir(), testUploadID+partialExt))
	require.NoError(t, err)
	assert.EqualValues(t, 1024, info.Size())

	for _, c := range chunks[1:] {
		_, err := a.Apply(context.Background(), c)
		require.NoError(t, err)
	}
}

func TestApplyAppendsOnlyUncoveredTail(t *testing.T) {
	a := newAssembler(t)
	data := payload(3000)
	chunks := split(testUploadID, "data.csv", data, 1000)

	_, err := a.Apply(context.Background(), chunks[0])
	require.NoError(t, err)

	// A crash after a partial write leaves part of chunk 1 on disk.
	partial := filepath.Join(a.Dir(), testUploadID+partialExt)
	f, err := os.OpenFile(partial, os.O_APPEND|os.O_WRONLY, 0o644)
	require.NoError(t, err)
	_, err = f.Write(data[1000:1400])
	require.NoError(t, err)
	require.NoError(t, f.Close())

	ack, err := a.Apply(context.Background(), chunks[1])
	require.NoError(t, err)
	assert.EqualValues(t, 600, ack.BytesWritten)

	ack, err = a.Apply(context.Background(), chunks[2])
	require.NoError(t, err)

	got, err := os.ReadFile(ack.FinalPath)
	require.NoError(t, err)
	assert.Equal(t, data, got)
}

func TestApplyIndexZeroRestarts(t *testing.T) {
	a := newAssembler(t)
	chunks := split(testUploadID, "data.csv", payload(3000), 1000)

	for _, c := range chunks[:2] {
		_, err := a.Apply(context.Background(), c)
		require.NoError(t, err)
	}

	_, err := a.Apply(context.Background(), chunks[0])
	require.NoError(t, err)

	info, err := os.Stat(filepath.Join(a.Dir(), testUploadID+partialExt))
	require.NoError(t, err)
	assert.EqualValues(t, 1000, info.Size())
}

func TestApplyAfterCompletionReportsAlreadyAssembled(t *testing.T) {
	a := newAssembler(t)
	chunks := split(testUploadID, "data.csv", payload(2048), 1024)

	for _, c := range chunks {
		_, err := a.Apply(context.Background(), c)
		require.NoError(t, err)
	}

	_, err := a.Apply(context.Background(), chunks[1])
	require.ErrorIs(t, err, ErrAlreadyAssembled)

	other := split("0194c1d2-7a3b-7c4d-8e5f-000000000000", "data.csv", payload(10), 1024)
	_, err = a.Apply(context.Background(), other[0])
	require.ErrorIs(t, err, ErrAlreadyAssembled)
}

func TestApplyRejectsInvalidMetadata(t *testing.T) {
	base := entity.UploadChunk{
		UploadID:  testUploadID,
		Index:     0,
		ChunkSize: 4,
		FileName:  "data.csv",
		Payload:   []byte("abcd"),
	}

	tests := []struct {
		name   string
		mutate func(c *entity.UploadChunk)
	}{
		{name: "zero chunk size", mutate: func(c *entity.UploadChunk) { c.ChunkSize = 0 }},
		{name: "chunk size above limit", mutate: func(c *entity.UploadChunk) { c.ChunkSize = 2 << 20; c.IsLast = true }},
		{name: "payload larger than chunk", mutate: func(c *entity.UploadChunk) { c.Payload = []byte("abcde") }},
		{name: "short non-final chunk", mutate: func(c *entity.UploadChunk) { c.Payload = []byte("ab") }},
		{name: "negative index", mutate: func(c *entity.UploadChunk) { c.Index = -1 }},
		{name: "index beyond total", mutate: func(c *entity.UploadChunk) { c.TotalChunks = 1; c.Index = 1 }},
		{name: "last flag disagrees", mutate: func(c *entity.UploadChunk) { c.TotalChunks = 2; c.IsLast = true }},
		{name: "path in upload id", mutate: func(c *entity.UploadChunk) { c.UploadID = "../x" }},
		{name: "empty file name", mutate: func(c *entity.UploadChunk) { c.FileName = "" }},
		{name: "partial file name", mutate: func(c *entity.UploadChunk) { c.FileName = "x.part" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := newAssembler(t)
			c := base
			tt.mutate(&c)

			_, err := a.Apply(context.Background(), c)
			require.ErrorIs(t, err, ErrInvalidChunk)
		})
	}
}

func TestApplyRejectsChunkSizeChange(t *testing.T) {
	a := newAssembler(t)
	chunks := split(testUploadID, "data.csv", payload(4096), 1024)

	_, err := a.Apply(context.Background(), chunks[0])
	require.NoError(t, err)

	c := split(testUploadID, "data.csv", payload(4096), 2048)[1]
	_, err = a.Apply(context.Background(), c)
	require.ErrorIs(t, err, ErrInvalidChunk)
}

func TestApplyStripsDirectoryFromFileName(t *testing.T) {
	a := newAssembler(t)
	c := split(testUploadID, "../../etc/data.csv", []byte("x|y\n"), 1024)[0]

	ack, err := a.Apply(context.Background(), c)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(a.Dir(), "data.csv"), ack.FinalPath)
}

func TestExpiredSessionRemovesPartialFile(t *testing.T) {
	a, err := New(Config{Dir: t.TempDir(), SessionTTL: 50 * time.Millisecond})
	require.NoError(t, err)
	a.Start()
	t.Cleanup(func() { _ = a.Stop(context.Background()) })

	c := split(testUploadID, "data.csv", payload(2048), 1024)[0]
	_, err = a.Apply(context.Background(), c)
	require.NoError(t, err)

	partial := filepath.Join(a.Dir(), testUploadID+partialExt)
	require.FileExists(t, partial)

	require.Eventually(t, func() bool {
		_, err := os.Stat(partial)
		return os.IsNotExist(err)
	}, 2*time.Second, 10*time.Millisecond)
}

func TestExpiredSessionKeepsPartialOfReopenedUpload(t *testing.T) {
	a := newAssembler(t)
	ctx := context.Background()
	data := payload(2048)
	chunks := split(testUploadID, "data.csv", data, 1024)

	_, err := a.Apply(ctx, chunks[0])
	require.NoError(t, err)
	stale := a.sessions.Get(testUploadID).Value()

	// The session times out and the client restarts the upload before the
	// expiry cleanup gets to run.
	a.sessions.Delete(testUploadID)
	_, err = a.Apply(ctx, chunks[0])
	require.NoError(t, err)
	a.discard(testUploadID, stale)

	partial := filepath.Join(a.Dir(), testUploadID+partialExt)
	require.FileExists(t, partial)
	assert.True(t, stale.expired)

	ack, err := a.Apply(ctx, chunks[1])
	require.NoError(t, err)
	require.True(t, ack.Completed)

	got, err := os.ReadFile(ack.FinalPath)
	require.NoError(t, err)
	assert.Equal(t, data, got)
}

func TestExpiredSessionIsNotReused(t *testing.T) {
	a := newAssembler(t)
	ctx := context.Background()
	chunks := split(testUploadID, "data.csv", payload(2048), 1024)

	_, err := a.Apply(ctx, chunks[0])
	require.NoError(t, err)
	stale := a.sessions.Get(testUploadID).Value()
	a.sessions.Delete(testUploadID)
	a.discard(testUploadID, stale)

	require.NoFileExists(t, filepath.Join(a.Dir(), testUploadID+partialExt))

	_, err = a.Apply(ctx, chunks[1])
	require.ErrorIs(t, err, ErrOutOfOrder)
	assert.NotSame(t, stale, a.sessions.Get(testUploadID).Value())
}

func TestSweepRemovesOrphanedPartialFiles(t *testing.T) {
	a := newAssembler(t)
	ctx := context.Background()
	now := time.Now()
	old := now.Add(-2 * a.ttl)

	orphan := filepath.Join(a.Dir(), "orphan"+partialExt)
	recent := filepath.Join(a.Dir(), "recent"+partialExt)
	for _, p := range []string{orphan, recent} {
		require.NoError(t, os.WriteFile(p, []byte("a|b\n"), 0o644))
	}
	require.NoError(t, os.Chtimes(orphan, old, old))

	_, err := a.Apply(ctx, split(testUploadID, "data.csv", payload(2048), 1024)[0])
	require.NoError(t, err)
	owned := filepath.Join(a.Dir(), testUploadID+partialExt)
	require.NoError(t, os.Chtimes(owned, old, old))

	a.sweep(now)

	assert.NoFileExists(t, orphan)
	assert.FileExists(t, recent)
	assert.FileExists(t, owned)
}

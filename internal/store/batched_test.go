package store

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBatchedStore_FakeIDs(t *testing.T) {
	t.Parallel()
	batch := NewBatchedStore()

	id1 := batch.AddFile(&File{Path: "a.js"})
	id2 := batch.AddFile(&File{Path: "b.js"})
	assert.Negative(t, id1, "batched IDs should be negative")
	assert.Negative(t, id2)
	assert.NotEqual(t, id1, id2)
	assert.Equal(t, 2, batch.Len())
}

func TestBatchedStore_ConcurrentAdds(t *testing.T) {
	t.Parallel()
	batch := NewBatchedStore()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			batch.AddFile(&File{Path: "f.js"})
		}()
	}
	wg.Wait()

	seen := make(map[int64]bool)
	for _, f := range batch.Files {
		assert.False(t, seen[f.ID], "duplicate fake ID %d", f.ID)
		seen[f.ID] = true
	}
	assert.Len(t, seen, 50)
}

func TestCommitBatch_RemapsIDs(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	batch := NewBatchedStore()
	batch.AddFile(&File{Path: "index.js", Hash: HashBytes([]byte("x")), Size: 1})

	pkg := &Package{Name: "tiny", Version: "0.1.0", Root: "/tmp/tiny", Source: "registry"}
	require.NoError(t, s.CommitBatch(pkg, batch))

	require.Len(t, batch.Files, 1)
	assert.Positive(t, batch.Files[0].ID, "committed IDs should be real")
	assert.Equal(t, pkg.ID, batch.Files[0].PackageID)
}

package vault

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/raphaelgruber/vaultbot/internal/config"
	"github.com/raphaelgruber/vaultbot/internal/metrics"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestWriter(t *testing.T) (*Writer, string) {
	t.Helper()
	root := t.TempDir()
	cfg := config.Default().Vault
	cfg.Path = root
	w, err := NewWriter(cfg)
	require.NoError(t, err)
	return w, root
}

func TestNewWriterMissingVault(t *testing.T) {
	cfg := config.Default().Vault
	cfg.Path = filepath.Join(t.TempDir(), "nope")

	_, err := NewWriter(cfg)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrVaultMissing)

	var verr *Error
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "open", verr.Op)
}

func TestPersistDocumentCollisions(t *testing.T) {
	w, root := newTestWriter(t)

	var paths []string
	for i := 0; i < 3; i++ {
		p, err := w.PersistDocument(fmt.Sprintf("body %d", i), "note", "")
		require.NoError(t, err)
		paths = append(paths, p)
	}

	incoming := filepath.Join(root, "Incoming")
	assert.Equal(t, []string{
		filepath.Join(incoming, "note.md"),
		filepath.Join(incoming, "note-1.md"),
		filepath.Join(incoming, "note-2.md"),
	}, paths)

	data, err := os.ReadFile(paths[2])
	require.NoError(t, err)
	assert.Equal(t, "body 2", string(data))

	// no temp files are left behind
	entries, err := os.ReadDir(incoming)
	require.NoError(t, err)
	assert.Len(t, entries, 3)
}

func TestPersistDocumentSubfolderAndExtension(t *testing.T) {
	w, root := newTestWriter(t)

	p, err := w.PersistDocument("x", "2025-01-15 - idea.md", "Ideas/Tech")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, "Incoming", "Ideas", "Tech", "2025-01-15 - idea.md"), p)
	assert.Equal(t, "Incoming/Ideas/Tech/2025-01-15 - idea.md", w.Rel(p))
}

func TestPersistDocumentRejectsEscape(t *testing.T) {
	w, _ := newTestWriter(t)

	_, err := w.PersistDocument("x", "note", "../../outside")
	assert.ErrorIs(t, err, ErrPathEscape)
}

func TestPersistDocumentRejectsUnsafeStem(t *testing.T) {
	w, root := newTestWriter(t)

	for _, stem := range []string{"../../outside", `..\outside`, "a/b", "..", ""} {
		t.Run(stem, func(t *testing.T) {
			_, err := w.PersistDocument("x", stem, "")
			assert.ErrorIs(t, err, ErrPathEscape)
		})
	}
	_, err := os.Stat(filepath.Join(root, "outside.md"))
	assert.True(t, os.IsNotExist(err))
}

func TestPersistDocumentConcurrentSameName(t *testing.T) {
	w, root := newTestWriter(t)

	const n = 20
	var wg sync.WaitGroup
	paths := make([]string, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			p, err := w.PersistDocument("body", "same", "")
			assert.NoError(t, err)
			paths[i] = p
		}(i)
	}
	wg.Wait()

	seen := make(map[string]bool)
	for _, p := range paths {
		assert.False(t, seen[p], "duplicate path %s", p)
		seen[p] = true
	}
	entries, err := os.ReadDir(filepath.Join(root, "Incoming"))
	require.NoError(t, err)
	assert.Len(t, entries, n)
}

func TestPersistBinary(t *testing.T) {
	w, root := newTestWriter(t)
	coll := metrics.NewCollector()
	w.metrics = coll

	rel, err := w.PersistBinary([]byte{1, 2, 3}, "photo_20250115.jpg")
	require.NoError(t, err)
	assert.Equal(t, "_attachments/photo_20250115.jpg", rel)

	rel, err = w.PersistBinary([]byte{4}, "../photo_20250115.jpg")
	require.NoError(t, err)
	assert.Equal(t, "_attachments/photo_20250115-1.jpg", rel)

	data, err := os.ReadFile(filepath.Join(root, "_attachments", "photo_20250115-1.jpg"))
	require.NoError(t, err)
	assert.Equal(t, []byte{4}, data)

	assert.Equal(t, int64(2), coll.Snapshot().VaultWrite.Count)
}

func TestResolveCollision(t *testing.T) {
	taken := map[string]bool{}
	exists := func(p string) bool { return taken[p] }

	got, err := ResolveCollision("dir/note.md", exists)
	require.NoError(t, err)
	assert.Equal(t, "dir/note.md", got)

	taken["dir/note.md"] = true
	got, err = ResolveCollision("dir/note.md", exists)
	require.NoError(t, err)
	assert.Equal(t, "dir/note-1.md", got)

	taken["dir/note-1.md"] = true
	got, err = ResolveCollision("dir/note.md", exists)
	require.NoError(t, err)
	assert.Equal(t, "dir/note-2.md", got)

	got, err = ResolveCollision("dir/README", func(p string) bool { return p == "dir/README" })
	require.NoError(t, err)
	assert.Equal(t, "dir/README-1", got)
}

func TestResolveCollisionCeiling(t *testing.T) {
	calls := 0
	_, err := ResolveCollision("note.md", func(string) bool {
		calls++
		return true
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrCollisionExhausted))
	assert.Equal(t, MaxCollisionAttempts+1, calls)
}

func TestListFolders(t *testing.T) {
	w, root := newTestWriter(t)
	for _, d := range []string{
		"Ideas",
		"Knowledge/Tech/Go/Deep",
		".obsidian/plugins",
		"Projects/.hidden/inner",
	} {
		require.NoError(t, os.MkdirAll(filepath.Join(root, d), 0o755))
	}
	require.NoError(t, os.WriteFile(filepath.Join(root, "Ideas", "a.md"), []byte("x"), 0o644))

	assert.Equal(t, []string{
		"Ideas",
		"Knowledge",
		"Knowledge/Tech",
		"Knowledge/Tech/Go",
		"Projects",
	}, w.ListFolders(3))

	assert.Equal(t, []string{"Ideas", "Knowledge", "Projects"}, w.ListFolders(1))
	assert.Empty(t, w.ListFolders(0))
}

func writeNote(t *testing.T, root, rel, content string) {
	t.Helper()
	p := filepath.Join(root, rel)
	require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
	require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
}

func TestRelevanceScore(t *testing.T) {
	tests := []struct {
		name     string
		content  string
		tags     []string
		entities []string
		want     float64
	}{
		{"hashtag", "about #Caching here", []string{"caching"}, nil, 2.0},
		{"block tag", "tags:\n  - caching\n", []string{"caching"}, nil, 2.0},
		{"no match", "nothing", []string{"caching"}, []string{"redis"}, 0},
		{"entity once", "Redis is fast", nil, []string{"redis"}, 0.5},
		{"entity capped", "redis redis redis redis redis redis", nil, []string{"Redis"}, 2.0},
		{"combined", "#go and Go and go", []string{"go"}, []string{"go"}, 2.0 + 1.5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, RelevanceScore(tt.content, tt.tags, tt.entities), 1e-9)
		})
	}
}

func TestFinderRelated(t *testing.T) {
	root := t.TempDir()
	writeNote(t, root, "Knowledge/caching.md", "---\ntags:\n  - caching\n  - distributed-systems\n---\n\n# Caching Notes\n\nRedis and Memcached.\n")
	writeNote(t, root, "Ideas/misc.md", "Just mentions redis once.\n")
	writeNote(t, root, "Other/unrelated.md", "# Gardening\n")
	writeNote(t, root, ".trash/caching.md", "#caching #distributed-systems redis redis redis redis")

	f := NewFinder(root, nil)
	got, err := f.Related(context.Background(), []string{"caching", "distributed-systems"}, []string{"Redis"}, 10)
	require.NoError(t, err)
	require.Len(t, got, 2)

	assert.Equal(t, "Caching Notes", got[0].Title)
	assert.Equal(t, "Knowledge/caching.md", got[0].Path)
	assert.InDelta(t, 4.5, got[0].Score, 1e-9)
	assert.Equal(t, []string{"caching", "distributed-systems"}, got[0].Tags)

	assert.Equal(t, "misc", got[1].Title, "falls back to the file name")
	assert.InDelta(t, 0.5, got[1].Score, 1e-9)

	limited, err := f.Related(context.Background(), []string{"caching"}, []string{"redis"}, 1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)

	none, err := f.Related(context.Background(), nil, nil, 10)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestFinderSearch(t *testing.T) {
	root := t.TempDir()
	writeNote(t, root, "a.md", "# Alpha\nThe quick brown fox")
	writeNote(t, root, "b.md", "# Beta\nA QUICK test")
	writeNote(t, root, "c.md", "# Gamma\nslow")

	f := NewFinder(root, nil)

	got, err := f.Search(context.Background(), "quick", 10)
	require.NoError(t, err)
	assert.Len(t, got, 2)

	got, err = f.Search(context.Background(), "quick", 1)
	require.NoError(t, err)
	assert.Len(t, got, 1)

	got, err = f.Search(context.Background(), "qu", 10)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestFinderSummariesAndCancel(t *testing.T) {
	root := t.TempDir()
	writeNote(t, root, "a.md", "# Alpha\n#go")
	writeNote(t, root, "b.md", "# Beta\n")

	f := NewFinder(root, nil)
	got, err := f.Summaries(context.Background(), 0)
	require.NoError(t, err)
	assert.Len(t, got, 2)
	assert.Equal(t, "Alpha", got[0].Title)
	assert.Equal(t, []string{"go"}, got[0].Tags)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = f.Summaries(ctx, 0)
	assert.ErrorIs(t, err, context.Canceled)
}

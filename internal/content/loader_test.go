package content

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/terra-clan/pylearn-arcade/internal/game"
	"github.com/terra-clan/pylearn-arcade/internal/models"
	"github.com/terra-clan/pylearn-arcade/internal/normalize"
)

func TestLoadBundledPacks(t *testing.T) {
	// Use the repository content directory
	contentDir := filepath.Join("..", "..", "content")
	if _, err := os.Stat(contentDir); os.IsNotExist(err) {
		t.Skip("content directory not found, skipping")
	}

	loader := NewLoader()
	require.NoError(t, loader.LoadFromDir(contentDir))

	basics := loader.GetCategory("basics")
	require.NotNil(t, basics)
	assert.Equal(t, "Python Basics", basics.Name)
	assert.GreaterOrEqual(t, basics.ActivitiesCount, 3)

	collections := loader.Get("python-collections")
	require.NotNil(t, collections)
	assert.Equal(t, game.KindMatching, collections.Type)
	assert.Equal(t, 90, collections.TimeLimit)
	pairs, ok := normalize.Path(normalize.Decode(collections.Content), "pairs")
	require.True(t, ok)
	assert.Len(t, pairs, 5)

	keywords := loader.Get("keywords")
	require.NotNil(t, keywords, "slug falls back to the file name")
	assert.IsType(t, "", keywords.Content)

	warmup := loader.Get("warmup-builtins")
	require.NotNil(t, warmup)
	assert.Equal(t, "general", warmup.Category)

	cats := loader.ListCategories()
	require.NotEmpty(t, cats)
	assert.Equal(t, "general", cats[0].ID, "categories without a file sort first")

	algos := loader.List(models.ActivityFilters{Type: game.KindAlgorithm})
	require.Len(t, algos, 2)
	assert.Equal(t, "bubble-sort", algos[0].Slug)
}

func writeFile(t *testing.T, path, body string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
}

func TestLoadFromDirSkipsBadFiles(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "ok.yaml"), "type: matching\ntitle: OK\n")
	writeFile(t, filepath.Join(dir, "untitled.yaml"), "type: matching\n")
	writeFile(t, filepath.Join(dir, "quiz.yaml"), "type: quiz\ntitle: Not a game\n")
	writeFile(t, filepath.Join(dir, "broken.yaml"), "title: [\n")
	writeFile(t, filepath.Join(dir, "loops", "a.yaml"), "slug: ok\ntype: indentation\ntitle: Duplicate\n")

	loader := NewLoader()
	require.NoError(t, loader.LoadFromDir(dir))

	all := loader.List(models.ActivityFilters{})
	require.Len(t, all, 1)
	assert.Equal(t, "OK", all[0].Title)
	assert.Equal(t, "loops", loader.GetCategory("loops").Name)
}

func TestLoadFromDirMissingKeepsCatalog(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "one.yaml"), "type: algorithm\ntitle: One\n")

	loader := NewLoader()
	require.NoError(t, loader.LoadFromDir(dir))
	require.Error(t, loader.LoadFromDir(filepath.Join(dir, "missing")))
	assert.NotNil(t, loader.Get("one"))
}

func TestChain(t *testing.T) {
	first := NewLoader()
	second := NewLoader()
	second.Add(&models.Activity{Slug: "b", Type: game.KindMatching, Title: "B", Category: "x"})

	a, err := Chain{first, second}.Activity(context.Background(), "b")
	require.NoError(t, err)
	assert.Equal(t, "B", a.Title)

	_, err = Chain{first, second}.Activity(context.Background(), "zzz")
	assert.ErrorIs(t, err, ErrActivityNotFound)

	boom := errors.New("db down")
	_, err = Chain{first, failingSource{boom}, second}.Activity(context.Background(), "b")
	assert.ErrorIs(t, err, boom)
}

type failingSource struct{ err error }

func (f failingSource) Activity(context.Context, string) (*models.Activity, error) {
	return nil, f.err
}

func TestWatcherReloads(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "one.yaml"), "type: matching\ntitle: One\n")

	loader := NewLoader()
	require.NoError(t, loader.LoadFromDir(dir))

	w, err := NewWatcher(loader, dir, 50*time.Millisecond)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go w.Run(ctx)

	writeFile(t, filepath.Join(dir, "two.yaml"), "type: matching\ntitle: Two\n")

	require.Eventually(t, func() bool {
		return loader.Get("two") != nil
	}, 5*time.Second, 20*time.Millisecond)
}

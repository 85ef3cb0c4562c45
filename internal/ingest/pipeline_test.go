package ingest

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/mrlokans/comicshelf/internal/database/catalog"
	"github.com/mrlokans/comicshelf/internal/entities"
	"github.com/mrlokans/comicshelf/internal/library"
)

type fakeClassifier struct {
	calls []string
}

func (f *fakeClassifier) Classify(path string) (string, error) {
	f.calls = append(f.calls, path)
	if strings.Contains(path, "broken") {
		return "", errors.New("unsupported")
	}
	return "application/zip", nil
}

func (f *fakeClassifier) PageCount(string, string) (int, error) {
	return 3, nil
}

func setupCatalog(t *testing.T) *catalog.Repository {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "ingest.db")), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&entities.Series{}, &entities.Chapter{}))
	t.Cleanup(func() {
		sqlDB, _ := db.DB()
		sqlDB.Close()
	})
	return catalog.NewRepository(db)
}

func touch(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func setupLibrary(t *testing.T) (library.Folder, string) {
	t.Helper()
	root := t.TempDir()
	touch(t, filepath.Join(root, "Berserk", "Berserk v02.cbz"), "b2")
	touch(t, filepath.Join(root, "Berserk", "Berserk v10.cbz"), "b10")
	touch(t, filepath.Join(root, "Berserk", "notes.txt"), "ignored")
	touch(t, filepath.Join(root, "Akira", "Akira.pdf"), "pdf")
	touch(t, filepath.Join(root, ".hidden", "secret.cbz"), "hidden")
	folder, err := library.NewFolder(root)
	require.NoError(t, err)
	return folder, root
}

func TestPipeline_Scan_IndexesSeriesAndChapters(t *testing.T) {
	repo := setupCatalog(t)
	folder, root := setupLibrary(t)
	classifier := &fakeClassifier{}
	p := NewPipeline(repo, classifier)

	var lastProcessed, lastTotal int
	result, err := p.Scan(context.Background(), []library.Folder{folder}, false, func(processed, total int, _ string) {
		lastProcessed, lastTotal = processed, total
	})
	require.NoError(t, err)

	assert.Equal(t, 3, result.ChaptersAdded)
	assert.Equal(t, 2, result.Series)
	assert.Equal(t, 3, lastProcessed)
	assert.Equal(t, 3, lastTotal)

	series, err := repo.SeriesByFolder(filepath.Join(root, "Berserk"))
	require.NoError(t, err)
	assert.Equal(t, "Berserk", series.Title)
	assert.Equal(t, 2, series.ChaptersCount)
	assert.Equal(t, folder.Hash, series.LibraryHash)
	assert.Equal(t, library.HashPath(series.Folder), series.Hash)

	chapters, err := repo.ChaptersForSeries(series.ID)
	require.NoError(t, err)
	require.Len(t, chapters, 2)
	assert.Equal(t, 2.0, chapters[0].Number)
	assert.Equal(t, 10.0, chapters[1].Number)
	assert.Equal(t, ChapterHash(chapters[0].Path), chapters[0].Hash)
	assert.True(t, strings.HasPrefix(chapters[0].Hash, "ch-"))
	assert.Equal(t, 3, chapters[0].PageCount)
}

func TestPipeline_Scan_IncrementalSkipsUnchanged(t *testing.T) {
	repo := setupCatalog(t)
	folder, root := setupLibrary(t)
	classifier := &fakeClassifier{}
	p := NewPipeline(repo, classifier)

	_, err := p.Scan(context.Background(), []library.Folder{folder}, false, nil)
	require.NoError(t, err)

	var updated []string
	p.OnUpdated = func(ch entities.Chapter) { updated = append(updated, ch.Path) }

	changed := filepath.Join(root, "Berserk", "Berserk v10.cbz")
	touch(t, changed, "b10 rewritten")
	later := time.Now().Add(time.Minute)
	require.NoError(t, os.Chtimes(changed, later, later))

	classifier.calls = nil
	result, err := p.Scan(context.Background(), []library.Folder{folder}, false, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, result.ChaptersUnchanged)
	assert.Equal(t, 1, result.ChaptersUpdated)
	assert.Equal(t, []string{changed}, classifier.calls)
	assert.Equal(t, []string{changed}, updated)

	classifier.calls = nil
	result, err = p.Scan(context.Background(), []library.Folder{folder}, true, nil)
	require.NoError(t, err)
	assert.Equal(t, 3, result.ChaptersUpdated)
	assert.Len(t, classifier.calls, 3)
}

func TestPipeline_Scan_RemovesVanishedChapters(t *testing.T) {
	repo := setupCatalog(t)
	folder, root := setupLibrary(t)
	p := NewPipeline(repo, &fakeClassifier{})

	_, err := p.Scan(context.Background(), []library.Folder{folder}, false, nil)
	require.NoError(t, err)

	var removed []string
	p.OnRemoved = func(ch entities.Chapter) { removed = append(removed, ch.Hash) }

	akira := filepath.Join(root, "Akira", "Akira.pdf")
	require.NoError(t, os.RemoveAll(filepath.Join(root, "Akira")))

	result, err := p.Scan(context.Background(), []library.Folder{folder}, false, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, result.ChaptersRemoved)
	assert.Equal(t, 1, result.SeriesRemoved)
	assert.Equal(t, []string{ChapterHash(akira)}, removed)

	_, err = repo.SeriesByFolder(filepath.Join(root, "Akira"))
	assert.True(t, catalog.IsNotFound(err))
}

func TestPipeline_Scan_FullScanDropsChaptersOutsideLibrary(t *testing.T) {
	repo := setupCatalog(t)
	folder, _ := setupLibrary(t)
	other, _ := setupLibrary(t)
	p := NewPipeline(repo, &fakeClassifier{})

	_, err := p.Scan(context.Background(), []library.Folder{folder, other}, false, nil)
	require.NoError(t, err)

	result, err := p.Scan(context.Background(), []library.Folder{folder}, true, nil)
	require.NoError(t, err)
	assert.Equal(t, 3, result.ChaptersRemoved)

	all, err := repo.AllChapters()
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestPipeline_Scan_CountsFailures(t *testing.T) {
	repo := setupCatalog(t)
	folder, root := setupLibrary(t)
	touch(t, filepath.Join(root, "Berserk", "broken.cbz"), "x")

	result, err := NewPipeline(repo, &fakeClassifier{}).Scan(context.Background(), []library.Folder{folder}, false, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Failed)
	assert.Equal(t, 3, result.ChaptersAdded)
}

func TestPipeline_Scan_Cancelled(t *testing.T) {
	repo := setupCatalog(t)
	folder, _ := setupLibrary(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewPipeline(repo, &fakeClassifier{}).Scan(ctx, []library.Folder{folder}, false, nil)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestPipeline_Scan_MissingFolder(t *testing.T) {
	repo := setupCatalog(t)
	folder, err := library.NewFolder(filepath.Join(t.TempDir(), "gone"))
	require.NoError(t, err)

	result, err := NewPipeline(repo, &fakeClassifier{}).Scan(context.Background(), []library.Folder{folder}, false, nil)
	require.NoError(t, err)
	assert.Zero(t, result.ChaptersAdded)
	assert.Equal(t, 1, result.FoldersMissing)
}

func TestPipeline_Scan_MissingFolderKeepsChapters(t *testing.T) {
	repo := setupCatalog(t)
	folder, root := setupLibrary(t)
	other, _ := setupLibrary(t)
	folders := []library.Folder{folder, other}
	p := NewPipeline(repo, &fakeClassifier{})

	_, err := p.Scan(context.Background(), folders, false, nil)
	require.NoError(t, err)

	var removed []string
	p.OnRemoved = func(ch entities.Chapter) { removed = append(removed, ch.Path) }

	// The drive holding root goes offline.
	offline := filepath.Join(t.TempDir(), "offline")
	require.NoError(t, os.Rename(root, offline))

	for _, full := range []bool{false, true} {
		result, err := p.Scan(context.Background(), folders, full, nil)
		require.NoError(t, err)
		assert.Equal(t, 1, result.FoldersMissing)
		assert.Zero(t, result.ChaptersRemoved)
		assert.Zero(t, result.SeriesRemoved)
	}
	assert.Empty(t, removed)

	under, err := repo.ChaptersUnder(root)
	require.NoError(t, err)
	assert.Len(t, under, 3)

	require.NoError(t, os.Rename(offline, root))
	result, err := p.Scan(context.Background(), folders, false, nil)
	require.NoError(t, err)
	assert.Zero(t, result.FoldersMissing)
	assert.Equal(t, 6, result.ChaptersUnchanged)
}

func TestIsChapterFile(t *testing.T) {
	assert.True(t, IsChapterFile("/a/b.CBZ"))
	assert.True(t, IsChapterFile("/a/b.epub"))
	assert.False(t, IsChapterFile("/a/.b.cbz"))
	assert.False(t, IsChapterFile("/a/b.txt"))
}

func TestPipeline_Forget(t *testing.T) {
	repo := setupCatalog(t)
	folder, _ := setupLibrary(t)
	other, _ := setupLibrary(t)
	p := NewPipeline(repo, &fakeClassifier{})

	_, err := p.Scan(context.Background(), []library.Folder{folder, other}, false, nil)
	require.NoError(t, err)

	var removed int
	p.OnRemoved = func(entities.Chapter) { removed++ }

	result, err := p.Forget(other)
	require.NoError(t, err)
	assert.Equal(t, 3, result.ChaptersRemoved)
	assert.Equal(t, 2, result.SeriesRemoved)
	assert.Equal(t, 3, removed)

	all, err := repo.AllChapters()
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestPipeline_Forget_SiblingFolders(t *testing.T) {
	repo := setupCatalog(t)
	parent := t.TempDir()
	touch(t, filepath.Join(parent, "a_b", "Monster", "Monster v01.cbz"), "m1")
	touch(t, filepath.Join(parent, "acb", "Pluto", "Pluto v01.cbz"), "p1")

	var folders []library.Folder
	for _, name := range []string{"a_b", "acb"} {
		f, err := library.NewFolder(filepath.Join(parent, name))
		require.NoError(t, err)
		folders = append(folders, f)
	}
	p := NewPipeline(repo, &fakeClassifier{})
	_, err := p.Scan(context.Background(), folders, false, nil)
	require.NoError(t, err)

	result, err := p.Forget(folders[0])
	require.NoError(t, err)
	assert.Equal(t, 1, result.ChaptersRemoved)

	all, err := repo.AllChapters()
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, filepath.Join(parent, "acb", "Pluto", "Pluto v01.cbz"), all[0].Path)
}

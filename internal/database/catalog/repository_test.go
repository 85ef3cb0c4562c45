package catalog

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/mrlokans/comicshelf/internal/entities"
)

func setupTestDB(t *testing.T) *Repository {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "catalog.db")), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&entities.Series{}, &entities.Chapter{}))
	t.Cleanup(func() {
		sqlDB, _ := db.DB()
		sqlDB.Close()
	})
	return NewRepository(db)
}

func seedSeries(t *testing.T, repo *Repository, folder string, chapters ...string) *entities.Series {
	t.Helper()
	series := &entities.Series{Hash: filepath.Base(folder), Folder: folder, Title: filepath.Base(folder)}
	require.NoError(t, repo.UpsertSeries(series))
	for i, name := range chapters {
		require.NoError(t, repo.UpsertChapter(&entities.Chapter{
			SeriesID: series.ID,
			Hash:     "ch-" + filepath.Base(folder) + name,
			Path:     filepath.Join(folder, name),
			Folder:   folder,
			Number:   float64(len(chapters) - i),
		}))
	}
	return series
}

func TestRepository_UpsertSeriesReusesRow(t *testing.T) {
	repo := setupTestDB(t)
	first := seedSeries(t, repo, "/lib/Berserk")

	again := &entities.Series{Hash: "Berserk", Folder: "/lib/Berserk", Title: "Berserk (renamed)"}
	require.NoError(t, repo.UpsertSeries(again))
	assert.Equal(t, first.ID, again.ID)

	loaded, err := repo.SeriesByHash("Berserk")
	require.NoError(t, err)
	assert.Equal(t, "Berserk (renamed)", loaded.Title)
}

func TestRepository_ChaptersForSeriesInReadingOrder(t *testing.T) {
	repo := setupTestDB(t)
	series := seedSeries(t, repo, "/lib/Berserk", "c.cbz", "b.cbz", "a.cbz")

	chapters, err := repo.ChaptersForSeries(series.ID)
	require.NoError(t, err)
	require.Len(t, chapters, 3)
	assert.Equal(t, "/lib/Berserk/a.cbz", chapters[0].Path)

	first, err := repo.FirstChapter(series.ID)
	require.NoError(t, err)
	assert.Equal(t, chapters[0].ID, first.ID)

	n, err := repo.RefreshChaptersCount(series.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	loaded, err := repo.SeriesByID(series.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, loaded.ChaptersCount)
}

func TestRepository_UpsertChapterKeepsAccent(t *testing.T) {
	repo := setupTestDB(t)
	seedSeries(t, repo, "/lib/Berserk", "v1.cbz")

	chapter, err := repo.ChapterByPath("/lib/Berserk/v1.cbz")
	require.NoError(t, err)
	require.NoError(t, repo.UpdateChapterAccent(chapter.ID, "#112233"))

	update := &entities.Chapter{SeriesID: chapter.SeriesID, Hash: chapter.Hash, Path: chapter.Path, PageCount: 42}
	require.NoError(t, repo.UpsertChapter(update))
	assert.Equal(t, chapter.ID, update.ID)

	loaded, err := repo.ChapterByHash(chapter.Hash)
	require.NoError(t, err)
	assert.Equal(t, "#112233", loaded.AccentColor)
	assert.Equal(t, 42, loaded.PageCount)

	mtime := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	require.NoError(t, repo.UpdateChapterFile(chapter.ID, 1234, mtime))
	loaded, err = repo.ChapterByID(chapter.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1234), loaded.Size)
	assert.True(t, loaded.ModTime.Equal(mtime))
}

func TestRepository_ChaptersUnder(t *testing.T) {
	repo := setupTestDB(t)
	seedSeries(t, repo, "/lib/a/Berserk", "v1.cbz", "v2.cbz")
	seedSeries(t, repo, "/lib/ab/Vagabond", "v1.cbz")

	chapters, err := repo.ChaptersUnder("/lib/a")
	require.NoError(t, err)
	assert.Len(t, chapters, 2)

	all, err := repo.AllChapters()
	require.NoError(t, err)
	assert.Len(t, all, 3)

	t.Run("wildcard characters are literal", func(t *testing.T) {
		seedSeries(t, repo, "/lib/a_b/Monster", "v1.cbz")
		seedSeries(t, repo, "/lib/acb/Pluto", "v1.cbz", "v2.cbz")
		seedSeries(t, repo, "/lib/100%/Dorohedoro", "v1.cbz")
		seedSeries(t, repo, "/lib/1000/Blame", "v1.cbz")

		chapters, err := repo.ChaptersUnder("/lib/a_b")
		require.NoError(t, err)
		require.Len(t, chapters, 1)
		assert.Equal(t, "/lib/a_b/Monster/v1.cbz", chapters[0].Path)

		chapters, err = repo.ChaptersUnder("/lib/100%/")
		require.NoError(t, err)
		require.Len(t, chapters, 1)
		assert.Equal(t, "/lib/100%/Dorohedoro/v1.cbz", chapters[0].Path)
	})

	t.Run("case sensitive", func(t *testing.T) {
		seedSeries(t, repo, "/lib/Manga/Akira", "v1.cbz")
		seedSeries(t, repo, "/lib/manga/Domu", "v1.cbz", "v2.cbz")

		chapters, err := repo.ChaptersUnder("/lib/Manga")
		require.NoError(t, err)
		require.Len(t, chapters, 1)
		assert.Equal(t, "/lib/Manga/Akira/v1.cbz", chapters[0].Path)
	})

	t.Run("non-ascii prefix", func(t *testing.T) {
		seedSeries(t, repo, "/lib/漫画/ベルセルク", "第1巻.cbz")
		seedSeries(t, repo, "/lib/漫画x/Other", "v1.cbz")

		chapters, err := repo.ChaptersUnder("/lib/漫画")
		require.NoError(t, err)
		require.Len(t, chapters, 1)
		assert.Equal(t, "/lib/漫画/ベルセルク/第1巻.cbz", chapters[0].Path)
	})
}

func TestRepository_DeleteEmptySeries(t *testing.T) {
	repo := setupTestDB(t)
	kept := seedSeries(t, repo, "/lib/Berserk", "v1.cbz")
	empty := seedSeries(t, repo, "/lib/Empty")

	n, err := repo.DeleteEmptySeries()
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	_, err = repo.SeriesByID(empty.ID)
	assert.True(t, IsNotFound(err))
	_, err = repo.SeriesByID(kept.ID)
	assert.NoError(t, err)

	require.NoError(t, repo.DeleteSeries(kept.ID))
	all, err := repo.AllChapters()
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestRepository_ListSeries(t *testing.T) {
	repo := setupTestDB(t)
	seedSeries(t, repo, "/lib/Berserk")
	seedSeries(t, repo, "/lib/Vagabond")
	seedSeries(t, repo, "/lib/Berserk Deluxe")

	series, total, err := repo.ListSeries("", 2, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
	require.Len(t, series, 2)
	assert.Equal(t, "Berserk", series[0].Title)

	series, total, err = repo.ListSeries("berserk", 10, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	assert.Len(t, series, 2)
}

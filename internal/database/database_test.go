package database

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrlokans/comicshelf/internal/entities"
)

func setupTestDB(t *testing.T) *Database {
	t.Helper()
	db, err := NewDatabase(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestDatabase_SaveAndQuery(t *testing.T) {
	db := setupTestDB(t)

	series := &entities.Series{Hash: "abc", Folder: "/lib/Berserk", Title: "Berserk"}
	require.NoError(t, db.Save(series))
	require.NotZero(t, series.ID)

	series.ChaptersCount = 3
	require.NoError(t, db.Save(series))

	var loaded entities.Series
	require.NoError(t, db.Query(&loaded, series.ID))
	assert.Equal(t, "Berserk", loaded.Title)
	assert.Equal(t, 3, loaded.ChaptersCount)

	err := db.Query(&entities.Series{}, 999)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDatabase_CountAndCountLike(t *testing.T) {
	db := setupTestDB(t)

	for i, title := range []string{"Berserk", "Vagabond", "Berserk Deluxe"} {
		require.NoError(t, db.Save(&entities.Series{
			Hash:   string(rune('a' + i)),
			Folder: "/lib/" + title,
			Title:  title,
		}))
	}

	n, err := db.Count(&entities.Series{})
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)

	n, err = db.CountLike(&entities.Series{}, "title", "Berserk%")
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	_, err = db.CountLike(&entities.Series{}, "title; DROP TABLE series", "%")
	assert.Error(t, err)
}

package entities

import (
	"time"
)

// Series is one folder of chapters inside a library folder.
type Series struct {
	ID            uint      `gorm:"primaryKey" json:"id"`
	Hash          string    `gorm:"uniqueIndex;size:32" json:"hash"`
	LibraryHash   string    `gorm:"index;size:32" json:"library_hash"`
	Folder        string    `gorm:"uniqueIndex;size:1024" json:"folder"`
	Title         string    `gorm:"index;size:512" json:"title"`
	ChaptersCount int       `json:"chapters_count"`
	AccentColor   string    `gorm:"size:7" json:"accent_color,omitempty"`
	Chapters      []Chapter `gorm:"foreignKey:SeriesID" json:"chapters,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

func (Series) TableName() string {
	return "series"
}

// Chapter is one archive or paged document.
type Chapter struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	SeriesID    uint      `gorm:"index" json:"series_id"`
	Hash        string    `gorm:"uniqueIndex;size:40" json:"hash"`
	Path        string    `gorm:"uniqueIndex;size:2048" json:"path"`
	Folder      string    `gorm:"index;size:1024" json:"folder"`
	MediaType   string    `gorm:"size:100" json:"media_type"`
	Size        int64     `json:"size"`
	ModTime     time.Time `json:"mod_time"`
	PageCount   int       `json:"page_count"`
	Number      float64   `gorm:"index" json:"number"`
	Title       string    `gorm:"size:512" json:"title"`
	AccentColor string    `gorm:"size:7" json:"accent_color,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func (Chapter) TableName() string {
	return "chapters"
}

// Unchanged reports whether the file on disk still matches the indexed chapter.
func (c *Chapter) Unchanged(size int64, modTime time.Time) bool {
	return c.Size == size && c.ModTime.Equal(modTime)
}

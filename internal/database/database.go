package database

import (
	"errors"
	"fmt"
	"regexp"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"github.com/mrlokans/comicshelf/internal/entities"
	"github.com/mrlokans/comicshelf/internal/logging"
)

// ErrNotFound is returned when a queried entity does not exist.
var ErrNotFound = errors.New("record not found")

var columnName = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)

type Database struct {
	DB *gorm.DB
}

func NewDatabase(dbPath string) (*Database, error) {
	db, err := gorm.Open(sqlite.Open(dbPath), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// Auto-migrate all entities
	err = db.AutoMigrate(
		&entities.Series{},
		&entities.Chapter{},
		&entities.JobProgress{},
		&entities.Setting{},
	)
	if err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	logging.L().Info("Database initialized", logging.String("path", dbPath))

	return &Database{DB: db}, nil
}

func (d *Database) Close() error {
	sqlDB, err := d.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Save inserts or updates a single entity.
func (d *Database) Save(entity any) error {
	return d.DB.Save(entity).Error
}

// Query loads the entity with the given primary key into dest.
func (d *Database) Query(dest any, id uint) error {
	err := d.DB.First(dest, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("%w: id %d", ErrNotFound, id)
	}
	return err
}

// Count returns the number of rows for model.
func (d *Database) Count(model any) (int64, error) {
	var n int64
	err := d.DB.Model(model).Count(&n).Error
	return n, err
}

// CountLike counts rows of model whose field matches a LIKE pattern.
func (d *Database) CountLike(model any, field, pattern string) (int64, error) {
	if !columnName.MatchString(field) {
		return 0, fmt.Errorf("invalid field name %q", field)
	}
	var n int64
	err := d.DB.Model(model).
		Where(clause.Like{Column: clause.Column{Name: field}, Value: pattern}).
		Count(&n).Error
	return n, err
}

// Package database provides the data access layer for the application.
//
// # Architecture
//
// The database layer is organized into domain-specific sub-packages:
//
//	database/
//	├── database.go      # Connection setup, migrations, generic storage operations
//	├── catalog/         # Series and chapter lookups
//	├── jobs/            # Exclusive job progress tracking
//	└── settings/        # Application settings
//
// # Using Sub-packages
//
//	db, err := database.NewDatabase("./comicshelf.db")
//
//	catalogRepo := catalog.NewRepository(db.DB)
//	series, err := catalogRepo.SeriesByHash(hash)
//
// # Storage operations
//
// Database itself exposes single-entity operations used where the caller only
// needs generic persistence:
//
//	err := db.Save(&chapter)
//	err := db.Query(&entities.Series{}, id)
//	n, err := db.Count(&entities.Chapter{})
//	n, err := db.CountLike(&entities.Series{}, "title", "%berserk%")
package database

package config

// Default paths
const (
	// DefaultDatabasePath is the default path for the catalog database
	DefaultDatabasePath = "./comicshelf.db"

	// DefaultFoldersConfigPath is the default path of the library folder list
	DefaultFoldersConfigPath = "./folders.json"

	// DefaultCacheDir is the default root of the image cache
	DefaultCacheDir = "./cache"
)

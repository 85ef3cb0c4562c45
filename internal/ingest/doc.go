// Package ingest turns library folders into catalog entries.
//
// A scan walks every library folder, groups chapter files by the directory
// that contains them (one directory is one series) and writes series and
// chapters to the catalog:
//
//	library folder → walk → group by directory → classify → upsert → prune
//
// An incremental scan skips chapters whose path, size and mtime match the
// catalog; a full scan re-reads every file. Chapters that vanished from disk
// are removed in both modes, and the OnRemoved hook lets callers drop cached
// thumbnails and open documents for them.
package ingest

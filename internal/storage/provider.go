// Package storage persists records as front-matter + body markdown files,
// one directory per type. Files are the source of truth; everything else
// is derived from them.
package storage

import "github.com/starford/ansuz/internal/models"

// Store is the interface for record file operations of one type.
type Store interface {
	// Save atomically writes the record's file.
	Save(it *models.Item) error
	// Load reads a record by id. Returns (nil, nil) when no file exists.
	Load(id string) (*models.Item, error)
	// Exists reports whether a file exists for the id.
	Exists(id string) bool
	// Delete removes the record's file. Returns false if it was absent.
	Delete(id string) (bool, error)
	// List enumerates ids, scoped to one date sub-directory when dateDir
	// is non-empty. Files with no title field are skipped and logged.
	List(dateDir string) ([]string, error)
	// ListDateDirs enumerates the date sub-directories of a
	// date-partitioned type.
	ListDateDirs() ([]string, error)
}

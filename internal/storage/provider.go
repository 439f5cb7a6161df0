// Package storage is the file-system abstraction behind markdown import,
// export and the inbox.
package storage

import "time"

// FileInfo describes a markdown file under the root.
type FileInfo struct {
	Path      string // relative to the root, slash separated
	Size      int64
	UpdatedAt time.Time
}

// Provider is the interface for file operations relative to a root directory.
type Provider interface {
	// Root returns the absolute root directory.
	Root() string
	// List returns every .md file under dir, sorted by path.
	List(dir string) ([]FileInfo, error)
	// Read returns the raw bytes of the file at path.
	Read(path string) ([]byte, error)
	// Write atomically writes content to path, creating parent directories.
	Write(path string, content []byte) error
	// Delete removes the file at path.
	Delete(path string) error
}

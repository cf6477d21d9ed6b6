// Package models defines server-side data models shared by the protocol core,
// its repositories, and its adapters.
package models

import (
	"path"
	"strings"
	"time"
)

// FileMetadata describes the current head of a file in the content repository.
type FileMetadata struct {
	// ID is the opaque file identifier used in WOPI URLs.
	ID string
	// Name is the file name including extension (WOPI BaseFileName).
	Name string
	// Owner is the identity that created the file.
	Owner    string
	MimeType string
	Size     int64
	// HeadLabel is the label of the version the head currently points at.
	// Empty when the file has no version yet.
	HeadLabel string
	// StorageKey is the object-storage key of the head content.
	StorageKey string
	ModifiedAt time.Time
	CreatedAt  time.Time
}

// Extension returns the lower-cased file extension without the dot.
func (f *FileMetadata) Extension() string {
	return strings.TrimPrefix(strings.ToLower(path.Ext(f.Name)), ".")
}

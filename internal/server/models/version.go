package models

import "time"

// VersionEntry is one element of a file's append-only version lineage.
type VersionEntry struct {
	FileID string
	// Label is the human readable version label ("1.0", "1.1", ...).
	Label string
	// Seq orders versions within a file, oldest first.
	Seq       int64
	CreatedAt time.Time
	CreatedBy string
	// Autosave is nil for versions not created through the protocol
	// (initial upload, manual edits in the repository). Such versions are
	// never pruned.
	Autosave    *bool
	Description string
	StorageKey  string
	Size        int64
}

// IsProtocolVersion reports whether the version was created by a WOPI save.
func (v *VersionEntry) IsProtocolVersion() bool {
	return v.Autosave != nil
}

// VersionOptions carries the properties of a version being created.
type VersionOptions struct {
	Autosave    bool
	Description string
	Author      string
}

// Bool returns a pointer to b, for populating optional flags.
func Bool(b bool) *bool {
	return &b
}

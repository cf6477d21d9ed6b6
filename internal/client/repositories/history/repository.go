// Package history records the administrative commands wopictl has run, in a
// local SQLite database.
package history

import (
	"context"
	"time"
)

// Entry is one recorded command.
type Entry struct {
	ID      int64
	At      time.Time
	Server  string
	User    string
	Command string
	FileID  string
	OK      bool
	// Detail is the error text of a failed command or a short summary of a
	// successful one.
	Detail string
}

type Repository interface {
	Add(ctx context.Context, e *Entry) error
	// List returns the newest entries first. fileID filters when not empty;
	// limit <= 0 means no limit.
	List(ctx context.Context, fileID string, limit int) ([]*Entry, error)
	Clear(ctx context.Context) error
}

package services

import (
	"errors"
	"time"

	"github.com/dmitrijs2005/wopihost/internal/common"
	"github.com/dmitrijs2005/wopihost/internal/server/models"
	"github.com/dmitrijs2005/wopihost/internal/timex"
)

// ErrEditorUnavailable is returned by GetToken, next to a usable grant,
// when the editor's discovery feed cannot be reached.
var ErrEditorUnavailable = errors.New("editor unavailable")

// FileRequest addresses one file with an access token.
type FileRequest struct {
	FileID      string `validate:"required"`
	AccessToken string `validate:"required"`
}

// LockRequest is the input of the WOPI lock operations. OldLockID is only
// read by LOCK (unlock-and-relock).
type LockRequest struct {
	FileID      string `validate:"required"`
	AccessToken string `validate:"required"`
	LockID      string `validate:"required,max=1024"`
	OldLockID   string `validate:"max=1024"`
}

type PutFileRequest struct {
	FileID      string `validate:"required"`
	AccessToken string `validate:"required"`
	LockID      string `validate:"max=1024"`
	// Timestamp is the LastModifiedTime the client last saw; empty skips
	// the conflict check.
	Timestamp string
	Autosave  bool
	Data      []byte
}

type TokenRequest struct {
	FileID   string `validate:"required"`
	Identity string `validate:"required"`
	Action   string `validate:"required"`
}

type CleanRequest struct {
	FileID       string `validate:"required"`
	KeepAuto     *int
	KeepExplicit *int
}

// ImportRequest adds a file through the admin API. An empty MimeType is
// sniffed from Data.
type ImportRequest struct {
	FileID   string `validate:"required,max=255"`
	Name     string `validate:"required,max=255"`
	Owner    string `validate:"required"`
	MimeType string
	Data     []byte
}

// FileInfo is the CheckFileInfo JSON object. It is a map because the set
// of UI flags is configurable.
type FileInfo map[string]any

// FileContent describes the bytes returned by GetFile.
type FileContent struct {
	Name     string
	MimeType string
	Size     int64
	Version  string
}

type PutFileResult struct {
	LastModifiedTime string `json:"LastModifiedTime"`
	Version          string `json:"-"`
}

// TokenGrant is what the token endpoint hands to the browser.
type TokenGrant struct {
	AccessToken    string `json:"access_token"`
	AccessTokenTTL int64  `json:"access_token_ttl"`
	WopiSrcURL     string `json:"wopi_src_url"`
}

// LockStatus answers the "is this file being edited" query.
type LockStatus struct {
	Locked bool   `json:"locked"`
	Owner  string `json:"owner,omitempty"`
}

func versionOptions(autosave bool, author string) models.VersionOptions {
	opts := models.VersionOptions{Autosave: autosave, Author: author}
	if autosave {
		opts.Description = common.AutosaveDescription
	}
	return opts
}

func formatModified(t time.Time) string {
	return timex.FormatISO(t)
}

// Package cli implements wopictl, the command-line client of the WOPI host
// admin API.
package cli

import (
	"bufio"
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/dmitrijs2005/wopihost/internal/client/admin"
	"github.com/dmitrijs2005/wopihost/internal/client/config"
	"github.com/dmitrijs2005/wopihost/internal/client/repositories/history"
)

// AdminAPI is the part of admin.Client the commands use.
type AdminAPI interface {
	Ping(ctx context.Context) error
	Prune(ctx context.Context, fileID string, keepAuto, keepExplicit *int) (*admin.PruneResult, error)
	ForceUnlock(ctx context.Context, fileID string) error
	RevokeToken(ctx context.Context, fileID, user string) error
	GetLock(ctx context.Context, fileID string) (*admin.LockInfo, error)
	Import(ctx context.Context, fileID, name, owner, mimeType string, data []byte) (*admin.ImportResult, error)
	Close() error
}

// dial is a seam so tests can swap the gRPC client for a fake.
var dial = func(cfg *config.Config) (AdminAPI, error) {
	return admin.New(cfg.Server, admin.Options{
		User:     cfg.User,
		Secret:   cfg.SecretKey,
		TokenTTL: cfg.TokenTTL,
		Timeout:  cfg.Timeout,
	})
}

// App carries the state shared by the commands of one invocation.
type App struct {
	config     *config.Config
	out        io.Writer
	reader     *bufio.Reader
	jsonOutput bool

	client  AdminAPI
	db      *sql.DB
	history history.Repository
}

// connect dials the server on first use, asking for the secret when it is
// not configured.
func (a *App) connect() (AdminAPI, error) {
	if a.client != nil {
		return a.client, nil
	}
	if a.config.SecretKey == "" {
		pw, err := GetPassword("Server secret: ", a.out)
		if err != nil {
			return nil, fmt.Errorf("read secret: %w", err)
		}
		a.config.SecretKey = strings.TrimSpace(string(pw))
	}
	c, err := dial(a.config)
	if err != nil {
		return nil, err
	}
	a.client = c
	return c, nil
}

// openHistory opens the local history database; a disabled history yields
// a nil repository.
func (a *App) openHistory(ctx context.Context) (history.Repository, error) {
	if a.history != nil || a.config.HistoryDB == "" {
		return a.history, nil
	}
	db, err := history.Open(ctx, a.config.HistoryDB)
	if err != nil {
		return nil, err
	}
	a.db = db
	a.history = history.NewSQLiteRepository(db)
	return a.history, nil
}

// record stores the outcome of a command. History failures are reported
// but never fail the command itself.
func (a *App) record(ctx context.Context, command, fileID, detail string, cmdErr error) {
	repo, err := a.openHistory(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "warning: history unavailable: %v\n", err)
		return
	}
	if repo == nil {
		return
	}
	e := &history.Entry{
		Server:  a.config.Server,
		User:    a.config.User,
		Command: command,
		FileID:  fileID,
		OK:      cmdErr == nil,
		Detail:  detail,
	}
	if cmdErr != nil {
		e.Detail = cmdErr.Error()
	}
	if err := repo.Add(ctx, e); err != nil {
		fmt.Fprintf(os.Stderr, "warning: history not recorded: %v\n", err)
	}
}

// print writes v as indented JSON in --json mode, otherwise the text.
func (a *App) print(v any, text string) error {
	if a.jsonOutput {
		enc := json.NewEncoder(a.out)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	}
	_, err := fmt.Fprintln(a.out, text)
	return err
}

// Close releases the connection and the history database.
func (a *App) Close() error {
	var err error
	if a.client != nil {
		err = a.client.Close()
	}
	if a.db != nil {
		if cerr := a.db.Close(); err == nil {
			err = cerr
		}
	}
	return err
}

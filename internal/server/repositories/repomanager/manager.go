package repomanager

import (
	"context"
	"database/sql"

	"github.com/dmitrijs2005/wopihost/internal/dbx"
	"github.com/dmitrijs2005/wopihost/internal/server/repositories/accesstokens"
	"github.com/dmitrijs2005/wopihost/internal/server/repositories/filelocks"
	"github.com/dmitrijs2005/wopihost/internal/server/repositories/files"
	"github.com/dmitrijs2005/wopihost/internal/server/repositories/versions"
)

// RepositoryManager vends repositories bound to a DBTX, so the same
// constructors serve both plain connections and transactions.
type RepositoryManager interface {
	RunMigrations(context.Context, *sql.DB) error
	Files(db dbx.DBTX) files.Repository
	Versions(db dbx.DBTX) versions.Repository
	AccessTokens(db dbx.DBTX) accesstokens.Repository
	Locks(db dbx.DBTX) filelocks.Repository
}

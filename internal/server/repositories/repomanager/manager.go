package repomanager

import (
	"context"
	"database/sql"

	"github.com/dmitrijs2005/vaultshare/internal/dbx"
	"github.com/dmitrijs2005/vaultshare/internal/server/repositories/files"
	"github.com/dmitrijs2005/vaultshare/internal/server/repositories/refreshtokens"
	"github.com/dmitrijs2005/vaultshare/internal/server/repositories/resets"
	"github.com/dmitrijs2005/vaultshare/internal/server/repositories/shares"
	"github.com/dmitrijs2005/vaultshare/internal/server/repositories/users"
)

// RepositoryManager vends per-entity repositories bound to a DBTX so that
// services can compose several repositories inside one transaction.
type RepositoryManager interface {
	RunMigrations(context.Context, *sql.DB) error
	Users(db dbx.DBTX) users.Repository
	Files(db dbx.DBTX) files.Repository
	Shares(db dbx.DBTX) shares.Repository
	Resets(db dbx.DBTX) resets.Repository
	RefreshTokens(db dbx.DBTX) refreshtokens.Repository
}

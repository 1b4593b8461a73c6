package repomanager

import (
	"context"
	"database/sql"

	"github.com/reelproof/reelproof/internal/dbx"
	"github.com/reelproof/reelproof/internal/server/repositories/mediarecords"
	"github.com/reelproof/reelproof/internal/server/repositories/refreshtokens"
	"github.com/reelproof/reelproof/internal/server/repositories/users"
)

type RepositoryManager interface {
	RunMigrations(context.Context, *sql.DB) error
	Users(db dbx.DBTX) users.Repository
	RefreshTokens(db dbx.DBTX) refreshtokens.Repository
	MediaRecords(db dbx.DBTX) mediarecords.Repository
}

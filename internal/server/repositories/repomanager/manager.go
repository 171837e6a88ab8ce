// Package repomanager wires repository constructors to a storage backend and
// scopes multi-step writes in transactions.
package repomanager

import (
	"context"

	"github.com/dmitrijs2005/gophstore/internal/dbx"
	"github.com/dmitrijs2005/gophstore/internal/server/repositories/products"
	"github.com/dmitrijs2005/gophstore/internal/server/repositories/refreshtokens"
	"github.com/dmitrijs2005/gophstore/internal/server/repositories/resettokens"
	"github.com/dmitrijs2005/gophstore/internal/server/repositories/users"
)

// RepositoryManager vends repositories bound either to the shared connection
// (Conn) or to the transaction handle passed into a WithTx body.
type RepositoryManager interface {
	RunMigrations(ctx context.Context) error
	Ping(ctx context.Context) error
	Conn() dbx.DBTX
	WithTx(ctx context.Context, fn dbx.TxFunc) error

	Users(db dbx.DBTX) users.Repository
	RefreshTokens(db dbx.DBTX) refreshtokens.Repository
	ResetTokens(db dbx.DBTX) resettokens.Repository
	Products(db dbx.DBTX) products.Repository
}

package repomanager

import (
	"context"

	"github.com/dmitrijs2005/gophstore/internal/dbx"
	"github.com/dmitrijs2005/gophstore/internal/server/repositories/memory"
	"github.com/dmitrijs2005/gophstore/internal/server/repositories/products"
	"github.com/dmitrijs2005/gophstore/internal/server/repositories/refreshtokens"
	"github.com/dmitrijs2005/gophstore/internal/server/repositories/resettokens"
	"github.com/dmitrijs2005/gophstore/internal/server/repositories/users"
)

// InMemoryRepositoryManager serves repositories from a memory.Store. State is
// lost when the process exits.
type InMemoryRepositoryManager struct {
	store *memory.Store
}

func NewInMemoryRepositoryManager(store *memory.Store) *InMemoryRepositoryManager {
	if store == nil {
		store = memory.NewStore()
	}
	return &InMemoryRepositoryManager{store: store}
}

func (m *InMemoryRepositoryManager) RunMigrations(context.Context) error { return nil }

func (m *InMemoryRepositoryManager) Ping(ctx context.Context) error { return ctx.Err() }

// Conn returns nil: repositories built from it lock the store per call.
func (m *InMemoryRepositoryManager) Conn() dbx.DBTX { return nil }

func (m *InMemoryRepositoryManager) WithTx(ctx context.Context, fn dbx.TxFunc) error {
	return m.store.WithTx(ctx, fn)
}

func (m *InMemoryRepositoryManager) Users(db dbx.DBTX) users.Repository {
	return m.store.Users(db)
}

func (m *InMemoryRepositoryManager) RefreshTokens(db dbx.DBTX) refreshtokens.Repository {
	return m.store.RefreshTokens(db)
}

func (m *InMemoryRepositoryManager) ResetTokens(db dbx.DBTX) resettokens.Repository {
	return m.store.ResetTokens(db)
}

func (m *InMemoryRepositoryManager) Products(db dbx.DBTX) products.Repository {
	return m.store.Products(db)
}

// Package memory implements the server repositories on top of process-local
// maps. It backs the "memory" storage mode and end-to-end tests.
//
// A Store serializes access with a single mutex. Transactions hold that mutex
// for their whole duration and restore a snapshot when the body fails, so they
// are fully isolated and atomic.
package memory

import (
	"context"
	"database/sql"
	"errors"
	"maps"
	"sync"
	"time"

	"github.com/dmitrijs2005/gophstore/internal/dbx"
	"github.com/dmitrijs2005/gophstore/internal/server/models"
)

// ErrSQLUnsupported is returned by the transaction handle's SQL methods.
var ErrSQLUnsupported = errors.New("memory: sql is not supported")

type state struct {
	users    map[int64]models.User
	refresh  map[string]models.RefreshToken
	resets   map[int64]models.PasswordResetToken
	products map[int64]models.Product

	userSeq, refreshSeq, productSeq int64
}

func (s *state) clone() state {
	c := *s
	c.users = maps.Clone(s.users)
	c.refresh = maps.Clone(s.refresh)
	c.resets = maps.Clone(s.resets)
	c.products = maps.Clone(s.products)
	return c
}

type Store struct {
	mu  sync.Mutex
	st  state
	now func() time.Time
	tx  *txHandle
}

func NewStore() *Store {
	return &Store{
		st: state{
			users:    map[int64]models.User{},
			refresh:  map[string]models.RefreshToken{},
			resets:   map[int64]models.PasswordResetToken{},
			products: map[int64]models.Product{},
		},
		now: time.Now,
		tx:  &txHandle{},
	}
}

// SetClock replaces the clock used for created/updated timestamps.
func (s *Store) SetClock(now func() time.Time) { s.now = now }

// txHandle marks repositories created inside WithTx. It satisfies dbx.DBTX
// only so it can travel through the same signatures as *sql.Tx.
type txHandle struct{}

func (*txHandle) ExecContext(context.Context, string, ...any) (sql.Result, error) {
	return nil, ErrSQLUnsupported
}

func (*txHandle) QueryContext(context.Context, string, ...any) (*sql.Rows, error) {
	return nil, ErrSQLUnsupported
}

func (*txHandle) QueryRowContext(context.Context, string, ...any) *sql.Row { return nil }

// WithTx runs fn while holding the store lock. Changes made by fn are
// discarded when it returns an error or panics.
func (s *Store) WithTx(ctx context.Context, fn dbx.TxFunc) (err error) {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	snap := s.st.clone()
	defer func() {
		if p := recover(); p != nil {
			s.st = snap
			panic(p)
		}
		if err != nil {
			s.st = snap
		}
	}()

	return fn(ctx, s.tx)
}

// inTx reports whether db is this store's transaction handle.
func (s *Store) inTx(db dbx.DBTX) bool {
	h, ok := db.(*txHandle)
	return ok && h == s.tx
}

// table is embedded by every repository view; lock is a no-op inside a transaction.
type table struct {
	s    *Store
	inTx bool
}

func (t table) lock() func() {
	if t.inTx {
		return func() {}
	}
	t.s.mu.Lock()
	return t.s.mu.Unlock
}

func (s *Store) view(db dbx.DBTX) table { return table{s: s, inTx: s.inTx(db)} }

func (s *Store) Users(db dbx.DBTX) *Users { return &Users{s.view(db)} }

func (s *Store) RefreshTokens(db dbx.DBTX) *RefreshTokens { return &RefreshTokens{s.view(db)} }

func (s *Store) ResetTokens(db dbx.DBTX) *ResetTokens { return &ResetTokens{s.view(db)} }

func (s *Store) Products(db dbx.DBTX) *Products { return &Products{s.view(db)} }

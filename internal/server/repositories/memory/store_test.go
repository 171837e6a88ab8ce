package memory

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/dmitrijs2005/gophstore/internal/common"
	"github.com/dmitrijs2005/gophstore/internal/dbx"
	"github.com/dmitrijs2005/gophstore/internal/server/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedUser(t *testing.T, s *Store, email string) *models.User {
	t.Helper()
	u, err := s.Users(nil).Create(context.Background(), &models.User{Email: email, PasswordHash: "h"})
	require.NoError(t, err)
	return u
}

func TestUsers_CreateFindUpdate(t *testing.T) {
	s := NewStore()
	ctx := context.Background()

	u := seedUser(t, s, "ann@example.com")
	assert.Equal(t, int64(1), u.ID)

	_, err := s.Users(nil).Create(ctx, &models.User{Email: "ann@example.com"})
	require.ErrorIs(t, err, common.ErrorAlreadyExists)

	got, err := s.Users(nil).FindByEmail(ctx, "ann@example.com")
	require.NoError(t, err)
	assert.Equal(t, u.ID, got.ID)

	_, err = s.Users(nil).FindByEmail(ctx, "bob@example.com")
	require.ErrorIs(t, err, common.ErrorNotFound)

	require.NoError(t, s.Users(nil).UpdatePasswordHash(ctx, u.ID, "h2"))
	got, err = s.Users(nil).FindByID(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, "h2", got.PasswordHash)

	require.ErrorIs(t, s.Users(nil).UpdatePasswordHash(ctx, 99, "x"), common.ErrorNotFound)
}

func TestRefreshTokens_ConsumeOnce(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	u := seedUser(t, s, "ann@example.com")

	repo := s.RefreshTokens(nil)
	require.NoError(t, repo.Create(ctx, &models.RefreshToken{UserID: u.ID, Token: "t1", ExpiresAt: time.Now().Add(time.Hour)}))
	require.ErrorIs(t, repo.Create(ctx, &models.RefreshToken{UserID: 42, Token: "t2"}), common.ErrorNotFound)

	var wg sync.WaitGroup
	var mu sync.Mutex
	wins := 0
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := repo.Consume(ctx, "t1"); err == nil {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, wins)

	require.NoError(t, repo.Delete(ctx, u.ID, "t1"))
}

func TestRefreshTokens_DeleteChecksOwner(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	owner := seedUser(t, s, "owner@example.com")
	other := seedUser(t, s, "other@example.com")

	repo := s.RefreshTokens(nil)
	require.NoError(t, repo.Create(ctx, &models.RefreshToken{UserID: owner.ID, Token: "t1", ExpiresAt: time.Now().Add(time.Hour)}))

	require.NoError(t, repo.Delete(ctx, other.ID, "t1"))
	_, err := repo.Find(ctx, "t1")
	require.NoError(t, err)

	require.NoError(t, repo.Delete(ctx, owner.ID, "t1"))
	_, err = repo.Find(ctx, "t1")
	assert.ErrorIs(t, err, common.ErrorNotFound)
}

func TestRefreshTokens_DeleteByUser(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	a := seedUser(t, s, "a@example.com")
	b := seedUser(t, s, "b@example.com")

	repo := s.RefreshTokens(nil)
	for _, tok := range []string{"a1", "a2"} {
		require.NoError(t, repo.Create(ctx, &models.RefreshToken{UserID: a.ID, Token: tok}))
	}
	require.NoError(t, repo.Create(ctx, &models.RefreshToken{UserID: b.ID, Token: "b1"}))

	n, err := repo.DeleteByUser(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	_, err = repo.Find(ctx, "b1")
	require.NoError(t, err)
}

func TestResetTokens_UpsertReplacesPerUser(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	u := seedUser(t, s, "ann@example.com")
	repo := s.ResetTokens(nil)
	now := time.Now()

	require.NoError(t, repo.Upsert(ctx, &models.PasswordResetToken{UserID: u.ID, Token: "first", ExpiresAt: now.Add(time.Hour)}))
	require.NoError(t, repo.Upsert(ctx, &models.PasswordResetToken{UserID: u.ID, Token: "second", ExpiresAt: now.Add(time.Hour)}))

	_, err := repo.Find(ctx, "first")
	require.ErrorIs(t, err, common.ErrorNotFound)

	got, err := repo.Consume(ctx, "second")
	require.NoError(t, err)
	assert.Equal(t, u.ID, got.UserID)

	_, err = repo.Consume(ctx, "second")
	require.ErrorIs(t, err, common.ErrorNotFound)
}

func TestResetTokens_DeleteExpired(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	a := seedUser(t, s, "a@example.com")
	b := seedUser(t, s, "b@example.com")
	repo := s.ResetTokens(nil)
	now := time.Now()

	require.NoError(t, repo.Upsert(ctx, &models.PasswordResetToken{UserID: a.ID, Token: "old", ExpiresAt: now.Add(-time.Minute)}))
	require.NoError(t, repo.Upsert(ctx, &models.PasswordResetToken{UserID: b.ID, Token: "live", ExpiresAt: now.Add(time.Hour)}))

	n, err := repo.DeleteExpired(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	_, err = repo.Find(ctx, "live")
	require.NoError(t, err)
}

func TestWithTx_RollsBackOnError(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	boom := errors.New("boom")

	err := s.WithTx(ctx, func(ctx context.Context, tx dbx.DBTX) error {
		_, err := s.Users(tx).Create(ctx, &models.User{Email: "ann@example.com"})
		require.NoError(t, err)
		return boom
	})
	require.ErrorIs(t, err, boom)

	_, err = s.Users(nil).FindByEmail(ctx, "ann@example.com")
	require.ErrorIs(t, err, common.ErrorNotFound)

	// sequence rolls back together with the rows
	u := seedUser(t, s, "bob@example.com")
	assert.Equal(t, int64(1), u.ID)
}

func TestWithTx_CommitsAndRollsBackOnPanic(t *testing.T) {
	s := NewStore()
	ctx := context.Background()

	require.NoError(t, s.WithTx(ctx, func(ctx context.Context, tx dbx.DBTX) error {
		_, err := s.Users(tx).Create(ctx, &models.User{Email: "ann@example.com"})
		return err
	}))

	assert.Panics(t, func() {
		_ = s.WithTx(ctx, func(ctx context.Context, tx dbx.DBTX) error {
			_, _ = s.Users(tx).Create(ctx, &models.User{Email: "bob@example.com"})
			panic("kaput")
		})
	})

	_, err := s.Users(nil).FindByEmail(ctx, "ann@example.com")
	require.NoError(t, err)
	_, err = s.Users(nil).FindByEmail(ctx, "bob@example.com")
	require.ErrorIs(t, err, common.ErrorNotFound)
}

func TestWithTx_CanceledContext(t *testing.T) {
	s := NewStore()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	called := false
	err := s.WithTx(ctx, func(context.Context, dbx.DBTX) error { called = true; return nil })
	require.ErrorIs(t, err, context.Canceled)
	assert.False(t, called)
}

func TestProducts_OwnershipAndList(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	a := seedUser(t, s, "a@example.com")
	b := seedUser(t, s, "b@example.com")

	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	tick := 0
	s.SetClock(func() time.Time { tick++; return base.Add(time.Duration(tick) * time.Minute) })

	repo := s.Products(nil)
	for _, name := range []string{"Red mug", "Blue mug", "Plate"} {
		require.NoError(t, repo.Create(ctx, &models.Product{UserID: a.ID, Name: name}))
	}
	other := &models.Product{UserID: b.ID, Name: "Mug of b"}
	require.NoError(t, repo.Create(ctx, other))

	items, total, err := repo.List(ctx, models.ProductFilter{UserID: a.ID, Search: "MUG", Limit: 1})
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	require.Len(t, items, 1)
	assert.Equal(t, "Blue mug", items[0].Name, "newest first")

	items, _, err = repo.List(ctx, models.ProductFilter{UserID: a.ID, Search: "mug", Offset: 1, Limit: 10})
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "Red mug", items[0].Name)

	items, _, err = repo.List(ctx, models.ProductFilter{UserID: a.ID, Offset: -3, Limit: 10})
	require.NoError(t, err)
	assert.Len(t, items, 3)

	_, err = repo.Get(ctx, a.ID, other.ID)
	require.ErrorIs(t, err, common.ErrorNotFound)
	require.ErrorIs(t, repo.Delete(ctx, a.ID, other.ID), common.ErrorNotFound)
	require.ErrorIs(t, repo.SetImageKey(ctx, a.ID, other.ID, "k"), common.ErrorNotFound)
	require.ErrorIs(t, repo.Update(ctx, &models.Product{ID: other.ID, UserID: a.ID}), common.ErrorNotFound)

	require.NoError(t, repo.SetImageKey(ctx, b.ID, other.ID, "k"))
	got, err := repo.Get(ctx, b.ID, other.ID)
	require.NoError(t, err)
	assert.Equal(t, "k", got.ImageKey)
}

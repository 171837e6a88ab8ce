package memory

import (
	"context"
	"time"

	"github.com/dmitrijs2005/gophstore/internal/common"
	"github.com/dmitrijs2005/gophstore/internal/server/models"
)

type RefreshTokens struct{ table }

func (r *RefreshTokens) Create(ctx context.Context, t *models.RefreshToken) error {
	defer r.lock()()

	if _, ok := r.s.st.users[t.UserID]; !ok {
		return common.ErrorNotFound
	}
	if _, dup := r.s.st.refresh[t.Token]; dup {
		return common.ErrorAlreadyExists
	}
	r.s.st.refreshSeq++
	t.ID = r.s.st.refreshSeq
	t.CreatedAt = r.s.now()
	r.s.st.refresh[t.Token] = *t
	return nil
}

func (r *RefreshTokens) Find(ctx context.Context, token string) (*models.RefreshToken, error) {
	defer r.lock()()

	t, ok := r.s.st.refresh[token]
	if !ok {
		return nil, common.ErrorNotFound
	}
	return &t, nil
}

func (r *RefreshTokens) Consume(ctx context.Context, token string) (*models.RefreshToken, error) {
	defer r.lock()()

	t, ok := r.s.st.refresh[token]
	if !ok {
		return nil, common.ErrorNotFound
	}
	delete(r.s.st.refresh, token)
	return &t, nil
}

func (r *RefreshTokens) Delete(ctx context.Context, userID int64, token string) error {
	defer r.lock()()

	if t, ok := r.s.st.refresh[token]; ok && t.UserID == userID {
		delete(r.s.st.refresh, token)
	}
	return nil
}

func (r *RefreshTokens) DeleteByUser(ctx context.Context, userID int64) (int64, error) {
	defer r.lock()()

	var n int64
	for k, t := range r.s.st.refresh {
		if t.UserID == userID {
			delete(r.s.st.refresh, k)
			n++
		}
	}
	return n, nil
}

// ResetTokens keys rows by user id, which makes the one-token-per-user rule structural.
type ResetTokens struct{ table }

func (r *ResetTokens) Upsert(ctx context.Context, t *models.PasswordResetToken) error {
	defer r.lock()()

	if _, ok := r.s.st.users[t.UserID]; !ok {
		return common.ErrorNotFound
	}
	for uid, cur := range r.s.st.resets {
		if cur.Token == t.Token && uid != t.UserID {
			return common.ErrorAlreadyExists
		}
	}
	t.CreatedAt = r.s.now()
	r.s.st.resets[t.UserID] = *t
	return nil
}

func (r *ResetTokens) lookup(token string) (models.PasswordResetToken, bool) {
	for _, t := range r.s.st.resets {
		if t.Token == token {
			return t, true
		}
	}
	return models.PasswordResetToken{}, false
}

func (r *ResetTokens) Find(ctx context.Context, token string) (*models.PasswordResetToken, error) {
	defer r.lock()()

	t, ok := r.lookup(token)
	if !ok {
		return nil, common.ErrorNotFound
	}
	return &t, nil
}

func (r *ResetTokens) Consume(ctx context.Context, token string) (*models.PasswordResetToken, error) {
	defer r.lock()()

	t, ok := r.lookup(token)
	if !ok {
		return nil, common.ErrorNotFound
	}
	delete(r.s.st.resets, t.UserID)
	return &t, nil
}

func (r *ResetTokens) Delete(ctx context.Context, token string) error {
	defer r.lock()()

	if t, ok := r.lookup(token); ok {
		delete(r.s.st.resets, t.UserID)
	}
	return nil
}

func (r *ResetTokens) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	defer r.lock()()

	var n int64
	for uid, t := range r.s.st.resets {
		if t.Expired(now) {
			delete(r.s.st.resets, uid)
			n++
		}
	}
	return n, nil
}

package memory

import (
	"context"

	"github.com/dmitrijs2005/gophstore/internal/common"
	"github.com/dmitrijs2005/gophstore/internal/server/models"
)

type Users struct{ table }

func (r *Users) Create(ctx context.Context, user *models.User) (*models.User, error) {
	defer r.lock()()

	for _, u := range r.s.st.users {
		if u.Email == user.Email {
			return nil, common.ErrorAlreadyExists
		}
	}

	r.s.st.userSeq++
	now := r.s.now()
	user.ID = r.s.st.userSeq
	user.CreatedAt, user.UpdatedAt = now, now
	r.s.st.users[user.ID] = *user
	return user, nil
}

func (r *Users) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	defer r.lock()()

	for _, u := range r.s.st.users {
		if u.Email == email {
			return &u, nil
		}
	}
	return nil, common.ErrorNotFound
}

func (r *Users) FindByID(ctx context.Context, id int64) (*models.User, error) {
	defer r.lock()()

	u, ok := r.s.st.users[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	return &u, nil
}

func (r *Users) UpdatePasswordHash(ctx context.Context, id int64, hash string) error {
	defer r.lock()()

	u, ok := r.s.st.users[id]
	if !ok {
		return common.ErrorNotFound
	}
	u.PasswordHash = hash
	u.UpdatedAt = r.s.now()
	r.s.st.users[id] = u
	return nil
}

package services

import (
	"errors"
	"sync"

	"golang.org/x/crypto/bcrypt"

	"github.com/dmitrijs2005/gophstore/internal/common"
)

// DefaultBcryptCost is the work factor used for stored password hashes.
const DefaultBcryptCost = 12

var errPasswordMismatch = errors.New("password mismatch")

type PasswordHasher interface {
	Hash(password string) (string, error)
	// Compare returns nil when password matches hash.
	Compare(hash, password string) error
	// CompareDummy spends the same time as a failing Compare. It keeps the
	// response time of unknown-user logins in line with wrong-password ones.
	CompareDummy(password string)
}

type BcryptHasher struct {
	cost int

	dummyOnce sync.Once
	dummy     []byte
}

func NewBcryptHasher(cost int) *BcryptHasher {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = DefaultBcryptCost
	}
	return &BcryptHasher{cost: cost}
}

func (h *BcryptHasher) Hash(password string) (string, error) {
	pw := []byte(password)
	defer common.WipeByteArray(pw)

	b, err := bcrypt.GenerateFromPassword(pw, h.cost)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func (h *BcryptHasher) Compare(hash, password string) error {
	pw := []byte(password)
	defer common.WipeByteArray(pw)

	err := bcrypt.CompareHashAndPassword([]byte(hash), pw)
	if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
		return errPasswordMismatch
	}
	return err
}

func (h *BcryptHasher) CompareDummy(password string) {
	h.dummyOnce.Do(func() {
		h.dummy, _ = bcrypt.GenerateFromPassword([]byte("dummy-password-0"), h.cost)
	})
	_ = bcrypt.CompareHashAndPassword(h.dummy, []byte(password))
}

// Package memory is a mutex-guarded AccountRepository with the same
// uniqueness and atomicity guarantees as the Postgres store. It backs the
// end-to-end HTTP tests.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/Ahmadraza4026/image-search-backend/internal/domain"
	apperrors "github.com/Ahmadraza4026/image-search-backend/pkg/errors"
)

// AccountRepository stores accounts in a map keyed by id.
type AccountRepository struct {
	mu       sync.Mutex
	accounts map[string]*domain.Account
}

func NewAccountRepository() *AccountRepository {
	return &AccountRepository{accounts: make(map[string]*domain.Account)}
}

func (r *AccountRepository) Create(_ context.Context, a *domain.Account) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, existing := range r.accounts {
		if existing.Email == a.Email {
			return apperrors.AlreadyExists("account", "email", a.Email)
		}
		if existing.Username == a.Username {
			return apperrors.AlreadyExists("account", "username", a.Username)
		}
	}
	cp := *a
	r.accounts[a.ID] = &cp
	return nil
}

func (r *AccountRepository) GetByID(_ context.Context, id string) (*domain.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	a, ok := r.accounts[id]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	cp := *a
	return &cp, nil
}

func (r *AccountRepository) GetByEmail(_ context.Context, email string) (*domain.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, a := range r.accounts {
		if a.Email == email {
			cp := *a
			return &cp, nil
		}
	}
	return nil, apperrors.ErrNotFound
}

func (r *AccountRepository) MarkVerified(_ context.Context, id string) error {
	return r.update(id, func(a *domain.Account) { a.IsVerified = true })
}

func (r *AccountRepository) SetRefreshTokenHash(_ context.Context, id, hash string) error {
	return r.update(id, func(a *domain.Account) { a.RefreshTokenHash = hash })
}

func (r *AccountRepository) SwapRefreshTokenHash(_ context.Context, id, oldHash, newHash string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	a, ok := r.accounts[id]
	if !ok || a.RefreshTokenHash == "" || a.RefreshTokenHash != oldHash {
		return false, nil
	}
	a.RefreshTokenHash = newHash
	a.UpdatedAt = time.Now().UTC()
	return true, nil
}

func (r *AccountRepository) SetResetToken(_ context.Context, id, hash string, expiresAt time.Time) error {
	return r.update(id, func(a *domain.Account) {
		a.ResetTokenHash = hash
		a.ResetTokenExpiresAt = &expiresAt
	})
}

func (r *AccountRepository) ConsumeResetToken(_ context.Context, hash, passwordHash string, now time.Time) (*domain.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, a := range r.accounts {
		if a.ResetTokenHash == "" || a.ResetTokenHash != hash {
			continue
		}
		if a.ResetTokenExpiresAt == nil || !a.ResetTokenExpiresAt.After(now) {
			continue
		}
		a.PasswordHash = passwordHash
		a.ResetTokenHash = ""
		a.ResetTokenExpiresAt = nil
		a.RefreshTokenHash = ""
		a.UpdatedAt = now
		cp := *a
		return &cp, nil
	}
	return nil, apperrors.ErrNotFound
}

func (r *AccountRepository) UpdatePassword(_ context.Context, id, passwordHash string) error {
	return r.update(id, func(a *domain.Account) {
		a.PasswordHash = passwordHash
		a.RefreshTokenHash = ""
	})
}

func (r *AccountRepository) update(id string, fn func(*domain.Account)) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	a, ok := r.accounts[id]
	if !ok {
		return apperrors.NotFound("account", id)
	}
	fn(a)
	a.UpdatedAt = time.Now().UTC()
	return nil
}

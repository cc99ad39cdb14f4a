package auth

import (
	"context"
	"errors"
	"fmt"

	roleDatamodel "github.com/frahmantamala/user-management/internal/core/datamodel/role"
	"github.com/frahmantamala/user-management/internal/store"
	"gorm.io/gorm"
)

type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// GetCredentials looks up a live user by username.
func (r *Repository) GetCredentials(ctx context.Context, username string) (*Credentials, error) {
	u, err := store.NewUserRepository(r.db.WithContext(ctx)).FindLiveByUsername(username)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("failed to load credentials: %w", err)
	}
	return &Credentials{UserID: u.ID, PasswordHash: u.PasswordHash, IsActive: u.IsActive}, nil
}

// GetPrincipal loads a live, active user with the codes of its live, enabled roles.
func (r *Repository) GetPrincipal(ctx context.Context, userID int64) (*Principal, error) {
	db := r.db.WithContext(ctx)
	u, err := store.NewUserRepository(db).FindLive(userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrInvalidToken
		}
		return nil, fmt.Errorf("failed to load user: %w", err)
	}
	if !u.IsActive {
		return nil, ErrUserInactive
	}

	var codes []string
	err = db.Table("user_roles").
		Select("roles.code").
		Joins("JOIN roles ON roles.id = user_roles.role_id").
		Where("user_roles.user_id = ? AND user_roles.deleted_at IS NULL AND roles.deleted_at IS NULL AND roles.status = ?", userID, roleDatamodel.StatusEnabled).
		Order("roles.code").
		Pluck("roles.code", &codes).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load user roles: %w", err)
	}

	return &Principal{ID: u.ID, Username: u.Username, Roles: codes}, nil
}

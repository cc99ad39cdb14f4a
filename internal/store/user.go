package store

import (
	"errors"
	"time"

	userDatamodel "github.com/frahmantamala/user-management/internal/core/datamodel/user"
	"gorm.io/gorm"
)

// UserRepository reads and writes the users table.
type UserRepository struct {
	db *gorm.DB
}

func NewUserRepository(db *gorm.DB) *UserRepository {
	return &UserRepository{db: db}
}

func (r *UserRepository) Create(u *userDatamodel.User) error {
	return r.db.Create(u).Error
}

// FindLive returns the user only when it is not soft-deleted.
func (r *UserRepository) FindLive(id int64) (*userDatamodel.User, error) {
	var u userDatamodel.User
	err := r.db.Where("id = ? AND deleted_at IS NULL", id).First(&u).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &u, nil
}

// FindAny returns the user regardless of its lifecycle state.
func (r *UserRepository) FindAny(id int64) (*userDatamodel.User, error) {
	var u userDatamodel.User
	err := r.db.Where("id = ?", id).First(&u).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &u, nil
}

func (r *UserRepository) FindLiveByUsername(username string) (*userDatamodel.User, error) {
	var u userDatamodel.User
	err := r.db.Where("username = ? AND deleted_at IS NULL", username).First(&u).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &u, nil
}

// Update applies a partial update to a live user. updated_at is refreshed by gorm.
func (r *UserRepository) Update(id int64, fields map[string]interface{}) error {
	if len(fields) == 0 {
		return nil
	}
	res := r.db.Model(&userDatamodel.User{}).
		Where("id = ? AND deleted_at IS NULL", id).
		Updates(fields)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// SoftDelete marks a live user deleted and stamps the operation id onto it.
func (r *UserRepository) SoftDelete(id int64, at time.Time, deletionID string) error {
	res := r.db.Model(&userDatamodel.User{}).
		Where("id = ? AND deleted_at IS NULL", id).
		Updates(map[string]interface{}{
			"deleted_at":  at,
			"deletion_id": deletionID,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// Restore clears the soft-delete marker of a deleted user.
func (r *UserRepository) Restore(id int64) error {
	res := r.db.Model(&userDatamodel.User{}).
		Where("id = ? AND deleted_at IS NOT NULL", id).
		Updates(map[string]interface{}{
			"deleted_at":  nil,
			"deletion_id": nil,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

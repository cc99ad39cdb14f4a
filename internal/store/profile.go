package store

import (
	"errors"
	"time"

	userDatamodel "github.com/frahmantamala/user-management/internal/core/datamodel/user"
	"gorm.io/gorm"
)

type ProfileRepository struct {
	db *gorm.DB
}

func NewProfileRepository(db *gorm.DB) *ProfileRepository {
	return &ProfileRepository{db: db}
}

func (r *ProfileRepository) Create(p *userDatamodel.Profile) error {
	return r.db.Create(p).Error
}

func (r *ProfileRepository) FindLive(id int64) (*userDatamodel.Profile, error) {
	return r.first("id = ? AND deleted_at IS NULL", id)
}

func (r *ProfileRepository) FindAny(id int64) (*userDatamodel.Profile, error) {
	return r.first("id = ?", id)
}

// FindLiveByUser returns the single live profile of a user.
func (r *ProfileRepository) FindLiveByUser(userID int64) (*userDatamodel.Profile, error) {
	return r.first("user_id = ? AND deleted_at IS NULL", userID)
}

func (r *ProfileRepository) first(query string, args ...interface{}) (*userDatamodel.Profile, error) {
	var p userDatamodel.Profile
	err := r.db.Where(query, args...).Order("id DESC").First(&p).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &p, nil
}

func (r *ProfileRepository) Update(id int64, fields map[string]interface{}) error {
	if len(fields) == 0 {
		return nil
	}
	res := r.db.Model(&userDatamodel.Profile{}).
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

// SoftDelete deletes one live profile. A nil cascadeID marks a direct delete.
func (r *ProfileRepository) SoftDelete(id int64, at time.Time, cascadeID *string) error {
	res := r.db.Model(&userDatamodel.Profile{}).
		Where("id = ? AND deleted_at IS NULL", id).
		Updates(map[string]interface{}{
			"deleted_at": at,
			"cascade_id": cascadeID,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// SoftDeleteLiveByUser cascades a user delete onto its live profile, if any.
func (r *ProfileRepository) SoftDeleteLiveByUser(userID int64, at time.Time, cascadeID string) (int64, error) {
	res := r.db.Model(&userDatamodel.Profile{}).
		Where("user_id = ? AND deleted_at IS NULL", userID).
		Updates(map[string]interface{}{
			"deleted_at": at,
			"cascade_id": cascadeID,
		})
	return res.RowsAffected, res.Error
}

// RestoreByCascade revives the profile removed by the given user delete.
func (r *ProfileRepository) RestoreByCascade(userID int64, cascadeID string) (int64, error) {
	res := r.db.Model(&userDatamodel.Profile{}).
		Where("user_id = ? AND cascade_id = ? AND deleted_at IS NOT NULL", userID, cascadeID).
		Updates(map[string]interface{}{
			"deleted_at": nil,
			"cascade_id": nil,
		})
	return res.RowsAffected, res.Error
}

func (r *ProfileRepository) Restore(id int64) error {
	res := r.db.Model(&userDatamodel.Profile{}).
		Where("id = ? AND deleted_at IS NOT NULL", id).
		Updates(map[string]interface{}{
			"deleted_at": nil,
			"cascade_id": nil,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// FindByCascade returns the profile removed by the given user delete.
func (r *ProfileRepository) FindByCascade(userID int64, cascadeID string) (*userDatamodel.Profile, error) {
	return r.first("user_id = ? AND cascade_id = ? AND deleted_at IS NOT NULL", userID, cascadeID)
}

// FindLatestByUser returns the most recent profile of a user in any state.
func (r *ProfileRepository) FindLatestByUser(userID int64) (*userDatamodel.Profile, error) {
	return r.first("user_id = ?", userID)
}

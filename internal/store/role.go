package store

import (
	"errors"
	"time"

	roleDatamodel "github.com/frahmantamala/user-management/internal/core/datamodel/role"
	"gorm.io/gorm"
)

type RoleRepository struct {
	db *gorm.DB
}

func NewRoleRepository(db *gorm.DB) *RoleRepository {
	return &RoleRepository{db: db}
}

func (r *RoleRepository) Create(role *roleDatamodel.Role) error {
	return r.db.Create(role).Error
}

func (r *RoleRepository) FindLive(id int64) (*roleDatamodel.Role, error) {
	return r.first("id = ? AND deleted_at IS NULL", id)
}

func (r *RoleRepository) FindAny(id int64) (*roleDatamodel.Role, error) {
	return r.first("id = ?", id)
}

func (r *RoleRepository) FindLiveByCode(code string) (*roleDatamodel.Role, error) {
	return r.first("code = ? AND deleted_at IS NULL", code)
}

func (r *RoleRepository) first(query string, args ...interface{}) (*roleDatamodel.Role, error) {
	var role roleDatamodel.Role
	err := r.db.Where(query, args...).First(&role).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &role, nil
}

// FindLiveByIDs returns the live roles among ids, ordered by id.
func (r *RoleRepository) FindLiveByIDs(ids []int64) ([]roleDatamodel.Role, error) {
	var roles []roleDatamodel.Role
	if len(ids) == 0 {
		return roles, nil
	}
	err := r.db.Where("id IN ? AND deleted_at IS NULL", ids).Order("id ASC").Find(&roles).Error
	return roles, err
}

func (r *RoleRepository) Update(id int64, fields map[string]interface{}) error {
	if len(fields) == 0 {
		return nil
	}
	res := r.db.Model(&roleDatamodel.Role{}).
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

func (r *RoleRepository) SoftDelete(id int64, at time.Time, deletionID string) error {
	res := r.db.Model(&roleDatamodel.Role{}).
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

func (r *RoleRepository) Restore(id int64) error {
	res := r.db.Model(&roleDatamodel.Role{}).
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

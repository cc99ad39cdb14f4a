package store

import (
	"errors"
	"time"

	userDatamodel "github.com/frahmantamala/user-management/internal/core/datamodel/user"
	"gorm.io/gorm"
)

// UserRoleRepository maintains the user_roles link table by hand; there are no
// foreign-key cascades behind it.
type UserRoleRepository struct {
	db *gorm.DB
}

func NewUserRoleRepository(db *gorm.DB) *UserRoleRepository {
	return &UserRoleRepository{db: db}
}

func (r *UserRoleRepository) Create(link *userDatamodel.UserRole) error {
	return r.db.Create(link).Error
}

// FindByPairs returns every link, live or deleted, between the user and the roles.
func (r *UserRoleRepository) FindByPairs(userID int64, roleIDs []int64) ([]userDatamodel.UserRole, error) {
	var links []userDatamodel.UserRole
	if len(roleIDs) == 0 {
		return links, nil
	}
	err := r.db.Where("user_id = ? AND role_id IN ?", userID, roleIDs).
		Order("id DESC").
		Find(&links).Error
	return links, err
}

func (r *UserRoleRepository) FindLivePair(userID, roleID int64) (*userDatamodel.UserRole, error) {
	var link userDatamodel.UserRole
	err := r.db.Where("user_id = ? AND role_id = ? AND deleted_at IS NULL", userID, roleID).First(&link).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &link, nil
}

// CountPair counts links for the pair in any state.
func (r *UserRoleRepository) CountPair(userID, roleID int64) (int64, error) {
	var n int64
	err := r.db.Model(&userDatamodel.UserRole{}).
		Where("user_id = ? AND role_id = ?", userID, roleID).
		Count(&n).Error
	return n, err
}

func (r *UserRoleRepository) ListLiveByUser(userID int64) ([]userDatamodel.UserRole, error) {
	var links []userDatamodel.UserRole
	err := r.db.Where("user_id = ? AND deleted_at IS NULL", userID).Order("role_id ASC").Find(&links).Error
	return links, err
}

func (r *UserRoleRepository) ListByUser(userID int64) ([]userDatamodel.UserRole, error) {
	var links []userDatamodel.UserRole
	err := r.db.Where("user_id = ?", userID).Order("role_id ASC").Find(&links).Error
	return links, err
}

// Revive clears the delete marker of a link.
func (r *UserRoleRepository) Revive(id int64) error {
	res := r.db.Model(&userDatamodel.UserRole{}).
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

func (r *UserRoleRepository) SoftDelete(id int64, at time.Time) error {
	res := r.db.Model(&userDatamodel.UserRole{}).
		Where("id = ? AND deleted_at IS NULL", id).
		Update("deleted_at", at)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *UserRoleRepository) SoftDeleteLiveByUser(userID int64, at time.Time, cascadeID string) (int64, error) {
	res := r.db.Model(&userDatamodel.UserRole{}).
		Where("user_id = ? AND deleted_at IS NULL", userID).
		Updates(map[string]interface{}{
			"deleted_at": at,
			"cascade_id": cascadeID,
		})
	return res.RowsAffected, res.Error
}

func (r *UserRoleRepository) SoftDeleteLiveByRole(roleID int64, at time.Time, cascadeID string) (int64, error) {
	res := r.db.Model(&userDatamodel.UserRole{}).
		Where("role_id = ? AND deleted_at IS NULL", roleID).
		Updates(map[string]interface{}{
			"deleted_at": at,
			"cascade_id": cascadeID,
		})
	return res.RowsAffected, res.Error
}

// RestoreUserCascade revives the links removed by the given user delete whose role is still live.
func (r *UserRoleRepository) RestoreUserCascade(userID int64, cascadeID string) (int64, error) {
	res := r.db.Model(&userDatamodel.UserRole{}).
		Where("user_id = ? AND cascade_id = ? AND deleted_at IS NOT NULL", userID, cascadeID).
		Where("role_id IN (?)", r.db.Table("roles").Select("id").Where("deleted_at IS NULL")).
		Updates(map[string]interface{}{
			"deleted_at": nil,
			"cascade_id": nil,
		})
	return res.RowsAffected, res.Error
}

// RestoreRoleCascade revives the links removed by the given role delete whose user is still live.
func (r *UserRoleRepository) RestoreRoleCascade(roleID int64, cascadeID string) (int64, error) {
	res := r.db.Model(&userDatamodel.UserRole{}).
		Where("role_id = ? AND cascade_id = ? AND deleted_at IS NOT NULL", roleID, cascadeID).
		Where("user_id IN (?)", r.db.Table("users").Select("id").Where("deleted_at IS NULL")).
		Updates(map[string]interface{}{
			"deleted_at": nil,
			"cascade_id": nil,
		})
	return res.RowsAffected, res.Error
}

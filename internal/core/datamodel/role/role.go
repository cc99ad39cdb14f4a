package role

import (
	"time"

	"github.com/frahmantamala/user-management/internal/core/datamodel"
)

const (
	StatusEnabled  = "enabled"
	StatusDisabled = "disabled"
)

type Role struct {
	ID          int64      `gorm:"primaryKey"`
	Code        string     `gorm:"column:code;size:64;not null;uniqueIndex:idx_roles_code_live,where:deleted_at IS NULL"`
	Name        string     `gorm:"column:name;size:128;not null"`
	Description *string    `gorm:"column:description"`
	Status      string     `gorm:"column:status;size:16;not null"`
	CreatedAt   time.Time  `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time  `gorm:"column:updated_at;autoUpdateTime"`
	DeletedAt   *time.Time `gorm:"column:deleted_at;index"`
	DeletionID  *string    `gorm:"column:deletion_id;size:36"`
}

func (Role) TableName() string { return "roles" }

func (r *Role) State() datamodel.Lifecycle { return datamodel.StateOf(r.DeletedAt) }

package user

import (
	"time"

	"github.com/frahmantamala/user-management/internal/core/datamodel"
	"gorm.io/datatypes"
)

// User rows are unique on username and email among live rows only; the partial
// indexes let a soft-deleted name be reused.
type User struct {
	ID           int64      `gorm:"primaryKey"`
	Username     string     `gorm:"column:username;size:64;not null;uniqueIndex:idx_users_username_live,where:deleted_at IS NULL"`
	Email        *string    `gorm:"column:email;size:255;uniqueIndex:idx_users_email_live,where:deleted_at IS NULL"`
	PasswordHash string     `gorm:"column:password_hash;not null"`
	IsActive     bool       `gorm:"column:is_active;not null"`
	CreatedAt    time.Time  `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt    time.Time  `gorm:"column:updated_at;autoUpdateTime"`
	DeletedAt    *time.Time `gorm:"column:deleted_at;index"`
	DeletionID   *string    `gorm:"column:deletion_id;size:36"`
}

func (User) TableName() string { return "users" }

func (u *User) State() datamodel.Lifecycle { return datamodel.StateOf(u.DeletedAt) }

type Profile struct {
	ID        int64          `gorm:"primaryKey"`
	UserID    int64          `gorm:"column:user_id;not null;uniqueIndex:idx_profiles_user_live,where:deleted_at IS NULL"`
	FullName  *string        `gorm:"column:full_name;size:128"`
	Phone     *string        `gorm:"column:phone;size:32;uniqueIndex:idx_profiles_phone_live,where:deleted_at IS NULL"`
	Email     *string        `gorm:"column:email;size:255"`
	AvatarURL *string        `gorm:"column:avatar_url;size:512"`
	Address   *string        `gorm:"column:address;size:512"`
	Birthday  *time.Time     `gorm:"column:birthday;type:date"`
	Meta      datatypes.JSON `gorm:"column:meta"`
	CreatedAt time.Time      `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time      `gorm:"column:updated_at;autoUpdateTime"`
	DeletedAt *time.Time     `gorm:"column:deleted_at;index"`
	CascadeID *string        `gorm:"column:cascade_id;size:36;index"`
}

func (Profile) TableName() string { return "profiles" }

func (p *Profile) State() datamodel.Lifecycle { return datamodel.StateOf(p.DeletedAt) }

// UserRole links a user to a role. CascadeID records the parent delete that
// removed the link so the matching restore can bring it back.
type UserRole struct {
	ID        int64      `gorm:"primaryKey"`
	UserID    int64      `gorm:"column:user_id;not null;uniqueIndex:idx_user_roles_pair_live,where:deleted_at IS NULL"`
	RoleID    int64      `gorm:"column:role_id;not null;uniqueIndex:idx_user_roles_pair_live;index"`
	CreatedAt time.Time  `gorm:"column:created_at;autoCreateTime"`
	DeletedAt *time.Time `gorm:"column:deleted_at;index"`
	CascadeID *string    `gorm:"column:cascade_id;size:36;index"`
}

func (UserRole) TableName() string { return "user_roles" }

func (ur *UserRole) State() datamodel.Lifecycle { return datamodel.StateOf(ur.DeletedAt) }

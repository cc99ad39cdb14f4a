package audit

import (
	"time"

	"gorm.io/datatypes"
)

type Action string

const (
	ActionCreate            Action = "CREATE"
	ActionUpdate            Action = "UPDATE"
	ActionSoftDelete        Action = "SOFT_DELETE"
	ActionRestore           Action = "RESTORE"
	ActionAssignRole        Action = "ASSIGN_ROLE"
	ActionAssignRoleRestore Action = "ASSIGN_ROLE_RESTORE"
	ActionRemoveRole        Action = "REMOVE_ROLE"
)

const (
	TableUsers     = "users"
	TableProfiles  = "profiles"
	TableRoles     = "roles"
	TableUserRoles = "user_roles"
)

// Log is append-only. ActorUserID is nil for system actions.
type Log struct {
	ID          int64          `gorm:"primaryKey"`
	ActorUserID *int64         `gorm:"column:actor_user_id;index"`
	TargetTable string         `gorm:"column:target_table;size:32;not null;index:idx_logs_target"`
	TargetID    string         `gorm:"column:target_id;size:64;not null;index:idx_logs_target"`
	Action      Action         `gorm:"column:action;size:32;not null"`
	Message     string         `gorm:"column:message;not null"`
	Detail      datatypes.JSON `gorm:"column:detail"`
	RequestID   *string        `gorm:"column:request_id;size:64"`
	CreatedAt   time.Time      `gorm:"column:created_at;autoCreateTime;index"`
}

func (Log) TableName() string { return "logs" }

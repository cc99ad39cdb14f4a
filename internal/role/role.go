package role

import (
	"time"

	"github.com/frahmantamala/user-management/internal/core/datamodel"
	roleDatamodel "github.com/frahmantamala/user-management/internal/core/datamodel/role"
)

type Role struct {
	ID          int64               `json:"id"`
	Code        string              `json:"code"`
	Name        string              `json:"name"`
	Description *string             `json:"description,omitempty"`
	Status      string              `json:"status"`
	State       datamodel.Lifecycle `json:"state"`
	CreatedAt   time.Time           `json:"created_at"`
	UpdatedAt   time.Time           `json:"updated_at"`
	DeletedAt   *time.Time          `json:"deleted_at,omitempty"`
}

type CreateRoleInput struct {
	Code        string  `json:"code"`
	Name        string  `json:"name"`
	Description *string `json:"description,omitempty"`
	Status      string  `json:"status,omitempty"`
}

type RolePatch struct {
	Code        *string `json:"code,omitempty"`
	Name        *string `json:"name,omitempty"`
	Description *string `json:"description,omitempty"`
	Status      *string `json:"status,omitempty"`
}

func FromDataModel(r *roleDatamodel.Role) *Role {
	return &Role{
		ID:          r.ID,
		Code:        r.Code,
		Name:        r.Name,
		Description: r.Description,
		Status:      r.Status,
		State:       r.State(),
		CreatedAt:   r.CreatedAt,
		UpdatedAt:   r.UpdatedAt,
		DeletedAt:   r.DeletedAt,
	}
}

package role

import (
	"github.com/frahmantamala/user-management/internal"
	"github.com/frahmantamala/user-management/internal/core/common/validation"
	roleDatamodel "github.com/frahmantamala/user-management/internal/core/datamodel/role"
)

func (in CreateRoleInput) Validate() *internal.AppError {
	v := validation.NewValidator()
	validation.RoleCode(v, "code", in.Code).Required()
	v.Field("name", in.Name).Required().MaxLength(128)
	v.Field("description", in.Description).MaxLength(1024)
	v.Field("status", in.Status).OneOf(roleDatamodel.StatusEnabled, roleDatamodel.StatusDisabled)
	return v.Validate()
}

func (p RolePatch) Validate() *internal.AppError {
	v := validation.NewValidator()
	if p.Code != nil {
		validation.RoleCode(v, "code", p.Code).Required()
	}
	if p.Name != nil {
		v.Field("name", p.Name).Required().MaxLength(128)
	}
	v.Field("description", p.Description).MaxLength(1024)
	v.Field("status", p.Status).OneOf(roleDatamodel.StatusEnabled, roleDatamodel.StatusDisabled)
	return v.Validate()
}

package user

import (
	"github.com/frahmantamala/user-management/internal"
	"github.com/frahmantamala/user-management/internal/core/common/validation"
)

// CreateUserDTO is the request payload for creating a user. The password is
// hashed by the handler before it reaches the Service.
type CreateUserDTO struct {
	Username string         `json:"username"`
	Password string         `json:"password"`
	Email    *string        `json:"email,omitempty"`
	Profile  *ProfileFields `json:"profile,omitempty"`
	RoleIDs  []int64        `json:"role_ids,omitempty"`
}

func (dto CreateUserDTO) Validate() *internal.AppError {
	v := validation.NewValidator()
	validation.Username(v, "username", dto.Username).Required()
	v.Field("password", dto.Password).Required().MinLength(8).MaxLength(72)
	v.Field("email", dto.Email).Email().MaxLength(255)
	v.Field("role_ids", dto.RoleIDs).PositiveIDs()
	if dto.Profile != nil {
		dto.Profile.addRules(v, "profile.")
	}
	return v.Validate()
}

// RegisterDTO is the self-service sign-up payload. Roles are never chosen by the
// caller; the configured default role applies.
type RegisterDTO struct {
	Username string         `json:"username"`
	Password string         `json:"password"`
	Email    *string        `json:"email,omitempty"`
	Profile  *ProfileFields `json:"profile,omitempty"`
}

func (dto RegisterDTO) Validate() *internal.AppError {
	return CreateUserDTO{
		Username: dto.Username,
		Password: dto.Password,
		Email:    dto.Email,
		Profile:  dto.Profile,
	}.Validate()
}

type UpdateUserDTO struct {
	Username *string        `json:"username,omitempty"`
	Email    *string        `json:"email,omitempty"`
	Password *string        `json:"password,omitempty"`
	IsActive *bool          `json:"is_active,omitempty"`
	Profile  *ProfileFields `json:"profile,omitempty"`
}

func (dto UpdateUserDTO) Validate() *internal.AppError {
	v := validation.NewValidator()
	if dto.Username != nil {
		validation.Username(v, "username", dto.Username).Required()
	}
	v.Field("email", dto.Email).Email().MaxLength(255)
	if dto.Password != nil {
		v.Field("password", dto.Password).Required().MinLength(8).MaxLength(72)
	}
	if dto.Profile != nil {
		dto.Profile.addRules(v, "profile.")
	}
	return v.Validate()
}

type AssignRolesDTO struct {
	RoleIDs []int64 `json:"role_ids"`
}

func (dto AssignRolesDTO) Validate() *internal.AppError {
	v := validation.NewValidator()
	v.Field("role_ids", dto.RoleIDs).Required().PositiveIDs()
	return v.Validate()
}

func (f ProfileFields) Validate() *internal.AppError {
	v := validation.NewValidator()
	f.addRules(v, "")
	return v.Validate()
}

func (f ProfileFields) addRules(v *validation.ValidationBuilder, prefix string) {
	v.Field(prefix+"full_name", f.FullName).MaxLength(128)
	validation.Phone(v, prefix+"phone", f.Phone).MaxLength(32)
	v.Field(prefix+"email", f.Email).Email().MaxLength(255)
	v.Field(prefix+"avatar_url", f.AvatarURL).MaxLength(512)
	v.Field(prefix+"address", f.Address).MaxLength(512)
	v.Field(prefix+"birthday", f.Birthday).NotFuture()
}

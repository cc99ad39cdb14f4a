package user

import (
	"time"

	"github.com/frahmantamala/user-management/internal/core/datamodel"
	userDatamodel "github.com/frahmantamala/user-management/internal/core/datamodel/user"
	"gorm.io/datatypes"
)

// User is the outward view of a users row. It never carries the password hash.
type User struct {
	ID        int64               `json:"id"`
	Username  string              `json:"username"`
	Email     *string             `json:"email,omitempty"`
	IsActive  bool                `json:"is_active"`
	State     datamodel.Lifecycle `json:"state"`
	CreatedAt time.Time           `json:"created_at"`
	UpdatedAt time.Time           `json:"updated_at"`
	DeletedAt *time.Time          `json:"deleted_at,omitempty"`
}

type Profile struct {
	ID        int64               `json:"id"`
	UserID    int64               `json:"user_id"`
	FullName  *string             `json:"full_name,omitempty"`
	Phone     *string             `json:"phone,omitempty"`
	Email     *string             `json:"email,omitempty"`
	AvatarURL *string             `json:"avatar_url,omitempty"`
	Address   *string             `json:"address,omitempty"`
	Birthday  *time.Time          `json:"birthday,omitempty"`
	Meta      datatypes.JSON      `json:"meta,omitempty"`
	State     datamodel.Lifecycle `json:"state"`
	CreatedAt time.Time           `json:"created_at"`
	UpdatedAt time.Time           `json:"updated_at"`
	DeletedAt *time.Time          `json:"deleted_at,omitempty"`
}

type RoleLink struct {
	RoleID    int64               `json:"role_id"`
	State     datamodel.Lifecycle `json:"state"`
	CreatedAt time.Time           `json:"created_at"`
	DeletedAt *time.Time          `json:"deleted_at,omitempty"`
}

// Aggregate is a user with its profile and role links. It is only ever mutated
// through Service operations.
type Aggregate struct {
	User    User       `json:"user"`
	Profile *Profile   `json:"profile,omitempty"`
	Roles   []RoleLink `json:"roles"`
}

// LiveRoleIDs returns the role ids of the live links.
func (a *Aggregate) LiveRoleIDs() []int64 {
	ids := make([]int64, 0, len(a.Roles))
	for _, l := range a.Roles {
		if l.State == datamodel.Live {
			ids = append(ids, l.RoleID)
		}
	}
	return ids
}

// ProfileFields carries optional profile columns. A nil field is left untouched on update.
type ProfileFields struct {
	FullName  *string        `json:"full_name,omitempty"`
	Phone     *string        `json:"phone,omitempty"`
	Email     *string        `json:"email,omitempty"`
	AvatarURL *string        `json:"avatar_url,omitempty"`
	Address   *string        `json:"address,omitempty"`
	Birthday  *time.Time     `json:"birthday,omitempty"`
	Meta      datatypes.JSON `json:"meta,omitempty"`
}

type CreateUserInput struct {
	Username     string         `json:"username"`
	PasswordHash string         `json:"password_hash"`
	Email        *string        `json:"email,omitempty"`
	Profile      *ProfileFields `json:"profile,omitempty"`
	RoleIDs      []int64        `json:"role_ids,omitempty"`
}

// UserPatch is a partial update. An empty Email clears the address.
type UserPatch struct {
	Username     *string        `json:"username,omitempty"`
	Email        *string        `json:"email,omitempty"`
	PasswordHash *string        `json:"password_hash,omitempty"`
	IsActive     *bool          `json:"is_active,omitempty"`
	Profile      *ProfileFields `json:"profile,omitempty"`
}

// AssignResult reports what AssignRoles did per role id.
type AssignResult struct {
	Assigned []int64 `json:"assigned"`
	Restored []int64 `json:"restored"`
	Skipped  []int64 `json:"skipped"`
}

func FromDataModel(u *userDatamodel.User) *User {
	return &User{
		ID:        u.ID,
		Username:  u.Username,
		Email:     u.Email,
		IsActive:  u.IsActive,
		State:     u.State(),
		CreatedAt: u.CreatedAt,
		UpdatedAt: u.UpdatedAt,
		DeletedAt: u.DeletedAt,
	}
}

func ProfileFromDataModel(p *userDatamodel.Profile) *Profile {
	return &Profile{
		ID:        p.ID,
		UserID:    p.UserID,
		FullName:  p.FullName,
		Phone:     p.Phone,
		Email:     p.Email,
		AvatarURL: p.AvatarURL,
		Address:   p.Address,
		Birthday:  p.Birthday,
		Meta:      p.Meta,
		State:     p.State(),
		CreatedAt: p.CreatedAt,
		UpdatedAt: p.UpdatedAt,
		DeletedAt: p.DeletedAt,
	}
}

func linksFromDataModel(links []userDatamodel.UserRole) []RoleLink {
	out := make([]RoleLink, 0, len(links))
	for i := range links {
		out = append(out, RoleLink{
			RoleID:    links[i].RoleID,
			State:     links[i].State(),
			CreatedAt: links[i].CreatedAt,
			DeletedAt: links[i].DeletedAt,
		})
	}
	return out
}

func (f *ProfileFields) toDataModel(userID int64) *userDatamodel.Profile {
	return &userDatamodel.Profile{
		UserID:    userID,
		FullName:  f.FullName,
		Phone:     optional(f.Phone),
		Email:     optional(f.Email),
		AvatarURL: f.AvatarURL,
		Address:   f.Address,
		Birthday:  f.Birthday,
		Meta:      f.Meta,
	}
}

// updates returns the columns a profile patch touches.
func (f *ProfileFields) updates() map[string]interface{} {
	fields := make(map[string]interface{})
	if f.FullName != nil {
		fields["full_name"] = *f.FullName
	}
	if f.Phone != nil {
		fields["phone"] = optional(f.Phone)
	}
	if f.Email != nil {
		fields["email"] = optional(f.Email)
	}
	if f.AvatarURL != nil {
		fields["avatar_url"] = *f.AvatarURL
	}
	if f.Address != nil {
		fields["address"] = *f.Address
	}
	if f.Birthday != nil {
		fields["birthday"] = *f.Birthday
	}
	if f.Meta != nil {
		fields["meta"] = f.Meta
	}
	return fields
}

// optional turns an empty string into NULL so it never collides on a unique index.
func optional(s *string) *string {
	if s == nil || *s == "" {
		return nil
	}
	v := *s
	return &v
}

func dedupe(ids []int64) []int64 {
	seen := make(map[int64]struct{}, len(ids))
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

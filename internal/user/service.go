package user

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/frahmantamala/user-management/internal"
	"github.com/frahmantamala/user-management/internal/audit"
	"github.com/frahmantamala/user-management/internal/core/datamodel"
	auditDatamodel "github.com/frahmantamala/user-management/internal/core/datamodel/audit"
	userDatamodel "github.com/frahmantamala/user-management/internal/core/datamodel/user"
	"github.com/frahmantamala/user-management/internal/store"
	"github.com/frahmantamala/user-management/internal/uniqueness"
	"github.com/frahmantamala/user-management/pkg/logger"
	"github.com/google/uuid"
)

// Service performs every mutation of the user aggregate. Each operation runs in one
// transaction and either commits all of its rows, log included, or none.
type Service struct {
	runner          *store.Runner
	recorder        *audit.Recorder
	defaultRoleCode string
	logger          *slog.Logger
	now             func() time.Time
	newID           func() string
}

type Option func(*Service)

// WithDefaultRoleCode names the role given to users created without roles. It is
// looked up on every call.
func WithDefaultRoleCode(code string) Option {
	return func(s *Service) { s.defaultRoleCode = code }
}

func WithLogger(lg *slog.Logger) Option {
	return func(s *Service) {
		if lg != nil {
			s.logger = lg
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func NewService(runner *store.Runner, recorder *audit.Recorder, opts ...Option) *Service {
	s := &Service{
		runner:   runner,
		recorder: recorder,
		logger:   logger.LoggerWrapper(),
		now:      time.Now,
		newID:    uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) CreateUser(ctx context.Context, in CreateUserInput, actorID *int64) (*User, error) {
	if in.Username == "" || in.PasswordHash == "" {
		return nil, internal.NewValidationError("username and password hash are required", internal.ErrCodeValidationFailed)
	}

	var created *userDatamodel.User
	err := s.runner.InTx(ctx, func(tx *store.Tx) error {
		if err := uniqueness.Require(ctx, tx.DB(), uniqueness.UserUsername, in.Username, nil); err != nil {
			return err
		}
		email := optional(in.Email)
		if email != nil {
			if err := uniqueness.Require(ctx, tx.DB(), uniqueness.UserEmail, *email, nil); err != nil {
				return err
			}
		}
		if in.Profile != nil {
			if phone := optional(in.Profile.Phone); phone != nil {
				if err := uniqueness.Require(ctx, tx.DB(), uniqueness.ProfilePhone, *phone, nil); err != nil {
					return err
				}
			}
		}

		roleIDs, err := s.resolveRoles(tx, dedupe(in.RoleIDs))
		if err != nil {
			return err
		}

		u := &userDatamodel.User{
			Username:     in.Username,
			Email:        email,
			PasswordHash: in.PasswordHash,
			IsActive:     true,
		}
		if err := tx.Users.Create(u); err != nil {
			return fmt.Errorf("failed to create user: %w", err)
		}

		if in.Profile != nil {
			if err := tx.Profiles.Create(in.Profile.toDataModel(u.ID)); err != nil {
				return fmt.Errorf("failed to create profile: %w", err)
			}
		}

		for _, roleID := range roleIDs {
			if err := tx.UserRoles.Create(&userDatamodel.UserRole{UserID: u.ID, RoleID: roleID}); err != nil {
				return fmt.Errorf("failed to assign role %d: %w", roleID, err)
			}
		}

		created = u
		return s.recorder.Record(ctx, tx, audit.Entry{
			ActorID:  actorID,
			Table:    auditDatamodel.TableUsers,
			TargetID: audit.Target(u.ID),
			Action:   auditDatamodel.ActionCreate,
			Message:  fmt.Sprintf("created user %s", u.Username),
			Detail: map[string]interface{}{
				"profile_created": in.Profile != nil,
				"role_ids":        roleIDs,
			},
		})
	})
	if err != nil {
		return nil, err
	}

	logger.From(ctx).InfoContext(ctx, "user created", "user_id", created.ID, "username", created.Username)
	return FromDataModel(created), nil
}

// resolveRoles checks that every requested role is live. With no roles requested it
// falls back to the configured default role, if any.
func (s *Service) resolveRoles(tx *store.Tx, roleIDs []int64) ([]int64, error) {
	if len(roleIDs) == 0 {
		if s.defaultRoleCode == "" {
			return nil, nil
		}
		role, err := tx.Roles.FindLiveByCode(s.defaultRoleCode)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return nil, internal.NewNotFoundError(fmt.Sprintf("default role %q not found", s.defaultRoleCode), internal.ErrCodeRoleNotFound)
			}
			return nil, fmt.Errorf("failed to load default role: %w", err)
		}
		return []int64{role.ID}, nil
	}

	roles, err := tx.Roles.FindLiveByIDs(roleIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to load roles: %w", err)
	}
	if len(roles) != len(roleIDs) {
		found := make(map[int64]struct{}, len(roles))
		for _, r := range roles {
			found[r.ID] = struct{}{}
		}
		missing := make([]int64, 0)
		for _, id := range roleIDs {
			if _, ok := found[id]; !ok {
				missing = append(missing, id)
			}
		}
		return nil, internal.NewNotFoundError("role ids not found", internal.ErrCodeRoleNotFound).
			WithDetails(map[string]interface{}{"missing_role_ids": missing})
	}
	return roleIDs, nil
}

func (s *Service) UpdateUser(ctx context.Context, id int64, patch UserPatch, actorID *int64) (*User, error) {
	var updated *userDatamodel.User
	err := s.runner.InTx(ctx, func(tx *store.Tx) error {
		u, err := loadLiveUser(tx, id)
		if err != nil {
			return err
		}

		fields := map[string]interface{}{"updated_at": s.now()}
		if patch.Username != nil && *patch.Username != u.Username {
			if *patch.Username == "" {
				return internal.NewValidationFieldError("username", "username cannot be empty", internal.ErrCodeValidationFailed)
			}
			if err := uniqueness.Require(ctx, tx.DB(), uniqueness.UserUsername, *patch.Username, &id); err != nil {
				return err
			}
			fields["username"] = *patch.Username
		}
		if patch.Email != nil {
			email := optional(patch.Email)
			if email != nil && (u.Email == nil || *u.Email != *email) {
				if err := uniqueness.Require(ctx, tx.DB(), uniqueness.UserEmail, *email, &id); err != nil {
					return err
				}
			}
			fields["email"] = email
		}
		if patch.PasswordHash != nil {
			if *patch.PasswordHash == "" {
				return internal.NewValidationFieldError("password_hash", "password hash cannot be empty", internal.ErrCodeValidationFailed)
			}
			fields["password_hash"] = *patch.PasswordHash
		}
		if patch.IsActive != nil {
			fields["is_active"] = *patch.IsActive
		}

		if err := tx.Users.Update(id, fields); err != nil {
			return fmt.Errorf("failed to update user: %w", err)
		}

		if patch.Profile != nil {
			if err := s.upsertProfile(ctx, tx, id, patch.Profile); err != nil {
				return err
			}
		}

		if err := s.recorder.Record(ctx, tx, audit.Entry{
			ActorID:  actorID,
			Table:    auditDatamodel.TableUsers,
			TargetID: audit.Target(id),
			Action:   auditDatamodel.ActionUpdate,
			Message:  fmt.Sprintf("updated user %s", u.Username),
			Detail:   patch,
		}); err != nil {
			return err
		}

		updated, err = tx.Users.FindAny(id)
		if err != nil {
			return fmt.Errorf("failed to reload user: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	logger.From(ctx).InfoContext(ctx, "user updated", "user_id", id)
	return FromDataModel(updated), nil
}

// upsertProfile patches the live profile or creates one when the user has none.
func (s *Service) upsertProfile(ctx context.Context, tx *store.Tx, userID int64, fields *ProfileFields) error {
	existing, err := tx.Profiles.FindLiveByUser(userID)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("failed to load profile: %w", err)
	}

	if existing == nil {
		if phone := optional(fields.Phone); phone != nil {
			if err := uniqueness.Require(ctx, tx.DB(), uniqueness.ProfilePhone, *phone, nil); err != nil {
				return err
			}
		}
		if err := tx.Profiles.Create(fields.toDataModel(userID)); err != nil {
			return fmt.Errorf("failed to create profile: %w", err)
		}
		return nil
	}

	if phone := optional(fields.Phone); phone != nil {
		if err := uniqueness.Require(ctx, tx.DB(), uniqueness.ProfilePhone, *phone, &existing.ID); err != nil {
			return err
		}
	}
	updates := fields.updates()
	if len(updates) == 0 {
		return nil
	}
	if err := tx.Profiles.Update(existing.ID, updates); err != nil {
		return fmt.Errorf("failed to update profile: %w", err)
	}
	return nil
}

// SoftDeleteUser deletes the user, its live profile and its live role links. The
// children are stamped with the delete's id so RestoreUser can find them again.
func (s *Service) SoftDeleteUser(ctx context.Context, id int64, actorID *int64) error {
	err := s.runner.InTx(ctx, func(tx *store.Tx) error {
		u, err := loadLiveUser(tx, id)
		if err != nil {
			return err
		}

		now := s.now()
		deletionID := s.newID()
		if err := tx.Users.SoftDelete(id, now, deletionID); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return userNotFound()
			}
			return fmt.Errorf("failed to delete user: %w", err)
		}
		profiles, err := tx.Profiles.SoftDeleteLiveByUser(id, now, deletionID)
		if err != nil {
			return fmt.Errorf("failed to delete profile: %w", err)
		}
		links, err := tx.UserRoles.SoftDeleteLiveByUser(id, now, deletionID)
		if err != nil {
			return fmt.Errorf("failed to delete role links: %w", err)
		}

		return s.recorder.Record(ctx, tx, audit.Entry{
			ActorID:  actorID,
			Table:    auditDatamodel.TableUsers,
			TargetID: audit.Target(id),
			Action:   auditDatamodel.ActionSoftDelete,
			Message:  fmt.Sprintf("soft deleted user %s", u.Username),
			Detail: map[string]interface{}{
				"deletion_id": deletionID,
				"profiles":    profiles,
				"role_links":  links,
			},
		})
	})
	if err != nil {
		return err
	}

	logger.From(ctx).InfoContext(ctx, "user soft deleted", "user_id", id)
	return nil
}

// RestoreUser brings back a deleted user with the profile and links its delete
// removed. Links whose role has since been deleted stay deleted.
func (s *Service) RestoreUser(ctx context.Context, id int64, actorID *int64) (*User, error) {
	var restored *userDatamodel.User
	err := s.runner.InTx(ctx, func(tx *store.Tx) error {
		u, err := tx.Users.FindAny(id)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return userNotFound()
			}
			return fmt.Errorf("failed to load user: %w", err)
		}

		switch u.State() {
		case datamodel.Live:
			return internal.NewConflictError("user is not deleted", internal.ErrCodeNotDeleted)
		case datamodel.Deleted:
		}

		if err := uniqueness.Require(ctx, tx.DB(), uniqueness.UserUsername, u.Username, &id); err != nil {
			return err
		}
		if u.Email != nil {
			if err := uniqueness.Require(ctx, tx.DB(), uniqueness.UserEmail, *u.Email, &id); err != nil {
				return err
			}
		}

		if err := tx.Users.Restore(id); err != nil {
			return fmt.Errorf("failed to restore user: %w", err)
		}

		var profiles, links int64
		if u.DeletionID != nil {
			deletionID := *u.DeletionID
			if err := s.requireCascadedPhoneFree(ctx, tx, id, deletionID); err != nil {
				return err
			}
			if profiles, err = tx.Profiles.RestoreByCascade(id, deletionID); err != nil {
				return fmt.Errorf("failed to restore profile: %w", err)
			}
			if links, err = tx.UserRoles.RestoreUserCascade(id, deletionID); err != nil {
				return fmt.Errorf("failed to restore role links: %w", err)
			}
		}

		if err := s.recorder.Record(ctx, tx, audit.Entry{
			ActorID:  actorID,
			Table:    auditDatamodel.TableUsers,
			TargetID: audit.Target(id),
			Action:   auditDatamodel.ActionRestore,
			Message:  fmt.Sprintf("restored user %s", u.Username),
			Detail: map[string]interface{}{
				"profiles":   profiles,
				"role_links": links,
			},
		}); err != nil {
			return err
		}

		restored, err = tx.Users.FindAny(id)
		if err != nil {
			return fmt.Errorf("failed to reload user: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	logger.From(ctx).InfoContext(ctx, "user restored", "user_id", id)
	return FromDataModel(restored), nil
}

func (s *Service) requireCascadedPhoneFree(ctx context.Context, tx *store.Tx, userID int64, cascadeID string) error {
	p, err := tx.Profiles.FindByCascade(userID, cascadeID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil
		}
		return fmt.Errorf("failed to load profile: %w", err)
	}
	if p.Phone == nil {
		return nil
	}
	return uniqueness.Require(ctx, tx.DB(), uniqueness.ProfilePhone, *p.Phone, &p.ID)
}

// GetUser returns a live user.
func (s *Service) GetUser(ctx context.Context, id int64) (*User, error) {
	var found *userDatamodel.User
	err := s.runner.InTx(ctx, func(tx *store.Tx) error {
		u, err := loadLiveUser(tx, id)
		if err != nil {
			return err
		}
		found = u
		return nil
	})
	if err != nil {
		return nil, err
	}
	return FromDataModel(found), nil
}

// GetAggregate loads the user with its profile and links. With includeDeleted a
// deleted user is returned together with its deleted children.
func (s *Service) GetAggregate(ctx context.Context, id int64, includeDeleted bool) (*Aggregate, error) {
	var agg *Aggregate
	err := s.runner.InTx(ctx, func(tx *store.Tx) error {
		u, err := tx.Users.FindAny(id)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return userNotFound()
			}
			return fmt.Errorf("failed to load user: %w", err)
		}
		if u.State() == datamodel.Deleted && !includeDeleted {
			return userNotFound()
		}

		agg = &Aggregate{User: *FromDataModel(u)}

		var links []userDatamodel.UserRole
		if includeDeleted {
			links, err = tx.UserRoles.ListByUser(id)
		} else {
			links, err = tx.UserRoles.ListLiveByUser(id)
		}
		if err != nil {
			return fmt.Errorf("failed to load role links: %w", err)
		}
		agg.Roles = linksFromDataModel(links)

		var p *userDatamodel.Profile
		if includeDeleted {
			p, err = tx.Profiles.FindLatestByUser(id)
		} else {
			p, err = tx.Profiles.FindLiveByUser(id)
		}
		if err != nil && !errors.Is(err, store.ErrNotFound) {
			return fmt.Errorf("failed to load profile: %w", err)
		}
		if p != nil {
			agg.Profile = ProfileFromDataModel(p)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return agg, nil
}

func loadLiveUser(tx *store.Tx, id int64) (*userDatamodel.User, error) {
	u, err := tx.Users.FindLive(id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, userNotFound()
		}
		return nil, fmt.Errorf("failed to load user: %w", err)
	}
	return u, nil
}

func userNotFound() *internal.AppError {
	return internal.NewNotFoundError("user not found", internal.ErrCodeUserNotFound)
}

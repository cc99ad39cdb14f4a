package role

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
	roleDatamodel "github.com/frahmantamala/user-management/internal/core/datamodel/role"
	"github.com/frahmantamala/user-management/internal/store"
	"github.com/frahmantamala/user-management/internal/uniqueness"
	"github.com/frahmantamala/user-management/pkg/logger"
	"github.com/google/uuid"
)

// Service manages the role aggregate. Deleting a role cascades to its live user
// links only; users are never touched.
type Service struct {
	runner   *store.Runner
	recorder *audit.Recorder
	logger   *slog.Logger
	now      func() time.Time
	newID    func() string
}

func NewService(runner *store.Runner, recorder *audit.Recorder, lg *slog.Logger) *Service {
	if lg == nil {
		lg = logger.LoggerWrapper()
	}
	return &Service{
		runner:   runner,
		recorder: recorder,
		logger:   lg,
		now:      time.Now,
		newID:    uuid.NewString,
	}
}

func (s *Service) CreateRole(ctx context.Context, in CreateRoleInput, actorID *int64) (*Role, error) {
	if in.Code == "" || in.Name == "" {
		return nil, internal.NewValidationError("code and name are required", internal.ErrCodeValidationFailed)
	}
	status := in.Status
	if status == "" {
		status = roleDatamodel.StatusEnabled
	}

	var created *roleDatamodel.Role
	err := s.runner.InTx(ctx, func(tx *store.Tx) error {
		if err := uniqueness.Require(ctx, tx.DB(), uniqueness.RoleCode, in.Code, nil); err != nil {
			return err
		}

		r := &roleDatamodel.Role{
			Code:        in.Code,
			Name:        in.Name,
			Description: in.Description,
			Status:      status,
		}
		if err := tx.Roles.Create(r); err != nil {
			return fmt.Errorf("failed to create role: %w", err)
		}
		created = r

		return s.recorder.Record(ctx, tx, audit.Entry{
			ActorID:  actorID,
			Table:    auditDatamodel.TableRoles,
			TargetID: audit.Target(r.ID),
			Action:   auditDatamodel.ActionCreate,
			Message:  fmt.Sprintf("created role %s", r.Code),
			Detail:   in,
		})
	})
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "role created", "role_id", created.ID, "code", created.Code)
	return FromDataModel(created), nil
}

func (s *Service) UpdateRole(ctx context.Context, id int64, patch RolePatch, actorID *int64) (*Role, error) {
	var updated *roleDatamodel.Role
	err := s.runner.InTx(ctx, func(tx *store.Tx) error {
		r, err := loadLiveRole(tx, id)
		if err != nil {
			return err
		}

		fields := map[string]interface{}{"updated_at": s.now()}
		if patch.Code != nil && *patch.Code != r.Code {
			if err := uniqueness.Require(ctx, tx.DB(), uniqueness.RoleCode, *patch.Code, &id); err != nil {
				return err
			}
			fields["code"] = *patch.Code
		}
		if patch.Name != nil {
			fields["name"] = *patch.Name
		}
		if patch.Description != nil {
			fields["description"] = *patch.Description
		}
		if patch.Status != nil {
			fields["status"] = *patch.Status
		}

		if err := tx.Roles.Update(id, fields); err != nil {
			return fmt.Errorf("failed to update role: %w", err)
		}

		if err := s.recorder.Record(ctx, tx, audit.Entry{
			ActorID:  actorID,
			Table:    auditDatamodel.TableRoles,
			TargetID: audit.Target(id),
			Action:   auditDatamodel.ActionUpdate,
			Message:  fmt.Sprintf("updated role %s", r.Code),
			Detail:   patch,
		}); err != nil {
			return err
		}

		updated, err = tx.Roles.FindAny(id)
		if err != nil {
			return fmt.Errorf("failed to reload role: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return FromDataModel(updated), nil
}

// SoftDeleteRole deletes the role and its live links, stamping both with one
// deletion id.
func (s *Service) SoftDeleteRole(ctx context.Context, id int64, actorID *int64) error {
	err := s.runner.InTx(ctx, func(tx *store.Tx) error {
		r, err := loadLiveRole(tx, id)
		if err != nil {
			return err
		}

		now := s.now()
		deletionID := s.newID()
		if err := tx.Roles.SoftDelete(id, now, deletionID); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return roleNotFound()
			}
			return fmt.Errorf("failed to delete role: %w", err)
		}
		links, err := tx.UserRoles.SoftDeleteLiveByRole(id, now, deletionID)
		if err != nil {
			return fmt.Errorf("failed to delete role links: %w", err)
		}

		return s.recorder.Record(ctx, tx, audit.Entry{
			ActorID:  actorID,
			Table:    auditDatamodel.TableRoles,
			TargetID: audit.Target(id),
			Action:   auditDatamodel.ActionSoftDelete,
			Message:  fmt.Sprintf("soft deleted role %s", r.Code),
			Detail: map[string]interface{}{
				"deletion_id": deletionID,
				"role_links":  links,
			},
		})
	})
	if err != nil {
		return err
	}

	s.logger.InfoContext(ctx, "role soft deleted", "role_id", id)
	return nil
}

// RestoreRole revives the role and the links its delete removed, skipping links
// whose user is no longer live.
func (s *Service) RestoreRole(ctx context.Context, id int64, actorID *int64) (*Role, error) {
	var restored *roleDatamodel.Role
	err := s.runner.InTx(ctx, func(tx *store.Tx) error {
		r, err := tx.Roles.FindAny(id)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return roleNotFound()
			}
			return fmt.Errorf("failed to load role: %w", err)
		}

		switch r.State() {
		case datamodel.Live:
			return internal.NewConflictError("role is not deleted", internal.ErrCodeNotDeleted)
		case datamodel.Deleted:
		}

		if err := uniqueness.Require(ctx, tx.DB(), uniqueness.RoleCode, r.Code, &id); err != nil {
			return err
		}

		if err := tx.Roles.Restore(id); err != nil {
			return fmt.Errorf("failed to restore role: %w", err)
		}

		var links int64
		if r.DeletionID != nil {
			if links, err = tx.UserRoles.RestoreRoleCascade(id, *r.DeletionID); err != nil {
				return fmt.Errorf("failed to restore role links: %w", err)
			}
		}

		if err := s.recorder.Record(ctx, tx, audit.Entry{
			ActorID:  actorID,
			Table:    auditDatamodel.TableRoles,
			TargetID: audit.Target(id),
			Action:   auditDatamodel.ActionRestore,
			Message:  fmt.Sprintf("restored role %s", r.Code),
			Detail:   map[string]interface{}{"role_links": links},
		}); err != nil {
			return err
		}

		restored, err = tx.Roles.FindAny(id)
		if err != nil {
			return fmt.Errorf("failed to reload role: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "role restored", "role_id", id)
	return FromDataModel(restored), nil
}

// GetRole returns a role; deleted roles only when includeDeleted is set.
func (s *Service) GetRole(ctx context.Context, id int64, includeDeleted bool) (*Role, error) {
	var found *roleDatamodel.Role
	err := s.runner.InTx(ctx, func(tx *store.Tx) error {
		var err error
		if includeDeleted {
			found, err = tx.Roles.FindAny(id)
		} else {
			found, err = tx.Roles.FindLive(id)
		}
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return roleNotFound()
			}
			return fmt.Errorf("failed to load role: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return FromDataModel(found), nil
}

func loadLiveRole(tx *store.Tx, id int64) (*roleDatamodel.Role, error) {
	r, err := tx.Roles.FindLive(id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, roleNotFound()
		}
		return nil, fmt.Errorf("failed to load role: %w", err)
	}
	return r, nil
}

func roleNotFound() *internal.AppError {
	return internal.NewNotFoundError("role not found", internal.ErrCodeRoleNotFound)
}

package user

import (
	"context"
	"errors"
	"fmt"

	"github.com/frahmantamala/user-management/internal"
	"github.com/frahmantamala/user-management/internal/audit"
	auditDatamodel "github.com/frahmantamala/user-management/internal/core/datamodel/audit"
	userDatamodel "github.com/frahmantamala/user-management/internal/core/datamodel/user"
	"github.com/frahmantamala/user-management/internal/store"
	"github.com/frahmantamala/user-management/pkg/logger"
)

// AssignRoles links the user to every role in roleIDs. Live links are skipped,
// deleted links are revived, missing links are inserted; each change writes its own
// log row. Repeating the call is harmless.
func (s *Service) AssignRoles(ctx context.Context, userID int64, roleIDs []int64, actorID *int64) (*AssignResult, error) {
	ids := dedupe(roleIDs)
	result := &AssignResult{Assigned: []int64{}, Restored: []int64{}, Skipped: []int64{}}

	err := s.runner.InTx(ctx, func(tx *store.Tx) error {
		u, err := loadLiveUser(tx, userID)
		if err != nil {
			return err
		}
		if len(ids) == 0 {
			return nil
		}

		if _, err := s.resolveRoles(tx, ids); err != nil {
			return err
		}

		existing, err := tx.UserRoles.FindByPairs(userID, ids)
		if err != nil {
			return fmt.Errorf("failed to load role links: %w", err)
		}
		live := make(map[int64]bool, len(existing))
		// FindByPairs is ordered newest first, so the first deleted row seen per role wins.
		deleted := make(map[int64]int64, len(existing))
		for _, link := range existing {
			if link.DeletedAt == nil {
				live[link.RoleID] = true
				continue
			}
			if _, ok := deleted[link.RoleID]; !ok {
				deleted[link.RoleID] = link.ID
			}
		}

		for _, roleID := range ids {
			entry := audit.Entry{
				ActorID:  actorID,
				Table:    auditDatamodel.TableUserRoles,
				TargetID: audit.LinkTarget(userID, roleID),
			}
			switch {
			case live[roleID]:
				result.Skipped = append(result.Skipped, roleID)
				continue
			case deleted[roleID] != 0:
				if err := tx.UserRoles.Revive(deleted[roleID]); err != nil {
					return fmt.Errorf("failed to revive role %d: %w", roleID, err)
				}
				entry.Action = auditDatamodel.ActionAssignRoleRestore
				entry.Message = fmt.Sprintf("restored role %d for user %s", roleID, u.Username)
				result.Restored = append(result.Restored, roleID)
			default:
				if err := tx.UserRoles.Create(&userDatamodel.UserRole{UserID: userID, RoleID: roleID}); err != nil {
					return fmt.Errorf("failed to assign role %d: %w", roleID, err)
				}
				entry.Action = auditDatamodel.ActionAssignRole
				entry.Message = fmt.Sprintf("assigned role %d to user %s", roleID, u.Username)
				result.Assigned = append(result.Assigned, roleID)
			}
			if err := s.recorder.Record(ctx, tx, entry); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	logger.From(ctx).InfoContext(ctx, "roles assigned",
		"user_id", userID,
		"assigned", result.Assigned,
		"restored", result.Restored,
		"skipped", result.Skipped,
	)
	return result, nil
}

// RemoveRole soft-deletes one live link. A pair that was never linked is an
// InvalidState; a pair whose link is already deleted is NotFound.
func (s *Service) RemoveRole(ctx context.Context, userID, roleID int64, actorID *int64) error {
	err := s.runner.InTx(ctx, func(tx *store.Tx) error {
		link, err := tx.UserRoles.FindLivePair(userID, roleID)
		if err != nil {
			if !errors.Is(err, store.ErrNotFound) {
				return fmt.Errorf("failed to load role link: %w", err)
			}
			n, cerr := tx.UserRoles.CountPair(userID, roleID)
			if cerr != nil {
				return fmt.Errorf("failed to count role links: %w", cerr)
			}
			if n == 0 {
				return internal.NewInvalidStateError("role was never assigned to user", internal.ErrCodeRoleNeverAssigned)
			}
			return internal.NewNotFoundError("role assignment not found", internal.ErrCodeAssignmentNotFound)
		}

		if err := tx.UserRoles.SoftDelete(link.ID, s.now()); err != nil {
			return fmt.Errorf("failed to remove role: %w", err)
		}

		return s.recorder.Record(ctx, tx, audit.Entry{
			ActorID:  actorID,
			Table:    auditDatamodel.TableUserRoles,
			TargetID: audit.LinkTarget(userID, roleID),
			Action:   auditDatamodel.ActionRemoveRole,
			Message:  fmt.Sprintf("removed role %d from user %d", roleID, userID),
		})
	})
	if err != nil {
		return err
	}

	logger.From(ctx).InfoContext(ctx, "role removed", "user_id", userID, "role_id", roleID)
	return nil
}

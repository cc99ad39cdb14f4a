package user

import (
	"context"
	"errors"
	"fmt"

	"github.com/frahmantamala/user-management/internal"
	"github.com/frahmantamala/user-management/internal/audit"
	"github.com/frahmantamala/user-management/internal/core/datamodel"
	auditDatamodel "github.com/frahmantamala/user-management/internal/core/datamodel/audit"
	userDatamodel "github.com/frahmantamala/user-management/internal/core/datamodel/user"
	"github.com/frahmantamala/user-management/internal/store"
	"github.com/frahmantamala/user-management/internal/uniqueness"
	"github.com/frahmantamala/user-management/pkg/logger"
)

// Profile operations target the child row alone. A profile deleted here has no
// cascade id, so restoring its user later leaves it deleted.

func (s *Service) CreateProfile(ctx context.Context, userID int64, fields ProfileFields, actorID *int64) (*Profile, error) {
	var created *userDatamodel.Profile
	err := s.runner.InTx(ctx, func(tx *store.Tx) error {
		if _, err := loadLiveUser(tx, userID); err != nil {
			return err
		}

		if _, err := tx.Profiles.FindLiveByUser(userID); err == nil {
			return internal.NewInvalidStateError("user already has a profile", internal.ErrCodeProfileExists)
		} else if !errors.Is(err, store.ErrNotFound) {
			return fmt.Errorf("failed to load profile: %w", err)
		}

		if phone := optional(fields.Phone); phone != nil {
			if err := uniqueness.Require(ctx, tx.DB(), uniqueness.ProfilePhone, *phone, nil); err != nil {
				return err
			}
		}

		p := fields.toDataModel(userID)
		if err := tx.Profiles.Create(p); err != nil {
			return fmt.Errorf("failed to create profile: %w", err)
		}
		created = p

		return s.recorder.Record(ctx, tx, audit.Entry{
			ActorID:  actorID,
			Table:    auditDatamodel.TableProfiles,
			TargetID: audit.Target(p.ID),
			Action:   auditDatamodel.ActionCreate,
			Message:  fmt.Sprintf("created profile for user %d", userID),
			Detail:   fields,
		})
	})
	if err != nil {
		return nil, err
	}

	logger.From(ctx).InfoContext(ctx, "profile created", "profile_id", created.ID, "user_id", userID)
	return ProfileFromDataModel(created), nil
}

func (s *Service) UpdateProfile(ctx context.Context, profileID int64, fields ProfileFields, actorID *int64) (*Profile, error) {
	var updated *userDatamodel.Profile
	err := s.runner.InTx(ctx, func(tx *store.Tx) error {
		p, err := loadLiveProfile(tx, profileID)
		if err != nil {
			return err
		}

		if phone := optional(fields.Phone); phone != nil {
			if err := uniqueness.Require(ctx, tx.DB(), uniqueness.ProfilePhone, *phone, &p.ID); err != nil {
				return err
			}
		}

		updates := fields.updates()
		updates["updated_at"] = s.now()
		if err := tx.Profiles.Update(p.ID, updates); err != nil {
			return fmt.Errorf("failed to update profile: %w", err)
		}

		if err := s.recorder.Record(ctx, tx, audit.Entry{
			ActorID:  actorID,
			Table:    auditDatamodel.TableProfiles,
			TargetID: audit.Target(p.ID),
			Action:   auditDatamodel.ActionUpdate,
			Message:  fmt.Sprintf("updated profile %d", p.ID),
			Detail:   fields,
		}); err != nil {
			return err
		}

		updated, err = tx.Profiles.FindAny(p.ID)
		if err != nil {
			return fmt.Errorf("failed to reload profile: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return ProfileFromDataModel(updated), nil
}

func (s *Service) SoftDeleteProfile(ctx context.Context, profileID int64, actorID *int64) error {
	return s.runner.InTx(ctx, func(tx *store.Tx) error {
		p, err := loadLiveProfile(tx, profileID)
		if err != nil {
			return err
		}

		if err := tx.Profiles.SoftDelete(p.ID, s.now(), nil); err != nil {
			return fmt.Errorf("failed to delete profile: %w", err)
		}

		return s.recorder.Record(ctx, tx, audit.Entry{
			ActorID:  actorID,
			Table:    auditDatamodel.TableProfiles,
			TargetID: audit.Target(p.ID),
			Action:   auditDatamodel.ActionSoftDelete,
			Message:  fmt.Sprintf("soft deleted profile %d of user %d", p.ID, p.UserID),
		})
	})
}

// RestoreProfile needs a live owner without another live profile.
func (s *Service) RestoreProfile(ctx context.Context, profileID int64, actorID *int64) (*Profile, error) {
	var restored *userDatamodel.Profile
	err := s.runner.InTx(ctx, func(tx *store.Tx) error {
		p, err := tx.Profiles.FindAny(profileID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return profileNotFound()
			}
			return fmt.Errorf("failed to load profile: %w", err)
		}

		switch p.State() {
		case datamodel.Live:
			return internal.NewConflictError("profile is not deleted", internal.ErrCodeNotDeleted)
		case datamodel.Deleted:
		}

		if _, err := tx.Users.FindLive(p.UserID); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return internal.NewInvalidStateError("owning user is not live", internal.ErrCodeOwnerNotLive)
			}
			return fmt.Errorf("failed to load user: %w", err)
		}
		if _, err := tx.Profiles.FindLiveByUser(p.UserID); err == nil {
			return internal.NewInvalidStateError("user already has a profile", internal.ErrCodeProfileExists)
		} else if !errors.Is(err, store.ErrNotFound) {
			return fmt.Errorf("failed to load profile: %w", err)
		}
		if p.Phone != nil {
			if err := uniqueness.Require(ctx, tx.DB(), uniqueness.ProfilePhone, *p.Phone, &p.ID); err != nil {
				return err
			}
		}

		if err := tx.Profiles.Restore(p.ID); err != nil {
			return fmt.Errorf("failed to restore profile: %w", err)
		}

		if err := s.recorder.Record(ctx, tx, audit.Entry{
			ActorID:  actorID,
			Table:    auditDatamodel.TableProfiles,
			TargetID: audit.Target(p.ID),
			Action:   auditDatamodel.ActionRestore,
			Message:  fmt.Sprintf("restored profile %d of user %d", p.ID, p.UserID),
		}); err != nil {
			return err
		}

		restored, err = tx.Profiles.FindAny(p.ID)
		if err != nil {
			return fmt.Errorf("failed to reload profile: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return ProfileFromDataModel(restored), nil
}

func loadLiveProfile(tx *store.Tx, id int64) (*userDatamodel.Profile, error) {
	p, err := tx.Profiles.FindLive(id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, profileNotFound()
		}
		return nil, fmt.Errorf("failed to load profile: %w", err)
	}
	return p, nil
}

func profileNotFound() *internal.AppError {
	return internal.NewNotFoundError("profile not found", internal.ErrCodeProfileNotFound)
}

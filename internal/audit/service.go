package audit

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/frahmantamala/user-management/internal"
	"github.com/frahmantamala/user-management/internal/store"
	"github.com/frahmantamala/user-management/pkg/logger"
)

const DefaultRetentionDays = 90

// Service owns log retention. It is the only code path that deletes log rows.
type Service struct {
	runner *store.Runner
	logger *slog.Logger
	now    func() time.Time
}

func NewService(runner *store.Runner, lg *slog.Logger) *Service {
	if lg == nil {
		lg = logger.LoggerWrapper()
	}
	return &Service{runner: runner, logger: lg, now: time.Now}
}

// PurgeOlderThan deletes logs created more than days ago and returns how many went.
func (s *Service) PurgeOlderThan(ctx context.Context, days int) (int64, error) {
	if days <= 0 {
		return 0, internal.NewValidationFieldError("days", "days must be a positive number", internal.ErrCodeValidationFailed)
	}

	cutoff := s.now().AddDate(0, 0, -days)
	var purged int64
	err := s.runner.InTx(ctx, func(tx *store.Tx) error {
		n, err := tx.Logs.DeleteOlderThan(cutoff)
		if err != nil {
			return fmt.Errorf("failed to purge logs: %w", err)
		}
		purged = n
		return nil
	})
	if err != nil {
		return 0, err
	}

	s.logger.InfoContext(ctx, "purged audit logs", "cutoff", cutoff, "count", purged)
	return purged, nil
}

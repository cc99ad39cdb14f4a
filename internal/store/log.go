package store

import (
	"time"

	auditDatamodel "github.com/frahmantamala/user-management/internal/core/datamodel/audit"
	"gorm.io/gorm"
)

// LogRepository only appends. DeleteOlderThan exists for the retention job.
type LogRepository struct {
	db *gorm.DB
}

func NewLogRepository(db *gorm.DB) *LogRepository {
	return &LogRepository{db: db}
}

func (r *LogRepository) Create(l *auditDatamodel.Log) error {
	return r.db.Create(l).Error
}

func (r *LogRepository) DeleteOlderThan(cutoff time.Time) (int64, error) {
	res := r.db.Where("created_at < ?", cutoff).Delete(&auditDatamodel.Log{})
	return res.RowsAffected, res.Error
}

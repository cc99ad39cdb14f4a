package store

import (
	"fmt"

	auditDatamodel "github.com/frahmantamala/user-management/internal/core/datamodel/audit"
	roleDatamodel "github.com/frahmantamala/user-management/internal/core/datamodel/role"
	userDatamodel "github.com/frahmantamala/user-management/internal/core/datamodel/user"
	"gorm.io/gorm"
)

// Models lists the tables in creation order.
func Models() []interface{} {
	return []interface{}{
		&userDatamodel.User{},
		&roleDatamodel.Role{},
		&userDatamodel.Profile{},
		&userDatamodel.UserRole{},
		&auditDatamodel.Log{},
	}
}

// AutoMigrate creates the schema from the GORM models, partial unique indexes
// included. Postgres deployments use the goose migrations instead.
func AutoMigrate(db *gorm.DB) error {
	if err := db.AutoMigrate(Models()...); err != nil {
		return fmt.Errorf("failed to migrate schema: %w", err)
	}
	return nil
}

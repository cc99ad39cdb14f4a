package cmd

import (
	"context"
	"fmt"
	"log"

	"github.com/frahmantamala/user-management/internal"
	"github.com/frahmantamala/user-management/internal/auth"
	"github.com/frahmantamala/user-management/internal/query"
	"github.com/frahmantamala/user-management/internal/role"
	"github.com/frahmantamala/user-management/internal/user"
	"github.com/spf13/cobra"
)

var (
	seedAdminUsername string
	seedAdminPassword string
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Seed the default roles and an admin user",
	Long:  `Create the admin and user roles and an admin account holding both. Running it again changes nothing.`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := loadConfig(configPath)
		if err != nil {
			log.Fatalf("failed to load config: %v", err)
		}

		db, err := initDB(cfg.Database)
		if err != nil {
			log.Fatalf("failed to init db: %v", err)
		}
		defer db.Close()

		services := newServices(cfg, db, nil)
		authService := auth.NewService(auth.NewRepository(db.Gorm), nil, cfg.Security.BCryptCost)
		facade := query.New(db.SQLX)

		if err := seed(cmd.Context(), services, facade, authService); err != nil {
			log.Fatalf("seed failed: %v", err)
		}
	},
}

func init() {
	seedCmd.Flags().StringVar(&seedAdminUsername, "admin-username", "admin", "username of the seeded admin")
	seedCmd.Flags().StringVar(&seedAdminPassword, "admin-password", "", "password of the seeded admin; generated when empty")
}

var defaultRoles = []role.CreateRoleInput{
	{Code: auth.RoleAdmin, Name: "Administrator"},
	{Code: "user", Name: "User"},
}

func seed(ctx context.Context, services domainServices, facade *query.Facade, hasher user.PasswordHasher) error {
	roleIDs := make([]int64, 0, len(defaultRoles))
	for _, in := range defaultRoles {
		id, err := ensureRole(ctx, services.Roles, facade, in)
		if err != nil {
			return err
		}
		roleIDs = append(roleIDs, id)
	}

	existing, err := facade.ListUsers(ctx, query.UserFilter{Username: seedAdminUsername})
	if err != nil {
		return fmt.Errorf("failed to look up admin user: %w", err)
	}

	var adminID int64
	if len(existing.Data) > 0 {
		adminID = existing.Data[0].ID
		fmt.Println("admin user already exists:", seedAdminUsername)
	} else {
		password := seedAdminPassword
		if password == "" {
			token, err := auth.GenerateRandomToken()
			if err != nil {
				return fmt.Errorf("failed to generate admin password: %w", err)
			}
			password = token[:20]
			fmt.Println("generated admin password:", password)
		}

		hash, err := hasher.HashPassword(password)
		if err != nil {
			return err
		}
		created, err := services.Users.CreateUser(ctx, user.CreateUserInput{
			Username:     seedAdminUsername,
			PasswordHash: hash,
			RoleIDs:      roleIDs,
		}, nil)
		if err != nil {
			return fmt.Errorf("failed to create admin user: %w", err)
		}
		adminID = created.ID
		fmt.Println("seeded admin user:", seedAdminUsername)
	}

	result, err := services.Users.AssignRoles(ctx, adminID, roleIDs, nil)
	if err != nil {
		return fmt.Errorf("failed to grant admin roles: %w", err)
	}
	fmt.Printf("admin roles: assigned=%v restored=%v unchanged=%v\n", result.Assigned, result.Restored, result.Skipped)
	return nil
}

func ensureRole(ctx context.Context, roles *role.Service, facade *query.Facade, in role.CreateRoleInput) (int64, error) {
	created, err := roles.CreateRole(ctx, in, nil)
	if err == nil {
		fmt.Println("seeded role:", in.Code)
		return created.ID, nil
	}
	if !internal.IsType(err, internal.ErrorTypeConflict) {
		return 0, fmt.Errorf("failed to create role %s: %w", in.Code, err)
	}

	page, err := facade.ListRoles(ctx, query.RoleFilter{Code: in.Code})
	if err != nil {
		return 0, fmt.Errorf("failed to look up role %s: %w", in.Code, err)
	}
	if len(page.Data) == 0 {
		return 0, fmt.Errorf("role %s reported as existing but not found", in.Code)
	}
	return page.Data[0].ID, nil
}

package store_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/frahmantamala/user-management/internal"
	roleDatamodel "github.com/frahmantamala/user-management/internal/core/datamodel/role"
	userDatamodel "github.com/frahmantamala/user-management/internal/core/datamodel/user"
	"github.com/frahmantamala/user-management/internal/store"
	"github.com/frahmantamala/user-management/internal/store/storetest"
	"github.com/jackc/pgx/v5/pgconn"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"gorm.io/gorm"
)

func TestStore(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Store Suite")
}

func expectCode(err error, t internal.ErrorType, code internal.ErrorCode) {
	ExpectWithOffset(1, err).To(HaveOccurred())
	appErr, ok := internal.IsAppError(err)
	ExpectWithOffset(1, ok).To(BeTrue(), "expected an AppError, got %v", err)
	ExpectWithOffset(1, appErr.Type).To(Equal(t))
	ExpectWithOffset(1, appErr.Code).To(Equal(code))
}

var _ = Describe("Classify", func() {
	It("should pass nil through", func() {
		Expect(store.Classify(nil)).To(BeNil())
	})

	It("should leave AppErrors untouched", func() {
		original := internal.NewInvalidStateError("nope", internal.ErrCodeRoleNeverAssigned)
		Expect(store.Classify(original)).To(BeIdenticalTo(original))
	})

	It("should map a postgres unique violation onto the index's conflict code", func() {
		pgErr := &pgconn.PgError{Code: "23505", ConstraintName: "idx_users_username_live"}
		expectCode(store.Classify(fmt.Errorf("insert: %w", pgErr)), internal.ErrorTypeConflict, internal.ErrCodeUsernameExists)
	})

	It("should map an unknown constraint to DUPLICATE_RECORD", func() {
		pgErr := &pgconn.PgError{Code: "23505", ConstraintName: "something_else"}
		expectCode(store.Classify(pgErr), internal.ErrorTypeConflict, internal.ErrCodeDuplicateRecord)
	})

	It("should map the sqlite unique message by table and column", func() {
		err := errors.New("UNIQUE constraint failed: roles.code")
		expectCode(store.Classify(err), internal.ErrorTypeConflict, internal.ErrCodeRoleCodeExists)
	})

	It("should report serialization failures and deadlocks as transient", func() {
		for _, code := range []string{"40001", "40P01"} {
			err := store.Classify(&pgconn.PgError{Code: code})
			expectCode(err, internal.ErrorTypeTransientStorage, internal.ErrCodeStorageRetryable)
		}
	})

	It("should report a locked sqlite database as transient", func() {
		expectCode(store.Classify(errors.New("database is locked")), internal.ErrorTypeTransientStorage, internal.ErrCodeStorageRetryable)
	})

	It("should report a deadline as transient", func() {
		err := fmt.Errorf("query: %w", context.DeadlineExceeded)
		expectCode(store.Classify(err), internal.ErrorTypeTransientStorage, internal.ErrCodeStorageRetryable)
	})

	It("should report an abandoned request as canceled, not internal", func() {
		err := store.Classify(fmt.Errorf("begin: %w", context.Canceled))
		expectCode(err, internal.ErrorTypeCanceled, internal.ErrCodeRequestCanceled)

		appErr, _ := internal.IsAppError(err)
		Expect(appErr.StatusCode).To(Equal(internal.StatusClientClosedRequest))
		Expect(appErr.Retryable()).To(BeFalse())
	})

	It("should map missing rows to NotFound", func() {
		appErr, ok := internal.IsAppError(store.Classify(store.ErrNotFound))
		Expect(ok).To(BeTrue())
		Expect(appErr.Type).To(Equal(internal.ErrorTypeNotFound))

		appErr, ok = internal.IsAppError(store.Classify(gorm.ErrRecordNotFound))
		Expect(ok).To(BeTrue())
		Expect(appErr.Type).To(Equal(internal.ErrorTypeNotFound))
	})

	It("should map anything else to an internal error", func() {
		appErr, ok := internal.IsAppError(store.Classify(errors.New("disk on fire")))
		Expect(ok).To(BeTrue())
		Expect(appErr.Type).To(Equal(internal.ErrorTypeInternal))
	})
})

var _ = Describe("Runner", func() {
	var (
		ctx    context.Context
		db     *gorm.DB
		runner *store.Runner
	)

	BeforeEach(func() {
		var err error
		ctx = context.Background()
		db, err = storetest.Open()
		Expect(err).NotTo(HaveOccurred())
		runner = storetest.Runner(db)
	})

	countUsers := func() int64 {
		var n int64
		Expect(db.Model(&userDatamodel.User{}).Count(&n).Error).NotTo(HaveOccurred())
		return n
	}

	It("should commit when the unit succeeds", func() {
		err := runner.InTx(ctx, func(tx *store.Tx) error {
			return tx.Users.Create(&userDatamodel.User{Username: "alice", PasswordHash: "h", IsActive: true})
		})
		Expect(err).NotTo(HaveOccurred())
		Expect(countUsers()).To(Equal(int64(1)))
	})

	It("should roll back every write when the unit fails", func() {
		err := runner.InTx(ctx, func(tx *store.Tx) error {
			if err := tx.Users.Create(&userDatamodel.User{Username: "alice", PasswordHash: "h", IsActive: true}); err != nil {
				return err
			}
			return internal.NewInvalidStateError("late failure", internal.ErrCodeOwnerNotLive)
		})
		expectCode(err, internal.ErrorTypeInvalidState, internal.ErrCodeOwnerNotLive)
		Expect(countUsers()).To(BeZero())
	})

	It("should roll back on a panic", func() {
		Expect(func() {
			_ = runner.InTx(ctx, func(tx *store.Tx) error {
				_ = tx.Users.Create(&userDatamodel.User{Username: "alice", PasswordHash: "h", IsActive: true})
				panic("boom")
			})
		}).To(Panic())
		Expect(countUsers()).To(BeZero())
	})

	It("should refuse to start under a cancelled context", func() {
		cancelled, cancel := context.WithCancel(ctx)
		cancel()
		err := runner.InTx(cancelled, func(tx *store.Tx) error {
			return tx.Users.Create(&userDatamodel.User{Username: "alice", PasswordHash: "h", IsActive: true})
		})
		expectCode(err, internal.ErrorTypeCanceled, internal.ErrCodeRequestCanceled)
		Expect(countUsers()).To(BeZero())
	})

	Context("when two live rows race for the same username", func() {
		It("should let the partial index reject the second with the username conflict", func() {
			// Given a live alice
			Expect(runner.InTx(ctx, func(tx *store.Tx) error {
				return tx.Users.Create(&userDatamodel.User{Username: "alice", PasswordHash: "h", IsActive: true})
			})).To(Succeed())

			// When a second insert skips the pre-check
			err := runner.InTx(ctx, func(tx *store.Tx) error {
				return tx.Users.Create(&userDatamodel.User{Username: "alice", PasswordHash: "h2", IsActive: true})
			})

			// Then the index backstop reports the same conflict the pre-check would
			expectCode(err, internal.ErrorTypeConflict, internal.ErrCodeUsernameExists)
		})

		It("should accept the name again once the holder is soft deleted", func() {
			first := &userDatamodel.User{Username: "alice", PasswordHash: "h", IsActive: true}
			Expect(runner.InTx(ctx, func(tx *store.Tx) error {
				if err := tx.Users.Create(first); err != nil {
					return err
				}
				return tx.Users.SoftDelete(first.ID, time.Now(), "del-1")
			})).To(Succeed())

			Expect(runner.InTx(ctx, func(tx *store.Tx) error {
				return tx.Users.Create(&userDatamodel.User{Username: "alice", PasswordHash: "h2", IsActive: true})
			})).To(Succeed())
			Expect(countUsers()).To(Equal(int64(2)))
		})
	})
})

var _ = Describe("Cascade repositories", func() {
	var (
		ctx    context.Context
		db     *gorm.DB
		runner *store.Runner
		u      *userDatamodel.User
		admin  *roleDatamodel.Role
		viewer *roleDatamodel.Role
	)

	BeforeEach(func() {
		var err error
		ctx = context.Background()
		db, err = storetest.Open()
		Expect(err).NotTo(HaveOccurred())
		runner = storetest.Runner(db)

		u = &userDatamodel.User{Username: "alice", PasswordHash: "h", IsActive: true}
		admin = &roleDatamodel.Role{Code: "admin", Name: "Admin", Status: roleDatamodel.StatusEnabled}
		viewer = &roleDatamodel.Role{Code: "viewer", Name: "Viewer", Status: roleDatamodel.StatusEnabled}
		Expect(runner.InTx(ctx, func(tx *store.Tx) error {
			if err := tx.Users.Create(u); err != nil {
				return err
			}
			for _, r := range []*roleDatamodel.Role{admin, viewer} {
				if err := tx.Roles.Create(r); err != nil {
					return err
				}
				if err := tx.UserRoles.Create(&userDatamodel.UserRole{UserID: u.ID, RoleID: r.ID}); err != nil {
					return err
				}
			}
			return nil
		})).To(Succeed())
	})

	It("should stamp and revive only the links of the same delete", func() {
		now := time.Now()
		Expect(runner.InTx(ctx, func(tx *store.Tx) error {
			n, err := tx.UserRoles.SoftDeleteLiveByUser(u.ID, now, "cascade-1")
			Expect(n).To(Equal(int64(2)))
			return err
		})).To(Succeed())

		Expect(runner.InTx(ctx, func(tx *store.Tx) error {
			n, err := tx.UserRoles.RestoreUserCascade(u.ID, "other-cascade")
			Expect(n).To(BeZero())
			return err
		})).To(Succeed())

		Expect(runner.InTx(ctx, func(tx *store.Tx) error {
			n, err := tx.UserRoles.RestoreUserCascade(u.ID, "cascade-1")
			Expect(n).To(Equal(int64(2)))
			return err
		})).To(Succeed())

		var links []userDatamodel.UserRole
		Expect(db.Where("user_id = ? AND deleted_at IS NULL", u.ID).Find(&links).Error).NotTo(HaveOccurred())
		Expect(links).To(HaveLen(2))
		for _, l := range links {
			Expect(l.CascadeID).To(BeNil())
		}
	})

	It("should leave links to a deleted role behind on user restore", func() {
		now := time.Now()
		Expect(runner.InTx(ctx, func(tx *store.Tx) error {
			if _, err := tx.UserRoles.SoftDeleteLiveByUser(u.ID, now, "cascade-1"); err != nil {
				return err
			}
			return tx.Roles.SoftDelete(viewer.ID, now, "role-del")
		})).To(Succeed())

		Expect(runner.InTx(ctx, func(tx *store.Tx) error {
			n, err := tx.UserRoles.RestoreUserCascade(u.ID, "cascade-1")
			Expect(n).To(Equal(int64(1)))
			return err
		})).To(Succeed())

		var live []userDatamodel.UserRole
		Expect(runner.InTx(ctx, func(tx *store.Tx) error {
			var err error
			live, err = tx.UserRoles.ListLiveByUser(u.ID)
			return err
		})).To(Succeed())
		Expect(live).To(HaveLen(1))
		Expect(live[0].RoleID).To(Equal(admin.ID))
	})

	It("should report ErrNotFound for conditional updates that match nothing", func() {
		err := runner.DB().Transaction(func(gtx *gorm.DB) error {
			return store.NewUserRepository(gtx).Restore(u.ID)
		})
		Expect(errors.Is(err, store.ErrNotFound)).To(BeTrue())
	})

	It("should count every link of a pair regardless of state", func() {
		Expect(runner.InTx(ctx, func(tx *store.Tx) error {
			link, err := tx.UserRoles.FindLivePair(u.ID, admin.ID)
			if err != nil {
				return err
			}
			if err := tx.UserRoles.SoftDelete(link.ID, time.Now()); err != nil {
				return err
			}
			n, err := tx.UserRoles.CountPair(u.ID, admin.ID)
			Expect(n).To(Equal(int64(1)))
			_, err = tx.UserRoles.FindLivePair(u.ID, admin.ID)
			Expect(errors.Is(err, store.ErrNotFound)).To(BeTrue())
			return nil
		})).To(Succeed())
	})
})

package query_test

import (
	"context"
	"fmt"
	"net/url"
	"testing"

	"github.com/frahmantamala/user-management/internal"
	"github.com/frahmantamala/user-management/internal/audit"
	"github.com/frahmantamala/user-management/internal/query"
	"github.com/frahmantamala/user-management/internal/role"
	"github.com/frahmantamala/user-management/internal/store/storetest"
	"github.com/frahmantamala/user-management/internal/user"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

func TestQuery(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Query Facade Suite")
}

func strPtr(s string) *string { return &s }

var _ = Describe("Query Facade", func() {
	var (
		ctx    context.Context
		facade *query.Facade
		users  *user.Service
		roles  *role.Service
		admin  *role.Role
		viewer *role.Role
		ids    []int64
	)

	BeforeEach(func() {
		ctx = context.Background()
		db, err := storetest.Open()
		Expect(err).NotTo(HaveOccurred())
		sqlxDB, err := storetest.SQLX(db)
		Expect(err).NotTo(HaveOccurred())
		facade = query.New(sqlxDB)

		runner := storetest.Runner(db)
		rec := audit.NewRecorder(nil)
		users = user.NewService(runner, rec)
		roles = role.NewService(runner, rec, nil)

		admin, err = roles.CreateRole(ctx, role.CreateRoleInput{Code: "admin", Name: "Administrator"}, nil)
		Expect(err).NotTo(HaveOccurred())
		viewer, err = roles.CreateRole(ctx, role.CreateRoleInput{Code: "viewer", Name: "Viewer", Status: "disabled"}, nil)
		Expect(err).NotTo(HaveOccurred())

		ids = nil
		for i := 1; i <= 25; i++ {
			in := user.CreateUserInput{
				Username:     fmt.Sprintf("user%02d", i),
				PasswordHash: "h",
				Email:        strPtr(fmt.Sprintf("user%02d@example.com", i)),
			}
			if i == 1 {
				in.Profile = &user.ProfileFields{FullName: strPtr("First User"), Phone: strPtr("+1 555 0100")}
				in.RoleIDs = []int64{admin.ID, viewer.ID}
			}
			u, err := users.CreateUser(ctx, in, nil)
			Expect(err).NotTo(HaveOccurred())
			ids = append(ids, u.ID)
		}
	})

	Describe("ListUsers", func() {
		It("should apply the default page and size", func() {
			page, err := facade.ListUsers(ctx, query.UserFilter{})
			Expect(err).NotTo(HaveOccurred())
			Expect(page.Page).To(Equal(query.DefaultPage))
			Expect(page.PageSize).To(Equal(query.DefaultPageSize))
			Expect(page.Total).To(Equal(int64(25)))
			Expect(page.TotalPages).To(Equal(2))
			Expect(page.Data).To(HaveLen(20))
		})

		It("should cap the page size", func() {
			page, err := facade.ListUsers(ctx, query.UserFilter{PageRequest: query.PageRequest{PageSize: 1000}})
			Expect(err).NotTo(HaveOccurred())
			Expect(page.PageSize).To(Equal(query.MaxPageSize))
			Expect(page.Data).To(HaveLen(25))
		})

		It("should return an empty page past the last one", func() {
			page, err := facade.ListUsers(ctx, query.UserFilter{PageRequest: query.PageRequest{Page: 9, PageSize: 10}})
			Expect(err).NotTo(HaveOccurred())
			Expect(page.Data).NotTo(BeNil())
			Expect(page.Data).To(BeEmpty())
			Expect(page.Total).To(Equal(int64(25)))
			Expect(page.TotalPages).To(Equal(3))
		})

		It("should return an empty page when the offset would overflow", func() {
			req := query.ParsePageRequest(url.Values{"page": {"461168601842738793"}, "page_size": {"20"}})

			page, err := facade.ListUsers(ctx, query.UserFilter{PageRequest: req})
			Expect(err).NotTo(HaveOccurred())
			Expect(page.Total).To(Equal(int64(25)))
			Expect(page.Page).To(Equal(461168601842738793))
			Expect(page.Data).To(BeEmpty())
		})

		It("should sort by whitelisted columns only", func() {
			page, err := facade.ListUsers(ctx, query.UserFilter{PageRequest: query.PageRequest{SortBy: "username", SortDir: "asc", PageSize: 3}})
			Expect(err).NotTo(HaveOccurred())
			Expect(page.Data[0].Username).To(Equal("user01"))

			page, err = facade.ListUsers(ctx, query.UserFilter{PageRequest: query.PageRequest{SortBy: "id; DROP TABLE users", PageSize: 3}})
			Expect(err).NotTo(HaveOccurred())
			Expect(page.Data[0].ID).To(Equal(ids[len(ids)-1]))
		})

		It("should hide deleted users unless asked", func() {
			Expect(users.SoftDeleteUser(ctx, ids[0], nil)).To(Succeed())

			page, err := facade.ListUsers(ctx, query.UserFilter{Username: "user01"})
			Expect(err).NotTo(HaveOccurred())
			Expect(page.Total).To(BeZero())

			page, err = facade.ListUsers(ctx, query.UserFilter{Username: "user01", IncludeDeleted: true})
			Expect(err).NotTo(HaveOccurred())
			Expect(page.Total).To(Equal(int64(1)))
			Expect(page.Data[0].DeletedAt).NotTo(BeNil())
		})

		It("should search by keyword and filter by flag", func() {
			page, err := facade.ListUsers(ctx, query.UserFilter{Keyword: "user1"})
			Expect(err).NotTo(HaveOccurred())
			Expect(page.Total).To(Equal(int64(10)))

			active := true
			page, err = facade.ListUsers(ctx, query.UserFilter{IsActive: &active, Email: "user02@example.com"})
			Expect(err).NotTo(HaveOccurred())
			Expect(page.Total).To(Equal(int64(1)))
		})

		It("should join the profile and the live roles on request", func() {
			Expect(users.RemoveRole(ctx, ids[0], viewer.ID, nil)).To(Succeed())

			page, err := facade.ListUsers(ctx, query.UserFilter{Username: "user01", IncludeProfile: true, IncludeRoles: true})
			Expect(err).NotTo(HaveOccurred())
			Expect(page.Data).To(HaveLen(1))

			row := page.Data[0]
			Expect(row.FullName).NotTo(BeNil())
			Expect(*row.FullName).To(Equal("First User"))
			Expect(row.Roles).To(HaveLen(1))
			Expect(row.Roles[0].Code).To(Equal("admin"))
		})

		It("should give users without roles an empty list", func() {
			page, err := facade.ListUsers(ctx, query.UserFilter{Username: "user02", IncludeRoles: true})
			Expect(err).NotTo(HaveOccurred())
			Expect(page.Data[0].Roles).NotTo(BeNil())
			Expect(page.Data[0].Roles).To(BeEmpty())
		})
	})

	Describe("ListRoles", func() {
		It("should filter by status and hide deleted roles", func() {
			page, err := facade.ListRoles(ctx, query.RoleFilter{Status: "disabled"})
			Expect(err).NotTo(HaveOccurred())
			Expect(page.Total).To(Equal(int64(1)))
			Expect(page.Data[0].Code).To(Equal("viewer"))

			Expect(roles.SoftDeleteRole(ctx, admin.ID, nil)).To(Succeed())
			page, err = facade.ListRoles(ctx, query.RoleFilter{})
			Expect(err).NotTo(HaveOccurred())
			Expect(page.Total).To(Equal(int64(1)))

			page, err = facade.ListRoles(ctx, query.RoleFilter{IncludeDeleted: true})
			Expect(err).NotTo(HaveOccurred())
			Expect(page.Total).To(Equal(int64(2)))
		})
	})

	Describe("ListProfiles", func() {
		It("should list live profiles by owner", func() {
			page, err := facade.ListProfiles(ctx, query.ProfileFilter{UserID: &ids[0]})
			Expect(err).NotTo(HaveOccurred())
			Expect(page.Total).To(Equal(int64(1)))
			Expect(*page.Data[0].Phone).To(Equal("+1 555 0100"))

			page, err = facade.ListProfiles(ctx, query.ProfileFilter{UserID: &ids[1]})
			Expect(err).NotTo(HaveOccurred())
			Expect(page.Total).To(BeZero())
		})
	})

	Describe("GetProfile", func() {
		It("should hide a deleted profile unless asked", func() {
			listed, err := facade.ListProfiles(ctx, query.ProfileFilter{UserID: &ids[0]})
			Expect(err).NotTo(HaveOccurred())
			profileID := listed.Data[0].ID

			row, err := facade.GetProfile(ctx, profileID, false)
			Expect(err).NotTo(HaveOccurred())
			Expect(*row.FullName).To(Equal("First User"))
			Expect(row.DeletedAt).To(BeNil())

			Expect(users.SoftDeleteProfile(ctx, profileID, nil)).To(Succeed())

			_, err = facade.GetProfile(ctx, profileID, false)
			Expect(internal.IsType(err, internal.ErrorTypeNotFound)).To(BeTrue())

			row, err = facade.GetProfile(ctx, profileID, true)
			Expect(err).NotTo(HaveOccurred())
			Expect(row.DeletedAt).NotTo(BeNil())
		})
	})

	Describe("GetLog", func() {
		It("should return one row by id", func() {
			listed, err := facade.ListLogs(ctx, query.LogFilter{TargetTable: "roles", PageRequest: query.PageRequest{SortBy: "id", SortDir: "asc"}})
			Expect(err).NotTo(HaveOccurred())

			row, err := facade.GetLog(ctx, listed.Data[0].ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(row.TargetTable).To(Equal("roles"))
			Expect(row.Action).To(Equal("CREATE"))
		})

		It("should report a missing row as LOG_NOT_FOUND", func() {
			_, err := facade.GetLog(ctx, 999999)
			appErr, ok := internal.IsAppError(err)
			Expect(ok).To(BeTrue())
			Expect(appErr.Code).To(Equal(internal.ErrCodeLogNotFound))
		})
	})

	Describe("ListLogs", func() {
		It("should filter the trail by target and action", func() {
			page, err := facade.ListLogs(ctx, query.LogFilter{TargetTable: "users", Action: "CREATE"})
			Expect(err).NotTo(HaveOccurred())
			Expect(page.Total).To(Equal(int64(25)))

			Expect(users.RemoveRole(ctx, ids[0], viewer.ID, nil)).To(Succeed())
			page, err = facade.ListLogs(ctx, query.LogFilter{TargetID: audit.LinkTarget(ids[0], viewer.ID)})
			Expect(err).NotTo(HaveOccurred())
			Expect(page.Total).To(Equal(int64(1)))
			Expect(page.Data[0].Action).To(Equal("REMOVE_ROLE"))
			Expect(page.Data[0].Detail).To(BeNil())
		})

		It("should search messages by keyword", func() {
			page, err := facade.ListLogs(ctx, query.LogFilter{Keyword: "created role"})
			Expect(err).NotTo(HaveOccurred())
			Expect(page.Total).To(Equal(int64(2)))
		})
	})
})

var _ = Describe("request parsing", func() {
	It("should read paging and sorting from the query string", func() {
		req := query.ParsePageRequest(url.Values{
			"page":      {"3"},
			"page_size": {"15"},
			"sort_by":   {"username"},
			"sort_dir":  {"asc"},
		})
		Expect(req).To(Equal(query.PageRequest{Page: 3, PageSize: 15, SortBy: "username", SortDir: "asc"}))
	})

	It("should ignore malformed numbers", func() {
		req := query.ParsePageRequest(url.Values{"page": {"x"}, "page_size": {"-"}})
		Expect(req.Page).To(BeZero())
		Expect(req.PageSize).To(BeZero())
	})

	It("should parse optional flags and ids", func() {
		values := url.Values{"is_active": {"false"}, "user_id": {"12"}, "bad": {"maybe"}}
		Expect(*query.ParseBool(values, "is_active")).To(BeFalse())
		Expect(query.ParseBool(values, "bad")).To(BeNil())
		Expect(query.ParseBool(values, "missing")).To(BeNil())
		Expect(*query.ParseInt64(values, "user_id")).To(Equal(int64(12)))
	})
})

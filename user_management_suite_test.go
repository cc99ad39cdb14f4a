package main_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/frahmantamala/user-management/internal"
	"github.com/frahmantamala/user-management/internal/audit"
	"github.com/frahmantamala/user-management/internal/auth"
	"github.com/frahmantamala/user-management/internal/query"
	"github.com/frahmantamala/user-management/internal/role"
	"github.com/frahmantamala/user-management/internal/store/storetest"
	"github.com/frahmantamala/user-management/internal/transport/middleware"
	"github.com/frahmantamala/user-management/internal/transport/rest"
	"github.com/frahmantamala/user-management/internal/user"
	"github.com/go-chi/chi"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"golang.org/x/crypto/bcrypt"
)

func TestUserManagement(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "UserManagement Suite")
}

type apiError struct {
	Error struct {
		Type string `json:"type"`
		Code string `json:"code"`
	} `json:"error"`
	RequestID string `json:"request_id"`
}

var _ = Describe("User administration API", func() {
	var (
		server     *httptest.Server
		adminToken string
		adminRole  *role.Role
		userRole   *role.Role
	)

	call := func(method, path, token string, body interface{}, headers ...string) *http.Response {
		var buf bytes.Buffer
		if body != nil {
			ExpectWithOffset(1, json.NewEncoder(&buf).Encode(body)).To(Succeed())
		}
		req, err := http.NewRequest(method, server.URL+"/api/v1"+path, &buf)
		ExpectWithOffset(1, err).NotTo(HaveOccurred())
		req.Header.Set("Content-Type", "application/json")
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
		for i := 0; i+1 < len(headers); i += 2 {
			req.Header.Set(headers[i], headers[i+1])
		}
		resp, err := http.DefaultClient.Do(req)
		ExpectWithOffset(1, err).NotTo(HaveOccurred())
		return resp
	}

	decode := func(resp *http.Response, dst interface{}) {
		defer resp.Body.Close()
		ExpectWithOffset(1, json.NewDecoder(resp.Body).Decode(dst)).To(Succeed())
	}

	login := func(username, password string) string {
		resp := call(http.MethodPost, "/auth/login", "", map[string]string{"username": username, "password": password})
		ExpectWithOffset(1, resp.StatusCode).To(Equal(http.StatusOK))
		var tokens auth.AuthTokens
		decode(resp, &tokens)
		return tokens.AccessToken
	}

	BeforeEach(func() {
		ctx := context.Background()
		db, err := storetest.Open()
		Expect(err).NotTo(HaveOccurred())
		sqlxDB, err := storetest.SQLX(db)
		Expect(err).NotTo(HaveOccurred())
		sqlDB, err := db.DB()
		Expect(err).NotTo(HaveOccurred())

		runner := storetest.Runner(db)
		recorder := audit.NewRecorder(nil)
		users := user.NewService(runner, recorder, user.WithDefaultRoleCode("user"))
		roles := role.NewService(runner, recorder, nil)
		facade := query.New(sqlxDB)

		tokens := auth.NewJWTTokenGenerator(
			"access-secret-access-secret-access",
			"refresh-secret-refresh-secret-refresh",
			15*time.Minute, time.Hour,
		)
		authSvc := auth.NewService(auth.NewRepository(db), tokens, bcrypt.MinCost)

		adminRole, err = roles.CreateRole(ctx, role.CreateRoleInput{Code: auth.RoleAdmin, Name: "Administrator"}, nil)
		Expect(err).NotTo(HaveOccurred())
		userRole, err = roles.CreateRole(ctx, role.CreateRoleInput{Code: "user", Name: "User"}, nil)
		Expect(err).NotTo(HaveOccurred())

		hash, err := authSvc.HashPassword("admin-password")
		Expect(err).NotTo(HaveOccurred())
		_, err = users.CreateUser(ctx, user.CreateUserInput{
			Username:     "root",
			PasswordHash: hash,
			RoleIDs:      []int64{adminRole.ID},
		}, nil)
		Expect(err).NotTo(HaveOccurred())

		router := chi.NewRouter()
		rest.RegisterAllRoutes(router, sqlDB, "sqlite", rest.Handlers{
			Auth:  auth.NewHandler(authSvc),
			RBAC:  auth.NewRBACAuthorization(nil),
			Users: user.NewHandler(users, facade, authSvc),
			Roles: role.NewHandler(roles, facade),
			Logs:  audit.NewHandler(facade),
		}, internal.ServerConfig{AllowedOrigins: "*"}, nil)

		server = httptest.NewServer(router)
		DeferCleanup(server.Close)

		adminToken = login("root", "admin-password")
	})

	It("should run alice through create, delete and restore", func() {
		// Given an admin creating alice with a profile and no explicit roles
		resp := call(http.MethodPost, "/users", adminToken, map[string]interface{}{
			"username": "alice",
			"password": "alice-password",
			"email":    "a@x.com",
			"profile":  map[string]string{"phone": "123456"},
		}, middleware.RequestIDHeader, "e2e-create-alice")
		Expect(resp.StatusCode).To(Equal(http.StatusCreated))
		var alice user.User
		decode(resp, &alice)
		path := fmt.Sprintf("/users/%d", alice.ID)

		// Then the default role is linked and the create is logged under the request id
		resp = call(http.MethodGet, path, adminToken, nil)
		Expect(resp.StatusCode).To(Equal(http.StatusOK))
		var agg user.Aggregate
		decode(resp, &agg)
		Expect(agg.Profile).NotTo(BeNil())
		Expect(agg.LiveRoleIDs()).To(ConsistOf(userRole.ID))

		resp = call(http.MethodGet, "/logs?request_id=e2e-create-alice", adminToken, nil)
		Expect(resp.StatusCode).To(Equal(http.StatusOK))
		var logs query.Page[query.LogRow]
		decode(resp, &logs)
		Expect(logs.Total).To(Equal(int64(1)))
		Expect(logs.Data[0].Action).To(Equal("CREATE"))
		Expect(logs.Data[0].ActorUserID).NotTo(BeNil())

		// When she is deleted
		resp = call(http.MethodDelete, path, adminToken, nil)
		Expect(resp.StatusCode).To(Equal(http.StatusNoContent))
		resp.Body.Close()

		// Then she is gone from reads but visible with include_deleted
		resp = call(http.MethodGet, path, adminToken, nil)
		Expect(resp.StatusCode).To(Equal(http.StatusNotFound))
		resp.Body.Close()
		resp = call(http.MethodGet, path+"?include_deleted=true", adminToken, nil)
		Expect(resp.StatusCode).To(Equal(http.StatusOK))
		resp.Body.Close()

		// When she is restored twice
		resp = call(http.MethodPost, path+"/restore", adminToken, nil)
		Expect(resp.StatusCode).To(Equal(http.StatusOK))
		resp.Body.Close()

		resp = call(http.MethodPost, path+"/restore", adminToken, nil)
		Expect(resp.StatusCode).To(Equal(http.StatusConflict))
		var apiErr apiError
		decode(resp, &apiErr)
		Expect(apiErr.Error.Code).To(Equal(string(internal.ErrCodeNotDeleted)))
		Expect(apiErr.RequestID).NotTo(BeEmpty())

		// Then her profile and role are back
		resp = call(http.MethodGet, path, adminToken, nil)
		decode(resp, &agg)
		Expect(agg.Profile).NotTo(BeNil())
		Expect(agg.LiveRoleIDs()).To(ConsistOf(userRole.ID))
	})

	It("should assign roles idempotently over HTTP", func() {
		resp := call(http.MethodPost, "/users", adminToken, map[string]interface{}{
			"username": "bob",
			"password": "bob-password",
		})
		Expect(resp.StatusCode).To(Equal(http.StatusCreated))
		var bob user.User
		decode(resp, &bob)
		rolesPath := fmt.Sprintf("/users/%d/roles", bob.ID)

		resp = call(http.MethodPost, rolesPath, adminToken, map[string]interface{}{"role_ids": []int64{adminRole.ID, userRole.ID}})
		Expect(resp.StatusCode).To(Equal(http.StatusOK))
		var result user.AssignResult
		decode(resp, &result)
		Expect(result.Assigned).To(ConsistOf(adminRole.ID))
		Expect(result.Skipped).To(ConsistOf(userRole.ID))

		resp = call(http.MethodDelete, fmt.Sprintf("%s/%d", rolesPath, adminRole.ID), adminToken, nil)
		Expect(resp.StatusCode).To(Equal(http.StatusNoContent))
		resp.Body.Close()

		resp = call(http.MethodDelete, fmt.Sprintf("%s/%d", rolesPath, adminRole.ID), adminToken, nil)
		Expect(resp.StatusCode).To(Equal(http.StatusNotFound))
		resp.Body.Close()

		resp = call(http.MethodPost, rolesPath, adminToken, map[string]interface{}{"role_ids": []int64{adminRole.ID}})
		Expect(resp.StatusCode).To(Equal(http.StatusOK))
		decode(resp, &result)
		Expect(result.Restored).To(ConsistOf(adminRole.ID))
	})

	It("should keep mutations to admins", func() {
		resp := call(http.MethodPost, "/users", adminToken, map[string]interface{}{
			"username": "carol",
			"password": "carol-password",
		})
		Expect(resp.StatusCode).To(Equal(http.StatusCreated))
		resp.Body.Close()

		carolToken := login("carol", "carol-password")

		resp = call(http.MethodGet, "/users?include_roles=true", carolToken, nil)
		Expect(resp.StatusCode).To(Equal(http.StatusOK))
		var page query.Page[query.UserRow]
		decode(resp, &page)
		Expect(page.Total).To(Equal(int64(2)))

		resp = call(http.MethodPost, "/roles", carolToken, map[string]string{"code": "auditor", "name": "Auditor"})
		Expect(resp.StatusCode).To(Equal(http.StatusForbidden))
		var apiErr apiError
		decode(resp, &apiErr)
		Expect(apiErr.Error.Code).To(Equal(string(internal.ErrCodeInsufficientRole)))

		resp = call(http.MethodGet, "/logs", carolToken, nil)
		Expect(resp.StatusCode).To(Equal(http.StatusForbidden))
		resp.Body.Close()

		resp = call(http.MethodGet, "/users", "", nil)
		Expect(resp.StatusCode).To(Equal(http.StatusUnauthorized))
		resp.Body.Close()
	})

	It("should register a user as a system action with the default role", func() {
		// Given an anonymous caller signing up with a profile
		resp := call(http.MethodPost, "/auth/register", "", map[string]interface{}{
			"username": "erin",
			"password": "erin-password",
			"email":    "e@x.com",
			"profile":  map[string]string{"full_name": "Erin"},
		})
		Expect(resp.StatusCode).To(Equal(http.StatusCreated))
		var erin user.User
		decode(resp, &erin)

		// Then the default role is linked
		resp = call(http.MethodGet, fmt.Sprintf("/users/%d", erin.ID), adminToken, nil)
		Expect(resp.StatusCode).To(Equal(http.StatusOK))
		var agg user.Aggregate
		decode(resp, &agg)
		Expect(agg.LiveRoleIDs()).To(ConsistOf(userRole.ID))
		Expect(agg.Profile).NotTo(BeNil())

		// And the create is logged without an actor
		resp = call(http.MethodGet, "/logs?target_table=users&action=CREATE&target_id="+audit.Target(erin.ID), adminToken, nil)
		Expect(resp.StatusCode).To(Equal(http.StatusOK))
		var logs query.Page[query.LogRow]
		decode(resp, &logs)
		Expect(logs.Total).To(Equal(int64(1)))
		Expect(logs.Data[0].ActorUserID).To(BeNil())

		resp = call(http.MethodGet, fmt.Sprintf("/logs/%d", logs.Data[0].ID), adminToken, nil)
		Expect(resp.StatusCode).To(Equal(http.StatusOK))
		var entry query.LogRow
		decode(resp, &entry)
		Expect(entry.TargetID).To(Equal(audit.Target(erin.ID)))

		// And the new account can sign in and read its profile
		erinToken := login("erin", "erin-password")
		resp = call(http.MethodGet, fmt.Sprintf("/profiles/%d", agg.Profile.ID), erinToken, nil)
		Expect(resp.StatusCode).To(Equal(http.StatusOK))
		var profile query.ProfileRow
		decode(resp, &profile)
		Expect(*profile.FullName).To(Equal("Erin"))
	})

	It("should not let a registration pick its roles", func() {
		resp := call(http.MethodPost, "/auth/register", "", map[string]interface{}{
			"username": "mallory",
			"password": "mallory-password",
			"role_ids": []int64{adminRole.ID},
		})
		Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))
		resp.Body.Close()
	})

	It("should report uniqueness conflicts with their codes", func() {
		body := map[string]interface{}{"username": "dave", "password": "dave-password", "email": "d@x.com"}
		resp := call(http.MethodPost, "/users", adminToken, body)
		Expect(resp.StatusCode).To(Equal(http.StatusCreated))
		resp.Body.Close()

		body["username"] = "dave2"
		resp = call(http.MethodPost, "/users", adminToken, body)
		Expect(resp.StatusCode).To(Equal(http.StatusConflict))
		var apiErr apiError
		decode(resp, &apiErr)
		Expect(apiErr.Error.Code).To(Equal(string(internal.ErrCodeEmailExists)))
	})
})

package internal_test

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/frahmantamala/user-management/internal"
	"github.com/frahmantamala/user-management/pkg/logger"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

func TestInternal(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Internal Suite")
}

func validConfig() *internal.Config {
	return &internal.Config{
		Server: internal.ServerConfig{
			Env:               "development",
			Port:              8080,
			AllowedOrigins:    "http://localhost:3000, *",
			ReadHeaderTimeout: 5 * time.Second,
			ReadTimeout:       15 * time.Second,
		},
		Database: internal.DatabaseConfig{
			Driver:          "postgres",
			Source:          "postgres://localhost/users",
			MaxOpenConns:    10,
			MaxIdleConns:    5,
			ConnMaxLifetime: 30 * time.Minute,
			ConnMaxIdleTime: 5 * time.Minute,
			IsolationLevel:  "repeatable_read",
		},
		Security: internal.SecurityConfig{
			JWTAccessSecret:      "access-secret-access-secret-access",
			JWTRefreshSecret:     "refresh-secret-refresh-secret-refresh",
			AccessTokenDuration:  15 * time.Minute,
			RefreshTokenDuration: 24 * time.Hour,
			BCryptCost:           10,
		},
	}
}

var _ = Describe("Config", func() {
	It("should accept a complete configuration", func() {
		Expect(validConfig().Validate()).To(Succeed())
	})

	It("should report struct tag failures by field", func() {
		cfg := validConfig()
		cfg.Database.Driver = "mysql"
		cfg.Security.BCryptCost = 40

		err := cfg.Validate()
		Expect(err).To(HaveOccurred())
		Expect(err.Error()).To(ContainSubstring("Config.Database.Driver failed on oneof"))
		Expect(err.Error()).To(ContainSubstring("Config.Security.BCryptCost failed on max"))
	})

	It("should reject identical jwt secrets", func() {
		cfg := validConfig()
		cfg.Security.JWTRefreshSecret = cfg.Security.JWTAccessSecret
		Expect(cfg.Validate()).To(MatchError(ContainSubstring("must differ")))
	})

	It("should reject more idle than open connections", func() {
		cfg := validConfig()
		cfg.Database.MaxIdleConns = 20
		Expect(cfg.Validate()).To(MatchError(ContainSubstring("max_idle_conns")))
	})

	It("should fall back to 90 days of log retention", func() {
		Expect((&internal.AuditConfig{}).Days()).To(Equal(90))
		Expect((&internal.AuditConfig{RetentionDays: 7}).Days()).To(Equal(7))
	})

	Describe("logging", func() {
		It("should default by environment when the section is empty", func() {
			cfg := validConfig()
			Expect(cfg.LoggerOptions()).To(Equal(logger.Options{Level: "debug", Format: "text"}))

			cfg.Server.Env = "production"
			Expect(cfg.LoggerOptions()).To(Equal(logger.Options{Level: "info", Format: "json"}))
		})

		It("should prefer the configured level and format", func() {
			cfg := validConfig()
			cfg.Server.Env = "production"
			cfg.Logging = internal.LoggingConfig{Level: "warn", Format: "text"}
			Expect(cfg.LoggerOptions()).To(Equal(logger.Options{Level: "warn", Format: "text"}))
		})

		It("should drop records below the configured level", func() {
			var buf bytes.Buffer
			cfg := validConfig()
			cfg.Logging = internal.LoggingConfig{Level: "warn", Format: "json"}
			lg := logger.New(&buf, cfg.LoggerOptions())

			lg.Info("hidden")
			lg.Warn("shown", "user_id", 7)

			Expect(buf.String()).NotTo(ContainSubstring("hidden"))
			Expect(buf.String()).To(ContainSubstring(`"msg":"shown"`))
			Expect(buf.String()).To(ContainSubstring(`"user_id":7`))
		})

		It("should write text records for the text format", func() {
			var buf bytes.Buffer
			logger.New(&buf, logger.Options{Level: "debug", Format: "text"}).Debug("starting", "port", 8080)
			Expect(buf.String()).To(ContainSubstring("level=DEBUG"))
			Expect(buf.String()).To(ContainSubstring("msg=starting port=8080"))
		})
	})

	DescribeTable("ParseIsolationLevel",
		func(raw string, want sql.IsolationLevel, ok bool) {
			got, err := internal.ParseIsolationLevel(raw)
			if !ok {
				Expect(err).To(HaveOccurred())
				return
			}
			Expect(err).NotTo(HaveOccurred())
			Expect(got).To(Equal(want))
		},
		Entry("empty", "", sql.LevelRepeatableRead, true),
		Entry("repeatable read", "repeatable_read", sql.LevelRepeatableRead, true),
		Entry("upper case serializable", "SERIALIZABLE", sql.LevelSerializable, true),
		Entry("read committed", "read_committed", sql.LevelReadCommitted, true),
		Entry("driver default", "default", sql.LevelDefault, true),
		Entry("unknown", "snapshot", sql.LevelDefault, false),
	)
})

var _ = Describe("AppError", func() {
	DescribeTable("status codes",
		func(err *internal.AppError, status int) {
			Expect(err.StatusCode).To(Equal(status))
		},
		Entry("not found", internal.NewNotFoundError("x", internal.ErrCodeUserNotFound), http.StatusNotFound),
		Entry("conflict", internal.NewConflictError("x", internal.ErrCodeUsernameExists), http.StatusConflict),
		Entry("invalid state", internal.NewInvalidStateError("x", internal.ErrCodeRoleNeverAssigned), http.StatusBadRequest),
		Entry("transient", internal.NewTransientStorageError("x", nil), http.StatusServiceUnavailable),
		Entry("validation", internal.NewValidationError("x", internal.ErrCodeValidationFailed), http.StatusBadRequest),
		Entry("unauthorized", internal.NewUnauthorizedError("x", internal.ErrCodeInvalidToken), http.StatusUnauthorized),
		Entry("forbidden", internal.NewForbiddenError("x", internal.ErrCodeInsufficientRole), http.StatusForbidden),
		Entry("internal", internal.NewInternalError("x", nil), http.StatusInternalServerError),
		Entry("canceled", internal.NewCanceledError(context.Canceled), internal.StatusClientClosedRequest),
	)

	It("should build the response body with the request id", func() {
		status, body := internal.NewNotFoundError("user not found", internal.ErrCodeUserNotFound).ToHTTPResponse("r-7")
		Expect(status).To(Equal(http.StatusNotFound))
		Expect(body.RequestID).To(Equal("r-7"))
		Expect(body.Error.Code).To(Equal(internal.ErrCodeUserNotFound))
	})

	It("should be found through wrapping", func() {
		wrapped := fmt.Errorf("outer: %w", internal.NewConflictError("username exists", internal.ErrCodeUsernameExists))
		appErr, ok := internal.IsAppError(wrapped)
		Expect(ok).To(BeTrue())
		Expect(appErr.Code).To(Equal(internal.ErrCodeUsernameExists))
		Expect(internal.IsType(wrapped, internal.ErrorTypeConflict)).To(BeTrue())
		Expect(errors.Is(wrapped, internal.NewConflictError("other text", internal.ErrCodeUsernameExists))).To(BeTrue())
	})

	It("should only mark transient storage errors retryable", func() {
		Expect(internal.NewTransientStorageError("x", nil).Retryable()).To(BeTrue())
		Expect(internal.NewConflictError("x", internal.ErrCodeUsernameExists).Retryable()).To(BeFalse())
	})

	It("should keep the cause out of the JSON body", func() {
		appErr := internal.NewInternalError("storage failure", errors.New("pq: password authentication failed"))
		raw, err := json.Marshal(internal.Response{Error: appErr, RequestID: "r-1"})
		Expect(err).NotTo(HaveOccurred())
		Expect(string(raw)).NotTo(ContainSubstring("password authentication"))
		Expect(string(raw)).To(ContainSubstring(`"request_id":"r-1"`))
	})
})

var _ = Describe("context helpers", func() {
	It("should carry the request id and actor", func() {
		ctx := internal.ContextWithRequestID(context.Background(), "req-9")
		ctx = internal.ContextWithUserID(ctx, "42")

		Expect(internal.RequestIDFromContext(ctx)).To(Equal("req-9"))
		Expect(internal.UserIDFromContext(ctx)).To(Equal("42"))
		Expect(*internal.ActorIDFromContext(ctx)).To(Equal(int64(42)))
		Expect(internal.ActorIDFromContext(context.Background())).To(BeNil())
	})
})

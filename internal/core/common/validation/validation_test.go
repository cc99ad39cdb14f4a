package validation_test

import (
	"testing"
	"time"

	"github.com/frahmantamala/user-management/internal"
	"github.com/frahmantamala/user-management/internal/core/common/validation"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

func TestValidation(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Validation Suite")
}

func fields(err *internal.AppError) []string {
	details, ok := err.Details.(internal.ValidationErrors)
	ExpectWithOffset(1, ok).To(BeTrue())
	out := make([]string, 0, len(details.Errors))
	for _, e := range details.Errors {
		out = append(out, e.Field)
	}
	return out
}

func strPtr(s string) *string { return &s }

var _ = Describe("ValidationBuilder", func() {
	It("should pass when every rule holds", func() {
		v := validation.NewValidator()
		validation.Username(v, "username", "alice.b").Required()
		v.Field("email", strPtr("a@x.com")).Email()
		validation.RoleCode(v, "code", "user:admin")
		validation.Phone(v, "phone", strPtr("+1 (555) 010-0100"))
		Expect(v.Validate()).To(BeNil())
	})

	It("should collect every failing field", func() {
		v := validation.NewValidator()
		validation.Username(v, "username", "a b").Required()
		v.Field("email", "not-an-email").Email()
		v.Field("role_ids", []int64{1, 0}).PositiveIDs()
		v.Field("status", "archived").OneOf("enabled", "disabled")

		err := v.Validate()
		Expect(err).NotTo(BeNil())
		Expect(err.Code).To(Equal(internal.ErrCodeValidationFailed))
		Expect(fields(err)).To(ContainElements("username", "email", "role_ids", "status"))
	})

	It("should skip optional pointers that are nil", func() {
		v := validation.NewValidator()
		v.Field("email", (*string)(nil)).Email().MaxLength(3)
		validation.Phone(v, "phone", (*string)(nil))
		Expect(v.Validate()).To(BeNil())
	})

	It("should require non-empty values", func() {
		v := validation.NewValidator()
		v.Field("name", "   ").Required()
		v.Field("role_ids", []int64{}).Required()
		Expect(fields(v.Validate())).To(ConsistOf("name", "role_ids"))
	})

	It("should reject email addresses with display names", func() {
		v := validation.NewValidator()
		v.Field("email", "Alice <a@x.com>").Email()
		Expect(v.Validate()).NotTo(BeNil())
	})

	It("should reject future dates with INVALID_DATE", func() {
		tomorrow := time.Now().Add(24 * time.Hour)
		v := validation.NewValidator()
		v.Field("birthday", &tomorrow).NotFuture()

		details := v.Validate().Details.(internal.ValidationErrors)
		Expect(details.Errors).To(HaveLen(1))
		Expect(details.Errors[0].Code).To(Equal(string(internal.ErrCodeInvalidDate)))
	})

	It("should bound integers", func() {
		v := validation.NewValidator()
		v.Field("days", int64(0)).MinInt(1, internal.ErrCodeValidationFailed)
		v.Field("limit", int64(500)).MaxInt(100, internal.ErrCodeValidationFailed)
		Expect(fields(v.Validate())).To(ConsistOf("days", "limit"))
	})
})

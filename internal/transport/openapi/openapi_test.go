package openapi_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/frahmantamala/user-management/internal/transport/openapi"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

func TestOpenAPI(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "OpenAPI Suite")
}

var _ = Describe("embedded document", func() {
	It("should load and validate", func() {
		doc, err := openapi.Load(context.Background())
		Expect(err).NotTo(HaveOccurred())
		Expect(openapi.Operations(doc)).To(ContainElements(
			"POST /users",
			"POST /users/{id}/restore",
			"DELETE /users/{id}/roles/{roleId}",
			"GET /logs",
			"GET /logs/{id}",
			"GET /profiles/{id}",
			"POST /auth/register",
		))
	})

	It("should be served as YAML", func() {
		rec := httptest.NewRecorder()
		openapi.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/openapi.yml", nil))
		Expect(rec.Code).To(Equal(http.StatusOK))
		Expect(rec.Header().Get("Content-Type")).To(Equal("application/yaml"))
		Expect(rec.Body.Bytes()).To(Equal(openapi.Document()))
	})
})

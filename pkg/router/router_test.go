package router

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func serve(r *Router, method, path string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func named(name string) HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(name))
	}
}

func TestExactAndWildcardRoutes(t *testing.T) {
	r := New()
	r.GET("/api/v1/runs", named("list"))
	r.GET("/api/v1/runs/*/submissions", named("submissions"))
	r.GET("/api/v1/runs/*", named("get"))

	assert.Equal(t, "list", serve(r, http.MethodGet, "/api/v1/runs").Body.String())
	assert.Equal(t, "get", serve(r, http.MethodGet, "/api/v1/runs/abc").Body.String())
	assert.Equal(t, "submissions", serve(r, http.MethodGet, "/api/v1/runs/abc/submissions").Body.String())
}

func TestRegistrationOrderWins(t *testing.T) {
	r := New()
	r.GET("/api/v1/runs/*", named("generic"))
	r.GET("/api/v1/runs/*/submissions", named("specific"))

	// The generic trailing wildcard was registered first, so it shadows
	// the more specific route.
	assert.Equal(t, "generic", serve(r, http.MethodGet, "/api/v1/runs/abc/submissions").Body.String())
}

func TestTrailingWildcardSwallowsRest(t *testing.T) {
	r := New()
	r.GET("/swagger/*", named("swagger"))

	assert.Equal(t, "swagger", serve(r, http.MethodGet, "/swagger/index.html").Body.String())
	assert.Equal(t, "swagger", serve(r, http.MethodGet, "/swagger/doc.json").Body.String())
}

func TestMethodNotAllowedAndNotFound(t *testing.T) {
	r := New()
	r.GET("/api/v1/runs", named("list"))

	assert.Equal(t, http.StatusMethodNotAllowed, serve(r, http.MethodPost, "/api/v1/runs").Code)
	assert.Equal(t, http.StatusNotFound, serve(r, http.MethodGet, "/api/v1/nope").Code)
}

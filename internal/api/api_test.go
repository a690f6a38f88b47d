package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"cmip6-pipeline/internal/store"
	"cmip6-pipeline/pkg/router"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setup(t *testing.T) *router.Router {
	t.Helper()
	require.NoError(t, store.InitDB(":memory:"))
	require.NoError(t, store.CreateRun("run-1", "urls.csv", "my-output"))
	require.NoError(t, store.SaveSubmission("run-1", "s3://in/a", "s3://out/a", 2015, "h-1"))
	require.NoError(t, store.SaveSubmission("run-1", "s3://in/a", "s3://out/a", 2016, "h-2"))

	r := router.New()
	RegisterRoutes(r)
	return r
}

func get(r *router.Router, path string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestListRuns(t *testing.T) {
	r := setup(t)

	rec := get(r, "/api/v1/runs")
	require.Equal(t, http.StatusOK, rec.Code)

	var runs []store.Run
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &runs))
	require.Len(t, runs, 1)
	assert.Equal(t, "run-1", runs[0].ID)
	assert.Equal(t, "running", runs[0].Status)
}

func TestGetRun(t *testing.T) {
	r := setup(t)

	rec := get(r, "/api/v1/runs/run-1")
	require.Equal(t, http.StatusOK, rec.Code)

	var run store.Run
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &run))
	assert.Equal(t, "run-1", run.ID)
	assert.Equal(t, map[string]int{store.StatusSubmitted: 2}, run.Submissions)

	assert.Equal(t, http.StatusNotFound, get(r, "/api/v1/runs/nope").Code)
}

func TestGetRunSubmissions(t *testing.T) {
	r := setup(t)

	rec := get(r, "/api/v1/runs/run-1/submissions")
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		RunID       string             `json:"run_id"`
		Submissions []store.Submission `json:"submissions"`
		Count       int                `json:"count"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "run-1", body.RunID)
	assert.Equal(t, 2, body.Count)
	require.Len(t, body.Submissions, 2)
	assert.Equal(t, 2015, body.Submissions[0].Year)
}

func TestGetRunErrors(t *testing.T) {
	r := setup(t)
	require.NoError(t, store.SaveRunError("run-1", "s3://in/bad", assert.AnError))

	rec := get(r, "/api/v1/runs/run-1/errors")
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Errors []store.RunError `json:"errors"`
		Count  int              `json:"count"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, 1, body.Count)
	assert.Equal(t, "s3://in/bad", body.Errors[0].InputURL)
}

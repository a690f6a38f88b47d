package handler

import (
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"cmip6-pipeline/internal/store"
)

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

// runID pulls the run ID out of /api/v1/runs/{id}[/...] paths.
func runID(r *http.Request) string {
	parts := strings.Split(strings.Trim(r.URL.Path, "/"), "/")
	if len(parts) < 4 {
		return ""
	}
	return parts[3]
}

// ListRuns retrieves all dispatch runs
// @Summary List runs
// @Description Get every batch dispatch run with its current status
// @Tags runs
// @Produce json
// @Success 200 {array} store.Run "List of runs"
// @Failure 500 {object} map[string]interface{} "Internal server error"
// @Router /runs [get]
func ListRuns(w http.ResponseWriter, r *http.Request) {
	runs, err := store.ListRuns()
	if err != nil {
		http.Error(w, "Failed to fetch runs", http.StatusInternalServerError)
		return
	}
	if runs == nil {
		runs = []store.Run{}
	}
	writeJSON(w, runs)
}

// GetRun retrieves one dispatch run
// @Summary Get run
// @Description Retrieve one run with its submission status counts
// @Tags runs
// @Produce json
// @Param id path string true "Run ID"
// @Success 200 {object} store.Run "Run details"
// @Failure 404 {object} map[string]interface{} "Run not found"
// @Router /runs/{id} [get]
func GetRun(w http.ResponseWriter, r *http.Request) {
	id := runID(r)
	if id == "" {
		http.Error(w, "Run ID is required", http.StatusBadRequest)
		return
	}

	run, err := store.GetRun(id)
	if errors.Is(err, sql.ErrNoRows) {
		http.Error(w, "Run not found", http.StatusNotFound)
		return
	}
	if err != nil {
		http.Error(w, "Failed to fetch run", http.StatusInternalServerError)
		return
	}
	writeJSON(w, run)
}

// GetRunSubmissions retrieves a run's per-year job submissions
// @Summary Get run submissions
// @Description List every per-year job submitted by a run
// @Tags runs
// @Produce json
// @Param id path string true "Run ID"
// @Success 200 {object} map[string]interface{} "Run submissions"
// @Failure 500 {object} map[string]interface{} "Internal server error"
// @Router /runs/{id}/submissions [get]
func GetRunSubmissions(w http.ResponseWriter, r *http.Request) {
	id := runID(r)
	if id == "" {
		http.Error(w, "Run ID is required", http.StatusBadRequest)
		return
	}

	subs, err := store.ListSubmissions(id)
	if err != nil {
		http.Error(w, "Failed to fetch submissions", http.StatusInternalServerError)
		return
	}
	writeJSON(w, map[string]interface{}{
		"run_id":      id,
		"submissions": subs,
		"count":       len(subs),
	})
}

// GetRunErrors retrieves a run's per-dataset errors
// @Summary Get run errors
// @Description List the datasets that failed during a run and why
// @Tags runs
// @Produce json
// @Param id path string true "Run ID"
// @Success 200 {object} map[string]interface{} "Run errors"
// @Failure 500 {object} map[string]interface{} "Internal server error"
// @Router /runs/{id}/errors [get]
func GetRunErrors(w http.ResponseWriter, r *http.Request) {
	id := runID(r)
	if id == "" {
		http.Error(w, "Run ID is required", http.StatusBadRequest)
		return
	}

	runErrors, err := store.GetRunErrors(id)
	if err != nil {
		http.Error(w, "Failed to fetch errors", http.StatusInternalServerError)
		return
	}
	writeJSON(w, map[string]interface{}{
		"run_id": id,
		"errors": runErrors,
		"count":  len(runErrors),
	})
}

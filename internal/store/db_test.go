package store

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func initTestDB(t *testing.T) {
	t.Helper()
	require.NoError(t, InitDB(":memory:"))
	t.Cleanup(func() {
		db.Close()
		db = nil
	})
}

func TestRunLifecycle(t *testing.T) {
	initTestDB(t)

	require.NoError(t, CreateRun("run-1", "urls.csv", "my-output"))
	require.NoError(t, SaveSubmission("run-1", "s3://in/a", "s3://out/a", 2015, "h-1"))
	require.NoError(t, SaveSubmission("run-1", "s3://in/a", "s3://out/a", 2016, "h-2"))
	require.NoError(t, UpdateRunStatus("run-1", "completed"))

	runs, err := ListRuns()
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, "completed", runs[0].Status)
	assert.Equal(t, "urls.csv", runs[0].InputFile)

	run, err := GetRun("run-1")
	require.NoError(t, err)
	assert.Equal(t, map[string]int{StatusSubmitted: 2}, run.Submissions)

	subs, err := ListSubmissions("run-1")
	require.NoError(t, err)
	require.Len(t, subs, 2)
	assert.Equal(t, 2015, subs[0].Year)
	assert.Equal(t, 2016, subs[1].Year)
}

func TestUpdateSubmissionStatus(t *testing.T) {
	initTestDB(t)

	require.NoError(t, CreateRun("run-1", "urls.csv", "my-output"))
	require.NoError(t, SaveSubmission("run-1", "s3://in/a", "s3://out/a", 2015, "h-1"))

	require.NoError(t, UpdateSubmissionStatus("h-1", StatusSucceeded))
	subs, err := ListSubmissions("run-1")
	require.NoError(t, err)
	assert.Equal(t, StatusSucceeded, subs[0].Status)

	assert.Error(t, UpdateSubmissionStatus("no-such-handle", StatusMissing))
}

func TestRunErrors(t *testing.T) {
	initTestDB(t)

	require.NoError(t, CreateRun("run-1", "urls.csv", "my-output"))
	require.NoError(t, SaveRunError("run-1", "s3://in/broken", errors.New("no zarr store found")))
	require.NoError(t, SaveRunError("run-1", "s3://in/ok", nil))

	errs, err := GetRunErrors("run-1")
	require.NoError(t, err)
	require.Len(t, errs, 1)
	assert.Equal(t, "s3://in/broken", errs[0].InputURL)
	assert.Equal(t, "no zarr store found", errs[0].Message)
}

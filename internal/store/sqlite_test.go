package store_test

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/mailagent/internal/model"
	"github.com/nhle/mailagent/internal/store"
	"github.com/nhle/mailagent/tests/testutil"
)

func TestSaveAndGetRun(t *testing.T) {
	s := testutil.NewTestStore(t)
	ctx := context.Background()
	result := testutil.SampleResult()

	id, err := s.SaveRun(ctx, "Summarize my inbox", result)
	require.NoError(t, err)
	require.NotEmpty(t, id)

	run, err := s.GetRun(ctx, id)
	require.NoError(t, err)

	assert.Equal(t, "Summarize my inbox", run.Task)
	assert.Equal(t, result.Plan, run.Plan)
	assert.Equal(t, model.StatusFailed, run.Status)
	assert.Equal(t, 2, run.StepCount)
	assert.Equal(t, 1, run.FailureCount)
	assert.False(t, run.CreatedAt.IsZero())

	require.Len(t, run.Steps, 2)

	first := run.Steps[0]
	assert.Equal(t, 1, first.Position)
	assert.Equal(t, "list_recent", first.Operation)
	assert.Equal(t, model.StatusSuccess, first.Status)
	assert.Empty(t, first.Error)

	var emails []model.Email
	require.NoError(t, json.Unmarshal([]byte(first.Result), &emails))
	assert.Len(t, emails, 2)

	var diags []model.Diagnostic
	require.NoError(t, json.Unmarshal([]byte(first.Diagnostics), &diags))
	require.Len(t, diags, 1)
	assert.Equal(t, model.StageClassify, diags[0].Stage)

	second := run.Steps[1]
	assert.Equal(t, 2, second.Position)
	assert.Equal(t, model.StatusFailed, second.Status)
	assert.Contains(t, second.Error, "remote unavailable")
	assert.Empty(t, second.Result)
}

func TestSaveRun_EmptyResult(t *testing.T) {
	s := testutil.NewTestStore(t)
	ctx := context.Background()

	id, err := s.SaveRun(ctx, "nothing", model.NewTaskResult("no plan", nil))
	require.NoError(t, err)

	run, err := s.GetRun(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, model.StatusSuccess, run.Status)
	assert.Empty(t, run.Steps)
}

func TestSaveRun_NilResult(t *testing.T) {
	s := testutil.NewTestStore(t)

	_, err := s.SaveRun(context.Background(), "task", nil)
	assert.Error(t, err)
}

func TestGetRun_NotFound(t *testing.T) {
	s := testutil.NewTestStore(t)

	_, err := s.GetRun(context.Background(), "missing")
	assert.ErrorIs(t, err, store.ErrRunNotFound)
}

func TestListRuns(t *testing.T) {
	s := testutil.NewTestStore(t)
	ctx := context.Background()

	okID, err := s.SaveRun(ctx, "first", model.NewTaskResult("", nil))
	require.NoError(t, err)
	failedID, err := s.SaveRun(ctx, "second", testutil.SampleResult())
	require.NoError(t, err)

	runs, err := s.ListRuns(ctx, store.RunFilter{})
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, failedID, runs[0].ID)
	assert.Equal(t, okID, runs[1].ID)
	assert.Empty(t, runs[0].Steps)

	failed := model.StatusFailed
	runs, err = s.ListRuns(ctx, store.RunFilter{Status: &failed})
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, "second", runs[0].Task)

	runs, err = s.ListRuns(ctx, store.RunFilter{Limit: 1})
	require.NoError(t, err)
	assert.Len(t, runs, 1)
}

func TestDeleteRun(t *testing.T) {
	s := testutil.NewTestStore(t)
	ctx := context.Background()

	id, err := s.SaveRun(ctx, "task", testutil.SampleResult())
	require.NoError(t, err)

	require.NoError(t, s.DeleteRun(ctx, id))

	_, err = s.GetRun(ctx, id)
	assert.ErrorIs(t, err, store.ErrRunNotFound)

	err = s.DeleteRun(ctx, id)
	assert.ErrorIs(t, err, store.ErrRunNotFound)
}

func TestMigrationsAreIdempotent(t *testing.T) {
	path := t.TempDir() + "/runs.db"

	s, err := store.NewSQLiteStore(path)
	require.NoError(t, err)
	_, err = s.SaveRun(context.Background(), "task", testutil.SampleResult())
	require.NoError(t, err)
	require.NoError(t, s.Close())

	s, err = store.NewSQLiteStore(path)
	require.NoError(t, err)
	defer s.Close()

	runs, err := s.ListRuns(context.Background(), store.RunFilter{})
	require.NoError(t, err)
	assert.Len(t, runs, 1)
}

package agent

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/nhle/mailagent/internal/executor"
	"github.com/nhle/mailagent/internal/mailbox/mailboxtest"
	"github.com/nhle/mailagent/internal/model"
)

// MockPlanner is a mock implementation of Planner.
type MockPlanner struct {
	mock.Mock
}

func (m *MockPlanner) Generate(ctx context.Context, task string) (string, error) {
	args := m.Called(ctx, task)
	return args.String(0), args.Error(1)
}

// MockRecorder is a mock implementation of Recorder.
type MockRecorder struct {
	mock.Mock
}

func (m *MockRecorder) SaveRun(
	ctx context.Context, task string, result *model.TaskResult,
) (string, error) {
	args := m.Called(ctx, task, result)
	return args.String(0), args.Error(1)
}

func newAgent(t *testing.T, planText string, gw *mailboxtest.Gateway, opts ...Option) *Agent {
	t.Helper()
	planner := new(MockPlanner)
	planner.On("Generate", mock.Anything, mock.Anything).Return(planText, nil)
	return New(planner, executor.New(gw), opts...)
}

func TestProcessTask_ReadAndCategorize(t *testing.T) {
	gw := mailboxtest.New(
		mailboxtest.Email("m1", "Flash sale this weekend"),
		mailboxtest.Email("m2", "Project kickoff meeting"),
		mailboxtest.Email("m3", "Dinner on Friday?"),
	)
	a := newAgent(t, "1. list_recent(top=2)", gw)

	result, err := a.ProcessTask(context.Background(), "Read my last 2 emails and categorize them")
	require.NoError(t, err)

	assert.Equal(t, model.StatusSuccess, result.Status)
	assert.Equal(t, "1. list_recent(top=2)", result.Plan)
	require.Len(t, result.Results, 1)

	out := result.Results[0]
	assert.Equal(t, model.OpListRecent, out.Step.Operation)
	assert.Equal(t, 2, out.Step.Params.Count)

	emails, ok := out.Result.([]model.Email)
	require.True(t, ok)
	assert.Len(t, emails, 2)
	assert.Equal(t, 2, gw.CallCount("SetCategories"))
}

func TestProcessTask_StructuredPlan(t *testing.T) {
	gw := mailboxtest.New()
	planText := `{"version":1,"steps":[{"operation":"send","parameters":{"to":["a@example.com"],"subject":"Hi","body":"Hello"}}]}`
	a := newAgent(t, planText, gw)

	result, err := a.ProcessTask(context.Background(), "Say hi to a")
	require.NoError(t, err)

	assert.Equal(t, model.StatusSuccess, result.Status)
	require.Len(t, result.Results, 1)
	assert.Len(t, gw.Sent(), 1)
}

func TestProcessTask_NoRecognizedSteps(t *testing.T) {
	gw := mailboxtest.New()
	a := newAgent(t, "I am not sure what to do here.", gw)

	result, err := a.ProcessTask(context.Background(), "hmm")
	require.NoError(t, err)

	assert.Equal(t, model.StatusSuccess, result.Status)
	assert.NotNil(t, result.Results)
	assert.Empty(t, result.Results)
	assert.Empty(t, gw.Calls())
}

func TestProcessTask_PartialFailure(t *testing.T) {
	gw := mailboxtest.New(
		mailboxtest.Email("a", "x"),
		mailboxtest.Email("c", "z"),
	)
	planText := "1. categorize(id=a, categories=[Work])\n" +
		"2. categorize(id=b, categories=[Work])\n" +
		"3. categorize(id=c, categories=[Personal])"
	a := newAgent(t, planText, gw)

	result, err := a.ProcessTask(context.Background(), "tidy up")
	require.NoError(t, err)

	assert.Equal(t, model.StatusFailed, result.Status)
	require.Len(t, result.Results, 3)
	assert.False(t, result.Results[0].IsFailure())
	assert.True(t, result.Results[1].IsFailure())
	assert.False(t, result.Results[2].IsFailure())
}

func TestProcessTask_PlanGenerationError(t *testing.T) {
	planner := new(MockPlanner)
	planner.On("Generate", mock.Anything, "task").Return("", errors.New("model offline"))
	gw := mailboxtest.New()
	a := New(planner, executor.New(gw))

	result, err := a.ProcessTask(context.Background(), "task")

	assert.Nil(t, result)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrPlanGeneration)
	assert.Contains(t, err.Error(), "model offline")
	assert.Empty(t, gw.Calls())
}

func TestProcessTask_RecordsRun(t *testing.T) {
	gw := mailboxtest.New()
	rec := new(MockRecorder)
	rec.On("SaveRun", mock.Anything, "task", mock.AnythingOfType("*model.TaskResult")).
		Return("run-1", nil)
	a := newAgent(t, "nothing", gw, WithRecorder(rec))

	_, err := a.ProcessTask(context.Background(), "task")
	require.NoError(t, err)

	rec.AssertExpectations(t)
}

func TestProcessTask_RecorderErrorIgnored(t *testing.T) {
	gw := mailboxtest.New()
	rec := new(MockRecorder)
	rec.On("SaveRun", mock.Anything, mock.Anything, mock.Anything).
		Return("", errors.New("disk full"))
	a := newAgent(t, "nothing", gw, WithRecorder(rec))

	result, err := a.ProcessTask(context.Background(), "task")
	require.NoError(t, err)
	assert.Equal(t, model.StatusSuccess, result.Status)
}

func TestTaskResult_JSONShape(t *testing.T) {
	gw := mailboxtest.New(mailboxtest.Email("a", "x"))
	planText := "1. categorize(id=a, categories=[Work])\n2. categorize(id=zz, categories=[Work])"
	a := newAgent(t, planText, gw)

	result, err := a.ProcessTask(context.Background(), "task")
	require.NoError(t, err)

	data, err := json.Marshal(result)
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, planText, decoded["plan"])
	assert.Equal(t, "failed", decoded["status"])

	results, ok := decoded["results"].([]any)
	require.True(t, ok)
	require.Len(t, results, 2)

	first := results[0].(map[string]any)
	assert.Contains(t, first, "step")
	assert.Contains(t, first, "result")
	assert.NotContains(t, first, "error")

	second := results[1].(map[string]any)
	assert.Contains(t, second, "error")
	assert.NotContains(t, second, "result")
}

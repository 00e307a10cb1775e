package executor

import (
	"context"
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/mailagent/internal/mailbox"
	"github.com/nhle/mailagent/internal/mailbox/mailboxtest"
	"github.com/nhle/mailagent/internal/model"
)

func listStep(count int) model.StepDescriptor {
	return model.StepDescriptor{
		Operation: model.OpListRecent,
		RawText:   "list_recent",
		Params:    model.StepParams{Count: count},
	}
}

func categorizeStep(id string, cats ...model.Category) model.StepDescriptor {
	return model.StepDescriptor{
		Operation: model.OpCategorize,
		RawText:   "categorize " + id,
		Params:    model.StepParams{MessageID: id, Categories: cats},
	}
}

func TestExecute_ListRecentCategorizesEachEmail(t *testing.T) {
	gw := mailboxtest.New(
		mailboxtest.Email("A", "Big sale on shoes"),
		mailboxtest.Email("B", "Meeting at 3pm"),
	)
	exec := New(gw)

	outcomes := exec.Execute(context.Background(), []model.StepDescriptor{listStep(2)})

	require.Len(t, outcomes, 1)
	assert.False(t, outcomes[0].IsFailure())
	assert.Empty(t, outcomes[0].Diagnostics)

	emails, ok := outcomes[0].Result.([]model.Email)
	require.True(t, ok)
	require.Len(t, emails, 2)
	assert.Equal(t, []model.Category{model.CategoryPromotional}, emails[0].Categories)
	assert.Equal(t, []model.Category{model.CategoryWork}, emails[1].Categories)

	assert.Equal(t, 2, gw.CallCount("Classify"))
	assert.Equal(t, 2, gw.CallCount("SetCategories"))
	assert.Equal(t, []model.Category{model.CategoryPromotional}, gw.Categories("A"))
	assert.Equal(t, []model.Category{model.CategoryWork}, gw.Categories("B"))
}

func TestExecute_ListRecentSubCallOrder(t *testing.T) {
	gw := mailboxtest.New(
		mailboxtest.Email("A", "hello"),
		mailboxtest.Email("B", "offer"),
	)

	New(gw).Execute(context.Background(), []model.StepDescriptor{listStep(5)})

	assert.Equal(t, []mailboxtest.Call{
		{Method: "ListRecent", Arg: "5"},
		{Method: "Classify", Arg: "hello"},
		{Method: "SetCategories", Arg: "A"},
		{Method: "Classify", Arg: "offer"},
		{Method: "SetCategories", Arg: "B"},
	}, gw.Calls())
}

func TestExecute_ListRecentDefaultsCount(t *testing.T) {
	gw := mailboxtest.New()

	outcomes := New(gw).Execute(context.Background(), []model.StepDescriptor{listStep(0)})

	require.Len(t, outcomes, 1)
	assert.False(t, outcomes[0].IsFailure())
	assert.Equal(t, []model.Email{}, outcomes[0].Result)
	assert.Equal(t, "10", gw.Calls()[0].Arg)
}

func TestExecute_ListRecentListError(t *testing.T) {
	gw := mailboxtest.New()
	gw.ListErr = mailbox.Unavailable("list", errors.New("connection reset"))

	outcomes := New(gw).Execute(context.Background(), []model.StepDescriptor{listStep(3)})

	require.Len(t, outcomes, 1)
	assert.True(t, outcomes[0].IsFailure())
	assert.Contains(t, outcomes[0].Error, "listing recent emails")
	assert.Zero(t, gw.CallCount("Classify"))
}

func TestExecute_SubCallFailuresBecomeDiagnostics(t *testing.T) {
	gw := mailboxtest.New(
		mailboxtest.Email("A", "sale"),
		mailboxtest.Email("B", "boom"),
		mailboxtest.Email("C", "meeting"),
	)
	gw.ClassifyErrs = map[string]error{"boom": mailbox.ErrClassifierUnavailable}
	gw.SetErrs = map[string]error{"C": mailbox.ErrRemoteUnavailable}

	outcomes := New(gw).Execute(context.Background(), []model.StepDescriptor{listStep(3)})

	require.Len(t, outcomes, 1)
	out := outcomes[0]
	assert.False(t, out.IsFailure())
	require.Len(t, out.Diagnostics, 2)
	assert.Equal(t, "B", out.Diagnostics[0].MessageID)
	assert.Equal(t, model.StageClassify, out.Diagnostics[0].Stage)
	assert.Equal(t, "C", out.Diagnostics[1].MessageID)
	assert.Equal(t, model.StageCategorize, out.Diagnostics[1].Stage)

	// classify failure skips the categorize call for that email
	assert.Equal(t, 2, gw.CallCount("SetCategories"))

	emails := out.Result.([]model.Email)
	assert.Equal(t, []model.Category{model.CategoryPromotional}, emails[0].Categories)
	assert.Empty(t, emails[1].Categories)
	assert.Empty(t, emails[2].Categories)
}

func TestExecute_RejectedCategoriesBecomeDiagnostic(t *testing.T) {
	gw := mailboxtest.New(mailboxtest.Email("A", "sale"))
	gw.Reject = map[string]bool{"A": true}

	outcomes := New(gw).Execute(context.Background(), []model.StepDescriptor{listStep(1)})

	require.Len(t, outcomes, 1)
	require.Len(t, outcomes[0].Diagnostics, 1)
	assert.Equal(t, model.StageCategorize, outcomes[0].Diagnostics[0].Stage)
}

func TestExecute_SubFailurePolicies(t *testing.T) {
	tests := []struct {
		name     string
		policy   SubFailurePolicy
		failing  int
		wantFail bool
	}{
		{"tolerate all failing", PolicyTolerate, 3, false},
		{"any with one failing", PolicyAny, 1, true},
		{"any with none failing", PolicyAny, 0, false},
		{"majority with one of three", PolicyMajority, 1, false},
		{"majority with two of three", PolicyMajority, 2, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gw := mailboxtest.New(
				mailboxtest.Email("A", "one"),
				mailboxtest.Email("B", "two"),
				mailboxtest.Email("C", "three"),
			)
			gw.SetErrs = map[string]error{}
			for _, id := range []string{"A", "B", "C"}[:tt.failing] {
				gw.SetErrs[id] = mailbox.ErrRemoteUnavailable
			}

			exec := New(gw, WithSubFailurePolicy(tt.policy))
			outcomes := exec.Execute(context.Background(), []model.StepDescriptor{listStep(3)})

			require.Len(t, outcomes, 1)
			assert.Equal(t, tt.wantFail, outcomes[0].IsFailure())
			assert.Len(t, outcomes[0].Diagnostics, tt.failing)
		})
	}
}

func TestExecute_CategorizeIsIdempotent(t *testing.T) {
	gw := mailboxtest.New(mailboxtest.Email("X", "hi"))
	step := categorizeStep("X", model.CategoryWork)

	outcomes := New(gw).Execute(context.Background(), []model.StepDescriptor{step, step})

	require.Len(t, outcomes, 2)
	for _, o := range outcomes {
		assert.False(t, o.IsFailure())
		res, ok := o.Result.(model.CategorizeResult)
		require.True(t, ok)
		assert.True(t, res.Applied)
	}
	assert.Equal(t, []model.Category{model.CategoryWork}, gw.Categories("X"))
}

func TestExecute_FailureDoesNotStopLaterSteps(t *testing.T) {
	gw := mailboxtest.New(
		mailboxtest.Email("A", "a"),
		mailboxtest.Email("C", "c"),
	)
	steps := []model.StepDescriptor{
		categorizeStep("A", model.CategoryWork),
		categorizeStep("missing", model.CategoryWork),
		categorizeStep("C", model.CategoryPersonal),
	}

	outcomes := New(gw).Execute(context.Background(), steps)

	require.Len(t, outcomes, 3)
	assert.False(t, outcomes[0].IsFailure())
	assert.True(t, outcomes[1].IsFailure())
	assert.Contains(t, outcomes[1].Error, "missing")
	assert.False(t, outcomes[2].IsFailure())

	result := model.NewTaskResult("plan", outcomes)
	assert.Equal(t, model.StatusFailed, result.Status)
	assert.Len(t, result.Failures(), 1)
}

func TestExecute_CategorizeValidation(t *testing.T) {
	gw := mailboxtest.New(mailboxtest.Email("A", "a"))

	outcomes := New(gw).Execute(context.Background(), []model.StepDescriptor{
		categorizeStep(""),
		categorizeStep("A"),
	})

	require.Len(t, outcomes, 2)
	assert.True(t, outcomes[0].IsFailure())
	assert.True(t, outcomes[1].IsFailure())
	assert.Zero(t, gw.CallCount("SetCategories"))
}

func TestExecute_Send(t *testing.T) {
	gw := mailboxtest.New()
	step := model.StepDescriptor{
		Operation: model.OpSend,
		RawText:   "send",
		Params: model.StepParams{
			Recipients: []string{"bob@example.com"},
			Subject:    "Hi",
			Body:       "Hello",
		},
	}

	outcomes := New(gw).Execute(context.Background(), []model.StepDescriptor{step})

	require.Len(t, outcomes, 1)
	assert.False(t, outcomes[0].IsFailure())
	receipt, ok := outcomes[0].Result.(*model.Receipt)
	require.True(t, ok)
	assert.Equal(t, []string{"bob@example.com"}, receipt.Recipients)
	assert.Len(t, gw.Sent(), 1)
}

func TestExecute_SendFailures(t *testing.T) {
	t.Run("no recipients", func(t *testing.T) {
		gw := mailboxtest.New()
		step := model.StepDescriptor{Operation: model.OpSend, RawText: "send"}

		outcomes := New(gw).Execute(context.Background(), []model.StepDescriptor{step})

		require.Len(t, outcomes, 1)
		assert.True(t, outcomes[0].IsFailure())
		assert.Zero(t, gw.CallCount("Send"))
	})

	t.Run("invalid recipient", func(t *testing.T) {
		gw := mailboxtest.New()
		step := model.StepDescriptor{
			Operation: model.OpSend,
			RawText:   "send",
			Params:    model.StepParams{Recipients: []string{"not-an-address"}},
		}

		outcomes := New(gw).Execute(context.Background(), []model.StepDescriptor{step})

		require.Len(t, outcomes, 1)
		assert.True(t, outcomes[0].IsFailure())
		assert.Empty(t, gw.Sent())
	})

	t.Run("no receipt", func(t *testing.T) {
		gw := mailboxtest.New()
		gw.NoReceipt = true
		step := model.StepDescriptor{
			Operation: model.OpSend,
			RawText:   "send",
			Params:    model.StepParams{Recipients: []string{"bob@example.com"}},
		}

		outcomes := New(gw).Execute(context.Background(), []model.StepDescriptor{step})

		require.Len(t, outcomes, 1)
		assert.True(t, outcomes[0].IsFailure())
		assert.ErrorIs(t, outcomes[0].Err(), errNoReceipt)
		assert.Nil(t, outcomes[0].Result)
		assert.Equal(t, 1, gw.CallCount("Send"))
	})
}

func TestExecute_SkipsUnrecognizedSteps(t *testing.T) {
	gw := mailboxtest.New(mailboxtest.Email("A", "a"))
	steps := []model.StepDescriptor{
		model.Unrecognized("1. Think about it"),
		categorizeStep("A", model.CategoryWork),
		model.Unrecognized("3. Done"),
	}

	before := testutil.ToFloat64(StepsSkipped)
	outcomes := New(gw).Execute(context.Background(), steps)

	require.Len(t, outcomes, 1)
	assert.Equal(t, steps[1], outcomes[0].Step)
	assert.Equal(t, 2.0, testutil.ToFloat64(StepsSkipped)-before)
}

func TestExecute_PreservesPlanOrder(t *testing.T) {
	gw := mailboxtest.New(mailboxtest.Email("A", "a"), mailboxtest.Email("B", "b"))
	steps := []model.StepDescriptor{
		categorizeStep("B", model.CategoryWork),
		listStep(1),
		categorizeStep("A", model.CategoryPersonal),
	}

	outcomes := New(gw).Execute(context.Background(), steps)

	require.Len(t, outcomes, 3)
	for i := range steps {
		assert.Equal(t, steps[i], outcomes[i].Step)
	}
}

func TestExecute_CancelledContext(t *testing.T) {
	gw := mailboxtest.New(mailboxtest.Email("A", "a"))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	outcomes := New(gw).Execute(ctx, []model.StepDescriptor{
		listStep(1),
		categorizeStep("A", model.CategoryWork),
	})

	require.Len(t, outcomes, 2)
	for _, o := range outcomes {
		assert.True(t, o.IsFailure())
		assert.Contains(t, o.Error, context.Canceled.Error())
	}
	assert.Empty(t, gw.Calls())
}

func TestExecute_RecordsStepMetrics(t *testing.T) {
	gw := mailboxtest.New(mailboxtest.Email("A", "a"))
	success := StepsTotal.WithLabelValues(string(model.OpCategorize), "success")
	failure := StepsTotal.WithLabelValues(string(model.OpCategorize), "failure")
	beforeOK := testutil.ToFloat64(success)
	beforeFail := testutil.ToFloat64(failure)

	New(gw).Execute(context.Background(), []model.StepDescriptor{
		categorizeStep("A", model.CategoryWork),
		categorizeStep("nope", model.CategoryWork),
	})

	assert.Equal(t, 1.0, testutil.ToFloat64(success)-beforeOK)
	assert.Equal(t, 1.0, testutil.ToFloat64(failure)-beforeFail)
}

func TestParseSubFailurePolicy(t *testing.T) {
	p, err := ParseSubFailurePolicy("")
	require.NoError(t, err)
	assert.Equal(t, PolicyTolerate, p)

	p, err = ParseSubFailurePolicy("majority")
	require.NoError(t, err)
	assert.Equal(t, PolicyMajority, p)

	_, err = ParseSubFailurePolicy("strict")
	assert.Error(t, err)
}

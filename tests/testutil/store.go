// Package testutil holds fixtures shared by package tests.
package testutil

import (
	"errors"
	"testing"

	"github.com/nhle/mailagent/internal/model"
	"github.com/nhle/mailagent/internal/store"
)

// NewTestStore creates an in-memory SQLiteStore with all migrations applied.
// It automatically closes the store when the test completes.
func NewTestStore(t *testing.T) *store.SQLiteStore {
	t.Helper()

	s, err := store.NewSQLiteStore(":memory:")
	if err != nil {
		t.Fatalf("creating test store: %v", err)
	}

	t.Cleanup(func() {
		if err := s.Close(); err != nil {
			t.Errorf("closing test store: %v", err)
		}
	})

	return s
}

// SampleResult returns a two-step result: a list_recent success with one
// diagnostic followed by a failed send.
func SampleResult() *model.TaskResult {
	list := model.StepDescriptor{
		Operation: model.OpListRecent,
		RawText:   "1. list_recent(top=2)",
		Params:    model.StepParams{Count: 2},
	}
	send := model.StepDescriptor{
		Operation: model.OpSend,
		RawText:   `2. send(to=[boss@example.com], subject="Summary")`,
		Params: model.StepParams{
			Recipients: []string{"boss@example.com"},
			Subject:    "Summary",
		},
	}

	emails := []model.Email{
		{ID: "1", Subject: "Sale", Categories: []model.Category{model.CategoryPromotional}},
		{ID: "2", Subject: "Hi"},
	}
	diags := []model.Diagnostic{
		{MessageID: "2", Stage: model.StageClassify, Error: "classifier unavailable"},
	}

	return model.NewTaskResult(
		"1. list_recent(top=2)\n2. send(to=[boss@example.com], subject=\"Summary\")",
		[]model.StepOutcome{
			model.Succeeded(list, emails, diags),
			model.Failed(send, errSMTPDown, nil),
		},
	)
}

var errSMTPDown = errors.New("sending email: remote unavailable")

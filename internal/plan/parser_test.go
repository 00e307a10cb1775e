package plan

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/mailagent/internal/model"
)

func TestParse_ListRecentWithCount(t *testing.T) {
	steps := Parse("1. list_recent(top=2)")

	require.Len(t, steps, 1)
	assert.Equal(t, model.OpListRecent, steps[0].Operation)
	assert.Equal(t, 2, steps[0].Params.Count)
	assert.Equal(t, "1. list_recent(top=2)", steps[0].RawText)
}

func TestParse_IntegralFloatCount(t *testing.T) {
	steps := Parse("1. list_recent(top=4.0)")
	require.Len(t, steps, 1)
	assert.Equal(t, 4, steps[0].Params.Count)
}

func TestParse_CountFallsBackToDefault(t *testing.T) {
	tests := []struct {
		name string
		line string
	}{
		{name: "non-integer", line: "1. list_recent(top=abc)"},
		{name: "missing", line: "1. get_recent_emails()"},
		{name: "zero", line: "1. list_recent(count=0)"},
		{name: "negative", line: "1. list_recent(top=-3)"},
		{name: "fractional", line: "1. list_recent(top=2.5)"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			steps := Parse(tt.line)
			require.Len(t, steps, 1)
			assert.Equal(t, model.OpListRecent, steps[0].Operation)
			assert.Equal(t, model.DefaultListCount, steps[0].Params.Count)
		})
	}
}

func TestParse_IgnoresLinesWithoutOrdinalMarker(t *testing.T) {
	text := `Here is the plan:

1. get_recent_emails(top=5)
   This fetches the latest mail.
- send_email(to=a@example.com)
2) send_email(to="boss@example.com", subject="Work summary", body="All good")

Let me know if you need more.`

	steps := Parse(text)

	require.Len(t, steps, 2)
	assert.Equal(t, model.OpListRecent, steps[0].Operation)
	assert.Equal(t, 5, steps[0].Params.Count)
	assert.Equal(t, model.OpSend, steps[1].Operation)
	assert.Equal(t, []string{"boss@example.com"}, steps[1].Params.Recipients)
	assert.Equal(t, "Work summary", steps[1].Params.Subject)
	assert.Equal(t, "All good", steps[1].Params.Body)
}

func TestParse_PreservesOrderAndDuplicates(t *testing.T) {
	text := "1. list_recent(top=1)\n2. list_recent(top=1)\n3. send(to=x@example.com)\n4. list_recent(top=3)"

	steps := Parse(text)

	require.Len(t, steps, 4)
	assert.Equal(t, []model.Operation{
		model.OpListRecent, model.OpListRecent, model.OpSend, model.OpListRecent,
	}, operations(steps))
	assert.Equal(t, 3, steps[3].Params.Count)
}

func TestParse_UnrecognizedHasNoParameters(t *testing.T) {
	steps := Parse("1. summarize_emails(top=5, subject=\"x\")")

	require.Len(t, steps, 1)
	assert.Equal(t, model.OpUnrecognized, steps[0].Operation)
	assert.True(t, steps[0].Params.IsZero())
}

func TestParse_EmptyAndBlankInput(t *testing.T) {
	assert.Empty(t, Parse(""))
	assert.Empty(t, Parse("\n\n   \n"))
	assert.Empty(t, Parse("no numbered steps here"))
}

func TestParse_EarliestOperationWins(t *testing.T) {
	steps := Parse("1. list_recent(top=3) and then categorize each one")

	require.Len(t, steps, 1)
	assert.Equal(t, model.OpListRecent, steps[0].Operation)
}

func TestParse_OperationTokenBoundaries(t *testing.T) {
	tests := []struct {
		line string
		want model.Operation
	}{
		{line: "1. send_email(to=a@example.com)", want: model.OpSend},
		{line: "1. Send a note to a@example.com", want: model.OpSend},
		{line: "1. resend_later()", want: model.OpUnrecognized},
		{line: "1. categorize_email(id=42, categories=[Work])", want: model.OpCategorize},
		{line: "1. LIST_RECENT(top=4)", want: model.OpListRecent},
		{line: "1. Use “send” to email bob@example.com", want: model.OpSend},
		{line: "2. Call “list_recent” with top=2", want: model.OpListRecent},
		{line: "3. list_recent—top=3", want: model.OpListRecent},
		{line: "4. résend now", want: model.OpUnrecognized},
	}

	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			steps := Parse(tt.line)
			require.Len(t, steps, 1)
			assert.Equal(t, tt.want, steps[0].Operation)
		})
	}
}

func TestParse_SendRecipients(t *testing.T) {
	tests := []struct {
		name string
		line string
		want []string
	}{
		{
			name: "bracketed list",
			line: `1. send(to=["a@example.com", "b@example.com"], subject="s", body="b")`,
			want: []string{"a@example.com", "b@example.com"},
		},
		{
			name: "quoted comma separated",
			line: `1. send_email(to="a@example.com; b@example.com")`,
			want: []string{"a@example.com", "b@example.com"},
		},
		{
			name: "addresses in prose",
			line: "1. send_email a summary to me@example.com and cc@example.org",
			want: []string{"me@example.com", "cc@example.org"},
		},
		{
			name: "none",
			line: "1. send_email a summary",
			want: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			steps := Parse(tt.line)
			require.Len(t, steps, 1)
			assert.Equal(t, tt.want, steps[0].Params.Recipients)
		})
	}
}

func TestParse_Categorize(t *testing.T) {
	steps := Parse(`1. categorize_email(email_id="AAMk-1", categories=[work, "Personal", Spam])`)

	require.Len(t, steps, 1)
	assert.Equal(t, model.OpCategorize, steps[0].Operation)
	assert.Equal(t, "AAMk-1", steps[0].Params.MessageID)
	assert.Equal(t,
		[]model.Category{model.CategoryWork, model.CategoryPersonal},
		steps[0].Params.Categories,
	)
}

func TestParse_CategorizeWithoutParameters(t *testing.T) {
	steps := Parse("1. Categorize the emails")

	require.Len(t, steps, 1)
	assert.Equal(t, model.OpCategorize, steps[0].Operation)
	assert.Empty(t, steps[0].Params.MessageID)
	assert.Empty(t, steps[0].Params.Categories)
}

func operations(steps []model.StepDescriptor) []model.Operation {
	ops := make([]model.Operation, 0, len(steps))
	for _, s := range steps {
		ops = append(ops, s.Operation)
	}
	return ops
}

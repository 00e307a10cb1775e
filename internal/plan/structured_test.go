package plan

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/mailagent/internal/model"
)

func TestParseStructured(t *testing.T) {
	text := "Sure, here is the plan:\n```json\n" + `{
  "version": 1,
  "steps": [
    {"operation": "list_recent", "parameters": {"count": 5}},
    {"operation": "categorize_email", "parameters": {"message_id": "m-1", "categories": ["Work"]}},
    {"operation": "send", "parameters": {"recipients": "me@example.com", "subject": "Digest", "body": "3 work emails"}},
    {"operation": "summarize", "parameters": {"count": 2}}
  ]
}` + "\n```"

	steps, err := ParseStructured(text)
	require.NoError(t, err)
	require.Len(t, steps, 4)

	assert.Equal(t, model.OpListRecent, steps[0].Operation)
	assert.Equal(t, 5, steps[0].Params.Count)
	assert.Equal(t, "1. list_recent(top=5)", steps[0].RawText)

	assert.Equal(t, model.OpCategorize, steps[1].Operation)
	assert.Equal(t, "m-1", steps[1].Params.MessageID)
	assert.Equal(t, []model.Category{model.CategoryWork}, steps[1].Params.Categories)

	assert.Equal(t, model.OpSend, steps[2].Operation)
	assert.Equal(t, []string{"me@example.com"}, steps[2].Params.Recipients)
	assert.Equal(t, "Digest", steps[2].Params.Subject)
	assert.Equal(t, "3 work emails", steps[2].Params.Body)

	assert.Equal(t, model.OpUnrecognized, steps[3].Operation)
	assert.True(t, steps[3].Params.IsZero())
}

func TestParseStructured_CountAsString(t *testing.T) {
	steps, err := ParseStructured(`{"steps":[{"operation":"list_recent","parameters":{"top":"abc"}}]}`)
	require.NoError(t, err)
	require.Len(t, steps, 1)
	assert.Equal(t, model.DefaultListCount, steps[0].Params.Count)

	steps, err = ParseStructured(`{"steps":[{"operation":"list_recent","parameters":{"top":"7"}}]}`)
	require.NoError(t, err)
	assert.Equal(t, 7, steps[0].Params.Count)
}

func TestParseStructured_IntegralFloatCount(t *testing.T) {
	steps, err := ParseStructured(`{"steps":[{"operation":"list_recent","parameters":{"count":5.0}}]}`)
	require.NoError(t, err)
	assert.Equal(t, 5, steps[0].Params.Count)

	steps, err = ParseStructured(`{"steps":[{"operation":"list_recent","parameters":{"count":2.5}}]}`)
	require.NoError(t, err)
	assert.Equal(t, model.DefaultListCount, steps[0].Params.Count)
}

func TestParseStructured_SurroundingBraces(t *testing.T) {
	plan := `{"version":1,"steps":[{"operation":"categorize","parameters":{"message_id":"m-9","categories":["Work"]}}]}`

	tests := []struct {
		name string
		text string
	}{
		{name: "trailing note", text: plan + "\nNote: replace {id} as needed."},
		{name: "leading placeholder", text: "Use {id} from the listing:\n" + plan},
		{name: "empty object first", text: "Context: {}\n" + plan + "\n{done}"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			steps, format := ParseAuto(tt.text)
			assert.Equal(t, FormatStructured, format)
			require.Len(t, steps, 1)
			assert.Equal(t, model.OpCategorize, steps[0].Operation)
			assert.Equal(t, "m-9", steps[0].Params.MessageID)
		})
	}
}

func TestParseStructured_Errors(t *testing.T) {
	tests := []struct {
		name string
		text string
		want error
	}{
		{name: "no json", text: "1. list_recent(top=2)", want: ErrNoStructuredPlan},
		{name: "bad json", text: `{"steps": [}`, want: ErrMalformedPlan},
		{name: "missing steps", text: `{"version": 1}`, want: ErrMalformedPlan},
		{name: "future version", text: `{"version": 2, "steps": []}`, want: ErrUnsupportedVersion},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseStructured(tt.text)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestParseAuto(t *testing.T) {
	steps, format := ParseAuto(`{"version":1,"steps":[{"operation":"send","parameters":{"to":["a@example.com"]}}]}`)
	assert.Equal(t, FormatStructured, format)
	require.Len(t, steps, 1)
	assert.Equal(t, model.OpSend, steps[0].Operation)

	steps, format = ParseAuto("1. list_recent(top=2)")
	assert.Equal(t, FormatText, format)
	require.Len(t, steps, 1)
	assert.Equal(t, 2, steps[0].Params.Count)

	steps, format = ParseAuto(`{"version":1,"steps":[]}`)
	assert.Equal(t, FormatStructured, format)
	assert.Empty(t, steps)
}

func TestRender_ParsesBack(t *testing.T) {
	steps := []model.StepDescriptor{
		{Operation: model.OpListRecent, Params: model.StepParams{Count: 4}},
		{Operation: model.OpSend, Params: model.StepParams{
			Recipients: []string{"a@example.com", "b@example.com"},
			Subject:    `Weekly "work" digest`,
			Body:       "Two meetings, one project update.",
		}},
		{Operation: model.OpCategorize, Params: model.StepParams{
			MessageID:  "17",
			Categories: []model.Category{model.CategoryWork, model.CategoryPersonal},
		}},
		model.Unrecognized("4. archive everything"),
	}

	parsed := Parse(Render(steps))

	require.Len(t, parsed, len(steps))
	for i := range steps {
		assert.Equal(t, steps[i].Operation, parsed[i].Operation, "step %d", i+1)
		assert.Equal(t, steps[i].Params, parsed[i].Params, "step %d", i+1)
	}
}

package plan

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/nhle/mailagent/internal/model"
)

// GrammarVersion is the structured plan version this package emits and
// accepts. A document without a version is treated as this version.
const GrammarVersion = 1

// Format names the plan format that was parsed.
type Format string

const (
	FormatStructured Format = "structured"
	FormatText       Format = "text"
)

var (
	// ErrNoStructuredPlan is returned when text holds no JSON object.
	ErrNoStructuredPlan = errors.New("no structured plan found")

	// ErrMalformedPlan is returned when the JSON does not decode.
	ErrMalformedPlan = errors.New("malformed structured plan")

	// ErrUnsupportedVersion is returned for unknown grammar versions.
	ErrUnsupportedVersion = errors.New("unsupported plan version")
)

// Document is the structured plan grammar:
//
//	{"version": 1, "steps": [
//	  {"operation": "list_recent", "parameters": {"count": 5}},
//	  {"operation": "send", "parameters": {"recipients": ["a@b.c"], "subject": "s", "body": "b"}}
//	]}
type Document struct {
	Version int            `json:"version"`
	Steps   []DocumentStep `json:"steps"`
}

// DocumentStep is one step of a structured plan. Parameter values are
// decoded leniently: counts may be numbers or strings, lists may be a
// single string.
type DocumentStep struct {
	Operation  string                     `json:"operation"`
	Parameters map[string]json.RawMessage `json:"parameters,omitempty"`
}

// ParseStructured decodes a structured plan. The JSON object may be
// surrounded by prose or a ```json fence.
func ParseStructured(text string) ([]model.StepDescriptor, error) {
	doc, err := decodeDocument(text)
	if err != nil {
		return nil, err
	}

	if doc.Version == 0 {
		doc.Version = GrammarVersion
	}
	if doc.Version != GrammarVersion {
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedVersion, doc.Version)
	}
	if doc.Steps == nil {
		return nil, fmt.Errorf("%w: missing steps", ErrMalformedPlan)
	}

	steps := make([]model.StepDescriptor, 0, len(doc.Steps))
	for i, ds := range doc.Steps {
		steps = append(steps, ds.descriptor(i+1))
	}
	return steps, nil
}

// ParseAuto parses text as a structured plan and falls back to the
// numbered-list parser when that fails.
func ParseAuto(text string) ([]model.StepDescriptor, Format) {
	if steps, err := ParseStructured(text); err == nil {
		return steps, FormatStructured
	}
	return Parse(text), FormatText
}

func (ds DocumentStep) descriptor(n int) model.StepDescriptor {
	op := operationByName(ds.Operation)
	if op == model.OpUnrecognized {
		return model.Unrecognized(fmt.Sprintf("%d. %s", n, ds.Operation))
	}

	p := ds.Parameters
	step := model.StepDescriptor{Operation: op}

	switch op {
	case model.OpListRecent:
		step.Params.Count = parseCount(firstString(p, countKeys))
	case model.OpSend:
		step.Params.Recipients = firstList(p, recipientKeys)
		step.Params.Subject = firstString(p, subjectKeys)
		step.Params.Body = firstString(p, bodyKeys)
	case model.OpCategorize:
		step.Params.MessageID = firstString(p, messageIDKeys)
		step.Params.Categories = model.ParseCategories(firstList(p, categoriesKeys))
	}

	step.RawText = RenderStep(n, step)
	return step
}

// operationByName matches an operation name or alias exactly.
func operationByName(name string) model.Operation {
	name = strings.ToLower(strings.TrimSpace(name))
	for op, aliases := range operationAliases {
		for _, a := range aliases {
			if a == name {
				return op
			}
		}
	}
	return model.OpUnrecognized
}

func firstString(p map[string]json.RawMessage, keys []string) string {
	for _, k := range keys {
		raw, ok := p[k]
		if !ok {
			continue
		}
		var s string
		if json.Unmarshal(raw, &s) == nil {
			return s
		}
		var n json.Number
		if json.Unmarshal(raw, &n) == nil {
			return n.String()
		}
	}
	return ""
}

func firstList(p map[string]json.RawMessage, keys []string) []string {
	for _, k := range keys {
		raw, ok := p[k]
		if !ok {
			continue
		}
		var list []string
		if json.Unmarshal(raw, &list) == nil {
			return list
		}
		var s string
		if json.Unmarshal(raw, &s) == nil {
			return splitList(s)
		}
	}
	return nil
}

// decodeDocument decodes the first JSON object in text that has a
// version or steps. Anything after that object is ignored, so trailing prose with
// braces does not spoil the plan.
func decodeDocument(text string) (Document, error) {
	var firstErr error
	for offset := 0; ; {
		i := strings.IndexByte(text[offset:], '{')
		if i < 0 {
			break
		}
		start := offset + i

		var doc Document
		err := json.NewDecoder(strings.NewReader(text[start:])).Decode(&doc)
		if err == nil && (doc.Steps != nil || doc.Version != 0) {
			return doc, nil
		}
		if err == nil {
			err = errors.New("object is not a plan")
		}
		if firstErr == nil {
			firstErr = err
		}
		offset = start + 1
	}

	if firstErr != nil {
		return Document{}, fmt.Errorf("%w: %v", ErrMalformedPlan, firstErr)
	}
	return Document{}, ErrNoStructuredPlan
}

// Render writes steps as a numbered list that Parse reads back.
func Render(steps []model.StepDescriptor) string {
	lines := make([]string, 0, len(steps))
	for i, s := range steps {
		lines = append(lines, RenderStep(i+1, s))
	}
	return strings.Join(lines, "\n")
}

// RenderStep writes a single numbered step line.
func RenderStep(n int, s model.StepDescriptor) string {
	prefix := strconv.Itoa(n) + ". "

	switch s.Operation {
	case model.OpListRecent:
		return fmt.Sprintf("%slist_recent(top=%d)", prefix, s.Params.Count)
	case model.OpSend:
		return fmt.Sprintf(
			"%ssend(to=%s, subject=%s, body=%s)",
			prefix,
			renderList(s.Params.Recipients),
			strconv.Quote(s.Params.Subject),
			strconv.Quote(s.Params.Body),
		)
	case model.OpCategorize:
		return fmt.Sprintf(
			"%scategorize(id=%s, categories=%s)",
			prefix,
			strconv.Quote(s.Params.MessageID),
			renderList(model.CategoryNames(s.Params.Categories)),
		)
	}

	text := stepMarker.ReplaceAllString(s.RawText, "")
	return prefix + text
}

func renderList(items []string) string {
	return "[" + strings.Join(items, ", ") + "]"
}

// Package plan turns planner output into typed step descriptors.
//
// Two formats are understood. The structured format is a versioned JSON
// document (see ParseStructured) and is what the planner is asked to
// produce. The text format is a numbered list such as
//
//	1. list_recent(top=5)
//	2. send_email(to="boss@example.com", subject="Summary", body="...")
//
// and is handled heuristically by Parse. ParseAuto tries the structured
// format first and falls back to Parse. None of the entry points fail the
// caller because of a malformed line: bad lines degrade to unrecognized
// steps and bad parameters to their defaults.
package plan

import (
	"math"
	"regexp"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/nhle/mailagent/internal/model"
)

// operationAliases lists the names recognised for each operation. The
// second group are the tool names the planner historically used.
var operationAliases = map[model.Operation][]string{
	model.OpListRecent: {"list_recent", "get_recent_emails", "list_emails"},
	model.OpSend:       {"send", "send_email"},
	model.OpCategorize: {"categorize", "categorize_email", "set_categories"},
}

var (
	// stepMarker matches an ordinal list marker: "1." or "1)".
	stepMarker = regexp.MustCompile(`^\s*\d+[.)]\s*`)

	// keyValue matches key=value fragments. Values may be double or
	// single quoted, a bracketed list, or a bare token.
	keyValue = regexp.MustCompile(
		`(?i)\b([a-z_]+)\s*=\s*("(?:[^"\\]|\\.)*"|'(?:[^'\\]|\\.)*'|\[[^\]]*\]|[^,;)\s]+)`,
	)

	emailAddress = regexp.MustCompile(
		`[A-Za-z0-9._%+\-]+@[A-Za-z0-9.\-]+\.[A-Za-z]{2,}`,
	)
)

var (
	countKeys      = []string{"top", "count", "limit", "n", "max"}
	recipientKeys  = []string{"to", "recipients", "recipient"}
	subjectKeys    = []string{"subject", "title"}
	bodyKeys       = []string{"body", "content", "text"}
	messageIDKeys  = []string{"id", "email_id", "message_id", "messageid"}
	categoriesKeys = []string{"categories", "category"}
)

// Parse converts a numbered-list plan into step descriptors, preserving
// line order. Lines without an ordinal marker are ignored.
func Parse(planText string) []model.StepDescriptor {
	var steps []model.StepDescriptor

	for _, line := range strings.Split(planText, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || !stepMarker.MatchString(line) {
			continue
		}
		steps = append(steps, ParseLine(line))
	}

	return steps
}

// ParseLine parses a single candidate line.
func ParseLine(line string) model.StepDescriptor {
	op := recognize(line)
	if op == model.OpUnrecognized {
		return model.Unrecognized(line)
	}

	fields := extractFields(line)
	step := model.StepDescriptor{Operation: op, RawText: line}

	switch op {
	case model.OpListRecent:
		step.Params.Count = parseCount(lookup(fields, countKeys))
	case model.OpSend:
		step.Params.Recipients = splitList(lookup(fields, recipientKeys))
		if len(step.Params.Recipients) == 0 {
			step.Params.Recipients = emailAddress.FindAllString(line, -1)
		}
		step.Params.Subject = lookup(fields, subjectKeys)
		step.Params.Body = lookup(fields, bodyKeys)
	case model.OpCategorize:
		step.Params.MessageID = lookup(fields, messageIDKeys)
		step.Params.Categories = model.ParseCategories(
			splitList(lookup(fields, categoriesKeys)),
		)
	}

	return step
}

// recognize returns the operation whose alias occurs earliest in line.
// When two aliases start at the same position the longer one wins.
func recognize(line string) model.Operation {
	lower := strings.ToLower(line)

	best := model.OpUnrecognized
	bestPos, bestLen := -1, 0

	for op, aliases := range operationAliases {
		for _, alias := range aliases {
			pos := indexToken(lower, alias)
			if pos < 0 {
				continue
			}
			if bestPos < 0 || pos < bestPos || (pos == bestPos && len(alias) > bestLen) {
				best, bestPos, bestLen = op, pos, len(alias)
			}
		}
	}

	return best
}

// indexToken finds token in s where it is not embedded in a longer
// identifier.
func indexToken(s, token string) int {
	offset := 0
	for {
		i := strings.Index(s[offset:], token)
		if i < 0 {
			return -1
		}
		start := offset + i
		end := start + len(token)
		if !identBefore(s, start) && !identAfter(s, end) {
			return start
		}
		offset = start + 1
	}
}

// identBefore reports whether the rune ending at byte offset i is part
// of an identifier.
func identBefore(s string, i int) bool {
	if i <= 0 {
		return false
	}
	r, _ := utf8.DecodeLastRuneInString(s[:i])
	return isIdentRune(r)
}

// identAfter reports whether the rune starting at byte offset i is part
// of an identifier.
func identAfter(s string, i int) bool {
	if i >= len(s) {
		return false
	}
	r, _ := utf8.DecodeRuneInString(s[i:])
	return isIdentRune(r)
}

func isIdentRune(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r)
}

// extractFields collects key=value fragments; the first occurrence of a
// key wins.
func extractFields(line string) map[string]string {
	fields := make(map[string]string)
	for _, m := range keyValue.FindAllStringSubmatch(line, -1) {
		key := strings.ToLower(m[1])
		if _, ok := fields[key]; ok {
			continue
		}
		fields[key] = unquote(m[2])
	}
	return fields
}

func lookup(fields map[string]string, keys []string) string {
	for _, k := range keys {
		if v, ok := fields[k]; ok {
			return v
		}
	}
	return ""
}

func unquote(v string) string {
	switch {
	case len(v) >= 2 && v[0] == '"' && v[len(v)-1] == '"':
		if s, err := strconv.Unquote(v); err == nil {
			return s
		}
		return v[1 : len(v)-1]
	case len(v) >= 2 && v[0] == '\'' && v[len(v)-1] == '\'':
		return strings.ReplaceAll(v[1:len(v)-1], `\'`, `'`)
	}
	return v
}

// parseCount returns the parsed positive count or DefaultListCount.
func parseCount(v string) int {
	v = strings.TrimSpace(v)
	n, err := strconv.Atoi(v)
	if err != nil {
		f, ferr := strconv.ParseFloat(v, 64)
		if ferr != nil || f != math.Trunc(f) || f < 1 || f > math.MaxInt32 {
			return model.DefaultListCount
		}
		n = int(f)
	}
	if n <= 0 {
		return model.DefaultListCount
	}
	return n
}

// splitList splits "[a, 'b']", "a; b" or "a,b" into trimmed items.
func splitList(v string) []string {
	v = strings.TrimSpace(v)
	v = strings.TrimPrefix(v, "[")
	v = strings.TrimSuffix(v, "]")

	var out []string
	for _, item := range strings.FieldsFunc(v, func(r rune) bool {
		return r == ',' || r == ';'
	}) {
		item = strings.TrimSpace(unquote(strings.TrimSpace(item)))
		if item != "" {
			out = append(out, item)
		}
	}
	return out
}

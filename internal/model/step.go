package model

// Operation identifies what a plan step asks the mailbox to do.
type Operation string

const (
	OpListRecent   Operation = "list_recent"
	OpCategorize   Operation = "categorize"
	OpSend         Operation = "send"
	OpUnrecognized Operation = "unrecognized"
)

// DefaultListCount is used when a list_recent step has no usable count.
const DefaultListCount = 10

// Known reports whether op is dispatchable to a gateway.
func (op Operation) Known() bool {
	switch op {
	case OpListRecent, OpCategorize, OpSend:
		return true
	}
	return false
}

// StepParams holds the parameters extracted for a step. Only the fields
// relevant to the step's operation are populated:
//
//	list_recent: Count
//	send:        Recipients, Subject, Body
//	categorize:  MessageID, Categories
type StepParams struct {
	Count      int        `json:"count,omitempty"`
	Recipients []string   `json:"recipients,omitempty"`
	Subject    string     `json:"subject,omitempty"`
	Body       string     `json:"body,omitempty"`
	MessageID  string     `json:"message_id,omitempty"`
	Categories []Category `json:"categories,omitempty"`
}

// IsZero reports whether no parameter is set.
func (p StepParams) IsZero() bool {
	return p.Count == 0 &&
		len(p.Recipients) == 0 &&
		p.Subject == "" &&
		p.Body == "" &&
		p.MessageID == "" &&
		len(p.Categories) == 0
}

// StepDescriptor is one parsed line of a plan.
type StepDescriptor struct {
	Operation Operation  `json:"operation"`
	RawText   string     `json:"raw_text"`
	Params    StepParams `json:"parameters"`
}

// Unrecognized builds the descriptor for a line that names no known
// operation. It never carries parameters.
func Unrecognized(raw string) StepDescriptor {
	return StepDescriptor{Operation: OpUnrecognized, RawText: raw}
}

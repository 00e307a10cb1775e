package executor

import "fmt"

// SubFailurePolicy decides whether failed per-email classify or
// categorize calls turn a successful list_recent step into a failure.
type SubFailurePolicy string

const (
	// PolicyTolerate never fails the step; failures stay diagnostics.
	PolicyTolerate SubFailurePolicy = "tolerate"

	// PolicyAny fails the step when any email had a failed sub-call.
	PolicyAny SubFailurePolicy = "any"

	// PolicyMajority fails the step when more than half of the listed
	// emails had a failed sub-call.
	PolicyMajority SubFailurePolicy = "majority"
)

// ParseSubFailurePolicy parses a policy name. The empty string selects
// PolicyTolerate.
func ParseSubFailurePolicy(s string) (SubFailurePolicy, error) {
	switch p := SubFailurePolicy(s); p {
	case "":
		return PolicyTolerate, nil
	case PolicyTolerate, PolicyAny, PolicyMajority:
		return p, nil
	default:
		return "", fmt.Errorf("unknown sub-failure policy %q", s)
	}
}

// fails reports whether failed out of total emails fails the step.
func (p SubFailurePolicy) fails(failed, total int) bool {
	if failed == 0 {
		return false
	}
	switch p {
	case PolicyAny:
		return true
	case PolicyMajority:
		return failed*2 > total
	default:
		return false
	}
}

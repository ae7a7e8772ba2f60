package harness

import (
	"fmt"
	"slices"
	"strings"
)

// AssertionError is returned when an assertion fails.
// It includes detailed context to help debug the failure.
type AssertionError struct {
	Type     string       // Assertion type for categorization
	Expected string       // Human-readable expected outcome
	Actual   string       // Human-readable actual outcome
	Trace    []TraceEvent // Full trace for debugging context
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	if len(e.Trace) > 0 {
		fmt.Fprintf(&buf, "\nFull trace:\n")
		for _, event := range e.Trace {
			fmt.Fprintf(&buf, "  [%d] %s %s", event.Seq, event.Op, event.Reason)
			if event.Code != nil {
				fmt.Fprintf(&buf, " code=%d", *event.Code)
			}
			if event.Abort != "" {
				fmt.Fprintf(&buf, " abort=%q", event.Abort)
			}
			buf.WriteByte('\n')
		}
	}

	return buf.String()
}

// assertOutcomeCount checks how many steps ended with the given reason,
// optionally restricted to one transaction kind.
func assertOutcomeCount(trace []TraceEvent, assertion Assertion) error {
	count := 0
	for _, event := range trace {
		if event.Reason != assertion.Reason {
			continue
		}
		if assertion.Kind != "" && event.Kind != assertion.Kind {
			continue
		}
		count++
	}

	if count != assertion.Count {
		what := assertion.Reason
		if assertion.Kind != "" {
			what = assertion.Kind + " " + what
		}
		return &AssertionError{
			Type:     AssertOutcomeCount,
			Expected: fmt.Sprintf("%d %s outcomes", assertion.Count, what),
			Actual:   fmt.Sprintf("%d outcomes", count),
			Trace:    trace,
		}
	}
	return nil
}

// assertFinalApps compares the hub state after the flow, order included.
func assertFinalApps(result *Result, assertion Assertion) error {
	want := assertion.Apps
	if want == nil {
		want = []App{}
	}
	if slices.Equal(result.FinalApps, want) {
		return nil
	}
	return &AssertionError{
		Type:     AssertFinalApps,
		Expected: formatApps(want),
		Actual:   formatApps(result.FinalApps),
		Trace:    result.Trace,
	}
}

func formatApps(apps []App) string {
	if len(apps) == 0 {
		return "[]"
	}
	parts := make([]string, len(apps))
	for i, a := range apps {
		parts[i] = fmt.Sprintf("0x%x@%d", a.AppID, a.Version)
	}
	return "[" + strings.Join(parts, " ") + "]"
}

// EvaluateAssertions evaluates all assertions against the result.
// Returns a slice of error messages for failed assertions.
func EvaluateAssertions(result *Result, assertions []Assertion) []string {
	var errors []string

	for i, assertion := range assertions {
		var err error

		switch assertion.Type {
		case AssertOutcomeCount:
			err = assertOutcomeCount(result.Trace, assertion)
		case AssertFinalApps:
			err = assertFinalApps(result, assertion)
		default:
			err = fmt.Errorf("assertion[%d]: unknown assertion type %q", i, assertion.Type)
		}

		if err != nil {
			errors = append(errors, err.Error())
		}
	}

	return errors
}

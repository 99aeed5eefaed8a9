package domain

import "strings"

// ExecutionResult is the output of a sandboxed run
type ExecutionResult struct {
	Output  string
	IsError bool
}

// NewExecutionResult classifies raw run output. The backend prefixes
// failures with "Error".
func NewExecutionResult(output string) ExecutionResult {
	return ExecutionResult{
		Output:  output,
		IsError: strings.HasPrefix(output, "Error"),
	}
}

// ManualCheckResult holds style/quality findings. Empty means no issues.
type ManualCheckResult []string

// Clean reports whether the checker found nothing
func (m ManualCheckResult) Clean() bool {
	return len(m) == 0
}

// CheckReport combines a run and a style check. It is always replaced as a
// whole, never merged.
type CheckReport struct {
	Execution   ExecutionResult
	ManualCheck ManualCheckResult
}

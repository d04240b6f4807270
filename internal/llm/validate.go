package llm

import (
	"fmt"
	"strings"

	"github.com/talgya/chronicle/internal/action"
	"github.com/talgya/chronicle/internal/worldstate"
)

// Issue codes raised by CheckNarration.
const (
	IssueContradictsOutcome = "narration_contradicts_outcome"
	IssueConstraint         = "narration_breaks_constraint"
)

// Issue is a non-blocking consistency finding.
type Issue struct {
	Code    string
	Message string
}

var (
	successWords = []string{"you succeed", "successfully", "you manage", "effortlessly", "triumph"}
	failureWords = []string{"you fail", "failed", "you falter", "you are caught", "you stumble", "in vain"}
)

// CheckNarration compares narration against the mechanical outcome and the
// ledger's constraints. Constraints of the form "no <thing>" are checked by
// looking for the thing in the text.
func CheckNarration(text string, outcome *action.Outcome, ledger worldstate.Ledger) []Issue {
	lower := strings.ToLower(text)
	var issues []Issue

	if outcome != nil {
		if outcome.Success && containsAny(lower, failureWords) && !containsAny(lower, successWords) {
			issues = append(issues, Issue{Code: IssueContradictsOutcome, Message: "narration describes failure on a success"})
		}
		if !outcome.Success && containsAny(lower, successWords) && !containsAny(lower, failureWords) {
			issues = append(issues, Issue{Code: IssueContradictsOutcome, Message: "narration describes success on a failure"})
		}
	}

	for _, c := range ledger.Constraints {
		cl := strings.ToLower(strings.TrimSpace(c))
		if !strings.HasPrefix(cl, "no ") {
			continue
		}
		term := strings.Fields(strings.TrimPrefix(cl, "no "))
		if len(term) == 0 {
			continue
		}
		if strings.Contains(lower, strings.Trim(term[0], ".,;:!")) {
			issues = append(issues, Issue{Code: IssueConstraint, Message: fmt.Sprintf("narration mentions %q despite %q", term[0], c)})
		}
	}
	return issues
}

func containsAny(s string, words []string) bool {
	for _, w := range words {
		if strings.Contains(s, w) {
			return true
		}
	}
	return false
}

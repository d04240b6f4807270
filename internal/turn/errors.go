package turn

import (
	"errors"
	"fmt"
)

var (
	ErrUnknownCampaign  = errors.New("unknown campaign")
	ErrCampaignArchived = errors.New("campaign archived")
	ErrNotSetUp         = errors.New("campaign has no setup turn")
	ErrInvalidSetup     = errors.New("invalid campaign setup")
)

// Warning codes.
const (
	WarnNarrationFallback  = "narration_fallback"
	WarnSuggestionFallback = "suggestion_fallback"
	WarnObserverFailed     = "observer_failed"
	WarnNegativeTimeCost   = "negative_time_cost"
	WarnDoubleWorldTick    = "double_world_tick"
	WarnReadModelStale     = "read_model_stale"
)

// Warning is a non-fatal problem recorded on the turn result.
type Warning struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Commit steps, in execution order.
const (
	StepCreateCampaign = "create_campaign"
	StepAdvanceTime    = "advance_time"
	StepAppendEvents   = "append_events"
	StepProject        = "project_entities"
	StepPersistState   = "persist_world_state"
	StepBumpVersion    = "bump_version"
)

// CommitError reports which commit step failed. Nothing from the turn was
// persisted.
type CommitError struct {
	CampaignID string
	Turn       int64
	Step       string
	Err        error
}

func (e *CommitError) Error() string {
	return fmt.Sprintf("commit %s turn %d: %s: %v", e.CampaignID, e.Turn, e.Step, e.Err)
}

func (e *CommitError) Unwrap() error { return e.Err }

// InvariantError is returned in strict mode when a turn would break an
// engine invariant.
type InvariantError struct {
	Code    string
	Message string
}

func (e *InvariantError) Error() string {
	return fmt.Sprintf("invariant %s: %s", e.Code, e.Message)
}

// Guard decides what an invariant violation costs. Strict guards fail the
// turn; lenient ones let the caller clamp and record a warning.
type Guard struct {
	Strict bool
}

// Violation reports a broken invariant.
func (g Guard) Violation(code, format string, args ...any) (Warning, error) {
	msg := fmt.Sprintf(format, args...)
	if g.Strict {
		return Warning{}, &InvariantError{Code: code, Message: msg}
	}
	return Warning{Code: code, Message: msg}, nil
}

package statemachine

import "fmt"

// FeatureStatus is the lifecycle state of one feature inside a batch.
type FeatureStatus string

const (
	FeatureStatusPending    FeatureStatus = "pending"
	FeatureStatusGenerating FeatureStatus = "generating"
	FeatureStatusCompleted  FeatureStatus = "completed"
	FeatureStatusFailed     FeatureStatus = "failed"
)

// FeatureTransition validates status changes for feature generation.
type FeatureTransition struct {
	allowed map[FeatureStatus][]FeatureStatus
}

func NewFeatureTransition() *FeatureTransition {
	return &FeatureTransition{
		allowed: map[FeatureStatus][]FeatureStatus{
			// Pending fails directly when submission to the worker pool
			// is rejected before a worker ever picks the feature up.
			FeatureStatusPending:    {FeatureStatusGenerating, FeatureStatusFailed},
			FeatureStatusGenerating: {FeatureStatusCompleted, FeatureStatusFailed},
			// Retry re-enters generation from failed; completed is terminal.
			FeatureStatusFailed:    {FeatureStatusGenerating},
			FeatureStatusCompleted: {},
		},
	}
}

// CanTransition reports whether moving from one status to another is legal.
func (t *FeatureTransition) CanTransition(from, to FeatureStatus) bool {
	for _, next := range t.allowed[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Transition validates and returns the new status.
func (t *FeatureTransition) Transition(from, to FeatureStatus) (FeatureStatus, error) {
	if !t.CanTransition(from, to) {
		return from, &InvalidStateTransitionError{From: string(from), To: string(to)}
	}
	return to, nil
}

// IsTerminal reports whether a status accepts no further transitions
// except an explicit retry.
func (t *FeatureTransition) IsTerminal(status FeatureStatus) bool {
	return status == FeatureStatusCompleted || status == FeatureStatusFailed
}

// InvalidStateTransitionError reports a disallowed status change.
type InvalidStateTransitionError struct {
	From string
	To   string
}

func (e *InvalidStateTransitionError) Error() string {
	return fmt.Sprintf("invalid state transition from %s to %s", e.From, e.To)
}

package statemachine

// BatchStatus is never stored; it is derived from the feature statuses of
// a batch every time it is read.
type BatchStatus string

const (
	BatchStatusPending   BatchStatus = "pending"
	BatchStatusRunning   BatchStatus = "running"
	BatchStatusCompleted BatchStatus = "completed"
	BatchStatusPartial   BatchStatus = "partial"
)

// DeriveBatchStatus aggregates feature statuses into the batch status.
// Any pending or generating feature means the batch is still running; a
// batch with no features is pending; otherwise the batch is completed
// when every feature completed, and partial when any failed.
func DeriveBatchStatus(features []FeatureStatus) BatchStatus {
	if len(features) == 0 {
		return BatchStatusPending
	}

	allPending := true
	anyActive := false
	anyFailed := false
	for _, s := range features {
		if s != FeatureStatusPending {
			allPending = false
		}
		switch s {
		case FeatureStatusPending, FeatureStatusGenerating:
			anyActive = true
		case FeatureStatusFailed:
			anyFailed = true
		}
	}

	if allPending {
		return BatchStatusPending
	}
	if anyActive {
		return BatchStatusRunning
	}
	if anyFailed {
		return BatchStatusPartial
	}
	return BatchStatusCompleted
}

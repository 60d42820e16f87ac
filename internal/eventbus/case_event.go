package eventbus

import "github.com/caseforge/backend/internal/dto"

type CaseEventType string

const (
	// CaseEventGenerated fires once per feature when its generation run
	// completes with usable test cases.
	CaseEventGenerated CaseEventType = "CaseGenerated"
	// CaseEventDeleted fires when a single test case is removed.
	CaseEventDeleted CaseEventType = "CaseDeleted"
)

type CaseEvent struct {
	Type      CaseEventType
	BatchID   string
	FeatureID string
	// Items carries the generated cases on CaseEventGenerated.
	Items []dto.TestCaseItem
	// CaseID identifies the removed case on CaseEventDeleted.
	CaseID string
}

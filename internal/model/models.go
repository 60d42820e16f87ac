package model

import (
	"time"
)

// TestCase is the canonical generated test case. It is the unit the store
// persists and the unit the export layer renders. Every instance is owned
// by exactly one feature of one batch; content duplicates across features
// are distinct rows.
type TestCase struct {
	ID             string    `json:"id" gorm:"primaryKey;size:64"`
	BatchID        string    `json:"batch_id" gorm:"size:64;index"`
	FeatureID      string    `json:"feature_id" gorm:"size:64;index"`
	Scenario       string    `json:"scenario" gorm:"size:500;not null"`
	Description    string    `json:"description" gorm:"size:2000"`
	Precondition   string    `json:"precondition" gorm:"size:2000"`
	TestData       string    `json:"test_data" gorm:"size:2000"`
	Steps          []string  `json:"steps" gorm:"serializer:json;type:text"`
	ExpectedResult string    `json:"expected_result" gorm:"size:2000"`
	Dimension      string    `json:"dimension" gorm:"size:50"`
	CreatedBy      string    `json:"created_by" gorm:"size:100"` // provider that produced it
	CreatedAt      time.Time `json:"created_at"`
}

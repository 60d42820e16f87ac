// Package dto carries the request and response shapes of the HTTP surface
// and the cross-layer value types built from them.
package dto

// FeatureConfig describes one feature to generate test cases for.
type FeatureConfig struct {
	Name             string   `json:"name" binding:"required"`
	Description      string   `json:"description" binding:"required"`
	AllowedActions   []string `json:"allowed_actions,omitempty"`
	ExcludedFeatures []string `json:"excluded_features,omitempty"`
	// CoverageLevel is one of low, medium, high, comprehensive.
	// Empty means medium.
	CoverageLevel string `json:"coverage_level,omitempty"`
}

// GenerateRequest is the synchronous single-feature generation request.
type GenerateRequest struct {
	Feature  FeatureConfig `json:"feature" binding:"required"`
	Provider string        `json:"provider,omitempty"`
	ModelID  string        `json:"model_id,omitempty"`
}

// BatchStartRequest submits many features for concurrent generation.
type BatchStartRequest struct {
	Features []FeatureConfig `json:"features" binding:"required"`
	Provider string          `json:"provider,omitempty"`
	ModelID  string          `json:"model_id,omitempty"`
}

// BatchStartResponse acknowledges submission; generation continues in the
// background.
type BatchStartResponse struct {
	BatchID string `json:"batch_id"`
	Status  string `json:"status"`
}

// TestCaseItem is one generated test case as rendered to clients.
type TestCaseItem struct {
	ID             string   `json:"id"`
	Scenario       string   `json:"test_scenario"`
	Description    string   `json:"test_description"`
	Precondition   string   `json:"pre_condition"`
	TestData       string   `json:"test_data"`
	Steps          []string `json:"test_steps"`
	ExpectedResult string   `json:"expected_result"`
	Dimension      string   `json:"dimension,omitempty"`
	CreatedBy      string   `json:"created_by,omitempty"`
}

// FeatureResult is the per-feature slot inside a batch status response.
// Slots keep their submission order for the life of the batch.
type FeatureResult struct {
	FeatureID   string         `json:"feature_id"`
	FeatureName string         `json:"feature_name"`
	Status      string         `json:"status"`
	Items       []TestCaseItem `json:"items"`
	Error       string         `json:"error,omitempty"`
}

// BatchStatusResponse is a point-in-time snapshot of a batch.
type BatchStatusResponse struct {
	BatchID  string          `json:"batch_id"`
	Status   string          `json:"status"`
	Features []FeatureResult `json:"features"`
}

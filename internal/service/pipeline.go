package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"k8s.io/klog/v2"

	"github.com/caseforge/backend/internal/dto"
	"github.com/caseforge/backend/internal/provider"
	"github.com/caseforge/backend/internal/service/dedup"
	"github.com/caseforge/backend/internal/utils"
)

// Defaults backfilled into optional fields the model left empty. An item
// missing a required field is dropped instead.
const (
	defaultPrecondition = "No specific preconditions required"
	defaultTestData     = "Standard test data as per feature requirements"
)

// PromptPipeline runs the two prompting passes for one feature and one
// coverage dimension: extract scenario titles, collapse near-duplicate
// titles, then expand the survivors into structured test cases.
type PromptPipeline struct {
	chat       provider.ChatProvider
	titleDedup *dedup.Deduplicator
}

func NewPromptPipeline(chat provider.ChatProvider) *PromptPipeline {
	return &PromptPipeline{
		chat: chat,
		// Scenario dedup is title-only; the semantic pass runs once per
		// feature after all dimensions finish.
		titleDedup: dedup.New(nil),
	}
}

// GenerateDimension produces the test cases for one dimension. A failure
// here is contained to the dimension; callers continue with the rest.
func (p *PromptPipeline) GenerateDimension(ctx context.Context, feature dto.FeatureConfig, plan DimensionPlan) ([]dto.TestCaseItem, error) {
	scenarios, err := p.ExtractScenarios(ctx, feature, plan)
	if err != nil {
		return nil, &GenerationError{Dimension: plan.Dimension, Err: err}
	}
	klog.V(6).Infof("dimension %s: extracted %d scenarios for feature %q", plan.Dimension, len(scenarios), feature.Name)

	scenarios = p.DedupeScenarios(ctx, scenarios)
	klog.V(6).Infof("dimension %s: %d scenarios after dedup", plan.Dimension, len(scenarios))

	items, err := p.ExpandToTestCases(ctx, feature, plan, scenarios)
	if err != nil {
		return nil, &GenerationError{Dimension: plan.Dimension, Err: err}
	}
	if len(items) == 0 {
		return nil, &GenerationError{Dimension: plan.Dimension, Err: fmt.Errorf("model returned no usable test cases")}
	}
	return items, nil
}

// scenarioEntry tolerates both plain-string scenarios and objects with a
// title field.
type scenarioEntry struct {
	title string
}

func (s *scenarioEntry) UnmarshalJSON(data []byte) error {
	var asString string
	if err := json.Unmarshal(data, &asString); err == nil {
		s.title = asString
		return nil
	}
	var asObject struct {
		Title    string `json:"title"`
		Scenario string `json:"scenario"`
	}
	if err := json.Unmarshal(data, &asObject); err != nil {
		// Unusable entry; leave the title empty so it gets discarded.
		return nil
	}
	if asObject.Title != "" {
		s.title = asObject.Title
	} else {
		s.title = asObject.Scenario
	}
	return nil
}

// ExtractScenarios is the first prompting pass. A malformed response gets
// one stricter retry; after that, unusable entries are discarded. A
// transport failure propagates as-is: callWithRetry has already retried,
// and a stricter prompt would not help an unreachable model.
func (p *PromptPipeline) ExtractScenarios(ctx context.Context, feature dto.FeatureConfig, plan DimensionPlan) ([]string, error) {
	raw, err := p.callWithRetry(ctx, buildScenarioPrompt(feature, plan, false))
	if err != nil {
		return nil, err
	}

	parsed, parseErr := parseScenarios(raw)
	if parseErr != nil {
		klog.Warningf("scenario extraction for dimension %s returned malformed output, retrying with stricter prompt: %v", plan.Dimension, parseErr)
		raw, err = p.callWithRetry(ctx, buildScenarioPrompt(feature, plan, true))
		if err != nil {
			return nil, err
		}
		parsed, parseErr = parseScenarios(raw)
		if parseErr != nil {
			return nil, parseErr
		}
	}

	scenarios := make([]string, 0, len(parsed))
	for _, entry := range parsed {
		title := strings.TrimSpace(entry.title)
		if title == "" {
			continue
		}
		scenarios = append(scenarios, title)
	}
	if len(scenarios) == 0 {
		return nil, fmt.Errorf("model returned no scenarios for dimension %s", plan.Dimension)
	}
	return scenarios, nil
}

func parseScenarios(raw string) ([]scenarioEntry, error) {
	var resp struct {
		Scenarios []scenarioEntry `json:"scenarios"`
	}
	if err := utils.ParseLenient(raw, &resp); err != nil {
		return nil, fmt.Errorf("scenario extraction: %w", err)
	}
	if len(resp.Scenarios) == 0 {
		return nil, fmt.Errorf("scenario extraction: response carried no scenarios array")
	}
	return resp.Scenarios, nil
}

// DedupeScenarios collapses near-duplicate titles within one dimension.
func (p *PromptPipeline) DedupeScenarios(ctx context.Context, scenarios []string) []string {
	items := make([]dedup.Item, len(scenarios))
	for i, s := range scenarios {
		items[i] = dedup.Item{Title: s}
	}
	kept := p.titleDedup.Dedupe(ctx, items)
	out := make([]string, len(kept))
	for i, idx := range kept {
		out[i] = scenarios[idx]
	}
	return out
}

// rawTestCase is the model-facing shape of one expanded test case.
type rawTestCase struct {
	TestScenario    string   `json:"test_scenario"`
	TestDescription string   `json:"test_description"`
	PreCondition    string   `json:"pre_condition"`
	TestData        string   `json:"test_data"`
	TestSteps       []string `json:"test_steps"`
	ExpectedResult  string   `json:"expected_result"`
}

// ExpandToTestCases is the second prompting pass. Items failing shape
// validation are dropped; optional fields are backfilled.
func (p *PromptPipeline) ExpandToTestCases(ctx context.Context, feature dto.FeatureConfig, plan DimensionPlan, scenarios []string) ([]dto.TestCaseItem, error) {
	if len(scenarios) == 0 {
		return nil, nil
	}

	prompt := buildExpansionPrompt(feature, plan, scenarios)
	raw, err := p.callWithRetry(ctx, prompt)
	if err != nil {
		return nil, err
	}

	var resp struct {
		TestCases []rawTestCase `json:"test_cases"`
	}
	if err := utils.ParseLenient(raw, &resp); err != nil {
		// One more round trip; models frequently fix formatting on a
		// straight retry of the same prompt.
		klog.Warningf("test expansion for dimension %s returned malformed JSON, retrying: %v", plan.Dimension, err)
		raw, err = p.callWithRetry(ctx, prompt)
		if err != nil {
			return nil, err
		}
		if err := utils.ParseLenient(raw, &resp); err != nil {
			return nil, fmt.Errorf("test expansion: %w", err)
		}
	}

	items := make([]dto.TestCaseItem, 0, len(resp.TestCases))
	for _, tc := range resp.TestCases {
		item, ok := p.validateTestCase(tc, plan.Dimension)
		if !ok {
			klog.Warningf("dropping invalid test case %q in dimension %s", tc.TestScenario, plan.Dimension)
			continue
		}
		items = append(items, item)
	}
	return items, nil
}

// validateTestCase enforces the required fields and backfills the
// optional ones.
func (p *PromptPipeline) validateTestCase(tc rawTestCase, dimension Dimension) (dto.TestCaseItem, bool) {
	scenario := strings.TrimSpace(tc.TestScenario)
	description := strings.TrimSpace(tc.TestDescription)
	expected := strings.TrimSpace(tc.ExpectedResult)

	steps := make([]string, 0, len(tc.TestSteps))
	for _, s := range tc.TestSteps {
		if trimmed := strings.TrimSpace(s); trimmed != "" {
			steps = append(steps, trimmed)
		}
	}

	if scenario == "" || description == "" || expected == "" || len(steps) == 0 {
		return dto.TestCaseItem{}, false
	}

	precondition := strings.TrimSpace(tc.PreCondition)
	if precondition == "" {
		precondition = defaultPrecondition
	}
	testData := strings.TrimSpace(tc.TestData)
	if testData == "" {
		testData = defaultTestData
	}

	return dto.TestCaseItem{
		ID:             uuid.NewString(),
		Scenario:       scenario,
		Description:    description,
		Precondition:   precondition,
		TestData:       testData,
		Steps:          steps,
		ExpectedResult: expected,
		Dimension:      string(dimension),
		CreatedBy:      p.chat.Name(),
	}, true
}

// callWithRetry sends one prompt, retrying once with backoff on transport
// failure.
func (p *PromptPipeline) callWithRetry(ctx context.Context, prompt string) (string, error) {
	var lastErr error
	for attempt := 0; attempt < 2; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(time.Second << attempt):
			}
		}
		raw, err := p.chat.ChatComplete(ctx, prompt)
		if err == nil {
			return raw, nil
		}
		lastErr = err
		klog.Warningf("model call failed (attempt %d/2): %v", attempt+1, lastErr)
	}
	return "", fmt.Errorf("model call failed after retry: %w", lastErr)
}

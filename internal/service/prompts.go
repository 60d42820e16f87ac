package service

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/caseforge/backend/internal/dto"
)

// dimensionFocus steers the model per dimension. Later dimensions tell the
// model not to repeat earlier ones; cross-dimension duplicates that slip
// through are caught by the final dedup pass.
var dimensionFocus = map[Dimension]string{
	DimensionCore: "Fundamental workflows, happy paths, and required validations. " +
		"Highest priority: never skip basic flows or mandatory checks.",
	DimensionValidation: "Field validation, required inputs, format errors, and user input mistakes. " +
		"Do not duplicate core flows.",
	DimensionNegative: "Invalid inputs, error paths, rejection cases, and user mistakes. " +
		"Each independent failure mode is its own scenario.",
	DimensionBoundary: "Boundary values, unusual inputs, limits, and edge values. " +
		"Do not duplicate core, validation, or negative scenarios.",
	DimensionState: "State transitions, multi-step flows, and state-dependent behavior. " +
		"Do not duplicate earlier dimensions.",
	DimensionSecurity: "Security-related scenarios: auth, authorization, injection, sensitive data. " +
		"Do not duplicate earlier dimensions.",
	DimensionDestructive: "Data corruption, conflicting operations, resilience failures, and recovery. " +
		"Do not duplicate earlier dimensions.",
}

// featureContext renders the feature description block shared by both
// prompt passes.
func featureContext(feature dto.FeatureConfig) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Feature: %s\n", feature.Name)
	fmt.Fprintf(&b, "Description: %s\n", feature.Description)
	if len(feature.AllowedActions) > 0 {
		fmt.Fprintf(&b, "Allowed actions (stay within these): %s\n", strings.Join(feature.AllowedActions, "; "))
	}
	if len(feature.ExcludedFeatures) > 0 {
		fmt.Fprintf(&b, "Out of scope (never test these): %s\n", strings.Join(feature.ExcludedFeatures, "; "))
	}
	return b.String()
}

// buildScenarioPrompt asks for scenario titles only. strict toggles the
// retry wording used after a parse failure.
func buildScenarioPrompt(feature dto.FeatureConfig, plan DimensionPlan, strict bool) string {
	var b strings.Builder
	b.WriteString("You are a senior QA test architect. Your task is to list ALL distinct test scenarios for one coverage dimension.\n\n")
	fmt.Fprintf(&b, "Coverage dimension: %s\n", plan.Dimension)
	fmt.Fprintf(&b, "Focus: %s\n", dimensionFocus[plan.Dimension])
	if plan.TargetCount > 0 {
		fmt.Fprintf(&b, "\nAim for at least %d distinct scenarios for this dimension. Be exhaustive.\n", plan.TargetCount)
	}
	b.WriteString("\nRules:\n")
	b.WriteString("- Do NOT merge scenarios. Each independent validation or flow must be its own scenario.\n")
	b.WriteString("- Be exhaustive. List every distinct scenario you can identify for this dimension.\n")
	b.WriteString("- Each scenario should be one short phrase (e.g. \"User login with valid credentials\", \"Reject empty required field\").\n")
	b.WriteString("- Do not write test cases yet; only scenario titles or one-line descriptions.\n")
	b.WriteString("- Core scenarios (happy path, required validations) are highest priority and must never be skipped.\n")
	if strict {
		b.WriteString("\nYour previous response was not valid JSON. Respond again and output NOTHING except the JSON object described below.\n")
	}
	b.WriteString("\nInput context:\n")
	b.WriteString(featureContext(feature))
	b.WriteString("\nReturn ONLY valid JSON with this exact structure (no other text, no markdown):\n")
	b.WriteString(`{"scenarios": ["scenario 1", "scenario 2", ...]}` + "\n\nOutput:")
	return b.String()
}

// buildExpansionPrompt turns surviving scenario titles into full test
// cases.
func buildExpansionPrompt(feature dto.FeatureConfig, plan DimensionPlan, scenarios []string) string {
	scenariosJSON, _ := json.MarshalIndent(scenarios, "", "  ")

	var b strings.Builder
	b.WriteString("You are a senior QA test architect. Convert each listed scenario into one or more structured test cases.\n\n")
	b.WriteString("CRITICAL RULES - OUTPUT FORMAT:\n")
	b.WriteString("- Output ONLY valid JSON. Nothing else.\n")
	b.WriteString("- Do NOT wrap the JSON in markdown code blocks (no ```json or ```).\n")
	b.WriteString("- Do NOT add any explanatory text, comments, or prose before or after the JSON.\n")
	b.WriteString("- Do NOT use single quotes; use double quotes only.\n")
	b.WriteString("- Do NOT use trailing commas in arrays or objects.\n\n")
	fmt.Fprintf(&b, "Coverage dimension: %s\n", plan.Dimension)
	fmt.Fprintf(&b, "Focus: %s\n", dimensionFocus[plan.Dimension])
	b.WriteString("\nScenarios to expand (each must become at least one test case):\n")
	b.Write(scenariosJSON)
	b.WriteString("\n\nRules:\n")
	b.WriteString("- Minimum one test case per scenario. Create additional test cases when variations (e.g. different inputs, boundaries) are needed.\n")
	b.WriteString("- Never summarize multiple distinct failures or validations into one test case.\n")
	b.WriteString("- Quality is more important than brevity. Each test case must be concrete and executable.\n")
	b.WriteString("- test_steps must be ordered and numbered (e.g. \"1. Do X\", \"2. Do Y\").\n")
	b.WriteString("- pre_condition, test_data, expected_result must be non-empty strings.\n")
	b.WriteString("- Use concrete test data values instead of generic placeholders.\n")
	b.WriteString("\nUse this exact JSON structure (top-level key must be \"test_cases\"):\n")
	b.WriteString(`{
  "test_cases": [
    {
      "test_scenario": "short title",
      "test_description": "what is validated",
      "pre_condition": "conditions before test",
      "test_data": "input/state required",
      "test_steps": ["1. step", "2. step"],
      "expected_result": "expected outcome"
    }
  ]
}`)
	b.WriteString("\n\nInput context:\n")
	b.WriteString(featureContext(feature))
	b.WriteString("\nOutput ONLY the JSON object, no other text:")
	return b.String()
}

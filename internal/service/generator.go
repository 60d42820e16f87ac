package service

import (
	"context"
	"errors"
	"fmt"

	"k8s.io/klog/v2"

	"github.com/caseforge/backend/internal/dto"
	"github.com/caseforge/backend/internal/provider"
	"github.com/caseforge/backend/internal/service/dedup"
)

// FeatureGenerator produces the full test-case set for one feature: every
// dimension its coverage level implies, in dimension order, followed by a
// cross-dimension dedup pass.
type FeatureGenerator struct {
	pipeline *PromptPipeline
	dedup    *dedup.Deduplicator
}

func NewFeatureGenerator(chat provider.ChatProvider, embedder provider.Embedder) *FeatureGenerator {
	return &FeatureGenerator{
		pipeline: NewPromptPipeline(chat),
		dedup:    dedup.New(embedder),
	}
}

// Run generates the feature's test cases. A dimension that fails is
// logged and skipped; the feature fails only when every dimension failed.
func (g *FeatureGenerator) Run(ctx context.Context, feature dto.FeatureConfig) ([]dto.TestCaseItem, error) {
	plan := PlanFor(CoverageLevel(feature.CoverageLevel))

	var accumulated []dto.TestCaseItem
	var dimensionErrors []error
	for _, dim := range plan {
		items, err := g.pipeline.GenerateDimension(ctx, feature, dim)
		if err != nil {
			klog.Errorf("feature %q: dimension %s failed: %v", feature.Name, dim.Dimension, err)
			dimensionErrors = append(dimensionErrors, err)
			continue
		}
		klog.V(6).Infof("feature %q: dimension %s produced %d cases", feature.Name, dim.Dimension, len(items))
		accumulated = append(accumulated, items...)
	}

	if len(accumulated) == 0 {
		err := errors.Join(dimensionErrors...)
		if err == nil {
			err = fmt.Errorf("no test cases produced")
		}
		return nil, &GenerationError{Err: err}
	}

	deduped := g.dedupAcrossDimensions(ctx, accumulated)
	klog.V(6).Infof("feature %q: %d cases after cross-dimension dedup (from %d)", feature.Name, len(deduped), len(accumulated))
	return deduped, nil
}

// dedupAcrossDimensions catches scenarios that different dimensions both
// produced. The earlier dimension's case survives.
func (g *FeatureGenerator) dedupAcrossDimensions(ctx context.Context, items []dto.TestCaseItem) []dto.TestCaseItem {
	candidates := make([]dedup.Item, len(items))
	for i, item := range items {
		candidates[i] = dedup.Item{Title: item.Scenario, Text: item.Description}
	}
	kept := g.dedup.Dedupe(ctx, candidates)
	out := make([]dto.TestCaseItem, len(kept))
	for i, idx := range kept {
		out[i] = items[idx]
	}
	return out
}

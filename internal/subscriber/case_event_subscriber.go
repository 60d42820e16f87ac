package subscriber

import (
	"context"
	"errors"
	"fmt"

	"k8s.io/klog/v2"

	"github.com/caseforge/backend/internal/eventbus"
	"github.com/caseforge/backend/internal/model"
	"github.com/caseforge/backend/internal/repository"
)

// CaseEventSubscriber mirrors the orchestrator's in-memory results into
// the database. The orchestrator itself never touches gorm.
type CaseEventSubscriber struct {
	repo repository.TestCaseRepository
}

func NewCaseEventSubscriber(repo repository.TestCaseRepository) *CaseEventSubscriber {
	return &CaseEventSubscriber{repo: repo}
}

func (s *CaseEventSubscriber) Register(bus *eventbus.Bus) {
	if bus == nil {
		return
	}
	bus.Subscribe(eventbus.CaseEventGenerated, s.handleGenerated)
	bus.Subscribe(eventbus.CaseEventDeleted, s.handleDeleted)
}

func (s *CaseEventSubscriber) handleGenerated(ctx context.Context, event eventbus.CaseEvent) error {
	if len(event.Items) == 0 {
		return nil
	}
	cases := make([]model.TestCase, 0, len(event.Items))
	for _, item := range event.Items {
		if item.ID == "" {
			return fmt.Errorf("generated test case without id for feature %s", event.FeatureID)
		}
		cases = append(cases, model.TestCase{
			ID:             item.ID,
			BatchID:        event.BatchID,
			FeatureID:      event.FeatureID,
			Scenario:       item.Scenario,
			Description:    item.Description,
			Precondition:   item.Precondition,
			TestData:       item.TestData,
			Steps:          item.Steps,
			ExpectedResult: item.ExpectedResult,
			Dimension:      item.Dimension,
			CreatedBy:      item.CreatedBy,
		})
	}
	if err := s.repo.CreateBatch(cases); err != nil {
		klog.Errorf("persist %d generated cases for feature %s: %v", len(cases), event.FeatureID, err)
		return err
	}
	klog.V(6).Infof("persisted %d cases for feature %s", len(cases), event.FeatureID)
	return nil
}

func (s *CaseEventSubscriber) handleDeleted(ctx context.Context, event eventbus.CaseEvent) error {
	err := s.repo.Delete(event.CaseID)
	if errors.Is(err, repository.ErrNotFound) {
		// The case may never have been persisted; nothing to undo.
		return nil
	}
	if err != nil {
		klog.Errorf("delete case %s: %v", event.CaseID, err)
		return err
	}
	return nil
}

package service

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/panjf2000/ants/v2"
	"k8s.io/klog/v2"

	"github.com/caseforge/backend/internal/dto"
	"github.com/caseforge/backend/internal/eventbus"
	"github.com/caseforge/backend/internal/provider"
	"github.com/caseforge/backend/internal/service/statemachine"
)

// FeatureRunner generates the full test-case set for one feature.
// FeatureGenerator is the production implementation.
type FeatureRunner interface {
	Run(ctx context.Context, feature dto.FeatureConfig) ([]dto.TestCaseItem, error)
}

// ProviderResolver hands out chat providers and the optional embedder.
// provider.Factory is the production implementation.
type ProviderResolver interface {
	Resolve(providerName, modelID string) (provider.ChatProvider, error)
	Embedder() provider.Embedder
}

// featureSlot is one feature's position inside a batch. Slots never move
// or disappear; retry mutates the slot in place.
type featureSlot struct {
	featureID string
	config    dto.FeatureConfig
	status    statemachine.FeatureStatus
	items     []dto.TestCaseItem
	errMsg    string
}

type batchState struct {
	id       string
	runner   FeatureRunner
	features []*featureSlot
}

// BatchService fans features out over a worker pool and tracks their
// lifecycle. One coarse mutex guards all batch state; workers only hold
// it to flip statuses and write results, never across a model call.
type BatchService struct {
	mu       sync.Mutex
	batches  map[string]*batchState
	resolver ProviderResolver
	pool     *ants.Pool
	sm       *statemachine.FeatureTransition
	bus      *eventbus.Bus

	// newRunner builds the generator for a resolved provider. Tests
	// substitute stub runners here.
	newRunner func(chat provider.ChatProvider) FeatureRunner
}

func NewBatchService(resolver ProviderResolver, bus *eventbus.Bus, maxWorkers int) (*BatchService, error) {
	if maxWorkers <= 0 {
		maxWorkers = 8
	}
	pool, err := ants.NewPool(maxWorkers)
	if err != nil {
		return nil, fmt.Errorf("create worker pool: %w", err)
	}
	s := &BatchService{
		batches:  make(map[string]*batchState),
		resolver: resolver,
		pool:     pool,
		sm:       statemachine.NewFeatureTransition(),
		bus:      bus,
	}
	s.newRunner = func(chat provider.ChatProvider) FeatureRunner {
		return NewFeatureGenerator(chat, resolver.Embedder())
	}
	return s, nil
}

// Release drains the worker pool. Called on shutdown.
func (s *BatchService) Release() {
	s.pool.Release()
}

// StartBatch registers a batch and submits one pool task per feature.
// The only fatal precondition is an unusable provider; everything after
// submission is contained per feature.
func (s *BatchService) StartBatch(req dto.BatchStartRequest) (dto.BatchStartResponse, error) {
	if len(req.Features) == 0 {
		return dto.BatchStartResponse{}, fmt.Errorf("batch must contain at least one feature")
	}

	chat, err := s.resolver.Resolve(req.Provider, req.ModelID)
	if err != nil {
		return dto.BatchStartResponse{}, err
	}

	batch := &batchState{
		id:     uuid.NewString(),
		runner: s.newRunner(chat),
	}
	for _, cfg := range req.Features {
		batch.features = append(batch.features, &featureSlot{
			featureID: uuid.NewString(),
			config:    cfg,
			status:    statemachine.FeatureStatusPending,
		})
	}

	s.mu.Lock()
	s.batches[batch.id] = batch
	s.mu.Unlock()

	klog.V(6).Infof("batch %s: submitting %d features via provider %s", batch.id, len(batch.features), chat.Name())
	for _, slot := range batch.features {
		s.submit(batch, slot)
	}

	return dto.BatchStartResponse{BatchID: batch.id, Status: string(statemachine.BatchStatusPending)}, nil
}

func (s *BatchService) submit(batch *batchState, slot *featureSlot) {
	if err := s.pool.Submit(func() {
		s.runFeature(batch, slot)
	}); err != nil {
		s.mu.Lock()
		// The slot is pending on batch start and generating on retry;
		// both may fail here.
		next, terr := s.sm.Transition(slot.status, statemachine.FeatureStatusFailed)
		if terr != nil {
			s.mu.Unlock()
			klog.Errorf("batch %s: feature %s submission failed in state %s: %v", batch.id, slot.featureID, slot.status, err)
			return
		}
		slot.status = next
		slot.errMsg = fmt.Sprintf("submit to worker pool: %v", err)
		s.mu.Unlock()
		klog.Errorf("batch %s: feature %s submission failed: %v", batch.id, slot.featureID, err)
	}
}

// runFeature drives one feature to a terminal state. It runs on a pool
// worker with a background context: batches outlive the HTTP request
// that started them.
func (s *BatchService) runFeature(batch *batchState, slot *featureSlot) {
	s.mu.Lock()
	if slot.status == statemachine.FeatureStatusPending {
		next, err := s.sm.Transition(slot.status, statemachine.FeatureStatusGenerating)
		if err != nil {
			s.mu.Unlock()
			klog.Errorf("batch %s: feature %s: %v", batch.id, slot.featureID, err)
			return
		}
		slot.status = next
	} else if slot.status != statemachine.FeatureStatusGenerating {
		// Retry flips the slot to generating before resubmitting; any
		// other state here means a stale task.
		s.mu.Unlock()
		return
	}
	cfg := slot.config
	s.mu.Unlock()

	items, err := batch.runner.Run(context.Background(), cfg)

	s.mu.Lock()
	if err != nil {
		slot.status = statemachine.FeatureStatusFailed
		slot.errMsg = err.Error()
		s.mu.Unlock()
		klog.Errorf("batch %s: feature %q failed: %v", batch.id, cfg.Name, err)
		return
	}
	slot.status = statemachine.FeatureStatusCompleted
	slot.items = items
	slot.errMsg = ""
	s.mu.Unlock()

	klog.V(6).Infof("batch %s: feature %q completed with %d cases", batch.id, cfg.Name, len(items))
	if s.bus != nil {
		if err := s.bus.Publish(context.Background(), eventbus.CaseEvent{
			Type:      eventbus.CaseEventGenerated,
			BatchID:   batch.id,
			FeatureID: slot.featureID,
			Items:     items,
		}); err != nil {
			klog.Errorf("batch %s: publish generated event: %v", batch.id, err)
		}
	}
}

// GetBatchStatus returns a point-in-time snapshot. The batch status is
// derived from the feature statuses on every read, never stored.
func (s *BatchService) GetBatchStatus(batchID string) (dto.BatchStatusResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	batch, ok := s.batches[batchID]
	if !ok {
		return dto.BatchStatusResponse{}, ErrBatchNotFound
	}

	resp := dto.BatchStatusResponse{BatchID: batch.id}
	statuses := make([]statemachine.FeatureStatus, len(batch.features))
	for i, slot := range batch.features {
		statuses[i] = slot.status
		items := make([]dto.TestCaseItem, len(slot.items))
		copy(items, slot.items)
		resp.Features = append(resp.Features, dto.FeatureResult{
			FeatureID:   slot.featureID,
			FeatureName: slot.config.Name,
			Status:      string(slot.status),
			Items:       items,
			Error:       slot.errMsg,
		})
	}
	resp.Status = string(statemachine.DeriveBatchStatus(statuses))
	return resp, nil
}

// RetryFeature re-runs a failed feature in place: same slot, same
// feature id, same position. Anything not in the failed state is
// rejected.
func (s *BatchService) RetryFeature(batchID, featureID string) error {
	s.mu.Lock()
	batch, ok := s.batches[batchID]
	if !ok {
		s.mu.Unlock()
		return ErrBatchNotFound
	}
	var slot *featureSlot
	for _, candidate := range batch.features {
		if candidate.featureID == featureID {
			slot = candidate
			break
		}
	}
	if slot == nil {
		s.mu.Unlock()
		return ErrFeatureNotFound
	}
	// Pending would also transition to generating legally, but retry is
	// only defined from failed.
	if slot.status != statemachine.FeatureStatusFailed {
		s.mu.Unlock()
		return fmt.Errorf("%w: status is %s", ErrFeatureNotRetryable, slot.status)
	}
	next, err := s.sm.Transition(slot.status, statemachine.FeatureStatusGenerating)
	if err != nil {
		s.mu.Unlock()
		return fmt.Errorf("%w: %v", ErrFeatureNotRetryable, err)
	}
	slot.status = next
	slot.items = nil
	slot.errMsg = ""
	s.mu.Unlock()

	klog.V(6).Infof("batch %s: retrying feature %s", batchID, featureID)
	s.submit(batch, slot)
	return nil
}

// DeleteTestCase removes one generated case from its feature's results.
func (s *BatchService) DeleteTestCase(batchID, caseID string) error {
	s.mu.Lock()
	batch, ok := s.batches[batchID]
	if !ok {
		s.mu.Unlock()
		return ErrBatchNotFound
	}
	var owner *featureSlot
	for _, slot := range batch.features {
		for i, item := range slot.items {
			if item.ID == caseID {
				slot.items = append(slot.items[:i], slot.items[i+1:]...)
				owner = slot
				break
			}
		}
		if owner != nil {
			break
		}
	}
	s.mu.Unlock()

	if owner == nil {
		return ErrCaseNotFound
	}
	if s.bus != nil {
		if err := s.bus.Publish(context.Background(), eventbus.CaseEvent{
			Type:      eventbus.CaseEventDeleted,
			BatchID:   batchID,
			FeatureID: owner.featureID,
			CaseID:    caseID,
		}); err != nil {
			klog.Errorf("batch %s: publish deleted event: %v", batchID, err)
		}
	}
	return nil
}

// DeleteTestCaseByID removes a case when only its id is known, scanning
// every live batch for the owner.
func (s *BatchService) DeleteTestCaseByID(caseID string) error {
	s.mu.Lock()
	var batchID string
	for id, batch := range s.batches {
		for _, slot := range batch.features {
			for _, item := range slot.items {
				if item.ID == caseID {
					batchID = id
					break
				}
			}
			if batchID != "" {
				break
			}
		}
		if batchID != "" {
			break
		}
	}
	s.mu.Unlock()

	if batchID == "" {
		return ErrCaseNotFound
	}
	return s.DeleteTestCase(batchID, caseID)
}

// GenerateFeature runs one feature synchronously, outside any batch.
func (s *BatchService) GenerateFeature(ctx context.Context, req dto.GenerateRequest) ([]dto.TestCaseItem, error) {
	chat, err := s.resolver.Resolve(req.Provider, req.ModelID)
	if err != nil {
		return nil, err
	}
	runner := s.newRunner(chat)
	items, err := runner.Run(ctx, req.Feature)
	if err != nil {
		return nil, err
	}
	if s.bus != nil {
		if err := s.bus.Publish(ctx, eventbus.CaseEvent{
			Type:      eventbus.CaseEventGenerated,
			FeatureID: uuid.NewString(),
			Items:     items,
		}); err != nil {
			klog.Errorf("publish generated event: %v", err)
		}
	}
	return items, nil
}

package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/caseforge/backend/internal/dto"
	"github.com/caseforge/backend/internal/eventbus"
	"github.com/caseforge/backend/internal/provider"
	"github.com/caseforge/backend/internal/service/statemachine"
)

type stubChat struct{}

func (stubChat) Name() string { return "stub" }
func (stubChat) ChatComplete(context.Context, string) (string, error) {
	return "", errors.New("not used")
}

type stubResolver struct {
	err error
}

func (r *stubResolver) Resolve(providerName, modelID string) (provider.ChatProvider, error) {
	if r.err != nil {
		return nil, r.err
	}
	return stubChat{}, nil
}

func (r *stubResolver) Embedder() provider.Embedder { return nil }

// stubRunner resolves each feature by name: a result, an error, or a
// channel to block on first.
type stubRunner struct {
	mu      sync.Mutex
	results map[string][]dto.TestCaseItem
	errs    map[string]error
	gates   map[string]chan struct{}
}

func (r *stubRunner) Run(_ context.Context, feature dto.FeatureConfig) ([]dto.TestCaseItem, error) {
	r.mu.Lock()
	gate := r.gates[feature.Name]
	r.mu.Unlock()
	if gate != nil {
		<-gate
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.errs[feature.Name]; err != nil {
		return nil, err
	}
	return r.results[feature.Name], nil
}

func (r *stubRunner) setError(feature string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err == nil {
		delete(r.errs, feature)
	} else {
		r.errs[feature] = err
	}
}

func newTestBatchService(t *testing.T, runner *stubRunner, bus *eventbus.Bus) *BatchService {
	t.Helper()
	s, err := NewBatchService(&stubResolver{}, bus, 4)
	require.NoError(t, err)
	t.Cleanup(s.Release)
	s.newRunner = func(provider.ChatProvider) FeatureRunner { return runner }
	return s
}

func waitForBatchStatus(t *testing.T, s *BatchService, batchID string, want statemachine.BatchStatus) dto.BatchStatusResponse {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		resp, err := s.GetBatchStatus(batchID)
		require.NoError(t, err)
		if resp.Status == string(want) {
			return resp
		}
		time.Sleep(10 * time.Millisecond)
	}
	resp, _ := s.GetBatchStatus(batchID)
	t.Fatalf("batch %s never reached status %s (last: %s)", batchID, want, resp.Status)
	return dto.BatchStatusResponse{}
}

func loginItems() []dto.TestCaseItem {
	return []dto.TestCaseItem{
		{ID: "case-1", Scenario: "Login with valid credentials", Description: "d",
			Steps: []string{"1. log in"}, ExpectedResult: "dashboard", Dimension: "core"},
		{ID: "case-2", Scenario: "Login with wrong password", Description: "d",
			Steps: []string{"1. log in"}, ExpectedResult: "error", Dimension: "core"},
	}
}

func TestStartBatchSingleFeatureCompletes(t *testing.T) {
	runner := &stubRunner{
		results: map[string][]dto.TestCaseItem{"Login": loginItems()},
		errs:    map[string]error{},
		gates:   map[string]chan struct{}{},
	}
	s := newTestBatchService(t, runner, nil)

	resp, err := s.StartBatch(dto.BatchStartRequest{
		Features: []dto.FeatureConfig{{Name: "Login", Description: "sign in", CoverageLevel: "low"}},
	})
	require.NoError(t, err)
	require.NotEmpty(t, resp.BatchID)

	status := waitForBatchStatus(t, s, resp.BatchID, statemachine.BatchStatusCompleted)
	require.Len(t, status.Features, 1)
	assert.Equal(t, "completed", status.Features[0].Status)
	assert.Len(t, status.Features[0].Items, 2)
	assert.Empty(t, status.Features[0].Error)
}

func TestBatchStatusAggregation(t *testing.T) {
	gateC := make(chan struct{})
	runner := &stubRunner{
		results: map[string][]dto.TestCaseItem{
			"A": loginItems(),
			"C": loginItems(),
		},
		errs:  map[string]error{"B": errors.New("model exploded")},
		gates: map[string]chan struct{}{"C": gateC},
	}
	s := newTestBatchService(t, runner, nil)

	resp, err := s.StartBatch(dto.BatchStartRequest{Features: []dto.FeatureConfig{
		{Name: "A", Description: "a"},
		{Name: "B", Description: "b"},
		{Name: "C", Description: "c"},
	}})
	require.NoError(t, err)

	// A completes and B fails while C is still held open: running.
	deadline := time.Now().Add(5 * time.Second)
	for {
		status, err := s.GetBatchStatus(resp.BatchID)
		require.NoError(t, err)
		if status.Features[0].Status == "completed" && status.Features[1].Status == "failed" {
			assert.Equal(t, "running", status.Status)
			break
		}
		require.True(t, time.Now().Before(deadline), "A/B never reached terminal states")
		time.Sleep(10 * time.Millisecond)
	}

	close(gateC)
	status := waitForBatchStatus(t, s, resp.BatchID, statemachine.BatchStatusPartial)

	// Submission order survives regardless of completion order.
	assert.Equal(t, "A", status.Features[0].FeatureName)
	assert.Equal(t, "B", status.Features[1].FeatureName)
	assert.Equal(t, "C", status.Features[2].FeatureName)
	assert.Contains(t, status.Features[1].Error, "model exploded")
}

func TestRetryFeatureInPlace(t *testing.T) {
	runner := &stubRunner{
		results: map[string][]dto.TestCaseItem{"Other": loginItems()},
		errs:    map[string]error{"Flaky": errors.New("transient failure")},
		gates:   map[string]chan struct{}{},
	}
	s := newTestBatchService(t, runner, nil)

	resp, err := s.StartBatch(dto.BatchStartRequest{Features: []dto.FeatureConfig{
		{Name: "Flaky", Description: "f"},
		{Name: "Other", Description: "o"},
	}})
	require.NoError(t, err)

	status := waitForBatchStatus(t, s, resp.BatchID, statemachine.BatchStatusPartial)
	flakyID := status.Features[0].FeatureID
	assert.Equal(t, "failed", status.Features[0].Status)

	// Retrying the completed sibling is rejected.
	err = s.RetryFeature(resp.BatchID, status.Features[1].FeatureID)
	assert.ErrorIs(t, err, ErrFeatureNotRetryable)

	runner.setError("Flaky", nil)
	runner.mu.Lock()
	runner.results["Flaky"] = loginItems()
	runner.mu.Unlock()

	require.NoError(t, s.RetryFeature(resp.BatchID, flakyID))
	status = waitForBatchStatus(t, s, resp.BatchID, statemachine.BatchStatusCompleted)

	// Same slot, same id, same position.
	assert.Equal(t, flakyID, status.Features[0].FeatureID)
	assert.Equal(t, "Flaky", status.Features[0].FeatureName)
	assert.Equal(t, "completed", status.Features[0].Status)
	assert.Empty(t, status.Features[0].Error)
	assert.Len(t, status.Features[0].Items, 2)
}

func TestRetryUnknownTargets(t *testing.T) {
	runner := &stubRunner{
		results: map[string][]dto.TestCaseItem{"Login": loginItems()},
		errs:    map[string]error{},
		gates:   map[string]chan struct{}{},
	}
	s := newTestBatchService(t, runner, nil)

	assert.ErrorIs(t, s.RetryFeature("no-such-batch", "x"), ErrBatchNotFound)

	resp, err := s.StartBatch(dto.BatchStartRequest{
		Features: []dto.FeatureConfig{{Name: "Login", Description: "d"}},
	})
	require.NoError(t, err)
	waitForBatchStatus(t, s, resp.BatchID, statemachine.BatchStatusCompleted)
	assert.ErrorIs(t, s.RetryFeature(resp.BatchID, "no-such-feature"), ErrFeatureNotFound)
}

func TestDeleteTestCaseFromBatch(t *testing.T) {
	runner := &stubRunner{
		results: map[string][]dto.TestCaseItem{"Login": loginItems()},
		errs:    map[string]error{},
		gates:   map[string]chan struct{}{},
	}
	bus := eventbus.NewBus()
	var deleted []string
	var mu sync.Mutex
	bus.Subscribe(eventbus.CaseEventDeleted, func(_ context.Context, e eventbus.CaseEvent) error {
		mu.Lock()
		deleted = append(deleted, e.CaseID)
		mu.Unlock()
		return nil
	})
	s := newTestBatchService(t, runner, bus)

	resp, err := s.StartBatch(dto.BatchStartRequest{
		Features: []dto.FeatureConfig{{Name: "Login", Description: "d"}},
	})
	require.NoError(t, err)
	waitForBatchStatus(t, s, resp.BatchID, statemachine.BatchStatusCompleted)

	require.NoError(t, s.DeleteTestCase(resp.BatchID, "case-1"))
	status, err := s.GetBatchStatus(resp.BatchID)
	require.NoError(t, err)
	require.Len(t, status.Features[0].Items, 1)
	assert.Equal(t, "case-2", status.Features[0].Items[0].ID)

	mu.Lock()
	assert.Equal(t, []string{"case-1"}, deleted)
	mu.Unlock()

	assert.ErrorIs(t, s.DeleteTestCase(resp.BatchID, "case-1"), ErrCaseNotFound)
	assert.ErrorIs(t, s.DeleteTestCase("nope", "case-2"), ErrBatchNotFound)
}

func TestDeleteTestCaseByIDScansBatches(t *testing.T) {
	runner := &stubRunner{
		results: map[string][]dto.TestCaseItem{"Login": loginItems()},
		errs:    map[string]error{},
		gates:   map[string]chan struct{}{},
	}
	s := newTestBatchService(t, runner, nil)

	resp, err := s.StartBatch(dto.BatchStartRequest{
		Features: []dto.FeatureConfig{{Name: "Login", Description: "d"}},
	})
	require.NoError(t, err)
	waitForBatchStatus(t, s, resp.BatchID, statemachine.BatchStatusCompleted)

	require.NoError(t, s.DeleteTestCaseByID("case-2"))
	status, err := s.GetBatchStatus(resp.BatchID)
	require.NoError(t, err)
	require.Len(t, status.Features[0].Items, 1)
	assert.Equal(t, "case-1", status.Features[0].Items[0].ID)

	assert.ErrorIs(t, s.DeleteTestCaseByID("case-2"), ErrCaseNotFound)
}

func TestSubmitFailureMarksFeatureFailed(t *testing.T) {
	runner := &stubRunner{
		results: map[string][]dto.TestCaseItem{"Login": loginItems()},
		errs:    map[string]error{},
		gates:   map[string]chan struct{}{},
	}
	s := newTestBatchService(t, runner, nil)
	// A released pool rejects every submission.
	s.Release()

	resp, err := s.StartBatch(dto.BatchStartRequest{
		Features: []dto.FeatureConfig{{Name: "Login", Description: "d"}},
	})
	require.NoError(t, err)

	status, err := s.GetBatchStatus(resp.BatchID)
	require.NoError(t, err)
	assert.Equal(t, "failed", status.Features[0].Status)
	assert.Contains(t, status.Features[0].Error, "submit to worker pool")
	assert.Equal(t, string(statemachine.BatchStatusPartial), status.Status)
}

func TestStartBatchFailsWithoutProvider(t *testing.T) {
	resolverErr := fmt.Errorf("%w: OpenAI API key is empty", provider.ErrNoProvider)
	s, err := NewBatchService(&stubResolver{err: resolverErr}, nil, 2)
	require.NoError(t, err)
	t.Cleanup(s.Release)

	_, err = s.StartBatch(dto.BatchStartRequest{
		Features: []dto.FeatureConfig{{Name: "Login", Description: "d"}},
	})
	assert.ErrorIs(t, err, provider.ErrNoProvider)
}

func TestStartBatchRejectsEmptyFeatureList(t *testing.T) {
	s, err := NewBatchService(&stubResolver{}, nil, 2)
	require.NoError(t, err)
	t.Cleanup(s.Release)

	_, err = s.StartBatch(dto.BatchStartRequest{})
	assert.Error(t, err)
}

func TestGeneratedEventCarriesItems(t *testing.T) {
	runner := &stubRunner{
		results: map[string][]dto.TestCaseItem{"Login": loginItems()},
		errs:    map[string]error{},
		gates:   map[string]chan struct{}{},
	}
	bus := eventbus.NewBus()
	events := make(chan eventbus.CaseEvent, 1)
	bus.Subscribe(eventbus.CaseEventGenerated, func(_ context.Context, e eventbus.CaseEvent) error {
		events <- e
		return nil
	})
	s := newTestBatchService(t, runner, bus)

	resp, err := s.StartBatch(dto.BatchStartRequest{
		Features: []dto.FeatureConfig{{Name: "Login", Description: "d"}},
	})
	require.NoError(t, err)

	select {
	case e := <-events:
		assert.Equal(t, resp.BatchID, e.BatchID)
		assert.Len(t, e.Items, 2)
		assert.NotEmpty(t, e.FeatureID)
	case <-time.After(5 * time.Second):
		t.Fatal("no generated event received")
	}
}

package engine

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mp3fbf/finance-analyzer/internal/analysis"
	"github.com/mp3fbf/finance-analyzer/internal/common"
	"github.com/mp3fbf/finance-analyzer/internal/inference"
	"github.com/mp3fbf/finance-analyzer/internal/model"
	"github.com/mp3fbf/finance-analyzer/internal/service"
	"github.com/mp3fbf/finance-analyzer/internal/testutil"
)

type mockClient struct {
	answers map[string]string
	failing map[string]bool
	calls   int
	mu      sync.Mutex
}

func newMockClient(answers map[string]string) *mockClient {
	return &mockClient{answers: answers, failing: map[string]bool{}}
}

func (m *mockClient) Complete(_ context.Context, prompt string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	for code, answer := range m.answers {
		if strings.Contains(prompt, "MERCHANT CODE: "+code+"\n") {
			if m.failing[code] {
				return "", errors.New("service unavailable")
			}
			return answer, nil
		}
	}
	return "", errors.New("unexpected prompt")
}

func (m *mockClient) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

type recordingMetrics struct {
	stages  []model.Stage
	actions []string
	created []int
	mu      sync.Mutex
}

func (r *recordingMetrics) RunFinished(stage model.Stage, created int, _ time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stages = append(r.stages, stage)
	r.created = append(r.created, created)
}

func (r *recordingMetrics) ValidationRecorded(action string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.actions = append(r.actions, action)
}

// failingStorage fails discovery inserts after the first allowed ones.
type failingStorage struct {
	service.Storage
	allowed int
}

func (f *failingStorage) AddMerchantDiscovery(ctx context.Context, d *model.MerchantDiscovery) error {
	if f.allowed == 0 {
		return errors.New("disk full")
	}
	f.allowed--
	return f.Storage.AddMerchantDiscovery(ctx, d)
}

func reply(name string, confidence float64) string {
	body, _ := json.Marshal(map[string]any{
		"structural_analysis": "short code",
		"value_analysis":      "small amounts",
		"temporal_analysis":   "spread out",
		"needs_web_search":    false,
		"final_inference": map[string]any{
			"name":       name,
			"confidence": confidence,
			"type":       "service",
			"summary":    name + " summary",
		},
	})
	return string(body)
}

func uberTransactions(t *testing.T) []model.Transaction {
	t.Helper()
	return testutil.NewTransactions(t).
		Add("UBER *TRIP 111111", -20, testutil.BaseDate).
		Add("UBER *TRIP 222222", -25, testutil.BaseDate.AddDate(0, 0, 3)).
		Add("UBER *TRIP 333333", -22, testutil.BaseDate.AddDate(0, 0, 9)).
		Build()
}

func newTestWorkflow(t *testing.T, store service.Storage, client *mockClient, metrics Metrics) *Workflow {
	t.Helper()
	eng, err := inference.NewEngine(client, inference.Options{MaxConcurrency: 2})
	require.NoError(t, err)
	return NewWorkflow(store, analysis.NewExtractor(nil), eng, Config{Metrics: metrics})
}

func TestWorkflow_EndToEndUber(t *testing.T) {
	db := testutil.SetupTestDB(t, uberTransactions(t)...)
	client := newMockClient(map[string]string{"UBER": reply("Uber", 0.9)})
	metrics := &recordingMetrics{}
	wf := newTestWorkflow(t, db.Storage, client, metrics)

	var stages []model.Stage
	result, err := wf.Run(context.Background(), func(p model.Progress) {
		if len(stages) == 0 || stages[len(stages)-1] != p.Stage {
			stages = append(stages, p.Stage)
		}
	})
	require.NoError(t, err)

	assert.Equal(t, string(model.StageComplete), result.State)
	assert.Equal(t, 1, result.TotalCodes)
	assert.Equal(t, 1, result.DiscoveriesCount)
	require.Len(t, result.DiscoveryIDs, 1)
	assert.Equal(t, []model.Stage{model.StageAnalyzing, model.StageInferring, model.StageSaving, model.StageComplete}, stages)
	assert.Equal(t, model.StageComplete, wf.Stage())

	d := db.MustDiscoveryByCode("UBER")
	assert.Equal(t, result.DiscoveryIDs[0], d.ID)
	assert.Equal(t, "Uber", d.FinalInference)
	assert.Equal(t, model.StatusPending, d.Status)
	assert.Equal(t, 3, d.ContextSnapshot.OccurrenceCount)
	assert.InDelta(t, -67.0, d.ContextSnapshot.TotalAmount, 0.001)
	assert.InDelta(t, 67.0*3/0.9, d.ImpactScore, 0.001)

	assert.Equal(t, []model.Stage{model.StageComplete}, metrics.stages)
	assert.Equal(t, []int{1}, metrics.created)
}

func TestWorkflow_NoTransactions(t *testing.T) {
	db := testutil.SetupTestDB(t)
	client := newMockClient(nil)
	wf := newTestWorkflow(t, db.Storage, client, nil)

	result, err := wf.Run(context.Background(), nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, common.ErrNoTransactions)

	var userErr *common.UserError
	assert.ErrorAs(t, err, &userErr)
	assert.Equal(t, string(model.StageError), result.State)
	assert.NotEmpty(t, result.Message)
	assert.Equal(t, model.StageError, wf.Stage())
	assert.Zero(t, client.Calls())
}

func TestWorkflow_SecondRunIsIdempotent(t *testing.T) {
	db := testutil.SetupTestDB(t, uberTransactions(t)...)
	client := newMockClient(map[string]string{"UBER": reply("Uber", 0.9)})
	wf := newTestWorkflow(t, db.Storage, client, nil)
	ctx := context.Background()

	first, err := wf.Run(ctx, nil)
	require.NoError(t, err)
	require.Equal(t, 1, first.DiscoveriesCount)

	_, err = NewValidator(db.Storage, Config{}).Confirm(ctx, first.DiscoveryIDs[0], "")
	require.NoError(t, err)
	calls := client.Calls()

	second, err := wf.Run(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, string(model.StageComplete), second.State)
	assert.Zero(t, second.DiscoveriesCount)
	assert.Empty(t, second.DiscoveryIDs)
	assert.Equal(t, calls, client.Calls(), "confirmed codes must not be re-inferred")
}

func TestWorkflow_LowConfidenceIsReinferredButNotDuplicated(t *testing.T) {
	db := testutil.SetupTestDB(t, uberTransactions(t)...)
	client := newMockClient(map[string]string{"UBER": reply("Maybe Uber", 0.4)})
	wf := newTestWorkflow(t, db.Storage, client, nil)
	ctx := context.Background()

	_, err := wf.Run(ctx, nil)
	require.NoError(t, err)
	calls := client.Calls()

	client.answers["UBER"] = reply("Uber", 0.95)
	second, err := wf.Run(ctx, nil)
	require.NoError(t, err)
	assert.Greater(t, client.Calls(), calls)
	assert.Zero(t, second.DiscoveriesCount)
	assert.Equal(t, "Maybe Uber", db.MustDiscoveryByCode("UBER").FinalInference)
}

func TestWorkflow_FailedInferenceIsDropped(t *testing.T) {
	txns := append(uberTransactions(t), testutil.NewTransactions(t).
		Add("NETFLIX", -39.9, testutil.BaseDate.AddDate(0, 0, 1)).
		Build()...)
	// IDs from separate builders collide; give the extra line its own.
	txns[len(txns)-1].ID = "netflix-1"
	db := testutil.SetupTestDB(t, txns...)

	client := newMockClient(map[string]string{
		"UBER":    reply("Uber", 0.9),
		"NETFLIX": reply("Netflix", 0.9),
	})
	client.failing["NETFLIX"] = true
	wf := newTestWorkflow(t, db.Storage, client, nil)

	result, err := wf.Run(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, 2, result.TotalCodes)
	assert.Equal(t, 1, result.DiscoveriesCount)

	_, err = db.Storage.GetDiscoveryByCode(context.Background(), "NETFLIX")
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestWorkflow_PersistenceErrorKeepsSavedDiscoveries(t *testing.T) {
	txns := append(uberTransactions(t), testutil.NewTransactions(t).
		Add("NETFLIX", -39.9, testutil.BaseDate.AddDate(0, 0, 1)).
		Build()...)
	txns[len(txns)-1].ID = "netflix-1"
	db := testutil.SetupTestDB(t, txns...)

	client := newMockClient(map[string]string{
		"UBER":    reply("Uber", 0.9),
		"NETFLIX": reply("Netflix", 0.9),
	})
	metrics := &recordingMetrics{}
	store := &failingStorage{Storage: db.Storage, allowed: 1}
	wf := newTestWorkflow(t, store, client, metrics)

	result, err := wf.Run(context.Background(), nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")
	assert.Equal(t, string(model.StageError), result.State)
	assert.Equal(t, 1, result.DiscoveriesCount)
	assert.Equal(t, []model.Stage{model.StageError}, metrics.stages)

	// Contexts are inferred in code order, so NETFLIX was saved before UBER failed.
	assert.Equal(t, "Netflix", db.MustDiscoveryByCode("NETFLIX").FinalInference)
	_, err = db.Storage.GetDiscoveryByCode(context.Background(), "UBER")
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestWorkflow_ReportsInferenceProgress(t *testing.T) {
	db := testutil.SetupTestDB(t, uberTransactions(t)...)
	client := newMockClient(map[string]string{"UBER": reply("Uber", 0.9)})
	wf := newTestWorkflow(t, db.Storage, client, nil)

	var inferring []model.Progress
	_, err := wf.Run(context.Background(), func(p model.Progress) {
		if p.Stage == model.StageInferring && p.Code != "" {
			inferring = append(inferring, p)
		}
	})
	require.NoError(t, err)
	require.Len(t, inferring, 1)
	assert.Equal(t, "UBER", inferring[0].Code)
	assert.Equal(t, 1, inferring[0].Current)
	assert.Equal(t, 1, inferring[0].Total)
}

func TestWorkflow_CorrectionFeedsNextInference(t *testing.T) {
	db := testutil.SetupTestDB(t, uberTransactions(t)...)
	client := newMockClient(map[string]string{"UBER": reply("Uber Eats", 0.6)})
	wf := newTestWorkflow(t, db.Storage, client, nil)
	ctx := context.Background()

	result, err := wf.Run(ctx, nil)
	require.NoError(t, err)

	_, err = NewValidator(db.Storage, Config{}).Correct(ctx, result.DiscoveryIDs[0], "Uber Rides", "rides, not food")
	require.NoError(t, err)

	history := db.MustLearning()
	require.Len(t, history, 1)

	eng, err := inference.NewEngine(client, inference.Options{})
	require.NoError(t, err)
	snapshot := db.MustDiscoveryByCode("UBER").ContextSnapshot
	inf, err := eng.Infer(ctx, &snapshot, history)
	require.NoError(t, err)
	assert.Equal(t, "Uber Rides", inf.Name)
	assert.GreaterOrEqual(t, inf.Confidence, 0.95)
}

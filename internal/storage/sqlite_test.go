package storage

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mp3fbf/finance-analyzer/internal/common"
	"github.com/mp3fbf/finance-analyzer/internal/model"
	"github.com/mp3fbf/finance-analyzer/internal/service"
)

func createTestStorage(t *testing.T) *SQLiteStorage {
	t.Helper()
	store, err := NewSQLiteStorage(":memory:")
	require.NoError(t, err)
	require.NoError(t, store.Migrate(context.Background()))
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func createTestTransactions(count int) []model.Transaction {
	base := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	txns := make([]model.Transaction, count)
	for i := range txns {
		txns[i] = model.Transaction{
			ID:             fmt.Sprintf("txn-%d", i),
			Date:           base.AddDate(0, 0, i),
			Description:    fmt.Sprintf("UBER *TRIP %d", i),
			RawDescription: fmt.Sprintf("UBER *TRIP %d SAO PAULO", i),
			Amount:         -float64(10 + i),
			Type:           model.TransactionDebit,
			AccountID:      "card",
		}
	}
	return txns
}

func testDiscovery(code string, impact float64) *model.MerchantDiscovery {
	return &model.MerchantDiscovery{
		RawCode:        code,
		FinalInference: "Uber",
		Confidence:     0.9,
		MerchantType:   model.MerchantService,
		ImpactScore:    impact,
		Reasoning:      "ride hailing",
		ContextSnapshot: model.TransactionContext{
			Code:            code,
			OccurrenceCount: 3,
			TotalAmount:     -45,
			RawVariations:   []string{"UBER *TRIP"},
		},
	}
}

func testLearning(code string) *model.DiscoveryLearning {
	return &model.DiscoveryLearning{
		PatternSignature: "asterisk_3_weekly",
		OriginalCode:     code,
		AIInference:      "Uber",
		AIConfidence:     0.9,
		WasCorrect:       true,
		ContextFeatures:  model.ContextFeatures{OccurrenceCount: 3, HasAsterisk: true},
	}
}

func TestNewSQLiteStorage_CreatesDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "finance.db")
	store, err := NewSQLiteStorage(path)
	require.NoError(t, err)
	defer func() { _ = store.Close() }()

	require.NoError(t, store.Migrate(context.Background()))
	assert.Equal(t, path, store.Path())
}

func TestNewSQLiteStorage_EmptyPath(t *testing.T) {
	_, err := NewSQLiteStorage("  ")
	assert.ErrorIs(t, err, ErrEmptyString)
}

func TestMigrate_Idempotent(t *testing.T) {
	store := createTestStorage(t)
	ctx := context.Background()

	require.NoError(t, store.Migrate(ctx))
	version, err := store.SchemaVersion(ctx)
	require.NoError(t, err)
	assert.Equal(t, ExpectedSchemaVersion, version)
}

func TestSaveTransactions(t *testing.T) {
	store := createTestStorage(t)
	ctx := context.Background()
	txns := createTestTransactions(3)

	inserted, err := store.SaveTransactions(ctx, txns)
	require.NoError(t, err)
	assert.Equal(t, 3, inserted)

	// Same content again is ignored by hash.
	inserted, err = store.SaveTransactions(ctx, txns)
	require.NoError(t, err)
	assert.Zero(t, inserted)

	all, err := store.GetAllTransactions(ctx)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "txn-0", all[0].ID)
	assert.Equal(t, "UBER *TRIP 0 SAO PAULO", all[0].RawDescription)
	assert.InDelta(t, -10.0, all[0].Amount, 0.001)
	assert.Equal(t, model.TransactionDebit, all[0].Type)
	assert.NotEmpty(t, all[0].Hash)

	count, err := store.GetTransactionCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, count)
}

func TestSaveTransactions_Validation(t *testing.T) {
	store := createTestStorage(t)
	ctx := context.Background()

	tests := []struct {
		wantErr error
		name    string
		txns    []model.Transaction
	}{
		{name: "nil slice", txns: nil, wantErr: ErrNilParameter},
		{name: "empty slice", txns: []model.Transaction{}, wantErr: ErrEmptySlice},
		{
			name:    "missing description",
			txns:    []model.Transaction{{ID: "a", Date: time.Now()}},
			wantErr: ErrInvalidTransaction,
		},
		{
			name:    "unknown type",
			txns:    []model.Transaction{{ID: "a", Date: time.Now(), Description: "X", Type: "wire"}},
			wantErr: ErrInvalidTransaction,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := store.SaveTransactions(ctx, tt.txns)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestAddMerchantDiscovery_RoundTrip(t *testing.T) {
	store := createTestStorage(t)
	ctx := context.Background()

	d := testDiscovery("UBER TRIP", 12.5)
	d.UsedWebSearch = true
	require.NoError(t, store.AddMerchantDiscovery(ctx, d))
	require.NotEmpty(t, d.ID)
	assert.Equal(t, model.StatusPending, d.Status)

	got, err := store.GetDiscoveryByCode(ctx, "UBER TRIP")
	require.NoError(t, err)
	assert.Equal(t, d.ID, got.ID)
	assert.Equal(t, "Uber", got.FinalInference)
	assert.Equal(t, model.MerchantService, got.MerchantType)
	assert.True(t, got.UsedWebSearch)
	assert.InDelta(t, 12.5, got.ImpactScore, 0.001)
	assert.Equal(t, 3, got.ContextSnapshot.OccurrenceCount)
	assert.Equal(t, []string{"UBER *TRIP"}, got.ContextSnapshot.RawVariations)
	assert.Nil(t, got.ValidatedAt)
	assert.Nil(t, got.UserValidatedName)

	byID, err := store.GetDiscoveryByID(ctx, d.ID)
	require.NoError(t, err)
	assert.Equal(t, "UBER TRIP", byID.RawCode)
}

func TestAddMerchantDiscovery_DuplicateCode(t *testing.T) {
	store := createTestStorage(t)
	ctx := context.Background()

	require.NoError(t, store.AddMerchantDiscovery(ctx, testDiscovery("IFOOD", 1)))
	err := store.AddMerchantDiscovery(ctx, testDiscovery("IFOOD", 2))
	assert.ErrorIs(t, err, common.ErrDuplicateEntry)
}

func TestAddMerchantDiscovery_Invalid(t *testing.T) {
	store := createTestStorage(t)
	ctx := context.Background()

	d := testDiscovery("X", 1)
	d.Confidence = 1.5
	assert.ErrorIs(t, store.AddMerchantDiscovery(ctx, d), ErrInvalidDiscovery)

	d = testDiscovery("", 1)
	assert.ErrorIs(t, store.AddMerchantDiscovery(ctx, d), ErrInvalidDiscovery)
}

func TestGetDiscovery_NotFound(t *testing.T) {
	store := createTestStorage(t)
	ctx := context.Background()

	_, err := store.GetDiscoveryByCode(ctx, "MISSING")
	assert.ErrorIs(t, err, common.ErrNotFound)
	_, err = store.GetDiscoveryByID(ctx, "missing-id")
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestGetDiscoveries_OrderAndFilter(t *testing.T) {
	store := createTestStorage(t)
	ctx := context.Background()

	low := testDiscovery("LOW", 1)
	high := testDiscovery("HIGH", 50)
	mid := testDiscovery("MID", 10)
	for _, d := range []*model.MerchantDiscovery{low, high, mid} {
		require.NoError(t, store.AddMerchantDiscovery(ctx, d))
	}
	require.NoError(t, store.UpdateDiscoveryStatus(ctx, mid.ID, model.StatusUpdate{Status: model.StatusConfirmed}))

	all, err := store.GetDiscoveries(ctx, service.DiscoveryFilter{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, []string{"HIGH", "MID", "LOW"}, codes(all))

	pending, err := store.GetDiscoveries(ctx, service.DiscoveryFilter{Status: model.StatusPending})
	require.NoError(t, err)
	assert.Equal(t, []string{"HIGH", "LOW"}, codes(pending))

	limited, err := store.GetDiscoveries(ctx, service.DiscoveryFilter{Limit: 1})
	require.NoError(t, err)
	assert.Equal(t, []string{"HIGH"}, codes(limited))

	_, err = store.GetDiscoveries(ctx, service.DiscoveryFilter{Status: "archived"})
	assert.ErrorIs(t, err, ErrInvalidStatus)

	validated, err := store.GetValidatedDiscoveries(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"MID"}, codes(validated))
}

func TestRecordValidation(t *testing.T) {
	store := createTestStorage(t)
	ctx := context.Background()

	d := testDiscovery("99APP", 5)
	require.NoError(t, store.AddMerchantDiscovery(ctx, d))

	name := "99 Taxis"
	notes := "it is the taxi app"
	errType := model.ErrorPartiallyCorrect
	l := testLearning("99APP")
	l.WasCorrect = false
	l.UserCorrection = &name
	l.ErrorType = &errType

	err := store.RecordValidation(ctx, d.ID, model.StatusUpdate{
		Status:        model.StatusCorrected,
		ValidatedName: &name,
		Notes:         &notes,
	}, l)
	require.NoError(t, err)
	assert.NotZero(t, l.ID)

	got, err := store.GetDiscoveryByID(ctx, d.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusCorrected, got.Status)
	require.NotNil(t, got.UserValidatedName)
	assert.Equal(t, "99 Taxis", *got.UserValidatedName)
	require.NotNil(t, got.UserFeedbackNotes)
	assert.Equal(t, notes, *got.UserFeedbackNotes)
	assert.NotNil(t, got.ValidatedAt)
	assert.Equal(t, "99 Taxis", got.ResolvedName())

	history, err := store.GetAllLearning(ctx)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.False(t, history[0].WasCorrect)
	require.NotNil(t, history[0].UserCorrection)
	assert.Equal(t, "99 Taxis", *history[0].UserCorrection)
	require.NotNil(t, history[0].ErrorType)
	assert.Equal(t, model.ErrorPartiallyCorrect, *history[0].ErrorType)
	assert.True(t, history[0].ContextFeatures.HasAsterisk)
}

func TestRecordValidation_OnlyOnce(t *testing.T) {
	store := createTestStorage(t)
	ctx := context.Background()

	d := testDiscovery("NETFLIX", 5)
	require.NoError(t, store.AddMerchantDiscovery(ctx, d))
	require.NoError(t, store.RecordValidation(ctx, d.ID, model.StatusUpdate{Status: model.StatusConfirmed}, testLearning("NETFLIX")))

	err := store.RecordValidation(ctx, d.ID, model.StatusUpdate{Status: model.StatusRejected}, testLearning("NETFLIX"))
	assert.ErrorIs(t, err, common.ErrAlreadyValidated)

	// The failed second verdict must not leave a learning record behind.
	history, err := store.GetAllLearning(ctx)
	require.NoError(t, err)
	assert.Len(t, history, 1)

	got, err := store.GetDiscoveryByID(ctx, d.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusConfirmed, got.Status)
}

func TestRecordValidation_Errors(t *testing.T) {
	store := createTestStorage(t)
	ctx := context.Background()

	d := testDiscovery("SPOTIFY", 5)
	require.NoError(t, store.AddMerchantDiscovery(ctx, d))

	err := store.RecordValidation(ctx, "nope", model.StatusUpdate{Status: model.StatusConfirmed}, nil)
	assert.ErrorIs(t, err, common.ErrNotFound)

	err = store.RecordValidation(ctx, d.ID, model.StatusUpdate{Status: model.StatusPending}, nil)
	assert.ErrorIs(t, err, ErrInvalidStatus)

	err = store.RecordValidation(ctx, d.ID, model.StatusUpdate{Status: model.StatusCorrected}, nil)
	assert.ErrorIs(t, err, ErrInvalidStatus)

	bad := testLearning("SPOTIFY")
	correction := "Spotify"
	bad.UserCorrection = &correction
	err = store.RecordValidation(ctx, d.ID, model.StatusUpdate{Status: model.StatusConfirmed}, bad)
	assert.ErrorIs(t, err, ErrInvalidLearning)
}

func TestAddDiscoveryLearning(t *testing.T) {
	store := createTestStorage(t)
	ctx := context.Background()

	first := testLearning("A")
	first.CreatedAt = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	second := testLearning("B")
	second.CreatedAt = time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)

	require.NoError(t, store.AddDiscoveryLearning(ctx, second))
	require.NoError(t, store.AddDiscoveryLearning(ctx, first))

	history, err := store.GetAllLearning(ctx)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, "A", history[0].OriginalCode)
	assert.Equal(t, "B", history[1].OriginalCode)
	assert.Nil(t, history[0].UserCorrection)
	assert.Nil(t, history[0].ErrorType)

	assert.ErrorIs(t, store.AddDiscoveryLearning(ctx, &model.DiscoveryLearning{}), ErrInvalidLearning)
}

func codes(ds []model.MerchantDiscovery) []string {
	out := make([]string, len(ds))
	for i, d := range ds {
		out[i] = d.RawCode
	}
	return out
}

package runstore

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"catalog-feed-miner/db"
	"catalog-feed-miner/internal/pipeline"
)

func newLedger(t *testing.T) *RunStore {
	t.Helper()

	ledger, err := db.Open(db.DriverSQLite, filepath.Join(t.TempDir(), "ledger.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = ledger.Close() })

	require.NoError(t, db.Migrate(context.Background(), ledger.DB, db.DriverSQLite, "up"))
	return New(ledger, zap.NewNop().Sugar())
}

func sampleReport() *pipeline.Report {
	started := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	return &pipeline.Report{
		RunID:      "run-1",
		Source:     pipeline.SourceListing,
		Status:     pipeline.StatusPartial,
		StartedAt:  started,
		FinishedAt: started.Add(42 * time.Second),
		URLs:       []string{"https://joyandco.com/product/red-vase", "https://joyandco.com/product/gone"},
		Items: []pipeline.Item{
			{
				URL:           "https://joyandco.com/product/red-vase",
				Fetched:       true,
				Extracted:     true,
				Title:         "Red Vase",
				PriceFallback: true,
				ImageStatus:   pipeline.ImageOK,
			},
			{
				URL: "https://joyandco.com/product/gone",
				Err: "fetch https://joyandco.com/product/gone: status 404",
			},
		},
		Records: 1,
	}
}

func TestRunStore_SaveAndGet(t *testing.T) {
	store := newLedger(t)
	ctx := context.Background()

	require.NoError(t, store.SaveRun(ctx, sampleReport()))

	got, err := store.GetRun(ctx, "run-1")
	require.NoError(t, err)
	require.Equal(t, "partial", got.Status)
	require.Equal(t, "listing", got.Source)
	require.Equal(t, 2, got.URLCount)
	require.Equal(t, 1, got.RecordCount)
	require.Equal(t, 1, got.FailureCount)
	require.Nil(t, got.Error)
	require.Equal(t, int64(42000), got.FinishedAtMs-got.StartedAtMs)

	require.Len(t, got.Items, 2)
	require.Equal(t, "Red Vase", got.Items[0].Title)
	require.True(t, got.Items[0].Fetched)
	require.True(t, got.Items[0].Extracted)
	require.True(t, got.Items[0].PriceFallback)
	require.Equal(t, pipeline.ImageOK, got.Items[0].ImageStatus)
	require.False(t, got.Items[1].Fetched)
	require.Contains(t, got.Items[1].Err, "404")
}

func TestRunStore_SaveReplacesItems(t *testing.T) {
	store := newLedger(t)
	ctx := context.Background()

	rep := sampleReport()
	require.NoError(t, store.SaveRun(ctx, rep))

	rep.Items = rep.Items[:1]
	rep.Status = pipeline.StatusSucceeded
	rep.Err = "manifest unreadable"
	require.NoError(t, store.SaveRun(ctx, rep))

	got, err := store.GetRun(ctx, "run-1")
	require.NoError(t, err)
	require.Equal(t, "succeeded", got.Status)
	require.Len(t, got.Items, 1)
	require.NotNil(t, got.Error)
	require.Equal(t, "manifest unreadable", *got.Error)
}

func TestRunStore_NotFound(t *testing.T) {
	store := newLedger(t)

	_, err := store.GetRun(context.Background(), "missing")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestRunStore_RejectsReportWithoutID(t *testing.T) {
	store := newLedger(t)

	rep := sampleReport()
	rep.RunID = ""
	require.Error(t, store.SaveRun(context.Background(), rep))
}

func TestRunStore_Disabled(t *testing.T) {
	store := New(db.Disabled(), nil)

	err := store.SaveRun(context.Background(), sampleReport())
	require.ErrorIs(t, err, db.ErrSQLiteDisabled)

	_, err = store.GetRun(context.Background(), "run-1")
	require.ErrorIs(t, err, db.ErrSQLiteDisabled)
}

package syncer

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/noFAYZ/mappr-backend-new-sub000/pkg/app/errors"
	"github.com/noFAYZ/mappr-backend-new-sub000/pkg/portfolio"
	"github.com/noFAYZ/mappr-backend-new-sub000/pkg/queue"
)

func TestSyncHandlersCoverAllSyncJobTypes(t *testing.T) {
	h := newHarness(t, testConfig())
	handlers := h.orch.SyncHandlers()

	assert.Contains(t, handlers, queue.JobSyncWallet)
	assert.Contains(t, handlers, queue.JobSyncWalletFull)
	assert.Contains(t, handlers, queue.JobSyncTransactions)
}

func TestSyncHandlerThreadsPayload(t *testing.T) {
	h := newHarness(t, testConfig())

	env, err := queue.NewEnvelope(queue.JobSyncWallet, queue.SyncPayload{
		UserID:    "user-1",
		WalletID:  "wal-1",
		DataTypes: []string{DataTransactions},
	})
	require.NoError(t, err)

	handler := h.orch.SyncHandlers()[queue.JobSyncWallet]
	require.NoError(t, handler(context.Background(), env))

	assert.Equal(t, []string{DataPortfolio, DataTransactions}, h.rec.Stages())

	job, err := h.orch.JobStatus(context.Background(), env.JobID)
	require.NoError(t, err)
	assert.Equal(t, "user-1", job.UserID)
	assert.Equal(t, "wal-1", job.WalletID)
	assert.Equal(t, queue.JobSyncWallet, job.Type)
}

func TestSyncHandlerRejectsInvalidPayload(t *testing.T) {
	h := newHarness(t, testConfig())

	env, err := queue.NewEnvelope(queue.JobSyncWallet, queue.SyncPayload{UserID: "user-1"})
	require.NoError(t, err)

	handler := h.orch.SyncHandlers()[queue.JobSyncWallet]
	err = handler(context.Background(), env)
	require.Error(t, err)
	assert.True(t, apperrors.Is(err, apperrors.CategoryDataError))
	assert.Empty(t, h.rec.Stages())
}

func TestAnalyticsHandlers(t *testing.T) {
	h := newHarness(t, testConfig())

	var summed, updated bool
	h.store.SumPositionValuesFunc = func(context.Context, string) (decimal.Decimal, error) {
		summed = true
		return decimal.Zero, nil
	}
	h.store.UpdateWalletBalanceFunc = func(context.Context, string, decimal.Decimal) error {
		updated = true
		return nil
	}
	var snapshotted bool
	h.store.UpsertSnapshotFunc = func(_ context.Context, snap *portfolio.Snapshot) (*portfolio.Snapshot, error) {
		snapshotted = true
		return snap, nil
	}

	handlers := h.orch.AnalyticsHandlers()

	env, err := queue.NewEnvelope(queue.JobCalculatePortfolio, queue.AnalyticsPayload{UserID: "user-1", WalletID: "wal-1"})
	require.NoError(t, err)
	require.NoError(t, handlers[queue.JobCalculatePortfolio](context.Background(), env))
	assert.True(t, summed)
	assert.True(t, updated)

	env, err = queue.NewEnvelope(queue.JobCreateSnapshot, queue.AnalyticsPayload{UserID: "user-1", WalletID: "wal-1"})
	require.NoError(t, err)
	require.NoError(t, handlers[queue.JobCreateSnapshot](context.Background(), env))
	assert.True(t, snapshotted)
}

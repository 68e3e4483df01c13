package syncer

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/noFAYZ/mappr-backend-new-sub000/pkg/app/errors"
	"github.com/noFAYZ/mappr-backend-new-sub000/pkg/portfolio"
	"github.com/noFAYZ/mappr-backend-new-sub000/pkg/walletdb"
)

func TestCalculatePortfolio(t *testing.T) {
	h := newHarness(t, testConfig())

	h.store.SumPositionValuesFunc = func(context.Context, string) (decimal.Decimal, error) {
		return decimal.RequireFromString("123.45"), nil
	}
	var updated decimal.Decimal
	h.store.UpdateWalletBalanceFunc = func(_ context.Context, _ string, balance decimal.Decimal) error {
		updated = balance
		return nil
	}

	require.NoError(t, h.orch.CalculatePortfolio(context.Background(), "wal-1"))
	assert.True(t, updated.Equal(decimal.RequireFromString("123.45")))
}

func TestCalculatePortfolioSumFailure(t *testing.T) {
	h := newHarness(t, testConfig())
	h.store.SumPositionValuesFunc = func(context.Context, string) (decimal.Decimal, error) {
		return decimal.Zero, errors.New("db down")
	}

	err := h.orch.CalculatePortfolio(context.Background(), "wal-1")
	require.Error(t, err)
	assert.True(t, apperrors.Is(err, apperrors.CategoryPersistenceFailure))
}

func TestCreateSnapshotSumsByType(t *testing.T) {
	h := newHarness(t, testConfig())

	h.store.ListPositionsFunc = func(context.Context, string) ([]*portfolio.Position, error) {
		return []*portfolio.Position{
			{PositionType: "wallet", ValueUSD: decimal.NewFromInt(100), IsActive: true},
			{PositionType: "wallet", ValueUSD: decimal.NewFromInt(50), IsActive: true},
			{PositionType: "staked", ValueUSD: decimal.NewFromInt(25), IsActive: true},
			{PositionType: "wallet", ValueUSD: decimal.NewFromInt(999), IsActive: false},
		}, nil
	}
	var saved *portfolio.Snapshot
	h.store.UpsertSnapshotFunc = func(_ context.Context, snap *portfolio.Snapshot) (*portfolio.Snapshot, error) {
		saved = snap
		return snap, nil
	}

	require.NoError(t, h.orch.CreateSnapshot(context.Background(), "wal-1"))

	require.NotNil(t, saved)
	assert.True(t, saved.TotalValue.Equal(decimal.NewFromInt(175)), "inactive rows are excluded")
	assert.True(t, saved.WalletValue.Equal(decimal.NewFromInt(150)))
	assert.True(t, saved.StakedValue.Equal(decimal.NewFromInt(25)))
	assert.True(t, saved.DepositedValue.IsZero())
	assert.Equal(t, "wal-1", saved.WalletID)
}

func TestCreateSnapshotCarriesProviderFields(t *testing.T) {
	h := newHarness(t, testConfig())

	chainDist := map[string]decimal.Decimal{"ethereum": decimal.NewFromInt(175)}
	h.store.GetSnapshotFunc = func(context.Context, string) (*portfolio.Snapshot, error) {
		return &portfolio.Snapshot{
			ChainDistribution: chainDist,
			Change24hPercent:  decimal.RequireFromString("2.5"),
		}, nil
	}
	var saved *portfolio.Snapshot
	h.store.UpsertSnapshotFunc = func(_ context.Context, snap *portfolio.Snapshot) (*portfolio.Snapshot, error) {
		saved = snap
		return snap, nil
	}

	require.NoError(t, h.orch.CreateSnapshot(context.Background(), "wal-1"))

	require.NotNil(t, saved)
	assert.Equal(t, chainDist, saved.ChainDistribution)
	assert.True(t, saved.Change24hPercent.Equal(decimal.RequireFromString("2.5")))
}

func TestCreateSnapshotWithoutPrevious(t *testing.T) {
	h := newHarness(t, testConfig())

	h.store.GetSnapshotFunc = func(context.Context, string) (*portfolio.Snapshot, error) {
		return nil, walletdb.ErrSnapshotNotFound
	}
	var saved *portfolio.Snapshot
	h.store.UpsertSnapshotFunc = func(_ context.Context, snap *portfolio.Snapshot) (*portfolio.Snapshot, error) {
		saved = snap
		return snap, nil
	}

	require.NoError(t, h.orch.CreateSnapshot(context.Background(), "wal-1"))

	require.NotNil(t, saved)
	assert.Nil(t, saved.ChainDistribution)
	assert.True(t, saved.Change24hPercent.IsZero())
}

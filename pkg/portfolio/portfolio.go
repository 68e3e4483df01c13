// Package portfolio defines the normalized holdings records produced by
// reconciliation: positions, transactions, NFTs and the per-wallet snapshot.
package portfolio

import (
	"time"

	"github.com/shopspring/decimal"
)

// Position is a wallet's held balance of one asset. Unique per
// (wallet, asset); balance and value reflect the last successful sync.
type Position struct {
	ID               string
	WalletID         string
	AssetID          string
	Balance          decimal.Decimal
	BalanceFormatted decimal.Decimal
	ValueUSD         decimal.Decimal
	Change24hPercent decimal.Decimal
	PositionType     string
	Protocol         string
	IsActive         bool
	LastSyncedAt     time.Time
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// Snapshot is the denormalized per-wallet rollup overwritten on every
// successful sync. Single row per wallet.
type Snapshot struct {
	ID                string
	WalletID          string
	TotalValue        decimal.Decimal
	WalletValue       decimal.Decimal
	DepositedValue    decimal.Decimal
	BorrowedValue     decimal.Decimal
	LockedValue       decimal.Decimal
	StakedValue       decimal.Decimal
	Change24hPercent  decimal.Decimal
	ChainDistribution map[string]decimal.Decimal
	TypeDistribution  map[string]decimal.Decimal
	SnapshotAt        time.Time
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

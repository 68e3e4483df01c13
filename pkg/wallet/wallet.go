// Package wallet defines the wallet domain model shared by the stores,
// the sync orchestrator and the exposed service.
package wallet

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/noFAYZ/mappr-backend-new-sub000/pkg/asset"
)

// SyncStatus represents the wallet sync lifecycle state persisted on the row.
type SyncStatus string

const (
	SyncIdle      SyncStatus = "IDLE"
	SyncSyncing   SyncStatus = "SYNCING"
	SyncCompleted SyncStatus = "COMPLETED"
	SyncFailed    SyncStatus = "FAILED"
)

// Wallet is a user-registered address on one network. It is created on
// registration and mutated only by sync cycles, never by read paths.
type Wallet struct {
	ID            string
	UserID        string
	Address       string
	Network       asset.Network
	Name          string
	SyncStatus    SyncStatus
	LastSyncedAt  *time.Time
	LastSyncError string
	TotalBalance  decimal.Decimal
	AssetCount    int
	NFTCount      int
	PositionCount int
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

package walletdb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/uptrace/bun"

	"github.com/noFAYZ/mappr-backend-new-sub000/pkg/asset"
	"github.com/noFAYZ/mappr-backend-new-sub000/pkg/wallet"
)

// WalletDao is a data access object that maps directly to the 'wallets' table in PostgreSQL.
type WalletDao struct {
	bun.BaseModel `bun:"table:wallets,alias:w"`
	ID            string          `bun:"id,pk,type:uuid"`
	UserID        string          `bun:"user_id,notnull,type:uuid"`
	Address       string          `bun:"address,notnull,type:varchar(64)"`
	Network       string          `bun:"network,notnull,type:varchar(32)"`
	Name          string          `bun:"name,type:varchar(255)"`
	SyncStatus    string          `bun:"sync_status,notnull,type:varchar(16)"`
	LastSyncedAt  *time.Time      `bun:"last_synced_at"`
	LastSyncError *string         `bun:"last_sync_error,type:text"`
	TotalBalance  decimal.Decimal `bun:"total_balance_usd,type:numeric(38,18)"`
	AssetCount    int             `bun:"asset_count,notnull,default:0"`
	NFTCount      int             `bun:"nft_count,notnull,default:0"`
	PositionCount int             `bun:"position_count,notnull,default:0"`
	CreatedAt     time.Time       `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	UpdatedAt     time.Time       `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
}

// toWalletDao converts a wallet.Wallet to WalletDao.
func toWalletDao(w *wallet.Wallet) *WalletDao {
	dao := &WalletDao{
		ID:            w.ID,
		UserID:        w.UserID,
		Address:       w.Address,
		Network:       string(w.Network),
		Name:          w.Name,
		SyncStatus:    string(w.SyncStatus),
		TotalBalance:  w.TotalBalance,
		AssetCount:    w.AssetCount,
		NFTCount:      w.NFTCount,
		PositionCount: w.PositionCount,
	}
	if w.LastSyncedAt != nil {
		dao.LastSyncedAt = w.LastSyncedAt
	}
	if w.LastSyncError != "" {
		dao.LastSyncError = &w.LastSyncError
	}
	return dao
}

// toWallet converts a WalletDao to wallet.Wallet.
func toWallet(dao *WalletDao) *wallet.Wallet {
	w := &wallet.Wallet{
		ID:            dao.ID,
		UserID:        dao.UserID,
		Address:       dao.Address,
		Network:       asset.Network(dao.Network),
		Name:          dao.Name,
		SyncStatus:    wallet.SyncStatus(dao.SyncStatus),
		TotalBalance:  dao.TotalBalance,
		AssetCount:    dao.AssetCount,
		NFTCount:      dao.NFTCount,
		PositionCount: dao.PositionCount,
		CreatedAt:     dao.CreatedAt,
		UpdatedAt:     dao.UpdatedAt,
	}
	if dao.LastSyncedAt != nil {
		w.LastSyncedAt = dao.LastSyncedAt
	}
	if dao.LastSyncError != nil {
		w.LastSyncError = *dao.LastSyncError
	}
	return w
}

// CreateWallet inserts a new wallet row. The id is generated when empty.
func (s *Store) CreateWallet(ctx context.Context, w *wallet.Wallet) (*wallet.Wallet, error) {
	if w.ID == "" {
		w.ID = uuid.NewString()
	}
	if w.SyncStatus == "" {
		w.SyncStatus = wallet.SyncIdle
	}
	dao := toWalletDao(w)

	_, err := s.db.NewInsert().
		Model(dao).
		Returning("*").
		Exec(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create wallet: %w", err)
	}

	return toWallet(dao), nil
}

// GetWallet fetches a wallet by id.
func (s *Store) GetWallet(ctx context.Context, id string) (*wallet.Wallet, error) {
	dao := new(WalletDao)
	err := s.db.NewSelect().
		Model(dao).
		Where("id = ?", id).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrWalletNotFound
		}
		return nil, fmt.Errorf("failed to get wallet: %w", err)
	}
	return toWallet(dao), nil
}

// GetWalletForUser fetches a wallet by id, enforcing ownership.
func (s *Store) GetWalletForUser(ctx context.Context, userID, id string) (*wallet.Wallet, error) {
	dao := new(WalletDao)
	err := s.db.NewSelect().
		Model(dao).
		Where("id = ?", id).
		Where("user_id = ?", userID).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrWalletNotFound
		}
		return nil, fmt.Errorf("failed to get wallet: %w", err)
	}
	return toWallet(dao), nil
}

// GetWalletByAddress fetches the oldest wallet registered by the user for
// the given address, across networks.
func (s *Store) GetWalletByAddress(ctx context.Context, userID, address string) (*wallet.Wallet, error) {
	dao := new(WalletDao)
	err := s.db.NewSelect().
		Model(dao).
		Where("user_id = ?", userID).
		Where("address = ?", address).
		Order("created_at ASC").
		Limit(1).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrWalletNotFound
		}
		return nil, fmt.Errorf("failed to get wallet by address: %w", err)
	}
	return toWallet(dao), nil
}

// WalletExists reports whether the user already registered the address on
// the network.
func (s *Store) WalletExists(ctx context.Context, userID, address string, network asset.Network) (bool, error) {
	exists, err := s.db.NewSelect().
		Model((*WalletDao)(nil)).
		Where("user_id = ?", userID).
		Where("address = ?", address).
		Where("network = ?", string(network)).
		Exists(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to check wallet exists: %w", err)
	}
	return exists, nil
}

// MarkWalletSyncing transitions the wallet into SYNCING.
func (s *Store) MarkWalletSyncing(ctx context.Context, id string) error {
	_, err := s.db.NewUpdate().
		Model((*WalletDao)(nil)).
		Set("sync_status = ?", string(wallet.SyncSyncing)).
		Set("updated_at = NOW()").
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to mark wallet syncing: %w", err)
	}
	return nil
}

// CompleteWalletSync transitions the wallet into COMPLETED in a single
// statement, recording totals and clearing any previous sync error.
func (s *Store) CompleteWalletSync(ctx context.Context, id string, balance decimal.Decimal, assetCount, positionCount, nftCount int) error {
	_, err := s.db.NewUpdate().
		Model((*WalletDao)(nil)).
		Set("sync_status = ?", string(wallet.SyncCompleted)).
		Set("total_balance_usd = ?", balance).
		Set("asset_count = ?", assetCount).
		Set("position_count = ?", positionCount).
		Set("nft_count = ?", nftCount).
		Set("last_synced_at = NOW()").
		Set("last_sync_error = NULL").
		Set("updated_at = NOW()").
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to complete wallet sync: %w", err)
	}
	return nil
}

// FailWalletSync transitions the wallet into FAILED with an error summary.
func (s *Store) FailWalletSync(ctx context.Context, id, errMsg string) error {
	_, err := s.db.NewUpdate().
		Model((*WalletDao)(nil)).
		Set("sync_status = ?", string(wallet.SyncFailed)).
		Set("last_sync_error = ?", errMsg).
		Set("updated_at = NOW()").
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to fail wallet sync: %w", err)
	}
	return nil
}

// UpdateWalletBalance updates only the aggregate USD balance.
func (s *Store) UpdateWalletBalance(ctx context.Context, id string, balance decimal.Decimal) error {
	_, err := s.db.NewUpdate().
		Model((*WalletDao)(nil)).
		Set("total_balance_usd = ?", balance).
		Set("updated_at = NOW()").
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to update wallet balance: %w", err)
	}
	return nil
}

// UpdateWalletNFTCount records the count of NFTs that survived filtering.
func (s *Store) UpdateWalletNFTCount(ctx context.Context, id string, count int) error {
	_, err := s.db.NewUpdate().
		Model((*WalletDao)(nil)).
		Set("nft_count = ?", count).
		Set("updated_at = NOW()").
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to update wallet nft count: %w", err)
	}
	return nil
}

// ResetStaleSyncing moves wallets stuck in SYNCING since before the cutoff
// into FAILED so crashed workers do not leave them unrecoverable.
func (s *Store) ResetStaleSyncing(ctx context.Context, before time.Time) (int64, error) {
	res, err := s.db.NewUpdate().
		Model((*WalletDao)(nil)).
		Set("sync_status = ?", string(wallet.SyncFailed)).
		Set("last_sync_error = ?", "sync timed out").
		Set("updated_at = NOW()").
		Where("sync_status = ?", string(wallet.SyncSyncing)).
		Where("updated_at < ?", before).
		Exec(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to reset stale syncing wallets: %w", err)
	}
	return res.RowsAffected()
}

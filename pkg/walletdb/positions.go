package walletdb

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/uptrace/bun"

	"github.com/noFAYZ/mappr-backend-new-sub000/pkg/portfolio"
)

// PositionDao is a data access object that maps directly to the 'positions' table in PostgreSQL.
type PositionDao struct {
	bun.BaseModel    `bun:"table:positions,alias:p"`
	ID               string          `bun:"id,pk,type:uuid"`
	WalletID         string          `bun:"wallet_id,notnull,type:uuid"`
	AssetID          string          `bun:"asset_id,notnull,type:uuid"`
	Balance          decimal.Decimal `bun:"balance,type:numeric(78,0)"`
	BalanceFormatted decimal.Decimal `bun:"balance_formatted,type:numeric(38,18)"`
	ValueUSD         decimal.Decimal `bun:"value_usd,type:numeric(38,18)"`
	Change24hPercent decimal.Decimal `bun:"change_24h_percent,type:numeric(12,4)"`
	PositionType     string          `bun:"position_type,notnull,type:varchar(32)"`
	Protocol         string          `bun:"protocol,type:varchar(64)"`
	IsActive         bool            `bun:"is_active,notnull,default:true"`
	LastSyncedAt     time.Time       `bun:"last_synced_at,nullzero,notnull,default:current_timestamp"`
	CreatedAt        time.Time       `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	UpdatedAt        time.Time       `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
}

func toPositionDao(pos *portfolio.Position) *PositionDao {
	return &PositionDao{
		ID:               pos.ID,
		WalletID:         pos.WalletID,
		AssetID:          pos.AssetID,
		Balance:          pos.Balance,
		BalanceFormatted: pos.BalanceFormatted,
		ValueUSD:         pos.ValueUSD,
		Change24hPercent: pos.Change24hPercent,
		PositionType:     pos.PositionType,
		Protocol:         pos.Protocol,
		IsActive:         pos.IsActive,
		LastSyncedAt:     pos.LastSyncedAt,
	}
}

func toPosition(dao *PositionDao) *portfolio.Position {
	return &portfolio.Position{
		ID:               dao.ID,
		WalletID:         dao.WalletID,
		AssetID:          dao.AssetID,
		Balance:          dao.Balance,
		BalanceFormatted: dao.BalanceFormatted,
		ValueUSD:         dao.ValueUSD,
		Change24hPercent: dao.Change24hPercent,
		PositionType:     dao.PositionType,
		Protocol:         dao.Protocol,
		IsActive:         dao.IsActive,
		LastSyncedAt:     dao.LastSyncedAt,
		CreatedAt:        dao.CreatedAt,
		UpdatedAt:        dao.UpdatedAt,
	}
}

// UpsertPosition inserts or refreshes a wallet's holding of an asset. The
// (wallet, asset) pair is the identity; balances and values are mutable.
func (s *Store) UpsertPosition(ctx context.Context, pos *portfolio.Position) (*portfolio.Position, error) {
	if pos.ID == "" {
		pos.ID = uuid.NewString()
	}
	if pos.LastSyncedAt.IsZero() {
		pos.LastSyncedAt = time.Now().UTC()
	}
	dao := toPositionDao(pos)

	_, err := s.db.NewInsert().
		Model(dao).
		On("CONFLICT (wallet_id, asset_id) DO UPDATE").
		Set("balance = EXCLUDED.balance").
		Set("balance_formatted = EXCLUDED.balance_formatted").
		Set("value_usd = EXCLUDED.value_usd").
		Set("change_24h_percent = EXCLUDED.change_24h_percent").
		Set("position_type = EXCLUDED.position_type").
		Set("protocol = EXCLUDED.protocol").
		Set("is_active = EXCLUDED.is_active").
		Set("last_synced_at = EXCLUDED.last_synced_at").
		Set("updated_at = NOW()").
		Returning("*").
		Exec(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to upsert position: %w", err)
	}
	return toPosition(dao), nil
}

// ListPositions returns all active positions of a wallet, most valuable first.
func (s *Store) ListPositions(ctx context.Context, walletID string) ([]*portfolio.Position, error) {
	var daos []PositionDao
	err := s.db.NewSelect().
		Model(&daos).
		Where("wallet_id = ?", walletID).
		Where("is_active = TRUE").
		Order("value_usd DESC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list positions: %w", err)
	}
	positions := make([]*portfolio.Position, len(daos))
	for i := range daos {
		positions[i] = toPosition(&daos[i])
	}
	return positions, nil
}

// CountActivePositions returns the number of active positions of a wallet.
func (s *Store) CountActivePositions(ctx context.Context, walletID string) (int, error) {
	count, err := s.db.NewSelect().
		Model((*PositionDao)(nil)).
		Where("wallet_id = ?", walletID).
		Where("is_active = TRUE").
		Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to count positions: %w", err)
	}
	return count, nil
}

// CountDistinctAssets returns the number of distinct assets held by a wallet.
func (s *Store) CountDistinctAssets(ctx context.Context, walletID string) (int, error) {
	count, err := s.db.NewSelect().
		Model((*PositionDao)(nil)).
		ColumnExpr("DISTINCT asset_id").
		Where("wallet_id = ?", walletID).
		Where("is_active = TRUE").
		Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to count distinct assets: %w", err)
	}
	return count, nil
}

// SumPositionValues returns the total USD value of a wallet's active positions.
func (s *Store) SumPositionValues(ctx context.Context, walletID string) (decimal.Decimal, error) {
	var total decimal.Decimal
	err := s.db.NewSelect().
		Model((*PositionDao)(nil)).
		ColumnExpr("COALESCE(SUM(value_usd), 0)").
		Where("wallet_id = ?", walletID).
		Where("is_active = TRUE").
		Scan(ctx, &total)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to sum position values: %w", err)
	}
	return total, nil
}

// DeactivateMissingPositions marks positions not touched by the given sync
// round as inactive, so holdings the provider no longer reports drop out of
// portfolio views without losing history.
func (s *Store) DeactivateMissingPositions(ctx context.Context, walletID string, syncedSince time.Time) (int64, error) {
	res, err := s.db.NewUpdate().
		Model((*PositionDao)(nil)).
		Set("is_active = FALSE").
		Set("updated_at = NOW()").
		Where("wallet_id = ?", walletID).
		Where("last_synced_at < ?", syncedSince).
		Where("is_active = TRUE").
		Exec(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to deactivate stale positions: %w", err)
	}
	return res.RowsAffected()
}

// PrunePositions deletes inactive dust positions that have been below the
// value threshold and untouched since the cutoff.
func (s *Store) PrunePositions(ctx context.Context, maxValueUSD decimal.Decimal, lastSyncedBefore time.Time) (int64, error) {
	res, err := s.db.NewDelete().
		Model((*PositionDao)(nil)).
		Where("is_active = FALSE").
		Where("value_usd < ?", maxValueUSD).
		Where("last_synced_at < ?", lastSyncedBefore).
		Exec(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to prune positions: %w", err)
	}
	return res.RowsAffected()
}

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

	"github.com/noFAYZ/mappr-backend-new-sub000/pkg/portfolio"
)

// SnapshotDao is a data access object that maps directly to the 'portfolio_snapshots' table in PostgreSQL.
type SnapshotDao struct {
	bun.BaseModel     `bun:"table:portfolio_snapshots,alias:ps"`
	ID                string            `bun:"id,pk,type:uuid"`
	WalletID          string            `bun:"wallet_id,notnull,type:uuid"`
	TotalValue        decimal.Decimal   `bun:"total_value,type:numeric(38,18)"`
	WalletValue       decimal.Decimal   `bun:"wallet_value,type:numeric(38,18)"`
	DepositedValue    decimal.Decimal   `bun:"deposited_value,type:numeric(38,18)"`
	BorrowedValue     decimal.Decimal   `bun:"borrowed_value,type:numeric(38,18)"`
	LockedValue       decimal.Decimal   `bun:"locked_value,type:numeric(38,18)"`
	StakedValue       decimal.Decimal   `bun:"staked_value,type:numeric(38,18)"`
	Change24hPercent  decimal.Decimal   `bun:"change_24h_percent,type:numeric(12,4)"`
	ChainDistribution map[string]string `bun:"chain_distribution,type:jsonb"`
	TypeDistribution  map[string]string `bun:"type_distribution,type:jsonb"`
	SnapshotAt        time.Time         `bun:"snapshot_at,notnull"`
	CreatedAt         time.Time         `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	UpdatedAt         time.Time         `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
}

func toSnapshotDao(snap *portfolio.Snapshot) *SnapshotDao {
	return &SnapshotDao{
		ID:                snap.ID,
		WalletID:          snap.WalletID,
		TotalValue:        snap.TotalValue,
		WalletValue:       snap.WalletValue,
		DepositedValue:    snap.DepositedValue,
		BorrowedValue:     snap.BorrowedValue,
		LockedValue:       snap.LockedValue,
		StakedValue:       snap.StakedValue,
		Change24hPercent:  snap.Change24hPercent,
		ChainDistribution: encodeDistribution(snap.ChainDistribution),
		TypeDistribution:  encodeDistribution(snap.TypeDistribution),
		SnapshotAt:        snap.SnapshotAt,
	}
}

func toSnapshot(dao *SnapshotDao) *portfolio.Snapshot {
	return &portfolio.Snapshot{
		ID:                dao.ID,
		WalletID:          dao.WalletID,
		TotalValue:        dao.TotalValue,
		WalletValue:       dao.WalletValue,
		DepositedValue:    dao.DepositedValue,
		BorrowedValue:     dao.BorrowedValue,
		LockedValue:       dao.LockedValue,
		StakedValue:       dao.StakedValue,
		Change24hPercent:  dao.Change24hPercent,
		ChainDistribution: decodeDistribution(dao.ChainDistribution),
		TypeDistribution:  decodeDistribution(dao.TypeDistribution),
		SnapshotAt:        dao.SnapshotAt,
		CreatedAt:         dao.CreatedAt,
		UpdatedAt:         dao.UpdatedAt,
	}
}

func encodeDistribution(dist map[string]decimal.Decimal) map[string]string {
	if dist == nil {
		return nil
	}
	out := make(map[string]string, len(dist))
	for k, v := range dist {
		out[k] = v.String()
	}
	return out
}

func decodeDistribution(dist map[string]string) map[string]decimal.Decimal {
	if dist == nil {
		return nil
	}
	out := make(map[string]decimal.Decimal, len(dist))
	for k, v := range dist {
		d, err := decimal.NewFromString(v)
		if err != nil {
			continue
		}
		out[k] = d
	}
	return out
}

// UpsertSnapshot replaces the wallet's portfolio snapshot. Each wallet keeps
// exactly one current snapshot row.
func (s *Store) UpsertSnapshot(ctx context.Context, snap *portfolio.Snapshot) (*portfolio.Snapshot, error) {
	if snap.ID == "" {
		snap.ID = uuid.NewString()
	}
	if snap.SnapshotAt.IsZero() {
		snap.SnapshotAt = time.Now().UTC()
	}
	dao := toSnapshotDao(snap)

	_, err := s.db.NewInsert().
		Model(dao).
		On("CONFLICT (wallet_id) DO UPDATE").
		Set("total_value = EXCLUDED.total_value").
		Set("wallet_value = EXCLUDED.wallet_value").
		Set("deposited_value = EXCLUDED.deposited_value").
		Set("borrowed_value = EXCLUDED.borrowed_value").
		Set("locked_value = EXCLUDED.locked_value").
		Set("staked_value = EXCLUDED.staked_value").
		Set("change_24h_percent = EXCLUDED.change_24h_percent").
		Set("chain_distribution = EXCLUDED.chain_distribution").
		Set("type_distribution = EXCLUDED.type_distribution").
		Set("snapshot_at = EXCLUDED.snapshot_at").
		Set("updated_at = NOW()").
		Returning("*").
		Exec(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to upsert snapshot: %w", err)
	}
	return toSnapshot(dao), nil
}

// GetSnapshot fetches the wallet's current portfolio snapshot.
func (s *Store) GetSnapshot(ctx context.Context, walletID string) (*portfolio.Snapshot, error) {
	dao := new(SnapshotDao)
	err := s.db.NewSelect().
		Model(dao).
		Where("wallet_id = ?", walletID).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrSnapshotNotFound
		}
		return nil, fmt.Errorf("failed to get snapshot: %w", err)
	}
	return toSnapshot(dao), nil
}

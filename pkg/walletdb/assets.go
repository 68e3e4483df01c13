package walletdb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/uptrace/bun"

	"github.com/noFAYZ/mappr-backend-new-sub000/pkg/asset"
)

// AssetDao is a data access object that maps directly to the 'asset_identities' table in PostgreSQL.
type AssetDao struct {
	bun.BaseModel   `bun:"table:asset_identities,alias:a"`
	ID              string          `bun:"id,pk,type:uuid"`
	Symbol          string          `bun:"symbol,notnull,type:varchar(32)"`
	Name            string          `bun:"name,type:varchar(255)"`
	Network         string          `bun:"network,notnull,type:varchar(32)"`
	ContractAddress *string         `bun:"contract_address,type:varchar(64)"`
	Decimals        int             `bun:"decimals,notnull,default:18"`
	AssetType       string          `bun:"asset_type,notnull,type:varchar(16)"`
	Verified        bool            `bun:"verified,notnull,default:false"`
	PriceUSD        decimal.Decimal `bun:"price_usd,type:numeric(38,18)"`
	PriceUpdatedAt  *time.Time      `bun:"price_updated_at"`
	CreatedAt       time.Time       `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	UpdatedAt       time.Time       `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
}

// toAssetDao converts an asset.Identity to AssetDao. Contract addresses are
// stored lowercased so the unique key is case-insensitive.
func toAssetDao(ident *asset.Identity) *AssetDao {
	dao := &AssetDao{
		ID:        ident.ID,
		Symbol:    strings.ToUpper(ident.Symbol),
		Name:      ident.Name,
		Network:   string(ident.Network),
		Decimals:  ident.Decimals,
		AssetType: string(ident.AssetType),
		Verified:  ident.Verified,
		PriceUSD:  ident.PriceUSD,
	}
	if ident.ContractAddress != "" {
		addr := strings.ToLower(ident.ContractAddress)
		dao.ContractAddress = &addr
	}
	if ident.PriceUpdatedAt != nil {
		dao.PriceUpdatedAt = ident.PriceUpdatedAt
	}
	return dao
}

// toAsset converts an AssetDao to asset.Identity.
func toAsset(dao *AssetDao) *asset.Identity {
	ident := &asset.Identity{
		ID:        dao.ID,
		Symbol:    dao.Symbol,
		Name:      dao.Name,
		Network:   asset.Network(dao.Network),
		Decimals:  dao.Decimals,
		AssetType: asset.Type(dao.AssetType),
		Verified:  dao.Verified,
		PriceUSD:  dao.PriceUSD,
		CreatedAt: dao.CreatedAt,
		UpdatedAt: dao.UpdatedAt,
	}
	if dao.ContractAddress != nil {
		ident.ContractAddress = *dao.ContractAddress
	}
	if dao.PriceUpdatedAt != nil {
		ident.PriceUpdatedAt = dao.PriceUpdatedAt
	}
	return ident
}

// GetAssetByContract fetches a contract asset by its unique
// (contract address, network) key.
func (s *Store) GetAssetByContract(ctx context.Context, contractAddress string, network asset.Network) (*asset.Identity, error) {
	dao := new(AssetDao)
	err := s.db.NewSelect().
		Model(dao).
		Where("contract_address = ?", strings.ToLower(contractAddress)).
		Where("network = ?", string(network)).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrAssetNotFound
		}
		return nil, fmt.Errorf("failed to get asset by contract: %w", err)
	}
	return toAsset(dao), nil
}

// GetNativeAsset fetches a chain-native asset by (symbol, network).
func (s *Store) GetNativeAsset(ctx context.Context, symbol string, network asset.Network) (*asset.Identity, error) {
	dao := new(AssetDao)
	err := s.db.NewSelect().
		Model(dao).
		Where("symbol = ?", strings.ToUpper(symbol)).
		Where("network = ?", string(network)).
		Where("contract_address IS NULL").
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrAssetNotFound
		}
		return nil, fmt.Errorf("failed to get native asset: %w", err)
	}
	return toAsset(dao), nil
}

// FindAssetBySymbol is the legacy lookup used while older rows migrate to
// contract-keyed identities. Verified rows win over unverified ones.
func (s *Store) FindAssetBySymbol(ctx context.Context, symbol string, network asset.Network) (*asset.Identity, error) {
	dao := new(AssetDao)
	err := s.db.NewSelect().
		Model(dao).
		Where("symbol = ?", strings.ToUpper(symbol)).
		Where("network = ?", string(network)).
		OrderExpr("verified DESC, created_at ASC").
		Limit(1).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrAssetNotFound
		}
		return nil, fmt.Errorf("failed to find asset by symbol: %w", err)
	}
	return toAsset(dao), nil
}

// UpsertContractAsset inserts or refreshes a contract asset keyed by
// (contract address, network) and returns the canonical row.
func (s *Store) UpsertContractAsset(ctx context.Context, ident *asset.Identity) (*asset.Identity, error) {
	if ident.ContractAddress == "" {
		return nil, fmt.Errorf("contract asset requires a contract address")
	}
	if ident.ID == "" {
		ident.ID = uuid.NewString()
	}
	dao := toAssetDao(ident)

	_, err := s.db.NewInsert().
		Model(dao).
		On("CONFLICT (contract_address, network) WHERE contract_address IS NOT NULL DO UPDATE").
		Set("symbol = EXCLUDED.symbol").
		Set("name = EXCLUDED.name").
		Set("decimals = EXCLUDED.decimals").
		Set("verified = EXCLUDED.verified").
		Set("updated_at = NOW()").
		Returning("*").
		Exec(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to upsert contract asset: %w", err)
	}
	return toAsset(dao), nil
}

// UpsertNativeAsset inserts or refreshes a native asset keyed by
// (symbol, network) among rows without a contract address.
func (s *Store) UpsertNativeAsset(ctx context.Context, ident *asset.Identity) (*asset.Identity, error) {
	if ident.ID == "" {
		ident.ID = uuid.NewString()
	}
	ident.ContractAddress = ""
	dao := toAssetDao(ident)

	_, err := s.db.NewInsert().
		Model(dao).
		On("CONFLICT (symbol, network) WHERE contract_address IS NULL DO UPDATE").
		Set("name = EXCLUDED.name").
		Set("decimals = EXCLUDED.decimals").
		Set("verified = EXCLUDED.verified").
		Set("updated_at = NOW()").
		Returning("*").
		Exec(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to upsert native asset: %w", err)
	}
	return toAsset(dao), nil
}

// UpdateAssetPrice records a fresh price observation for the asset.
func (s *Store) UpdateAssetPrice(ctx context.Context, id string, price decimal.Decimal, at time.Time) error {
	_, err := s.db.NewUpdate().
		Model((*AssetDao)(nil)).
		Set("price_usd = ?", price).
		Set("price_updated_at = ?", at).
		Set("updated_at = NOW()").
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to update asset price: %w", err)
	}
	return nil
}

// ListVerifiedAssets returns up to limit verified identities for cache warm-up.
func (s *Store) ListVerifiedAssets(ctx context.Context, limit int) ([]*asset.Identity, error) {
	var daos []AssetDao
	err := s.db.NewSelect().
		Model(&daos).
		Where("verified = TRUE").
		Order("updated_at DESC").
		Limit(limit).
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list verified assets: %w", err)
	}
	idents := make([]*asset.Identity, len(daos))
	for i := range daos {
		idents[i] = toAsset(&daos[i])
	}
	return idents, nil
}

package walletdb

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/uptrace/bun"

	"github.com/noFAYZ/mappr-backend-new-sub000/pkg/asset"
	"github.com/noFAYZ/mappr-backend-new-sub000/pkg/portfolio"
)

// NFTDao is a data access object that maps directly to the 'nfts' table in PostgreSQL.
type NFTDao struct {
	bun.BaseModel   `bun:"table:nfts,alias:n"`
	ID              string          `bun:"id,pk,type:uuid"`
	WalletID        string          `bun:"wallet_id,notnull,type:uuid"`
	ContractAddress string          `bun:"contract_address,notnull,type:varchar(64)"`
	TokenID         string          `bun:"token_id,notnull,type:varchar(128)"`
	Network         string          `bun:"network,notnull,type:varchar(32)"`
	Name            string          `bun:"name,type:varchar(255)"`
	CollectionName  string          `bun:"collection_name,type:varchar(255)"`
	Description     string          `bun:"description,type:text"`
	ImageURL        string          `bun:"image_url,type:text"`
	EstimatedValue  decimal.Decimal `bun:"estimated_value,type:numeric(38,18)"`
	FloorPrice      decimal.Decimal `bun:"floor_price,type:numeric(38,18)"`
	RarityRank      int             `bun:"rarity_rank,default:0"`
	Standard        string          `bun:"standard,type:varchar(16)"`
	IsSpam          bool            `bun:"is_spam,notnull,default:false"`
	IsNSFW          bool            `bun:"is_nsfw,notnull,default:false"`
	LastSyncedAt    time.Time       `bun:"last_synced_at,nullzero,notnull,default:current_timestamp"`
	CreatedAt       time.Time       `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	UpdatedAt       time.Time       `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
}

func toNFTDao(n *portfolio.NFT) *NFTDao {
	return &NFTDao{
		ID:              n.ID,
		WalletID:        n.WalletID,
		ContractAddress: strings.ToLower(n.ContractAddress),
		TokenID:         n.TokenID,
		Network:         string(n.Network),
		Name:            n.Name,
		CollectionName:  n.CollectionName,
		Description:     n.Description,
		ImageURL:        n.ImageURL,
		EstimatedValue:  n.EstimatedValue,
		FloorPrice:      n.FloorPrice,
		RarityRank:      n.RarityRank,
		Standard:        n.Standard,
		IsSpam:          n.IsSpam,
		IsNSFW:          n.IsNSFW,
		LastSyncedAt:    n.LastSyncedAt,
	}
}

func toNFT(dao *NFTDao) *portfolio.NFT {
	return &portfolio.NFT{
		ID:              dao.ID,
		WalletID:        dao.WalletID,
		ContractAddress: dao.ContractAddress,
		TokenID:         dao.TokenID,
		Network:         asset.Network(dao.Network),
		Name:            dao.Name,
		CollectionName:  dao.CollectionName,
		Description:     dao.Description,
		ImageURL:        dao.ImageURL,
		EstimatedValue:  dao.EstimatedValue,
		FloorPrice:      dao.FloorPrice,
		RarityRank:      dao.RarityRank,
		Standard:        dao.Standard,
		IsSpam:          dao.IsSpam,
		IsNSFW:          dao.IsNSFW,
		LastSyncedAt:    dao.LastSyncedAt,
		CreatedAt:       dao.CreatedAt,
		UpdatedAt:       dao.UpdatedAt,
	}
}

// UpsertNFT inserts an NFT holding or refreshes its metadata and valuation.
// A wallet holds at most one row per (contract, token, network).
func (s *Store) UpsertNFT(ctx context.Context, n *portfolio.NFT) (*portfolio.NFT, error) {
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	if n.LastSyncedAt.IsZero() {
		n.LastSyncedAt = time.Now().UTC()
	}
	dao := toNFTDao(n)

	_, err := s.db.NewInsert().
		Model(dao).
		On("CONFLICT (wallet_id, contract_address, token_id, network) DO UPDATE").
		Set("name = EXCLUDED.name").
		Set("collection_name = EXCLUDED.collection_name").
		Set("description = EXCLUDED.description").
		Set("image_url = EXCLUDED.image_url").
		Set("estimated_value = EXCLUDED.estimated_value").
		Set("floor_price = EXCLUDED.floor_price").
		Set("rarity_rank = EXCLUDED.rarity_rank").
		Set("is_spam = EXCLUDED.is_spam").
		Set("is_nsfw = EXCLUDED.is_nsfw").
		Set("last_synced_at = EXCLUDED.last_synced_at").
		Set("updated_at = NOW()").
		Returning("*").
		Exec(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to upsert nft: %w", err)
	}
	return toNFT(dao), nil
}

// ListNFTs returns a wallet's non-spam NFTs, most valuable first.
func (s *Store) ListNFTs(ctx context.Context, walletID string) ([]*portfolio.NFT, error) {
	var daos []NFTDao
	err := s.db.NewSelect().
		Model(&daos).
		Where("wallet_id = ?", walletID).
		Where("is_spam = FALSE").
		Order("estimated_value DESC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list nfts: %w", err)
	}
	nfts := make([]*portfolio.NFT, len(daos))
	for i := range daos {
		nfts[i] = toNFT(&daos[i])
	}
	return nfts, nil
}

// CountNFTs returns the number of non-spam NFTs held by a wallet.
func (s *Store) CountNFTs(ctx context.Context, walletID string) (int, error) {
	count, err := s.db.NewSelect().
		Model((*NFTDao)(nil)).
		Where("wallet_id = ?", walletID).
		Where("is_spam = FALSE").
		Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to count nfts: %w", err)
	}
	return count, nil
}

// DeleteDepartedNFTs removes NFT rows the latest sync no longer observed,
// which covers transfers out and sales since the previous pass.
func (s *Store) DeleteDepartedNFTs(ctx context.Context, walletID string, syncedSince time.Time) (int64, error) {
	res, err := s.db.NewDelete().
		Model((*NFTDao)(nil)).
		Where("wallet_id = ?", walletID).
		Where("last_synced_at < ?", syncedSince).
		Exec(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to delete departed nfts: %w", err)
	}
	return res.RowsAffected()
}

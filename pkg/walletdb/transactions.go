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
	"github.com/noFAYZ/mappr-backend-new-sub000/pkg/portfolio"
)

// TransactionDao is a data access object that maps directly to the 'transactions' table in PostgreSQL.
type TransactionDao struct {
	bun.BaseModel `bun:"table:transactions,alias:t"`
	ID            string          `bun:"id,pk,type:uuid"`
	WalletID      string          `bun:"wallet_id,notnull,type:uuid"`
	Hash          string          `bun:"hash,notnull,type:varchar(128)"`
	Network       string          `bun:"network,notnull,type:varchar(32)"`
	TxType        string          `bun:"tx_type,notnull,type:varchar(32)"`
	Direction     string          `bun:"direction,notnull,type:varchar(8)"`
	Status        string          `bun:"status,notnull,type:varchar(16)"`
	FromAddress   string          `bun:"from_address,type:varchar(64)"`
	ToAddress     string          `bun:"to_address,type:varchar(64)"`
	ValueUSD      decimal.Decimal `bun:"value_usd,type:numeric(38,18)"`
	FeeUSD        decimal.Decimal `bun:"fee_usd,type:numeric(38,18)"`
	AssetSymbol   string          `bun:"asset_symbol,type:varchar(32)"`
	Category      string          `bun:"category,notnull,type:varchar(16)"`
	Tags          []string        `bun:"tags,array"`
	Notes         string          `bun:"notes,type:text"`
	MinedAt       time.Time       `bun:"mined_at,notnull"`
	CreatedAt     time.Time       `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	UpdatedAt     time.Time       `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
}

func toTransactionDao(tx *portfolio.Transaction) *TransactionDao {
	return &TransactionDao{
		ID:          tx.ID,
		WalletID:    tx.WalletID,
		Hash:        strings.ToLower(tx.Hash),
		Network:     string(tx.Network),
		TxType:      string(tx.TxType),
		Direction:   string(tx.Direction),
		Status:      string(tx.Status),
		FromAddress: strings.ToLower(tx.FromAddress),
		ToAddress:   strings.ToLower(tx.ToAddress),
		ValueUSD:    tx.ValueUSD,
		FeeUSD:      tx.FeeUSD,
		AssetSymbol: tx.AssetSymbol,
		Category:    string(tx.Category),
		Tags:        tx.Tags,
		Notes:       tx.Notes,
		MinedAt:     tx.MinedAt,
	}
}

func toTransaction(dao *TransactionDao) *portfolio.Transaction {
	return &portfolio.Transaction{
		ID:          dao.ID,
		WalletID:    dao.WalletID,
		Hash:        dao.Hash,
		Network:     asset.Network(dao.Network),
		TxType:      portfolio.TxType(dao.TxType),
		Direction:   portfolio.Direction(dao.Direction),
		Status:      portfolio.TxStatus(dao.Status),
		FromAddress: dao.FromAddress,
		ToAddress:   dao.ToAddress,
		ValueUSD:    dao.ValueUSD,
		FeeUSD:      dao.FeeUSD,
		AssetSymbol: dao.AssetSymbol,
		Category:    portfolio.Category(dao.Category),
		Tags:        dao.Tags,
		Notes:       dao.Notes,
		MinedAt:     dao.MinedAt,
		CreatedAt:   dao.CreatedAt,
		UpdatedAt:   dao.UpdatedAt,
	}
}

// UpsertTransaction inserts a transaction or, when the (hash, network) pair
// already exists, refreshes only the mutable fields. Identity fields such as
// wallet, direction and addresses are never rewritten by a re-sync.
func (s *Store) UpsertTransaction(ctx context.Context, tx *portfolio.Transaction) (*portfolio.Transaction, error) {
	if tx.ID == "" {
		tx.ID = uuid.NewString()
	}
	dao := toTransactionDao(tx)

	_, err := s.db.NewInsert().
		Model(dao).
		On("CONFLICT (hash, network) DO UPDATE").
		Set("status = EXCLUDED.status").
		Set("value_usd = EXCLUDED.value_usd").
		Set("fee_usd = EXCLUDED.fee_usd").
		Set("category = EXCLUDED.category").
		Set("tags = EXCLUDED.tags").
		Set("notes = EXCLUDED.notes").
		Set("updated_at = NOW()").
		Returning("*").
		Exec(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to upsert transaction: %w", err)
	}
	return toTransaction(dao), nil
}

// GetTransactionByHash fetches a transaction by its (hash, network) key.
func (s *Store) GetTransactionByHash(ctx context.Context, hash string, network asset.Network) (*portfolio.Transaction, error) {
	dao := new(TransactionDao)
	err := s.db.NewSelect().
		Model(dao).
		Where("hash = ?", strings.ToLower(hash)).
		Where("network = ?", string(network)).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("transaction not found: %w", err)
		}
		return nil, fmt.Errorf("failed to get transaction: %w", err)
	}
	return toTransaction(dao), nil
}

// ListTransactions returns a page of a wallet's transactions, newest first.
func (s *Store) ListTransactions(ctx context.Context, walletID string, limit, offset int) ([]*portfolio.Transaction, error) {
	var daos []TransactionDao
	err := s.db.NewSelect().
		Model(&daos).
		Where("wallet_id = ?", walletID).
		Order("mined_at DESC").
		Limit(limit).
		Offset(offset).
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list transactions: %w", err)
	}
	txs := make([]*portfolio.Transaction, len(daos))
	for i := range daos {
		txs[i] = toTransaction(&daos[i])
	}
	return txs, nil
}

// LatestTransactionTime returns when the wallet's most recent stored
// transaction was mined, or nil when the wallet has none. Incremental
// fetch strategies start from this point.
func (s *Store) LatestTransactionTime(ctx context.Context, walletID string) (*time.Time, error) {
	var minedAt time.Time
	err := s.db.NewSelect().
		Model((*TransactionDao)(nil)).
		ColumnExpr("MAX(mined_at)").
		Where("wallet_id = ?", walletID).
		Scan(ctx, &minedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get latest transaction time: %w", err)
	}
	if minedAt.IsZero() {
		return nil, nil
	}
	return &minedAt, nil
}

// CountTransactions returns the number of stored transactions of a wallet.
func (s *Store) CountTransactions(ctx context.Context, walletID string) (int, error) {
	count, err := s.db.NewSelect().
		Model((*TransactionDao)(nil)).
		Where("wallet_id = ?", walletID).
		Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to count transactions: %w", err)
	}
	return count, nil
}

// DeleteStaleFailedTransactions drops failed transactions older than the
// cutoff. Confirmed history is retained indefinitely.
func (s *Store) DeleteStaleFailedTransactions(ctx context.Context, before time.Time) (int64, error) {
	res, err := s.db.NewDelete().
		Model((*TransactionDao)(nil)).
		Where("status = ?", string(portfolio.TxFailedTx)).
		Where("mined_at < ?", before).
		Exec(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to delete stale failed transactions: %w", err)
	}
	return res.RowsAffected()
}

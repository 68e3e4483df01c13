package portfolio

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/noFAYZ/mappr-backend-new-sub000/pkg/asset"
)

// TxType classifies what a transaction did. Derived from the provider's
// explicit operation type when present, otherwise inferred from transfers.
type TxType string

const (
	TxSend        TxType = "send"
	TxReceive     TxType = "receive"
	TxSwap        TxType = "swap"
	TxApprove     TxType = "approve"
	TxStake       TxType = "stake"
	TxUnstake     TxType = "unstake"
	TxDeposit     TxType = "deposit"
	TxWithdraw    TxType = "withdraw"
	TxBorrow      TxType = "borrow"
	TxRepay       TxType = "repay"
	TxClaim       TxType = "claim"
	TxMint        TxType = "mint"
	TxBurn        TxType = "burn"
	TxNFTMint     TxType = "nft_mint"
	TxNFTBurn     TxType = "nft_burn"
	TxNFTTransfer TxType = "nft_transfer"
	TxExecute     TxType = "execute"
	TxOther       TxType = "other"
)

// Direction summarizes net value flow relative to the wallet.
type Direction string

const (
	DirectionIn   Direction = "in"
	DirectionOut  Direction = "out"
	DirectionSelf Direction = "self"
)

// TxStatus mirrors the provider-reported confirmation state.
type TxStatus string

const (
	TxConfirmed TxStatus = "confirmed"
	TxPending   TxStatus = "pending"
	TxFailedTx  TxStatus = "failed"
)

// Category buckets transactions for filtering in read paths.
type Category string

const (
	CategoryDEX      Category = "dex"
	CategoryDeFi     Category = "defi"
	CategoryNFT      Category = "nft"
	CategoryDomain   Category = "domain"
	CategoryTransfer Category = "transfer"
	CategoryOther    Category = "other"
)

// Transaction is an append-mostly record keyed by (hash, network).
// Re-syncs update only the mutable fields (status, value, fee, category,
// tags, notes); hash, addresses and timestamps are immutable once recorded.
type Transaction struct {
	ID          string
	WalletID    string
	Hash        string
	Network     asset.Network
	TxType      TxType
	Direction   Direction
	Status      TxStatus
	FromAddress string
	ToAddress   string
	ValueUSD    decimal.Decimal
	FeeUSD      decimal.Decimal
	AssetSymbol string
	Category    Category
	Tags        []string
	Notes       string
	MinedAt     time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// NFT is a wallet's non-fungible holding keyed by
// (wallet, contract, token id, network).
type NFT struct {
	ID              string
	WalletID        string
	ContractAddress string
	TokenID         string
	Network         asset.Network
	Name            string
	CollectionName  string
	Description     string
	ImageURL        string
	EstimatedValue  decimal.Decimal
	FloorPrice      decimal.Decimal
	RarityRank      int
	Standard        string
	IsSpam          bool
	IsNSFW          bool
	LastSyncedAt    time.Time
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

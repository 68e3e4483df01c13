// Package provider defines the intermediate representation returned by
// upstream portfolio data providers, plus the shared call machinery
// (timeouts, retries, circuit breaking, concurrency limits) their clients
// are built on.
package provider

import (
	"time"

	"github.com/shopspring/decimal"
)

// Portfolio is a wallet's aggregate valuation across all chains.
type Portfolio struct {
	TotalUSD         decimal.Decimal
	WalletUSD        decimal.Decimal
	DepositedUSD     decimal.Decimal
	BorrowedUSD      decimal.Decimal
	LockedUSD        decimal.Decimal
	StakedUSD        decimal.Decimal
	Change24hPercent decimal.Decimal
	// ChainTotals maps provider chain ids to the USD value held there.
	ChainTotals map[string]decimal.Decimal
}

// PositionKind tells position entries apart from other list items the
// provider mixes into the same feed.
type PositionKind string

const (
	KindPosition PositionKind = "position"
)

// Position is a single fungible holding as reported by a provider.
type Position struct {
	Kind     PositionKind
	ID       string
	ChainID  string
	Protocol string
	// PositionType partitions holdings into wallet/deposited/borrowed/locked/staked.
	PositionType string

	Fungible *Fungible

	Quantity         decimal.Decimal
	QuantityFloat    decimal.Decimal
	ValueUSD         decimal.Decimal
	PriceUSD         decimal.Decimal
	Change24hPercent decimal.Decimal

	IsTrash bool
}

// Fungible identifies the asset a position is denominated in.
type Fungible struct {
	Symbol          string
	Name            string
	ContractAddress string
	Decimals        int
	Verified        bool
}

// Transaction is a single chain transaction as reported by a provider.
type Transaction struct {
	Kind    string
	Hash    string
	ChainID string
	// OperationType is the provider's explicit classification, empty when
	// the provider does not know.
	OperationType string
	Status        string
	MinedAt       time.Time
	FeeUSD        decimal.Decimal
	From          string
	To            string

	Transfers []Transfer
	// Acts lists the action types that made up the transaction.
	Acts []string
	// AppName is the dapp the transaction interacted with, when known.
	AppName string
}

// TransferDirection is the flow of a transfer relative to the synced wallet.
type TransferDirection string

const (
	TransferIn   TransferDirection = "in"
	TransferOut  TransferDirection = "out"
	TransferSelf TransferDirection = "self"
)

// Transfer is one asset movement inside a transaction.
type Transfer struct {
	Direction TransferDirection
	Symbol    string
	Quantity  decimal.Decimal
	ValueUSD  decimal.Decimal
	IsNFT     bool
	Sender    string
	Recipient string
}

// NFT is a non-fungible holding as reported by a provider.
type NFT struct {
	ContractAddress string
	TokenID         string
	ChainID         string
	Name            string
	CollectionName  string
	Description     string
	ImageURL        string
	EstimatedValue  decimal.Decimal
	FloorPrice      decimal.Decimal
	RarityRank      int
	Standard        string
	// SpamScore ranges 0-100; holdings above the configured threshold are
	// treated as spam.
	SpamScore int
	IsNSFW    bool
}

// DeFiPosition is an app-level balance as reported by a provider that
// indexes protocol positions rather than raw token holdings.
type DeFiPosition struct {
	AppID      string
	AppName    string
	ChainID    string
	Label      string
	BalanceUSD decimal.Decimal
}

// TxQuery bounds a transaction listing request.
type TxQuery struct {
	// Since restricts the listing to transactions mined after this instant.
	Since *time.Time
	// Limit caps the page size.
	Limit int
}

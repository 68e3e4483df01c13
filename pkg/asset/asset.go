// Package asset defines the canonical asset identity shared across wallets
// and users, and the composite key used to resolve one.
package asset

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Type distinguishes chain-native coins from contract tokens.
type Type string

const (
	TypeCoin  Type = "coin"
	TypeToken Type = "token"
)

// Identity is the canonical record for a fungible asset. At most one row
// exists per (contract address, network); native assets carry no contract
// address and are located by (symbol, network) instead.
type Identity struct {
	ID              string
	Symbol          string
	Name            string
	Network         Network
	ContractAddress string
	Decimals        int
	AssetType       Type
	Verified        bool
	PriceUSD        decimal.Decimal
	PriceUpdatedAt  *time.Time
	// Fallback marks a synthetic identity handed out when the backing
	// store was unavailable. Fallback identities are never persisted.
	Fallback  bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Native reports whether the identity is a chain-native coin.
func (i *Identity) Native() bool {
	return i.ContractAddress == ""
}

// Key returns the composite cache key for the identity.
func (i *Identity) Key() string {
	return Key(i.Symbol, i.Network, i.ContractAddress)
}

// Key derives the composite lookup key for an asset. Contract addresses are
// lowercased; native assets use the literal "native" marker so that one
// symbol can exist both as a coin and as wrapped tokens.
func Key(symbol string, network Network, contractAddress string) string {
	contract := "native"
	if contractAddress != "" {
		contract = strings.ToLower(contractAddress)
	}
	return fmt.Sprintf("%s_%s_%s", strings.ToUpper(symbol), network, contract)
}

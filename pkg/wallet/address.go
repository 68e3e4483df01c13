package wallet

import (
	"github.com/ethereum/go-ethereum/common"
)

// ValidAddress checks if a string is a well-formed EVM address
func ValidAddress(address string) bool {
	return common.IsHexAddress(address)
}

// NormalizeAddress returns the EIP-55 checksummed form of an address.
// Rows are keyed by this form so the same wallet pasted in different
// casings resolves to one record.
func NormalizeAddress(address string) string {
	return common.HexToAddress(address).Hex()
}

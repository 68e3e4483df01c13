package asset

import "strings"

// Network is the internal chain identifier. Provider-specific chain ids and
// network names are mapped into this enum at the reconciliation boundary.
type Network string

const (
	NetworkEthereum  Network = "ETHEREUM"
	NetworkPolygon   Network = "POLYGON"
	NetworkArbitrum  Network = "ARBITRUM"
	NetworkOptimism  Network = "OPTIMISM"
	NetworkBase      Network = "BASE"
	NetworkBSC       Network = "BSC"
	NetworkAvalanche Network = "AVALANCHE"
	NetworkFantom    Network = "FANTOM"
	NetworkGnosis    Network = "GNOSIS"
	NetworkLinea     Network = "LINEA"
	NetworkZkSync    Network = "ZKSYNC"
	NetworkScroll    Network = "SCROLL"
	NetworkBlast     Network = "BLAST"
	NetworkCelo      Network = "CELO"
	NetworkSolana    Network = "SOLANA"
	NetworkBitcoin   Network = "BITCOIN"
)

// chainIDNetworks maps provider chain identifiers (Zerion chain ids,
// Zapper network slugs) to internal networks. Aliases cover both taxonomies.
var chainIDNetworks = map[string]Network{
	"ethereum":            NetworkEthereum,
	"eth":                 NetworkEthereum,
	"mainnet":             NetworkEthereum,
	"ethereum-mainnet":    NetworkEthereum,
	"polygon":             NetworkPolygon,
	"matic":               NetworkPolygon,
	"arbitrum":            NetworkArbitrum,
	"arbitrum-one":        NetworkArbitrum,
	"optimism":            NetworkOptimism,
	"base":                NetworkBase,
	"binance-smart-chain": NetworkBSC,
	"bsc":                 NetworkBSC,
	"bnb":                 NetworkBSC,
	"avalanche":           NetworkAvalanche,
	"avax":                NetworkAvalanche,
	"fantom":              NetworkFantom,
	"xdai":                NetworkGnosis,
	"gnosis":              NetworkGnosis,
	"linea":               NetworkLinea,
	"zksync-era":          NetworkZkSync,
	"zksync":              NetworkZkSync,
	"scroll":              NetworkScroll,
	"blast":               NetworkBlast,
	"celo":                NetworkCelo,
	"solana":              NetworkSolana,
	"bitcoin":             NetworkBitcoin,
}

// NetworkFromChainID maps a provider chain identifier to the internal
// network enum. Unknown identifiers are normalized to upper case rather
// than dropped so records from newly supported chains survive a sync.
func NetworkFromChainID(chainID string) Network {
	id := strings.ToLower(strings.TrimSpace(chainID))
	if n, ok := chainIDNetworks[id]; ok {
		return n
	}
	if id == "" {
		return NetworkEthereum
	}
	return Network(strings.ToUpper(strings.ReplaceAll(id, "-", "_")))
}

// ParseNetwork validates a client-supplied network name.
func ParseNetwork(s string) (Network, bool) {
	n := Network(strings.ToUpper(strings.TrimSpace(s)))
	switch n {
	case NetworkEthereum, NetworkPolygon, NetworkArbitrum, NetworkOptimism,
		NetworkBase, NetworkBSC, NetworkAvalanche, NetworkFantom,
		NetworkGnosis, NetworkLinea, NetworkZkSync, NetworkScroll,
		NetworkBlast, NetworkCelo, NetworkSolana, NetworkBitcoin:
		return n, true
	}
	return "", false
}

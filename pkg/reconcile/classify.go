package reconcile

import (
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gosimple/slug"

	"github.com/noFAYZ/mappr-backend-new-sub000/pkg/portfolio"
	"github.com/noFAYZ/mappr-backend-new-sub000/pkg/provider"
)

// operationTypes maps provider operation names to transaction types.
// Providers that classify on their side win over flow inference.
var operationTypes = map[string]portfolio.TxType{
	"send":     portfolio.TxSend,
	"receive":  portfolio.TxReceive,
	"trade":    portfolio.TxSwap,
	"approve":  portfolio.TxApprove,
	"stake":    portfolio.TxStake,
	"unstake":  portfolio.TxUnstake,
	"deposit":  portfolio.TxDeposit,
	"withdraw": portfolio.TxWithdraw,
	"borrow":   portfolio.TxBorrow,
	"repay":    portfolio.TxRepay,
	"claim":    portfolio.TxClaim,
	"mint":     portfolio.TxMint,
	"burn":     portfolio.TxBurn,
	"execute":  portfolio.TxExecute,
	"deploy":   portfolio.TxExecute,
}

// App name fragments for categorization, matched against the lowercased
// dapp name.
var (
	dexApps = []string{
		"uniswap", "sushiswap", "pancakeswap", "curve", "balancer",
		"1inch", "0x", "kyber", "paraswap", "cowswap", "velodrome",
		"aerodrome",
	}
	defiApps = []string{
		"aave", "compound", "maker", "lido", "rocket pool", "yearn",
		"convex", "morpho", "spark", "eigenlayer", "pendle",
	}
	domainApps = []string{
		"ens", "unstoppable domains", "space id",
	}
)

// classifyType decides the transaction type from the provider's operation
// name, falling back to transfer flow inference when the provider did not
// classify.
func classifyType(tx provider.Transaction) portfolio.TxType {
	hasNFT := hasNFTTransfer(tx.Transfers)

	if op, ok := operationTypes[strings.ToLower(tx.OperationType)]; ok {
		if hasNFT {
			switch op {
			case portfolio.TxMint:
				return portfolio.TxNFTMint
			case portfolio.TxBurn:
				return portfolio.TxNFTBurn
			case portfolio.TxSend, portfolio.TxReceive:
				return classifyNFTTransfer(tx.Transfers)
			}
		}
		return op
	}

	if hasNFT {
		return classifyNFTTransfer(tx.Transfers)
	}

	in, out := transferFlows(tx.Transfers)
	switch {
	case in && out:
		return portfolio.TxSwap
	case out:
		return portfolio.TxSend
	case in:
		return portfolio.TxReceive
	default:
		return portfolio.TxOther
	}
}

// classifyNFTTransfer distinguishes mints and burns from plain transfers by
// looking at the zero address on either end of the NFT movements.
func classifyNFTTransfer(transfers []provider.Transfer) portfolio.TxType {
	for _, t := range transfers {
		if !t.IsNFT {
			continue
		}
		if isZeroAddress(t.Sender) {
			return portfolio.TxNFTMint
		}
		if isZeroAddress(t.Recipient) {
			return portfolio.TxNFTBurn
		}
	}
	return portfolio.TxNFTTransfer
}

// isZeroAddress reports whether addr is the EVM zero address. HexToAddress
// maps malformed input to the zero address too, so the format check has to
// come first.
func isZeroAddress(addr string) bool {
	return addr != "" && common.IsHexAddress(addr) && common.HexToAddress(addr) == (common.Address{})
}

func hasNFTTransfer(transfers []provider.Transfer) bool {
	for _, t := range transfers {
		if t.IsNFT {
			return true
		}
	}
	return false
}

func transferFlows(transfers []provider.Transfer) (in, out bool) {
	for _, t := range transfers {
		switch t.Direction {
		case provider.TransferIn:
			in = true
		case provider.TransferOut:
			out = true
		case provider.TransferSelf:
			in, out = true, true
		}
	}
	return in, out
}

// categorize buckets the transaction for filtering in the UI. The dapp name
// is the strongest signal, then NFT involvement, then the resolved type.
func categorize(tx provider.Transaction, txType portfolio.TxType) portfolio.Category {
	app := strings.ToLower(tx.AppName)
	if app != "" {
		switch {
		case matchApp(app, dexApps):
			return portfolio.CategoryDEX
		case matchApp(app, defiApps):
			return portfolio.CategoryDeFi
		case matchApp(app, domainApps):
			return portfolio.CategoryDomain
		}
	}

	if hasNFTTransfer(tx.Transfers) {
		return portfolio.CategoryNFT
	}

	switch txType {
	case portfolio.TxSwap:
		return portfolio.CategoryDEX
	case portfolio.TxStake, portfolio.TxUnstake, portfolio.TxDeposit,
		portfolio.TxWithdraw, portfolio.TxBorrow, portfolio.TxRepay,
		portfolio.TxClaim:
		return portfolio.CategoryDeFi
	case portfolio.TxNFTMint, portfolio.TxNFTBurn, portfolio.TxNFTTransfer:
		return portfolio.CategoryNFT
	case portfolio.TxSend, portfolio.TxReceive:
		return portfolio.CategoryTransfer
	default:
		return portfolio.CategoryOther
	}
}

// matchApp reports whether the lowercased app name matches any fragment.
// Fragments under four characters match exactly so that "ens" does not
// light up inside unrelated names like "opensea".
func matchApp(app string, fragments []string) bool {
	for _, frag := range fragments {
		if len(frag) < 4 {
			if app == frag {
				return true
			}
			continue
		}
		if strings.Contains(app, frag) {
			return true
		}
	}
	return false
}

// buildTags derives searchable tags from the resolved type, the provider's
// act list and the dapp name.
func buildTags(tx provider.Transaction, txType portfolio.TxType) []string {
	seen := make(map[string]struct{})
	tags := make([]string, 0, len(tx.Acts)+4)
	add := func(tag string) {
		if tag == "" {
			return
		}
		if _, ok := seen[tag]; ok {
			return
		}
		seen[tag] = struct{}{}
		tags = append(tags, tag)
	}

	add(string(txType))
	for _, act := range tx.Acts {
		add(slug.Make(act))
	}
	add(slug.Make(tx.AppName))

	if distinctSymbols(tx.Transfers) > 1 {
		add("multi-asset")
	}
	if len(tx.Acts) > 2 {
		add("complex")
	}
	if looksLikeSpam(tx, txType) {
		add("spam")
	}
	return tags
}

// looksLikeSpam flags unsolicited zero-value receives with no dapp
// attached, the shape airdropped junk tokens take.
func looksLikeSpam(tx provider.Transaction, txType portfolio.TxType) bool {
	if txType != portfolio.TxReceive || tx.AppName != "" {
		return false
	}
	for _, t := range tx.Transfers {
		if !t.ValueUSD.IsZero() {
			return false
		}
	}
	return len(tx.Transfers) > 0
}

func distinctSymbols(transfers []provider.Transfer) int {
	seen := make(map[string]struct{}, len(transfers))
	for _, t := range transfers {
		if t.Symbol == "" {
			continue
		}
		seen[strings.ToLower(t.Symbol)] = struct{}{}
	}
	return len(seen)
}

// describe produces the short human note shown next to the transaction.
func describe(tx provider.Transaction, txType portfolio.TxType) string {
	verb := noteVerb(txType)
	if tx.AppName != "" {
		return fmt.Sprintf("%s via %s", verb, tx.AppName)
	}
	return verb
}

func noteVerb(txType portfolio.TxType) string {
	switch txType {
	case portfolio.TxSwap:
		return "swap"
	case portfolio.TxSend:
		return "send"
	case portfolio.TxReceive:
		return "receive"
	case portfolio.TxApprove:
		return "token approval"
	case portfolio.TxStake:
		return "stake"
	case portfolio.TxUnstake:
		return "unstake"
	case portfolio.TxDeposit:
		return "deposit"
	case portfolio.TxWithdraw:
		return "withdrawal"
	case portfolio.TxBorrow:
		return "borrow"
	case portfolio.TxRepay:
		return "loan repayment"
	case portfolio.TxClaim:
		return "reward claim"
	case portfolio.TxMint:
		return "mint"
	case portfolio.TxBurn:
		return "burn"
	case portfolio.TxNFTMint:
		return "NFT mint"
	case portfolio.TxNFTBurn:
		return "NFT burn"
	case portfolio.TxNFTTransfer:
		return "NFT transfer"
	case portfolio.TxExecute:
		return "contract execution"
	default:
		return "transaction"
	}
}

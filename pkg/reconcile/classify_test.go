package reconcile

import (
	"testing"

	"github.com/noFAYZ/mappr-backend-new-sub000/pkg/portfolio"
	"github.com/noFAYZ/mappr-backend-new-sub000/pkg/provider"
)

const zeroAddr = "0x0000000000000000000000000000000000000000"

func TestClassifyType(t *testing.T) {
	out := provider.Transfer{Direction: provider.TransferOut, Symbol: "USDC", ValueUSD: dec("10")}
	in := provider.Transfer{Direction: provider.TransferIn, Symbol: "ETH", ValueUSD: dec("9")}
	nftIn := provider.Transfer{Direction: provider.TransferIn, IsNFT: true,
		Sender: "0x5555555555555555555555555555555555555555", Recipient: "0x6666666666666666666666666666666666666666"}
	nftFromZero := provider.Transfer{Direction: provider.TransferIn, IsNFT: true,
		Sender: zeroAddr, Recipient: "0x6666666666666666666666666666666666666666"}
	nftToZero := provider.Transfer{Direction: provider.TransferOut, IsNFT: true,
		Sender: "0x5555555555555555555555555555555555555555", Recipient: zeroAddr}

	tests := []struct {
		name string
		tx   provider.Transaction
		want portfolio.TxType
	}{
		{"explicit trade", provider.Transaction{OperationType: "trade"}, portfolio.TxSwap},
		{"explicit approve", provider.Transaction{OperationType: "approve"}, portfolio.TxApprove},
		{"explicit deploy maps to execute", provider.Transaction{OperationType: "deploy"}, portfolio.TxExecute},
		{"case insensitive operation", provider.Transaction{OperationType: "Trade"}, portfolio.TxSwap},
		{"mint with nft transfer", provider.Transaction{OperationType: "mint",
			Transfers: []provider.Transfer{nftFromZero}}, portfolio.TxNFTMint},
		{"burn with nft transfer", provider.Transaction{OperationType: "burn",
			Transfers: []provider.Transfer{nftToZero}}, portfolio.TxNFTBurn},
		{"send with nft transfer", provider.Transaction{OperationType: "send",
			Transfers: []provider.Transfer{nftIn}}, portfolio.TxNFTTransfer},
		{"inferred nft mint from zero sender", provider.Transaction{
			Transfers: []provider.Transfer{nftFromZero}}, portfolio.TxNFTMint},
		{"inferred nft burn to zero recipient", provider.Transaction{
			Transfers: []provider.Transfer{nftToZero}}, portfolio.TxNFTBurn},
		{"inferred nft transfer", provider.Transaction{
			Transfers: []provider.Transfer{nftIn}}, portfolio.TxNFTTransfer},
		{"inferred swap from two-way flow", provider.Transaction{
			Transfers: []provider.Transfer{out, in}}, portfolio.TxSwap},
		{"inferred send", provider.Transaction{
			Transfers: []provider.Transfer{out}}, portfolio.TxSend},
		{"inferred receive", provider.Transaction{
			Transfers: []provider.Transfer{in}}, portfolio.TxReceive},
		{"no signal at all", provider.Transaction{}, portfolio.TxOther},
		{"unknown operation falls back to flows", provider.Transaction{OperationType: "liquidate",
			Transfers: []provider.Transfer{out}}, portfolio.TxSend},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := classifyType(tt.tx); got != tt.want {
				t.Fatalf("classifyType = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestIsZeroAddress(t *testing.T) {
	tests := []struct {
		addr string
		want bool
	}{
		{zeroAddr, true},
		{"0x0000000000000000000000000000000000000001", false},
		{"0x5555555555555555555555555555555555555555", false},
		{"", false},
		// Malformed input must not read as the zero address even though
		// HexToAddress would map it there.
		{"not-an-address", false},
		{"0xzzzz", false},
	}
	for _, tt := range tests {
		if got := isZeroAddress(tt.addr); got != tt.want {
			t.Fatalf("isZeroAddress(%q) = %v, want %v", tt.addr, got, tt.want)
		}
	}
}

func TestCategorize(t *testing.T) {
	nft := provider.Transfer{Direction: provider.TransferIn, IsNFT: true}

	tests := []struct {
		name   string
		tx     provider.Transaction
		txType portfolio.TxType
		want   portfolio.Category
	}{
		{"dex app", provider.Transaction{AppName: "Uniswap V3"}, portfolio.TxSwap, portfolio.CategoryDEX},
		{"defi app", provider.Transaction{AppName: "Aave V3"}, portfolio.TxDeposit, portfolio.CategoryDeFi},
		{"domain app", provider.Transaction{AppName: "Unstoppable Domains"}, portfolio.TxOther, portfolio.CategoryDomain},
		{"app wins over nft transfers", provider.Transaction{AppName: "CowSwap",
			Transfers: []provider.Transfer{nft}}, portfolio.TxSwap, portfolio.CategoryDEX},
		{"nft transfers without app", provider.Transaction{
			Transfers: []provider.Transfer{nft}}, portfolio.TxNFTTransfer, portfolio.CategoryNFT},
		{"opensea is not a domain app", provider.Transaction{AppName: "OpenSea",
			Transfers: []provider.Transfer{nft}}, portfolio.TxNFTTransfer, portfolio.CategoryNFT},
		{"exact short fragment still matches", provider.Transaction{AppName: "ENS"},
			portfolio.TxOther, portfolio.CategoryDomain},
		{"swap type without app", provider.Transaction{}, portfolio.TxSwap, portfolio.CategoryDEX},
		{"stake type without app", provider.Transaction{}, portfolio.TxStake, portfolio.CategoryDeFi},
		{"claim type without app", provider.Transaction{}, portfolio.TxClaim, portfolio.CategoryDeFi},
		{"plain send", provider.Transaction{}, portfolio.TxSend, portfolio.CategoryTransfer},
		{"approve is other", provider.Transaction{}, portfolio.TxApprove, portfolio.CategoryOther},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := categorize(tt.tx, tt.txType); got != tt.want {
				t.Fatalf("categorize = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestBuildTags(t *testing.T) {
	tx := provider.Transaction{
		AppName: "Uniswap V3",
		Acts:    []string{"trade", "approve", "send"},
		Transfers: []provider.Transfer{
			{Direction: provider.TransferOut, Symbol: "USDC", ValueUSD: dec("1000")},
			{Direction: provider.TransferIn, Symbol: "ETH", ValueUSD: dec("998.50")},
		},
	}

	tags := buildTags(tx, portfolio.TxSwap)
	for _, want := range []string{"swap", "trade", "approve", "send", "uniswap-v3", "multi-asset", "complex"} {
		if !containsTag(tags, want) {
			t.Fatalf("tags = %v, missing %q", tags, want)
		}
	}
	if containsTag(tags, "spam") {
		t.Fatalf("tags = %v, spam must not be present", tags)
	}

	seen := make(map[string]int)
	for _, tag := range tags {
		seen[tag]++
		if seen[tag] > 1 {
			t.Fatalf("tags = %v, %q duplicated", tags, tag)
		}
	}
}

func TestBuildTags_FlagsAirdropSpam(t *testing.T) {
	tx := provider.Transaction{
		Transfers: []provider.Transfer{
			{Direction: provider.TransferIn, Symbol: "FREE-MONEY", ValueUSD: dec("0")},
		},
	}
	tags := buildTags(tx, portfolio.TxReceive)
	if !containsTag(tags, "spam") {
		t.Fatalf("tags = %v, want spam", tags)
	}

	// The same shape with real value is an ordinary receive.
	tx.Transfers[0].ValueUSD = dec("12.50")
	tags = buildTags(tx, portfolio.TxReceive)
	if containsTag(tags, "spam") {
		t.Fatalf("tags = %v, spam must not be present on a valued receive", tags)
	}
}

func TestDescribe(t *testing.T) {
	withApp := provider.Transaction{AppName: "Lido"}
	if got := describe(withApp, portfolio.TxStake); got != "stake via Lido" {
		t.Fatalf("describe = %q, want %q", got, "stake via Lido")
	}
	if got := describe(provider.Transaction{}, portfolio.TxReceive); got != "receive" {
		t.Fatalf("describe = %q, want %q", got, "receive")
	}
	if got := describe(provider.Transaction{}, portfolio.TxNFTMint); got != "NFT mint" {
		t.Fatalf("describe = %q, want %q", got, "NFT mint")
	}
}

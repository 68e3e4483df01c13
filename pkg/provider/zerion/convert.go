package zerion

import (
	"github.com/shopspring/decimal"

	"github.com/noFAYZ/mappr-backend-new-sub000/pkg/provider"
)

func decimalFromPtr(v *float64) decimal.Decimal {
	if v == nil {
		return decimal.Zero
	}
	return decimal.NewFromFloat(*v)
}

func toPortfolio(attrs portfolioAttributes) *provider.Portfolio {
	p := &provider.Portfolio{
		TotalUSD:         decimal.NewFromFloat(attrs.Total.Positions),
		WalletUSD:        decimal.NewFromFloat(attrs.ByType["wallet"]),
		DepositedUSD:     decimal.NewFromFloat(attrs.ByType["deposited"]),
		BorrowedUSD:      decimal.NewFromFloat(attrs.ByType["borrowed"]),
		LockedUSD:        decimal.NewFromFloat(attrs.ByType["locked"]),
		StakedUSD:        decimal.NewFromFloat(attrs.ByType["staked"]),
		Change24hPercent: decimalFromPtr(attrs.Changes.Percent1d),
	}
	if len(attrs.ByChain) > 0 {
		p.ChainTotals = make(map[string]decimal.Decimal, len(attrs.ByChain))
		for chain, usd := range attrs.ByChain {
			p.ChainTotals[chain] = decimal.NewFromFloat(usd)
		}
	}
	return p
}

func toPositions(data []positionData) []provider.Position {
	positions := make([]provider.Position, 0, len(data))
	for _, d := range data {
		positions = append(positions, toPosition(d))
	}
	return positions
}

func toPosition(d positionData) provider.Position {
	chainID := d.Relationships.Chain.Data.ID
	pos := provider.Position{
		Kind:             positionKind(d.Type),
		ID:               d.ID,
		ChainID:          chainID,
		Protocol:         d.Attributes.Protocol,
		PositionType:     d.Attributes.PositionType,
		Quantity:         parseQuantity(d.Attributes.Quantity),
		QuantityFloat:    parseQuantityFloat(d.Attributes.Quantity),
		ValueUSD:         decimalFromPtr(d.Attributes.Value),
		PriceUSD:         decimalFromPtr(d.Attributes.Price),
		Change24hPercent: decimalFromPtr(d.Attributes.Changes.Percent1d),
		IsTrash:          d.Attributes.Flags.IsTrash,
	}
	if fi := d.Attributes.FungibleInfo; fi != nil {
		pos.Fungible = toFungible(fi, chainID)
	}
	return pos
}

func positionKind(wireType string) provider.PositionKind {
	if wireType == "positions" {
		return provider.KindPosition
	}
	return provider.PositionKind(wireType)
}

// parseQuantity returns the raw quantity in base units.
func parseQuantity(q quantity) decimal.Decimal {
	if q.Int != "" {
		if d, err := decimal.NewFromString(q.Int); err == nil {
			return d
		}
	}
	return decimal.NewFromFloat(q.Float)
}

// parseQuantityFloat returns the human-readable quantity. The numeric string
// is preferred over the float to keep full precision.
func parseQuantityFloat(q quantity) decimal.Decimal {
	if q.Numeric != "" {
		if d, err := decimal.NewFromString(q.Numeric); err == nil {
			return d
		}
	}
	return decimal.NewFromFloat(q.Float)
}

func toFungible(fi *fungibleInfo, chainID string) *provider.Fungible {
	f := &provider.Fungible{
		Symbol:   fi.Symbol,
		Name:     fi.Name,
		Decimals: 18,
		Verified: fi.Flags.Verified,
	}
	for _, impl := range fi.Implementations {
		if impl.ChainID != chainID {
			continue
		}
		if impl.Address != nil {
			f.ContractAddress = *impl.Address
		}
		if impl.Decimals > 0 {
			f.Decimals = impl.Decimals
		}
		break
	}
	return f
}

func toTransactions(data []transactionData) []provider.Transaction {
	txs := make([]provider.Transaction, 0, len(data))
	for _, d := range data {
		txs = append(txs, toTransaction(d))
	}
	return txs
}

func toTransaction(d transactionData) provider.Transaction {
	tx := provider.Transaction{
		Kind:          d.Type,
		Hash:          d.Attributes.Hash,
		ChainID:       d.Relationships.Chain.Data.ID,
		OperationType: d.Attributes.OperationType,
		Status:        d.Attributes.Status,
		MinedAt:       d.Attributes.MinedAt,
		From:          d.Attributes.SentFrom,
		To:            d.Attributes.SentTo,
	}
	if d.Attributes.Fee != nil {
		tx.FeeUSD = decimalFromPtr(d.Attributes.Fee.Value)
	}
	for _, t := range d.Attributes.Transfers {
		tx.Transfers = append(tx.Transfers, toTransfer(t))
	}
	for _, a := range d.Attributes.Acts {
		if a.Type != "" {
			tx.Acts = append(tx.Acts, a.Type)
		}
	}
	if d.Attributes.AppMetadata != nil {
		tx.AppName = d.Attributes.AppMetadata.Name
	}
	return tx
}

func toTransfer(t txTransfer) provider.Transfer {
	tr := provider.Transfer{
		Direction: provider.TransferDirection(t.Direction),
		Quantity:  parseQuantityFloat(t.Quantity),
		ValueUSD:  decimalFromPtr(t.Value),
		IsNFT:     t.NFTInfo != nil,
		Sender:    t.Sender,
		Recipient: t.Recipient,
	}
	if t.FungibleInfo != nil {
		tr.Symbol = t.FungibleInfo.Symbol
	}
	return tr
}

func toNFTs(data []nftPositionData) []provider.NFT {
	nfts := make([]provider.NFT, 0, len(data))
	for _, d := range data {
		nfts = append(nfts, toNFT(d))
	}
	return nfts
}

func toNFT(d nftPositionData) provider.NFT {
	info := d.Attributes.NFTInfo
	nft := provider.NFT{
		ContractAddress: info.ContractAddress,
		TokenID:         info.TokenID,
		ChainID:         d.Relationships.Chain.Data.ID,
		Name:            info.Name,
		EstimatedValue:  decimalFromPtr(d.Attributes.Value),
		Standard:        info.Interface,
		SpamScore:       spamScore(info.Flags),
		IsNSFW:          info.Flags.IsNSFW,
	}
	if info.Content != nil {
		if info.Content.Detail != nil {
			nft.ImageURL = info.Content.Detail.URL
		} else if info.Content.Preview != nil {
			nft.ImageURL = info.Content.Preview.URL
		}
	}
	if ci := d.Attributes.CollectionInfo; ci != nil {
		nft.CollectionName = ci.Name
		nft.Description = ci.Description
		nft.FloorPrice = decimalFromPtr(ci.FloorPrice)
	}
	return nft
}

func spamScore(flags nftFlags) int {
	if flags.SpamScore != nil {
		return *flags.SpamScore
	}
	if flags.IsSpam {
		return 100
	}
	return 0
}

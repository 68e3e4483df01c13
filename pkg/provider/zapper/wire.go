package zapper

import (
	"encoding/json"

	"github.com/shopspring/decimal"

	"github.com/noFAYZ/mappr-backend-new-sub000/pkg/provider"
)

type graphQLRequest struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables,omitempty"`
}

type graphQLError struct {
	Message string `json:"message"`
}

type graphQLResponse struct {
	Data   json.RawMessage `json:"data"`
	Errors []graphQLError  `json:"errors,omitempty"`
}

type portfolioV2Data struct {
	PortfolioV2 struct {
		AppBalances appBalances `json:"appBalances"`
	} `json:"portfolioV2"`
}

type appBalances struct {
	TotalBalanceUSD float64       `json:"totalBalanceUSD"`
	ByApp           appConnection `json:"byApp"`
}

type appConnection struct {
	Edges []appEdge `json:"edges"`
}

type appEdge struct {
	Node appBalanceNode `json:"node"`
}

type appBalanceNode struct {
	BalanceUSD float64  `json:"balanceUSD"`
	App        appInfo  `json:"app"`
	Network    *network `json:"network"`
}

type appInfo struct {
	Slug        string       `json:"slug"`
	DisplayName string       `json:"displayName"`
	Category    *appCategory `json:"category"`
}

type appCategory struct {
	Name string `json:"name"`
}

type network struct {
	Slug string `json:"slug"`
}

func toDeFiPositions(doc portfolioV2Data) []provider.DeFiPosition {
	edges := doc.PortfolioV2.AppBalances.ByApp.Edges
	out := make([]provider.DeFiPosition, 0, len(edges))
	for _, edge := range edges {
		node := edge.Node
		if node.App.Slug == "" {
			continue
		}
		pos := provider.DeFiPosition{
			AppID:      node.App.Slug,
			AppName:    node.App.DisplayName,
			BalanceUSD: decimal.NewFromFloat(node.BalanceUSD),
		}
		if node.Network != nil {
			pos.ChainID = node.Network.Slug
		}
		if node.App.Category != nil {
			pos.Label = node.App.Category.Name
		}
		out = append(out, pos)
	}
	return out
}

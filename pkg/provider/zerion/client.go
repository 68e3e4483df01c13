// Package zerion implements the primary portfolio provider client. It speaks
// the JSON:API wallet endpoints (portfolio, positions, transactions, NFT
// positions) with basic-auth API keys.
package zerion

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	apperrors "github.com/noFAYZ/mappr-backend-new-sub000/pkg/app/errors"
	"github.com/noFAYZ/mappr-backend-new-sub000/pkg/config"
	"github.com/noFAYZ/mappr-backend-new-sub000/pkg/provider"
)

const (
	defaultBaseURL = "https://api.zerion.io"
	// maxPages bounds how many result pages a single sync will walk.
	maxPages = 10
	// recentWindow is how far back the fallback transaction strategy reaches.
	recentWindow = 30 * 24 * time.Hour
)

// Client talks to the Zerion wallet API. A client without an API key is
// disabled: every call fails terminally and health reports not configured.
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
	caller  *provider.Caller
	logger  *zap.Logger
}

// New builds a client from provider config.
func New(cfg config.ProviderConfig, logger *zap.Logger) *Client {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  cfg.APIKey,
		http:    &http.Client{},
		caller:  provider.NewCaller("zerion", cfg, logger),
		logger:  logger.With(zap.String("provider", "zerion")),
	}
}

// Name returns the provider name.
func (c *Client) Name() string { return "zerion" }

// Enabled reports whether the client has an API key to call with.
func (c *Client) Enabled() bool { return c.apiKey != "" }

// Health reports the provider's current availability.
func (c *Client) Health(ctx context.Context) provider.Health {
	if !c.Enabled() {
		return provider.Health{Healthy: false, Message: "not configured", Timestamp: time.Now().UTC()}
	}
	return c.caller.Health()
}

// Stats returns a snapshot of recent call activity.
func (c *Client) Stats() provider.Stats { return c.caller.Stats() }

// GetPortfolio fetches the wallet's aggregate valuation.
func (c *Client) GetPortfolio(ctx context.Context, address string) (*provider.Portfolio, error) {
	q := url.Values{}
	q.Set("currency", "usd")

	var doc portfolioDocument
	if err := c.get(ctx, "portfolio", c.walletPath(address, "portfolio"), q, &doc); err != nil {
		return nil, err
	}
	return toPortfolio(doc.Data.Attributes), nil
}

// GetPositions fetches all fungible positions including DeFi holdings.
// Trash filtering is left to reconciliation so drops can be counted.
func (c *Client) GetPositions(ctx context.Context, address string) ([]provider.Position, error) {
	q := url.Values{}
	q.Set("currency", "usd")
	q.Set("filter[positions]", "all")
	q.Set("filter[trash]", "no_filter")
	q.Set("sort", "value")

	var doc positionsDocument
	if err := c.get(ctx, "positions", c.walletPath(address, "positions"), q, &doc); err != nil {
		return nil, err
	}
	return toPositions(doc.Data), nil
}

// txStrategy is one named way of bounding the transaction listing.
type txStrategy struct {
	name  string
	query func(q provider.TxQuery) url.Values
}

// txStrategies are tried in order; the first applicable one that succeeds
// wins. Incremental picks up where the stored history ends, recentWindow is
// the cold-start fallback.
func (c *Client) txStrategies() []txStrategy {
	return []txStrategy{
		{
			name: "incremental",
			query: func(q provider.TxQuery) url.Values {
				v := baseTxQuery(q.Limit)
				v.Set("filter[min_mined_at]", strconv.FormatInt(q.Since.UnixMilli(), 10))
				return v
			},
		},
		{
			name: "recentWindow",
			query: func(q provider.TxQuery) url.Values {
				v := baseTxQuery(q.Limit)
				v.Set("filter[min_mined_at]", strconv.FormatInt(time.Now().Add(-recentWindow).UnixMilli(), 10))
				return v
			},
		},
	}
}

func baseTxQuery(limit int) url.Values {
	if limit <= 0 {
		limit = 100
	}
	v := url.Values{}
	v.Set("currency", "usd")
	v.Set("page[size]", strconv.Itoa(limit))
	return v
}

// GetTransactions fetches the wallet's transaction history, walking result
// pages up to a fixed bound.
func (c *Client) GetTransactions(ctx context.Context, address string, q provider.TxQuery) ([]provider.Transaction, error) {
	var lastErr error
	for _, strat := range c.txStrategies() {
		if strat.name == "incremental" && q.Since == nil {
			continue
		}

		txs, err := c.listTransactions(ctx, c.walletPath(address, "transactions"), strat.query(q))
		if err != nil {
			lastErr = err
			c.logger.Warn("Transaction fetch strategy failed",
				zap.String("strategy", strat.name),
				zap.Error(err))
			continue
		}
		return txs, nil
	}

	if lastErr == nil {
		lastErr = apperrors.ProviderError(nil, "no applicable transaction fetch strategy")
	}
	return nil, lastErr
}

func (c *Client) listTransactions(ctx context.Context, path string, query url.Values) ([]provider.Transaction, error) {
	var txs []provider.Transaction

	next := path + "?" + query.Encode()
	for page := 0; next != "" && page < maxPages; page++ {
		var doc transactionsDocument
		if err := c.getURL(ctx, "transactions", next, &doc); err != nil {
			return nil, err
		}
		txs = append(txs, toTransactions(doc.Data)...)
		next = c.relativeURL(doc.Links.Next)
	}
	return txs, nil
}

// GetNFTs fetches the wallet's NFT positions, walking result pages up to a
// fixed bound.
func (c *Client) GetNFTs(ctx context.Context, address string) ([]provider.NFT, error) {
	q := url.Values{}
	q.Set("currency", "usd")
	q.Set("page[size]", "100")

	var nfts []provider.NFT
	next := c.walletPath(address, "nft-positions") + "?" + q.Encode()
	for page := 0; next != "" && page < maxPages; page++ {
		var doc nftPositionsDocument
		if err := c.getURL(ctx, "nft-positions", next, &doc); err != nil {
			return nil, err
		}
		nfts = append(nfts, toNFTs(doc.Data)...)
		next = c.relativeURL(doc.Links.Next)
	}
	return nfts, nil
}

func (c *Client) walletPath(address, segment string) string {
	return fmt.Sprintf("/v1/wallets/%s/%s/", url.PathEscape(strings.ToLower(address)), segment)
}

// relativeURL strips the base from a pagination link so it can be re-issued
// through the same pipeline. Links pointing elsewhere are ignored.
func (c *Client) relativeURL(link string) string {
	if link == "" {
		return ""
	}
	if strings.HasPrefix(link, c.baseURL) {
		return strings.TrimPrefix(link, c.baseURL)
	}
	if strings.HasPrefix(link, "/") {
		return link
	}
	return ""
}

func (c *Client) get(ctx context.Context, operation, path string, query url.Values, out any) error {
	target := path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}
	return c.getURL(ctx, operation, target, out)
}

func (c *Client) getURL(ctx context.Context, operation, target string, out any) error {
	if !c.Enabled() {
		return apperrors.ProviderTerminalError(nil, "zerion api key not configured")
	}

	return c.caller.Do(ctx, operation, func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+target, nil)
		if err != nil {
			return err
		}
		req.SetBasicAuth(c.apiKey, "")
		req.Header.Set("Accept", "application/json")

		resp, err := c.http.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
			return &provider.HTTPError{Status: resp.StatusCode, Body: strings.TrimSpace(string(body))}
		}

		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return apperrors.ParseError(err, fmt.Sprintf("zerion %s payload failed to decode", operation))
		}
		return nil
	})
}

// Package zapper implements the secondary portfolio provider client. It
// queries the GraphQL endpoint for app-level DeFi balances, which the
// primary provider only reports as raw positions.
package zapper

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"go.uber.org/zap"

	apperrors "github.com/noFAYZ/mappr-backend-new-sub000/pkg/app/errors"
	"github.com/noFAYZ/mappr-backend-new-sub000/pkg/config"
	"github.com/noFAYZ/mappr-backend-new-sub000/pkg/provider"
)

const (
	defaultBaseURL = "https://public.zapper.xyz/graphql"

	// maxApps caps the app breakdown per wallet. Wallets touching more
	// protocols than this are vanishingly rare.
	maxApps = 50
)

const appBalancesQuery = `query WalletAppBalances($addresses: [Address!]!, $first: Int!) {
  portfolioV2(addresses: $addresses) {
    appBalances {
      totalBalanceUSD
      byApp(first: $first) {
        edges {
          node {
            balanceUSD
            app {
              slug
              displayName
              category { name }
            }
            network { slug }
          }
        }
      }
    }
  }
}`

// Client talks to the app-balance GraphQL endpoint through the shared
// provider call pipeline.
type Client struct {
	endpoint string
	apiKey   string
	http     *http.Client
	caller   *provider.Caller
	logger   *zap.Logger
}

// New builds a client from provider settings. A client without an API key
// is disabled: it reports unhealthy and fails all calls without dialing.
func New(cfg config.ProviderConfig, logger *zap.Logger) *Client {
	endpoint := cfg.BaseURL
	if endpoint == "" {
		endpoint = defaultBaseURL
	}
	return &Client{
		endpoint: strings.TrimRight(endpoint, "/"),
		apiKey:   cfg.APIKey,
		http:     &http.Client{},
		caller:   provider.NewCaller("zapper", cfg, logger),
		logger:   logger.With(zap.String("provider", "zapper")),
	}
}

// Name identifies the provider in metrics and health reports.
func (c *Client) Name() string { return "zapper" }

// Enabled reports whether the client is configured with an API key.
func (c *Client) Enabled() bool { return c.apiKey != "" }

// Health reports provider availability for the service health endpoint.
func (c *Client) Health(ctx context.Context) provider.Health {
	if !c.Enabled() {
		return provider.Health{Healthy: false, Message: "not configured"}
	}
	return c.caller.Health(ctx)
}

// Stats returns rolling call statistics.
func (c *Client) Stats() provider.Stats { return c.caller.Stats() }

// GetAppBalances returns the wallet's DeFi app balances, one entry per
// app and network pair.
func (c *Client) GetAppBalances(ctx context.Context, address string) ([]provider.DeFiPosition, error) {
	req := graphQLRequest{
		Query: appBalancesQuery,
		Variables: map[string]any{
			"addresses": []string{strings.ToLower(address)},
			"first":     maxApps,
		},
	}

	var doc portfolioV2Data
	if err := c.post(ctx, "app-balances", req, &doc); err != nil {
		return nil, err
	}
	return toDeFiPositions(doc), nil
}

func (c *Client) post(ctx context.Context, operation string, payload graphQLRequest, out any) error {
	if !c.Enabled() {
		return apperrors.ProviderTerminalError(nil, "zapper api key not configured")
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s query: %w", operation, err)
	}

	return c.caller.Do(ctx, operation, func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
		if err != nil {
			return fmt.Errorf("create %s request: %w", operation, err)
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Accept", "application/json")
		req.Header.Set("x-zapper-api-key", c.apiKey)

		resp, err := c.http.Do(req)
		if err != nil {
			return fmt.Errorf("call %s: %w", operation, err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			b, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
			return &provider.HTTPError{Status: resp.StatusCode, Body: strings.TrimSpace(string(b))}
		}

		var envelope graphQLResponse
		if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
			return apperrors.ParseError(err, fmt.Sprintf("zapper %s payload failed to decode", operation))
		}
		// GraphQL transports query rejections inside a 200 response.
		if len(envelope.Errors) > 0 {
			return apperrors.ProviderTerminalError(nil, fmt.Sprintf("zapper rejected %s query: %s", operation, envelope.Errors[0].Message))
		}
		if err := json.Unmarshal(envelope.Data, out); err != nil {
			return apperrors.ParseError(err, fmt.Sprintf("zapper %s payload failed to decode", operation))
		}
		return nil
	})
}

package zerion

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	apperrors "github.com/noFAYZ/mappr-backend-new-sub000/pkg/app/errors"
	"github.com/noFAYZ/mappr-backend-new-sub000/pkg/config"
	"github.com/noFAYZ/mappr-backend-new-sub000/pkg/provider"
)

func testClient(t *testing.T, handler http.Handler) (*Client, *httptest.Server) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	cfg := config.ProviderConfig{
		APIKey:           "zk_test_key",
		BaseURL:          server.URL,
		Timeout:          time.Second,
		MaxRetries:       2,
		RetryBaseDelay:   time.Millisecond,
		RetryMaxDelay:    5 * time.Millisecond,
		BreakerThreshold: 10,
		BreakerCooldown:  time.Minute,
		MaxConcurrency:   2,
	}
	return New(cfg, zap.NewNop()), server
}

const portfolioBody = `{
  "data": {
    "type": "portfolio",
    "id": "0xabc",
    "attributes": {
      "positions_distribution_by_type": {
        "wallet": 750.25,
        "deposited": 200.0,
        "borrowed": 50.0,
        "locked": 0,
        "staked": 100.25
      },
      "positions_distribution_by_chain": {
        "ethereum": 900.5,
        "polygon": 100.0
      },
      "total": {"positions": 1000.5},
      "changes": {"absolute_1d": 12.5, "percent_1d": 1.26}
    }
  }
}`

func TestGetPortfolio_ParsesTotals(t *testing.T) {
	var gotAuth string
	client, _ := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		if r.URL.Path != "/v1/wallets/0xabc/portfolio/" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		if r.URL.Query().Get("currency") != "usd" {
			t.Errorf("expected currency=usd, got %s", r.URL.RawQuery)
		}
		fmt.Fprint(w, portfolioBody)
	}))

	p, err := client.GetPortfolio(context.Background(), "0xABC")
	if err != nil {
		t.Fatalf("GetPortfolio() failed: %v", err)
	}

	wantAuth := "Basic " + base64.StdEncoding.EncodeToString([]byte("zk_test_key:"))
	if gotAuth != wantAuth {
		t.Errorf("expected basic auth header %q, got %q", wantAuth, gotAuth)
	}

	if !p.TotalUSD.Equal(decimal.RequireFromString("1000.5")) {
		t.Errorf("unexpected total: %s", p.TotalUSD)
	}
	if !p.WalletUSD.Equal(decimal.RequireFromString("750.25")) {
		t.Errorf("unexpected wallet subtotal: %s", p.WalletUSD)
	}
	if !p.StakedUSD.Equal(decimal.RequireFromString("100.25")) {
		t.Errorf("unexpected staked subtotal: %s", p.StakedUSD)
	}
	if !p.ChainTotals["ethereum"].Equal(decimal.RequireFromString("900.5")) {
		t.Errorf("unexpected ethereum chain total: %s", p.ChainTotals["ethereum"])
	}
	if !p.Change24hPercent.Equal(decimal.RequireFromString("1.26")) {
		t.Errorf("unexpected 24h change: %s", p.Change24hPercent)
	}
}

const positionsBody = `{
  "data": [
    {
      "type": "positions",
      "id": "eth-asset-position",
      "attributes": {
        "protocol": null,
        "position_type": "wallet",
        "quantity": {"int": "1500000000000000000", "decimals": 18, "float": 1.5, "numeric": "1.5"},
        "value": 4500.75,
        "price": 3000.5,
        "changes": {"percent_1d": -2.4},
        "fungible_info": {
          "name": "Ethereum",
          "symbol": "ETH",
          "flags": {"verified": true},
          "implementations": [
            {"chain_id": "ethereum", "address": null, "decimals": 18},
            {"chain_id": "polygon", "address": "0x7ceb23fd6bc0add59e62ac25578270cff1b9f619", "decimals": 18}
          ]
        },
        "flags": {"displayable": true, "is_trash": false}
      },
      "relationships": {"chain": {"data": {"type": "chains", "id": "ethereum"}}}
    },
    {
      "type": "positions",
      "id": "junk-token",
      "attributes": {
        "position_type": "wallet",
        "quantity": {"float": 99999, "numeric": "99999"},
        "value": 0,
        "changes": {},
        "fungible_info": {
          "name": "Free Airdrop",
          "symbol": "SCAM",
          "flags": {"verified": false},
          "implementations": [{"chain_id": "ethereum", "address": "0xdead", "decimals": 18}]
        },
        "flags": {"displayable": false, "is_trash": true}
      },
      "relationships": {"chain": {"data": {"type": "chains", "id": "ethereum"}}}
    }
  ]
}`

func TestGetPositions_ParsesFungibles(t *testing.T) {
	client, _ := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("filter[positions]") != "all" {
			t.Errorf("expected filter[positions]=all, got %s", r.URL.RawQuery)
		}
		if q.Get("filter[trash]") != "no_filter" {
			t.Errorf("expected filter[trash]=no_filter, got %s", r.URL.RawQuery)
		}
		fmt.Fprint(w, positionsBody)
	}))

	positions, err := client.GetPositions(context.Background(), "0xabc")
	if err != nil {
		t.Fatalf("GetPositions() failed: %v", err)
	}
	if len(positions) != 2 {
		t.Fatalf("expected 2 positions, got %d", len(positions))
	}

	eth := positions[0]
	if eth.Kind != provider.KindPosition {
		t.Errorf("expected position kind, got %s", eth.Kind)
	}
	if eth.ChainID != "ethereum" {
		t.Errorf("expected ethereum chain, got %s", eth.ChainID)
	}
	if eth.Fungible == nil {
		t.Fatal("expected fungible info")
	}
	if eth.Fungible.Symbol != "ETH" || !eth.Fungible.Verified {
		t.Errorf("unexpected fungible: %+v", eth.Fungible)
	}
	// The ethereum implementation has no contract address: native asset
	if eth.Fungible.ContractAddress != "" {
		t.Errorf("expected native asset, got contract %s", eth.Fungible.ContractAddress)
	}
	if !eth.QuantityFloat.Equal(decimal.RequireFromString("1.5")) {
		t.Errorf("unexpected quantity: %s", eth.QuantityFloat)
	}
	if !eth.ValueUSD.Equal(decimal.RequireFromString("4500.75")) {
		t.Errorf("unexpected value: %s", eth.ValueUSD)
	}

	junk := positions[1]
	if !junk.IsTrash {
		t.Error("expected trash flag on junk token")
	}
	if junk.Fungible == nil || junk.Fungible.ContractAddress != "0xdead" {
		t.Errorf("expected contract asset, got %+v", junk.Fungible)
	}
}

func txBody(hash string, next string) string {
	return fmt.Sprintf(`{
  "links": {"next": %q},
  "data": [
    {
      "type": "transactions",
      "id": "tx-%s",
      "attributes": {
        "operation_type": "trade",
        "hash": %q,
        "mined_at": "2025-06-01T12:00:00Z",
        "sent_from": "0xsender",
        "sent_to": "0xrecipient",
        "status": "confirmed",
        "fee": {"value": 1.25},
        "transfers": [
          {
            "fungible_info": {"name": "USD Coin", "symbol": "USDC", "flags": {"verified": true}},
            "direction": "out",
            "quantity": {"float": 100, "numeric": "100"},
            "value": 100.0,
            "sender": "0xsender",
            "recipient": "0xpool"
          }
        ],
        "acts": [{"type": "trade"}],
        "application_metadata": {"name": "Uniswap V3"}
      },
      "relationships": {"chain": {"data": {"type": "chains", "id": "ethereum"}}}
    }
  ]
}`, next, hash, hash)
}

func TestGetTransactions_IncrementalStrategy(t *testing.T) {
	since := time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC)

	client, _ := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got := r.URL.Query().Get("filter[min_mined_at]")
		want := strconv.FormatInt(since.UnixMilli(), 10)
		if got != want {
			t.Errorf("expected min_mined_at %s, got %s", want, got)
		}
		fmt.Fprint(w, txBody("0xaaa", ""))
	}))

	txs, err := client.GetTransactions(context.Background(), "0xabc", provider.TxQuery{Since: &since, Limit: 50})
	if err != nil {
		t.Fatalf("GetTransactions() failed: %v", err)
	}
	if len(txs) != 1 {
		t.Fatalf("expected 1 transaction, got %d", len(txs))
	}

	tx := txs[0]
	if tx.Hash != "0xaaa" || tx.OperationType != "trade" || tx.AppName != "Uniswap V3" {
		t.Errorf("unexpected transaction: %+v", tx)
	}
	if len(tx.Transfers) != 1 || tx.Transfers[0].Symbol != "USDC" {
		t.Errorf("unexpected transfers: %+v", tx.Transfers)
	}
	if len(tx.Acts) != 1 || tx.Acts[0] != "trade" {
		t.Errorf("unexpected acts: %+v", tx.Acts)
	}
	if !tx.FeeUSD.Equal(decimal.RequireFromString("1.25")) {
		t.Errorf("unexpected fee: %s", tx.FeeUSD)
	}
}

func TestGetTransactions_FallsBackToRecentWindow(t *testing.T) {
	since := time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC)
	sinceMillis := strconv.FormatInt(since.UnixMilli(), 10)

	var incrementalCalls, windowCalls int
	client, _ := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("filter[min_mined_at]") == sinceMillis {
			incrementalCalls++
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		windowCalls++
		fmt.Fprint(w, txBody("0xbbb", ""))
	}))

	txs, err := client.GetTransactions(context.Background(), "0xabc", provider.TxQuery{Since: &since})
	if err != nil {
		t.Fatalf("GetTransactions() failed: %v", err)
	}
	if len(txs) != 1 || txs[0].Hash != "0xbbb" {
		t.Fatalf("expected fallback result, got %+v", txs)
	}
	if incrementalCalls == 0 {
		t.Error("expected incremental strategy to be attempted first")
	}
	if windowCalls != 1 {
		t.Errorf("expected 1 recentWindow call, got %d", windowCalls)
	}
}

func TestGetTransactions_WithoutSinceSkipsIncremental(t *testing.T) {
	calls := 0
	client, _ := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		fmt.Fprint(w, txBody("0xccc", ""))
	}))

	txs, err := client.GetTransactions(context.Background(), "0xabc", provider.TxQuery{})
	if err != nil {
		t.Fatalf("GetTransactions() failed: %v", err)
	}
	if calls != 1 {
		t.Fatalf("expected a single recentWindow call, got %d", calls)
	}
	if len(txs) != 1 {
		t.Fatalf("expected 1 transaction, got %d", len(txs))
	}
}

func TestGetTransactions_FollowsPaginationLinks(t *testing.T) {
	var server *httptest.Server
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("page[after]") == "cursor-2" {
			fmt.Fprint(w, txBody("0xpage2", ""))
			return
		}
		next := server.URL + "/v1/wallets/0xabc/transactions/?currency=usd&page[after]=cursor-2"
		fmt.Fprint(w, txBody("0xpage1", next))
	})

	client, srv := testClient(t, handler)
	server = srv

	txs, err := client.GetTransactions(context.Background(), "0xabc", provider.TxQuery{})
	if err != nil {
		t.Fatalf("GetTransactions() failed: %v", err)
	}
	if len(txs) != 2 {
		t.Fatalf("expected 2 transactions across pages, got %d", len(txs))
	}
	if txs[0].Hash != "0xpage1" || txs[1].Hash != "0xpage2" {
		t.Errorf("unexpected page order: %s, %s", txs[0].Hash, txs[1].Hash)
	}
}

const nftBody = `{
  "links": {},
  "data": [
    {
      "type": "nft_positions",
      "attributes": {
        "value": 2500.0,
        "nft_info": {
          "contract_address": "0xbc4ca0eda7647a8ab7c2061c2e118a18a936f13d",
          "token_id": "7495",
          "name": "Bored Ape #7495",
          "interface": "erc721",
          "content": {"preview": {"url": "https://img/preview.png"}, "detail": {"url": "https://img/detail.png"}},
          "flags": {"is_spam": false}
        },
        "collection_info": {"name": "Bored Ape Yacht Club", "description": "10k apes", "floor_price": 2100.5}
      },
      "relationships": {"chain": {"data": {"type": "chains", "id": "ethereum"}}}
    },
    {
      "type": "nft_positions",
      "attributes": {
        "value": 0,
        "nft_info": {
          "contract_address": "0xspamspamspamspamspamspamspamspamspamspam",
          "token_id": "1",
          "name": "FREE MINT",
          "interface": "erc1155",
          "flags": {"is_spam": true, "spam_score": 95}
        }
      },
      "relationships": {"chain": {"data": {"type": "chains", "id": "polygon"}}}
    }
  ]
}`

func TestGetNFTs_ParsesHoldings(t *testing.T) {
	client, _ := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.Contains(r.URL.Path, "/nft-positions/") {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		fmt.Fprint(w, nftBody)
	}))

	nfts, err := client.GetNFTs(context.Background(), "0xabc")
	if err != nil {
		t.Fatalf("GetNFTs() failed: %v", err)
	}
	if len(nfts) != 2 {
		t.Fatalf("expected 2 NFTs, got %d", len(nfts))
	}

	ape := nfts[0]
	if ape.TokenID != "7495" || ape.CollectionName != "Bored Ape Yacht Club" {
		t.Errorf("unexpected NFT: %+v", ape)
	}
	if ape.ImageURL != "https://img/detail.png" {
		t.Errorf("expected detail image preferred, got %s", ape.ImageURL)
	}
	if !ape.FloorPrice.Equal(decimal.RequireFromString("2100.5")) {
		t.Errorf("unexpected floor price: %s", ape.FloorPrice)
	}
	if ape.SpamScore != 0 {
		t.Errorf("expected spam score 0, got %d", ape.SpamScore)
	}

	spam := nfts[1]
	if spam.SpamScore != 95 {
		t.Errorf("expected spam score 95, got %d", spam.SpamScore)
	}
	if spam.Standard != "erc1155" {
		t.Errorf("unexpected standard: %s", spam.Standard)
	}
}

func TestClient_DisabledWithoutAPIKey(t *testing.T) {
	cfg := config.ProviderConfig{
		BaseURL:        "http://localhost:0",
		Timeout:        time.Second,
		MaxRetries:     1,
		RetryBaseDelay: time.Millisecond,
		RetryMaxDelay:  time.Millisecond,
	}
	client := New(cfg, zap.NewNop())

	if client.Enabled() {
		t.Fatal("client without API key should be disabled")
	}

	_, err := client.GetPortfolio(context.Background(), "0xabc")
	if !apperrors.Is(err, apperrors.CategoryProviderTerminal) {
		t.Fatalf("expected terminal provider error, got: %v", err)
	}

	h := client.Health(context.Background())
	if h.Healthy || h.Message != "not configured" {
		t.Fatalf("expected not-configured health, got %+v", h)
	}
}

func TestClient_NotFoundFailsFast(t *testing.T) {
	calls := 0
	client, _ := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		http.Error(w, `{"errors":[{"title":"address not found"}]}`, http.StatusNotFound)
	}))

	_, err := client.GetPortfolio(context.Background(), "0xmissing")
	if err == nil {
		t.Fatal("expected error for 404")
	}
	if calls != 1 {
		t.Fatalf("expected no retries on 404, got %d calls", calls)
	}
	if !apperrors.Is(err, apperrors.CategoryProviderTerminal) {
		t.Fatalf("expected terminal provider error, got: %v", err)
	}
}

func TestClient_MalformedPayloadIsParseError(t *testing.T) {
	client, _ := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"data": [not json`)
	}))

	_, err := client.GetPositions(context.Background(), "0xabc")
	if !apperrors.Is(err, apperrors.CategoryParseError) {
		t.Fatalf("expected parse error, got: %v", err)
	}
	if code := apperrors.CodeOf(err); code != "PARSE_ERROR" {
		t.Fatalf("expected PARSE_ERROR code, got %s", code)
	}
}

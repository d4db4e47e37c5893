package client

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/aspens-xyz/aspens-go/aspens/signing"
	"github.com/aspens-xyz/aspens-go/aspens/types"
)

// anvil 测试私钥 #0（公开的测试密钥，无真实资金）
const testPrivateKey = "ac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80"

func testSigner(t *testing.T) *signing.KeySigner {
	t.Helper()
	signer, err := signing.NewKeySigner(testPrivateKey)
	if err != nil {
		t.Fatalf("NewKeySigner error: %v", err)
	}
	return signer
}

// stubDialer 不触网的链协作者工厂（链上操作的测试注入 fakeChain）
func stubDialer(types.Chain, signing.Signer) (ChainClient, error) {
	return nil, errors.New("链协作者未启用")
}

// newTestStack 启动一个只服务配置接口的 Market Stack 替身
func newTestStack(t *testing.T, extra map[string]http.HandlerFunc) *httptest.Server {
	t.Helper()
	reg := testRegistry()
	mux := http.NewServeMux()
	mux.HandleFunc(EndpointGetConfig, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(types.GetConfigResponse{Chains: reg.Chains, Markets: reg.Markets})
	})
	for path, handler := range extra {
		mux.HandleFunc(path, handler)
	}
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

func newTestClient(t *testing.T, stackURL string) *Client {
	t.Helper()
	c, err := New(Config{
		StackURL:    stackURL,
		Signer:      testSigner(t),
		ChainDialer: stubDialer,
	})
	if err != nil {
		t.Fatalf("New error: %v", err)
	}
	t.Cleanup(func() { c.Close() })
	return c
}

func TestZeroValueClientIsUninitialized(t *testing.T) {
	var c Client
	if got := c.State(); got != StateUninitialized {
		t.Fatalf("State = %s, want uninitialized", got)
	}
	err := c.Initialize(context.Background())
	if !errors.Is(err, ErrNotInitialized) {
		t.Fatalf("Initialize err = %v, want ErrNotInitialized", err)
	}
}

func TestNewValidation(t *testing.T) {
	if _, err := New(Config{Signer: testSigner(t)}); err == nil {
		t.Error("New accepted empty StackURL")
	}
	if _, err := New(Config{StackURL: "http://127.0.0.1:50051"}); err == nil {
		t.Error("New accepted nil Signer")
	}
}

func TestStateLifecycle(t *testing.T) {
	server := newTestStack(t, nil)
	c := newTestClient(t, server.URL)

	if got := c.State(); got != StateConfigured {
		t.Fatalf("state after New = %s, want configured", got)
	}
	if c.Registry() != nil {
		t.Fatal("registry populated before Initialize")
	}

	if err := c.Initialize(context.Background()); err != nil {
		t.Fatalf("Initialize error: %v", err)
	}
	if got := c.State(); got != StateConnected {
		t.Fatalf("state after Initialize = %s, want connected", got)
	}
	reg := c.Registry()
	if reg == nil || reg.Version != 1 {
		t.Fatalf("registry = %+v, want version 1", reg)
	}

	// 幂等
	if err := c.Initialize(context.Background()); err != nil {
		t.Fatalf("second Initialize error: %v", err)
	}
	if c.Registry().Version != 1 {
		t.Fatal("idempotent Initialize must not refetch the registry")
	}

	if err := c.Close(); err != nil {
		t.Fatalf("Close error: %v", err)
	}
	if got := c.State(); got != StateClosed {
		t.Fatalf("state after Close = %s, want closed", got)
	}
	// 关闭后不存在自动重连：操作失败并归因到未初始化
	_, err := c.GetBalances(context.Background())
	if !errors.Is(err, ErrNotInitialized) {
		t.Fatalf("GetBalances after Close err = %v, want ErrNotInitialized", err)
	}
}

func TestLazyInitialization(t *testing.T) {
	server := newTestStack(t, map[string]http.HandlerFunc{
		EndpointGetOrderbook: func(w http.ResponseWriter, r *http.Request) {
			json.NewEncoder(w).Encode(types.OrderbookSnapshot{MarketID: r.URL.Query().Get("market_id")})
		},
	})
	c := newTestClient(t, server.URL)

	// 第一次 RPC 操作先惰性建立会话
	book, err := c.GetOrderbook(context.Background(), "1::ETH::1::USDC")
	if err != nil {
		t.Fatalf("GetOrderbook error: %v", err)
	}
	if book.MarketID != "1::ETH::1::USDC" {
		t.Errorf("MarketID = %s", book.MarketID)
	}
	if got := c.State(); got != StateConnected {
		t.Fatalf("state after lazy init = %s, want connected", got)
	}
}

func TestRefreshConfigReplacesRegistry(t *testing.T) {
	server := newTestStack(t, nil)
	c := newTestClient(t, server.URL)

	if err := c.Initialize(context.Background()); err != nil {
		t.Fatalf("Initialize error: %v", err)
	}
	before := c.Registry()

	if err := c.RefreshConfig(context.Background()); err != nil {
		t.Fatalf("RefreshConfig error: %v", err)
	}
	after := c.Registry()
	if after == before {
		t.Fatal("RefreshConfig must replace the registry snapshot, not mutate it")
	}
	if after.Version != before.Version+1 {
		t.Fatalf("version = %d, want %d", after.Version, before.Version+1)
	}
}

func TestMarketLookupUnknown(t *testing.T) {
	server := newTestStack(t, nil)
	c := newTestClient(t, server.URL)
	if err := c.Initialize(context.Background()); err != nil {
		t.Fatalf("Initialize error: %v", err)
	}

	_, err := c.Market("1::DOGE::1::USDC")
	var marketErr *InvalidMarketError
	if !errors.As(err, &marketErr) {
		t.Fatalf("err = %v, want *InvalidMarketError", err)
	}
}

func TestPlaceOrderFlow(t *testing.T) {
	signerAddr := testSigner(t).Address()

	server := newTestStack(t, map[string]http.HandlerFunc{
		EndpointSendOrder: func(w http.ResponseWriter, r *http.Request) {
			var req types.SendOrderRequest
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				t.Errorf("decode SendOrderRequest: %v", err)
				w.WriteHeader(http.StatusBadRequest)
				return
			}
			if req.Order.Quantity != "1500000000000" {
				t.Errorf("wire quantity = %s, want 1500000000000", req.Order.Quantity)
			}
			if req.Order.Price == nil || *req.Order.Price != "2000000000000000" {
				t.Errorf("wire price = %v, want 2000000000000000", req.Order.Price)
			}
			if req.Order.BaseAccountAddress != signerAddr.Hex() {
				t.Errorf("base account = %s, want signer address", req.Order.BaseAccountAddress)
			}

			// 服务端校验签名：对载荷字节恢复出的地址必须是签名者
			message, _ := json.Marshal(req.Order)
			sig, err := hex.DecodeString(strings.TrimPrefix(req.Signature, "0x"))
			if err != nil {
				t.Errorf("signature not hex: %v", err)
			}
			recovered, err := signing.RecoverAddress(message, sig)
			if err != nil || recovered != signerAddr {
				t.Errorf("recovered = %v (err=%v), want %v", recovered, err, signerAddr)
			}

			json.NewEncoder(w).Encode(types.SendOrderResponse{
				OrderInBook: true,
				OrderID:     42,
				Trades: []types.Trade{
					{MakerOrderID: 7, TakerOrderID: 42, Quantity: "500000000000", Price: "2000000000000000"},
				},
				TransactionHashes: []types.TransactionHash{{HashType: "settlement", HashValue: "0xbeef"}},
			})
		},
	})
	c := newTestClient(t, server.URL)

	result, err := c.PlaceOrder(context.Background(), OrderInput{
		MarketID: "1::ETH::1::USDC",
		Side:     types.SideBid,
		Quantity: "1.5",
		Price:    "2000",
	})
	if err != nil {
		t.Fatalf("PlaceOrder error: %v", err)
	}
	if result.OrderID != 42 || !result.OrderInBook {
		t.Errorf("result = %+v", result)
	}
	if len(result.Trades) != 1 {
		t.Fatalf("trades = %d, want 1", len(result.Trades))
	}
	// 成交以人类可读十进制呈现
	if result.Trades[0].Quantity != "0.5" || result.Trades[0].Price != "2000" {
		t.Errorf("trade rendering = %s @ %s, want 0.5 @ 2000", result.Trades[0].Quantity, result.Trades[0].Price)
	}
	if len(result.TransactionHashes) != 1 || result.TransactionHashes[0].HashType != "settlement" {
		t.Errorf("transaction hashes = %+v", result.TransactionHashes)
	}
}

func TestPlaceOrderServerError(t *testing.T) {
	server := newTestStack(t, map[string]http.HandlerFunc{
		EndpointSendOrder: func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
			json.NewEncoder(w).Encode(map[string]string{"error": "matching engine unavailable"})
		},
	})
	c := newTestClient(t, server.URL)

	_, err := c.PlaceOrder(context.Background(), OrderInput{
		MarketID: "1::ETH::1::USDC",
		Side:     types.SideBid,
		Quantity: "1",
		Price:    "100",
	})
	var transportErr *TransportError
	if !errors.As(err, &transportErr) {
		t.Fatalf("err = %v, want *TransportError", err)
	}
	if transportErr.Op != "send_order" {
		t.Errorf("Op = %s, want send_order", transportErr.Op)
	}
	if !strings.Contains(transportErr.Error(), "matching engine unavailable") {
		t.Errorf("error message lost server detail: %v", transportErr)
	}
}

func TestCancelOrderTokenAddress(t *testing.T) {
	var got types.CancelOrderRequest
	server := newTestStack(t, map[string]http.HandlerFunc{
		EndpointCancelOrder: func(w http.ResponseWriter, r *http.Request) {
			if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
				t.Errorf("decode CancelOrderRequest: %v", err)
			}
			json.NewEncoder(w).Encode(types.CancelOrderResponse{OrderCanceled: true})
		},
	})
	c := newTestClient(t, server.URL)

	resp, err := c.CancelOrder(context.Background(), "1::ETH::1::USDC", types.SideBid, 42)
	if err != nil {
		t.Fatalf("CancelOrder error: %v", err)
	}
	if !resp.OrderCanceled {
		t.Error("OrderCanceled = false")
	}
	// BID 锁定的是 quote 代币 (USDC)
	if got.Order.TokenAddress != "0x0000000000000000000000000000000000000002" {
		t.Errorf("TokenAddress = %s, want USDC address", got.Order.TokenAddress)
	}
	if got.Order.OrderID != 42 {
		t.Errorf("OrderID = %d, want 42", got.Order.OrderID)
	}
	if got.Signature == "" {
		t.Error("cancel request not signed")
	}
}

func TestGetBalances(t *testing.T) {
	signerAddr := testSigner(t).Address().Hex()
	server := newTestStack(t, map[string]http.HandlerFunc{
		EndpointGetBalances: func(w http.ResponseWriter, r *http.Request) {
			if owner := r.URL.Query().Get("owner"); owner != signerAddr {
				t.Errorf("owner = %s, want %s", owner, signerAddr)
			}
			json.NewEncoder(w).Encode(types.GetBalancesResponse{
				Owner: signerAddr,
				Balances: []types.BalanceEntry{
					{Network: "ethereum", Symbol: "USDC", Decimals: 6, Available: "3000000000", Locked: "0"},
				},
			})
		},
	})
	c := newTestClient(t, server.URL)

	resp, err := c.GetBalances(context.Background())
	if err != nil {
		t.Fatalf("GetBalances error: %v", err)
	}
	if len(resp.Balances) != 1 || resp.Balances[0].Available != "3000000000" {
		t.Errorf("balances = %+v", resp.Balances)
	}
}

package rpc

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"

	"nftmarket/config"
	"nftmarket/core"
	"nftmarket/rpc/middleware"
	"nftmarket/storage"
)

const (
	testSeller = "0x0000000000000000000000000000000000000001"
	testBuyer  = "0x0000000000000000000000000000000000000002"
	testFees   = "0x00000000000000000000000000000000000000fe"
)

func newTestServer(t *testing.T) (*Server, *core.Node) {
	t.Helper()
	cfg := &config.Config{
		FeeReceiver:           testFees,
		FeeInBps:              500,
		MinExpirationDuration: 100,
		MaxExpirationDuration: 1000,
	}
	node, err := core.NewNode(storage.NewMemDB(), cfg)
	require.NoError(t, err)
	node.SetNowFunc(func() int64 { return 1_000_000 })
	return NewServer(node, nil), node
}

func rpcCall(t *testing.T, handler http.Handler, method string, params interface{}) (*RPCResponse, int) {
	t.Helper()
	req := map[string]interface{}{
		"jsonrpc": "2.0",
		"id":      1,
		"method":  method,
	}
	if params != nil {
		req["params"] = []interface{}{params}
	}
	body, err := json.Marshal(req)
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	httpReq := httptest.NewRequest(http.MethodPost, "/", bytes.NewReader(body))
	handler.ServeHTTP(rec, httpReq)

	resp := &RPCResponse{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), resp))
	return resp, rec.Code
}

func resultMap(t *testing.T, resp *RPCResponse) map[string]interface{} {
	t.Helper()
	require.Nil(t, resp.Error)
	out, ok := resp.Result.(map[string]interface{})
	require.True(t, ok)
	return out
}

func TestHealthEndpoint(t *testing.T) {
	server, _ := newTestServer(t)
	router := server.Router(nil, nil)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"status":"ok"`)
	require.NotEmpty(t, rec.Header().Get(middleware.HeaderRequestID))
}

func TestMethodNotFound(t *testing.T) {
	server, _ := newTestServer(t)
	router := server.Router(nil, nil)

	resp, status := rpcCall(t, router, "market_unknown", nil)
	require.Equal(t, http.StatusNotFound, status)
	require.NotNil(t, resp.Error)
	require.Equal(t, codeMethodNotFound, resp.Error.Code)
}

func TestFixedSaleFlowOverRPC(t *testing.T) {
	server, _ := newTestServer(t)
	router := server.Router(nil, nil)

	resp, _ := rpcCall(t, router, "assets_mint", map[string]interface{}{"owner": testSeller, "id": 7})
	require.Nil(t, resp.Error)

	resp, _ = rpcCall(t, router, "bank_credit", map[string]interface{}{"address": testBuyer, "amount": "10000"})
	require.Nil(t, resp.Error)

	resp, _ = rpcCall(t, router, "market_getVaultAddress", map[string]interface{}{"venue": "sale"})
	vault := resultMap(t, resp)["vault"].(string)

	resp, _ = rpcCall(t, router, "assets_approve", map[string]interface{}{
		"caller": testSeller, "spender": vault, "id": 7,
	})
	require.Nil(t, resp.Error)

	resp, _ = rpcCall(t, router, "market_createOrder", map[string]interface{}{
		"venue": "sale", "seller": testSeller, "assetId": 7, "price": "1000", "duration": 500,
	})
	orderID := resultMap(t, resp)["orderId"].(float64)
	require.Equal(t, float64(0), orderID)

	resp, _ = rpcCall(t, router, "market_getOrder", map[string]interface{}{"venue": "sale", "orderId": 0})
	order := resultMap(t, resp)
	require.Equal(t, "1000", order["price"])
	require.Equal(t, "active", order["statusLabel"])

	// Wrong funds are rejected before any state changes.
	resp, status := rpcCall(t, router, "market_buyNow", map[string]interface{}{
		"venue": "sale", "orderId": 0, "buyer": testBuyer, "funds": "1000",
	})
	require.Equal(t, http.StatusUnprocessableEntity, status)
	require.Equal(t, codeIncorrectFunds, resp.Error.Code)

	resp, _ = rpcCall(t, router, "market_buyNow", map[string]interface{}{
		"venue": "sale", "orderId": 0, "buyer": testBuyer, "funds": "1050",
	})
	require.Nil(t, resp.Error)

	resp, _ = rpcCall(t, router, "assets_ownerOf", map[string]interface{}{"id": 7})
	require.Equal(t, testBuyer, resultMap(t, resp)["owner"])

	resp, _ = rpcCall(t, router, "bank_getBalance", map[string]interface{}{"address": testSeller})
	require.Equal(t, "1000", resultMap(t, resp)["balance"])

	resp, _ = rpcCall(t, router, "bank_getBalance", map[string]interface{}{"address": testFees})
	require.Equal(t, "50", resultMap(t, resp)["balance"])

	resp, _ = rpcCall(t, router, "events_latest", nil)
	events := resultMap(t, resp)["events"].([]interface{})
	require.NotEmpty(t, events)
}

func TestErrorCodesAreStable(t *testing.T) {
	server, _ := newTestServer(t)
	router := server.Router(nil, nil)

	resp, _ := rpcCall(t, router, "market_getOrder", map[string]interface{}{"venue": "sale", "orderId": 42})
	require.NotNil(t, resp.Error)
	require.Equal(t, codeInvalidIndex, resp.Error.Code)

	resp, _ = rpcCall(t, router, "market_getOrdersCount", map[string]interface{}{"venue": "no-such-venue"})
	require.NotNil(t, resp.Error)
	require.Equal(t, codeUnknownVenue, resp.Error.Code)

	resp, _ = rpcCall(t, router, "market_createOrder", map[string]interface{}{
		"venue": "sale", "seller": "0x1234", "assetId": 1, "price": "10", "duration": 500,
	})
	require.NotNil(t, resp.Error)
	require.Equal(t, codeInvalidParams, resp.Error.Code)
}

func TestAuthMiddlewareGuardsRPC(t *testing.T) {
	server, _ := newTestServer(t)
	auth := middleware.NewAuthenticator(middleware.AuthConfig{
		Enabled:    true,
		HMACSecret: "test-secret",
		Issuer:     "nftmarket",
	}, nil)
	router := server.Router(auth, nil)

	// Health stays open.
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	body := []byte(`{"jsonrpc":"2.0","id":1,"method":"market_listVenues"}`)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/", bytes.NewReader(body)))
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"iss": "nftmarket",
		"sub": "tester",
		"exp": time.Now().Add(time.Hour).Unix(),
	})
	signed, err := token.SignedString([]byte("test-secret"))
	require.NoError(t, err)

	rec = httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/", bytes.NewReader(body))
	req.Header.Set("Authorization", "Bearer "+signed)
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "marketplace")
}

func TestRateLimiterThrottles(t *testing.T) {
	server, _ := newTestServer(t)
	limiter := middleware.NewRateLimiter(middleware.RateLimit{RequestsPerMinute: 1, Burst: 1})
	router := server.Router(nil, limiter)

	body := []byte(`{"jsonrpc":"2.0","id":1,"method":"market_listVenues"}`)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/", bytes.NewReader(body))
	req.Header.Set("X-Real-IP", "10.0.0.9")
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodPost, "/", bytes.NewReader(body))
	req.Header.Set("X-Real-IP", "10.0.0.9")
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
}

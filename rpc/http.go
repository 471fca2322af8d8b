package rpc

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"nftmarket/core"
	"nftmarket/native/assets"
	nativecommon "nftmarket/native/common"
	"nftmarket/native/market"
	"nftmarket/observability"
	"nftmarket/rpc/middleware"
)

const (
	jsonRPCVersion  = "2.0"
	maxRequestBytes = 1 << 20 // 1 MiB
)

const (
	codeParseError     = -32700
	codeInvalidRequest = -32600
	codeMethodNotFound = -32601
	codeInvalidParams  = -32602
	codeServerError    = -32000

	codeInvalidIndex        = -32040
	codeOrderNotActive      = -32041
	codeOrderExpired        = -32042
	codeOrderStillActive    = -32043
	codeBiddingStarted      = -32044
	codeBidTooLow           = -32045
	codeIncorrectFunds      = -32046
	codeInsufficientBalance = -32047
	codeNothingToWithdraw   = -32048
	codeNotWinningBidder    = -32049
	codeNotAuthorized       = -32050
	codeNotOwnerNotApproved = -32051
	codeInvalidDuration     = -32052
	codeModulePaused        = -32053
	codeUnknownVenue        = -32054
	codeAssetNotFound       = -32055
)

// Server exposes the node over JSON-RPC 2.0.
type Server struct {
	node    *core.Node
	logger  *slog.Logger
	started time.Time
	methods map[string]handlerFunc
}

type handlerFunc func(params []json.RawMessage) (interface{}, *RPCError)

func NewServer(node *core.Node, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		node:    node,
		logger:  logger,
		started: time.Now(),
	}
	s.methods = map[string]handlerFunc{
		"market_createOrder":      s.handleCreateOrder,
		"market_cancelOrder":      s.handleCancelOrder,
		"market_reclaimExpired":   s.handleReclaimExpired,
		"market_placeBid":         s.handlePlaceBid,
		"market_withdraw":         s.handleWithdraw,
		"market_buyNow":           s.handleBuyNow,
		"market_acceptHighestBid": s.handleAcceptHighestBid,
		"market_claimAuctionWin":  s.handleClaimAuctionWin,
		"market_getOrder":         s.handleGetOrder,
		"market_getOrdersCount":   s.handleGetOrdersCount,
		"market_getHighestBid":    s.handleGetHighestBid,
		"market_getRefundBalance": s.handleGetRefundBalance,
		"market_listVenues":       s.handleListVenues,
		"market_getVaultAddress":  s.handleGetVaultAddress,
		"assets_mint":             s.handleAssetMint,
		"assets_ownerOf":          s.handleAssetOwnerOf,
		"assets_approve":          s.handleAssetApprove,
		"assets_transfer":         s.handleAssetTransfer,
		"bank_getBalance":         s.handleGetBalance,
		"bank_credit":             s.handleCredit,
		"events_latest":           s.handleEventsLatest,
	}
	return s
}

// Router assembles the HTTP surface: health and metrics endpoints unguarded,
// the JSON-RPC endpoint behind the supplied middleware chain.
func (s *Server) Router(auth *middleware.Authenticator, limiter *middleware.RateLimiter) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)

	r.Get("/healthz", func(w http.ResponseWriter, req *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"status":         "ok",
			"uptime_seconds": int64(time.Since(s.started).Seconds()),
		})
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Group(func(gr chi.Router) {
		if limiter != nil {
			gr.Use(limiter.Middleware())
		}
		if auth != nil {
			gr.Use(auth.Middleware())
		}
		gr.Post("/", s.handle)
	})
	return r
}

type RPCRequest struct {
	JSONRPC string            `json:"jsonrpc"`
	Method  string            `json:"method"`
	Params  []json.RawMessage `json:"params"`
	ID      interface{}       `json:"id"`
}

type RPCResponse struct {
	JSONRPC string      `json:"jsonrpc"`
	ID      interface{} `json:"id"`
	Result  interface{} `json:"result,omitempty"`
	Error   *RPCError   `json:"error,omitempty"`
}

type RPCError struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

func (s *Server) handle(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	w.Header().Set("Content-Type", "application/json")

	body, err := io.ReadAll(io.LimitReader(r.Body, maxRequestBytes+1))
	if err != nil {
		writeError(w, http.StatusBadRequest, nil, codeParseError, "unable to read request body", nil)
		observability.RPC().Observe("unknown", http.StatusBadRequest, time.Since(start))
		return
	}
	if len(body) > maxRequestBytes {
		writeError(w, http.StatusRequestEntityTooLarge, nil, codeInvalidRequest, "request body too large", nil)
		observability.RPC().Observe("unknown", http.StatusRequestEntityTooLarge, time.Since(start))
		return
	}

	var req RPCRequest
	if err := json.Unmarshal(body, &req); err != nil {
		writeError(w, http.StatusBadRequest, nil, codeParseError, "invalid JSON", nil)
		observability.RPC().Observe("unknown", http.StatusBadRequest, time.Since(start))
		return
	}
	if req.JSONRPC != "" && req.JSONRPC != jsonRPCVersion {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidRequest, "unsupported jsonrpc version", nil)
		observability.RPC().Observe(req.Method, http.StatusBadRequest, time.Since(start))
		return
	}

	handler, ok := s.methods[req.Method]
	if !ok {
		writeError(w, http.StatusNotFound, req.ID, codeMethodNotFound, "method not found", req.Method)
		observability.RPC().Observe(req.Method, http.StatusNotFound, time.Since(start))
		return
	}

	result, rpcErr := handler(req.Params)
	status := http.StatusOK
	if rpcErr != nil {
		status = statusForCode(rpcErr.Code)
		s.logger.Warn("rpc request failed",
			"method", req.Method,
			"code", rpcErr.Code,
			"message", rpcErr.Message,
			"request_id", middleware.RequestIDFromContext(r.Context()),
		)
		writeError(w, status, req.ID, rpcErr.Code, rpcErr.Message, rpcErr.Data)
	} else {
		writeResult(w, req.ID, result)
	}
	observability.RPC().Observe(req.Method, status, time.Since(start))
}

func writeError(w http.ResponseWriter, status int, id interface{}, code int, message string, data interface{}) {
	if status <= 0 {
		status = http.StatusBadRequest
	}
	if status != http.StatusOK {
		w.WriteHeader(status)
	}
	errObj := &RPCError{Code: code, Message: message}
	if data != nil {
		errObj.Data = data
	}
	resp := RPCResponse{JSONRPC: jsonRPCVersion, ID: id, Error: errObj}
	_ = json.NewEncoder(w).Encode(resp)
}

func writeResult(w http.ResponseWriter, id interface{}, result interface{}) {
	resp := RPCResponse{JSONRPC: jsonRPCVersion, ID: id, Result: result}
	_ = json.NewEncoder(w).Encode(resp)
}

func statusForCode(code int) int {
	switch code {
	case codeParseError, codeInvalidRequest, codeInvalidParams:
		return http.StatusBadRequest
	case codeMethodNotFound:
		return http.StatusNotFound
	case codeServerError:
		return http.StatusInternalServerError
	default:
		return http.StatusUnprocessableEntity
	}
}

// errorToRPC translates engine and registry errors into stable RPC codes so
// clients can branch on the failure without string matching.
func errorToRPC(err error) *RPCError {
	if err == nil {
		return nil
	}
	code := codeServerError
	switch {
	case errors.Is(err, market.ErrInvalidIndex):
		code = codeInvalidIndex
	case errors.Is(err, market.ErrOrderNotActive):
		code = codeOrderNotActive
	case errors.Is(err, market.ErrOrderExpired):
		code = codeOrderExpired
	case errors.Is(err, market.ErrOrderStillActive):
		code = codeOrderStillActive
	case errors.Is(err, market.ErrBiddingStarted):
		code = codeBiddingStarted
	case errors.Is(err, market.ErrBidTooLow):
		code = codeBidTooLow
	case errors.Is(err, market.ErrIncorrectFunds):
		code = codeIncorrectFunds
	case errors.Is(err, market.ErrInsufficientBalance):
		code = codeInsufficientBalance
	case errors.Is(err, market.ErrNothingToWithdraw):
		code = codeNothingToWithdraw
	case errors.Is(err, market.ErrNotWinningBidder):
		code = codeNotWinningBidder
	case errors.Is(err, market.ErrNotAuthorized):
		code = codeNotAuthorized
	case errors.Is(err, market.ErrNotOwnerOrNotApproved):
		code = codeNotOwnerNotApproved
	case errors.Is(err, market.ErrInvalidDuration):
		code = codeInvalidDuration
	case errors.Is(err, market.ErrOperationNotAllowed):
		code = codeNotAuthorized
	case errors.Is(err, nativecommon.ErrModulePaused):
		code = codeModulePaused
	case errors.Is(err, core.ErrUnknownVenue):
		code = codeUnknownVenue
	case errors.Is(err, assets.ErrAssetNotFound):
		code = codeAssetNotFound
	case errors.Is(err, assets.ErrAssetExists), errors.Is(err, assets.ErrNotOwner), errors.Is(err, assets.ErrNotApproved):
		code = codeNotAuthorized
	}
	return &RPCError{Code: code, Message: err.Error()}
}

package rpc

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math/big"
	"strings"

	"nftmarket/core/types"
	"nftmarket/native/market"
	"nftmarket/observability"
)

type orderResult struct {
	Venue     string `json:"venue"`
	ID        uint64 `json:"orderId"`
	Seller    string `json:"seller"`
	AssetID   uint64 `json:"assetId"`
	Price     string `json:"price"`
	FeesPaid  string `json:"feesPaid"`
	CreatedAt int64  `json:"createdAt"`
	ExpiresAt int64  `json:"expiresAt"`
	Status    uint8  `json:"status"`
	StatusTag string `json:"statusLabel"`
}

type bidResult struct {
	Bidder      string `json:"bidder"`
	Amount      string `json:"amount"`
	EscrowedFee string `json:"escrowedFee"`
	PlacedAt    int64  `json:"placedAt"`
}

func orderView(venue string, o *market.Order) orderResult {
	return orderResult{
		Venue:     venue,
		ID:        o.ID,
		Seller:    formatAddress(o.Seller),
		AssetID:   o.AssetID,
		Price:     o.Price.String(),
		FeesPaid:  o.FeesPaid.String(),
		CreatedAt: o.CreatedAt,
		ExpiresAt: o.ExpiresAt,
		Status:    uint8(o.Status),
		StatusTag: o.Status.String(),
	}
}

func formatAddress(addr [20]byte) string {
	return "0x" + hex.EncodeToString(addr[:])
}

func decodeParams(params []json.RawMessage, out interface{}) *RPCError {
	if len(params) != 1 {
		return &RPCError{Code: codeInvalidParams, Message: "expected a single params object"}
	}
	if err := json.Unmarshal(params[0], out); err != nil {
		return &RPCError{Code: codeInvalidParams, Message: fmt.Sprintf("invalid params: %v", err)}
	}
	return nil
}

func parseAddressParam(field, value string) ([20]byte, *RPCError) {
	trimmed := strings.TrimPrefix(strings.TrimSpace(value), "0x")
	raw, err := hex.DecodeString(trimmed)
	if err != nil || len(raw) != 20 {
		return [20]byte{}, &RPCError{Code: codeInvalidParams, Message: fmt.Sprintf("invalid %s address", field)}
	}
	var addr [20]byte
	copy(addr[:], raw)
	return addr, nil
}

func parseAmountParam(field, value string) (*big.Int, *RPCError) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return nil, &RPCError{Code: codeInvalidParams, Message: fmt.Sprintf("missing %s", field)}
	}
	amount, ok := new(big.Int).SetString(trimmed, 10)
	if !ok || amount.Sign() < 0 {
		return nil, &RPCError{Code: codeInvalidParams, Message: fmt.Sprintf("invalid %s", field)}
	}
	return amount, nil
}

type createOrderParams struct {
	Venue    string `json:"venue"`
	Seller   string `json:"seller"`
	AssetID  uint64 `json:"assetId"`
	Price    string `json:"price"`
	Duration int64  `json:"duration"`
}

func (s *Server) handleCreateOrder(params []json.RawMessage) (interface{}, *RPCError) {
	var p createOrderParams
	if rpcErr := decodeParams(params, &p); rpcErr != nil {
		return nil, rpcErr
	}
	seller, rpcErr := parseAddressParam("seller", p.Seller)
	if rpcErr != nil {
		return nil, rpcErr
	}
	price, rpcErr := parseAmountParam("price", p.Price)
	if rpcErr != nil {
		return nil, rpcErr
	}
	orderID, err := s.node.CreateOrder(p.Venue, p.AssetID, price, p.Duration, seller)
	if err != nil {
		return nil, errorToRPC(err)
	}
	observability.Market().RecordOrder(p.Venue)
	s.logger.Info("order created", "venue", p.Venue, "order_id", orderID, "asset_id", p.AssetID)
	return map[string]interface{}{"orderId": orderID}, nil
}

type orderCallParams struct {
	Venue   string `json:"venue"`
	OrderID uint64 `json:"orderId"`
	Caller  string `json:"caller"`
}

func (s *Server) handleCancelOrder(params []json.RawMessage) (interface{}, *RPCError) {
	var p orderCallParams
	if rpcErr := decodeParams(params, &p); rpcErr != nil {
		return nil, rpcErr
	}
	caller, rpcErr := parseAddressParam("caller", p.Caller)
	if rpcErr != nil {
		return nil, rpcErr
	}
	if err := s.node.CancelOrder(p.Venue, p.OrderID, caller); err != nil {
		return nil, errorToRPC(err)
	}
	observability.Market().RecordSettlement(p.Venue, "cancelled")
	s.logger.Info("order cancelled", "venue", p.Venue, "order_id", p.OrderID)
	return map[string]bool{"cancelled": true}, nil
}

func (s *Server) handleReclaimExpired(params []json.RawMessage) (interface{}, *RPCError) {
	var p orderCallParams
	if rpcErr := decodeParams(params, &p); rpcErr != nil {
		return nil, rpcErr
	}
	caller, rpcErr := parseAddressParam("caller", p.Caller)
	if rpcErr != nil {
		return nil, rpcErr
	}
	if err := s.node.ReclaimExpired(p.Venue, p.OrderID, caller); err != nil {
		return nil, errorToRPC(err)
	}
	observability.Market().RecordSettlement(p.Venue, "expired")
	s.logger.Info("order reclaimed", "venue", p.Venue, "order_id", p.OrderID)
	return map[string]bool{"reclaimed": true}, nil
}

type placeBidParams struct {
	Venue   string `json:"venue"`
	OrderID uint64 `json:"orderId"`
	Bidder  string `json:"bidder"`
	Amount  string `json:"amount"`
	Funds   string `json:"funds"`
}

func (s *Server) handlePlaceBid(params []json.RawMessage) (interface{}, *RPCError) {
	var p placeBidParams
	if rpcErr := decodeParams(params, &p); rpcErr != nil {
		return nil, rpcErr
	}
	bidder, rpcErr := parseAddressParam("bidder", p.Bidder)
	if rpcErr != nil {
		return nil, rpcErr
	}
	amount, rpcErr := parseAmountParam("amount", p.Amount)
	if rpcErr != nil {
		return nil, rpcErr
	}
	funds, rpcErr := parseAmountParam("funds", p.Funds)
	if rpcErr != nil {
		return nil, rpcErr
	}
	if err := s.node.PlaceBid(p.Venue, p.OrderID, amount, funds, bidder); err != nil {
		return nil, errorToRPC(err)
	}
	observability.Market().RecordBid(p.Venue)
	s.logger.Info("bid placed", "venue", p.Venue, "order_id", p.OrderID, "amount", amount.String())
	return map[string]bool{"accepted": true}, nil
}

func (s *Server) handleWithdraw(params []json.RawMessage) (interface{}, *RPCError) {
	var p orderCallParams
	if rpcErr := decodeParams(params, &p); rpcErr != nil {
		return nil, rpcErr
	}
	caller, rpcErr := parseAddressParam("caller", p.Caller)
	if rpcErr != nil {
		return nil, rpcErr
	}
	withdrawn, err := s.node.WithdrawDisplacedFunds(p.Venue, p.OrderID, caller)
	if err != nil {
		return nil, errorToRPC(err)
	}
	observability.Market().RecordRefundWithdrawal(p.Venue)
	s.logger.Info("refund withdrawn", "venue", p.Venue, "order_id", p.OrderID, "amount", withdrawn.String())
	return map[string]string{"withdrawn": withdrawn.String()}, nil
}

type buyNowParams struct {
	Venue   string `json:"venue"`
	OrderID uint64 `json:"orderId"`
	Buyer   string `json:"buyer"`
	Funds   string `json:"funds"`
}

func (s *Server) handleBuyNow(params []json.RawMessage) (interface{}, *RPCError) {
	var p buyNowParams
	if rpcErr := decodeParams(params, &p); rpcErr != nil {
		return nil, rpcErr
	}
	buyer, rpcErr := parseAddressParam("buyer", p.Buyer)
	if rpcErr != nil {
		return nil, rpcErr
	}
	funds, rpcErr := parseAmountParam("funds", p.Funds)
	if rpcErr != nil {
		return nil, rpcErr
	}
	if err := s.node.BuyNow(p.Venue, p.OrderID, funds, buyer); err != nil {
		return nil, errorToRPC(err)
	}
	observability.Market().RecordSettlement(p.Venue, "filled")
	s.logger.Info("order filled", "venue", p.Venue, "order_id", p.OrderID)
	return map[string]bool{"filled": true}, nil
}

func (s *Server) handleAcceptHighestBid(params []json.RawMessage) (interface{}, *RPCError) {
	var p orderCallParams
	if rpcErr := decodeParams(params, &p); rpcErr != nil {
		return nil, rpcErr
	}
	caller, rpcErr := parseAddressParam("caller", p.Caller)
	if rpcErr != nil {
		return nil, rpcErr
	}
	if err := s.node.AcceptHighestBid(p.Venue, p.OrderID, caller); err != nil {
		return nil, errorToRPC(err)
	}
	observability.Market().RecordSettlement(p.Venue, "filled")
	s.logger.Info("highest bid accepted", "venue", p.Venue, "order_id", p.OrderID)
	return map[string]bool{"filled": true}, nil
}

func (s *Server) handleClaimAuctionWin(params []json.RawMessage) (interface{}, *RPCError) {
	var p orderCallParams
	if rpcErr := decodeParams(params, &p); rpcErr != nil {
		return nil, rpcErr
	}
	caller, rpcErr := parseAddressParam("caller", p.Caller)
	if rpcErr != nil {
		return nil, rpcErr
	}
	if err := s.node.ClaimAuctionWin(p.Venue, p.OrderID, caller); err != nil {
		return nil, errorToRPC(err)
	}
	observability.Market().RecordSettlement(p.Venue, "filled")
	s.logger.Info("auction win claimed", "venue", p.Venue, "order_id", p.OrderID)
	return map[string]bool{"filled": true}, nil
}

type orderQueryParams struct {
	Venue   string `json:"venue"`
	OrderID uint64 `json:"orderId"`
}

func (s *Server) handleGetOrder(params []json.RawMessage) (interface{}, *RPCError) {
	var p orderQueryParams
	if rpcErr := decodeParams(params, &p); rpcErr != nil {
		return nil, rpcErr
	}
	order, err := s.node.Order(p.Venue, p.OrderID)
	if err != nil {
		return nil, errorToRPC(err)
	}
	return orderView(p.Venue, order), nil
}

type venueParams struct {
	Venue string `json:"venue"`
}

func (s *Server) handleGetOrdersCount(params []json.RawMessage) (interface{}, *RPCError) {
	var p venueParams
	if rpcErr := decodeParams(params, &p); rpcErr != nil {
		return nil, rpcErr
	}
	count, err := s.node.OrdersCount(p.Venue)
	if err != nil {
		return nil, errorToRPC(err)
	}
	return map[string]uint64{"count": count}, nil
}

func (s *Server) handleGetHighestBid(params []json.RawMessage) (interface{}, *RPCError) {
	var p orderQueryParams
	if rpcErr := decodeParams(params, &p); rpcErr != nil {
		return nil, rpcErr
	}
	bid, ok, err := s.node.HighestBid(p.Venue, p.OrderID)
	if err != nil {
		return nil, errorToRPC(err)
	}
	if !ok {
		return map[string]interface{}{"exists": false}, nil
	}
	return map[string]interface{}{
		"exists": true,
		"bid": bidResult{
			Bidder:      formatAddress(bid.Bidder),
			Amount:      bid.Amount.String(),
			EscrowedFee: bid.EscrowedFee.String(),
			PlacedAt:    bid.PlacedAt,
		},
	}, nil
}

type refundQueryParams struct {
	Venue   string `json:"venue"`
	OrderID uint64 `json:"orderId"`
	Address string `json:"address"`
}

func (s *Server) handleGetRefundBalance(params []json.RawMessage) (interface{}, *RPCError) {
	var p refundQueryParams
	if rpcErr := decodeParams(params, &p); rpcErr != nil {
		return nil, rpcErr
	}
	addr, rpcErr := parseAddressParam("address", p.Address)
	if rpcErr != nil {
		return nil, rpcErr
	}
	balance, err := s.node.RefundBalance(p.Venue, p.OrderID, addr)
	if err != nil {
		return nil, errorToRPC(err)
	}
	return map[string]string{"balance": balance.String()}, nil
}

func (s *Server) handleListVenues(params []json.RawMessage) (interface{}, *RPCError) {
	if len(params) > 0 {
		return nil, &RPCError{Code: codeInvalidParams, Message: "method takes no params"}
	}
	return map[string][]string{"venues": s.node.Venues()}, nil
}

func (s *Server) handleGetVaultAddress(params []json.RawMessage) (interface{}, *RPCError) {
	var p venueParams
	if rpcErr := decodeParams(params, &p); rpcErr != nil {
		return nil, rpcErr
	}
	vault, err := s.node.EngineVault(p.Venue)
	if err != nil {
		return nil, errorToRPC(err)
	}
	return map[string]string{"vault": formatAddress(vault)}, nil
}

func (s *Server) handleEventsLatest(params []json.RawMessage) (interface{}, *RPCError) {
	if len(params) > 0 {
		return nil, &RPCError{Code: codeInvalidParams, Message: "method takes no params"}
	}
	recorded := s.node.Events()
	out := make([]*types.Event, 0, len(recorded))
	out = append(out, recorded...)
	return map[string]interface{}{"events": out}, nil
}

package market

import (
	"encoding/hex"
	"math/big"
	"strconv"

	"nftmarket/core/types"
)

const (
	EventTypeOrderCreated  = "market.order_created"
	EventTypeBid           = "market.bid"
	EventTypeOrderFilled   = "market.order_filled"
	EventTypeOrderRejected = "market.order_rejected"
	EventTypeOrderExpired  = "market.order_expired"
)

// NewOrderCreatedEvent returns the canonical event payload for a freshly
// listed order.
func NewOrderCreatedEvent(venue string, o *Order) *types.Event {
	attrs := orderAttributes(venue, o)
	if o != nil {
		attrs["assetId"] = strconv.FormatUint(o.AssetID, 10)
		attrs["price"] = bigString(o.Price)
		attrs["expiresAt"] = strconv.FormatInt(o.ExpiresAt, 10)
	}
	return &types.Event{Type: EventTypeOrderCreated, Attributes: attrs}
}

// NewBidEvent returns the canonical event payload for an accepted bid,
// including the total funds the engine now holds against the order.
func NewBidEvent(venue string, orderID uint64, bidder [20]byte, amount, cumulativeEscrow *big.Int) *types.Event {
	attrs := map[string]string{
		"venue":            venue,
		"orderId":          strconv.FormatUint(orderID, 10),
		"bidder":           hex.EncodeToString(bidder[:]),
		"amount":           bigString(amount),
		"cumulativeEscrow": bigString(cumulativeEscrow),
	}
	return &types.Event{Type: EventTypeBid, Attributes: attrs}
}

// NewOrderFilledEvent returns the canonical settlement event payload.
func NewOrderFilledEvent(venue string, o *Order, buyer [20]byte, finalPrice *big.Int) *types.Event {
	attrs := orderAttributes(venue, o)
	attrs["buyer"] = hex.EncodeToString(buyer[:])
	attrs["finalPrice"] = bigString(finalPrice)
	return &types.Event{Type: EventTypeOrderFilled, Attributes: attrs}
}

// NewOrderRejectedEvent returns the canonical cancellation event payload.
func NewOrderRejectedEvent(venue string, o *Order) *types.Event {
	return &types.Event{Type: EventTypeOrderRejected, Attributes: orderAttributes(venue, o)}
}

// NewOrderExpiredEvent returns the canonical expiry-reclaim event payload.
func NewOrderExpiredEvent(venue string, o *Order) *types.Event {
	return &types.Event{Type: EventTypeOrderExpired, Attributes: orderAttributes(venue, o)}
}

func orderAttributes(venue string, o *Order) map[string]string {
	attrs := map[string]string{"venue": venue}
	if o != nil {
		attrs["orderId"] = strconv.FormatUint(o.ID, 10)
		attrs["seller"] = hex.EncodeToString(o.Seller[:])
	}
	return attrs
}

func bigString(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}

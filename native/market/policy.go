package market

// TradingPolicy parameterises the shared order state machine with the
// capabilities of one trading variant. The three stock policies correspond to
// the fixed-price sale, the bid-and-accept marketplace and the timed auction;
// everything else about the lifecycle is common.
type TradingPolicy struct {
	// Name identifies the variant in events, metrics and pause guards.
	Name string
	// AllowsBidding enables the bid ledger for the variant.
	AllowsBidding bool
	// AllowsDirectBuy enables immediate settlement at the listed price.
	AllowsDirectBuy bool
	// AllowsSellerAccept enables the seller settling against the leader.
	AllowsSellerAccept bool
	// AllowsAuctionClaim enables the leader claiming after expiry. While the
	// claim window is open the seller cannot reclaim the asset.
	AllowsAuctionClaim bool
	// AnyoneReclaims permits any caller to finalise an expired order instead
	// of only the seller.
	AnyoneReclaims bool
}

// FixedSalePolicy sells at the listed price to the first exact payer. Expired
// listings may be reclaimed by anyone since no buyer action is pending.
func FixedSalePolicy() TradingPolicy {
	return TradingPolicy{
		Name:            "sale",
		AllowsDirectBuy: true,
		AnyoneReclaims:  true,
	}
}

// MarketplacePolicy collects escrowed bids and settles when the seller
// accepts the current leader.
func MarketplacePolicy() TradingPolicy {
	return TradingPolicy{
		Name:               "marketplace",
		AllowsBidding:      true,
		AllowsSellerAccept: true,
	}
}

// AuctionPolicy collects escrowed bids until expiry; the leader then claims
// the asset using the funds escrowed with the winning bid.
func AuctionPolicy() TradingPolicy {
	return TradingPolicy{
		Name:               "auction",
		AllowsBidding:      true,
		AllowsAuctionClaim: true,
	}
}

package market

import "errors"

// Named failure kinds surfaced by the trading engines. Every precondition
// failure maps to exactly one of these sentinels so callers (and the RPC
// layer) can rely on errors.Is instead of string matching.
var (
	// ErrInvalidDuration rejects order creation when the requested listing
	// duration falls outside the configured window.
	ErrInvalidDuration = errors.New("market: invalid expiration duration")
	// ErrNotOwnerOrNotApproved rejects order creation when the seller does
	// not control the asset or has not approved the vault for transfer.
	ErrNotOwnerOrNotApproved = errors.New("market: caller does not own asset or vault not approved")
	// ErrNotAuthorized rejects callers acting on orders they do not own.
	ErrNotAuthorized = errors.New("market: caller not authorized")
	// ErrOrderNotActive rejects mutations against terminal orders.
	ErrOrderNotActive = errors.New("market: order not active")
	// ErrOrderExpired rejects bids and direct buys past the order deadline.
	ErrOrderExpired = errors.New("market: order expired")
	// ErrOrderStillActive rejects operations that require the order (or its
	// auction window) to have concluded.
	ErrOrderStillActive = errors.New("market: order still active")
	// ErrBiddingStarted rejects cancellation once a live bid exists.
	ErrBiddingStarted = errors.New("market: bidding already started")
	// ErrBidTooLow rejects bids that do not strictly exceed the current
	// leader, or fall below the listed starting price.
	ErrBidTooLow = errors.New("market: bid too low")
	// ErrIncorrectFunds rejects payments that do not exactly cover the
	// required amount plus fee.
	ErrIncorrectFunds = errors.New("market: incorrect funds")
	// ErrInsufficientBalance rejects payments the payer cannot cover.
	ErrInsufficientBalance = errors.New("market: insufficient balance")
	// ErrInvalidIndex rejects queries for order ids that were never issued.
	ErrInvalidIndex = errors.New("market: invalid order index")
	// ErrNothingToWithdraw rejects withdrawal when no parked balance exists.
	ErrNothingToWithdraw = errors.New("market: nothing to withdraw")
	// ErrNotWinningBidder rejects settlement claims from anyone except the
	// current leader, including the no-leader case.
	ErrNotWinningBidder = errors.New("market: caller must be the winning bidder")
	// ErrFeeConfigInvalid rejects engine construction with a fee rate above
	// the maximum denominator.
	ErrFeeConfigInvalid = errors.New("market: fee configuration invalid")
	// ErrOperationNotAllowed rejects operations the trading policy does not
	// support (e.g. bidding on a fixed-price sale).
	ErrOperationNotAllowed = errors.New("market: operation not allowed by trading policy")
)

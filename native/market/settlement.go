package market

import (
	"math/big"

	nativecommon "nftmarket/native/common"
)

// BuyNow settles a fixed-price listing against freshly supplied funds. The
// payment must equal price plus fee exactly.
func (e *Engine) BuyNow(orderID uint64, funds *big.Int, buyer [20]byte) error {
	if err := e.ready(); err != nil {
		return err
	}
	if err := nativecommon.Guard(e.pauses, e.policy.Name); err != nil {
		return err
	}
	if !e.policy.AllowsDirectBuy {
		return ErrOperationNotAllowed
	}
	order, err := e.loadOrder(orderID)
	if err != nil {
		return err
	}
	if order.Status != OrderActive {
		return ErrOrderNotActive
	}
	if e.now() >= order.ExpiresAt {
		return ErrOrderExpired
	}
	fee := Fee(order.Price, e.feeBps)
	required := new(big.Int).Add(order.Price, fee)
	if funds == nil || funds.Cmp(required) != 0 {
		return ErrIncorrectFunds
	}
	balance, err := e.balanceOf(buyer)
	if err != nil {
		return err
	}
	if balance.Cmp(required) < 0 {
		return ErrInsufficientBalance
	}
	if err := e.transfer(buyer, e.vault, required); err != nil {
		return err
	}
	return e.settle(order, buyer, order.Price, fee)
}

// AcceptHighestBid settles the order against the current leader's escrowed
// funds. Only the seller may accept, and a leader must exist. Acceptance
// remains possible after expiry for as long as the order is active.
func (e *Engine) AcceptHighestBid(orderID uint64, caller [20]byte) error {
	if err := e.ready(); err != nil {
		return err
	}
	if err := nativecommon.Guard(e.pauses, e.policy.Name); err != nil {
		return err
	}
	if !e.policy.AllowsSellerAccept {
		return ErrOperationNotAllowed
	}
	order, err := e.loadOrder(orderID)
	if err != nil {
		return err
	}
	if order.Status != OrderActive {
		return ErrOrderNotActive
	}
	if order.Seller != caller {
		return ErrNotAuthorized
	}
	bid, ok := e.state.BidGet(orderID)
	if !ok {
		return ErrNotWinningBidder
	}
	return e.settleBid(order, bid)
}

// ClaimAuctionWin lets the leader collect the asset once the auction window
// has closed. The winning bid was escrowed in full when it was placed, so no
// second payment is required or accepted.
func (e *Engine) ClaimAuctionWin(orderID uint64, caller [20]byte) error {
	if err := e.ready(); err != nil {
		return err
	}
	if err := nativecommon.Guard(e.pauses, e.policy.Name); err != nil {
		return err
	}
	if !e.policy.AllowsAuctionClaim {
		return ErrOperationNotAllowed
	}
	order, err := e.loadOrder(orderID)
	if err != nil {
		return err
	}
	if order.Status != OrderActive {
		return ErrOrderNotActive
	}
	if e.now() < order.ExpiresAt {
		return ErrOrderStillActive
	}
	bid, ok := e.state.BidGet(orderID)
	if !ok || bid.Bidder != caller {
		return ErrNotWinningBidder
	}
	return e.settleBid(order, bid)
}

// settleBid disburses the leader's escrow: amount to the seller, fee to the
// fee receiver, asset to the bidder.
func (e *Engine) settleBid(order *Order, bid *Bid) error {
	if err := e.state.EscrowDebit(order.ID, bid.Escrowed()); err != nil {
		return err
	}
	if err := e.state.BidDelete(order.ID); err != nil {
		return err
	}
	return e.settle(order, bid.Bidder, cloneBigInt(bid.Amount), cloneBigInt(bid.EscrowedFee))
}

// settle is the common terminal step for all three variants. The order is
// moved to its sink state and the fee recorded before any funds leave the
// vault, so re-entrant observers can never witness a fillable order whose
// payout already happened.
func (e *Engine) settle(order *Order, buyer [20]byte, price, fee *big.Int) error {
	order.Status = OrderFilled
	order.FeesPaid = new(big.Int).Add(order.FeesPaid, fee)
	if err := e.state.OrderPut(order); err != nil {
		return err
	}
	if err := e.transfer(e.vault, order.Seller, price); err != nil {
		return err
	}
	if fee.Sign() > 0 {
		if err := e.transfer(e.vault, e.feeReceiver, fee); err != nil {
			return err
		}
	}
	if err := e.custody.TransferOut(order.AssetID, buyer); err != nil {
		return err
	}
	e.emit(NewOrderFilledEvent(e.policy.Name, order, buyer, price))
	return nil
}

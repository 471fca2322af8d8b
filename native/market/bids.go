package market

import (
	"fmt"
	"math/big"

	nativecommon "nftmarket/native/common"
)

// PlaceBid escrows funds for a new leading bid. The payment must equal the
// bid amount plus the fee exactly; over- and underpayment are both rejected.
// A displaced leader is never paid synchronously — their escrow converts into
// a parked balance so a refusing recipient can never stall the order.
func (e *Engine) PlaceBid(orderID uint64, amount, funds *big.Int, bidder [20]byte) error {
	if err := e.ready(); err != nil {
		return err
	}
	if err := nativecommon.Guard(e.pauses, e.policy.Name); err != nil {
		return err
	}
	if !e.policy.AllowsBidding {
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
	if amount == nil || amount.Sign() <= 0 {
		return ErrBidTooLow
	}
	current, hasLeader := e.state.BidGet(orderID)
	if hasLeader {
		// Ties are rejected: a new leader must strictly outbid the old one.
		if amount.Cmp(current.Amount) <= 0 {
			return ErrBidTooLow
		}
	} else if amount.Cmp(order.Price) < 0 {
		return ErrBidTooLow
	}
	fee := Fee(amount, e.feeBps)
	required := new(big.Int).Add(amount, fee)
	if funds == nil || funds.Cmp(required) != 0 {
		return ErrIncorrectFunds
	}
	balance, err := e.balanceOf(bidder)
	if err != nil {
		return err
	}
	if balance.Cmp(required) < 0 {
		return ErrInsufficientBalance
	}
	if err := e.transfer(bidder, e.vault, required); err != nil {
		return err
	}
	if err := e.state.EscrowCredit(orderID, required); err != nil {
		return err
	}
	if hasLeader {
		if err := e.parkBid(orderID, current); err != nil {
			return err
		}
	}
	bid := &Bid{
		Bidder:      bidder,
		Amount:      cloneBigInt(amount),
		EscrowedFee: fee,
		PlacedAt:    e.now(),
	}
	if err := e.state.BidPut(orderID, bid); err != nil {
		return err
	}
	cumulative, err := e.orderHoldings(orderID)
	if err != nil {
		return err
	}
	e.emit(NewBidEvent(e.policy.Name, orderID, bidder, amount, cumulative))
	return nil
}

// WithdrawDisplacedFunds pays out the caller's parked balance exactly once.
// The live leader cannot withdraw while their bid still backs the order; on
// the marketplace an expired order releases the leader as well, since no
// claim step exists there.
func (e *Engine) WithdrawDisplacedFunds(orderID uint64, caller [20]byte) (*big.Int, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	if err := nativecommon.Guard(e.pauses, e.policy.Name); err != nil {
		return nil, err
	}
	if !e.policy.AllowsBidding {
		return nil, ErrOperationNotAllowed
	}
	order, err := e.loadOrder(orderID)
	if err != nil {
		return nil, err
	}
	if bid, ok := e.state.BidGet(orderID); ok && bid.Bidder == caller && order.Status == OrderActive {
		if e.policy.AllowsAuctionClaim || e.now() < order.ExpiresAt {
			return nil, ErrOrderStillActive
		}
		if err := e.parkBid(orderID, bid); err != nil {
			return nil, err
		}
	}
	balance, err := e.state.RefundBalance(orderID, caller)
	if err != nil {
		return nil, err
	}
	balance = cloneBigInt(balance)
	if balance.Sign() == 0 {
		return nil, ErrNothingToWithdraw
	}
	// Zero the ledger entry before moving funds so a repeated call observes
	// an already-settled balance.
	if err := e.state.RefundClear(orderID, caller); err != nil {
		return nil, err
	}
	if err := e.transfer(e.vault, caller, balance); err != nil {
		return nil, err
	}
	return balance, nil
}

// orderHoldings returns the total funds the vault currently holds against an
// order: the live escrow plus every parked refund.
func (e *Engine) orderHoldings(orderID uint64) (*big.Int, error) {
	escrow, err := e.state.EscrowBalance(orderID)
	if err != nil {
		return nil, err
	}
	parked, err := e.state.RefundsOutstanding(orderID)
	if err != nil {
		return nil, err
	}
	total := cloneBigInt(escrow)
	if parked != nil {
		if parked.Sign() < 0 {
			return nil, fmt.Errorf("market engine: negative parked refunds")
		}
		total.Add(total, parked)
	}
	return total, nil
}

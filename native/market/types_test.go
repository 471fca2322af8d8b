package market

import (
	"math/big"
	"testing"
)

func TestOrderStatusValid(t *testing.T) {
	for _, s := range []OrderStatus{OrderActive, OrderFilled, OrderCancelled, OrderExpired} {
		if !s.Valid() {
			t.Fatalf("status %v should be valid", s)
		}
	}
	if OrderStatus(7).Valid() {
		t.Fatalf("out-of-range status must be invalid")
	}
	if OrderActive.Terminal() {
		t.Fatalf("active is not terminal")
	}
	for _, s := range []OrderStatus{OrderFilled, OrderCancelled, OrderExpired} {
		if !s.Terminal() {
			t.Fatalf("status %v should be terminal", s)
		}
	}
}

func TestOrderCloneIsDeep(t *testing.T) {
	order := &Order{ID: 3, Price: big.NewInt(100), FeesPaid: big.NewInt(5)}
	clone := order.Clone()
	clone.Price.SetInt64(999)
	clone.FeesPaid.SetInt64(999)
	if order.Price.Cmp(big.NewInt(100)) != 0 || order.FeesPaid.Cmp(big.NewInt(5)) != 0 {
		t.Fatalf("clone shares amount pointers")
	}
}

func TestSanitizeOrderRejectsBadValues(t *testing.T) {
	if _, err := SanitizeOrder(nil); err == nil {
		t.Fatalf("nil order must be rejected")
	}
	if _, err := SanitizeOrder(&Order{Status: OrderStatus(9)}); err == nil {
		t.Fatalf("invalid status must be rejected")
	}
	if _, err := SanitizeOrder(&Order{Price: big.NewInt(-1)}); err == nil {
		t.Fatalf("negative price must be rejected")
	}
	sanitized, err := SanitizeOrder(&Order{Status: OrderActive})
	if err != nil {
		t.Fatalf("SanitizeOrder: %v", err)
	}
	if sanitized.Price == nil || sanitized.FeesPaid == nil {
		t.Fatalf("sanitize must fill nil amounts")
	}
}

func TestBidEscrowed(t *testing.T) {
	bid := &Bid{Amount: big.NewInt(1000), EscrowedFee: big.NewInt(50)}
	if got := bid.Escrowed(); got.Cmp(big.NewInt(1050)) != 0 {
		t.Fatalf("Escrowed = %s, want 1050", got)
	}
	var nilBid *Bid
	if got := nilBid.Escrowed(); got.Sign() != 0 {
		t.Fatalf("nil bid escrow must be zero")
	}
}

package market

import (
	"fmt"
	"math/big"
)

// OrderStatus represents the lifecycle states of a sell order. The numeric
// values match the original contract enum so stored state and external
// consumers agree on the encoding.
type OrderStatus uint8

const (
	OrderActive OrderStatus = iota
	OrderFilled
	OrderCancelled
	OrderExpired
)

// Valid reports whether the status value is within the supported range.
func (s OrderStatus) Valid() bool {
	switch s {
	case OrderActive, OrderFilled, OrderCancelled, OrderExpired:
		return true
	default:
		return false
	}
}

// Terminal reports whether the status is a sink state. Terminal orders never
// transition back to OrderActive.
func (s OrderStatus) Terminal() bool {
	return s != OrderActive
}

func (s OrderStatus) String() string {
	switch s {
	case OrderActive:
		return "active"
	case OrderFilled:
		return "filled"
	case OrderCancelled:
		return "cancelled"
	case OrderExpired:
		return "expired"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(s))
	}
}

// Order captures one attempt to sell a single custodied asset. Orders live in
// a dense append-only registry; the identifier is the index at which the
// order was appended and is never reused.
type Order struct {
	ID        uint64
	Seller    [20]byte
	AssetID   uint64
	Price     *big.Int
	FeesPaid  *big.Int
	CreatedAt int64
	ExpiresAt int64
	Status    OrderStatus
}

// Clone returns a deep copy of the order so callers can safely mutate the
// copy without affecting the stored instance.
func (o *Order) Clone() *Order {
	if o == nil {
		return nil
	}
	clone := *o
	if o.Price != nil {
		clone.Price = new(big.Int).Set(o.Price)
	} else {
		clone.Price = big.NewInt(0)
	}
	if o.FeesPaid != nil {
		clone.FeesPaid = new(big.Int).Set(o.FeesPaid)
	} else {
		clone.FeesPaid = big.NewInt(0)
	}
	return &clone
}

// SanitizeOrder validates the supplied order and returns a cloned instance
// with non-nil amount fields. The function does not mutate the original.
func SanitizeOrder(o *Order) (*Order, error) {
	if o == nil {
		return nil, fmt.Errorf("market: nil order")
	}
	if !o.Status.Valid() {
		return nil, fmt.Errorf("market: invalid order status %d", o.Status)
	}
	clone := o.Clone()
	if clone.Price.Sign() < 0 {
		return nil, fmt.Errorf("market: negative order price")
	}
	if clone.FeesPaid.Sign() < 0 {
		return nil, fmt.Errorf("market: negative accumulated fees")
	}
	return clone, nil
}

// Bid records the current leader of a competitive order. Earlier bids are not
// retained; displacement converts them into parked refund balances.
type Bid struct {
	Bidder      [20]byte
	Amount      *big.Int
	EscrowedFee *big.Int
	PlacedAt    int64
}

// Clone returns a deep copy of the bid.
func (b *Bid) Clone() *Bid {
	if b == nil {
		return nil
	}
	clone := *b
	if b.Amount != nil {
		clone.Amount = new(big.Int).Set(b.Amount)
	} else {
		clone.Amount = big.NewInt(0)
	}
	if b.EscrowedFee != nil {
		clone.EscrowedFee = new(big.Int).Set(b.EscrowedFee)
	} else {
		clone.EscrowedFee = big.NewInt(0)
	}
	return &clone
}

// Escrowed returns the total funds held for the bid: the bid amount plus the
// fee collected alongside it.
func (b *Bid) Escrowed() *big.Int {
	if b == nil {
		return big.NewInt(0)
	}
	total := big.NewInt(0)
	if b.Amount != nil {
		total.Add(total, b.Amount)
	}
	if b.EscrowedFee != nil {
		total.Add(total, b.EscrowedFee)
	}
	return total
}

// Package state persists market, asset and account records in a key-value
// store. A single Manager owns the shared account and asset ledgers; each
// trading venue gets its own namespaced view for orders, bids and escrow so
// order identifiers never collide across venues.
package state

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/rlp"

	"nftmarket/core/types"
	"nftmarket/native/market"
	"nftmarket/storage"
)

const (
	accountPrefix       = "acct/"
	assetOwnerPrefix    = "asset/owner/"
	assetApprovalPrefix = "asset/approval/"
	venuePrefix         = "mkt/"
)

// Manager wraps a storage backend with the typed accessors the registry and
// the trading engines need.
type Manager struct {
	db storage.Database
}

// NewManager creates a state manager over the supplied database.
func NewManager(db storage.Database) *Manager {
	return &Manager{db: db}
}

func u64key(prefix string, id uint64) []byte {
	key := make([]byte, len(prefix)+8)
	copy(key, prefix)
	binary.BigEndian.PutUint64(key[len(prefix):], id)
	return key
}

type storedAccount struct {
	Nonce   uint64
	Balance *big.Int
}

// GetAccount loads the account for an address. Unknown addresses resolve to
// an empty account rather than an error.
func (m *Manager) GetAccount(addr []byte) (*types.Account, error) {
	raw, err := m.db.Get(append([]byte(accountPrefix), addr...))
	if errors.Is(err, storage.ErrKeyNotFound) {
		return &types.Account{Balance: big.NewInt(0)}, nil
	}
	if err != nil {
		return nil, err
	}
	var stored storedAccount
	if err := rlp.DecodeBytes(raw, &stored); err != nil {
		return nil, fmt.Errorf("state: decode account: %w", err)
	}
	balance := stored.Balance
	if balance == nil {
		balance = big.NewInt(0)
	}
	return &types.Account{Nonce: stored.Nonce, Balance: balance}, nil
}

// PutAccount stores the account for an address.
func (m *Manager) PutAccount(addr []byte, account *types.Account) error {
	if account == nil {
		return fmt.Errorf("state: nil account")
	}
	balance := account.Balance
	if balance == nil {
		balance = big.NewInt(0)
	}
	if balance.Sign() < 0 {
		return fmt.Errorf("state: negative balance")
	}
	raw, err := rlp.EncodeToBytes(&storedAccount{Nonce: account.Nonce, Balance: balance})
	if err != nil {
		return err
	}
	return m.db.Put(append([]byte(accountPrefix), addr...), raw)
}

// AssetOwner returns the recorded owner of an asset.
func (m *Manager) AssetOwner(id uint64) ([20]byte, bool, error) {
	return m.getAddress(u64key(assetOwnerPrefix, id))
}

// AssetOwnerPut records the owner of an asset.
func (m *Manager) AssetOwnerPut(id uint64, owner [20]byte) error {
	return m.db.Put(u64key(assetOwnerPrefix, id), owner[:])
}

// AssetApproval returns the standing transfer approval for an asset.
func (m *Manager) AssetApproval(id uint64) ([20]byte, bool, error) {
	return m.getAddress(u64key(assetApprovalPrefix, id))
}

// AssetApprovalPut records a transfer approval for an asset.
func (m *Manager) AssetApprovalPut(id uint64, spender [20]byte) error {
	return m.db.Put(u64key(assetApprovalPrefix, id), spender[:])
}

// AssetApprovalClear removes any standing approval for an asset.
func (m *Manager) AssetApprovalClear(id uint64) error {
	return m.db.Delete(u64key(assetApprovalPrefix, id))
}

func (m *Manager) getAddress(key []byte) ([20]byte, bool, error) {
	raw, err := m.db.Get(key)
	if errors.Is(err, storage.ErrKeyNotFound) {
		return [20]byte{}, false, nil
	}
	if err != nil {
		return [20]byte{}, false, err
	}
	if len(raw) != 20 {
		return [20]byte{}, false, fmt.Errorf("state: malformed address record")
	}
	var addr [20]byte
	copy(addr[:], raw)
	return addr, true, nil
}

// Venue returns the namespaced state view for one trading venue.
func (m *Manager) Venue(name string) *VenueState {
	return &VenueState{manager: m, prefix: venuePrefix + name + "/"}
}

// VenueState scopes order, bid, escrow and refund records to one venue while
// sharing the account ledger with every other venue.
type VenueState struct {
	manager *Manager
	prefix  string
}

type storedOrder struct {
	ID        uint64
	Seller    [20]byte
	AssetID   uint64
	Price     *big.Int
	FeesPaid  *big.Int
	CreatedAt uint64
	ExpiresAt uint64
	Status    uint8
}

type storedBid struct {
	Bidder      [20]byte
	Amount      *big.Int
	EscrowedFee *big.Int
	PlacedAt    uint64
}

func (v *VenueState) countKey() []byte { return []byte(v.prefix + "count") }

func (v *VenueState) orderKey(id uint64) []byte { return u64key(v.prefix+"order/", id) }

func (v *VenueState) bidKey(id uint64) []byte { return u64key(v.prefix+"bid/", id) }

func (v *VenueState) escrowKey(id uint64) []byte { return u64key(v.prefix+"escrow/", id) }

func (v *VenueState) refundKey(id uint64, addr [20]byte) []byte {
	return append(u64key(v.prefix+"refund/", id), addr[:]...)
}

func (v *VenueState) refundSumKey(id uint64) []byte { return u64key(v.prefix+"refundsum/", id) }

// OrdersCount returns the number of orders appended so far.
func (v *VenueState) OrdersCount() uint64 {
	raw, err := v.manager.db.Get(v.countKey())
	if err != nil || len(raw) != 8 {
		return 0
	}
	return binary.BigEndian.Uint64(raw)
}

// OrderAppend assigns the next dense identifier and stores the order.
func (v *VenueState) OrderAppend(order *market.Order) (uint64, error) {
	sanitized, err := market.SanitizeOrder(order)
	if err != nil {
		return 0, err
	}
	id := v.OrdersCount()
	sanitized.ID = id
	if err := v.writeOrder(sanitized); err != nil {
		return 0, err
	}
	var next [8]byte
	binary.BigEndian.PutUint64(next[:], id+1)
	if err := v.manager.db.Put(v.countKey(), next[:]); err != nil {
		return 0, err
	}
	return id, nil
}

// OrderGet loads an order by identifier.
func (v *VenueState) OrderGet(id uint64) (*market.Order, bool) {
	raw, err := v.manager.db.Get(v.orderKey(id))
	if err != nil {
		return nil, false
	}
	var stored storedOrder
	if err := rlp.DecodeBytes(raw, &stored); err != nil {
		return nil, false
	}
	return &market.Order{
		ID:        stored.ID,
		Seller:    stored.Seller,
		AssetID:   stored.AssetID,
		Price:     stored.Price,
		FeesPaid:  stored.FeesPaid,
		CreatedAt: int64(stored.CreatedAt),
		ExpiresAt: int64(stored.ExpiresAt),
		Status:    market.OrderStatus(stored.Status),
	}, true
}

// OrderPut overwrites an existing order record.
func (v *VenueState) OrderPut(order *market.Order) error {
	sanitized, err := market.SanitizeOrder(order)
	if err != nil {
		return err
	}
	if sanitized.ID >= v.OrdersCount() {
		return fmt.Errorf("state: order %d not appended", sanitized.ID)
	}
	return v.writeOrder(sanitized)
}

func (v *VenueState) writeOrder(order *market.Order) error {
	if order.CreatedAt < 0 || order.ExpiresAt < 0 {
		return fmt.Errorf("state: negative order timestamp")
	}
	raw, err := rlp.EncodeToBytes(&storedOrder{
		ID:        order.ID,
		Seller:    order.Seller,
		AssetID:   order.AssetID,
		Price:     order.Price,
		FeesPaid:  order.FeesPaid,
		CreatedAt: uint64(order.CreatedAt),
		ExpiresAt: uint64(order.ExpiresAt),
		Status:    uint8(order.Status),
	})
	if err != nil {
		return err
	}
	return v.manager.db.Put(v.orderKey(order.ID), raw)
}

// BidPut stores the live bid for an order.
func (v *VenueState) BidPut(orderID uint64, bid *market.Bid) error {
	if bid == nil {
		return fmt.Errorf("state: nil bid")
	}
	if bid.PlacedAt < 0 {
		return fmt.Errorf("state: negative bid timestamp")
	}
	clone := bid.Clone()
	raw, err := rlp.EncodeToBytes(&storedBid{
		Bidder:      clone.Bidder,
		Amount:      clone.Amount,
		EscrowedFee: clone.EscrowedFee,
		PlacedAt:    uint64(clone.PlacedAt),
	})
	if err != nil {
		return err
	}
	return v.manager.db.Put(v.bidKey(orderID), raw)
}

// BidGet loads the live bid for an order.
func (v *VenueState) BidGet(orderID uint64) (*market.Bid, bool) {
	raw, err := v.manager.db.Get(v.bidKey(orderID))
	if err != nil {
		return nil, false
	}
	var stored storedBid
	if err := rlp.DecodeBytes(raw, &stored); err != nil {
		return nil, false
	}
	return &market.Bid{
		Bidder:      stored.Bidder,
		Amount:      stored.Amount,
		EscrowedFee: stored.EscrowedFee,
		PlacedAt:    int64(stored.PlacedAt),
	}, true
}

// BidDelete removes the live bid for an order.
func (v *VenueState) BidDelete(orderID uint64) error {
	return v.manager.db.Delete(v.bidKey(orderID))
}

// EscrowCredit increases the live escrow held against an order.
func (v *VenueState) EscrowCredit(orderID uint64, amount *big.Int) error {
	return v.adjust(v.escrowKey(orderID), amount, false)
}

// EscrowDebit decreases the live escrow held against an order. Debiting below
// zero is a bookkeeping fault and fails loudly.
func (v *VenueState) EscrowDebit(orderID uint64, amount *big.Int) error {
	return v.adjust(v.escrowKey(orderID), amount, true)
}

// EscrowBalance returns the live escrow held against an order.
func (v *VenueState) EscrowBalance(orderID uint64) (*big.Int, error) {
	return v.readAmount(v.escrowKey(orderID))
}

// RefundCredit parks a withdrawable balance for a displaced bidder.
func (v *VenueState) RefundCredit(orderID uint64, addr [20]byte, amount *big.Int) error {
	if err := v.adjust(v.refundKey(orderID, addr), amount, false); err != nil {
		return err
	}
	return v.adjust(v.refundSumKey(orderID), amount, false)
}

// RefundBalance returns the parked balance for one bidder on one order.
func (v *VenueState) RefundBalance(orderID uint64, addr [20]byte) (*big.Int, error) {
	return v.readAmount(v.refundKey(orderID, addr))
}

// RefundClear zeroes the parked balance for one bidder on one order.
func (v *VenueState) RefundClear(orderID uint64, addr [20]byte) error {
	balance, err := v.readAmount(v.refundKey(orderID, addr))
	if err != nil {
		return err
	}
	if balance.Sign() == 0 {
		return nil
	}
	if err := v.adjust(v.refundSumKey(orderID), balance, true); err != nil {
		return err
	}
	return v.manager.db.Delete(v.refundKey(orderID, addr))
}

// RefundsOutstanding returns the sum of all parked balances for an order.
func (v *VenueState) RefundsOutstanding(orderID uint64) (*big.Int, error) {
	return v.readAmount(v.refundSumKey(orderID))
}

// GetAccount delegates to the shared account ledger.
func (v *VenueState) GetAccount(addr []byte) (*types.Account, error) {
	return v.manager.GetAccount(addr)
}

// PutAccount delegates to the shared account ledger.
func (v *VenueState) PutAccount(addr []byte, account *types.Account) error {
	return v.manager.PutAccount(addr, account)
}

func (v *VenueState) readAmount(key []byte) (*big.Int, error) {
	raw, err := v.manager.db.Get(key)
	if errors.Is(err, storage.ErrKeyNotFound) {
		return big.NewInt(0), nil
	}
	if err != nil {
		return nil, err
	}
	return new(big.Int).SetBytes(raw), nil
}

func (v *VenueState) adjust(key []byte, amount *big.Int, debit bool) error {
	if amount == nil || amount.Sign() < 0 {
		return fmt.Errorf("state: invalid adjustment amount")
	}
	current, err := v.readAmount(key)
	if err != nil {
		return err
	}
	if debit {
		if current.Cmp(amount) < 0 {
			return fmt.Errorf("state: balance underflow")
		}
		current.Sub(current, amount)
	} else {
		current.Add(current, amount)
	}
	if current.Sign() == 0 {
		return v.manager.db.Delete(key)
	}
	return v.manager.db.Put(key, current.Bytes())
}

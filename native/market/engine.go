package market

import (
	"errors"
	"fmt"
	"math/big"
	"time"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"

	"nftmarket/core/events"
	"nftmarket/core/types"
	nativecommon "nftmarket/native/common"
)

var (
	errNilState   = errors.New("market engine: state not configured")
	errNilCustody = errors.New("market engine: custody provider not configured")
)

// Custody is the capability set the engine requires from the asset
// collaborator. The engine never assumes anything about the internal asset
// representation beyond these four operations.
type Custody interface {
	TransferInto(assetID uint64, from [20]byte) error
	TransferOut(assetID uint64, to [20]byte) error
	OwnerOf(assetID uint64) ([20]byte, error)
	IsApprovedForTransfer(assetID uint64, by, to [20]byte) (bool, error)
}

type engineState interface {
	OrderAppend(*Order) (uint64, error)
	OrderGet(id uint64) (*Order, bool)
	OrderPut(*Order) error
	OrdersCount() uint64
	BidPut(orderID uint64, bid *Bid) error
	BidGet(orderID uint64) (*Bid, bool)
	BidDelete(orderID uint64) error
	RefundCredit(orderID uint64, addr [20]byte, amount *big.Int) error
	RefundBalance(orderID uint64, addr [20]byte) (*big.Int, error)
	RefundClear(orderID uint64, addr [20]byte) error
	RefundsOutstanding(orderID uint64) (*big.Int, error)
	EscrowCredit(orderID uint64, amount *big.Int) error
	EscrowDebit(orderID uint64, amount *big.Int) error
	EscrowBalance(orderID uint64) (*big.Int, error)
	GetAccount(addr []byte) (*types.Account, error)
	PutAccount(addr []byte, account *types.Account) error
}

type marketEvent struct {
	evt *types.Event
}

func (e marketEvent) EventType() string {
	if e.evt == nil {
		return ""
	}
	return e.evt.Type
}

func (e marketEvent) Event() *types.Event { return e.evt }

// Engine owns the order/bid lifecycle and settlement for one trading variant.
// Asset custody and escrowed funds belong to the engine's vault for as long
// as an order stays active; every external entry point re-validates status
// and deadlines before mutating anything.
type Engine struct {
	state       engineState
	custody     Custody
	emitter     events.Emitter
	policy      TradingPolicy
	feeBps      uint32
	feeReceiver [20]byte
	vault       [20]byte
	minDuration int64
	maxDuration int64
	nowFn       func() int64
	pauses      nativecommon.PauseView
}

// NewEngine creates a trading engine for the supplied policy. The fee rate is
// validated once here; a rate above MaxFeeDenominator never reaches
// settlement. The vault address is derived deterministically from the policy
// name so each variant holds custody and escrow under its own account.
func NewEngine(policy TradingPolicy, feeBps uint32, feeReceiver [20]byte, minDuration, maxDuration int64) (*Engine, error) {
	if feeBps > MaxFeeDenominator {
		return nil, ErrFeeConfigInvalid
	}
	if feeReceiver == ([20]byte{}) {
		return nil, fmt.Errorf("market engine: fee receiver not configured")
	}
	if minDuration <= 0 || maxDuration < minDuration {
		return nil, fmt.Errorf("market engine: invalid duration bounds [%d, %d]", minDuration, maxDuration)
	}
	return &Engine{
		emitter:     events.NoopEmitter{},
		policy:      policy,
		feeBps:      feeBps,
		feeReceiver: feeReceiver,
		vault:       VaultAddress(policy.Name),
		minDuration: minDuration,
		maxDuration: maxDuration,
		nowFn:       func() int64 { return time.Now().Unix() },
	}, nil
}

// VaultAddress derives the custody/escrow account for a trading venue.
func VaultAddress(venue string) [20]byte {
	digest := ethcrypto.Keccak256([]byte("nftmarket/vault/" + venue))
	var addr [20]byte
	copy(addr[:], digest[12:])
	return addr
}

// SetState configures the state backend used by the engine.
func (e *Engine) SetState(state engineState) { e.state = state }

// SetCustody configures the custody provider used by the engine.
func (e *Engine) SetCustody(c Custody) { e.custody = c }

// SetEmitter configures the event emitter used by the engine. Passing nil
// resets the emitter to a no-op implementation.
func (e *Engine) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		e.emitter = events.NoopEmitter{}
		return
	}
	e.emitter = emitter
}

// SetNowFunc overrides the time source used by the engine. Primarily intended
// for tests to provide deterministic timestamps.
func (e *Engine) SetNowFunc(now func() int64) {
	if now == nil {
		e.nowFn = func() int64 { return time.Now().Unix() }
		return
	}
	e.nowFn = now
}

// SetPauses configures the administrative pause view consulted before every
// state-mutating operation.
func (e *Engine) SetPauses(p nativecommon.PauseView) { e.pauses = p }

// Policy returns the trading policy the engine enforces.
func (e *Engine) Policy() TradingPolicy { return e.policy }

// FeeBps returns the configured fee rate in basis points.
func (e *Engine) FeeBps() uint32 { return e.feeBps }

// Vault returns the address holding custody and escrow for this venue.
func (e *Engine) Vault() [20]byte { return e.vault }

func (e *Engine) emit(event *types.Event) {
	if e == nil || e.emitter == nil || event == nil {
		return
	}
	e.emitter.Emit(marketEvent{evt: event})
}

func (e *Engine) now() int64 {
	if e == nil || e.nowFn == nil {
		return time.Now().Unix()
	}
	return e.nowFn()
}

func (e *Engine) ready() error {
	if e == nil || e.state == nil {
		return errNilState
	}
	if e.custody == nil {
		return errNilCustody
	}
	return nil
}

func (e *Engine) loadOrder(orderID uint64) (*Order, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	order, ok := e.state.OrderGet(orderID)
	if !ok {
		return nil, ErrInvalidIndex
	}
	return SanitizeOrder(order)
}

func ensureAccount(acc *types.Account) *types.Account {
	if acc == nil {
		return &types.Account{Balance: big.NewInt(0)}
	}
	if acc.Balance == nil {
		acc.Balance = big.NewInt(0)
	}
	return acc
}

func cloneBigInt(v *big.Int) *big.Int {
	if v == nil {
		return big.NewInt(0)
	}
	return new(big.Int).Set(v)
}

// balanceOf reads the spendable balance of an address without mutating state.
func (e *Engine) balanceOf(addr [20]byte) (*big.Int, error) {
	acc, err := e.state.GetAccount(addr[:])
	if err != nil {
		return nil, err
	}
	return cloneBigInt(ensureAccount(acc).Balance), nil
}

func (e *Engine) transfer(from, to [20]byte, amount *big.Int) error {
	amt := cloneBigInt(amount)
	if amt.Sign() == 0 {
		return nil
	}
	if amt.Sign() < 0 {
		return fmt.Errorf("market engine: negative transfer amount")
	}
	fromAcc, err := e.state.GetAccount(from[:])
	if err != nil {
		return err
	}
	toAcc, err := e.state.GetAccount(to[:])
	if err != nil {
		return err
	}
	fromAcc = ensureAccount(fromAcc)
	toAcc = ensureAccount(toAcc)
	if fromAcc.Balance.Cmp(amt) < 0 {
		return ErrInsufficientBalance
	}
	fromAcc.Balance = new(big.Int).Sub(fromAcc.Balance, amt)
	toAcc.Balance = new(big.Int).Add(toAcc.Balance, amt)
	if err := e.state.PutAccount(from[:], fromAcc); err != nil {
		return err
	}
	return e.state.PutAccount(to[:], toAcc)
}

// CreateOrder moves the asset into vault custody and appends a new active
// order. The duration window is checked before any custody transfer so a
// rejected listing leaves the asset untouched.
func (e *Engine) CreateOrder(assetID uint64, price *big.Int, duration int64, seller [20]byte) (uint64, error) {
	if err := e.ready(); err != nil {
		return 0, err
	}
	if err := nativecommon.Guard(e.pauses, e.policy.Name); err != nil {
		return 0, err
	}
	if price == nil || price.Sign() <= 0 {
		return 0, fmt.Errorf("market engine: price must be positive")
	}
	now := e.now()
	expiresAt, err := ExpiresAt(now, duration, e.minDuration, e.maxDuration)
	if err != nil {
		return 0, err
	}
	owner, err := e.custody.OwnerOf(assetID)
	if err != nil {
		return 0, err
	}
	if owner != seller {
		return 0, ErrNotOwnerOrNotApproved
	}
	approved, err := e.custody.IsApprovedForTransfer(assetID, seller, e.vault)
	if err != nil {
		return 0, err
	}
	if !approved {
		return 0, ErrNotOwnerOrNotApproved
	}
	if err := e.custody.TransferInto(assetID, seller); err != nil {
		return 0, err
	}
	order := &Order{
		Seller:    seller,
		AssetID:   assetID,
		Price:     cloneBigInt(price),
		FeesPaid:  big.NewInt(0),
		CreatedAt: now,
		ExpiresAt: expiresAt,
		Status:    OrderActive,
	}
	id, err := e.state.OrderAppend(order)
	if err != nil {
		return 0, err
	}
	order.ID = id
	e.emit(NewOrderCreatedEvent(e.policy.Name, order))
	return id, nil
}

// CancelOrder returns the asset to the seller before any bid has been
// accepted. Once a live bid exists the order can only conclude through
// settlement or expiry.
func (e *Engine) CancelOrder(orderID uint64, caller [20]byte) error {
	if err := e.ready(); err != nil {
		return err
	}
	if err := nativecommon.Guard(e.pauses, e.policy.Name); err != nil {
		return err
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
	if e.policy.AllowsBidding {
		if _, ok := e.state.BidGet(orderID); ok {
			return ErrBiddingStarted
		}
	}
	order.Status = OrderCancelled
	if err := e.state.OrderPut(order); err != nil {
		return err
	}
	if err := e.custody.TransferOut(order.AssetID, order.Seller); err != nil {
		return err
	}
	e.emit(NewOrderRejectedEvent(e.policy.Name, order))
	return nil
}

// ReclaimExpired finalises an order whose deadline has passed without a
// qualifying settlement. The asset returns to the seller and any live bid is
// parked for withdrawal by its bidder. While an auction leader still holds a
// claim right the seller cannot reclaim.
func (e *Engine) ReclaimExpired(orderID uint64, caller [20]byte) error {
	if err := e.ready(); err != nil {
		return err
	}
	if err := nativecommon.Guard(e.pauses, e.policy.Name); err != nil {
		return err
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
	if order.Seller != caller && !e.policy.AnyoneReclaims {
		return ErrNotAuthorized
	}
	if e.policy.AllowsBidding {
		if bid, ok := e.state.BidGet(orderID); ok {
			if e.policy.AllowsAuctionClaim {
				return ErrNotAuthorized
			}
			if err := e.parkBid(orderID, bid); err != nil {
				return err
			}
		}
	}
	order.Status = OrderExpired
	if err := e.state.OrderPut(order); err != nil {
		return err
	}
	if err := e.custody.TransferOut(order.AssetID, order.Seller); err != nil {
		return err
	}
	e.emit(NewOrderExpiredEvent(e.policy.Name, order))
	return nil
}

// parkBid converts the live bid into a pull-based refund balance. The funds
// stay in the vault; only the internal bucket changes.
func (e *Engine) parkBid(orderID uint64, bid *Bid) error {
	escrowed := bid.Escrowed()
	if err := e.state.EscrowDebit(orderID, escrowed); err != nil {
		return err
	}
	if err := e.state.RefundCredit(orderID, bid.Bidder, escrowed); err != nil {
		return err
	}
	return e.state.BidDelete(orderID)
}

// OrdersCount returns the number of orders issued by this venue.
func (e *Engine) OrdersCount() (uint64, error) {
	if e == nil || e.state == nil {
		return 0, errNilState
	}
	return e.state.OrdersCount(), nil
}

// Order returns a copy of the stored order.
func (e *Engine) Order(orderID uint64) (*Order, error) {
	return e.loadOrder(orderID)
}

// OrderStatus returns the lifecycle status of the order.
func (e *Engine) OrderStatus(orderID uint64) (OrderStatus, error) {
	order, err := e.loadOrder(orderID)
	if err != nil {
		return 0, err
	}
	return order.Status, nil
}

// OrderSeller returns the identity that deposited the asset.
func (e *Engine) OrderSeller(orderID uint64) ([20]byte, error) {
	order, err := e.loadOrder(orderID)
	if err != nil {
		return [20]byte{}, err
	}
	return order.Seller, nil
}

// OrderAssetID returns the identifier of the custodied asset.
func (e *Engine) OrderAssetID(orderID uint64) (uint64, error) {
	order, err := e.loadOrder(orderID)
	if err != nil {
		return 0, err
	}
	return order.AssetID, nil
}

// OrderPrice returns the listed price (or starting minimum for auctions).
func (e *Engine) OrderPrice(orderID uint64) (*big.Int, error) {
	order, err := e.loadOrder(orderID)
	if err != nil {
		return nil, err
	}
	return order.Price, nil
}

// OrderExpirationTime returns the order deadline as a unix timestamp.
func (e *Engine) OrderExpirationTime(orderID uint64) (int64, error) {
	order, err := e.loadOrder(orderID)
	if err != nil {
		return 0, err
	}
	return order.ExpiresAt, nil
}

// OrderFeesPaid returns the fees already retained against the order.
func (e *Engine) OrderFeesPaid(orderID uint64) (*big.Int, error) {
	order, err := e.loadOrder(orderID)
	if err != nil {
		return nil, err
	}
	return order.FeesPaid, nil
}

// HighestBid returns a copy of the current leader, if any.
func (e *Engine) HighestBid(orderID uint64) (*Bid, bool, error) {
	if e == nil || e.state == nil {
		return nil, false, errNilState
	}
	if _, err := e.loadOrder(orderID); err != nil {
		return nil, false, err
	}
	bid, ok := e.state.BidGet(orderID)
	if !ok {
		return nil, false, nil
	}
	return bid.Clone(), true, nil
}

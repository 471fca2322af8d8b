package core

import (
	"fmt"
	"math/big"
	"sort"
	"sync"

	"nftmarket/config"
	"nftmarket/core/events"
	"nftmarket/core/types"
	"nftmarket/native/assets"
	nativecommon "nftmarket/native/common"
	"nftmarket/native/market"
	"nftmarket/state"
	"nftmarket/storage"
)

// Venue names used to route requests to the matching trading engine.
const (
	VenueSale        = "sale"
	VenueMarketplace = "marketplace"
	VenueAuction     = "auction"
)

// ErrUnknownVenue is returned when a request names a venue the node does not
// run an engine for.
var ErrUnknownVenue = fmt.Errorf("core: unknown venue")

// Node is the central controller, wiring all components together. Every state
// mutation is serialised through a single mutex so engine invariants hold
// without the engines coordinating between themselves.
type Node struct {
	db       storage.Database
	state    *state.Manager
	registry *assets.Registry
	engines  map[string]*market.Engine
	recorder *events.Recorder

	stateMu sync.Mutex
}

// NewNode builds the node from configuration: one asset registry and one
// engine per trading venue, all backed by the same database.
func NewNode(db storage.Database, cfg *config.Config) (*Node, error) {
	feeReceiver, err := cfg.FeeReceiverAddress()
	if err != nil {
		return nil, err
	}

	manager := state.NewManager(db)
	recorder := events.NewRecorder(1024)

	registry := assets.NewRegistry()
	registry.SetState(manager)
	registry.SetEmitter(recorder)

	policies := []market.TradingPolicy{
		market.FixedSalePolicy(),
		market.MarketplacePolicy(),
		market.AuctionPolicy(),
	}
	pauses := cfg.Pauses()

	engines := make(map[string]*market.Engine, len(policies))
	for _, policy := range policies {
		engine, err := market.NewEngine(policy, cfg.FeeInBps, feeReceiver, cfg.MinExpirationDuration, cfg.MaxExpirationDuration)
		if err != nil {
			return nil, err
		}
		engine.SetState(manager.Venue(policy.Name))
		engine.SetCustody(registry.CustodyFor(engine.Vault()))
		engine.SetEmitter(recorder)
		engine.SetPauses(pauses)
		engines[policy.Name] = engine
	}

	return &Node{
		db:       db,
		state:    manager,
		registry: registry,
		engines:  engines,
		recorder: recorder,
	}, nil
}

// SetNowFunc overrides the clock on every engine. Used in tests.
func (n *Node) SetNowFunc(now func() int64) {
	for _, engine := range n.engines {
		engine.SetNowFunc(now)
	}
}

// SetPauses replaces the pause view consulted by every engine.
func (n *Node) SetPauses(p nativecommon.PauseView) {
	for _, engine := range n.engines {
		engine.SetPauses(p)
	}
}

// Venues lists the venue names the node runs engines for, sorted.
func (n *Node) Venues() []string {
	names := make([]string, 0, len(n.engines))
	for name := range n.engines {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (n *Node) engine(venue string) (*market.Engine, error) {
	engine, ok := n.engines[venue]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownVenue, venue)
	}
	return engine, nil
}

// ApplyGenesis seeds account balances and asset ownership into an empty
// database. It is a no-op when state already exists so restarts are safe.
func (n *Node) ApplyGenesis(gen *config.Genesis) error {
	if gen == nil {
		return nil
	}
	n.stateMu.Lock()
	defer n.stateMu.Unlock()

	applied, err := n.db.Has([]byte("genesis/applied"))
	if err != nil {
		return err
	}
	if applied {
		return nil
	}

	for _, entry := range gen.Accounts {
		addr, balance, err := entry.Allocation()
		if err != nil {
			return err
		}
		account, err := n.state.GetAccount(addr[:])
		if err != nil {
			return err
		}
		account.Balance = new(big.Int).Add(account.Balance, balance)
		if err := n.state.PutAccount(addr[:], account); err != nil {
			return err
		}
	}
	for _, entry := range gen.Assets {
		owner, err := entry.OwnerAddress()
		if err != nil {
			return err
		}
		if err := n.registry.Mint(owner, entry.ID); err != nil {
			return err
		}
	}
	return n.db.Put([]byte("genesis/applied"), []byte{1})
}

// Balance reports the spendable balance of an account.
func (n *Node) Balance(addr [20]byte) (*big.Int, error) {
	n.stateMu.Lock()
	defer n.stateMu.Unlock()
	account, err := n.state.GetAccount(addr[:])
	if err != nil {
		return nil, err
	}
	return new(big.Int).Set(account.Balance), nil
}

// Credit adds funds to an account. Exposed for dev faucets and tests.
func (n *Node) Credit(addr [20]byte, amount *big.Int) error {
	if amount == nil || amount.Sign() <= 0 {
		return fmt.Errorf("core: credit amount must be positive")
	}
	n.stateMu.Lock()
	defer n.stateMu.Unlock()
	account, err := n.state.GetAccount(addr[:])
	if err != nil {
		return err
	}
	account.Balance = new(big.Int).Add(account.Balance, amount)
	return n.state.PutAccount(addr[:], account)
}

// MintAsset registers a new asset under the given owner.
func (n *Node) MintAsset(owner [20]byte, id uint64) error {
	n.stateMu.Lock()
	defer n.stateMu.Unlock()
	return n.registry.Mint(owner, id)
}

// AssetOwner reports the current owner of an asset.
func (n *Node) AssetOwner(id uint64) ([20]byte, error) {
	n.stateMu.Lock()
	defer n.stateMu.Unlock()
	return n.registry.OwnerOf(id)
}

// ApproveAsset grants an operator transfer rights over the caller's asset.
func (n *Node) ApproveAsset(caller, spender [20]byte, id uint64) error {
	n.stateMu.Lock()
	defer n.stateMu.Unlock()
	return n.registry.Approve(caller, spender, id)
}

// TransferAsset moves an asset between accounts outside any order flow.
func (n *Node) TransferAsset(caller, to [20]byte, id uint64) error {
	n.stateMu.Lock()
	defer n.stateMu.Unlock()
	return n.registry.Transfer(caller, to, id)
}

// EngineVault reports the escrow vault address of a venue.
func (n *Node) EngineVault(venue string) ([20]byte, error) {
	engine, err := n.engine(venue)
	if err != nil {
		return [20]byte{}, err
	}
	return engine.Vault(), nil
}

// CreateOrder lists an asset on the named venue and locks it in custody.
func (n *Node) CreateOrder(venue string, assetID uint64, price *big.Int, duration int64, seller [20]byte) (uint64, error) {
	engine, err := n.engine(venue)
	if err != nil {
		return 0, err
	}
	n.stateMu.Lock()
	defer n.stateMu.Unlock()
	return engine.CreateOrder(assetID, price, duration, seller)
}

// CancelOrder withdraws an active listing before any bid arrives.
func (n *Node) CancelOrder(venue string, orderID uint64, caller [20]byte) error {
	engine, err := n.engine(venue)
	if err != nil {
		return err
	}
	n.stateMu.Lock()
	defer n.stateMu.Unlock()
	return engine.CancelOrder(orderID, caller)
}

// ReclaimExpired closes out a listing whose expiry has passed.
func (n *Node) ReclaimExpired(venue string, orderID uint64, caller [20]byte) error {
	engine, err := n.engine(venue)
	if err != nil {
		return err
	}
	n.stateMu.Lock()
	defer n.stateMu.Unlock()
	return engine.ReclaimExpired(orderID, caller)
}

// PlaceBid escrows funds against an order on a bidding venue.
func (n *Node) PlaceBid(venue string, orderID uint64, amount, funds *big.Int, bidder [20]byte) error {
	engine, err := n.engine(venue)
	if err != nil {
		return err
	}
	n.stateMu.Lock()
	defer n.stateMu.Unlock()
	return engine.PlaceBid(orderID, amount, funds, bidder)
}

// WithdrawDisplacedFunds returns escrow parked for an outbid or exited bidder.
func (n *Node) WithdrawDisplacedFunds(venue string, orderID uint64, caller [20]byte) (*big.Int, error) {
	engine, err := n.engine(venue)
	if err != nil {
		return nil, err
	}
	n.stateMu.Lock()
	defer n.stateMu.Unlock()
	return engine.WithdrawDisplacedFunds(orderID, caller)
}

// BuyNow settles a fixed-price listing immediately.
func (n *Node) BuyNow(venue string, orderID uint64, funds *big.Int, buyer [20]byte) error {
	engine, err := n.engine(venue)
	if err != nil {
		return err
	}
	n.stateMu.Lock()
	defer n.stateMu.Unlock()
	return engine.BuyNow(orderID, funds, buyer)
}

// AcceptHighestBid lets the seller settle against the current leading bid.
func (n *Node) AcceptHighestBid(venue string, orderID uint64, caller [20]byte) error {
	engine, err := n.engine(venue)
	if err != nil {
		return err
	}
	n.stateMu.Lock()
	defer n.stateMu.Unlock()
	return engine.AcceptHighestBid(orderID, caller)
}

// ClaimAuctionWin lets the winning bidder collect after the auction ends.
func (n *Node) ClaimAuctionWin(venue string, orderID uint64, caller [20]byte) error {
	engine, err := n.engine(venue)
	if err != nil {
		return err
	}
	n.stateMu.Lock()
	defer n.stateMu.Unlock()
	return engine.ClaimAuctionWin(orderID, caller)
}

// OrdersCount reports how many orders a venue has recorded.
func (n *Node) OrdersCount(venue string) (uint64, error) {
	engine, err := n.engine(venue)
	if err != nil {
		return 0, err
	}
	n.stateMu.Lock()
	defer n.stateMu.Unlock()
	return engine.OrdersCount()
}

// Order retrieves a stored order by index.
func (n *Node) Order(venue string, orderID uint64) (*market.Order, error) {
	engine, err := n.engine(venue)
	if err != nil {
		return nil, err
	}
	n.stateMu.Lock()
	defer n.stateMu.Unlock()
	return engine.Order(orderID)
}

// HighestBid retrieves the live leading bid on an order, if any.
func (n *Node) HighestBid(venue string, orderID uint64) (*market.Bid, bool, error) {
	engine, err := n.engine(venue)
	if err != nil {
		return nil, false, err
	}
	n.stateMu.Lock()
	defer n.stateMu.Unlock()
	return engine.HighestBid(orderID)
}

// RefundBalance reports the parked refund an address can withdraw from an order.
func (n *Node) RefundBalance(venue string, orderID uint64, addr [20]byte) (*big.Int, error) {
	if _, err := n.engine(venue); err != nil {
		return nil, err
	}
	n.stateMu.Lock()
	defer n.stateMu.Unlock()
	return n.state.Venue(venue).RefundBalance(orderID, addr)
}

// Events returns the most recent events the node has emitted.
func (n *Node) Events() []*types.Event {
	recorded := n.recorder.Events()
	out := make([]*types.Event, 0, len(recorded))
	for _, evt := range recorded {
		if carrier, ok := evt.(interface{ Event() *types.Event }); ok {
			out = append(out, carrier.Event())
		}
	}
	return out
}

// Close releases the underlying database.
func (n *Node) Close() error {
	n.db.Close()
	return nil
}

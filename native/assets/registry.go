package assets

import (
	"encoding/hex"
	"errors"
	"strconv"

	"nftmarket/core/events"
	"nftmarket/core/types"
)

var (
	errNilState = errors.New("asset registry: state not configured")

	// ErrAssetNotFound is returned for identifiers that were never minted.
	ErrAssetNotFound = errors.New("asset registry: asset not found")
	// ErrAssetExists rejects minting an identifier twice.
	ErrAssetExists = errors.New("asset registry: asset already exists")
	// ErrNotOwner rejects transfers and approvals by anyone but the owner.
	ErrNotOwner = errors.New("asset registry: caller is not the owner")
	// ErrNotApproved rejects custody pulls without a prior approval.
	ErrNotApproved = errors.New("asset registry: transfer not approved")
)

const (
	EventTypeAssetMinted      = "assets.minted"
	EventTypeAssetApproved    = "assets.approved"
	EventTypeAssetTransferred = "assets.transferred"
)

type registryState interface {
	AssetOwner(id uint64) ([20]byte, bool, error)
	AssetOwnerPut(id uint64, owner [20]byte) error
	AssetApproval(id uint64) ([20]byte, bool, error)
	AssetApprovalPut(id uint64, spender [20]byte) error
	AssetApprovalClear(id uint64) error
}

// Registry is a minimal ledger of uniquely identified assets: one owner per
// identifier plus at most one transfer approval. It deliberately exposes only
// the capability set the trading engines rely on; minting policy lives with
// the caller.
type Registry struct {
	state   registryState
	emitter events.Emitter
}

// NewRegistry creates a registry with a no-op emitter.
func NewRegistry() *Registry {
	return &Registry{emitter: events.NoopEmitter{}}
}

// SetState configures the state backend used by the registry.
func (r *Registry) SetState(state registryState) { r.state = state }

// SetEmitter configures the event emitter. Passing nil resets it to a no-op.
func (r *Registry) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		r.emitter = events.NoopEmitter{}
		return
	}
	r.emitter = emitter
}

type assetEvent struct {
	evt *types.Event
}

func (e assetEvent) EventType() string {
	if e.evt == nil {
		return ""
	}
	return e.evt.Type
}

func (e assetEvent) Event() *types.Event { return e.evt }

func (r *Registry) emit(eventType string, id uint64, addr [20]byte) {
	if r == nil || r.emitter == nil {
		return
	}
	r.emitter.Emit(assetEvent{evt: &types.Event{
		Type: eventType,
		Attributes: map[string]string{
			"assetId": strconv.FormatUint(id, 10),
			"address": hex.EncodeToString(addr[:]),
		},
	}})
}

// Mint assigns a fresh identifier to an owner.
func (r *Registry) Mint(to [20]byte, id uint64) error {
	if r == nil || r.state == nil {
		return errNilState
	}
	if _, ok, err := r.state.AssetOwner(id); err != nil {
		return err
	} else if ok {
		return ErrAssetExists
	}
	if err := r.state.AssetOwnerPut(id, to); err != nil {
		return err
	}
	r.emit(EventTypeAssetMinted, id, to)
	return nil
}

// OwnerOf returns the current owner of the asset.
func (r *Registry) OwnerOf(id uint64) ([20]byte, error) {
	if r == nil || r.state == nil {
		return [20]byte{}, errNilState
	}
	owner, ok, err := r.state.AssetOwner(id)
	if err != nil {
		return [20]byte{}, err
	}
	if !ok {
		return [20]byte{}, ErrAssetNotFound
	}
	return owner, nil
}

// Approve authorises a single spender to pull the asset out of the caller's
// ownership. A new approval replaces any previous one.
func (r *Registry) Approve(caller, spender [20]byte, id uint64) error {
	if r == nil || r.state == nil {
		return errNilState
	}
	owner, err := r.OwnerOf(id)
	if err != nil {
		return err
	}
	if owner != caller {
		return ErrNotOwner
	}
	if err := r.state.AssetApprovalPut(id, spender); err != nil {
		return err
	}
	r.emit(EventTypeAssetApproved, id, spender)
	return nil
}

// Approved returns the address currently approved for the asset, if any.
func (r *Registry) Approved(id uint64) ([20]byte, bool, error) {
	if r == nil || r.state == nil {
		return [20]byte{}, false, errNilState
	}
	if _, ok, err := r.state.AssetOwner(id); err != nil {
		return [20]byte{}, false, err
	} else if !ok {
		return [20]byte{}, false, ErrAssetNotFound
	}
	return r.state.AssetApproval(id)
}

// Transfer moves the asset between addresses when invoked by its owner.
// Any standing approval is cleared.
func (r *Registry) Transfer(caller, to [20]byte, id uint64) error {
	if r == nil || r.state == nil {
		return errNilState
	}
	owner, err := r.OwnerOf(id)
	if err != nil {
		return err
	}
	if owner != caller {
		return ErrNotOwner
	}
	return r.move(id, to)
}

func (r *Registry) move(id uint64, to [20]byte) error {
	if err := r.state.AssetApprovalClear(id); err != nil {
		return err
	}
	if err := r.state.AssetOwnerPut(id, to); err != nil {
		return err
	}
	r.emit(EventTypeAssetTransferred, id, to)
	return nil
}

// Vault adapts the registry to the custody capability set required by the
// trading engines, bound to one vault address.
type Vault struct {
	registry *Registry
	address  [20]byte
}

// CustodyFor returns a custody view whose pulls land on the supplied vault
// address.
func (r *Registry) CustodyFor(vault [20]byte) *Vault {
	return &Vault{registry: r, address: vault}
}

// TransferInto pulls the asset from its owner into vault custody. The owner
// must have approved the vault beforehand.
func (v *Vault) TransferInto(assetID uint64, from [20]byte) error {
	owner, err := v.registry.OwnerOf(assetID)
	if err != nil {
		return err
	}
	if owner != from {
		return ErrNotOwner
	}
	spender, ok, err := v.registry.state.AssetApproval(assetID)
	if err != nil {
		return err
	}
	if !ok || spender != v.address {
		return ErrNotApproved
	}
	return v.registry.move(assetID, v.address)
}

// TransferOut releases a custodied asset to the recipient.
func (v *Vault) TransferOut(assetID uint64, to [20]byte) error {
	owner, err := v.registry.OwnerOf(assetID)
	if err != nil {
		return err
	}
	if owner != v.address {
		return ErrNotOwner
	}
	return v.registry.move(assetID, to)
}

// OwnerOf exposes ownership lookups to the engine.
func (v *Vault) OwnerOf(assetID uint64) ([20]byte, error) {
	return v.registry.OwnerOf(assetID)
}

// IsApprovedForTransfer reports whether `by` owns the asset and has approved
// `to` to pull it.
func (v *Vault) IsApprovedForTransfer(assetID uint64, by, to [20]byte) (bool, error) {
	owner, err := v.registry.OwnerOf(assetID)
	if err != nil {
		return false, err
	}
	if owner != by {
		return false, nil
	}
	spender, ok, err := v.registry.state.AssetApproval(assetID)
	if err != nil {
		return false, err
	}
	return ok && spender == to, nil
}

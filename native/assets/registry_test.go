package assets

import (
	"errors"
	"testing"
)

type mockState struct {
	owners    map[uint64][20]byte
	approvals map[uint64][20]byte
}

func newMockState() *mockState {
	return &mockState{
		owners:    make(map[uint64][20]byte),
		approvals: make(map[uint64][20]byte),
	}
}

func (m *mockState) AssetOwner(id uint64) ([20]byte, bool, error) {
	owner, ok := m.owners[id]
	return owner, ok, nil
}

func (m *mockState) AssetOwnerPut(id uint64, owner [20]byte) error {
	m.owners[id] = owner
	return nil
}

func (m *mockState) AssetApproval(id uint64) ([20]byte, bool, error) {
	spender, ok := m.approvals[id]
	return spender, ok, nil
}

func (m *mockState) AssetApprovalPut(id uint64, spender [20]byte) error {
	m.approvals[id] = spender
	return nil
}

func (m *mockState) AssetApprovalClear(id uint64) error {
	delete(m.approvals, id)
	return nil
}

func addr(fill byte) [20]byte {
	var a [20]byte
	for i := range a {
		a[i] = fill
	}
	return a
}

func newTestRegistry() *Registry {
	reg := NewRegistry()
	reg.SetState(newMockState())
	return reg
}

func TestMintAndOwnership(t *testing.T) {
	reg := newTestRegistry()
	alice := addr(0x01)

	if err := reg.Mint(alice, 1); err != nil {
		t.Fatalf("Mint: %v", err)
	}
	if err := reg.Mint(alice, 1); !errors.Is(err, ErrAssetExists) {
		t.Fatalf("expected ErrAssetExists, got %v", err)
	}
	owner, err := reg.OwnerOf(1)
	if err != nil || owner != alice {
		t.Fatalf("OwnerOf = %x, %v", owner, err)
	}
	if _, err := reg.OwnerOf(2); !errors.Is(err, ErrAssetNotFound) {
		t.Fatalf("expected ErrAssetNotFound, got %v", err)
	}
}

func TestApproveRequiresOwner(t *testing.T) {
	reg := newTestRegistry()
	alice, bob, vault := addr(0x01), addr(0x02), addr(0xAA)

	if err := reg.Mint(alice, 1); err != nil {
		t.Fatalf("Mint: %v", err)
	}
	if err := reg.Approve(bob, vault, 1); !errors.Is(err, ErrNotOwner) {
		t.Fatalf("expected ErrNotOwner, got %v", err)
	}
	if err := reg.Approve(alice, vault, 1); err != nil {
		t.Fatalf("Approve: %v", err)
	}
	spender, ok, err := reg.Approved(1)
	if err != nil || !ok || spender != vault {
		t.Fatalf("Approved = %x, %v, %v", spender, ok, err)
	}
}

func TestTransferClearsApproval(t *testing.T) {
	reg := newTestRegistry()
	alice, bob, vault := addr(0x01), addr(0x02), addr(0xAA)

	if err := reg.Mint(alice, 1); err != nil {
		t.Fatalf("Mint: %v", err)
	}
	if err := reg.Approve(alice, vault, 1); err != nil {
		t.Fatalf("Approve: %v", err)
	}
	if err := reg.Transfer(alice, bob, 1); err != nil {
		t.Fatalf("Transfer: %v", err)
	}
	owner, _ := reg.OwnerOf(1)
	if owner != bob {
		t.Fatalf("owner = %x, want bob", owner)
	}
	_, ok, err := reg.Approved(1)
	if err != nil || ok {
		t.Fatalf("approval must be cleared on transfer")
	}
}

func TestVaultCustodyFlow(t *testing.T) {
	reg := newTestRegistry()
	alice, bob, vaultAddr := addr(0x01), addr(0x02), addr(0xAA)
	vault := reg.CustodyFor(vaultAddr)

	if err := reg.Mint(alice, 1); err != nil {
		t.Fatalf("Mint: %v", err)
	}

	// No approval yet: pull is refused and the query agrees.
	ok, err := vault.IsApprovedForTransfer(1, alice, vaultAddr)
	if err != nil || ok {
		t.Fatalf("approval reported before Approve")
	}
	if err := vault.TransferInto(1, alice); !errors.Is(err, ErrNotApproved) {
		t.Fatalf("expected ErrNotApproved, got %v", err)
	}

	if err := reg.Approve(alice, vaultAddr, 1); err != nil {
		t.Fatalf("Approve: %v", err)
	}
	ok, err = vault.IsApprovedForTransfer(1, alice, vaultAddr)
	if err != nil || !ok {
		t.Fatalf("approval not visible: %v", err)
	}
	if err := vault.TransferInto(1, bob); !errors.Is(err, ErrNotOwner) {
		t.Fatalf("expected ErrNotOwner for wrong from, got %v", err)
	}
	if err := vault.TransferInto(1, alice); err != nil {
		t.Fatalf("TransferInto: %v", err)
	}
	owner, _ := reg.OwnerOf(1)
	if owner != vaultAddr {
		t.Fatalf("asset not in custody")
	}

	if err := vault.TransferOut(1, bob); err != nil {
		t.Fatalf("TransferOut: %v", err)
	}
	owner, _ = reg.OwnerOf(1)
	if owner != bob {
		t.Fatalf("asset not delivered")
	}
	if err := vault.TransferOut(1, alice); !errors.Is(err, ErrNotOwner) {
		t.Fatalf("expected ErrNotOwner after release, got %v", err)
	}
}

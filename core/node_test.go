package core

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"

	"nftmarket/config"
	"nftmarket/native/market"
	"nftmarket/storage"
)

func testConfig() *config.Config {
	return &config.Config{
		FeeReceiver:           "0x00000000000000000000000000000000000000fe",
		FeeInBps:              500,
		MinExpirationDuration: 100,
		MaxExpirationDuration: 1000,
	}
}

func testAddr(b byte) [20]byte {
	var addr [20]byte
	addr[19] = b
	return addr
}

func newTestNode(t *testing.T) *Node {
	t.Helper()
	node, err := NewNode(storage.NewMemDB(), testConfig())
	require.NoError(t, err)
	now := int64(1_000_000)
	node.SetNowFunc(func() int64 { return now })
	return node
}

func TestNodeRoutesVenues(t *testing.T) {
	node := newTestNode(t)
	require.Equal(t, []string{VenueAuction, VenueMarketplace, VenueSale}, node.Venues())

	_, err := node.OrdersCount("swap")
	require.ErrorIs(t, err, ErrUnknownVenue)

	saleVault, err := node.EngineVault(VenueSale)
	require.NoError(t, err)
	auctionVault, err := node.EngineVault(VenueAuction)
	require.NoError(t, err)
	require.NotEqual(t, saleVault, auctionVault)
}

func TestNodeFixedSaleFlow(t *testing.T) {
	node := newTestNode(t)
	seller := testAddr(0x01)
	buyer := testAddr(0x02)
	feeReceiver := testAddr(0xfe)

	require.NoError(t, node.MintAsset(seller, 7))
	require.NoError(t, node.Credit(buyer, big.NewInt(10_000)))

	vault, err := node.EngineVault(VenueSale)
	require.NoError(t, err)
	require.NoError(t, node.ApproveAsset(seller, vault, 7))

	orderID, err := node.CreateOrder(VenueSale, 7, big.NewInt(1000), 500, seller)
	require.NoError(t, err)

	owner, err := node.AssetOwner(7)
	require.NoError(t, err)
	require.Equal(t, vault, owner)

	require.NoError(t, node.BuyNow(VenueSale, orderID, big.NewInt(1050), buyer))

	owner, err = node.AssetOwner(7)
	require.NoError(t, err)
	require.Equal(t, buyer, owner)

	sellerBalance, err := node.Balance(seller)
	require.NoError(t, err)
	require.Equal(t, "1000", sellerBalance.String())

	feeBalance, err := node.Balance(feeReceiver)
	require.NoError(t, err)
	require.Equal(t, "50", feeBalance.String())

	order, err := node.Order(VenueSale, orderID)
	require.NoError(t, err)
	require.Equal(t, market.OrderFilled, order.Status)

	types := make(map[string]int)
	for _, evt := range node.Events() {
		types[evt.Type]++
	}
	require.Equal(t, 1, types[market.EventTypeOrderCreated])
	require.Equal(t, 1, types[market.EventTypeOrderFilled])
}

func TestNodeAuctionFlow(t *testing.T) {
	node, now := newTestNodeWithClock(t)
	seller := testAddr(0x01)
	bidderA := testAddr(0x0a)
	bidderB := testAddr(0x0b)

	require.NoError(t, node.MintAsset(seller, 3))
	require.NoError(t, node.Credit(bidderA, big.NewInt(100_000)))
	require.NoError(t, node.Credit(bidderB, big.NewInt(100_000)))

	vault, err := node.EngineVault(VenueAuction)
	require.NoError(t, err)
	require.NoError(t, node.ApproveAsset(seller, vault, 3))

	orderID, err := node.CreateOrder(VenueAuction, 3, big.NewInt(1000), 500, seller)
	require.NoError(t, err)

	require.NoError(t, node.PlaceBid(VenueAuction, orderID, big.NewInt(1000), big.NewInt(1050), bidderA))
	require.NoError(t, node.PlaceBid(VenueAuction, orderID, big.NewInt(1200), big.NewInt(1260), bidderB))

	leader, ok, err := node.HighestBid(VenueAuction, orderID)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, bidderB, leader.Bidder)

	parked, err := node.RefundBalance(VenueAuction, orderID, bidderA)
	require.NoError(t, err)
	require.Equal(t, "1050", parked.String())

	err = node.ClaimAuctionWin(VenueAuction, orderID, bidderB)
	require.ErrorIs(t, err, market.ErrOrderStillActive)

	*now += 500
	require.NoError(t, node.ClaimAuctionWin(VenueAuction, orderID, bidderB))

	owner, err := node.AssetOwner(3)
	require.NoError(t, err)
	require.Equal(t, bidderB, owner)

	withdrawn, err := node.WithdrawDisplacedFunds(VenueAuction, orderID, bidderA)
	require.NoError(t, err)
	require.Equal(t, "1050", withdrawn.String())
}

func newTestNodeWithClock(t *testing.T) (*Node, *int64) {
	t.Helper()
	node, err := NewNode(storage.NewMemDB(), testConfig())
	require.NoError(t, err)
	now := int64(1_000_000)
	node.SetNowFunc(func() int64 { return now })
	return node, &now
}

func TestNodeApplyGenesisIsIdempotent(t *testing.T) {
	node := newTestNode(t)
	gen := &config.Genesis{
		Accounts: []config.GenesisAccount{
			{Address: "0x0000000000000000000000000000000000000001", Balance: "5000"},
		},
		Assets: []config.GenesisAsset{
			{ID: 9, Owner: "0x0000000000000000000000000000000000000001"},
		},
	}
	require.NoError(t, node.ApplyGenesis(gen))
	require.NoError(t, node.ApplyGenesis(gen))

	balance, err := node.Balance(testAddr(0x01))
	require.NoError(t, err)
	require.Equal(t, "5000", balance.String())

	owner, err := node.AssetOwner(9)
	require.NoError(t, err)
	require.Equal(t, testAddr(0x01), owner)
}

func TestNodePausedVenueRejectsWrites(t *testing.T) {
	cfg := testConfig()
	cfg.PausedModules = []string{VenueSale}
	node, err := NewNode(storage.NewMemDB(), cfg)
	require.NoError(t, err)
	node.SetNowFunc(func() int64 { return 1_000_000 })

	seller := testAddr(0x01)
	require.NoError(t, node.MintAsset(seller, 7))
	vault, err := node.EngineVault(VenueSale)
	require.NoError(t, err)
	require.NoError(t, node.ApproveAsset(seller, vault, 7))

	_, err = node.CreateOrder(VenueSale, 7, big.NewInt(1000), 500, seller)
	require.Error(t, err)
}

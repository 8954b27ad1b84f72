package auction

import (
	"testing"

	sdkmath "cosmossdk.io/math"
	"github.com/stretchr/testify/require"

	"github.com/folio-protocol/folio-core/internal/types"
)

var maxPriceRatio = sdkmath.NewInt(100).Mul(oneD18()) // 100x

func oneD18() sdkmath.Int {
	return sdkmath.NewIntWithDecimal(1, 18)
}

func d18(n int64) sdkmath.Int {
	return sdkmath.NewInt(n).Mul(oneD18())
}

func approvedAuction() *types.Auction {
	a := &types.Auction{
		ID:        1,
		SellToken: "tokenA",
		BuyToken:  "tokenB",
		SellLimit: types.BasketRange{
			Spot: sdkmath.NewIntWithDecimal(1, 17), // 10% of supply
			Low:  sdkmath.NewIntWithDecimal(5, 16),
			High: sdkmath.NewIntWithDecimal(2, 17),
		},
		BuyLimit: types.BasketRange{
			Spot: sdkmath.NewIntWithDecimal(5, 17), // 50% of supply
			Low:  sdkmath.NewIntWithDecimal(1, 17),
			High: sdkmath.NewIntWithDecimal(6, 17),
		},
		Prices: types.Prices{
			Start: d18(10),
			End:   d18(1),
		},
		AvailableAt:   1_000,
		LaunchTimeout: 10_000,
	}
	a.ApprovedPrices = a.Prices
	a.ApprovedSellLimit = a.SellLimit
	a.ApprovedBuyLimit = a.BuyLimit
	return a
}

func openedAuction(t *testing.T, now int64) (*types.Auction, *CollisionLedger) {
	t.Helper()
	a := approvedAuction()
	ledger := NewCollisionLedger()
	require.NoError(t, Open(a, ledger, now, 3600, maxPriceRatio))
	return a, ledger
}

func TestStatusClassification(t *testing.T) {
	a := approvedAuction()
	require.Equal(t, types.AuctionApproved, a.TryGetStatus(5_000))

	ledger := NewCollisionLedger()
	require.NoError(t, Open(a, ledger, 2_000, 3600, maxPriceRatio))
	require.Equal(t, types.AuctionOpen, a.TryGetStatus(2_000))
	require.Equal(t, types.AuctionOpen, a.TryGetStatus(5_600))
	require.Equal(t, types.AuctionClosed, a.TryGetStatus(5_601))
}

func TestOpenDecayConstant(t *testing.T) {
	// start 10e18, end 1e18, 3600s: k = ln(10)/3600.
	a, _ := openedAuction(t, 2_000)
	require.Equal(t, int64(2_000), a.Start)
	require.Equal(t, int64(5_600), a.End)

	expected := sdkmath.NewInt(639_606_970_276_123)
	diff := a.K.Sub(expected).Abs()
	require.True(t, diff.LTE(sdkmath.NewInt(2)), "k=%s expected ~%s", a.K, expected)
}

func TestOpenWindowChecks(t *testing.T) {
	a := approvedAuction()
	ledger := NewCollisionLedger()

	err := Open(a, ledger, 500, 3600, maxPriceRatio) // before available_at
	require.ErrorIs(t, err, types.ErrInvalidState)

	err = Open(a, ledger, 10_001, 3600, maxPriceRatio) // past launch timeout
	require.ErrorIs(t, err, types.ErrInvalidState)

	require.NoError(t, Open(a, ledger, 2_000, 3600, maxPriceRatio))
	err = Open(a, ledger, 2_100, 3600, maxPriceRatio) // no longer approved
	require.ErrorIs(t, err, types.ErrInvalidState)
}

func TestOpenPriceChecks(t *testing.T) {
	a := approvedAuction()
	a.Prices.End = sdkmath.ZeroInt()
	err := Open(a, NewCollisionLedger(), 2_000, 3600, maxPriceRatio)
	require.ErrorIs(t, err, types.ErrInvalidParameter)

	a = approvedAuction()
	a.Prices.Start = d18(1)
	a.Prices.End = d18(10) // inverted
	err = Open(a, NewCollisionLedger(), 2_000, 3600, maxPriceRatio)
	require.ErrorIs(t, err, types.ErrInvalidParameter)

	a = approvedAuction()
	a.Prices.Start = d18(1000) // ratio 1000x > 100x cap
	err = Open(a, NewCollisionLedger(), 2_000, 3600, maxPriceRatio)
	require.ErrorIs(t, err, types.ErrInvalidParameter)
}

func TestOpenFlatAuction(t *testing.T) {
	a := approvedAuction()
	a.Prices = types.Prices{Start: d18(5), End: d18(5)}
	a.ApprovedPrices = a.Prices
	require.NoError(t, Open(a, NewCollisionLedger(), 2_000, 3600, maxPriceRatio))
	require.True(t, a.K.IsZero())

	p, err := Price(a, 3_800)
	require.NoError(t, err)
	require.Equal(t, d18(5), p)
}

func TestAssetCollision(t *testing.T) {
	ledger := NewCollisionLedger()
	first := approvedAuction()
	require.NoError(t, Open(first, ledger, 2_000, 3600, maxPriceRatio))

	// Same sell asset while the first auction is still running.
	second := approvedAuction()
	second.ID = 2
	second.BuyToken = "tokenC"
	err := Open(second, ledger, 3_000, 3600, maxPriceRatio)
	require.ErrorIs(t, err, types.ErrInvalidState)

	// Buy side of the first auction also blocks.
	third := approvedAuction()
	third.ID = 3
	third.SellToken = "tokenC"
	third.BuyToken = "tokenA"
	err = Open(third, ledger, 3_000, 3600, maxPriceRatio)
	require.ErrorIs(t, err, types.ErrInvalidState)

	// After the first expires both assets are free again.
	fourth := approvedAuction()
	fourth.ID = 4
	require.NoError(t, Open(fourth, ledger, 5_601, 3600, maxPriceRatio))
}

func TestPriceEndpointsAndMonotonicity(t *testing.T) {
	a, _ := openedAuction(t, 2_000)

	p, err := Price(a, a.Start)
	require.NoError(t, err)
	require.Equal(t, a.Prices.Start, p)

	p, err = Price(a, a.End)
	require.NoError(t, err)
	require.Equal(t, a.Prices.End, p)

	prev := a.Prices.Start
	for now := a.Start; now <= a.End; now += 60 {
		p, err := Price(a, now)
		require.NoError(t, err)
		require.True(t, p.LTE(prev), "price rose from %s to %s at %d", prev, p, now)
		require.True(t, p.GTE(a.Prices.End))
		prev = p
	}

	_, err = Price(a, a.Start-1)
	require.ErrorIs(t, err, types.ErrInvalidState)
	_, err = Price(a, a.End+1)
	require.ErrorIs(t, err, types.ErrInvalidState)
}

func TestPriceHalfway(t *testing.T) {
	// Halfway through a 10 -> 1 decay over 3600s the price is sqrt(10).
	a, _ := openedAuction(t, 2_000)
	p, err := Price(a, a.Start+1800)
	require.NoError(t, err)

	expected := sdkmath.NewInt(3_162_277_660_168_379_331) // sqrt(10) D18
	diff := p.Sub(expected).Abs()
	tol := sdkmath.NewInt(10_000_000_000) // 1e-8 relative
	require.True(t, diff.LTE(tol), "price %s expected ~%s", p, expected)
}

func TestReparameterize(t *testing.T) {
	a := approvedAuction()

	// Raising within the approved bands works.
	err := Reparameterize(a,
		sdkmath.NewIntWithDecimal(15, 16), // sell spot 0.15 within [0.05, 0.2]
		sdkmath.NewIntWithDecimal(55, 16), // buy spot 0.55 within [0.1, 0.6]
		types.Prices{Start: d18(20), End: d18(2)})
	require.NoError(t, err)
	require.Equal(t, d18(20), a.Prices.Start)

	// Lowering a price is never allowed.
	err = Reparameterize(a, a.SellLimit.Spot, a.BuyLimit.Spot,
		types.Prices{Start: d18(10), End: d18(2)})
	require.ErrorIs(t, err, types.ErrInvalidParameter)

	// Start price above 100x the approved start is rejected.
	err = Reparameterize(a, a.SellLimit.Spot, a.BuyLimit.Spot,
		types.Prices{Start: d18(1001), End: d18(2)})
	require.ErrorIs(t, err, types.ErrInvalidParameter)

	// Limits outside the approved band are rejected.
	err = Reparameterize(a, sdkmath.NewIntWithDecimal(3, 17), a.BuyLimit.Spot, a.Prices)
	require.ErrorIs(t, err, types.ErrInvalidParameter)

	// No re-parameterization once open.
	require.NoError(t, Open(a, NewCollisionLedger(), 2_000, 3600, maxPriceRatio))
	err = Reparameterize(a, a.SellLimit.Spot, a.BuyLimit.Spot, a.Prices)
	require.ErrorIs(t, err, types.ErrInvalidState)
}

func TestBidSettlement(t *testing.T) {
	a, _ := openedAuction(t, 2_000)

	// Supply 1000 shares, sell floor 10% => 100, sell balance 500,
	// buy cap 50% => 500.
	params := BidParams{
		SellAmount:   d18(40),
		MaxBuyAmount: d18(2000),
		SellBalance:  d18(500),
		BuyBalance:   d18(0),
		TotalSupply:  d18(1000),
	}
	res, err := Bid(a, 2_000, params) // at start price 10
	require.NoError(t, err)
	require.Equal(t, d18(10), res.Price)
	require.Equal(t, d18(400), res.BoughtAmount)
	require.Equal(t, d18(460), res.NewSellBalance)
	require.Equal(t, d18(400), res.NewBuyBalance)
	require.False(t, res.Closed)
	require.False(t, res.RemoveSellToken)
}

func TestBidSlippageGuard(t *testing.T) {
	a, _ := openedAuction(t, 2_000)
	_, err := Bid(a, 2_000, BidParams{
		SellAmount:   d18(100),
		MaxBuyAmount: d18(999), // costs 1000 at start price
		SellBalance:  d18(500),
		BuyBalance:   d18(0),
		TotalSupply:  d18(1000),
	})
	require.ErrorIs(t, err, types.ErrSlippageExceeded)
}

func TestBidHeadroomGuard(t *testing.T) {
	a, _ := openedAuction(t, 2_000)
	// Floor is 100; balance 500 leaves 400 of headroom.
	_, err := Bid(a, 2_000, BidParams{
		SellAmount:   d18(401),
		MaxBuyAmount: d18(100_000),
		SellBalance:  d18(500),
		BuyBalance:   d18(0),
		TotalSupply:  d18(1000),
	})
	require.ErrorIs(t, err, types.ErrInsufficientHeadroom)
}

func TestBidForceCloseOnFloor(t *testing.T) {
	a := approvedAuction()
	a.BuyLimit.Spot = d18(5) // room for the full credit
	require.NoError(t, Open(a, NewCollisionLedger(), 2_000, 3600, maxPriceRatio))
	res, err := Bid(a, 2_000, BidParams{
		SellAmount:   d18(400), // lands exactly on the floor of 100
		MaxBuyAmount: d18(100_000),
		SellBalance:  d18(500),
		BuyBalance:   d18(0),
		TotalSupply:  d18(1000),
	})
	require.NoError(t, err)
	require.True(t, res.Closed)
	require.False(t, res.RemoveSellToken)
	require.Equal(t, int64(2_000), a.End)
	require.Equal(t, types.AuctionClosed, a.TryGetStatus(2_001))
}

func TestBidDrainsSellToken(t *testing.T) {
	a := approvedAuction()
	a.SellLimit.Spot = sdkmath.ZeroInt() // floor of zero: full exit allowed
	a.ApprovedSellLimit.Spot = sdkmath.ZeroInt()
	a.ApprovedSellLimit.Low = sdkmath.ZeroInt()
	require.NoError(t, Open(a, NewCollisionLedger(), 2_000, 3600, maxPriceRatio))

	res, err := Bid(a, 2_000, BidParams{
		SellAmount:   d18(50),
		MaxBuyAmount: d18(100_000),
		SellBalance:  d18(50),
		BuyBalance:   d18(0),
		TotalSupply:  d18(1000),
	})
	require.NoError(t, err)
	require.True(t, res.RemoveSellToken)
	require.True(t, res.Closed)
	require.True(t, res.NewSellBalance.IsZero())
}

func TestBidExcessiveBuyBalance(t *testing.T) {
	a, _ := openedAuction(t, 2_000)
	// Buy limit is 50% of 1000 supply = 500; crediting 1000 overshoots.
	_, err := Bid(a, 2_000, BidParams{
		SellAmount:   d18(100),
		MaxBuyAmount: d18(2000),
		SellBalance:  d18(500),
		BuyBalance:   d18(0),
		TotalSupply:  d18(1000),
	})
	require.ErrorIs(t, err, types.ErrExcessiveBid)

	// The failed bid must not have mutated the auction.
	require.Equal(t, types.AuctionOpen, a.TryGetStatus(2_100))
}

func TestBidOnClosedAuction(t *testing.T) {
	a, _ := openedAuction(t, 2_000)
	_, err := Bid(a, 5_601, BidParams{
		SellAmount:   d18(1),
		MaxBuyAmount: d18(100),
		SellBalance:  d18(500),
		BuyBalance:   d18(0),
		TotalSupply:  d18(1000),
	})
	require.ErrorIs(t, err, types.ErrInvalidState)
}

/*

This file contains the Dutch-auction pricing and settlement engine used for
basket rebalancing. Price decays exponentially from the start price to the
end price over the auction window; settlement enforces basket-proportional
trade limits on both legs.

The rounding policy in Bid is asymmetric on purpose: the bought amount rounds
down and the minimum sell-side floor rounds up, always in the basket's favor.

*/

package auction

import (
	errorsmod "cosmossdk.io/errors"
	sdkmath "cosmossdk.io/math"

	"github.com/folio-protocol/folio-core/internal/decimal"
	"github.com/folio-protocol/folio-core/internal/logger"
	"github.com/folio-protocol/folio-core/internal/types"
)

var auctionLogger = logger.GetForComponent("auction")

// MaxStartPriceRaise caps launcher re-parameterization of the start price at
// 100x the approved start price.
const MaxStartPriceRaise = 100

// CollisionLedger records, per asset, the latest end timestamp of any auction
// the asset is committed to. An asset is busy while such an auction has not
// yet expired.
type CollisionLedger struct {
	SellEnds map[string]int64
	BuyEnds  map[string]int64
}

// NewCollisionLedger returns an empty ledger.
func NewCollisionLedger() *CollisionLedger {
	return &CollisionLedger{
		SellEnds: make(map[string]int64),
		BuyEnds:  make(map[string]int64),
	}
}

func (l *CollisionLedger) busy(token string, now int64) bool {
	if end, ok := l.SellEnds[token]; ok && end >= now {
		return true
	}
	if end, ok := l.BuyEnds[token]; ok && end >= now {
		return true
	}
	return false
}

func (l *CollisionLedger) record(a *types.Auction) {
	if a.End > l.SellEnds[a.SellToken] {
		l.SellEnds[a.SellToken] = a.End
	}
	if a.End > l.BuyEnds[a.BuyToken] {
		l.BuyEnds[a.BuyToken] = a.End
	}
}

// Open moves an Approved auction into its price window.
//
// Requirements: the auction is still Approved, now lies inside
// [available_at, launch_timeout], neither asset is committed to another
// unexpired auction, start >= end > 0 and start/end stays within
// maxPriceRatio. The decay constant k = ln(start/end) / length is fixed here;
// a flat auction (start == end) has k = 0.
func Open(a *types.Auction, ledger *CollisionLedger, now int64, auctionLength int64, maxPriceRatio sdkmath.Int) error {
	if a.TryGetStatus(now) != types.AuctionApproved {
		return errorsmod.Wrapf(types.ErrInvalidState, "auction %d is not approved", a.ID)
	}
	if now < a.AvailableAt {
		return errorsmod.Wrapf(types.ErrInvalidState, "auction %d not available until %d", a.ID, a.AvailableAt)
	}
	if now > a.LaunchTimeout {
		return errorsmod.Wrapf(types.ErrInvalidState, "auction %d launch window expired at %d", a.ID, a.LaunchTimeout)
	}
	if auctionLength <= 0 {
		return errorsmod.Wrap(types.ErrInvalidParameter, "auction length must be positive")
	}
	if ledger.busy(a.SellToken, now) {
		return errorsmod.Wrapf(types.ErrInvalidState, "sell asset %s committed to an unexpired auction", a.SellToken)
	}
	if ledger.busy(a.BuyToken, now) {
		return errorsmod.Wrapf(types.ErrInvalidState, "buy asset %s committed to an unexpired auction", a.BuyToken)
	}

	if !a.Prices.End.IsPositive() || a.Prices.Start.LT(a.Prices.End) {
		return errorsmod.Wrapf(types.ErrInvalidParameter,
			"auction %d requires start price >= end price > 0", a.ID)
	}

	startDec := decimal.NewFromRaw(a.Prices.Start)
	endDec := decimal.NewFromRaw(a.Prices.End)
	ratio, err := startDec.MulDiv(decimal.One(), endDec, decimal.Floor)
	if err != nil {
		return err
	}
	if ratio.Raw().GT(maxPriceRatio) {
		return errorsmod.Wrapf(types.ErrInvalidParameter,
			"auction %d price ratio %s exceeds maximum %s", a.ID, ratio.Raw(), maxPriceRatio)
	}

	k := sdkmath.ZeroInt()
	if !a.Prices.Start.Equal(a.Prices.End) {
		lnRatio, err := ratio.Ln()
		if err != nil {
			return err
		}
		kDec, err := lnRatio.Div(decimal.NewFromRaw(sdkmath.NewInt(auctionLength)))
		if err != nil {
			return err
		}
		k = kDec.Raw()
	}

	a.Start = now
	a.End = now + auctionLength
	a.K = k
	ledger.record(a)

	auctionLogger.Info().
		Uint64("auction_id", a.ID).
		Str("sell", a.SellToken).
		Str("buy", a.BuyToken).
		Int64("start", a.Start).
		Int64("end", a.End).
		Str("k", k.String()).
		Msg("Auction opened")
	return nil
}

// Reparameterize lets the launcher tighten an Approved auction before it
// opens: spot limits may be raised within the originally approved [low, high]
// band, the start price raised up to 100x the approved start, the end price
// raised arbitrarily. Nothing may ever be lowered.
func Reparameterize(a *types.Auction, sellSpot, buySpot sdkmath.Int, prices types.Prices) error {
	if a.Start != 0 || a.End != 0 {
		return errorsmod.Wrapf(types.ErrInvalidState, "auction %d already opened", a.ID)
	}

	if sellSpot.LT(a.SellLimit.Spot) || sellSpot.LT(a.ApprovedSellLimit.Low) || sellSpot.GT(a.ApprovedSellLimit.High) {
		return errorsmod.Wrapf(types.ErrInvalidParameter,
			"sell limit %s outside approved band [%s, %s]", sellSpot, a.ApprovedSellLimit.Low, a.ApprovedSellLimit.High)
	}
	if buySpot.LT(a.BuyLimit.Spot) || buySpot.LT(a.ApprovedBuyLimit.Low) || buySpot.GT(a.ApprovedBuyLimit.High) {
		return errorsmod.Wrapf(types.ErrInvalidParameter,
			"buy limit %s outside approved band [%s, %s]", buySpot, a.ApprovedBuyLimit.Low, a.ApprovedBuyLimit.High)
	}

	maxStart := a.ApprovedPrices.Start.MulRaw(MaxStartPriceRaise)
	if prices.Start.LT(a.Prices.Start) || prices.Start.GT(maxStart) {
		return errorsmod.Wrapf(types.ErrInvalidParameter,
			"start price %s outside [%s, %s]", prices.Start, a.Prices.Start, maxStart)
	}
	if prices.End.LT(a.Prices.End) {
		return errorsmod.Wrapf(types.ErrInvalidParameter,
			"end price %s below current %s", prices.End, a.Prices.End)
	}

	a.SellLimit.Spot = sellSpot
	a.BuyLimit.Spot = buySpot
	a.Prices = prices
	return nil
}

// Price returns the D18 price at now for an open auction. The window
// endpoints return the configured start and end prices verbatim; in between
// the curve is max(end, ceil(start * e^(-k * (now - start)))), monotonically
// non-increasing.
func Price(a *types.Auction, now int64) (sdkmath.Int, error) {
	if a.TryGetStatus(now) != types.AuctionOpen {
		return sdkmath.Int{}, errorsmod.Wrapf(types.ErrInvalidState,
			"auction %d is not open at %d", a.ID, now)
	}
	switch now {
	case a.Start:
		return a.Prices.Start, nil
	case a.End:
		return a.Prices.End, nil
	}

	elapsed := sdkmath.NewInt(now - a.Start)
	exponent, err := decimal.NewFromRaw(a.K).Mul(decimal.NewFromRaw(elapsed))
	if err != nil {
		return sdkmath.Int{}, err
	}
	factor, err := exponent.Exp(true)
	if err != nil {
		return sdkmath.Int{}, err
	}
	price, err := decimal.NewFromRaw(a.Prices.Start).MulDiv(factor, decimal.One(), decimal.Ceil)
	if err != nil {
		return sdkmath.Int{}, err
	}
	if price.Raw().LT(a.Prices.End) {
		return a.Prices.End, nil
	}
	return price.Raw(), nil
}

// BidParams carries the fresh caller-supplied balances for one settlement.
// All amounts are D18.
type BidParams struct {
	SellAmount   sdkmath.Int
	MaxBuyAmount sdkmath.Int
	SellBalance  sdkmath.Int
	BuyBalance   sdkmath.Int
	TotalSupply  sdkmath.Int
}

// BidResult reports the outcome of a settlement. The caller executes the
// token movements and applies the basket-set removal if flagged.
type BidResult struct {
	Price           sdkmath.Int
	BoughtAmount    sdkmath.Int
	NewSellBalance  sdkmath.Int
	NewBuyBalance   sdkmath.Int
	Closed          bool
	RemoveSellToken bool
}

// Bid settles a bid against an open auction. All checks run before any
// mutation; the only state change is force-closing the auction when the sell
// side lands exactly on its floor.
func Bid(a *types.Auction, now int64, p BidParams) (BidResult, error) {
	price, err := Price(a, now)
	if err != nil {
		return BidResult{}, err
	}
	if !p.SellAmount.IsPositive() {
		return BidResult{}, errorsmod.Wrap(types.ErrInvalidParameter, "sell amount must be positive")
	}

	bought, err := decimal.NewFromRaw(p.SellAmount).MulDiv(
		decimal.NewFromRaw(price), decimal.One(), decimal.Floor)
	if err != nil {
		return BidResult{}, err
	}
	if bought.Raw().GT(p.MaxBuyAmount) {
		return BidResult{}, errorsmod.Wrapf(types.ErrSlippageExceeded,
			"bid would cost %s, max %s", bought.Raw(), p.MaxBuyAmount)
	}

	// The sell side may never drop below its basket-proportional floor,
	// rounded up.
	minSellDec, err := decimal.NewFromRaw(a.SellLimit.Spot).MulDiv(
		decimal.NewFromRaw(p.TotalSupply), decimal.One(), decimal.Ceil)
	if err != nil {
		return BidResult{}, err
	}
	minSell := minSellDec.Raw()
	if p.SellBalance.LT(minSell.Add(p.SellAmount)) {
		available := sdkmath.ZeroInt()
		if p.SellBalance.GT(minSell) {
			available = p.SellBalance.Sub(minSell)
		}
		return BidResult{}, errorsmod.Wrapf(types.ErrInsufficientHeadroom,
			"sell amount %s exceeds headroom %s above floor %s", p.SellAmount, available, minSell)
	}
	newSell := p.SellBalance.Sub(p.SellAmount)

	newBuy := p.BuyBalance.Add(bought.Raw())
	maxBuyDec, err := decimal.NewFromRaw(a.BuyLimit.Spot).MulDiv(
		decimal.NewFromRaw(p.TotalSupply), decimal.One(), decimal.Floor)
	if err != nil {
		return BidResult{}, err
	}
	if newBuy.GT(maxBuyDec.Raw()) {
		return BidResult{}, errorsmod.Wrapf(types.ErrExcessiveBid,
			"buy balance %s would exceed limit %s", newBuy, maxBuyDec.Raw())
	}

	result := BidResult{
		Price:          price,
		BoughtAmount:   bought.Raw(),
		NewSellBalance: newSell,
		NewBuyBalance:  newBuy,
	}
	if newSell.Equal(minSell) {
		// Floor reached: nothing left to trade, end the auction now.
		a.End = now
		result.Closed = true
	}
	if newSell.IsZero() {
		result.RemoveSellToken = true
	}
	return result, nil
}

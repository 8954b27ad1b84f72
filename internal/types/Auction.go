/*

This file contains the rebalancing auction record and its lifecycle
classification. An auction is created Approved (start == end == 0), opened by
the launcher into a time-decaying price window, and is Closed once the window
has passed or the sell side hits its floor.

*/

package types

import (
	sdkmath "cosmossdk.io/math"
)

// AuctionStatus is the pure lifecycle classification of an auction record at
// a given timestamp.
type AuctionStatus int

const (
	AuctionApproved AuctionStatus = iota
	AuctionOpen
	AuctionClosed
)

func (s AuctionStatus) String() string {
	switch s {
	case AuctionApproved:
		return "approved"
	case AuctionOpen:
		return "open"
	case AuctionClosed:
		return "closed"
	}
	return "unknown"
}

// BasketRange expresses a trade limit as D18 shares of total basket supply.
// Spot is the operative value; Low and High bound what the launcher may move
// Spot to before the first trade.
type BasketRange struct {
	Spot sdkmath.Int `json:"spot"`
	Low  sdkmath.Int `json:"low"`
	High sdkmath.Int `json:"high"`
}

// Prices is the D18 start/end price range of the decay curve, quoted as buy
// tokens per sell token.
type Prices struct {
	Start sdkmath.Int `json:"start"`
	End   sdkmath.Int `json:"end"`
}

// Auction is one approved rebalancing trade between two basket assets.
type Auction struct {
	ID        uint64 `json:"id"`
	SellToken string `json:"sell_token"`
	BuyToken  string `json:"buy_token"`

	SellLimit BasketRange `json:"sell_limit"`
	BuyLimit  BasketRange `json:"buy_limit"`

	// Prices as currently parameterized. ApprovedPrices keeps the values
	// fixed at approval time; the launcher may raise Start up to 100x the
	// approved start and may raise End arbitrarily, never lower either.
	Prices         Prices `json:"prices"`
	ApprovedPrices Prices `json:"approved_prices"`

	// ApprovedSellLimit / ApprovedBuyLimit bound launcher
	// re-parameterization of the spot limits.
	ApprovedSellLimit BasketRange `json:"approved_sell_limit"`
	ApprovedBuyLimit  BasketRange `json:"approved_buy_limit"`

	// Lifecycle timestamps, unix seconds. Start and End are zero until the
	// auction is opened.
	AvailableAt   int64 `json:"available_at"`
	LaunchTimeout int64 `json:"launch_timeout"`
	Start         int64 `json:"start"`
	End           int64 `json:"end"`

	// K is the decay constant, D18 per second. Zero for a flat auction.
	K sdkmath.Int `json:"k"`
}

// TryGetStatus classifies the auction at now without touching state.
func (a *Auction) TryGetStatus(now int64) AuctionStatus {
	switch {
	case a.Start == 0 && a.End == 0:
		return AuctionApproved
	case a.Start <= now && now <= a.End:
		return AuctionOpen
	case now > a.End:
		return AuctionClosed
	}
	// now < Start on an opened auction: not yet biddable, not approved.
	return AuctionClosed
}

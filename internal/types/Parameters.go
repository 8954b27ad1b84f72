package types

import (
	sdkmath "cosmossdk.io/math"
)

// ProtocolParameters holds the tunable economic parameters of the protocol.
// Rate-like values are fixed-point with 18 decimals (1e18 == 100%).
type ProtocolParameters struct {
	Version     int    `json:"version"`
	Description string `json:"description"`

	// AnnualTVLFee is the yearly TVL fee rate, 18-decimal fixed point.
	AnnualTVLFee sdkmath.Int `json:"annual_tvl_fee"`
	// MintFee is the fee taken on each mint, 18-decimal fixed point.
	MintFee sdkmath.Int `json:"mint_fee"`
	// FeeFloor is the minimum effective annual TVL fee rate enforced at poke
	// time, 18-decimal fixed point.
	FeeFloor sdkmath.Int `json:"fee_floor"`

	// DAOFeeNumerator / DAOFeeDenominator define the DAO's cut of all fees.
	DAOFeeNumerator   sdkmath.Int `json:"dao_fee_numerator"`
	DAOFeeDenominator sdkmath.Int `json:"dao_fee_denominator"`
	// MinDAOFee is the minimum DAO mint-fee take, 18-decimal fixed point.
	MinDAOFee sdkmath.Int `json:"min_dao_fee"`

	// AuctionLength is the duration of a launched auction in seconds.
	AuctionLength uint64 `json:"auction_length"`
	// MaxPriceRatio bounds start/end price spread, 18-decimal fixed point.
	MaxPriceRatio sdkmath.Int `json:"max_price_ratio"`

	// RewardHalfLife is the reward payout half-life in seconds.
	RewardHalfLife uint64 `json:"reward_half_life"`

	// PokeInterval is how often the keeper accrues fees and rewards, in seconds.
	PokeInterval uint64 `json:"poke_interval"`
}

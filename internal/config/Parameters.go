/*

This file contains the default protocol parameters for the keeper.

These parameters govern fee accrual, auction launches and reward payouts for a
production basket. Each value has been chosen to balance revenue against
holder dilution and settlement risk.

*/

package config

import (
	sdkmath "cosmossdk.io/math"

	"github.com/folio-protocol/folio-core/internal/types"
)

// DefaultProtocolParameters provides a baseline set of parameters for the keeper.
// These values are used if no active parameters are found in the database during initialization.
//
// Rate-like values are 18-decimal fixed point: 1e18 == 100%.
var DefaultProtocolParameters = types.ProtocolParameters{
	Version:     1,
	Description: "Baseline production parameters",

	AnnualTVLFee: sdkmath.NewInt(20_000_000_000_000_000), // 2% per year.
	// Rationale: in line with managed-basket products; high enough to sustain
	// operations without visibly eroding holder value between pokes.

	MintFee: sdkmath.NewInt(3_000_000_000_000_000), // 0.3% per mint.
	// Rationale: discourages mint/redeem churn that forces basket rebalancing
	// while staying below typical swap costs for entering the same exposure.

	FeeFloor: sdkmath.NewInt(1_500_000_000_000_000), // 0.15% per year minimum.
	// Rationale: guarantees a minimum revenue stream to the DAO even for
	// baskets configured with a zero or near-zero TVL fee.

	DAOFeeNumerator:   sdkmath.NewInt(1),
	DAOFeeDenominator: sdkmath.NewInt(2), // DAO takes 50% of all fees.

	MinDAOFee: sdkmath.NewInt(1_500_000_000_000_000), // 0.15% minimum DAO mint take.
	// Rationale: keeps the DAO cut meaningful when a basket sets a tiny mint
	// fee; the DAO portion is raised to this floor rather than the total fee.

	AuctionLength: 1800, // 30 minutes.
	// Rationale: long enough for the exponential decay to explore the price
	// band, short enough that stale oracle ranges are not a settlement risk.

	MaxPriceRatio: sdkmath.NewInt(100).Mul(sdkmath.NewInt(1_000_000_000_000_000_000)), // 100x start/end spread.
	// Rationale: a wider spread makes the decay so steep that a single block
	// of delay can move the clearing price past its fair value.

	RewardHalfLife: 604_800, // 7 days.
	// Rationale: smooths reward streams across funding top-ups; within the
	// accepted 1 day to 2 week range, biased long to reduce claim gaming.

	PokeInterval: 60, // Accrue fees and rewards every minute.
	// Rationale: accrual math is exact in elapsed time, so the interval only
	// bounds staleness of persisted state, not correctness.
}

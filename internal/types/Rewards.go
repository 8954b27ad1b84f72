/*

This file contains the per-token and per-user reward tracking records used by
the index-based lazy accrual engine.

*/

package types

import (
	sdkmath "cosmossdk.io/math"
)

// RewardInfo is the global tracking record for one reward token.
//
// RewardIndex accumulates reward-per-staked-unit at D18 precision boosted by
// the reward token's own decimals, so low-decimal tokens still move the index
// on small handouts. Balances are raw reward-token units.
type RewardInfo struct {
	Token string `json:"token"`

	// Decimals of the reward token itself; fixes the index precision.
	Decimals uint8 `json:"decimals"`

	// RewardIndex is monotonic non-decreasing, scale D18 * 10^Decimals.
	RewardIndex sdkmath.Int `json:"reward_index"`

	// BalanceAccounted is the portion of the custodial balance already
	// folded into the index. BalanceLastKnown is custodial + total claimed
	// as of the last accrual.
	BalanceAccounted sdkmath.Int `json:"balance_accounted"`
	BalanceLastKnown sdkmath.Int `json:"balance_last_known"`

	// TotalClaimed is the cumulative amount paid out, raw token units.
	TotalClaimed sdkmath.Int `json:"total_claimed"`

	// PayoutLastPaid is the unix timestamp of the last accrual.
	PayoutLastPaid int64 `json:"payout_last_paid"`

	// Disallowed is permanent once set; the token was removed and can
	// never accrue or be re-registered.
	Disallowed bool `json:"disallowed"`
}

// NewRewardInfo returns a zeroed record for a freshly registered token.
func NewRewardInfo(token string, decimals uint8, now int64) *RewardInfo {
	return &RewardInfo{
		Token:            token,
		Decimals:         decimals,
		RewardIndex:      sdkmath.ZeroInt(),
		BalanceAccounted: sdkmath.ZeroInt(),
		BalanceLastKnown: sdkmath.ZeroInt(),
		TotalClaimed:     sdkmath.ZeroInt(),
		PayoutLastPaid:   now,
	}
}

// UserRewardInfo is the lazily-created per (user, reward token) record.
// AccruedRewards carries sub-unit dust between claims, scale 10^Decimals of
// the reward token.
type UserRewardInfo struct {
	LastRewardIndex sdkmath.Int `json:"last_reward_index"`
	AccruedRewards  sdkmath.Int `json:"accrued_rewards"`
}

/*

This file contains the pending-amount record tracked at both folio and
per-user granularity by the basket ledger. The folio-level value for any
token must always equal the sum of all per-user values for that token.

*/

package types

import (
	sdkmath "cosmossdk.io/math"
)

// PendingTrack selects which in-flight bucket a pending amount belongs to.
type PendingTrack int

const (
	PendingForMinting PendingTrack = iota
	PendingForRedeeming
)

func (t PendingTrack) String() string {
	if t == PendingForMinting {
		return "minting"
	}
	return "redeeming"
}

// TokenAmount tracks the two in-flight buckets for one token, raw token
// units. Amounts sitting here are earmarked and excluded from the token's
// "clean" (available) balance.
type TokenAmount struct {
	AmountForMinting   sdkmath.Int `json:"amount_for_minting"`
	AmountForRedeeming sdkmath.Int `json:"amount_for_redeeming"`
}

// NewTokenAmount returns a zeroed record.
func NewTokenAmount() *TokenAmount {
	return &TokenAmount{
		AmountForMinting:   sdkmath.ZeroInt(),
		AmountForRedeeming: sdkmath.ZeroInt(),
	}
}

// Get returns the bucket for the given track.
func (ta *TokenAmount) Get(track PendingTrack) sdkmath.Int {
	if track == PendingForMinting {
		return ta.AmountForMinting
	}
	return ta.AmountForRedeeming
}

// Set overwrites the bucket for the given track.
func (ta *TokenAmount) Set(track PendingTrack, v sdkmath.Int) {
	if track == PendingForMinting {
		ta.AmountForMinting = v
		return
	}
	ta.AmountForRedeeming = v
}

// IsZero reports whether both buckets are empty.
func (ta *TokenAmount) IsZero() bool {
	return ta.AmountForMinting.IsZero() && ta.AmountForRedeeming.IsZero()
}

/*

This file contains the fee-side state of a folio basket: the running fee
counters advanced by pokes, the fee recipient table, and the immutable
distribution snapshot consumed by the crank.

*/

package types

import (
	sdkmath "cosmossdk.io/math"
	"github.com/google/uuid"
)

// MaxFeeRecipients bounds the fee recipient table.
const MaxFeeRecipients = 64

// BasketState carries the continuously-compounding fee bookkeeping for one
// basket. The pending counters are D18 share amounts: they only grow between
// pokes and only shrink by exactly the amount minted during a distribution.
type BasketState struct {
	// TVLFeeRate is the per-second fee rate, D18. Derived once from the
	// annual rate via nth-root, not recomputed per poke.
	TVLFeeRate sdkmath.Int `json:"tvl_fee_rate"`

	// MintFeeRate is the fee applied on share issuance, D18.
	MintFeeRate sdkmath.Int `json:"mint_fee_rate"`

	// DAOPendingFeeShares accumulates the protocol recipient's cut, D18.
	DAOPendingFeeShares sdkmath.Int `json:"dao_pending_fee_shares"`

	// FeeRecipientsPendingFeeShares accumulates the fan-out cut, D18.
	FeeRecipientsPendingFeeShares sdkmath.Int `json:"fee_recipients_pending_fee_shares"`

	// LastPoke is the unix timestamp fees have been realized up to.
	LastPoke int64 `json:"last_poke"`
}

// NewBasketState returns a zeroed state with all counters initialized, so
// callers never see nil sdkmath.Int fields.
func NewBasketState(tvlFeeRate, mintFeeRate sdkmath.Int, now int64) BasketState {
	return BasketState{
		TVLFeeRate:                    tvlFeeRate,
		MintFeeRate:                   mintFeeRate,
		DAOPendingFeeShares:           sdkmath.ZeroInt(),
		FeeRecipientsPendingFeeShares: sdkmath.ZeroInt(),
		LastPoke:                      now,
	}
}

// FeeRecipient is one entry of the fan-out table. Portion is a D18 fraction;
// across the whole table the non-empty portions must sum to exactly 1.0 D18.
type FeeRecipient struct {
	Recipient string      `json:"recipient"`
	Portion   sdkmath.Int `json:"portion"`
}

// Empty reports whether the slot is unoccupied.
func (r FeeRecipient) Empty() bool {
	return r.Recipient == ""
}

// FeeDistributionSnapshot freezes the recipients-share amount together with
// the recipient table as of realization time. It is immutable once created
// and consumed index-by-index by the crank; once every entry is distributed
// it closes and the storage deposit returns to the initiator.
type FeeDistributionSnapshot struct {
	ID                 uuid.UUID      `json:"id"`
	AmountToDistribute sdkmath.Int    `json:"amount_to_distribute"` // D18 shares
	Recipients         []FeeRecipient `json:"recipients"`
	Distributed        []bool         `json:"distributed"`
	Initiator          string         `json:"initiator"`
	Closed             bool           `json:"closed"`
}

/*

This file registers the error taxonomy shared by every core engine.

All engines abort on the first failure and leave the caller's state untouched;
the registered errors below classify why. Wrapping context is added at the
call site with errorsmod.Wrapf.

*/

package types

import (
	errorsmod "cosmossdk.io/errors"
)

// Codespace scopes every registered core error.
const Codespace = "folio"

var (
	// Arithmetic failures. Native-scale conversions saturate instead of
	// returning ErrOverflow; everything else aborts.
	ErrOverflow       = errorsmod.Register(Codespace, 2, "arithmetic overflow")
	ErrUnderflow      = errorsmod.Register(Codespace, 3, "arithmetic underflow")
	ErrDivisionByZero = errorsmod.Register(Codespace, 4, "division by zero")

	// ErrInvalidParameter rejects out-of-range rates, limits, prices and
	// ttl inputs before any mutation is attempted.
	ErrInvalidParameter = errorsmod.Register(Codespace, 5, "invalid parameter")

	// ErrInvalidState rejects an operation attempted against the wrong
	// lifecycle phase (bidding on a closed auction, re-cranking a closed
	// distribution, pending-amount underflow on redemption).
	ErrInvalidState = errorsmod.Register(Codespace, 6, "invalid state")

	// Economic guards.
	ErrSlippageExceeded     = errorsmod.Register(Codespace, 7, "slippage exceeded")
	ErrExcessiveBid         = errorsmod.Register(Codespace, 8, "excessive post-trade balance")
	ErrInsufficientHeadroom = errorsmod.Register(Codespace, 9, "insufficient sell-side headroom")

	// No-op rejections: a computed zero where a nonzero result was
	// semantically required.
	ErrNoRewardsToClaim    = errorsmod.Register(Codespace, 10, "no rewards to claim")
	ErrNothingToDistribute = errorsmod.Register(Codespace, 11, "nothing to distribute")
)

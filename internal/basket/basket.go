/*

This file contains the pending-amount basket ledger that makes multi-step
mint and redeem flows safe. Every pending amount is tracked twice, at folio
level and per user, and both levels always mutate together: for any token the
folio aggregate equals the sum over users at every observable point.

All token amounts here are raw custodial units (D9 native); share amounts and
the total supply are D18.

*/

package basket

import (
	"sort"

	errorsmod "cosmossdk.io/errors"
	sdkmath "cosmossdk.io/math"

	"github.com/folio-protocol/folio-core/internal/decimal"
	"github.com/folio-protocol/folio-core/internal/types"
)

// Ledger is the explicit keyed pending-amount store, owned by the caller.
// Order is the folio's canonical token ordering for index-aligned batch
// operations.
type Ledger struct {
	Order []string
	Folio map[string]*types.TokenAmount
	Users map[string]map[string]*types.TokenAmount
}

// NewLedger returns a ledger tracking the given canonical token set.
func NewLedger(order []string) *Ledger {
	return &Ledger{
		Order: append([]string(nil), order...),
		Folio: make(map[string]*types.TokenAmount),
		Users: make(map[string]map[string]*types.TokenAmount),
	}
}

func (l *Ledger) folio(token string) *types.TokenAmount {
	ta, ok := l.Folio[token]
	if !ok {
		ta = types.NewTokenAmount()
		l.Folio[token] = ta
	}
	return ta
}

func (l *Ledger) user(user, token string) *types.TokenAmount {
	tokens, ok := l.Users[user]
	if !ok {
		tokens = make(map[string]*types.TokenAmount)
		l.Users[user] = tokens
	}
	ta, ok := tokens[token]
	if !ok {
		ta = types.NewTokenAmount()
		tokens[token] = ta
	}
	return ta
}

// FolioPending returns the folio-level pending amount for a token and track.
func (l *Ledger) FolioPending(token string, track types.PendingTrack) sdkmath.Int {
	if ta, ok := l.Folio[token]; ok {
		return ta.Get(track)
	}
	return sdkmath.ZeroInt()
}

// UserPending returns the per-user pending amount for a token and track.
func (l *Ledger) UserPending(user, token string, track types.PendingTrack) sdkmath.Int {
	if tokens, ok := l.Users[user]; ok {
		if ta, ok := tokens[token]; ok {
			return ta.Get(track)
		}
	}
	return sdkmath.ZeroInt()
}

// AddPending earmarks amount for the user on the given track, mirrored at
// folio level.
func (l *Ledger) AddPending(user, token string, amount sdkmath.Int, track types.PendingTrack) error {
	if !amount.IsPositive() {
		return errorsmod.Wrap(types.ErrInvalidParameter, "pending amount must be positive")
	}
	ua := l.user(user, token)
	fa := l.folio(token)
	ua.Set(track, ua.Get(track).Add(amount))
	fa.Set(track, fa.Get(track).Add(amount))
	return nil
}

// RemovePending releases amount from the user's bucket and the folio mirror.
// Draining more than is pending is a lifecycle error, and nothing mutates.
func (l *Ledger) RemovePending(user, token string, amount sdkmath.Int, track types.PendingTrack) error {
	if !amount.IsPositive() {
		return errorsmod.Wrap(types.ErrInvalidParameter, "pending amount must be positive")
	}
	ua := l.user(user, token)
	fa := l.folio(token)
	if ua.Get(track).LT(amount) {
		return errorsmod.Wrapf(types.ErrInvalidState,
			"user %s has %s pending for %s on %s, cannot remove %s",
			user, ua.Get(track), token, track, amount)
	}
	if fa.Get(track).LT(amount) {
		return errorsmod.Wrapf(types.ErrInvalidState,
			"folio pending underflow for %s on %s", token, track)
	}
	ua.Set(track, ua.Get(track).Sub(amount))
	fa.Set(track, fa.Get(track).Sub(amount))
	return nil
}

// Reclaim returns any pending amount to the user at any time, on either
// track. This path is never gated on system status.
func (l *Ledger) Reclaim(user, token string, amount sdkmath.Int, track types.PendingTrack) error {
	return l.RemovePending(user, token, amount, track)
}

// CleanBalance is the portion of a raw custodial balance not earmarked by
// either in-flight bucket.
func (l *Ledger) CleanBalance(token string, rawBalance sdkmath.Int) (sdkmath.Int, error) {
	fa := l.folio(token)
	clean := rawBalance.Sub(fa.AmountForRedeeming).Sub(fa.AmountForMinting)
	if clean.IsNegative() {
		return sdkmath.Int{}, errorsmod.Wrapf(types.ErrUnderflow,
			"custodial balance %s of %s below earmarked total", rawBalance, token)
	}
	return clean, nil
}

// MaxMintableShares computes the binding share bound for a user's pending
// deposits: the minimum over every basket token of
// pending * totalSupply / cleanBalance. Shares are D18, totalSupply must
// already include unminted pending fee shares.
func (l *Ledger) MaxMintableShares(user string, rawBalances map[string]sdkmath.Int, totalSupply sdkmath.Int) (sdkmath.Int, error) {
	if !totalSupply.IsPositive() {
		return sdkmath.Int{}, errorsmod.Wrap(types.ErrInvalidParameter, "total supply must be positive")
	}
	var minShares sdkmath.Int
	for _, token := range l.Order {
		clean, err := l.CleanBalance(token, balanceOf(rawBalances, token))
		if err != nil {
			return sdkmath.Int{}, err
		}
		if clean.IsZero() {
			return sdkmath.ZeroInt(), nil
		}
		pending := l.UserPending(user, token, types.PendingForMinting)
		shares, err := decimal.NewFromRaw(pending).MulDiv(
			decimal.NewFromRaw(totalSupply), decimal.NewFromRaw(clean), decimal.Floor)
		if err != nil {
			return sdkmath.Int{}, err
		}
		if minShares.IsNil() || shares.Raw().LT(minShares) {
			minShares = shares.Raw()
		}
	}
	if minShares.IsNil() {
		return sdkmath.ZeroInt(), nil
	}
	return minShares, nil
}

// MintFromPending converts a user's pending deposits into issued shares.
// The requested D18 share amount must not exceed the MaxMintableShares
// bound; for every basket token ceil(shares * clean / supply) leaves both
// pending trackers, and the minted raw share amount rounds down. All
// deductions are computed before any tracker mutates.
func (l *Ledger) MintFromPending(user string, rawBalances map[string]sdkmath.Int,
	totalSupply, requestedShares sdkmath.Int) (uint64, error) {

	if !requestedShares.IsPositive() {
		return 0, errorsmod.Wrap(types.ErrInvalidParameter, "requested shares must be positive")
	}
	maxShares, err := l.MaxMintableShares(user, rawBalances, totalSupply)
	if err != nil {
		return 0, err
	}
	if requestedShares.GT(maxShares) {
		return 0, errorsmod.Wrapf(types.ErrInvalidParameter,
			"requested %s shares exceeds mintable %s", requestedShares, maxShares)
	}

	deductions := make([]sdkmath.Int, len(l.Order))
	for i, token := range l.Order {
		clean, err := l.CleanBalance(token, balanceOf(rawBalances, token))
		if err != nil {
			return 0, err
		}
		cost, err := decimal.NewFromRaw(requestedShares).MulDiv(
			decimal.NewFromRaw(clean), decimal.NewFromRaw(totalSupply), decimal.Ceil)
		if err != nil {
			return 0, err
		}
		if cost.Raw().GT(l.UserPending(user, token, types.PendingForMinting)) {
			return 0, errorsmod.Wrapf(types.ErrInvalidState,
				"deduction for %s exceeds user pending", token)
		}
		deductions[i] = cost.Raw()
	}
	for i, token := range l.Order {
		if deductions[i].IsZero() {
			continue
		}
		if err := l.RemovePending(user, token, deductions[i], types.PendingForMinting); err != nil {
			return 0, err
		}
	}
	return decimal.NewFromRaw(requestedShares).ToTokenAmount(decimal.Floor), nil
}

// RedeemToPending burns shares into per-token redeeming-pending amounts:
// every basket token moves floor(shares * clean / supply) raw units from
// available into the user's redeeming bucket and the folio mirror. The
// caller burns the shares; a later Withdraw drains the buckets.
func (l *Ledger) RedeemToPending(user string, rawBalances map[string]sdkmath.Int,
	totalSupply, shares sdkmath.Int) (map[string]sdkmath.Int, error) {

	if !shares.IsPositive() {
		return nil, errorsmod.Wrap(types.ErrInvalidParameter, "shares must be positive")
	}
	if !totalSupply.IsPositive() || shares.GT(totalSupply) {
		return nil, errorsmod.Wrapf(types.ErrInvalidParameter,
			"cannot redeem %s of %s supply", shares, totalSupply)
	}

	out := make(map[string]sdkmath.Int, len(l.Order))
	for _, token := range l.Order {
		clean, err := l.CleanBalance(token, balanceOf(rawBalances, token))
		if err != nil {
			return nil, err
		}
		amount, err := decimal.NewFromRaw(shares).MulDiv(
			decimal.NewFromRaw(clean), decimal.NewFromRaw(totalSupply), decimal.Floor)
		if err != nil {
			return nil, err
		}
		out[token] = amount.Raw()
	}
	for token, amount := range out {
		if amount.IsZero() {
			continue
		}
		if err := l.AddPending(user, token, amount, types.PendingForRedeeming); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// Withdraw drains amount from the user's redeeming bucket; the caller
// executes the token transfer.
func (l *Ledger) Withdraw(user, token string, amount sdkmath.Int) error {
	return l.RemovePending(user, token, amount, types.PendingForRedeeming)
}

// Reorder sorts a user's token list into the folio's canonical ordering,
// placing unmatched tokens last in their original relative order.
func (l *Ledger) Reorder(tokens []string) []string {
	rank := make(map[string]int, len(l.Order))
	for i, t := range l.Order {
		rank[t] = i
	}
	out := append([]string(nil), tokens...)
	sort.SliceStable(out, func(i, j int) bool {
		ri, iKnown := rank[out[i]]
		rj, jKnown := rank[out[j]]
		switch {
		case iKnown && jKnown:
			return ri < rj
		case iKnown:
			return true
		default:
			return false
		}
	})
	return out
}

func balanceOf(balances map[string]sdkmath.Int, token string) sdkmath.Int {
	if b, ok := balances[token]; ok {
		return b
	}
	return sdkmath.ZeroInt()
}

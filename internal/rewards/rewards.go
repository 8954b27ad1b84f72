/*

This file contains the governance-weighted reward accrual engine. A global
per-token reward index advances as custodial reward balances are handed out
over time; per-user settlement is lazy and O(1) against the index delta.

Scales: custodial balances, claims and staked amounts are raw token units.
The reward index and a user's accrued amount carry an extra 10^decimals of
precision (the reward token's own decimals) so small handouts still move the
index; a claim pays out whole raw units and leaves the sub-unit dust
accruing toward a future claim.

*/

package rewards

import (
	"math/big"

	errorsmod "cosmossdk.io/errors"
	sdkmath "cosmossdk.io/math"

	"github.com/folio-protocol/folio-core/internal/decimal"
	"github.com/folio-protocol/folio-core/internal/logger"
	"github.com/folio-protocol/folio-core/internal/types"
)

var rewardsLogger = logger.GetForComponent("rewards")

const (
	// Reward half-life bounds, seconds: one day to two weeks.
	MinRewardHalfLife = 86_400
	MaxRewardHalfLife = 1_209_600

	// MaxRewardTokens bounds the tracked reward token set.
	MaxRewardTokens = 4
)

// UserKey addresses a per-user reward record.
type UserKey struct {
	User  string
	Token string
}

// Ledger is the explicit keyed store for reward state, owned by the caller
// and passed by reference into every operation.
type Ledger struct {
	Tokens     map[string]*types.RewardInfo
	Users      map[UserKey]*types.UserRewardInfo
	Disallowed map[string]bool
}

// NewLedger returns an empty reward ledger.
func NewLedger() *Ledger {
	return &Ledger{
		Tokens:     make(map[string]*types.RewardInfo),
		Users:      make(map[UserKey]*types.UserRewardInfo),
		Disallowed: make(map[string]bool),
	}
}

// HalfLifeToRatio converts a half-life in seconds to the per-second D18
// reward ratio ln(2) / halfLife, rejecting half-lives outside the allowed
// band.
func HalfLifeToRatio(halfLife int64) (sdkmath.Int, error) {
	if halfLife < MinRewardHalfLife || halfLife > MaxRewardHalfLife {
		return sdkmath.Int{}, errorsmod.Wrapf(types.ErrInvalidParameter,
			"half-life %d outside [%d, %d]", halfLife, MinRewardHalfLife, MaxRewardHalfLife)
	}
	ratio, err := decimal.Ln2().Div(decimal.NewFromRaw(sdkmath.NewInt(halfLife)))
	if err != nil {
		return sdkmath.Int{}, err
	}
	return ratio.Raw(), nil
}

// Register adds a reward token to the tracked set. A token that was removed
// is disallowed forever and can never be re-registered.
func (l *Ledger) Register(token string, decimals uint8, now int64) (*types.RewardInfo, error) {
	if l.Disallowed[token] {
		return nil, errorsmod.Wrapf(types.ErrInvalidState, "reward token %s is disallowed", token)
	}
	if _, exists := l.Tokens[token]; exists {
		return nil, errorsmod.Wrapf(types.ErrInvalidState, "reward token %s already registered", token)
	}
	if len(l.Tokens) >= MaxRewardTokens {
		return nil, errorsmod.Wrapf(types.ErrInvalidParameter,
			"reward token set full (%d)", MaxRewardTokens)
	}
	info := types.NewRewardInfo(token, decimals, now)
	l.Tokens[token] = info
	rewardsLogger.Info().
		Str("token", token).
		Uint8("decimals", decimals).
		Msg("Reward token registered")
	return info, nil
}

// Remove takes a reward token out of the tracked set and places it on the
// permanent disallow list. Accrued user balances remain claimable.
func (l *Ledger) Remove(token string) error {
	if _, exists := l.Tokens[token]; !exists {
		return errorsmod.Wrapf(types.ErrInvalidState, "reward token %s not registered", token)
	}
	l.Tokens[token].Disallowed = true
	l.Disallowed[token] = true
	return nil
}

// Accrue folds a token's unaccounted custodial balance into its reward
// index.
//
// handout fraction = 1 - (1 - ratio)^elapsed, minus one D18 unit of rounding
// slack so the index never overshoots the actual balance. With no stakers
// the clock still advances but nothing is handed out. A zero elapsed window,
// or now before the last payout, is a no-op.
func (l *Ledger) Accrue(token string, rewardRatio sdkmath.Int,
	currentCustodialBalance, stakedSupply sdkmath.Int, now int64) error {

	info, ok := l.Tokens[token]
	if !ok {
		return errorsmod.Wrapf(types.ErrInvalidState, "reward token %s not registered", token)
	}
	if info.Disallowed {
		return errorsmod.Wrapf(types.ErrInvalidState, "reward token %s is disallowed", info.Token)
	}
	elapsed := now - info.PayoutLastPaid
	if elapsed <= 0 {
		return nil
	}

	lastKnown := currentCustodialBalance.Add(info.TotalClaimed)
	unaccounted := lastKnown.Sub(info.BalanceAccounted)
	if unaccounted.IsNegative() {
		return errorsmod.Wrapf(types.ErrUnderflow,
			"accounted balance %s exceeds known balance %s", info.BalanceAccounted, lastKnown)
	}

	retained, err := decimal.One().Sub(decimal.NewFromRaw(rewardRatio))
	if err != nil {
		return err
	}
	compounded, err := retained.Pow(uint64(elapsed))
	if err != nil {
		return err
	}
	fraction, err := decimal.One().Sub(compounded)
	if err != nil {
		return err
	}
	// One D18 unit of slack, floored at zero.
	if !fraction.IsZero() {
		fraction, err = fraction.Sub(decimal.NewFromRaw(sdkmath.OneInt()))
		if err != nil {
			return err
		}
	}

	one := decimal.One().BigInt()
	product := new(big.Int).Mul(unaccounted.BigInt(), fraction.BigInt())
	toHandout := new(big.Int).Quo(product, one)
	toHandoutCeil := ceilQuo(product, one)

	if stakedSupply.IsPositive() && toHandout.Sign() > 0 {
		// Index delta at D18 * 10^decimals per staked unit.
		precision := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(info.Decimals)), nil)
		num := new(big.Int).Mul(toHandout, one)
		num.Mul(num, precision)
		deltaIndex := ceilQuo(num, stakedSupply.BigInt())
		info.RewardIndex = info.RewardIndex.Add(sdkmath.NewIntFromBigInt(deltaIndex))
		info.BalanceAccounted = info.BalanceAccounted.Add(sdkmath.NewIntFromBigInt(toHandoutCeil))
	}
	info.BalanceLastKnown = lastKnown
	info.PayoutLastPaid = now
	return nil
}

func ceilQuo(num, den *big.Int) *big.Int {
	q, rem := new(big.Int).QuoRem(num, den, new(big.Int))
	if rem.Sign() != 0 {
		q.Add(q, big.NewInt(1))
	}
	return q
}

// SettleUser advances a user's reward record against the global index. On
// first touch the record snapshots the current index, so the user accrues
// only from this point on.
func (l *Ledger) SettleUser(info *types.RewardInfo, user string, userStakedBalance sdkmath.Int) (*types.UserRewardInfo, error) {
	key := UserKey{User: user, Token: info.Token}
	ui, ok := l.Users[key]
	if !ok {
		ui = &types.UserRewardInfo{
			LastRewardIndex: info.RewardIndex,
			AccruedRewards:  sdkmath.ZeroInt(),
		}
		l.Users[key] = ui
		return ui, nil
	}

	delta := info.RewardIndex.Sub(ui.LastRewardIndex)
	if delta.IsNegative() {
		return nil, errorsmod.Wrapf(types.ErrInvalidState,
			"reward index went backwards for %s", info.Token)
	}
	if !delta.IsZero() {
		earned := userStakedBalance.Mul(delta).Quo(sdkmath.NewIntWithDecimal(1, 18))
		ui.AccruedRewards = ui.AccruedRewards.Add(earned)
		ui.LastRewardIndex = info.RewardIndex
	}
	return ui, nil
}

// Claimable returns the whole raw units a user could claim right now.
func Claimable(info *types.RewardInfo, ui *types.UserRewardInfo) sdkmath.Int {
	precision := sdkmath.NewIntFromBigInt(
		new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(info.Decimals)), nil))
	return ui.AccruedRewards.Quo(precision)
}

// Claim pays out the user's accrued rewards in whole raw units. A computed
// zero is rejected with ErrNoRewardsToClaim rather than silently succeeding;
// sub-unit dust stays behind and keeps accruing toward a future whole unit.
func Claim(info *types.RewardInfo, ui *types.UserRewardInfo) (sdkmath.Int, error) {
	amount := Claimable(info, ui)
	if amount.IsZero() {
		return sdkmath.Int{}, types.ErrNoRewardsToClaim
	}
	precision := sdkmath.NewIntFromBigInt(
		new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(info.Decimals)), nil))
	ui.AccruedRewards = ui.AccruedRewards.Sub(amount.Mul(precision))
	info.TotalClaimed = info.TotalClaimed.Add(amount)
	return amount, nil
}

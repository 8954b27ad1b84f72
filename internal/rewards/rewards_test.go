package rewards

import (
	"testing"

	sdkmath "cosmossdk.io/math"
	"github.com/stretchr/testify/require"

	"github.com/folio-protocol/folio-core/internal/types"
)

func TestHalfLifeToRatioScenario(t *testing.T) {
	// One-day half-life: ratio = ln(2)/86400.
	ratio, err := HalfLifeToRatio(86_400)
	require.NoError(t, err)
	require.Equal(t, sdkmath.NewInt(8_022_536_812_036), ratio)
}

func TestHalfLifeBounds(t *testing.T) {
	_, err := HalfLifeToRatio(MinRewardHalfLife - 1)
	require.ErrorIs(t, err, types.ErrInvalidParameter)
	_, err = HalfLifeToRatio(MaxRewardHalfLife + 1)
	require.ErrorIs(t, err, types.ErrInvalidParameter)

	_, err = HalfLifeToRatio(MinRewardHalfLife)
	require.NoError(t, err)
	_, err = HalfLifeToRatio(MaxRewardHalfLife)
	require.NoError(t, err)
}

func TestRegisterRemoveLifecycle(t *testing.T) {
	l := NewLedger()
	_, err := l.Register("eden", 9, 0)
	require.NoError(t, err)

	_, err = l.Register("eden", 9, 0)
	require.ErrorIs(t, err, types.ErrInvalidState)

	require.NoError(t, l.Remove("eden"))

	// Removal is permanent: no re-registration.
	_, err = l.Register("eden", 9, 0)
	require.ErrorIs(t, err, types.ErrInvalidState)

	// The bounded set counts removed tokens' slots as occupied.
	for _, tok := range []string{"a", "b", "c"} {
		_, err = l.Register(tok, 6, 0)
		require.NoError(t, err)
	}
	_, err = l.Register("overflowing", 6, 0)
	require.ErrorIs(t, err, types.ErrInvalidParameter)
}

func TestAccrueAdvancesIndex(t *testing.T) {
	l := NewLedger()
	info, err := l.Register("eden", 9, 1_000)
	require.NoError(t, err)
	ratio, err := HalfLifeToRatio(86_400)
	require.NoError(t, err)

	custodial := sdkmath.NewInt(1_000_000_000_000) // 1000 tokens at D9
	staked := sdkmath.NewInt(500_000_000_000)

	require.NoError(t, l.Accrue("eden", ratio, custodial, staked, 1_000+3_600))
	require.True(t, info.RewardIndex.IsPositive())
	require.True(t, info.BalanceAccounted.IsPositive())
	require.Equal(t, int64(4_600), info.PayoutLastPaid)

	// After one half-life roughly half the pot is accounted.
	require.NoError(t, l.Accrue("eden", ratio, custodial, staked, 1_000+86_400))
	half := custodial.QuoRaw(2)
	diff := info.BalanceAccounted.Sub(half).Abs()
	require.True(t, diff.LTE(custodial.QuoRaw(100)),
		"accounted %s expected ~%s", info.BalanceAccounted, half)
}

func TestAccrueMonotonicIndex(t *testing.T) {
	l := NewLedger()
	info, err := l.Register("eden", 9, 0)
	require.NoError(t, err)
	ratio, err := HalfLifeToRatio(86_400)
	require.NoError(t, err)

	custodial := sdkmath.NewInt(10_000_000_000)
	staked := sdkmath.NewInt(3_000_000_000)

	prev := info.RewardIndex
	for _, now := range []int64{10, 10, 500, 500, 7_200, 100_000} {
		require.NoError(t, l.Accrue("eden", ratio, custodial, staked, now))
		require.True(t, info.RewardIndex.GTE(prev),
			"index moved backwards at now=%d", now)
		prev = info.RewardIndex
	}

	// A stale timestamp is a no-op, never an underflow.
	before := info.RewardIndex
	require.NoError(t, l.Accrue("eden", ratio, custodial, staked, 99_999))
	require.Equal(t, before, info.RewardIndex)
}

func TestAccrueNoStakers(t *testing.T) {
	l := NewLedger()
	info, err := l.Register("eden", 9, 0)
	require.NoError(t, err)
	ratio, err := HalfLifeToRatio(86_400)
	require.NoError(t, err)

	require.NoError(t, l.Accrue("eden", ratio, sdkmath.NewInt(1_000_000_000), sdkmath.ZeroInt(), 3_600))
	require.True(t, info.RewardIndex.IsZero())
	require.True(t, info.BalanceAccounted.IsZero())
	// The clock still advances.
	require.Equal(t, int64(3_600), info.PayoutLastPaid)
}

func TestAccrueDisallowedToken(t *testing.T) {
	l := NewLedger()
	_, err := l.Register("eden", 9, 0)
	require.NoError(t, err)
	require.NoError(t, l.Remove("eden"))
	ratio, err := HalfLifeToRatio(86_400)
	require.NoError(t, err)

	err = l.Accrue("eden", ratio, sdkmath.NewInt(1_000_000_000), sdkmath.NewInt(1_000), 3_600)
	require.ErrorIs(t, err, types.ErrInvalidState)

	// A token the ledger has never seen is rejected up front.
	err = l.Accrue("ghost", ratio, sdkmath.NewInt(1_000_000_000), sdkmath.NewInt(1_000), 3_600)
	require.ErrorIs(t, err, types.ErrInvalidState)
}

func TestSettleAndClaim(t *testing.T) {
	l := NewLedger()
	info, err := l.Register("eden", 9, 0)
	require.NoError(t, err)
	ratio, err := HalfLifeToRatio(86_400)
	require.NoError(t, err)

	staked := sdkmath.NewInt(1_000_000_000) // one staked share, D9
	userStake := staked                     // single staker owns it all

	// First touch snapshots the index and accrues nothing yet.
	ui, err := l.SettleUser(info, "alice", userStake)
	require.NoError(t, err)
	require.True(t, ui.AccruedRewards.IsZero())

	custodial := sdkmath.NewInt(500_000_000_000)
	require.NoError(t, l.Accrue("eden", ratio, custodial, staked, 86_400))

	ui, err = l.SettleUser(info, "alice", userStake)
	require.NoError(t, err)
	require.True(t, ui.AccruedRewards.IsPositive())
	require.Equal(t, info.RewardIndex, ui.LastRewardIndex)

	claimable := Claimable(info, ui)
	require.True(t, claimable.IsPositive())

	amount, err := Claim(info, ui)
	require.NoError(t, err)
	require.Equal(t, claimable, amount)
	require.Equal(t, amount, info.TotalClaimed)

	// The sole staker after one half-life gets roughly half the pot.
	half := custodial.QuoRaw(2)
	diff := amount.Sub(half).Abs()
	require.True(t, diff.LTE(custodial.QuoRaw(100)),
		"claimed %s expected ~%s", amount, half)

	// Immediately claiming again has nothing to pay.
	_, err = Claim(info, ui)
	require.ErrorIs(t, err, types.ErrNoRewardsToClaim)
}

func TestClaimKeepsDust(t *testing.T) {
	info := types.NewRewardInfo("eden", 9, 0)
	ui := &types.UserRewardInfo{
		LastRewardIndex: sdkmath.ZeroInt(),
		// 2 whole units + 123 dust at the token's 10^9 precision.
		AccruedRewards: sdkmath.NewInt(2_000_000_123),
	}
	amount, err := Claim(info, ui)
	require.NoError(t, err)
	require.Equal(t, sdkmath.NewInt(2), amount)
	require.Equal(t, sdkmath.NewInt(123), ui.AccruedRewards)
}

func TestLateStakerAccruesOnlyForward(t *testing.T) {
	l := NewLedger()
	info, err := l.Register("eden", 9, 0)
	require.NoError(t, err)
	ratio, err := HalfLifeToRatio(86_400)
	require.NoError(t, err)

	staked := sdkmath.NewInt(2_000_000_000)
	custodial := sdkmath.NewInt(100_000_000_000)
	require.NoError(t, l.Accrue("eden", ratio, custodial, staked, 50_000))

	// Bob arrives after the first accrual window.
	ui, err := l.SettleUser(info, "bob", sdkmath.NewInt(1_000_000_000))
	require.NoError(t, err)
	require.True(t, ui.AccruedRewards.IsZero())
	require.Equal(t, info.RewardIndex, ui.LastRewardIndex)
}

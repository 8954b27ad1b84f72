package basket

import (
	"testing"

	sdkmath "cosmossdk.io/math"
	"github.com/stretchr/testify/require"

	"github.com/folio-protocol/folio-core/internal/types"
)

func precision() sdkmath.Int {
	return sdkmath.NewIntWithDecimal(1, 18)
}

// checkConservation asserts the folio-level pending amount for every token
// equals the sum over all users.
func checkConservation(t *testing.T, l *Ledger) {
	t.Helper()
	for token, fa := range l.Folio {
		mintSum := sdkmath.ZeroInt()
		redeemSum := sdkmath.ZeroInt()
		for _, tokens := range l.Users {
			if ua, ok := tokens[token]; ok {
				mintSum = mintSum.Add(ua.AmountForMinting)
				redeemSum = redeemSum.Add(ua.AmountForRedeeming)
			}
		}
		require.Equal(t, fa.AmountForMinting.String(), mintSum.String(),
			"minting conservation broken for %s", token)
		require.Equal(t, fa.AmountForRedeeming.String(), redeemSum.String(),
			"redeeming conservation broken for %s", token)
	}
}

func TestAddRemoveConservation(t *testing.T) {
	l := NewLedger([]string{"atom", "usdc", "osmo"})

	type op struct {
		user, token string
		amount      int64
		track       types.PendingTrack
		remove      bool
	}
	ops := []op{
		{"alice", "atom", 100, types.PendingForMinting, false},
		{"bob", "atom", 250, types.PendingForMinting, false},
		{"alice", "usdc", 75, types.PendingForRedeeming, false},
		{"alice", "atom", 40, types.PendingForMinting, true},
		{"bob", "osmo", 10, types.PendingForMinting, false},
		{"alice", "usdc", 75, types.PendingForRedeeming, true},
		{"bob", "atom", 250, types.PendingForMinting, true},
	}
	for _, o := range ops {
		var err error
		if o.remove {
			err = l.RemovePending(o.user, o.token, sdkmath.NewInt(o.amount), o.track)
		} else {
			err = l.AddPending(o.user, o.token, sdkmath.NewInt(o.amount), o.track)
		}
		require.NoError(t, err)
		checkConservation(t, l)
	}

	require.Equal(t, "60", l.FolioPending("atom", types.PendingForMinting).String())
	require.Equal(t, "60", l.UserPending("alice", "atom", types.PendingForMinting).String())
}

func TestRemoveMoreThanPending(t *testing.T) {
	l := NewLedger([]string{"atom"})
	require.NoError(t, l.AddPending("alice", "atom", sdkmath.NewInt(10), types.PendingForMinting))

	err := l.RemovePending("alice", "atom", sdkmath.NewInt(11), types.PendingForMinting)
	require.ErrorIs(t, err, types.ErrInvalidState)
	// Nothing mutated.
	require.Equal(t, "10", l.UserPending("alice", "atom", types.PendingForMinting).String())
	checkConservation(t, l)
}

func TestCleanBalance(t *testing.T) {
	l := NewLedger([]string{"atom"})
	require.NoError(t, l.AddPending("alice", "atom", sdkmath.NewInt(300), types.PendingForMinting))
	require.NoError(t, l.AddPending("bob", "atom", sdkmath.NewInt(200), types.PendingForRedeeming))

	clean, err := l.CleanBalance("atom", sdkmath.NewInt(1_000))
	require.NoError(t, err)
	require.Equal(t, "500", clean.String())

	_, err = l.CleanBalance("atom", sdkmath.NewInt(499))
	require.ErrorIs(t, err, types.ErrUnderflow)
}

func TestMaxMintableSharesScenario(t *testing.T) {
	// Pending 100 against clean 2000 bounds the mint at 5% of the
	// precision factor when supply is exactly one precision unit.
	l := NewLedger([]string{"atom"})
	require.NoError(t, l.AddPending("alice", "atom", sdkmath.NewInt(100), types.PendingForMinting))

	balances := map[string]sdkmath.Int{"atom": sdkmath.NewInt(2_100)} // 2000 clean after pending
	maxShares, err := l.MaxMintableShares("alice", balances, precision())
	require.NoError(t, err)
	require.Equal(t, sdkmath.NewIntWithDecimal(5, 16).String(), maxShares.String())
}

func TestMintFromPendingScenario(t *testing.T) {
	l := NewLedger([]string{"atom"})
	require.NoError(t, l.AddPending("alice", "atom", sdkmath.NewInt(100), types.PendingForMinting))
	balances := map[string]sdkmath.Int{"atom": sdkmath.NewInt(2_100)}

	maxShares := sdkmath.NewIntWithDecimal(5, 16)

	// Requesting one share more than the bound fails before any mutation.
	_, err := l.MintFromPending("alice", balances, precision(), maxShares.AddRaw(1))
	require.ErrorIs(t, err, types.ErrInvalidParameter)
	require.Equal(t, "100", l.UserPending("alice", "atom", types.PendingForMinting).String())

	// Requesting exactly the bound drains the whole deposit.
	minted, err := l.MintFromPending("alice", balances, precision(), maxShares)
	require.NoError(t, err)
	require.Equal(t, uint64(50_000_000), minted) // 5e16 at D18 -> 5e7 at D9
	require.True(t, l.UserPending("alice", "atom", types.PendingForMinting).IsZero())
	checkConservation(t, l)
}

func TestMintBoundByWeakestToken(t *testing.T) {
	l := NewLedger([]string{"atom", "usdc"})
	require.NoError(t, l.AddPending("alice", "atom", sdkmath.NewInt(1_000), types.PendingForMinting))
	require.NoError(t, l.AddPending("alice", "usdc", sdkmath.NewInt(10), types.PendingForMinting))

	balances := map[string]sdkmath.Int{
		"atom": sdkmath.NewInt(2_000), // clean 1000: ratio 1.0
		"usdc": sdkmath.NewInt(1_010), // clean 1000: ratio 0.01
	}
	maxShares, err := l.MaxMintableShares("alice", balances, precision())
	require.NoError(t, err)
	// The usdc leg binds at 1%.
	require.Equal(t, sdkmath.NewIntWithDecimal(1, 16).String(), maxShares.String())
}

func TestRedeemWithdrawFlow(t *testing.T) {
	l := NewLedger([]string{"atom", "usdc"})
	balances := map[string]sdkmath.Int{
		"atom": sdkmath.NewInt(10_000),
		"usdc": sdkmath.NewInt(4_000),
	}

	// Redeem 25% of supply.
	shares := sdkmath.NewIntWithDecimal(25, 16)
	out, err := l.RedeemToPending("alice", balances, precision(), shares)
	require.NoError(t, err)
	require.Equal(t, "2500", out["atom"].String())
	require.Equal(t, "1000", out["usdc"].String())
	require.Equal(t, "2500", l.UserPending("alice", "atom", types.PendingForRedeeming).String())
	checkConservation(t, l)

	// Withdraw part, then reclaim the rest.
	require.NoError(t, l.Withdraw("alice", "atom", sdkmath.NewInt(1_500)))
	require.NoError(t, l.Reclaim("alice", "atom", sdkmath.NewInt(1_000), types.PendingForRedeeming))
	require.True(t, l.UserPending("alice", "atom", types.PendingForRedeeming).IsZero())
	checkConservation(t, l)

	// Over-withdrawing is rejected.
	err = l.Withdraw("alice", "usdc", sdkmath.NewInt(1_001))
	require.ErrorIs(t, err, types.ErrInvalidState)
}

func TestRedeemExcludesEarmarkedBalances(t *testing.T) {
	l := NewLedger([]string{"atom"})
	require.NoError(t, l.AddPending("bob", "atom", sdkmath.NewInt(4_000), types.PendingForMinting))

	balances := map[string]sdkmath.Int{"atom": sdkmath.NewInt(10_000)}
	shares := sdkmath.NewIntWithDecimal(5, 17) // 50%
	out, err := l.RedeemToPending("alice", balances, precision(), shares)
	require.NoError(t, err)
	// Half of the 6000 clean units, not of the raw balance.
	require.Equal(t, "3000", out["atom"].String())
}

func TestReclaimBothTracks(t *testing.T) {
	l := NewLedger([]string{"atom"})
	require.NoError(t, l.AddPending("alice", "atom", sdkmath.NewInt(50), types.PendingForMinting))
	require.NoError(t, l.AddPending("alice", "atom", sdkmath.NewInt(70), types.PendingForRedeeming))

	require.NoError(t, l.Reclaim("alice", "atom", sdkmath.NewInt(50), types.PendingForMinting))
	require.NoError(t, l.Reclaim("alice", "atom", sdkmath.NewInt(70), types.PendingForRedeeming))
	require.True(t, l.Folio["atom"].IsZero())
	checkConservation(t, l)
}

func TestReorder(t *testing.T) {
	l := NewLedger([]string{"atom", "usdc", "osmo"})
	got := l.Reorder([]string{"osmo", "foreign2", "atom", "foreign1", "usdc"})
	require.Equal(t, []string{"atom", "usdc", "osmo", "foreign2", "foreign1"}, got)
}

package decimal

import (
	"math"
	"math/big"
	"testing"

	sdkmath "cosmossdk.io/math"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/folio-protocol/folio-core/internal/types"
)

func d18(s string) Decimal {
	v, ok := sdkmath.NewIntFromString(s)
	if !ok {
		panic("bad test constant: " + s)
	}
	return NewFromRaw(v)
}

// refD18 converts a D18 Decimal to a shopspring decimal for reference math.
func refD18(d Decimal) decimal.Decimal {
	return decimal.NewFromBigInt(d.BigInt(), -18)
}

// requireCloseD18 asserts |got - want| <= tol, all in D18 units.
func requireCloseD18(t *testing.T, want decimal.Decimal, got Decimal, tol int64) {
	t.Helper()
	diff := want.Sub(refD18(got)).Abs().Shift(18)
	require.True(t, diff.LessThanOrEqual(decimal.NewFromInt(tol)),
		"want %s got %s (diff %s D18 units, tol %d)", want, refD18(got), diff, tol)
}

func TestScaleConversions(t *testing.T) {
	d := FromTokenAmount(5_000_000_000) // 5.0 at D9
	require.Equal(t, "5000000000000000000", d.Raw().String())
	require.Equal(t, uint64(5_000_000_000), d.ToTokenAmount(Floor))

	p := FromPlain(3)
	require.Equal(t, "3000000000000000000", p.Raw().String())

	// Floor vs ceil on a sub-D9 remainder.
	odd := d18("1000000001500000001")
	require.Equal(t, uint64(1_000_000_001), odd.ToTokenAmount(Floor))
	require.Equal(t, uint64(1_000_000_002), odd.ToTokenAmount(Ceil))
}

func TestToTokenAmountSaturates(t *testing.T) {
	huge, err := FromPlain(math.MaxUint64).Mul(FromPlain(1000))
	require.NoError(t, err)
	require.Equal(t, uint64(math.MaxUint64), huge.ToTokenAmount(Floor))
	require.Equal(t, uint64(math.MaxUint64), huge.ToTokenAmount(Ceil))
}

func TestCheckedArithmetic(t *testing.T) {
	a := FromPlain(7)
	b := FromPlain(3)

	sum, err := a.Add(b)
	require.NoError(t, err)
	require.Equal(t, "10000000000000000000", sum.Raw().String())

	diff, err := a.Sub(b)
	require.NoError(t, err)
	require.Equal(t, "4000000000000000000", diff.Raw().String())

	_, err = b.Sub(a)
	require.ErrorIs(t, err, types.ErrUnderflow)

	_, err = a.Div(Zero())
	require.ErrorIs(t, err, types.ErrDivisionByZero)

	// Mul does not rescale: 7e18 * 3e18 = 21e36.
	prod, err := a.Mul(b)
	require.NoError(t, err)
	require.Equal(t, "21000000000000000000000000000000000000", prod.Raw().String())

	// Products past 256 bits must fail, not panic.
	big256 := Decimal{v: new(big.Int).Lsh(big.NewInt(1), 200)}
	_, err = big256.Mul(big256)
	require.ErrorIs(t, err, types.ErrOverflow)
}

func TestMulDivRoundTrip(t *testing.T) {
	// a.mul(b).div(b) must return a within one rounding unit of the final
	// division (one D18 unit whenever b >= 1).
	cases := []struct {
		a, b string
	}{
		{"1", "1000000000000000000"},
		{"999999999999999999", "1000000000000000000"},
		{"123456789123456789", "3141592653589793238"},
		{"1000000000000000000000000", "7000000000000000001"},
		{"87", "250000000000000000000"},
	}
	one := One()
	for _, tc := range cases {
		a := d18(tc.a)
		b := d18(tc.b)
		x, err := a.MulDiv(b, one, Floor)
		require.NoError(t, err)
		y, err := x.MulDiv(one, b, Floor)
		require.NoError(t, err)
		diff := new(big.Int).Sub(a.BigInt(), y.BigInt())
		require.True(t, diff.Sign() >= 0, "round trip overshot for a=%s b=%s", tc.a, tc.b)
		require.True(t, diff.Cmp(big.NewInt(1)) <= 0,
			"round trip off by %s for a=%s b=%s", diff, tc.a, tc.b)
	}
}

func TestPow(t *testing.T) {
	// 1.0001^10000 ~= e within ~0.01%.
	base := d18("1000100000000000000")
	p, err := base.Pow(10_000)
	require.NoError(t, err)
	ref := refD18(base).Pow(decimal.NewFromInt(10_000))
	// Each squaring step floors at D18, compounding to ~1e-14 relative.
	requireCloseD18(t, ref, p, 1_000_000_000)

	// Anything to the zeroth power is one.
	p, err = d18("123").Pow(0)
	require.NoError(t, err)
	require.Equal(t, 0, p.Cmp(One()))

	// 2^10 at D18.
	p, err = FromPlain(2).Pow(10)
	require.NoError(t, err)
	require.Equal(t, "1024000000000000000000", p.Raw().String())
}

func TestLnAgainstReference(t *testing.T) {
	cases := []string{
		"500000000000000000",     // 0.5
		"900000000000000000",     // 0.9
		"1353352832366126919",    // ~e^0.3025...
		"2000000000000000000",    // 2
		"2718281828459045235",    // e
		"10000000000000000000",   // 10
		"123456000000000000000",  // 123.456
		"1000000000000000000000", // 1000
	}
	for _, c := range cases {
		x := d18(c)
		got, err := x.Ln()
		require.NoError(t, err)
		ref, err := refD18(x).Ln(30)
		require.NoError(t, err)
		// Normalization and series truncation stay well inside 1e5 D18
		// units (1e-13 absolute).
		requireCloseD18(t, ref, got, 100_000)
	}
}

func TestLnSpecialCases(t *testing.T) {
	got, err := One().Ln()
	require.NoError(t, err)
	require.True(t, got.IsZero())

	_, err = Zero().Ln()
	require.ErrorIs(t, err, types.ErrInvalidParameter)
}

func TestExpAgainstReference(t *testing.T) {
	cases := []string{
		"0",
		"1000000000000000",     // 0.001
		"500000000000000000",   // 0.5
		"1000000000000000000",  // 1
		"1151292546497022842",  // ln(10)/2
		"2302585092994045684",  // ln(10)
		"10000000000000000000", // 10
	}
	for _, c := range cases {
		x := d18(c)
		got, err := x.Exp(false)
		require.NoError(t, err)
		ref, err := refD18(x).ExpTaylor(30)
		require.NoError(t, err)
		requireCloseD18(t, ref, got, 100_000)

		gotNeg, err := x.Exp(true)
		require.NoError(t, err)
		refNeg, err := refD18(x).Neg().ExpTaylor(30)
		require.NoError(t, err)
		requireCloseD18(t, refNeg, gotNeg, 100_000)
	}
}

func TestNthRootBisection(t *testing.T) {
	// The bisection branch has a fixed 15-step budget: precision is bounded
	// by (high-low)/2^15 of the initial bracket.
	cases := []struct {
		x   string
		n   uint64
		tol int64
	}{
		{"4000000000000000000", 2, 100_000_000_000_000},  // sqrt(4)=2
		{"2000000000000000000", 2, 40_000_000_000_000},   // sqrt(2)
		{"27000000000000000000", 3, 800_000_000_000_000}, // cbrt(27)=3
		{"900000000000000000", 10, 4_000_000_000_000},    // 0.9^(1/10)
	}
	for _, tc := range cases {
		x := d18(tc.x)
		got, err := x.NthRoot(tc.n)
		require.NoError(t, err)

		lnRef, err := refD18(x).Ln(30)
		require.NoError(t, err)
		ref, err := lnRef.Div(decimal.NewFromInt(int64(tc.n))).ExpTaylor(30)
		require.NoError(t, err)
		requireCloseD18(t, ref, got, tc.tol)
	}
}

func TestNthRootTaylorLargeN(t *testing.T) {
	// Scenario A's per-second rate: 1 - 0.9^(1/31536000). The expansion is
	// accurate to ~0.03% on the derived rate.
	root, err := d18("900000000000000000").NthRoot(31_536_000)
	require.NoError(t, err)
	rate, err := One().Sub(root)
	require.NoError(t, err)

	expected := decimal.New(3_340_959_957, 0)
	diff := expected.Sub(decimal.NewFromBigInt(rate.BigInt(), 0)).Abs()
	maxDiff := expected.Mul(decimal.NewFromFloat(0.0005))
	require.True(t, diff.LessThanOrEqual(maxDiff),
		"per-second rate %s too far from %s", rate.Raw(), expected)
}

func TestNthRootIdentityAndErrors(t *testing.T) {
	x := d18("123456789000000000000")
	got, err := x.NthRoot(1)
	require.NoError(t, err)
	require.Equal(t, 0, got.Cmp(x))

	got, err = One().NthRoot(999)
	require.NoError(t, err)
	require.Equal(t, 0, got.Cmp(One()))

	_, err = x.NthRoot(0)
	require.ErrorIs(t, err, types.ErrInvalidParameter)
}

func TestLn2Constant(t *testing.T) {
	got, err := FromPlain(2).Ln()
	require.NoError(t, err)
	diff := new(big.Int).Sub(got.BigInt(), Ln2().BigInt())
	require.True(t, diff.CmpAbs(big.NewInt(10_000)) <= 0,
		"computed ln(2) %s drifts from constant %s", got.Raw(), Ln2().Raw())
}

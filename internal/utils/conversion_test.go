package utils

import (
	"math"
	"testing"

	sdkmath "cosmossdk.io/math"
	"github.com/stretchr/testify/require"
)

func TestScaledToFloat64(t *testing.T) {
	v, err := D18ToFloat64(sdkmath.NewIntWithDecimal(25, 17)) // 2.5
	require.NoError(t, err)
	require.InDelta(t, 2.5, v, 1e-12)

	v, err = D9ToFloat64(sdkmath.NewInt(1_500_000_000))
	require.NoError(t, err)
	require.InDelta(t, 1.5, v, 1e-12)

	_, err = ScaledToFloat64(sdkmath.OneInt(), 19)
	require.ErrorIs(t, err, ErrInvalidPrecision)

	_, err = ScaledToFloat64(sdkmath.Int{}, 18)
	require.ErrorIs(t, err, ErrAmountNil)

	_, err = ScaledToFloat64(sdkmath.NewInt(-1), 18)
	require.ErrorIs(t, err, ErrAmountNegative)
}

func TestFloat64ToD18(t *testing.T) {
	v, err := Float64ToD18(0.02)
	require.NoError(t, err)
	require.Equal(t, sdkmath.NewIntWithDecimal(2, 16), v)

	v, err = Float64ToD18(0)
	require.NoError(t, err)
	require.True(t, v.IsZero())

	_, err = Float64ToD18(-0.1)
	require.ErrorIs(t, err, ErrAmountNegative)

	_, err = Float64ToD18(math.NaN())
	require.ErrorIs(t, err, ErrNotFinite)
	_, err = Float64ToD18(math.Inf(1))
	require.ErrorIs(t, err, ErrNotFinite)
}

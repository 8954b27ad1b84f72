/*

This file contains the fixed-point decimal engine every other core component
is built on. Values are unscaled integers, conventionally at D18 (1e18)
scale; native token amounts are D9 (1e9). Conversions between the two scales
are explicit, never implicit, and mul/div do not auto-rescale: callers track
the resulting scale themselves.

All checked operations bound intermediates to 256 bits and fail with
ErrOverflow / ErrUnderflow instead of panicking. The transcendental helpers
(pow, ln, exp, nth-root) are pure and side-effect free; their rounding
behavior is part of the protocol's economics and must not be changed.

*/

package decimal

import (
	"math"
	"math/big"

	errorsmod "cosmossdk.io/errors"
	sdkmath "cosmossdk.io/math"

	"github.com/folio-protocol/folio-core/internal/types"
)

// Rounding selects the direction for lossy scale conversions.
type Rounding int

const (
	Floor Rounding = iota
	Ceil
)

const (
	// maxBitLen bounds every intermediate to what sdkmath.Int can hold.
	maxBitLen = 256

	// seriesMaxTerms caps the ln/exp series length.
	seriesMaxTerms = 100

	// rootTaylorThreshold switches nth-root from bisection to the 3-term
	// Taylor expansion around 1 for very large n.
	rootTaylorThreshold = 1_000_000

	// rootBisectionSteps is the fixed iteration budget of the bisection
	// branch.
	rootBisectionSteps = 15
)

var (
	oneD18 = new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil)
	oneD9  = new(big.Int).Exp(big.NewInt(10), big.NewInt(9), nil)
	oneD36 = new(big.Int).Exp(big.NewInt(10), big.NewInt(36), nil)

	// Euler's number at D18.
	eD18 = big.NewInt(2_718_281_828_459_045_235)

	// ln(2) at D18, used for reward half-life conversion.
	ln2D18 = big.NewInt(693_147_180_559_945_309)

	maxUint64 = new(big.Int).SetUint64(math.MaxUint64)

	two = big.NewInt(2)
)

// Decimal is an unscaled integer wide enough to survive intermediate
// products. The conventional interpretation is a D18-scaled quantity.
type Decimal struct {
	v *big.Int
}

// Zero returns the zero value.
func Zero() Decimal {
	return Decimal{v: new(big.Int)}
}

// One returns 1.0 at D18.
func One() Decimal {
	return Decimal{v: new(big.Int).Set(oneD18)}
}

// Ln2 returns ln(2) at D18.
func Ln2() Decimal {
	return Decimal{v: new(big.Int).Set(ln2D18)}
}

// E returns Euler's number at D18.
func E() Decimal {
	return Decimal{v: new(big.Int).Set(eD18)}
}

// NewFromRaw wraps an already-scaled value.
func NewFromRaw(v sdkmath.Int) Decimal {
	return Decimal{v: v.BigInt()} // BigInt returns a copy
}

// FromPlain scales a plain integer quantity to D18.
func FromPlain(n uint64) Decimal {
	return Decimal{v: new(big.Int).Mul(new(big.Int).SetUint64(n), oneD18)}
}

// FromTokenAmount scales a native D9 token amount to D18.
func FromTokenAmount(n uint64) Decimal {
	return Decimal{v: new(big.Int).Mul(new(big.Int).SetUint64(n), oneD9)}
}

// Raw returns the unscaled value as an sdkmath.Int. It panics only if the
// value escaped the 256-bit bound, which checked ops prevent.
func (d Decimal) Raw() sdkmath.Int {
	return sdkmath.NewIntFromBigInt(d.v)
}

// BigInt returns a copy of the unscaled value.
func (d Decimal) BigInt() *big.Int {
	return new(big.Int).Set(d.v)
}

// IsZero reports whether the value is exactly zero.
func (d Decimal) IsZero() bool {
	return d.v.Sign() == 0
}

// Cmp compares two decimals at the same scale.
func (d Decimal) Cmp(o Decimal) int {
	return d.v.Cmp(o.v)
}

// ToTokenAmount converts D18 back to a native D9 amount with the requested
// rounding, saturating at the native maximum instead of overflowing.
func (d Decimal) ToTokenAmount(r Rounding) uint64 {
	if d.v.Sign() <= 0 {
		return 0
	}
	q, rem := new(big.Int).QuoRem(d.v, oneD9, new(big.Int))
	if r == Ceil && rem.Sign() != 0 {
		q.Add(q, big.NewInt(1))
	}
	if q.Cmp(maxUint64) > 0 {
		return math.MaxUint64
	}
	return q.Uint64()
}

func checked(v *big.Int) (Decimal, error) {
	if v.BitLen() > maxBitLen {
		return Decimal{}, types.ErrOverflow
	}
	return Decimal{v: v}, nil
}

// Add returns d + o, failing on overflow.
func (d Decimal) Add(o Decimal) (Decimal, error) {
	return checked(new(big.Int).Add(d.v, o.v))
}

// Sub returns d - o, failing with ErrUnderflow if the result would be
// negative.
func (d Decimal) Sub(o Decimal) (Decimal, error) {
	v := new(big.Int).Sub(d.v, o.v)
	if v.Sign() < 0 {
		return Decimal{}, types.ErrUnderflow
	}
	return Decimal{v: v}, nil
}

// Mul returns the raw product without rescaling; the caller tracks the
// resulting scale.
func (d Decimal) Mul(o Decimal) (Decimal, error) {
	return checked(new(big.Int).Mul(d.v, o.v))
}

// Div returns the truncated quotient without rescaling.
func (d Decimal) Div(o Decimal) (Decimal, error) {
	if o.v.Sign() == 0 {
		return Decimal{}, types.ErrDivisionByZero
	}
	return Decimal{v: new(big.Int).Quo(d.v, o.v)}, nil
}

// MulDiv returns d * m / div with the requested rounding on the final
// division. This is the workhorse for D18 x D18 -> D18 operations.
func (d Decimal) MulDiv(m, div Decimal, r Rounding) (Decimal, error) {
	if div.v.Sign() == 0 {
		return Decimal{}, types.ErrDivisionByZero
	}
	p := new(big.Int).Mul(d.v, m.v)
	q, rem := new(big.Int).QuoRem(p, div.v, new(big.Int))
	if r == Ceil && rem.Sign() != 0 {
		q.Add(q, big.NewInt(1))
	}
	return checked(q)
}

// Pow raises a D18-scaled base to an integer exponent by binary
// exponentiation, keeping the intermediate at D18 scale between steps.
func (d Decimal) Pow(exp uint64) (Decimal, error) {
	result := new(big.Int).Set(oneD18)
	base := new(big.Int).Set(d.v)
	for exp > 0 {
		if exp&1 == 1 {
			result.Mul(result, base)
			result.Quo(result, oneD18)
			if result.BitLen() > maxBitLen {
				return Decimal{}, types.ErrOverflow
			}
		}
		exp >>= 1
		if exp == 0 {
			break
		}
		base.Mul(base, base)
		base.Quo(base, oneD18)
		if base.BitLen() > maxBitLen {
			return Decimal{}, types.ErrOverflow
		}
	}
	return Decimal{v: result}, nil
}

// NthRoot computes the n-th root of a D18-scaled value.
//
// For n beyond rootTaylorThreshold the root is so close to 1 that a 3-term
// Taylor expansion of (1+x)^(1/n) around 1 is both faster and numerically
// stabler than bisection. Below the threshold a fixed 15-step bisection
// converges on mid^n == d.
func (d Decimal) NthRoot(n uint64) (Decimal, error) {
	if n == 0 {
		return Decimal{}, errorsmod.Wrap(types.ErrInvalidParameter, "zeroth root")
	}
	if n == 1 || d.v.Cmp(oneD18) == 0 {
		return Decimal{v: new(big.Int).Set(d.v)}, nil
	}
	if d.v.Sign() < 0 {
		return Decimal{}, errorsmod.Wrap(types.ErrInvalidParameter, "root of negative value")
	}

	if n > rootTaylorThreshold {
		return d.nthRootTaylor(n)
	}
	return d.nthRootBisection(n)
}

// nthRootTaylor evaluates the three correction terms of the binomial series
// of (1+x)^(1/n) around 1, with x = d - 1 at D18:
//
//	1 + x/n + (1/n)((1/n)-1) x^2/2 + (1/n)((1/n)-1)((1/n)-2) x^3/6
func (d Decimal) nthRootTaylor(n uint64) (Decimal, error) {
	bn := new(big.Int).SetUint64(n)
	one := big.NewInt(1)
	x := new(big.Int).Sub(d.v, oneD18)

	// x / n, truncated toward zero.
	t1 := new(big.Int).Quo(x, bn)

	// x^2 * (1 - n) / (2 * n^2), at D18.
	x2 := new(big.Int).Mul(x, x)
	x2.Quo(x2, oneD18)
	oneSubN := new(big.Int).Sub(one, bn)
	num := new(big.Int).Mul(x2, oneSubN)
	den := new(big.Int).Mul(bn, bn)
	den.Mul(den, two)
	t2 := new(big.Int).Quo(num, den)

	// x^3 * (1 - n) * (1 - 2n) / (6 * n^3), at D18.
	x3 := new(big.Int).Mul(x2, x)
	x3.Quo(x3, oneD18)
	oneSub2N := new(big.Int).Sub(one, new(big.Int).Mul(two, bn))
	num = new(big.Int).Mul(x3, oneSubN)
	num.Mul(num, oneSub2N)
	den = new(big.Int).Mul(bn, bn)
	den.Mul(den, bn)
	den.Mul(den, big.NewInt(6))
	t3 := new(big.Int).Quo(num, den)

	root := new(big.Int).Set(oneD18)
	root.Add(root, t1)
	root.Add(root, t2)
	root.Add(root, t3)
	if root.Sign() < 0 {
		return Decimal{}, types.ErrUnderflow
	}
	return checked(root)
}

func (d Decimal) nthRootBisection(n uint64) (Decimal, error) {
	low := new(big.Int)
	high := new(big.Int)
	if d.v.Cmp(oneD18) < 0 {
		low.Set(d.v)
		high.Set(oneD18)
	} else {
		low.Set(oneD18)
		high.Set(d.v)
	}

	mid := new(big.Int)
	for i := 0; i < rootBisectionSteps; i++ {
		mid.Add(low, high)
		mid.Quo(mid, two)
		p, err := (Decimal{v: mid}).Pow(n)
		var cmp int
		if err != nil {
			// Overflow during mid^n means mid is far too large.
			cmp = 1
		} else {
			cmp = p.v.Cmp(d.v)
		}
		switch {
		case cmp == 0:
			return Decimal{v: new(big.Int).Set(mid)}, nil
		case cmp < 0:
			low.Set(mid)
		default:
			high.Set(mid)
		}
	}
	mid.Add(low, high)
	mid.Quo(mid, two)
	return Decimal{v: mid}, nil
}

// Ln computes the natural logarithm of a D18-scaled value.
//
// The input is normalized into [1, e) by repeated division or multiplication
// by e while tracking the integer power offset, then an atanh-style series on
// (x-1)/(x+1) runs until a term falls below one D18 unit or the term budget
// is spent. ln(1) is exactly zero; ln of zero or a negative value is
// rejected.
func (d Decimal) Ln() (Decimal, error) {
	if d.v.Cmp(oneD18) == 0 {
		return Zero(), nil
	}
	if d.v.Sign() <= 0 {
		return Decimal{}, errorsmod.Wrap(types.ErrInvalidParameter, "ln of non-positive value")
	}

	x := new(big.Int).Set(d.v)
	power := int64(0)
	for x.Cmp(eD18) >= 0 {
		x.Mul(x, oneD18)
		x.Quo(x, eD18)
		power++
	}
	for x.Cmp(oneD18) < 0 {
		x.Mul(x, eD18)
		x.Quo(x, oneD18)
		power--
	}

	// z = (x-1)/(x+1) at D18; ln(x) = 2 * (z + z^3/3 + z^5/5 + ...).
	num := new(big.Int).Sub(x, oneD18)
	den := new(big.Int).Add(x, oneD18)
	z := new(big.Int).Mul(num, oneD18)
	z.Quo(z, den)

	z2 := new(big.Int).Mul(z, z)
	z2.Quo(z2, oneD18)

	sum := new(big.Int).Set(z)
	term := new(big.Int).Set(z)
	contrib := new(big.Int)
	for i := int64(3); i < 2*seriesMaxTerms; i += 2 {
		term.Mul(term, z2)
		term.Quo(term, oneD18)
		if term.Sign() == 0 {
			break
		}
		contrib.Quo(term, big.NewInt(i))
		if contrib.Sign() == 0 {
			break
		}
		sum.Add(sum, contrib)
	}
	sum.Mul(sum, two)

	// Add back power * ln(e) == power * D18.
	offset := new(big.Int).Mul(big.NewInt(power), oneD18)
	sum.Add(sum, offset)
	return checked(sum)
}

// Exp computes e^d for a non-negative D18-scaled exponent via the Taylor
// series sum x^n / n!. With negate set it returns the reciprocal, yielding
// e^-d.
func (d Decimal) Exp(negate bool) (Decimal, error) {
	if d.v.Sign() < 0 {
		return Decimal{}, errorsmod.Wrap(types.ErrInvalidParameter, "negative exponent; use negate")
	}

	sum := new(big.Int).Set(oneD18)
	term := new(big.Int).Set(oneD18)
	for n := int64(1); n < seriesMaxTerms; n++ {
		term.Mul(term, d.v)
		term.Quo(term, oneD18)
		term.Quo(term, big.NewInt(n))
		if term.Sign() == 0 {
			break
		}
		sum.Add(sum, term)
		if sum.BitLen() > maxBitLen {
			return Decimal{}, types.ErrOverflow
		}
	}

	if negate {
		inv := new(big.Int).Quo(oneD36, sum)
		return Decimal{v: inv}, nil
	}
	return Decimal{v: sum}, nil
}

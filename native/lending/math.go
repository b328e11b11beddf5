package lending

import (
	"github.com/holiman/uint256"
)

// All monetary ratios and rates are WAD-scaled (1e18) values carried in
// uint256.Int but bounded to the u128 range of the persisted record format.
// Every operation is checked: overflowing the u128 domain or dividing by zero
// fails the whole enclosing operation with ErrMathOverflow. Division always
// truncates, which systematically rounds value calculations in the protocol's
// favour.

var (
	wad     = uint256.NewInt(1_000_000_000_000_000_000)
	maxU128 = func() *uint256.Int {
		z := new(uint256.Int).SetAllOne()
		return z.Rsh(z, 128)
	}()
	two = uint256.NewInt(2)
)

func checkU128(z *uint256.Int) (*uint256.Int, error) {
	if z.Cmp(maxU128) > 0 {
		return nil, ErrMathOverflow
	}
	return z, nil
}

func u128Add(a, b *uint256.Int) (*uint256.Int, error) {
	z, overflow := new(uint256.Int).AddOverflow(a, b)
	if overflow {
		return nil, ErrMathOverflow
	}
	return checkU128(z)
}

func u128Sub(a, b *uint256.Int) (*uint256.Int, error) {
	if a.Lt(b) {
		return nil, ErrMathOverflow
	}
	return new(uint256.Int).Sub(a, b), nil
}

func u128Mul(a, b *uint256.Int) (*uint256.Int, error) {
	z, overflow := new(uint256.Int).MulOverflow(a, b)
	if overflow {
		return nil, ErrMathOverflow
	}
	return checkU128(z)
}

func u128Div(a, b *uint256.Int) (*uint256.Int, error) {
	if b.IsZero() {
		return nil, ErrMathOverflow
	}
	return new(uint256.Int).Div(a, b), nil
}

// mulDiv computes a*b/den with the intermediate product held in 256 bits, so
// two in-range u128 operands can never overflow before the division.
func mulDiv(a, b, den *uint256.Int) (*uint256.Int, error) {
	if den.IsZero() {
		return nil, ErrMathOverflow
	}
	z, overflow := new(uint256.Int).MulOverflow(a, b)
	if overflow {
		return nil, ErrMathOverflow
	}
	z.Div(z, den)
	return checkU128(z)
}

// wadMul computes a*b/WAD, flooring.
func wadMul(a, b *uint256.Int) (*uint256.Int, error) {
	return mulDiv(a, b, wad)
}

// wadDiv computes a*WAD/b, flooring.
func wadDiv(a, b *uint256.Int) (*uint256.Int, error) {
	return mulDiv(a, wad, b)
}

// wadsFromTokens lifts a raw token amount into WAD units. A u64 amount times
// 1e18 always fits in u128.
func wadsFromTokens(amount uint64) *uint256.Int {
	z := uint256.NewInt(amount)
	return z.Mul(z, wad)
}

// tokensFromWadsFloor truncates a WAD amount back to whole tokens.
func tokensFromWadsFloor(wads *uint256.Int) (uint64, error) {
	z := new(uint256.Int).Div(wads, wad)
	if !z.IsUint64() {
		return 0, ErrMathOverflow
	}
	return z.Uint64(), nil
}

// tokensFromWadsCeil rounds a WAD amount up to whole tokens. Used when
// settling full debts so the borrower can never underpay by a fractional wad.
func tokensFromWadsCeil(wads *uint256.Int) (uint64, error) {
	z := new(uint256.Int).Add(wads, new(uint256.Int).Sub(wad, uint256.NewInt(1)))
	if z.Lt(wads) {
		return 0, ErrMathOverflow
	}
	z.Div(z, wad)
	if !z.IsUint64() {
		return 0, ErrMathOverflow
	}
	return z.Uint64(), nil
}

// tenPow returns 10^exp for mint-decimal normalization.
func tenPow(exp uint8) (*uint256.Int, error) {
	z := new(uint256.Int).Exp(uint256.NewInt(10), uint256.NewInt(uint64(exp)))
	return checkU128(z)
}

// pctOf computes value*pct/100.
func pctOf(value *uint256.Int, pct uint8) (*uint256.Int, error) {
	return mulDiv(value, uint256.NewInt(uint64(pct)), uint256.NewInt(100))
}

// mulDivU64 computes a*b/den for token-amount operands.
func mulDivU64(a *uint256.Int, b, den uint64) (*uint256.Int, error) {
	return mulDiv(a, uint256.NewInt(b), uint256.NewInt(den))
}

// toU64 narrows a u128 value to a token amount.
func toU64(z *uint256.Int) (uint64, error) {
	if !z.IsUint64() {
		return 0, ErrMathOverflow
	}
	return z.Uint64(), nil
}

// minU64 avoids pulling in generics helpers for a two-value compare.
func minU64(a, b uint64) uint64 {
	if a < b {
		return a
	}
	return b
}

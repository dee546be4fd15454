package common

import (
	"errors"
	"math"

	"github.com/holiman/uint256"
)

// ErrOverflow is returned when an unsigned counter would wrap.
var ErrOverflow = errors.New("arithmetic overflow")

// AddUint64 returns a+b or ErrOverflow.
func AddUint64(a, b uint64) (uint64, error) {
	if a > math.MaxUint64-b {
		return 0, ErrOverflow
	}
	return a + b, nil
}

// MulDiv computes floor(a*b/d) in 256-bit precision. The result must fit in a
// uint64. d must be non-zero.
func MulDiv(a, b, d uint64) (uint64, error) {
	if d == 0 {
		return 0, errors.New("division by zero")
	}
	product := new(uint256.Int).Mul(uint256.NewInt(a), uint256.NewInt(b))
	product.Div(product, uint256.NewInt(d))
	if !product.IsUint64() {
		return 0, ErrOverflow
	}
	return product.Uint64(), nil
}

// MulDiv3 computes floor(a*b*c/d) in 256-bit precision.
func MulDiv3(a, b, c, d uint64) (uint64, error) {
	if d == 0 {
		return 0, errors.New("division by zero")
	}
	product := new(uint256.Int).Mul(uint256.NewInt(a), uint256.NewInt(b))
	product.Mul(product, uint256.NewInt(c))
	product.Div(product, uint256.NewInt(d))
	if !product.IsUint64() {
		return 0, ErrOverflow
	}
	return product.Uint64(), nil
}

// SaturatingSub returns a-b floored at zero.
func SaturatingSub(a, b uint64) uint64 {
	if b >= a {
		return 0
	}
	return a - b
}

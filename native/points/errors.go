package points

import "errors"

var (
	ErrNilState                     = errors.New("points: state not configured")
	ErrOverflow                     = errors.New("points: balance overflow")
	ErrInsufficientAvailableBalance = errors.New("points: insufficient available balance")
	ErrInsufficientLockedBalance    = errors.New("points: insufficient locked balance")
	ErrRepaymentExceedsDebt         = errors.New("points: repayment exceeds debt")
)

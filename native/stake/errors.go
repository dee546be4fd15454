package stake

import "errors"

var (
	ErrNilState         = errors.New("stake: state not configured")
	ErrBackendMissing   = errors.New("stake: native backend not configured")
	ErrInvalidAmount    = errors.New("stake: amount must be positive")
	ErrInvalidDuration  = errors.New("stake: duration below minimum")
	ErrOverflow         = errors.New("stake: overflow")
	ErrPositionNotFound = errors.New("stake: position not found")
	ErrNotMature        = errors.New("stake: position not mature")
	ErrExpired          = errors.New("stake: grace window elapsed")
	ErrNotForfeitable   = errors.New("stake: position not forfeitable")
	ErrEncumbered       = errors.New("stake: position encumbered")
	ErrNotEncumbered    = errors.New("stake: position not encumbered")
)

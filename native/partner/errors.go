package partner

import "errors"

var (
	ErrNilState              = errors.New("partner: state not configured")
	ErrInvalidAmount         = errors.New("partner: amount must be positive")
	ErrOverflow              = errors.New("partner: arithmetic overflow")
	ErrCapabilityExists      = errors.New("partner: capability already issued")
	ErrCapabilityNotFound    = errors.New("partner: capability not found")
	ErrPriceServiceMissing   = errors.New("partner: price service not configured")
	ErrReinvestAssetMissing  = errors.New("partner: reinvest asset not configured")
	ErrCustodianMissing      = errors.New("partner: custodian not configured")
	ErrDebitMissing          = errors.New("partner: revenue debit not configured")
	ErrAccountingMismatch    = errors.New("partner: effective value does not match collateral records")
	ErrUnsupportedWithdrawal = errors.New("partner: collateral class cannot be withdrawn partially")
)

// Quota errors.
var (
	ErrCapabilityPaused       = errors.New("partner: capability paused")
	ErrInsufficientDailyQuota = errors.New("partner: insufficient daily quota")
	ErrLifetimeQuotaExceeded  = errors.New("partner: lifetime quota exceeded")
)

// Collateral errors.
var (
	ErrUnknownCollateralClass              = errors.New("partner: unknown collateral class")
	ErrCollateralNotFound                  = errors.New("partner: collateral record not found")
	ErrInsufficientCollateralForWithdrawal = errors.New("partner: insufficient collateral for withdrawal")
	ErrInvalidFloorValue                   = errors.New("partner: invalid nft floor value")
	ErrDuplicateNFTCollateral              = errors.New("partner: nft collateral already registered")
	ErrInvalidAsset                        = errors.New("partner: asset identifier required")
)

// Withdrawal errors.
var (
	ErrWithdrawalPaused       = errors.New("partner: withdrawals paused")
	ErrWithdrawalExceedsLimit = errors.New("partner: withdrawal exceeds limit")
	ErrPointsTooYoung         = errors.New("partner: minted points have not aged")
)

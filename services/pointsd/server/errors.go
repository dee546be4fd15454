package server

import (
	"errors"
	"net/http"

	"pointsvault/core/pricing"
	"pointsvault/gateway/middleware"
	nativecommon "pointsvault/native/common"
	"pointsvault/native/partner"
	"pointsvault/native/points"
	"pointsvault/native/stake"
	"pointsvault/services/pointsd/custody"
)

var errMissingAuthority = errors.New("authentication required")

type errorMapping struct {
	err    error
	status int
	code   string
}

// errorTable is matched in order with errors.Is.
var errorTable = []errorMapping{
	{errMissingAuthority, http.StatusUnauthorized, "unauthenticated"},
	{nativecommon.ErrUnauthorized, http.StatusForbidden, "forbidden"},
	{nativecommon.ErrModulePaused, http.StatusServiceUnavailable, "module_paused"},

	{partner.ErrCapabilityNotFound, http.StatusNotFound, "capability_not_found"},
	{partner.ErrCollateralNotFound, http.StatusNotFound, "collateral_not_found"},
	{stake.ErrPositionNotFound, http.StatusNotFound, "position_not_found"},
	{custody.ErrNotFound, http.StatusNotFound, "receipt_not_found"},

	{points.ErrInsufficientAvailableBalance, http.StatusConflict, "insufficient_available_balance"},
	{points.ErrInsufficientLockedBalance, http.StatusConflict, "insufficient_locked_balance"},
	{points.ErrRepaymentExceedsDebt, http.StatusConflict, "repayment_exceeds_debt"},
	{partner.ErrCapabilityExists, http.StatusConflict, "capability_exists"},
	{partner.ErrCapabilityPaused, http.StatusConflict, "capability_paused"},
	{partner.ErrInsufficientDailyQuota, http.StatusConflict, "insufficient_daily_quota"},
	{partner.ErrLifetimeQuotaExceeded, http.StatusConflict, "lifetime_quota_exceeded"},
	{partner.ErrDuplicateNFTCollateral, http.StatusConflict, "duplicate_nft_collateral"},
	{partner.ErrInsufficientCollateralForWithdrawal, http.StatusConflict, "insufficient_collateral"},
	{partner.ErrWithdrawalPaused, http.StatusConflict, "withdrawal_paused"},
	{partner.ErrWithdrawalExceedsLimit, http.StatusConflict, "withdrawal_exceeds_limit"},
	{partner.ErrPointsTooYoung, http.StatusConflict, "points_too_young"},
	{stake.ErrNotMature, http.StatusConflict, "not_mature"},
	{stake.ErrExpired, http.StatusConflict, "position_expired"},
	{stake.ErrNotForfeitable, http.StatusConflict, "not_forfeitable"},
	{stake.ErrEncumbered, http.StatusConflict, "encumbered"},
	{stake.ErrNotEncumbered, http.StatusConflict, "not_encumbered"},
	{custody.ErrReceiptClosed, http.StatusConflict, "receipt_closed"},
	{custody.ErrReceiptKind, http.StatusConflict, "receipt_kind"},

	{partner.ErrInvalidAmount, http.StatusUnprocessableEntity, "invalid_amount"},
	{stake.ErrInvalidAmount, http.StatusUnprocessableEntity, "invalid_amount"},
	{custody.ErrInvalidAmount, http.StatusUnprocessableEntity, "invalid_amount"},
	{stake.ErrInvalidDuration, http.StatusUnprocessableEntity, "invalid_duration"},
	{partner.ErrInvalidAsset, http.StatusUnprocessableEntity, "invalid_asset"},
	{partner.ErrInvalidFloorValue, http.StatusUnprocessableEntity, "invalid_floor_value"},
	{partner.ErrUnknownCollateralClass, http.StatusUnprocessableEntity, "unknown_collateral_class"},
	{partner.ErrUnsupportedWithdrawal, http.StatusUnprocessableEntity, "unsupported_withdrawal"},
	{points.ErrOverflow, http.StatusUnprocessableEntity, "overflow"},
	{partner.ErrOverflow, http.StatusUnprocessableEntity, "overflow"},
	{stake.ErrOverflow, http.StatusUnprocessableEntity, "overflow"},
	{nativecommon.ErrOverflow, http.StatusUnprocessableEntity, "overflow"},
	{pricing.ErrInvalidQuote, http.StatusUnprocessableEntity, "invalid_quote"},
	{pricing.ErrDeviantPrice, http.StatusUnprocessableEntity, "deviant_price"},
	{pricing.ErrPriceOverflow, http.StatusUnprocessableEntity, "overflow"},

	{pricing.ErrUnknownAsset, http.StatusServiceUnavailable, "price_unavailable"},
	{pricing.ErrStalePrice, http.StatusServiceUnavailable, "stale_price"},
	{partner.ErrPriceServiceMissing, http.StatusServiceUnavailable, "price_unavailable"},
	{stake.ErrBackendMissing, http.StatusServiceUnavailable, "backend_unavailable"},
	{partner.ErrCustodianMissing, http.StatusServiceUnavailable, "backend_unavailable"},
}

// badRequest marks input the handler rejected before reaching the node.
type badRequest struct{ msg string }

func (e badRequest) Error() string { return e.msg }

func (s *Server) writeError(w http.ResponseWriter, err error) {
	var bad badRequest
	if errors.As(err, &bad) {
		middleware.WriteError(w, http.StatusBadRequest, "bad_request", bad.msg)
		return
	}
	for _, m := range errorTable {
		if errors.Is(err, m.err) {
			middleware.WriteError(w, m.status, m.code, err.Error())
			return
		}
	}
	s.logger.Error("unmapped error", "error", err)
	middleware.WriteError(w, http.StatusInternalServerError, "internal", "internal error")
}

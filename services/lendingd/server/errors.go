package server

import (
	"errors"
	"net/http"

	"lendchain/native/common"
	"lendchain/native/lending"
)

// httpStatus maps engine errors onto API status codes. Staleness and economic
// rejections are client-correctable, so they surface as 4xx with the engine's
// message intact.
func httpStatus(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, lending.ErrMarketNotFound),
		errors.Is(err, lending.ErrReserveNotFound),
		errors.Is(err, lending.ErrObligationNotFound),
		errors.Is(err, lending.ErrPositionNotFound):
		return http.StatusNotFound
	case errors.Is(err, lending.ErrMarketExists),
		errors.Is(err, lending.ErrReserveExists),
		errors.Is(err, lending.ErrObligationExists):
		return http.StatusConflict
	case errors.Is(err, lending.ErrInvalidOwner),
		errors.Is(err, lending.ErrInvalidNewOwner):
		return http.StatusForbidden
	case errors.Is(err, lending.ErrReserveStale),
		errors.Is(err, lending.ErrObligationStale),
		errors.Is(err, lending.ErrOraclePriceStale):
		return http.StatusPreconditionFailed
	case errors.Is(err, common.ErrModulePaused):
		return http.StatusServiceUnavailable
	case errors.Is(err, lending.ErrNilState):
		return http.StatusInternalServerError
	case errors.Is(err, lending.ErrMathOverflow):
		return http.StatusUnprocessableEntity
	default:
		// The remaining taxonomy (validation, economic, oracle config) is a
		// bad request the caller can adjust and retry.
		return http.StatusBadRequest
	}
}

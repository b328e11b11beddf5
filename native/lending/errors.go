package lending

import "errors"

// Error taxonomy. Validation and economic failures are rejected before any
// mutation; arithmetic failures abort the whole operation; staleness failures
// are never auto-corrected by the core, the caller refreshes and retries.
var (
	ErrMathOverflow = errors.New("lending: math overflow")

	ErrNilState             = errors.New("lending: state not configured")
	ErrInvalidAmount        = errors.New("lending: amount must be positive")
	ErrInvalidConfig        = errors.New("lending: invalid reserve configuration")
	ErrInvalidOracle        = errors.New("lending: invalid oracle configuration")
	ErrInvalidMarket        = errors.New("lending: invalid lending market")
	ErrInvalidOwner         = errors.New("lending: caller is not the owner")
	ErrSameOwner            = errors.New("lending: new owner must differ from current owner")
	ErrInvalidNewOwner      = errors.New("lending: new owner cannot be the zero address")
	ErrInvalidQuoteCurrency = errors.New("lending: invalid quote currency")

	ErrMarketExists       = errors.New("lending: market already initialised")
	ErrMarketNotFound     = errors.New("lending: market not initialised")
	ErrReserveExists      = errors.New("lending: reserve already initialised")
	ErrReserveNotFound    = errors.New("lending: reserve not initialised")
	ErrObligationExists   = errors.New("lending: obligation already initialised")
	ErrObligationNotFound = errors.New("lending: obligation not initialised")

	ErrReserveStale    = errors.New("lending: reserve is stale and must be refreshed")
	ErrObligationStale = errors.New("lending: obligation is stale and must be refreshed")

	ErrInsufficientLiquidity = errors.New("lending: insufficient liquidity")
	ErrInsufficientBalance   = errors.New("lending: insufficient balance")

	ErrObligationReserveLimit    = errors.New("lending: obligation cannot hold more than 10 positions")
	ErrObligationDepositsEmpty   = errors.New("lending: obligation has no deposits")
	ErrObligationDepositsZero    = errors.New("lending: obligation deposits have zero value")
	ErrObligationLiquidityEmpty  = errors.New("lending: obligation borrow position is empty")
	ErrObligationCollateralEmpty = errors.New("lending: obligation collateral position is empty")
	ErrObligationHealthy         = errors.New("lending: obligation is healthy and cannot be liquidated")
	ErrObligationUnhealthy       = errors.New("lending: obligation is unhealthy")

	ErrPositionNotFound       = errors.New("lending: no position for reserve")
	ErrInvalidObligationIndex = errors.New("lending: invalid obligation position index")
	ErrInvalidObligationData  = errors.New("lending: corrupt obligation position data")
	ErrInvalidReserveCount    = errors.New("lending: reserve list does not match obligation positions")
	ErrReserveMismatch        = errors.New("lending: reserve does not match obligation position")

	ErrBorrowTooLarge      = errors.New("lending: borrow value exceeds remaining capacity")
	ErrBorrowTooSmall      = errors.New("lending: borrow amount too small to receive anything")
	ErrRepayTooSmall       = errors.New("lending: repay amount too small")
	ErrWithdrawTooLarge    = errors.New("lending: withdraw would leave the obligation undercollateralised")
	ErrWithdrawTooSmall    = errors.New("lending: withdraw amount resolves to zero")
	ErrLiquidationTooSmall = errors.New("lending: liquidation amounts resolve to zero")

	ErrOraclePriceStale        = errors.New("lending: oracle price is stale")
	ErrOraclePriceInvalid      = errors.New("lending: oracle price is not positive")
	ErrOracleConfidenceTooWide = errors.New("lending: oracle confidence interval too wide")
)

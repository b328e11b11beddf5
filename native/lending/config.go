package lending

// ReserveConfig captures the governance parameters of a single reserve. All
// percentage fields are whole percents in [0, 100]; rate fields are annual
// percentages applied through the interest curve.
type ReserveConfig struct {
	// OptimalUtilizationRate is the utilization percentage where the interest
	// curve pivots from the first slope to the second.
	OptimalUtilizationRate uint8 `toml:"OptimalUtilizationRate"`
	// LoanToValueRatio is the percentage of a deposit's market value that can
	// be borrowed against.
	LoanToValueRatio uint8 `toml:"LoanToValueRatio"`
	// LiquidationBonus is the percentage discount liquidators receive on
	// seized collateral.
	LiquidationBonus uint8 `toml:"LiquidationBonus"`
	// LiquidationThreshold is the loan-to-value percentage at which an
	// obligation becomes eligible for liquidation.
	LiquidationThreshold uint8 `toml:"LiquidationThreshold"`
	// MinBorrowRate, OptimalBorrowRate and MaxBorrowRate are the annual
	// percentage rates anchoring the two-segment interest curve.
	MinBorrowRate     uint8 `toml:"MinBorrowRate"`
	OptimalBorrowRate uint8 `toml:"OptimalBorrowRate"`
	MaxBorrowRate     uint8 `toml:"MaxBorrowRate"`
	// Fees to the protocol and host on borrows and flash loans.
	Fees ReserveFees `toml:"fees"`
}

// ReserveFees describes the origination fees charged by a reserve. Fee rates
// are WAD-scaled fractions of the borrowed amount, so 10_000_000_000_000_000
// is 1%.
type ReserveFees struct {
	// BorrowFeeWad is taken from every borrow before funds reach the borrower.
	BorrowFeeWad uint64 `toml:"BorrowFeeWad"`
	// FlashLoanFeeWad is reserved for flash borrows. Validated alongside the
	// other fees even though no flash operation consumes it yet.
	FlashLoanFeeWad uint64 `toml:"FlashLoanFeeWad"`
	// HostFeePercentage is the share of each fee routed to the referring host,
	// in whole percents.
	HostFeePercentage uint8 `toml:"HostFeePercentage"`
}

const wadUint64 uint64 = 1_000_000_000_000_000_000

// Validate rejects any configuration an initialised reserve could not operate
// under. It runs on initReserve and again on every owner reconfiguration.
func (c ReserveConfig) Validate() error {
	if c.OptimalUtilizationRate > 100 {
		return ErrInvalidConfig
	}
	if c.LoanToValueRatio > 100 {
		return ErrInvalidConfig
	}
	if c.LiquidationBonus > 100 {
		return ErrInvalidConfig
	}
	if c.LiquidationThreshold > 100 {
		return ErrInvalidConfig
	}
	if c.LoanToValueRatio > c.LiquidationThreshold {
		return ErrInvalidConfig
	}
	if c.OptimalBorrowRate < c.MinBorrowRate {
		return ErrInvalidConfig
	}
	if c.OptimalBorrowRate > c.MaxBorrowRate {
		return ErrInvalidConfig
	}
	if c.Fees.BorrowFeeWad >= wadUint64 {
		return ErrInvalidConfig
	}
	if c.Fees.FlashLoanFeeWad >= wadUint64 {
		return ErrInvalidConfig
	}
	if c.Fees.HostFeePercentage > 100 {
		return ErrInvalidConfig
	}
	return nil
}

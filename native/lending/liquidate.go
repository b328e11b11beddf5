package lending

import "github.com/holiman/uint256"

// LiquidationCalculation sizes the repay and seize legs of one liquidation
// call against an unhealthy obligation.
type LiquidationCalculation struct {
	// RepayAmount is the debt the liquidator pays in, in repay-reserve tokens;
	// SettleAmountWads is the matching wad-level debt reduction.
	RepayAmount      uint64
	SettleAmountWads *uint256.Int
	// WithdrawAmount is the collateral seized, in withdraw-reserve
	// collateral-receipt units.
	WithdrawAmount uint64
}

// CalculateLiquidation bounds the repayment by the outstanding debt and the
// close factor, then converts the repaid value plus the liquidation bonus into
// seized collateral, capped at what the obligation actually deposited. The
// caller has already proven the obligation unhealthy and both reserves fresh.
func CalculateLiquidation(repayReserve, withdrawReserve *Reserve, o *Obligation, liquidity ObligationLiquidity, collateral ObligationCollateral, amount uint64) (LiquidationCalculation, error) {
	if amount == 0 {
		return LiquidationCalculation{}, ErrInvalidAmount
	}
	if liquidity.BorrowedAmountWads.IsZero() {
		return LiquidationCalculation{}, ErrObligationLiquidityEmpty
	}
	if collateral.DepositedAmount == 0 {
		return LiquidationCalculation{}, ErrObligationCollateralEmpty
	}

	outstanding, err := tokensFromWadsCeil(liquidity.BorrowedAmountWads)
	if err != nil {
		return LiquidationCalculation{}, err
	}
	repayAmount := minU64(amount, outstanding)

	// Close factor: one call may clear at most half the obligation's total
	// debt value, regardless of how much of this position is outstanding.
	maxCloseValue, err := pctOf(o.BorrowedValue, liquidationCloseFactorPct)
	if err != nil {
		return LiquidationCalculation{}, err
	}
	repayValue, err := repayReserve.MarketValue(repayAmount)
	if err != nil {
		return LiquidationCalculation{}, err
	}
	if repayValue.Gt(maxCloseValue) {
		maxRepayWads, err := repayReserve.LiquidityFromValueWads(maxCloseValue)
		if err != nil {
			return LiquidationCalculation{}, err
		}
		maxRepayTokens, err := tokensFromWadsFloor(maxRepayWads)
		if err != nil {
			return LiquidationCalculation{}, err
		}
		repayAmount = minU64(repayAmount, maxRepayTokens)
		if repayValue, err = repayReserve.MarketValue(repayAmount); err != nil {
			return LiquidationCalculation{}, err
		}
	}
	if repayAmount == 0 {
		return LiquidationCalculation{}, ErrLiquidationTooSmall
	}

	settleWads := wadsFromTokens(repayAmount)
	if settleWads.Gt(liquidity.BorrowedAmountWads) {
		settleWads = new(uint256.Int).Set(liquidity.BorrowedAmountWads)
	}

	if withdrawReserve.Liquidity.MarketPrice.IsZero() {
		return LiquidationCalculation{}, ErrOraclePriceInvalid
	}
	bonusValue, err := mulDiv(repayValue, uint256.NewInt(uint64(100+uint16(withdrawReserve.Config.LiquidationBonus))), uint256.NewInt(100))
	if err != nil {
		return LiquidationCalculation{}, err
	}
	seizeLiquidityWads, err := withdrawReserve.LiquidityFromValueWads(bonusValue)
	if err != nil {
		return LiquidationCalculation{}, err
	}
	rate, err := withdrawReserve.CollateralExchangeRate()
	if err != nil {
		return LiquidationCalculation{}, err
	}
	seizeCollateral, err := u128Div(seizeLiquidityWads, rate)
	if err != nil {
		return LiquidationCalculation{}, err
	}
	withdrawAmount, err := toU64(seizeCollateral)
	if err != nil {
		return LiquidationCalculation{}, err
	}
	withdrawAmount = minU64(withdrawAmount, collateral.DepositedAmount)
	if withdrawAmount == 0 {
		return LiquidationCalculation{}, ErrLiquidationTooSmall
	}

	return LiquidationCalculation{
		RepayAmount:      repayAmount,
		SettleAmountWads: settleWads,
		WithdrawAmount:   withdrawAmount,
	}, nil
}

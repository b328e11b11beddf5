package lending

import (
	"testing"

	"github.com/holiman/uint256"
)

type liquidationFixture struct {
	repay      *Reserve
	withdraw   *Reserve
	obligation *Obligation
	liquidity  ObligationLiquidity
	collateral ObligationCollateral
}

// newLiquidationFixture builds an obligation 10 value units past its 550
// threshold: 560 borrowed from one reserve against 1000 receipts pledged in
// another, everything priced at 1.0.
func newLiquidationFixture(t *testing.T, depositedReceipts uint64) liquidationFixture {
	t.Helper()
	market := newTestMarket(t)

	repay := newTestReserve(t, market, 0x01, 0, 1)
	if _, err := repay.DepositLiquidity(10_000); err != nil {
		t.Fatalf("seed repay reserve: %v", err)
	}
	if err := repay.BorrowLiquidity(560); err != nil {
		t.Fatalf("seed debt: %v", err)
	}
	repay.SetSlot(10)

	withdraw := newTestReserve(t, market, 0x02, 0, 1)
	withdraw.SetSlot(10)

	o, err := NewObligation(market.Address, testAddr(0xCD))
	if err != nil {
		t.Fatalf("new obligation: %v", err)
	}
	if err := o.DepositCollateral(withdraw.Address, depositedReceipts); err != nil {
		t.Fatalf("deposit: %v", err)
	}
	if err := o.BorrowLiquidity(repay.Address, wad, wadsFromTokens(560)); err != nil {
		t.Fatalf("borrow: %v", err)
	}

	liquidity, liqIndex, err := o.FindLiquidity(repay.Address)
	if err != nil {
		t.Fatalf("find debt: %v", err)
	}
	liquidity.MarketValue = wadsFromTokens(560)
	if err := o.positions.setLiquidity(liqIndex, liquidity); err != nil {
		t.Fatalf("seed debt value: %v", err)
	}
	collateral, colIndex, err := o.FindCollateral(withdraw.Address)
	if err != nil {
		t.Fatalf("find collateral: %v", err)
	}
	collateral.MarketValue = wadsFromTokens(depositedReceipts)
	if err := o.positions.setCollateral(colIndex, collateral); err != nil {
		t.Fatalf("seed collateral value: %v", err)
	}

	o.DepositedValue = wadsFromTokens(depositedReceipts)
	o.BorrowedValue = wadsFromTokens(560)
	o.AllowedBorrowValue = wadsFromTokens(500)
	o.UnhealthyBorrowValue = wadsFromTokens(550)
	o.SetSlot(10)

	return liquidationFixture{repay: repay, withdraw: withdraw, obligation: o, liquidity: liquidity, collateral: collateral}
}

func TestCalculateLiquidationAppliesCloseFactorAndBonus(t *testing.T) {
	f := newLiquidationFixture(t, 1000)

	calc, err := CalculateLiquidation(f.repay, f.withdraw, f.obligation, f.liquidity, f.collateral, AmountAll)
	if err != nil {
		t.Fatalf("liquidate: %v", err)
	}
	// Close factor caps the repay at half the 560 debt value.
	if calc.RepayAmount != 280 {
		t.Fatalf("repay = %d, want 280", calc.RepayAmount)
	}
	if !calc.SettleAmountWads.Eq(wadsFromTokens(280)) {
		t.Fatalf("settle = %s, want 280", calc.SettleAmountWads.Dec())
	}
	// The seized collateral carries the 5% bonus: 280 * 1.05 = 294.
	if calc.WithdrawAmount != 294 {
		t.Fatalf("seized = %d, want 294", calc.WithdrawAmount)
	}
}

func TestCalculateLiquidationHonorsRequestedAmount(t *testing.T) {
	f := newLiquidationFixture(t, 1000)

	calc, err := CalculateLiquidation(f.repay, f.withdraw, f.obligation, f.liquidity, f.collateral, 100)
	if err != nil {
		t.Fatalf("liquidate: %v", err)
	}
	if calc.RepayAmount != 100 {
		t.Fatalf("repay = %d, want the requested 100", calc.RepayAmount)
	}
	if calc.WithdrawAmount != 105 {
		t.Fatalf("seized = %d, want 105", calc.WithdrawAmount)
	}
}

func TestCalculateLiquidationCapsSeizureAtDeposit(t *testing.T) {
	f := newLiquidationFixture(t, 150)

	calc, err := CalculateLiquidation(f.repay, f.withdraw, f.obligation, f.liquidity, f.collateral, AmountAll)
	if err != nil {
		t.Fatalf("liquidate: %v", err)
	}
	if calc.WithdrawAmount != 150 {
		t.Fatalf("seized = %d, want the whole 150 deposit", calc.WithdrawAmount)
	}
}

func TestCalculateLiquidationRejections(t *testing.T) {
	f := newLiquidationFixture(t, 1000)

	if _, err := CalculateLiquidation(f.repay, f.withdraw, f.obligation, f.liquidity, f.collateral, 0); err != ErrInvalidAmount {
		t.Fatalf("zero amount: expected ErrInvalidAmount, got %v", err)
	}

	emptyDebt := f.liquidity
	emptyDebt.BorrowedAmountWads = new(uint256.Int)
	if _, err := CalculateLiquidation(f.repay, f.withdraw, f.obligation, emptyDebt, f.collateral, 100); err != ErrObligationLiquidityEmpty {
		t.Fatalf("empty debt: expected ErrObligationLiquidityEmpty, got %v", err)
	}

	emptyCollateral := f.collateral
	emptyCollateral.DepositedAmount = 0
	if _, err := CalculateLiquidation(f.repay, f.withdraw, f.obligation, f.liquidity, emptyCollateral, 100); err != ErrObligationCollateralEmpty {
		t.Fatalf("empty collateral: expected ErrObligationCollateralEmpty, got %v", err)
	}

	f.withdraw.Liquidity.MarketPrice = new(uint256.Int)
	if _, err := CalculateLiquidation(f.repay, f.withdraw, f.obligation, f.liquidity, f.collateral, 100); err != ErrOraclePriceInvalid {
		t.Fatalf("zero withdraw price: expected ErrOraclePriceInvalid, got %v", err)
	}
}

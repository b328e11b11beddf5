package lending

import "github.com/holiman/uint256"

// accrueInterest rolls a borrow position forward to the reserve's current
// cumulative rate. The cumulative rate is monotonic, so a checkpoint ahead of
// the reserve means corrupt state and fails the refresh.
func (l *ObligationLiquidity) accrueInterest(cumulativeRate *uint256.Int) error {
	if cumulativeRate.Lt(l.CumulativeBorrowRateWads) {
		return ErrMathOverflow
	}
	if cumulativeRate.Eq(l.CumulativeBorrowRateWads) {
		return nil
	}
	ratio, err := wadDiv(cumulativeRate, l.CumulativeBorrowRateWads)
	if err != nil {
		return err
	}
	l.BorrowedAmountWads, err = wadMul(l.BorrowedAmountWads, ratio)
	if err != nil {
		return err
	}
	l.CumulativeBorrowRateWads = new(uint256.Int).Set(cumulativeRate)
	return nil
}

// RefreshObligation rebuilds the obligation's aggregates from its positions
// and the supplied reserves. The reserve list must contain exactly one fresh
// reserve per position, in storage order with deposits first. Any mismatch or
// stale reserve aborts the whole refresh; the obligation is only written after
// every position has been valued.
func RefreshObligation(o *Obligation, reserves []*Reserve, slot uint64) error {
	if len(reserves) != o.positions.count() {
		return ErrInvalidReserveCount
	}

	next := &positionStore{
		buf:         o.positions.bytes(),
		depositsLen: o.positions.depositsLen,
		borrowsLen:  o.positions.borrowsLen,
	}
	depositedValue := new(uint256.Int)
	borrowedValue := new(uint256.Int)
	allowedBorrowValue := new(uint256.Int)
	unhealthyBorrowValue := new(uint256.Int)

	for i := 0; i < int(next.depositsLen); i++ {
		rec, err := next.collateralAt(i)
		if err != nil {
			return err
		}
		reserve := reserves[i]
		if !reserve.Address.Equal(rec.DepositReserve) {
			return ErrReserveMismatch
		}
		if reserve.IsStale(slot) {
			return ErrReserveStale
		}
		rate, err := reserve.CollateralExchangeRate()
		if err != nil {
			return err
		}
		liquidityWads, err := u128Mul(uint256.NewInt(rec.DepositedAmount), rate)
		if err != nil {
			return err
		}
		value, err := reserve.MarketValueWads(liquidityWads)
		if err != nil {
			return err
		}
		rec.MarketValue = value
		if err := next.setCollateral(i, rec); err != nil {
			return err
		}

		if depositedValue, err = u128Add(depositedValue, value); err != nil {
			return err
		}
		allowed, err := pctOf(value, reserve.Config.LoanToValueRatio)
		if err != nil {
			return err
		}
		if allowedBorrowValue, err = u128Add(allowedBorrowValue, allowed); err != nil {
			return err
		}
		unhealthy, err := pctOf(value, reserve.Config.LiquidationThreshold)
		if err != nil {
			return err
		}
		if unhealthyBorrowValue, err = u128Add(unhealthyBorrowValue, unhealthy); err != nil {
			return err
		}
	}

	for i := 0; i < int(next.borrowsLen); i++ {
		rec, err := next.liquidityAt(i)
		if err != nil {
			return err
		}
		reserve := reserves[int(next.depositsLen)+i]
		if !reserve.Address.Equal(rec.BorrowReserve) {
			return ErrReserveMismatch
		}
		if reserve.IsStale(slot) {
			return ErrReserveStale
		}
		if err := rec.accrueInterest(reserve.Liquidity.CumulativeBorrowRateWads); err != nil {
			return err
		}
		value, err := reserve.MarketValueWads(rec.BorrowedAmountWads)
		if err != nil {
			return err
		}
		rec.MarketValue = value
		if err := next.setLiquidity(i, rec); err != nil {
			return err
		}
		if borrowedValue, err = u128Add(borrowedValue, value); err != nil {
			return err
		}
	}

	o.positions = next
	o.DepositedValue = depositedValue
	o.BorrowedValue = borrowedValue
	o.AllowedBorrowValue = allowedBorrowValue
	o.UnhealthyBorrowValue = unhealthyBorrowValue
	o.SetSlot(slot)
	return nil
}

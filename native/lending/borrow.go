package lending

import "github.com/holiman/uint256"

// BorrowCalculation splits a borrow request into the amount leaving the pool,
// the amount reaching the borrower and the origination fees.
type BorrowCalculation struct {
	// BorrowAmount is the full pre-fee amount debited from the reserve and
	// added to the obligation's debt.
	BorrowAmount uint64
	// ReceiveAmount is what the borrower is actually paid.
	ReceiveAmount uint64
	// OwnerFee and HostFee split the origination fee between the protocol fee
	// receiver and the referring host.
	OwnerFee uint64
	HostFee  uint64
}

// CalculateBorrow validates a borrow of amount against the reserve's
// liquidity and the obligation's remaining capacity, then prices the fees.
// The fee comes out of the borrowed amount, so the debt booked is amount and
// the payout is amount minus fees.
func CalculateBorrow(reserve *Reserve, amount uint64, remainingBorrowValue *uint256.Int) (BorrowCalculation, error) {
	if amount == 0 {
		return BorrowCalculation{}, ErrInvalidAmount
	}
	if amount > reserve.Liquidity.AvailableAmount {
		return BorrowCalculation{}, ErrInsufficientLiquidity
	}
	value, err := reserve.MarketValue(amount)
	if err != nil {
		return BorrowCalculation{}, err
	}
	if value.Gt(remainingBorrowValue) {
		return BorrowCalculation{}, ErrBorrowTooLarge
	}

	fee, err := mulDiv(uint256.NewInt(amount), uint256.NewInt(reserve.Config.Fees.BorrowFeeWad), wad)
	if err != nil {
		return BorrowCalculation{}, err
	}
	borrowFee, err := toU64(fee)
	if err != nil {
		return BorrowCalculation{}, err
	}
	hostFee := uint64(0)
	if reserve.Config.Fees.HostFeePercentage > 0 {
		host, err := pctOf(fee, reserve.Config.Fees.HostFeePercentage)
		if err != nil {
			return BorrowCalculation{}, err
		}
		if hostFee, err = toU64(host); err != nil {
			return BorrowCalculation{}, err
		}
	}
	receive := amount - borrowFee
	if receive == 0 {
		return BorrowCalculation{}, ErrBorrowTooSmall
	}
	return BorrowCalculation{
		BorrowAmount:  amount,
		ReceiveAmount: receive,
		OwnerFee:      borrowFee - hostFee,
		HostFee:       hostFee,
	}, nil
}

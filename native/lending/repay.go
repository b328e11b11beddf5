package lending

import "github.com/holiman/uint256"

// RepayCalculation is the token transfer and wad-level settlement for one
// repayment. The two amounts differ by at most one token: the transfer is a
// whole-token ceiling while settlement clears the debt in exact wads.
type RepayCalculation struct {
	RepayAmount      uint64
	SettleAmountWads *uint256.Int
}

// CalculateRepay sizes a repayment of amount against an outstanding debt.
// AmountAll, or any amount covering the whole debt, closes the position: the
// transfer rounds the debt up to whole tokens and settlement zeroes the debt
// exactly, so over-asking can never leave a dust balance behind.
func CalculateRepay(amount uint64, borrowedWads *uint256.Int) (RepayCalculation, error) {
	if amount == 0 {
		return RepayCalculation{}, ErrInvalidAmount
	}
	if borrowedWads.IsZero() {
		return RepayCalculation{}, ErrObligationLiquidityEmpty
	}
	fullRepay, err := tokensFromWadsCeil(borrowedWads)
	if err != nil {
		return RepayCalculation{}, err
	}
	if amount == AmountAll || amount >= fullRepay {
		return RepayCalculation{
			RepayAmount:      fullRepay,
			SettleAmountWads: new(uint256.Int).Set(borrowedWads),
		}, nil
	}
	settle := wadsFromTokens(amount)
	if settle.Gt(borrowedWads) {
		settle = new(uint256.Int).Set(borrowedWads)
	}
	if amount == 0 || settle.IsZero() {
		return RepayCalculation{}, ErrRepayTooSmall
	}
	return RepayCalculation{RepayAmount: amount, SettleAmountWads: settle}, nil
}

// ClampToBalance rescales the repayment when the payer holds fewer tokens
// than the computed transfer. Settlement shrinks proportionally so debt is
// never forgiven beyond the tokens actually received.
func (c RepayCalculation) ClampToBalance(balance uint64) (RepayCalculation, error) {
	if balance >= c.RepayAmount {
		return c, nil
	}
	if balance == 0 {
		return RepayCalculation{}, ErrInsufficientBalance
	}
	settle, err := mulDiv(c.SettleAmountWads, uint256.NewInt(balance), uint256.NewInt(c.RepayAmount))
	if err != nil {
		return RepayCalculation{}, err
	}
	if settle.IsZero() {
		return RepayCalculation{}, ErrRepayTooSmall
	}
	return RepayCalculation{RepayAmount: balance, SettleAmountWads: settle}, nil
}

package lending

import (
	"github.com/holiman/uint256"

	"lendchain/crypto"
)

// Obligation aggregates one owner's deposits and borrows within a market. The
// four quote-currency aggregates are cache values rebuilt by refresh; every
// decision that trusts them first proves the obligation fresh.
type Obligation struct {
	Address crypto.Address
	Market  crypto.Address
	Owner   crypto.Address

	// DepositedValue and BorrowedValue are the quote values of all positions.
	// AllowedBorrowValue applies each deposit's loan-to-value percentage;
	// UnhealthyBorrowValue applies the liquidation threshold instead.
	DepositedValue       *uint256.Int
	BorrowedValue        *uint256.Int
	AllowedBorrowValue   *uint256.Int
	UnhealthyBorrowValue *uint256.Int

	positions *positionStore

	LastUpdateSlot uint64
	Stale          bool
}

// NewObligation creates an empty obligation for owner in market. One
// obligation exists per (market, owner) pair; the derived address enforces
// that.
func NewObligation(market, owner crypto.Address) (*Obligation, error) {
	if owner.IsZero() {
		return nil, ErrInvalidOwner
	}
	return &Obligation{
		Address:              crypto.DeriveAddress(obligationSeedPrefix, market.Bytes(), owner.Bytes()),
		Market:               market,
		Owner:                owner,
		DepositedValue:       new(uint256.Int),
		BorrowedValue:        new(uint256.Int),
		AllowedBorrowValue:   new(uint256.Int),
		UnhealthyBorrowValue: new(uint256.Int),
		positions:            newPositionStore(),
		Stale:                true,
	}, nil
}

// IsStale reports whether the obligation must be refreshed before a borrow,
// withdraw or liquidation can trust its aggregates.
func (o *Obligation) IsStale(slot uint64) bool {
	if o.Stale {
		return true
	}
	if slot < o.LastUpdateSlot {
		return true
	}
	return slot-o.LastUpdateSlot > MaxStaleSlots
}

// MarkStale invalidates the cached aggregates after a position mutation.
func (o *Obligation) MarkStale() {
	o.Stale = true
}

// SetSlot records a completed refresh at slot.
func (o *Obligation) SetSlot(slot uint64) {
	o.LastUpdateSlot = slot
	o.Stale = false
}

// DepositsLen and BorrowsLen report the position counts.
func (o *Obligation) DepositsLen() int { return int(o.positions.depositsLen) }
func (o *Obligation) BorrowsLen() int  { return int(o.positions.borrowsLen) }

// CollateralAt and LiquidityAt read positions by index.
func (o *Obligation) CollateralAt(index int) (ObligationCollateral, error) {
	return o.positions.collateralAt(index)
}

func (o *Obligation) LiquidityAt(index int) (ObligationLiquidity, error) {
	return o.positions.liquidityAt(index)
}

// FindCollateral and FindLiquidity locate the position for a reserve.
func (o *Obligation) FindCollateral(reserve crypto.Address) (ObligationCollateral, int, error) {
	return o.positions.findCollateral(reserve)
}

func (o *Obligation) FindLiquidity(reserve crypto.Address) (ObligationLiquidity, int, error) {
	return o.positions.findLiquidity(reserve)
}

// DepositCollateral books amount into the position for reserve, creating the
// record on first use.
func (o *Obligation) DepositCollateral(reserve crypto.Address, amount uint64) error {
	if amount == 0 {
		return ErrInvalidAmount
	}
	rec, index, err := o.positions.findOrAddCollateral(reserve)
	if err != nil {
		return err
	}
	sum, err := u128Add(uint256.NewInt(rec.DepositedAmount), uint256.NewInt(amount))
	if err != nil {
		return err
	}
	deposited, err := toU64(sum)
	if err != nil {
		return err
	}
	rec.DepositedAmount = deposited
	if err := o.positions.setCollateral(index, rec); err != nil {
		return err
	}
	o.MarkStale()
	return nil
}

// BorrowLiquidity books borrowWads of new debt against reserve, seeding the
// record's rate checkpoint from the reserve when the position is new.
func (o *Obligation) BorrowLiquidity(reserve crypto.Address, cumulativeRate, borrowWads *uint256.Int) error {
	if borrowWads.IsZero() {
		return ErrInvalidAmount
	}
	rec, index, err := o.positions.findOrAddLiquidity(reserve, cumulativeRate)
	if err != nil {
		return err
	}
	rec.BorrowedAmountWads, err = u128Add(rec.BorrowedAmountWads, borrowWads)
	if err != nil {
		return err
	}
	if err := o.positions.setLiquidity(index, rec); err != nil {
		return err
	}
	o.MarkStale()
	return nil
}

// MaxWithdrawValue is the quote value removable while keeping the borrowed
// value within the allowed limit exactly at the margin.
func (o *Obligation) MaxWithdrawValue() (*uint256.Int, error) {
	if o.AllowedBorrowValue.IsZero() {
		return new(uint256.Int).Set(o.DepositedValue), nil
	}
	required, err := mulDiv(o.BorrowedValue, o.DepositedValue, o.AllowedBorrowValue)
	if err != nil {
		return nil, err
	}
	if required.Gt(o.DepositedValue) {
		return new(uint256.Int), nil
	}
	return u128Sub(o.DepositedValue, required)
}

// RemainingBorrowValue is the unused borrow capacity. A position already over
// its limit fails rather than reporting zero, so callers check health first.
func (o *Obligation) RemainingBorrowValue() (*uint256.Int, error) {
	return u128Sub(o.AllowedBorrowValue, o.BorrowedValue)
}

// Withdraw removes amount collateral from the position at index, subtracting
// the withdrawal's proportional share of the record's market value from the
// record and the deposited aggregate. A full withdrawal drops the record.
func (o *Obligation) Withdraw(index int, amount uint64) error {
	rec, err := o.positions.collateralAt(index)
	if err != nil {
		return err
	}
	if amount == 0 || amount > rec.DepositedAmount {
		return ErrInvalidAmount
	}
	if amount == rec.DepositedAmount {
		if err := o.positions.removeCollateral(index); err != nil {
			return err
		}
		o.DepositedValue = satSub(o.DepositedValue, rec.MarketValue)
		o.MarkStale()
		return nil
	}
	share, err := mulDiv(rec.MarketValue, uint256.NewInt(amount), uint256.NewInt(rec.DepositedAmount))
	if err != nil {
		return err
	}
	rec.DepositedAmount -= amount
	rec.MarketValue, err = u128Sub(rec.MarketValue, share)
	if err != nil {
		return err
	}
	if err := o.positions.setCollateral(index, rec); err != nil {
		return err
	}
	o.DepositedValue = satSub(o.DepositedValue, share)
	o.MarkStale()
	return nil
}

// Repay settles settleWads of the borrow at index, mirroring Withdraw on the
// debt side. The record is removed only when its debt reaches exactly zero.
func (o *Obligation) Repay(index int, settleWads *uint256.Int) error {
	rec, err := o.positions.liquidityAt(index)
	if err != nil {
		return err
	}
	if settleWads.IsZero() || settleWads.Gt(rec.BorrowedAmountWads) {
		return ErrInvalidAmount
	}
	if settleWads.Eq(rec.BorrowedAmountWads) {
		if err := o.positions.removeLiquidity(index); err != nil {
			return err
		}
		o.BorrowedValue = satSub(o.BorrowedValue, rec.MarketValue)
		o.MarkStale()
		return nil
	}
	share, err := mulDiv(rec.MarketValue, settleWads, rec.BorrowedAmountWads)
	if err != nil {
		return err
	}
	rec.BorrowedAmountWads, err = u128Sub(rec.BorrowedAmountWads, settleWads)
	if err != nil {
		return err
	}
	rec.MarketValue = satSub(rec.MarketValue, share)
	if err := o.positions.setLiquidity(index, rec); err != nil {
		return err
	}
	o.BorrowedValue = satSub(o.BorrowedValue, share)
	o.MarkStale()
	return nil
}

// VerifyHealthy blocks borrows and withdrawals that would leave the position
// past its liquidation threshold.
func (o *Obligation) VerifyHealthy() error {
	if o.BorrowsLen() == 0 {
		return nil
	}
	if o.BorrowedValue.Gt(o.UnhealthyBorrowValue) {
		return ErrObligationUnhealthy
	}
	return nil
}

// VerifyUnhealthy gates liquidation: only a position strictly past its
// threshold is eligible.
func (o *Obligation) VerifyUnhealthy() error {
	if !o.BorrowedValue.Gt(o.UnhealthyBorrowValue) {
		return ErrObligationHealthy
	}
	return nil
}

// PositionData exposes the packed record buffer and its counters for
// persistence. The returned buffer is a copy.
func (o *Obligation) PositionData() (buf []byte, depositsLen, borrowsLen uint8) {
	return o.positions.bytes(), o.positions.depositsLen, o.positions.borrowsLen
}

// RestoreObligation rebuilds an obligation from persisted fields, validating
// the packed buffer against its counters.
func RestoreObligation(addr, market, owner crypto.Address, depositedValue, borrowedValue, allowedBorrowValue, unhealthyBorrowValue *uint256.Int, positions []byte, depositsLen, borrowsLen uint8, lastUpdateSlot uint64, stale bool) (*Obligation, error) {
	store, err := loadPositionStore(positions, depositsLen, borrowsLen)
	if err != nil {
		return nil, err
	}
	o := &Obligation{
		Address:              addr,
		Market:               market,
		Owner:                owner,
		DepositedValue:       orZero(depositedValue),
		BorrowedValue:        orZero(borrowedValue),
		AllowedBorrowValue:   orZero(allowedBorrowValue),
		UnhealthyBorrowValue: orZero(unhealthyBorrowValue),
		positions:            store,
		LastUpdateSlot:       lastUpdateSlot,
		Stale:                stale,
	}
	return o, nil
}

func orZero(z *uint256.Int) *uint256.Int {
	if z == nil {
		return new(uint256.Int)
	}
	return new(uint256.Int).Set(z)
}

// satSub floors cached aggregate subtractions at zero. Proportional shares can
// exceed the aggregate by a rounding wad; refresh rebuilds the exact totals.
func satSub(a, b *uint256.Int) *uint256.Int {
	if a.Gt(b) {
		return new(uint256.Int).Sub(a, b)
	}
	return new(uint256.Int)
}

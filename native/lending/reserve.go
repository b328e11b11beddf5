package lending

import (
	"math"

	"github.com/holiman/uint256"

	"lendchain/crypto"
)

// ReserveLiquidity tracks the borrowable side of a reserve. AvailableAmount is
// in raw token units; the borrowed total and cumulative rate are WAD-scaled so
// fractional interest survives partial repayments.
type ReserveLiquidity struct {
	Mint         crypto.Address
	MintDecimals uint8
	Supply       crypto.Address
	FeeReceiver  crypto.Address
	OracleFeed   [32]byte

	AvailableAmount          uint64
	BorrowedAmountWads       *uint256.Int
	CumulativeBorrowRateWads *uint256.Int
	MarketPrice              *uint256.Int
}

// ReserveCollateral tracks the receipt token minted against deposits.
type ReserveCollateral struct {
	Mint            crypto.Address
	MintTotalSupply uint64
	Supply          crypto.Address
}

// Reserve is a single-asset liquidity pool. Depositors hold collateral-receipt
// tokens whose exchange rate against the underlying grows as borrowers accrue
// interest.
type Reserve struct {
	Address crypto.Address
	Market  crypto.Address

	Liquidity  ReserveLiquidity
	Collateral ReserveCollateral
	Config     ReserveConfig

	LastUpdateSlot uint64
	Stale          bool
}

// NewReserve derives the reserve identity and its vault, mint and fee-receiver
// addresses under the market. The cumulative borrow rate starts at exactly
// 1.0 so the first obligation checkpoint compounds from a known base.
func NewReserve(market *LendingMarket, liquidityMint crypto.Address, mintDecimals uint8, oracleFeed [32]byte, cfg ReserveConfig, slot uint64) (*Reserve, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if liquidityMint.IsZero() {
		return nil, ErrInvalidConfig
	}
	var zeroFeed [32]byte
	if oracleFeed == zeroFeed {
		return nil, ErrInvalidOracle
	}
	addr := crypto.DeriveAddress(reserveSeedPrefix, market.Address.Bytes(), liquidityMint.Bytes())
	r := &Reserve{
		Address: addr,
		Market:  market.Address,
		Liquidity: ReserveLiquidity{
			Mint:                     liquidityMint,
			MintDecimals:             mintDecimals,
			Supply:                   crypto.DeriveAddress(vaultSeedPrefix, addr.Bytes(), []byte("liquidity")),
			FeeReceiver:              crypto.DeriveAddress(feeSeedPrefix, addr.Bytes()),
			OracleFeed:               oracleFeed,
			BorrowedAmountWads:       new(uint256.Int),
			CumulativeBorrowRateWads: new(uint256.Int).Set(wad),
			MarketPrice:              new(uint256.Int),
		},
		Collateral: ReserveCollateral{
			Mint:   crypto.DeriveAddress(mintSeedPrefix, addr.Bytes()),
			Supply: crypto.DeriveAddress(vaultSeedPrefix, addr.Bytes(), []byte("collateral")),
		},
		Config:         cfg,
		LastUpdateSlot: slot,
		Stale:          true,
	}
	return r, nil
}

// IsStale reports whether the reserve must be refreshed before any operation
// that reads its price or accrued interest.
func (r *Reserve) IsStale(slot uint64) bool {
	if r.Stale {
		return true
	}
	if slot < r.LastUpdateSlot {
		return true
	}
	return slot-r.LastUpdateSlot > MaxStaleSlots
}

// MarkStale forces a refresh before the next consuming operation. Every
// mutation of reserve liquidity calls this.
func (r *Reserve) MarkStale() {
	r.Stale = true
}

// SetSlot records a completed refresh at slot.
func (r *Reserve) SetSlot(slot uint64) {
	r.LastUpdateSlot = slot
	r.Stale = false
}

// RefreshPrice installs an already validated oracle reading.
func (r *Reserve) RefreshPrice(price *uint256.Int) error {
	if price == nil || price.IsZero() {
		return ErrOraclePriceInvalid
	}
	if _, err := checkU128(price); err != nil {
		return err
	}
	r.Liquidity.MarketPrice = new(uint256.Int).Set(price)
	return nil
}

// TotalSupplyWads is the reserve's full liquidity in WAD units, deposited plus
// lent out.
func (r *Reserve) TotalSupplyWads() (*uint256.Int, error) {
	return u128Add(wadsFromTokens(r.Liquidity.AvailableAmount), r.Liquidity.BorrowedAmountWads)
}

// UtilizationRate is borrowed/(available+borrowed) as a WAD fraction, zero for
// an empty reserve.
func (r *Reserve) UtilizationRate() (*uint256.Int, error) {
	total, err := r.TotalSupplyWads()
	if err != nil {
		return nil, err
	}
	if total.IsZero() {
		return new(uint256.Int), nil
	}
	return wadDiv(r.Liquidity.BorrowedAmountWads, total)
}

// BorrowRate is the annual borrow rate the two-segment curve implies at the
// reserve's current utilization, as a WAD fraction.
func (r *Reserve) BorrowRate() (*uint256.Int, error) {
	utilization, err := r.UtilizationRate()
	if err != nil {
		return nil, err
	}
	return currentBorrowRate(r.Config, utilization)
}

// CollateralExchangeRate is the WAD amount of underlying liquidity one
// collateral-receipt unit redeems for. It opens at exactly 1.0 and only moves
// up as interest accrues.
func (r *Reserve) CollateralExchangeRate() (*uint256.Int, error) {
	if r.Collateral.MintTotalSupply == 0 {
		return new(uint256.Int).Set(wad), nil
	}
	total, err := r.TotalSupplyWads()
	if err != nil {
		return nil, err
	}
	return u128Div(total, uint256.NewInt(r.Collateral.MintTotalSupply))
}

// AccrueInterest rolls the cumulative borrow rate and the borrowed total
// forward to currentSlot. On a slot the reserve already covers, or with
// nothing borrowed, it is a strict no-op. The token-unit growth of the
// borrowed total is credited back to available liquidity as interest income.
func (r *Reserve) AccrueInterest(currentSlot uint64) error {
	if currentSlot <= r.LastUpdateSlot {
		return nil
	}
	if r.Liquidity.BorrowedAmountWads.IsZero() {
		return nil
	}
	slotsElapsed := currentSlot - r.LastUpdateSlot

	utilization, err := r.UtilizationRate()
	if err != nil {
		return err
	}
	borrowRate, err := currentBorrowRate(r.Config, utilization)
	if err != nil {
		return err
	}
	factor, err := compoundFactor(borrowRate, slotsElapsed)
	if err != nil {
		return err
	}

	newCumulative, err := wadMul(r.Liquidity.CumulativeBorrowRateWads, factor)
	if err != nil {
		return err
	}
	newBorrowed, err := wadMul(r.Liquidity.BorrowedAmountWads, factor)
	if err != nil {
		return err
	}
	interestWads, err := u128Sub(newBorrowed, r.Liquidity.BorrowedAmountWads)
	if err != nil {
		return err
	}
	interestTokens, err := tokensFromWadsFloor(interestWads)
	if err != nil {
		return err
	}
	if interestTokens > math.MaxUint64-r.Liquidity.AvailableAmount {
		return ErrMathOverflow
	}

	r.Liquidity.CumulativeBorrowRateWads = newCumulative
	r.Liquidity.BorrowedAmountWads = newBorrowed
	r.Liquidity.AvailableAmount += interestTokens
	return nil
}

// DepositLiquidity converts a token deposit to collateral-receipt units at the
// current exchange rate and books both sides.
func (r *Reserve) DepositLiquidity(amount uint64) (uint64, error) {
	if amount == 0 {
		return 0, ErrInvalidAmount
	}
	rate, err := r.CollateralExchangeRate()
	if err != nil {
		return 0, err
	}
	minted, err := mulDiv(uint256.NewInt(amount), wad, rate)
	if err != nil {
		return 0, err
	}
	collateral, err := toU64(minted)
	if err != nil {
		return 0, err
	}
	if collateral == 0 {
		return 0, ErrInvalidAmount
	}
	if amount > math.MaxUint64-r.Liquidity.AvailableAmount {
		return 0, ErrMathOverflow
	}
	if collateral > math.MaxUint64-r.Collateral.MintTotalSupply {
		return 0, ErrMathOverflow
	}
	r.Liquidity.AvailableAmount += amount
	r.Collateral.MintTotalSupply += collateral
	r.MarkStale()
	return collateral, nil
}

// RedeemCollateral burns collateral-receipt units and releases the underlying
// liquidity at the current exchange rate.
func (r *Reserve) RedeemCollateral(amount uint64) (uint64, error) {
	if amount == 0 {
		return 0, ErrInvalidAmount
	}
	if amount > r.Collateral.MintTotalSupply {
		return 0, ErrInsufficientBalance
	}
	rate, err := r.CollateralExchangeRate()
	if err != nil {
		return 0, err
	}
	released, err := wadMul(uint256.NewInt(amount), rate)
	if err != nil {
		return 0, err
	}
	liquidity, err := toU64(released)
	if err != nil {
		return 0, err
	}
	if liquidity == 0 {
		return 0, ErrWithdrawTooSmall
	}
	if liquidity > r.Liquidity.AvailableAmount {
		return 0, ErrInsufficientLiquidity
	}
	r.Liquidity.AvailableAmount -= liquidity
	r.Collateral.MintTotalSupply -= amount
	r.MarkStale()
	return liquidity, nil
}

// BorrowLiquidity moves amount from available to borrowed. The caller has
// already run the fee and capacity calculations and only hands over the full
// pre-fee amount.
func (r *Reserve) BorrowLiquidity(amount uint64) error {
	if amount == 0 {
		return ErrInvalidAmount
	}
	if amount > r.Liquidity.AvailableAmount {
		return ErrInsufficientLiquidity
	}
	newBorrowed, err := u128Add(r.Liquidity.BorrowedAmountWads, wadsFromTokens(amount))
	if err != nil {
		return err
	}
	r.Liquidity.AvailableAmount -= amount
	r.Liquidity.BorrowedAmountWads = newBorrowed
	r.MarkStale()
	return nil
}

// RepayLiquidity settles settleWads of debt and returns repayAmount tokens to
// the pool. Settling happens in wad units so a full repayment clears the debt
// exactly even when the token transfer had to round up.
func (r *Reserve) RepayLiquidity(repayAmount uint64, settleWads *uint256.Int) error {
	if repayAmount == 0 {
		return ErrInvalidAmount
	}
	settle := settleWads
	if settle.Gt(r.Liquidity.BorrowedAmountWads) {
		settle = r.Liquidity.BorrowedAmountWads
	}
	newBorrowed, err := u128Sub(r.Liquidity.BorrowedAmountWads, settle)
	if err != nil {
		return err
	}
	if repayAmount > math.MaxUint64-r.Liquidity.AvailableAmount {
		return ErrMathOverflow
	}
	r.Liquidity.BorrowedAmountWads = newBorrowed
	r.Liquidity.AvailableAmount += repayAmount
	r.MarkStale()
	return nil
}

// MarketValueWads prices a WAD liquidity amount in the market's quote
// currency, normalising away the mint decimals with a single truncating
// division so the rounding loss is taken exactly once.
func (r *Reserve) MarketValueWads(amountWads *uint256.Int) (*uint256.Int, error) {
	priced, err := wadMul(amountWads, r.Liquidity.MarketPrice)
	if err != nil {
		return nil, err
	}
	scale, err := tenPow(r.Liquidity.MintDecimals)
	if err != nil {
		return nil, err
	}
	return u128Div(priced, scale)
}

// MarketValue prices a raw token amount in the quote currency.
func (r *Reserve) MarketValue(amount uint64) (*uint256.Int, error) {
	return r.MarketValueWads(wadsFromTokens(amount))
}

// LiquidityFromValueWads inverts MarketValueWads: the WAD token amount a quote
// value buys at the current price. Used when sizing seized collateral.
func (r *Reserve) LiquidityFromValueWads(valueWads *uint256.Int) (*uint256.Int, error) {
	if r.Liquidity.MarketPrice.IsZero() {
		return nil, ErrOraclePriceInvalid
	}
	scale, err := tenPow(r.Liquidity.MintDecimals)
	if err != nil {
		return nil, err
	}
	scaled, overflow := new(uint256.Int).MulOverflow(valueWads, scale)
	if overflow {
		return nil, ErrMathOverflow
	}
	return wadDiv(scaled, r.Liquidity.MarketPrice)
}

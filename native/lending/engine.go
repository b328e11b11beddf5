package lending

import (
	"github.com/holiman/uint256"

	"lendchain/core/events"
	"lendchain/crypto"
	nativecommon "lendchain/native/common"
)

// engineState is the persistence surface the engine runs against. Lookups
// return nil without error when the record does not exist.
type engineState interface {
	GetMarket(addr crypto.Address) (*LendingMarket, error)
	PutMarket(market *LendingMarket) error
	GetReserve(addr crypto.Address) (*Reserve, error)
	PutReserve(reserve *Reserve) error
	GetObligation(addr crypto.Address) (*Obligation, error)
	PutObligation(obligation *Obligation) error
}

// Engine orchestrates every lending state transition. It owns no state of its
// own: records live behind engineState, funds behind the ledger and minter,
// prices behind the oracle. The host sets the current slot before dispatching
// each batch of operations.
type Engine struct {
	state       engineState
	ledger      AssetLedger
	minter      CollateralMinter
	oracle      PriceOracle
	emitter     events.Emitter
	pauses      nativecommon.PauseView
	currentSlot uint64
}

// NewEngine constructs an engine with no wiring. Callers attach persistence,
// ledger and oracle through the setters before dispatching operations.
func NewEngine() *Engine {
	return &Engine{emitter: events.NoopEmitter{}}
}

// SetState wires the engine to the external persistence layer.
func (e *Engine) SetState(state engineState) { e.state = state }

// SetLedger wires the token sub-ledger.
func (e *Engine) SetLedger(ledger AssetLedger) { e.ledger = ledger }

// SetMinter wires the collateral-receipt mint/burn capability.
func (e *Engine) SetMinter(minter CollateralMinter) { e.minter = minter }

// SetOracle wires the price feed client.
func (e *Engine) SetOracle(oracle PriceOracle) { e.oracle = oracle }

// SetEmitter configures the event emitter. Passing nil resets to the no-op
// emitter.
func (e *Engine) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		e.emitter = events.NoopEmitter{}
		return
	}
	e.emitter = emitter
}

// SetPauses wires the module pause switchboard.
func (e *Engine) SetPauses(p nativecommon.PauseView) { e.pauses = p }

// SetSlot fixes the slot all subsequent operations execute in.
func (e *Engine) SetSlot(slot uint64) { e.currentSlot = slot }

// Slot returns the engine's current execution slot.
func (e *Engine) Slot() uint64 { return e.currentSlot }

func (e *Engine) ready() error {
	if e == nil || e.state == nil {
		return ErrNilState
	}
	return nil
}

func (e *Engine) guard() error {
	if err := e.ready(); err != nil {
		return err
	}
	return nativecommon.Guard(e.pauses, moduleName)
}

func (e *Engine) market(addr crypto.Address) (*LendingMarket, error) {
	market, err := e.state.GetMarket(addr)
	if err != nil {
		return nil, err
	}
	if market == nil {
		return nil, ErrMarketNotFound
	}
	return market, nil
}

func (e *Engine) reserve(addr crypto.Address) (*Reserve, error) {
	reserve, err := e.state.GetReserve(addr)
	if err != nil {
		return nil, err
	}
	if reserve == nil {
		return nil, ErrReserveNotFound
	}
	return reserve, nil
}

func (e *Engine) obligation(addr crypto.Address) (*Obligation, error) {
	obligation, err := e.state.GetObligation(addr)
	if err != nil {
		return nil, err
	}
	if obligation == nil {
		return nil, ErrObligationNotFound
	}
	return obligation, nil
}

func (e *Engine) freshReserve(addr crypto.Address) (*Reserve, error) {
	reserve, err := e.reserve(addr)
	if err != nil {
		return nil, err
	}
	if reserve.IsStale(e.currentSlot) {
		return nil, ErrReserveStale
	}
	return reserve, nil
}

func (e *Engine) freshObligation(addr crypto.Address) (*Obligation, error) {
	obligation, err := e.obligation(addr)
	if err != nil {
		return nil, err
	}
	if obligation.IsStale(e.currentSlot) {
		return nil, ErrObligationStale
	}
	return obligation, nil
}

// InitLendingMarket creates a market owned by owner and denominated in
// quoteCurrency.
func (e *Engine) InitLendingMarket(owner crypto.Address, quoteCurrency [32]byte) (*LendingMarket, error) {
	if err := e.guard(); err != nil {
		return nil, err
	}
	market, err := NewLendingMarket(owner, quoteCurrency)
	if err != nil {
		return nil, err
	}
	existing, err := e.state.GetMarket(market.Address)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, ErrMarketExists
	}
	if err := e.state.PutMarket(market); err != nil {
		return nil, err
	}
	e.emitter.Emit(MarketEvent{Type: EventTypeMarketInitialized, Market: market.Address, Owner: owner})
	return market, nil
}

// SetMarketOwner transfers market ownership. Only the current owner may call,
// and the transfer must change the owner to a non-zero address.
func (e *Engine) SetMarketOwner(marketAddr, caller, newOwner crypto.Address) error {
	if err := e.guard(); err != nil {
		return err
	}
	market, err := e.market(marketAddr)
	if err != nil {
		return err
	}
	if err := market.SetOwner(caller, newOwner); err != nil {
		return err
	}
	if err := e.state.PutMarket(market); err != nil {
		return err
	}
	e.emitter.Emit(MarketEvent{Type: EventTypeMarketOwnerChanged, Market: market.Address, Owner: newOwner})
	return nil
}

// InitReserve creates a reserve under the market, prices it from the oracle
// and books the owner's initial liquidity deposit at a 1:1 collateral rate.
func (e *Engine) InitReserve(marketAddr, caller, liquidityMint crypto.Address, mintDecimals uint8, oracleFeed [32]byte, cfg ReserveConfig, liquidityAmount uint64) (*Reserve, uint64, error) {
	if err := e.guard(); err != nil {
		return nil, 0, err
	}
	if e.ledger == nil || e.minter == nil || e.oracle == nil {
		return nil, 0, ErrNilState
	}
	if liquidityAmount == 0 {
		return nil, 0, ErrInvalidAmount
	}
	market, err := e.market(marketAddr)
	if err != nil {
		return nil, 0, err
	}
	if !market.Owner.Equal(caller) {
		return nil, 0, ErrInvalidOwner
	}
	reserve, err := NewReserve(market, liquidityMint, mintDecimals, oracleFeed, cfg, e.currentSlot)
	if err != nil {
		return nil, 0, err
	}
	existing, err := e.state.GetReserve(reserve.Address)
	if err != nil {
		return nil, 0, err
	}
	if existing != nil {
		return nil, 0, ErrReserveExists
	}

	reading, err := e.oracle.Price(oracleFeed)
	if err != nil {
		return nil, 0, err
	}
	if err := validatePriceReading(reading, e.currentSlot); err != nil {
		return nil, 0, err
	}
	if err := reserve.RefreshPrice(reading.Price); err != nil {
		return nil, 0, err
	}

	if err := e.ledger.Transfer(liquidityMint, caller, reserve.Liquidity.Supply, liquidityAmount); err != nil {
		return nil, 0, err
	}
	collateral, err := reserve.DepositLiquidity(liquidityAmount)
	if err != nil {
		return nil, 0, err
	}
	if err := e.minter.Mint(reserve.Collateral.Mint, caller, collateral, market.Authority); err != nil {
		return nil, 0, err
	}
	reserve.SetSlot(e.currentSlot)
	if err := e.state.PutReserve(reserve); err != nil {
		return nil, 0, err
	}
	e.emitter.Emit(ReserveEvent{
		Type:            EventTypeReserveInitialized,
		Reserve:         reserve.Address,
		Market:          market.Address,
		Slot:            e.currentSlot,
		MarketPrice:     reserve.Liquidity.MarketPrice.Dec(),
		AvailableAmount: reserve.Liquidity.AvailableAmount,
	})
	return reserve, collateral, nil
}

// InitObligation creates an empty obligation for owner in the market. One
// obligation exists per owner and market.
func (e *Engine) InitObligation(marketAddr, owner crypto.Address) (*Obligation, error) {
	if err := e.guard(); err != nil {
		return nil, err
	}
	market, err := e.market(marketAddr)
	if err != nil {
		return nil, err
	}
	obligation, err := NewObligation(market.Address, owner)
	if err != nil {
		return nil, err
	}
	existing, err := e.state.GetObligation(obligation.Address)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, ErrObligationExists
	}
	if err := e.state.PutObligation(obligation); err != nil {
		return nil, err
	}
	e.emitter.Emit(ObligationEvent{Type: EventTypeObligationInitialized, Obligation: obligation.Address, Owner: owner, Slot: e.currentSlot})
	return obligation, nil
}

// RefreshReserve accrues interest to the current slot and installs a validated
// oracle price. Every value-moving operation requires this to have happened
// within the staleness window.
func (e *Engine) RefreshReserve(reserveAddr crypto.Address) error {
	if err := e.ready(); err != nil {
		return err
	}
	if e.oracle == nil {
		return ErrNilState
	}
	reserve, err := e.reserve(reserveAddr)
	if err != nil {
		return err
	}
	if err := reserve.AccrueInterest(e.currentSlot); err != nil {
		return err
	}
	reading, err := e.oracle.Price(reserve.Liquidity.OracleFeed)
	if err != nil {
		return err
	}
	if err := validatePriceReading(reading, e.currentSlot); err != nil {
		return err
	}
	if err := reserve.RefreshPrice(reading.Price); err != nil {
		return err
	}
	reserve.SetSlot(e.currentSlot)
	if err := e.state.PutReserve(reserve); err != nil {
		return err
	}
	e.emitter.Emit(ReserveEvent{
		Type:            EventTypeReserveRefreshed,
		Reserve:         reserve.Address,
		Market:          reserve.Market,
		Slot:            e.currentSlot,
		MarketPrice:     reserve.Liquidity.MarketPrice.Dec(),
		AvailableAmount: reserve.Liquidity.AvailableAmount,
	})
	return nil
}

// RefreshObligation revalues every position against the supplied reserves,
// which must be listed in the obligation's storage order, deposits first.
func (e *Engine) RefreshObligation(obligationAddr crypto.Address, reserveAddrs []crypto.Address) error {
	if err := e.ready(); err != nil {
		return err
	}
	obligation, err := e.obligation(obligationAddr)
	if err != nil {
		return err
	}
	reserves := make([]*Reserve, len(reserveAddrs))
	for i, addr := range reserveAddrs {
		if reserves[i], err = e.reserve(addr); err != nil {
			return err
		}
	}
	if err := RefreshObligation(obligation, reserves, e.currentSlot); err != nil {
		return err
	}
	if err := e.state.PutObligation(obligation); err != nil {
		return err
	}
	e.emitter.Emit(ObligationEvent{
		Type:           EventTypeObligationRefreshed,
		Obligation:     obligation.Address,
		Owner:          obligation.Owner,
		Slot:           e.currentSlot,
		DepositedValue: obligation.DepositedValue.Dec(),
		BorrowedValue:  obligation.BorrowedValue.Dec(),
	})
	return nil
}

// DepositReserveLiquidity exchanges caller liquidity for collateral-receipt
// tokens at the reserve's current rate.
func (e *Engine) DepositReserveLiquidity(reserveAddr, caller crypto.Address, amount uint64) (uint64, error) {
	if err := e.guard(); err != nil {
		return 0, err
	}
	if e.ledger == nil || e.minter == nil {
		return 0, ErrNilState
	}
	reserve, err := e.freshReserve(reserveAddr)
	if err != nil {
		return 0, err
	}
	market, err := e.market(reserve.Market)
	if err != nil {
		return 0, err
	}
	if err := e.ledger.Transfer(reserve.Liquidity.Mint, caller, reserve.Liquidity.Supply, amount); err != nil {
		return 0, err
	}
	collateral, err := reserve.DepositLiquidity(amount)
	if err != nil {
		return 0, err
	}
	if err := e.minter.Mint(reserve.Collateral.Mint, caller, collateral, market.Authority); err != nil {
		return 0, err
	}
	if err := e.state.PutReserve(reserve); err != nil {
		return 0, err
	}
	e.emitter.Emit(FlowEvent{Type: EventTypeLiquidityDeposited, Reserve: reserve.Address, Account: caller, Amount: amount, ResultAmount: collateral})
	return collateral, nil
}

// RedeemReserveCollateral burns caller receipts and returns the underlying
// liquidity at the current rate.
func (e *Engine) RedeemReserveCollateral(reserveAddr, caller crypto.Address, amount uint64) (uint64, error) {
	if err := e.guard(); err != nil {
		return 0, err
	}
	if e.ledger == nil || e.minter == nil {
		return 0, ErrNilState
	}
	reserve, err := e.freshReserve(reserveAddr)
	if err != nil {
		return 0, err
	}
	if err := e.minter.Burn(reserve.Collateral.Mint, caller, amount); err != nil {
		return 0, err
	}
	liquidity, err := reserve.RedeemCollateral(amount)
	if err != nil {
		return 0, err
	}
	if err := e.ledger.Transfer(reserve.Liquidity.Mint, reserve.Liquidity.Supply, caller, liquidity); err != nil {
		return 0, err
	}
	if err := e.state.PutReserve(reserve); err != nil {
		return 0, err
	}
	e.emitter.Emit(FlowEvent{Type: EventTypeCollateralRedeemed, Reserve: reserve.Address, Account: caller, Amount: amount, ResultAmount: liquidity})
	return liquidity, nil
}

// DepositObligationCollateral pledges caller receipt tokens to the obligation.
func (e *Engine) DepositObligationCollateral(obligationAddr, reserveAddr, caller crypto.Address, amount uint64) error {
	if err := e.guard(); err != nil {
		return err
	}
	if e.ledger == nil {
		return ErrNilState
	}
	obligation, err := e.obligation(obligationAddr)
	if err != nil {
		return err
	}
	if !obligation.Owner.Equal(caller) {
		return ErrInvalidOwner
	}
	reserve, err := e.reserve(reserveAddr)
	if err != nil {
		return err
	}
	if !reserve.Market.Equal(obligation.Market) {
		return ErrInvalidMarket
	}
	if err := e.ledger.Transfer(reserve.Collateral.Mint, caller, reserve.Collateral.Supply, amount); err != nil {
		return err
	}
	if err := obligation.DepositCollateral(reserve.Address, amount); err != nil {
		return err
	}
	if err := e.state.PutObligation(obligation); err != nil {
		return err
	}
	e.emitter.Emit(FlowEvent{Type: EventTypeCollateralDeposited, Reserve: reserve.Address, Obligation: obligation.Address, Account: caller, Amount: amount})
	return nil
}

// WithdrawObligationCollateral releases pledged receipts back to the owner, up
// to the value the remaining debt allows. AmountAll withdraws the whole
// position.
func (e *Engine) WithdrawObligationCollateral(obligationAddr, reserveAddr, caller crypto.Address, amount uint64) (uint64, error) {
	if err := e.guard(); err != nil {
		return 0, err
	}
	if e.ledger == nil {
		return 0, ErrNilState
	}
	if amount == 0 {
		return 0, ErrInvalidAmount
	}
	reserve, err := e.freshReserve(reserveAddr)
	if err != nil {
		return 0, err
	}
	obligation, err := e.freshObligation(obligationAddr)
	if err != nil {
		return 0, err
	}
	if !obligation.Owner.Equal(caller) {
		return 0, ErrInvalidOwner
	}
	rec, index, err := obligation.FindCollateral(reserve.Address)
	if err != nil {
		return 0, err
	}
	if rec.DepositedAmount == 0 {
		return 0, ErrObligationCollateralEmpty
	}

	withdrawAmount := amount
	if obligation.BorrowsLen() == 0 {
		// Nothing borrowed: the whole position is free.
		if withdrawAmount == AmountAll || withdrawAmount > rec.DepositedAmount {
			withdrawAmount = rec.DepositedAmount
		}
	} else {
		maxValue, err := obligation.MaxWithdrawValue()
		if err != nil {
			return 0, err
		}
		if maxValue.IsZero() {
			return 0, ErrWithdrawTooLarge
		}
		if withdrawAmount == AmountAll {
			// "All" with debt outstanding means the free portion: the
			// record's share of the withdrawable value, floored to tokens.
			withdrawValue := maxValue
			if rec.MarketValue.Lt(maxValue) {
				withdrawValue = rec.MarketValue
			}
			if rec.MarketValue.IsZero() {
				withdrawAmount = 0
			} else {
				clamped, err := mulDiv(uint256.NewInt(rec.DepositedAmount), withdrawValue, rec.MarketValue)
				if err != nil {
					return 0, err
				}
				if withdrawAmount, err = toU64(clamped); err != nil {
					return 0, err
				}
				withdrawAmount = minU64(withdrawAmount, rec.DepositedAmount)
			}
		}
		if withdrawAmount > rec.DepositedAmount {
			return 0, ErrInvalidAmount
		}
		share, err := mulDivU64(rec.MarketValue, withdrawAmount, rec.DepositedAmount)
		if err != nil {
			return 0, err
		}
		if share.Gt(maxValue) {
			return 0, ErrWithdrawTooLarge
		}
	}
	if withdrawAmount == 0 {
		return 0, ErrWithdrawTooSmall
	}
	if err := obligation.Withdraw(index, withdrawAmount); err != nil {
		return 0, err
	}
	if err := e.ledger.Transfer(reserve.Collateral.Mint, reserve.Collateral.Supply, caller, withdrawAmount); err != nil {
		return 0, err
	}
	if err := e.state.PutObligation(obligation); err != nil {
		return 0, err
	}
	e.emitter.Emit(FlowEvent{Type: EventTypeCollateralWithdrawn, Reserve: reserve.Address, Obligation: obligation.Address, Account: caller, Amount: withdrawAmount})
	return withdrawAmount, nil
}

// BorrowObligationLiquidity draws liquidity against the obligation's
// collateral. Fees come out of the transferred amount; the debt booked is the
// full pre-fee amount.
func (e *Engine) BorrowObligationLiquidity(obligationAddr, reserveAddr, caller, hostFeeReceiver crypto.Address, amount uint64) (uint64, error) {
	if err := e.guard(); err != nil {
		return 0, err
	}
	if e.ledger == nil {
		return 0, ErrNilState
	}
	reserve, err := e.freshReserve(reserveAddr)
	if err != nil {
		return 0, err
	}
	obligation, err := e.freshObligation(obligationAddr)
	if err != nil {
		return 0, err
	}
	if !obligation.Owner.Equal(caller) {
		return 0, ErrInvalidOwner
	}
	if !reserve.Market.Equal(obligation.Market) {
		return 0, ErrInvalidMarket
	}
	if obligation.DepositsLen() == 0 {
		return 0, ErrObligationDepositsEmpty
	}
	if obligation.DepositedValue.IsZero() {
		return 0, ErrObligationDepositsZero
	}
	remaining, err := obligation.RemainingBorrowValue()
	if err != nil {
		return 0, err
	}
	if remaining.IsZero() {
		return 0, ErrBorrowTooLarge
	}
	calc, err := CalculateBorrow(reserve, amount, remaining)
	if err != nil {
		return 0, err
	}
	borrowValue, err := reserve.MarketValue(calc.BorrowAmount)
	if err != nil {
		return 0, err
	}

	if err := reserve.BorrowLiquidity(calc.BorrowAmount); err != nil {
		return 0, err
	}
	if err := obligation.BorrowLiquidity(reserve.Address, reserve.Liquidity.CumulativeBorrowRateWads, wadsFromTokens(calc.BorrowAmount)); err != nil {
		return 0, err
	}
	// Fold the new debt into the cached aggregate so a second borrow in the
	// same slot sees the reduced capacity.
	obligation.BorrowedValue, err = u128Add(obligation.BorrowedValue, borrowValue)
	if err != nil {
		return 0, err
	}
	if obligation.BorrowedValue.Gt(obligation.AllowedBorrowValue) {
		return 0, ErrBorrowTooLarge
	}

	if err := e.ledger.Transfer(reserve.Liquidity.Mint, reserve.Liquidity.Supply, caller, calc.ReceiveAmount); err != nil {
		return 0, err
	}
	ownerFee := calc.OwnerFee
	hostFee := calc.HostFee
	if hostFeeReceiver.IsZero() {
		ownerFee += hostFee
		hostFee = 0
	}
	if ownerFee > 0 {
		if err := e.ledger.Transfer(reserve.Liquidity.Mint, reserve.Liquidity.Supply, reserve.Liquidity.FeeReceiver, ownerFee); err != nil {
			return 0, err
		}
	}
	if hostFee > 0 {
		if err := e.ledger.Transfer(reserve.Liquidity.Mint, reserve.Liquidity.Supply, hostFeeReceiver, hostFee); err != nil {
			return 0, err
		}
	}
	if err := e.state.PutReserve(reserve); err != nil {
		return 0, err
	}
	if err := e.state.PutObligation(obligation); err != nil {
		return 0, err
	}
	e.emitter.Emit(FlowEvent{Type: EventTypeLiquidityBorrowed, Reserve: reserve.Address, Obligation: obligation.Address, Account: caller, Amount: calc.BorrowAmount, ResultAmount: calc.ReceiveAmount})
	return calc.ReceiveAmount, nil
}

// RepayObligationLiquidity pays down the caller's debt against the reserve.
// AmountAll settles the whole position, rounding the transfer up to whole
// tokens so the debt reaches exactly zero.
func (e *Engine) RepayObligationLiquidity(obligationAddr, reserveAddr, caller crypto.Address, amount uint64) (uint64, error) {
	if err := e.guard(); err != nil {
		return 0, err
	}
	if e.ledger == nil {
		return 0, ErrNilState
	}
	reserve, err := e.freshReserve(reserveAddr)
	if err != nil {
		return 0, err
	}
	obligation, err := e.freshObligation(obligationAddr)
	if err != nil {
		return 0, err
	}
	rec, index, err := obligation.FindLiquidity(reserve.Address)
	if err != nil {
		return 0, err
	}
	calc, err := CalculateRepay(amount, rec.BorrowedAmountWads)
	if err != nil {
		return 0, err
	}
	balance, err := e.ledger.Balance(reserve.Liquidity.Mint, caller)
	if err != nil {
		return 0, err
	}
	if calc, err = calc.ClampToBalance(balance); err != nil {
		return 0, err
	}
	if err := e.ledger.Transfer(reserve.Liquidity.Mint, caller, reserve.Liquidity.Supply, calc.RepayAmount); err != nil {
		return 0, err
	}
	if err := reserve.RepayLiquidity(calc.RepayAmount, calc.SettleAmountWads); err != nil {
		return 0, err
	}
	if err := obligation.Repay(index, calc.SettleAmountWads); err != nil {
		return 0, err
	}
	if err := e.state.PutReserve(reserve); err != nil {
		return 0, err
	}
	if err := e.state.PutObligation(obligation); err != nil {
		return 0, err
	}
	e.emitter.Emit(FlowEvent{Type: EventTypeLiquidityRepaid, Reserve: reserve.Address, Obligation: obligation.Address, Account: caller, Amount: calc.RepayAmount})
	return calc.RepayAmount, nil
}

// LiquidateObligation lets a third party repay part of an unhealthy
// obligation's debt and seize discounted collateral in exchange.
func (e *Engine) LiquidateObligation(obligationAddr, repayReserveAddr, withdrawReserveAddr, liquidator crypto.Address, amount uint64) (uint64, uint64, error) {
	if err := e.guard(); err != nil {
		return 0, 0, err
	}
	if e.ledger == nil {
		return 0, 0, ErrNilState
	}
	repayReserve, err := e.freshReserve(repayReserveAddr)
	if err != nil {
		return 0, 0, err
	}
	withdrawReserve, err := e.freshReserve(withdrawReserveAddr)
	if err != nil {
		return 0, 0, err
	}
	obligation, err := e.freshObligation(obligationAddr)
	if err != nil {
		return 0, 0, err
	}
	if err := obligation.VerifyUnhealthy(); err != nil {
		return 0, 0, err
	}
	liquidity, liquidityIndex, err := obligation.FindLiquidity(repayReserve.Address)
	if err != nil {
		return 0, 0, err
	}
	collateral, collateralIndex, err := obligation.FindCollateral(withdrawReserve.Address)
	if err != nil {
		return 0, 0, err
	}
	calc, err := CalculateLiquidation(repayReserve, withdrawReserve, obligation, liquidity, collateral, amount)
	if err != nil {
		return 0, 0, err
	}

	if err := e.ledger.Transfer(repayReserve.Liquidity.Mint, liquidator, repayReserve.Liquidity.Supply, calc.RepayAmount); err != nil {
		return 0, 0, err
	}
	if err := repayReserve.RepayLiquidity(calc.RepayAmount, calc.SettleAmountWads); err != nil {
		return 0, 0, err
	}
	if err := obligation.Repay(liquidityIndex, calc.SettleAmountWads); err != nil {
		return 0, 0, err
	}
	if err := obligation.Withdraw(collateralIndex, calc.WithdrawAmount); err != nil {
		return 0, 0, err
	}
	if err := e.ledger.Transfer(withdrawReserve.Collateral.Mint, withdrawReserve.Collateral.Supply, liquidator, calc.WithdrawAmount); err != nil {
		return 0, 0, err
	}
	if err := e.state.PutReserve(repayReserve); err != nil {
		return 0, 0, err
	}
	if err := e.state.PutObligation(obligation); err != nil {
		return 0, 0, err
	}
	e.emitter.Emit(FlowEvent{Type: EventTypeObligationLiquidated, Reserve: repayReserve.Address, Obligation: obligation.Address, Account: liquidator, Amount: calc.RepayAmount, ResultAmount: calc.WithdrawAmount})
	return calc.RepayAmount, calc.WithdrawAmount, nil
}

package lending

import "lendchain/crypto"

// Event type identifiers as they appear on the event feed.
const (
	EventTypeMarketInitialized     = "lending.market.initialized"
	EventTypeMarketOwnerChanged    = "lending.market.owner_changed"
	EventTypeReserveInitialized    = "lending.reserve.initialized"
	EventTypeReserveRefreshed      = "lending.reserve.refreshed"
	EventTypeObligationInitialized = "lending.obligation.initialized"
	EventTypeObligationRefreshed   = "lending.obligation.refreshed"
	EventTypeLiquidityDeposited    = "lending.liquidity.deposited"
	EventTypeCollateralRedeemed    = "lending.collateral.redeemed"
	EventTypeCollateralDeposited   = "lending.collateral.deposited"
	EventTypeCollateralWithdrawn   = "lending.collateral.withdrawn"
	EventTypeLiquidityBorrowed     = "lending.liquidity.borrowed"
	EventTypeLiquidityRepaid       = "lending.liquidity.repaid"
	EventTypeObligationLiquidated  = "lending.obligation.liquidated"
)

// MarketEvent covers market lifecycle changes.
type MarketEvent struct {
	Type   string
	Market crypto.Address
	Owner  crypto.Address
}

func (e MarketEvent) EventType() string { return e.Type }

// ReserveEvent covers reserve lifecycle and refresh activity.
type ReserveEvent struct {
	Type            string
	Reserve         crypto.Address
	Market          crypto.Address
	Slot            uint64
	MarketPrice     string
	AvailableAmount uint64
}

func (e ReserveEvent) EventType() string { return e.Type }

// ObligationEvent covers obligation lifecycle and refresh activity.
type ObligationEvent struct {
	Type           string
	Obligation     crypto.Address
	Owner          crypto.Address
	Slot           uint64
	DepositedValue string
	BorrowedValue  string
}

func (e ObligationEvent) EventType() string { return e.Type }

// FlowEvent covers every token movement through a reserve: deposits,
// redemptions, collateral moves, borrows, repays and liquidations.
type FlowEvent struct {
	Type       string
	Reserve    crypto.Address
	Obligation crypto.Address
	Account    crypto.Address
	Amount     uint64
	// ResultAmount is the counter-amount of the flow where one exists:
	// collateral minted on deposit, liquidity released on redeem, tokens
	// received on borrow, collateral seized on liquidation.
	ResultAmount uint64
}

func (e FlowEvent) EventType() string { return e.Type }

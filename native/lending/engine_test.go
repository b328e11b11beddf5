package lending

import (
	"testing"

	"github.com/holiman/uint256"

	"lendchain/core/events"
	"lendchain/crypto"
	nativecommon "lendchain/native/common"
)

type mockEngineState struct {
	markets     map[crypto.Address]*LendingMarket
	reserves    map[crypto.Address]*Reserve
	obligations map[crypto.Address]*Obligation
}

func newMockEngineState() *mockEngineState {
	return &mockEngineState{
		markets:     make(map[crypto.Address]*LendingMarket),
		reserves:    make(map[crypto.Address]*Reserve),
		obligations: make(map[crypto.Address]*Obligation),
	}
}

func (m *mockEngineState) GetMarket(addr crypto.Address) (*LendingMarket, error) {
	return m.markets[addr], nil
}

func (m *mockEngineState) PutMarket(market *LendingMarket) error {
	m.markets[market.Address] = market
	return nil
}

func (m *mockEngineState) GetReserve(addr crypto.Address) (*Reserve, error) {
	return m.reserves[addr], nil
}

func (m *mockEngineState) PutReserve(reserve *Reserve) error {
	m.reserves[reserve.Address] = reserve
	return nil
}

func (m *mockEngineState) GetObligation(addr crypto.Address) (*Obligation, error) {
	return m.obligations[addr], nil
}

func (m *mockEngineState) PutObligation(obligation *Obligation) error {
	m.obligations[obligation.Address] = obligation
	return nil
}

type pauseMap map[string]bool

func (p pauseMap) IsPaused(module string) bool { return p[module] }

type engineFixture struct {
	engine *Engine
	state  *mockEngineState
	ledger *MemoryLedger
	oracle *StaticOracle
	events []events.Event
}

func newEngineFixture(t *testing.T) *engineFixture {
	t.Helper()
	f := &engineFixture{
		state:  newMockEngineState(),
		ledger: NewMemoryLedger(),
		oracle: NewStaticOracle(),
	}
	f.engine = NewEngine()
	f.engine.SetState(f.state)
	f.engine.SetLedger(f.ledger)
	f.engine.SetMinter(f.ledger)
	f.engine.SetOracle(f.oracle)
	f.engine.SetEmitter(events.FuncEmitter(func(evt events.Event) {
		f.events = append(f.events, evt)
	}))
	return f
}

func (f *engineFixture) setPrice(t *testing.T, feed [32]byte, whole uint64) {
	t.Helper()
	f.oracle.SetPrice(feed, new(uint256.Int).Mul(wad, uint256.NewInt(whole)), nil, f.engine.Slot())
}

func (f *engineFixture) lastEventType(t *testing.T) string {
	t.Helper()
	if len(f.events) == 0 {
		t.Fatalf("no events emitted")
	}
	return f.events[len(f.events)-1].EventType()
}

func TestEngineMarketLifecycle(t *testing.T) {
	f := newEngineFixture(t)
	owner := testAddr(0xAA)

	market, err := f.engine.InitLendingMarket(owner, usdQuoteCurrency)
	if err != nil {
		t.Fatalf("init market: %v", err)
	}
	if got := f.lastEventType(t); got != EventTypeMarketInitialized {
		t.Fatalf("event = %s", got)
	}
	if _, err := f.engine.InitLendingMarket(owner, usdQuoteCurrency); err != ErrMarketExists {
		t.Fatalf("duplicate market: expected ErrMarketExists, got %v", err)
	}

	next := testAddr(0xBB)
	if err := f.engine.SetMarketOwner(market.Address, next, next); err != ErrInvalidOwner {
		t.Fatalf("non-owner transfer: expected ErrInvalidOwner, got %v", err)
	}
	if err := f.engine.SetMarketOwner(market.Address, owner, owner); err != ErrSameOwner {
		t.Fatalf("self transfer: expected ErrSameOwner, got %v", err)
	}
	if err := f.engine.SetMarketOwner(market.Address, owner, crypto.Address{}); err != ErrInvalidNewOwner {
		t.Fatalf("zero transfer: expected ErrInvalidNewOwner, got %v", err)
	}
	if err := f.engine.SetMarketOwner(market.Address, owner, next); err != nil {
		t.Fatalf("transfer: %v", err)
	}
	if f.state.markets[market.Address].Owner != next {
		t.Fatalf("owner not persisted")
	}
}

func TestEnginePauseGuard(t *testing.T) {
	f := newEngineFixture(t)
	f.engine.SetPauses(pauseMap{moduleName: true})

	if _, err := f.engine.InitLendingMarket(testAddr(0xAA), usdQuoteCurrency); err != nativecommon.ErrModulePaused {
		t.Fatalf("paused module: expected ErrModulePaused, got %v", err)
	}

	// Refresh stays available while paused so positions can still be valued.
	market, _ := NewLendingMarket(testAddr(0xAA), usdQuoteCurrency)
	reserve, err := NewReserve(market, testAddr(0x01), 0, testFeed(0x01), curveConfig(), 0)
	if err != nil {
		t.Fatalf("reserve: %v", err)
	}
	if err := f.state.PutReserve(reserve); err != nil {
		t.Fatalf("seed reserve: %v", err)
	}
	f.setPrice(t, testFeed(0x01), 1)
	if err := f.engine.RefreshReserve(reserve.Address); err != nil {
		t.Fatalf("refresh while paused: %v", err)
	}
}

// setupLendingScenario initialises a market with one reserve of seeded
// liquidity and an obligation whose owner holds pledgeable receipts.
func setupLendingScenario(t *testing.T, f *engineFixture) (market *LendingMarket, reserve *Reserve, obligation *Obligation, owner crypto.Address) {
	t.Helper()
	owner = testAddr(0xAA)
	mint := testAddr(0x01)

	var err error
	market, err = f.engine.InitLendingMarket(owner, usdQuoteCurrency)
	if err != nil {
		t.Fatalf("init market: %v", err)
	}

	f.ledger.Credit(mint, owner, 1_000_000)
	f.setPrice(t, testFeed(0x01), 1)
	reserve, minted, err := f.engine.InitReserve(market.Address, owner, mint, 0, testFeed(0x01), curveConfig(), 500_000)
	if err != nil {
		t.Fatalf("init reserve: %v", err)
	}
	if minted != 500_000 {
		t.Fatalf("initial deposit minted %d receipts, want 500000", minted)
	}

	obligation, err = f.engine.InitObligation(market.Address, owner)
	if err != nil {
		t.Fatalf("init obligation: %v", err)
	}
	return market, reserve, obligation, owner
}

func TestEngineInitReserveChecks(t *testing.T) {
	f := newEngineFixture(t)
	owner := testAddr(0xAA)
	market, err := f.engine.InitLendingMarket(owner, usdQuoteCurrency)
	if err != nil {
		t.Fatalf("init market: %v", err)
	}
	mint := testAddr(0x01)
	f.ledger.Credit(mint, owner, 1_000_000)

	if _, _, err := f.engine.InitReserve(market.Address, testAddr(0xBB), mint, 0, testFeed(0x01), curveConfig(), 1000); err != ErrInvalidOwner {
		t.Fatalf("non-owner: expected ErrInvalidOwner, got %v", err)
	}
	if _, _, err := f.engine.InitReserve(market.Address, owner, mint, 0, testFeed(0x01), curveConfig(), 0); err != ErrInvalidAmount {
		t.Fatalf("zero deposit: expected ErrInvalidAmount, got %v", err)
	}
	// No published price yet.
	if _, _, err := f.engine.InitReserve(market.Address, owner, mint, 0, testFeed(0x01), curveConfig(), 1000); err != ErrInvalidOracle {
		t.Fatalf("missing price: expected ErrInvalidOracle, got %v", err)
	}

	f.setPrice(t, testFeed(0x01), 1)
	if _, _, err := f.engine.InitReserve(market.Address, owner, mint, 0, testFeed(0x01), curveConfig(), 1000); err != nil {
		t.Fatalf("init reserve: %v", err)
	}
	if _, _, err := f.engine.InitReserve(market.Address, owner, mint, 0, testFeed(0x01), curveConfig(), 1000); err != ErrReserveExists {
		t.Fatalf("duplicate: expected ErrReserveExists, got %v", err)
	}
}

func TestEngineStalenessGates(t *testing.T) {
	f := newEngineFixture(t)
	_, reserve, obligation, owner := setupLendingScenario(t, f)

	// Push time past the reserve's freshness window.
	f.engine.SetSlot(MaxStaleSlots + 1)
	if _, err := f.engine.DepositReserveLiquidity(reserve.Address, owner, 1000); err != ErrReserveStale {
		t.Fatalf("stale reserve deposit: expected ErrReserveStale, got %v", err)
	}

	f.setPrice(t, testFeed(0x01), 1)
	if err := f.engine.RefreshReserve(reserve.Address); err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if _, err := f.engine.DepositReserveLiquidity(reserve.Address, owner, 1000); err != nil {
		t.Fatalf("deposit after refresh: %v", err)
	}

	// The deposit dirtied the reserve again. Refresh it so the obligation's
	// own staleness is what gates the borrow.
	if err := f.engine.RefreshReserve(reserve.Address); err != nil {
		t.Fatalf("second refresh: %v", err)
	}
	if _, err := f.engine.BorrowObligationLiquidity(obligation.Address, reserve.Address, owner, crypto.Address{}, 100); err != ErrObligationStale {
		t.Fatalf("stale obligation borrow: expected ErrObligationStale, got %v", err)
	}
}

func TestEngineDepositBorrowRepayFlow(t *testing.T) {
	f := newEngineFixture(t)
	_, reserve, obligation, owner := setupLendingScenario(t, f)

	// Pledge 200k receipts as collateral.
	if err := f.engine.DepositObligationCollateral(obligation.Address, reserve.Address, owner, 200_000); err != nil {
		t.Fatalf("pledge: %v", err)
	}
	if err := f.engine.RefreshObligation(obligation.Address, []crypto.Address{reserve.Address}); err != nil {
		t.Fatalf("refresh obligation: %v", err)
	}

	// LTV 50% of the 200k value allows borrowing 100k.
	received, err := f.engine.BorrowObligationLiquidity(obligation.Address, reserve.Address, owner, crypto.Address{}, 100_000)
	if err != nil {
		t.Fatalf("borrow: %v", err)
	}
	if received != 100_000 {
		t.Fatalf("received = %d, want 100000 with zero fees", received)
	}
	stored := f.state.reserves[reserve.Address]
	if stored.Liquidity.AvailableAmount != 400_000 {
		t.Fatalf("available = %d, want 400000", stored.Liquidity.AvailableAmount)
	}
	if !stored.Liquidity.BorrowedAmountWads.Eq(wadsFromTokens(100_000)) {
		t.Fatalf("borrowed = %s", stored.Liquidity.BorrowedAmountWads.Dec())
	}

	// A second borrow in the same slot sees the reduced capacity.
	if _, err := f.engine.BorrowObligationLiquidity(obligation.Address, reserve.Address, owner, crypto.Address{}, 1); err != ErrReserveStale {
		t.Fatalf("borrow against mutated reserve: expected ErrReserveStale, got %v", err)
	}

	f.setPrice(t, testFeed(0x01), 1)
	if err := f.engine.RefreshReserve(reserve.Address); err != nil {
		t.Fatalf("re-refresh reserve: %v", err)
	}
	// The obligation now carries a deposit and a borrow against the same
	// reserve, so the refresh list names it once per position.
	if err := f.engine.RefreshObligation(obligation.Address, []crypto.Address{reserve.Address, reserve.Address}); err != nil {
		t.Fatalf("re-refresh obligation: %v", err)
	}
	if _, err := f.engine.BorrowObligationLiquidity(obligation.Address, reserve.Address, owner, crypto.Address{}, 1); err != ErrBorrowTooLarge {
		t.Fatalf("borrow past capacity: expected ErrBorrowTooLarge, got %v", err)
	}

	// Full repayment clears the record.
	repaid, err := f.engine.RepayObligationLiquidity(obligation.Address, reserve.Address, owner, AmountAll)
	if err != nil {
		t.Fatalf("repay: %v", err)
	}
	if repaid != 100_000 {
		t.Fatalf("repaid = %d, want 100000", repaid)
	}
	if f.state.obligations[obligation.Address].BorrowsLen() != 0 {
		t.Fatalf("debt record survived full repayment")
	}
	if got := f.lastEventType(t); got != EventTypeLiquidityRepaid {
		t.Fatalf("event = %s", got)
	}
}

func TestEngineWithdrawRespectsBorrowLimit(t *testing.T) {
	f := newEngineFixture(t)
	_, reserve, obligation, owner := setupLendingScenario(t, f)

	if err := f.engine.DepositObligationCollateral(obligation.Address, reserve.Address, owner, 200_000); err != nil {
		t.Fatalf("pledge: %v", err)
	}
	if err := f.engine.RefreshObligation(obligation.Address, []crypto.Address{reserve.Address}); err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if _, err := f.engine.BorrowObligationLiquidity(obligation.Address, reserve.Address, owner, crypto.Address{}, 50_000); err != nil {
		t.Fatalf("borrow: %v", err)
	}
	f.setPrice(t, testFeed(0x01), 1)
	if err := f.engine.RefreshReserve(reserve.Address); err != nil {
		t.Fatalf("refresh reserve: %v", err)
	}
	// One entry per position: the deposit and the borrow share the reserve.
	if err := f.engine.RefreshObligation(obligation.Address, []crypto.Address{reserve.Address, reserve.Address}); err != nil {
		t.Fatalf("refresh obligation: %v", err)
	}

	// 50k borrowed against a 100k allowance pins half the 200k deposit.
	if _, err := f.engine.WithdrawObligationCollateral(obligation.Address, reserve.Address, owner, 150_000); err != ErrWithdrawTooLarge {
		t.Fatalf("over-withdraw: expected ErrWithdrawTooLarge, got %v", err)
	}
	withdrawn, err := f.engine.WithdrawObligationCollateral(obligation.Address, reserve.Address, owner, 100_000)
	if err != nil {
		t.Fatalf("withdraw: %v", err)
	}
	if withdrawn != 100_000 {
		t.Fatalf("withdrawn = %d", withdrawn)
	}

	balance, err := f.ledger.Balance(reserve.Collateral.Mint, owner)
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	if balance != 400_000 {
		t.Fatalf("receipt balance = %d, want 400000", balance)
	}
}

func TestEngineWithdrawAllWithDebtReturnsFreePortion(t *testing.T) {
	f := newEngineFixture(t)
	_, reserve, obligation, owner := setupLendingScenario(t, f)

	if err := f.engine.DepositObligationCollateral(obligation.Address, reserve.Address, owner, 200_000); err != nil {
		t.Fatalf("pledge: %v", err)
	}
	if err := f.engine.RefreshObligation(obligation.Address, []crypto.Address{reserve.Address}); err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if _, err := f.engine.BorrowObligationLiquidity(obligation.Address, reserve.Address, owner, crypto.Address{}, 50_000); err != nil {
		t.Fatalf("borrow: %v", err)
	}
	f.setPrice(t, testFeed(0x01), 1)
	if err := f.engine.RefreshReserve(reserve.Address); err != nil {
		t.Fatalf("refresh reserve: %v", err)
	}
	if err := f.engine.RefreshObligation(obligation.Address, []crypto.Address{reserve.Address, reserve.Address}); err != nil {
		t.Fatalf("refresh obligation: %v", err)
	}

	// The 50k debt pins half the 200k deposit; asking for everything
	// yields the unpinned half rather than an error.
	withdrawn, err := f.engine.WithdrawObligationCollateral(obligation.Address, reserve.Address, owner, AmountAll)
	if err != nil {
		t.Fatalf("withdraw all: %v", err)
	}
	if withdrawn != 100_000 {
		t.Fatalf("withdrawn = %d, want the free half", withdrawn)
	}

	rec, _, err := f.state.obligations[obligation.Address].FindCollateral(reserve.Address)
	if err != nil {
		t.Fatalf("find collateral: %v", err)
	}
	if rec.DepositedAmount != 100_000 {
		t.Fatalf("remaining deposit = %d, want 100000", rec.DepositedAmount)
	}
}

func TestEngineWithdrawAllWithoutDebt(t *testing.T) {
	f := newEngineFixture(t)
	_, reserve, obligation, owner := setupLendingScenario(t, f)

	if err := f.engine.DepositObligationCollateral(obligation.Address, reserve.Address, owner, 200_000); err != nil {
		t.Fatalf("pledge: %v", err)
	}
	if err := f.engine.RefreshObligation(obligation.Address, []crypto.Address{reserve.Address}); err != nil {
		t.Fatalf("refresh: %v", err)
	}
	withdrawn, err := f.engine.WithdrawObligationCollateral(obligation.Address, reserve.Address, owner, AmountAll)
	if err != nil {
		t.Fatalf("withdraw all: %v", err)
	}
	if withdrawn != 200_000 {
		t.Fatalf("withdrawn = %d, want the whole pledge", withdrawn)
	}
	if f.state.obligations[obligation.Address].DepositsLen() != 0 {
		t.Fatalf("collateral record survived full withdrawal")
	}
}

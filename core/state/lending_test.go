package state

import (
	"testing"

	"github.com/holiman/uint256"

	"lendchain/crypto"
	"lendchain/native/lending"
	"lendchain/storage"
)

func testAddr(suffix byte) crypto.Address {
	var a crypto.Address
	a[crypto.AddressLen-1] = suffix
	return a
}

func testFeed(suffix byte) [32]byte {
	var feed [32]byte
	feed[31] = suffix
	return feed
}

func testQuote() [32]byte {
	var q [32]byte
	copy(q[:], "USD")
	return q
}

func testConfig() lending.ReserveConfig {
	return lending.ReserveConfig{
		OptimalUtilizationRate: 80,
		LoanToValueRatio:       50,
		LiquidationBonus:       5,
		LiquidationThreshold:   55,
		MinBorrowRate:          2,
		OptimalBorrowRate:      10,
		MaxBorrowRate:          30,
	}
}

func wadPrice(whole uint64) *uint256.Int {
	return new(uint256.Int).Mul(uint256.NewInt(1e18), uint256.NewInt(whole))
}

func TestLendingStoreMarketRoundTrip(t *testing.T) {
	store := NewLendingStore(storage.NewMemDB())

	missing, err := store.GetMarket(testAddr(0x01))
	if err != nil {
		t.Fatalf("get missing: %v", err)
	}
	if missing != nil {
		t.Fatalf("missing market = %+v, want nil", missing)
	}

	market, err := lending.NewLendingMarket(testAddr(0xAA), testQuote())
	if err != nil {
		t.Fatalf("new market: %v", err)
	}
	if err := store.PutMarket(market); err != nil {
		t.Fatalf("put: %v", err)
	}
	loaded, err := store.GetMarket(market.Address)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if loaded == nil {
		t.Fatalf("market not found after put")
	}
	if loaded.Address != market.Address || loaded.Owner != market.Owner {
		t.Fatalf("identity mismatch: %+v", loaded)
	}
	if loaded.Authority.Address != market.Authority.Address || loaded.Authority.Bump != market.Authority.Bump {
		t.Fatalf("authority mismatch: %+v", loaded.Authority)
	}
	if loaded.QuoteCurrency != market.QuoteCurrency {
		t.Fatalf("quote currency mismatch")
	}
}

func TestLendingStoreReserveRoundTrip(t *testing.T) {
	store := NewLendingStore(storage.NewMemDB())

	market, err := lending.NewLendingMarket(testAddr(0xAA), testQuote())
	if err != nil {
		t.Fatalf("new market: %v", err)
	}
	cfg := testConfig()
	cfg.Fees = lending.ReserveFees{BorrowFeeWad: 10_000_000_000_000_000, FlashLoanFeeWad: 3_000_000_000_000_000, HostFeePercentage: 20}
	reserve, err := lending.NewReserve(market, testAddr(0x01), 6, testFeed(0x01), cfg, 7)
	if err != nil {
		t.Fatalf("new reserve: %v", err)
	}
	if err := reserve.RefreshPrice(wadPrice(2)); err != nil {
		t.Fatalf("price: %v", err)
	}
	if _, err := reserve.DepositLiquidity(5_000_000); err != nil {
		t.Fatalf("deposit: %v", err)
	}
	if err := reserve.BorrowLiquidity(1_000_000); err != nil {
		t.Fatalf("borrow: %v", err)
	}
	reserve.SetSlot(7)

	if err := store.PutReserve(reserve); err != nil {
		t.Fatalf("put: %v", err)
	}
	loaded, err := store.GetReserve(reserve.Address)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if loaded == nil {
		t.Fatalf("reserve not found after put")
	}
	if loaded.Market != reserve.Market || loaded.Liquidity.Mint != reserve.Liquidity.Mint {
		t.Fatalf("identity mismatch: %+v", loaded)
	}
	if loaded.Liquidity.MintDecimals != 6 {
		t.Fatalf("decimals = %d", loaded.Liquidity.MintDecimals)
	}
	if loaded.Liquidity.AvailableAmount != 4_000_000 {
		t.Fatalf("available = %d", loaded.Liquidity.AvailableAmount)
	}
	if !loaded.Liquidity.BorrowedAmountWads.Eq(reserve.Liquidity.BorrowedAmountWads) {
		t.Fatalf("borrowed = %s", loaded.Liquidity.BorrowedAmountWads.Dec())
	}
	if !loaded.Liquidity.MarketPrice.Eq(wadPrice(2)) {
		t.Fatalf("price = %s", loaded.Liquidity.MarketPrice.Dec())
	}
	if loaded.Collateral.Mint != reserve.Collateral.Mint || loaded.Collateral.MintTotalSupply != 5_000_000 {
		t.Fatalf("collateral mismatch: %+v", loaded.Collateral)
	}
	if loaded.Config != cfg {
		t.Fatalf("config mismatch: %+v", loaded.Config)
	}
	if loaded.LastUpdateSlot != 7 || loaded.Stale {
		t.Fatalf("freshness mismatch: slot=%d stale=%v", loaded.LastUpdateSlot, loaded.Stale)
	}
}

func TestLendingStoreObligationRoundTrip(t *testing.T) {
	store := NewLendingStore(storage.NewMemDB())

	obligation, err := lending.NewObligation(testAddr(0xAB), testAddr(0xCD))
	if err != nil {
		t.Fatalf("new obligation: %v", err)
	}
	if err := obligation.DepositCollateral(testAddr(0x01), 1234); err != nil {
		t.Fatalf("deposit: %v", err)
	}
	rate := uint256.NewInt(1_050_000_000_000_000_000)
	if err := obligation.BorrowLiquidity(testAddr(0x02), rate, wadPrice(77)); err != nil {
		t.Fatalf("borrow: %v", err)
	}
	obligation.DepositedValue = wadPrice(1234)
	obligation.BorrowedValue = wadPrice(77)
	obligation.SetSlot(42)

	if err := store.PutObligation(obligation); err != nil {
		t.Fatalf("put: %v", err)
	}
	loaded, err := store.GetObligation(obligation.Address)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if loaded == nil {
		t.Fatalf("obligation not found after put")
	}
	if loaded.Market != obligation.Market || loaded.Owner != obligation.Owner {
		t.Fatalf("identity mismatch: %+v", loaded)
	}
	if loaded.DepositsLen() != 1 || loaded.BorrowsLen() != 1 {
		t.Fatalf("position counts = %d/%d", loaded.DepositsLen(), loaded.BorrowsLen())
	}
	collateral, _, err := loaded.FindCollateral(testAddr(0x01))
	if err != nil {
		t.Fatalf("find collateral: %v", err)
	}
	if collateral.DepositedAmount != 1234 {
		t.Fatalf("deposited = %d", collateral.DepositedAmount)
	}
	liquidity, _, err := loaded.FindLiquidity(testAddr(0x02))
	if err != nil {
		t.Fatalf("find liquidity: %v", err)
	}
	if !liquidity.CumulativeBorrowRateWads.Eq(rate) {
		t.Fatalf("checkpoint = %s", liquidity.CumulativeBorrowRateWads.Dec())
	}
	if !liquidity.BorrowedAmountWads.Eq(wadPrice(77)) {
		t.Fatalf("borrowed = %s", liquidity.BorrowedAmountWads.Dec())
	}
	if loaded.LastUpdateSlot != 42 || loaded.Stale {
		t.Fatalf("freshness mismatch: slot=%d stale=%v", loaded.LastUpdateSlot, loaded.Stale)
	}
}

func TestLendingStoreGetReturnsFreshCopies(t *testing.T) {
	store := NewLendingStore(storage.NewMemDB())

	market, err := lending.NewLendingMarket(testAddr(0xAA), testQuote())
	if err != nil {
		t.Fatalf("new market: %v", err)
	}
	reserve, err := lending.NewReserve(market, testAddr(0x01), 0, testFeed(0x01), testConfig(), 0)
	if err != nil {
		t.Fatalf("new reserve: %v", err)
	}
	if err := reserve.RefreshPrice(wadPrice(1)); err != nil {
		t.Fatalf("price: %v", err)
	}
	if err := store.PutReserve(reserve); err != nil {
		t.Fatalf("put: %v", err)
	}

	// Mutating one loaded copy must not leak into a later load. This is what
	// lets a failed operation abandon its working copy without corrupting
	// committed state.
	first, err := store.GetReserve(reserve.Address)
	if err != nil {
		t.Fatalf("first get: %v", err)
	}
	if _, err := first.DepositLiquidity(999); err != nil {
		t.Fatalf("mutate copy: %v", err)
	}
	first.Liquidity.MarketPrice.SetUint64(5)

	second, err := store.GetReserve(reserve.Address)
	if err != nil {
		t.Fatalf("second get: %v", err)
	}
	if second.Liquidity.AvailableAmount != 0 {
		t.Fatalf("mutation leaked: available = %d", second.Liquidity.AvailableAmount)
	}
	if !second.Liquidity.MarketPrice.Eq(wadPrice(1)) {
		t.Fatalf("mutation leaked: price = %s", second.Liquidity.MarketPrice.Dec())
	}
}

// TestEngineOnLendingStore drives a full lifecycle against the persistent
// store: two reserves, a collateralised borrow, partial repayment, a price
// drop and the resulting liquidation.
func TestEngineOnLendingStore(t *testing.T) {
	store := NewLendingStore(storage.NewMemDB())
	ledger := lending.NewMemoryLedger()
	oracle := lending.NewStaticOracle()

	engine := lending.NewEngine()
	engine.SetState(store)
	engine.SetLedger(ledger)
	engine.SetMinter(ledger)
	engine.SetOracle(oracle)
	engine.SetSlot(0)

	owner := testAddr(0xAA)
	liquidator := testAddr(0xBB)
	collateralMint := testAddr(0x01)
	debtMint := testAddr(0x02)
	ledger.Credit(collateralMint, owner, 10_000)
	ledger.Credit(debtMint, owner, 100_000)
	ledger.Credit(debtMint, liquidator, 10_000)

	oracle.SetPrice(testFeed(0x01), wadPrice(1), nil, 0)
	oracle.SetPrice(testFeed(0x02), wadPrice(1), nil, 0)

	market, err := engine.InitLendingMarket(owner, testQuote())
	if err != nil {
		t.Fatalf("init market: %v", err)
	}
	collateralReserve, _, err := engine.InitReserve(market.Address, owner, collateralMint, 0, testFeed(0x01), testConfig(), 1000)
	if err != nil {
		t.Fatalf("init collateral reserve: %v", err)
	}
	debtReserve, _, err := engine.InitReserve(market.Address, owner, debtMint, 0, testFeed(0x02), testConfig(), 10_000)
	if err != nil {
		t.Fatalf("init debt reserve: %v", err)
	}
	obligation, err := engine.InitObligation(market.Address, owner)
	if err != nil {
		t.Fatalf("init obligation: %v", err)
	}

	// Pledge all 1000 collateral receipts and draw 400 against them.
	if err := engine.DepositObligationCollateral(obligation.Address, collateralReserve.Address, owner, 1000); err != nil {
		t.Fatalf("pledge: %v", err)
	}
	if err := engine.RefreshObligation(obligation.Address, []crypto.Address{collateralReserve.Address}); err != nil {
		t.Fatalf("refresh obligation: %v", err)
	}
	received, err := engine.BorrowObligationLiquidity(obligation.Address, debtReserve.Address, owner, crypto.Address{}, 400)
	if err != nil {
		t.Fatalf("borrow: %v", err)
	}
	if received != 400 {
		t.Fatalf("received = %d, want 400", received)
	}

	refreshAll := func() {
		t.Helper()
		if err := engine.RefreshReserve(collateralReserve.Address); err != nil {
			t.Fatalf("refresh collateral reserve: %v", err)
		}
		if err := engine.RefreshReserve(debtReserve.Address); err != nil {
			t.Fatalf("refresh debt reserve: %v", err)
		}
		if err := engine.RefreshObligation(obligation.Address, []crypto.Address{collateralReserve.Address, debtReserve.Address}); err != nil {
			t.Fatalf("refresh obligation: %v", err)
		}
	}
	refreshAll()

	repaid, err := engine.RepayObligationLiquidity(obligation.Address, debtReserve.Address, owner, 100)
	if err != nil {
		t.Fatalf("repay: %v", err)
	}
	if repaid != 100 {
		t.Fatalf("repaid = %d, want 100", repaid)
	}

	// A healthy position cannot be liquidated.
	refreshAll()
	if _, _, err := engine.LiquidateObligation(obligation.Address, debtReserve.Address, collateralReserve.Address, liquidator, lending.AmountAll); err != lending.ErrObligationHealthy {
		t.Fatalf("healthy liquidation: expected ErrObligationHealthy, got %v", err)
	}

	// Collateral halves in value: 500 deposited against 300 borrowed puts the
	// position past its 55% threshold of 275.
	oracle.SetPrice(testFeed(0x01), uint256.NewInt(500_000_000_000_000_000), nil, 0)
	refreshAll()

	repayAmount, seized, err := engine.LiquidateObligation(obligation.Address, debtReserve.Address, collateralReserve.Address, liquidator, lending.AmountAll)
	if err != nil {
		t.Fatalf("liquidate: %v", err)
	}
	// Close factor halves the 300 debt; the 5% bonus on the 150 repaid value
	// buys 157.5 of collateral value, which is 315 receipts at the new price.
	if repayAmount != 150 {
		t.Fatalf("repay = %d, want 150", repayAmount)
	}
	if seized != 315 {
		t.Fatalf("seized = %d, want 315", seized)
	}

	stored, err := store.GetObligation(obligation.Address)
	if err != nil {
		t.Fatalf("load obligation: %v", err)
	}
	debt, _, err := stored.FindLiquidity(debtReserve.Address)
	if err != nil {
		t.Fatalf("find debt: %v", err)
	}
	if debt.BorrowedAmountWads.Dec() != "150000000000000000000" {
		t.Fatalf("remaining debt = %s, want 150 tokens", debt.BorrowedAmountWads.Dec())
	}
	collateral, _, err := stored.FindCollateral(collateralReserve.Address)
	if err != nil {
		t.Fatalf("find collateral: %v", err)
	}
	if collateral.DepositedAmount != 685 {
		t.Fatalf("remaining collateral = %d, want 685", collateral.DepositedAmount)
	}

	balance, err := ledger.Balance(collateralReserve.Collateral.Mint, liquidator)
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	if balance != 315 {
		t.Fatalf("liquidator receipts = %d, want 315", balance)
	}
}

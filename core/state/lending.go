package state

import (
	"github.com/ethereum/go-ethereum/rlp"
	"github.com/holiman/uint256"

	"lendchain/crypto"
	"lendchain/native/lending"
	"lendchain/storage"
)

var (
	lendingMarketPrefix     = []byte("lending/market/")
	lendingReservePrefix    = []byte("lending/reserve/")
	lendingObligationPrefix = []byte("lending/obligation/")
)

// LendingStore persists lending records in a key-value backend using RLP
// encoding. Every Get decodes a fresh copy, so callers can mutate freely and
// abandon the copy on error without touching committed state.
type LendingStore struct {
	db storage.Database
}

func NewLendingStore(db storage.Database) *LendingStore {
	return &LendingStore{db: db}
}

func lendingKey(prefix []byte, addr crypto.Address) []byte {
	key := make([]byte, 0, len(prefix)+crypto.AddressLen)
	key = append(key, prefix...)
	return append(key, addr.Bytes()...)
}

type storedMarket struct {
	Address       crypto.Address
	Owner         crypto.Address
	Authority     crypto.Address
	AuthorityBump uint8
	QuoteCurrency [32]byte
}

type storedReserve struct {
	Address crypto.Address
	Market  crypto.Address

	LiquidityMint            crypto.Address
	LiquidityMintDecimals    uint8
	LiquiditySupply          crypto.Address
	LiquidityFeeReceiver     crypto.Address
	OracleFeed               [32]byte
	AvailableAmount          uint64
	BorrowedAmountWads       *uint256.Int
	CumulativeBorrowRateWads *uint256.Int
	MarketPrice              *uint256.Int

	CollateralMint            crypto.Address
	CollateralMintTotalSupply uint64
	CollateralSupply          crypto.Address

	Config         storedReserveConfig
	LastUpdateSlot uint64
	Stale          bool
}

type storedReserveConfig struct {
	OptimalUtilizationRate uint8
	LoanToValueRatio       uint8
	LiquidationBonus       uint8
	LiquidationThreshold   uint8
	MinBorrowRate          uint8
	OptimalBorrowRate      uint8
	MaxBorrowRate          uint8
	BorrowFeeWad           uint64
	FlashLoanFeeWad        uint64
	HostFeePercentage      uint8
}

type storedObligation struct {
	Address crypto.Address
	Market  crypto.Address
	Owner   crypto.Address

	DepositedValue       *uint256.Int
	BorrowedValue        *uint256.Int
	AllowedBorrowValue   *uint256.Int
	UnhealthyBorrowValue *uint256.Int

	DepositsLen uint8
	BorrowsLen  uint8
	Positions   []byte

	LastUpdateSlot uint64
	Stale          bool
}

func (s *LendingStore) get(key []byte, out interface{}) (bool, error) {
	data, err := s.db.Get(key)
	if err == storage.ErrKeyNotFound {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := rlp.DecodeBytes(data, out); err != nil {
		return false, err
	}
	return true, nil
}

func (s *LendingStore) put(key []byte, value interface{}) error {
	encoded, err := rlp.EncodeToBytes(value)
	if err != nil {
		return err
	}
	return s.db.Put(key, encoded)
}

// GetMarket loads a lending market, or nil when absent.
func (s *LendingStore) GetMarket(addr crypto.Address) (*lending.LendingMarket, error) {
	stored := new(storedMarket)
	ok, err := s.get(lendingKey(lendingMarketPrefix, addr), stored)
	if err != nil || !ok {
		return nil, err
	}
	return &lending.LendingMarket{
		Address: stored.Address,
		Owner:   stored.Owner,
		Authority: crypto.Authority{
			Address: stored.Authority,
			Bump:    stored.AuthorityBump,
		},
		QuoteCurrency: stored.QuoteCurrency,
	}, nil
}

// PutMarket writes a lending market.
func (s *LendingStore) PutMarket(market *lending.LendingMarket) error {
	stored := &storedMarket{
		Address:       market.Address,
		Owner:         market.Owner,
		Authority:     market.Authority.Address,
		AuthorityBump: market.Authority.Bump,
		QuoteCurrency: market.QuoteCurrency,
	}
	return s.put(lendingKey(lendingMarketPrefix, market.Address), stored)
}

// GetReserve loads a reserve, or nil when absent.
func (s *LendingStore) GetReserve(addr crypto.Address) (*lending.Reserve, error) {
	stored := new(storedReserve)
	ok, err := s.get(lendingKey(lendingReservePrefix, addr), stored)
	if err != nil || !ok {
		return nil, err
	}
	return &lending.Reserve{
		Address: stored.Address,
		Market:  stored.Market,
		Liquidity: lending.ReserveLiquidity{
			Mint:                     stored.LiquidityMint,
			MintDecimals:             stored.LiquidityMintDecimals,
			Supply:                   stored.LiquiditySupply,
			FeeReceiver:              stored.LiquidityFeeReceiver,
			OracleFeed:               stored.OracleFeed,
			AvailableAmount:          stored.AvailableAmount,
			BorrowedAmountWads:       cloneOrZero(stored.BorrowedAmountWads),
			CumulativeBorrowRateWads: cloneOrZero(stored.CumulativeBorrowRateWads),
			MarketPrice:              cloneOrZero(stored.MarketPrice),
		},
		Collateral: lending.ReserveCollateral{
			Mint:            stored.CollateralMint,
			MintTotalSupply: stored.CollateralMintTotalSupply,
			Supply:          stored.CollateralSupply,
		},
		Config: lending.ReserveConfig{
			OptimalUtilizationRate: stored.Config.OptimalUtilizationRate,
			LoanToValueRatio:       stored.Config.LoanToValueRatio,
			LiquidationBonus:       stored.Config.LiquidationBonus,
			LiquidationThreshold:   stored.Config.LiquidationThreshold,
			MinBorrowRate:          stored.Config.MinBorrowRate,
			OptimalBorrowRate:      stored.Config.OptimalBorrowRate,
			MaxBorrowRate:          stored.Config.MaxBorrowRate,
			Fees: lending.ReserveFees{
				BorrowFeeWad:      stored.Config.BorrowFeeWad,
				FlashLoanFeeWad:   stored.Config.FlashLoanFeeWad,
				HostFeePercentage: stored.Config.HostFeePercentage,
			},
		},
		LastUpdateSlot: stored.LastUpdateSlot,
		Stale:          stored.Stale,
	}, nil
}

// PutReserve writes a reserve.
func (s *LendingStore) PutReserve(reserve *lending.Reserve) error {
	stored := &storedReserve{
		Address:                   reserve.Address,
		Market:                    reserve.Market,
		LiquidityMint:             reserve.Liquidity.Mint,
		LiquidityMintDecimals:     reserve.Liquidity.MintDecimals,
		LiquiditySupply:           reserve.Liquidity.Supply,
		LiquidityFeeReceiver:      reserve.Liquidity.FeeReceiver,
		OracleFeed:                reserve.Liquidity.OracleFeed,
		AvailableAmount:           reserve.Liquidity.AvailableAmount,
		BorrowedAmountWads:        cloneOrZero(reserve.Liquidity.BorrowedAmountWads),
		CumulativeBorrowRateWads:  cloneOrZero(reserve.Liquidity.CumulativeBorrowRateWads),
		MarketPrice:               cloneOrZero(reserve.Liquidity.MarketPrice),
		CollateralMint:            reserve.Collateral.Mint,
		CollateralMintTotalSupply: reserve.Collateral.MintTotalSupply,
		CollateralSupply:          reserve.Collateral.Supply,
		Config: storedReserveConfig{
			OptimalUtilizationRate: reserve.Config.OptimalUtilizationRate,
			LoanToValueRatio:       reserve.Config.LoanToValueRatio,
			LiquidationBonus:       reserve.Config.LiquidationBonus,
			LiquidationThreshold:   reserve.Config.LiquidationThreshold,
			MinBorrowRate:          reserve.Config.MinBorrowRate,
			OptimalBorrowRate:      reserve.Config.OptimalBorrowRate,
			MaxBorrowRate:          reserve.Config.MaxBorrowRate,
			BorrowFeeWad:           reserve.Config.Fees.BorrowFeeWad,
			FlashLoanFeeWad:        reserve.Config.Fees.FlashLoanFeeWad,
			HostFeePercentage:      reserve.Config.Fees.HostFeePercentage,
		},
		LastUpdateSlot: reserve.LastUpdateSlot,
		Stale:          reserve.Stale,
	}
	return s.put(lendingKey(lendingReservePrefix, reserve.Address), stored)
}

// GetObligation loads an obligation, or nil when absent. The packed position
// buffer is validated against its counters during restore.
func (s *LendingStore) GetObligation(addr crypto.Address) (*lending.Obligation, error) {
	stored := new(storedObligation)
	ok, err := s.get(lendingKey(lendingObligationPrefix, addr), stored)
	if err != nil || !ok {
		return nil, err
	}
	return lending.RestoreObligation(
		stored.Address, stored.Market, stored.Owner,
		stored.DepositedValue, stored.BorrowedValue,
		stored.AllowedBorrowValue, stored.UnhealthyBorrowValue,
		stored.Positions, stored.DepositsLen, stored.BorrowsLen,
		stored.LastUpdateSlot, stored.Stale,
	)
}

// PutObligation writes an obligation with its packed position buffer.
func (s *LendingStore) PutObligation(obligation *lending.Obligation) error {
	positions, depositsLen, borrowsLen := obligation.PositionData()
	stored := &storedObligation{
		Address:              obligation.Address,
		Market:               obligation.Market,
		Owner:                obligation.Owner,
		DepositedValue:       cloneOrZero(obligation.DepositedValue),
		BorrowedValue:        cloneOrZero(obligation.BorrowedValue),
		AllowedBorrowValue:   cloneOrZero(obligation.AllowedBorrowValue),
		UnhealthyBorrowValue: cloneOrZero(obligation.UnhealthyBorrowValue),
		DepositsLen:          depositsLen,
		BorrowsLen:           borrowsLen,
		Positions:            positions,
		LastUpdateSlot:       obligation.LastUpdateSlot,
		Stale:                obligation.Stale,
	}
	return s.put(lendingKey(lendingObligationPrefix, obligation.Address), stored)
}

func cloneOrZero(z *uint256.Int) *uint256.Int {
	if z == nil {
		return new(uint256.Int)
	}
	return new(uint256.Int).Set(z)
}

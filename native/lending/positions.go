package lending

import (
	"encoding/binary"

	"github.com/holiman/uint256"

	"lendchain/crypto"
)

// Obligation positions live in one packed little-endian byte buffer: all
// collateral records first, then all borrow records, with offsets computed
// from the two length counters alone. The layout survives serialization
// untouched, so the store is also the wire format.
const (
	collateralRecordLen = crypto.AddressLen + 8 + 16
	liquidityRecordLen  = crypto.AddressLen + 16 + 16 + 16
)

// ObligationCollateral is one deposited position within an obligation.
type ObligationCollateral struct {
	DepositReserve  crypto.Address
	DepositedAmount uint64
	MarketValue     *uint256.Int
}

// ObligationLiquidity is one borrow position within an obligation. The
// cumulative rate field snapshots the reserve's rate at the last accrual, so
// interest owed is the growth of that rate since the snapshot.
type ObligationLiquidity struct {
	BorrowReserve            crypto.Address
	CumulativeBorrowRateWads *uint256.Int
	BorrowedAmountWads       *uint256.Int
	MarketValue              *uint256.Int
}

type positionStore struct {
	buf         []byte
	depositsLen uint8
	borrowsLen  uint8
}

func newPositionStore() *positionStore {
	return &positionStore{}
}

// loadPositionStore adopts a serialized buffer, checking only that its length
// matches the counters. Record contents are trusted as previously validated.
func loadPositionStore(buf []byte, depositsLen, borrowsLen uint8) (*positionStore, error) {
	if int(depositsLen)+int(borrowsLen) > MaxObligationReserves {
		return nil, ErrInvalidObligationData
	}
	want := int(depositsLen)*collateralRecordLen + int(borrowsLen)*liquidityRecordLen
	if len(buf) != want {
		return nil, ErrInvalidObligationData
	}
	return &positionStore{
		buf:         append([]byte(nil), buf...),
		depositsLen: depositsLen,
		borrowsLen:  borrowsLen,
	}, nil
}

func (s *positionStore) bytes() []byte {
	return append([]byte(nil), s.buf...)
}

func (s *positionStore) count() int {
	return int(s.depositsLen) + int(s.borrowsLen)
}

func (s *positionStore) collateralOffset(index int) int {
	return index * collateralRecordLen
}

func (s *positionStore) liquidityOffset(index int) int {
	return int(s.depositsLen)*collateralRecordLen + index*liquidityRecordLen
}

func putU128(b []byte, z *uint256.Int) {
	binary.LittleEndian.PutUint64(b[0:8], z[0])
	binary.LittleEndian.PutUint64(b[8:16], z[1])
}

func getU128(b []byte) *uint256.Int {
	z := new(uint256.Int)
	z[0] = binary.LittleEndian.Uint64(b[0:8])
	z[1] = binary.LittleEndian.Uint64(b[8:16])
	return z
}

func (s *positionStore) collateralAt(index int) (ObligationCollateral, error) {
	if index < 0 || index >= int(s.depositsLen) {
		return ObligationCollateral{}, ErrInvalidObligationIndex
	}
	b := s.buf[s.collateralOffset(index):]
	return ObligationCollateral{
		DepositReserve:  crypto.NewAddress(b[:crypto.AddressLen]),
		DepositedAmount: binary.LittleEndian.Uint64(b[crypto.AddressLen : crypto.AddressLen+8]),
		MarketValue:     getU128(b[crypto.AddressLen+8 : collateralRecordLen]),
	}, nil
}

func (s *positionStore) liquidityAt(index int) (ObligationLiquidity, error) {
	if index < 0 || index >= int(s.borrowsLen) {
		return ObligationLiquidity{}, ErrInvalidObligationIndex
	}
	b := s.buf[s.liquidityOffset(index):]
	return ObligationLiquidity{
		BorrowReserve:            crypto.NewAddress(b[:crypto.AddressLen]),
		CumulativeBorrowRateWads: getU128(b[crypto.AddressLen : crypto.AddressLen+16]),
		BorrowedAmountWads:       getU128(b[crypto.AddressLen+16 : crypto.AddressLen+32]),
		MarketValue:              getU128(b[crypto.AddressLen+32 : liquidityRecordLen]),
	}, nil
}

func (s *positionStore) setCollateral(index int, rec ObligationCollateral) error {
	if index < 0 || index >= int(s.depositsLen) {
		return ErrInvalidObligationIndex
	}
	b := s.buf[s.collateralOffset(index):]
	copy(b[:crypto.AddressLen], rec.DepositReserve.Bytes())
	binary.LittleEndian.PutUint64(b[crypto.AddressLen:crypto.AddressLen+8], rec.DepositedAmount)
	putU128(b[crypto.AddressLen+8:collateralRecordLen], rec.MarketValue)
	return nil
}

func (s *positionStore) setLiquidity(index int, rec ObligationLiquidity) error {
	if index < 0 || index >= int(s.borrowsLen) {
		return ErrInvalidObligationIndex
	}
	b := s.buf[s.liquidityOffset(index):]
	copy(b[:crypto.AddressLen], rec.BorrowReserve.Bytes())
	putU128(b[crypto.AddressLen:crypto.AddressLen+16], rec.CumulativeBorrowRateWads)
	putU128(b[crypto.AddressLen+16:crypto.AddressLen+32], rec.BorrowedAmountWads)
	putU128(b[crypto.AddressLen+32:liquidityRecordLen], rec.MarketValue)
	return nil
}

// findCollateral scans deposits in storage order.
func (s *positionStore) findCollateral(reserve crypto.Address) (ObligationCollateral, int, error) {
	for i := 0; i < int(s.depositsLen); i++ {
		rec, err := s.collateralAt(i)
		if err != nil {
			return ObligationCollateral{}, 0, err
		}
		if rec.DepositReserve.Equal(reserve) {
			return rec, i, nil
		}
	}
	return ObligationCollateral{}, 0, ErrPositionNotFound
}

// findLiquidity scans borrows in storage order.
func (s *positionStore) findLiquidity(reserve crypto.Address) (ObligationLiquidity, int, error) {
	for i := 0; i < int(s.borrowsLen); i++ {
		rec, err := s.liquidityAt(i)
		if err != nil {
			return ObligationLiquidity{}, 0, err
		}
		if rec.BorrowReserve.Equal(reserve) {
			return rec, i, nil
		}
	}
	return ObligationLiquidity{}, 0, ErrPositionNotFound
}

// findOrAddCollateral returns the existing position for reserve, or splices a
// zero-initialized record at the end of the collateral block, in front of any
// borrow records.
func (s *positionStore) findOrAddCollateral(reserve crypto.Address) (ObligationCollateral, int, error) {
	rec, index, err := s.findCollateral(reserve)
	if err == nil {
		return rec, index, nil
	}
	if err != ErrPositionNotFound {
		return ObligationCollateral{}, 0, err
	}
	if s.count() >= MaxObligationReserves {
		return ObligationCollateral{}, 0, ErrObligationReserveLimit
	}
	index = int(s.depositsLen)
	offset := s.collateralOffset(index)
	s.buf = append(s.buf, make([]byte, collateralRecordLen)...)
	copy(s.buf[offset+collateralRecordLen:], s.buf[offset:len(s.buf)-collateralRecordLen])
	clearBytes(s.buf[offset : offset+collateralRecordLen])
	s.depositsLen++

	rec = ObligationCollateral{DepositReserve: reserve, MarketValue: new(uint256.Int)}
	if err := s.setCollateral(index, rec); err != nil {
		return ObligationCollateral{}, 0, err
	}
	return rec, index, nil
}

// findOrAddLiquidity returns the existing position for reserve, or appends a
// new record seeded with the reserve's current cumulative rate so no interest
// accrues from before the borrow existed.
func (s *positionStore) findOrAddLiquidity(reserve crypto.Address, cumulativeRate *uint256.Int) (ObligationLiquidity, int, error) {
	rec, index, err := s.findLiquidity(reserve)
	if err == nil {
		return rec, index, nil
	}
	if err != ErrPositionNotFound {
		return ObligationLiquidity{}, 0, err
	}
	if s.count() >= MaxObligationReserves {
		return ObligationLiquidity{}, 0, ErrObligationReserveLimit
	}
	index = int(s.borrowsLen)
	s.buf = append(s.buf, make([]byte, liquidityRecordLen)...)
	s.borrowsLen++

	rec = ObligationLiquidity{
		BorrowReserve:            reserve,
		CumulativeBorrowRateWads: new(uint256.Int).Set(cumulativeRate),
		BorrowedAmountWads:       new(uint256.Int),
		MarketValue:              new(uint256.Int),
	}
	if err := s.setLiquidity(index, rec); err != nil {
		return ObligationLiquidity{}, 0, err
	}
	return rec, index, nil
}

// removeCollateral drains the record's bytes and compacts everything after it,
// preserving the relative order of the surviving records.
func (s *positionStore) removeCollateral(index int) error {
	if index < 0 || index >= int(s.depositsLen) {
		return ErrInvalidObligationIndex
	}
	offset := s.collateralOffset(index)
	s.buf = append(s.buf[:offset], s.buf[offset+collateralRecordLen:]...)
	s.depositsLen--
	return nil
}

// removeLiquidity drains a borrow record the same way.
func (s *positionStore) removeLiquidity(index int) error {
	if index < 0 || index >= int(s.borrowsLen) {
		return ErrInvalidObligationIndex
	}
	offset := s.liquidityOffset(index)
	s.buf = append(s.buf[:offset], s.buf[offset+liquidityRecordLen:]...)
	s.borrowsLen--
	return nil
}

func clearBytes(b []byte) {
	for i := range b {
		b[i] = 0
	}
}

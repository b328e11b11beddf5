package lending

import (
	"math"
	"sync"

	"lendchain/crypto"
)

// AssetLedger is the token sub-ledger the engine moves funds through. The
// engine never inspects balances beyond what an operation transfers; custody
// rules live behind this interface.
type AssetLedger interface {
	// Transfer moves amount of asset from one account to another. The caller
	// has already established authority over the source account.
	Transfer(asset, from, to crypto.Address, amount uint64) error
	// Balance reports the spendable amount of asset held by account.
	Balance(asset, account crypto.Address) (uint64, error)
}

// CollateralMinter mints and burns collateral-receipt tokens. Minting demands
// the market authority so only the engine acting for a market can expand a
// receipt supply.
type CollateralMinter interface {
	Mint(mint, to crypto.Address, amount uint64, authority crypto.Authority) error
	Burn(mint, from crypto.Address, amount uint64) error
}

// MemoryLedger is an in-memory AssetLedger and CollateralMinter. The daemon
// runs on it directly; consensus deployments swap in the chain's ledger.
type MemoryLedger struct {
	mu       sync.RWMutex
	balances map[balanceKey]uint64
}

type balanceKey struct {
	asset   crypto.Address
	account crypto.Address
}

func NewMemoryLedger() *MemoryLedger {
	return &MemoryLedger{balances: make(map[balanceKey]uint64)}
}

// Credit funds an account outside any transfer, for genesis and tests.
func (l *MemoryLedger) Credit(asset, account crypto.Address, amount uint64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.balances[balanceKey{asset, account}] += amount
}

func (l *MemoryLedger) Transfer(asset, from, to crypto.Address, amount uint64) error {
	if amount == 0 {
		return nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	fromKey := balanceKey{asset, from}
	if l.balances[fromKey] < amount {
		return ErrInsufficientBalance
	}
	toKey := balanceKey{asset, to}
	if l.balances[toKey] > math.MaxUint64-amount {
		return ErrMathOverflow
	}
	l.balances[fromKey] -= amount
	l.balances[toKey] += amount
	return nil
}

func (l *MemoryLedger) Balance(asset, account crypto.Address) (uint64, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.balances[balanceKey{asset, account}], nil
}

func (l *MemoryLedger) Mint(mint, to crypto.Address, amount uint64, authority crypto.Authority) error {
	if authority.Address.IsZero() {
		return ErrInvalidOwner
	}
	if amount == 0 {
		return nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	key := balanceKey{mint, to}
	if l.balances[key] > math.MaxUint64-amount {
		return ErrMathOverflow
	}
	l.balances[key] += amount
	return nil
}

func (l *MemoryLedger) Burn(mint, from crypto.Address, amount uint64) error {
	if amount == 0 {
		return nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	key := balanceKey{mint, from}
	if l.balances[key] < amount {
		return ErrInsufficientBalance
	}
	l.balances[key] -= amount
	return nil
}

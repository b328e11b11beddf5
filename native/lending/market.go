package lending

import (
	"bytes"

	"lendchain/crypto"
)

// Quote currencies a market may denominate values in. A currency is either a
// left-justified zero-padded ASCII symbol ("USD") or a 32-byte feed
// identifier; the all-zero value is rejected.
var usdQuoteCurrency = func() [32]byte {
	var q [32]byte
	copy(q[:], "USD")
	return q
}()

// LendingMarket is the root entity of a deployment. Every reserve and
// obligation belongs to exactly one market, and cross-market positions are
// never mixed.
type LendingMarket struct {
	// Address is the market's derived identity.
	Address crypto.Address
	// Owner may initialise reserves and hand the market to a new owner.
	Owner crypto.Address
	// Authority signs for the market's vaults and mints.
	Authority crypto.Authority
	// QuoteCurrency denominates every value calculation in the market.
	QuoteCurrency [32]byte
}

// NewLendingMarket derives the market identity and its signing authority for
// the given owner and quote currency.
func NewLendingMarket(owner crypto.Address, quoteCurrency [32]byte) (*LendingMarket, error) {
	if owner.IsZero() {
		return nil, ErrInvalidOwner
	}
	if err := validateQuoteCurrency(quoteCurrency); err != nil {
		return nil, err
	}
	addr := crypto.DeriveAddress(marketSeedPrefix, owner.Bytes(), quoteCurrency[:])
	authority := crypto.DeriveAuthority(addr)
	return &LendingMarket{
		Address:       addr,
		Owner:         owner,
		Authority:     authority,
		QuoteCurrency: quoteCurrency,
	}, nil
}

// SetOwner transfers control of the market. The zero address and the current
// owner are both rejected so a transfer is always an observable change.
func (m *LendingMarket) SetOwner(current, next crypto.Address) error {
	if !m.Owner.Equal(current) {
		return ErrInvalidOwner
	}
	if next.IsZero() {
		return ErrInvalidNewOwner
	}
	if m.Owner.Equal(next) {
		return ErrSameOwner
	}
	m.Owner = next
	return nil
}

func validateQuoteCurrency(q [32]byte) error {
	var zero [32]byte
	if bytes.Equal(q[:], zero[:]) {
		return ErrInvalidQuoteCurrency
	}
	// Symbol form: alphanumeric ASCII, left-justified, zero padding only.
	length := 0
	symbol := true
	for i, c := range q {
		if c == 0 {
			length = i
			break
		}
		length = i + 1
		if !isAlphanumeric(c) {
			symbol = false
			break
		}
	}
	if symbol {
		for _, c := range q[length:] {
			if c != 0 {
				symbol = false
				break
			}
		}
	}
	if symbol {
		return nil
	}
	// Otherwise the currency must look like an opaque 32-byte identifier
	// rather than a corrupted symbol.
	nonZero := 0
	for _, c := range q {
		if c != 0 {
			nonZero++
		}
	}
	if nonZero < 20 {
		return ErrInvalidQuoteCurrency
	}
	return nil
}

func isAlphanumeric(c byte) bool {
	return (c >= 'A' && c <= 'Z') || (c >= 'a' && c <= 'z') || (c >= '0' && c <= '9')
}

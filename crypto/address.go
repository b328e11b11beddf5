package crypto

import (
	"bytes"
	"encoding/hex"
	"fmt"

	"github.com/btcsuite/btcutil/bech32"
)

// AddressLen is the raw byte length of every protocol address. Markets,
// reserves, obligations, vaults and mints all share the same 32-byte
// identifier space.
const AddressLen = 32

// AddressPrefix is the human-readable part used when rendering addresses.
type AddressPrefix string

const (
	// AccountPrefix identifies user and entity addresses.
	AccountPrefix AddressPrefix = "lend"
	// AuthorityPrefix identifies derived vault authorities.
	AuthorityPrefix AddressPrefix = "lendauth"
)

// Address is a 32-byte protocol identifier rendered as bech32.
type Address [AddressLen]byte

// NewAddress copies b into an Address. It panics when b is not exactly 32
// bytes long; callers decode external input through DecodeAddress instead.
func NewAddress(b []byte) Address {
	if len(b) != AddressLen {
		panic("address must be 32 bytes long")
	}
	var a Address
	copy(a[:], b)
	return a
}

// Bytes returns the raw 32-byte value.
func (a Address) Bytes() []byte {
	return a[:]
}

// IsZero reports whether every byte of the address is zero.
func (a Address) IsZero() bool {
	return a == Address{}
}

// Equal reports byte equality with other.
func (a Address) Equal(other Address) bool {
	return bytes.Equal(a[:], other[:])
}

func (a Address) String() string {
	conv, err := bech32.ConvertBits(a[:], 8, 5, true)
	if err != nil {
		panic(err)
	}
	encoded, err := bech32.Encode(string(AccountPrefix), conv)
	if err != nil {
		panic(err)
	}
	return encoded
}

// Hex returns the address as a 0x-prefixed hex string.
func (a Address) Hex() string {
	return "0x" + hex.EncodeToString(a[:])
}

// DecodeAddress parses a bech32-encoded protocol address.
func DecodeAddress(addrStr string) (Address, error) {
	prefix, decoded, err := bech32.Decode(addrStr)
	if err != nil {
		return Address{}, fmt.Errorf("invalid bech32 string: %w", err)
	}
	if prefix != string(AccountPrefix) && prefix != string(AuthorityPrefix) {
		return Address{}, fmt.Errorf("unexpected address prefix %q", prefix)
	}
	conv, err := bech32.ConvertBits(decoded, 5, 8, false)
	if err != nil {
		return Address{}, fmt.Errorf("error converting bits: %w", err)
	}
	if len(conv) != AddressLen {
		return Address{}, fmt.Errorf("address must be %d bytes, got %d", AddressLen, len(conv))
	}
	return NewAddress(conv), nil
}

// DecodeHexAddress parses a 0x-prefixed or bare hex address.
func DecodeHexAddress(s string) (Address, error) {
	if len(s) >= 2 && s[0] == '0' && (s[1] == 'x' || s[1] == 'X') {
		s = s[2:]
	}
	raw, err := hex.DecodeString(s)
	if err != nil {
		return Address{}, fmt.Errorf("invalid hex address: %w", err)
	}
	if len(raw) != AddressLen {
		return Address{}, fmt.Errorf("address must be %d bytes, got %d", AddressLen, len(raw))
	}
	return NewAddress(raw), nil
}

package crypto

import (
	"lukechampine.com/blake3"
)

// Authority is a derived signing identity for a market's vaults. It is not a
// held secret: any party can recompute the address from the market id, and the
// bump records which derivation attempt produced it. Holding an Authority
// value is what grants transfer and mint capabilities the right to act as the
// derived identity, so engines pass it explicitly rather than reading ambient
// state.
type Authority struct {
	Address Address
	Bump    uint8
}

// DeriveAddress produces a deterministic 32-byte address from a seed prefix
// and its parts. Entity ids (markets, reserves, obligations, vaults) are all
// derived this way so related records can be located without stored pointers.
func DeriveAddress(prefix string, parts ...[]byte) Address {
	h := blake3.New(AddressLen, nil)
	h.Write([]byte(prefix))
	for _, part := range parts {
		h.Write(part)
	}
	var a Address
	copy(a[:], h.Sum(nil))
	return a
}

// DeriveAuthority computes the vault authority for a lending market. The bump
// is incremented until the derived address is non-zero, mirroring how on-chain
// derivation retries until it lands off the curve; with a 32-byte hash the
// first attempt virtually always succeeds.
func DeriveAuthority(market Address) Authority {
	for bump := 0; bump <= 255; bump++ {
		addr := DeriveAddress("lending-market-auth", market.Bytes(), []byte{byte(bump)})
		if !addr.IsZero() {
			return Authority{Address: addr, Bump: uint8(bump)}
		}
	}
	// Unreachable: 256 consecutive zero hashes cannot happen.
	return Authority{}
}

// Package genesis seeds the daemon's oracle and ledger from a TOML file so a
// fresh deployment starts with published prices and funded accounts.
package genesis

import (
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/holiman/uint256"

	"lendchain/crypto"
	"lendchain/native/lending"
)

// Genesis is the bootstrap state applied before the daemon serves requests.
type Genesis struct {
	Prices   []PriceEntry   `toml:"prices"`
	Balances []BalanceEntry `toml:"balances"`
}

// PriceEntry publishes one oracle reading at startup.
type PriceEntry struct {
	// Feed is the 32-byte feed id in hex, with or without a 0x prefix.
	Feed string `toml:"feed"`
	// PriceWad is the WAD-scaled price as a decimal string.
	PriceWad string `toml:"price_wad"`
	// ConfidenceWad optionally bounds the reading's confidence interval.
	ConfidenceWad string `toml:"confidence_wad"`
}

// BalanceEntry funds one account on the in-memory ledger.
type BalanceEntry struct {
	Asset   string `toml:"asset"`
	Account string `toml:"account"`
	Amount  uint64 `toml:"amount"`
}

// Load parses the genesis file. Unknown keys are rejected so typos do not
// silently drop bootstrap state.
func Load(path string) (*Genesis, error) {
	var g Genesis
	meta, err := toml.DecodeFile(path, &g)
	if err != nil {
		return nil, fmt.Errorf("decode genesis: %w", err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return nil, fmt.Errorf("genesis: unknown key %q", undecoded[0].String())
	}
	return &g, nil
}

// Apply publishes every price at the given slot and credits every balance.
func (g *Genesis) Apply(oracle *lending.StaticOracle, ledger *lending.MemoryLedger, slot uint64) error {
	for i, entry := range g.Prices {
		feed, err := parseFeed(entry.Feed)
		if err != nil {
			return fmt.Errorf("genesis: price %d: %w", i, err)
		}
		price, err := parseWad(entry.PriceWad)
		if err != nil {
			return fmt.Errorf("genesis: price %d: %w", i, err)
		}
		var confidence *uint256.Int
		if strings.TrimSpace(entry.ConfidenceWad) != "" {
			if confidence, err = parseWad(entry.ConfidenceWad); err != nil {
				return fmt.Errorf("genesis: price %d: %w", i, err)
			}
		}
		oracle.SetPrice(feed, price, confidence, slot)
	}
	for i, entry := range g.Balances {
		asset, err := parseAddress(entry.Asset)
		if err != nil {
			return fmt.Errorf("genesis: balance %d: %w", i, err)
		}
		account, err := parseAddress(entry.Account)
		if err != nil {
			return fmt.Errorf("genesis: balance %d: %w", i, err)
		}
		if entry.Amount == 0 {
			return fmt.Errorf("genesis: balance %d: amount must be positive", i)
		}
		ledger.Credit(asset, account, entry.Amount)
	}
	return nil
}

func parseFeed(raw string) ([32]byte, error) {
	var feed [32]byte
	raw = strings.TrimPrefix(strings.TrimSpace(raw), "0x")
	decoded, err := hex.DecodeString(raw)
	if err != nil || len(decoded) != 32 {
		return feed, fmt.Errorf("feed must be 32 bytes of hex")
	}
	copy(feed[:], decoded)
	return feed, nil
}

func parseWad(raw string) (*uint256.Int, error) {
	value, err := uint256.FromDecimal(strings.TrimSpace(raw))
	if err != nil {
		return nil, fmt.Errorf("invalid wad value %q", raw)
	}
	if value.IsZero() {
		return nil, fmt.Errorf("wad value must be positive")
	}
	return value, nil
}

func parseAddress(raw string) (crypto.Address, error) {
	raw = strings.TrimSpace(raw)
	if strings.HasPrefix(raw, "0x") || strings.HasPrefix(raw, "0X") {
		return crypto.DecodeHexAddress(raw)
	}
	return crypto.DecodeAddress(raw)
}

package lending

import "math"

const moduleName = "lending"

const (
	// MaxStaleSlots is how many slots a reserve's cached price and interest
	// state stay trusted before refresh is required.
	MaxStaleSlots uint64 = 120

	// slotsPerYear converts annual rates to per-slot rates (~2 slots/sec).
	slotsPerYear uint64 = 63_072_000

	// maxAccrueSlots clamps a single accrual window. Combined with the 2.0x
	// compound-factor cap it keeps one pathological slot gap from wedging a
	// reserve permanently.
	maxAccrueSlots uint64 = 3_153_600

	// MaxObligationReserves bounds combined collateral and borrow positions
	// held by one obligation.
	MaxObligationReserves = 10

	// liquidationCloseFactorPct limits how much of an obligation's total debt
	// value a single liquidation call may repay.
	liquidationCloseFactorPct = 50

	// oracleMaxAgeSlots and oracleMaxConfidencePct bound what the core will
	// accept from a price feed: readings older than 60 slots or with a
	// confidence interval of 5% of price or wider are rejected outright.
	oracleMaxAgeSlots       uint64 = 60
	oracleMaxConfidencePct         = 5
)

// AmountAll is the sentinel passed to withdraw and repay meaning "the whole
// position" rather than a literal token amount.
const AmountAll uint64 = math.MaxUint64

// Derivation seed prefixes for protocol entity addresses.
const (
	marketSeedPrefix     = "lending-market"
	reserveSeedPrefix    = "reserve"
	obligationSeedPrefix = "obligation"
	vaultSeedPrefix      = "vault"
	mintSeedPrefix       = "mint"
	feeSeedPrefix        = "fee-receiver"
)

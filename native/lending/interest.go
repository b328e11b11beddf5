package lending

import "github.com/holiman/uint256"

// Interest accrues along a two-segment piecewise-linear curve anchored by the
// reserve's min, optimal and max annual rates. Below the optimal utilization
// the rate climbs from min to optimal; above it, from optimal to max.

func ratePercent(pct uint8) *uint256.Int {
	z := uint256.NewInt(uint64(pct))
	z.Mul(z, wad)
	return z.Div(z, uint256.NewInt(100))
}

// currentBorrowRate maps a WAD utilization in [0, 1] to an annual WAD rate.
func currentBorrowRate(cfg ReserveConfig, utilization *uint256.Int) (*uint256.Int, error) {
	optimal := ratePercent(cfg.OptimalUtilizationRate)
	if cfg.OptimalUtilizationRate == 100 || utilization.Lt(optimal) {
		var normalized *uint256.Int
		if cfg.OptimalUtilizationRate == 0 {
			normalized = new(uint256.Int)
		} else {
			var err error
			normalized, err = wadDiv(utilization, optimal)
			if err != nil {
				return nil, err
			}
		}
		rateRange := ratePercent(cfg.OptimalBorrowRate - cfg.MinBorrowRate)
		scaled, err := wadMul(normalized, rateRange)
		if err != nil {
			return nil, err
		}
		return u128Add(scaled, ratePercent(cfg.MinBorrowRate))
	}

	excess, err := u128Sub(utilization, optimal)
	if err != nil {
		return nil, err
	}
	span := ratePercent(100 - cfg.OptimalUtilizationRate)
	normalized, err := wadDiv(excess, span)
	if err != nil {
		return nil, err
	}
	rateRange := ratePercent(cfg.MaxBorrowRate - cfg.OptimalBorrowRate)
	scaled, err := wadMul(normalized, rateRange)
	if err != nil {
		return nil, err
	}
	return u128Add(scaled, ratePercent(cfg.OptimalBorrowRate))
}

// compoundFactor converts an annual WAD rate and an elapsed slot count into a
// WAD growth multiplier. Growth is linear in the elapsed window and the window
// is clamped to maxAccrueSlots. A factor above 2.0 in a single call fails the
// accrual outright rather than writing a suspect result.
func compoundFactor(annualRate *uint256.Int, slotsElapsed uint64) (*uint256.Int, error) {
	if slotsElapsed > maxAccrueSlots {
		slotsElapsed = maxAccrueSlots
	}
	growth, err := mulDiv(annualRate, uint256.NewInt(slotsElapsed), uint256.NewInt(slotsPerYear))
	if err != nil {
		return nil, err
	}
	factor, err := u128Add(wad, growth)
	if err != nil {
		return nil, err
	}
	if factor.Gt(new(uint256.Int).Mul(wad, two)) {
		return nil, ErrMathOverflow
	}
	return factor, nil
}

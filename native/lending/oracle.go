package lending

import (
	"sync"

	"github.com/holiman/uint256"
)

// PriceReading is one oracle observation for a feed: a WAD price in the
// market's quote currency per whole token, the confidence interval around it
// and the slot it was published at.
type PriceReading struct {
	Price      *uint256.Int
	Confidence *uint256.Int
	Slot       uint64
}

// PriceOracle supplies price readings by feed id. The core validates every
// reading before use and never branches on which implementation is behind the
// interface.
type PriceOracle interface {
	Price(feed [32]byte) (PriceReading, error)
}

// validatePriceReading enforces the protocol's trust bounds on a reading:
// positive price, published within oracleMaxAgeSlots, and a confidence
// interval narrower than oracleMaxConfidencePct of the price.
func validatePriceReading(reading PriceReading, currentSlot uint64) error {
	if reading.Price == nil || reading.Price.IsZero() {
		return ErrOraclePriceInvalid
	}
	if currentSlot < reading.Slot || currentSlot-reading.Slot > oracleMaxAgeSlots {
		return ErrOraclePriceStale
	}
	if reading.Confidence != nil {
		scaled, err := u128Mul(reading.Confidence, uint256.NewInt(100))
		if err != nil {
			return ErrOracleConfidenceTooWide
		}
		limit, err := u128Mul(reading.Price, uint256.NewInt(oracleMaxConfidencePct))
		if err != nil {
			return err
		}
		if !scaled.Lt(limit) {
			return ErrOracleConfidenceTooWide
		}
	}
	return nil
}

// StaticOracle is a deterministic in-memory oracle. Deployments point it at
// readings published by an off-chain relayer; tests set prices directly.
type StaticOracle struct {
	mu       sync.RWMutex
	readings map[[32]byte]PriceReading
}

func NewStaticOracle() *StaticOracle {
	return &StaticOracle{readings: make(map[[32]byte]PriceReading)}
}

// SetPrice publishes a reading for feed.
func (o *StaticOracle) SetPrice(feed [32]byte, price, confidence *uint256.Int, slot uint64) {
	o.mu.Lock()
	defer o.mu.Unlock()
	reading := PriceReading{Slot: slot}
	if price != nil {
		reading.Price = new(uint256.Int).Set(price)
	}
	if confidence != nil {
		reading.Confidence = new(uint256.Int).Set(confidence)
	}
	o.readings[feed] = reading
}

// Price returns a copy of the latest reading for feed.
func (o *StaticOracle) Price(feed [32]byte) (PriceReading, error) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	stored, ok := o.readings[feed]
	if !ok {
		return PriceReading{}, ErrInvalidOracle
	}
	reading := PriceReading{Slot: stored.Slot}
	if stored.Price != nil {
		reading.Price = new(uint256.Int).Set(stored.Price)
	}
	if stored.Confidence != nil {
		reading.Confidence = new(uint256.Int).Set(stored.Confidence)
	}
	return reading, nil
}

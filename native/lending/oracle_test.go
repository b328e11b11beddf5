package lending

import (
	"testing"

	"github.com/holiman/uint256"
)

func TestValidatePriceReading(t *testing.T) {
	price := wadInt(2)

	if err := validatePriceReading(PriceReading{Price: price, Slot: 100}, 100); err != nil {
		t.Fatalf("fresh reading: %v", err)
	}
	if err := validatePriceReading(PriceReading{Price: price, Slot: 100}, 100+oracleMaxAgeSlots); err != nil {
		t.Fatalf("at age limit: %v", err)
	}
	if err := validatePriceReading(PriceReading{Price: price, Slot: 100}, 101+oracleMaxAgeSlots); err != ErrOraclePriceStale {
		t.Fatalf("past age limit: expected ErrOraclePriceStale, got %v", err)
	}
	// A reading published after the current slot is also rejected.
	if err := validatePriceReading(PriceReading{Price: price, Slot: 200}, 100); err != ErrOraclePriceStale {
		t.Fatalf("future reading: expected ErrOraclePriceStale, got %v", err)
	}

	if err := validatePriceReading(PriceReading{Price: nil, Slot: 100}, 100); err != ErrOraclePriceInvalid {
		t.Fatalf("nil price: expected ErrOraclePriceInvalid, got %v", err)
	}
	if err := validatePriceReading(PriceReading{Price: new(uint256.Int), Slot: 100}, 100); err != ErrOraclePriceInvalid {
		t.Fatalf("zero price: expected ErrOraclePriceInvalid, got %v", err)
	}
}

func TestValidatePriceReadingConfidence(t *testing.T) {
	// 4% of the price is within the 5% bound, 5% exactly is not.
	price := wadsFromTokens(100)
	narrow := wadsFromTokens(4)
	wide := wadsFromTokens(5)

	if err := validatePriceReading(PriceReading{Price: price, Confidence: narrow, Slot: 10}, 10); err != nil {
		t.Fatalf("narrow confidence: %v", err)
	}
	if err := validatePriceReading(PriceReading{Price: price, Confidence: wide, Slot: 10}, 10); err != ErrOracleConfidenceTooWide {
		t.Fatalf("wide confidence: expected ErrOracleConfidenceTooWide, got %v", err)
	}
}

func TestStaticOracleReadings(t *testing.T) {
	oracle := NewStaticOracle()
	feed := testFeed(0x01)

	if _, err := oracle.Price(feed); err != ErrInvalidOracle {
		t.Fatalf("unknown feed: expected ErrInvalidOracle, got %v", err)
	}

	price := wadInt(3)
	oracle.SetPrice(feed, price, nil, 7)
	reading, err := oracle.Price(feed)
	if err != nil {
		t.Fatalf("price: %v", err)
	}
	if !reading.Price.Eq(price) || reading.Slot != 7 {
		t.Fatalf("reading = %+v", reading)
	}

	// The oracle hands out copies, not its internal values.
	reading.Price.SetUint64(1)
	again, err := oracle.Price(feed)
	if err != nil {
		t.Fatalf("reread: %v", err)
	}
	if !again.Price.Eq(price) {
		t.Fatalf("stored reading mutated: %s", again.Price.Dec())
	}
}

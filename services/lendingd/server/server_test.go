package server

import (
	"net/http"
	"strings"
	"testing"

	"lendchain/native/common"
	"lendchain/native/lending"
)

func TestHTTPStatusMapping(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{nil, http.StatusOK},
		{lending.ErrMarketNotFound, http.StatusNotFound},
		{lending.ErrReserveNotFound, http.StatusNotFound},
		{lending.ErrObligationNotFound, http.StatusNotFound},
		{lending.ErrMarketExists, http.StatusConflict},
		{lending.ErrObligationExists, http.StatusConflict},
		{lending.ErrInvalidOwner, http.StatusForbidden},
		{lending.ErrReserveStale, http.StatusPreconditionFailed},
		{lending.ErrObligationStale, http.StatusPreconditionFailed},
		{lending.ErrOraclePriceStale, http.StatusPreconditionFailed},
		{common.ErrModulePaused, http.StatusServiceUnavailable},
		{lending.ErrNilState, http.StatusInternalServerError},
		{lending.ErrMathOverflow, http.StatusUnprocessableEntity},
		{lending.ErrBorrowTooLarge, http.StatusBadRequest},
		{lending.ErrInvalidAmount, http.StatusBadRequest},
		{lending.ErrObligationHealthy, http.StatusBadRequest},
	}
	for _, tc := range cases {
		if got := httpStatus(tc.err); got != tc.want {
			t.Errorf("httpStatus(%v) = %d, want %d", tc.err, got, tc.want)
		}
	}
}

func TestParseAmount(t *testing.T) {
	amount, err := parseAmount("12345")
	if err != nil {
		t.Fatalf("decimal: %v", err)
	}
	if amount != 12345 {
		t.Fatalf("amount = %d", amount)
	}

	for _, raw := range []string{"all", "ALL", " all "} {
		amount, err := parseAmount(raw)
		if err != nil {
			t.Fatalf("sentinel %q: %v", raw, err)
		}
		if amount != lending.AmountAll {
			t.Fatalf("sentinel %q = %d", raw, amount)
		}
	}

	for _, raw := range []string{"", "-1", "1.5", "1e9", "abc"} {
		if _, err := parseAmount(raw); err == nil {
			t.Fatalf("%q: expected parse error", raw)
		}
	}
}

func TestParseQuoteCurrency(t *testing.T) {
	quote, err := parseQuoteCurrency("USD")
	if err != nil {
		t.Fatalf("symbol: %v", err)
	}
	if string(quote[:3]) != "USD" || quote[3] != 0 {
		t.Fatalf("symbol not left-justified: %v", quote[:4])
	}

	hexID := strings.Repeat("ab", 32)
	quote, err = parseQuoteCurrency(hexID)
	if err != nil {
		t.Fatalf("hex id: %v", err)
	}
	if quote[0] != 0xAB || quote[31] != 0xAB {
		t.Fatalf("hex id not decoded: %v", quote)
	}

	if _, err := parseQuoteCurrency(""); err != lending.ErrInvalidQuoteCurrency {
		t.Fatalf("empty: expected ErrInvalidQuoteCurrency, got %v", err)
	}
	if _, err := parseQuoteCurrency(strings.Repeat("x", 33)); err != lending.ErrInvalidQuoteCurrency {
		t.Fatalf("long: expected ErrInvalidQuoteCurrency, got %v", err)
	}
}

func TestParseFeed(t *testing.T) {
	raw := strings.Repeat("0f", 32)
	feed, err := parseFeed("0x" + raw)
	if err != nil {
		t.Fatalf("prefixed: %v", err)
	}
	if feed[0] != 0x0F || feed[31] != 0x0F {
		t.Fatalf("feed not decoded: %v", feed)
	}
	if _, err := parseFeed(raw); err != nil {
		t.Fatalf("bare: %v", err)
	}

	for _, bad := range []string{"", "0x1234", strings.Repeat("zz", 32)} {
		if _, err := parseFeed(bad); err != lending.ErrInvalidOracle {
			t.Fatalf("%q: expected ErrInvalidOracle, got %v", bad, err)
		}
	}
}

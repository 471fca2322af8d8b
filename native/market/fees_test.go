package market

import (
	"errors"
	"math/big"
	"testing"
)

func TestFeeFloors(t *testing.T) {
	cases := []struct {
		price  int64
		feeBps uint32
		want   int64
	}{
		{1000, 500, 50},
		{999, 500, 49},
		{1, 500, 0},
		{1000, 0, 0},
		{1000, MaxFeeDenominator, 1000},
		{3, 3333, 0},
		{10000, 1, 1},
	}
	for _, tc := range cases {
		got := Fee(big.NewInt(tc.price), tc.feeBps)
		if got.Cmp(big.NewInt(tc.want)) != 0 {
			t.Fatalf("Fee(%d, %d) = %s, want %d", tc.price, tc.feeBps, got, tc.want)
		}
	}
}

func TestFeeLargePrice(t *testing.T) {
	price, _ := new(big.Int).SetString("1000000000000000", 10) // 10^15
	want, _ := new(big.Int).SetString("50000000000000", 10)    // 5*10^13
	if got := Fee(price, 500); got.Cmp(want) != 0 {
		t.Fatalf("Fee(10^15, 500) = %s, want %s", got, want)
	}
}

func TestFeeNilAndNegative(t *testing.T) {
	if got := Fee(nil, 500); got.Sign() != 0 {
		t.Fatalf("Fee(nil) = %s", got)
	}
	if got := Fee(big.NewInt(-100), 500); got.Sign() != 0 {
		t.Fatalf("Fee(negative) = %s", got)
	}
}

func TestExpiresAtBounds(t *testing.T) {
	expiry, err := ExpiresAt(1000, 250, 100, 1000)
	if err != nil || expiry != 1250 {
		t.Fatalf("ExpiresAt = %d, %v", expiry, err)
	}
	if _, err := ExpiresAt(1000, 99, 100, 1000); !errors.Is(err, ErrInvalidDuration) {
		t.Fatalf("expected ErrInvalidDuration below min, got %v", err)
	}
	if _, err := ExpiresAt(1000, 1001, 100, 1000); !errors.Is(err, ErrInvalidDuration) {
		t.Fatalf("expected ErrInvalidDuration above max, got %v", err)
	}
	// Boundary durations are accepted.
	if _, err := ExpiresAt(1000, 100, 100, 1000); err != nil {
		t.Fatalf("min duration rejected: %v", err)
	}
	if _, err := ExpiresAt(1000, 1000, 100, 1000); err != nil {
		t.Fatalf("max duration rejected: %v", err)
	}
}

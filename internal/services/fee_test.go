package services

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestComputeFee(t *testing.T) {
	tests := []struct {
		name     string
		base     string
		position int
		want     string
	}{
		{"third stop", "1000", 3, "550"},
		{"first stop", "1000", 1, "850"},
		{"clamped to zero", "1000", 10, "0"},
		{"exactly zero", "900", 6, "0"},
		{"unknown stop", "1000", 0, "1000"},
		{"decimal fee", "1234.50", 2, "934.5"},
		{"free route", "0", 4, "0"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ComputeFee(decimal.RequireFromString(tt.base), tt.position)
			assert.True(t, got.PaidFee.Equal(decimal.RequireFromString(tt.want)), "got %s", got.PaidFee)
			assert.False(t, got.PaidFee.IsNegative())
			assert.Equal(t, tt.position, got.Position)
		})
	}
}

func TestSeatNumber(t *testing.T) {
	assert.Equal(t, "S-001", SeatNumber(1))
	assert.Equal(t, "S-042", SeatNumber(42))
	assert.Equal(t, "S-1000", SeatNumber(1000))
}

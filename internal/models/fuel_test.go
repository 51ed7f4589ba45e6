package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKey_Normalizes(t *testing.T) {
	a := FuelTransaction{Invoice: "  INV1 ", TranDate: "2024-01-01", LocationName: "StationA", Amount: 100.001}
	b := FuelTransaction{Invoice: "inv1", TranDate: "2024-01-01 ", LocationName: " STATIONA", Amount: 99.998}

	assert.Equal(t, a.Key(), b.Key())
}

func TestKey_DistinctAmounts(t *testing.T) {
	a := FuelTransaction{Invoice: "INV1", TranDate: "2024-01-01", LocationName: "StationA", Amount: 100.00}
	b := FuelTransaction{Invoice: "INV1", TranDate: "2024-01-01", LocationName: "StationA", Amount: 100.01}

	assert.NotEqual(t, a.Key(), b.Key())
}

func TestRoundCents(t *testing.T) {
	assert.Equal(t, 100.0, RoundCents(100.004))
	assert.Equal(t, 100.01, RoundCents(100.006))
	assert.Equal(t, -2.35, RoundCents(-2.351))
}

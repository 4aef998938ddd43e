package helper

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRoundTo(t *testing.T) {
	assert.InDelta(t, 0.12, RoundTo(0.123, 2), 1e-12)
	assert.InDelta(t, 0.13, RoundTo(0.125, 2), 1e-12)
	assert.InDelta(t, 5, RoundTo(5.4, 0), 1e-12)
	assert.InDelta(t, 5, RoundTo(5.4, -1), 1e-12)
	assert.InDelta(t, 0.1, RoundTo(0.1, 3), 1e-12)

	// классика двоичной арифметики: 2.675*100 = 267.49999...
	assert.InDelta(t, 2.68, RoundTo(2.675, 2), 1e-12)
}

func TestCountDecimals(t *testing.T) {
	assert.Equal(t, 3, CountDecimals(0.001))
	assert.Equal(t, 1, CountDecimals(0.5))
	assert.Equal(t, 0, CountDecimals(1))
	assert.Equal(t, 0, CountDecimals(100))
	assert.Equal(t, 2, CountDecimals(0.25))
}

func TestFormatFloat(t *testing.T) {
	assert.Equal(t, "0.5", FormatFloat(0.5))
	assert.Equal(t, "2000", FormatFloat(2000))
	assert.Equal(t, "0.001", FormatFloat(0.001))
}

package reconcile

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassifyDirectMatch(t *testing.T) {
	t.Parallel()

	isMatch, stored, variance := classify(1366255, 1366255)
	assert.True(t, isMatch)
	assert.Equal(t, 1366255.0, stored)
	assert.Zero(t, variance)
}

func TestClassifyToleranceBoundary(t *testing.T) {
	t.Parallel()

	isMatch, _, variance := classify(100, 99)
	assert.True(t, isMatch)
	assert.Equal(t, -1.0, variance)

	isMatch, _, _ = classify(100, 98)
	assert.False(t, isMatch)

	// Sub-unit rounding differences stay within the absolute tolerance.
	isMatch, _, _ = classify(1000000, 999999.5)
	assert.True(t, isMatch)
}

func TestClassifyThousandScaleMatch(t *testing.T) {
	t.Parallel()

	// English report kept thousands; the scaled value lines up exactly.
	isMatch, stored, variance := classify(1366255000, 1366255)
	assert.True(t, isMatch)
	assert.Equal(t, 1366255000.0, stored)
	assert.Zero(t, variance)
}

func TestClassifyScaleRatioMismatch(t *testing.T) {
	t.Parallel()

	// Ratio inside [500, 2000] without a clean scaled match: report the
	// mismatch against the scale-corrected value.
	isMatch, stored, variance := classify(1000000, 1300)
	assert.False(t, isMatch)
	assert.Equal(t, 1300000.0, stored)
	assert.Equal(t, 300000.0, variance)
}

func TestClassifyScaleRatioBoundaries(t *testing.T) {
	t.Parallel()

	// Exactly 500 and exactly 2000 are inside the band.
	_, stored, _ := classify(500000, 1000)
	assert.Equal(t, 1000000.0, stored)

	isMatch, stored, variance := classify(2000000, 1000)
	assert.False(t, isMatch)
	assert.Equal(t, 1000000.0, stored)
	assert.Equal(t, -1000000.0, variance)

	// Just outside the band the raw value is kept.
	_, stored, _ = classify(2001000, 1000)
	assert.Equal(t, 1000.0, stored)
}

func TestClassifyRawMismatch(t *testing.T) {
	t.Parallel()

	isMatch, stored, variance := classify(100, 73)
	assert.False(t, isMatch)
	assert.Equal(t, 73.0, stored)
	assert.Equal(t, -27.0, variance)
}

func TestClassifyZeroForeignValue(t *testing.T) {
	t.Parallel()

	isMatch, stored, _ := classify(5000, 0)
	assert.False(t, isMatch)
	assert.Equal(t, 0.0, stored)
}

func TestClassifyNegativeValues(t *testing.T) {
	t.Parallel()

	isMatch, _, _ := classify(-1234567, -1234567)
	assert.True(t, isMatch)

	// Negative pair with a thousands factor.
	isMatch, stored, _ := classify(-1234567000, -1234567)
	assert.True(t, isMatch)
	assert.Equal(t, -1234567000.0, stored)
}

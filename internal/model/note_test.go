package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPercentMarker(t *testing.T) {
	t.Parallel()

	amt := DSDAmount{Attributes: map[string]string{"구분": "이자율"}}
	assert.False(t, amt.IsPercent())

	amt.MarkPercent()
	assert.True(t, amt.IsPercent())

	// Internal markers never leak into the cleaned attribute view.
	clean := amt.CleanAttributes()
	assert.Equal(t, map[string]string{"구분": "이자율"}, clean)
}

func TestCleanAttributesStripsInternalKeys(t *testing.T) {
	t.Parallel()

	amt := DSDAmount{Attributes: map[string]string{
		"기간":     "당기",
		"_is_pct": "true",
		"_debug":  "x",
	}}
	assert.Equal(t, map[string]string{"기간": "당기"}, amt.CleanAttributes())
}

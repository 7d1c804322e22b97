package amount

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParse(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   string
		want float64
		ok   bool
	}{
		{"plain", "1234", 1234, true},
		{"thousands separators", "1,366,255", 1366255, true},
		{"negative parens", "(1,234,567)", -1234567, true},
		{"decimal", "12.5", 12.5, true},
		{"leading whitespace", "  707,200 ", 707200, true},
		{"internal space", "1 234", 1234, true},
		{"empty", "", 0, false},
		{"dash placeholder", "-", 0, false},
		{"em dash placeholder", "—", 0, false},
		{"en dash placeholder", "–", 0, false},
		{"garbage", "abc", 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, ok := Parse(tt.in)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNormalizeUnit(t *testing.T) {
	t.Parallel()

	assert.Equal(t, 1_000.0, NormalizeUnit(1, "천원"))
	assert.Equal(t, 1_000_000.0, NormalizeUnit(1, "백만원"))
	assert.Equal(t, 5_000.0, NormalizeUnit(5, "KRW thousands"))
	assert.Equal(t, 2_000_000.0, NormalizeUnit(2, "in millions"))
	assert.Equal(t, 7.0, NormalizeUnit(7, "원"))
	assert.Equal(t, 7.0, NormalizeUnit(7, "USD"))
}

func TestUnitMultiplier(t *testing.T) {
	t.Parallel()

	assert.Equal(t, 1_000.0, UnitMultiplier("천원"))
	assert.Equal(t, 1.0, UnitMultiplier("원"))
	assert.Equal(t, 1.0, UnitMultiplier(""))
}

func TestDetectUnit(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   string
		want string
	}{
		{"korean parens thousands", "현금및현금성자산 (단위: 천원)", "천원"},
		{"korean parens millions", "(단위 : 백만원)", "백만원"},
		{"english unit", "(Unit: KRW thousands)", "천원"},
		{"bare declaration", "단위: 천원", "천원"},
		{"unrecognized kept raw", "(단위: USD)", "USD"},
		{"nothing", "현금및현금성자산", "원"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, DetectUnit(tt.in))
		})
	}
}

func TestFlattenAttrs(t *testing.T) {
	t.Parallel()

	got := FlattenAttrs(map[string]any{
		"기간": "당기",
		"구분": map[string]any{"수준": "수준1"},
		"연도": float64(2025),
		"합계": true,
		"없음": nil,
	})

	assert.Equal(t, map[string]string{
		"기간":    "당기",
		"구분.수준": "수준1",
		"연도":    "2025",
		"합계":    "true",
		"없음":    "",
	}, got)
}

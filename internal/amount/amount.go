// Package amount holds pure helpers for parsing and normalizing currency
// amounts across the Korean DSD extract and the English report.
package amount

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

var unitPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\(단위\s*:\s*([^)]+)\)`),
	regexp.MustCompile(`(?i)\(Unit\s*:\s*([^)]+)\)`),
	regexp.MustCompile(`(?i)단위\s*:\s*(\S+)`),
}

// Parse converts an amount string to a float. Thousands separators are
// dropped, parenthesized values are negative, and placeholder dashes
// ("-", "—", "–") or empty strings report ok=false.
func Parse(text string) (float64, bool) {
	text = strings.TrimSpace(text)
	switch text {
	case "", "-", "—", "–":
		return 0, false
	}

	negative := strings.HasPrefix(text, "(") && strings.HasSuffix(text, ")")
	if negative {
		text = text[1 : len(text)-1]
	}

	text = strings.ReplaceAll(text, ",", "")
	text = strings.ReplaceAll(text, " ", "")

	v, err := strconv.ParseFloat(text, 64)
	if err != nil {
		return 0, false
	}
	if negative {
		v = -v
	}
	return v, true
}

// NormalizeUnit scales an amount into won. Thousand units (천원,
// thousands) multiply by 1e3, million units (백만원, millions) by 1e6.
// Foreign-currency and unrecognized units pass through unchanged.
func NormalizeUnit(v float64, unit string) float64 {
	unit = strings.TrimSpace(unit)
	lower := strings.ToLower(unit)
	switch {
	case strings.Contains(unit, "백만") || strings.Contains(lower, "million"):
		return v * 1_000_000
	case strings.Contains(unit, "천") || strings.Contains(lower, "thousand"):
		return v * 1_000
	default:
		return v
	}
}

// UnitMultiplier returns the won multiplier NormalizeUnit would apply.
func UnitMultiplier(unit string) float64 {
	return NormalizeUnit(1, unit)
}

// DetectUnit finds a unit declaration such as "(단위: 천원)" or
// "(Unit: KRW thousands)" in surrounding text. Returns "원" when nothing
// is detected.
func DetectUnit(text string) string {
	for _, pat := range unitPatterns {
		m := pat.FindStringSubmatch(text)
		if m == nil {
			continue
		}
		raw := strings.TrimSpace(m[1])
		lower := strings.ToLower(raw)
		switch {
		case strings.Contains(raw, "백만") || strings.Contains(lower, "million"):
			return "백만원"
		case strings.Contains(raw, "천") || strings.Contains(lower, "thousand"):
			return "천원"
		default:
			return raw
		}
	}
	return "원"
}

// FlattenAttrs flattens a nested attribute map using "." as separator:
// {"당기": {"금액": "1,000"}} becomes {"당기.금액": "1,000"}. Keys are
// advisory column-path guesses; flattening keeps them printable.
func FlattenAttrs(attrs map[string]any) map[string]string {
	out := make(map[string]string)
	flattenInto(out, "", attrs)
	return out
}

func flattenInto(out map[string]string, prefix string, attrs map[string]any) {
	for k, v := range attrs {
		key := k
		if prefix != "" {
			key = prefix + "." + k
		}
		switch vv := v.(type) {
		case map[string]any:
			flattenInto(out, key, vv)
		case string:
			out[key] = vv
		case float64:
			out[key] = strconv.FormatFloat(vv, 'f', -1, 64)
		case bool:
			out[key] = strconv.FormatBool(vv)
		case nil:
			out[key] = ""
		default:
			out[key] = fmt.Sprintf("%v", vv)
		}
	}
}

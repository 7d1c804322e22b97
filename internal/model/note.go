package model

import "strings"

// DSDAmount is a single amount cell: one value identified by its row label
// plus a set of header attributes (e.g. {"기간": "당기", "수준": "수준2"}).
// Attribute keys are heuristic column-path guesses, not stable identity.
type DSDAmount struct {
	Attributes map[string]string `json:"attributes"`
	// Value is nil when the cell holds a placeholder dash or is empty.
	// Nil-valued cells are excluded from reconciliation entirely.
	Value   *float64 `json:"value"`
	RawText string   `json:"raw_text"`
}

// pctMarker is the internal attribute flagging percentage/ratio cells.
// Such cells are never scaled by the note unit and are stripped from
// judge payloads along with every other underscore-prefixed key.
const pctMarker = "_is_pct"

// IsPercent reports whether this cell carries the internal percentage marker.
func (a DSDAmount) IsPercent() bool {
	_, ok := a.Attributes[pctMarker]
	return ok
}

// MarkPercent sets the internal percentage marker.
func (a *DSDAmount) MarkPercent() {
	if a.Attributes == nil {
		a.Attributes = map[string]string{}
	}
	a.Attributes[pctMarker] = "true"
}

// CleanAttributes returns the attributes with internal (underscore-prefixed)
// markers removed. Never returns nil.
func (a DSDAmount) CleanAttributes() map[string]string {
	out := make(map[string]string, len(a.Attributes))
	for k, v := range a.Attributes {
		if strings.HasPrefix(k, "_") {
			continue
		}
		out[k] = v
	}
	return out
}

// DSDItem is one table row: a row label plus all amount cells on that row.
// Header-only rows (subsection headings) carry no amounts but must still
// appear in the report.
type DSDItem struct {
	ItemID       int         `json:"item_id"`
	Label        string      `json:"label"`
	IsHeaderOnly bool        `json:"is_header_only"`
	Amounts      []DSDAmount `json:"amounts"`
}

// DSDNote is one numbered disclosure note extracted from the DSD file.
// All amounts are already normalized to won by the note builder.
type DSDNote struct {
	Number string    `json:"note_number"`
	Title  string    `json:"note_title"`
	Unit   string    `json:"unit"`
	Items  []DSDItem `json:"items"`
}

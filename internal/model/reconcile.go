package model

// MappingMethod records which step of the note mapper produced a mapping.
type MappingMethod string

const (
	MapByNumber   MappingMethod = "number"    // exact note-number equality
	MapBySemantic MappingMethod = "semantic"  // judge-based title matching
	MapFallback   MappingMethod = "fallback"  // whole-document degraded mode
	MapUnmatched  MappingMethod = "unmatched" // no foreign counterpart
)

// NoteMapping pairs one domestic note with its English counterpart.
// EnNote is nil for unmatched notes. Exactly one mapping exists per
// domestic note; unmatched English notes are dropped.
type NoteMapping struct {
	KrNote     DSDNote
	EnNote     *EnNote
	Confidence float64
	Method     MappingMethod
}

// AmountMatch is the reconciliation outcome for a single amount cell.
// IsMatch is nil exactly when Found is false. ValueEn always holds the
// scale-normalized English value when a thousand-scale correction applied.
type AmountMatch struct {
	AmountID     string            `json:"amount_id"`
	AttributesKr map[string]string `json:"attributes_kr"`
	AttributesEn map[string]string `json:"attributes_en"`
	ValueKr      *float64          `json:"value_kr"`
	ValueEn      *float64          `json:"value_en"`
	IsMatch      *bool             `json:"is_match"`
	Variance     *float64          `json:"variance"`
	Confidence   float64           `json:"confidence"`
	Found        bool              `json:"found"`
	Note         string            `json:"note,omitempty"`
}

// ReconcileItem is the reconciliation outcome for one domestic row.
type ReconcileItem struct {
	ItemID       int           `json:"item_id"`
	LabelKr      string        `json:"label_kr"`
	LabelEn      string        `json:"label_en,omitempty"`
	IsHeaderOnly bool          `json:"is_header_only"`
	Matches      []AmountMatch `json:"amount_matches"`
}

// ReconcileResult aggregates one note pair's item tree. Counters are
// derived, never stored.
type ReconcileResult struct {
	NoteNumberKr      string          `json:"note_number_kr"`
	NoteNumberEn      string          `json:"note_number_en,omitempty"`
	NoteTitleKr       string          `json:"note_title_kr"`
	NoteTitleEn       string          `json:"note_title_en,omitempty"`
	MappingConfidence float64         `json:"note_mapping_confidence"`
	Items             []ReconcileItem `json:"items"`
}

// TotalAmounts counts reconciled amount cells across non-header items.
func (r ReconcileResult) TotalAmounts() int {
	n := 0
	for _, it := range r.Items {
		if it.IsHeaderOnly {
			continue
		}
		n += len(it.Matches)
	}
	return n
}

// MatchedCount counts cells whose IsMatch is true.
func (r ReconcileResult) MatchedCount() int {
	n := 0
	for _, it := range r.Items {
		for _, m := range it.Matches {
			if m.IsMatch != nil && *m.IsMatch {
				n++
			}
		}
	}
	return n
}

// MatchRate is MatchedCount over TotalAmounts, 0 when there are no cells.
func (r ReconcileResult) MatchRate() float64 {
	total := r.TotalAmounts()
	if total == 0 {
		return 0
	}
	return float64(r.MatchedCount()) / float64(total)
}

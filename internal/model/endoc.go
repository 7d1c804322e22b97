package model

// DocFormat identifies the source format of the English document.
type DocFormat string

const (
	FormatWord DocFormat = "word"
	FormatPDF  DocFormat = "pdf"
	FormatText DocFormat = "text"
)

// EnNote is one note section of the English report. Deliberately
// unstructured: no amounts are pre-extracted. RawText must retain full
// section fidelity because the reconciliation engine reads it verbatim.
type EnNote struct {
	Number       string    `json:"note_number"`
	Title        string    `json:"note_title"`
	RawText      string    `json:"raw_text"`
	SourceFormat DocFormat `json:"source_format"`
}

// EnDocument is the whole English report. When note splitting fails
// (fewer than 3 detected sections) Notes is empty and FullRawText carries
// the entire document for the mapper's fallback path.
type EnDocument struct {
	Filename    string    `json:"filename"`
	Format      DocFormat `json:"format"`
	Notes       []EnNote  `json:"notes"`
	FullRawText string    `json:"full_raw_text"`
}

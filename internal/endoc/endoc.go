// Package endoc reads the English financial-statement document. The goal
// is fidelity, not structure: each note section's raw text is preserved
// whole for the reconciliation engine to read verbatim. No amounts are
// extracted here.
package endoc

import (
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/ksyjerry/fs-recon/internal/model"
)

// minSections is the note-split sanity threshold: fewer detected sections
// than this switches the document into whole-text fallback mode.
const minSections = 3

// noteHeadingRe matches top-level English note headings such as
// "1. General Information". Sub-numbered headings ("1.1", "2.2.1") are
// excluded separately.
var (
	noteHeadingRe = regexp.MustCompile(`^\s*(\d+)\.\s+([A-Z][^\n]{0,120})$`)
	subNumberRe   = regexp.MustCompile(`^\d+\.\d+`)
	pageNumberRe  = regexp.MustCompile(`^\d{1,3}$`)
)

// ParseFile reads an English report file into an EnDocument. Format is
// detected by extension first, then magic bytes (PK zip header → DOCX,
// %PDF → PDF).
func ParseFile(path string) (*model.EnDocument, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".docx":
		return parseDocx(path)
	case ".pdf":
		return parsePdf(path)
	case ".txt":
		return parseText(path)
	}

	header := make([]byte, 4)
	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrap(err, "endoc: open file")
	}
	_, _ = f.Read(header)
	f.Close() //nolint:errcheck

	switch string(header) {
	case "PK\x03\x04":
		return parseDocx(path)
	case "%PDF":
		return parsePdf(path)
	}
	return parseText(path)
}

// section is one detected note span before conversion to EnNote.
type section struct {
	number string
	title  string
	lines  []string
}

// splitSections splits pre-cleaned lines into note sections at top-level
// headings. Text before the first heading survives only in the returned
// full text.
func splitSections(lines []string) ([]section, string) {
	var sections []section
	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if m := noteHeadingRe.FindStringSubmatch(trimmed); m != nil && !subNumberRe.MatchString(trimmed) {
			sections = append(sections, section{
				number: m[1],
				title:  strings.TrimSpace(m[2]),
				lines:  []string{trimmed},
			})
			continue
		}
		if len(sections) > 0 {
			cur := &sections[len(sections)-1]
			cur.lines = append(cur.lines, line)
		}
	}
	return sections, strings.Join(lines, "\n")
}

// buildDocument converts detected sections into an EnDocument, dropping
// into whole-text fallback when the split found fewer than minSections.
func buildDocument(filename string, format model.DocFormat, sections []section, fullText string) *model.EnDocument {
	notes := make([]model.EnNote, 0, len(sections))
	for _, s := range sections {
		notes = append(notes, model.EnNote{
			Number:       s.number,
			Title:        s.title,
			RawText:      strings.Join(s.lines, "\n"),
			SourceFormat: format,
		})
	}

	zap.L().Info("endoc: parsed document",
		zap.String("file", filename),
		zap.String("format", string(format)),
		zap.Int("notes", len(notes)),
	)

	if len(notes) < minSections {
		zap.L().Warn("endoc: fewer than 3 note sections, using whole-document fallback",
			zap.String("file", filename),
		)
		return &model.EnDocument{
			Filename:    filename,
			Format:      format,
			Notes:       nil,
			FullRawText: fullText,
		}
	}

	return &model.EnDocument{
		Filename:    filename,
		Format:      format,
		Notes:       notes,
		FullRawText: fullText,
	}
}

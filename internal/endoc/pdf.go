package endoc

import (
	"path/filepath"
	"strings"

	"github.com/ledongthuc/pdf"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/ksyjerry/fs-recon/internal/model"
)

// parsePdf extracts text row by row and splits notes with the same heading
// rules as the text parser. Bare page-number rows are dropped and words
// broken across lines by a trailing hyphen are re-joined, since exported
// reports hyphenate freely.
func parsePdf(path string) (*model.EnDocument, error) {
	f, r, err := pdf.Open(path)
	if err != nil {
		return nil, eris.Wrap(err, "endoc: open pdf")
	}
	defer f.Close() //nolint:errcheck

	var lines []string
	for pageNum := 1; pageNum <= r.NumPage(); pageNum++ {
		page := r.Page(pageNum)
		if page.V.IsNull() {
			continue
		}
		rows, err := page.GetTextByRow()
		if err != nil {
			zap.L().Warn("endoc: pdf page text extraction failed",
				zap.Int("page", pageNum),
				zap.Error(err),
			)
			continue
		}
		for _, row := range rows {
			lines = appendPdfLine(lines, rowText(row))
		}
	}

	sections, fullText := splitSections(lines)
	return buildDocument(filepath.Base(path), model.FormatPDF, sections, fullText), nil
}

// rowText joins the text fragments of one row, inserting a space where the
// horizontal gap between fragments is wider than glyph spacing. PDF content
// streams position words by offset and often carry no space characters.
func rowText(row *pdf.Row) string {
	var b strings.Builder
	var lastEnd float64
	for i, word := range row.Content {
		if i > 0 {
			gap := word.X - lastEnd
			threshold := word.FontSize * 0.3
			if threshold == 0 {
				threshold = 1
			}
			if gap > threshold {
				b.WriteString(" ")
			}
		}
		b.WriteString(word.S)
		lastEnd = word.X + word.W
	}
	return strings.TrimSpace(b.String())
}

// appendPdfLine filters page-number rows and repairs hyphen-broken words
// spanning a line break.
func appendPdfLine(lines []string, line string) []string {
	if line == "" || pageNumberRe.MatchString(line) {
		return lines
	}
	if n := len(lines); n > 0 && strings.HasSuffix(lines[n-1], "-") {
		lines[n-1] = strings.TrimSuffix(lines[n-1], "-") + line
		return lines
	}
	return append(lines, line)
}

// Package report renders reconciliation results into an Excel workbook:
// a run summary, a flat discrepancy list, and one detail sheet per note.
package report

import (
	"fmt"
	"sort"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"
	"go.uber.org/zap"

	"github.com/ksyjerry/fs-recon/internal/model"
)

// Cell fill colors for match outcomes.
const (
	fillMatch    = "FFC6EFCE" // green
	fillMismatch = "FFFFC7CE" // red
	fillNotFound = "FFFFEB9C" // yellow
)

const maxSheetNameLen = 31

// Write renders the workbook to path.
func Write(results []model.ReconcileResult, path string) error {
	f := xlsx.NewFile()

	if err := writeSummary(f, results); err != nil {
		return err
	}
	if err := writeDiscrepancies(f, results); err != nil {
		return err
	}
	used := map[string]int{"Summary": 1, "Discrepancies": 1}
	for _, r := range results {
		if err := writeNoteSheet(f, r, used); err != nil {
			return err
		}
	}

	if err := f.Save(path); err != nil {
		return eris.Wrap(err, "report: save workbook")
	}
	zap.L().Info("report: workbook written", zap.String("path", path), zap.Int("notes", len(results)))
	return nil
}

func headerStyle() *xlsx.Style {
	s := xlsx.NewStyle()
	s.Font.Bold = true
	s.ApplyFont = true
	return s
}

func fillStyle(color string) *xlsx.Style {
	s := xlsx.NewStyle()
	s.Fill = *xlsx.NewFill("solid", color, color)
	s.ApplyFill = true
	return s
}

func addHeaderRow(sheet *xlsx.Sheet, titles ...string) {
	style := headerStyle()
	row := sheet.AddRow()
	for _, t := range titles {
		cell := row.AddCell()
		cell.SetString(t)
		cell.SetStyle(style)
	}
}

func writeSummary(f *xlsx.File, results []model.ReconcileResult) error {
	sheet, err := f.AddSheet("Summary")
	if err != nil {
		return eris.Wrap(err, "report: add summary sheet")
	}

	addHeaderRow(sheet, "주석번호(국문)", "주석번호(영문)", "주석제목(국문)", "주석제목(영문)",
		"매핑 신뢰도", "금액 수", "일치", "일치율")

	var totalCells, totalMatched int
	for _, r := range results {
		total := r.TotalAmounts()
		matched := r.MatchedCount()
		totalCells += total
		totalMatched += matched

		row := sheet.AddRow()
		row.AddCell().SetString(r.NoteNumberKr)
		row.AddCell().SetString(r.NoteNumberEn)
		row.AddCell().SetString(r.NoteTitleKr)
		row.AddCell().SetString(r.NoteTitleEn)
		row.AddCell().SetFloatWithFormat(r.MappingConfidence, "0.00")
		row.AddCell().SetInt(total)
		row.AddCell().SetInt(matched)
		row.AddCell().SetFloatWithFormat(r.MatchRate(), "0.0%")
	}

	totalRow := sheet.AddRow()
	style := headerStyle()
	label := totalRow.AddCell()
	label.SetString("합계")
	label.SetStyle(style)
	for i := 0; i < 4; i++ {
		totalRow.AddCell()
	}
	totalRow.AddCell().SetInt(totalCells)
	totalRow.AddCell().SetInt(totalMatched)
	rate := 0.0
	if totalCells > 0 {
		rate = float64(totalMatched) / float64(totalCells)
	}
	totalRow.AddCell().SetFloatWithFormat(rate, "0.0%")

	return nil
}

// writeDiscrepancies lists every mismatched or not-found cell across all
// notes in one flat sheet.
func writeDiscrepancies(f *xlsx.File, results []model.ReconcileResult) error {
	sheet, err := f.AddSheet("Discrepancies")
	if err != nil {
		return eris.Wrap(err, "report: add discrepancies sheet")
	}

	addHeaderRow(sheet, "주석", "항목", "속성", "국문 금액", "영문 금액", "차이", "상태", "비고")

	mismatchFill := fillStyle(fillMismatch)
	notFoundFill := fillStyle(fillNotFound)

	for _, r := range results {
		noteRef := fmt.Sprintf("%s. %s", r.NoteNumberKr, r.NoteTitleKr)
		for _, item := range r.Items {
			for _, m := range item.Matches {
				if m.IsMatch != nil && *m.IsMatch {
					continue
				}

				row := sheet.AddRow()
				row.AddCell().SetString(noteRef)
				row.AddCell().SetString(item.LabelKr)
				row.AddCell().SetString(attrsToString(m.AttributesKr))
				setOptFloat(row.AddCell(), m.ValueKr)
				setOptFloat(row.AddCell(), m.ValueEn)
				setOptFloat(row.AddCell(), m.Variance)

				status := row.AddCell()
				if !m.Found {
					status.SetString("미발견")
					status.SetStyle(notFoundFill)
				} else {
					status.SetString("불일치")
					status.SetStyle(mismatchFill)
				}
				row.AddCell().SetString(m.Note)
			}
		}
	}
	return nil
}

func writeNoteSheet(f *xlsx.File, r model.ReconcileResult, used map[string]int) error {
	sheet, err := f.AddSheet(sheetName(r, used))
	if err != nil {
		return eris.Wrap(err, "report: add note sheet")
	}

	title := sheet.AddRow()
	cell := title.AddCell()
	cell.SetString(fmt.Sprintf("주석 %s. %s", r.NoteNumberKr, r.NoteTitleKr))
	cell.SetStyle(headerStyle())
	if r.NoteTitleEn != "" {
		title.AddCell().SetString(fmt.Sprintf("(EN %s. %s)", r.NoteNumberEn, r.NoteTitleEn))
	}
	sheet.AddRow()

	addHeaderRow(sheet, "항목", "속성", "국문 금액", "영문 금액", "차이", "상태", "신뢰도", "비고")

	matchFill := fillStyle(fillMatch)
	mismatchFill := fillStyle(fillMismatch)
	notFoundFill := fillStyle(fillNotFound)

	for _, item := range r.Items {
		if item.IsHeaderOnly {
			row := sheet.AddRow()
			c := row.AddCell()
			c.SetString(item.LabelKr)
			c.SetStyle(headerStyle())
			continue
		}
		for _, m := range item.Matches {
			row := sheet.AddRow()
			label := item.LabelKr
			if item.LabelEn != "" {
				label = fmt.Sprintf("%s / %s", item.LabelKr, item.LabelEn)
			}
			row.AddCell().SetString(label)
			row.AddCell().SetString(attrsToString(m.AttributesKr))
			setOptFloat(row.AddCell(), m.ValueKr)
			setOptFloat(row.AddCell(), m.ValueEn)
			setOptFloat(row.AddCell(), m.Variance)

			status := row.AddCell()
			switch {
			case !m.Found:
				status.SetString("미발견")
				status.SetStyle(notFoundFill)
			case m.IsMatch != nil && *m.IsMatch:
				status.SetString("일치")
				status.SetStyle(matchFill)
			default:
				status.SetString("불일치")
				status.SetStyle(mismatchFill)
			}
			row.AddCell().SetFloatWithFormat(m.Confidence, "0.00")
			row.AddCell().SetString(m.Note)
		}
	}
	return nil
}

// sheetName builds a unique sheet name within Excel's 31-character limit,
// stripping characters Excel forbids.
func sheetName(r model.ReconcileResult, used map[string]int) string {
	base := fmt.Sprintf("주석%s %s", r.NoteNumberKr, r.NoteTitleKr)
	base = strings.NewReplacer(":", " ", "\\", " ", "/", " ", "?", " ", "*", " ", "[", " ", "]", " ").Replace(base)
	if runes := []rune(base); len(runes) > maxSheetNameLen {
		base = string(runes[:maxSheetNameLen])
	}
	used[base]++
	if used[base] > 1 {
		suffix := fmt.Sprintf(" (%d)", used[base])
		if runes := []rune(base); len(runes)+len(suffix) > maxSheetNameLen {
			base = string(runes[:maxSheetNameLen-len(suffix)])
		}
		base += suffix
	}
	return base
}

func attrsToString(attrs map[string]string) string {
	if len(attrs) == 0 {
		return ""
	}
	keys := make([]string, 0, len(attrs))
	for k := range attrs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%s", k, attrs[k]))
	}
	return strings.Join(parts, ", ")
}

func setOptFloat(cell *xlsx.Cell, v *float64) {
	if v == nil {
		cell.SetString("")
		return
	}
	cell.SetFloatWithFormat(*v, "#,##0")
}

// Package mapping pairs Korean DSD notes with English note sections.
// Matching runs in three tiers: exact note-number matches first, then a
// single batched judge call over the leftovers, then unmatched. A document
// whose note split failed collapses to a whole-document fallback pairing.
package mapping

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/ksyjerry/fs-recon/internal/model"
	"github.com/ksyjerry/fs-recon/pkg/judge"
)

// fallbackConfidence applies when the English document could not be split
// and every Korean note is paired with the whole document.
const fallbackConfidence = 0.5

const semanticSystemPrompt = `당신은 한국어·영어 재무제표 주석 대조 전문가입니다.
주석 번호가 달라도 내용(제목)이 같은 주석을 찾아 연결하세요.`

const semanticUserPrompt = `아래 한국어 주석 목록과 영문 주석 목록에서 내용이 동일한 주석 쌍을 찾아주세요.

한국어 주석:
%s

영문 주석:
%s

규칙:
- 제목 의미가 같으면 연결 (예: "현금및현금성자산" ↔ "Cash and cash equivalents")
- 확실하지 않은 쌍은 제외하세요
- confidence는 0.0~1.0 사이 값

반드시 JSON만 반환:
{
  "mappings": [
    {"kr_num": "3", "en_num": "4", "confidence": 0.9}
  ]
}`

// MapNotes pairs every Korean note with an English note section where one
// can be found. The result preserves the order of the Korean input.
func MapNotes(ctx context.Context, krNotes []model.DSDNote, enDoc *model.EnDocument, j judge.Judge) []model.NoteMapping {
	if len(enDoc.Notes) == 0 {
		return fallbackMappings(krNotes, enDoc)
	}

	// Keyed by input position: domestic note numbers may repeat, so the
	// number alone cannot identify a note.
	mappings := make([]*model.NoteMapping, len(krNotes))

	enByNumber := make(map[string]*model.EnNote, len(enDoc.Notes))
	for i := range enDoc.Notes {
		enByNumber[normalizeNumber(enDoc.Notes[i].Number)] = &enDoc.Notes[i]
	}

	// Tier 1: exact note-number matches.
	var unmatchedIdx []int
	usedEn := make(map[string]bool)
	for i, kr := range krNotes {
		num := normalizeNumber(kr.Number)
		if en, ok := enByNumber[num]; ok {
			mappings[i] = &model.NoteMapping{
				KrNote:     kr,
				EnNote:     en,
				Confidence: 1.0,
				Method:     model.MapByNumber,
			}
			usedEn[num] = true
			continue
		}
		unmatchedIdx = append(unmatchedIdx, i)
	}

	// Tier 2: one batched semantic pass over the leftovers. A semantic
	// pairing is consumed by the first open position with that number.
	if len(unmatchedIdx) > 0 {
		unmatchedKr := make([]model.DSDNote, 0, len(unmatchedIdx))
		for _, i := range unmatchedIdx {
			unmatchedKr = append(unmatchedKr, krNotes[i])
		}
		var freeEn []*model.EnNote
		for i := range enDoc.Notes {
			if !usedEn[normalizeNumber(enDoc.Notes[i].Number)] {
				freeEn = append(freeEn, &enDoc.Notes[i])
			}
		}
		if len(freeEn) > 0 {
			sem := semanticMappings(ctx, unmatchedKr, freeEn, j)
			for _, i := range unmatchedIdx {
				m, ok := sem[krNotes[i].Number]
				if !ok {
					continue
				}
				paired := *m
				paired.KrNote = krNotes[i]
				mappings[i] = &paired
				delete(sem, krNotes[i].Number)
			}
		}
	}

	// Tier 3: everything still unpaired.
	out := make([]model.NoteMapping, 0, len(krNotes))
	for i, kr := range krNotes {
		if mappings[i] != nil {
			out = append(out, *mappings[i])
			continue
		}
		out = append(out, model.NoteMapping{
			KrNote:     kr,
			EnNote:     nil,
			Confidence: 0,
			Method:     model.MapUnmatched,
		})
	}

	logMappingSummary(out)
	return out
}

// fallbackMappings pairs every Korean note with one synthetic note holding
// the entire English document, so reconciliation can still search the full
// text for each amount.
func fallbackMappings(krNotes []model.DSDNote, enDoc *model.EnDocument) []model.NoteMapping {
	zap.L().Warn("mapping: english document has no note sections, using whole-document fallback")

	whole := &model.EnNote{
		Number:       "ALL",
		Title:        "Full document",
		RawText:      enDoc.FullRawText,
		SourceFormat: enDoc.Format,
	}

	out := make([]model.NoteMapping, 0, len(krNotes))
	for _, kr := range krNotes {
		out = append(out, model.NoteMapping{
			KrNote:     kr,
			EnNote:     whole,
			Confidence: fallbackConfidence,
			Method:     model.MapFallback,
		})
	}
	return out
}

// semanticMappings runs the batched judge call and validates each returned
// pair against the available English notes. An English note is consumed by
// its first assignment.
func semanticMappings(ctx context.Context, krNotes []model.DSDNote, enNotes []*model.EnNote, j judge.Judge) map[string]*model.NoteMapping {
	krList := make([]string, 0, len(krNotes))
	for _, n := range krNotes {
		krList = append(krList, fmt.Sprintf("- %s: %s", n.Number, n.Title))
	}
	enList := make([]string, 0, len(enNotes))
	enByNumber := make(map[string]*model.EnNote, len(enNotes))
	for _, n := range enNotes {
		enList = append(enList, fmt.Sprintf("- %s: %s", n.Number, n.Title))
		enByNumber[normalizeNumber(n.Number)] = n
	}
	krByNumber := make(map[string]model.DSDNote, len(krNotes))
	for _, n := range krNotes {
		krByNumber[normalizeNumber(n.Number)] = n
	}

	raw, err := j.CompleteJSON(ctx, []judge.Message{
		judge.System(semanticSystemPrompt),
		judge.User(fmt.Sprintf(semanticUserPrompt, strings.Join(krList, "\n"), strings.Join(enList, "\n"))),
	})
	if err != nil {
		zap.L().Warn("mapping: semantic judge call failed, leftover notes stay unmatched", zap.Error(err))
		return nil
	}

	obj, ok := raw.(map[string]any)
	if !ok {
		zap.L().Warn("mapping: semantic response is not an object")
		return nil
	}
	entries, _ := obj["mappings"].([]any)

	out := make(map[string]*model.NoteMapping)
	taken := make(map[string]bool)
	for _, e := range entries {
		entry, ok := e.(map[string]any)
		if !ok {
			continue
		}
		krNum := normalizeNumber(asString(entry["kr_num"]))
		enNum := normalizeNumber(asString(entry["en_num"]))
		kr, krOK := krByNumber[krNum]
		en, enOK := enByNumber[enNum]
		if !krOK || !enOK || taken[enNum] {
			continue
		}
		if _, dup := out[kr.Number]; dup {
			continue
		}
		conf, _ := entry["confidence"].(float64)
		if conf <= 0 || conf > 1 {
			conf = 0.7
		}
		out[kr.Number] = &model.NoteMapping{
			KrNote:     kr,
			EnNote:     en,
			Confidence: conf,
			Method:     model.MapBySemantic,
		}
		taken[enNum] = true
	}

	zap.L().Info("mapping: semantic pass", zap.Int("candidates", len(krNotes)), zap.Int("paired", len(out)))
	return out
}

// normalizeNumber canonicalizes a note number for comparison: trimmed, with
// a trailing ".0" float artifact removed.
func normalizeNumber(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimSuffix(s, ".")
	if strings.HasSuffix(s, ".0") {
		s = strings.TrimSuffix(s, ".0")
	}
	return s
}

func asString(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case float64:
		if t == float64(int64(t)) {
			return fmt.Sprintf("%d", int64(t))
		}
		return fmt.Sprintf("%v", t)
	default:
		return ""
	}
}

func logMappingSummary(mappings []model.NoteMapping) {
	counts := map[model.MappingMethod]int{}
	for _, m := range mappings {
		counts[m.Method]++
	}
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, string(k))
	}
	sort.Strings(keys)
	fields := []zap.Field{zap.Int("total", len(mappings))}
	for _, k := range keys {
		fields = append(fields, zap.Int(k, counts[model.MappingMethod(k)]))
	}
	zap.L().Info("mapping: complete", fields...)
}

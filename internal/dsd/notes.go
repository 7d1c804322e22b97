package dsd

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/ksyjerry/fs-recon/internal/amount"
	"github.com/ksyjerry/fs-recon/internal/model"
	"github.com/ksyjerry/fs-recon/pkg/judge"
)

// maxNoteContentRunes caps the note text sent per extraction call.
const maxNoteContentRunes = 10000

// DefaultMaxConcurrent bounds concurrent judge calls per pipeline stage.
const DefaultMaxConcurrent = 10

const extractSystemPrompt = `당신은 한국 재무제표 주석(Notes to Financial Statements) 데이터 추출 전문가입니다.
회계 테이블의 다차원 헤더(당기/전기, 레벨1/2/3, 만기구간 등)를 정확히 파악하세요.`

const extractUserPrompt = `아래는 재무제표 주석 %s. %s의 전체 내용입니다.

[DSD 특수 형식 안내 — 반드시 숙지]
DSD 파일에서 테이블은 각 셀이 별도 줄로 나타납니다. 예시:
  구분          ← 헤더 레이블
  2025년        ← 헤더 컬럼1
  2024년        ← 헤더 컬럼2
  1년 이하      ← 행 레이블
  1,366,255     ← 행1 컬럼1 금액 (2025년)
  707,200       ← 행1 컬럼2 금액 (2024년)
  5년 초과      ← 행 레이블 (다음에 금액 줄이 없으면 value=null)
  합계          ← 행 레이블
  6,274,247     ← 합계 컬럼1 금액
  925,199       ← 합계 컬럼2 금액

규칙:
- 헤더(레이블 컬럼명 행) 다음에 오는 숫자들은 해당 헤더 컬럼 순서로 대응
- 레이블 바로 다음에 다른 레이블이 오면(숫자 없음) → amounts=[] 또는 value=null
- 단락 텍스트 안에 포함된 금액도 별도 항목으로 추출 (예: "리스료는 1,059,251천원...")
- "NNN천원(전기: MMM천원)" 형태에서 당기와 전기를 각각 별도 amounts로 추출

[추출 규칙]
1. 모든 행(합계·소계·제목행 포함)을 추출하세요.
2. 금액이 없는 순수 제목행은 is_header_only=true, amounts=[]
3. 단위 감지: "(단위: 천원)" 등에서 unit 파악
4. 금액은 원문 표기 숫자 그대로 반환하세요 (단위 환산 금지 — 코드가 계산합니다)
5. 다차원 헤더를 attributes 딕셔너리로 표현
   예) 당기/전기 × 수준1/수준2 → {"기간":"당기","수준":"수준1"}
   컬럼 헤더가 연도(2025년/2024년)이면 {"연도":"2025"} 형식 사용
6. "-" 또는 빈 셀은 value=null
7. 괄호 금액은 음수: "(1,234,567)" → -1234567
8. reasoning 없이 JSON만 반환 (마크다운·설명 금지)

반환 형식:
{
  "note_number": "%s",
  "note_title": "%s",
  "unit": "천원",
  "items": [
    {
      "item_id": 0,
      "label": "행 레이블",
      "is_header_only": false,
      "amounts": [
        {
          "attributes": {"기간": "당기"},
          "value": 1234567,
          "raw_text": "1,234,567"
        }
      ]
    }
  ]
}

주석 내용:
%s`

// ParseFile runs the full DSD pass: segment extraction, boundary
// detection, and per-note structured extraction under bounded concurrency.
// Only the segment extraction step is fatal; individual note failures are
// logged and dropped.
func ParseFile(ctx context.Context, path string, j judge.Judge, maxConcurrent int) ([]model.DSDNote, error) {
	zap.L().Info("dsd: parsing file", zap.String("path", path))

	segments, err := ExtractSegments(path)
	if err != nil {
		return nil, err
	}
	zap.L().Info("dsd: segments extracted", zap.Int("count", len(segments)))

	boundaries := DetectBoundaries(ctx, segments, j)
	if len(boundaries) == 0 {
		zap.L().Error("dsd: no note boundaries detected")
		return nil, nil
	}
	zap.L().Info("dsd: note boundaries", zap.Int("count", len(boundaries)))

	notes := BuildNotes(ctx, segments, boundaries, j, maxConcurrent)
	zap.L().Info("dsd: parse complete", zap.Int("notes", len(notes)))
	return notes, nil
}

// BuildNotes slices the segment stream at the detected boundaries and runs
// one structured-extraction judge call per note. Notes whose extraction
// fails or returns an invalid shape are dropped with a warning. Output is
// ordered by numeric note number where numbers parse.
func BuildNotes(ctx context.Context, segments []Segment, boundaries []Boundary, j judge.Judge, maxConcurrent int) []model.DSDNote {
	if maxConcurrent <= 0 {
		maxConcurrent = DefaultMaxConcurrent
	}

	type chunk struct {
		number string
		title  string
		segs   []Segment
	}
	chunks := make([]chunk, len(boundaries))
	for i, b := range boundaries {
		end := len(segments)
		if i+1 < len(boundaries) {
			end = boundaries[i+1].SegmentIndex
		}
		number := b.Number
		if number == "" {
			number = fmt.Sprintf("unknown_%d", i+1)
		}
		chunks[i] = chunk{number: number, title: b.Title, segs: segments[b.SegmentIndex:end]}
	}

	results := make([]*model.DSDNote, len(chunks))

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrent)
	for i, c := range chunks {
		g.Go(func() error {
			note, err := extractNote(gCtx, c.number, c.title, c.segs, j)
			if err != nil {
				zap.L().Warn("dsd: note extraction failed, dropping note",
					zap.String("note", c.number),
					zap.Error(err),
				)
				return nil // per-note failure is not fatal
			}
			results[i] = note
			return nil
		})
	}
	_ = g.Wait()

	var notes []model.DSDNote
	for _, n := range results {
		if n != nil {
			notes = append(notes, *n)
		}
	}

	sort.SliceStable(notes, func(i, k int) bool {
		return noteSortKey(notes[i].Number) < noteSortKey(notes[k].Number)
	})
	return notes
}

func noteSortKey(number string) int {
	if n, err := strconv.Atoi(number); err == nil {
		return n
	}
	return 999
}

// BuildNoteText assembles the plain-text rendering of one note span:
// paragraphs with "&cr;" markers expanded to newlines, tables as
// tab/newline grids behind a marker line.
func BuildNoteText(segments []Segment) string {
	var lines []string
	for _, seg := range segments {
		switch seg.Kind {
		case KindParagraph:
			text := strings.TrimSpace(strings.ReplaceAll(seg.Text, "&cr;", "\n"))
			if text != "" {
				lines = append(lines, text)
			}
		case KindTable:
			lines = append(lines, "[테이블]", seg.Text)
		}
	}
	return strings.Join(lines, "\n")
}

func extractNote(ctx context.Context, number, title string, segments []Segment, j judge.Judge) (*model.DSDNote, error) {
	content := BuildNoteText(segments)
	if runes := []rune(content); len(runes) > maxNoteContentRunes {
		content = string(runes[:maxNoteContentRunes])
	}

	raw, err := j.CompleteJSON(ctx, []judge.Message{
		judge.System(extractSystemPrompt),
		judge.User(fmt.Sprintf(extractUserPrompt, number, title, number, title, content)),
	})
	if err != nil {
		return nil, err
	}

	return buildNote(raw, number, title)
}

// buildNote validates the judge's structured response and converts it into
// a DSDNote, scaling every non-percentage amount by the detected unit so
// all stored values are in won.
func buildNote(raw any, fallbackNumber, fallbackTitle string) (*model.DSDNote, error) {
	obj, ok := raw.(map[string]any)
	if !ok {
		return nil, eris.Errorf("dsd: extraction response is %T, not an object", raw)
	}

	note := model.DSDNote{
		Number: stringOr(obj["note_number"], fallbackNumber),
		Title:  stringOr(obj["note_title"], fallbackTitle),
		Unit:   stringOr(obj["unit"], "원"),
	}
	mult := amount.UnitMultiplier(note.Unit)

	items, _ := obj["items"].([]any)
	for _, rawItem := range items {
		itemObj, ok := rawItem.(map[string]any)
		if !ok {
			continue
		}
		item := model.DSDItem{
			ItemID:       intOr(itemObj["item_id"], len(note.Items)),
			Label:        stringOr(itemObj["label"], ""),
			IsHeaderOnly: boolOr(itemObj["is_header_only"]),
		}
		amounts, _ := itemObj["amounts"].([]any)
		for _, rawAmt := range amounts {
			amtObj, ok := rawAmt.(map[string]any)
			if !ok {
				continue
			}
			amt := model.DSDAmount{
				Attributes: attrMap(amtObj["attributes"]),
				RawText:    stringOr(amtObj["raw_text"], ""),
			}
			if looksPercent(amt) {
				amt.MarkPercent()
			}
			if v, ok := amtObj["value"].(float64); ok {
				if !amt.IsPercent() {
					v *= mult
				}
				amt.Value = &v
			}
			item.Amounts = append(item.Amounts, amt)
		}
		note.Items = append(note.Items, item)
	}

	return &note, nil
}

// looksPercent flags ratio cells so the unit multiplier never applies to
// them and downstream comparison can skip them.
func looksPercent(amt model.DSDAmount) bool {
	if strings.Contains(amt.RawText, "%") {
		return true
	}
	for k, v := range amt.Attributes {
		if strings.Contains(k, "비율") || strings.Contains(v, "%") {
			return true
		}
	}
	return false
}

func attrMap(v any) map[string]string {
	nested, ok := v.(map[string]any)
	if !ok {
		return map[string]string{}
	}
	return amount.FlattenAttrs(nested)
}

func stringOr(v any, fallback string) string {
	if s, ok := v.(string); ok && strings.TrimSpace(s) != "" {
		return strings.TrimSpace(s)
	}
	return fallback
}

func intOr(v any, fallback int) int {
	if f, ok := v.(float64); ok {
		return int(f)
	}
	return fallback
}

func boolOr(v any) bool {
	b, ok := v.(bool)
	return ok && b
}

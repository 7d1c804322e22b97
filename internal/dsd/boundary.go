package dsd

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/ksyjerry/fs-recon/pkg/judge"
)

// Boundary marks the segment index at which a new note section begins.
type Boundary struct {
	SegmentIndex int
	Number       string
	Title        string
}

// maxBoundaryLines caps the candidate list sent to the judge. Notes cluster
// toward the end of the document, so the trailing lines are kept.
const maxBoundaryLines = 1000

const boundarySystemPrompt = "당신은 한국 재무제표 DSD 파일 분석 전문가입니다."

const boundaryUserPrompt = `아래는 DSD 재무제표 파일에서 추출한 단락 목록입니다 (인덱스: 텍스트 형식).

이 목록에서 각 "주석(Note)" 섹션의 시작 위치를 찾아주세요.

주석 헤더 형식 예시:
 - "주석 1. 일반사항"
 - "1. 현금및현금성자산"
 - "주석15. 법인세"
 - "16 종업원급여"

재무상태표·손익계산서 등 재무제표 본문의 계정 행은 주석 헤더가 아닙니다.
오직 새로운 주석 섹션을 여는 상위 제목만 포함하세요.

반드시 JSON 배열만 반환 (다른 텍스트 금지):
[
  {"segment_index": 42, "note_number": "1", "note_title": "일반사항"},
  {"segment_index": 67, "note_number": "2", "note_title": "재무제표 작성기준"},
  ...
]

단락 목록:
%s`

var (
	patExplicitNote = regexp.MustCompile(`^\s*주\s*석\s*(\d+)\s*[.\s]*(.*?)\s*$`)
	patSimpleNote   = regexp.MustCompile(`^\s*(\d+)\s*[.\s]\s*([가-힣\w\s]{2,40}?)\s*$`)

	// Auditor's-report section titles numerically resemble note headers but
	// are not financial notes.
	auditorKeywords = regexp.MustCompile(
		`감사대상|감사참여|감사실시|감사의견|핵심감사|감사범위|감사기준|` +
			`경영진의\s*책임|감사인의\s*책임|감사보고|내부통제|계속기업`)
)

// DetectBoundaries finds note section starts in the segment list. The
// primary path submits a trimmed paragraph index to the judge; on judge
// failure or an empty valid result it falls back to pattern matching.
// Boundaries come back sorted by segment index; duplicate indices are kept
// (the note builder tolerates zero-length chunks).
func DetectBoundaries(ctx context.Context, segments []Segment, j judge.Judge) []Boundary {
	lines := boundaryCandidateLines(segments)
	if len(lines) == 0 {
		return regexFindBoundaries(segments)
	}

	if len(lines) > maxBoundaryLines {
		lines = lines[len(lines)-maxBoundaryLines:]
	}

	raw, err := j.CompleteJSON(ctx, []judge.Message{
		judge.System(boundarySystemPrompt),
		judge.User(fmt.Sprintf(boundaryUserPrompt, strings.Join(lines, "\n"))),
	})
	if err != nil {
		zap.L().Warn("dsd: boundary judge call failed, using regex fallback", zap.Error(err))
		return regexFindBoundaries(segments)
	}

	boundaries := validateBoundaries(raw, len(segments))
	if len(boundaries) == 0 {
		zap.L().Warn("dsd: boundary judge returned no valid entries, using regex fallback")
		return regexFindBoundaries(segments)
	}

	sort.SliceStable(boundaries, func(i, k int) bool {
		return boundaries[i].SegmentIndex < boundaries[k].SegmentIndex
	})
	zap.L().Info("dsd: judge boundary detection", zap.Int("count", len(boundaries)))
	return boundaries
}

// boundaryCandidateLines renders paragraph segments as "index: head" lines.
// Only the first line of a paragraph is shown, trimmed to 120 runes, so the
// judge sees titles rather than full body text.
func boundaryCandidateLines(segments []Segment) []string {
	var lines []string
	for i, seg := range segments {
		if seg.Kind != KindParagraph {
			continue
		}
		text := strings.TrimSpace(strings.ReplaceAll(seg.Text, "&cr;", " "))
		if idx := strings.IndexByte(text, '\n'); idx >= 0 {
			text = text[:idx]
		}
		if runes := []rune(text); len(runes) > 120 {
			text = string(runes[:120])
		}
		lines = append(lines, fmt.Sprintf("%d: %s", i, text))
	}
	return lines
}

// validateBoundaries keeps judge entries whose segment_index is an integer
// within range; everything else is dropped.
func validateBoundaries(raw any, segmentCount int) []Boundary {
	list, ok := raw.([]any)
	if !ok {
		return nil
	}

	var boundaries []Boundary
	for _, entry := range list {
		obj, ok := entry.(map[string]any)
		if !ok {
			continue
		}
		idxF, ok := obj["segment_index"].(float64)
		if !ok || idxF != float64(int(idxF)) {
			continue
		}
		idx := int(idxF)
		if idx < 0 || idx >= segmentCount {
			continue
		}
		boundaries = append(boundaries, Boundary{
			SegmentIndex: idx,
			Number:       strings.TrimSpace(asString(obj["note_number"])),
			Title:        strings.TrimSpace(asString(obj["note_title"])),
		})
	}
	return boundaries
}

// regexFindBoundaries is the deterministic fallback: explicit "주석 N."
// headers or bare "N. Title" lines, excluding auditor's-report sections.
func regexFindBoundaries(segments []Segment) []Boundary {
	var boundaries []Boundary
	for i, seg := range segments {
		if seg.Kind != KindParagraph {
			continue
		}
		for _, pat := range []*regexp.Regexp{patExplicitNote, patSimpleNote} {
			m := pat.FindStringSubmatch(seg.Text)
			if m == nil {
				continue
			}
			title := strings.TrimSpace(m[2])
			if auditorKeywords.MatchString(title) {
				zap.L().Debug("dsd: skipping auditor's-report section", zap.String("text", seg.Text))
				break
			}
			boundaries = append(boundaries, Boundary{
				SegmentIndex: i,
				Number:       strings.TrimSpace(m[1]),
				Title:        title,
			})
			break
		}
	}
	zap.L().Info("dsd: regex boundary detection", zap.Int("count", len(boundaries)))
	return boundaries
}

func asString(v any) string {
	switch s := v.(type) {
	case string:
		return s
	case float64:
		if s == float64(int64(s)) {
			return fmt.Sprintf("%d", int64(s))
		}
		return fmt.Sprintf("%v", s)
	default:
		return ""
	}
}

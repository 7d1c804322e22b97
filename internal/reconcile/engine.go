// Package reconcile compares every domestic amount cell against the
// English note text it was mapped to. The judge locates each figure in the
// foreign text; match classification and scale correction happen in code.
package reconcile

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/ksyjerry/fs-recon/internal/amount"
	"github.com/ksyjerry/fs-recon/internal/model"
	"github.com/ksyjerry/fs-recon/pkg/judge"
)

// DefaultChunkSize is the per-call item count for the degraded chunked
// pass after a whole-note judge call fails.
const DefaultChunkSize = 3

// DefaultMaxConcurrent bounds concurrent note-pair reconciliations.
const DefaultMaxConcurrent = 10

// missingEnNote marks every cell of a note that has no English counterpart.
const missingEnNote = "영문 Note 미존재"

// Progress stage boundaries: reconciliation owns the 20→90 span of the
// overall pipeline.
const (
	progressStart = 20
	progressSpan  = 70
)

const reconcileSystemPrompt = `당신은 한국어 재무제표 주석과 영문 재무제표 주석을 대조하는 전문가입니다.
한국어 항목의 각 금액이 영문 주석 텍스트에 존재하는지 찾고, 영문에 표기된 숫자를 그대로 보고하세요.`

const reconcileUserPrompt = `한국어 주석 %s. %s의 금액 항목들을 아래 영문 주석 텍스트에서 찾아주세요.

[한국어 금액 항목 목록 (JSON)]
%s

[영문 주석 텍스트]
%s

규칙:
1. 각 amount_id에 대해 영문 텍스트에서 대응 금액을 찾으세요 (레이블 번역·속성 의미 고려)
2. value_en은 영문에 표기된 숫자 그대로 반환 (단위 환산 금지 — 코드가 계산합니다)
3. 괄호 금액은 음수: "(1,234)" → -1234
4. 찾지 못한 항목은 found=false, value_en=null
5. attributes_en은 영문 컬럼 헤더 기준으로 구성
6. label_en은 해당 행의 영문 레이블
7. reasoning은 반드시 한국어로 작성하세요
   - found=true이고 금액이 일치할 것으로 보이면 빈 문자열("")
   - found=false이거나 금액 불일치가 의심될 때만 구체적인 사유 작성
8. 다른 텍스트 없이 JSON 배열만 반환

반환 형식:
[
  {
    "amount_id": "0_0",
    "found": true,
    "value_en": 1234567,
    "attributes_en": {"period": "current"},
    "label_en": "Cash and cash equivalents",
    "confidence": 0.95,
    "reasoning": ""
  }
]`

// Options tunes a reconciliation run. Zero values pick the defaults;
// Progress may be nil.
type Options struct {
	MaxConcurrent int
	ChunkSize     int
	// Progress receives a monotonic overall percentage as note pairs
	// complete.
	Progress func(pct int)
}

// payloadAmount is one domestic cell as presented to the judge.
type payloadAmount struct {
	AmountID   string            `json:"amount_id"`
	LabelKr    string            `json:"label_kr"`
	Attributes map[string]string `json:"attributes"`
	ValueKr    float64           `json:"value_kr"`
	RawTextKr  string            `json:"raw_text_kr"`
}

// Reconcile runs every note pair under bounded concurrency and returns
// results in the same order as the input mappings. A pair whose judge
// calls all fail degrades to a fully not-found result rather than failing
// the run.
func Reconcile(ctx context.Context, mappings []model.NoteMapping, j judge.Judge, opts Options) []model.ReconcileResult {
	if opts.MaxConcurrent <= 0 {
		opts.MaxConcurrent = DefaultMaxConcurrent
	}
	if opts.ChunkSize <= 0 {
		opts.ChunkSize = DefaultChunkSize
	}

	results := make([]model.ReconcileResult, len(mappings))

	var (
		mu        sync.Mutex
		completed int
	)
	// The callback runs inside the critical section so percentages are
	// delivered in completion order.
	reportProgress := func() {
		mu.Lock()
		defer mu.Unlock()
		completed++
		if opts.Progress != nil {
			opts.Progress(progressStart + completed*progressSpan/len(mappings))
		}
	}

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(opts.MaxConcurrent)
	for i, m := range mappings {
		g.Go(func() error {
			results[i] = reconcilePair(gCtx, m, j, opts.ChunkSize)
			reportProgress()
			return nil
		})
	}
	_ = g.Wait()

	zap.L().Info("reconcile: run complete", zap.Int("note_pairs", len(results)))
	return results
}

// reconcilePair reconciles one mapped note. Header-only notes pass through
// untouched; unmatched notes come back fully not-found.
func reconcilePair(ctx context.Context, m model.NoteMapping, j judge.Judge, chunkSize int) model.ReconcileResult {
	result := model.ReconcileResult{
		NoteNumberKr:      m.KrNote.Number,
		NoteTitleKr:       m.KrNote.Title,
		MappingConfidence: m.Confidence,
	}
	if m.EnNote != nil {
		result.NoteNumberEn = m.EnNote.Number
		result.NoteTitleEn = m.EnNote.Title
	}

	if m.EnNote == nil {
		result.Items = notFoundItems(m.KrNote, missingEnNote)
		return result
	}

	payload := buildPayload(m.KrNote)
	if len(payload) == 0 {
		// Nothing to compare; carry the item structure through.
		result.Items = notFoundItems(m.KrNote, "")
		return result
	}

	responses, err := judgePair(ctx, m, payload, j)
	if err != nil {
		zap.L().Warn("reconcile: whole-note call failed, switching to chunked pass",
			zap.String("note", m.KrNote.Number),
			zap.Error(err),
		)
		responses = judgeChunked(ctx, m, payload, j, chunkSize)
	}

	result.Items = assembleItems(m.KrNote, responses)
	return result
}

// buildPayload flattens comparable cells: non-header items whose amounts
// carry a parsed value. The amount_id encodes item and cell position.
func buildPayload(note model.DSDNote) []payloadAmount {
	var payload []payloadAmount
	for _, item := range note.Items {
		if item.IsHeaderOnly {
			continue
		}
		for ai, amt := range item.Amounts {
			if amt.Value == nil {
				continue
			}
			payload = append(payload, payloadAmount{
				AmountID:   fmt.Sprintf("%d_%d", item.ItemID, ai),
				LabelKr:    item.Label,
				Attributes: amt.CleanAttributes(),
				ValueKr:    *amt.Value,
				RawTextKr:  amt.RawText,
			})
		}
	}
	return payload
}

// judgeResponse is one validated entry from the judge output.
type judgeResponse struct {
	found        bool
	valueEn      *float64
	attributesEn map[string]string
	labelEn      string
	confidence   float64
	reasoning    string
}

// judgePair submits the whole payload in a single call.
func judgePair(ctx context.Context, m model.NoteMapping, payload []payloadAmount, j judge.Judge) (map[string]judgeResponse, error) {
	itemsJSON, err := json.Marshal(payload)
	if err != nil {
		return nil, eris.Wrap(err, "reconcile: marshal payload")
	}

	raw, err := j.CompleteJSON(ctx, []judge.Message{
		judge.System(reconcileSystemPrompt),
		judge.User(fmt.Sprintf(reconcileUserPrompt,
			m.KrNote.Number, m.KrNote.Title, string(itemsJSON), m.EnNote.RawText)),
	})
	if err != nil {
		return nil, err
	}

	responses := parseResponses(raw)
	if len(responses) == 0 {
		return nil, eris.Errorf("reconcile: empty judge response for note %s", m.KrNote.Number)
	}
	return responses, nil
}

// judgeChunked retries in small batches; a failed batch marks only its own
// cells as not found.
func judgeChunked(ctx context.Context, m model.NoteMapping, payload []payloadAmount, j judge.Judge, chunkSize int) map[string]judgeResponse {
	byItem := make(map[int][]payloadAmount)
	var order []int
	for _, p := range payload {
		var itemID int
		fmt.Sscanf(p.AmountID, "%d_", &itemID) //nolint:errcheck
		if _, seen := byItem[itemID]; !seen {
			order = append(order, itemID)
		}
		byItem[itemID] = append(byItem[itemID], p)
	}

	responses := make(map[string]judgeResponse)
	for start := 0; start < len(order); start += chunkSize {
		end := min(start+chunkSize, len(order))
		var chunk []payloadAmount
		for _, id := range order[start:end] {
			chunk = append(chunk, byItem[id]...)
		}
		part, err := judgePair(ctx, m, chunk, j)
		if err != nil {
			zap.L().Warn("reconcile: chunk failed, cells marked not found",
				zap.String("note", m.KrNote.Number),
				zap.Int("chunk_start", start),
				zap.Error(err),
			)
			continue
		}
		for id, r := range part {
			responses[id] = r
		}
	}
	return responses
}

// parseResponses validates the judge's array output keyed by amount_id.
func parseResponses(raw any) map[string]judgeResponse {
	list, ok := raw.([]any)
	if !ok {
		return nil
	}
	out := make(map[string]judgeResponse, len(list))
	for _, e := range list {
		obj, ok := e.(map[string]any)
		if !ok {
			continue
		}
		id, _ := obj["amount_id"].(string)
		if id == "" {
			continue
		}
		r := judgeResponse{}
		r.found, _ = obj["found"].(bool)
		if v, ok := obj["value_en"].(float64); ok {
			r.valueEn = &v
		}
		if r.valueEn == nil {
			r.found = false
		}
		if attrs, ok := obj["attributes_en"].(map[string]any); ok {
			r.attributesEn = amount.FlattenAttrs(attrs)
		}
		r.labelEn, _ = obj["label_en"].(string)
		if c, ok := obj["confidence"].(float64); ok {
			r.confidence = c
		}
		r.reasoning, _ = obj["reasoning"].(string)
		out[id] = r
	}
	return out
}

// assembleItems rebuilds the domestic item tree with one AmountMatch per
// comparable cell. Items keep their input order; the English label comes
// from the first found cell of each item.
func assembleItems(note model.DSDNote, responses map[string]judgeResponse) []model.ReconcileItem {
	items := make([]model.ReconcileItem, 0, len(note.Items))
	for _, item := range note.Items {
		out := model.ReconcileItem{
			ItemID:       item.ItemID,
			LabelKr:      item.Label,
			IsHeaderOnly: item.IsHeaderOnly,
		}
		if !item.IsHeaderOnly {
			for ai, amt := range item.Amounts {
				if amt.Value == nil {
					continue
				}
				id := fmt.Sprintf("%d_%d", item.ItemID, ai)
				match := buildMatch(id, amt, responses[id])
				if out.LabelEn == "" && match.Found {
					out.LabelEn = responses[id].labelEn
				}
				out.Matches = append(out.Matches, match)
			}
		}
		items = append(items, out)
	}
	return items
}

// buildMatch classifies one cell. Percentage cells compare directly with
// no scale correction; everything else goes through classify. The judge's
// rationale is kept only on not-found and mismatched cells.
func buildMatch(id string, amt model.DSDAmount, r judgeResponse) model.AmountMatch {
	match := model.AmountMatch{
		AmountID:     id,
		AttributesKr: amt.CleanAttributes(),
		ValueKr:      amt.Value,
		Confidence:   r.confidence,
		Found:        r.found && r.valueEn != nil,
	}
	if !match.Found {
		match.Note = r.reasoning
		return match
	}

	match.AttributesEn = r.attributesEn

	var (
		isMatch  bool
		storedEn float64
		variance float64
	)
	if amt.IsPercent() {
		variance = *r.valueEn - *amt.Value
		isMatch = variance <= matchTolerance && variance >= -matchTolerance
		storedEn = *r.valueEn
	} else {
		isMatch, storedEn, variance = classify(*amt.Value, *r.valueEn)
	}

	match.ValueEn = &storedEn
	match.IsMatch = &isMatch
	match.Variance = &variance
	if !isMatch {
		match.Note = r.reasoning
	}
	return match
}

// notFoundItems synthesizes a fully not-found item tree, used when the
// note has no English counterpart or nothing to compare.
func notFoundItems(note model.DSDNote, noteText string) []model.ReconcileItem {
	items := make([]model.ReconcileItem, 0, len(note.Items))
	for _, item := range note.Items {
		out := model.ReconcileItem{
			ItemID:       item.ItemID,
			LabelKr:      item.Label,
			IsHeaderOnly: item.IsHeaderOnly,
		}
		if !item.IsHeaderOnly {
			for ai, amt := range item.Amounts {
				if amt.Value == nil {
					continue
				}
				out.Matches = append(out.Matches, model.AmountMatch{
					AmountID:     fmt.Sprintf("%d_%d", item.ItemID, ai),
					AttributesKr: amt.CleanAttributes(),
					ValueKr:      amt.Value,
					Found:        false,
					Note:         noteText,
				})
			}
		}
		items = append(items, out)
	}
	return items
}

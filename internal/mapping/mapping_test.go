package mapping

import (
	"context"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ksyjerry/fs-recon/internal/model"
	"github.com/ksyjerry/fs-recon/pkg/judge"
)

type fakeJudge struct {
	fn func(msgs []judge.Message) (any, error)
}

func (f fakeJudge) CompleteJSON(_ context.Context, msgs []judge.Message) (any, error) {
	return f.fn(msgs)
}

func krNote(number, title string) model.DSDNote {
	return model.DSDNote{Number: number, Title: title}
}

func enDoc(notes ...model.EnNote) *model.EnDocument {
	return &model.EnDocument{
		Filename: "report.docx",
		Format:   model.FormatWord,
		Notes:    notes,
	}
}

func enNote(number, title string) model.EnNote {
	return model.EnNote{Number: number, Title: title, RawText: title, SourceFormat: model.FormatWord}
}

func TestMapNotesByNumber(t *testing.T) {
	t.Parallel()

	kr := []model.DSDNote{krNote("1", "일반사항"), krNote("2", "재고자산")}
	doc := enDoc(enNote("2", "Inventories"), enNote("1", "General"))

	j := fakeJudge{fn: func([]judge.Message) (any, error) {
		t.Fatal("no semantic call expected when every note matches by number")
		return nil, nil
	}}

	got := MapNotes(context.Background(), kr, doc, j)
	require.Len(t, got, 2)

	// Output preserves the Korean input order.
	assert.Equal(t, "1", got[0].KrNote.Number)
	assert.Equal(t, "General", got[0].EnNote.Title)
	assert.Equal(t, model.MapByNumber, got[0].Method)
	assert.Equal(t, 1.0, got[0].Confidence)

	assert.Equal(t, "Inventories", got[1].EnNote.Title)
}

func TestMapNotesNumberNormalization(t *testing.T) {
	t.Parallel()

	kr := []model.DSDNote{krNote("12", "법인세")}
	doc := enDoc(enNote("12.0", "Income Taxes"))

	j := fakeJudge{fn: func([]judge.Message) (any, error) {
		return map[string]any{"mappings": []any{}}, nil
	}}

	got := MapNotes(context.Background(), kr, doc, j)
	require.Len(t, got, 1)
	assert.Equal(t, model.MapByNumber, got[0].Method)
}

func TestMapNotesSemanticTier(t *testing.T) {
	t.Parallel()

	kr := []model.DSDNote{krNote("3", "현금및현금성자산"), krNote("4", "매출채권")}
	doc := enDoc(enNote("5", "Cash and Cash Equivalents"), enNote("6", "Trade Receivables"))

	j := fakeJudge{fn: func([]judge.Message) (any, error) {
		return map[string]any{"mappings": []any{
			map[string]any{"kr_num": "3", "en_num": "5", "confidence": 0.9},
			map[string]any{"kr_num": "4", "en_num": "6", "confidence": 0.85},
			map[string]any{"kr_num": "99", "en_num": "5", "confidence": 0.9}, // unknown kr dropped
		}}, nil
	}}

	got := MapNotes(context.Background(), kr, doc, j)
	require.Len(t, got, 2)

	assert.Equal(t, model.MapBySemantic, got[0].Method)
	assert.Equal(t, "Cash and Cash Equivalents", got[0].EnNote.Title)
	assert.Equal(t, 0.9, got[0].Confidence)
	assert.Equal(t, "Trade Receivables", got[1].EnNote.Title)
}

func TestMapNotesDuplicateKoreanNumbers(t *testing.T) {
	t.Parallel()

	// Two domestic notes share a number; a single semantic pairing must land
	// on one position, not be copied to both.
	kr := []model.DSDNote{krNote("10", "유형자산"), krNote("10", "무형자산")}
	doc := enDoc(enNote("4", "Property, Plant and Equipment"))

	j := fakeJudge{fn: func([]judge.Message) (any, error) {
		return map[string]any{"mappings": []any{
			map[string]any{"kr_num": "10", "en_num": "4", "confidence": 0.8},
		}}, nil
	}}

	got := MapNotes(context.Background(), kr, doc, j)
	require.Len(t, got, 2)

	assert.Equal(t, model.MapBySemantic, got[0].Method)
	assert.Equal(t, "유형자산", got[0].KrNote.Title)
	require.NotNil(t, got[0].EnNote)
	assert.Equal(t, "Property, Plant and Equipment", got[0].EnNote.Title)

	assert.Equal(t, model.MapUnmatched, got[1].Method)
	assert.Equal(t, "무형자산", got[1].KrNote.Title)
	assert.Nil(t, got[1].EnNote)
}

func TestMapNotesUnmatched(t *testing.T) {
	t.Parallel()

	kr := []model.DSDNote{krNote("1", "일반사항"), krNote("9", "우발부채")}
	doc := enDoc(enNote("1", "General"))

	j := fakeJudge{fn: func([]judge.Message) (any, error) {
		return nil, eris.New("judge unavailable")
	}}

	got := MapNotes(context.Background(), kr, doc, j)
	require.Len(t, got, 2)

	assert.Equal(t, model.MapByNumber, got[0].Method)
	assert.Equal(t, model.MapUnmatched, got[1].Method)
	assert.Nil(t, got[1].EnNote)
	assert.Zero(t, got[1].Confidence)
}

func TestMapNotesFallbackWholeDocument(t *testing.T) {
	t.Parallel()

	kr := []model.DSDNote{krNote("1", "일반사항"), krNote("2", "재고자산")}
	doc := &model.EnDocument{
		Filename:    "report.txt",
		Format:      model.FormatText,
		FullRawText: "entire document text",
	}

	j := fakeJudge{fn: func([]judge.Message) (any, error) {
		t.Fatal("no judge call expected in fallback mode")
		return nil, nil
	}}

	got := MapNotes(context.Background(), kr, doc, j)
	require.Len(t, got, 2)
	for _, m := range got {
		assert.Equal(t, model.MapFallback, m.Method)
		assert.Equal(t, 0.5, m.Confidence)
		require.NotNil(t, m.EnNote)
		assert.Equal(t, "ALL", m.EnNote.Number)
		assert.Equal(t, "entire document text", m.EnNote.RawText)
	}
}

func TestNormalizeNumber(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "12", normalizeNumber(" 12 "))
	assert.Equal(t, "12", normalizeNumber("12.0"))
	assert.Equal(t, "12", normalizeNumber("12."))
	assert.Equal(t, "unknown_1", normalizeNumber("unknown_1"))
}

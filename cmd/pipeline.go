package main

import (
	"context"
	"fmt"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/ksyjerry/fs-recon/internal/config"
	"github.com/ksyjerry/fs-recon/internal/dsd"
	"github.com/ksyjerry/fs-recon/internal/endoc"
	"github.com/ksyjerry/fs-recon/internal/mapping"
	"github.com/ksyjerry/fs-recon/internal/reconcile"
	"github.com/ksyjerry/fs-recon/internal/report"
	"github.com/ksyjerry/fs-recon/pkg/judge"
)

// newJudge builds the configured judge client.
func newJudge(cfg config.JudgeConfig) *judge.Client {
	return judge.NewClient(judge.ClientConfig{
		APIKey:            cfg.Key,
		Model:             cfg.Model,
		MaxTokens:         cfg.MaxTokens,
		RequestsPerSecond: cfg.RequestsPerSecond,
	})
}

// runPipeline executes the full reconciliation: DSD parse, English parse,
// note mapping, amount reconciliation, report. Progress percentages are
// overall-run checkpoints; reconciliation owns the 20→90 span. The
// progress callback may be nil.
func runPipeline(ctx context.Context, j judge.Judge, dsdPath, enPath, outPath string, progress func(pct int, msg string)) error {
	if progress == nil {
		progress = func(int, string) {}
	}

	progress(5, "DSD 파일 변환 + 영문 재무제표 파싱 중...")
	krNotes, err := dsd.ParseFile(ctx, dsdPath, j, cfg.Pipeline.MaxConcurrentCalls)
	if err != nil {
		return err
	}
	if len(krNotes) == 0 {
		return eris.New("pipeline: no notes extracted from DSD file")
	}
	zap.L().Info("pipeline: DSD parsed", zap.Int("notes", len(krNotes)))

	enDoc, err := endoc.ParseFile(enPath)
	if err != nil {
		return err
	}
	progress(15, fmt.Sprintf("파싱 완료 — 주석 %d개 / 영문 Note %d개", len(krNotes), len(enDoc.Notes)))

	progress(20, "주석 매핑 중...")
	mappings := mapping.MapNotes(ctx, krNotes, enDoc, j)

	results := reconcile.Reconcile(ctx, mappings, j, reconcile.Options{
		MaxConcurrent: cfg.Pipeline.MaxConcurrentCalls,
		ChunkSize:     cfg.Pipeline.ChunkItemSize,
		Progress: func(pct int) {
			progress(pct, "금액 대사 중...")
		},
	})

	progress(95, "Excel 파일 생성 중...")
	if err := report.Write(results, outPath); err != nil {
		return err
	}

	progress(100, "완료")
	return nil
}

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ksyjerry/fs-recon/internal/jobs"
	"github.com/ksyjerry/fs-recon/pkg/judge"
)

// maxUploadBytes caps each uploaded file.
const maxUploadBytes = 50 << 20

const sweepInterval = 5 * time.Minute

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the reconciliation HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		store := jobs.NewStore(time.Duration(cfg.Jobs.TTLMinutes)*time.Minute, nil)
		go store.RunSweeper(ctx, sweepInterval)

		j := newJudge(cfg.Judge)

		r := chi.NewRouter()
		r.Use(middleware.RequestID)
		r.Use(middleware.Recoverer)
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: []string{"*"},
			AllowedMethods: []string{"GET", "POST", "OPTIONS"},
			AllowedHeaders: []string{"*"},
		}))

		r.Get("/health", func(w http.ResponseWriter, req *http.Request) {
			writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
		})
		r.Post("/api/upload", handleUpload(ctx, store, j))
		r.Get("/api/status/{jobID}", handleStatus(store))
		r.Get("/api/download/{jobID}", handleDownload(store))

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr:    fmt.Sprintf(":%d", port),
			Handler: r,
		}

		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()

		zap.L().Info("starting server", zap.Int("port", port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return eris.Wrap(err, "server listen")
		}
		return nil
	},
}

// handleUpload receives the two input files, registers a job, and runs the
// pipeline in the background.
func handleUpload(ctx context.Context, store *jobs.Store, j judge.Judge) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		store.Sweep()

		if err := req.ParseMultipartForm(maxUploadBytes); err != nil {
			writeError(w, http.StatusBadRequest, "잘못된 multipart 요청입니다.")
			return
		}

		jobID := store.Create()
		uploadDir := filepath.Join(cfg.Pipeline.TempDir, "uploads", jobID)
		if err := os.MkdirAll(uploadDir, 0o755); err != nil {
			store.Fail(jobID, "업로드 디렉토리 생성 실패")
			writeError(w, http.StatusInternalServerError, "업로드 저장에 실패했습니다.")
			return
		}

		dsdPath, err := saveUpload(req, "dsd_file", uploadDir, "upload.dsd")
		if err != nil {
			store.Fail(jobID, err.Error())
			writeError(w, http.StatusBadRequest, "dsd_file과 en_file이 모두 필요합니다.")
			return
		}
		enPath, err := saveUpload(req, "en_file", uploadDir, "upload.docx")
		if err != nil {
			store.Fail(jobID, err.Error())
			writeError(w, http.StatusBadRequest, "dsd_file과 en_file이 모두 필요합니다.")
			return
		}

		outDir := filepath.Join(cfg.Pipeline.TempDir, "outputs")
		if err := os.MkdirAll(outDir, 0o755); err != nil {
			store.Fail(jobID, "출력 디렉토리 생성 실패")
			writeError(w, http.StatusInternalServerError, "출력 저장에 실패했습니다.")
			return
		}

		outPath := filepath.Join(outDir, jobID+".xlsx")
		go runJob(ctx, store, j, jobID, dsdPath, enPath, outPath)

		writeJSON(w, http.StatusOK, map[string]string{
			"job_id":  jobID,
			"status":  string(jobs.StatusProcessing),
			"message": "작업이 시작되었습니다.",
		})
	}
}

func runJob(ctx context.Context, store *jobs.Store, j judge.Judge, jobID, dsdPath, enPath, outPath string) {
	store.AppendLog(jobID, "처리 파이프라인 시작")

	err := runPipeline(ctx, j, dsdPath, enPath, outPath, func(pct int, msg string) {
		store.SetProgress(jobID, pct, msg)
		store.AppendLog(jobID, msg)
	})
	if err != nil {
		zap.L().Error("job failed", zap.String("job_id", jobID), zap.Error(err))
		store.Fail(jobID, err.Error())
		return
	}

	store.Complete(jobID, outPath)
	zap.L().Info("job complete", zap.String("job_id", jobID), zap.String("report", outPath))
}

func handleStatus(store *jobs.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		job, ok := store.Get(chi.URLParam(req, "jobID"))
		if !ok {
			writeError(w, http.StatusNotFound, "해당 job_id를 찾을 수 없습니다.")
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"job_id":   job.ID,
			"status":   job.Status,
			"progress": job.Progress,
			"step":     job.Message,
			"error":    job.Error,
			"logs":     job.Logs,
		})
	}
}

func handleDownload(store *jobs.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		job, ok := store.Get(chi.URLParam(req, "jobID"))
		if !ok {
			writeError(w, http.StatusNotFound, "해당 job_id를 찾을 수 없습니다.")
			return
		}
		if job.Status != jobs.StatusCompleted {
			writeError(w, http.StatusBadRequest,
				fmt.Sprintf("아직 완료되지 않은 작업입니다. 현재 상태: %s", job.Status))
			return
		}
		if job.ReportPath == "" {
			writeError(w, http.StatusNotFound, "출력 파일을 찾을 수 없습니다.")
			return
		}

		filename := filepath.Base(job.ReportPath)
		w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
		w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename=%q`, filename))
		http.ServeFile(w, req, job.ReportPath)
	}
}

// saveUpload copies one multipart file field to dir, keeping the client's
// filename when present.
func saveUpload(req *http.Request, field, dir, fallbackName string) (string, error) {
	file, header, err := req.FormFile(field)
	if err != nil {
		return "", eris.Wrapf(err, "serve: missing %s", field)
	}
	defer file.Close() //nolint:errcheck

	name := filepath.Base(header.Filename)
	if name == "" || name == "." {
		name = fallbackName
	}
	path := filepath.Join(dir, name)

	out, err := os.Create(path)
	if err != nil {
		return "", eris.Wrapf(err, "serve: create %s", path)
	}
	defer out.Close() //nolint:errcheck

	if _, err := io.Copy(out, io.LimitReader(file, maxUploadBytes)); err != nil {
		return "", eris.Wrapf(err, "serve: write %s", path)
	}
	return path, nil
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}

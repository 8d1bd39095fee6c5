package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"strconv"
	"sync"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/site-audit/internal/model"
	"github.com/sells-group/site-audit/internal/pipeline"
	"github.com/sells-group/site-audit/internal/report"
	"github.com/sells-group/site-audit/internal/store"
)

var servePort int

const shutdownGrace = 30 * time.Second

// scanRunner is the part of the pipeline the API drives.
type scanRunner interface {
	Start(ctx context.Context, rawURL string, maxPages int) (*model.Scan, error)
	Execute(ctx context.Context, scan *model.Scan) (*model.Scan, error)
}

// apiServer serves the scan API. Asynchronous scans run on scanCtx, which
// outlives individual requests.
type apiServer struct {
	store   store.Store
	runner  scanRunner
	scanCtx context.Context
	scans   sync.WaitGroup
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the scan API server",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initAuditEnv(ctx, "serve", true)
		if err != nil {
			return err
		}
		defer env.Close()

		scanCtx, cancelScans := context.WithCancel(context.WithoutCancel(ctx))
		defer cancelScans()

		router, api := buildRouter(scanCtx, env.Store, env.Pipeline, cfg.Server.CORSOrigins)

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr:              fmt.Sprintf(":%d", port),
			Handler:           router,
			ReadHeaderTimeout: 10 * time.Second,
		}

		// Graceful shutdown
		done := make(chan struct{})
		go func() {
			defer close(done)
			<-ctx.Done()
			zap.L().Info("shutting down server")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				zap.L().Warn("server shutdown", zap.Error(err))
			}
			api.drain(shutdownCtx, cancelScans)
		}()

		zap.L().Info("starting server", zap.Int("port", port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return eris.Wrap(err, "server listen")
		}
		<-done
		return nil
	},
}

// buildRouter mounts the API routes.
func buildRouter(scanCtx context.Context, st store.Store, runner scanRunner, corsOrigins []string) (http.Handler, *apiServer) {
	api := &apiServer{store: st, runner: runner, scanCtx: scanCtx}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: corsOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/health", api.health)
	r.Route("/v1/scans", func(r chi.Router) {
		r.Post("/", api.createScan)
		r.Get("/", api.listScans)
		r.Get("/{id}", api.getScan)
		r.Get("/{id}/screenshot", api.getScreenshot)
		r.Get("/{id}/report", api.getReport)
	})
	return r, api
}

// drain waits for in-flight scans until ctx expires, then cancels them.
func (a *apiServer) drain(ctx context.Context, cancel context.CancelFunc) {
	finished := make(chan struct{})
	go func() {
		a.scans.Wait()
		close(finished)
	}()
	select {
	case <-finished:
	case <-ctx.Done():
		zap.L().Warn("server: cancelling in-flight scans")
		cancel()
		<-finished
	}
}

func (a *apiServer) health(w http.ResponseWriter, r *http.Request) {
	if a.store != nil {
		if err := a.store.Ping(r.Context()); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable", "error": err.Error()})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type createScanRequest struct {
	URL      string `json:"url"`
	MaxPages int    `json:"max_pages"`
}

func (a *apiServer) createScan(w http.ResponseWriter, r *http.Request) {
	var req createScanRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.URL == "" {
		writeError(w, http.StatusBadRequest, "url is required")
		return
	}
	if req.MaxPages < 0 {
		writeError(w, http.StatusBadRequest, "max_pages must not be negative")
		return
	}

	scan, err := a.runner.Start(r.Context(), req.URL, req.MaxPages)
	if err != nil {
		if errors.Is(err, pipeline.ErrInvalidURL) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		zap.L().Error("server: start scan", zap.String("url", req.URL), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "could not start scan")
		return
	}

	if wait, _ := strconv.ParseBool(r.URL.Query().Get("wait")); wait {
		done, runErr := a.runner.Execute(r.Context(), scan)
		switch {
		case runErr == nil:
			writeJSON(w, http.StatusOK, done)
		case errors.Is(runErr, pipeline.ErrNoPages):
			writeJSON(w, http.StatusUnprocessableEntity, done)
		default:
			writeError(w, http.StatusInternalServerError, runErr.Error())
		}
		return
	}

	a.scans.Add(1)
	go func() {
		defer a.scans.Done()
		if _, runErr := a.runner.Execute(a.scanCtx, scan); runErr != nil {
			zap.L().Warn("server: scan failed", zap.String("scan_id", scan.ID), zap.Error(runErr))
		}
	}()

	writeJSON(w, http.StatusAccepted, map[string]string{
		"id":     scan.ID,
		"status": string(model.ScanStatusQueued),
		"url":    scan.URL,
	})
}

func (a *apiServer) listScans(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := model.ScanFilter{Status: model.ScanStatus(q.Get("status"))}

	var err error
	if filter.Limit, err = intParam(q.Get("limit")); err != nil {
		writeError(w, http.StatusBadRequest, "limit must be a non-negative integer")
		return
	}
	if filter.Offset, err = intParam(q.Get("offset")); err != nil {
		writeError(w, http.StatusBadRequest, "offset must be a non-negative integer")
		return
	}

	scans, err := a.store.ListScans(r.Context(), filter)
	if err != nil {
		zap.L().Error("server: list scans", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "could not list scans")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"scans": scans})
}

func (a *apiServer) getScan(w http.ResponseWriter, r *http.Request) {
	scan, ok := a.lookup(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, scan)
}

func (a *apiServer) getReport(w http.ResponseWriter, r *http.Request) {
	scan, ok := a.lookup(w, r)
	if !ok {
		return
	}
	w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(report.Markdown(scan)))
}

func (a *apiServer) getScreenshot(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	shot, err := a.store.GetScreenshot(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) || (err == nil && len(shot) == 0) {
		writeError(w, http.StatusNotFound, "screenshot not found")
		return
	}
	if err != nil {
		zap.L().Error("server: get screenshot", zap.String("scan_id", id), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "could not load screenshot")
		return
	}
	w.Header().Set("Content-Type", "image/webp")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(shot)
}

func (a *apiServer) lookup(w http.ResponseWriter, r *http.Request) (*model.Scan, bool) {
	id := chi.URLParam(r, "id")
	scan, err := a.store.GetScan(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "scan not found")
		return nil, false
	}
	if err != nil {
		zap.L().Error("server: get scan", zap.String("scan_id", id), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "could not load scan")
		return nil, false
	}
	return scan, true
}

func intParam(s string) (int, error) {
	if s == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return 0, eris.Errorf("invalid integer %q", s)
	}
	return n, nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/platewise/recipe-cli/internal/model"
	"github.com/platewise/recipe-cli/internal/platform"
	"github.com/platewise/recipe-cli/internal/store"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP extraction API",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr:    fmt.Sprintf(":%d", port),
			Handler: newRouter(env),
		}

		// Graceful shutdown
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

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}

// newRouter builds the API routes over an initialized environment.
func newRouter(env *extractorEnv) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
	}))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/v1", func(r chi.Router) {
		r.Post("/admit", env.handleAdmit)
		r.Post("/extract/video", env.handleExtractVideo)
		r.Post("/extract/web", env.handleExtractWeb)
		r.Get("/runs", env.handleListRuns)
		r.Get("/runs/{id}", env.handleGetRun)
	})

	return r
}

type extractRequest struct {
	URL   string `json:"url"`
	Force bool   `json:"force,omitempty"`
}

func decodeExtractRequest(w http.ResponseWriter, r *http.Request) (*extractRequest, bool) {
	var req extractRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return nil, false
	}
	if req.URL == "" {
		writeError(w, http.StatusBadRequest, "url is required")
		return nil, false
	}
	return &req, true
}

func (e *extractorEnv) handleAdmit(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeExtractRequest(w, r)
	if !ok {
		return
	}

	result, err := e.Gate.Check(r.Context(), req.URL)
	if err != nil {
		zap.L().Error("admit check failed", zap.String("url", req.URL), zap.Error(err))
		writeError(w, http.StatusBadGateway, "preflight check failed")
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (e *extractorEnv) handleExtractVideo(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeExtractRequest(w, r)
	if !ok {
		return
	}
	ctx := r.Context()

	pl := platform.Classify(req.URL)
	if !pl.IsVideo() {
		writeError(w, http.StatusBadRequest, "unsupported video platform")
		return
	}

	if !req.Force {
		prior, err := e.Store.GetRunBySourceURL(ctx, req.URL)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "run lookup failed")
			return
		}
		if prior != nil && prior.Status == model.RunSucceeded {
			writeJSON(w, http.StatusOK, prior)
			return
		}
	}

	run, err := e.Store.CreateRun(ctx, req.URL, pl)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "create run failed")
		return
	}

	pf, err := e.Gate.Check(ctx, req.URL)
	if err != nil {
		_ = e.Store.FailRun(ctx, run.ID, 0, model.FailNetwork, err.Error())
		writeError(w, http.StatusBadGateway, "preflight check failed")
		return
	}
	_ = e.Store.AttachPreflight(ctx, run.ID, pf)

	if !pf.Pass && !req.Force {
		_ = e.Store.FailRun(ctx, run.ID, 0, model.FailAdmissionRejected, pf.Reason)
		e.writeRun(ctx, w, run.ID, http.StatusUnprocessableEntity)
		return
	}

	outcome := e.Video.Extract(ctx, req.URL)
	if outcome.Failed() {
		_ = e.Store.FailRun(ctx, run.ID, outcome.RetryCount, outcome.Failure, outcome.FailureDetail)
		e.writeRun(ctx, w, run.ID, http.StatusBadGateway)
		return
	}

	if err := e.Store.CompleteRun(ctx, run.ID, outcome.Recipe.Method, outcome.RetryCount, outcome.Recipe); err != nil {
		writeError(w, http.StatusInternalServerError, "persist run failed")
		return
	}
	e.writeRun(ctx, w, run.ID, http.StatusOK)
}

func (e *extractorEnv) handleExtractWeb(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeExtractRequest(w, r)
	if !ok {
		return
	}
	ctx := r.Context()

	if !req.Force {
		prior, err := e.Store.GetRunBySourceURL(ctx, req.URL)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "run lookup failed")
			return
		}
		if prior != nil && prior.Status == model.RunSucceeded {
			writeJSON(w, http.StatusOK, prior)
			return
		}
	}

	run, err := e.Store.CreateRun(ctx, req.URL, model.PlatformWeb)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "create run failed")
		return
	}

	result := e.Web.Extract(ctx, req.URL)
	if !result.Adequate() {
		_ = e.Store.FailRun(ctx, run.ID, 0, model.FailExtractionInadequate, "no layer produced 3 ingredients or 2 steps")
		e.writeRun(ctx, w, run.ID, http.StatusUnprocessableEntity)
		return
	}

	recipe := webRecipe(result, req.URL)
	if err := e.Store.CompleteRun(ctx, run.ID, recipe.Method, 0, recipe); err != nil {
		writeError(w, http.StatusInternalServerError, "persist run failed")
		return
	}
	e.writeRun(ctx, w, run.ID, http.StatusOK)
}

func (e *extractorEnv) handleListRuns(w http.ResponseWriter, r *http.Request) {
	filter := store.RunFilter{
		Status:    model.RunStatus(r.URL.Query().Get("status")),
		Platform:  model.Platform(r.URL.Query().Get("platform")),
		SourceURL: r.URL.Query().Get("source"),
	}
	runs, err := e.Store.ListRuns(r.Context(), filter)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "list runs failed")
		return
	}
	if runs == nil {
		runs = []model.Run{}
	}
	writeJSON(w, http.StatusOK, runs)
}

func (e *extractorEnv) handleGetRun(w http.ResponseWriter, r *http.Request) {
	run, err := e.Store.GetRun(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusNotFound, "run not found")
		return
	}
	writeJSON(w, http.StatusOK, run)
}

func (e *extractorEnv) writeRun(ctx context.Context, w http.ResponseWriter, runID string, status int) {
	run, err := e.Store.GetRun(ctx, runID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "reload run failed")
		return
	}
	writeJSON(w, status, run)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

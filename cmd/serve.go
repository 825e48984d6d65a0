package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/blockcheck/internal/domains"
	"github.com/sells-group/blockcheck/internal/model"
	"github.com/sells-group/blockcheck/internal/store"
)

var servePort int

// checkRunner is the part of runner.Runner the API needs.
type checkRunner interface {
	Run(ctx context.Context, domains []string) (*model.Report, error)
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the check API over HTTP",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signalContext(cmd.Context())
		defer stop()

		if servePort != 0 {
			cfg.Server.Port = servePort
		}

		env, err := initEnv(ctx, "serve", envOptions{})
		if err != nil {
			return err
		}
		defer env.Close()

		srv := &http.Server{
			Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
			Handler:           buildRouter(env.Runner, env.Store),
			ReadHeaderTimeout: 10 * time.Second,
		}

		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()

		zap.L().Info("starting server", zap.Int("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return eris.Wrap(err, "server listen")
		}
		return nil
	},
}

type checkRequest struct {
	Domains []string `json:"domains"`
}

// api serves the HTTP endpoints. Only one check runs at a time since all
// checks share one browser.
type api struct {
	runner checkRunner
	store  store.Store
	busy   sync.Mutex
}

// buildRouter wires the API routes. st may be nil, in which case the
// history endpoints answer 503.
func buildRouter(runner checkRunner, st store.Store) http.Handler {
	a := &api{runner: runner, store: st}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Route("/v1", func(r chi.Router) {
		r.Post("/check", a.check)
		r.Get("/results", a.results)
		r.Get("/status/{domain}", a.status)
	})
	return r
}

func (a *api) check(w http.ResponseWriter, r *http.Request) {
	var req checkRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	list, errs := domains.Collect(req.Domains)
	if len(errs) > 0 {
		msgs := make([]string, len(errs))
		for i, err := range errs {
			msgs[i] = err.Error()
		}
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "invalid domains", "details": msgs})
		return
	}
	if len(list) == 0 {
		writeError(w, http.StatusBadRequest, "domains is required")
		return
	}

	if !a.busy.TryLock() {
		writeError(w, http.StatusConflict, "a check is already running")
		return
	}
	defer a.busy.Unlock()

	rep, err := a.runner.Run(r.Context(), list)
	if rep == nil {
		zap.L().Error("api: check failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "check failed")
		return
	}
	if err != nil {
		zap.L().Warn("api: check finished with store error", zap.String("run_id", rep.RunID), zap.Error(err))
	}
	writeJSON(w, http.StatusOK, rep)
}

func (a *api) results(w http.ResponseWriter, r *http.Request) {
	if a.store == nil {
		writeError(w, http.StatusServiceUnavailable, "history is disabled")
		return
	}
	q := r.URL.Query()
	limit := 0
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "limit must be an integer")
			return
		}
		limit = n
	}
	filter, err := historyFilter(q.Get("domain"), q.Get("status"), limit)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	results, err := a.store.ListResults(r.Context(), filter)
	if err != nil {
		zap.L().Error("api: list results", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "list results failed")
		return
	}
	if results == nil {
		results = []model.Result{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"results": results})
}

func (a *api) status(w http.ResponseWriter, r *http.Request) {
	if a.store == nil {
		writeError(w, http.StatusServiceUnavailable, "history is disabled")
		return
	}
	d, err := domains.Normalize(chi.URLParam(r, "domain"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	results, err := a.store.ListResults(r.Context(), store.ResultFilter{Domain: d, Limit: 1})
	if err != nil {
		zap.L().Error("api: latest status", zap.String("domain", d), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "lookup failed")
		return
	}
	if len(results) == 0 {
		writeError(w, http.StatusNotFound, "no results for "+d)
		return
	}
	writeJSON(w, http.StatusOK, results[0])
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}

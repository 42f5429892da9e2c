package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/caprock-exchange/match-cli/internal/engine"
	"github.com/caprock-exchange/match-cli/internal/matching"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve match rankings and allocator scans over HTTP",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initEngine(ctx, false)
		if err != nil {
			return err
		}
		defer env.Close()

		r := chi.NewRouter()
		r.Use(chimw.RequestID)
		r.Use(chimw.Recoverer)
		r.Use(chimw.Timeout(60 * time.Second))
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: []string{"*"},
			AllowedMethods: []string{http.MethodGet, http.MethodOptions},
			AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
		}))

		r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
			writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
		})

		r.Get("/requests/{id}/matches", handleRequestMatches(env.Engine))
		r.Get("/allocators/{id}/scan", handleAllocatorScan(env.Engine))

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
			srv.Shutdown(ctx) //nolint:errcheck
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

// handleRequestMatches ranks allocators for a funding request, forwarding the
// caller's bearer token to the remote scoring service. A registry failure is
// logged and surfaced as an empty ranking, never a 5xx.
func handleRequestMatches(e *engine.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		requestID := chi.URLParam(r, "id")
		token := bearerToken(r)

		report, err := e.MatchAllocators(r.Context(), requestID, token)
		if err != nil {
			zap.L().Error("ranking failed",
				zap.String("request_id", requestID),
				zap.Error(err),
			)
			report = &engine.RankReport{
				RequestID: requestID,
				Source:    engine.SourceLocal,
				Matches:   []matching.RankedMatch{},
			}
		}

		if minScore, ok := intQuery(r, "min_score"); ok {
			report.Matches = matching.FilterRanked(report.Matches, minScore, 0)
		}
		if limit, ok := intQuery(r, "limit"); ok {
			report.Matches = matching.FilterRanked(report.Matches, 0, limit)
		}

		writeJSON(w, http.StatusOK, report)
	}
}

// handleAllocatorScan scans open requests for one allocator org. Pass save=1
// to persist the results under the returned scan id.
func handleAllocatorScan(e *engine.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		orgID := chi.URLParam(r, "id")
		save := r.URL.Query().Get("save") == "1" || r.URL.Query().Get("save") == "true"

		report, err := e.ScanForAllocator(r.Context(), orgID, save)
		if err != nil {
			zap.L().Error("scan failed",
				zap.String("org_id", orgID),
				zap.Error(err),
			)
			report = &engine.ScanReport{OrgID: orgID, Matches: []matching.RequestMatch{}}
		}

		if minScore, ok := intQuery(r, "min_score"); ok {
			report.Matches = matching.FilterRequestMatches(report.Matches, minScore, 0)
		}
		if limit, ok := intQuery(r, "limit"); ok {
			report.Matches = matching.FilterRequestMatches(report.Matches, 0, limit)
		}

		writeJSON(w, http.StatusOK, report)
	}
}

func bearerToken(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	if token, ok := strings.CutPrefix(auth, "Bearer "); ok {
		return token
	}
	return ""
}

func intQuery(r *http.Request, name string) (int, bool) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return 0, false
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		return 0, false
	}
	return v, true
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		zap.L().Error("write response", zap.Error(err))
	}
}

package server

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"sync/atomic"
	"time"

	"github.com/peircecrit/peirce/internal/config"
	"github.com/peircecrit/peirce/internal/metrics"
	"github.com/peircecrit/peirce/internal/stats"
	"github.com/peircecrit/peirce/internal/store"
)

type Server struct {
	store     *store.SQLiteStore // nil disables caching
	cfg       atomic.Pointer[config.Config]
	metrics   *metrics.Registry
	token     string
	tokenFile string
	router    *http.ServeMux
	startTime time.Time
}

// New builds a server over s using cfg. The admin token comes from the
// environment variable named in cfg.Server.TokenEnv, or is generated.
func New(s *store.SQLiteStore, cfg *config.Config, reg *metrics.Registry) *Server {
	if reg == nil {
		reg = metrics.New()
	}

	token := cfg.Server.Token()
	if token == "" {
		token = generateToken()
	}

	srv := &Server{
		store:     s,
		metrics:   reg,
		token:     token,
		tokenFile: cfg.Server.TokenFile,
		router:    http.NewServeMux(),
		startTime: time.Now(),
	}
	srv.cfg.Store(cfg)

	srv.setupRoutes()
	return srv
}

func (s *Server) setupRoutes() {
	// Public endpoints
	s.router.HandleFunc("/health", s.instrument("/health", s.handleHealth))
	s.router.HandleFunc("/api/threshold", s.instrument("/api/threshold", s.handleThreshold))
	s.router.HandleFunc("/api/table", s.instrument("/api/table", s.handleTableAPI))
	s.router.HandleFunc("/metrics", s.handleMetrics)

	// Protected endpoints
	s.router.Handle("/table", s.authMiddleware(s.instrument("/table", s.handleTablePage)))
	s.router.Handle("/admin/cache", s.authMiddleware(s.instrument("/admin/cache", s.handleAdminCache)))
}

// Run serves on the configured port until ctx is cancelled, then shuts
// down gracefully.
func (s *Server) Run(ctx context.Context) error {
	if s.tokenFile != "" {
		if err := os.WriteFile(s.tokenFile, []byte(s.token), 0600); err != nil {
			slog.Warn("failed to write token file", "path", s.tokenFile, "err", err)
		}
	}

	httpSrv := &http.Server{
		Addr:              fmt.Sprintf(":%d", s.Config().Server.Port),
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("peirce server listening", "addr", httpSrv.Addr)
		errCh <- httpSrv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	slog.Info("peirce server shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return httpSrv.Shutdown(shutdownCtx)
}

// UpdateConfig swaps the live config. The port only takes effect on restart.
func (s *Server) UpdateConfig(cfg *config.Config) {
	s.cfg.Store(cfg)
	slog.Info("server config updated",
		"max_iterations", cfg.Solver.MaxIterations,
		"table_observations", cfg.Table.Observations,
	)
}

func (s *Server) Config() *config.Config {
	return s.cfg.Load()
}

func (s *Server) Token() string {
	return s.token
}

func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) solver() *stats.Solver {
	return &stats.Solver{
		MaxIterations: s.Config().Solver.MaxIterations,
		Observer:      s.metrics,
	}
}

// cache returns the store as a stats.Cache, or nil when caching is off.
func (s *Server) cache() stats.Cache {
	if s.store == nil {
		return nil
	}
	return s.store
}

func generateToken() string {
	bytes := make([]byte, 16)
	if _, err := rand.Read(bytes); err != nil {
		panic(fmt.Sprintf("crypto/rand failed: %v", err))
	}
	return hex.EncodeToString(bytes)
}

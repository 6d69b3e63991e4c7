package status

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"NewsShorts/internal/domain"
	"NewsShorts/internal/ports"
)

const (
	defaultHistoryLimit = 20
	maxHistoryLimit     = 200
)

// ReportSource exposes the reports of the latest scheduled run.
type ReportSource interface {
	LastReports() []domain.RunReport
}

// Server is the read-only status API for schedule mode.
type Server struct {
	history ports.HistoryStore
	reports ReportSource
	logger  *slog.Logger
	engine  *gin.Engine
}

// NewServer builds the gin engine with recovery and request logging.
func NewServer(history ports.HistoryStore, reports ReportSource, logger *slog.Logger) *Server {
	s := &Server{
		history: history,
		reports: reports,
		logger:  logger.With("component", "status"),
		engine:  gin.New(),
	}
	s.engine.Use(gin.Recovery(), s.requestLogger())
	s.RegisterRoutes(s.engine)
	return s
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// RegisterRoutes mounts the status endpoints on r.
func (s *Server) RegisterRoutes(r *gin.Engine) {
	r.GET("/health", s.health)

	v1 := r.Group("/api/v1")
	{
		v1.GET("/history", s.listHistory)
		v1.GET("/runs/last", s.lastRuns)
	}
}

// ListenAndServe serves on addr until ctx ends, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("status api listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) listHistory(c *gin.Context) {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(defaultHistoryLimit)))
	if err != nil || limit <= 0 {
		limit = defaultHistoryLimit
	}
	if limit > maxHistoryLimit {
		limit = maxHistoryLimit
	}

	records, err := s.history.Recent(c.Request.Context(), limit)
	if err != nil {
		s.logger.Error("list history failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"code":    "internal_error",
			"message": "internal server error",
		})
		return
	}

	data := make([]historyJSON, 0, len(records))
	for _, r := range records {
		data = append(data, toHistoryJSON(r))
	}
	c.JSON(http.StatusOK, gin.H{
		"code":    "ok",
		"message": "success",
		"data":    data,
	})
}

func (s *Server) lastRuns(c *gin.Context) {
	var reports []domain.RunReport
	if s.reports != nil {
		reports = s.reports.LastReports()
	}
	if len(reports) == 0 {
		c.JSON(http.StatusNotFound, gin.H{
			"code":    "not_found",
			"message": "no run has finished yet",
		})
		return
	}

	data := make([]runJSON, 0, len(reports))
	for _, r := range reports {
		data = append(data, toRunJSON(r))
	}
	c.JSON(http.StatusOK, gin.H{
		"code":    "ok",
		"message": "success",
		"data":    data,
	})
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.logger.Debug("request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"duration", time.Since(start),
		)
	}
}

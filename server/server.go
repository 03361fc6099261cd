package server

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"sync"
	"time"

	"crash-review-pipeline/pipeline"
	"crash-review-pipeline/store"
	"crash-review-pipeline/types"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Runner is the part of the pipeline the HTTP API drives
type Runner interface {
	NewState(ctx context.Context, in pipeline.Input) (*types.PipelineState, error)
	Execute(ctx context.Context, st *types.PipelineState, in pipeline.Input) error
}

// Server exposes run submission and run state over HTTP. Runs execute in the
// background under the server's base context.
type Server struct {
	ctx    context.Context
	runner Runner
	store  store.Store
	logger *zap.Logger
	wg     sync.WaitGroup
}

// New creates a new Server whose runs live as long as ctx
func New(ctx context.Context, runner Runner, st store.Store, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{ctx: ctx, runner: runner, store: st, logger: logger.With(zap.String("stage", "server"))}
}

// Router builds the gin engine with every route registered
func (s *Server) Router() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), s.requestLogger())

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "timestamp": time.Now().UTC().Format(time.RFC3339)})
	})
	router.POST("/runs", s.createRun)
	router.GET("/runs", s.listRuns)
	router.GET("/runs/:runId", s.getRun)

	router.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": "endpoint not found"})
	})
	return router
}

// Wait blocks until every background run has returned.
func (s *Server) Wait() {
	s.wg.Wait()
}

func (s *Server) createRun(c *gin.Context) {
	var in pipeline.Input
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request: " + err.Error()})
		return
	}
	st, err := s.runner.NewState(c.Request.Context(), in)
	if err != nil {
		if errors.Is(err, pipeline.ErrNoVideo) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		s.logger.Error("could not create run", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not create run"})
		return
	}
	runID := st.RunID

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if err := s.runner.Execute(s.ctx, st, in); err != nil {
			s.logger.Warn("run failed", zap.String("run_id", runID), zap.Error(err))
		}
	}()

	c.JSON(http.StatusAccepted, gin.H{"run_id": runID, "status": types.RunPending})
}

func (s *Server) getRun(c *gin.Context) {
	st, err := s.store.Load(c.Request.Context(), c.Param("runId"))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "run not found"})
			return
		}
		s.logger.Error("could not load run", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not load run"})
		return
	}
	c.JSON(http.StatusOK, st)
}

func (s *Server) listRuns(c *gin.Context) {
	limit := 20
	if v := c.Query("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a positive integer"})
			return
		}
		limit = n
	}
	ids, err := s.store.List(c.Request.Context(), limit)
	if err != nil {
		s.logger.Error("could not list runs", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not list runs"})
		return
	}
	if ids == nil {
		ids = []string{}
	}
	c.JSON(http.StatusOK, gin.H{"runs": ids, "count": len(ids)})
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.logger.Info("request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("elapsed", time.Since(start)),
		)
	}
}

package cmd

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"crash-review-pipeline/server"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the run API over HTTP",
	Long:  "Accept runs on POST /runs and report their state on GET /runs/:id until interrupted.",
	RunE:  runServeCommand,
}

var serveAddr string

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "Listen address (overrides server.addr)")
}

func runServeCommand(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	w, err := buildPipeline(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer w.Close()

	if !cfg.Log.Development {
		gin.SetMode(gin.ReleaseMode)
	}
	srv := server.New(ctx, w.pipeline, w.store, logger)
	addr := cfg.Server.Addr
	if serveAddr != "" {
		addr = serveAddr
	}
	httpServer := &http.Server{Addr: addr, Handler: srv.Router()}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", zap.String("addr", addr))
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn("shutdown", zap.Error(err))
	}
	// in-flight runs see the cancelled context and record their failure
	srv.Wait()
	return nil
}

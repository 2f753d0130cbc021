package metrics

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/ethereum/go-ethereum/log"
)

// shutdownGrace bounds how long Server.Run waits for in-flight scrapes to
// finish once its context is cancelled.
const shutdownGrace = 5 * time.Second

// Server exposes GET /metrics on the port it is given (the METRICS_PORT
// flag, default 9898), the node's one inbound HTTP surface.
type Server struct {
	httpSrv *http.Server
}

// NewServer wires handler (as built by NewRecorder) behind /metrics.
func NewServer(port uint64, handler http.Handler) *Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", handler)

	return &Server{
		httpSrv: &http.Server{
			Addr:    fmt.Sprintf(":%d", port),
			Handler: mux,
		},
	}
}

// Run starts the metrics server and blocks until ctx is cancelled, then
// shuts it down gracefully. Matches the Node Loop's other long-lived
// workers: a task with its own loop over its inbound work (HTTP requests,
// here) and the cancellation token (§5 Coroutine control flow).
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		log.Info("metrics: listening", "addr", s.httpSrv.Addr)
		if err := s.httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
		defer cancel()
		if err := s.httpSrv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("metrics: shutdown: %w", err)
		}
		<-errCh
		return ctx.Err()
	case err := <-errCh:
		return err
	}
}

// Package server exposes the device's state, recent events and metrics over
// HTTP.
package server

import (
	"context"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-go-golems/bigredbutton/pkg/bus"
	"github.com/go-go-golems/bigredbutton/pkg/metrics"
	"github.com/go-go-golems/bigredbutton/pkg/state"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

const shutdownTimeout = 5 * time.Second

type Options struct {
	State   *state.State
	History *bus.History
	Metrics *metrics.Recorder
}

type Server struct {
	opts   Options
	engine *gin.Engine
}

func New(opts Options) (*Server, error) {
	if opts.State == nil {
		return nil, errors.New("missing State")
	}
	gin.SetMode(gin.ReleaseMode)

	s := &Server{opts: opts, engine: gin.New()}
	s.engine.Use(gin.Recovery(), s.requestLog())
	s.routes()
	return s, nil
}

func (s *Server) Handler() http.Handler { return s.engine }

func (s *Server) routes() {
	s.engine.GET("/healthz", s.handleHealth)
	s.engine.GET("/status", s.handleStatus)
	s.engine.GET("/events", s.handleEvents)
	if s.opts.Metrics != nil {
		s.engine.GET("/metrics", gin.WrapH(s.opts.Metrics.Handler()))
	}
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339Nano),
	})
}

func (s *Server) handleStatus(c *gin.Context) {
	c.JSON(http.StatusOK, s.opts.State.Snapshot())
}

func (s *Server) handleEvents(c *gin.Context) {
	entries := []bus.Envelope{}
	if s.opts.History != nil {
		entries = s.opts.History.Entries()
	}
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a non-negative integer"})
			return
		}
		if n < len(entries) {
			entries = entries[len(entries)-n:]
		}
	}
	c.JSON(http.StatusOK, gin.H{"events": entries})
}

func (s *Server) requestLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		took := time.Since(start)
		if s.opts.Metrics != nil {
			s.opts.Metrics.ObserveRequest(c.Request.Method, route, c.Writer.Status(), took)
		}
		log.Debug().
			Str("method", c.Request.Method).
			Str("route", route).
			Int("status", c.Writer.Status()).
			Dur("took", took).
			Msg("http request")
	}
}

// Run serves on addr until ctx ends, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return errors.Wrapf(err, "listen %s", addr)
	}
	return s.Serve(ctx, ln)
}

func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.engine,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", ln.Addr().String()).Msg("status server listening")
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return errors.Wrap(err, "status server")
	case <-ctx.Done():
	}

	sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(sctx); err != nil {
		return errors.Wrap(err, "shutdown status server")
	}
	return nil
}

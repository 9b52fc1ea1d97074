// Package api serves the reader pipeline over HTTP as JSON.
package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/Sriram-PR/readerview/pkg/metrics"
	"github.com/Sriram-PR/readerview/pkg/models"
	"github.com/Sriram-PR/readerview/pkg/reader"
)

// Reader is the pipeline surface the API exposes. *reader.Service implements it.
type Reader interface {
	FetchAndExtract(ctx context.Context, rawURL string, opts ...reader.Option) (*models.FetchAndExtractionResult, error)
	ExtractArticleContent(ctx context.Context, rawURL, html string, kind models.ExtractorKind) (*models.ExtractedArticle, error)
	Warmup(kind models.ExtractorKind) error
	States() map[models.ExtractorKind]models.EngineState
	Digest(res *models.FetchAndExtractionResult) (*models.Digest, error)
}

// Server routes API requests to a Reader
type Server struct {
	reader Reader
	log    *logrus.Entry
	mux    *http.ServeMux
}

// New creates the API server and registers its metrics
func New(r Reader, log *logrus.Entry) *Server {
	metrics.MustRegister()
	s := &Server{reader: r, log: log.WithField("component", "api"), mux: http.NewServeMux()}
	s.route("POST /v1/extract", "/v1/extract", s.handleExtract)
	s.route("POST /v1/extract-html", "/v1/extract-html", s.handleExtractHTML)
	s.route("POST /v1/warmup", "/v1/warmup", s.handleWarmup)
	s.route("GET /healthz", "/healthz", s.handleHealth)
	s.mux.Handle("GET /metrics", promhttp.Handler())
	return s
}

// Handler returns the root handler
func (s *Server) Handler() http.Handler { return s.mux }

func (s *Server) route(pattern, path string, h http.HandlerFunc) {
	s.mux.Handle(pattern, s.instrument(path, h))
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// instrument tags the request with an id, logs it and records metrics
func (s *Server) instrument(path string, next http.HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		id := r.Header.Get("X-Request-ID")
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", id)

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next(rec, r)

		elapsed := time.Since(start)
		metrics.RequestsTotal.WithLabelValues(path, r.Method, strconv.Itoa(rec.status)).Inc()
		metrics.RequestDuration.WithLabelValues(path, r.Method).Observe(elapsed.Seconds())

		entry := s.log.WithFields(logrus.Fields{
			"request_id": id,
			"method":     r.Method,
			"path":       path,
			"status":     rec.status,
			"duration":   elapsed.Round(time.Millisecond),
		})
		if rec.status >= http.StatusInternalServerError {
			entry.Warn("Request failed")
		} else {
			entry.Debug("Request served")
		}
	})
}

// ListenAndServe serves on addr until ctx is cancelled, then shuts down gracefully
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		s.log.WithField("addr", addr).Info("HTTP API listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}

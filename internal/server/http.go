package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/ironsheep/grade-overlay-mcp/internal/history"
	"github.com/ironsheep/grade-overlay-mcp/internal/session"
)

type httpWriter struct {
	logger zerolog.Logger
}

func (wrt httpWriter) response(w http.ResponseWriter, r interface{}, status int) {
	if r == nil {
		w.WriteHeader(status)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	content, err := json.Marshal(r)
	if err != nil {
		wrt.logger.Err(err).Msg("Fail to marshal the response")
		return
	}
	if _, err := w.Write(content); err != nil {
		wrt.logger.Err(err).Msg("Fail to write the payload")
	}
}

func (wrt httpWriter) error(w http.ResponseWriter, title string, err error, status int) {
	resp := struct {
		Error struct {
			Title  string `json:"title"`
			Detail string `json:"detail,omitempty"`
		} `json:"error"`
	}{}
	resp.Error.Title = title
	if err != nil {
		resp.Error.Detail = err.Error()
	}
	wrt.response(w, &resp, status)
}

// Handler returns the HTTP transport: GET /health, GET /tools and
// POST /tools/{name} with the tool arguments as the JSON body.
func (s *Server) Handler() http.Handler {
	wrt := httpWriter{logger: s.log}
	r := chi.NewRouter()

	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.NoCache)
	r.Use(chiMiddleware.StripSlashes)
	r.Use(s.requestLogger)
	r.Use(chiMiddleware.Recoverer)

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		wrt.error(w, "Endpoint not found", nil, http.StatusNotFound)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		wrt.error(w, "Method not allowed", nil, http.StatusMethodNotAllowed)
	})

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		wrt.response(w, map[string]interface{}{"status": "healthy"}, http.StatusOK)
	})
	r.Get("/tools", func(w http.ResponseWriter, r *http.Request) {
		wrt.response(w, map[string]interface{}{"tools": GetToolDefinitions()}, http.StatusOK)
	})
	r.Post("/tools/{name}", func(w http.ResponseWriter, r *http.Request) {
		name := chi.URLParam(r, "name")
		body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxRequestSize))
		if err != nil {
			wrt.error(w, "Fail to read the request body", err, http.StatusRequestEntityTooLarge)
			return
		}

		result, err := s.executeTool(r.Context(), name, body)
		if err != nil {
			s.log.Warn().Err(err).Str("tool", name).Msg("tool failed")
			wrt.error(w, "Tool execution failed", err, toolErrorStatus(err))
			return
		}
		wrt.response(w, result, http.StatusOK)
	})

	return r
}

func toolErrorStatus(err error) int {
	switch {
	case errors.Is(err, errUnknownTool), errors.Is(err, history.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, session.ErrPagesLocked):
		return http.StatusConflict
	default:
		return http.StatusUnprocessableEntity
	}
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			next.ServeHTTP(w, r)
			return
		}
		t1 := time.Now()
		ww := chiMiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.log.Info().
			Str("requestID", chiMiddleware.GetReqID(r.Context())).
			Str("method", r.Method).
			Str("endpoint", r.URL.Path).
			Int("status", ww.Status()).
			Int("contentLength", ww.BytesWritten()).
			Dur("duration", time.Since(t1)).
			Msg("Request finished")
	})
}

// ListenHTTP serves Handler on addr until ctx is done.
func (s *Server) ListenHTTP(ctx context.Context, addr string) error {
	srv := http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 20 * time.Second,
		IdleTimeout:       30 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("fail to start the http server: %w", err)
		}
		close(errCh)
	}()
	s.log.Info().Str("addr", addr).Msg("http transport listening")

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("fail to close the http server: %w", err)
	}
	return nil
}

package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/Sternrassler/slack-webapi-client/pkg/client"
	"github.com/Sternrassler/slack-webapi-client/pkg/form"
	"github.com/Sternrassler/slack-webapi-client/pkg/logging"
	"github.com/Sternrassler/slack-webapi-client/pkg/metrics"
	"github.com/spf13/cobra"
)

// maxUploadMemory bounds multipart parsing in memory; larger files spill to disk.
const maxUploadMemory = 32 << 20

// Serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run an HTTP proxy in front of the Web API",
	Long: `Runs an HTTP server that forwards POST /api/{method} through a shared
client, so every caller shares one request queue, retry policy and rate limit
handling.

Endpoints:
  POST /api/{method}  form or multipart arguments, Authorization passed through
  GET  /health        liveness probe
  GET  /metrics       Prometheus metrics`,
	RunE: func(cmd *cobra.Command, args []string) error {
		port, _ := cmd.Flags().GetString("port")
		if port == "" {
			port = getEnv("PORT", "8080")
		}

		c, err := newClient()
		if err != nil {
			return fmt.Errorf("failed to create client: %w", err)
		}
		defer c.Close()

		logger := logging.NewLogger(logging.ComponentCLI)
		c.OnRateLimited(func(ev client.RateLimitedEvent) {
			logger.Warn().
				Str("method", ev.Method).
				Dur("retry_after", ev.RetryAfter).
				Msg("Upstream rate limit")
		})

		server := &http.Server{
			Addr:              ":" + port,
			Handler:           newMux(c),
			ReadHeaderTimeout: 10 * time.Second,
		}

		ctx, cancel := signalContext()
		defer cancel()

		errCh := make(chan error, 1)
		go func() {
			logger.Info().Str("addr", server.Addr).Str("base_url", getBaseURL()).Msg("Starting Web API proxy")
			errCh <- server.ListenAndServe()
		}()

		select {
		case err := <-errCh:
			if errors.Is(err, http.ErrServerClosed) {
				return nil
			}
			return err
		case <-ctx.Done():
		}

		logger.Info().Msg("Shutting down")
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		return server.Shutdown(shutdownCtx)
	},
}

func init() {
	serveCmd.Flags().String("port", "", "Listen port (or PORT env, default 8080)")
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// signalContext is cancelled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func newMux(c *client.Client) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", healthHandler)
	mux.Handle("GET /metrics", metrics.Handler())
	mux.HandleFunc("POST /api/{method}", apiProxyHandler(c))
	return mux
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, "OK")
}

// apiProxyHandler forwards one call. Platform errors are returned as 200
// with ok: false, the way the upstream reports them.
func apiProxyHandler(c *client.Client) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		method := r.PathValue("method")

		opts, err := requestOptions(r)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]any{"ok": false, "error": "invalid_form_data", "detail": err.Error()})
			return
		}
		defer closeFiles(opts)

		res, err := c.APICall(r.Context(), method, opts)
		if err == nil {
			writeJSON(w, http.StatusOK, res)
			return
		}

		var (
			platErr *client.PlatformError
			rateErr *client.RateLimitedError
			httpErr *client.HTTPError
			argErr  *client.ArgumentError
		)
		switch {
		case errors.As(err, &platErr):
			writeJSON(w, http.StatusOK, platErr.Data)
		case errors.As(err, &rateErr):
			w.Header().Set("Retry-After", strconv.Itoa(int(rateErr.RetryAfter.Seconds())))
			writeJSON(w, http.StatusTooManyRequests, map[string]any{"ok": false, "error": "ratelimited"})
		case errors.As(err, &httpErr):
			writeJSON(w, httpErr.StatusCode, map[string]any{"ok": false, "error": "upstream_http_error", "status": httpErr.StatusCode})
		case errors.As(err, &argErr):
			writeJSON(w, http.StatusBadRequest, map[string]any{"ok": false, "error": "invalid_arguments", "detail": argErr.Error()})
		default:
			writeJSON(w, http.StatusBadGateway, map[string]any{"ok": false, "error": "request_failed", "detail": err.Error()})
		}
	}
}

// requestOptions collects form fields, uploaded files and a bearer token
// from an incoming request.
func requestOptions(r *http.Request) (client.Options, error) {
	opts := client.Options{}

	if strings.HasPrefix(r.Header.Get("Content-Type"), form.ContentTypeMultipart) {
		if err := r.ParseMultipartForm(maxUploadMemory); err != nil {
			return nil, err
		}
		for field, headers := range r.MultipartForm.File {
			if len(headers) == 0 {
				continue
			}
			f, err := headers[0].Open()
			if err != nil {
				return nil, err
			}
			opts[field] = form.File{Name: headers[0].Filename, Reader: f}
		}
	} else if err := r.ParseForm(); err != nil {
		return nil, err
	}

	for key, values := range r.Form {
		if len(values) > 0 {
			opts[key] = values[0]
		}
	}

	if auth := r.Header.Get("Authorization"); strings.HasPrefix(auth, "Bearer ") {
		opts["token"] = strings.TrimPrefix(auth, "Bearer ")
	}
	return opts, nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

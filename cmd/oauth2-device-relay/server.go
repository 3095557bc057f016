package main

import (
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/wrale/oauth2-device-relay/cmd/oauth2-device-relay/handlers/device"
	"github.com/wrale/oauth2-device-relay/cmd/oauth2-device-relay/handlers/health"
	"github.com/wrale/oauth2-device-relay/cmd/oauth2-device-relay/handlers/token"
	"github.com/wrale/oauth2-device-relay/cmd/oauth2-device-relay/handlers/verify"
	"github.com/wrale/oauth2-device-relay/internal/deviceflow"
	"github.com/wrale/oauth2-device-relay/internal/metrics"
	"github.com/wrale/oauth2-device-relay/internal/templates"
)

type server struct {
	cfg       Config
	router    *chi.Mux
	flow      deviceflow.Flow
	templates *templates.Templates
	metrics   *metrics.Metrics
	logger    zerolog.Logger
}

func newServer(cfg Config, flow deviceflow.Flow, m *metrics.Metrics, logger zerolog.Logger) (*server, error) {
	tmpls, err := templates.LoadTemplates()
	if err != nil {
		return nil, fmt.Errorf("loading templates: %w", err)
	}

	srv := &server{
		cfg:       cfg,
		router:    chi.NewRouter(),
		flow:      flow,
		templates: tmpls,
		metrics:   m,
		logger:    logger,
	}

	srv.router.Use(middleware.RequestID)
	srv.router.Use(middleware.RealIP)
	srv.router.Use(srv.accessLog)
	srv.router.Use(middleware.Recoverer)

	srv.routes()

	return srv, nil
}

func (s *server) routes() {
	handlerLogger := s.logger.With().Str("component", "http").Logger()

	s.router.Method(http.MethodGet, "/health",
		health.New(s.flow).WithVersion(Version).WithLogger(handlerLogger))
	s.router.Method(http.MethodGet, "/metrics", s.metrics.Handler())

	// Device flow endpoints
	s.router.Handle(s.cfg.DeviceCodePath, device.New(device.Config{
		Flow:    s.flow,
		BaseURL: s.cfg.BaseURL,
		Logger:  handlerLogger,
	}))
	s.router.Handle(s.cfg.TokenPath, token.New(token.Config{
		Flow:   s.flow,
		Logger: handlerLogger,
	}))

	v := verify.New(verify.Config{
		Flow:             s.flow,
		Templates:        s.templates,
		BaseURL:          s.cfg.BaseURL,
		VerificationPath: s.cfg.VerificationPath,
		ScriptPath:       s.cfg.WebScriptPath,
		Logger:           handlerLogger,
	})
	s.router.Get(s.cfg.VerificationPath, v.HandleForm)
	s.router.Get(s.cfg.RedirectPath, v.HandleComplete)

	if s.cfg.WebScriptPath != "" {
		s.router.Get(s.cfg.WebScriptPath, s.handleScript)
	}
}

// handleScript serves the optional browser bundle for the verification page
func (s *server) handleScript(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/javascript; charset=utf-8")
	http.ServeFile(w, r, s.cfg.WebScriptFile)
}

// accessLog logs each request and records it in the HTTP metrics
func (s *server) accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()

		defer func() {
			elapsed := time.Since(start)
			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}

			route := "unmatched"
			if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
				route = rctx.RoutePattern()
			}
			s.metrics.ObserveHTTP(route, r.Method, status, elapsed)

			level := zerolog.InfoLevel
			switch {
			case status >= http.StatusInternalServerError:
				level = zerolog.ErrorLevel
			case status >= http.StatusBadRequest:
				level = zerolog.WarnLevel
			}
			s.logger.WithLevel(level).
				Str("request_id", middleware.GetReqID(r.Context())).
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Str("remote", r.RemoteAddr).
				Int("status", status).
				Int("bytes", ww.BytesWritten()).
				Dur("duration", elapsed).
				Msg("request")
		}()

		next.ServeHTTP(ww, r)
	})
}

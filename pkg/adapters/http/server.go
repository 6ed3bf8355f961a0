package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/appsail/convo/internal/logging"
	"github.com/appsail/convo/pkg/domain"
	"github.com/appsail/convo/pkg/ports"
	"github.com/appsail/convo/pkg/runner"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// DefaultMaxBodySize caps webhook bodies.
const DefaultMaxBodySize int64 = 1 << 20

// Routes maps each webhook path to the flow it drives.
var Routes = map[string]domain.FlowName{
	"/agent":         domain.FlowScripted,
	"/agent/buttons": domain.FlowReminder,
	"/agent/orders":  domain.FlowWallet,
}

// TurnHandler processes one webhook turn.
type TurnHandler interface {
	HandleTurn(ctx context.Context, req runner.Request) (*runner.Result, error)
}

// Server translates webhook calls into runner requests.
type Server struct {
	Turns       TurnHandler
	Metrics     http.Handler
	MetricsPath string
	Logger      *slog.Logger
	MaxBody     int64
	Now         func() time.Time
}

// Option configures the handler.
type Option func(*Server)

// WithMetrics exposes h under GET /metrics.
func WithMetrics(h http.Handler) Option {
	return func(s *Server) {
		s.Metrics = h
	}
}

// WithMetricsPath moves the metrics endpoint.
func WithMetricsPath(path string) Option {
	return func(s *Server) {
		if path != "" {
			s.MetricsPath = path
		}
	}
}

// WithLogger sets the request logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.Logger = logger
	}
}

// WithMaxBodySize overrides DefaultMaxBodySize.
func WithMaxBodySize(n int64) Option {
	return func(s *Server) {
		if n > 0 {
			s.MaxBody = n
		}
	}
}

// WithClock overrides the time reported by GET /.
func WithClock(now func() time.Time) Option {
	return func(s *Server) {
		s.Now = now
	}
}

// NewHandler creates the webhook router.
func NewHandler(turns TurnHandler, opts ...Option) http.Handler {
	server := &Server{
		Turns:       turns,
		MetricsPath: "/metrics",
		Logger:      logging.NewNop(),
		MaxBody:     DefaultMaxBodySize,
		Now:         time.Now,
	}
	for _, opt := range opts {
		opt(server)
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/", server.GetTime)
	r.Get("/health", server.GetHealth)
	if server.Metrics != nil {
		r.Method(http.MethodGet, server.MetricsPath, server.Metrics)
	}
	for path, flow := range Routes {
		r.Post(path, server.Webhook(flow))
	}
	return r
}

// Webhook handles POST requests for one flow.
func (s *Server) Webhook(flow domain.FlowName) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		log := s.Logger.With("flow", flow, "request_id", middleware.GetReqID(r.Context()))

		req, err := s.decode(w, r, flow)
		if err != nil {
			log.Warn("webhook rejected", "error", err)
			writeJSON(w, http.StatusBadRequest, map[string]any{"success": false, "error": err.Error()})
			return
		}

		res, err := s.Turns.HandleTurn(r.Context(), req)
		if err != nil {
			status := statusFor(err)
			if status >= http.StatusInternalServerError {
				log.Error("turn failed", "error", err)
			} else {
				log.Warn("turn rejected", "error", err, "status", status)
			}
			writeJSON(w, status, map[string]any{"success": false, "error": err.Error()})
			return
		}

		log.Debug("turn handled", "key", res.Key, "from", res.From, "to", res.To, "retry", res.Retry, "completed", res.Completed)
		writeJSON(w, http.StatusOK, map[string]any{"success": true})
	}
}

func (s *Server) decode(w http.ResponseWriter, r *http.Request, flow domain.FlowName) (runner.Request, error) {
	q := r.URL.Query()

	mode := ports.ModeOrDefault(q.Get("mode"))

	params := domain.TurnParams{
		Org:         q.Get("org"),
		CatalogID:   q.Get("catalog_id"),
		CatalogType: strings.ToLower(q.Get("catalog_type")),
	}
	if raw := q.Get("amount"); raw != "" {
		amount, err := domain.ParseMoney(raw)
		if err != nil {
			return runner.Request{}, fmt.Errorf("invalid amount: %w", err)
		}
		params.Amount = amount
	}
	switch params.CatalogType {
	case "", "multi", "single":
	default:
		return runner.Request{}, fmt.Errorf("invalid catalog_type %q", params.CatalogType)
	}

	body := http.MaxBytesReader(w, r.Body, s.MaxBody)
	var payload domain.WebhookPayload
	if err := json.NewDecoder(body).Decode(&payload); err != nil {
		if errors.Is(err, io.EOF) {
			return runner.Request{}, fmt.Errorf("%w: empty body", domain.ErrMalformedPayload)
		}
		return runner.Request{}, fmt.Errorf("%w: %v", domain.ErrMalformedPayload, err)
	}

	return runner.Request{Flow: flow, Payload: &payload, Params: params, Mode: mode}, nil
}

// GetHealth handles the GET /health request.
func (s *Server) GetHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// GetTime handles the GET / request.
func (s *Server) GetTime(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"time": s.Now().UTC().Format(time.RFC3339)})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrMalformedPayload):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrVersionConflict):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

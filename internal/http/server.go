package http

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"

	"perks/internal/log"
	"perks/internal/metrics"
	"perks/internal/middleware/ratelimit"
	"perks/internal/middleware/security"
	"perks/internal/middleware/trace"
	"perks/internal/services"
)

const (
	readHeaderTimeout = 5 * time.Second
	readTimeout       = 15 * time.Second
	writeTimeout      = 30 * time.Second
	idleTimeout       = 60 * time.Second

	// Alarm lead time of calendar feeds when the request does not set one.
	defaultReminderDays = 7
)

// ReadinessFunc reports whether the backing store can serve requests.
type ReadinessFunc func(ctx context.Context) error

type Server struct {
	http.Server
	tracker  *services.TrackerService
	ready    ReadinessFunc
	logger   *log.Logger
	detector *security.Detector
	limiter  *ratelimit.Limiter

	metricsEnabled bool
	rateLimitRPM   int
	trustedProxies []string
	reminderDays   int

	shutdownOnce sync.Once
}

// Option configures a Server.
type Option func(*Server)

func WithLogger(l *log.Logger) Option {
	return func(s *Server) { s.logger = l }
}

// WithReadiness sets the check behind /readyz.
func WithReadiness(fn ReadinessFunc) Option {
	return func(s *Server) { s.ready = fn }
}

// WithMetrics mounts the Prometheus handler on /metrics.
func WithMetrics(enabled bool) Option {
	return func(s *Server) { s.metricsEnabled = enabled }
}

// WithRateLimit limits writes per client. Zero disables limiting.
func WithRateLimit(requestsPerMinute int) Option {
	return func(s *Server) { s.rateLimitRPM = requestsPerMinute }
}

// WithTrustedProxies lists CIDRs whose forwarding headers are honoured.
func WithTrustedProxies(cidrs ...string) Option {
	return func(s *Server) { s.trustedProxies = append(s.trustedProxies, cidrs...) }
}

// WithReminderDays sets the default alarm lead time of calendar feeds.
func WithReminderDays(days int) Option {
	return func(s *Server) { s.reminderDays = days }
}

// NewServer configures routes and middleware, returning a ready-to-run http.Server.
func NewServer(addr string, tracker *services.TrackerService, opts ...Option) *Server {
	s := &Server{
		Server: http.Server{
			Addr:              addr,
			ReadHeaderTimeout: readHeaderTimeout,
			ReadTimeout:       readTimeout,
			WriteTimeout:      writeTimeout,
			IdleTimeout:       idleTimeout,
		},
		tracker:      tracker,
		logger:       log.Discard(),
		reminderDays: defaultReminderDays,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.WithComponent(log.ComponentHTTP)

	s.detector = security.NewDetector(s.logger)
	for _, cidr := range s.trustedProxies {
		if err := s.detector.AddTrustedProxy(cidr); err != nil {
			s.logger.Warn("Ignoring invalid trusted proxy", "cidr", cidr, log.FieldError, err)
		}
	}
	if s.rateLimitRPM > 0 {
		cfg := ratelimit.DefaultConfig()
		cfg.RequestsPerMinute = s.rateLimitRPM
		s.limiter = ratelimit.NewLimiter(cfg)
	}

	s.Handler = s.routes()
	return s
}

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(trace.NewMiddleware(s.logger, s.detector.ExtractClientIP).Middleware)
	r.Use(security.NewHeadersMiddleware(security.DefaultHeadersConfig()).Middleware)
	r.Use(s.detector.Middleware)

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		NotFoundError("not found").Write(w)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		NewJSONResponse().
			Status(http.StatusMethodNotAllowed).
			Body(errorBody{Error: "method not allowed"}).
			Write(w)
	})

	r.Get("/healthz", handleHealth)
	r.Get("/readyz", s.handleReady)
	if s.metricsEnabled {
		r.Handle("/metrics", metrics.Handler())
	}

	r.Route("/api", func(r chi.Router) {
		r.Get("/users", s.handleUsers)
		r.Get("/catalog", s.handleCatalog)

		r.Route("/users/{user}", func(r chi.Router) {
			r.Get("/credits", s.handleListCredits)
			r.Get("/summary", s.handleSummary)
			r.Get("/calendar.ics", s.handleCalendar)
			r.Group(func(r chi.Router) {
				if s.limiter != nil {
					r.Use(s.limiter.Middleware(s.detector.ExtractClientIP, handleRateLimited))
				}
				r.Put("/credits/{instanceID}", s.handleSaveCredit)
			})
		})
	})
	return r
}

// Shutdown stops the rate limiter cleanup and drains the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		if s.limiter != nil {
			s.limiter.Stop()
		}
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}

func handleRateLimited(w http.ResponseWriter, r *http.Request) {
	metrics.RateLimited.Inc()
	log.FromContext(r.Context()).WarnContext(r.Context(), "Rate limit exceeded",
		log.FieldMethod, r.Method,
		log.FieldPath, r.URL.Path)
	NewJSONResponse().
		Status(http.StatusTooManyRequests).
		Body(errorBody{Error: "rate limit exceeded, please try again later"}).
		Write(w)
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.ready != nil {
		if err := s.ready(r.Context()); err != nil {
			log.FromContext(r.Context()).WarnContext(r.Context(), "Readiness check failed", log.FieldError, err)
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte("not ready"))
			return
		}
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}

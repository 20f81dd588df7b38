package router

import (
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"armario-estampados/app/controller"
	"armario-estampados/metrics"
)

// Controllers groups every HTTP controller the router mounts
type Controllers struct {
	Session      *controller.SessionController
	Regeneration *controller.RegenerationController
}

// Options configures cross-cutting middleware and static file serving
type Options struct {
	AllowedOrigin         string
	StaticDir             string // served under /static when not empty
	RegenerationPerMinute int
}

// pingHandler handles GET /ping
func pingHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"ok"}`))
}

// corsMiddleware grants the storefront origin access
func corsMiddleware(allowed string) func(http.Handler) http.Handler {
	origins := make(map[string]bool)
	for _, o := range strings.Split(allowed, ",") {
		if o = strings.TrimSpace(o); o != "" {
			origins[o] = true
		}
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			if origin != "" && (origins["*"] || origins[origin]) {
				w.Header().Set("Access-Control-Allow-Origin", origin)
				w.Header().Set("Vary", "Origin")
				w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
				w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
			}
			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// rateLimiter keeps one token bucket per client address
type rateLimiter struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	limit    rate.Limit
	burst    int
}

func newRateLimiter(perMinute int) *rateLimiter {
	if perMinute <= 0 {
		perMinute = 30
	}
	return &rateLimiter{
		limiters: make(map[string]*rate.Limiter),
		limit:    rate.Every(time.Minute / time.Duration(perMinute)),
		burst:    perMinute,
	}
}

func (rl *rateLimiter) get(key string) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	if len(rl.limiters) > 10000 {
		rl.limiters = make(map[string]*rate.Limiter)
	}
	l, ok := rl.limiters[key]
	if !ok {
		l = rate.NewLimiter(rl.limit, rl.burst)
		rl.limiters[key] = l
	}
	return l
}

func (rl *rateLimiter) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !rl.get(r.RemoteAddr).Allow() {
			log.Warn().Str("remote", r.RemoteAddr).Str("path", r.URL.Path).Msg("⚠️  Rate limit exceeded")
			w.Header().Set("Content-Type", "application/json")
			w.Header().Set("Retry-After", "60")
			w.WriteHeader(http.StatusTooManyRequests)
			w.Write([]byte(`{"error":"rate limit exceeded","code":"rate_limited"}`))
			return
		}
		next.ServeHTTP(w, r)
	})
}

// NewRouter builds the HTTP handler
func NewRouter(controllers *Controllers, opts Options) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(metrics.InstrumentHandler)
	r.Use(corsMiddleware(opts.AllowedOrigin))

	r.Get("/ping", pingHandler)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	if opts.StaticDir != "" {
		r.Handle("/static/*", http.StripPrefix("/static/", http.FileServer(http.Dir(opts.StaticDir))))
	}

	// Customization sessions
	r.Route("/sessions", func(r chi.Router) {
		s := controllers.Session
		r.Post("/", s.Create)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", s.Get)
			r.Delete("/", s.Delete)
			r.Put("/print-size", s.SetPrintSize)
			r.Post("/manipulate", s.Manipulate)
			r.Post("/cart", s.AddToCart)
			r.Route("/sides/{side}", func(r chi.Router) {
				r.Put("/design", s.PutDesign)
				r.Delete("/design", s.DeleteDesign)
				r.Put("/colors", s.PutColors)
				r.Post("/texts", s.AddText)
				r.Patch("/texts/{textId}", s.UpdateText)
				r.Delete("/texts/{textId}", s.DeleteText)
				r.Post("/reset", s.Reset)
				r.Get("/preview", s.Preview)
				r.Post("/clean-background", s.CleanBackground)
			})
		})
	})

	// Server-side HD regeneration
	g := controllers.Regeneration
	r.With(newRateLimiter(opts.RegenerationPerMinute).Handler).Post("/regenerate", g.Regenerate)
	r.Get("/orders/{orderId}/files", g.GetFiles)
	r.Get("/orders/{orderId}/line-items", g.GetLineItems)
	r.Post("/orders/{orderId}/reprocess", g.FlagForReprocess)
	r.Post("/admin/reprocess/run", g.RunReprocess)

	return r
}

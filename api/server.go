/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. RequestID:  Unique ID per request for tracing
  2. Logger:     Request logging
  3. Recoverer:  Panic recovery (500 instead of crash)
  4. CORS:       Cross-origin requests for the admin frontend
  5. Actor:      Copies the acting user's id from a header into the context

ROUTE GROUPS:
  /api/beneficiaries/*   Beneficiary shares
  /api/users/*           Users
  /api/payment-types/*   Payment types, references, allocation summary
  /api/scenarios/*       Demo scenarios
  /api/admin/*           Admin operations
  /health                Liveness

SEE ALSO:
  - handlers.go: Handler implementations
  - cmd/server/main.go: Server startup
*/
package api

import (
	"context"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// RouterOptions configures NewRouter.
type RouterOptions struct {
	AllowedOrigins []string
	// ActorHeader names the header carrying the acting user's id.
	ActorHeader string
}

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler, opts RouterOptions) *chi.Mux {
	if len(opts.AllowedOrigins) == 0 {
		opts.AllowedOrigins = []string{"http://localhost:5173", "http://localhost:8080"}
	}
	if opts.ActorHeader == "" {
		opts.ActorHeader = "X-User-Id"
	}

	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   opts.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", opts.ActorHeader},
		AllowCredentials: true,
	}))
	r.Use(actorMiddleware(opts.ActorHeader))

	r.Get("/health", h.Health)

	// API routes
	r.Route("/api", func(r chi.Router) {
		r.Route("/beneficiaries", func(r chi.Router) {
			r.Get("/", h.ListBeneficiaries)
			r.Post("/", h.CreateBeneficiary)
			r.Get("/{id}", h.GetBeneficiary)
			r.Patch("/{id}", h.UpdateBeneficiary)
			r.Delete("/{id}", h.DeleteBeneficiary)
		})

		r.Route("/users", func(r chi.Router) {
			r.Get("/", h.ListUsers)
			r.Post("/", h.CreateUser)
			r.Get("/{id}", h.GetUser)
		})

		r.Route("/payment-types", func(r chi.Router) {
			r.Get("/", h.ListPaymentTypes)
			r.Post("/", h.CreatePaymentType)
			r.Get("/{id}", h.GetPaymentType)
			r.Get("/{id}/allocation", h.GetAllocation)
			r.Post("/{id}/beneficiaries", h.LinkBeneficiary)
			r.Delete("/{id}/beneficiaries/{beneficiaryId}", h.UnlinkBeneficiary)
		})

		r.Route("/scenarios", func(r chi.Router) {
			r.Get("/", h.ListScenarios)
			r.Get("/current", h.GetCurrentScenario)
			r.Post("/load", h.LoadScenario)
		})

		r.Route("/admin", func(r chi.Router) {
			r.Post("/audit", h.RunAudit)
			r.Get("/audit", h.LastAudit)
		})
	})

	return r
}

// =============================================================================
// ACTOR
// =============================================================================

type actorKey struct{}

func actorMiddleware(header string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if actor := strings.TrimSpace(r.Header.Get(header)); actor != "" {
				r = r.WithContext(WithActor(r.Context(), actor))
			}
			next.ServeHTTP(w, r)
		})
	}
}

// WithActor returns a context carrying the acting user's id.
func WithActor(ctx context.Context, actor string) context.Context {
	return context.WithValue(ctx, actorKey{}, actor)
}

// ActorFromContext returns the acting user's id, or "" if none was sent.
func ActorFromContext(ctx context.Context) string {
	actor, _ := ctx.Value(actorKey{}).(string)
	return actor
}

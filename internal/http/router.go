package http

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/plan-it/planit/internal/idempotency"
	"github.com/plan-it/planit/internal/observability"
	"github.com/plan-it/planit/internal/rateLimit"
)

func SetupRouter(h *Handlers, logger observability.Logger, rl *rateLimit.RateLimiter, idemp *idempotency.Idempotency) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.Recoverer)
	r.Use(MetricsMiddleware)
	r.Use(RequestIDMiddleware)
	r.Use(LoggerMiddleware(logger))
	r.Use(TracingMiddleware)
	r.Use(RateLimitMiddleware(rl))

	// Provider callbacks authenticate with their own signature header, not
	// an Idempotency-Key, so they sit outside the idempotency group.
	r.Post("/webhook/stripe", h.StripeWebhook)

	r.Get("/healthz", h.Healthz)
	r.Get("/readyz", h.Readyz)
	r.Get("/metrics", promhttp.Handler().ServeHTTP)

	r.Group(func(r chi.Router) {
		r.Use(IdempotencyMiddleware(idemp))

		r.Post("/order", h.CreateOrder)
		r.Post("/create-stripe-session", h.CreateStripeSession)
		r.Get("/order/{id}", h.GetOrder)
		r.Get("/user-orders/{userId}", h.ListUserOrders)
		r.Get("/orders", h.ListOrganizerOrders)
		r.Get("/user-ticket-count/{userId}/{eventId}", h.UserTicketCount)

		r.Post("/users", h.UpsertUser)
		r.Get("/users/{externalId}", h.GetUser)
		r.Put("/users/{externalId}", h.UpdateUserProfile)

		r.Post("/event", h.CreateEvent)
		r.Get("/event/{id}", h.GetEvent)
		r.Put("/event/{id}", h.UpdateEvent)
		r.Delete("/event/{id}", h.DeleteEvent)
		r.Get("/event/{id}/instances", h.ListEventInstances)
		r.Get("/events", h.ListOrganizerEvents)
		r.Get("/events/need-volunteers", h.ListEventsNeedingVolunteers)

		r.Post("/volunteers/register", h.RegisterVolunteer)
		r.Get("/volunteers/user/{userId}", h.ListUserVolunteering)

		r.Post("/create-sponsorship-session", h.CreateSponsorshipSession)
		r.Get("/sponsorships/event/{eventId}", h.ListEventSponsorships)

		r.Post("/event-queries", h.CreateEventQuery)
		r.Get("/event-queries/{eventId}", h.ListEventQueries)
		r.Get("/event-queries/organizer/{organizerId}", h.OrganizerQueryCounts)

		r.Post("/reviews", h.CreateReview)
		r.Get("/reviews", h.ListRecentReviews)

		r.Post("/newsletter/subscribe", h.SubscribeNewsletter)
		r.Get("/newsletter/subscribers", h.ListNewsletterSubscribers)

		r.Get("/notifications", h.ListNotifications)
		r.Put("/notifications/mark-read", h.MarkNotificationsRead)

		r.Get("/admin/users", h.ListUsers)
		r.Put("/admin/update-role", h.UpdateUserRole)
		r.Post("/organizer-requests", h.CreateOrganizerRequest)
		r.Get("/organizer-requests", h.ListOrganizerRequests)
		r.Put("/organizer-requests/{id}/decision", h.DecideOrganizerRequest)

		r.Get("/ticket-analysis/sales-summary", h.SalesSummary)
	})

	return r
}

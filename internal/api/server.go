package api

import (
	"net/http"
	"net/netip"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/the-bazaar/bazaar-backend/internal/auth"
	"github.com/the-bazaar/bazaar-backend/internal/config"
	"github.com/the-bazaar/bazaar-backend/internal/metrics"
	"github.com/the-bazaar/bazaar-backend/internal/middleware"
	"github.com/the-bazaar/bazaar-backend/internal/rbac"
)

// MFA endpoints are cheap to hammer and each failure costs a provider call.
const (
	mfaRatePerSecond = 1
	mfaRateBurst     = 10
)

// Deps are the collaborators the HTTP layer needs.
type Deps struct {
	Authenticator  *auth.Authenticator
	Staff          StaffService
	MFA            MFAService
	Orders         OrderService
	AuditLog       AuditLog
	AuditExporter  AuditExporter
	Queue          TaskQueue
	Checks         map[string]Check
	PaystackSecret string
	CORS           *config.CORSConfig
	TrustedProxies []netip.Prefix
}

type Server struct {
	auth           *auth.Authenticator
	staff          StaffService
	mfa            MFAService
	orders         OrderService
	auditLog       AuditLog
	auditExporter  AuditExporter
	queue          TaskQueue
	checks         map[string]Check
	paystackSecret string
	cors           *config.CORSConfig
	trustedProxies []netip.Prefix
	validator      *requestValidator
}

var embeddedValidator = sync.OnceValues(func() (*requestValidator, error) {
	doc, err := LoadSpec()
	if err != nil {
		return nil, err
	}
	return newRequestValidator(doc)
})

func NewServer(deps Deps) *Server {
	validator, err := embeddedValidator()
	if err != nil {
		// the OpenAPI document is embedded, so this only fails on a broken build
		panic(err)
	}
	return &Server{
		validator:      validator,
		auth:           deps.Authenticator,
		staff:          deps.Staff,
		mfa:            deps.MFA,
		orders:         deps.Orders,
		auditLog:       deps.AuditLog,
		auditExporter:  deps.AuditExporter,
		queue:          deps.Queue,
		checks:         deps.Checks,
		paystackSecret: deps.PaystackSecret,
		cors:           deps.CORS,
		trustedProxies: deps.TrustedProxies,
	}
}

// Routes builds the chi router with the middleware chain and every guard.
func (s *Server) Routes() http.Handler {
	a := s.auth
	v := s.validator.Middleware
	r := chi.NewRouter()

	if s.cors != nil {
		r.Use(middleware.NewCORSHandler(s.cors))
	}
	r.Use(middleware.RealIP(s.trustedProxies))
	r.Use(middleware.RequestContext)
	r.Use(middleware.LoggingMiddleware)
	r.Use(metrics.Instrument)

	r.Get("/health", s.Health)
	r.Get("/ready", s.Ready)
	r.Handle("/metrics", metrics.Handler())

	r.Route("/api", func(r chi.Router) {
		r.With(a.Optional).Get("/auth/session", s.Session)
		r.With(a.RequireAuth).Get("/auth/me", s.Me)

		r.With(a.RequireOwnerOrAdmin(s.orderOwners)).Get("/orders/{orderID}", s.GetOrder)
		r.With(a.RequireVendor).Get("/vendor/orders", s.ListVendorOrders)

		r.Post("/webhooks/paystack", s.PaystackWebhook)

		r.Route("/admin", func(r chi.Router) {
			r.With(a.RequireAdmin).Get("/modules", s.Modules)

			r.Route("/staff", func(r chi.Router) {
				r.With(a.RequireModuleAccess(rbac.ModuleStaff)).Get("/", s.ListStaff)
				r.With(a.RequireSuperAdmin, v).Post("/", s.CreateStaff)
				r.With(a.RequireSuperAdmin, v).Patch("/{staffID}", s.UpdateStaff)
				r.With(a.RequireSuperAdmin).Delete("/{staffID}", s.DeactivateStaff)
			})

			r.Route("/mfa", func(r chi.Router) {
				r.Use(a.RequireAdmin)
				r.Use(middleware.RateLimit(mfaRatePerSecond, mfaRateBurst))
				r.Get("/status", s.MFAStatus)
				r.Post("/totp/enroll", s.EnrollTOTP)
				r.With(v).Post("/totp/verify", s.VerifyTOTP)
				r.With(v).Post("/webauthn/register", s.RegisterWebAuthn)
				r.Post("/webauthn/challenge", s.IssueWebAuthnChallenge)
				r.With(v).Post("/webauthn/verify", s.VerifyWebAuthn)
			})

			r.Route("/orders/{orderID}", func(r chi.Router) {
				r.With(a.RequirePermission(rbac.OrdersUpdate), v).Patch("/status", s.UpdateOrderStatus)
				r.With(a.RequirePermission(rbac.OrdersRefund)).Post("/refund", s.RefundOrder)
			})

			r.Route("/audit-logs", func(r chi.Router) {
				r.With(a.RequireModuleAccess(rbac.ModuleAuditLogs)).Get("/", s.ListAuditLogs)
				r.With(a.RequirePermission(rbac.AuditLogsExport), v).Post("/export", s.ExportAuditLogs)
			})
		})
	})

	return r
}

// currentUser is only called behind a guard, which guarantees a user.
func currentUser(r *http.Request) *auth.AuthenticatedUser {
	user, _ := auth.UserFromContext(r.Context())
	return user
}

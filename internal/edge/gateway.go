// Package edge is the gateway placed in front of each frontend. It classifies
// the requested path, resolves the cookie session and either redirects or
// proxies the request to the frontend upstream.
package edge

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httputil"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/the-bazaar/bazaar-backend/internal/auth"
	"github.com/the-bazaar/bazaar-backend/internal/config"
	"github.com/the-bazaar/bazaar-backend/internal/db"
	"github.com/the-bazaar/bazaar-backend/internal/identity"
	"github.com/the-bazaar/bazaar-backend/internal/logging"
	"github.com/the-bazaar/bazaar-backend/internal/metrics"
	"github.com/the-bazaar/bazaar-backend/internal/rbac"
)

// Headers forwarded upstream for signed-in administrators. Client-supplied
// values are always stripped.
const (
	HeaderAdminID   = "X-Admin-Id"
	HeaderAdminRole = "X-Admin-Role"
)

// ProfileStore reads the account flags the admin checks depend on.
type ProfileStore interface {
	GetProfile(ctx context.Context, id uuid.UUID) (db.Profile, error)
}

type Gateway struct {
	app        App
	classifier *Classifier
	provider   identity.Provider
	// resolver applies staff records for the admin app; nil elsewhere.
	resolver *auth.Authenticator
	profiles ProfileStore
	cookies  sessionCookies
	proxy    http.Handler
	now      func() time.Time
}

type Options struct {
	App      App
	Provider identity.Provider
	// Authenticator and Profiles are required for the admin app.
	Authenticator *auth.Authenticator
	Profiles      ProfileStore
	Cookies       *config.EdgeConfig
	Upstream      *url.URL
}

func New(opts Options) *Gateway {
	return &Gateway{
		app:        opts.App,
		classifier: NewClassifier(opts.App.Routes),
		provider:   opts.Provider,
		resolver:   opts.Authenticator,
		profiles:   opts.Profiles,
		cookies:    newSessionCookies(opts.Cookies),
		proxy:      newProxy(opts.Upstream),
		now:        time.Now,
	}
}

func newProxy(upstream *url.URL) http.Handler {
	return &httputil.ReverseProxy{
		Rewrite: func(pr *httputil.ProxyRequest) {
			pr.SetURL(upstream)
			pr.SetXForwarded()
			pr.Out.Host = pr.In.Host
		},
		ErrorHandler: func(w http.ResponseWriter, r *http.Request, err error) {
			logging.FromContext(r.Context()).Error("upstream request failed", "error", err)
			w.WriteHeader(http.StatusBadGateway)
		},
	}
}

// decision is the outcome of one request.
type decision struct {
	outcome  string
	redirect string
}

func allow() decision { return decision{outcome: "allow"} }

func (g *Gateway) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	r.Header.Del(HeaderAdminID)
	r.Header.Del(HeaderAdminRole)

	class := g.classifier.Classify(r.URL.Path)
	if class == ClassBypass {
		g.proxy.ServeHTTP(w, r)
		return
	}

	d := g.decide(w, r, class)
	metrics.EdgeDecision(g.app.Name, d.outcome)
	logging.FromContext(r.Context()).Debug("edge decision",
		"app", g.app.Name,
		"class", class.String(),
		"outcome", d.outcome,
	)

	if d.redirect != "" {
		http.Redirect(w, r, d.redirect, http.StatusFound)
		return
	}
	g.proxy.ServeHTTP(w, r)
}

func (g *Gateway) decide(w http.ResponseWriter, r *http.Request, class Class) decision {
	ctx := r.Context()
	log := logging.FromContext(ctx)

	sess, err := g.resolveSession(ctx, w, r)
	if err != nil {
		log.Error("session lookup failed", "app", g.app.Name, "error", err)
		if class == ClassProtected {
			// fail closed
			return decision{outcome: "auth_error", redirect: g.loginURL(r, msgAuthError)}
		}
		return allow()
	}

	switch class {
	case ClassPublic:
		return allow()
	case ClassAuthOnly:
		if sess != nil {
			return decision{outcome: "redirect_home", redirect: g.app.HomePath}
		}
		return allow()
	}

	if sess == nil {
		return decision{outcome: "redirect_login", redirect: g.loginURL(r, "")}
	}

	switch {
	case g.app.Admin:
		return g.checkAdmin(w, r, sess, log)
	case g.app.RequireVendor && auth.RoleFromIdentity(sess.user) != rbac.RoleVendor:
		return decision{outcome: "vendor_required", redirect: g.loginURL(r, msgVendorRequired)}
	default:
		return allow()
	}
}

// signOut invalidates the upstream session and drops the cookies. Provider
// failures are logged; the redirect happens regardless.
func (g *Gateway) signOut(w http.ResponseWriter, r *http.Request, sess *session, log *slog.Logger) {
	if err := g.provider.SignOut(r.Context(), sess.accessToken); err != nil {
		log.Warn("failed to sign out session", "user_id", sess.user.ID, "error", err)
	}
	g.clearCookies(w, r)
}

// loginURL preserves the requested path for post-login resumption.
func (g *Gateway) loginURL(r *http.Request, reason string) string {
	q := url.Values{}
	q.Set(g.app.RedirectParam, r.URL.RequestURI())
	if reason != "" {
		q.Set("error", reason)
	}
	return g.app.LoginPath + "?" + encodeQuery(q, g.app.RedirectParam)
}

// encodeQuery is url.Values.Encode with the redirect target left readable;
// paths only need '?', '&', '#' and '%' escaped.
func encodeQuery(q url.Values, redirectParam string) string {
	target := q.Get(redirectParam)
	q.Del(redirectParam)
	out := redirectParam + "=" + pathEscaper.Replace(target)
	if rest := q.Encode(); rest != "" {
		out += "&" + rest
	}
	return out
}

var pathEscaper = strings.NewReplacer("%", "%25", "?", "%3F", "&", "%26", "#", "%23", "+", "%2B", " ", "%20")

package edge

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/the-bazaar/bazaar-backend/internal/config"
	"github.com/the-bazaar/bazaar-backend/internal/identity"
)

const refreshCookieMaxAge = 30 * 24 * time.Hour

// session is the signed-in identity behind the request cookies.
type session struct {
	user        *identity.User
	accessToken string
}

type sessionCookies struct {
	access  string
	refresh string
	secure  bool
}

func newSessionCookies(cfg *config.EdgeConfig) sessionCookies {
	return sessionCookies{access: cfg.AccessTokenCookie, refresh: cfg.RefreshTokenCookie, secure: cfg.SecureCookies}
}

// resolveSession returns nil without error when the request carries no usable
// session. An error means the provider could not be asked.
func (g *Gateway) resolveSession(ctx context.Context, w http.ResponseWriter, r *http.Request) (*session, error) {
	access := cookieValue(r, g.cookies.access)
	refresh := cookieValue(r, g.cookies.refresh)
	if access == "" && refresh == "" {
		return nil, nil
	}

	if access != "" {
		user, err := g.provider.GetUser(ctx, access)
		switch {
		case err == nil:
			return &session{user: user, accessToken: access}, nil
		case !errors.Is(err, identity.ErrInvalidCredential):
			return nil, fmt.Errorf("looking up session user: %w", err)
		}
	}
	if refresh == "" {
		g.clearCookies(w, r)
		return nil, nil
	}

	refreshed, err := g.provider.RefreshSession(ctx, refresh)
	if errors.Is(err, identity.ErrInvalidCredential) {
		g.clearCookies(w, r)
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("refreshing session: %w", err)
	}

	user := refreshed.User
	if user == nil {
		if user, err = g.provider.GetUser(ctx, refreshed.AccessToken); err != nil {
			return nil, fmt.Errorf("looking up refreshed user: %w", err)
		}
	}
	g.writeCookies(w, r, refreshed)
	return &session{user: user, accessToken: refreshed.AccessToken}, nil
}

// writeCookies sets the rotated tokens on the response and on the request
// that is forwarded upstream, so the frontend renders with the new session.
func (g *Gateway) writeCookies(w http.ResponseWriter, r *http.Request, s *identity.Session) {
	accessAge := time.Duration(s.ExpiresIn) * time.Second
	http.SetCookie(w, g.cookie(g.cookies.access, s.AccessToken, accessAge))
	http.SetCookie(w, g.cookie(g.cookies.refresh, s.RefreshToken, refreshCookieMaxAge))
	replaceRequestCookies(r, map[string]string{g.cookies.access: s.AccessToken, g.cookies.refresh: s.RefreshToken})
}

func (g *Gateway) clearCookies(w http.ResponseWriter, r *http.Request) {
	for _, name := range []string{g.cookies.access, g.cookies.refresh} {
		c := g.cookie(name, "", 0)
		c.MaxAge = -1
		http.SetCookie(w, c)
	}
	replaceRequestCookies(r, map[string]string{g.cookies.access: "", g.cookies.refresh: ""})
}

func (g *Gateway) cookie(name, value string, maxAge time.Duration) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		MaxAge:   int(maxAge.Seconds()),
		HttpOnly: true,
		Secure:   g.cookies.secure,
		SameSite: http.SameSiteLaxMode,
	}
}

func cookieValue(r *http.Request, name string) string {
	c, err := r.Cookie(name)
	if err != nil {
		return ""
	}
	return c.Value
}

// replaceRequestCookies rewrites the Cookie header; an empty value drops the cookie.
func replaceRequestCookies(r *http.Request, values map[string]string) {
	kept := r.Cookies()
	r.Header.Del("Cookie")
	for _, c := range kept {
		if _, replaced := values[c.Name]; !replaced {
			r.AddCookie(c)
		}
	}
	for name, value := range values {
		if value != "" {
			r.AddCookie(&http.Cookie{Name: name, Value: value})
		}
	}
}

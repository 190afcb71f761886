package edge

import (
	"log/slog"
	"net/http"
	"net/url"

	"github.com/the-bazaar/bazaar-backend/internal/auth"
	"github.com/the-bazaar/bazaar-backend/internal/config"
)

// checkAdmin runs the admin portal checks in order: account state and role,
// session age, forced password change, then the MFA gate. Every lookup
// failure fails closed.
func (g *Gateway) checkAdmin(w http.ResponseWriter, r *http.Request, sess *session, log *slog.Logger) decision {
	ctx := r.Context()
	path := r.URL.Path

	user, authErr := g.resolver.Resolve(ctx, sess.user)
	switch {
	case authErr != nil && authErr.Code == auth.CodeAccountSuspended:
		log.Warn("suspended administrator blocked", "user_id", sess.user.ID)
		g.signOut(w, r, sess, log)
		return decision{outcome: "suspended", redirect: g.loginURL(r, msgSuspended)}
	case authErr != nil:
		return decision{outcome: "auth_error", redirect: g.loginURL(r, msgAuthError)}
	case !user.IsAdmin:
		log.Warn("non-administrator signed out of admin portal",
			"user_id", user.ID,
			"role", user.Role,
			"path", path,
		)
		g.signOut(w, r, sess, log)
		return decision{outcome: "admin_required", redirect: g.loginURL(r, msgAdminRequired)}
	}

	signedIn := sess.user.LastSignInAt
	if signedIn == nil || g.now().Sub(*signedIn) > config.AdminSessionTimeout {
		log.Info("admin session expired", "user_id", user.ID)
		g.signOut(w, r, sess, log)
		return decision{outcome: "session_expired", redirect: g.loginURL(r, msgSessionExpired)}
	}

	profile, err := g.profiles.GetProfile(ctx, user.ID)
	if err != nil {
		log.Error("failed to load admin profile", "user_id", user.ID, "error", err)
		return decision{outcome: "auth_error", redirect: g.loginURL(r, msgAuthError)}
	}
	if !profile.IsActive {
		g.signOut(w, r, sess, log)
		return decision{outcome: "suspended", redirect: g.loginURL(r, msgSuspended)}
	}

	// the MFA routes stay reachable so a pending second factor can be
	// completed before the password change
	if profile.MustChangePassword && !underAny(path, g.app.ChangePasswordPath, g.app.MFAPath) {
		return decision{outcome: "must_change_password", redirect: g.app.ChangePasswordPath}
	}

	if profile.MfaEnabled && !underAny(path, g.app.MFAPath) {
		verified := profile.MfaVerifiedAt
		if verified == nil || !verified.After(*signedIn) {
			q := url.Values{}
			q.Set(g.app.RedirectParam, r.URL.RequestURI())
			return decision{outcome: "mfa_required", redirect: g.app.MFAPath + "/verify?" + encodeQuery(q, g.app.RedirectParam)}
		}
	}
	if !profile.MfaEnabled {
		// TODO: decide whether admins without a second factor should be forced into enrollment
		log.Debug("administrator has no second factor", "user_id", user.ID)
	}

	r.Header.Set(HeaderAdminID, user.ID.String())
	r.Header.Set(HeaderAdminRole, string(user.Role))
	w.Header().Set(HeaderAdminID, user.ID.String())
	w.Header().Set(HeaderAdminRole, string(user.Role))
	return allow()
}

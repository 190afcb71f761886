package edge

import "fmt"

// App names accepted by ForApp.
const (
	AppStorefront = "storefront"
	AppVendor     = "vendor"
	AppAdmin      = "admin"
)

// Redirect reasons shown on the login page.
const (
	msgSessionExpired = "Your session has expired. Please sign in again."
	msgAdminRequired  = "Administrator privileges required."
	msgVendorRequired = "A vendor account is required to use the vendor portal."
	msgSuspended      = "Your account has been suspended."
	msgAuthError      = "We could not verify your session. Please sign in again."
)

// App is the per-frontend configuration of the gateway.
type App struct {
	Name   string
	Routes RouteTable

	LoginPath string
	// HomePath is where signed-in users land when they open a login page.
	HomePath      string
	RedirectParam string

	// RequireVendor restricts protected routes to the vendor role.
	RequireVendor bool
	// Admin enables the session-age, password, suspension and MFA checks.
	Admin              bool
	MFAPath            string
	ChangePasswordPath string
}

var staticAssets = []string{"/_next/", "/static/", "/images/", "/fonts/", "/favicon.ico", "/robots.txt", "/sitemap.xml"}

func StorefrontApp() App {
	return App{
		Name: AppStorefront,
		Routes: RouteTable{
			Public: []string{
				"/", "/products", "/products/[slug]", "/vendors/[vendorSlug]", "/categories/[...path]",
				"/search", "/cart", "/auth/callback", "/auth/reset-password",
			},
			AuthOnly:  []string{"/auth/login", "/auth/register", "/auth/forgot-password"},
			Protected: []string{"/account", "/orders", "/checkout", "/wishlist"},
			Bypass:    staticAssets,
			Default:   ClassPublic,
		},
		LoginPath:     "/auth/login",
		HomePath:      "/",
		RedirectParam: "redirect",
	}
}

func VendorApp() App {
	return App{
		Name: AppVendor,
		Routes: RouteTable{
			Public:    []string{"/", "/apply", "/auth/callback", "/auth/reset-password"},
			AuthOnly:  []string{"/auth/login", "/auth/register", "/auth/forgot-password"},
			Protected: []string{"/dashboard", "/products", "/orders", "/orders/[orderId]", "/payouts", "/settings"},
			Bypass:    staticAssets,
			Default:   ClassProtected,
		},
		LoginPath:     "/auth/login",
		HomePath:      "/dashboard",
		RedirectParam: "redirect",
		RequireVendor: true,
	}
}

func AdminApp() App {
	return App{
		Name: AppAdmin,
		Routes: RouteTable{
			Public:   []string{"/auth/callback", "/auth/reset-password"},
			AuthOnly: []string{"/auth/login", "/auth/forgot-password"},
			Protected: []string{
				"/", "/dashboard", "/vendors", "/products", "/orders", "/customers", "/payments",
				"/categories", "/reports", "/settings", "/staff", "/audit-logs",
				"/auth/mfa", "/auth/change-password",
			},
			Bypass:  staticAssets,
			Default: ClassProtected,
		},
		LoginPath:          "/auth/login",
		HomePath:           "/dashboard",
		RedirectParam:      "redirect",
		Admin:              true,
		MFAPath:            "/auth/mfa",
		ChangePasswordPath: "/auth/change-password",
	}
}

func ForApp(name string) (App, error) {
	switch name {
	case AppStorefront:
		return StorefrontApp(), nil
	case AppVendor:
		return VendorApp(), nil
	case AppAdmin:
		return AdminApp(), nil
	default:
		return App{}, fmt.Errorf("unknown edge app %q", name)
	}
}

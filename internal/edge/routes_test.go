package edge

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassify(t *testing.T) {
	table := RouteTable{
		Public:    []string{"/", "/products/[slug]", "/categories/[...path]", "/auth/callback"},
		AuthOnly:  []string{"/auth/login", "/auth"},
		Protected: []string{"/dashboard", "/orders/[orderId]/invoice"},
		Bypass:    []string{"/_next/", "/favicon.ico"},
		Default:   ClassPublic,
	}
	c := NewClassifier(table)

	tests := []struct {
		path string
		want Class
	}{
		{"/", ClassPublic},
		{"/dashboard", ClassProtected},
		{"/dashboard/", ClassProtected},
		{"/dashboard/anything", ClassProtected},
		{"/dashboard/a/b/c", ClassProtected},
		{"/dashboardx", ClassPublic},
		{"/auth/login", ClassAuthOnly},
		{"/auth/register", ClassAuthOnly},
		{"/auth/callback", ClassPublic},
		{"/auth/callback/google", ClassPublic},
		{"/products/red-scarf", ClassPublic},
		{"/categories/home/kitchen/knives", ClassPublic},
		{"/categories", ClassPublic},
		{"/orders/123/invoice", ClassProtected},
		{"/orders/123", ClassPublic},
		{"/_next/static/chunk.js", ClassBypass},
		{"/favicon.ico", ClassBypass},
		{"/unknown", ClassPublic},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			assert.Equal(t, tt.want, c.Classify(tt.path))
		})
	}
}

func TestClassifyDefault(t *testing.T) {
	c := NewClassifier(RouteTable{Public: []string{"/auth/login"}, Default: ClassProtected})

	assert.Equal(t, ClassProtected, c.Classify("/"))
	assert.Equal(t, ClassProtected, c.Classify("/reports"))
	assert.Equal(t, ClassPublic, c.Classify("/auth/login"))
}

func TestCatchAllNeedsASegment(t *testing.T) {
	c := NewClassifier(RouteTable{Protected: []string{"/docs/[...slug]"}, Default: ClassPublic})

	assert.Equal(t, ClassPublic, c.Classify("/docs"))
	assert.Equal(t, ClassProtected, c.Classify("/docs/intro"))
	assert.Equal(t, ClassProtected, c.Classify("/docs/guides/setup"))
}

func TestAppRouteTables(t *testing.T) {
	for _, name := range []string{AppStorefront, AppVendor, AppAdmin} {
		app, err := ForApp(name)
		if !assert.NoError(t, err) {
			continue
		}
		c := NewClassifier(app.Routes)
		assert.Equal(t, ClassAuthOnly, c.Classify(app.LoginPath), name)
		assert.Equal(t, ClassPublic, c.Classify("/auth/callback"), name)
		assert.Equal(t, ClassPublic, c.Classify("/auth/reset-password"), name)
		assert.Equal(t, ClassBypass, c.Classify("/_next/static/app.js"), name)
	}

	_, err := ForApp("backoffice")
	assert.Error(t, err)
}

func TestUnderAny(t *testing.T) {
	assert.True(t, underAny("/auth/mfa", "/auth/mfa"))
	assert.True(t, underAny("/auth/mfa/verify", "/auth/mfa"))
	assert.False(t, underAny("/auth/mfa-help", "/auth/mfa"))
}

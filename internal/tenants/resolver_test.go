package tenants

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mapease/backend/internal/models"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// memFinder resolves slugs from a fixed map.
type memFinder struct {
	tenants map[string]*models.Tenant
}

func (f *memFinder) ActiveBySlug(_ context.Context, slug string) (*models.Tenant, error) {
	return f.tenants[slug], nil
}

func testTenant(slug string) *models.Tenant {
	return &models.Tenant{ID: uuid.New(), PlaceName: "Expo Center", Subdomain: slug, IsActive: true}
}

func TestSlugFromHost(t *testing.T) {
	const base = "mapease.com"
	cases := []struct {
		name string
		host string
		want string
	}{
		{"tenant subdomain", "acme.mapease.com", "acme"},
		{"tenant subdomain with port", "acme.mapease.com:8080", "acme"},
		{"uppercase host", "ACME.MapEase.com", "acme"},
		{"bare base domain", "mapease.com", ""},
		{"base domain with port", "mapease.com:443", ""},
		{"foreign host", "evil.example.com", ""},
		{"base as suffix of other domain", "notmapease.com", ""},
		{"nested subdomain", "a.b.mapease.com", ""},
		{"empty host", "", ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, SlugFromHost(tc.host, base))
		})
	}
}

func resolverRouter(finder Finder) *gin.Engine {
	r := gin.New()
	grp := r.Group("/tenant/:slug")
	grp.Use(Resolver(finder, "mapease.com"))
	grp.GET("/probe", func(c *gin.Context) {
		if tenant := FromContext(c); tenant != nil {
			c.String(http.StatusOK, tenant.Subdomain)
			return
		}
		c.String(http.StatusOK, "none")
	})
	grp.GET("/required", RequireTenant(), func(c *gin.Context) {
		c.String(http.StatusOK, "ok")
	})
	return r
}

func TestResolverHostWins(t *testing.T) {
	finder := &memFinder{tenants: map[string]*models.Tenant{
		"acme":  testTenant("acme"),
		"other": testTenant("other"),
	}}
	router := resolverRouter(finder)

	// Host names acme even though the path says other.
	req := httptest.NewRequest(http.MethodGet, "/tenant/other/probe", nil)
	req.Host = "acme.mapease.com"
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "acme", w.Body.String())
}

func TestResolverParamFallback(t *testing.T) {
	finder := &memFinder{tenants: map[string]*models.Tenant{"acme": testTenant("acme")}}
	router := resolverRouter(finder)

	req := httptest.NewRequest(http.MethodGet, "/tenant/acme/probe", nil)
	req.Host = "mapease.com"
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "acme", w.Body.String())
}

func TestResolverForwardedHost(t *testing.T) {
	finder := &memFinder{tenants: map[string]*models.Tenant{"acme": testTenant("acme")}}
	router := resolverRouter(finder)

	req := httptest.NewRequest(http.MethodGet, "/tenant/unknown/probe", nil)
	req.Host = "internal-lb"
	req.Header.Set("X-Forwarded-Host", "acme.mapease.com")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "acme", w.Body.String())
}

func TestResolverUnknownSlugLeavesNoTenant(t *testing.T) {
	finder := &memFinder{tenants: map[string]*models.Tenant{}}
	router := resolverRouter(finder)

	req := httptest.NewRequest(http.MethodGet, "/tenant/ghost/probe", nil)
	req.Host = "ghost.mapease.com"
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "none", w.Body.String())
}

func TestRequireTenantRejectsWithoutContext(t *testing.T) {
	finder := &memFinder{tenants: map[string]*models.Tenant{"acme": testTenant("acme")}}
	router := resolverRouter(finder)

	req := httptest.NewRequest(http.MethodGet, "/tenant/ghost/required", nil)
	req.Host = "mapease.com"
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "tenant context required")

	req = httptest.NewRequest(http.MethodGet, "/tenant/acme/required", nil)
	req.Host = "acme.mapease.com"
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
}

package tenants

import (
	"context"
	"net"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/mapease/backend/internal/models"
	"github.com/mapease/backend/pkg/response"
)

const (
	// ContextTenant is the gin context key for the resolved *models.Tenant.
	ContextTenant = "tenant"
	// ContextTenantSlug is the gin context key for the resolved slug.
	ContextTenantSlug = "tenant_slug"
)

// Finder resolves a subdomain slug to an active tenant. Both Repository and
// Cache satisfy it.
type Finder interface {
	ActiveBySlug(ctx context.Context, slug string) (*models.Tenant, error)
}

// SlugFromHost extracts the tenant slug from a request host. Returns "" for
// the bare base domain, hosts outside the base domain, and empty input. Ports
// are ignored; matching is case-insensitive.
func SlugFromHost(host, baseDomain string) string {
	if host == "" || baseDomain == "" {
		return ""
	}
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}
	host = strings.ToLower(host)
	baseDomain = strings.ToLower(baseDomain)
	if host == baseDomain || !strings.HasSuffix(host, "."+baseDomain) {
		return ""
	}
	slug := strings.TrimSuffix(host, "."+baseDomain)
	// Nested subdomains (a.b.base) are not tenant hosts.
	if slug == "" || strings.Contains(slug, ".") {
		return ""
	}
	return slug
}

// Resolver returns a middleware that attaches tenant context. Host-based
// resolution wins; the :slug path parameter is a fallback for local and
// development setups. Absence of a tenant is not an error here — routes that
// need one chain RequireTenant. The middleware never writes, so it is safe to
// run on every request.
func Resolver(finder Finder, baseDomain string) gin.HandlerFunc {
	return func(c *gin.Context) {
		slug := SlugFromHost(c.Request.Host, baseDomain)
		if slug == "" {
			if fwd := c.GetHeader("X-Forwarded-Host"); fwd != "" {
				slug = SlugFromHost(fwd, baseDomain)
			}
		}
		if slug != "" {
			if t, err := finder.ActiveBySlug(c.Request.Context(), slug); err == nil && t != nil {
				c.Set(ContextTenant, t)
				c.Set(ContextTenantSlug, t.Subdomain)
			}
		}
		if _, resolved := c.Get(ContextTenant); !resolved {
			if param := c.Param("slug"); param != "" {
				if t, err := finder.ActiveBySlug(c.Request.Context(), strings.ToLower(param)); err == nil && t != nil {
					c.Set(ContextTenant, t)
					c.Set(ContextTenantSlug, t.Subdomain)
				}
			}
		}
		c.Next()
	}
}

// RequireTenant rejects requests without a resolved tenant.
func RequireTenant() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, ok := c.Get(ContextTenant); !ok {
			response.BadRequest(c, "tenant context required")
			c.Abort()
			return
		}
		c.Next()
	}
}

// FromContext returns the resolved tenant, or nil when none.
func FromContext(c *gin.Context) *models.Tenant {
	if v, ok := c.Get(ContextTenant); ok {
		return v.(*models.Tenant)
	}
	return nil
}

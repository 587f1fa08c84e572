package proxy

import (
	"net/http"
	"strings"

	"github.com/frahmantamala/admin-lite-gateway/internal"
)

// Environment-specific fallbacks when nothing is configured and the inbound
// request carries no forwarded host.
const (
	defaultDevBackend  = "http://localhost:9000"
	defaultProdBackend = "https://backend.internal"
)

// publicLitePrefix is recognized at the top level of some backends instead
// of nested under /admin.
const publicLitePrefix = "admin-lite"

// ResolveUpstreamRoot picks the backend base URL in precedence order:
// explicit backend URL, public storefront URL, the inbound request's own
// forwarded host/proto, then an environment-specific default.
func ResolveUpstreamRoot(cfg *internal.Config, r *http.Request) string {
	if cfg != nil {
		if cfg.Upstream.BackendURL != "" {
			return cfg.Upstream.BackendURL
		}
		if cfg.Upstream.PublicURL != "" {
			return cfg.Upstream.PublicURL
		}
	}
	if r != nil {
		host := r.Header.Get("X-Forwarded-Host")
		if host == "" {
			host = r.Host
		}
		if host != "" {
			proto := r.Header.Get("X-Forwarded-Proto")
			if proto == "" {
				if r.TLS != nil {
					proto = "https"
				} else {
					proto = "http"
				}
			}
			return proto + "://" + host
		}
	}
	if internal.IsProduction() {
		return defaultProdBackend
	}
	return defaultDevBackend
}

// NormalizeRoot reduces a configured backend URL to its bare root. Operators
// paste URLs that already end in /store, /admin or /admin/lite; all of those
// collapse to the same root so exactly one /admin gets appended later.
func NormalizeRoot(base string) string {
	root := strings.TrimSpace(base)
	root = strings.TrimRight(root, "/")
	root = trimSuffixFold(root, "/store")
	if trimmed := trimSuffixFold(root, "/admin/lite"); trimmed != root {
		root = trimmed
	} else {
		root = trimSuffixFold(root, "/admin")
	}
	return strings.TrimRight(root, "/")
}

// AdminBase is the upstream admin API root for a configured base URL.
func AdminBase(base string) string {
	return NormalizeRoot(base) + "/admin"
}

// BuildTargetURL maps a lite-prefixed request path onto the upstream. The
// requested path may arrive fully qualified (leading admin/ segments are
// stripped to prevent /admin/admin doubling), and an admin-lite public
// prefix attaches to the bare root rather than under /admin.
func BuildTargetURL(base, requestPath, rawQuery string) string {
	root := NormalizeRoot(base)
	p := strings.Trim(requestPath, "/")
	for p == "admin" || strings.HasPrefix(p, "admin/") {
		p = strings.Trim(strings.TrimPrefix(p, "admin"), "/")
	}

	var target string
	if p == publicLitePrefix || strings.HasPrefix(p, publicLitePrefix+"/") {
		target = root + "/" + p
	} else if p == "" {
		target = root + "/admin"
	} else {
		target = root + "/admin/" + p
	}

	if rawQuery != "" {
		target += "?" + rawQuery
	}
	return target
}

// LiteTargetURL addresses the newer lite namespace nested under /admin,
// used as the first attempt in two-step fallback routing.
func LiteTargetURL(base, requestPath, rawQuery string) string {
	p := strings.Trim(requestPath, "/")
	for p == "admin" || strings.HasPrefix(p, "admin/") {
		p = strings.Trim(strings.TrimPrefix(p, "admin"), "/")
	}
	if p == "lite" || strings.HasPrefix(p, "lite/") {
		p = strings.Trim(strings.TrimPrefix(p, "lite"), "/")
	}
	return BuildTargetURL(base, "lite/"+p, rawQuery)
}

func trimSuffixFold(s, suffix string) string {
	if len(s) >= len(suffix) && strings.EqualFold(s[len(s)-len(suffix):], suffix) {
		return s[:len(s)-len(suffix)]
	}
	return s
}

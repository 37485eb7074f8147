package signal

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/rs/zerolog/log"
)

// originChecker allows every origin when the list holds "*". Requests
// without an Origin header come from non-browser clients and pass.
func originChecker(allowed []string) func(*http.Request) bool {
	allowAll := false
	set := make(map[string]struct{}, len(allowed))
	for _, o := range allowed {
		o = strings.TrimSpace(o)
		if o == "*" {
			allowAll = true
			continue
		}
		if n, ok := normalizeOrigin(o); ok {
			set[n] = struct{}{}
		}
	}

	return func(r *http.Request) bool {
		if allowAll {
			return true
		}
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		if n, ok := normalizeOrigin(origin); ok {
			if _, found := set[n]; found {
				return true
			}
		}
		log.Warn().Str("module", "signal").Str("origin", origin).Msg("blocked origin")
		return false
	}
}

func normalizeOrigin(origin string) (string, bool) {
	u, err := url.Parse(origin)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return "", false
	}
	return strings.ToLower(u.Scheme) + "://" + strings.ToLower(u.Host), true
}

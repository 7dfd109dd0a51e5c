package messaging

import (
	"mime"
	"net/http"
	"net/url"
	"strings"
)

// OriginPolicy decides which browser origins may use the message surface.
// Requests without an Origin header come from native clients such as the
// CLI and are always allowed. An entry is either an exact origin
// ("https://app.example") or a whole scheme ("chrome-extension://*").
type OriginPolicy struct {
	schemes map[string]struct{}
	origins map[string]struct{}
}

// NewOriginPolicy builds a policy from allowed entries. The zero policy only
// admits requests without an Origin header.
func NewOriginPolicy(allowed []string) OriginPolicy {
	policy := OriginPolicy{
		schemes: make(map[string]struct{}),
		origins: make(map[string]struct{}),
	}
	for _, entry := range allowed {
		entry = strings.ToLower(strings.TrimRight(strings.TrimSpace(entry), "/"))
		if entry == "" {
			continue
		}
		if scheme, ok := strings.CutSuffix(entry, "://*"); ok {
			policy.schemes[scheme] = struct{}{}
			continue
		}
		policy.origins[entry] = struct{}{}
	}
	return policy
}

// Allows reports whether a request carrying origin may be served.
func (policy OriginPolicy) Allows(origin string) bool {
	if origin == "" {
		return true
	}
	origin = strings.ToLower(origin)
	if _, ok := policy.origins[origin]; ok {
		return true
	}
	parsed, err := url.Parse(origin)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return false
	}
	_, ok := policy.schemes[parsed.Scheme]
	return ok
}

// CheckOrigin adapts the policy to websocket.Upgrader.
func (policy OriginPolicy) CheckOrigin(r *http.Request) bool {
	return policy.Allows(r.Header.Get("Origin"))
}

// isJSON reports whether the request declares a JSON body. Browsers cannot
// send that content type cross-origin without a preflight.
func isJSON(r *http.Request) bool {
	mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	return err == nil && mediaType == "application/json"
}

package portfolio_contact

import (
	"net/http"
	"strings"

	"github.com/seancfoley/ipaddress-go/ipaddr"
)

const unknownSource = "unknown"

// SourceIdentity derives the rate-limit key for a request: the first
// X-Forwarded-For hop, then X-Real-IP, then "unknown". A blank first hop
// counts as no header. Requests without either header share the
// "unknown" bucket.
func SourceIdentity(r *http.Request) string {
	if xf := r.Header.Get("X-Forwarded-For"); xf != "" {
		first, _, _ := strings.Cut(xf, ",")
		if v := strings.TrimSpace(first); v != "" {
			return canonicalIP(v)
		}
	}
	if v := strings.TrimSpace(r.Header.Get("X-Real-IP")); v != "" {
		return canonicalIP(v)
	}
	return unknownSource
}

// canonicalIP folds equivalent spellings of an address onto one key.
// Values that are not addresses pass through unchanged.
func canonicalIP(v string) string {
	host := v
	if strings.HasPrefix(host, "[") && strings.HasSuffix(host, "]") {
		host = host[1 : len(host)-1]
	}
	addr, err := ipaddr.NewIPAddressString(host).ToAddress()
	if err != nil || addr == nil {
		return v
	}
	return addr.ToCanonicalString()
}

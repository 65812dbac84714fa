package models

import "strings"

// Cookie is a pre-issued authentication token scoped to exactly one domain.
type Cookie struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Domain string `json:"domain"`
	Path   string `json:"path,omitempty"`
}

// MatchesHost reports whether the cookie may be set on a page served from host.
// A leading dot on the cookie domain also admits subdomains.
func (c Cookie) MatchesHost(host string) bool {
	host = strings.ToLower(strings.TrimSuffix(host, "."))
	domain := strings.ToLower(c.Domain)
	if domain == "" || host == "" {
		return false
	}
	if strings.HasPrefix(domain, ".") {
		bare := domain[1:]
		return host == bare || strings.HasSuffix(host, domain)
	}
	return host == domain
}

// CookieJar is the immutable cookie configuration for a run.
// The zero value is an empty jar.
type CookieJar struct {
	cookies []Cookie
}

// NewCookieJar copies cookies into a jar. Cookies without a name or domain
// are dropped; an empty path defaults to "/".
func NewCookieJar(cookies []Cookie) CookieJar {
	kept := make([]Cookie, 0, len(cookies))
	for _, c := range cookies {
		if c.Name == "" || c.Domain == "" {
			continue
		}
		if c.Path == "" {
			c.Path = "/"
		}
		kept = append(kept, c)
	}
	return CookieJar{cookies: kept}
}

// Len returns the number of cookies in the jar.
func (j CookieJar) Len() int { return len(j.cookies) }

// All returns a copy of every cookie in the jar.
func (j CookieJar) All() []Cookie {
	out := make([]Cookie, len(j.cookies))
	copy(out, j.cookies)
	return out
}

// ForHost returns the cookies eligible for injection on host, in jar order.
func (j CookieJar) ForHost(host string) []Cookie {
	var out []Cookie
	for _, c := range j.cookies {
		if c.MatchesHost(host) {
			out = append(out, c)
		}
	}
	return out
}

// Domains lists the distinct cookie domains in jar order.
func (j CookieJar) Domains() []string {
	seen := make(map[string]struct{}, len(j.cookies))
	var out []string
	for _, c := range j.cookies {
		d := strings.ToLower(c.Domain)
		if _, ok := seen[d]; ok {
			continue
		}
		seen[d] = struct{}{}
		out = append(out, d)
	}
	return out
}

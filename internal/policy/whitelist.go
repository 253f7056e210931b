package policy

import (
	"fmt"
	"net"
	"net/url"
	"regexp"
	"strings"

	"github.com/eliteGoblin/focusd/focusflow/internal/domain"
)

var domainPattern = regexp.MustCompile(`^[a-z0-9]+([\-.][a-z0-9]+)*(\.[a-z]{2,})?$`)

// Whitelist is an ordered set of normalized domains.
// Order is kept for display only.
type Whitelist struct {
	domains []string
	index   map[string]struct{}
}

// NewWhitelist builds a whitelist, dropping duplicates but keeping first-seen order.
func NewWhitelist(domains ...string) *Whitelist {
	w := &Whitelist{
		domains: make([]string, 0, len(domains)),
		index:   make(map[string]struct{}, len(domains)),
	}
	for _, d := range domains {
		w.Add(d)
	}
	return w
}

// Add appends domain. Returns false if it was already present.
func (w *Whitelist) Add(domain string) bool {
	if _, ok := w.index[domain]; ok {
		return false
	}
	w.index[domain] = struct{}{}
	w.domains = append(w.domains, domain)
	return true
}

// Remove deletes domain. Returns false if it was not present.
func (w *Whitelist) Remove(domain string) bool {
	if _, ok := w.index[domain]; !ok {
		return false
	}
	delete(w.index, domain)
	for i, d := range w.domains {
		if d == domain {
			w.domains = append(w.domains[:i], w.domains[i+1:]...)
			break
		}
	}
	return true
}

// Contains reports exact membership.
func (w *Whitelist) Contains(domain string) bool {
	_, ok := w.index[domain]
	return ok
}

// List returns a copy of the domains in insertion order.
func (w *Whitelist) List() []string {
	out := make([]string, len(w.domains))
	copy(out, w.domains)
	return out
}

// Allows reports whether address is covered by any entry.
func (w *Whitelist) Allows(address string) bool {
	return IsAllowed(address, w.domains)
}

// IsAllowed matches address against entries by domain suffix:
// entry E covers A iff A == E or A ends with "." + E.
func IsAllowed(address string, entries []string) bool {
	for _, e := range entries {
		if e == "" {
			continue
		}
		if address == e || strings.HasSuffix(address, "."+e) {
			return true
		}
	}
	return false
}

// NormalizeDomain extracts the host from a URL or validates a bare domain.
// localhost and IP addresses are accepted.
func NormalizeDomain(input string) (string, error) {
	trimmed := strings.TrimSpace(input)
	if trimmed == "" {
		return "", fmt.Errorf("%w: empty", domain.ErrInvalidDomain)
	}

	raw := trimmed
	if !strings.HasPrefix(strings.ToLower(raw), "http") {
		raw = "https://" + raw
	}
	if u, err := url.Parse(raw); err == nil {
		host := strings.ToLower(u.Hostname())
		if host != "" && validHost(host) {
			return host, nil
		}
	}

	cleaned := strings.ToLower(trimmed)
	if validHost(cleaned) {
		return cleaned, nil
	}
	return "", fmt.Errorf("%w: %q", domain.ErrInvalidDomain, input)
}

func validHost(host string) bool {
	if host == "localhost" {
		return true
	}
	if net.ParseIP(host) != nil {
		return true
	}
	return domainPattern.MatchString(host)
}

// Package domains loads and canonicalises the domain names submitted to the checker.
package domains

import (
	"net"
	"strings"
	"unicode/utf8"

	"github.com/rotisserie/eris"
	"golang.org/x/net/idna"
	"golang.org/x/text/unicode/norm"
)

const (
	maxHostLen  = 253
	maxLabelLen = 63
)

// Normalize converts whatever a user typed (bare host, URL, host:port) into
// the lowercase ASCII host the checker expects.
func Normalize(raw string) (string, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return "", eris.New("domains: empty input")
	}

	if i := strings.Index(s, "://"); i >= 0 {
		s = s[i+3:]
	}
	if i := strings.IndexAny(s, "/?#"); i >= 0 {
		s = s[:i]
	}
	// Strip userinfo: user:pass@host
	if at := strings.LastIndexByte(s, '@'); at >= 0 {
		s = s[at+1:]
	}
	if strings.Contains(s, ":") {
		if h, _, err := net.SplitHostPort(s); err == nil {
			s = h
		}
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), ".")
	if len(s) > 2 && s[0] == '[' && s[len(s)-1] == ']' {
		s = s[1 : len(s)-1]
	}
	if s == "" {
		return "", eris.Errorf("domains: no host in %q", raw)
	}

	if ip := net.ParseIP(s); ip != nil {
		return ip.String(), nil
	}

	if !isASCII(s) {
		ascii, err := idna.Lookup.ToASCII(norm.NFC.String(s))
		if err != nil {
			return "", eris.Wrapf(err, "domains: idna %q", raw)
		}
		s = ascii
	}
	s = strings.ToLower(s)

	if err := validateHost(s); err != nil {
		return "", eris.Wrapf(err, "domains: invalid host %q", raw)
	}
	return s, nil
}

func validateHost(host string) error {
	if len(host) > maxHostLen {
		return eris.Errorf("longer than %d characters", maxHostLen)
	}
	labels := strings.Split(host, ".")
	if len(labels) < 2 {
		return eris.New("missing top-level domain")
	}
	for _, l := range labels {
		if l == "" {
			return eris.New("empty label")
		}
		if len(l) > maxLabelLen {
			return eris.Errorf("label %q longer than %d characters", l, maxLabelLen)
		}
		if l[0] == '-' || l[len(l)-1] == '-' {
			return eris.Errorf("label %q starts or ends with a hyphen", l)
		}
		for i := 0; i < len(l); i++ {
			c := l[i]
			if (c >= 'a' && c <= 'z') || (c >= '0' && c <= '9') || c == '-' || c == '_' {
				continue
			}
			return eris.Errorf("label %q contains %q", l, c)
		}
	}
	return nil
}

func isASCII(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] >= utf8.RuneSelf {
			return false
		}
	}
	return true
}

// Package horosafe holds the safety checks applied at the edges of a chain
// run: which URLs may be fetched or posted to, how much of a response is
// read, and how the shared secret is compared.
package horosafe

import (
	"crypto/subtle"
	"errors"
	"fmt"
	"io"
	"net"
	"net/url"
	"strings"
)

// MaxResponseBody is the default cap for submission response reads (1 MiB).
const MaxResponseBody int64 = 1 << 20

// ErrSSRF is returned when a URL targets a private/loopback address.
var ErrSSRF = errors.New("horosafe: URL targets a private or loopback address")

// ErrUnsafeScheme is returned when a URL uses a non-HTTP(S) scheme.
var ErrUnsafeScheme = errors.New("horosafe: only http and https schemes are allowed")

// ErrTooLarge is returned by LimitedReadAll when the limit is exceeded.
var ErrTooLarge = errors.New("horosafe: response too large")

// Validator vets a URL before any request is made to it.
type Validator func(rawURL string) error

// CheckHTTPURL verifies that rawURL is an absolute http(s) URL with a host.
// It performs no network lookups.
func CheckHTTPURL(rawURL string) error {
	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("horosafe: invalid URL: %w", err)
	}
	scheme := strings.ToLower(u.Scheme)
	if scheme != "http" && scheme != "https" {
		return ErrUnsafeScheme
	}
	if u.Hostname() == "" {
		return fmt.Errorf("horosafe: URL has no host")
	}
	return nil
}

// ValidateURL is CheckHTTPURL plus a check that the host does not resolve
// to a private or loopback address. Hostnames are resolved to catch
// internal names pointing at private ranges.
func ValidateURL(rawURL string) error {
	if err := CheckHTTPURL(rawURL); err != nil {
		return err
	}
	u, _ := url.Parse(rawURL)
	host := u.Hostname()

	if ip := net.ParseIP(host); ip != nil {
		if isPrivateIP(ip) {
			return ErrSSRF
		}
		return nil
	}

	addrs, err := net.LookupHost(host)
	if err != nil {
		// Unresolvable hosts fail later at dial time.
		return nil
	}
	for _, a := range addrs {
		if ip := net.ParseIP(a); ip != nil && isPrivateIP(ip) {
			return ErrSSRF
		}
	}
	return nil
}

// SchemeOnly is the Validator used when private addresses are allowed.
func SchemeOnly(rawURL string) error { return CheckHTTPURL(rawURL) }

// ValidatorFor returns ValidateURL, or SchemeOnly when allowPrivate is set.
func ValidatorFor(allowPrivate bool) Validator {
	if allowPrivate {
		return SchemeOnly
	}
	return ValidateURL
}

// LimitedReadAll reads at most maxBytes from r and fails with ErrTooLarge
// when more is available.
func LimitedReadAll(r io.Reader, maxBytes int64) ([]byte, error) {
	lr := io.LimitReader(r, maxBytes+1)
	data, err := io.ReadAll(lr)
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > maxBytes {
		return nil, fmt.Errorf("%w: exceeds %d bytes", ErrTooLarge, maxBytes)
	}
	return data, nil
}

// SecretsEqual compares two secrets in constant time. An empty expected
// secret never matches.
func SecretsEqual(expected, given string) bool {
	if expected == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(expected), []byte(given)) == 1
}

var privateRanges = mustCIDRs(
	"10.0.0.0/8",
	"172.16.0.0/12",
	"192.168.0.0/16",
	"100.64.0.0/10",
	"fc00::/7",
	"169.254.0.0/16",
)

func mustCIDRs(nets ...string) []*net.IPNet {
	out := make([]*net.IPNet, 0, len(nets))
	for _, n := range nets {
		_, cidr, err := net.ParseCIDR(n)
		if err != nil {
			panic(err)
		}
		out = append(out, cidr)
	}
	return out
}

func isPrivateIP(ip net.IP) bool {
	if ip.IsLoopback() || ip.IsUnspecified() {
		return true
	}
	if ip.IsLinkLocalUnicast() || ip.IsLinkLocalMulticast() {
		return true
	}
	for _, cidr := range privateRanges {
		if cidr.Contains(ip) {
			return true
		}
	}
	return false
}

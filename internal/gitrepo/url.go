// Package gitrepo maintains one Git working tree per configured
// repository and derives cached read-only views over it.
package gitrepo

import (
	"fmt"
	"net/url"
	"strings"
)

// NormalizeURL strips userinfo, query and fragment from a Git URL so
// two URLs can be compared by scheme, host and path. Non-URL forms
// (scp-like ssh remotes) are returned trimmed but otherwise untouched.
func NormalizeURL(raw string) string {
	raw = strings.TrimSpace(raw)
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" {
		return raw
	}
	u.User = nil
	u.RawQuery = ""
	u.Fragment = ""
	return strings.TrimSuffix(u.String(), "/")
}

// SameRemote reports whether two Git URLs identify the same remote
// after normalization.
func SameRemote(a, b string) bool {
	return NormalizeURL(a) == NormalizeURL(b)
}

// InjectAuth returns rawURL with username:token userinfo inserted,
// URL-encoding both parts. Non-HTTP(S) schemes are returned unchanged:
// credentials travel over the SSH agent there, not the URL.
func InjectAuth(rawURL, username, token string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return "", fmt.Errorf("invalid repository URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return rawURL, nil
	}
	if token == "" {
		return rawURL, nil
	}
	if username == "" {
		u.User = url.User(token)
	} else {
		u.User = url.UserPassword(username, token)
	}
	return u.String(), nil
}

// RedactURL strips userinfo for log output.
func RedactURL(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.User == nil {
		return rawURL
	}
	u.User = nil
	return u.String()
}

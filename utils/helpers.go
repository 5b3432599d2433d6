package utils

import (
	"net/url"
	"strings"
)

// NormalizeURL produces the visit-ledger key for a page URL.
// Scheme and host are lower-cased and the fragment is dropped; anything that
// fails to parse is used verbatim.
func NormalizeURL(raw string) string {
	raw = strings.TrimSpace(raw)
	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)
	u.Fragment = ""
	u.RawFragment = ""
	return u.String()
}

// ResolveURL makes a relative page URL absolute against base, the URL of the
// page the host is on. raw is returned as given when it is already absolute,
// when base has no host, or when either fails to parse.
func ResolveURL(raw, base string) string {
	raw = strings.TrimSpace(raw)
	ref, err := url.Parse(raw)
	if err != nil || ref.IsAbs() {
		return raw
	}
	b, err := url.Parse(strings.TrimSpace(base))
	if err != nil || !b.IsAbs() || b.Host == "" {
		return raw
	}
	return b.ResolveReference(ref).String()
}

// PathOf returns the path component of an absolute or relative URL.
func PathOf(raw string) string {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return raw
	}
	if u.Path == "" && u.Host != "" {
		return "/"
	}
	return u.Path
}

// IsExcludedPath reports whether the URL's path is one of the prefixes or
// lies below one. Prefixes match whole path segments: "/admin" covers
// "/admin/login" but not "/admins".
func IsExcludedPath(raw string, prefixes []string) bool {
	path := PathOf(raw)
	for _, prefix := range prefixes {
		if prefix == "" {
			continue
		}
		p := strings.TrimRight(prefix, "/")
		if path == p || strings.HasPrefix(path, p+"/") {
			return true
		}
	}
	return false
}

// HostOf returns the lower-cased host of an absolute URL, or "" when there is none.
func HostOf(raw string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return "", err
	}
	return strings.ToLower(u.Host), nil
}

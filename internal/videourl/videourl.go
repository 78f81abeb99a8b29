// Package videourl turns user-supplied video links into canonical URLs and
// classifies them by platform.
package videourl

import (
	"net/url"
	"strings"

	apperrors "vidvest/internal/errors"
	"vidvest/internal/models"
)

// platformDomains maps registrable domains to platforms. A host matches when it
// equals the domain or is a subdomain of it (www.tiktok.com, vm.tiktok.com).
var platformDomains = map[string]models.Platform{
	"tiktok.com":    models.PlatformTikTok,
	"instagram.com": models.PlatformInstagram,
}

// defaultPorts are dropped so ":443" and no port name the same video.
var defaultPorts = map[string]string{
	"http":  "80",
	"https": "443",
}

// Normalize parses rawURL, strips its query string and classifies the platform.
// The fragment is kept as-is and a default port is dropped. Returns
// ErrInvalidURL when the input is not an absolute http(s) URL and
// ErrUnsupportedPlatform for unknown hosts.
func Normalize(rawURL string) (string, models.Platform, error) {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return "", "", apperrors.Wrap(apperrors.ErrInvalidURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", "", apperrors.ErrInvalidURL
	}
	if u.Hostname() == "" {
		return "", "", apperrors.ErrInvalidURL
	}

	platform, ok := Classify(u.Hostname())
	if !ok {
		return "", "", apperrors.ErrUnsupportedPlatform
	}

	u.Host = strings.ToLower(u.Host)
	if u.Port() == defaultPorts[u.Scheme] {
		u.Host = u.Hostname()
	}
	u.RawQuery = ""
	u.ForceQuery = false
	if u.Path == "" {
		u.Path = "/"
	}

	return u.String(), platform, nil
}

// Classify returns the platform for a hostname.
func Classify(host string) (models.Platform, bool) {
	host = strings.TrimSuffix(strings.ToLower(host), ".")
	for domain, platform := range platformDomains {
		if host == domain || strings.HasSuffix(host, "."+domain) {
			return platform, true
		}
	}
	return "", false
}

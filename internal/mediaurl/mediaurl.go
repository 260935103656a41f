// Package mediaurl builds and parses the public URLs of stored media.
package mediaurl

import (
	"net/url"
	"strings"
)

const PathPrefix = "/media/"

func Blob(baseURL, blobID string) string {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		return PathPrefix + blobID
	}
	return baseURL + PathPrefix + blobID
}

func ParseBlobID(raw string) (string, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", false
	}

	u, err := url.Parse(raw)
	if err != nil {
		return "", false
	}

	path := u.Path
	if path == "" {
		path = raw
	}

	if !strings.HasPrefix(path, PathPrefix) {
		return "", false
	}

	blobID := strings.TrimPrefix(path, PathPrefix)
	if blobID == "" || strings.Contains(blobID, "/") {
		return "", false
	}

	return blobID, true
}

// Owned reports whether raw is a media URL served by this server: either a
// bare /media/<id> path or an absolute URL on baseURL's scheme and host.
func Owned(baseURL, raw string) (string, bool) {
	blobID, ok := ParseBlobID(raw)
	if !ok {
		return "", false
	}

	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return "", false
	}
	if u.Host == "" && u.Scheme == "" {
		return blobID, true
	}

	base, err := url.Parse(strings.TrimSpace(baseURL))
	if err != nil || base.Host == "" {
		return "", false
	}
	if !strings.EqualFold(u.Scheme, base.Scheme) || !strings.EqualFold(u.Host, base.Host) {
		return "", false
	}

	return blobID, true
}
